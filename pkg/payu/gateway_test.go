package payu

import (
	"bytes"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shophub.store/storefront/pkg/global"
)

func testGateway() *Gateway {
	return NewGateway(Config{
		MerchantKey:  "gtKFFx",
		MerchantSalt: "eCwWELxi",
		BaseURL:      "https://test.payu.in/",
		CallbackURL:  "https://api.shop.test",
	})
}

func validRequest() PaymentRequest {
	return PaymentRequest{
		TransactionID: "665f1c2ab3e4f5a6b7c8d9e0",
		Amount:        "59.39",
		Description:   "Linen Shirt, Canvas Tote",
		FirstName:     "Asha",
		Email:         "asha@example.com",
		Phone:         "9876543210",
	}
}

func TestSign(t *testing.T) {
	signed, err := testGateway().Sign(validRequest())
	require.NoError(t, err)

	assert.Equal(t, "gtKFFx", signed.Key)
	assert.Equal(t, "https://test.payu.in/_payment", signed.Action)
	assert.Equal(t, "https://api.shop.test/api/payments/payu/success/665f1c2ab3e4f5a6b7c8d9e0", signed.SURL)
	assert.Equal(t, "https://api.shop.test/api/payments/payu/failure/665f1c2ab3e4f5a6b7c8d9e0", signed.FURL)
	assert.Equal(t, ServiceProvider, signed.ServiceProvider)
	assert.Equal(t, RequestHash(request, "eCwWELxi"), signed.Hash)
}

func TestSign_NormalisesAmount(t *testing.T) {
	req := validRequest()
	req.Amount = "59.4"
	signed, err := testGateway().Sign(req)
	require.NoError(t, err)
	assert.Equal(t, "59.40", signed.Amount)
}

func TestSign_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PaymentRequest)
	}{
		{"missing phone", func(r *PaymentRequest) { r.Phone = "" }},
		{"blank first name", func(r *PaymentRequest) { r.FirstName = "  " }},
		{"zero amount", func(r *PaymentRequest) { r.Amount = "0" }},
		{"garbage amount", func(r *PaymentRequest) { r.Amount = "ten" }},
		{"delimiter in description", func(r *PaymentRequest) { r.Description = "a|b" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			_, err := testGateway().Sign(req)
			assert.ErrorIs(t, err, global.ErrInvalidRequest)
		})
	}
}

func callbackForm(status string) url.Values {
	f := response()
	f.Status = status
	f.UDF = [5]string{}
	form := url.Values{}
	form.Set("key", f.Key)
	form.Set("txnid", f.TxnID)
	form.Set("amount", f.Amount)
	form.Set("productinfo", f.ProductInfo)
	form.Set("firstname", f.FirstName)
	form.Set("email", f.Email)
	form.Set("status", status)
	form.Set("mihpayid", "403993715531077182")
	form.Set("bank_ref_num", "87d3b2a1")
	form.Set("hash", ResponseHash(f, "eCwWELxi"))
	return form
}

func TestParseAndVerifyCallback(t *testing.T) {
	g := testGateway()
	cb := g.ParseCallback(callbackForm("success"))
	assert.True(t, cb.Succeeded())
	assert.Equal(t, "403993715531077182", cb.MihPayID)
	assert.NoError(t, g.Verify(cb))

	form := callbackForm("success")
	form.Set("amount", "1.00")
	assert.ErrorIs(t, g.Verify(g.ParseCallback(form)), global.ErrGatewaySignatureMismatch)

	form = callbackForm("success")
	form.Set("key", "someone-else")
	assert.ErrorIs(t, g.Verify(g.ParseCallback(form)), global.ErrGatewaySignatureMismatch)
}

func TestCallbackReason(t *testing.T) {
	g := testGateway()
	form := callbackForm("failure")
	form.Set("error_Message", "Bank was unable to authenticate.")
	cb := g.ParseCallback(form)
	assert.False(t, cb.Succeeded())
	assert.Equal(t, "Bank was unable to authenticate.", cb.Reason())

	assert.Equal(t, "failure", g.ParseCallback(callbackForm("failure")).Reason())
	assert.Equal(t, "payment_failed", Callback{}.Reason())
}

func TestRenderForm(t *testing.T) {
	signed, err := testGateway().Sign(validRequest())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RenderForm(&buf, signed))
	html := buf.String()

	assert.Contains(t, html, `action="https://test.payu.in/_payment"`)
	assert.Contains(t, html, `name="hash" value="`+signed.Hash+`"`)
	assert.Contains(t, html, `name="service_provider" value="payu_paisa"`)
	assert.Equal(t, 16, strings.Count(html, `type="hidden"`))
}
