package payu

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"shophub.store/storefront/pkg/global"
)

const ServiceProvider = "payu_paisa"

type Config struct {
	MerchantKey  string
	MerchantSalt string
	// BaseURL is the gateway host; requests post to BaseURL + "/_payment".
	BaseURL string
	// CallbackURL is this server's public base URL.
	CallbackURL string
}

// PaymentRequest is what a client asks the server to sign.
type PaymentRequest struct {
	TransactionID string `json:"transactionId" binding:"required"`
	Amount        string `json:"amount" binding:"required"`
	Description   string `json:"description" binding:"required"`
	FirstName     string `json:"firstName" binding:"required"`
	Email         string `json:"email" binding:"required,email"`
	Phone         string `json:"phone" binding:"required"`
}

// SignedRequest is the full form the browser posts to the gateway.
type SignedRequest struct {
	Key             string `json:"key"`
	TxnID           string `json:"txnid"`
	Amount          string `json:"amount"`
	ProductInfo     string `json:"productinfo"`
	FirstName       string `json:"firstname"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	SURL            string `json:"surl"`
	FURL            string `json:"furl"`
	ServiceProvider string `json:"service_provider"`
	UDF1            string `json:"udf1"`
	UDF2            string `json:"udf2"`
	UDF3            string `json:"udf3"`
	UDF4            string `json:"udf4"`
	UDF5            string `json:"udf5"`
	Hash            string `json:"hash"`
	Action          string `json:"action"`
}

// Fields returns the form fields, excluding the action URL.
func (r SignedRequest) Fields() url.Values {
	v := url.Values{}
	v.Set("key", r.Key)
	v.Set("txnid", r.TxnID)
	v.Set("amount", r.Amount)
	v.Set("productinfo", r.ProductInfo)
	v.Set("firstname", r.FirstName)
	v.Set("email", r.Email)
	v.Set("phone", r.Phone)
	v.Set("surl", r.SURL)
	v.Set("furl", r.FURL)
	v.Set("service_provider", r.ServiceProvider)
	v.Set("udf1", r.UDF1)
	v.Set("udf2", r.UDF2)
	v.Set("udf3", r.UDF3)
	v.Set("udf4", r.UDF4)
	v.Set("udf5", r.UDF5)
	v.Set("hash", r.Hash)
	return v
}

// Callback is the gateway's post to surl/furl.
type Callback struct {
	Fields       ResponseFields
	MihPayID     string
	Mode         string
	BankRefNum   string
	BankCode     string
	ErrorCode    string
	ErrorMessage string
	Hash         string
}

func (c Callback) Succeeded() bool {
	return strings.EqualFold(c.Fields.Status, "success")
}

// Reason is a short failure reason suitable for a return URL.
func (c Callback) Reason() string {
	if c.ErrorMessage != "" {
		return c.ErrorMessage
	}
	if c.Fields.Status != "" && !c.Succeeded() {
		return c.Fields.Status
	}
	return "payment_failed"
}

type Gateway struct {
	cfg Config
}

func NewGateway(cfg Config) *Gateway {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.CallbackURL = strings.TrimRight(cfg.CallbackURL, "/")
	return &Gateway{cfg: cfg}
}

// Sign validates req and builds the signed form. The amount is normalised to
// two decimals so the hashed and posted values agree.
func (g *Gateway) Sign(req PaymentRequest) (SignedRequest, error) {
	var missing []string
	for name, v := range map[string]string{
		"transactionId": req.TransactionID,
		"amount":        req.Amount,
		"description":   req.Description,
		"firstName":     req.FirstName,
		"email":         req.Email,
		"phone":         req.Phone,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return SignedRequest{}, fmt.Errorf("%w: missing required payment fields %v", global.ErrInvalidRequest, missing)
	}
	for _, v := range []string{req.TransactionID, req.Description, req.FirstName, req.Email} {
		if strings.Contains(v, sep) {
			return SignedRequest{}, fmt.Errorf("%w: payment fields may not contain %q", global.ErrInvalidRequest, sep)
		}
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil || !amount.IsPositive() {
		return SignedRequest{}, fmt.Errorf("%w: amount must be a positive number", global.ErrInvalidRequest)
	}

	out := SignedRequest{
		Key:             g.cfg.MerchantKey,
		TxnID:           req.TransactionID,
		Amount:          amount.StringFixed(2),
		ProductInfo:     req.Description,
		FirstName:       req.FirstName,
		Email:           req.Email,
		Phone:           req.Phone,
		SURL:            fmt.Sprintf("%s/api/payments/payu/success/%s", g.cfg.CallbackURL, url.PathEscape(req.TransactionID)),
		FURL:            fmt.Sprintf("%s/api/payments/payu/failure/%s", g.cfg.CallbackURL, url.PathEscape(req.TransactionID)),
		ServiceProvider: ServiceProvider,
		Action:          g.cfg.BaseURL + "/_payment",
	}
	out.Hash = RequestHash(RequestFields{
		Key:         out.Key,
		TxnID:       out.TxnID,
		Amount:      out.Amount,
		ProductInfo: out.ProductInfo,
		FirstName:   out.FirstName,
		Email:       out.Email,
		UDF:         [5]string{out.UDF1, out.UDF2, out.UDF3, out.UDF4, out.UDF5},
	}, g.cfg.MerchantSalt)
	return out, nil
}

// ParseCallback reads the gateway's form post.
func (g *Gateway) ParseCallback(form url.Values) Callback {
	return Callback{
		Fields: ResponseFields{
			Key:               form.Get("key"),
			TxnID:             form.Get("txnid"),
			Amount:            form.Get("amount"),
			ProductInfo:       form.Get("productinfo"),
			FirstName:         form.Get("firstname"),
			Email:             form.Get("email"),
			Status:            form.Get("status"),
			UDF:               [5]string{form.Get("udf1"), form.Get("udf2"), form.Get("udf3"), form.Get("udf4"), form.Get("udf5")},
			AdditionalCharges: form.Get("additionalCharges"),
		},
		MihPayID:     form.Get("mihpayid"),
		Mode:         form.Get("mode"),
		BankRefNum:   form.Get("bank_ref_num"),
		BankCode:     form.Get("bankcode"),
		ErrorCode:    form.Get("error"),
		ErrorMessage: form.Get("error_Message"),
		Hash:         form.Get("hash"),
	}
}

// Verify checks the callback signature and that it was issued for this merchant.
func (g *Gateway) Verify(cb Callback) error {
	if cb.Fields.Key != g.cfg.MerchantKey {
		return global.ErrGatewaySignatureMismatch
	}
	return VerifyResponse(cb.Fields, g.cfg.MerchantSalt, cb.Hash)
}
