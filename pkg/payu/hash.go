package payu

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"shophub.store/storefront/pkg/global"
)

const sep = "|"

// RequestFields are the signed fields of an outbound payment request.
type RequestFields struct {
	Key         string
	TxnID       string
	Amount      string
	ProductInfo string
	FirstName   string
	Email       string
	UDF         [5]string
}

// ResponseFields are the signed fields the gateway posts back.
type ResponseFields struct {
	Key               string
	TxnID             string
	Amount            string
	ProductInfo       string
	FirstName         string
	Email             string
	Status            string
	UDF               [5]string
	AdditionalCharges string
}

// RequestHashString lays out key|txnid|amount|productinfo|firstname|email|udf1..udf5|5 empty slots|salt.
func RequestHashString(f RequestFields, salt string) string {
	parts := []string{f.Key, f.TxnID, f.Amount, f.ProductInfo, f.FirstName, f.Email}
	parts = append(parts, f.UDF[:]...)
	parts = append(parts, "", "", "", "", "")
	parts = append(parts, salt)
	return strings.Join(parts, sep)
}

// ResponseHashString is the reverse layout: salt|status|5 empty slots|udf5..udf1|email|firstname|productinfo|amount|txnid|key,
// prefixed with additionalCharges| when the gateway reports extra charges.
func ResponseHashString(f ResponseFields, salt string) string {
	var parts []string
	if f.AdditionalCharges != "" {
		parts = append(parts, f.AdditionalCharges)
	}
	parts = append(parts, salt, f.Status, "", "", "", "", "")
	for i := len(f.UDF) - 1; i >= 0; i-- {
		parts = append(parts, f.UDF[i])
	}
	parts = append(parts, f.Email, f.FirstName, f.ProductInfo, f.Amount, f.TxnID, f.Key)
	return strings.Join(parts, sep)
}

func RequestHash(f RequestFields, salt string) string {
	return digest(RequestHashString(f, salt))
}

func ResponseHash(f ResponseFields, salt string) string {
	return digest(ResponseHashString(f, salt))
}

// VerifyResponse recomputes the response hash and compares it in constant time.
func VerifyResponse(f ResponseFields, salt, received string) error {
	want := ResponseHash(f, salt)
	got := strings.ToLower(strings.TrimSpace(received))
	if got == "" || subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
		return global.ErrGatewaySignatureMismatch
	}
	return nil
}

func digest(s string) string {
	sum := sha512.Sum512([]byte(s))
	return hex.EncodeToString(sum[:])
}
