package checkout

import (
	"net/url"
	"strings"
)

// Return is what the gateway round trip leaves in the checkout URL.
type Return struct {
	Success bool
	Reason  string
	OrderID string
}

// ParseReturn reads ?status=success|failure (or the older ?success=true),
// plus error and orderId. Anything not clearly successful is a failure.
func ParseReturn(q url.Values) Return {
	status := strings.ToLower(q.Get("status"))
	ret := Return{
		Success: status == "success" || q.Get("success") == "true",
		Reason:  q.Get("error"),
		OrderID: q.Get("orderId"),
	}
	if !ret.Success && ret.Reason == "" {
		ret.Reason = "payment_failed"
	}
	return ret
}

// Returning reports whether the query carries a gateway return at all.
func Returning(q url.Values) bool {
	return q.Has("status") || q.Has("success")
}
