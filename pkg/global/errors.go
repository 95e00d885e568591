package global

import "errors"

var (
	ErrInvalidRequest           = errors.New("invalid request")
	ErrNotFound                 = errors.New("not found")
	ErrInsufficientStock        = errors.New("insufficient stock")
	ErrUnauthenticated          = errors.New("authentication required")
	ErrUnauthorized             = errors.New("not authorized to access this resource")
	ErrConflict                 = errors.New("conflict")
	ErrGatewaySignatureMismatch = errors.New("gateway signature mismatch")
	ErrUpstreamFailure          = errors.New("upstream failure")
)

// CodeInsufficientStock is the ValidationError code that tells a stock
// rejection apart from other 409 answers.
const CodeInsufficientStock = "insufficient_stock"
