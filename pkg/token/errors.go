package token

import "errors"

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidRange    = errors.New("argument out of range")

	// Validation failures. Validate wraps exactly one of these; TryValidate
	// collapses all of them to false.
	ErrMalformed        = errors.New("token is malformed")
	ErrSignatureInvalid = errors.New("token signature is invalid")
	ErrIssuerMismatch   = errors.New("token issuer is invalid")
	ErrAudienceMismatch = errors.New("token audience is invalid")
	ErrExpired          = errors.New("token is expired")
	ErrNotYetValid      = errors.New("token is not yet valid")
)

// Reason returns a short, stable label for a validation error, suitable for
// metrics and diagnostics.
func Reason(err error) string {
	switch {
	case err == nil:
		return "valid"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrSignatureInvalid):
		return "bad_signature"
	case errors.Is(err, ErrIssuerMismatch):
		return "bad_issuer"
	case errors.Is(err, ErrAudienceMismatch):
		return "bad_audience"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrNotYetValid):
		return "not_yet_valid"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	default:
		return "error"
	}
}
