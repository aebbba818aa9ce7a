package tokenexchange

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConfiguration   = errors.New("token exchange is not configured")
)

// UpstreamError is returned when the token service answers with a non-2xx
// status. Response is the raw response; its body has already been read into
// Body and closed.
type UpstreamError struct {
	StatusCode int
	Body       []byte
	Response   *http.Response
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("token service returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// StatusCode extracts the upstream status from err, or 0 when err is not an
// *UpstreamError.
func StatusCode(err error) int {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.StatusCode
	}
	return 0
}
