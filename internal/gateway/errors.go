package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// ProviderError is returned when the gateway responds with a non-2xx status.
//
// RawResponse holds the gateway body bytes and never includes the API key.
type ProviderError struct {
	StatusCode  int
	Message     string
	RawResponse []byte
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "gateway error"
	}
	return fmt.Sprintf("AI gateway error: %d", e.StatusCode)
}

// RateLimited reports whether the gateway throttled the request.
func (e *ProviderError) RateLimited() bool {
	return e != nil && e.StatusCode == http.StatusTooManyRequests
}

// QuotaExhausted reports whether the gateway account is out of credits.
func (e *ProviderError) QuotaExhausted() bool {
	return e != nil && e.StatusCode == http.StatusPaymentRequired
}

// AsProviderError unwraps err into a *ProviderError.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
