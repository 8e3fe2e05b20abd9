package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMalformedResponse is returned when a 2xx body cannot be decoded
var ErrMalformedResponse = errors.New("malformed backend response")

// APIError is a non-2xx answer from the backend, or a 2xx answer with
// success=false
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend returned %d", e.StatusCode)
}

// BackendMessage returns the user-facing message sent by the backend, if any
func BackendMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

// UserMessage returns the message the backend meant for the cashier
func (e *APIError) UserMessage() string {
	return e.Message
}

// Refused reports whether the answer proves the sale was not recorded. A
// gateway timeout only means a proxy stopped waiting for the backend.
func (e *APIError) Refused() bool {
	return e.StatusCode != http.StatusGatewayTimeout
}
