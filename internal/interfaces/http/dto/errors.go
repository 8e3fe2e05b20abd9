package dto

import (
	"net/http"

	"github.com/erp/pos/internal/domain/pos"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeUnavailable is used when a dependency (backend, renderer) is down
	ErrCodeUnavailable = "ERR_UNAVAILABLE"
	// ErrCodeTimeout is used when a dependency did not answer in time
	ErrCodeTimeout = "ERR_TIMEOUT"
)

// Validation error codes
const (
	ErrCodeValidation = "ERR_VALIDATION"
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodeTooLarge is used when the request body exceeds the limit
	ErrCodeTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Access error codes
const (
	// ErrCodeForbidden is used when the CSRF check fails
	ErrCodeForbidden = "ERR_FORBIDDEN"
	// ErrCodeRateLimited is used when rate limit is exceeded
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// Resource error codes
const (
	ErrCodeNotFound = "ERR_NOT_FOUND"
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes. Terminal
// domain codes are passed through unchanged and mapped here too.
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:     http.StatusInternalServerError,
	ErrCodeInternal:    http.StatusInternalServerError,
	ErrCodeUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:     http.StatusGatewayTimeout,

	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,
	ErrCodeTooLarge:     http.StatusRequestEntityTooLarge,

	ErrCodeForbidden:   http.StatusForbidden,
	ErrCodeRateLimited: http.StatusTooManyRequests,

	ErrCodeNotFound:     http.StatusNotFound,
	ErrCodeConflict:     http.StatusConflict,
	ErrCodeInvalidState: http.StatusUnprocessableEntity,

	// Cart rejections -> 422, the request was understood but not allowed
	pos.CodeUnknownSKU:   http.StatusNotFound,
	pos.CodeOutOfStock:   http.StatusUnprocessableEntity,
	pos.CodeExceedsStock: http.StatusUnprocessableEntity,
	pos.CodeEmptyCart:    http.StatusUnprocessableEntity,

	pos.CodeInvalidPaymentMethod: http.StatusBadRequest,
	pos.CodeInvalidTaxRate:       http.StatusBadRequest,

	pos.CodeCheckoutInProgress: http.StatusConflict,
	pos.CodeDuplicateSale:      http.StatusConflict,
	// the backend refused or could not be reached
	pos.CodeSaleFailed: http.StatusBadGateway,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// LegacyErrorCodeMapping maps the shared domain error codes to the
// standardized API codes
var LegacyErrorCodeMapping = map[string]string{
	"NOT_FOUND":     ErrCodeNotFound,
	"INVALID_INPUT": ErrCodeInvalidInput,
	"INVALID_STATE": ErrCodeInvalidState,
	"BAD_REQUEST":   ErrCodeBadRequest,
}

// NormalizeErrorCode converts a legacy error code to the standardized format
// If the code is already in the new format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if newCode, ok := LegacyErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
