// Package errors provides the error types used across the fund engine.
// Every failure a component can produce is an *AppError with a stable code,
// so callers can branch on Code without string matching, and the HTTP layer
// can translate errors without leaking internals.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Validation errors. Surfaced synchronously; state is never partially applied.
var (
	ErrInvalidInput    = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrInvalidCode     = &AppError{Code: "INVALID_CODE", Message: "Fund code must be exactly 6 digits", StatusCode: http.StatusBadRequest}
	ErrDuplicateCode   = &AppError{Code: "DUPLICATE_HOLDING", Message: "This fund is already in the holdings list", StatusCode: http.StatusConflict}
	ErrNegativeShares  = &AppError{Code: "NEGATIVE_SHARES", Message: "Shares cannot be negative", StatusCode: http.StatusBadRequest}
	ErrHoldingNotFound = &AppError{Code: "HOLDING_NOT_FOUND", Message: "Holding not found", StatusCode: http.StatusNotFound}
)

// Quote fetch errors. Recoverable; cached valuations stay untouched.
var (
	ErrFetchFailed  = &AppError{Code: "FETCH_FAILED", Message: "Failed to fetch fund valuations", StatusCode: http.StatusBadGateway}
	ErrFundNotFound = &AppError{Code: "FUND_NOT_FOUND", Message: "Fund code is unknown or has no data", StatusCode: http.StatusNotFound}
)

// Screenshot recognition errors. Recoverable; holdings stay untouched.
var (
	ErrRecognitionFailed = &AppError{Code: "RECOGNITION_FAILED", Message: "Failed to recognize funds from screenshot", StatusCode: http.StatusBadGateway}
)

// Persistence errors. Recoverable; in-memory state remains authoritative.
var (
	ErrPersistenceFailed = &AppError{Code: "PERSISTENCE_FAILED", Message: "Failed to save data to the durable store", StatusCode: http.StatusBadGateway}
	ErrLoadFailed        = &AppError{Code: "LOAD_FAILED", Message: "Failed to load saved data", StatusCode: http.StatusBadGateway}
)

// General errors.
var (
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)
