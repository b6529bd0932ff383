package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Event Verification (VER) ----
// Terminal for the delivery attempt: the processor gets a 4xx and decides
// whether to redeliver.

func ErrMissingSignature() *AppError {
	return New("VER_001", "Missing or malformed signature header", http.StatusBadRequest)
}

func ErrInvalidSignature() *AppError {
	return New("VER_002", "Invalid signature", http.StatusBadRequest)
}

func ErrTimestampOutsideWindow() *AppError {
	return New("VER_003", "Event timestamp outside allowed window", http.StatusBadRequest)
}

func ErrMalformedPayload(err error) *AppError {
	return Wrap("VER_004", "Malformed event payload", http.StatusBadRequest, err)
}

// ---- Read API Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Wallet & Ledger (WAL) ----

func ErrNotFound(entity string) *AppError {
	return New("WAL_001", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func Validation(message string) *AppError {
	return New("WAL_002", message, http.StatusBadRequest)
}

// ---- System & Infrastructure (SYS) ----
// Retryable: the processor redelivers on non-2xx.

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrBalanceContention(err error) *AppError {
	return Wrap("SYS_002", "Wallet balance contention, retry", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
