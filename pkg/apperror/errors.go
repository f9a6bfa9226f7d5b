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

// ---- Alpaca lookup (ALP) ----

func ErrAlpacaNotFound(id int64) *AppError {
	return New("ALP_001", fmt.Sprintf("alpaca %d not found", id), http.StatusNotFound)
}

// ---- Bidding (BID) ----

func ErrBidTooLow(amount, currentValue int64) *AppError {
	return New("BID_001",
		fmt.Sprintf("bid amount %d must be greater than current value %d", amount, currentValue),
		http.StatusBadRequest)
}

func ErrCooldownLocked(remainingSeconds int64) *AppError {
	return New("BID_002",
		fmt.Sprintf("alpaca is locked, cooldown active for another %d seconds", remainingSeconds),
		http.StatusLocked)
}

func ErrBidAboveCap(maxAmount int64) *AppError {
	return New("BID_003",
		fmt.Sprintf("bid amount exceeds the maximum of %d", maxAmount),
		http.StatusBadRequest)
}

func ErrPaymentNotVerified() *AppError {
	return New("BID_004", "payment could not be verified", http.StatusPaymentRequired)
}

func ErrBidInProgress() *AppError {
	return New("BID_005", "another bid on this alpaca is in progress", http.StatusConflict)
}

// ---- Security (SEC) ----

// ErrForbidden is deliberately generic: it never reveals whether a secret
// was missing or wrong.
func ErrForbidden() *AppError {
	return New("SEC_001", "access denied", http.StatusForbidden)
}

func ErrInvalidCredentials() *AppError {
	return New("SEC_002", "invalid credentials", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("SEC_003", "invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "rate limit exceeded", http.StatusTooManyRequests)
}

// ---- Validation (VAL) ----

// Validation returns a request-shape error surfaced before any entity or
// storage access.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an infrastructure fault. These are not business errors
// and are never retried by the core.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "internal server error", http.StatusInternalServerError, err)
}
