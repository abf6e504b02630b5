package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable error codes. Each code names exactly one failure kind.
const (
	CodeZeroAmount          = "VLT_001"
	CodeCapExceeded         = "VLT_002"
	CodePaused              = "VLT_003"
	CodeInsufficientBalance = "VLT_004"
	CodeReentrant           = "VLT_005"
	CodeTransferFailed      = "VLT_006"
	CodeInvalidAmount       = "VLT_007"
	CodeBalanceOverflow     = "VLT_008"

	CodeNotAuthorized = "AUTH_001"
	CodeInvalidToken  = "AUTH_002"

	CodeNonceUsed    = "SEC_001"
	CodeNonceMissing = "SEC_002"

	CodeValidation        = "REQ_001"
	CodePayloadTooLarge   = "REQ_002"
	CodeRequestInProgress = "REQ_003"
	CodeIdempotencyReuse  = "REQ_004"

	CodeInternal    = "SYS_001"
	CodeLockTimeout = "SYS_002"
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

// Is reports whether target is an AppError of the same kind.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
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

// CodeOf returns the code of the first AppError in err's chain, or "".
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// ---- Vault (VLT) ----

func ErrZeroAmount() *AppError {
	return New(CodeZeroAmount, "Amount must be greater than zero", http.StatusBadRequest)
}

func ErrCapExceeded() *AppError {
	return New(CodeCapExceeded, "Deposit exceeds the current deposit cap", http.StatusUnprocessableEntity)
}

func ErrPaused() *AppError {
	return New(CodePaused, "Deposits are paused", http.StatusServiceUnavailable)
}

func ErrInsufficientBalance() *AppError {
	return New(CodeInsufficientBalance, "Insufficient balance", http.StatusPaymentRequired)
}

func ErrReentrant() *AppError {
	return New(CodeReentrant, "Reentrant call rejected", http.StatusLocked)
}

func ErrTransferFailed(err error) *AppError {
	return Wrap(CodeTransferFailed, "Value transfer failed", http.StatusBadGateway, err)
}

func ErrInvalidAmount() *AppError {
	return New(CodeInvalidAmount, "Amount must not be negative", http.StatusBadRequest)
}

func ErrBalanceOverflow() *AppError {
	return New(CodeBalanceOverflow, "Balance would overflow", http.StatusUnprocessableEntity)
}

// ---- Authorization (AUTH) ----

func ErrNotAuthorized() *AppError {
	return New(CodeNotAuthorized, "Caller is not authorized", http.StatusForbidden)
}

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Replay protection (SEC) ----

func ErrNonceUsed() *AppError {
	return New(CodeNonceUsed, "Nonce has already been used", http.StatusForbidden)
}

func ErrNonceMissing() *AppError {
	return New(CodeNonceMissing, "X-Nonce header is required", http.StatusBadRequest)
}

// ---- System & Infrastructure (SYS) ----

func ErrLockTimeout(err error) *AppError {
	return Wrap(CodeLockTimeout, "Lock acquisition timeout", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a REQ_001 request validation error.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

func ErrPayloadTooLarge() *AppError {
	return New(CodePayloadTooLarge, "Request body too large", http.StatusRequestEntityTooLarge)
}

func ErrRequestInProgress() *AppError {
	return New(CodeRequestInProgress, "A request with this Idempotency-Key is still in progress", http.StatusConflict)
}

func ErrIdempotencyReuse() *AppError {
	return New(CodeIdempotencyReuse, "Idempotency-Key was already used with a different request body", http.StatusUnprocessableEntity)
}
