package usecase

import "fmt"

type ErrorCode string

const (
	ErrorInvalidInput         ErrorCode = "INVALID_INPUT"
	ErrorUnauthenticated      ErrorCode = "UNAUTHENTICATED"
	ErrorAuthFailed           ErrorCode = "AUTH_FAILED"
	ErrorConflict             ErrorCode = "CONFLICT"
	ErrorBusy                 ErrorCode = "BUSY"
	ErrorConfirmationRequired ErrorCode = "CONFIRMATION_REQUIRED"
	ErrorInternal             ErrorCode = "INTERNAL_ERROR"
)

// Error carries a machine code, a log-friendly reason and, where the user
// should see something, a display message.
type Error struct {
	Code    ErrorCode
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

func newUserError(code ErrorCode, reason, message string, err error) *Error {
	return &Error{Code: code, Reason: reason, Message: message, Err: err}
}
