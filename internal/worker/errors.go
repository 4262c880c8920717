package worker

import "fmt"

type ErrorCode string

const (
	ErrorMissingParams ErrorCode = "missing_params"
	ErrorNotFound      ErrorCode = "not_found"
	ErrorLookup        ErrorCode = "lookup_error"
	ErrorUnavailable   ErrorCode = "service_unavailable"
	ErrorGeneration    ErrorCode = "generation_error"
)

// Error is a capability failure. Message is safe to show to the user.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("worker: %s (%s)", e.Code, e.Message)
	}
	return fmt.Sprintf("worker: %s (%s): %v", e.Code, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func unavailableResult() Result {
	return Result{Message: UnavailableMessage, ErrorCode: ErrorUnavailable}
}
