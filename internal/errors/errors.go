package errors

import (
	stderrors "errors"
	"fmt"
)

// Error is the domain error carried from services to the HTTP edge. It pairs a
// machine-readable code with a human-readable message so handlers can map
// failures to HTTP responses without string matching.
type Error struct {
	Code    ErrorCode
	Message string
	cause   error
}

// New creates a domain error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches an underlying cause to a domain error.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// CodeOf extracts the ErrorCode from err, or ErrCodeInternalError if err is
// not a domain error.
func CodeOf(err error) ErrorCode {
	var derr *Error
	if stderrors.As(err, &derr) {
		return derr.Code
	}
	return ErrCodeInternalError
}

// MessageOf extracts the user-facing message from err. Non-domain errors map
// to a generic message so internal details never leak to clients.
func MessageOf(err error) string {
	var derr *Error
	if stderrors.As(err, &derr) {
		return derr.Message
	}
	return "internal server error"
}
