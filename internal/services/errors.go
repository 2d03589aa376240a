package services

import (
	"fmt"
	"net/http"
)

// Error names carried in the error envelope.
const (
	NameValidation     = "ValidationError"
	NameAuthentication = "AuthenticationError"
	NameNotFound       = "NotFoundError"
	NameInternal       = "InternalServerError"
)

// Error is a failure with a user-facing message and the HTTP status the
// transport should answer with.
type Error struct {
	Status  int
	Name    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Name, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ValidationError reports malformed, missing or conflicting input (400).
func ValidationError(message string, err error) *Error {
	return &Error{Status: http.StatusBadRequest, Name: NameValidation, Message: message, Err: err}
}

// AuthenticationError reports a credential mismatch. It is answered with
// 400, not 401.
func AuthenticationError(message string) *Error {
	return &Error{Status: http.StatusBadRequest, Name: NameAuthentication, Message: message}
}

// NotFoundError reports a missing user (404).
func NotFoundError(message string, err error) *Error {
	return &Error{Status: http.StatusNotFound, Name: NameNotFound, Message: message, Err: err}
}

// InternalError wraps an unexpected failure (500).
func InternalError(err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Name: NameInternal, Message: msgInternal, Err: err}
}
