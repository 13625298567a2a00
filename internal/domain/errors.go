package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies an expected failure.
type ErrorCode string

const (
	CodeValidation   ErrorCode = "VALIDATION_ERROR"
	CodeNotFound     ErrorCode = "NOT_FOUND"
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"
	CodeForbidden    ErrorCode = "FORBIDDEN"
	CodeInternal     ErrorCode = "INTERNAL_SERVER_ERROR"
)

// Error is the failure half of a Result. Every expected failure in the
// application is returned as an *Error; anything else is treated as internal.
type Error struct {
	Code     ErrorCode         `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches on code so that errors.Is(err, ErrNotFound) works for any
// NOT_FOUND failure regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMetadata returns a copy of e carrying an extra metadata entry.
func (e *Error) WithMetadata(key, value string) *Error {
	md := make(map[string]string, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		md[k] = v
	}
	md[key] = value
	return &Error{Code: e.Code, Message: e.Message, Metadata: md}
}

// Sentinels for errors.Is comparisons.
var (
	ErrValidation   = &Error{Code: CodeValidation}
	ErrNotFound     = &Error{Code: CodeNotFound}
	ErrUnauthorized = &Error{Code: CodeUnauthorized}
	ErrForbidden    = &Error{Code: CodeForbidden}
	ErrInternal     = &Error{Code: CodeInternal}
)

func Validation(message string) *Error {
	return &Error{Code: CodeValidation, Message: message}
}

// NotFound reports a missing entity, e.g. NotFound("BlogPost", 7).
func NotFound(resource string, id any) *Error {
	return &Error{
		Code:     CodeNotFound,
		Message:  fmt.Sprintf("%s with ID %v was not found.", resource, id),
		Metadata: map[string]string{"resource": resource, "id": fmt.Sprint(id)},
	}
}

func Unauthorized(message string) *Error {
	return &Error{Code: CodeUnauthorized, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Code: CodeForbidden, Message: message}
}

func Internal(message string) *Error {
	return &Error{Code: CodeInternal, Message: message}
}

const genericInternalMessage = "An unexpected error occurred"

// AsError converts err into an *Error. Errors that are not already domain
// errors become INTERNAL_SERVER_ERROR with a generic message so that driver
// details never reach a response.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return Internal(genericInternalMessage)
}

// CodeOf returns the code of err, or empty for nil.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return AsError(err).Code
}
