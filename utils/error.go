package utils

import (
	"errors"
	"net/http"
)

// ErrorKind is the machine-checkable classification surfaced next to the
// user-facing message.
type ErrorKind string

const (
	ErrorKindConflict     ErrorKind = "Conflict"
	ErrorKindNotFound     ErrorKind = "NotFound"
	ErrorKindUnauthorized ErrorKind = "Unauthorized"
	ErrorKindValidation   ErrorKind = "Validation"
	ErrorKindInternal     ErrorKind = "Internal"
)

type ApiError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	// Code is an optional stable identifier clients can branch on without
	// parsing the localized message.
	Code string `json:"code,omitempty"`
}

func (e *ApiError) Error() string { return e.Message }

func (e *ApiError) WithCode(code string) *ApiError {
	e.Code = code
	return e
}

func NewConflictError(message string) *ApiError {
	return &ApiError{Kind: ErrorKindConflict, Message: message}
}

func NewNotFoundError(message string) *ApiError {
	return &ApiError{Kind: ErrorKindNotFound, Message: message}
}

func NewUnauthorizedError(message string) *ApiError {
	return &ApiError{Kind: ErrorKindUnauthorized, Message: message}
}

func NewValidationError(message string) *ApiError {
	return &ApiError{Kind: ErrorKindValidation, Message: message}
}

// ErrorPanic aborts startup paths where continuing makes no sense, such as
// schema migration failures.
func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}

// HttpStatus maps an error to the response code the handlers should use.
// Conflict maps to 400 rather than 409 to keep the wire contract the
// clients already rely on.
func HttpStatus(err error) int {
	var apiErr *ApiError
	if !errors.As(err, &apiErr) {
		return http.StatusInternalServerError
	}
	switch apiErr.Kind {
	case ErrorKindConflict, ErrorKindValidation:
		return http.StatusBadRequest
	case ErrorKindNotFound:
		return http.StatusNotFound
	case ErrorKindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
