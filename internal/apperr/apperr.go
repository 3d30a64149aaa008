// Package apperr defines the error kinds returned by the service layer and
// their mapping to HTTP status codes.
package apperr

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Kind classifies a service error.
type Kind int

// Kind constants mirror the client-visible failure classes.
const (
	// KindUnexpected is any unhandled failure. Its detail is never shown to callers.
	KindUnexpected Kind = iota
	// KindValidation marks malformed or missing input.
	KindValidation
	// KindConflict marks a unique-constraint violation such as a duplicate email.
	KindConflict
	// KindAuth marks missing or invalid credentials or tokens.
	KindAuth
	// KindNotFound marks a missing or not-owned resource.
	KindNotFound
	// KindInsufficientBalance marks a debit larger than the balance.
	KindInsufficientBalance
	// KindConfiguration marks a missing secret or other server misconfiguration.
	KindConfiguration
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindInsufficientBalance:
		return "insufficient_balance"
	case KindConfiguration:
		return "configuration"
	default:
		return "unexpected"
	}
}

// HTTPStatus maps the kind to a response status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation, KindInsufficientBalance:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// FieldError describes one invalid input field.
type FieldError struct {
	Field    string   `json:"field"`
	Messages []string `json:"messages"`
}

// Error is a classified service error.
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
}

// Error implements error.
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind and message, so sentinel values work with errors.Is.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind && e.Message == other.Message
}

// New builds an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an error of the given kind around a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation builds a validation error with optional field details.
func Validation(message string, fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// Unexpected wraps an unhandled failure.
func Unexpected(message string, err error) *Error {
	return Wrap(KindUnexpected, message, err)
}

// KindOf returns the kind of err, defaulting to KindUnexpected.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnexpected
}

// FromValidator converts validator output into a validation error listing each field.
func FromValidator(err error) *Error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return Validation("Invalid request body")
	}
	fields := make([]FieldError, 0, len(validationErrs))
	for _, fe := range validationErrs {
		fields = append(fields, FieldError{Field: fieldName(fe), Messages: []string{describe(fe)}})
	}
	return Validation("Invalid request body", fields...)
}

// fieldName returns the dotted field path without the root struct name.
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		ns = ns[idx+1:]
	}
	if ns == "" {
		return fe.Field()
	}
	return ns
}

// describe renders a human readable message for one failed rule.
func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return fe.Field() + " must be at least " + fe.Param()
	case "max":
		return fe.Field() + " must be at most " + fe.Param()
	case "len":
		return fe.Field() + " must be exactly " + fe.Param() + " characters"
	case "gt":
		return fe.Field() + " must be greater than " + fe.Param()
	case "gte":
		return fe.Field() + " must be greater than or equal to " + fe.Param()
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	case "alphanum", "uppercase":
		return fe.Field() + " has an invalid format"
	default:
		return fe.Field() + " is invalid"
	}
}
