// Package errors provides domain-coded errors shared by y12d and y12ctl.
// Each error carries the HTTP status the API layer answers with.
package errors

import (
	"errors"
	"fmt"
)

// Code identifies an error within its domain
type Code string

// Domain groups related errors
type Domain string

const (
	DomainJob        Domain = "job"
	DomainArtifact   Domain = "artifact"
	DomainStorage    Domain = "storage"
	DomainDatabase   Domain = "database"
	DomainValidation Domain = "validation"
	DomainAuth       Domain = "auth"
	DomainDispatch   Domain = "dispatch"
	DomainInternal   Domain = "internal"
)

// Error is a structured error with a domain, a code and an HTTP status
type Error struct {
	Domain     Domain `json:"domain"`
	Code       Code   `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches on domain and code so copies made by WithMessage still match
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Domain == t.Domain && e.Code == t.Code
}

func (e *Error) clone() *Error {
	c := *e
	return &c
}

// WithCause returns a copy of e wrapping cause
func (e *Error) WithCause(cause error) *Error {
	c := e.clone()
	c.cause = cause
	return c
}

// WithMessage returns a copy of e with another message
func (e *Error) WithMessage(message string) *Error {
	c := e.clone()
	c.Message = message
	return c
}

// WithMessagef is WithMessage with formatting
func (e *Error) WithMessagef(format string, args ...any) *Error {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// New creates an Error
func New(domain Domain, code Code, httpStatus int, message string) *Error {
	return &Error{Domain: domain, Code: code, Message: message, HTTPStatus: httpStatus}
}

// Wrap creates an Error around err
func Wrap(err error, domain Domain, code Code, httpStatus int, message string) *Error {
	return &Error{Domain: domain, Code: code, Message: message, HTTPStatus: httpStatus, cause: err}
}

// GetHTTPStatus returns the status carried by err, or 500
func GetHTTPStatus(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus
	}
	return 500
}

// GetCode returns the code carried by err, or ""
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is delegates to the standard library
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As delegates to the standard library
func As(err error, target any) bool {
	return errors.As(err, target)
}
