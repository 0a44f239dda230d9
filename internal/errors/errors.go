// Package errors provides standardized domain errors with codes for the tagvault server.
//
// Usage:
//
//	// In services - return typed errors
//	if tooSoon {
//	    return errors.RateLimited("repository was checked recently")
//	}
//
//	// In callers - check with errors.Is
//	if errors.Is(err, errors.ErrRateLimited) {
//	    ...
//	}
//
//	// Or inspect the Code directly
//	var domainErr *errors.Error
//	if errors.As(err, &domainErr) && domainErr.Code == errors.CodeSourceUnavailable {
//	    ...
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
	New    = errors.New
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	CodeNotFound          Code = "NOT_FOUND"
	CodeAlreadyExists     Code = "ALREADY_EXISTS"
	CodeValidation        Code = "VALIDATION"
	CodeInternal          Code = "INTERNAL"
	CodeSourceUnavailable Code = "SOURCE_UNAVAILABLE"
	CodeRepositoryCorrupt Code = "REPOSITORY_CORRUPT"
	CodeMalformedDocument Code = "MALFORMED_TAG_DOCUMENT"
	CodeFileMissing       Code = "FILE_MISSING"
	CodeDuplicateTagName  Code = "DUPLICATE_TAG_NAME"
	CodeRateLimited       Code = "RATE_LIMITED"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound, CodeFileMissing:
		return http.StatusNotFound
	case CodeAlreadyExists, CodeDuplicateTagName:
		return http.StatusConflict
	case CodeValidation, CodeMalformedDocument:
		return http.StatusBadRequest
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeSourceUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the condition behind the code is transient.
// A retryable sync failure is re-attempted on the next scheduled tick.
func (c Code) Retryable() bool {
	switch c {
	case CodeSourceUnavailable, CodeRateLimited, CodeInternal:
		return true
	default:
		return false
	}
}

// Error is a domain error with a code, message, and optional underlying cause.
// Details carries per-field messages for validation failures.
type Error struct {
	Code    Code              `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is matching against the sentinel for the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithCause returns a copy of the error wrapping an underlying cause.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: e.Details, Err: err}
}

// Sentinels for errors.Is checks. Constructors below carry specific messages.
var (
	ErrNotFound          = &Error{Code: CodeNotFound, Message: "not found"}
	ErrAlreadyExists     = &Error{Code: CodeAlreadyExists, Message: "already exists"}
	ErrValidation        = &Error{Code: CodeValidation, Message: "validation failed"}
	ErrSourceUnavailable = &Error{Code: CodeSourceUnavailable, Message: "source unavailable"}
	ErrRepositoryCorrupt = &Error{Code: CodeRepositoryCorrupt, Message: "repository corrupt"}
	ErrMalformedDocument = &Error{Code: CodeMalformedDocument, Message: "malformed tag document"}
	ErrFileMissing       = &Error{Code: CodeFileMissing, Message: "file missing"}
	ErrDuplicateTagName  = &Error{Code: CodeDuplicateTagName, Message: "duplicate tag name"}
	ErrRateLimited       = &Error{Code: CodeRateLimited, Message: "rate limited"}
)

// NotFound creates a NOT_FOUND error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// AlreadyExists creates an ALREADY_EXISTS error.
func AlreadyExists(msg string) *Error {
	return &Error{Code: CodeAlreadyExists, Message: msg}
}

// Validation creates a VALIDATION error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// ValidationWithDetails creates a VALIDATION error carrying per-field messages.
func ValidationWithDetails(msg string, details map[string]string) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Internal creates an INTERNAL error wrapping a cause.
func Internal(msg string, err error) *Error {
	return &Error{Code: CodeInternal, Message: msg, Err: err}
}

// SourceUnavailable creates a SOURCE_UNAVAILABLE error wrapping a cause.
func SourceUnavailable(msg string, err error) *Error {
	return &Error{Code: CodeSourceUnavailable, Message: msg, Err: err}
}

// RepositoryCorrupt creates a REPOSITORY_CORRUPT error wrapping a cause.
func RepositoryCorrupt(msg string, err error) *Error {
	return &Error{Code: CodeRepositoryCorrupt, Message: msg, Err: err}
}

// MalformedDocument creates a MALFORMED_TAG_DOCUMENT error naming the offending field.
func MalformedDocument(field string) *Error {
	return &Error{Code: CodeMalformedDocument, Message: fmt.Sprintf("missing or empty required field %q", field)}
}

// FileMissing creates a FILE_MISSING error for the given path.
func FileMissing(path string) *Error {
	return &Error{Code: CodeFileMissing, Message: fmt.Sprintf("file %q does not exist at this revision", path)}
}

// DuplicateTagName creates a DUPLICATE_TAG_NAME error for the given name.
func DuplicateTagName(name string) *Error {
	return &Error{Code: CodeDuplicateTagName, Message: fmt.Sprintf("tag name %q is already claimed by another document", name)}
}

// RateLimited creates a RATE_LIMITED error.
func RateLimited(msg string) *Error {
	return &Error{Code: CodeRateLimited, Message: msg}
}
