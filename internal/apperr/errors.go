// Package apperr defines the error categories surfaced to API callers.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

// Kind is the stable category tag rendered to callers.
type Kind string

const (
	KindRateLimit          Kind = "rate_limit"
	KindServiceUnavailable Kind = "ai_service_unavailable"
	KindValidation         Kind = "validation_error"
	KindNotFound           Kind = "not_found"
	KindUnauthorized       Kind = "unauthorized"
	KindConflict           Kind = "conflict"
	KindInternal           Kind = "internal_error"
)

// Error carries a Kind, a human-readable detail and the wrapped cause.
// Err is for logs only; it is never rendered.
type Error struct {
	Kind       Kind
	Detail     string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// RateLimited is returned once generation retries are exhausted.
func RateLimited(retryAfter time.Duration, err error) *Error {
	return &Error{
		Kind:       KindRateLimit,
		Detail:     "The AI service is currently overloaded. Please wait a moment and try again.",
		RetryAfter: retryAfter,
		Err:        err,
	}
}

func ServiceUnavailable(err error) *Error {
	return &Error{
		Kind:   KindServiceUnavailable,
		Detail: "The AI service encountered an error. Please try again shortly.",
		Err:    err,
	}
}

func Validation(detail string) *Error {
	return &Error{Kind: KindValidation, Detail: detail}
}

func NotFound(detail string) *Error {
	return &Error{Kind: KindNotFound, Detail: detail}
}

func Unauthorized(detail string, err error) *Error {
	return &Error{Kind: KindUnauthorized, Detail: detail, Err: err}
}

func Conflict(detail string) *Error {
	return &Error{Kind: KindConflict, Detail: detail}
}

func Internal(err error) *Error {
	return &Error{
		Kind:   KindInternal,
		Detail: "An unexpected server error occurred. Please try again.",
		Err:    err,
	}
}

// KindOf reports the category of err; anything untagged is internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As unwraps err into an *Error, tagging untagged errors as internal.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}
