package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers and for the HTTP layer.
type Kind string

const (
	KindValidation       Kind = "validation_error"
	KindInsufficientData Kind = "insufficient_data"
	KindUnavailable      Kind = "collaborator_unavailable"
	KindMalformed        Kind = "malformed_snapshot"
	KindNotFound         Kind = "not_found"
	KindRateLimited      Kind = "rate_limited"
)

type Error struct {
	Kind   Kind
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Status: statusFor(kind), Err: err}
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, fmt.Errorf(format, args...))
}

func InsufficientData(have, need int) *Error {
	return New(KindInsufficientData, fmt.Errorf("at least %d ratings are required for analysis, have %d", need, have))
}

func Unavailable(what string, err error) *Error {
	return New(KindUnavailable, fmt.Errorf("%s unavailable: %w", what, err))
}

func Malformed(err error) *Error {
	return New(KindMalformed, err)
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, fmt.Errorf(format, args...))
}

func RateLimited(format string, args ...any) *Error {
	return New(KindRateLimited, fmt.Errorf(format, args...))
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusOf maps err to an HTTP status; unknown errors are 500.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}

func statusFor(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindInsufficientData:
		return http.StatusUnprocessableEntity
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
