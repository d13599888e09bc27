// Copyright (c) 2025 Justin Cranford

// Package gatewayerr defines the error taxonomy shared across the gateway,
// per spec.md §7, and maps it to HTTP status codes at the request boundary.
package gatewayerr

import (
	"errors"
	"fmt"
)

// Kind classifies a gateway error for boundary mapping and client response
// shaping. Never serialized directly to clients.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindUnauthenticated
	KindForbidden
	KindRateLimited
	KindNotFound
	KindConflict
	KindCorrupt
	KindResourceLimit
	KindIO
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindRateLimited:
		return "rate_limited"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindCorrupt:
		return "corrupt"
	case KindResourceLimit:
		return "resource_limit"
	case KindIO:
		return "io"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is a gateway error carrying a Kind for boundary mapping.
type Error struct {
	Kind         Kind
	Message      string
	RetryAfterMs int64
	cause        error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs a gateway error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs a gateway error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// RateLimited constructs a KindRateLimited error carrying the remaining
// lockout duration in milliseconds, for the Retry-After header.
func RateLimited(retryAfterMs int64) *Error {
	return &Error{Kind: KindRateLimited, Message: "rate limited", RetryAfterMs: retryAfterMs}
}

// KindOf extracts the Kind from err, defaulting to KindUnknown for plain
// errors so unexpected failures still map to 500 at the request boundary.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindUnknown
}
