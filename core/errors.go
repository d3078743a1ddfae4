package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure surfaced across the client boundary.
// The kind is the programmatic contract; Message carries the engine's
// human-readable description verbatim.
type ErrorKind int

const (
	// KindConfiguration indicates client construction was rejected:
	// missing API key, non-positive sizing parameters, or credentials the
	// backend refused.
	KindConfiguration ErrorKind = iota + 1

	// KindInvalidHandle indicates an operation referenced a handle that was
	// never allocated, was already destroyed, or belongs to a different
	// resource kind.
	KindInvalidHandle

	// KindRequest indicates a dispatch failed (no candidate nodes, every
	// candidate errored, payload rejected) or a response accessor was used
	// against the response's delivery mode.
	KindRequest

	// KindStream indicates a streaming read failed mid-stream. Exhaustion
	// of a stream is a success outcome, never a stream error.
	KindStream

	// KindInternal indicates a broken invariant inside the engine, such as
	// a success result carrying no data. Callers should treat it as a bug
	// to report, not a condition to retry.
	KindInternal
)

// String returns the lower-case name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindInvalidHandle:
		return "invalid handle"
	case KindRequest:
		return "request"
	case KindStream:
		return "stream"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Sentinel classifiers for use with errors.Is. Each one matches every *Error
// of its kind regardless of message, so callers branch on failure class
// without string comparison.
var (
	ErrConfiguration = errors.New("confsec: configuration error")
	ErrInvalidHandle = errors.New("confsec: invalid handle")
	ErrRequest       = errors.New("confsec: request failed")
	ErrStream        = errors.New("confsec: stream failed")
	ErrInternal      = errors.New("confsec: internal error")
)

// Error is the structured failure type returned by every boundary operation.
// Message is propagated verbatim to callers; Kind drives programmatic
// handling; Err optionally retains the underlying cause for errors.As.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality against the sentinel classifiers so that
// errors.Is(err, core.ErrInvalidHandle) matches any invalid handle failure.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrConfiguration:
		return e.Kind == KindConfiguration
	case ErrInvalidHandle:
		return e.Kind == KindInvalidHandle
	case ErrRequest:
		return e.Kind == KindRequest
	case ErrStream:
		return e.Kind == KindStream
	case ErrInternal:
		return e.Kind == KindInternal
	default:
		return false
	}
}

// NewError builds an Error of the given kind with a verbatim message.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf builds an Error with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds an Error that retains cause for unwrapping. The rendered
// message is "message: cause".
func WrapError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf extracts the ErrorKind carried by err, or zero when err carries none.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}

// IsConfiguration reports whether err is classified as a configuration failure.
func IsConfiguration(err error) bool { return errors.Is(err, ErrConfiguration) }

// IsInvalidHandle reports whether err is classified as an invalid handle failure.
func IsInvalidHandle(err error) bool { return errors.Is(err, ErrInvalidHandle) }

// IsRequest reports whether err is classified as a request failure.
func IsRequest(err error) bool { return errors.Is(err, ErrRequest) }

// IsStream reports whether err is classified as a mid-stream failure.
func IsStream(err error) bool { return errors.Is(err, ErrStream) }

// IsInternal reports whether err is classified as an engine contract violation.
func IsInternal(err error) bool { return errors.Is(err, ErrInternal) }
