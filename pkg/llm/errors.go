package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind classifies provider failures for the orchestration layer.
type ErrorKind string

const (
	ErrKindUnreachable ErrorKind = "unreachable"  // network / DNS / connect failures
	ErrKindAuth        ErrorKind = "auth"         // rejected credentials
	ErrKindBadResponse ErrorKind = "bad_response" // malformed or unexpected payload
	ErrKindTimeout     ErrorKind = "timeout"      // deadline exceeded
)

// Error wraps a provider failure with its classification. Providers report
// these upward without retry; retry policy lives in the orchestrator.
type Error struct {
	Kind     ErrorKind
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s provider %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a classified provider error.
func NewError(provider string, kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Provider: provider, Err: err}
}

// ClassifyTransport maps a transport-level error (http.Client.Do failure)
// to unreachable or timeout.
func ClassifyTransport(provider string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(provider, ErrKindTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewError(provider, ErrKindTimeout, err)
	}
	return NewError(provider, ErrKindUnreachable, err)
}

// ClassifyStatus maps a non-2xx HTTP status to an error kind.
func ClassifyStatus(provider string, status int, body string) *Error {
	err := fmt.Errorf("status %d: %s", status, body)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewError(provider, ErrKindAuth, err)
	case status == http.StatusBadGateway || status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout:
		return NewError(provider, ErrKindUnreachable, err)
	default:
		return NewError(provider, ErrKindBadResponse, err)
	}
}

// KindOf extracts the classification from an error chain; empty when the
// error did not originate in a provider.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsTransient reports whether the failure is worth a single orchestrator retry.
func IsTransient(err error) bool {
	k := KindOf(err)
	return k == ErrKindUnreachable || k == ErrKindTimeout
}
