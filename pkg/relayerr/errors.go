// Package relayerr defines the relay's error kinds and how they propagate
// to HTTP status codes and delivery retry decisions.
package relayerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a coarse error classification, not a concrete type name. Callers
// branch on Kind via Is/As, never on error string contents.
type Kind string

const (
	SignatureInvalid  Kind = "signature_invalid"
	DigestMismatch    Kind = "digest_mismatch"
	Unauthorized      Kind = "unauthorized"
	Forbidden         Kind = "forbidden"
	MalformedActivity Kind = "malformed_activity"
	ActorUnavailable  Kind = "actor_unavailable"
	StoreCorrupt      Kind = "store_corrupt"
	StoreTransient    Kind = "store_transient"
	NetworkTransient  Kind = "network_transient"
	NetworkPermanent  Kind = "network_permanent"
	JobTimeout        Kind = "job_timeout"
	ConfigInvalid     Kind = "config_invalid"
	BodyTooLarge      Kind = "body_too_large"
)

// Error wraps an underlying cause with a Kind.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs a *Error of the given kind.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// Newf constructs a *Error of the given kind with a formatted cause.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Cause: fmt.Errorf(format, args...)}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, returning "" if err is not a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HTTPStatus maps an inbox-pipeline error Kind to the response status the
// handler should send. Unknown kinds and the two fatal kinds
// (StoreCorrupt, ConfigInvalid) map to 500 - they are never supposed to be
// recovered into a client-facing response in the first place.
func HTTPStatus(kind Kind) int {
	switch kind {
	case SignatureInvalid, DigestMismatch:
		return http.StatusUnauthorized
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case MalformedActivity:
		return http.StatusBadRequest
	case BodyTooLarge:
		return http.StatusRequestEntityTooLarge
	case ActorUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether a delivery failure of this Kind should be
// retried by the Job Engine rather than treated as terminal.
func Retryable(kind Kind) bool {
	switch kind {
	case NetworkTransient, StoreTransient, JobTimeout:
		return true
	default:
		return false
	}
}
