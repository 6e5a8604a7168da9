// Package apperr defines the error taxonomy shared by the coordinators and
// the HTTP layer. Expected outcomes (bad input, missing resources, duplicate
// issuance) are distinguished from genuine failures so that handlers can map
// them to status codes without string matching, and so that collaborator
// failures are never silently swallowed.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the HTTP boundary.
type Kind int

const (
	// Internal is an unexpected collaborator failure. Logged with full
	// context, surfaced to the caller as a generic 500.
	Internal Kind = iota

	// BadRequest covers malformed input, failed cryptographic verification,
	// and references to missing resources. Never retried automatically.
	BadRequest

	// NotFound is a missing participation or user.
	NotFound

	// Conflict is a duplicate issuance or payout replay, detected by the
	// storage-level uniqueness constraint on the ledger tag.
	Conflict

	// Fatal means the process cannot serve traffic (ledger replay failure,
	// storage unreachable at startup).
	Fatal
)

// Error carries a kind, a caller-visible message, and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the kind from err, defaulting to Internal for errors that
// did not originate in this taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Message returns the caller-visible message for err. Internal errors get a
// generic message so no internal state leaks to the caller.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != Internal && e.Kind != Fatal {
		return e.Msg
	}
	return "Internal Server Error"
}

// Status maps an error to its HTTP status code. Conflict is reported as 400
// like the other rejected-request outcomes; the distinct kind is kept so
// tests and logs can tell a duplicate issuance from a malformed request.
func Status(err error) int {
	switch KindOf(err) {
	case BadRequest, Conflict:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
