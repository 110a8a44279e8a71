package sync

import (
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/shiftsync/shiftsync/internal/credentials"
	"github.com/shiftsync/shiftsync/internal/roster"
)

// maxErrorLength caps the message persisted against a subject.
const maxErrorLength = 500

// ErrorKind classifies a sync failure. The kind decides retry behavior and
// how the scheduler counts the subject.
type ErrorKind string

// Sync error kinds.
const (
	ErrorKindCredentialsMissing ErrorKind = "credentials_missing"
	ErrorKindAuthFailure        ErrorKind = "auth_failure"
	ErrorKindConnectTimeout     ErrorKind = "connect_timeout"
	ErrorKindReadTimeout        ErrorKind = "read_timeout"
	ErrorKindConnectionRefused  ErrorKind = "connection_refused"
	ErrorKindMalformedResponse  ErrorKind = "malformed_response"
	ErrorKindPersistenceFailure ErrorKind = "persistence_failure"
	ErrorKindUnexpected         ErrorKind = "unexpected"
)

// Error is a typed sync failure. Sync never surfaces a raw error: every
// failure passes through Classify or is constructed with an explicit kind.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the worker may retry the roster fetch. Only the
// two timeout classes qualify; a refused connection means the endpoint is
// down and retrying would just burn the attempt budget.
func (e *Error) Retryable() bool {
	return e.Kind == ErrorKindConnectTimeout || e.Kind == ErrorKindReadTimeout
}

// Truncated returns the message capped to the persisted length.
func (e *Error) Truncated() string {
	msg := e.Error()
	if len(msg) > maxErrorLength {
		return msg[:maxErrorLength]
	}
	return msg
}

// newError builds an Error with the formatted message as its own text.
func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Classify maps an error from the roster client onto the sync taxonomy.
func Classify(err error) *Error {
	var syncErr *Error
	if errors.As(err, &syncErr) {
		return syncErr
	}

	switch {
	case errors.Is(err, roster.ErrAuthFailed):
		return &Error{Kind: ErrorKindAuthFailure, Message: "roster rejected credentials", Err: err}
	case errors.Is(err, roster.ErrMalformedResponse):
		return &Error{Kind: ErrorKindMalformedResponse, Message: "roster response not understood", Err: err}
	case errors.Is(err, credentials.ErrNoKey), errors.Is(err, credentials.ErrDecryptFailed):
		return &Error{Kind: ErrorKindCredentialsMissing, Message: "stored credentials unusable", Err: err}
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return &Error{Kind: ErrorKindConnectionRefused, Message: "roster endpoint unreachable", Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		var opErr *net.OpError
		if errors.As(err, &opErr) && opErr.Op == "dial" {
			return &Error{Kind: ErrorKindConnectTimeout, Message: "timed out connecting to roster", Err: err}
		}
		return &Error{Kind: ErrorKindReadTimeout, Message: "timed out reading from roster", Err: err}
	}

	return &Error{Kind: ErrorKindUnexpected, Message: "sync failed", Err: err}
}
