package fsindex

import (
	"fmt"
	"time"
)

// ErrorType names one of the error kinds in the taxonomy (spec.md §7).
type ErrorType string

const (
	// ErrInvalidRoot: path missing or not a directory.
	ErrInvalidRoot ErrorType = "invalid_root"
	// ErrSessionBusy: an indexing session is already live against this index.
	ErrSessionBusy ErrorType = "session_busy"
	// ErrReadMetadata: per-entry metadata read failed; recovered by skip.
	ErrReadMetadata ErrorType = "read_metadata_failure"
	// ErrReadContent: per-file content read failed; content field omitted.
	ErrReadContent ErrorType = "read_content_failure"
	// ErrWriteAppend: per-document append failed; only that document is
	// skipped, the rest of the batch is still indexed, and the append is not
	// retried.
	ErrWriteAppend ErrorType = "write_append_failure"
	// ErrCommit: batch-level commit failed; retried, fatal on exhaustion.
	ErrCommit ErrorType = "commit_failure"
	// ErrCleanupTimeout: cleanup exceeded CLEANUP_TIMEOUT; non-fatal.
	ErrCleanupTimeout ErrorType = "cleanup_timeout"
	// ErrBadQuery: user-facing query parser error.
	ErrBadQuery ErrorType = "bad_query"
	// ErrNoIndex: no reader available for the on-disk index.
	ErrNoIndex ErrorType = "no_index"
)

// Error is the concrete error type carried through the pipeline and
// surfaced on progress/error events: a type enum plus operation, path,
// underlying cause, timestamp, and a recoverable flag distinguishing
// per-document failures from fatal ones.
type Error struct {
	Type        ErrorType
	Path        string
	Operation   string
	Underlying  error
	Timestamp   time.Time
	Recoverable bool
}

// NewError creates an Error of the given type wrapping err.
func NewError(t ErrorType, op string, err error) *Error {
	return &Error{Type: t, Operation: op, Underlying: err, Timestamp: time.Now()}
}

// WithPath attaches a file path to the error for context.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// WithRecoverable marks whether the error was handled by skip/retry.
func (e *Error) WithRecoverable(recoverable bool) *Error {
	e.Recoverable = recoverable
	return e
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s failed for %s: %v", e.Type, e.Operation, e.Path, e.Underlying)
	}
	return fmt.Sprintf("%s: %s failed: %v", e.Type, e.Operation, e.Underlying)
}

// Unwrap supports errors.Is/As against the underlying cause.
func (e *Error) Unwrap() error {
	return e.Underlying
}

// IsRecoverable reports whether the failure was handled without aborting
// the session (per-entry/per-document skip, or a successful retry).
func (e *Error) IsRecoverable() bool {
	return e.Recoverable
}
