package docstore

import "errors"

// Store errors. Backends classify native failures into exactly these; the
// coordinator and callers branch with errors.Is.
var (
	// ErrNotFound is returned when a requested document does not exist.
	// Expected on fresh IDs, not a fault.
	ErrNotFound = errors.New("document not found")

	// ErrAlreadyExists is returned by Create when the document ID is taken.
	ErrAlreadyExists = errors.New("document already exists")

	// ErrConditionFailed is returned by CompareAndPut when the guarded field
	// no longer holds the expected value. Expected under concurrency; the
	// caller re-reads and decides whether to retry.
	ErrConditionFailed = errors.New("conditional write failed")

	// ErrUnavailable indicates a transient store outage or timeout.
	// Retryable by the caller with backoff.
	ErrUnavailable = errors.New("document store unavailable")

	// ErrPermissionDenied is fatal: credentials lack access. Not retried.
	ErrPermissionDenied = errors.New("document store permission denied")

	// ErrInvalidArgument indicates a malformed document or request.
	// Fatal to the caller, not retried.
	ErrInvalidArgument = errors.New("invalid argument")
)
