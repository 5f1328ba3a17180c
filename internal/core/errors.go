package core

import "errors"

// Error taxonomy surfaced to callers. Services wrap these with context via
// fmt.Errorf("...: %w", err); the HTTP layer maps them with errors.Is.
var (
	// ErrNotFound covers both missing records and records owned by another
	// user, so existence is never leaked across accounts.
	ErrNotFound = errors.New("not found")

	// ErrConflict signals a lifecycle transition that is not allowed from
	// the instance's current status.
	ErrConflict = errors.New("conflict")

	// ErrValidation signals a malformed definition, rejected before any write.
	ErrValidation = errors.New("validation failed")
)
