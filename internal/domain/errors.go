package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks a malformed input record. Reported per record,
	// never fatal to a batch.
	ErrValidation = errors.New("invalid record")

	// ErrNotFound marks a positional delete or lookup that references a
	// position or id not present in the collection set.
	ErrNotFound = errors.New("not found")

	// ErrModelUnavailable marks an embedding variant that failed to
	// initialize and is excluded from the active set.
	ErrModelUnavailable = errors.New("embedding model unavailable")
)

// ConsistencyError reports a multi-variant write that could not be fully
// compensated: the listed variants may still hold the record. This must
// never pass silently.
type ConsistencyError struct {
	ID       string
	Variants []string
	Err      error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("collections inconsistent for id %s (variants: %s): %v",
		e.ID, strings.Join(e.Variants, ", "), e.Err)
}

func (e *ConsistencyError) Unwrap() error {
	return e.Err
}
