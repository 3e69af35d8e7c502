package graph

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a node or edge id does not exist.
var ErrNotFound = errors.New("graph: not found")

// ValidationError describes a malformed node or edge rejected at write time.
// It is always surfaced synchronously to the caller; the store never drops a
// bad write silently.
type ValidationError struct {
	Entity string // "node" or "edge"
	ID     string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("graph: invalid %s %q: %s: %s", e.Entity, e.ID, e.Field, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
