package indexset

import (
	"errors"
	"fmt"
)

// ErrIndexNotFound is returned when an operation names an index the Set
// doesn't have defined.
type ErrIndexNotFound struct {
	Name string
}

func (e *ErrIndexNotFound) Error() string {
	return fmt.Sprintf("indexset: index %q not defined", e.Name)
}

// ErrUniqueViolation is returned by Insert when key already has an entry in
// a unique index.
type ErrUniqueViolation struct {
	Index string
	Key   string
}

func (e *ErrUniqueViolation) Error() string {
	return fmt.Sprintf("indexset: unique violation on index %q for key %q", e.Index, e.Key)
}

// ErrUnsupportedDistinct is returned by Set.Distinct.
var ErrUnsupportedDistinct = errors.New("indexset: distinct row-set reduction is not implemented")
