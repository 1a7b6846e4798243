package txn

import (
	"errors"
	"fmt"
)

// ErrTableNotVisible is returned when an operation names a table absent
// from the transaction's visible-table map.
type ErrTableNotVisible struct {
	Name string
}

func (e *ErrTableNotVisible) Error() string {
	return fmt.Sprintf("txn: table %q is not visible in this transaction", e.Name)
}

// ErrReadOnly is returned by GetMutableTable once the transaction's
// read-only flag has been set.
var ErrReadOnly = errors.New("txn: transaction is read-only")

// ErrNotOpen is returned by GetMutableTable once the transaction has left
// the Open state.
type ErrNotOpen struct {
	Status Status
}

func (e *ErrNotOpen) Error() string {
	return fmt.Sprintf("txn: transaction is not open (status=%d)", e.Status)
}
