package commit

import (
	"fmt"

	"github.com/kasuganosora/relcore/internal/errcode"
)

// ErrDirtySelect is stage (i)'s rejection: error_on_dirty_select is
// enabled and a read table has concurrent commits since this
// transaction's snapshot.
type ErrDirtySelect struct {
	Table string
}

func (e *ErrDirtySelect) Error() string {
	return fmt.Sprintf("commit: dirty select on table %q", e.Table)
}

// Code implements errcode.Coder.
func (e *ErrDirtySelect) Code() errcode.Code { return errcode.DirtySelect }

// ErrNamespaceConflict is stage (ii)'s rejection: this transaction's
// created/dropped object name collides with a concurrent commit's.
type ErrNamespaceConflict struct {
	Name string
	Kind string // "created" or "dropped"
}

func (e *ErrNamespaceConflict) Error() string {
	return fmt.Sprintf("commit: namespace conflict, object %q already %s by a concurrent commit", e.Name, e.Kind)
}

// Code implements errcode.Coder.
func (e *ErrNamespaceConflict) Code() errcode.Code { return errcode.NamespaceConflict }

// ErrRowConflict is stage (iii)'s rejection: a row this transaction
// touched clashes with a concurrent commit's registry on the same table.
type ErrRowConflict struct {
	Table string
	Row   int64
}

func (e *ErrRowConflict) Error() string {
	return fmt.Sprintf("commit: row conflict on table %q, row %d", e.Table, e.Row)
}

// Code implements errcode.Coder.
func (e *ErrRowConflict) Code() errcode.Code { return errcode.RowConflict }

// ErrNonCommittedConflict is stage (iii)'s rejection when a touched table
// was dropped by a commit concurrent with this transaction.
type ErrNonCommittedConflict struct {
	Table string
}

func (e *ErrNonCommittedConflict) Error() string {
	return fmt.Sprintf("commit: table %q was dropped by a concurrent commit", e.Table)
}

// Code implements errcode.Coder. Closest fit: this is a row-visibility
// conflict surfaced at table granularity, not a distinct wire category.
func (e *ErrNonCommittedConflict) Code() errcode.Code { return errcode.RowConflict }

// ErrDroppedModifiedConflict is stage (iv)'s rejection: this transaction
// dropped a table that a concurrent commit also modified.
type ErrDroppedModifiedConflict struct {
	Table string
}

func (e *ErrDroppedModifiedConflict) Error() string {
	return fmt.Sprintf("commit: table %q was modified by a concurrent commit after being dropped here", e.Table)
}

// Code implements errcode.Coder.
func (e *ErrDroppedModifiedConflict) Code() errcode.Code { return errcode.DroppedModifiedConflict }
