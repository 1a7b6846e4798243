package statestore

import (
	"fmt"

	"github.com/kasuganosora/relcore/internal/errcode"
)

// ErrNotFound is returned by RemoveVisible/RemoveDelete when the named
// entry is absent from the targeted list.
type ErrNotFound struct {
	Name string
	List string // "visible" or "delete"
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("statestore: %s not found in %s list", e.Name, e.List)
}

// Code implements errcode.Coder.
func (e *ErrNotFound) Code() errcode.Code { return errcode.NotFound }

// ErrCorruption signals a structurally invalid header or list area —
// bad magic, unsupported version, or a truncated encoding. It marks the
// database unusable.
type ErrCorruption struct {
	Reason string
}

func (e *ErrCorruption) Error() string {
	return fmt.Sprintf("statestore: corruption: %s", e.Reason)
}

// Code implements errcode.Coder.
func (e *ErrCorruption) Code() errcode.Code { return errcode.Corruption }
