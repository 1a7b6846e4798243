package store

import (
	"fmt"

	"github.com/kasuganosora/relcore/internal/errcode"
)

// ErrAreaNotFound is returned by GetArea/Read when an area id does not
// exist or has been deleted.
type ErrAreaNotFound struct {
	ID AreaID
}

func (e *ErrAreaNotFound) Error() string {
	return fmt.Sprintf("store: area %d not found", e.ID)
}

// Code implements errcode.Coder.
func (e *ErrAreaNotFound) Code() errcode.Code { return errcode.StoreIO }
