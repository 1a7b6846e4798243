package constraint

import (
	"fmt"

	"github.com/kasuganosora/relcore/internal/dbtype"
	"github.com/kasuganosora/relcore/internal/errcode"
)

// ErrConstraintViolation is raised on the first constraint failure found
// during CheckAdd/CheckRemove, carrying the constraint name, kind, and
// offending row-id.
type ErrConstraintViolation struct {
	Name string
	Kind dbtype.ConstraintKind
	Row  dbtype.RowID
}

func (e *ErrConstraintViolation) Error() string {
	return fmt.Sprintf("constraint violation: %s (%s) on row %s", e.Name, e.Kind, e.Row)
}

// Code implements errcode.Coder.
func (e *ErrConstraintViolation) Code() errcode.Code { return errcode.ConstraintViolation }
