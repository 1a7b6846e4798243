package tablesource

import (
	"fmt"

	"github.com/kasuganosora/relcore/internal/dbtype"
	"github.com/kasuganosora/relcore/internal/planner"
)

// ViewDefinition is a DDL-visible object that resolves to a query plan
// instead of row storage. There is no Algorithm hint (MERGE vs
// TEMPTABLE) since this core has no query optimizer to choose between
// them.
type ViewDefinition struct {
	Name        dbtype.ObjectName
	Query       planner.QueryPlanNode
	CheckOption bool
	Updatable   bool
}

// ErrViewNotUpdatable is returned when a caller asks for a mutable table
// over a view that wasn't declared updatable.
type ErrViewNotUpdatable struct {
	Name dbtype.ObjectName
}

func (e *ErrViewNotUpdatable) Error() string {
	return fmt.Sprintf("tablesource: view %s is not updatable", e.Name)
}

// GetMutableTable rejects any attempt to open a non-updatable view
// mutably; mutation is only ever defined over row-backed sources, and an
// updatable view still needs its underlying table's Source for the
// actual writes, which the session layer resolves — this method exists
// only to give a clear, typed rejection for the common (non-updatable)
// case.
func (v *ViewDefinition) GetMutableTable() error {
	if !v.Updatable {
		return &ErrViewNotUpdatable{Name: v.Name}
	}
	return nil
}
