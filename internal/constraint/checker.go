// Package constraint implements constraint checking: given a post-view
// of a table and a set of added/removed row numbers plus a deferrability
// filter, evaluate NOT NULL, CHECK, UNIQUE, PRIMARY KEY against added
// rows and FOREIGN KEY against both added and removed rows,
// short-circuiting on the first violation.
//
// Every failure is one ErrConstraintViolation carrying the failing
// constraint's name, its kind and the row; the evaluation rules walk
// TableInfo's Columns and its ConstraintsOfKind helper.
package constraint

import (
	"fmt"
	"time"

	"github.com/kasuganosora/relcore/internal/dbtype"
)

// RowView is the minimal read surface the checker needs over a post-view
// table: column values for one row, keyed by column name.
type RowView interface {
	// ColumnValue returns the value of column for row, or (Value{}, false)
	// if the row does not exist in this view.
	ColumnValue(row int64, column string) (dbtype.Value, bool)
}

// ParentExists reports, for FK evaluation, whether a row with the given
// key values exists in the referenced table.
type ParentExists func(table dbtype.ObjectName, columns []string, values []dbtype.Value) (bool, error)

// ChildReferences reports, for FK evaluation on removed rows, whether any
// live child row still references the given parent key values.
type ChildReferences func(table dbtype.ObjectName, columns []string, values []dbtype.Value) (bool, error)

// Checker evaluates constraint hints against a post-view table.
type Checker struct {
	view            RowView
	parentExists    ParentExists
	childReferences ChildReferences
}

// New creates a Checker bound to the given post-view and FK lookup
// callbacks.
func New(view RowView, parentExists ParentExists, childReferences ChildReferences) *Checker {
	return &Checker{view: view, parentExists: parentExists, childReferences: childReferences}
}

// CheckAdd evaluates NOT NULL, CHECK, UNIQUE, PRIMARY KEY and the
// parent-exists half of FOREIGN KEY against rows newly added to info's
// table, restricted to constraints matching deferrability. Returns on the
// first violation found.
func (c *Checker) CheckAdd(info *dbtype.TableInfo, rows []int64, deferrability dbtype.Deferrability) error {
	for _, row := range rows {
		if err := c.checkNotNull(info, row, deferrability); err != nil {
			return err
		}
		if err := c.checkCheck(info, row, deferrability); err != nil {
			return err
		}
	}
	if err := c.checkUnique(info, rows, deferrability, dbtype.ConstraintUnique); err != nil {
		return err
	}
	if err := c.checkUnique(info, rows, deferrability, dbtype.ConstraintPrimaryKey); err != nil {
		return err
	}
	if err := c.checkForeignKeyParents(info, rows, deferrability); err != nil {
		return err
	}
	return nil
}

// CheckRemove evaluates the no-child-references half of FOREIGN KEY
// against rows removed from info's table.
func (c *Checker) CheckRemove(info *dbtype.TableInfo, rows []int64, deferrability dbtype.Deferrability) error {
	for _, fk := range info.ConstraintsOfKind(dbtype.ConstraintForeignKey) {
		if fk.Deferrable != (deferrability == dbtype.InitiallyDeferred) {
			continue
		}
		for _, row := range rows {
			values, ok := c.rowValues(row, fk.Columns)
			if !ok {
				continue
			}
			referenced, err := c.childReferences(info.Name, fk.Columns, values)
			if err != nil {
				return err
			}
			if referenced {
				return &ErrConstraintViolation{
					Name: fk.Name,
					Kind: dbtype.ConstraintForeignKey,
					Row:  dbtype.RowID{TableID: 0, RowNumber: row},
				}
			}
		}
	}
	return nil
}

func (c *Checker) checkNotNull(info *dbtype.TableInfo, row int64, deferrability dbtype.Deferrability) error {
	for _, col := range info.Columns {
		if col.Nullable {
			continue
		}
		v, ok := c.view.ColumnValue(row, col.Name)
		if !ok || v.IsNull() {
			return &ErrConstraintViolation{
				Name: "NOT NULL(" + col.Name + ")",
				Kind: dbtype.ConstraintNotNull,
				Row:  dbtype.RowID{RowNumber: row},
			}
		}
	}
	return nil
}

func (c *Checker) checkCheck(info *dbtype.TableInfo, row int64, deferrability dbtype.Deferrability) error {
	for _, hint := range info.ConstraintsOfKind(dbtype.ConstraintCheck) {
		if hint.Deferrable != (deferrability == dbtype.InitiallyDeferred) {
			continue
		}
		// The expression evaluator lives in the planner package; this
		// checker only owns the constraint bookkeeping, so an unevaluated
		// CHECK expression is treated as the caller's responsibility to
		// have pre-evaluated into a boolean stored on the row, looked up
		// under the constraint's synthetic column name.
		v, ok := c.view.ColumnValue(row, hint.Name)
		if ok && v.Kind == dbtype.KindBoolean && !v.Bool {
			return &ErrConstraintViolation{Name: hint.Name, Kind: dbtype.ConstraintCheck, Row: dbtype.RowID{RowNumber: row}}
		}
	}
	return nil
}

// checkUnique only catches duplicates within rows itself; a row
// duplicating an already-committed key is caught earlier by the unique
// index rejecting the insert, not here.
func (c *Checker) checkUnique(info *dbtype.TableInfo, rows []int64, deferrability dbtype.Deferrability, kind dbtype.ConstraintKind) error {
	for _, hint := range info.ConstraintsOfKind(kind) {
		if hint.Deferrable != (deferrability == dbtype.InitiallyDeferred) {
			continue
		}
		seen := make(map[string]int64, len(rows))
		for _, row := range rows {
			values, ok := c.rowValues(row, hint.Columns)
			if !ok {
				continue
			}
			key := compositeKey(values)
			if _, dup := seen[key]; dup {
				return &ErrConstraintViolation{Name: hint.Name, Kind: kind, Row: dbtype.RowID{RowNumber: row}}
			}
			seen[key] = row
		}
	}
	return nil
}

func (c *Checker) checkForeignKeyParents(info *dbtype.TableInfo, rows []int64, deferrability dbtype.Deferrability) error {
	for _, fk := range info.ConstraintsOfKind(dbtype.ConstraintForeignKey) {
		if fk.Deferrable != (deferrability == dbtype.InitiallyDeferred) {
			continue
		}
		if fk.References == nil {
			continue
		}
		for _, row := range rows {
			values, ok := c.rowValues(row, fk.Columns)
			if !ok {
				continue
			}
			exists, err := c.parentExists(fk.References.Table, fk.References.Columns, values)
			if err != nil {
				return err
			}
			if !exists {
				return &ErrConstraintViolation{Name: fk.Name, Kind: dbtype.ConstraintForeignKey, Row: dbtype.RowID{RowNumber: row}}
			}
		}
	}
	return nil
}

func (c *Checker) rowValues(row int64, columns []string) ([]dbtype.Value, bool) {
	values := make([]dbtype.Value, 0, len(columns))
	for _, col := range columns {
		v, ok := c.view.ColumnValue(row, col)
		if !ok {
			return nil, false
		}
		values = append(values, v)
	}
	return values, true
}

func compositeKey(values []dbtype.Value) string {
	key := ""
	for _, v := range values {
		key += fmt.Sprintf("%d:%s|", v.Kind, valueText(v))
	}
	return key
}

// valueText renders a Value's payload for use as a composite-key fragment.
// Only the fields relevant to equality for each Kind are included.
func valueText(v dbtype.Value) string {
	switch v.Kind {
	case dbtype.KindNull:
		return "NULL"
	case dbtype.KindNumeric:
		if v.Num == nil {
			return ""
		}
		return v.Num.RatString()
	case dbtype.KindString:
		return v.Str
	case dbtype.KindBoolean:
		return fmt.Sprintf("%t", v.Bool)
	case dbtype.KindDateTime:
		return v.Time.Format(time.RFC3339Nano)
	case dbtype.KindInterval:
		return v.Interval.String()
	case dbtype.KindBinary:
		return string(v.Bin)
	default:
		return v.LOBRef
	}
}
