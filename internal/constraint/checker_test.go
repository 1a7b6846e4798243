package constraint

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/relcore/internal/dbtype"
)

// fakeView is a minimal RowView backed by a map for testing.
type fakeView struct {
	rows map[int64]map[string]dbtype.Value
}

func (v *fakeView) ColumnValue(row int64, column string) (dbtype.Value, bool) {
	cols, ok := v.rows[row]
	if !ok {
		return dbtype.Value{}, false
	}
	val, ok := cols[column]
	return val, ok
}

func noParent(dbtype.ObjectName, []string, []dbtype.Value) (bool, error) { return true, nil }
func noChild(dbtype.ObjectName, []string, []dbtype.Value) (bool, error)  { return false, nil }

func TestCheckAddRejectsNotNullViolation(t *testing.T) {
	info := &dbtype.TableInfo{
		Name:    dbtype.NewObjectName("public", "t"),
		Columns: []dbtype.ColumnInfo{{Name: "id", Type: "INTEGER", Nullable: false}},
	}
	view := &fakeView{rows: map[int64]map[string]dbtype.Value{
		1: {"id": dbtype.Null},
	}}
	c := New(view, noParent, noChild)

	err := c.CheckAdd(info, []int64{1}, dbtype.InitiallyImmediate)
	require.Error(t, err)
	var violation *ErrConstraintViolation
	require.ErrorAs(t, err, &violation)
	require.Equal(t, dbtype.ConstraintNotNull, violation.Kind)
}

func TestCheckAddPassesWhenNotNullSatisfied(t *testing.T) {
	info := &dbtype.TableInfo{
		Name:    dbtype.NewObjectName("public", "t"),
		Columns: []dbtype.ColumnInfo{{Name: "id", Type: "INTEGER", Nullable: false}},
	}
	view := &fakeView{rows: map[int64]map[string]dbtype.Value{
		1: {"id": dbtype.NewInt(1)},
	}}
	c := New(view, noParent, noChild)

	require.NoError(t, c.CheckAdd(info, []int64{1}, dbtype.InitiallyImmediate))
}

func TestCheckAddRejectsUniqueDuplicateWithinBatch(t *testing.T) {
	info := &dbtype.TableInfo{
		Name:    dbtype.NewObjectName("public", "t"),
		Columns: []dbtype.ColumnInfo{{Name: "email", Type: "VARCHAR", Nullable: true}},
		Constraints: []dbtype.ConstraintHint{
			{Name: "uq_email", Kind: dbtype.ConstraintUnique, Columns: []string{"email"}},
		},
	}
	view := &fakeView{rows: map[int64]map[string]dbtype.Value{
		1: {"email": dbtype.NewString("a@x.com", dbtype.DefaultCollation)},
		2: {"email": dbtype.NewString("a@x.com", dbtype.DefaultCollation)},
	}}
	c := New(view, noParent, noChild)

	err := c.CheckAdd(info, []int64{1, 2}, dbtype.InitiallyImmediate)
	require.Error(t, err)
	var violation *ErrConstraintViolation
	require.ErrorAs(t, err, &violation)
	require.Equal(t, dbtype.ConstraintUnique, violation.Kind)
}

func TestCheckAddForeignKeyRejectsMissingParent(t *testing.T) {
	info := &dbtype.TableInfo{
		Name:    dbtype.NewObjectName("public", "orders"),
		Columns: []dbtype.ColumnInfo{{Name: "customer_id", Type: "INTEGER", Nullable: true}},
		Constraints: []dbtype.ConstraintHint{
			{
				Name:    "fk_customer",
				Kind:    dbtype.ConstraintForeignKey,
				Columns: []string{"customer_id"},
				References: &dbtype.ForeignKeyRef{
					Table:   dbtype.NewObjectName("public", "customers"),
					Columns: []string{"id"},
				},
			},
		},
	}
	view := &fakeView{rows: map[int64]map[string]dbtype.Value{
		1: {"customer_id": dbtype.NewInt(99)},
	}}
	missingParent := func(dbtype.ObjectName, []string, []dbtype.Value) (bool, error) { return false, nil }
	c := New(view, missingParent, noChild)

	err := c.CheckAdd(info, []int64{1}, dbtype.InitiallyImmediate)
	require.Error(t, err)
	var violation *ErrConstraintViolation
	require.ErrorAs(t, err, &violation)
	require.Equal(t, dbtype.ConstraintForeignKey, violation.Kind)
}

func TestCheckRemoveRejectsDanglingChildReference(t *testing.T) {
	info := &dbtype.TableInfo{
		Name:    dbtype.NewObjectName("public", "customers"),
		Columns: []dbtype.ColumnInfo{{Name: "id", Type: "INTEGER"}},
		Constraints: []dbtype.ConstraintHint{
			{
				Name:    "fk_customer",
				Kind:    dbtype.ConstraintForeignKey,
				Columns: []string{"id"},
				References: &dbtype.ForeignKeyRef{
					Table:   dbtype.NewObjectName("public", "customers"),
					Columns: []string{"id"},
				},
			},
		},
	}
	view := &fakeView{rows: map[int64]map[string]dbtype.Value{
		1: {"id": dbtype.NewInt(5)},
	}}
	hasChild := func(dbtype.ObjectName, []string, []dbtype.Value) (bool, error) { return true, nil }
	c := New(view, noParent, hasChild)

	err := c.CheckRemove(info, []int64{1}, dbtype.InitiallyImmediate)
	require.Error(t, err)
}

func TestDeferredConstraintsSkippedUntilMatchingFilter(t *testing.T) {
	info := &dbtype.TableInfo{
		Name:    dbtype.NewObjectName("public", "t"),
		Columns: []dbtype.ColumnInfo{{Name: "email", Type: "VARCHAR", Nullable: true}},
		Constraints: []dbtype.ConstraintHint{
			{Name: "uq_email", Kind: dbtype.ConstraintUnique, Columns: []string{"email"}, Deferrable: true},
		},
	}
	view := &fakeView{rows: map[int64]map[string]dbtype.Value{
		1: {"email": dbtype.NewString("a@x.com", dbtype.DefaultCollation)},
		2: {"email": dbtype.NewString("a@x.com", dbtype.DefaultCollation)},
	}}
	c := New(view, noParent, noChild)

	// InitiallyImmediate pass should skip a deferrable constraint entirely.
	require.NoError(t, c.CheckAdd(info, []int64{1, 2}, dbtype.InitiallyImmediate))

	// InitiallyDeferred pass must catch it.
	err := c.CheckAdd(info, []int64{1, 2}, dbtype.InitiallyDeferred)
	require.Error(t, err)
}
