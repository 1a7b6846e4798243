// Package planner defines the interface the commit pipeline and session
// consume: a QueryPlanNode whose Evaluate method materializes a Table,
// used to run sub-queries during constraint checks and view DDL. The
// actual query planner/optimizer lives outside this core — this package
// only owns the consumed interface plus (in demo.go) a minimal
// illustrative adapter exercised by tests.
package planner

import (
	"context"

	"github.com/kasuganosora/relcore/internal/dbtype"
)

// Table is a read-only materialized result: column names plus rows of
// Values in column order.
type Table interface {
	Columns() []string
	Rows() [][]dbtype.Value
}

// literalTable is the simplest possible Table: a fixed column list and
// row set, used both by the demo adapter and in tests standing in for a
// real planner's output.
type literalTable struct {
	columns []string
	rows    [][]dbtype.Value
}

// NewLiteralTable builds a Table from fixed columns and rows.
func NewLiteralTable(columns []string, rows [][]dbtype.Value) Table {
	return &literalTable{columns: columns, rows: rows}
}

func (t *literalTable) Columns() []string      { return t.columns }
func (t *literalTable) Rows() [][]dbtype.Value { return t.rows }

// QueryPlanNode is the interface the core calls to materialize a
// sub-query during constraint checks and view DDL.
type QueryPlanNode interface {
	Evaluate(ctx context.Context) (Table, error)
}

// LiteralPlanNode is a QueryPlanNode that always evaluates to a fixed
// Table, regardless of context — the trivial implementation a caller
// without a real planner can use to satisfy the interface.
type LiteralPlanNode struct {
	Table Table
}

// Evaluate returns the wrapped literal table.
func (n *LiteralPlanNode) Evaluate(ctx context.Context) (Table, error) {
	return n.Table, nil
}
