// Demo adapter exercising the QueryPlanNode interface this package
// consumes: construct a *parser.Parser, call ParseOneStmt, inspect the
// resulting ast.StmtNode. This does not plan or execute — it classifies
// one parsed statement by type and wraps it as a QueryPlanNode whose
// Evaluate always returns an empty Table named after the statement kind,
// just enough to drive the consumed interface end to end without a real
// query planner.
package planner

import (
	"fmt"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver"
)

// DemoAdapter parses single SQL statements with the TiDB parser and
// produces a trivial QueryPlanNode for each.
type DemoAdapter struct {
	p *parser.Parser
}

// NewDemoAdapter creates an adapter wrapping a fresh TiDB parser.
func NewDemoAdapter() *DemoAdapter {
	return &DemoAdapter{p: parser.New()}
}

// ParseOne parses a single SQL statement and wraps it as a QueryPlanNode.
// Evaluate on the returned node always yields a one-column literal Table
// named after the statement kind ("select", "insert", ...) with no rows —
// a placeholder standing in for the real planner's materialized result.
func (a *DemoAdapter) ParseOne(sql string) (QueryPlanNode, error) {
	stmt, err := a.p.ParseOneStmt(sql, "", "")
	if err != nil {
		return nil, fmt.Errorf("planner: parse failed: %w", err)
	}
	kind := statementKind(stmt)
	return &LiteralPlanNode{Table: NewLiteralTable([]string{kind}, nil)}, nil
}

func statementKind(stmt ast.StmtNode) string {
	switch stmt.(type) {
	case *ast.SelectStmt:
		return "select"
	case *ast.InsertStmt:
		return "insert"
	case *ast.UpdateStmt:
		return "update"
	case *ast.DeleteStmt:
		return "delete"
	case *ast.CreateTableStmt:
		return "create_table"
	case *ast.DropTableStmt:
		return "drop_table"
	default:
		return "unknown"
	}
}
