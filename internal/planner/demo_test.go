package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseOneClassifiesSelect(t *testing.T) {
	a := NewDemoAdapter()
	node, err := a.ParseOne("SELECT id, name FROM users WHERE age > 18")
	require.NoError(t, err)

	table, err := node.Evaluate(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"select"}, table.Columns())
	require.Empty(t, table.Rows())
}

func TestParseOneClassifiesInsert(t *testing.T) {
	a := NewDemoAdapter()
	node, err := a.ParseOne("INSERT INTO users (id, name) VALUES (1, 'Alice')")
	require.NoError(t, err)

	table, err := node.Evaluate(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"insert"}, table.Columns())
}

func TestParseOneRejectsInvalidSQL(t *testing.T) {
	a := NewDemoAdapter()
	_, err := a.ParseOne("SELEKT FROM WHERE")
	require.Error(t, err)
}

func TestLiteralPlanNodeEvaluateReturnsWrappedTable(t *testing.T) {
	table := NewLiteralTable([]string{"a", "b"}, nil)
	node := &LiteralPlanNode{Table: table}

	got, err := node.Evaluate(context.Background())
	require.NoError(t, err)
	require.Same(t, table, got)
}
