package session

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/relcore/internal/dbtype"
	"github.com/kasuganosora/relcore/internal/security"
	"github.com/kasuganosora/relcore/internal/statestore"
	"github.com/kasuganosora/relcore/internal/store"
	"github.com/kasuganosora/relcore/internal/tablesource"
	"github.com/kasuganosora/relcore/internal/txn"
)

type passChecker struct{}

func (passChecker) CheckAdd(*dbtype.TableInfo, []int64, dbtype.Deferrability) error    { return nil }
func (passChecker) CheckRemove(*dbtype.TableInfo, []int64, dbtype.Deferrability) error { return nil }

type passFactory struct{}

func (passFactory) ForTable(string, *dbtype.TableInfo, *tablesource.MutableTable) txn.ConstraintChecker {
	return passChecker{}
}

func newTestEngine(t *testing.T, checker security.Checker) *Engine {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	paged, err := store.Open(db)
	require.NoError(t, err)
	t.Cleanup(func() { paged.Close() })

	header, err := statestore.Create(paged)
	require.NoError(t, err)
	state, err := statestore.Open(paged, header)
	require.NoError(t, err)

	return NewEngine(nil, state, checker)
}

func testInfo(name string) *dbtype.TableInfo {
	return &dbtype.TableInfo{
		Name:    dbtype.NewObjectName("public", name),
		Columns: []dbtype.ColumnInfo{{Name: "id", Type: "INTEGER"}},
	}
}

func allowAllChecker() security.Checker {
	c := security.NewStaticPrivilegeChecker()
	c.Grant("alice", security.ObjectTable, "*", security.PrivSelect, security.PrivInsert, security.PrivUpdate, security.PrivDelete, security.PrivCreate, security.PrivDrop)
	c.Grant("alice", security.ObjectSchema, "*", security.PrivCreate, security.PrivDrop)
	c.Grant("alice", security.ObjectSequence, "*", security.PrivCreate, security.PrivDrop, security.PrivUpdate)
	c.Grant("alice", security.ObjectView, "*", security.PrivCreate, security.PrivDrop)
	c.Grant("alice", security.ObjectTrigger, "*", security.PrivCreate, security.PrivDrop)
	return c
}

func TestCreateTableThenCommitMakesItVisibleToNewTransactions(t *testing.T) {
	e := newTestEngine(t, allowAllChecker())

	tx := e.BeginTransaction()
	require.NoError(t, e.CreateTable(tx, "alice", testInfo("accounts")))

	_, err := e.Commit(context.Background(), tx, passFactory{})
	require.NoError(t, err)

	tx2 := e.BeginTransaction()
	_, err = e.GetTable(tx2, "alice", "public.accounts")
	require.NoError(t, err)
}

func TestCreateTableDeniedWithoutPrivilege(t *testing.T) {
	e := newTestEngine(t, security.NewStaticPrivilegeChecker())

	tx := e.BeginTransaction()
	err := e.CreateTable(tx, "mallory", testInfo("accounts"))
	require.Error(t, err)
	var denied *security.ErrPrivilegeDenied
	require.ErrorAs(t, err, &denied)
}

func TestInsertRowThenCommitPublishes(t *testing.T) {
	e := newTestEngine(t, allowAllChecker())

	tx := e.BeginTransaction()
	require.NoError(t, e.CreateTable(tx, "alice", testInfo("accounts")))
	_, err := e.Commit(context.Background(), tx, passFactory{})
	require.NoError(t, err)

	tx2 := e.BeginTransaction()
	view, err := e.GetMutableTable(tx2, "alice", "public.accounts", security.PrivInsert)
	require.NoError(t, err)
	source, ok := e.Catalog().Lookup("public.accounts")
	require.True(t, ok)
	row := source.AllocateRowNumber()
	view.Insert(row)

	notifications, err := e.Commit(context.Background(), tx2, passFactory{})
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	require.True(t, source.RowExists(row))
}

func TestDropTableThenCommitRemovesFromCatalog(t *testing.T) {
	e := newTestEngine(t, allowAllChecker())

	tx := e.BeginTransaction()
	require.NoError(t, e.CreateTable(tx, "alice", testInfo("accounts")))
	_, err := e.Commit(context.Background(), tx, passFactory{})
	require.NoError(t, err)

	tx2 := e.BeginTransaction()
	require.NoError(t, e.DropTable(tx2, "alice", "public.accounts"))
	_, err = e.Commit(context.Background(), tx2, passFactory{})
	require.NoError(t, err)

	_, ok := e.Catalog().Lookup("public.accounts")
	require.False(t, ok)
}

func TestRollbackDiscardsUncommittedInsert(t *testing.T) {
	e := newTestEngine(t, allowAllChecker())

	tx := e.BeginTransaction()
	require.NoError(t, e.CreateTable(tx, "alice", testInfo("accounts")))
	_, err := e.Commit(context.Background(), tx, passFactory{})
	require.NoError(t, err)

	tx2 := e.BeginTransaction()
	view, err := e.GetMutableTable(tx2, "alice", "public.accounts", security.PrivInsert)
	require.NoError(t, err)
	source, _ := e.Catalog().Lookup("public.accounts")
	row := source.AllocateRowNumber()
	view.Insert(row)

	e.Rollback(tx2)
	require.Equal(t, txn.Aborted, tx2.Status())
	require.False(t, source.RowExists(row))
}

func TestSequenceCreateNextDrop(t *testing.T) {
	e := newTestEngine(t, allowAllChecker())

	seq, err := e.CreateSequence("alice", "order_id_seq", 1, 1, 1, 1000, false)
	require.NoError(t, err)
	require.NotNil(t, seq)

	v, err := e.NextSequenceValue("alice", "order_id_seq")
	require.NoError(t, err)
	require.Equal(t, int64(1), v)
	v, err = e.NextSequenceValue("alice", "order_id_seq")
	require.NoError(t, err)
	require.Equal(t, int64(2), v)

	require.NoError(t, e.DropSequence("alice", "order_id_seq"))
	_, err = e.NextSequenceValue("alice", "order_id_seq")
	require.Error(t, err)
}

func TestViewCreateLookupDrop(t *testing.T) {
	e := newTestEngine(t, allowAllChecker())

	def := &tablesource.ViewDefinition{Name: dbtype.NewObjectName("public", "active_accounts")}
	require.NoError(t, e.CreateView("alice", def))

	got, ok := e.LookupView("public.active_accounts")
	require.True(t, ok)
	require.Same(t, def, got)

	require.NoError(t, e.DropView("alice", "public.active_accounts"))
	_, ok = e.LookupView("public.active_accounts")
	require.False(t, ok)
}

func TestAfterInsertTriggerFiresOnCommit(t *testing.T) {
	e := newTestEngine(t, allowAllChecker())

	tx := e.BeginTransaction()
	require.NoError(t, e.CreateTable(tx, "alice", testInfo("accounts")))
	_, err := e.Commit(context.Background(), tx, passFactory{})
	require.NoError(t, err)

	var firedRows []int64
	require.NoError(t, e.CreateTrigger("alice", TriggerDefinition{
		Name:   "log_insert",
		Table:  "public.accounts",
		Event:  TriggerInsert,
		Timing: TriggerAfter,
		Action: func(ctx context.Context, tx *txn.Transaction, row int64) error {
			firedRows = append(firedRows, row)
			return nil
		},
	}))

	tx2 := e.BeginTransaction()
	view, err := e.GetMutableTable(tx2, "alice", "public.accounts", security.PrivInsert)
	require.NoError(t, err)
	source, _ := e.Catalog().Lookup("public.accounts")
	row := source.AllocateRowNumber()
	view.Insert(row)

	_, err = e.Commit(context.Background(), tx2, passFactory{})
	require.NoError(t, err)
	require.Equal(t, []int64{row}, firedRows)
}
