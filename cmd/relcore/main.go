// Command relcore is a small demonstration of wiring one embedded
// database handle end to end: open a paged store, create a table inside
// a transaction, commit it, and report what got published. It exists to
// exercise the session package's surface the way a real embedder would,
// not as a server — this core has no listener, no wire protocol, and no
// statement executor of its own.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/dgraph-io/badger/v4"

	"github.com/kasuganosora/relcore/internal/config"
	"github.com/kasuganosora/relcore/internal/dbtype"
	"github.com/kasuganosora/relcore/internal/security"
	"github.com/kasuganosora/relcore/internal/session"
	"github.com/kasuganosora/relcore/internal/statestore"
	"github.com/kasuganosora/relcore/internal/store"
	"github.com/kasuganosora/relcore/internal/tablesource"
	"github.com/kasuganosora/relcore/internal/txn"
)

// passChecker approves every constraint check — this demo has no row
// storage of its own, so there is nothing for a real constraint.Checker
// to inspect.
type passChecker struct{}

func (passChecker) CheckAdd(*dbtype.TableInfo, []int64, dbtype.Deferrability) error    { return nil }
func (passChecker) CheckRemove(*dbtype.TableInfo, []int64, dbtype.Deferrability) error { return nil }

type passFactory struct{}

func (passFactory) ForTable(string, *dbtype.TableInfo, *tablesource.MutableTable) txn.ConstraintChecker {
	return passChecker{}
}

func main() {
	cfg := config.LoadConfigOrDefault()

	dir := cfg.Store.Path
	opts := badger.DefaultOptions(dir).WithInMemory(cfg.Store.InMemory).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("open badger: %v", err)
	}
	defer db.Close()

	paged, err := store.Open(db)
	if err != nil {
		log.Fatalf("open paged store: %v", err)
	}
	defer paged.Close()

	header, err := statestore.Create(paged)
	if err != nil {
		log.Fatalf("create table state store: %v", err)
	}
	state, err := statestore.Open(paged, header)
	if err != nil {
		log.Fatalf("open table state store: %v", err)
	}

	checker := security.NewStaticPrivilegeChecker()
	checker.Grant("demo", security.ObjectSchema, "*", security.PrivCreate)
	checker.Grant("demo", security.ObjectTable, "*", security.PrivInsert, security.PrivSelect)

	engine := session.NewEngine(cfg, state, checker)

	tx := engine.BeginTransaction()
	info := &dbtype.TableInfo{
		Name:    dbtype.NewObjectName("public", "widgets"),
		Columns: []dbtype.ColumnInfo{{Name: "id", Type: "INTEGER"}},
	}
	if err := engine.CreateTable(tx, "demo", info); err != nil {
		log.Fatalf("create table: %v", err)
	}
	if _, err := engine.Commit(context.Background(), tx, passFactory{}); err != nil {
		log.Fatalf("commit: %v", err)
	}

	tx2 := engine.BeginTransaction()
	view, err := engine.GetMutableTable(tx2, "demo", "public.widgets", security.PrivInsert)
	if err != nil {
		log.Fatalf("get mutable table: %v", err)
	}
	source, _ := engine.Catalog().Lookup("public.widgets")
	row := source.AllocateRowNumber()
	view.Insert(row)

	notifications, err := engine.Commit(context.Background(), tx2, passFactory{})
	if err != nil {
		log.Fatalf("commit: %v", err)
	}

	fmt.Println("table public.widgets created and row", row, "published")
	for _, n := range notifications {
		fmt.Printf("commit notification: table=%s added=%v removed=%v\n", n.TableName, n.Added, n.Removed)
	}
}
