// Package commit implements the commit pipeline: the validator/merger
// that turns a transaction's private writes into published,
// globally-visible state. Catalog is the shared registry of table
// sources and the table state store that the pipeline publishes into; the
// object-commit-state history that the pipeline's namespace- and
// row-conflict stages consult is kept by the Pipeline itself.
//
// The registry sits behind one RWMutex, the same shape as a registry of
// named pluggable data sources, generalized here to named table sources
// within one database.
package commit

import (
	"sync"

	"github.com/kasuganosora/relcore/internal/dbtype"
	"github.com/kasuganosora/relcore/internal/statestore"
	"github.com/kasuganosora/relcore/internal/tablesource"
	"github.com/kasuganosora/relcore/internal/txn"
)

// Catalog is the shared, process-wide registry of table sources backing
// one database, bound to its on-disk table state store.
type Catalog struct {
	mu      sync.RWMutex
	state   *statestore.Store
	sources map[int64]*tablesource.Source // table-id -> source
	byName  map[string]int64              // table name -> table-id
}

// NewCatalog wraps an opened table state store.
func NewCatalog(state *statestore.Store) *Catalog {
	return &Catalog{
		state:   state,
		sources: make(map[int64]*tablesource.Source),
		byName:  make(map[string]int64),
	}
}

// Register adds a table source to the catalog under its schema-qualified
// name, used both for brand-new tables and when restoring from disk.
func (c *Catalog) Register(name string, source *tablesource.Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources[source.TableID()] = source
	c.byName[name] = source.TableID()
}

// Lookup returns the table source registered under name.
func (c *Catalog) Lookup(name string) (*tablesource.Source, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byName[name]
	if !ok {
		return nil, false
	}
	return c.sources[id], true
}

// VisibleSnapshot returns the name->Source map as it exists right now,
// used to build a new transaction's or the check-view's visible-table map.
func (c *Catalog) VisibleSnapshot() map[string]*tablesource.Source {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]*tablesource.Source, len(c.byName))
	for name, id := range c.byName {
		out[name] = c.sources[id]
	}
	return out
}

// VisibleTableSnapshot returns the visible-table map as txn.VisibleTable
// entries, suitable for beginning a new Transaction or the commit
// pipeline's synthetic check-view.
func (c *Catalog) VisibleTableSnapshot() map[string]*txn.VisibleTable {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]*txn.VisibleTable, len(c.byName))
	for name, id := range c.byName {
		source := c.sources[id]
		out[name] = &txn.VisibleTable{Source: source, Indexes: source.IndexSnapshot()}
	}
	return out
}

// findByID returns the name and source registered under tableID, or
// ("", nil) if absent (e.g. already unregistered by a concurrent drop).
func (c *Catalog) findByID(tableID int64) (string, *tablesource.Source) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for name, id := range c.byName {
		if id == tableID {
			return name, c.sources[id]
		}
	}
	return "", nil
}

// CreateTable allocates a table-id from the state store and registers a
// fresh empty table source under name. The caller is responsible for
// having already checked privileges and namespace conflicts.
func (c *Catalog) CreateTable(name string, info *dbtype.TableInfo) (*tablesource.Source, error) {
	id, err := c.state.NextTableID()
	if err != nil {
		return nil, err
	}
	source := tablesource.New(id, info)
	c.Register(name, source)
	c.state.AddVisible(statestore.TableState{TableID: id, Name: name})
	return source, nil
}

// Unregister removes name from the catalog's in-memory name index. The
// source stays in the id-keyed map, but Lookup and findByID both go
// through the name index and no longer return it.
func (c *Catalog) Unregister(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byName, name)
}

// SyncStateStore marks name as deleted in the table state store (stage
// (viii) calls this for every table dropped by a committing transaction)
// and flushes the store.
func (c *Catalog) SyncStateStore(name string, id int64) error {
	if err := c.state.RemoveVisible(name); err != nil {
		return err
	}
	c.state.AddDelete(statestore.TableState{TableID: id, Name: name})
	return c.state.Flush()
}

// FlushVisible flushes the state store without changing its deleted set —
// used after a create when nothing was dropped in the same commit.
func (c *Catalog) FlushVisible() error {
	return c.state.Flush()
}
