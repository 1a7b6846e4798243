// Package tablesource implements one persistent table's master record —
// its schema, a row-existence bitmap, the ordered per-commit change
// registries, and the current committed index snapshot.
//
// The shape is a struct gathering schema plus registry/log bookkeeping
// behind one RWMutex, with small accessor/repository-style methods
// (Save/Delete/Exists/FindWithFilter-flavored), adapted from a registry
// of many named sources down to the single-table master record one
// database keeps per table.
package tablesource

import (
	"sort"
	"sync"

	"github.com/kasuganosora/relcore/internal/dbtype"
	"github.com/kasuganosora/relcore/internal/eventlog"
	"github.com/kasuganosora/relcore/internal/indexset"
)

// CommitEntry pairs a committed registry with the commit-id it was
// published under.
type CommitEntry struct {
	CommitID int64
	Registry *eventlog.Registry
}

// Source is one persistent table's master record.
type Source struct {
	mu sync.RWMutex

	tableID int64
	info    *dbtype.TableInfo

	rows          map[int64]bool // row-existence bitmap: row number -> live
	nextRowNumber int64

	indexes *indexset.Set // current committed index snapshot
	commits []CommitEntry // ascending by CommitID
}

// New creates a Source for a freshly created table: no rows, an empty
// index snapshot, no commit history.
func New(tableID int64, info *dbtype.TableInfo) *Source {
	return &Source{
		tableID: tableID,
		info:    info,
		rows:    make(map[int64]bool),
		indexes: indexset.NewEmpty(),
	}
}

// Restore rebuilds a Source from persisted state — used when loading an
// existing table from the store rather than creating a new one.
func Restore(tableID int64, info *dbtype.TableInfo, rows map[int64]bool, indexes *indexset.Set, commits []CommitEntry) *Source {
	if rows == nil {
		rows = make(map[int64]bool)
	}
	if indexes == nil {
		indexes = indexset.NewEmpty()
	}
	var maxRow int64
	for r := range rows {
		if r >= maxRow {
			maxRow = r + 1
		}
	}
	return &Source{
		tableID:       tableID,
		info:          info,
		rows:          rows,
		indexes:       indexes,
		commits:       commits,
		nextRowNumber: maxRow,
	}
}

// TableID returns the table's permanent id.
func (s *Source) TableID() int64 {
	return s.tableID
}

// TableInfo returns the table's schema.
func (s *Source) TableInfo() *dbtype.TableInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// AlterTableInfo publishes a new schema version. TableInfo is immutable
// once published; an alter produces a new version rather than mutating
// the old one in place.
func (s *Source) AlterTableInfo(info *dbtype.TableInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info = info
}

// IndexSnapshot returns the current committed index-set snapshot.
func (s *Source) IndexSnapshot() *indexset.Set {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexes
}

// RowExists reports whether row is currently live in the committed bitmap.
func (s *Source) RowExists(row int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rows[row]
}

// LiveRows returns every row number currently marked live, order
// unspecified.
func (s *Source) LiveRows() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int64, 0, len(s.rows))
	for r, live := range s.rows {
		if live {
			out = append(out, r)
		}
	}
	return out
}

// AllocateRowNumber reserves the next row number for this table. Row
// numbers are dense and never recycled within an open transaction: a
// number handed out here is never handed out again, whether or not the
// transaction that requested it ever commits.
func (s *Source) AllocateRowNumber() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.nextRowNumber
	s.nextRowNumber++
	return n
}

// MutableTable is a transaction-scoped, copy-on-write view of a Source.
// Mutations go through Insert/Delete/Update, which record into the bound
// registry and the view's own added/removed sets — never the Source's
// own committed state — until CommitTransactionChange merges them back.
// They do not touch the view's private index clone; callers maintain
// that through IndexSet.
type MutableTable struct {
	source   *Source
	registry *eventlog.Registry
	indexes  *indexset.Set
	added    map[int64]bool
	removed  map[int64]bool
}

// GetMutableTable returns a view bound to registry that records every row
// mutation into it. The index snapshot handed to the view is a
// copy-on-write clone of the Source's currently committed snapshot.
func (s *Source) GetMutableTable(registry *eventlog.Registry) *MutableTable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &MutableTable{
		source:   s,
		registry: registry,
		indexes:  s.indexes.Clone(),
		added:    make(map[int64]bool),
		removed:  make(map[int64]bool),
	}
}

// Insert records row as newly added.
func (v *MutableTable) Insert(row int64) {
	v.added[row] = true
	delete(v.removed, row)
	v.registry.RecordAdd(row)
}

// Delete records row as removed.
func (v *MutableTable) Delete(row int64) {
	v.removed[row] = true
	delete(v.added, row)
	v.registry.RecordRemove(row)
}

// Update records the old row as replaced by the new row.
func (v *MutableTable) Update(oldRow, newRow int64) {
	v.removed[oldRow] = true
	v.added[newRow] = true
	v.registry.RecordUpdate(oldRow, newRow)
}

// IndexSet returns the view's private copy-on-write index snapshot, to be
// mutated via its own Insert/Remove calls as rows are added/removed, then
// passed to CommitTransactionChange at commit time.
func (v *MutableTable) IndexSet() *indexset.Set {
	return v.indexes
}

// Visible reports whether row should be visible through this view: either
// live in the source's committed bitmap and not removed by this view, or
// newly added by this view.
func (v *MutableTable) Visible(row int64) bool {
	if v.removed[row] {
		return false
	}
	if v.added[row] {
		return true
	}
	return v.source.RowExists(row)
}

// FindChangesSinceCommit returns the registries committed at or after
// commitID, in ascending commit order.
func (s *Source) FindChangesSinceCommit(commitID int64) []*eventlog.Registry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := sort.Search(len(s.commits), func(i int) bool { return s.commits[i].CommitID >= commitID })
	out := make([]*eventlog.Registry, 0, len(s.commits)-idx)
	for _, entry := range s.commits[idx:] {
		out = append(out, entry.Registry)
	}
	return out
}

// CommitTransactionChange atomically (a) appends registry under
// newCommitID, (b) adopts indexes as the new committed snapshot, and
// (c) applies the registry's add/remove marks to the row-existence
// bitmap.
func (s *Source) CommitTransactionChange(newCommitID int64, registry *eventlog.Registry, indexes *indexset.Set) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range registry.RemovedRows() {
		s.rows[row] = false
	}
	for _, row := range registry.AddedRows() {
		s.rows[row] = true
	}
	s.indexes = indexes
	s.commits = append(s.commits, CommitEntry{CommitID: newCommitID, Registry: registry})
}

// RollbackTransactionChange discards a never-committed registry. Since
// CommitTransactionChange is the only path that mutates committed state,
// rolling back a registry that was never passed to it requires no work
// beyond letting it (and anything it pinned) be garbage collected; this
// method exists so callers have one symmetric entry point regardless of
// outcome.
func (s *Source) RollbackTransactionChange(registry *eventlog.Registry) {
	_ = registry
}

// Prune discards committed registries with CommitID strictly less than
// keepFrom — safe once no open transaction holds a snapshot older than
// keepFrom.
func (s *Source) Prune(keepFrom int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := sort.Search(len(s.commits), func(i int) bool { return s.commits[i].CommitID >= keepFrom })
	s.commits = append([]CommitEntry(nil), s.commits[idx:]...)
}
