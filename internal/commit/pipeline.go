// Pipeline implements the nine-stage commit protocol: a Transaction's
// private writes are validated against everything committed since it
// began, merged into a synthetic check-view for deferred constraint
// evaluation, and — only if every stage passes — published into the
// Catalog's table sources and the table state store under one globally
// serialized commit mutex.
//
// The state-machine discipline (Open -> Committing -> {Committed |
// Aborted}) and the single-commit-mutex serialization centralize
// Begin/Commit/Rollback behind one lock and a monotonically advancing
// commit-id counter, the same way a transaction manager centralizes
// those operations around one XID generator.
package commit

import (
	"fmt"
	"sync"

	"github.com/kasuganosora/relcore/internal/dbtype"
	"github.com/kasuganosora/relcore/internal/eventlog"
	"github.com/kasuganosora/relcore/internal/lock"
	"github.com/kasuganosora/relcore/internal/tablesource"
	"github.com/kasuganosora/relcore/internal/txn"
)

// ObjectCommitState records the created/dropped object names published by
// one commit, used by stage (ii)'s namespace conflict check.
type ObjectCommitState struct {
	CommitID int64
	Created  []string
	Dropped  []string
}

// Notification is a post-commit event delivered after stage (viii)
// succeeds: the changed table's name, id, and the rows added/removed.
type Notification struct {
	TableName string
	TableID   int64
	Added     []int64
	Removed   []int64
}

// CheckerFactory builds the constraint checker for one table's merged
// check-view. Supplied by the caller (the session/engine layer that knows
// how to materialize row column values) so the commit pipeline itself
// stays free of row-encoding concerns.
type CheckerFactory interface {
	ForTable(tableName string, info *dbtype.TableInfo, view *tablesource.MutableTable) txn.ConstraintChecker
}

// Config controls optional pipeline behavior.
type Config struct {
	ErrorOnDirtySelect bool
}

// Pipeline runs the commit protocol against one Catalog. Commit calls are
// internally serialized by commitMu: the global commit-id only ever
// advances inside that critical section, since commit is the only phase
// allowed to advance it.
type Pipeline struct {
	cfg Config

	commitMu  sync.Mutex
	catalog   *Catalog
	commitID  int64
	objectLog []ObjectCommitState
}

// NewPipeline creates a Pipeline starting at commit-id 0.
func NewPipeline(cfg Config, catalog *Catalog) *Pipeline {
	return &Pipeline{cfg: cfg, catalog: catalog}
}

// CurrentCommitID returns the latest published commit-id, used to begin
// new transactions' snapshots.
func (p *Pipeline) CurrentCommitID() int64 {
	p.commitMu.Lock()
	defer p.commitMu.Unlock()
	return p.commitID
}

// Commit runs the nine-stage protocol against tx. handle is the lock
// handle the caller's session acquired for this transaction's touched
// tables; it is always released in stage (ix), regardless of outcome.
func (p *Pipeline) Commit(tx *txn.Transaction, handle *lock.Handle, factory CheckerFactory) (notifications []Notification, err error) {
	p.commitMu.Lock()
	defer p.commitMu.Unlock()

	tx.SetStatus(txn.Committing)

	published := false
	defer func() {
		// Stage (ix): cleanup always runs.
		if handle != nil {
			handle.Release()
		}
		if published {
			tx.SetStatus(txn.Committed)
		} else {
			tx.SetStatus(txn.Aborted)
			for name, registry := range tx.TouchedRegistries() {
				if source, ok := p.catalog.Lookup(name); ok {
					source.RollbackTransactionChange(registry)
				}
			}
		}
	}()

	begin := tx.CommitID()
	touched := tx.TouchedRegistries()

	// (i) Dirty-select check.
	if p.cfg.ErrorOnDirtySelect {
		for _, name := range tx.ReadSet() {
			source, ok := p.catalog.Lookup(name)
			if !ok {
				continue
			}
			if len(source.FindChangesSinceCommit(begin)) > 0 {
				return nil, &ErrDirtySelect{Table: name}
			}
		}
	}

	// (ii) Namespace conflict check.
	pastCreated, pastDropped := p.objectNamesSince(begin)
	for _, name := range tx.CreatedObjects() {
		if pastCreated[name] {
			return nil, &ErrNamespaceConflict{Name: name, Kind: "created"}
		}
	}
	for _, name := range tx.DroppedObjects() {
		if pastDropped[name] {
			return nil, &ErrNamespaceConflict{Name: name, Kind: "dropped"}
		}
	}

	// (iii) Row conflict check.
	for name, registry := range touched {
		if pastDropped[name] {
			return nil, &ErrNonCommittedConflict{Table: name}
		}
		source, ok := p.catalog.Lookup(name)
		if !ok {
			continue
		}
		for _, past := range source.FindChangesSinceCommit(begin) {
			if row, clash := registry.TestCommitClash(past); clash {
				return nil, &ErrRowConflict{Table: name, Row: row}
			}
		}
	}

	// (iv) Dropped-table conflict.
	for _, name := range tx.DroppedObjects() {
		source, ok := p.catalog.Lookup(name)
		if !ok {
			continue
		}
		if len(source.FindChangesSinceCommit(begin)) > 0 {
			return nil, &ErrDroppedModifiedConflict{Table: name}
		}
	}

	// (v) Build synthetic check-view.
	checkView := txn.New(p.commitID, p.catalog.VisibleTableSnapshot())
	checkView.SetReadOnly(true)
	dropped := setOf(tx.DroppedObjects())
	created := setOf(tx.CreatedObjects())
	for name := range dropped {
		if !created[name] {
			checkView.RemoveVisibleTable(name)
		}
	}

	mergedViews := make(map[string]*tablesource.MutableTable, len(touched))
	for name, registry := range touched {
		source, ok := p.catalog.Lookup(name)
		if !ok {
			continue
		}
		concurrent := source.FindChangesSinceCommit(begin)
		var view *tablesource.MutableTable
		if len(concurrent) == 0 {
			if v, ok := tx.TouchedView(name); ok {
				view = v
			}
		}
		if view == nil {
			freshReg := eventlog.New()
			view = source.GetMutableTable(freshReg)
			for _, row := range registry.RemovedRows() {
				view.Delete(row)
			}
			for _, row := range registry.AddedRows() {
				view.Insert(row)
			}
		}
		mergedViews[name] = view
		checkView.UpdateVisibleTable(name, source, view.IndexSet())
	}

	// (vi) Deferred constraint check.
	for _, tableID := range tx.ConstraintAlteredTables() {
		name, source := p.catalog.findByID(tableID)
		if source == nil {
			continue
		}
		view := mergedViews[name]
		if view == nil {
			view = source.GetMutableTable(eventlog.New())
		}
		checker := factory.ForTable(name, source.TableInfo(), view)
		if err := checker.CheckAdd(source.TableInfo(), source.LiveRows(), dbtype.InitiallyDeferred); err != nil {
			return nil, fmt.Errorf("deferred full-table check failed on %s: %w", name, err)
		}
	}
	for name, registry := range touched {
		source, ok := p.catalog.Lookup(name)
		if !ok {
			continue
		}
		view := mergedViews[name]
		checker := factory.ForTable(name, source.TableInfo(), view)
		if err := checker.CheckAdd(source.TableInfo(), registry.AddedRows(), dbtype.InitiallyDeferred); err != nil {
			return nil, err
		}
		if err := checker.CheckRemove(source.TableInfo(), registry.RemovedRows(), dbtype.InitiallyDeferred); err != nil {
			return nil, err
		}
	}

	// (vii) Fire deferred events (queued; only delivered after (viii)).
	for name, registry := range touched {
		source, ok := p.catalog.Lookup(name)
		if !ok {
			continue
		}
		notifications = append(notifications, Notification{
			TableName: name,
			TableID:   source.TableID(),
			Added:     registry.AddedRows(),
			Removed:   registry.RemovedRows(),
		})
	}

	// (viii) Publish. CommitTransactionChange mutates each source's
	// in-memory row bitmap before SyncStateStore/FlushVisible below touch
	// disk; if one of those later calls fails, the already-applied
	// sources are not rolled back — stage (ix)'s cleanup only marks the
	// transaction Aborted, it does not undo a committed row bitmap. A
	// state-store write failure here is treated as fatal to the process,
	// not a retryable per-commit error.
	newCommitID := p.commitID + 1
	for name, registry := range touched {
		source, ok := p.catalog.Lookup(name)
		if !ok {
			continue
		}
		view := mergedViews[name]
		source.CommitTransactionChange(newCommitID, registry, view.IndexSet())
	}
	if len(created) > 0 || len(dropped) > 0 {
		for name := range dropped {
			if source, ok := p.catalog.Lookup(name); ok {
				if err := p.catalog.SyncStateStore(name, source.TableID()); err != nil {
					return nil, err
				}
				p.catalog.Unregister(name)
			}
		}
		if len(created) > 0 {
			if err := p.catalog.FlushVisible(); err != nil {
				return nil, err
			}
		}
	}
	p.objectLog = append(p.objectLog, ObjectCommitState{
		CommitID: newCommitID,
		Created:  tx.CreatedObjects(),
		Dropped:  tx.DroppedObjects(),
	})
	p.commitID = newCommitID
	published = true

	return notifications, nil
}

func (p *Pipeline) objectNamesSince(begin int64) (created, dropped map[string]bool) {
	created = make(map[string]bool)
	dropped = make(map[string]bool)
	for _, entry := range p.objectLog {
		if entry.CommitID < begin {
			continue
		}
		for _, name := range entry.Created {
			created[name] = true
		}
		for _, name := range entry.Dropped {
			dropped[name] = true
		}
	}
	return created, dropped
}

func setOf(names []string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out
}
