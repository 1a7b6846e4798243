// Package session implements the embedder-facing entry point that
// begins/commits/rolls back transactions and wraps DDL (create/drop
// table, plus the sequence/view/trigger object kinds) with a privilege
// check as a precondition of publishing.
//
// Engine is one struct gathering the collaborators Begin/Commit/Rollback
// need (Catalog, Pipeline, lock.Manager, a security.Checker) instead of
// a package-level singleton, so an embedder can open more than one
// database handle in the same process without them stepping on each
// other.
package session

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/kasuganosora/relcore/internal/commit"
	"github.com/kasuganosora/relcore/internal/config"
	"github.com/kasuganosora/relcore/internal/dbtype"
	"github.com/kasuganosora/relcore/internal/lock"
	"github.com/kasuganosora/relcore/internal/security"
	"github.com/kasuganosora/relcore/internal/statestore"
	"github.com/kasuganosora/relcore/internal/tablesource"
	"github.com/kasuganosora/relcore/internal/txn"
)

// TriggerEvent is the row operation a trigger fires on.
type TriggerEvent int

const (
	TriggerInsert TriggerEvent = iota
	TriggerDelete
)

// TriggerTiming is when a trigger fires relative to the row event. Only
// After is currently wired to the commit pipeline's notifications; Before
// exists so a definition can be registered ahead of a future statement
// executor calling it pre-mutation.
type TriggerTiming int

const (
	TriggerBefore TriggerTiming = iota
	TriggerAfter
)

// TriggerDefinition is a DDL-visible trigger. The action itself is an
// opaque Go closure rather than an interpreted trigger body: statement
// execution and expression evaluation are out of this core's scope, so
// the embedder supplies the behavior and the session only guarantees it
// runs once per affected row, attached to the named table.
type TriggerDefinition struct {
	Name   string
	Table  string
	Event  TriggerEvent
	Timing TriggerTiming
	Action func(ctx context.Context, tx *txn.Transaction, row int64) error
}

// Engine is one open database handle.
type Engine struct {
	cfg    *config.Config
	logger *log.Logger

	catalog  *commit.Catalog
	pipeline *commit.Pipeline
	locks    *lock.Manager
	security security.Checker
	state    *statestore.Store

	mu        sync.RWMutex
	sequences map[string]*tablesource.SequenceState
	views     map[string]*tablesource.ViewDefinition
	triggers  map[string][]TriggerDefinition
}

// NewEngine wires a fresh Engine around an already-opened table state
// store. checker may be nil, in which case every privilege check passes —
// suitable for embedders that haven't set up user/role security at all.
// Warnings (lock contention, commit conflicts, sequence exhaustion) go to
// log.Default() unless SetLogger overrides it.
func NewEngine(cfg *config.Config, state *statestore.Store, checker security.Checker) *Engine {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	catalog := commit.NewCatalog(state)
	return &Engine{
		cfg:       cfg,
		logger:    log.Default(),
		catalog:   catalog,
		pipeline:  commit.NewPipeline(commit.Config{ErrorOnDirtySelect: cfg.Commit.ErrorOnDirtySelect}, catalog),
		locks:     lock.New(),
		security:  checker,
		state:     state,
		sequences: make(map[string]*tablesource.SequenceState),
		views:     make(map[string]*tablesource.ViewDefinition),
		triggers:  make(map[string][]TriggerDefinition),
	}
}

// SetLogger overrides the Engine's warning logger. Passing nil silences
// warnings entirely.
func (e *Engine) SetLogger(logger *log.Logger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logger = logger
}

func (e *Engine) warnf(format string, args ...any) {
	e.mu.RLock()
	logger := e.logger
	e.mu.RUnlock()
	if logger != nil {
		logger.Printf("[relcore-warn] "+format, args...)
	}
}

// Catalog exposes the underlying table-source catalog, e.g. for restoring
// sources read back from the state store at open time.
func (e *Engine) Catalog() *commit.Catalog { return e.catalog }

func (e *Engine) checkPrivilege(user string, objectType security.ObjectType, objectName string, priv security.Privilege) error {
	if e.security == nil {
		return nil
	}
	if e.security.UserHasPrivilege(user, objectType, objectName, priv) {
		return nil
	}
	return &security.ErrPrivilegeDenied{User: user, ObjectType: objectType, ObjectName: objectName, Privilege: priv}
}

// BeginTransaction starts a new transaction as of the pipeline's current
// commit-id, snapshotting the catalog's visible-table map. Isolation is
// fixed at Serializable — there is no level parameter because there is
// nothing else to pass.
func (e *Engine) BeginTransaction() *txn.Transaction {
	return txn.New(e.pipeline.CurrentCommitID(), e.catalog.VisibleTableSnapshot())
}

// GetTable returns a read-only visible-table entry after checking the
// user's SELECT privilege.
func (e *Engine) GetTable(tx *txn.Transaction, user, name string) (*txn.VisibleTable, error) {
	if err := e.checkPrivilege(user, security.ObjectTable, name, security.PrivSelect); err != nil {
		return nil, err
	}
	return tx.GetTable(name)
}

// GetMutableTable returns a mutable view after checking priv (INSERT,
// UPDATE, or DELETE, as appropriate to the caller's operation).
func (e *Engine) GetMutableTable(tx *txn.Transaction, user, name string, priv security.Privilege) (*tablesource.MutableTable, error) {
	if err := e.checkPrivilege(user, security.ObjectTable, name, priv); err != nil {
		return nil, err
	}
	return tx.GetMutableTable(name)
}

// CreateTable allocates a new table source and binds it into tx's
// visible-table map, to be published when tx commits.
func (e *Engine) CreateTable(tx *txn.Transaction, user string, info *dbtype.TableInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}
	name := info.Name.String()
	if err := e.checkPrivilege(user, security.ObjectSchema, name, security.PrivCreate); err != nil {
		return err
	}
	if _, ok := e.catalog.Lookup(name); ok {
		return fmt.Errorf("session: table %s already exists", name)
	}
	source, err := e.catalog.CreateTable(name, info)
	if err != nil {
		return err
	}
	tx.MarkCreated(name)
	tx.UpdateVisibleTable(name, source, source.IndexSnapshot())
	return nil
}

// DropTable marks name as dropped in tx, hiding it from tx's own
// visible-table map immediately; the drop only becomes visible to other
// transactions once tx commits.
func (e *Engine) DropTable(tx *txn.Transaction, user, name string) error {
	if err := e.checkPrivilege(user, security.ObjectTable, name, security.PrivDrop); err != nil {
		return err
	}
	if _, ok := e.catalog.Lookup(name); !ok {
		return fmt.Errorf("session: table %s does not exist", name)
	}
	tx.MarkDropped(name)
	tx.RemoveVisibleTable(name)
	return nil
}

// CreateSequence registers a new sequence and its state-store entry,
// effective immediately — sequences advance outside MVCC visibility
// entirely; numbering gaps from an aborted or never-committed Next call
// are acceptable, so sequence DDL isn't itself transactional.
func (e *Engine) CreateSequence(user, name string, start, increment, min, max int64, cycle bool) (*tablesource.SequenceState, error) {
	if err := e.checkPrivilege(user, security.ObjectSequence, name, security.PrivCreate); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.sequences[name]; ok {
		return nil, fmt.Errorf("session: sequence %s already exists", name)
	}
	seq := tablesource.NewSequenceState(start, increment, min, max, cycle)
	id, err := e.state.NextTableID()
	if err != nil {
		return nil, err
	}
	e.state.AddVisible(statestore.TableState{TableID: id, Name: name, Kind: statestore.KindSequence})
	if err := e.state.Flush(); err != nil {
		return nil, err
	}
	e.sequences[name] = seq
	return seq, nil
}

// DropSequence removes a sequence and moves its state-store entry from the
// visible list to the pending-delete list.
func (e *Engine) DropSequence(user, name string) error {
	if err := e.checkPrivilege(user, security.ObjectSequence, name, security.PrivDrop); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.sequences[name]; !ok {
		return fmt.Errorf("session: sequence %s does not exist", name)
	}
	var entry statestore.TableState
	for _, ts := range e.state.Visible() {
		if ts.Name == name {
			entry = ts
			break
		}
	}
	if err := e.state.RemoveVisible(name); err != nil {
		return err
	}
	e.state.AddDelete(entry)
	if err := e.state.Flush(); err != nil {
		return err
	}
	delete(e.sequences, name)
	return nil
}

// NextSequenceValue advances name and returns its new current value.
func (e *Engine) NextSequenceValue(user, name string) (int64, error) {
	if err := e.checkPrivilege(user, security.ObjectSequence, name, security.PrivUpdate); err != nil {
		return 0, err
	}
	e.mu.RLock()
	seq, ok := e.sequences[name]
	e.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("session: sequence %s does not exist", name)
	}
	v, err := seq.Next()
	if err != nil {
		e.warnf("sequence %s exhausted: %v", name, err)
	}
	return v, err
}

// CreateView registers a view definition and its state-store entry.
func (e *Engine) CreateView(user string, def *tablesource.ViewDefinition) error {
	name := def.Name.String()
	if err := e.checkPrivilege(user, security.ObjectView, name, security.PrivCreate); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.views[name]; ok {
		return fmt.Errorf("session: view %s already exists", name)
	}
	id, err := e.state.NextTableID()
	if err != nil {
		return err
	}
	e.state.AddVisible(statestore.TableState{TableID: id, Name: name, Kind: statestore.KindView})
	if err := e.state.Flush(); err != nil {
		return err
	}
	e.views[name] = def
	return nil
}

// DropView removes a view definition and moves its state-store entry from
// the visible list to the pending-delete list.
func (e *Engine) DropView(user, name string) error {
	if err := e.checkPrivilege(user, security.ObjectView, name, security.PrivDrop); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.views[name]; !ok {
		return fmt.Errorf("session: view %s does not exist", name)
	}
	var entry statestore.TableState
	for _, ts := range e.state.Visible() {
		if ts.Name == name {
			entry = ts
			break
		}
	}
	if err := e.state.RemoveVisible(name); err != nil {
		return err
	}
	e.state.AddDelete(entry)
	if err := e.state.Flush(); err != nil {
		return err
	}
	delete(e.views, name)
	return nil
}

// LookupView returns the registered view definition, if any.
func (e *Engine) LookupView(name string) (*tablesource.ViewDefinition, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.views[name]
	return v, ok
}

// CreateTrigger attaches a trigger definition to a table. Triggers are
// runtime-only (not persisted to the state store): they model code the
// embedder registers at startup, not a DDL object a restart needs to
// recover from disk.
func (e *Engine) CreateTrigger(user string, def TriggerDefinition) error {
	if err := e.checkPrivilege(user, security.ObjectTrigger, def.Name, security.PrivCreate); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.triggers[def.Table] = append(e.triggers[def.Table], def)
	return nil
}

// DropTrigger removes a previously registered trigger by name.
func (e *Engine) DropTrigger(user, table, name string) error {
	if err := e.checkPrivilege(user, security.ObjectTrigger, name, security.PrivDrop); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	list := e.triggers[table]
	for i, t := range list {
		if t.Name == name {
			e.triggers[table] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("session: trigger %s not found on table %s", name, table)
}

// Commit acquires whole-table locks over every table tx touched or read,
// then runs the commit pipeline. factory supplies the constraint checker
// for each touched table's merged view — row-level column data lives
// outside this core, so only the embedder knows how to build one.
func (e *Engine) Commit(ctx context.Context, tx *txn.Transaction, factory commit.CheckerFactory) ([]commit.Notification, error) {
	touched := tx.TouchedRegistries()
	write := make([]int64, 0, len(touched))
	for name := range touched {
		if source, ok := e.catalog.Lookup(name); ok {
			write = append(write, source.TableID())
		}
	}
	writeSet := make(map[int64]bool, len(write))
	for _, id := range write {
		writeSet[id] = true
	}
	var read []int64
	for _, name := range tx.ReadSet() {
		if _, ok := touched[name]; ok {
			continue
		}
		source, ok := e.catalog.Lookup(name)
		if !ok {
			continue
		}
		if id := source.TableID(); !writeSet[id] {
			read = append(read, id)
		}
	}

	handle, err := e.locks.Lock(ctx, write, read)
	if err != nil {
		e.warnf("commit lock acquisition on %d table(s) did not complete: %v", len(write)+len(read), err)
		return nil, fmt.Errorf("session: acquire commit locks: %w", err)
	}

	notifications, err := e.pipeline.Commit(tx, handle, factory)
	if err != nil {
		e.warnf("commit rejected: %v", err)
		return nil, err
	}
	e.fireAfterTriggers(ctx, tx, notifications)
	return notifications, nil
}

// Rollback discards tx's private writes. Since CommitTransactionChange is
// the only path that mutates committed state, nothing touched by a
// never-committed registry needs undoing beyond the state transition —
// RollbackTransactionChange exists so the call site stays symmetric with
// Commit regardless of which table sources were touched.
func (e *Engine) Rollback(tx *txn.Transaction) {
	tx.SetStatus(txn.RollingBack)
	for name, registry := range tx.TouchedRegistries() {
		if source, ok := e.catalog.Lookup(name); ok {
			source.RollbackTransactionChange(registry)
		}
	}
	tx.SetStatus(txn.Aborted)
}

func (e *Engine) fireAfterTriggers(ctx context.Context, tx *txn.Transaction, notifications []commit.Notification) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, n := range notifications {
		for _, t := range e.triggers[n.TableName] {
			if t.Timing != TriggerAfter || t.Action == nil {
				continue
			}
			switch t.Event {
			case TriggerInsert:
				for _, row := range n.Added {
					_ = t.Action(ctx, tx, row)
				}
			case TriggerDelete:
				for _, row := range n.Removed {
					_ = t.Action(ctx, tx, row)
				}
			}
		}
	}
}
