// Package txn implements the per-session unit of work binding a
// commit-id snapshot, the set of tables visible to it, per-touched-table
// mutable views with their own event registries, and the bookkeeping
// the commit pipeline needs (created/dropped objects, constraint-altered
// tables, read set for dirty-select checking).
//
// Field layout and the RWMutex-guarded accessor style generalize a
// single key/value read-write set up to a table-granular visible-table
// map.
package txn

import (
	"fmt"
	"sync"

	"github.com/kasuganosora/relcore/internal/dbtype"
	"github.com/kasuganosora/relcore/internal/eventlog"
	"github.com/kasuganosora/relcore/internal/indexset"
	"github.com/kasuganosora/relcore/internal/tablesource"
)

// VisibleTable is one entry of a transaction's visible-table map: the
// table's persistent source plus the index-set snapshot this transaction
// sees, taken when the transaction began.
type VisibleTable struct {
	Source  *tablesource.Source
	Indexes *indexset.Set
}

// touched is the per-transaction state accumulated for one table once it
// has been opened mutably: its registry and the mutable view bound to it.
type touched struct {
	registry *eventlog.Registry
	view     *tablesource.MutableTable
}

// DeferredEvent is an event raised during the transaction but only
// delivered to its subscribers on successful commit.
type DeferredEvent struct {
	TableName dbtype.ObjectName
	Payload   any
}

// ConstraintChecker is the interface the constraint package implements;
// Transaction depends on it only as an interface to avoid a package cycle
// between txn and constraint.
type ConstraintChecker interface {
	CheckAdd(info *dbtype.TableInfo, rows []int64, deferrability dbtype.Deferrability) error
	CheckRemove(info *dbtype.TableInfo, rows []int64, deferrability dbtype.Deferrability) error
}

// Status is the transaction state machine: Open -> Committing ->
// {Committed | Aborted}, or Open -> RollingBack -> Aborted. Once the
// status leaves Open, GetMutableTable fails with ErrNotOpen; the other
// setters of Transaction do not check the status.
type Status int

const (
	Open Status = iota
	Committing
	RollingBack
	Committed
	Aborted
)

// Transaction is the per-session unit of work. Isolation is fixed at
// Serializable.
type Transaction struct {
	mu sync.RWMutex

	commitID int64 // snapshot version as of begin
	readOnly bool
	status   Status

	visible map[string]*VisibleTable // table name -> visible entry
	touched map[string]*touched      // table name -> mutable view state

	readSet map[string]bool // tables read from, for dirty-select checking

	createdObjects          map[string]bool
	droppedObjects          map[string]bool
	constraintAlteredTables map[int64]bool

	events []DeferredEvent
}

// New begins a transaction as of commitID, with visible bound to the
// table state store's visible-table list at that point.
func New(commitID int64, visible map[string]*VisibleTable) *Transaction {
	if visible == nil {
		visible = make(map[string]*VisibleTable)
	}
	return &Transaction{
		commitID:                commitID,
		visible:                 visible,
		touched:                 make(map[string]*touched),
		readSet:                 make(map[string]bool),
		createdObjects:          make(map[string]bool),
		droppedObjects:          make(map[string]bool),
		constraintAlteredTables: make(map[int64]bool),
	}
}

// CommitID returns the snapshot version this transaction began at.
func (t *Transaction) CommitID() int64 {
	return t.commitID
}

// Status returns the current state-machine status.
func (t *Transaction) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// SetStatus transitions the transaction to status. Callers (the commit
// pipeline, session rollback) are responsible for only making legal
// transitions; this setter does not itself validate the state graph.
func (t *Transaction) SetStatus(status Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = status
}

// ReadOnly reports the current read-only flag.
func (t *Transaction) ReadOnly() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.readOnly
}

// SetReadOnly sets the read-only flag. Once set, GetMutableTable fails
// with ErrReadOnly; RemoveVisibleTable, UpdateVisibleTable, the Mark*
// methods and RaiseEvent do not check the flag.
func (t *Transaction) SetReadOnly(readOnly bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readOnly = readOnly
}

// GetTable returns a read-only visible-table entry, recording the access
// in the read set for dirty-select checking.
func (t *Transaction) GetTable(name string) (*VisibleTable, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	vt, ok := t.visible[name]
	if !ok {
		return nil, &ErrTableNotVisible{Name: name}
	}
	t.readSet[name] = true
	return vt, nil
}

// GetMutableTable returns the mutable view for name, registering a fresh
// registry on first call within this transaction.
func (t *Transaction) GetMutableTable(name string) (*tablesource.MutableTable, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.readOnly {
		return nil, ErrReadOnly
	}
	if t.status != Open {
		return nil, &ErrNotOpen{Status: t.status}
	}
	vt, ok := t.visible[name]
	if !ok {
		return nil, &ErrTableNotVisible{Name: name}
	}
	if tch, ok := t.touched[name]; ok {
		return tch.view, nil
	}
	reg := eventlog.New()
	view := vt.Source.GetMutableTable(reg)
	t.touched[name] = &touched{registry: reg, view: view}
	return view, nil
}

// RemoveVisibleTable drops name from the visible-table map — used when a
// DROP TABLE takes effect within this transaction.
func (t *Transaction) RemoveVisibleTable(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.visible, name)
	delete(t.touched, name)
}

// UpdateVisibleTable replaces the visible entry for name with a new index
// snapshot — used after a commit changes the committed index set this
// transaction should see on its next access (e.g. following a DDL change
// it issued itself).
func (t *Transaction) UpdateVisibleTable(name string, source *tablesource.Source, indexes *indexset.Set) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.visible[name] = &VisibleTable{Source: source, Indexes: indexes}
}

// MarkCreated records name as created by this transaction.
func (t *Transaction) MarkCreated(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.createdObjects[name] = true
}

// MarkDropped records name as dropped by this transaction.
func (t *Transaction) MarkDropped(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.droppedObjects[name] = true
}

// MarkConstraintsAltered records tableID as having had its constraints
// altered by this transaction, and stamps the touched registry (if any)
// with the ConstraintsAltered marker.
func (t *Transaction) MarkConstraintsAltered(tableID int64, tableName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.constraintAlteredTables[tableID] = true
	if tch, ok := t.touched[tableName]; ok {
		tch.registry.RecordConstraintsAltered()
	}
}

// CreatedObjects, DroppedObjects and ConstraintAlteredTables return
// snapshots of the corresponding accumulated sets.
func (t *Transaction) CreatedObjects() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return keysOf(t.createdObjects)
}

func (t *Transaction) DroppedObjects() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return keysOf(t.droppedObjects)
}

func (t *Transaction) ConstraintAlteredTables() []int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]int64, 0, len(t.constraintAlteredTables))
	for id := range t.constraintAlteredTables {
		out = append(out, id)
	}
	return out
}

// ReadSet returns the table names this transaction has read from.
func (t *Transaction) ReadSet() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return keysOf(t.readSet)
}

// TouchedRegistries returns every (table name, registry) pair for tables
// this transaction opened mutably — the input the commit pipeline needs.
func (t *Transaction) TouchedRegistries() map[string]*eventlog.Registry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]*eventlog.Registry, len(t.touched))
	for name, tch := range t.touched {
		out[name] = tch.registry
	}
	return out
}

// TouchedView returns the mutable view for a table already opened
// mutably, if any.
func (t *Transaction) TouchedView(name string) (*tablesource.MutableTable, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tch, ok := t.touched[name]
	if !ok {
		return nil, false
	}
	return tch.view, true
}

// CheckAddConstraintViolations delegates to checker for the given added
// rows and deferrability, returning a wrapped error identifying the table
// on failure.
func (t *Transaction) CheckAddConstraintViolations(checker ConstraintChecker, info *dbtype.TableInfo, rows []int64, deferrability dbtype.Deferrability) error {
	if err := checker.CheckAdd(info, rows, deferrability); err != nil {
		return fmt.Errorf("add constraint violation on %s: %w", info.Name, err)
	}
	return nil
}

// CheckRemoveConstraintViolations mirrors CheckAddConstraintViolations for
// removed rows.
func (t *Transaction) CheckRemoveConstraintViolations(checker ConstraintChecker, info *dbtype.TableInfo, rows []int64, deferrability dbtype.Deferrability) error {
	if err := checker.CheckRemove(info, rows, deferrability); err != nil {
		return fmt.Errorf("remove constraint violation on %s: %w", info.Name, err)
	}
	return nil
}

// RaiseEvent queues an event; it is only delivered to subscribers once the
// transaction commits successfully.
func (t *Transaction) RaiseEvent(e DeferredEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, e)
}

// PendingEvents returns the queued events, in raise order.
func (t *Transaction) PendingEvents() []DeferredEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]DeferredEvent(nil), t.events...)
}

func keysOf(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
