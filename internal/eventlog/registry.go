// Package eventlog implements the table event registry: the ordered
// per-(table, transaction) log of row add/remove/update events that the
// commit pipeline replays to detect conflicts and merge changes. The
// shape is an append-only slice of typed events guarded by one mutex,
// plus small derived-query methods; an Update event carries an xmin/xmax-
// style old/new row pairing rather than two independent add and remove
// events, so downstream replay can tell an update apart from an
// unrelated delete-then-insert.
package eventlog

import "sync"

// Kind tags one event in a registry.
type Kind int

const (
	Add Kind = iota
	Remove
	UpdateAdd
	UpdateRemove
	ConstraintsAltered
)

// Event is one entry in a registry. RowNumber is meaningless for
// ConstraintsAltered.
type Event struct {
	Kind      Kind
	RowNumber int64
}

// Registry is the ordered log of events recorded against one table within
// one transaction. UpdateAdd/UpdateRemove always appear as a pair in that
// order, semantically "Remove(old); Add(new)" for constraint checking but
// keeping the old/new identity so FK checks can correlate them.
type Registry struct {
	mu     sync.Mutex
	events []Event
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

// RecordAdd appends an Add event.
func (r *Registry) RecordAdd(row int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Kind: Add, RowNumber: row})
}

// RecordRemove appends a Remove event.
func (r *Registry) RecordRemove(row int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Kind: Remove, RowNumber: row})
}

// RecordUpdate appends the UpdateRemove(old); UpdateAdd(new) pair, in that
// order, for a row update.
func (r *Registry) RecordUpdate(oldRow, newRow int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events,
		Event{Kind: UpdateRemove, RowNumber: oldRow},
		Event{Kind: UpdateAdd, RowNumber: newRow},
	)
}

// RecordConstraintsAltered appends a ConstraintsAltered marker.
func (r *Registry) RecordConstraintsAltered() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Kind: ConstraintsAltered})
}

// Events returns a snapshot copy of the recorded events, in order.
func (r *Registry) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// ConstraintsWereAltered reports whether a ConstraintsAltered marker was
// recorded.
func (r *Registry) ConstraintsWereAltered() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Kind == ConstraintsAltered {
			return true
		}
	}
	return false
}

// AddedRows is the multiset of row numbers from Add and UpdateAdd events.
func (r *Registry) AddedRows() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int64
	for _, e := range r.events {
		if e.Kind == Add || e.Kind == UpdateAdd {
			out = append(out, e.RowNumber)
		}
	}
	return out
}

// RemovedRows is the multiset of row numbers from Remove and UpdateRemove
// events.
func (r *Registry) RemovedRows() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int64
	for _, e := range r.events {
		if e.Kind == Remove || e.Kind == UpdateRemove {
			out = append(out, e.RowNumber)
		}
	}
	return out
}

// IsEmpty reports whether no data events (as opposed to markers) were
// recorded.
func (r *Registry) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Kind != ConstraintsAltered {
			return false
		}
	}
	return true
}

// TestCommitClash reports whether two registries clash: they clash iff
// one's removed-rows set intersects the other's added-or-removed set
// (pure inserts never clash; two updates/deletes of the same physical
// row do). Returns the first clashing row number found, if any.
func (r *Registry) TestCommitClash(other *Registry) (int64, bool) {
	mine := r.touchedForClash()
	theirsRemoved := other.RemovedRows()
	if row, ok := firstIntersection(theirsRemoved, mine); ok {
		return row, true
	}
	theirs := other.touchedForClash()
	mineRemoved := r.RemovedRows()
	if row, ok := firstIntersection(mineRemoved, theirs); ok {
		return row, true
	}
	return 0, false
}

// touchedForClash is added-rows ∪ removed-rows for this registry.
func (r *Registry) touchedForClash() map[int64]bool {
	set := make(map[int64]bool)
	for _, row := range r.AddedRows() {
		set[row] = true
	}
	for _, row := range r.RemovedRows() {
		set[row] = true
	}
	return set
}

func firstIntersection(rows []int64, set map[int64]bool) (int64, bool) {
	for _, row := range rows {
		if set[row] {
			return row, true
		}
	}
	return 0, false
}
