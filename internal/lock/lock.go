// Package lock implements whole-table Shared/Exclusive locking with
// deterministic sorted-table-id acquisition order for deadlock freedom,
// and a Handle owned by the caller's session and released at statement
// or transaction end.
//
// Acquisition blocks over a mutex plus per-table waiter channels: a
// mutex guards the bookkeeping, and callers that can't proceed
// immediately wait on a channel that a releasing holder closes, rather
// than busy polling.
package lock

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Mode is the lock mode requested on a table.
type Mode int

const (
	Shared Mode = iota
	Exclusive
)

// tableLock tracks the holders of one table's lock.
type tableLock struct {
	mode     Mode
	sharedN  int
	waiters  []chan struct{}
}

// Manager grants and tracks whole-table locks.
type Manager struct {
	mu     sync.Mutex
	tables map[int64]*tableLock
}

// New creates an empty Manager.
func New() *Manager {
	return &Manager{tables: make(map[int64]*tableLock)}
}

// request is one (table-id, mode) pair to acquire as part of one Lock call.
type request struct {
	tableID int64
	mode    Mode
}

// Handle represents a set of held locks, released by calling Release;
// calls after the first are no-ops. ID is an opaque token
// a session can log or hand back to the caller without exposing the
// manager's internals.
type Handle struct {
	ID       uuid.UUID
	mgr      *Manager
	acquired []request
	mu       sync.Mutex
	released bool
}

// Lock acquires Exclusive locks on every table id in write and Shared
// locks on every id in read, in deterministic sorted-table-id order
// across both sets combined, blocking until all are granted or ctx is
// done. On a write+read overlap for the same table, Exclusive wins.
func (m *Manager) Lock(ctx context.Context, write, read []int64) (*Handle, error) {
	want := map[int64]Mode{}
	for _, id := range read {
		want[id] = Shared
	}
	for _, id := range write {
		want[id] = Exclusive
	}
	ids := make([]int64, 0, len(want))
	for id := range want {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	h := &Handle{ID: uuid.New(), mgr: m}
	for _, id := range ids {
		if err := m.acquireOne(ctx, id, want[id]); err != nil {
			h.releaseAcquiredSoFar()
			return nil, err
		}
		h.acquired = append(h.acquired, request{tableID: id, mode: want[id]})
	}
	return h, nil
}

func (m *Manager) acquireOne(ctx context.Context, id int64, mode Mode) error {
	for {
		m.mu.Lock()
		tl, ok := m.tables[id]
		if !ok {
			tl = &tableLock{}
			m.tables[id] = tl
		}
		if canGrant(tl, mode) {
			grant(tl, mode)
			m.mu.Unlock()
			return nil
		}
		wait := make(chan struct{})
		tl.waiters = append(tl.waiters, wait)
		m.mu.Unlock()

		select {
		case <-wait:
			// retry the grant check; another release may have beaten us to it
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func canGrant(tl *tableLock, mode Mode) bool {
	if tl.sharedN == 0 && tl.mode != Exclusive {
		return true
	}
	if mode == Shared && tl.mode != Exclusive {
		return true
	}
	return false
}

func grant(tl *tableLock, mode Mode) {
	if mode == Exclusive {
		tl.mode = Exclusive
	} else {
		tl.mode = Shared
		tl.sharedN++
	}
}

func (m *Manager) releaseOne(id int64, mode Mode) {
	m.mu.Lock()
	tl, ok := m.tables[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	if mode == Exclusive {
		tl.mode = Shared
		tl.sharedN = 0
	} else {
		tl.sharedN--
		if tl.sharedN <= 0 {
			tl.sharedN = 0
			tl.mode = Shared
		}
	}
	waiters := tl.waiters
	tl.waiters = nil
	m.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
}

// Release releases every lock this handle holds. Idempotent.
func (h *Handle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return
	}
	h.released = true
	h.releaseAcquiredSoFar()
}

func (h *Handle) releaseAcquiredSoFar() {
	for i := len(h.acquired) - 1; i >= 0; i-- {
		r := h.acquired[i]
		h.mgr.releaseOne(r.tableID, r.mode)
	}
	h.acquired = nil
}
