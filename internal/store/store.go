// Package store implements the paged store: durable, byte-addressable
// "areas" with stable ids, built on Badger the same way a table
// datasource layers over the same KV engine.
package store

import (
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

const areaKeyPrefix = "area:"

// AreaID identifies one allocated area. Ids are handed out by a Badger
// sequence and are never reused, the same guarantee the state store's
// table-id counter makes.
type AreaID uint64

func areaKey(id AreaID) []byte {
	return []byte(fmt.Sprintf("%s%020d", areaKeyPrefix, uint64(id)))
}

// Store is the paged store: Badger supplies the durable byte-addressable
// backing, Store layers the area-id allocator and the coarse lock used to
// batch multi-area header updates atomically.
type Store struct {
	db       *badger.DB
	areaSeq  *badger.Sequence
	latch    sync.Mutex
	deleted  map[AreaID]bool
	deletedM sync.Mutex
}

// Open opens (or creates) a paged store backed by the given Badger handle.
// The caller owns db's lifecycle; Store does not close it.
func Open(db *badger.DB) (*Store, error) {
	seq, err := db.GetSequence([]byte("area-id-seq"), 100)
	if err != nil {
		return nil, fmt.Errorf("store: allocate area-id sequence: %w", err)
	}
	return &Store{
		db:      db,
		areaSeq: seq,
		deleted: make(map[AreaID]bool),
	}, nil
}

// Close releases the area-id sequence. It does not close the underlying DB.
func (s *Store) Close() error {
	if s.areaSeq != nil {
		return s.areaSeq.Release()
	}
	return nil
}

// Area is a handle to one allocated byte range. Areas are addressed by a
// stable AreaID that survives across Store.Close/Open cycles.
type Area struct {
	ID       AreaID
	store    *Store
	writable bool
}

// CreateArea allocates a new, empty, writable area. size is an advisory
// initial-capacity hint; Badger values grow on demand so it is not a hard
// limit the way a fixed-page store would enforce.
func (s *Store) CreateArea(size int) (*Area, error) {
	id, err := s.areaSeq.Next()
	if err != nil {
		return nil, fmt.Errorf("store: next area id: %w", err)
	}
	area := &Area{ID: AreaID(id), store: s, writable: true}
	if err := area.Write(make([]byte, 0, size)); err != nil {
		return nil, err
	}
	return area, nil
}

// GetArea opens an existing area for reading, or read/write when writable
// is true. It fails with ErrAreaNotFound if the area does not exist or has
// been deleted.
func (s *Store) GetArea(id AreaID, writable bool) (*Area, error) {
	s.deletedM.Lock()
	gone := s.deleted[id]
	s.deletedM.Unlock()
	if gone {
		return nil, &ErrAreaNotFound{ID: id}
	}
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(areaKey(id))
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, &ErrAreaNotFound{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("store: get area %d: %w", id, err)
	}
	return &Area{ID: id, store: s, writable: writable}, nil
}

// DeleteArea marks an area for deferred reclamation: the key is removed
// from Badger but the id is remembered as tombstoned for the lifetime of
// this Store so a concurrent GetArea sees a clean not-found rather than a
// resurrected id.
func (s *Store) DeleteArea(id AreaID) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(areaKey(id))
	})
	if err != nil {
		return fmt.Errorf("store: delete area %d: %w", id, err)
	}
	s.deletedM.Lock()
	s.deleted[id] = true
	s.deletedM.Unlock()
	return nil
}

// Lock acquires the store-wide exclusive latch used to batch multi-area
// header rewrites. Holding the latch only serializes writers: each
// Area.Write commits on its own, and only the writes staged through one
// WithGroup call become visible together on recovery.
func (s *Store) Lock() { s.latch.Lock() }

// Unlock releases the latch acquired by Lock.
func (s *Store) Unlock() { s.latch.Unlock() }

// Flush durably commits all pending writes. Once it returns, the contents
// of any area whose write completed beforehand survive a crash.
func (s *Store) Flush() error {
	if err := s.db.Sync(); err != nil {
		return fmt.Errorf("store: flush: %w", err)
	}
	return nil
}

// Read returns the current bytes of the area.
func (a *Area) Read() ([]byte, error) {
	var out []byte
	err := a.store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(areaKey(a.ID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte(nil), val...)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, &ErrAreaNotFound{ID: a.ID}
	}
	if err != nil {
		return nil, fmt.Errorf("store: read area %d: %w", a.ID, err)
	}
	return out, nil
}

// Write overwrites the area's contents. It fails if the area was opened
// read-only.
func (a *Area) Write(data []byte) error {
	if !a.writable {
		return fmt.Errorf("store: area %d is read-only", a.ID)
	}
	err := a.store.db.Update(func(txn *badger.Txn) error {
		return txn.Set(areaKey(a.ID), data)
	})
	if err != nil {
		return fmt.Errorf("store: write area %d: %w", a.ID, err)
	}
	return nil
}

// Group is a set of area writes performed inside one Badger transaction, so
// a caller holding Store's lock can rewrite several areas' headers and have
// them become visible atomically on crash recovery.
type Group struct {
	txn *badger.Txn
}

// Write stages a write to id within the group's transaction.
func (g *Group) Write(id AreaID, data []byte) error {
	return g.txn.Set(areaKey(id), data)
}

// Delete stages a delete within the group's transaction.
func (g *Group) Delete(id AreaID) error {
	return g.txn.Delete(areaKey(id))
}

// WithGroup runs fn inside a single Badger transaction and commits it on
// return. Callers should hold Store.Lock for the duration so the group is
// the sole writer of the areas it touches.
func (s *Store) WithGroup(fn func(*Group) error) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return fn(&Group{txn: txn})
	})
	if err != nil {
		return fmt.Errorf("store: group update: %w", err)
	}
	return nil
}
