// Package statestore implements the table state store: the persistent
// visible-table list, pending-delete list, and monotonic table-id
// counter, layered on the paged store the same way a table-metadata
// cache layers over its underlying key/value engine.
package statestore

import (
	"encoding/binary"
	"fmt"
	"sync"
	"unicode/utf16"

	"github.com/kasuganosora/relcore/internal/store"
)

const (
	magic          uint32 = 0x0BAC8001
	layoutVersion  uint32 = 0
	headerAreaSize        = 32
)

// TableState is one entry in the visible or pending-delete list: an
// object-id and the name it names. Kind distinguishes tables from the
// other DDL-visible object kinds (sequences, views) that share this same
// visible/delete partition; the zero value "" means a table, so existing
// literals that don't set Kind keep meaning what they always meant.
type TableState struct {
	TableID int64
	Name    string
	Kind    string
}

// Object kinds a TableState.Kind can hold. KindTable is the zero value.
const (
	KindTable    = ""
	KindSequence = "SEQUENCE"
	KindView     = "VIEW"
)

// HeaderID identifies a state store's header area; it is the handle a
// caller persists to find the store again after a restart.
type HeaderID = store.AreaID

// Store is the table state store. One Store instance belongs to one
// database handle; there are no ambient singletons.
type Store struct {
	paged *store.Store

	mu           sync.Mutex
	headerID     store.AreaID
	nextTableID  int64
	visibleID    store.AreaID
	deleteID     store.AreaID
	visible      []TableState
	deleted      []TableState
	visibleDirty bool
	deletedDirty bool
}

// Create allocates a fresh, empty Table State Store: two empty list areas
// and a header, and returns the header's area id for later Open calls.
func Create(paged *store.Store) (HeaderID, error) {
	visibleArea, err := paged.CreateArea(64)
	if err != nil {
		return 0, fmt.Errorf("statestore: create visible list area: %w", err)
	}
	deleteArea, err := paged.CreateArea(64)
	if err != nil {
		return 0, fmt.Errorf("statestore: create delete list area: %w", err)
	}
	if err := visibleArea.Write(encodeList(nil)); err != nil {
		return 0, err
	}
	if err := deleteArea.Write(encodeList(nil)); err != nil {
		return 0, err
	}

	headerArea, err := paged.CreateArea(headerAreaSize)
	if err != nil {
		return 0, fmt.Errorf("statestore: create header area: %w", err)
	}
	hdr := encodeHeader(0, visibleArea.ID, deleteArea.ID)
	if err := headerArea.Write(hdr); err != nil {
		return 0, err
	}
	return headerArea.ID, nil
}

// Open reads back a Table State Store previously created with Create,
// validating the header's magic and version.
func Open(paged *store.Store, header HeaderID) (*Store, error) {
	headerArea, err := paged.GetArea(header, true)
	if err != nil {
		return nil, fmt.Errorf("statestore: open header: %w", err)
	}
	hdrBytes, err := headerArea.Read()
	if err != nil {
		return nil, err
	}
	nextID, visibleID, deleteID, err := decodeHeader(hdrBytes)
	if err != nil {
		return nil, err
	}

	visibleArea, err := paged.GetArea(visibleID, false)
	if err != nil {
		return nil, fmt.Errorf("statestore: open visible list: %w", err)
	}
	visibleBytes, err := visibleArea.Read()
	if err != nil {
		return nil, err
	}
	visible, err := decodeList(visibleBytes)
	if err != nil {
		return nil, fmt.Errorf("statestore: decode visible list: %w", err)
	}

	deleteArea, err := paged.GetArea(deleteID, false)
	if err != nil {
		return nil, fmt.Errorf("statestore: open delete list: %w", err)
	}
	deleteBytes, err := deleteArea.Read()
	if err != nil {
		return nil, err
	}
	deleted, err := decodeList(deleteBytes)
	if err != nil {
		return nil, fmt.Errorf("statestore: decode delete list: %w", err)
	}

	return &Store{
		paged:       paged,
		headerID:    header,
		nextTableID: nextID,
		visibleID:   visibleID,
		deleteID:    deleteID,
		visible:     visible,
		deleted:     deleted,
	}, nil
}

// NextTableID increments the table-id counter under the store lock, writes
// it back immediately, and flushes — so a crash between the bump and the
// list flush leaves the counter advanced (safe: ids are never recycled)
// rather than losing the increment.
func (s *Store) NextTableID() (int64, error) {
	s.paged.Lock()
	defer s.paged.Unlock()

	s.mu.Lock()
	s.nextTableID++
	id := s.nextTableID
	visibleID, deleteID := s.visibleID, s.deleteID
	s.mu.Unlock()

	hdr := encodeHeader(id, visibleID, deleteID)
	err := s.paged.WithGroup(func(g *store.Group) error {
		return g.Write(s.headerID, hdr)
	})
	if err != nil {
		return 0, fmt.Errorf("statestore: persist next table id: %w", err)
	}
	if err := s.paged.Flush(); err != nil {
		return 0, err
	}
	return id, nil
}

// AddVisible appends a table state to the in-memory visible list and marks
// it dirty; Flush must be called to persist it.
func (s *Store) AddVisible(ts TableState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = append(s.visible, ts)
	s.visibleDirty = true
}

// AddDelete appends a table state to the in-memory pending-delete list.
func (s *Store) AddDelete(ts TableState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, ts)
	s.deletedDirty = true
}

// RemoveVisible removes a named entry from the visible list, failing with
// ErrNotFound if absent.
func (s *Store) RemoveVisible(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := indexOfName(s.visible, name)
	if idx < 0 {
		return &ErrNotFound{Name: name, List: "visible"}
	}
	s.visible = append(s.visible[:idx], s.visible[idx+1:]...)
	s.visibleDirty = true
	return nil
}

// RemoveDelete removes a named entry from the pending-delete list, failing
// with ErrNotFound if absent — called once a dropped table source has been
// physically reclaimed.
func (s *Store) RemoveDelete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := indexOfName(s.deleted, name)
	if idx < 0 {
		return &ErrNotFound{Name: name, List: "delete"}
	}
	s.deleted = append(s.deleted[:idx], s.deleted[idx+1:]...)
	s.deletedDirty = true
	return nil
}

// Visible returns a snapshot copy of the visible list.
func (s *Store) Visible() []TableState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TableState(nil), s.visible...)
}

// Deleted returns a snapshot copy of the pending-delete list.
func (s *Store) Deleted() []TableState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TableState(nil), s.deleted...)
}

// Flush serializes any dirty list to a new area, repoints the header at
// it under the store lock, deletes the superseded area, and clears the
// dirty flags, all in one call.
func (s *Store) Flush() error {
	s.paged.Lock()
	defer s.paged.Unlock()

	s.mu.Lock()
	visibleDirty, deletedDirty := s.visibleDirty, s.deletedDirty
	visible := append([]TableState(nil), s.visible...)
	deleted := append([]TableState(nil), s.deleted...)
	oldVisibleID, oldDeleteID := s.visibleID, s.deleteID
	nextID := s.nextTableID
	s.mu.Unlock()

	if !visibleDirty && !deletedDirty {
		return nil
	}

	newVisibleID, newDeleteID := oldVisibleID, oldDeleteID
	if visibleDirty {
		area, err := s.paged.CreateArea(64)
		if err != nil {
			return fmt.Errorf("statestore: allocate new visible list area: %w", err)
		}
		if err := area.Write(encodeList(visible)); err != nil {
			return err
		}
		newVisibleID = area.ID
	}
	if deletedDirty {
		area, err := s.paged.CreateArea(64)
		if err != nil {
			return fmt.Errorf("statestore: allocate new delete list area: %w", err)
		}
		if err := area.Write(encodeList(deleted)); err != nil {
			return err
		}
		newDeleteID = area.ID
	}

	hdr := encodeHeader(nextID, newVisibleID, newDeleteID)
	if err := s.paged.WithGroup(func(g *store.Group) error {
		return g.Write(s.headerID, hdr)
	}); err != nil {
		return fmt.Errorf("statestore: persist header: %w", err)
	}
	if err := s.paged.Flush(); err != nil {
		return err
	}

	if visibleDirty && newVisibleID != oldVisibleID {
		if err := s.paged.DeleteArea(oldVisibleID); err != nil {
			return err
		}
	}
	if deletedDirty && newDeleteID != oldDeleteID {
		if err := s.paged.DeleteArea(oldDeleteID); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.visibleID, s.deleteID = newVisibleID, newDeleteID
	s.visibleDirty, s.deletedDirty = false, false
	s.mu.Unlock()
	return nil
}

func indexOfName(list []TableState, name string) int {
	for i, ts := range list {
		if ts.Name == name {
			return i
		}
	}
	return -1
}

func encodeHeader(nextID int64, visibleID, deleteID store.AreaID) []byte {
	buf := make([]byte, headerAreaSize)
	binary.LittleEndian.PutUint32(buf[0:4], magic)
	binary.LittleEndian.PutUint32(buf[4:8], layoutVersion)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(nextID))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(visibleID))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(deleteID))
	return buf
}

func decodeHeader(b []byte) (nextID int64, visibleID, deleteID store.AreaID, err error) {
	if len(b) < headerAreaSize {
		return 0, 0, 0, &ErrCorruption{Reason: "header area too short"}
	}
	gotMagic := binary.LittleEndian.Uint32(b[0:4])
	gotVersion := binary.LittleEndian.Uint32(b[4:8])
	if gotMagic != magic {
		return 0, 0, 0, &ErrCorruption{Reason: fmt.Sprintf("bad magic: %#x", gotMagic)}
	}
	if gotVersion != layoutVersion {
		return 0, 0, 0, &ErrCorruption{Reason: fmt.Sprintf("unsupported version: %d", gotVersion)}
	}
	nextID = int64(binary.LittleEndian.Uint64(b[8:16]))
	visibleID = store.AreaID(binary.LittleEndian.Uint64(b[16:24]))
	deleteID = store.AreaID(binary.LittleEndian.Uint64(b[24:32]))
	return nextID, visibleID, deleteID, nil
}

func encodeList(list []TableState) []byte {
	buf := make([]byte, 0, 12+len(list)*24)
	var head [12]byte
	binary.LittleEndian.PutUint32(head[0:4], layoutVersion)
	binary.LittleEndian.PutUint64(head[4:12], uint64(len(list)))
	buf = append(buf, head[:]...)
	for _, ts := range list {
		var idBuf [8]byte
		binary.LittleEndian.PutUint64(idBuf[:], uint64(ts.TableID))
		buf = append(buf, idBuf[:]...)
		buf = appendUTF16Field(buf, ts.Name)
		buf = appendUTF16Field(buf, ts.Kind)
	}
	return buf
}

func appendUTF16Field(buf []byte, s string) []byte {
	u16 := utf16.Encode([]rune(s))
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(u16)))
	buf = append(buf, lenBuf[:]...)
	for _, u := range u16 {
		var unitBuf [2]byte
		binary.LittleEndian.PutUint16(unitBuf[:], u)
		buf = append(buf, unitBuf[:]...)
	}
	return buf
}

func decodeList(b []byte) ([]TableState, error) {
	if len(b) < 12 {
		return nil, &ErrCorruption{Reason: "list area too short"}
	}
	version := binary.LittleEndian.Uint32(b[0:4])
	if version != layoutVersion {
		return nil, &ErrCorruption{Reason: fmt.Sprintf("unsupported list version: %d", version)}
	}
	count := binary.LittleEndian.Uint64(b[4:12])
	out := make([]TableState, 0, count)
	off := 12
	for i := uint64(0); i < count; i++ {
		if off+8 > len(b) {
			return nil, &ErrCorruption{Reason: "truncated list entry"}
		}
		tableID := int64(binary.LittleEndian.Uint64(b[off : off+8]))
		off += 8
		name, newOff, err := readUTF16Field(b, off)
		if err != nil {
			return nil, err
		}
		off = newOff
		kind, newOff, err := readUTF16Field(b, off)
		if err != nil {
			return nil, err
		}
		off = newOff
		out = append(out, TableState{TableID: tableID, Name: name, Kind: kind})
	}
	return out, nil
}

func readUTF16Field(b []byte, off int) (string, int, error) {
	if off+4 > len(b) {
		return "", 0, &ErrCorruption{Reason: "truncated list entry field length"}
	}
	fieldLen := int(binary.LittleEndian.Uint32(b[off : off+4]))
	off += 4
	if off+fieldLen*2 > len(b) {
		return "", 0, &ErrCorruption{Reason: "truncated list entry field"}
	}
	u16 := make([]uint16, fieldLen)
	for j := 0; j < fieldLen; j++ {
		u16[j] = binary.LittleEndian.Uint16(b[off : off+2])
		off += 2
	}
	return string(utf16.Decode(u16)), off, nil
}
