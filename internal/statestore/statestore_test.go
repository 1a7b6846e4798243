package statestore

import (
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/relcore/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	paged, err := store.Open(db)
	require.NoError(t, err)
	t.Cleanup(func() { paged.Close() })
	return paged
}

func TestCreateOpenRoundTrip(t *testing.T) {
	paged := newTestStore(t)

	header, err := Create(paged)
	require.NoError(t, err)

	s, err := Open(paged, header)
	require.NoError(t, err)
	require.Empty(t, s.Visible())
	require.Empty(t, s.Deleted())

	id, err := s.NextTableID()
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	s.AddVisible(TableState{TableID: id, Name: "accounts"})
	require.NoError(t, s.Flush())

	reopened, err := Open(paged, header)
	require.NoError(t, err)
	require.Equal(t, []TableState{{TableID: id, Name: "accounts"}}, reopened.Visible())
}

func TestFlushThenOpenIsIdempotent(t *testing.T) {
	paged := newTestStore(t)
	header, err := Create(paged)
	require.NoError(t, err)

	s, err := Open(paged, header)
	require.NoError(t, err)
	id, err := s.NextTableID()
	require.NoError(t, err)
	s.AddVisible(TableState{TableID: id, Name: "t1"})
	s.AddDelete(TableState{TableID: id + 100, Name: "old"})
	require.NoError(t, s.Flush())

	first, err := Open(paged, header)
	require.NoError(t, err)
	require.NoError(t, s.Flush()) // second flush is a no-op, nothing dirty
	second, err := Open(paged, header)
	require.NoError(t, err)

	require.Equal(t, first.Visible(), second.Visible())
	require.Equal(t, first.Deleted(), second.Deleted())
}

func TestNextTableIDMonotonicAndNeverReused(t *testing.T) {
	paged := newTestStore(t)
	header, err := Create(paged)
	require.NoError(t, err)
	s, err := Open(paged, header)
	require.NoError(t, err)

	var last int64
	for i := 0; i < 20; i++ {
		id, err := s.NextTableID()
		require.NoError(t, err)
		require.Greater(t, id, last)
		last = id
	}
}

func TestRemoveVisibleNotFound(t *testing.T) {
	paged := newTestStore(t)
	header, err := Create(paged)
	require.NoError(t, err)
	s, err := Open(paged, header)
	require.NoError(t, err)

	err = s.RemoveVisible("nope")
	require.Error(t, err)
	var notFound *ErrNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestVisibleAndDeletePartition(t *testing.T) {
	paged := newTestStore(t)
	header, err := Create(paged)
	require.NoError(t, err)
	s, err := Open(paged, header)
	require.NoError(t, err)

	id, err := s.NextTableID()
	require.NoError(t, err)
	s.AddVisible(TableState{TableID: id, Name: "t"})
	require.NoError(t, s.Flush())

	require.NoError(t, s.RemoveVisible("t"))
	s.AddDelete(TableState{TableID: id, Name: "t"})
	require.NoError(t, s.Flush())

	require.Empty(t, s.Visible())
	require.Equal(t, []TableState{{TableID: id, Name: "t"}}, s.Deleted())
}
