package store

import (
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCreateAndReadArea(t *testing.T) {
	s, err := Open(openTestDB(t))
	require.NoError(t, err)
	defer s.Close()

	area, err := s.CreateArea(16)
	require.NoError(t, err)

	require.NoError(t, area.Write([]byte("hello area")))

	got, err := s.GetArea(area.ID, false)
	require.NoError(t, err)
	data, err := got.Read()
	require.NoError(t, err)
	require.Equal(t, "hello area", string(data))
}

func TestDeleteAreaIsNotFoundAfterwards(t *testing.T) {
	s, err := Open(openTestDB(t))
	require.NoError(t, err)
	defer s.Close()

	area, err := s.CreateArea(4)
	require.NoError(t, err)
	require.NoError(t, s.DeleteArea(area.ID))

	_, err = s.GetArea(area.ID, false)
	require.Error(t, err)
	var notFound *ErrAreaNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestAreaIDsNeverReused(t *testing.T) {
	s, err := Open(openTestDB(t))
	require.NoError(t, err)
	defer s.Close()

	seen := make(map[AreaID]bool)
	for i := 0; i < 50; i++ {
		a, err := s.CreateArea(1)
		require.NoError(t, err)
		require.False(t, seen[a.ID], "area id %d reused", a.ID)
		seen[a.ID] = true
	}
}

func TestWithGroupAtomicWrite(t *testing.T) {
	s, err := Open(openTestDB(t))
	require.NoError(t, err)
	defer s.Close()

	a1, err := s.CreateArea(4)
	require.NoError(t, err)
	a2, err := s.CreateArea(4)
	require.NoError(t, err)

	s.Lock()
	err = s.WithGroup(func(g *Group) error {
		if err := g.Write(a1.ID, []byte("one")); err != nil {
			return err
		}
		return g.Write(a2.ID, []byte("two"))
	})
	s.Unlock()
	require.NoError(t, err)

	d1, err := a1.Read()
	require.NoError(t, err)
	d2, err := a2.Read()
	require.NoError(t, err)
	require.Equal(t, "one", string(d1))
	require.Equal(t, "two", string(d2))
}
