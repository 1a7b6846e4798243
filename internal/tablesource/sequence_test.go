package tablesource

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSequenceStateNextAdvancesByIncrement(t *testing.T) {
	s := NewSequenceState(1, 1, 1, 100, false)
	v, err := s.Next()
	require.NoError(t, err)
	require.Equal(t, int64(1), v)
	v, err = s.Next()
	require.NoError(t, err)
	require.Equal(t, int64(2), v)
	require.Equal(t, int64(2), s.Current())
}

func TestSequenceStateNextExhaustsWithoutCycle(t *testing.T) {
	s := NewSequenceState(99, 1, 1, 100, false)
	v, err := s.Next()
	require.NoError(t, err)
	require.Equal(t, int64(99), v)

	v, err = s.Next()
	require.NoError(t, err)
	require.Equal(t, int64(100), v)

	_, err = s.Next()
	require.Error(t, err)
	var exhausted *ErrSequenceExhausted
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, int64(1), exhausted.Min)
	require.Equal(t, int64(100), exhausted.Max)
}

func TestSequenceStateNextCyclesToMin(t *testing.T) {
	s := NewSequenceState(100, 1, 1, 100, true)
	v, err := s.Next()
	require.NoError(t, err)
	require.Equal(t, int64(100), v)

	v, err = s.Next()
	require.NoError(t, err)
	require.Equal(t, int64(1), v)
}

func TestSequenceStateDescendingCyclesToMax(t *testing.T) {
	s := NewSequenceState(2, -1, 1, 10, true)
	v, err := s.Next()
	require.NoError(t, err)
	require.Equal(t, int64(2), v)
	v, err = s.Next()
	require.NoError(t, err)
	require.Equal(t, int64(1), v)
	v, err = s.Next()
	require.NoError(t, err)
	require.Equal(t, int64(10), v)
}

func TestSequenceStateDescendingExhaustsWithoutCycle(t *testing.T) {
	s := NewSequenceState(1, -1, 1, 10, false)
	v, err := s.Next()
	require.NoError(t, err)
	require.Equal(t, int64(1), v)

	_, err = s.Next()
	require.Error(t, err)
}

func TestRestoreSequenceStateContinuesFromPersistedValue(t *testing.T) {
	s := RestoreSequenceState(42, 1, 1, 100, false)
	require.Equal(t, int64(42), s.Current())
	v, err := s.Next()
	require.NoError(t, err)
	require.Equal(t, int64(43), v)
}
