package eventlog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddedAndRemovedRows(t *testing.T) {
	r := New()
	r.RecordAdd(1)
	r.RecordRemove(2)
	r.RecordUpdate(3, 4)

	require.ElementsMatch(t, []int64{1, 4}, r.AddedRows())
	require.ElementsMatch(t, []int64{2, 3}, r.RemovedRows())
}

func TestPureInsertsNeverClash(t *testing.T) {
	a := New()
	a.RecordAdd(1)
	b := New()
	b.RecordAdd(2)

	_, clash := a.TestCommitClash(b)
	require.False(t, clash)
}

func TestUpdateUpdateClash(t *testing.T) {
	a := New()
	a.RecordUpdate(10, 11)
	b := New()
	b.RecordUpdate(10, 12)

	row, clash := a.TestCommitClash(b)
	require.True(t, clash)
	require.Equal(t, int64(10), row)
}

func TestRemoveAddNoClash(t *testing.T) {
	a := New()
	a.RecordRemove(5)
	b := New()
	b.RecordAdd(6)

	_, clash := a.TestCommitClash(b)
	require.False(t, clash)
}

func TestConstraintsAlteredMarker(t *testing.T) {
	r := New()
	require.True(t, r.IsEmpty())
	r.RecordConstraintsAltered()
	require.True(t, r.ConstraintsWereAltered())
	require.True(t, r.IsEmpty()) // marker alone carries no data events
}

func TestUpdatePairOrdering(t *testing.T) {
	r := New()
	r.RecordUpdate(1, 2)
	events := r.Events()
	require.Len(t, events, 2)
	require.Equal(t, UpdateRemove, events[0].Kind)
	require.Equal(t, UpdateAdd, events[1].Kind)
}
