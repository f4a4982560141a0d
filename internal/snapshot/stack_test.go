package snapshot

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gitstack.dev/gitstack/internal/objid"
)

func testSnapshot(name string, id objid.Oid) Snapshot {
	return Snapshot{Branches: []BranchEntry{{Name: name, ID: id}}}
}

func TestStackPushDedupsUnchangedContent(t *testing.T) {
	s := Stack{Name: "test", root: t.TempDir()}

	id := objid.Oid{1}
	path1, err := s.Push(testSnapshot("main", id))
	require.NoError(t, err)

	path2, err := s.Push(testSnapshot("main", id))
	require.NoError(t, err)
	require.Equal(t, path1, path2, "pushing identical content should reuse the existing entry")

	elems, err := s.Iter()
	require.NoError(t, err)
	require.Len(t, elems, 1)
}

func TestStackPushPeekPop(t *testing.T) {
	s := Stack{Name: "test", root: t.TempDir()}

	_, err := s.Push(testSnapshot("main", objid.Oid{1}))
	require.NoError(t, err)
	_, err = s.Push(testSnapshot("main", objid.Oid{2}))
	require.NoError(t, err)

	top, ok, err := s.Peek()
	require.NoError(t, err)
	require.True(t, ok)

	loaded, err := Load(top)
	require.NoError(t, err)
	require.Equal(t, objid.Oid{2}, loaded.Branches[0].ID)

	_, ok, err = s.Pop()
	require.NoError(t, err)
	require.True(t, ok)

	elems, err := s.Iter()
	require.NoError(t, err)
	require.Len(t, elems, 1)
}

func TestStackCapacityEvictsOldest(t *testing.T) {
	cap := 2
	s := Stack{Name: "test", root: t.TempDir(), Capacity: &cap}

	// Each push evicts from the oldest end so that, counting the new
	// entry, the stack never holds more than Capacity snapshots.
	for i := 0; i < 6; i++ {
		_, err := s.Push(testSnapshot("main", objid.Oid{byte(i)}))
		require.NoError(t, err)
	}

	elems, err := s.Iter()
	require.NoError(t, err)
	require.Len(t, elems, cap)

	loaded, err := Load(elems[len(elems)-1])
	require.NoError(t, err)
	require.Equal(t, objid.Oid{5}, loaded.Branches[0].ID, "newest entry survives eviction")
}

func TestStackClear(t *testing.T) {
	s := Stack{Name: "test", root: t.TempDir()}
	_, err := s.Push(testSnapshot("main", objid.Oid{1}))
	require.NoError(t, err)

	require.NoError(t, s.Clear())

	elems, err := s.Iter()
	require.NoError(t, err)
	require.Empty(t, elems)
}
