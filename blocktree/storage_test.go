// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package blocktree

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/contractvm/fault"
)

func hash(b byte) ids.ID {
	var id ids.ID
	for i := range id {
		id[i] = b
	}
	return id
}

func newTestStorage(t *testing.T, db database.Database) *Storage {
	s, err := New(db, DefaultConfig, prometheus.NewRegistry(), log.New())
	require.NoError(t, err)
	return s
}

// buildForks creates
//
//	1 -> 2 -> 4
//	  \-> 3
//
// writing "k" = "one" in 1, "k" = "two" in 2 and "only3" in 3.
func buildForks(t *testing.T, s *Storage) {
	require := require.New(t)

	require.NoError(s.Begin(Sentinel, hash(1)))
	require.NoError(s.Put([]byte("k"), []byte("one")))
	require.NoError(s.Commit())

	require.NoError(s.Begin(hash(1), hash(2)))
	require.NoError(s.Put([]byte("k"), []byte("two")))
	require.NoError(s.Commit())

	require.NoError(s.Begin(hash(1), hash(3)))
	require.NoError(s.Put([]byte("only3"), []byte("x")))
	require.NoError(s.Commit())

	require.NoError(s.Begin(hash(2), hash(4)))
	require.NoError(s.Commit())
}

func TestForkIsolation(t *testing.T) {
	require := require.New(t)
	s := newTestStorage(t, memdb.New())
	buildForks(t, s)

	value, err := s.GetAt(hash(4), []byte("k"))
	require.NoError(err)
	require.Equal([]byte("two"), value)

	value, err = s.GetAt(hash(3), []byte("k"))
	require.NoError(err)
	require.Equal([]byte("one"), value)

	_, err = s.GetAt(hash(4), []byte("only3"))
	require.ErrorIs(err, database.ErrNotFound)
	_, err = s.GetAt(hash(2), []byte("only3"))
	require.ErrorIs(err, database.ErrNotFound)

	value, err = s.GetAt(hash(3), []byte("only3"))
	require.NoError(err)
	require.Equal([]byte("x"), value)

	// cached lookups keep answering the same way
	value, err = s.GetAt(hash(4), []byte("k"))
	require.NoError(err)
	require.Equal([]byte("two"), value)
}

func TestBeginFailures(t *testing.T) {
	require := require.New(t)
	s := newTestStorage(t, memdb.New())

	err := s.Begin(hash(9), hash(1))
	require.True(fault.IsStorage(err, fault.UnknownParent))

	require.NoError(s.Begin(Sentinel, hash(1)))
	err = s.Begin(Sentinel, hash(2))
	require.True(fault.IsStorage(err, fault.BlockAlreadyOpen))

	require.NoError(s.Commit())
	require.NoError(s.Begin(hash(1), hash(2)))
	require.NoError(s.Rollback())

	err = s.Begin(Sentinel, hash(1))
	require.True(fault.IsStorage(err, fault.DuplicateBlock))
	err = s.Begin(hash(1), Sentinel)
	require.True(fault.IsStorage(err, fault.DuplicateBlock))
}

func TestCommitFailures(t *testing.T) {
	require := require.New(t)
	s := newTestStorage(t, memdb.New())

	require.True(fault.IsStorage(s.Commit(), fault.NoOpenBlock))
	require.True(fault.IsStorage(s.Rollback(), fault.NoOpenBlock))
	require.True(fault.IsStorage(s.Put([]byte("k"), nil), fault.NoOpenBlock))

	require.NoError(s.Begin(Sentinel, hash(1)))
	require.NoError(s.Savepoint())
	require.True(fault.IsStorage(s.Commit(), fault.SavepointsOutstanding))
	require.NoError(s.Release())
	require.NoError(s.Commit())

	// sealed: the same hash can't be reopened, but a sibling can be created
	require.True(fault.IsStorage(s.Begin(Sentinel, hash(1)), fault.DuplicateBlock))
	require.NoError(s.Begin(Sentinel, hash(5)))
	node, err := s.Node(hash(5))
	require.NoError(err)
	require.Equal(Open, node.Status)
	require.Equal(Sentinel, node.Parent)
}

func TestRollbackDiscardsBlock(t *testing.T) {
	require := require.New(t)
	s := newTestStorage(t, memdb.New())

	require.NoError(s.Begin(Sentinel, hash(1)))
	require.NoError(s.Put([]byte("k"), []byte("v")))
	require.NoError(s.Rollback())

	_, err := s.Node(hash(1))
	require.ErrorIs(err, database.ErrNotFound)
	require.Equal(Sentinel, s.Tip())

	require.NoError(s.Begin(Sentinel, hash(1)))
	_, err = s.Get([]byte("k"))
	require.ErrorIs(err, database.ErrNotFound)
}

func TestTombstones(t *testing.T) {
	require := require.New(t)
	s := newTestStorage(t, memdb.New())

	require.NoError(s.Begin(Sentinel, hash(1)))
	require.NoError(s.Put([]byte("k"), []byte("v")))
	require.NoError(s.Commit())

	require.NoError(s.Begin(hash(1), hash(2)))
	require.NoError(s.Delete([]byte("k")))
	ok, err := s.Has([]byte("k"))
	require.NoError(err)
	require.False(ok)
	require.NoError(s.Commit())

	_, err = s.GetAt(hash(2), []byte("k"))
	require.ErrorIs(err, database.ErrNotFound)
	value, err := s.GetAt(hash(1), []byte("k"))
	require.NoError(err)
	require.Equal([]byte("v"), value)
}

func TestCursorValidation(t *testing.T) {
	require := require.New(t)
	s := newTestStorage(t, memdb.New())
	buildForks(t, s)

	require.NoError(s.Begin(hash(4), hash(5)))

	unknown := s.PushCursor(hash(0x22))
	sibling := s.PushCursor(hash(3))
	require.Equal(fault.NewStorageError(fault.UnknownBlockHeaderHash, hash(0x22)), unknown)
	require.Equal(fault.NewStorageError(fault.UnknownBlockHeaderHash, hash(3)), sibling)
	require.True(fault.IsStorage(s.PushCursor(Sentinel), fault.UnknownBlockHeaderHash))
	require.False(s.Redirected())

	err := s.WithCursor(hash(1), func() error {
		require.Equal(hash(1), s.Cursor())
		height, err := s.CursorHeight()
		require.NoError(err)
		require.Equal(uint64(0), height)

		value, err := s.Get([]byte("k"))
		require.NoError(err)
		require.Equal([]byte("one"), value)

		require.True(fault.IsStorage(s.Put([]byte("k"), nil), fault.ReadOnlyCursor))

		// nested redirection is relative to the redirected cursor
		return s.WithCursor(hash(2), func() error { return nil })
	})
	require.True(fault.IsStorage(err, fault.UnknownBlockHeaderHash))
	require.False(s.Redirected())
	require.Equal(hash(5), s.Cursor())

	// the open block itself is a valid target
	require.NoError(s.WithCursor(hash(5), func() error { return nil }))
}

func TestCursorRestoredOnError(t *testing.T) {
	require := require.New(t)
	s := newTestStorage(t, memdb.New())
	buildForks(t, s)
	require.NoError(s.Begin(hash(2), hash(6)))

	err := s.WithCursor(hash(2), func() error {
		return s.WithCursor(hash(1), func() error {
			return fault.NewRuntimeError(fault.Aborted, "nested")
		})
	})
	require.True(fault.IsRuntime(err, fault.Aborted))
	require.Equal(hash(6), s.Cursor())
	require.NoError(s.Put([]byte("k"), []byte("six")))
}

func TestSavepoints(t *testing.T) {
	require := require.New(t)
	s := newTestStorage(t, memdb.New())

	require.NoError(s.Begin(Sentinel, hash(1)))
	require.NoError(s.Put([]byte("a"), []byte("1")))

	require.NoError(s.Savepoint())
	require.NoError(s.Put([]byte("a"), []byte("2")))
	require.NoError(s.Savepoint())
	require.NoError(s.Put([]byte("b"), []byte("3")))
	require.Equal(2, s.Savepoints())

	require.NoError(s.Revert())
	_, err := s.Get([]byte("b"))
	require.ErrorIs(err, database.ErrNotFound)

	require.NoError(s.Release())
	value, err := s.Get([]byte("a"))
	require.NoError(err)
	require.Equal([]byte("2"), value)

	require.True(fault.IsStorage(s.Release(), fault.NoSavepoint))
	require.True(fault.IsStorage(s.Revert(), fault.NoSavepoint))
	require.NoError(s.Commit())

	value, err = s.GetAt(hash(1), []byte("a"))
	require.NoError(err)
	require.Equal([]byte("2"), value)
}

func TestResume(t *testing.T) {
	require := require.New(t)
	db := memdb.New()

	s := newTestStorage(t, db)
	buildForks(t, s)
	require.NoError(s.Begin(hash(4), hash(7)))
	require.NoError(s.Put([]byte("k"), []byte("pending")))

	// the open block was never committed, so a fresh handle doesn't see it
	resumed := newTestStorage(t, db)
	require.Equal(hash(4), resumed.Tip())
	require.Equal(hash(4), resumed.Cursor())
	_, err := resumed.Node(hash(7))
	require.ErrorIs(err, database.ErrNotFound)

	value, err := resumed.Get([]byte("k"))
	require.NoError(err)
	require.Equal([]byte("two"), value)
	require.True(fault.IsStorage(resumed.Put([]byte("k"), nil), fault.NoOpenBlock))
}

func TestIsAncestor(t *testing.T) {
	require := require.New(t)
	s := newTestStorage(t, memdb.New())
	buildForks(t, s)

	tests := []struct {
		ancestor, of ids.ID
		expected     bool
	}{
		{hash(1), hash(4), true},
		{hash(2), hash(4), true},
		{hash(4), hash(4), true},
		{hash(3), hash(4), false},
		{hash(4), hash(2), false},
		{hash(2), hash(3), false},
		{Sentinel, hash(1), false},
		{hash(8), hash(4), false},
	}
	for _, test := range tests {
		ok, err := s.IsAncestor(test.ancestor, test.of)
		require.NoError(err)
		require.Equal(test.expected, ok, "%x -> %x", test.ancestor[:1], test.of[:1])
	}
}
