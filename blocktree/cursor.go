// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package blocktree

import (
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/contractvm/fault"
)

// Cursor returns the block reads currently resolve at.
func (s *Storage) Cursor() ids.ID {
	if n := len(s.cursors); n > 0 {
		return s.cursors[n-1]
	}
	if s.hasOpen {
		return s.open
	}
	return s.tip
}

// Redirected reports whether a historical cursor is active. Writes are
// rejected while it is.
func (s *Storage) Redirected() bool { return len(s.cursors) != 0 }

// CursorHeight returns the height of the cursor block. An empty tree has
// height 0.
func (s *Storage) CursorHeight() (uint64, error) {
	cursor := s.Cursor()
	if cursor == Sentinel {
		return 0, nil
	}
	node, err := s.Node(cursor)
	if err != nil {
		return 0, err
	}
	return node.Height, nil
}

// PushCursor redirects reads to [target], which must be the current cursor
// or one of its ancestors. Unknown hashes and known hashes off the current
// ancestry fail identically, so a sibling fork can't be told apart from an unknown block.
func (s *Storage) PushCursor(target ids.ID) error {
	ok, err := s.IsAncestor(target, s.Cursor())
	if err != nil {
		return err
	}
	if !ok {
		return fault.NewStorageError(fault.UnknownBlockHeaderHash, target)
	}
	s.cursors = append(s.cursors, target)
	return nil
}

// PopCursor undoes the most recent PushCursor.
func (s *Storage) PopCursor() {
	if n := len(s.cursors); n > 0 {
		s.cursors = s.cursors[:n-1]
	}
}

// WithCursor runs [f] with reads redirected to [target] and restores the
// previous cursor however [f] returns.
func (s *Storage) WithCursor(target ids.ID, f func() error) error {
	if err := s.PushCursor(target); err != nil {
		return err
	}
	depth := len(s.cursors)
	defer func() {
		if len(s.cursors) >= depth {
			s.cursors = s.cursors[:depth-1]
		}
	}()
	return f()
}
