// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package blocktree

import (
	"fmt"

	"github.com/ava-labs/avalanchego/database/versiondb"
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/contractvm/fault"
)

// Savepoint starts buffering writes so they can be dropped with Revert or
// folded into the enclosing scope with Release. Savepoints nest.
func (s *Storage) Savepoint() error {
	if !s.hasOpen {
		return fault.NewStorageError(fault.NoOpenBlock, ids.Empty)
	}
	s.savepoints = append(s.savepoints, versiondb.New(s.top()))
	return nil
}

// Release folds the innermost savepoint into its parent scope.
func (s *Storage) Release() error {
	n := len(s.savepoints)
	if n == 0 {
		return fault.NewStorageError(fault.NoSavepoint, ids.Empty)
	}
	if err := s.savepoints[n-1].Commit(); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	s.savepoints = s.savepoints[:n-1]
	return nil
}

// Revert drops every write made since the innermost savepoint.
func (s *Storage) Revert() error {
	n := len(s.savepoints)
	if n == 0 {
		return fault.NewStorageError(fault.NoSavepoint, ids.Empty)
	}
	s.savepoints[n-1].Abort()
	s.savepoints = s.savepoints[:n-1]
	return nil
}

// Savepoints returns the nesting depth of open savepoints.
func (s *Storage) Savepoints() int { return len(s.savepoints) }
