// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"
	"github.com/ava-labs/avalanchego/database/versiondb"
)

var (
	// These are prefixes for db keys.
	// It's important to set different prefixes for each separate database objects.
	treeStatePrefix  = []byte("tree")
	blockStatePrefix = []byte("block")

	_ State = &state{}
)

// State is a wrapper around BlockState and the block tree's database.
// State also exposes a few methods needed for managing database commits and close.
type State interface {
	BlockState

	// TreeDB is the database the block tree persists into.
	TreeDB() database.Database

	Commit() error
	Abort()
	Close() error
}

type state struct {
	BlockState

	treeDB database.Database
	baseDB *versiondb.Database
}

func NewState(db database.Database, blkCache cache.Cacher) State {
	// create a new baseDB
	baseDB := versiondb.New(db)

	return &state{
		BlockState: NewBlockState(prefixdb.New(blockStatePrefix, baseDB), blkCache),
		treeDB:     prefixdb.New(treeStatePrefix, baseDB),
		baseDB:     baseDB,
	}
}

func (s *state) TreeDB() database.Database { return s.treeDB }

// Commit commits pending operations to baseDB
func (s *state) Commit() error {
	return s.baseDB.Commit()
}

// Abort drops pending operations and the block cache, which may hold blocks
// that were never committed.
func (s *state) Abort() {
	s.baseDB.Abort()
	s.ClearCache()
}

// Close closes the underlying base database
func (s *state) Close() error {
	return s.baseDB.Close()
}
