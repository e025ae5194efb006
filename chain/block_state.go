// (c) 2021-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"errors"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
)

var (
	errBlockWrongVersion = errors.New("wrong version")

	_ BlockState = &blockState{}
)

// BlockState persists executed blocks keyed by their ID.
type BlockState interface {
	GetBlock(blkID ids.ID) (*Block, error)
	PutBlock(blk *Block) error

	ClearCache()
}

type blockState struct {
	blkCache cache.Cacher
	blockDB  database.Database
}

func NewBlockState(db database.Database, blkCache cache.Cacher) BlockState {
	return &blockState{
		blkCache: blkCache,
		blockDB:  db,
	}
}

func (s *blockState) GetBlock(blkID ids.ID) (*Block, error) {
	if blkIntf, ok := s.blkCache.Get(blkID); ok {
		return blkIntf.(*Block), nil
	}

	blkBytes, err := s.blockDB.Get(blkID[:])
	if err != nil {
		return nil, err
	}

	blk := &Block{}
	parsedVersion, err := Codec.Unmarshal(blkBytes, blk)
	if err != nil {
		return nil, err
	}
	if parsedVersion != CodecVersion {
		return nil, errBlockWrongVersion
	}
	if err := blk.initialize(); err != nil {
		return nil, err
	}

	s.blkCache.Put(blkID, blk)
	return blk, nil
}

func (s *blockState) PutBlock(blk *Block) error {
	bytes, err := Codec.Marshal(CodecVersion, blk)
	if err != nil {
		return err
	}

	blkID := blk.ID()
	s.blkCache.Put(blkID, blk)
	return s.blockDB.Put(blkID[:], bytes)
}

func (s *blockState) ClearCache() {
	s.blkCache.Flush()
}
