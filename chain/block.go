// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
)

// Block is a block on the chain. Its ID commits to the header and the
// transactions; receipts are filled in as the block is executed.
type Block struct {
	PrntID   ids.ID     `serialize:"true" json:"parentID"`  // parent's ID
	Hght     uint64     `serialize:"true" json:"height"`    // This block's height. The genesis block is at height 0.
	Tmstmp   int64      `serialize:"true" json:"timestamp"` // Time this block was proposed at
	Txs      []*Tx      `serialize:"true" json:"txs"`
	Receipts []*Receipt `serialize:"true" json:"receipts"`

	id ids.ID // hold this block's ID
}

type blockHeader struct {
	PrntID ids.ID `serialize:"true"`
	Hght   uint64 `serialize:"true"`
	Tmstmp int64  `serialize:"true"`
	Txs    []*Tx  `serialize:"true"`
}

// NewBlock returns an unexecuted block with its ID set.
func NewBlock(parentID ids.ID, height uint64, timestamp time.Time, txs []*Tx) (*Block, error) {
	b := &Block{
		PrntID: parentID,
		Hght:   height,
		Tmstmp: timestamp.Unix(),
		Txs:    txs,
	}
	return b, b.initialize()
}

func (b *Block) initialize() error {
	bytes, err := Codec.Marshal(CodecVersion, &blockHeader{
		PrntID: b.PrntID,
		Hght:   b.Hght,
		Tmstmp: b.Tmstmp,
		Txs:    b.Txs,
	})
	if err != nil {
		return err
	}
	b.id = hashing.ComputeHash256Array(bytes)
	return nil
}

// ID returns the ID of this block
func (b *Block) ID() ids.ID { return b.id }

// Parent returns [b]'s parent's ID
func (b *Block) Parent() ids.ID { return b.PrntID }

// Height returns this block's height. The genesis block has height 0.
func (b *Block) Height() uint64 { return b.Hght }

// Timestamp returns this block's time. The genesis block has time 0.
func (b *Block) Timestamp() time.Time { return time.Unix(b.Tmstmp, 0) }
