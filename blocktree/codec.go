// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package blocktree

import (
	"github.com/ava-labs/avalanchego/codec"
	"github.com/ava-labs/avalanchego/codec/linearcodec"
	"github.com/ava-labs/avalanchego/utils/units"
)

const (
	codecVersion = 0

	// maxRecordSize bounds a node or data entry. A data entry wraps a value
	// of the layer above, which may be a whole contract record.
	maxRecordSize = 512 * units.KiB
)

// treeCodec encodes node records and data entries
var treeCodec codec.Manager

func init() {
	lc := linearcodec.NewDefault()
	treeCodec = codec.NewManager(maxRecordSize)

	if err := treeCodec.RegisterCodec(codecVersion, lc); err != nil {
		panic(err)
	}
}
