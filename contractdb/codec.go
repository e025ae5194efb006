// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package contractdb

import (
	"github.com/ava-labs/avalanchego/codec"
	"github.com/ava-labs/avalanchego/codec/linearcodec"
	"github.com/ava-labs/avalanchego/utils/units"
)

const recordVersion = 0

// MaxRecordSize bounds an encoded contract record, source included.
const MaxRecordSize = 256 * units.KiB

var recordCodec codec.Manager

func init() {
	recordCodec = codec.NewManager(MaxRecordSize)
	if err := recordCodec.RegisterCodec(recordVersion, linearcodec.NewDefault()); err != nil {
		panic(err)
	}
}
