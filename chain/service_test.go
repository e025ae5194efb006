// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/formatting"

	"github.com/ava-labs/contractvm/types"
)

func TestService(t *testing.T) {
	require := require.New(t)
	c := newTestChain(t, memdb.New(), DefaultConfig)
	service := &Service{chain: c}

	genesis := &GetBlockReply{}
	require.NoError(service.GetBlock(nil, &GetBlockArgs{}, genesis))
	require.Equal(c.LastAccepted(), genesis.ID)

	deployed := &SubmitReply{}
	require.NoError(service.Deploy(nil, &DeployArgs{Contract: counter, Source: counterSource}, deployed))
	require.NotEqual(ids.Empty, deployed.TxID)
	called := &SubmitReply{}
	require.NoError(service.Call(nil, &CallArgs{Sender: issuer, Contract: counter, Function: "bump"}, called))

	built := &GetBlockReply{}
	require.NoError(service.BuildBlock(nil, &BuildBlockArgs{}, built))
	require.Equal(genesis.ID, built.ParentID)
	require.EqualValues(1, built.Height)
	require.Len(built.Receipts, 2)
	require.Equal(deployed.TxID, built.Receipts[0].TxID)
	require.Equal(called.TxID, built.Receipts[1].TxID)
	require.Equal("(ok 1)", built.Receipts[1].Result)

	latest := &GetBlockReply{}
	require.NoError(service.GetBlock(nil, &GetBlockArgs{}, latest))
	require.Equal(built.ID, latest.ID)
	byID := &GetBlockReply{}
	require.NoError(service.GetBlock(nil, &GetBlockArgs{ID: &built.ID}, byID))
	require.Equal(latest, byID)

	unknown := ids.ID{0xaa}
	require.ErrorIs(service.GetBlock(nil, &GetBlockArgs{ID: &unknown}, &GetBlockReply{}), errNoSuchBlock)

	read := &ReadOnlyReply{}
	require.NoError(service.ReadOnly(nil, &ReadOnlyArgs{Contract: counter, Program: "(get-counter)"}, read))
	require.Equal("1", read.Result)
	raw, err := formatting.Decode(read.Encoding, read.Value)
	require.NoError(err)
	expected, err := types.Serialize(types.Int(1))
	require.NoError(err)
	require.Equal(expected, raw)

	source := &GetContractReply{}
	require.NoError(service.GetContract(nil, &GetContractArgs{Contract: counter}, source))
	require.Equal(counterSource, source.Source)

	require.Error(service.ReadOnly(nil, &ReadOnlyArgs{Contract: "nope", Program: "1"}, &ReadOnlyReply{}))
	require.Error(service.Call(nil, &CallArgs{Contract: counter, Function: "bump"}, &SubmitReply{}))
}
