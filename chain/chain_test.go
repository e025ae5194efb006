// (c) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/contractvm/blocktree"
	"github.com/ava-labs/contractvm/types"
	"github.com/ava-labs/contractvm/vm"
)

const (
	issuer   = "SZ2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKQ9H6DPR"
	receiver = "SP000000000000000000002Q6VF78"
	tokens   = issuer + ".tokens"
	counter  = issuer + ".counter"
)

const tokensSource = `
	(define-fungible-token gold)
	(ft-mint! gold 100 tx-sender)
	(define-read-only (balance (p principal))
	  (ft-get-balance gold p))
	(define-public (give (amount int) (to principal))
	  (ft-transfer! gold amount tx-sender to))`

const counterSource = `
	(define-data-var counter int 0)
	(define-read-only (get-counter) (var-get counter))
	(define-public (bump)
	  (begin
	    (var-set! counter (+ (var-get counter) 1))
	    (ok (var-get counter))))`

func newTestChain(t *testing.T, db database.Database, config Config) *Chain {
	c, err := New(db, config, prometheus.NewRegistry(), log.New())
	require.NoError(t, err)
	return c
}

func deploy(t *testing.T, c *Chain, contract, source string) {
	_, err := c.Submit(&Tx{Kind: DeployTx, Contract: contract, Source: source})
	require.NoError(t, err)
}

func call(t *testing.T, c *Chain, sender, contract, function string, args ...string) {
	_, err := c.Submit(&Tx{Kind: CallTx, Sender: sender, Contract: contract, Function: function, Args: args})
	require.NoError(t, err)
}

func atBlock(blkID ids.ID, expr string) string {
	return "(at-block 0x" + hex.EncodeToString(blkID[:]) + " " + expr + ")"
}

func TestGenesis(t *testing.T) {
	require := require.New(t)
	c := newTestChain(t, memdb.New(), DefaultConfig)

	lastAccepted := c.LastAccepted()
	require.NotEqual(blocktree.Sentinel, lastAccepted)

	genesis, err := c.GetBlock(lastAccepted)
	require.NoError(err)
	require.Equal(uint64(0), genesis.Height())
	require.Equal(int64(0), genesis.Timestamp().Unix())
	require.Equal(blocktree.Sentinel, genesis.Parent())
	require.Empty(genesis.Txs)

	_, err = c.BuildBlock(lastAccepted)
	require.ErrorIs(err, errNoPendingTxs)
}

func TestBuildBlock(t *testing.T) {
	require := require.New(t)
	c := newTestChain(t, memdb.New(), DefaultConfig)
	genesis := c.LastAccepted()

	deploy(t, c, tokens, tokensSource)
	call(t, c, issuer, tokens, "give", "30", "'"+receiver)
	call(t, c, issuer, tokens, "give", "1000", "'"+receiver)
	call(t, c, issuer, counter, "bump")

	blk, err := c.BuildBlock(genesis)
	require.NoError(err)
	require.Equal(uint64(1), blk.Height())
	require.Equal(genesis, blk.Parent())
	require.Equal(blk.ID(), c.LastAccepted())
	require.Len(blk.Receipts, 4)

	deployed := blk.Receipts[0]
	require.True(deployed.Success)
	require.Empty(deployed.Error)

	gave := blk.Receipts[1]
	require.True(gave.Success)
	require.Equal("(ok true)", gave.Result)
	require.Equal([]vm.Transfer{{
		Principal: "'" + issuer,
		Asset:     tokens + "::gold",
		Amount:    "30",
	}}, gave.Transfers)

	overdrawn := blk.Receipts[2]
	require.False(overdrawn.Success)
	require.Equal("(err 1)", overdrawn.Result)
	require.Empty(overdrawn.Transfers)

	missing := blk.Receipts[3]
	require.False(missing.Success)
	require.NotEmpty(missing.Error)

	fetched, err := c.GetBlock(blk.ID())
	require.NoError(err)
	require.Equal(blk.ID(), fetched.ID())
	require.Len(fetched.Receipts, 4)

	balance, err := c.EvalReadOnly(types.ContractIdentifier{Issuer: issuer, Name: "tokens"}, "(balance '"+receiver+")")
	require.NoError(err)
	require.Equal(types.Int(30), balance)

	source, err := c.ContractSource(types.ContractIdentifier{Issuer: issuer, Name: "tokens"})
	require.NoError(err)
	require.Equal(tokensSource, source)
}

func TestForks(t *testing.T) {
	require := require.New(t)
	c := newTestChain(t, memdb.New(), DefaultConfig)
	id := types.ContractIdentifier{Issuer: issuer, Name: "counter"}

	deploy(t, c, counter, counterSource)
	base, err := c.BuildBlock(c.LastAccepted())
	require.NoError(err)

	call(t, c, issuer, counter, "bump")
	left, err := c.BuildBlock(base.ID())
	require.NoError(err)

	call(t, c, issuer, counter, "bump")
	call(t, c, issuer, counter, "bump")
	call(t, c, issuer, counter, "bump")
	right, err := c.BuildBlock(base.ID())
	require.NoError(err)
	require.Equal(left.Height(), right.Height())
	require.Equal("(ok 3)", right.Receipts[2].Result)

	value, err := c.EvalReadOnly(id, "(get-counter)")
	require.NoError(err)
	require.Equal(types.Int(3), value)

	// the left fork is a sibling of the tip and so invisible from it
	_, err = c.EvalReadOnly(id, atBlock(left.ID(), "(get-counter)"))
	require.Error(err)
	value, err = c.EvalReadOnly(id, atBlock(base.ID(), "(get-counter)"))
	require.NoError(err)
	require.Equal(types.Int(0), value)

	call(t, c, issuer, counter, "bump")
	extended, err := c.BuildBlock(left.ID())
	require.NoError(err)
	require.Equal("(ok 2)", extended.Receipts[0].Result)
}

func TestBuildBlockUnknownParent(t *testing.T) {
	require := require.New(t)
	c := newTestChain(t, memdb.New(), DefaultConfig)
	id := types.ContractIdentifier{Issuer: issuer, Name: "counter"}

	deploy(t, c, counter, counterSource)
	_, err := c.BuildBlock(ids.ID{0x42})
	require.ErrorIs(err, database.ErrNotFound)
	_, err = c.BuildBlock(blocktree.Sentinel)
	require.Error(err)

	// the deploy is still pending
	blk, err := c.BuildBlock(c.LastAccepted())
	require.NoError(err)
	require.Len(blk.Receipts, 1)
	require.True(blk.Receipts[0].Success)

	source, err := c.ContractSource(id)
	require.NoError(err)
	require.Equal(counterSource, source)
}

func TestSiblingsWithSameTxs(t *testing.T) {
	require := require.New(t)
	c := newTestChain(t, memdb.New(), DefaultConfig)
	genesis := c.LastAccepted()
	now := time.Unix(100, 0)
	bump := &Tx{Kind: CallTx, Sender: issuer, Contract: counter, Function: "bump"}

	left, err := c.buildBlock(genesis, []*Tx{bump}, now)
	require.NoError(err)
	right, err := c.buildBlock(genesis, []*Tx{bump}, now)
	require.NoError(err)
	require.NotEqual(left.ID(), right.ID())
	require.Equal(left.Height(), right.Height())
	require.Equal(now.Unix()+1, right.Timestamp().Unix())

	fetched, err := c.GetBlock(right.ID())
	require.NoError(err)
	require.Equal(right.Tmstmp, fetched.Tmstmp)

	// the same pending transaction built twice on one parent
	call(t, c, issuer, counter, "bump")
	first, err := c.BuildBlock(genesis)
	require.NoError(err)
	call(t, c, issuer, counter, "bump")
	second, err := c.BuildBlock(genesis)
	require.NoError(err)
	require.NotEqual(first.ID(), second.ID())
}

func TestEvalBudget(t *testing.T) {
	require := require.New(t)
	config := DefaultConfig
	config.EvalBudget = 0
	_, err := New(memdb.New(), config, prometheus.NewRegistry(), log.New())
	require.ErrorIs(err, errInvalidConfig)

	config.EvalBudget = 3
	c := newTestChain(t, memdb.New(), config)
	deploy(t, c, counter, counterSource)
	call(t, c, issuer, counter, "bump")
	blk, err := c.BuildBlock(c.LastAccepted())
	require.NoError(err)
	require.True(blk.Receipts[0].Success)
	require.False(blk.Receipts[1].Success)
	require.Contains(blk.Receipts[1].Error, "evaluation budget exceeded")
}

func TestReopen(t *testing.T) {
	require := require.New(t)
	db := memdb.New()
	c := newTestChain(t, db, DefaultConfig)

	deploy(t, c, counter, counterSource)
	call(t, c, issuer, counter, "bump")
	blk, err := c.BuildBlock(c.LastAccepted())
	require.NoError(err)

	reopened := newTestChain(t, db, DefaultConfig)
	require.Equal(blk.ID(), reopened.LastAccepted())
	fetched, err := reopened.GetBlock(blk.ID())
	require.NoError(err)
	require.Equal(blk.Height(), fetched.Height())
	value, err := reopened.EvalReadOnly(types.ContractIdentifier{Issuer: issuer, Name: "counter"}, "(get-counter)")
	require.NoError(err)
	require.Equal(types.Int(1), value)
}

func TestSubmitValidation(t *testing.T) {
	config := DefaultConfig
	config.MempoolSize = 1
	c := newTestChain(t, memdb.New(), config)

	tests := []struct {
		name string
		tx   *Tx
	}{
		{"malformed contract", &Tx{Kind: DeployTx, Contract: "counter", Source: counterSource}},
		{"empty source", &Tx{Kind: DeployTx, Contract: counter}},
		{"oversized source", &Tx{Kind: DeployTx, Contract: counter, Source: strings.Repeat(" ", maxSourceSize+1)}},
		{"missing function", &Tx{Kind: CallTx, Sender: issuer, Contract: counter}},
		{"missing sender", &Tx{Kind: CallTx, Contract: counter, Function: "bump"}},
		{"bad argument", &Tx{Kind: CallTx, Sender: issuer, Contract: counter, Function: "bump", Args: []string{"(+ 1 2)"}}},
		{"unknown kind", &Tx{Kind: 9, Contract: counter}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := c.Submit(test.tx)
			require.Error(t, err)
		})
	}

	deploy(t, c, counter, counterSource)
	_, err := c.Submit(&Tx{Kind: CallTx, Sender: issuer, Contract: counter, Function: "bump"})
	require.Error(t, err)
}

func TestTxID(t *testing.T) {
	require := require.New(t)
	a := &Tx{Kind: CallTx, Sender: issuer, Contract: counter, Function: "bump"}
	b := &Tx{Kind: CallTx, Sender: receiver, Contract: counter, Function: "bump"}

	aID, err := a.ID()
	require.NoError(err)
	bID, err := b.ID()
	require.NoError(err)
	require.NotEqual(ids.Empty, aID)
	require.NotEqual(aID, bID)
}
