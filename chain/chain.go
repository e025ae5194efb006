// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package chain hosts the contract environment on a chain of blocks. It
// serializes every writer, queues submitted transactions and executes them
// into new blocks on top of any committed parent.
package chain

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/rpc/v2"
	"github.com/prometheus/client_golang/prometheus"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/cache/metercacher"
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"

	cjson "github.com/ava-labs/avalanchego/utils/json"

	"github.com/ava-labs/contractvm/ast"
	"github.com/ava-labs/contractvm/blocktree"
	"github.com/ava-labs/contractvm/contractdb"
	"github.com/ava-labs/contractvm/types"
	"github.com/ava-labs/contractvm/vm"
)

const Name = "contractvm"

var errNoPendingTxs = errors.New("there is no transaction to put in a block")

// Chain owns the block tree and the environment executing on it.
type Chain struct {
	// lock serializes every use of the block tree, including reads, which
	// move its cursor.
	lock sync.Mutex

	log     log.Logger
	state   State
	storage *blocktree.Storage
	env     *vm.OwnedEnvironment
	mempool *mempool
	metrics *metrics
}

// New opens the chain persisted in [db], creating the genesis block if the
// database is empty. [opts] are passed to the environment.
func New(db database.Database, config Config, registerer prometheus.Registerer, logger log.Logger, opts ...vm.Option) (*Chain, error) {
	if err := config.Verify(); err != nil {
		return nil, err
	}
	blkCache, err := metercacher.New(
		"chain_block_cache",
		registerer,
		&cache.LRU{Size: config.BlockCacheSize},
	)
	if err != nil {
		return nil, err
	}
	contractCache, err := metercacher.New(
		"vm_contract_cache",
		registerer,
		&cache.LRU{Size: config.ContractCacheSize},
	)
	if err != nil {
		return nil, err
	}
	m, err := newMetrics(Name, registerer)
	if err != nil {
		return nil, err
	}

	state := NewState(db, blkCache)
	storage, err := blocktree.New(state.TreeDB(), config.BlockTree, registerer, logger.New("module", "blocktree"))
	if err != nil {
		return nil, err
	}
	if err := state.Commit(); err != nil {
		return nil, fmt.Errorf("failed to initialize state: %w", err)
	}

	envOpts := []vm.Option{
		vm.WithLogger(logger.New("module", "vm")),
		vm.WithContractCache(contractCache),
		vm.WithEvalBudget(config.EvalBudget),
	}
	c := &Chain{
		log:     logger.New("module", "chain"),
		state:   state,
		storage: storage,
		env:     vm.NewOwnedEnvironment(contractdb.New(storage), append(envOpts, opts...)...),
		mempool: newMempool(config.MempoolSize),
		metrics: m,
	}

	if storage.Tip() == blocktree.Sentinel {
		// Timestamp of genesis block is 0. It has no parent.
		genesis, err := c.buildBlock(blocktree.Sentinel, nil, time.Unix(0, 0))
		if err != nil {
			return nil, fmt.Errorf("error while creating genesis block: %w", err)
		}
		c.log.Info("created genesis block", "block", genesis.ID())
	}
	return c, nil
}

// CreateHandlers returns a map where:
// Keys: The path extension for this chain's API (empty in this case)
// Values: The handler for the API
func (c *Chain) CreateHandlers() (map[string]http.Handler, error) {
	server := rpc.NewServer()
	codec := cjson.NewCodec()
	server.RegisterCodec(codec, "application/json")
	server.RegisterCodec(codec, "application/json;charset=UTF-8")
	return map[string]http.Handler{
		"": server,
	}, server.RegisterService(&Service{chain: c}, Name)
}

// Submit queues [tx] for the next block.
func (c *Chain) Submit(tx *Tx) (ids.ID, error) {
	if err := tx.SyntacticVerify(); err != nil {
		return ids.Empty, err
	}
	txID, err := tx.ID()
	if err != nil {
		return ids.Empty, err
	}
	if err := c.mempool.Add(tx); err != nil {
		return ids.Empty, err
	}
	c.metrics.mempoolSize.Set(float64(c.mempool.Len()))
	c.log.Debug("submitted transaction", "tx", txID, "kind", tx.Kind)
	return txID, nil
}

// BuildBlock executes every pending transaction in a new block on top of
// [parent], which may be any committed block, and commits it. Pending
// transactions stay queued if [parent] is not a committed block.
func (c *Chain) BuildBlock(parent ids.ID) (*Block, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if _, err := c.state.GetBlock(parent); err != nil {
		return nil, fmt.Errorf("couldn't get parent block %s: %w", parent, err)
	}
	if c.mempool.Len() == 0 {
		return nil, errNoPendingTxs
	}
	txs := c.mempool.Drain()
	c.metrics.mempoolSize.Set(float64(c.mempool.Len()))
	blk, err := c.buildBlock(parent, txs, time.Now())
	if err != nil {
		c.log.Warn("dropped pending transactions", "parent", parent, "txs", len(txs), "error", err)
		return nil, err
	}
	return blk, nil
}

func (c *Chain) buildBlock(parent ids.ID, txs []*Tx, now time.Time) (*Block, error) {
	height := uint64(0)
	if parent != blocktree.Sentinel {
		parentBlk, err := c.state.GetBlock(parent)
		if err != nil {
			return nil, fmt.Errorf("couldn't get parent block %s: %w", parent, err)
		}
		height = parentBlk.Height() + 1
		if now.Before(parentBlk.Timestamp()) {
			now = parentBlk.Timestamp()
		}
	}
	blk, err := c.newBlock(parent, height, now, txs)
	if err != nil {
		return nil, err
	}

	if err := c.storage.Begin(parent, blk.ID()); err != nil {
		return nil, err
	}
	for _, tx := range txs {
		blk.Receipts = append(blk.Receipts, c.execute(tx))
	}
	if err := c.state.PutBlock(blk); err != nil {
		c.abort()
		return nil, fmt.Errorf("failed to put block %s: %w", blk.ID(), err)
	}
	if err := c.storage.Commit(); err != nil {
		c.abort()
		return nil, err
	}
	if err := c.state.Commit(); err != nil {
		c.log.Error("failed to flush committed block", "block", blk.ID(), "error", err)
		return nil, err
	}

	c.metrics.blocksBuilt.Inc()
	c.log.Info("built block", "block", blk.ID(), "parent", parent, "height", height, "txs", len(txs))
	return blk, nil
}

// newBlock returns a block that does not exist yet. A sibling built in the
// same second with the same transactions would share its ID, so the
// timestamp moves forward until the ID is unused.
func (c *Chain) newBlock(parent ids.ID, height uint64, now time.Time, txs []*Tx) (*Block, error) {
	for {
		blk, err := NewBlock(parent, height, now, txs)
		if err != nil {
			return nil, fmt.Errorf("couldn't build block: %w", err)
		}
		_, err = c.storage.Node(blk.ID())
		switch {
		case errors.Is(err, database.ErrNotFound):
			return blk, nil
		case err != nil:
			return nil, err
		}
		c.log.Debug("block already exists", "block", blk.ID(), "timestamp", blk.Timestamp())
		now = blk.Timestamp().Add(time.Second)
	}
}

func (c *Chain) abort() {
	if _, open := c.storage.OpenBlock(); open {
		if err := c.storage.Rollback(); err != nil {
			c.log.Error("failed to roll back block", "error", err)
		}
	}
	c.state.Abort()
}

// execute runs [tx] in the open block. Failures are recorded in the
// receipt; they never abort the block.
func (c *Chain) execute(tx *Tx) *Receipt {
	receipt := &Receipt{}
	txID, err := tx.ID()
	if err == nil {
		receipt.TxID = txID
		err = c.apply(tx, receipt)
	}
	if err != nil {
		receipt.Error = err.Error()
	}
	if receipt.Success {
		c.metrics.txsAccepted.Inc()
	} else {
		c.metrics.txsFailed.Inc()
	}
	c.log.Debug("executed transaction", "tx", txID, "success", receipt.Success, "error", receipt.Error)
	return receipt
}

func (c *Chain) apply(tx *Tx, receipt *Receipt) error {
	contract, err := types.ParseContractIdentifier(tx.Contract)
	if err != nil {
		return err
	}
	switch tx.Kind {
	case DeployTx:
		if err := c.env.InitializeContract(contract, tx.Source); err != nil {
			return err
		}
		receipt.Success = true
		c.metrics.contractsDeployed.Inc()
		return nil
	case CallTx:
		sender, err := types.ParsePrincipal(tx.Sender)
		if err != nil {
			return err
		}
		args := make([]types.Value, len(tx.Args))
		for i, arg := range tx.Args {
			if args[i], err = ast.ParseValue(arg); err != nil {
				return err
			}
		}
		result, assets, err := c.env.ExecuteTransaction(sender, contract, tx.Function, args)
		if err != nil {
			return err
		}
		receipt.Result = result.String()
		receipt.Success = result.(types.Response).Committed
		receipt.Transfers = assets.Transfers()
		return nil
	default:
		return errUnknownTxKind
	}
}

// GetBlock returns the executed block [blkID].
func (c *Chain) GetBlock(blkID ids.ID) (*Block, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.state.GetBlock(blkID)
}

// LastAccepted returns the most recently committed block.
func (c *Chain) LastAccepted() ids.ID {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.storage.Tip()
}

// EvalReadOnly evaluates [program] against [contract] as of the last
// committed block.
func (c *Chain) EvalReadOnly(contract types.ContractIdentifier, program string) (types.Value, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.env.EvalReadOnly(contract, program)
}

// ContractSource returns the source [contract] was deployed with, as of the
// last committed block.
func (c *Chain) ContractSource(contract types.ContractIdentifier) (string, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	record, err := c.env.Database().GetContract(contract)
	if err != nil {
		return "", err
	}
	return string(record.Source), nil
}

// Close closes the underlying database.
func (c *Chain) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.state.Close()
}
