// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package vm evaluates contracts against the contract database.
//
// Every call that can write runs inside a block tree savepoint, so a failed
// initialization or transaction leaves the open block exactly as it found it.
// Historical reads go through at-block, which moves the storage cursor to an
// ancestor for the duration of a read-only evaluation.
package vm

import (
	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/contractvm/ast"
	"github.com/ava-labs/contractvm/blocktree"
	"github.com/ava-labs/contractvm/contractdb"
	"github.com/ava-labs/contractvm/fault"
	"github.com/ava-labs/contractvm/types"
)

const defaultContractCacheSize = 256

// EvalObserver is notified before each expression is evaluated. Observers
// must not affect evaluation.
type EvalObserver interface {
	ObserveEval(contract types.ContractIdentifier, expr *ast.Expr)
}

// OwnedEnvironment executes contracts against a contract database it was
// handed. It inherits the single writer discipline of the block tree.
type OwnedEnvironment struct {
	log        log.Logger
	db         *contractdb.Database
	storage    *blocktree.Storage
	observer   EvalObserver
	contracts  cache.Cacher
	evalBudget uint64
}

type Option func(*OwnedEnvironment)

func WithLogger(logger log.Logger) Option {
	return func(e *OwnedEnvironment) { e.log = logger }
}

func WithEvalObserver(observer EvalObserver) Option {
	return func(e *OwnedEnvironment) { e.observer = observer }
}

// WithContractCache replaces the cache of parsed contracts.
func WithContractCache(c cache.Cacher) Option {
	return func(e *OwnedEnvironment) { e.contracts = c }
}

// WithEvalBudget sets how many expressions one initialization, transaction
// or read-only evaluation may evaluate.
func WithEvalBudget(steps uint64) Option {
	return func(e *OwnedEnvironment) { e.evalBudget = steps }
}

func NewOwnedEnvironment(db *contractdb.Database, opts ...Option) *OwnedEnvironment {
	e := &OwnedEnvironment{
		log:        log.New("module", "vm"),
		db:         db,
		storage:    db.Storage(),
		contracts:  &cache.LRU{Size: defaultContractCacheSize},
		evalBudget: DefaultEvalBudget,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *OwnedEnvironment) Database() *contractdb.Database { return e.db }

func (e *OwnedEnvironment) requireOpenBlock() error {
	if _, open := e.storage.OpenBlock(); !open {
		return fault.NewStorageError(fault.NoOpenBlock, ids.Empty)
	}
	return nil
}

// InitializeContract deploys [source] as [id] in the open block. The
// contract's top-level forms run with the issuer as tx-sender. On failure
// nothing the call wrote survives.
func (e *OwnedEnvironment) InitializeContract(id types.ContractIdentifier, source string) error {
	if err := e.requireOpenBlock(); err != nil {
		return err
	}
	exists, err := e.db.HasContract(id)
	if err != nil {
		return err
	}
	if exists {
		return fault.NewCheckError(fault.ContractAlreadyExists, id.String())
	}
	exprs, err := ast.Parse(source)
	if err != nil {
		return err
	}
	if err := checkRecursion(exprs); err != nil {
		return err
	}

	if err := e.storage.Savepoint(); err != nil {
		return err
	}
	issuer := types.StandardPrincipal(id.Issuer)
	f := &frame{
		contract: newContract(id, exprs),
		sender:   issuer,
		caller:   issuer,
		assets:   NewAssetMap(),
		budget:   e.newBudget(),
	}
	record, err := e.initialize(f)
	if err == nil {
		record.Source = []byte(source)
		err = e.db.InsertContract(id, record)
	}
	if err != nil {
		if revertErr := e.storage.Revert(); revertErr != nil {
			return revertErr
		}
		e.log.Debug("contract initialization failed", "contract", id, "error", err)
		return err
	}
	if err := e.storage.Release(); err != nil {
		return err
	}
	e.log.Debug("initialized contract", "contract", id)
	return nil
}

// ExecuteTransaction calls the public function [name] of [id] as [sender].
// An ok response keeps the call's writes staged in the open block. An err
// response is returned as a value but its writes and transfers are dropped,
// as is everything on error.
func (e *OwnedEnvironment) ExecuteTransaction(sender types.Value, id types.ContractIdentifier, name string, args []types.Value) (types.Value, *AssetMap, error) {
	if !types.IsPrincipal(sender) {
		return nil, nil, typeError("principal", sender)
	}
	if err := e.requireOpenBlock(); err != nil {
		return nil, nil, err
	}
	root := &frame{sender: sender, caller: sender, assets: NewAssetMap(), budget: e.newBudget()}
	result, err := e.callPublic(root, sender, id, name, args)
	if err != nil {
		e.log.Debug("transaction failed", "contract", id, "function", name, "error", err)
		return nil, nil, err
	}
	return result, root.assets, nil
}

// EvalReadOnly evaluates [program] in the context of [id] without allowing
// writes. Without an open block it reads the last committed block.
func (e *OwnedEnvironment) EvalReadOnly(id types.ContractIdentifier, program string) (types.Value, error) {
	c, err := e.loadContract(id)
	if err != nil {
		return nil, err
	}
	exprs, err := ast.Parse(program)
	if err != nil {
		return nil, err
	}
	if len(exprs) == 0 {
		return nil, fault.NewCheckError(fault.BadSyntax, "empty program")
	}
	issuer := types.StandardPrincipal(id.Issuer)
	f := &frame{
		contract: c,
		sender:   issuer,
		caller:   issuer,
		readOnly: true,
		assets:   NewAssetMap(),
		budget:   e.newBudget(),
	}
	var result types.Value
	for _, expr := range exprs {
		if result, err = catchShortReturn(e.eval(f, nil, expr)); err != nil {
			return nil, err
		}
	}
	return result, nil
}
