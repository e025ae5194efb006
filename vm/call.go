// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"github.com/ava-labs/contractvm/ast"
	"github.com/ava-labs/contractvm/fault"
	"github.com/ava-labs/contractvm/types"
)

func evalContractCall(e *OwnedEnvironment, f *frame, l *locals, args []*ast.Expr) (types.Value, error) {
	if len(args) < 2 {
		return nil, fault.NewCheckError(fault.IncorrectArgumentCount, "contract-call!")
	}
	target, err := e.eval(f, l, args[0])
	if err != nil {
		return nil, err
	}
	id, ok := target.(types.ContractIdentifier)
	if !ok {
		return nil, typeError("contract", target)
	}
	name, ok := args[1].MatchAtom()
	if !ok {
		return nil, fault.NewCheckError(fault.BadSyntax, "expected a function name")
	}
	values, err := e.evalAll(f, l, args[2:])
	if err != nil {
		return nil, err
	}
	return e.callPublic(f, f.contract.id, id, name, values)
}

// callPublic invokes the public function [name] of [id] on behalf of [f]'s
// sender. Outside read-only scopes the call runs in its own savepoint: an
// error or an err response discards its writes and transfers, an ok response
// folds them into [f].
func (e *OwnedEnvironment) callPublic(f *frame, caller types.Value, id types.ContractIdentifier, name string, args []types.Value) (types.Value, error) {
	callee, err := e.loadContract(id)
	if err != nil {
		return nil, err
	}
	fn, ok := callee.functions[name]
	if !ok || fn.visibility != publicFunction {
		return nil, fault.NewCheckError(fault.NoSuchPublicFunction, id.String()+"::"+name)
	}

	child := &frame{
		contract: callee,
		sender:   f.sender,
		caller:   caller,
		readOnly: f.readOnly,
		depth:    f.depth,
		assets:   NewAssetMap(),
		budget:   f.budget,
	}
	if child.readOnly {
		return e.callResponse(child, fn, args)
	}

	if err := e.storage.Savepoint(); err != nil {
		return nil, err
	}
	result, err := e.callResponse(child, fn, args)
	if err != nil || !result.(types.Response).Committed {
		if revertErr := e.storage.Revert(); revertErr != nil {
			return nil, revertErr
		}
		return result, err
	}
	if err := e.storage.Release(); err != nil {
		return nil, err
	}
	if err := f.assets.Merge(child.assets); err != nil {
		return nil, err
	}
	return result, nil
}

func (e *OwnedEnvironment) callResponse(f *frame, fn *function, args []types.Value) (types.Value, error) {
	result, err := e.callFunction(f, fn, args)
	if err != nil {
		return nil, err
	}
	if _, ok := result.(types.Response); !ok {
		return nil, fault.NewCheckError(fault.ExpectedResponse, fn.name)
	}
	return result, nil
}
