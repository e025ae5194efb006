// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"github.com/ava-labs/contractvm/ast"
	"github.com/ava-labs/contractvm/fault"
	"github.com/ava-labs/contractvm/types"
)

func entityName(expr *ast.Expr) (string, error) {
	name, ok := expr.MatchAtom()
	if !ok {
		return "", fault.NewCheckError(fault.BadSyntax, "expected a defined name")
	}
	return name, nil
}

func evalVarGet(e *OwnedEnvironment, f *frame, _ *locals, args []*ast.Expr) (types.Value, error) {
	if err := argCount("var-get", args, 1); err != nil {
		return nil, err
	}
	name, err := entityName(args[0])
	if err != nil {
		return nil, err
	}
	return e.db.LookupVariable(f.contract.id, name)
}

func evalVarSet(e *OwnedEnvironment, f *frame, l *locals, args []*ast.Expr) (types.Value, error) {
	if err := argCount("var-set!", args, 2); err != nil {
		return nil, err
	}
	if err := f.checkWrite("var-set!"); err != nil {
		return nil, err
	}
	name, err := entityName(args[0])
	if err != nil {
		return nil, err
	}
	value, err := e.eval(f, l, args[1])
	if err != nil {
		return nil, err
	}
	if err := e.db.SetVariable(f.contract.id, name, value); err != nil {
		return nil, err
	}
	return types.Bool(true), nil
}

func evalMapGet(e *OwnedEnvironment, f *frame, l *locals, args []*ast.Expr) (types.Value, error) {
	if err := argCount("map-get!", args, 2); err != nil {
		return nil, err
	}
	return e.fetchEntry(f, l, f.contract.id, args[0], args[1])
}

// evalContractMapGet reads another contract's map. Only the map definition
// is resolved, so a missing contract surfaces as a missing map.
func evalContractMapGet(e *OwnedEnvironment, f *frame, l *locals, args []*ast.Expr) (types.Value, error) {
	if err := argCount("contract-map-get", args, 3); err != nil {
		return nil, err
	}
	target, err := e.eval(f, l, args[0])
	if err != nil {
		return nil, err
	}
	id, ok := target.(types.ContractIdentifier)
	if !ok {
		return nil, typeError("contract", target)
	}
	return e.fetchEntry(f, l, id, args[1], args[2])
}

func (e *OwnedEnvironment) fetchEntry(f *frame, l *locals, id types.ContractIdentifier, nameExpr, keyExpr *ast.Expr) (types.Value, error) {
	name, err := entityName(nameExpr)
	if err != nil {
		return nil, err
	}
	key, err := e.evalTupleOrExpr(f, l, keyExpr)
	if err != nil {
		return nil, err
	}
	return e.db.FetchEntry(id, name, key)
}

// mapWrite evaluates the (name key [value]) arguments of a map mutation.
func (e *OwnedEnvironment) mapWrite(f *frame, l *locals, form string, args []*ast.Expr, withValue bool) (string, types.Value, types.Value, error) {
	n := 2
	if withValue {
		n = 3
	}
	if err := argCount(form, args, n); err != nil {
		return "", nil, nil, err
	}
	if err := f.checkWrite(form); err != nil {
		return "", nil, nil, err
	}
	name, err := entityName(args[0])
	if err != nil {
		return "", nil, nil, err
	}
	key, err := e.evalTupleOrExpr(f, l, args[1])
	if err != nil {
		return "", nil, nil, err
	}
	if !withValue {
		return name, key, nil, nil
	}
	value, err := e.evalTupleOrExpr(f, l, args[2])
	if err != nil {
		return "", nil, nil, err
	}
	return name, key, value, nil
}

func evalMapSet(e *OwnedEnvironment, f *frame, l *locals, args []*ast.Expr) (types.Value, error) {
	name, key, value, err := e.mapWrite(f, l, "map-set!", args, true)
	if err != nil {
		return nil, err
	}
	if err := e.db.SetEntry(f.contract.id, name, key, value); err != nil {
		return nil, err
	}
	return types.Bool(true), nil
}

func evalMapInsert(e *OwnedEnvironment, f *frame, l *locals, args []*ast.Expr) (types.Value, error) {
	name, key, value, err := e.mapWrite(f, l, "map-insert!", args, true)
	if err != nil {
		return nil, err
	}
	inserted, err := e.db.InsertEntry(f.contract.id, name, key, value)
	if err != nil {
		return nil, err
	}
	return types.Bool(inserted), nil
}

func evalMapDelete(e *OwnedEnvironment, f *frame, l *locals, args []*ast.Expr) (types.Value, error) {
	name, key, _, err := e.mapWrite(f, l, "map-delete!", args, false)
	if err != nil {
		return nil, err
	}
	deleted, err := e.db.DeleteEntry(f.contract.id, name, key)
	if err != nil {
		return nil, err
	}
	return types.Bool(deleted), nil
}
