// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"errors"

	"github.com/ava-labs/contractvm/ast"
	"github.com/ava-labs/contractvm/fault"
	"github.com/ava-labs/contractvm/types"
)

// MaxCallDepth bounds nested function and contract calls.
const MaxCallDepth = 64

// frame is the context a function body evaluates in.
type frame struct {
	contract *contract
	sender   types.Value
	caller   types.Value
	readOnly bool
	depth    int
	assets   *AssetMap
	// budget is shared by every frame of one entry point.
	budget *budget
}

// readOnlyFrame returns a copy of [f] that rejects writes.
func (f *frame) readOnlyFrame() *frame {
	g := *f
	g.readOnly = true
	return &g
}

func (f *frame) checkWrite(form string) error {
	if f.readOnly {
		return fault.NewCheckError(fault.WriteAttemptedInReadOnly, form)
	}
	return nil
}

// locals is an immutable chain of let and argument bindings.
type locals struct {
	name  string
	value types.Value
	next  *locals
}

func (l *locals) bind(name string, value types.Value) *locals {
	return &locals{name: name, value: value, next: l}
}

func (l *locals) lookup(name string) (types.Value, bool) {
	for ; l != nil; l = l.next {
		if l.name == name {
			return l.value, true
		}
	}
	return nil, false
}

// shortReturn unwinds evaluation to the enclosing function, which returns
// [value]. It is raised by asserts! and unwrap!.
type shortReturn struct {
	value types.Value
}

func (*shortReturn) Error() string { return "short return outside of a function" }

// catchShortReturn turns a short return into a normal result.
func catchShortReturn(value types.Value, err error) (types.Value, error) {
	var sr *shortReturn
	if errors.As(err, &sr) {
		return sr.value, nil
	}
	return value, err
}

type specialForm func(e *OwnedEnvironment, f *frame, l *locals, args []*ast.Expr) (types.Value, error)

var specialForms map[string]specialForm

func (e *OwnedEnvironment) eval(f *frame, l *locals, expr *ast.Expr) (types.Value, error) {
	if err := f.budget.spend(); err != nil {
		return nil, err
	}
	if e.observer != nil {
		e.observer.ObserveEval(f.contract.id, expr)
	}

	switch expr.Kind {
	case ast.Literal:
		return expr.Value, nil
	case ast.ContractRef:
		return types.ContractIdentifier{Issuer: f.contract.id.Issuer, Name: expr.Atom}, nil
	case ast.Atom:
		return e.lookupName(f, l, expr.Atom)
	}

	name, ok := expr.Head()
	if !ok {
		return nil, fault.NewCheckError(fault.BadSyntax, "expected a function name")
	}
	args := expr.List[1:]
	if form, ok := specialForms[name]; ok {
		return form(e, f, l, args)
	}
	if isDefine(name) {
		return nil, fault.NewCheckError(fault.DefineOutsideTopLevel, name)
	}

	fn, ok := f.contract.functions[name]
	if !ok {
		return nil, fault.NewCheckError(fault.NoSuchFunction, name)
	}
	values, err := e.evalAll(f, l, args)
	if err != nil {
		return nil, err
	}
	return e.callFunction(f, fn, values)
}

func (e *OwnedEnvironment) lookupName(f *frame, l *locals, name string) (types.Value, error) {
	if value, ok := l.lookup(name); ok {
		return value, nil
	}
	if value, ok := f.contract.constants[name]; ok {
		return value, nil
	}
	switch name {
	case "tx-sender":
		return f.sender, nil
	case "contract-caller":
		return f.caller, nil
	case "block-height":
		height, err := e.storage.CursorHeight()
		if err != nil {
			return nil, err
		}
		return types.Int(height), nil
	case "none":
		return types.None, nil
	}
	return nil, fault.NewCheckError(fault.UndefinedVariable, name)
}

func (e *OwnedEnvironment) evalAll(f *frame, l *locals, exprs []*ast.Expr) ([]types.Value, error) {
	values := make([]types.Value, len(exprs))
	for i, expr := range exprs {
		value, err := e.eval(f, l, expr)
		if err != nil {
			return nil, err
		}
		values[i] = value
	}
	return values, nil
}

// evalSequence evaluates [exprs] in order and returns the last value.
func (e *OwnedEnvironment) evalSequence(f *frame, l *locals, exprs []*ast.Expr) (types.Value, error) {
	if len(exprs) == 0 {
		return nil, fault.NewCheckError(fault.IncorrectArgumentCount, "empty body")
	}
	var (
		value types.Value
		err   error
	)
	for _, expr := range exprs {
		if value, err = e.eval(f, l, expr); err != nil {
			return nil, err
		}
	}
	return value, nil
}

// callFunction invokes [fn] of the frame's contract. Read-only functions run
// read-only regardless of the caller.
func (e *OwnedEnvironment) callFunction(f *frame, fn *function, args []types.Value) (types.Value, error) {
	if len(args) != len(fn.params) {
		return nil, fault.NewCheckError(fault.IncorrectArgumentCount, fn.name)
	}
	if f.depth+1 > MaxCallDepth {
		return nil, fault.NewRuntimeError(fault.MaxCallDepthExceeded, fn.name)
	}
	callee := *f
	callee.depth++
	if fn.visibility == readOnlyFunction {
		callee.readOnly = true
	}

	var l *locals
	for i, param := range fn.params {
		l = l.bind(param, args[i])
	}
	return catchShortReturn(e.evalSequence(&callee, l, fn.body))
}

// evalInt evaluates [expr] and requires an integer.
func (e *OwnedEnvironment) evalInt(f *frame, l *locals, expr *ast.Expr) (types.Int, error) {
	value, err := e.eval(f, l, expr)
	if err != nil {
		return 0, err
	}
	i, ok := value.(types.Int)
	if !ok {
		return 0, typeError("int", value)
	}
	return i, nil
}

func (e *OwnedEnvironment) evalBool(f *frame, l *locals, expr *ast.Expr) (types.Bool, error) {
	value, err := e.eval(f, l, expr)
	if err != nil {
		return false, err
	}
	b, ok := value.(types.Bool)
	if !ok {
		return false, typeError("bool", value)
	}
	return b, nil
}

func (e *OwnedEnvironment) evalPrincipal(f *frame, l *locals, expr *ast.Expr) (types.Value, error) {
	value, err := e.eval(f, l, expr)
	if err != nil {
		return nil, err
	}
	if !types.IsPrincipal(value) {
		return nil, typeError("principal", value)
	}
	return value, nil
}

// evalTupleOrExpr accepts the implicit tuple syntax ((name expr) ...) used
// for map keys and values, and otherwise evaluates [expr] normally.
func (e *OwnedEnvironment) evalTupleOrExpr(f *frame, l *locals, expr *ast.Expr) (types.Value, error) {
	if items, ok := expr.MatchList(); ok && len(items) > 0 && items[0].Kind == ast.List {
		return e.evalTupleFields(f, l, items)
	}
	return e.eval(f, l, expr)
}

func (e *OwnedEnvironment) evalTupleFields(f *frame, l *locals, pairs []*ast.Expr) (types.Value, error) {
	fields := make([]types.TupleField, 0, len(pairs))
	for _, pair := range pairs {
		items, ok := pair.MatchList()
		if !ok || len(items) != 2 {
			return nil, fault.NewCheckError(fault.BadSyntax, "expected (name value) pair")
		}
		name, ok := items[0].MatchAtom()
		if !ok {
			return nil, fault.NewCheckError(fault.BadSyntax, "expected tuple field name")
		}
		value, err := e.eval(f, l, items[1])
		if err != nil {
			return nil, err
		}
		fields = append(fields, types.TupleField{Name: name, Value: value})
	}
	tuple, err := types.NewTuple(fields...)
	if err != nil {
		return nil, fault.NewCheckError(fault.BadSyntax, err.Error())
	}
	return tuple, nil
}

func typeError(expected string, got types.Value) error {
	if got == nil {
		return fault.NewCheckError(fault.TypeError, "expected "+expected)
	}
	return fault.NewCheckError(fault.TypeError, "expected "+expected+", got "+got.String())
}

func argCount(form string, args []*ast.Expr, n int) error {
	if len(args) != n {
		return fault.NewCheckError(fault.IncorrectArgumentCount, form)
	}
	return nil
}
