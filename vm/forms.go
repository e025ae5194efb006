// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"math"

	"github.com/ava-labs/contractvm/ast"
	"github.com/ava-labs/contractvm/fault"
	"github.com/ava-labs/contractvm/types"
)

func init() {
	specialForms = map[string]specialForm{
		"begin":        evalBegin,
		"let":          evalLet,
		"if":           evalIf,
		"and":          evalAnd,
		"or":           evalOr,
		"not":          evalNot,
		"+":            arithmetic("+", addInt),
		"-":            arithmetic("-", subInt),
		"*":            arithmetic("*", mulInt),
		"/":            arithmetic("/", divInt),
		"mod":          evalMod,
		"<":            comparison("<", func(a, b types.Int) bool { return a < b }),
		">":            comparison(">", func(a, b types.Int) bool { return a > b }),
		"<=":           comparison("<=", func(a, b types.Int) bool { return a <= b }),
		">=":           comparison(">=", func(a, b types.Int) bool { return a >= b }),
		"eq?":          evalEquals,
		"is-eq":        evalEquals,
		"print":        evalPrint,
		"tuple":        evalTuple,
		"get":          evalGet,
		"ok":           wrapper("ok", func(v types.Value) types.Value { return types.OkResponse(v) }),
		"err":          wrapper("err", func(v types.Value) types.Value { return types.ErrResponse(v) }),
		"some":         wrapper("some", func(v types.Value) types.Value { return types.Some(v) }),
		"is-ok":        responseTest("is-ok", true),
		"is-err":       responseTest("is-err", false),
		"is-some":      optionalTest("is-some", true),
		"is-none":      optionalTest("is-none", false),
		"default-to":   evalDefaultTo,
		"unwrap!":      evalUnwrap,
		"unwrap-panic": evalUnwrapPanic,
		"asserts!":     evalAsserts,

		"var-get":          evalVarGet,
		"var-set!":         evalVarSet,
		"var-set":          evalVarSet,
		"map-get!":         evalMapGet,
		"map-get?":         evalMapGet,
		"map-set!":         evalMapSet,
		"map-set":          evalMapSet,
		"map-insert!":      evalMapInsert,
		"map-insert":       evalMapInsert,
		"map-delete!":      evalMapDelete,
		"map-delete":       evalMapDelete,
		"contract-map-get": evalContractMapGet,

		"ft-get-balance": evalFTGetBalance,
		"ft-get-supply":  evalFTGetSupply,
		"ft-mint!":       evalFTMint,
		"ft-transfer!":   evalFTTransfer,
		"nft-get-owner":  evalNFTGetOwner,
		"nft-mint!":      evalNFTMint,
		"nft-transfer!":  evalNFTTransfer,

		"contract-call!": evalContractCall,
		"at-block":       evalAtBlock,
	}
}

func evalBegin(e *OwnedEnvironment, f *frame, l *locals, args []*ast.Expr) (types.Value, error) {
	return e.evalSequence(f, l, args)
}

// evalLet binds every name against the enclosing scope, then evaluates the
// body in the extended scope.
func evalLet(e *OwnedEnvironment, f *frame, l *locals, args []*ast.Expr) (types.Value, error) {
	if len(args) < 2 {
		return nil, fault.NewCheckError(fault.IncorrectArgumentCount, "let")
	}
	bindings, ok := args[0].MatchList()
	if !ok {
		return nil, fault.NewCheckError(fault.BadSyntax, "expected let bindings")
	}
	inner := l
	for _, binding := range bindings {
		items, ok := binding.MatchList()
		if !ok || len(items) != 2 {
			return nil, fault.NewCheckError(fault.BadSyntax, "expected (name value) binding")
		}
		name, ok := items[0].MatchAtom()
		if !ok {
			return nil, fault.NewCheckError(fault.BadSyntax, "expected binding name")
		}
		value, err := e.eval(f, l, items[1])
		if err != nil {
			return nil, err
		}
		inner = inner.bind(name, value)
	}
	return e.evalSequence(f, inner, args[1:])
}

func evalIf(e *OwnedEnvironment, f *frame, l *locals, args []*ast.Expr) (types.Value, error) {
	if err := argCount("if", args, 3); err != nil {
		return nil, err
	}
	cond, err := e.evalBool(f, l, args[0])
	if err != nil {
		return nil, err
	}
	if cond {
		return e.eval(f, l, args[1])
	}
	return e.eval(f, l, args[2])
}

func evalAnd(e *OwnedEnvironment, f *frame, l *locals, args []*ast.Expr) (types.Value, error) {
	for _, arg := range args {
		b, err := e.evalBool(f, l, arg)
		if err != nil {
			return nil, err
		}
		if !b {
			return types.Bool(false), nil
		}
	}
	return types.Bool(true), nil
}

func evalOr(e *OwnedEnvironment, f *frame, l *locals, args []*ast.Expr) (types.Value, error) {
	for _, arg := range args {
		b, err := e.evalBool(f, l, arg)
		if err != nil {
			return nil, err
		}
		if b {
			return types.Bool(true), nil
		}
	}
	return types.Bool(false), nil
}

func evalNot(e *OwnedEnvironment, f *frame, l *locals, args []*ast.Expr) (types.Value, error) {
	if err := argCount("not", args, 1); err != nil {
		return nil, err
	}
	b, err := e.evalBool(f, l, args[0])
	if err != nil {
		return nil, err
	}
	return !b, nil
}

func addInt(a, b types.Int) (types.Int, error) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, fault.NewRuntimeError(fault.ArithmeticOverflow, "+")
	}
	if b < 0 && a < math.MinInt64-b {
		return 0, fault.NewRuntimeError(fault.ArithmeticUnderflow, "+")
	}
	return a + b, nil
}

func subInt(a, b types.Int) (types.Int, error) {
	if b < 0 && a > math.MaxInt64+b {
		return 0, fault.NewRuntimeError(fault.ArithmeticOverflow, "-")
	}
	if b > 0 && a < math.MinInt64+b {
		return 0, fault.NewRuntimeError(fault.ArithmeticUnderflow, "-")
	}
	return a - b, nil
}

func mulInt(a, b types.Int) (types.Int, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	c := a * b
	if c/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, fault.NewRuntimeError(fault.ArithmeticOverflow, "*")
	}
	return c, nil
}

func divInt(a, b types.Int) (types.Int, error) {
	if b == 0 {
		return 0, fault.NewRuntimeError(fault.DivisionByZero, "/")
	}
	if a == math.MinInt64 && b == -1 {
		return 0, fault.NewRuntimeError(fault.ArithmeticOverflow, "/")
	}
	return a / b, nil
}

// arithmetic folds [op] over one or more integer arguments. A single
// argument to - is negated.
func arithmetic(name string, op func(a, b types.Int) (types.Int, error)) specialForm {
	return func(e *OwnedEnvironment, f *frame, l *locals, args []*ast.Expr) (types.Value, error) {
		if len(args) == 0 {
			return nil, fault.NewCheckError(fault.IncorrectArgumentCount, name)
		}
		acc, err := e.evalInt(f, l, args[0])
		if err != nil {
			return nil, err
		}
		if len(args) == 1 && name == "-" {
			return subInt(0, acc)
		}
		for _, arg := range args[1:] {
			next, err := e.evalInt(f, l, arg)
			if err != nil {
				return nil, err
			}
			if acc, err = op(acc, next); err != nil {
				return nil, err
			}
		}
		return acc, nil
	}
}

func evalMod(e *OwnedEnvironment, f *frame, l *locals, args []*ast.Expr) (types.Value, error) {
	if err := argCount("mod", args, 2); err != nil {
		return nil, err
	}
	a, err := e.evalInt(f, l, args[0])
	if err != nil {
		return nil, err
	}
	b, err := e.evalInt(f, l, args[1])
	if err != nil {
		return nil, err
	}
	if b == 0 {
		return nil, fault.NewRuntimeError(fault.DivisionByZero, "mod")
	}
	if b == -1 {
		return types.Int(0), nil
	}
	return a % b, nil
}

func comparison(name string, cmp func(a, b types.Int) bool) specialForm {
	return func(e *OwnedEnvironment, f *frame, l *locals, args []*ast.Expr) (types.Value, error) {
		if err := argCount(name, args, 2); err != nil {
			return nil, err
		}
		a, err := e.evalInt(f, l, args[0])
		if err != nil {
			return nil, err
		}
		b, err := e.evalInt(f, l, args[1])
		if err != nil {
			return nil, err
		}
		return types.Bool(cmp(a, b)), nil
	}
}

func evalEquals(e *OwnedEnvironment, f *frame, l *locals, args []*ast.Expr) (types.Value, error) {
	if len(args) == 0 {
		return nil, fault.NewCheckError(fault.IncorrectArgumentCount, "eq?")
	}
	values, err := e.evalAll(f, l, args)
	if err != nil {
		return nil, err
	}
	for _, value := range values[1:] {
		if !types.Equal(values[0], value) {
			return types.Bool(false), nil
		}
	}
	return types.Bool(true), nil
}

func evalPrint(e *OwnedEnvironment, f *frame, l *locals, args []*ast.Expr) (types.Value, error) {
	if err := argCount("print", args, 1); err != nil {
		return nil, err
	}
	value, err := e.eval(f, l, args[0])
	if err != nil {
		return nil, err
	}
	e.log.Info("print", "contract", f.contract.id, "value", value)
	return value, nil
}

func evalTuple(e *OwnedEnvironment, f *frame, l *locals, args []*ast.Expr) (types.Value, error) {
	return e.evalTupleFields(f, l, args)
}

// evalGet reads a tuple field. Applied to an optional tuple it returns an
// optional field.
func evalGet(e *OwnedEnvironment, f *frame, l *locals, args []*ast.Expr) (types.Value, error) {
	if err := argCount("get", args, 2); err != nil {
		return nil, err
	}
	name, ok := args[0].MatchAtom()
	if !ok {
		return nil, fault.NewCheckError(fault.BadSyntax, "expected tuple field name")
	}
	value, err := e.eval(f, l, args[1])
	if err != nil {
		return nil, err
	}
	field := func(v types.Value) (types.Value, error) {
		tuple, ok := v.(types.Tuple)
		if !ok {
			return nil, typeError("tuple", v)
		}
		fieldValue, ok := tuple.Get(name)
		if !ok {
			return nil, fault.NewCheckError(fault.NoSuchTupleField, name)
		}
		return fieldValue, nil
	}
	if optional, ok := value.(types.Optional); ok {
		if !optional.IsSome() {
			return types.None, nil
		}
		fieldValue, err := field(optional.Value)
		if err != nil {
			return nil, err
		}
		return types.Some(fieldValue), nil
	}
	return field(value)
}

func wrapper(name string, wrap func(types.Value) types.Value) specialForm {
	return func(e *OwnedEnvironment, f *frame, l *locals, args []*ast.Expr) (types.Value, error) {
		if err := argCount(name, args, 1); err != nil {
			return nil, err
		}
		value, err := e.eval(f, l, args[0])
		if err != nil {
			return nil, err
		}
		return wrap(value), nil
	}
}

func responseTest(name string, committed bool) specialForm {
	return func(e *OwnedEnvironment, f *frame, l *locals, args []*ast.Expr) (types.Value, error) {
		if err := argCount(name, args, 1); err != nil {
			return nil, err
		}
		value, err := e.eval(f, l, args[0])
		if err != nil {
			return nil, err
		}
		response, ok := value.(types.Response)
		if !ok {
			return nil, typeError("response", value)
		}
		return types.Bool(response.Committed == committed), nil
	}
}

func optionalTest(name string, some bool) specialForm {
	return func(e *OwnedEnvironment, f *frame, l *locals, args []*ast.Expr) (types.Value, error) {
		if err := argCount(name, args, 1); err != nil {
			return nil, err
		}
		value, err := e.eval(f, l, args[0])
		if err != nil {
			return nil, err
		}
		optional, ok := value.(types.Optional)
		if !ok {
			return nil, typeError("optional", value)
		}
		return types.Bool(optional.IsSome() == some), nil
	}
}

func evalDefaultTo(e *OwnedEnvironment, f *frame, l *locals, args []*ast.Expr) (types.Value, error) {
	if err := argCount("default-to", args, 2); err != nil {
		return nil, err
	}
	fallback, err := e.eval(f, l, args[0])
	if err != nil {
		return nil, err
	}
	value, err := e.eval(f, l, args[1])
	if err != nil {
		return nil, err
	}
	optional, ok := value.(types.Optional)
	if !ok {
		return nil, typeError("optional", value)
	}
	if optional.IsSome() {
		return optional.Value, nil
	}
	return fallback, nil
}

// unwrapped returns the payload of (some x) or (ok x).
func unwrapped(value types.Value) (types.Value, bool, error) {
	switch v := value.(type) {
	case types.Optional:
		return v.Value, v.IsSome(), nil
	case types.Response:
		return v.Value, v.Committed, nil
	default:
		return nil, false, typeError("optional or response", value)
	}
}

func evalUnwrap(e *OwnedEnvironment, f *frame, l *locals, args []*ast.Expr) (types.Value, error) {
	if err := argCount("unwrap!", args, 2); err != nil {
		return nil, err
	}
	value, err := e.eval(f, l, args[0])
	if err != nil {
		return nil, err
	}
	inner, ok, err := unwrapped(value)
	if err != nil || ok {
		return inner, err
	}
	thrown, err := e.eval(f, l, args[1])
	if err != nil {
		return nil, err
	}
	return nil, &shortReturn{value: thrown}
}

func evalUnwrapPanic(e *OwnedEnvironment, f *frame, l *locals, args []*ast.Expr) (types.Value, error) {
	if err := argCount("unwrap-panic", args, 1); err != nil {
		return nil, err
	}
	value, err := e.eval(f, l, args[0])
	if err != nil {
		return nil, err
	}
	inner, ok, err := unwrapped(value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fault.NewRuntimeError(fault.UnwrapFailure, value.String())
	}
	return inner, nil
}

func evalAsserts(e *OwnedEnvironment, f *frame, l *locals, args []*ast.Expr) (types.Value, error) {
	if err := argCount("asserts!", args, 2); err != nil {
		return nil, err
	}
	cond, err := e.evalBool(f, l, args[0])
	if err != nil {
		return nil, err
	}
	if cond {
		return types.Bool(true), nil
	}
	thrown, err := e.eval(f, l, args[1])
	if err != nil {
		return nil, err
	}
	return nil, &shortReturn{value: thrown}
}
