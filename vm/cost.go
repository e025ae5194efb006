// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"sort"

	"github.com/ava-labs/contractvm/ast"
	"github.com/ava-labs/contractvm/fault"
)

// DefaultEvalBudget is the number of expressions one entry point may
// evaluate, contract calls included.
const DefaultEvalBudget = 1 << 20

type budget struct {
	remaining uint64
}

func (e *OwnedEnvironment) newBudget() *budget {
	return &budget{remaining: e.evalBudget}
}

func (b *budget) spend() error {
	if b.remaining == 0 {
		return fault.NewRuntimeError(fault.CostBalanceExceeded, "")
	}
	b.remaining--
	return nil
}

const (
	unvisited = iota
	visiting
	visited
)

// checkRecursion rejects contracts whose functions call themselves, directly
// or through each other. Calls through contract-call! are bounded by the
// call depth and the evaluation budget instead.
func checkRecursion(exprs []*ast.Expr) error {
	bodies := make(map[string][]*ast.Expr)
	for _, expr := range exprs {
		form, ok := expr.Head()
		if _, isFunction := functionDefines[form]; !ok || !isFunction || len(expr.List) < 3 {
			continue
		}
		signature, ok := expr.List[1].MatchList()
		if !ok || len(signature) == 0 {
			continue
		}
		if name, ok := signature[0].MatchAtom(); ok {
			bodies[name] = expr.List[2:]
		}
	}

	names := make([]string, 0, len(bodies))
	calls := make(map[string][]string, len(bodies))
	for name, body := range bodies {
		names = append(names, name)
		for _, expr := range body {
			calls[name] = appendCalls(calls[name], expr, bodies)
		}
	}
	sort.Strings(names)

	state := make(map[string]int, len(bodies))
	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visiting:
			return fault.NewCheckError(fault.CircularReference, name)
		case visited:
			return nil
		}
		state[name] = visiting
		for _, callee := range calls[name] {
			if err := visit(callee); err != nil {
				return err
			}
		}
		state[name] = visited
		return nil
	}
	for _, name := range names {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}

// appendCalls appends every function of [functions] that [expr] calls.
// Special forms shadow functions of the same name.
func appendCalls(calls []string, expr *ast.Expr, functions map[string][]*ast.Expr) []string {
	if expr.Kind != ast.List {
		return calls
	}
	if name, ok := expr.Head(); ok {
		_, special := specialForms[name]
		if _, ok := functions[name]; ok && !special {
			calls = append(calls, name)
		}
	}
	for _, item := range expr.List {
		calls = appendCalls(calls, item, functions)
	}
	return calls
}
