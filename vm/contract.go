// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/contractvm/ast"
	"github.com/ava-labs/contractvm/contractdb"
	"github.com/ava-labs/contractvm/fault"
	"github.com/ava-labs/contractvm/types"
)

type visibility byte

const (
	publicFunction visibility = iota
	privateFunction
	readOnlyFunction
)

var functionDefines = map[string]visibility{
	"define-public":    publicFunction,
	"define-private":   privateFunction,
	"define-read-only": readOnlyFunction,
}

type function struct {
	name       string
	visibility visibility
	params     []string
	body       []*ast.Expr
}

// contract is the evaluable form of a deployed contract.
type contract struct {
	id        types.ContractIdentifier
	exprs     []*ast.Expr
	functions map[string]*function
	constants map[string]types.Value
	// names holds every name defined at top level.
	names map[string]struct{}
}

func newContract(id types.ContractIdentifier, exprs []*ast.Expr) *contract {
	return &contract{
		id:        id,
		exprs:     exprs,
		functions: make(map[string]*function),
		constants: make(map[string]types.Value),
		names:     make(map[string]struct{}),
	}
}

func isDefine(name string) bool { return strings.HasPrefix(name, "define-") }

func (c *contract) claim(name string) error {
	if _, ok := c.names[name]; ok {
		return fault.NewCheckError(fault.NameAlreadyUsed, name)
	}
	c.names[name] = struct{}{}
	return nil
}

// defineFunction registers a (define-public|private|read-only (name params...) body...) form.
func (c *contract) defineFunction(form string, args []*ast.Expr) error {
	if len(args) < 2 {
		return fault.NewCheckError(fault.IncorrectArgumentCount, form)
	}
	signature, ok := args[0].MatchList()
	if !ok || len(signature) == 0 {
		return fault.NewCheckError(fault.BadSyntax, "expected function signature")
	}
	name, ok := signature[0].MatchAtom()
	if !ok {
		return fault.NewCheckError(fault.BadSyntax, "expected function name")
	}
	fn := &function{
		name:       name,
		visibility: functionDefines[form],
		body:       args[1:],
	}
	for _, param := range signature[1:] {
		items, ok := param.MatchList()
		if !ok || len(items) != 2 {
			return fault.NewCheckError(fault.BadSyntax, "expected (name type) parameter")
		}
		paramName, ok := items[0].MatchAtom()
		if !ok {
			return fault.NewCheckError(fault.BadSyntax, "expected parameter name")
		}
		fn.params = append(fn.params, paramName)
	}
	if err := c.claim(name); err != nil {
		return err
	}
	c.functions[name] = fn
	return nil
}

type contractKey struct {
	id   types.ContractIdentifier
	hash ids.ID
}

// loadContract returns the contract [id] as visible at the storage cursor.
func (e *OwnedEnvironment) loadContract(id types.ContractIdentifier) (*contract, error) {
	record, err := e.db.GetContract(id)
	if err != nil {
		return nil, err
	}
	hash, err := record.Hash()
	if err != nil {
		return nil, err
	}
	key := contractKey{id: id, hash: hash}
	if cached, ok := e.contracts.Get(key); ok {
		return cached.(*contract), nil
	}

	exprs, err := ast.Parse(string(record.Source))
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored contract %s: %w", id, err)
	}
	c := newContract(id, exprs)
	for _, constant := range record.Constants {
		value, err := types.Deserialize(constant.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to parse constant %s of %s: %w", constant.Name, id, err)
		}
		c.constants[constant.Name] = value
	}
	for _, expr := range exprs {
		name, ok := expr.Head()
		if _, isFunction := functionDefines[name]; !ok || !isFunction {
			continue
		}
		if err := c.defineFunction(name, expr.List[1:]); err != nil {
			return nil, err
		}
	}
	e.contracts.Put(key, c)
	return c, nil
}

// initialize evaluates the top-level forms of a new contract, creating its
// definitions in the open block, and returns the record to store.
func (e *OwnedEnvironment) initialize(f *frame) (*contractdb.Contract, error) {
	c := f.contract
	record := &contractdb.Contract{}
	for _, expr := range c.exprs {
		name, _ := expr.Head()
		if !isDefine(name) {
			if _, err := catchShortReturn(e.eval(f, nil, expr)); err != nil {
				return nil, err
			}
			continue
		}

		args := expr.List[1:]
		if _, ok := functionDefines[name]; ok {
			if err := c.defineFunction(name, args); err != nil {
				return nil, err
			}
			continue
		}
		if len(args) == 0 {
			return nil, fault.NewCheckError(fault.IncorrectArgumentCount, name)
		}
		entity, ok := args[0].MatchAtom()
		if !ok {
			return nil, fault.NewCheckError(fault.BadSyntax, "expected a name to define")
		}
		if err := c.claim(entity); err != nil {
			return nil, err
		}
		if err := e.define(f, name, entity, args[1:], record); err != nil {
			return nil, err
		}
	}
	return record, nil
}

func (e *OwnedEnvironment) define(f *frame, form, name string, args []*ast.Expr, record *contractdb.Contract) error {
	id := f.contract.id
	switch form {
	case "define-constant":
		if err := argCount(form, args, 1); err != nil {
			return err
		}
		value, err := e.eval(f, nil, args[0])
		if err != nil {
			return err
		}
		raw, err := types.Serialize(value)
		if err != nil {
			return err
		}
		f.contract.constants[name] = value
		record.Constants = append(record.Constants, contractdb.Constant{Name: name, Value: raw})
		return nil
	case "define-data-var":
		if err := argCount(form, args, 2); err != nil {
			return err
		}
		value, err := e.eval(f, nil, args[1])
		if err != nil {
			return err
		}
		return e.db.CreateVariable(id, name, value)
	case "define-map":
		if err := argCount(form, args, 2); err != nil {
			return err
		}
		return e.db.CreateMap(id, name)
	case "define-fungible-token":
		if len(args) > 1 {
			return fault.NewCheckError(fault.IncorrectArgumentCount, form)
		}
		var maxSupply *uint256.Int
		if len(args) == 1 {
			supply, err := e.evalInt(f, nil, args[0])
			if err != nil {
				return err
			}
			if supply <= 0 {
				return fault.NewCheckError(fault.TypeError, "max supply must be positive")
			}
			maxSupply = uint256.NewInt(uint64(supply))
		}
		return e.db.CreateFungibleToken(id, name, maxSupply)
	case "define-non-fungible-token":
		if err := argCount(form, args, 1); err != nil {
			return err
		}
		return e.db.CreateNonFungibleToken(id, name)
	default:
		return fault.NewCheckError(fault.BadSyntax, "unknown definition "+form)
	}
}
