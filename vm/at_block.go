// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/contractvm/ast"
	"github.com/ava-labs/contractvm/fault"
	"github.com/ava-labs/contractvm/types"
)

// evalAtBlock evaluates (at-block hash expr): [expr] runs read-only with the
// storage cursor on [hash], which must be the current cursor or one of its
// ancestors. The cursor is restored however [expr] returns.
func evalAtBlock(e *OwnedEnvironment, f *frame, l *locals, args []*ast.Expr) (types.Value, error) {
	if err := argCount("at-block", args, 2); err != nil {
		return nil, err
	}
	target, err := e.eval(f, l, args[0])
	if err != nil {
		return nil, err
	}
	buffer, ok := target.(types.Buffer)
	if !ok || len(buffer) != len(ids.ID{}) {
		return nil, typeError("32 byte block hash", target)
	}
	hash, err := ids.ToID(buffer)
	if err != nil {
		return nil, err
	}

	var (
		result  types.Value
		entered bool
	)
	err = e.storage.WithCursor(hash, func() error {
		entered = true
		var err error
		result, err = e.eval(f.readOnlyFrame(), l, args[1])
		return err
	})
	if !entered && fault.IsStorage(err, fault.UnknownBlockHeaderHash) {
		return nil, fault.UnknownBlock(hash)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}
