// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"math"

	"github.com/holiman/uint256"

	"github.com/ava-labs/contractvm/ast"
	"github.com/ava-labs/contractvm/fault"
	"github.com/ava-labs/contractvm/types"
)

// Error codes returned by the token transfer forms.
const (
	errCodeInsufficientBalance = 1
	errCodeNonPositiveMint     = 1
	errCodeAlreadyExists       = 1
	errCodeNotOwner            = 1
	errCodeSenderIsRecipient   = 2
	errCodeNonPositiveAmount   = 3
	errCodeNoSuchAsset         = 3
)

func errCode(code int64) types.Value { return types.ErrResponse(types.Int(code)) }

var okTrue = types.OkResponse(types.Bool(true))

func toInt(amount *uint256.Int) (types.Int, error) {
	if !amount.IsUint64() || amount.Uint64() > math.MaxInt64 {
		return 0, fault.NewRuntimeError(fault.ArithmeticOverflow, amount.Dec())
	}
	return types.Int(amount.Uint64()), nil
}

func evalFTGetBalance(e *OwnedEnvironment, f *frame, l *locals, args []*ast.Expr) (types.Value, error) {
	if err := argCount("ft-get-balance", args, 2); err != nil {
		return nil, err
	}
	token, err := entityName(args[0])
	if err != nil {
		return nil, err
	}
	owner, err := e.evalPrincipal(f, l, args[1])
	if err != nil {
		return nil, err
	}
	balance, err := e.db.GetFTBalance(f.contract.id, token, owner)
	if err != nil {
		return nil, err
	}
	return toInt(balance)
}

func evalFTGetSupply(e *OwnedEnvironment, f *frame, _ *locals, args []*ast.Expr) (types.Value, error) {
	if err := argCount("ft-get-supply", args, 1); err != nil {
		return nil, err
	}
	token, err := entityName(args[0])
	if err != nil {
		return nil, err
	}
	supply, err := e.db.GetFTSupply(f.contract.id, token)
	if err != nil {
		return nil, err
	}
	return toInt(supply)
}

func evalFTMint(e *OwnedEnvironment, f *frame, l *locals, args []*ast.Expr) (types.Value, error) {
	if err := argCount("ft-mint!", args, 3); err != nil {
		return nil, err
	}
	if err := f.checkWrite("ft-mint!"); err != nil {
		return nil, err
	}
	token, err := entityName(args[0])
	if err != nil {
		return nil, err
	}
	amount, err := e.evalInt(f, l, args[1])
	if err != nil {
		return nil, err
	}
	recipient, err := e.evalPrincipal(f, l, args[2])
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return errCode(errCodeNonPositiveMint), nil
	}

	id := f.contract.id
	delta := uint256.NewInt(uint64(amount))
	supply, err := e.db.GetFTSupply(id, token)
	if err != nil {
		return nil, err
	}
	newSupply, overflow := new(uint256.Int).AddOverflow(supply, delta)
	if overflow {
		return nil, fault.NewRuntimeError(fault.SupplyOverflow, token)
	}
	limit, bounded, err := e.db.FTMaxSupply(id, token)
	if err != nil {
		return nil, err
	}
	if bounded && newSupply.Gt(limit) {
		return nil, fault.NewRuntimeError(fault.SupplyOverflow, token)
	}

	balance, err := e.db.GetFTBalance(id, token, recipient)
	if err != nil {
		return nil, err
	}
	if err := e.db.SetFTBalance(id, token, recipient, balance.Add(balance, delta)); err != nil {
		return nil, err
	}
	if err := e.db.SetFTSupply(id, token, newSupply); err != nil {
		return nil, err
	}
	return okTrue, nil
}

func evalFTTransfer(e *OwnedEnvironment, f *frame, l *locals, args []*ast.Expr) (types.Value, error) {
	if err := argCount("ft-transfer!", args, 4); err != nil {
		return nil, err
	}
	if err := f.checkWrite("ft-transfer!"); err != nil {
		return nil, err
	}
	token, err := entityName(args[0])
	if err != nil {
		return nil, err
	}
	amount, err := e.evalInt(f, l, args[1])
	if err != nil {
		return nil, err
	}
	sender, err := e.evalPrincipal(f, l, args[2])
	if err != nil {
		return nil, err
	}
	recipient, err := e.evalPrincipal(f, l, args[3])
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return errCode(errCodeNonPositiveAmount), nil
	}
	if types.Equal(sender, recipient) {
		return errCode(errCodeSenderIsRecipient), nil
	}

	id := f.contract.id
	delta := uint256.NewInt(uint64(amount))
	senderBalance, err := e.db.GetFTBalance(id, token, sender)
	if err != nil {
		return nil, err
	}
	if senderBalance.Lt(delta) {
		return errCode(errCodeInsufficientBalance), nil
	}
	recipientBalance, err := e.db.GetFTBalance(id, token, recipient)
	if err != nil {
		return nil, err
	}
	if _, overflow := recipientBalance.AddOverflow(recipientBalance, delta); overflow {
		return nil, fault.NewRuntimeError(fault.ArithmeticOverflow, token)
	}
	if err := e.db.SetFTBalance(id, token, sender, senderBalance.Sub(senderBalance, delta)); err != nil {
		return nil, err
	}
	if err := e.db.SetFTBalance(id, token, recipient, recipientBalance); err != nil {
		return nil, err
	}
	if err := f.assets.AddTokenTransfer(sender, assetIdentifier(id, token), delta); err != nil {
		return nil, err
	}
	return okTrue, nil
}

func evalNFTGetOwner(e *OwnedEnvironment, f *frame, l *locals, args []*ast.Expr) (types.Value, error) {
	if err := argCount("nft-get-owner", args, 2); err != nil {
		return nil, err
	}
	token, err := entityName(args[0])
	if err != nil {
		return nil, err
	}
	asset, err := e.eval(f, l, args[1])
	if err != nil {
		return nil, err
	}
	owner, minted, err := e.db.GetNFTOwner(f.contract.id, token, asset)
	if err != nil {
		return nil, err
	}
	if !minted {
		return types.None, nil
	}
	return types.Some(owner), nil
}

func evalNFTMint(e *OwnedEnvironment, f *frame, l *locals, args []*ast.Expr) (types.Value, error) {
	if err := argCount("nft-mint!", args, 3); err != nil {
		return nil, err
	}
	if err := f.checkWrite("nft-mint!"); err != nil {
		return nil, err
	}
	token, err := entityName(args[0])
	if err != nil {
		return nil, err
	}
	asset, err := e.eval(f, l, args[1])
	if err != nil {
		return nil, err
	}
	recipient, err := e.evalPrincipal(f, l, args[2])
	if err != nil {
		return nil, err
	}
	_, minted, err := e.db.GetNFTOwner(f.contract.id, token, asset)
	if err != nil {
		return nil, err
	}
	if minted {
		return errCode(errCodeAlreadyExists), nil
	}
	if err := e.db.SetNFTOwner(f.contract.id, token, asset, recipient); err != nil {
		return nil, err
	}
	return okTrue, nil
}

func evalNFTTransfer(e *OwnedEnvironment, f *frame, l *locals, args []*ast.Expr) (types.Value, error) {
	if err := argCount("nft-transfer!", args, 4); err != nil {
		return nil, err
	}
	if err := f.checkWrite("nft-transfer!"); err != nil {
		return nil, err
	}
	token, err := entityName(args[0])
	if err != nil {
		return nil, err
	}
	asset, err := e.eval(f, l, args[1])
	if err != nil {
		return nil, err
	}
	sender, err := e.evalPrincipal(f, l, args[2])
	if err != nil {
		return nil, err
	}
	recipient, err := e.evalPrincipal(f, l, args[3])
	if err != nil {
		return nil, err
	}

	id := f.contract.id
	owner, minted, err := e.db.GetNFTOwner(id, token, asset)
	if err != nil {
		return nil, err
	}
	switch {
	case !minted:
		return errCode(errCodeNoSuchAsset), nil
	case !types.Equal(owner, sender):
		return errCode(errCodeNotOwner), nil
	case types.Equal(sender, recipient):
		return errCode(errCodeSenderIsRecipient), nil
	}
	if err := e.db.SetNFTOwner(id, token, asset, recipient); err != nil {
		return nil, err
	}
	f.assets.AddAssetTransfer(sender, assetIdentifier(id, token), asset)
	return okTrue, nil
}
