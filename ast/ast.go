// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ast turns contract source text into spanned s-expressions.
package ast

import (
	"github.com/ava-labs/contractvm/types"
)

type ExprKind byte

const (
	List ExprKind = iota
	Atom
	Literal
	// ContractRef is a ".name" reference, resolved against the issuer of the
	// contract being evaluated.
	ContractRef
)

// Span locates an expression in its source. Lines and columns start at 1.
type Span struct {
	StartLine   uint32
	StartColumn uint32
	EndLine     uint32
	EndColumn   uint32
}

type Expr struct {
	Kind  ExprKind
	List  []*Expr
	Atom  string
	Value types.Value
	Span  Span
}

// MatchList returns the children of a list expression.
func (e *Expr) MatchList() ([]*Expr, bool) {
	if e.Kind != List {
		return nil, false
	}
	return e.List, true
}

// MatchAtom returns the name of an atom expression.
func (e *Expr) MatchAtom() (string, bool) {
	if e.Kind != Atom {
		return "", false
	}
	return e.Atom, true
}

// Head returns the atom naming a list form, if it has one.
func (e *Expr) Head() (string, bool) {
	if e.Kind != List || len(e.List) == 0 {
		return "", false
	}
	return e.List[0].MatchAtom()
}
