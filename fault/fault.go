// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fault holds the error taxonomy shared by storage, the contract
// database and the evaluator.
//
// StorageErrors signal host misuse of the block tree and should halt the
// host. CheckErrors are definitional problems (missing contracts, maps,
// writes in read-only scopes). RuntimeErrors abort an evaluation.
package fault

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
)

type StorageErrorKind int

const (
	UnknownBlockHeaderHash StorageErrorKind = iota + 1
	BlockAlreadyOpen
	NoOpenBlock
	UnknownParent
	DuplicateBlock
	ReadOnlyCursor
	SavepointsOutstanding
	NoSavepoint
)

var storageErrorNames = map[StorageErrorKind]string{
	UnknownBlockHeaderHash: "unknown block header hash",
	BlockAlreadyOpen:       "a block is already open",
	NoOpenBlock:            "no block is open",
	UnknownParent:          "parent is not a committed block",
	DuplicateBlock:         "block already exists",
	ReadOnlyCursor:         "cursor is read-only",
	SavepointsOutstanding:  "savepoints still outstanding",
	NoSavepoint:            "no savepoint to release",
}

func (k StorageErrorKind) String() string {
	if name, ok := storageErrorNames[k]; ok {
		return name
	}
	return fmt.Sprintf("storage error %d", int(k))
}

// StorageError reports misuse of the block tree.
type StorageError struct {
	Kind StorageErrorKind
	Hash ids.ID
}

func (e *StorageError) Error() string {
	if e.Hash == ids.Empty {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %x", e.Kind, e.Hash[:])
}

func NewStorageError(kind StorageErrorKind, hash ids.ID) error {
	return &StorageError{Kind: kind, Hash: hash}
}

type CheckErrorKind int

const (
	NoSuchContract CheckErrorKind = iota + 1
	NoSuchMap
	NoSuchDataVariable
	NoSuchFT
	NoSuchNFT
	NoSuchFunction
	NoSuchPublicFunction
	ContractAlreadyExists
	NameAlreadyUsed
	WriteAttemptedInReadOnly
	UndefinedVariable
	IncorrectArgumentCount
	TypeError
	BadSyntax
	ExpectedResponse
	NoSuchTupleField
	DefineOutsideTopLevel
	CircularReference
)

var checkErrorNames = map[CheckErrorKind]string{
	NoSuchContract:           "no such contract",
	NoSuchMap:                "no such map",
	NoSuchDataVariable:       "no such data variable",
	NoSuchFT:                 "no such fungible token",
	NoSuchNFT:                "no such non-fungible token",
	NoSuchFunction:           "no such function",
	NoSuchPublicFunction:     "no such public function",
	ContractAlreadyExists:    "contract already exists",
	NameAlreadyUsed:          "name already used",
	WriteAttemptedInReadOnly: "write attempted in read-only context",
	UndefinedVariable:        "undefined variable",
	IncorrectArgumentCount:   "incorrect argument count",
	TypeError:                "type error",
	BadSyntax:                "bad syntax",
	ExpectedResponse:         "public function must return a response",
	NoSuchTupleField:         "no such tuple field",
	DefineOutsideTopLevel:    "define form outside top level",
	CircularReference:        "circular reference",
}

func (k CheckErrorKind) String() string {
	if name, ok := checkErrorNames[k]; ok {
		return name
	}
	return fmt.Sprintf("check error %d", int(k))
}

// CheckError is a static or definitional error. Name carries the offending
// identifier, if any.
type CheckError struct {
	Kind CheckErrorKind
	Name string
}

func (e *CheckError) Error() string {
	if e.Name == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Name)
}

func NewCheckError(kind CheckErrorKind, name string) error {
	return &CheckError{Kind: kind, Name: name}
}

type RuntimeErrorKind int

const (
	RuntimeUnknownBlockHeaderHash RuntimeErrorKind = iota + 1
	ArithmeticOverflow
	ArithmeticUnderflow
	DivisionByZero
	UnwrapFailure
	SupplyOverflow
	MaxCallDepthExceeded
	Aborted
	CostBalanceExceeded
)

var runtimeErrorNames = map[RuntimeErrorKind]string{
	RuntimeUnknownBlockHeaderHash: "unknown block header hash",
	ArithmeticOverflow:            "arithmetic overflow",
	ArithmeticUnderflow:           "arithmetic underflow",
	DivisionByZero:                "division by zero",
	UnwrapFailure:                 "unwrap failure",
	SupplyOverflow:                "token supply overflow",
	MaxCallDepthExceeded:          "maximum call depth exceeded",
	Aborted:                       "aborted",
	CostBalanceExceeded:           "evaluation budget exceeded",
}

func (k RuntimeErrorKind) String() string {
	if name, ok := runtimeErrorNames[k]; ok {
		return name
	}
	return fmt.Sprintf("runtime error %d", int(k))
}

// RuntimeError aborts an evaluation. Hash is set for block resolution
// failures.
type RuntimeError struct {
	Kind RuntimeErrorKind
	Hash ids.ID
	Msg  string
}

func (e *RuntimeError) Error() string {
	switch {
	case e.Kind == RuntimeUnknownBlockHeaderHash:
		return fmt.Sprintf("%s: %x", e.Kind, e.Hash[:])
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	default:
		return e.Kind.String()
	}
}

func NewRuntimeError(kind RuntimeErrorKind, msg string) error {
	return &RuntimeError{Kind: kind, Msg: msg}
}

// UnknownBlock is the runtime form of a failed at-block resolution.
func UnknownBlock(hash ids.ID) error {
	return &RuntimeError{Kind: RuntimeUnknownBlockHeaderHash, Hash: hash}
}

// IsStorage reports whether err is a StorageError of the given kind.
func IsStorage(err error, kind StorageErrorKind) bool {
	var se *StorageError
	return errors.As(err, &se) && se.Kind == kind
}

// IsCheck reports whether err is a CheckError of the given kind.
func IsCheck(err error, kind CheckErrorKind) bool {
	var ce *CheckError
	return errors.As(err, &ce) && ce.Kind == kind
}

// IsRuntime reports whether err is a RuntimeError of the given kind.
func IsRuntime(err error, kind RuntimeErrorKind) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Kind == kind
}
