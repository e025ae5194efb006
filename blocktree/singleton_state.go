// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package blocktree

import (
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
)

const (
	IsInitializedKey byte = iota
	TipKey
)

var (
	isInitializedKey                = []byte{IsInitializedKey}
	tipKey                          = []byte{TipKey}
	_                SingletonState = (*singletonState)(nil)
)

// SingletonState is a thin wrapper around a database to provide
// serialization and de-serialization of the initialization status and of
// the most recently committed block.
type SingletonState interface {
	IsInitialized() (bool, error)
	SetInitialized() error

	GetTip() (ids.ID, error)
	SetTip(ids.ID) error
}

type singletonState struct {
	singletonDB database.Database
}

func NewSingletonState(db database.Database) SingletonState {
	return &singletonState{
		singletonDB: db,
	}
}

func (s *singletonState) IsInitialized() (bool, error) {
	return s.singletonDB.Has(isInitializedKey)
}

func (s *singletonState) SetInitialized() error {
	return s.singletonDB.Put(isInitializedKey, nil)
}

func (s *singletonState) GetTip() (ids.ID, error) {
	tipBytes, err := s.singletonDB.Get(tipKey)
	if err != nil {
		return ids.Empty, err
	}
	return ids.ToID(tipBytes)
}

func (s *singletonState) SetTip(tip ids.ID) error {
	return s.singletonDB.Put(tipKey, tip[:])
}
