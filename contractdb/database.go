// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package contractdb stores contracts and their maps, variables and token
// ledgers as namespaced keys of the block tree. Every read resolves at the
// block tree cursor, so a historical cursor sees historical definitions.
package contractdb

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"

	"github.com/ava-labs/contractvm/blocktree"
	"github.com/ava-labs/contractvm/fault"
	"github.com/ava-labs/contractvm/types"
)

var errMetadataWrongVersion = errors.New("wrong metadata version")

// Contract is the persisted form of a deployed contract.
type Contract struct {
	Source    []byte     `serialize:"true"`
	Constants []Constant `serialize:"true"`
}

// Hash identifies the record by the hash of its encoding.
func (c *Contract) Hash() (ids.ID, error) {
	bytes, err := recordCodec.Marshal(recordVersion, c)
	if err != nil {
		return ids.ID{}, err
	}
	return hashing.ComputeHash256Array(bytes), nil
}

type Constant struct {
	Name  string `serialize:"true"`
	Value []byte `serialize:"true"`
}

// metadata records that a contract defined [Kind] under some name.
type metadata struct {
	Kind         byte   `serialize:"true"`
	HasMaxSupply bool   `serialize:"true"`
	MaxSupply    []byte `serialize:"true"`
}

type Database struct {
	storage *blocktree.Storage
}

func New(storage *blocktree.Storage) *Database {
	return &Database{storage: storage}
}

// Storage returns the block tree backing the database.
func (db *Database) Storage() *blocktree.Storage { return db.storage }

func (db *Database) HasContract(id types.ContractIdentifier) (bool, error) {
	key, err := StorageKey(KindContract, id, "", nil)
	if err != nil {
		return false, err
	}
	return db.storage.Has(key)
}

// InsertContract records [contract] under [id] in the open block.
func (db *Database) InsertContract(id types.ContractIdentifier, contract *Contract) error {
	exists, err := db.HasContract(id)
	if err != nil {
		return err
	}
	if exists {
		return fault.NewCheckError(fault.ContractAlreadyExists, id.String())
	}
	key, err := StorageKey(KindContract, id, "", nil)
	if err != nil {
		return err
	}
	bytes, err := recordCodec.Marshal(recordVersion, contract)
	if err != nil {
		return err
	}
	return db.storage.Put(key, bytes)
}

func (db *Database) GetContract(id types.ContractIdentifier) (*Contract, error) {
	key, err := StorageKey(KindContract, id, "", nil)
	if err != nil {
		return nil, err
	}
	bytes, err := db.storage.Get(key)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fault.NewCheckError(fault.NoSuchContract, id.Principal())
	}
	if err != nil {
		return nil, err
	}
	contract := &Contract{}
	if _, err := recordCodec.Unmarshal(bytes, contract); err != nil {
		return nil, fmt.Errorf("failed to parse contract %s: %w", id, err)
	}
	return contract, nil
}

// define records that [id] owns an entity of [kind] called [name]. Names are
// shared by every kind.
func (db *Database) define(id types.ContractIdentifier, kind EntityKind, name string, md metadata) error {
	key, err := StorageKey(KindMetadata, id, name, nil)
	if err != nil {
		return err
	}
	exists, err := db.storage.Has(key)
	if err != nil {
		return err
	}
	if exists {
		return fault.NewCheckError(fault.NameAlreadyUsed, name)
	}
	md.Kind = byte(kind)
	bytes, err := recordCodec.Marshal(recordVersion, &md)
	if err != nil {
		return err
	}
	return db.storage.Put(key, bytes)
}

var missingKind = map[EntityKind]fault.CheckErrorKind{
	KindVariable:         fault.NoSuchDataVariable,
	KindMap:              fault.NoSuchMap,
	KindFungibleToken:    fault.NoSuchFT,
	KindNonFungibleToken: fault.NoSuchNFT,
}

// lookup loads the metadata of [name], failing with the matching NoSuch
// error if [id] never defined it as [kind] in the visible ancestry.
func (db *Database) lookup(id types.ContractIdentifier, kind EntityKind, name string) (*metadata, error) {
	key, err := StorageKey(KindMetadata, id, name, nil)
	if err != nil {
		return nil, err
	}
	bytes, err := db.storage.Get(key)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fault.NewCheckError(missingKind[kind], name)
	}
	if err != nil {
		return nil, err
	}
	md := &metadata{}
	version, err := recordCodec.Unmarshal(bytes, md)
	if err != nil {
		return nil, err
	}
	if version != recordVersion {
		return nil, errMetadataWrongVersion
	}
	if EntityKind(md.Kind) != kind {
		return nil, fault.NewCheckError(missingKind[kind], name)
	}
	return md, nil
}

func (db *Database) getValue(key []byte) (types.Value, bool, error) {
	bytes, err := db.storage.Get(key)
	if errors.Is(err, database.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	value, err := types.Deserialize(bytes)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (db *Database) putValue(key []byte, value types.Value) error {
	bytes, err := types.Serialize(value)
	if err != nil {
		return err
	}
	return db.storage.Put(key, bytes)
}

func (db *Database) CreateVariable(id types.ContractIdentifier, name string, initial types.Value) error {
	if err := db.define(id, KindVariable, name, metadata{}); err != nil {
		return err
	}
	key, err := StorageKey(KindVariable, id, name, nil)
	if err != nil {
		return err
	}
	return db.putValue(key, initial)
}

func (db *Database) LookupVariable(id types.ContractIdentifier, name string) (types.Value, error) {
	if _, err := db.lookup(id, KindVariable, name); err != nil {
		return nil, err
	}
	key, err := StorageKey(KindVariable, id, name, nil)
	if err != nil {
		return nil, err
	}
	value, ok, err := db.getValue(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("variable %s of %s has no value", name, id)
	}
	return value, nil
}

func (db *Database) SetVariable(id types.ContractIdentifier, name string, value types.Value) error {
	if _, err := db.lookup(id, KindVariable, name); err != nil {
		return err
	}
	key, err := StorageKey(KindVariable, id, name, nil)
	if err != nil {
		return err
	}
	return db.putValue(key, value)
}

func (db *Database) CreateMap(id types.ContractIdentifier, name string) error {
	return db.define(id, KindMap, name, metadata{})
}

// FetchEntry returns the entry stored under [key] as an optional.
func (db *Database) FetchEntry(id types.ContractIdentifier, name string, key types.Value) (types.Optional, error) {
	if _, err := db.lookup(id, KindMap, name); err != nil {
		return types.None, err
	}
	storageKey, err := valueKey(KindMap, id, name, key)
	if err != nil {
		return types.None, err
	}
	value, ok, err := db.getValue(storageKey)
	if err != nil || !ok {
		return types.None, err
	}
	return types.Some(value), nil
}

func (db *Database) SetEntry(id types.ContractIdentifier, name string, key, value types.Value) error {
	if _, err := db.lookup(id, KindMap, name); err != nil {
		return err
	}
	storageKey, err := valueKey(KindMap, id, name, key)
	if err != nil {
		return err
	}
	return db.putValue(storageKey, value)
}

// InsertEntry sets [key] only if it is absent and reports whether it did.
func (db *Database) InsertEntry(id types.ContractIdentifier, name string, key, value types.Value) (bool, error) {
	existing, err := db.FetchEntry(id, name, key)
	if err != nil {
		return false, err
	}
	if existing.IsSome() {
		return false, nil
	}
	return true, db.SetEntry(id, name, key, value)
}

// DeleteEntry removes [key] and reports whether it was present.
func (db *Database) DeleteEntry(id types.ContractIdentifier, name string, key types.Value) (bool, error) {
	existing, err := db.FetchEntry(id, name, key)
	if err != nil {
		return false, err
	}
	if !existing.IsSome() {
		return false, nil
	}
	storageKey, err := valueKey(KindMap, id, name, key)
	if err != nil {
		return false, err
	}
	return true, db.storage.Delete(storageKey)
}

// CreateFungibleToken defines a token. A nil [maxSupply] leaves it unbounded.
func (db *Database) CreateFungibleToken(id types.ContractIdentifier, name string, maxSupply *uint256.Int) error {
	md := metadata{}
	if maxSupply != nil {
		supply := maxSupply.Bytes32()
		md.HasMaxSupply = true
		md.MaxSupply = supply[:]
	}
	if err := db.define(id, KindFungibleToken, name, md); err != nil {
		return err
	}
	return db.SetFTSupply(id, name, uint256.NewInt(0))
}

// FTMaxSupply returns the supply bound of a token, if it has one.
func (db *Database) FTMaxSupply(id types.ContractIdentifier, name string) (*uint256.Int, bool, error) {
	md, err := db.lookup(id, KindFungibleToken, name)
	if err != nil {
		return nil, false, err
	}
	if !md.HasMaxSupply {
		return nil, false, nil
	}
	return new(uint256.Int).SetBytes(md.MaxSupply), true, nil
}

func (db *Database) getAmount(key []byte) (*uint256.Int, error) {
	bytes, err := db.storage.Get(key)
	if errors.Is(err, database.ErrNotFound) {
		return uint256.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes(bytes), nil
}

func (db *Database) putAmount(key []byte, amount *uint256.Int) error {
	bytes := amount.Bytes32()
	return db.storage.Put(key, bytes[:])
}

func (db *Database) GetFTBalance(id types.ContractIdentifier, name string, owner types.Value) (*uint256.Int, error) {
	if _, err := db.lookup(id, KindFungibleToken, name); err != nil {
		return nil, err
	}
	key, err := valueKey(KindFungibleToken, id, name, owner)
	if err != nil {
		return nil, err
	}
	return db.getAmount(key)
}

func (db *Database) SetFTBalance(id types.ContractIdentifier, name string, owner types.Value, amount *uint256.Int) error {
	if _, err := db.lookup(id, KindFungibleToken, name); err != nil {
		return err
	}
	key, err := valueKey(KindFungibleToken, id, name, owner)
	if err != nil {
		return err
	}
	return db.putAmount(key, amount)
}

func (db *Database) GetFTSupply(id types.ContractIdentifier, name string) (*uint256.Int, error) {
	if _, err := db.lookup(id, KindFungibleToken, name); err != nil {
		return nil, err
	}
	key, err := StorageKey(KindFungibleTokenSupply, id, name, nil)
	if err != nil {
		return nil, err
	}
	return db.getAmount(key)
}

func (db *Database) SetFTSupply(id types.ContractIdentifier, name string, supply *uint256.Int) error {
	if _, err := db.lookup(id, KindFungibleToken, name); err != nil {
		return err
	}
	key, err := StorageKey(KindFungibleTokenSupply, id, name, nil)
	if err != nil {
		return err
	}
	return db.putAmount(key, supply)
}

func (db *Database) CreateNonFungibleToken(id types.ContractIdentifier, name string) error {
	return db.define(id, KindNonFungibleToken, name, metadata{})
}

// GetNFTOwner returns the owner of [asset] and whether it has been minted.
func (db *Database) GetNFTOwner(id types.ContractIdentifier, name string, asset types.Value) (types.Value, bool, error) {
	if _, err := db.lookup(id, KindNonFungibleToken, name); err != nil {
		return nil, false, err
	}
	key, err := valueKey(KindNonFungibleToken, id, name, asset)
	if err != nil {
		return nil, false, err
	}
	return db.getValue(key)
}

func (db *Database) SetNFTOwner(id types.ContractIdentifier, name string, asset, owner types.Value) error {
	if _, err := db.lookup(id, KindNonFungibleToken, name); err != nil {
		return err
	}
	key, err := valueKey(KindNonFungibleToken, id, name, asset)
	if err != nil {
		return err
	}
	return db.putValue(key, owner)
}
