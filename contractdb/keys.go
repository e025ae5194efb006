// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package contractdb

import (
	"fmt"

	"github.com/ava-labs/avalanchego/utils/wrappers"

	"github.com/ava-labs/contractvm/types"
)

// EntityKind partitions the keys stored for a contract.
type EntityKind byte

const (
	KindContract EntityKind = iota + 1
	KindMetadata
	KindVariable
	KindMap
	KindFungibleToken
	KindFungibleTokenSupply
	KindNonFungibleToken
)

const maxKeySize = 4 * 1024

func (k EntityKind) String() string {
	switch k {
	case KindContract:
		return "contract"
	case KindMetadata:
		return "metadata"
	case KindVariable:
		return "variable"
	case KindMap:
		return "map"
	case KindFungibleToken:
		return "fungible-token"
	case KindFungibleTokenSupply:
		return "fungible-token-supply"
	case KindNonFungibleToken:
		return "non-fungible-token"
	default:
		return fmt.Sprintf("EntityKind(%d)", byte(k))
	}
}

// StorageKey packs (kind, contract, name, subkey) into a block tree key. The
// contract and name are length prefixed, so distinct tuples never collide.
func StorageKey(kind EntityKind, contract types.ContractIdentifier, name string, subkey []byte) ([]byte, error) {
	p := wrappers.Packer{MaxSize: maxKeySize}
	p.PackByte(byte(kind))
	p.PackStr(contract.String())
	p.PackStr(name)
	p.PackFixedBytes(subkey)
	if p.Errored() {
		return nil, fmt.Errorf("failed to pack %s key %s/%s: %w", kind, contract, name, p.Err)
	}
	return p.Bytes, nil
}

func valueKey(kind EntityKind, contract types.ContractIdentifier, name string, subkey types.Value) ([]byte, error) {
	raw, err := types.Serialize(subkey)
	if err != nil {
		return nil, err
	}
	return StorageKey(kind, contract, name, raw)
}
