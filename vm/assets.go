// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"sort"

	"github.com/holiman/uint256"

	"github.com/ava-labs/contractvm/fault"
	"github.com/ava-labs/contractvm/types"
)

// assetIdentifier names a token as "ISSUER.contract::token".
func assetIdentifier(contract types.ContractIdentifier, token string) string {
	return contract.String() + "::" + token
}

// AssetMap records the assets each principal sent during a transaction.
type AssetMap struct {
	tokens map[string]map[string]*uint256.Int
	assets map[string]map[string][]types.Value
}

func NewAssetMap() *AssetMap {
	return &AssetMap{
		tokens: make(map[string]map[string]*uint256.Int),
		assets: make(map[string]map[string][]types.Value),
	}
}

// AddTokenTransfer adds [amount] of [asset] to what [principal] sent.
func (m *AssetMap) AddTokenTransfer(principal types.Value, asset string, amount *uint256.Int) error {
	return m.addToken(principal.String(), asset, amount)
}

func (m *AssetMap) addToken(owner, asset string, amount *uint256.Int) error {
	byAsset, ok := m.tokens[owner]
	if !ok {
		byAsset = make(map[string]*uint256.Int)
		m.tokens[owner] = byAsset
	}
	current, ok := byAsset[asset]
	if !ok {
		byAsset[asset] = new(uint256.Int).Set(amount)
		return nil
	}
	if _, overflow := current.AddOverflow(current, amount); overflow {
		return fault.NewRuntimeError(fault.ArithmeticOverflow, asset)
	}
	return nil
}

// AddAssetTransfer records that [principal] sent the non-fungible [value].
func (m *AssetMap) AddAssetTransfer(principal types.Value, asset string, value types.Value) {
	m.addAsset(principal.String(), asset, value)
}

func (m *AssetMap) addAsset(owner, asset string, value types.Value) {
	byAsset, ok := m.assets[owner]
	if !ok {
		byAsset = make(map[string][]types.Value)
		m.assets[owner] = byAsset
	}
	byAsset[asset] = append(byAsset[asset], value)
}

// Merge folds the transfers of a completed nested call into [m].
func (m *AssetMap) Merge(other *AssetMap) error {
	for owner, byAsset := range other.tokens {
		for asset, amount := range byAsset {
			if err := m.addToken(owner, asset, amount); err != nil {
				return err
			}
		}
	}
	for owner, byAsset := range other.assets {
		for asset, values := range byAsset {
			for _, value := range values {
				m.addAsset(owner, asset, value)
			}
		}
	}
	return nil
}

// TokenTransfers returns how much of [asset] [principal] sent.
func (m *AssetMap) TokenTransfers(principal types.Value, asset string) *uint256.Int {
	if amount, ok := m.tokens[principal.String()][asset]; ok {
		return new(uint256.Int).Set(amount)
	}
	return uint256.NewInt(0)
}

// AssetTransfers returns the non-fungible [asset] values [principal] sent.
func (m *AssetMap) AssetTransfers(principal types.Value, asset string) []types.Value {
	return m.assets[principal.String()][asset]
}

func (m *AssetMap) Empty() bool { return len(m.tokens) == 0 && len(m.assets) == 0 }

// Transfer is one row of an AssetMap.
type Transfer struct {
	Principal string   `serialize:"true" json:"principal"`
	Asset     string   `serialize:"true" json:"asset"`
	Amount    string   `serialize:"true" json:"amount,omitempty"`
	Values    []string `serialize:"true" json:"values,omitempty"`
}

// Transfers lists every row sorted by principal then asset.
func (m *AssetMap) Transfers() []Transfer {
	var transfers []Transfer
	for owner, byAsset := range m.tokens {
		for asset, amount := range byAsset {
			transfers = append(transfers, Transfer{Principal: owner, Asset: asset, Amount: amount.Dec()})
		}
	}
	for owner, byAsset := range m.assets {
		for asset, values := range byAsset {
			t := Transfer{Principal: owner, Asset: asset}
			for _, value := range values {
				t.Values = append(t.Values, value.String())
			}
			transfers = append(transfers, t)
		}
	}
	sort.Slice(transfers, func(i, j int) bool {
		if transfers[i].Principal != transfers[j].Principal {
			return transfers[i].Principal < transfers[j].Principal
		}
		if transfers[i].Asset != transfers[j].Asset {
			return transfers[i].Asset < transfers[j].Asset
		}
		return transfers[i].Amount != "" && transfers[j].Amount == ""
	})
	return transfers
}
