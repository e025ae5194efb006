// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"errors"

	"github.com/ava-labs/contractvm/blocktree"
	"github.com/ava-labs/contractvm/vm"
)

var errInvalidConfig = errors.New("mempool size, cache sizes and eval budget must be positive")

var DefaultConfig = Config{
	MempoolSize:       1024,
	BlockCacheSize:    2048,
	ContractCacheSize: 256,
	EvalBudget:        vm.DefaultEvalBudget,
	BlockTree:         blocktree.DefaultConfig,
}

type Config struct {
	MempoolSize       int              `json:"mempoolSize"`
	BlockCacheSize    int              `json:"blockCacheSize"`
	ContractCacheSize int              `json:"contractCacheSize"`
	EvalBudget        uint64           `json:"evalBudget"`
	BlockTree         blocktree.Config `json:"blockTree"`
}

func (c Config) Verify() error {
	if c.MempoolSize <= 0 || c.BlockCacheSize <= 0 || c.ContractCacheSize <= 0 || c.EvalBudget == 0 ||
		c.BlockTree.NodeCacheSize <= 0 || c.BlockTree.LookupCacheSize <= 0 {
		return errInvalidConfig
	}
	return nil
}
