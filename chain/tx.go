// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"

	"github.com/ava-labs/contractvm/ast"
	"github.com/ava-labs/contractvm/contractdb"
	"github.com/ava-labs/contractvm/types"
	"github.com/ava-labs/contractvm/vm"
)

var (
	errUnknownTxKind = errors.New("unknown transaction kind")
	errEmptySource   = errors.New("contract source is empty")
	errLargeSource   = fmt.Errorf("contract source exceeds %d bytes", maxSourceSize)
	errNoFunction    = errors.New("missing function name")
)

// maxSourceSize leaves room in a contract record for its constants.
const maxSourceSize = contractdb.MaxRecordSize / 2

type TxKind byte

const (
	// DeployTx initializes a contract as its issuer.
	DeployTx TxKind = iota + 1
	// CallTx calls a public function.
	CallTx
)

func (k TxKind) String() string {
	switch k {
	case DeployTx:
		return "deploy"
	case CallTx:
		return "call"
	default:
		return fmt.Sprintf("TxKind(%d)", byte(k))
	}
}

// Tx is a transaction waiting in the mempool or included in a block.
// Arguments are literal source text, such as "10" or "'SP...".
type Tx struct {
	Kind     TxKind   `serialize:"true" json:"kind"`
	Sender   string   `serialize:"true" json:"sender,omitempty"`
	Contract string   `serialize:"true" json:"contract"`
	Function string   `serialize:"true" json:"function,omitempty"`
	Args     []string `serialize:"true" json:"args,omitempty"`
	Source   string   `serialize:"true" json:"source,omitempty"`
}

// ID returns the hash of the encoded transaction.
func (tx *Tx) ID() (ids.ID, error) {
	bytes, err := Codec.Marshal(CodecVersion, tx)
	if err != nil {
		return ids.Empty, err
	}
	return hashing.ComputeHash256Array(bytes), nil
}

// SyntacticVerify checks everything that can be checked without state.
func (tx *Tx) SyntacticVerify() error {
	if _, err := types.ParseContractIdentifier(tx.Contract); err != nil {
		return err
	}
	switch tx.Kind {
	case DeployTx:
		if tx.Source == "" {
			return errEmptySource
		}
		if len(tx.Source) > maxSourceSize {
			return errLargeSource
		}
		return nil
	case CallTx:
		if tx.Function == "" {
			return errNoFunction
		}
		if _, err := types.ParsePrincipal(tx.Sender); err != nil {
			return err
		}
		for _, arg := range tx.Args {
			if _, err := ast.ParseValue(arg); err != nil {
				return err
			}
		}
		return nil
	default:
		return errUnknownTxKind
	}
}

// Receipt is the outcome of one transaction of a block.
type Receipt struct {
	TxID      ids.ID        `serialize:"true" json:"txID"`
	Success   bool          `serialize:"true" json:"success"`
	Result    string        `serialize:"true" json:"result,omitempty"`
	Error     string        `serialize:"true" json:"error,omitempty"`
	Transfers []vm.Transfer `serialize:"true" json:"transfers,omitempty"`
}
