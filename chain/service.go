// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"errors"
	"net/http"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/formatting"
	"github.com/ava-labs/avalanchego/utils/json"

	"github.com/ava-labs/contractvm/types"
)

var errNoSuchBlock = errors.New("couldn't get block from database. Does it exist?")

// Service is the API service for this chain
type Service struct{ chain *Chain }

// DeployArgs are the arguments to Deploy
type DeployArgs struct {
	// Contract is "ISSUER.name". The issuer runs the contract's top-level forms.
	Contract string `json:"contract"`
	Source   string `json:"source"`
}

// CallArgs are the arguments to Call
type CallArgs struct {
	Sender   string   `json:"sender"`
	Contract string   `json:"contract"`
	Function string   `json:"function"`
	Args     []string `json:"args"`
}

// SubmitReply is the reply from Deploy and Call
type SubmitReply struct {
	TxID ids.ID `json:"txID"`
}

// Deploy queues a contract deployment for the next block
func (s *Service) Deploy(_ *http.Request, args *DeployArgs, reply *SubmitReply) error {
	txID, err := s.chain.Submit(&Tx{
		Kind:     DeployTx,
		Contract: args.Contract,
		Source:   args.Source,
	})
	reply.TxID = txID
	return err
}

// Call queues a public function call for the next block
func (s *Service) Call(_ *http.Request, args *CallArgs, reply *SubmitReply) error {
	txID, err := s.chain.Submit(&Tx{
		Kind:     CallTx,
		Sender:   args.Sender,
		Contract: args.Contract,
		Function: args.Function,
		Args:     args.Args,
	})
	reply.TxID = txID
	return err
}

// BuildBlockArgs are the arguments to BuildBlock
type BuildBlockArgs struct {
	// ParentID of the new block.
	// If left blank, builds on the last accepted block
	ParentID *ids.ID `json:"parentID"`
}

// GetBlockArgs are the arguments to GetBlock
type GetBlockArgs struct {
	// ID of the block we're getting.
	// If left blank, gets the latest block
	ID *ids.ID `json:"id"`
}

// GetBlockReply is the reply from GetBlock and BuildBlock
type GetBlockReply struct {
	ID        ids.ID      `json:"id"`        // String repr. of ID of block
	ParentID  ids.ID      `json:"parentID"`  // String repr. of ID of block's parent
	Height    json.Uint64 `json:"height"`    // Height of block
	Timestamp json.Uint64 `json:"timestamp"` // Timestamp of block
	Txs       []*Tx       `json:"txs"`
	Receipts  []*Receipt  `json:"receipts"`
}

func (r *GetBlockReply) fill(blk *Block) {
	r.ID = blk.ID()
	r.ParentID = blk.Parent()
	r.Height = json.Uint64(blk.Height())
	r.Timestamp = json.Uint64(blk.Timestamp().Unix())
	r.Txs = blk.Txs
	r.Receipts = blk.Receipts
}

// BuildBlock executes the pending transactions in a new block
func (s *Service) BuildBlock(_ *http.Request, args *BuildBlockArgs, reply *GetBlockReply) error {
	parent := s.chain.LastAccepted()
	if args.ParentID != nil {
		parent = *args.ParentID
	}
	blk, err := s.chain.BuildBlock(parent)
	if err != nil {
		return err
	}
	reply.fill(blk)
	return nil
}

// GetBlock gets the block whose ID is [args.ID]
// If [args.ID] is empty, get the latest block
func (s *Service) GetBlock(_ *http.Request, args *GetBlockArgs, reply *GetBlockReply) error {
	id := s.chain.LastAccepted()
	if args.ID != nil {
		id = *args.ID
	}
	blk, err := s.chain.GetBlock(id)
	if err != nil {
		return errNoSuchBlock
	}
	reply.fill(blk)
	return nil
}

// ReadOnlyArgs are the arguments to ReadOnly
type ReadOnlyArgs struct {
	Contract string `json:"contract"`
	Program  string `json:"program"`
}

// ReadOnlyReply is the reply from ReadOnly
type ReadOnlyReply struct {
	Result   string              `json:"result"`   // Display form of the value
	Value    string              `json:"value"`    // Serialized value
	Encoding formatting.Encoding `json:"encoding"` // Encoding of [Value]
}

// ReadOnly evaluates [args.Program] against a contract without writing
func (s *Service) ReadOnly(_ *http.Request, args *ReadOnlyArgs, reply *ReadOnlyReply) error {
	contract, err := types.ParseContractIdentifier(args.Contract)
	if err != nil {
		return err
	}
	value, err := s.chain.EvalReadOnly(contract, args.Program)
	if err != nil {
		return err
	}
	bytes, err := types.Serialize(value)
	if err != nil {
		return err
	}
	reply.Result = value.String()
	reply.Encoding = formatting.Hex
	reply.Value, err = formatting.EncodeWithChecksum(formatting.Hex, bytes)
	return err
}

// GetContractArgs are the arguments to GetContract
type GetContractArgs struct {
	Contract string `json:"contract"`
}

// GetContractReply is the reply from GetContract
type GetContractReply struct {
	Source string `json:"source"`
}

// GetContract returns the source a contract was deployed with
func (s *Service) GetContract(_ *http.Request, args *GetContractArgs, reply *GetContractReply) error {
	contract, err := types.ParseContractIdentifier(args.Contract)
	if err != nil {
		return err
	}
	reply.Source, err = s.chain.ContractSource(contract)
	return err
}
