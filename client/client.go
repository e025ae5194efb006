// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"context"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/formatting"
	"github.com/ava-labs/avalanchego/utils/rpc"

	"github.com/ava-labs/contractvm/chain"
	"github.com/ava-labs/contractvm/types"
)

// Client defines contractvm client operations.
type Client interface {
	// Deploy submits a contract deployment
	Deploy(ctx context.Context, contract, source string) (ids.ID, error)

	// Call submits a public function call. [args] are literals such as "10".
	Call(ctx context.Context, sender, contract, function string, args ...string) (ids.ID, error)

	// BuildBlock executes the pending transactions on top of [parentID], or
	// on the last accepted block when it is nil
	BuildBlock(ctx context.Context, parentID *ids.ID) (*chain.GetBlockReply, error)

	// GetBlock fetches the contents of a block
	GetBlock(ctx context.Context, blockID *ids.ID) (*chain.GetBlockReply, error)

	// ReadOnly evaluates a program against a contract
	ReadOnly(ctx context.Context, contract, program string) (types.Value, error)

	// GetContract fetches the source of a deployed contract
	GetContract(ctx context.Context, contract string) (string, error)
}

// New creates a new client object for the chain API served at [uri].
func New(uri string) Client {
	req := rpc.NewEndpointRequester(uri, "", chain.Name)
	return &client{req: req}
}

type client struct {
	req rpc.EndpointRequester
}

func (cli *client) Deploy(ctx context.Context, contract, source string) (ids.ID, error) {
	resp := new(chain.SubmitReply)
	err := cli.req.SendRequest(ctx,
		"deploy",
		&chain.DeployArgs{Contract: contract, Source: source},
		resp,
	)
	return resp.TxID, err
}

func (cli *client) Call(ctx context.Context, sender, contract, function string, args ...string) (ids.ID, error) {
	resp := new(chain.SubmitReply)
	err := cli.req.SendRequest(ctx,
		"call",
		&chain.CallArgs{Sender: sender, Contract: contract, Function: function, Args: args},
		resp,
	)
	return resp.TxID, err
}

func (cli *client) BuildBlock(ctx context.Context, parentID *ids.ID) (*chain.GetBlockReply, error) {
	resp := new(chain.GetBlockReply)
	if err := cli.req.SendRequest(ctx, "buildBlock", &chain.BuildBlockArgs{ParentID: parentID}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (cli *client) GetBlock(ctx context.Context, blockID *ids.ID) (*chain.GetBlockReply, error) {
	resp := new(chain.GetBlockReply)
	if err := cli.req.SendRequest(ctx, "getBlock", &chain.GetBlockArgs{ID: blockID}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (cli *client) ReadOnly(ctx context.Context, contract, program string) (types.Value, error) {
	resp := new(chain.ReadOnlyReply)
	err := cli.req.SendRequest(ctx,
		"readOnly",
		&chain.ReadOnlyArgs{Contract: contract, Program: program},
		resp,
	)
	if err != nil {
		return nil, err
	}
	raw, err := formatting.Decode(resp.Encoding, resp.Value)
	if err != nil {
		return nil, err
	}
	return types.Deserialize(raw)
}

func (cli *client) GetContract(ctx context.Context, contract string) (string, error) {
	resp := new(chain.GetContractReply)
	if err := cli.req.SendRequest(ctx, "getContract", &chain.GetContractArgs{Contract: contract}, resp); err != nil {
		return "", err
	}
	return resp.Source, nil
}
