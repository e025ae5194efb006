// (c) 2021-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package blocktree

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
)

var (
	errNodeWrongVersion = errors.New("wrong node version")

	_ NodeState = &nodeState{}
)

type Status byte

const (
	Open Status = iota + 1
	Committed
)

func (s Status) String() string {
	switch s {
	case Open:
		return "Open"
	case Committed:
		return "Committed"
	default:
		return fmt.Sprintf("Status(%d)", byte(s))
	}
}

// Node is a vertex of the block tree.
type Node struct {
	Parent ids.ID `serialize:"true" json:"parent"`
	Height uint64 `serialize:"true" json:"height"`
	Status Status `serialize:"true" json:"status"`
}

// NodeState persists nodes keyed by their hash. Only committed nodes are
// cached, since an open node may still be rolled back.
type NodeState interface {
	GetNode(hash ids.ID) (*Node, error)
	PutNode(hash ids.ID, node *Node) error

	ClearCache()
}

type nodeState struct {
	nodeCache cache.Cacher
	nodeDB    database.Database
}

func NewNodeState(db database.Database, nodeCache cache.Cacher) NodeState {
	return &nodeState{
		nodeCache: nodeCache,
		nodeDB:    db,
	}
}

func (s *nodeState) GetNode(hash ids.ID) (*Node, error) {
	if nodeIntf, ok := s.nodeCache.Get(hash); ok {
		node := *nodeIntf.(*Node)
		return &node, nil
	}

	nodeBytes, err := s.nodeDB.Get(hash[:])
	if err != nil {
		return nil, err
	}

	node := &Node{}
	parsedVersion, err := treeCodec.Unmarshal(nodeBytes, node)
	if err != nil {
		return nil, err
	}
	if parsedVersion != codecVersion {
		return nil, errNodeWrongVersion
	}

	if node.Status == Committed {
		cached := *node
		s.nodeCache.Put(hash, &cached)
	}
	return node, nil
}

func (s *nodeState) PutNode(hash ids.ID, node *Node) error {
	bytes, err := treeCodec.Marshal(codecVersion, node)
	if err != nil {
		return err
	}
	if err := s.nodeDB.Put(hash[:], bytes); err != nil {
		return err
	}
	if node.Status == Committed {
		cached := *node
		s.nodeCache.Put(hash, &cached)
	} else {
		s.nodeCache.Evict(hash)
	}
	return nil
}

func (s *nodeState) ClearCache() {
	s.nodeCache.Flush()
}
