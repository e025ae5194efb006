// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package blocktree implements a fork-aware versioned key-value store. Every
// block is a node with exactly one parent; a key read "at" a block resolves to
// the value written by the nearest ancestor (inclusive) that wrote it.
//
// At most one block is open at a time and all writes target it. Reads go
// through a cursor that normally sits on the open block (or on the last
// committed block when none is open) and can be temporarily redirected to an
// ancestor for historical reads.
package blocktree

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/cache/metercacher"
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"
	"github.com/ava-labs/avalanchego/database/versiondb"
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/contractvm/fault"
)

var (
	// These are prefixes for db keys.
	// It's important to set different prefixes for each separate database objects.
	singletonPrefix = []byte("singleton")
	nodePrefix      = []byte("node")
	dataPrefix      = []byte("data")

	// Sentinel is the virtual parent of genesis. It is never a node.
	Sentinel = ids.ID{
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	}

	DefaultConfig = Config{
		NodeCacheSize:   1024,
		LookupCacheSize: 8192,
	}

	errMissingNode = errors.New("block tree is missing a node on an ancestor path")
)

type Config struct {
	NodeCacheSize   int `json:"nodeCacheSize"`
	LookupCacheSize int `json:"lookupCacheSize"`
}

// entry is the record stored for a key written in a block. Deleted marks a
// tombstone that hides values written by ancestors.
type entry struct {
	Deleted bool   `serialize:"true"`
	Value   []byte `serialize:"true"`
}

type lookup struct {
	value []byte
	found bool
}

// Storage is the block tree. It is not safe for concurrent use; the single
// writer owns it.
type Storage struct {
	log log.Logger

	// blockDB buffers every write of the open block until Commit.
	blockDB   *versiondb.Database
	nodes     NodeState
	singleton SingletonState
	dataDB    database.Database
	// savepoints stack on top of dataDB, innermost last.
	savepoints []*versiondb.Database

	// lookups caches resolutions rooted at committed blocks, which are
	// immutable.
	lookups cache.Cacher

	open    ids.ID
	hasOpen bool
	tip     ids.ID
	cursors []ids.ID
}

// New returns a block tree persisted in [db]. A database used before resumes
// at its last committed block.
func New(db database.Database, config Config, registerer prometheus.Registerer, logger log.Logger) (*Storage, error) {
	nodeCache, err := metercacher.New(
		"blocktree_node_cache",
		registerer,
		&cache.LRU{Size: config.NodeCacheSize},
	)
	if err != nil {
		return nil, err
	}
	lookupCache, err := metercacher.New(
		"blocktree_lookup_cache",
		registerer,
		&cache.LRU{Size: config.LookupCacheSize},
	)
	if err != nil {
		return nil, err
	}

	blockDB := versiondb.New(db)
	s := &Storage{
		log:       logger,
		blockDB:   blockDB,
		nodes:     NewNodeState(prefixdb.New(nodePrefix, blockDB), nodeCache),
		singleton: NewSingletonState(prefixdb.New(singletonPrefix, blockDB)),
		dataDB:    prefixdb.New(dataPrefix, blockDB),
		lookups:   lookupCache,
		tip:       Sentinel,
	}

	initialized, err := s.singleton.IsInitialized()
	if err != nil {
		return nil, err
	}
	if !initialized {
		if err := s.singleton.SetTip(Sentinel); err != nil {
			return nil, err
		}
		if err := s.singleton.SetInitialized(); err != nil {
			return nil, err
		}
		if err := s.blockDB.Commit(); err != nil {
			return nil, fmt.Errorf("failed to initialize block tree: %w", err)
		}
		return s, nil
	}

	tip, err := s.singleton.GetTip()
	if err != nil {
		return nil, fmt.Errorf("failed to load last committed block: %w", err)
	}
	s.tip = tip
	s.log.Info("resuming block tree", "tip", tip)
	return s, nil
}

// Begin opens [child] on top of the committed state of [parent].
func (s *Storage) Begin(parent, child ids.ID) error {
	if s.hasOpen {
		return fault.NewStorageError(fault.BlockAlreadyOpen, s.open)
	}
	if child == Sentinel {
		return fault.NewStorageError(fault.DuplicateBlock, child)
	}
	switch _, err := s.nodes.GetNode(child); {
	case err == nil:
		return fault.NewStorageError(fault.DuplicateBlock, child)
	case !errors.Is(err, database.ErrNotFound):
		return err
	}

	height := uint64(0)
	if parent != Sentinel {
		parentNode, err := s.nodes.GetNode(parent)
		switch {
		case errors.Is(err, database.ErrNotFound):
			return fault.NewStorageError(fault.UnknownParent, parent)
		case err != nil:
			return err
		case parentNode.Status != Committed:
			return fault.NewStorageError(fault.UnknownParent, parent)
		}
		height = parentNode.Height + 1
	}

	if err := s.nodes.PutNode(child, &Node{Parent: parent, Height: height, Status: Open}); err != nil {
		s.blockDB.Abort()
		return fmt.Errorf("failed to put node %s: %w", child, err)
	}
	s.open = child
	s.hasOpen = true
	s.cursors = nil
	s.log.Debug("opened block", "parent", parent, "block", child, "height", height)
	return nil
}

// Commit seals the open block. Its writes become visible to every future
// descendant and can no longer change.
func (s *Storage) Commit() error {
	if !s.hasOpen {
		return fault.NewStorageError(fault.NoOpenBlock, ids.Empty)
	}
	if len(s.savepoints) != 0 {
		return fault.NewStorageError(fault.SavepointsOutstanding, s.open)
	}

	node, err := s.nodes.GetNode(s.open)
	if err != nil {
		return fmt.Errorf("failed to get open node %s: %w", s.open, err)
	}
	node.Status = Committed
	if err := s.nodes.PutNode(s.open, node); err != nil {
		return fmt.Errorf("failed to seal node %s: %w", s.open, err)
	}
	if err := s.singleton.SetTip(s.open); err != nil {
		return fmt.Errorf("failed to update tip to %s: %w", s.open, err)
	}
	if err := s.blockDB.Commit(); err != nil {
		s.nodes.ClearCache()
		return fmt.Errorf("failed to commit block %s: %w", s.open, err)
	}

	s.log.Debug("committed block", "block", s.open, "height", node.Height)
	s.tip = s.open
	s.open = ids.Empty
	s.hasOpen = false
	s.cursors = nil
	return nil
}

// Rollback discards the open block and every write made to it.
func (s *Storage) Rollback() error {
	if !s.hasOpen {
		return fault.NewStorageError(fault.NoOpenBlock, ids.Empty)
	}
	for _, savepoint := range s.savepoints {
		savepoint.Abort()
	}
	s.savepoints = nil
	s.blockDB.Abort()

	s.log.Debug("rolled back block", "block", s.open)
	s.open = ids.Empty
	s.hasOpen = false
	s.cursors = nil
	return nil
}

// OpenBlock returns the open block, if any.
func (s *Storage) OpenBlock() (ids.ID, bool) { return s.open, s.hasOpen }

// Tip returns the most recently committed block, or Sentinel.
func (s *Storage) Tip() ids.ID { return s.tip }

// Node returns the node named by [hash], or database.ErrNotFound.
func (s *Storage) Node(hash ids.ID) (*Node, error) {
	if hash == Sentinel {
		return nil, database.ErrNotFound
	}
	return s.nodes.GetNode(hash)
}

// IsAncestor reports whether [ancestor] equals [of] or lies on its parent
// path. The sentinel is nobody's ancestor.
func (s *Storage) IsAncestor(ancestor, of ids.ID) (bool, error) {
	if ancestor == Sentinel || of == Sentinel {
		return false, nil
	}
	ancestorNode, err := s.Node(ancestor)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	current := of
	for current != ancestor {
		node, err := s.Node(current)
		if errors.Is(err, database.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if node.Height <= ancestorNode.Height || node.Parent == Sentinel {
			return false, nil
		}
		current = node.Parent
	}
	return true, nil
}

// Get resolves [key] at the cursor. Absent keys return database.ErrNotFound.
func (s *Storage) Get(key []byte) ([]byte, error) {
	return s.GetAt(s.Cursor(), key)
}

// Has reports whether [key] resolves at the cursor.
func (s *Storage) Has(key []byte) (bool, error) {
	_, err := s.Get(key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, database.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// GetAt resolves [key] at block [at] by walking its ancestors.
func (s *Storage) GetAt(at ids.ID, key []byte) ([]byte, error) {
	if at == Sentinel {
		return nil, database.ErrNotFound
	}

	root, err := s.Node(at)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fault.NewStorageError(fault.UnknownBlockHeaderHash, at)
		}
		return nil, err
	}
	cacheable := root.Status == Committed
	cacheKey := string(at[:]) + string(key)
	if cacheable {
		if cached, ok := s.lookups.Get(cacheKey); ok {
			result := cached.(lookup)
			if !result.found {
				return nil, database.ErrNotFound
			}
			return result.value, nil
		}
	}

	result, err := s.resolve(at, root, key)
	if err != nil {
		return nil, err
	}
	if cacheable {
		s.lookups.Put(cacheKey, result)
	}
	if !result.found {
		return nil, database.ErrNotFound
	}
	return result.value, nil
}

func (s *Storage) resolve(at ids.ID, node *Node, key []byte) (lookup, error) {
	db := s.top()
	current := at
	for {
		raw, err := db.Get(dataKey(current, key))
		switch {
		case err == nil:
			e := entry{}
			if _, err := treeCodec.Unmarshal(raw, &e); err != nil {
				return lookup{}, fmt.Errorf("failed to parse entry in block %s: %w", current, err)
			}
			if e.Deleted {
				return lookup{}, nil
			}
			return lookup{value: e.Value, found: true}, nil
		case !errors.Is(err, database.ErrNotFound):
			return lookup{}, err
		}

		if node.Parent == Sentinel {
			return lookup{}, nil
		}
		current = node.Parent
		node, err = s.nodes.GetNode(current)
		if err != nil {
			return lookup{}, fmt.Errorf("%w: %s: %s", errMissingNode, current, err)
		}
	}
}

// Put writes [key] into the open block.
func (s *Storage) Put(key []byte, value []byte) error {
	return s.write(key, entry{Value: value})
}

// Delete hides [key] from the open block and its descendants.
func (s *Storage) Delete(key []byte) error {
	return s.write(key, entry{Deleted: true})
}

func (s *Storage) write(key []byte, e entry) error {
	if !s.hasOpen {
		return fault.NewStorageError(fault.NoOpenBlock, ids.Empty)
	}
	if len(s.cursors) != 0 {
		return fault.NewStorageError(fault.ReadOnlyCursor, s.Cursor())
	}
	raw, err := treeCodec.Marshal(codecVersion, &e)
	if err != nil {
		return err
	}
	return s.top().Put(dataKey(s.open, key), raw)
}

func (s *Storage) top() database.Database {
	if n := len(s.savepoints); n > 0 {
		return s.savepoints[n-1]
	}
	return s.dataDB
}

func dataKey(block ids.ID, key []byte) []byte {
	k := make([]byte, len(block)+len(key))
	copy(k, block[:])
	copy(k[len(block):], key)
	return k
}
