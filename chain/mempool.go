// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"errors"
	"fmt"
)

var errEmptyMempool = errors.New("empty mempool")

// mempool is a bounded FIFO of transactions waiting for a block.
type mempool struct {
	size int
	txs  chan *Tx
}

func newMempool(size int) *mempool {
	return &mempool{
		size: size,
		txs:  make(chan *Tx, size),
	}
}

func (m *mempool) Add(tx *Tx) error {
	select {
	case m.txs <- tx:
		return nil
	default:
		return fmt.Errorf("failed to add %s transaction to mempool due to full at size (%d)", tx.Kind, m.size)
	}
}

func (m *mempool) Next() (*Tx, error) {
	select {
	case tx := <-m.txs:
		return tx, nil
	default:
		return nil, errEmptyMempool
	}
}

// Drain removes and returns every pending transaction in arrival order.
func (m *mempool) Drain() []*Tx {
	var txs []*Tx
	for {
		tx, err := m.Next()
		if err != nil {
			return txs
		}
		txs = append(txs, tx)
	}
}

func (m *mempool) Len() int {
	return len(m.txs)
}
