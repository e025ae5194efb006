// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/avalanchego/utils/wrappers"
)

type metrics struct {
	txsAccepted       prometheus.Counter
	txsFailed         prometheus.Counter
	blocksBuilt       prometheus.Counter
	contractsDeployed prometheus.Counter
	mempoolSize       prometheus.Gauge
}

func newMetrics(namespace string, registerer prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		txsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "txs_accepted",
			Help:      "Number of transactions that returned an ok response",
		}),
		txsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "txs_failed",
			Help:      "Number of transactions that errored or returned an err response",
		}),
		blocksBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_built",
			Help:      "Number of blocks built and committed",
		}),
		contractsDeployed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contracts_deployed",
			Help:      "Number of contracts initialized",
		}),
		mempoolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mempool_size",
			Help:      "Number of transactions waiting for a block",
		}),
	}

	errs := wrappers.Errs{}
	errs.Add(
		registerer.Register(m.txsAccepted),
		registerer.Register(m.txsFailed),
		registerer.Register(m.blocksBuilt),
		registerer.Register(m.contractsDeployed),
		registerer.Register(m.mempoolSize),
	)
	return m, errs.Err
}
