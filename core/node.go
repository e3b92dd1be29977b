package core

import (
	"time"

	"github.com/sirupsen/logrus"
)

// NodeConfig is the fully-resolved runtime configuration core consumes.
// It is deliberately free of any config-file or environment concern;
// cmd/rpcd builds one from the Config that the pkg/config loader reads
// from the process environment.
type NodeConfig struct {
	DataDir       string
	ChainID       string
	BlockInterval time.Duration
	BlockMaxTx    int
	EmptyBlocks   bool
	ProducerID    string

	MempoolMaxTxs   int
	MempoolMaxBytes int
	MaxTxBytes      int
	MinGasPrice     uint64

	Emission  EmissionSchedule
	Breakdown EmissionBreakdown
}

// NewNode opens storage, enforces chain-id immutability, and wires
// every core component together. The returned Node owns its
// sub-components; callers share the Node itself, never the parts.
func NewNode(cfg NodeConfig, log *logrus.Logger) (*Node, error) {
	storage, err := OpenStorage(cfg.DataDir, log)
	if err != nil {
		return nil, err
	}
	if err := storage.InitChainID(cfg.ChainID); err != nil {
		storage.Close()
		return nil, err
	}

	state := NewState(storage)
	policy := NewDefaultPolicy()
	params := NewParamStore(storage)

	mempool := NewMempool(MempoolConfig{
		MaxTxs:      cfg.MempoolMaxTxs,
		MaxBytes:    cfg.MempoolMaxBytes,
		MaxTxBytes:  cfg.MaxTxBytes,
		MinGasPrice: cfg.MinGasPrice,
		FeeDenom:    DefaultDenom,
	}, policy, state, params, log)

	engine := NewEngine(params, DefaultDenom)
	emission := NewEmissionEngine(storage, state, cfg.Emission, cfg.Breakdown, RewardDenom)

	producer := NewProducer(ProducerConfig{
		BlockInterval: cfg.BlockInterval,
		BlockMaxTx:    cfg.BlockMaxTx,
		EmptyBlocks:   cfg.EmptyBlocks,
		ProducerID:    cfg.ProducerID,
	}, storage, state, mempool, engine, emission, params, log)

	return &Node{
		Storage:  storage,
		State:    state,
		Mempool:  mempool,
		Producer: producer,
		Emission: emission,
		Params:   params,
		Policy:   policy,
		ChainID:  cfg.ChainID,
	}, nil
}

// Close releases the node's storage. In-flight producer ticks must have
// finished (cancel the Run context first).
func (n *Node) Close() error { return n.Storage.Close() }
