package core

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ProducerConfig configures the single-leader block-production loop.
type ProducerConfig struct {
	BlockInterval time.Duration
	BlockMaxTx    int
	EmptyBlocks   bool
	ProducerID    string
}

// BlockEvent is published on every successful tick, for subscribers
// (the RPC layer's block-feed, tests) to observe without polling.
type BlockEvent struct {
	Block *Block
}

// Producer is the sole block producer for this chain: no leader
// election, single-leader by construction. A consensus layer that
// replaces it must preserve the block-application protocol in Tick.
type Producer struct {
	cfg      ProducerConfig
	storage  *Storage
	state    *State
	mempool  *Mempool
	engine   *Engine
	emission *EmissionEngine
	params   *ParamStore
	log      *logrus.Logger

	tickMu sync.Mutex
	events chan BlockEvent

	statsMu        sync.Mutex
	recentTxCounts []int
	recentAt       []time.Time
}

func NewProducer(cfg ProducerConfig, storage *Storage, state *State, mempool *Mempool, engine *Engine, emission *EmissionEngine, params *ParamStore, log *logrus.Logger) *Producer {
	return &Producer{
		cfg: cfg, storage: storage, state: state, mempool: mempool,
		engine: engine, emission: emission, params: params, log: log,
		events: make(chan BlockEvent, 16),
	}
}

func (p *Producer) Events() <-chan BlockEvent { return p.events }

// Run drives Tick on cfg.BlockInterval until ctx is cancelled. A tick
// error is fatal for the loop: the store may be unusable and the tip
// must not advance past an incomplete commit.
func (p *Producer) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.BlockInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.Tick(); err != nil {
				p.log.WithError(err).Error("producer tick failed")
				return err
			}
		}
	}
}

func indexInBlock(hashes []Hash, target Hash) int {
	for i, h := range hashes {
		if h == target {
			return i
		}
	}
	return -1
}

// Tick executes one block-production pass: take a mempool snapshot,
// execute each candidate, commit the block atomically, then run the
// emission tick and drop every snapshot transaction (included or
// failed) from the pool. It is
// exported so tests can drive block production deterministically
// without waiting on the interval ticker.
func (p *Producer) Tick() error {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()

	blockMax := p.cfg.BlockMaxTx
	if v, ok := p.params.GetOverrideUint64(ParamProducerBlockMaxTx); ok {
		blockMax = int(v)
	} else if blockMax <= 0 {
		if v, ok := p.params.GetParamUint64(ParamProducerBlockMaxTx); ok {
			blockMax = int(v)
		}
	}

	candidates := p.mempool.TakeSnapshot(blockMax)
	if len(candidates) == 0 && !p.cfg.EmptyBlocks {
		return nil
	}

	height, err := p.storage.GetHeight()
	if err != nil {
		return err
	}
	parent, err := p.storage.GetBestHash()
	if err != nil {
		return err
	}

	var included []*SignedTransaction
	var receipts []*Receipt
	var includedHashes []Hash
	snapshotHashes := make([]Hash, 0, len(candidates))

	for _, stx := range candidates {
		txHash, err := TxHash(&stx.Tx)
		if err != nil {
			p.log.WithError(err).Warn("skipping transaction with unhashable canonical form")
			continue
		}
		snapshotHashes = append(snapshotHashes, txHash)
		if err := p.storage.EnsureTxArchived(stx, txHash); err != nil {
			return err
		}

		r := p.engine.Execute(p.state, stx, txHash)
		receipts = append(receipts, r)
		if r.Success {
			included = append(included, stx)
			includedHashes = append(includedHashes, txHash)
		}
	}

	newHeight := height + 1
	header := BlockHeader{
		Height:     newHeight,
		ParentHash: parent,
		Timestamp:  time.Now().Unix(),
		ProducerID: p.cfg.ProducerID,
	}
	blockHash := ComputeBlockHash(header, includedHashes)
	block := &Block{Header: header, Txs: included, Hash: blockHash}

	for _, r := range receipts {
		if !r.Success {
			continue
		}
		idx := indexInBlock(includedHashes, r.TxHash)
		h := newHeight
		r.BlockHeight = &h
		r.Index = &idx
	}

	accounts := p.state.DirtyAccounts()
	if err := p.storage.CommitBlock(block, receipts, accounts); err != nil {
		p.state.DiscardDirty()
		return err
	}
	p.state.ClearDirty()

	if err := p.emission.Tick(newHeight); err != nil {
		p.log.WithError(err).Error("emission tick failed after block commit")
	}

	p.mempool.DropHashes(snapshotHashes)
	p.recordTick(len(included))

	p.log.WithFields(logrus.Fields{
		"height": newHeight, "included": len(included), "failed": len(receipts) - len(included),
	}).Info("block produced")

	select {
	case p.events <- BlockEvent{Block: block}:
	default:
		p.log.Warn("block event channel full, dropping event")
	}
	return nil
}

func (p *Producer) recordTick(n int) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.recentTxCounts = append(p.recentTxCounts, n)
	p.recentAt = append(p.recentAt, time.Now())
	if len(p.recentTxCounts) > 32 {
		p.recentTxCounts = p.recentTxCounts[1:]
		p.recentAt = p.recentAt[1:]
	}
}

// RollingTPS reports the transaction throughput averaged over the
// recently-produced block window.
func (p *Producer) RollingTPS() float64 {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	if len(p.recentAt) < 2 {
		return 0
	}
	span := p.recentAt[len(p.recentAt)-1].Sub(p.recentAt[0]).Seconds()
	if span <= 0 {
		return 0
	}
	total := 0
	for _, c := range p.recentTxCounts {
		total += c
	}
	return float64(total) / span
}
