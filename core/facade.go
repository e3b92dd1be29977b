package core

import (
	"fmt"
	"sort"
)

// Node is the submit/query facade: the single surface the RPC adapter
// and CLI talk to, composing every other component.
type Node struct {
	Storage  *Storage
	State    *State
	Mempool  *Mempool
	Producer *Producer
	Emission *EmissionEngine
	Params   *ParamStore
	Policy   *Policy
	ChainID  string
}

// SubmitResult is returned to a client immediately after admission; the
// transaction's actual inclusion/execution outcome is available later
// via Receipt.
type SubmitResult struct {
	Hash   Hash
	Status ReceiptStatus
}

// Submit validates and admits a signed transaction, persisting a
// pending receipt. It never blocks for block production.
func (n *Node) Submit(stx *SignedTransaction) (*SubmitResult, error) {
	if stx.Tx.ChainID != n.ChainID {
		return nil, newCoded(CodeChainIDMismatch, fmt.Sprintf("tx targets %q, node runs %q", stx.Tx.ChainID, n.ChainID))
	}

	hash, err := n.Mempool.Admit(stx)
	if err != nil {
		return nil, err
	}

	primary := primarySend(stx.Tx.Msgs)
	pending := &Receipt{
		Version:  1,
		TxHash:   hash,
		Status:   ReceiptPending,
		Nonce:    stx.Tx.Nonce,
		GasLimit: stx.GasLimit,
		GasPrice: stx.GasPrice,
		Fee:      cloneAmount(stx.Tx.Fee),
		Amount:   new(Amount),
	}
	if primary != nil {
		pending.From = primary.From
		pending.To = primary.To
		pending.Amount = cloneAmount(primary.Amount)
	}
	if err := n.Storage.PutPendingTx(stx, hash, pending); err != nil {
		return nil, fmt.Errorf("facade: persist pending tx: %w", err)
	}
	return &SubmitResult{Hash: hash, Status: ReceiptPending}, nil
}

// BalanceOf returns a single denom's balance, or the full balance map
// when denom is nil.
func (n *Node) BalanceOf(addr Address, denom *Denom) (map[Denom]*Amount, error) {
	if denom != nil {
		amt, err := n.State.BalanceOf(addr, *denom)
		if err != nil {
			return nil, err
		}
		return map[Denom]*Amount{*denom: amt}, nil
	}
	return n.State.AllBalances(addr)
}

// SortedBalanceKeys returns denom from m in sorted order, for
// deterministic JSON rendering of the multi-denom balance response.
func SortedBalanceKeys(m map[Denom]*Amount) []Denom {
	keys := make([]Denom, 0, len(m))
	for d := range m {
		keys = append(keys, d)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (n *Node) NonceOf(addr Address) (uint64, error) { return n.State.NonceOf(addr) }

func (n *Node) BlockByHeight(h uint64) (*Block, error) { return n.Storage.GetBlockByHeight(h) }
func (n *Node) BlockByHash(h Hash) (*Block, error)     { return n.Storage.GetBlockByHash(h) }

func (n *Node) LatestBlock() (*Block, error) {
	h, err := n.Storage.GetHeight()
	if err != nil {
		return nil, err
	}
	if h == 0 {
		return nil, ErrNotFound
	}
	return n.Storage.GetBlockByHeight(h)
}

// Receipt returns the receipt for txHash, whether pending or final.
func (n *Node) Receipt(txHash Hash) (*Receipt, error) { return n.Storage.GetReceipt(txHash) }

// Stats is the lightweight node-health surface for dashboards/CLI.
type Stats struct {
	Height      uint64  `json:"height"`
	MempoolSize int     `json:"mempool_size"`
	ChainID     string  `json:"chain_id"`
	RollingTPS  float64 `json:"rolling_tps"`
}

func (n *Node) Stats() (*Stats, error) {
	h, err := n.Storage.GetHeight()
	if err != nil {
		return nil, err
	}
	var tps float64
	if n.Producer != nil {
		tps = n.Producer.RollingTPS()
	}
	return &Stats{Height: h, MempoolSize: n.Mempool.Size(), ChainID: n.ChainID, RollingTPS: tps}, nil
}

// ClaimStakingReward pays out accrued staking rewards for delegator.
func (n *Node) ClaimStakingReward(delegator Address) (*Amount, error) {
	return n.Emission.Claim(delegator)
}
