package core

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// MempoolConfig bounds admission and prioritization.
type MempoolConfig struct {
	MaxTxs      int
	MaxBytes    int
	MaxTxBytes  int
	MinGasPrice uint64
	FeeDenom    Denom
}

type mempoolEntry struct {
	tx   *SignedTransaction
	hash Hash
	size int
}

// less reports whether a has strictly higher priority than b: higher
// gas_price first, then lower nonce, then lexicographically smaller hash
// as a final, deterministic tie-break.
func less(a, b *mempoolEntry) bool {
	if a.tx.GasPrice != b.tx.GasPrice {
		return a.tx.GasPrice > b.tx.GasPrice
	}
	if a.tx.Tx.Nonce != b.tx.Tx.Nonce {
		return a.tx.Tx.Nonce < b.tx.Tx.Nonce
	}
	return bytes.Compare(a.hash[:], b.hash[:]) < 0
}

// lruSeen suppresses duplicate gossip of a transaction hash already
// observed, bounded in size with FIFO eviction.
type lruSeen struct {
	mu       sync.Mutex
	capacity int
	order    []Hash
	index    map[Hash]struct{}
}

func newLRUSeen(capacity int) *lruSeen {
	return &lruSeen{capacity: capacity, index: map[Hash]struct{}{}}
}

// shouldGossip returns true only the first time hash is observed from
// any peer; the peer argument is accepted for future diagnostic use but
// does not affect the dedup decision itself.
func (l *lruSeen) shouldGossip(hash Hash, _ string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.index[hash]; ok {
		return false
	}
	l.order = append(l.order, hash)
	l.index[hash] = struct{}{}
	if len(l.order) > l.capacity {
		oldest := l.order[0]
		l.order = l.order[1:]
		delete(l.index, oldest)
	}
	return true
}

// Mempool is the pending-transaction pool: one owning slice of entries
// kept sorted by priority, plus a hash-keyed index for O(1) duplicate
// checks.
type Mempool struct {
	mu       sync.Mutex
	cfg      MempoolConfig
	policy   *Policy
	state    *State
	params   *ParamStore
	entries  []*mempoolEntry
	lookup   map[Hash]*mempoolEntry
	byteSize int
	log      *logrus.Logger
	seen     *lruSeen
}

func NewMempool(cfg MempoolConfig, policy *Policy, state *State, params *ParamStore, log *logrus.Logger) *Mempool {
	if params == nil {
		params = NewParamStore(nil)
	}
	return &Mempool{
		cfg: cfg, policy: policy, state: state, params: params,
		lookup: map[Hash]*mempoolEntry{}, log: log, seen: newLRUSeen(4096),
	}
}

// minGasPrice resolves the admission floor on every call: a stored
// governance override wins over the configured value; the compiled-in
// default applies only when the configuration leaves it unset.
func (m *Mempool) minGasPrice() uint64 {
	min := m.cfg.MinGasPrice
	if v, ok := m.params.GetOverrideUint64(ParamMempoolMinGasPrice); ok {
		min = v
	} else if min == 0 {
		if v, ok := m.params.GetParamUint64(ParamMempoolMinGasPrice); ok {
			min = v
		}
	}
	return min
}

// Admit validates and, on success, inserts stx into the pool, evicting
// lower-priority entries if needed. Returns the transaction's canonical
// hash even on rejection, for logging/correlation.
func (m *Mempool) Admit(stx *SignedTransaction) (Hash, error) {
	b, err := CanonicalBytes(&stx.Tx)
	if err != nil {
		return Hash{}, newCoded(CodeInternal, err.Error())
	}
	hash, err := TxHash(&stx.Tx)
	if err != nil {
		return Hash{}, newCoded(CodeInternal, err.Error())
	}
	if m.cfg.MaxTxBytes > 0 && len(b) > m.cfg.MaxTxBytes {
		return hash, newCoded(CodeOversizedTx, "transaction exceeds max_tx_bytes")
	}

	if err := m.policy.Admits(stx.Algorithm); err != nil {
		m.log.WithFields(logrus.Fields{"tx": hash.Hex(), "algo": stx.Algorithm}).Debug("mempool: algorithm rejected")
		return hash, err
	}
	ok, err := m.policy.Verify(stx.Algorithm, b, stx.Signature, stx.PublicKey)
	if err != nil {
		m.log.WithFields(logrus.Fields{"tx": hash.Hex(), "reason": "malformed"}).Debug("mempool: signature rejected")
		return hash, newCoded(CodeInvalidSignature, err.Error())
	}
	if !ok {
		m.log.WithFields(logrus.Fields{"tx": hash.Hex(), "reason": "verification_failed"}).Debug("mempool: signature rejected")
		return hash, newCoded(CodeInvalidSignature, "signature verification failed")
	}

	if stx.GasPrice < m.minGasPrice() {
		return hash, newCoded(CodeUnderpricedGas, "gas price below minimum")
	}

	primary := primarySend(stx.Tx.Msgs)
	if primary == nil {
		return hash, newCoded(CodeInternal, "transaction carries no admissible message")
	}

	snapshotNonce, err := m.state.SnapshotNonce(primary.From)
	if err != nil {
		return hash, newCoded(CodeInternal, err.Error())
	}
	if snapshotNonce != stx.Tx.Nonce {
		return hash, newNonceGapError(snapshotNonce, stx.Tx.Nonce)
	}

	upfront := new(Amount)
	if _, overflow := upfront.MulOverflow(AmountFromUint64(stx.GasLimit), AmountFromUint64(stx.GasPrice)); overflow {
		return hash, newCoded(CodeInsufficientFunds, "fee overflow")
	}
	need := cloneAmount(upfront)
	if primary.Denom == m.cfg.FeeDenom {
		need = checkedAdd(need, primary.Amount)
	}
	bal, err := m.state.BalanceOf(primary.From, m.cfg.FeeDenom)
	if err != nil {
		return hash, newCoded(CodeInternal, err.Error())
	}
	if bal.Cmp(need) < 0 {
		return hash, newCoded(CodeInsufficientFunds, "insufficient balance for fee and value")
	}

	entry := &mempoolEntry{tx: stx, hash: hash, size: len(b)}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.lookup[hash]; exists {
		return hash, newCoded(CodeDuplicateTx, "duplicate transaction")
	}

	for (m.cfg.MaxTxs > 0 && len(m.entries) >= m.cfg.MaxTxs) ||
		(m.cfg.MaxBytes > 0 && m.byteSize+entry.size > m.cfg.MaxBytes) {
		if len(m.entries) == 0 {
			return hash, newCoded(CodeMempoolFull, "mempool full")
		}
		worst := m.entries[len(m.entries)-1]
		if !less(entry, worst) {
			return hash, newCoded(CodeMempoolFull, "mempool full")
		}
		m.removeLocked(worst.hash)
	}

	m.insertLocked(entry)
	return hash, nil
}

func (m *Mempool) insertLocked(e *mempoolEntry) {
	idx := sort.Search(len(m.entries), func(i int) bool { return less(e, m.entries[i]) })
	m.entries = append(m.entries, nil)
	copy(m.entries[idx+1:], m.entries[idx:])
	m.entries[idx] = e
	m.lookup[e.hash] = e
	m.byteSize += e.size
}

func (m *Mempool) removeLocked(h Hash) {
	e, ok := m.lookup[h]
	if !ok {
		return
	}
	delete(m.lookup, h)
	m.byteSize -= e.size
	for i, x := range m.entries {
		if x.hash == h {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			break
		}
	}
}

// TakeSnapshot returns up to limit highest-priority transactions without
// removing them; limit <= 0 means "no limit". The caller removes
// snapshot transactions explicitly via DropHashes after a successful
// block commit.
func (m *Mempool) TakeSnapshot(limit int) []*SignedTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*SignedTransaction, n)
	for i := 0; i < n; i++ {
		out[i] = m.entries[i].tx
	}
	return out
}

func (m *Mempool) DropHashes(hashes []Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range hashes {
		m.removeLocked(h)
	}
}

func (m *Mempool) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Mempool) Has(h Hash) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.lookup[h]
	return ok
}

// ShouldGossip reports whether hash, received from peer, has not been
// observed before and therefore warrants re-broadcast.
func (m *Mempool) ShouldGossip(hash Hash, peer string) bool {
	return m.seen.shouldGossip(hash, peer)
}

func (m *Mempool) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fmt.Sprintf("Mempool(entries=%d, bytes=%d)", len(m.entries), m.byteSize)
}
