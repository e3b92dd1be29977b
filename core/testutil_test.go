package core

import (
	"io"
	"testing"

	"github.com/cloudflare/circl/sign/dilithium/mode5"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := OpenStorage(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testKeypair derives a deterministic Dilithium-5 keypair; distinct ids
// give distinct addresses.
func testKeypair(t *testing.T, id byte) *Keypair {
	t.Helper()
	seed := make([]byte, mode5.SeedSize)
	for i := range seed {
		seed[i] = id
	}
	kp, err := KeypairFromSeed(seed)
	if err != nil {
		t.Fatalf("keypair from seed: %v", err)
	}
	return kp
}

func fund(t *testing.T, state *State, addr Address, denom Denom, amount uint64) {
	t.Helper()
	if err := state.Mint(addr, denom, AmountFromUint64(amount)); err != nil {
		t.Fatalf("fund %s: %v", addr, err)
	}
}

// signedSend builds and signs a single-Send transaction on the default
// test chain.
func signedSend(t *testing.T, kp *Keypair, to Address, nonce uint64, denom Denom, amount, gasLimit, gasPrice uint64) *SignedTransaction {
	t.Helper()
	tx := &Transaction{
		ChainID: "dyt-test-1",
		Nonce:   nonce,
		Msgs: []Msg{SendMsg{
			From:   kp.Address(),
			To:     to,
			Denom:  denom,
			Amount: AmountFromUint64(amount),
		}},
		Fee: AmountFromUint64(gasLimit * gasPrice),
	}
	stx, err := kp.SignTransaction(tx, gasLimit, gasPrice)
	if err != nil {
		t.Fatalf("sign tx: %v", err)
	}
	return stx
}

func mustHash(t *testing.T, tx *Transaction) Hash {
	t.Helper()
	h, err := TxHash(tx)
	if err != nil {
		t.Fatalf("tx hash: %v", err)
	}
	return h
}

func balanceU64(t *testing.T, state *State, addr Address, denom Denom) uint64 {
	t.Helper()
	bal, err := state.BalanceOf(addr, denom)
	if err != nil {
		t.Fatalf("balance of %s: %v", addr, err)
	}
	return bal.Uint64()
}

// testEnv bundles the full execution stack over a fresh temp store.
type testEnv struct {
	storage  *Storage
	state    *State
	policy   *Policy
	params   *ParamStore
	engine   *Engine
	mempool  *Mempool
	emission *EmissionEngine
	producer *Producer
}

func newTestEnv(t *testing.T, mcfg MempoolConfig, pcfg ProducerConfig, schedule EmissionSchedule) *testEnv {
	t.Helper()
	storage := newTestStorage(t)
	state := NewState(storage)
	policy := NewDefaultPolicy()
	params := NewParamStore(storage)
	if mcfg.FeeDenom == "" {
		mcfg.FeeDenom = DefaultDenom
	}
	mempool := NewMempool(mcfg, policy, state, params, testLogger())
	engine := NewEngine(params, DefaultDenom)
	emission := NewEmissionEngine(storage, state, schedule, DefaultEmissionBreakdown(), RewardDenom)
	producer := NewProducer(pcfg, storage, state, mempool, engine, emission, params, testLogger())
	return &testEnv{
		storage: storage, state: state, policy: policy, params: params,
		engine: engine, mempool: mempool, emission: emission, producer: producer,
	}
}
