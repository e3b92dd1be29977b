package core

import (
	"bytes"
	"testing"

	"lukechampine.com/blake3"
)

// The literal wire vector: whitespace-free, keys lexicographically
// sorted at every depth, amounts as strings, nonce as a bare number.
const wantCanonical = `{"chain_id":"dyt-local-1","fee":"1000","memo":"","msgs":[{"amount":"1000000","denom":"DGT","from":"dgt1sender","to":"dgt1recipient","type":"send"}],"nonce":0}`

func vectorTx() *Transaction {
	amt, _ := AmountFromDecimal("1000000")
	fee, _ := AmountFromDecimal("1000")
	return &Transaction{
		ChainID: "dyt-local-1",
		Nonce:   0,
		Msgs: []Msg{SendMsg{
			From:   "dgt1sender",
			To:     "dgt1recipient",
			Denom:  "DGT",
			Amount: amt,
		}},
		Fee:  fee,
		Memo: "",
	}
}

func TestCanonicalBytesKnownVector(t *testing.T) {
	b, err := CanonicalBytes(vectorTx())
	if err != nil {
		t.Fatalf("canonical bytes: %v", err)
	}
	if string(b) != wantCanonical {
		t.Fatalf("canonical bytes mismatch:\n got  %s\n want %s", b, wantCanonical)
	}
}

func TestTxHashIsBlake3OfCanonicalBytes(t *testing.T) {
	tx := vectorTx()
	b, err := CanonicalBytes(tx)
	if err != nil {
		t.Fatalf("canonical bytes: %v", err)
	}
	h, err := TxHash(tx)
	if err != nil {
		t.Fatalf("tx hash: %v", err)
	}
	if want := blake3.Sum256(b); h != Hash(want) {
		t.Fatalf("hash=%s want %x", h.Hex(), want)
	}
}

func TestCanonicalRoundTrip(t *testing.T) {
	orig := vectorTx()
	origBytes, err := CanonicalBytes(orig)
	if err != nil {
		t.Fatalf("canonical bytes: %v", err)
	}
	parsed, err := ParseCanonicalTransaction(origBytes)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	reBytes, err := CanonicalBytes(parsed)
	if err != nil {
		t.Fatalf("re-serialize: %v", err)
	}
	if !bytes.Equal(origBytes, reBytes) {
		t.Fatalf("round trip changed bytes:\n got  %s\n want %s", reBytes, origBytes)
	}
	if parsed.Nonce != orig.Nonce || parsed.ChainID != orig.ChainID || parsed.Memo != orig.Memo {
		t.Fatalf("round trip changed scalar fields: %+v", parsed)
	}
	if len(parsed.Msgs) != 1 {
		t.Fatalf("msgs=%d want 1", len(parsed.Msgs))
	}
}

// Two structurally distinct construction paths (direct literal vs
// parse-from-wire) must hash identically.
func TestTxHashStableAcrossConstructionPaths(t *testing.T) {
	direct := vectorTx()
	b, err := CanonicalBytes(direct)
	if err != nil {
		t.Fatalf("canonical bytes: %v", err)
	}
	parsed, err := ParseCanonicalTransaction(b)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	h1, err := TxHash(direct)
	if err != nil {
		t.Fatalf("hash direct: %v", err)
	}
	h2, err := TxHash(parsed)
	if err != nil {
		t.Fatalf("hash parsed: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("hashes differ: %s vs %s", h1.Hex(), h2.Hex())
	}
}

func TestSignedTransactionEnvelopeRoundTrip(t *testing.T) {
	kp := testKeypair(t, 7)
	stx := signedSend(t, kp, "dgt1recipient", 3, DefaultDenom, 5000, 21000, 10)

	enc, err := stx.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	var back SignedTransaction
	if err := back.UnmarshalJSON(enc); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if back.Algorithm != AlgoDilithium5 || back.GasLimit != 21000 || back.GasPrice != 10 {
		t.Fatalf("envelope fields lost: %+v", back)
	}
	if !bytes.Equal(back.Signature, stx.Signature) || !bytes.Equal(back.PublicKey, stx.PublicKey) {
		t.Fatalf("signature/public key lost in round trip")
	}
	h1 := mustHash(t, &stx.Tx)
	h2 := mustHash(t, &back.Tx)
	if h1 != h2 {
		t.Fatalf("envelope round trip changed tx hash: %s vs %s", h1.Hex(), h2.Hex())
	}
}

func TestUnknownMessageTypeRejected(t *testing.T) {
	_, err := ParseCanonicalTransaction([]byte(`{"chain_id":"x","fee":"0","memo":"","msgs":[{"type":"teleport"}],"nonce":0}`))
	if err == nil {
		t.Fatalf("expected unknown message type error")
	}
}

func TestComputeBlockHashCoversTxOrder(t *testing.T) {
	header := BlockHeader{Height: 5, ParentHash: Hash{1}, Timestamp: 1234, ProducerID: "p1"}
	a, b := Hash{0xaa}, Hash{0xbb}
	h1 := ComputeBlockHash(header, []Hash{a, b})
	h2 := ComputeBlockHash(header, []Hash{b, a})
	if h1 == h2 {
		t.Fatalf("block hash must depend on transaction order")
	}
	if h1 != ComputeBlockHash(header, []Hash{a, b}) {
		t.Fatalf("block hash must be deterministic")
	}
}
