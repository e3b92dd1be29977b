package core

import (
	"strings"
	"testing"
)

func TestAddressDerivationDeterministic(t *testing.T) {
	kp1 := testKeypair(t, 9)
	kp2 := testKeypair(t, 9)
	if kp1.Address() != kp2.Address() {
		t.Fatalf("same seed produced different addresses: %s vs %s", kp1.Address(), kp2.Address())
	}
	other := testKeypair(t, 10)
	if kp1.Address() == other.Address() {
		t.Fatalf("distinct seeds produced the same address")
	}
}

func TestAddressShape(t *testing.T) {
	addr := string(testKeypair(t, 4).Address())
	if !strings.HasPrefix(addr, AddressPrefix) {
		t.Fatalf("address %q missing prefix %q", addr, AddressPrefix)
	}
	if len(addr) != len(AddressPrefix)+2*addressBytes {
		t.Fatalf("address length=%d want %d", len(addr), len(AddressPrefix)+2*addressBytes)
	}
}

func TestKeypairFromPrivateKeyRoundTrip(t *testing.T) {
	kp := testKeypair(t, 5)
	restored, err := KeypairFromPrivateKey(kp.PrivateKeyBytes())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.Address() != kp.Address() {
		t.Fatalf("restored address %s want %s", restored.Address(), kp.Address())
	}

	msg := []byte("restored keys must sign identically verifiable messages")
	policy := NewDefaultPolicy()
	ok, err := policy.Verify(AlgoDilithium5, msg, restored.Sign(msg), kp.PublicKeyBytes())
	if err != nil || !ok {
		t.Fatalf("restored key signature rejected: ok=%v err=%v", ok, err)
	}
}

func TestSignTransactionCoversCanonicalPreimage(t *testing.T) {
	kp := testKeypair(t, 6)
	stx := signedSend(t, kp, "dgt1peer", 0, DefaultDenom, 100, 21000, 1)

	preimage, err := CanonicalBytes(&stx.Tx)
	if err != nil {
		t.Fatalf("canonical bytes: %v", err)
	}
	policy := NewDefaultPolicy()
	ok, err := policy.Verify(stx.Algorithm, preimage, stx.Signature, stx.PublicKey)
	if err != nil || !ok {
		t.Fatalf("envelope signature does not cover canonical preimage: ok=%v err=%v", ok, err)
	}
}
