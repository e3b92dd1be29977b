package core

import (
	"errors"
	"testing"
)

func TestDilithium5SelfSignedVerifies(t *testing.T) {
	kp := testKeypair(t, 1)
	msg := []byte("canonical preimage bytes")
	sig := kp.Sign(msg)

	policy := NewDefaultPolicy()
	ok, err := policy.Verify(AlgoDilithium5, msg, sig, kp.PublicKeyBytes())
	if err != nil {
		t.Fatalf("verify err: %v", err)
	}
	if !ok {
		t.Fatalf("self-produced signature rejected")
	}
}

func TestVerifyFailsOnCorruptedSignature(t *testing.T) {
	kp := testKeypair(t, 2)
	msg := []byte("payload")
	sig := kp.Sign(msg)
	sig[10] ^= 0x01

	policy := NewDefaultPolicy()
	ok, err := policy.Verify(AlgoDilithium5, msg, sig, kp.PublicKeyBytes())
	if err != nil {
		t.Fatalf("verify err: %v", err)
	}
	if ok {
		t.Fatalf("corrupted signature verified")
	}
}

func TestVerifyFailsOnCorruptedPublicKey(t *testing.T) {
	kp := testKeypair(t, 3)
	msg := []byte("payload")
	sig := kp.Sign(msg)
	pub := kp.PublicKeyBytes()
	pub[0] ^= 0x01

	policy := NewDefaultPolicy()
	ok, err := policy.Verify(AlgoDilithium5, msg, sig, pub)
	if err == nil && ok {
		t.Fatalf("signature verified under corrupted public key")
	}
}

func TestLegacyAlgorithmsRejected(t *testing.T) {
	policy := NewDefaultPolicy()
	for _, tag := range []AlgoTag{"ecdsa", "rsa", "ed25519", "secp256k1", "p256", "ED25519"} {
		t.Run(string(tag), func(t *testing.T) {
			err := policy.Admits(tag)
			var coded *CodedError
			if !errors.As(err, &coded) {
				t.Fatalf("want CodedError, got %v", err)
			}
			if coded.Code != CodeLegacyAlgorithmRejected {
				t.Fatalf("code=%s want %s", coded.Code, CodeLegacyAlgorithmRejected)
			}
		})
	}
}

func TestUnknownAlgorithmRejected(t *testing.T) {
	policy := NewDefaultPolicy()
	err := policy.Admits("sphincs-shake-256f")
	var coded *CodedError
	if !errors.As(err, &coded) {
		t.Fatalf("want CodedError, got %v", err)
	}
	if coded.Code != CodeUnknownAlgorithm {
		t.Fatalf("code=%s want %s", coded.Code, CodeUnknownAlgorithm)
	}
}

func TestAlgorithmTagCaseInsensitive(t *testing.T) {
	policy := NewDefaultPolicy()
	if err := policy.Admits("Dilithium5"); err != nil {
		t.Fatalf("mixed-case tag rejected: %v", err)
	}
}

func TestMalformedKeyLengthsReportDistinctly(t *testing.T) {
	policy := NewDefaultPolicy()
	_, err := policy.Verify(AlgoDilithium5, []byte("m"), []byte("short-sig"), []byte("short-pub"))
	if err == nil {
		t.Fatalf("expected malformed-input error")
	}
}

func TestRegisteringBackendExtendsAllowList(t *testing.T) {
	policy := NewDefaultPolicy()
	if err := policy.Admits(AlgoDilithium3); err == nil {
		t.Fatalf("dilithium3 admitted before registration")
	}
	policy.Allow(AlgoDilithium3, dilithiumBackend{mode: AlgoDilithium3})
	if err := policy.Admits(AlgoDilithium3); err != nil {
		t.Fatalf("dilithium3 rejected after registration: %v", err)
	}
}
