package core

import (
	"strings"
	"sync"

	"github.com/cloudflare/circl/sign/dilithium/mode2"
	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"github.com/cloudflare/circl/sign/dilithium/mode5"
)

const (
	AlgoDilithium2      AlgoTag = "dilithium2"
	AlgoDilithium3      AlgoTag = "dilithium3"
	AlgoDilithium5      AlgoTag = "dilithium5"
	AlgoFalcon1024      AlgoTag = "falcon1024"
	AlgoSphincsSHA2128s AlgoTag = "sphincs+-sha2-128s"
)

var legacyAlgorithms = map[AlgoTag]bool{
	"ecdsa":     true,
	"rsa":       true,
	"ed25519":   true,
	"secp256k1": true,
	"p256":      true,
}

// SigBackend verifies a detached signature over msg for one algorithm.
type SigBackend interface {
	Verify(msg, sig, pub []byte) (bool, error)
}

type dilithiumBackend struct{ mode AlgoTag }

func (b dilithiumBackend) Verify(msg, sig, pub []byte) (bool, error) {
	switch b.mode {
	case AlgoDilithium2:
		if len(pub) != mode2.PublicKeySize {
			return false, newCoded(CodeInvalidSignature, "malformed dilithium2 public key")
		}
		if len(sig) != mode2.SignatureSize {
			return false, newCoded(CodeInvalidSignature, "malformed dilithium2 signature")
		}
		var pk mode2.PublicKey
		if err := pk.UnmarshalBinary(pub); err != nil {
			return false, newCoded(CodeInvalidSignature, "malformed dilithium2 public key")
		}
		return mode2.Verify(&pk, msg, sig), nil
	case AlgoDilithium3:
		if len(pub) != mode3.PublicKeySize {
			return false, newCoded(CodeInvalidSignature, "malformed dilithium3 public key")
		}
		if len(sig) != mode3.SignatureSize {
			return false, newCoded(CodeInvalidSignature, "malformed dilithium3 signature")
		}
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(pub); err != nil {
			return false, newCoded(CodeInvalidSignature, "malformed dilithium3 public key")
		}
		return mode3.Verify(&pk, msg, sig), nil
	case AlgoDilithium5:
		if len(pub) != mode5.PublicKeySize {
			return false, newCoded(CodeInvalidSignature, "malformed dilithium5 public key")
		}
		if len(sig) != mode5.SignatureSize {
			return false, newCoded(CodeInvalidSignature, "malformed dilithium5 signature")
		}
		var pk mode5.PublicKey
		if err := pk.UnmarshalBinary(pub); err != nil {
			return false, newCoded(CodeInvalidSignature, "malformed dilithium5 public key")
		}
		return mode5.Verify(&pk, msg, sig), nil
	default:
		return false, newCoded(CodeUnknownAlgorithm, string(b.mode))
	}
}

// Policy is the stateless, configurable signature allow-list. It holds
// no per-account state; Admits/Verify are pure functions of the
// registered backends.
type Policy struct {
	mu       sync.RWMutex
	backends map[AlgoTag]SigBackend
}

// NewDefaultPolicy returns a policy admitting only Dilithium-5.
// Falcon-1024 and SPHINCS+-SHA2-128s stay unregistered until a verifier
// backend exists for them; Allow extends the list at startup.
func NewDefaultPolicy() *Policy {
	p := &Policy{backends: map[AlgoTag]SigBackend{}}
	p.Allow(AlgoDilithium5, dilithiumBackend{mode: AlgoDilithium5})
	return p
}

// Allow registers (or replaces) the backend for an algorithm tag.
func (p *Policy) Allow(tag AlgoTag, b SigBackend) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.backends[normalizeAlgo(tag)] = b
}

func normalizeAlgo(tag AlgoTag) AlgoTag { return AlgoTag(strings.ToLower(string(tag))) }

// Admits reports whether tag would be accepted, without performing any
// cryptographic work.
func (p *Policy) Admits(tag AlgoTag) error {
	norm := normalizeAlgo(tag)
	if legacyAlgorithms[norm] {
		return newCoded(CodeLegacyAlgorithmRejected, string(norm))
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if _, ok := p.backends[norm]; !ok {
		return newCoded(CodeUnknownAlgorithm, string(norm))
	}
	return nil
}

// Verify checks sig over msg under the algorithm named by tag.
func (p *Policy) Verify(tag AlgoTag, msg, sig, pub []byte) (bool, error) {
	norm := normalizeAlgo(tag)
	if err := p.Admits(norm); err != nil {
		return false, err
	}
	p.mu.RLock()
	b := p.backends[norm]
	p.mu.RUnlock()
	return b.Verify(msg, sig, pub)
}
