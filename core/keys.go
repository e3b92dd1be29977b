package core

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/cloudflare/circl/sign/dilithium/mode5"
	"golang.org/x/crypto/sha3"
)

// AddressPrefix is prepended to every derived account address.
const AddressPrefix = "dgt"

// addressBytes is how much of the public-key digest survives truncation.
const addressBytes = 20

// AddressFromPublicKey derives the account address for a raw public key:
// prefix || hex(sha3-256(pub)[:20]). Core treats the result as opaque;
// only the keygen/signing path here ever looks inside it.
func AddressFromPublicKey(pub []byte) Address {
	sum := sha3.Sum256(pub)
	return Address(AddressPrefix + hex.EncodeToString(sum[:addressBytes]))
}

// Keypair is a Dilithium-5 signing identity, as produced by the CLI
// keygen command and by test fixtures.
type Keypair struct {
	pub  mode5.PublicKey
	priv mode5.PrivateKey
	addr Address
}

// GenerateKeypair creates a fresh Dilithium-5 keypair from the system
// entropy source.
func GenerateKeypair() (*Keypair, error) {
	pub, priv, err := mode5.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("keygen: %w", err)
	}
	kp := &Keypair{pub: *pub, priv: *priv}
	kp.addr = AddressFromPublicKey(kp.PublicKeyBytes())
	return kp, nil
}

// KeypairFromSeed derives a deterministic keypair; used by tests and by
// wallet recovery. The seed must be exactly mode5.SeedSize bytes.
func KeypairFromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != mode5.SeedSize {
		return nil, fmt.Errorf("keygen: seed must be %d bytes, got %d", mode5.SeedSize, len(seed))
	}
	var s [mode5.SeedSize]byte
	copy(s[:], seed)
	pub, priv := mode5.NewKeyFromSeed(&s)
	kp := &Keypair{pub: *pub, priv: *priv}
	kp.addr = AddressFromPublicKey(kp.PublicKeyBytes())
	return kp, nil
}

// KeypairFromPrivateKey reconstructs a keypair from a marshalled
// Dilithium-5 private key, as stored in CLI key files.
func KeypairFromPrivateKey(priv []byte) (*Keypair, error) {
	var sk mode5.PrivateKey
	if err := sk.UnmarshalBinary(priv); err != nil {
		return nil, fmt.Errorf("keygen: bad private key: %w", err)
	}
	kp := &Keypair{priv: sk}
	pk, ok := sk.Public().(*mode5.PublicKey)
	if !ok {
		return nil, fmt.Errorf("keygen: private key has no dilithium5 public half")
	}
	kp.pub = *pk
	kp.addr = AddressFromPublicKey(kp.PublicKeyBytes())
	return kp, nil
}

func (kp *Keypair) Address() Address { return kp.addr }

func (kp *Keypair) PublicKeyBytes() []byte {
	b, _ := kp.pub.MarshalBinary()
	return b
}

func (kp *Keypair) PrivateKeyBytes() []byte {
	b, _ := kp.priv.MarshalBinary()
	return b
}

// Sign produces a detached Dilithium-5 signature over msg.
func (kp *Keypair) Sign(msg []byte) []byte {
	sig := make([]byte, mode5.SignatureSize)
	mode5.SignTo(&kp.priv, msg, sig)
	return sig
}

// SignTransaction wraps tx in a signed envelope: the signature covers
// exactly the canonical preimage that TxHash digests.
func (kp *Keypair) SignTransaction(tx *Transaction, gasLimit, gasPrice uint64) (*SignedTransaction, error) {
	preimage, err := CanonicalBytes(tx)
	if err != nil {
		return nil, err
	}
	return &SignedTransaction{
		Tx:        *tx,
		Signature: kp.Sign(preimage),
		PublicKey: kp.PublicKeyBytes(),
		Algorithm: AlgoDilithium5,
		GasLimit:  gasLimit,
		GasPrice:  gasPrice,
	}, nil
}
