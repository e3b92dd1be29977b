package core

import (
	"encoding/hex"
	"fmt"

	"github.com/holiman/uint256"
)

// Amount is a 128-bit-range unsigned integer backed by a 256-bit word
// for overflow headroom. It always serializes on the wire as a decimal
// string; arithmetic goes through checked or saturating operations,
// never silent wraparound.
type Amount = uint256.Int

// AmountFromUint64 builds an Amount from a native integer.
func AmountFromUint64(v uint64) *Amount { return new(Amount).SetUint64(v) }

// AmountFromDecimal parses a base-10 string with no sign and no exponent,
// matching the wire encoding used throughout the codec.
func AmountFromDecimal(s string) (*Amount, error) {
	if s == "" {
		return new(Amount), nil
	}
	z := new(Amount)
	if err := z.SetFromDecimal(s); err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	return z, nil
}

func cloneAmount(a *Amount) *Amount {
	if a == nil {
		return new(Amount)
	}
	return new(Amount).Set(a)
}

func maxAmount() *Amount {
	z := new(Amount)
	z.Not(z)
	return z
}

// checkedAdd returns a+b, saturating at the maximum representable value
// instead of wrapping.
func checkedAdd(a, b *Amount) *Amount {
	z := new(Amount)
	if _, overflow := z.AddOverflow(a, b); overflow {
		return maxAmount()
	}
	return z
}

// Address is an opaque, pre-formatted account identifier. Its concrete
// shape (sha3-derived, bech32, hex) is a presentation concern handled by
// the CLI/keygen path, not by core.
type Address string

// Denom is a token denomination tag.
type Denom string

// DefaultDenom is the chain's native fee/value denomination.
const DefaultDenom Denom = "udgt"

// RewardDenom is the denomination emission and staking rewards are paid
// in, distinct from the fee/value denomination.
const RewardDenom Denom = "udrt"

// Hash is a 32-byte digest, always hex-encoded on the wire.
type Hash [32]byte

func (h Hash) Hex() string    { return hex.EncodeToString(h[:]) }
func (h Hash) String() string { return h.Hex() }
func (h Hash) IsZero() bool   { return h == Hash{} }

// GenesisParentHash is the sentinel parent hash of the first produced
// block; no block with this hash is ever persisted as a real tip.
var GenesisParentHash = Hash{}

func hashFromHex(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("hash: %w", err)
	}
	if len(b) != 32 {
		return Hash{}, fmt.Errorf("hash: expected 32 bytes, got %d", len(b))
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

// MsgType tags the closed union of transaction message variants. Send is
// the only core-mandatory variant; the union is closed at parse time.
type MsgType string

const MsgSend MsgType = "send"

// Msg is implemented by every message variant admissible inside a
// Transaction. canonicalValue is unexported: only this package may
// define new variants, keeping the tagged union closed.
type Msg interface {
	Type() MsgType
	canonicalValue() map[string]interface{}
}

// SendMsg moves value from one account to another in a single denom.
type SendMsg struct {
	From   Address
	To     Address
	Denom  Denom
	Amount *Amount
}

func (m SendMsg) Type() MsgType { return MsgSend }

func (m SendMsg) canonicalValue() map[string]interface{} {
	amt := "0"
	if m.Amount != nil {
		amt = m.Amount.String()
	}
	return map[string]interface{}{
		"type":   string(MsgSend),
		"from":   string(m.From),
		"to":     string(m.To),
		"denom":  string(m.Denom),
		"amount": amt,
	}
}

// primarySend returns the first Send message in a transaction, used to
// populate the single-recipient receipt fields. Returns nil for a
// transaction with no Send message.
func primarySend(msgs []Msg) *SendMsg {
	for _, m := range msgs {
		if s, ok := m.(SendMsg); ok {
			return &s
		}
	}
	return nil
}

// Transaction is the unsigned canonical payload; its canonical JSON
// encoding is the exact preimage that gets hashed and signed.
type Transaction struct {
	ChainID string
	Nonce   uint64
	Msgs    []Msg
	Fee     *Amount
	Memo    string
}

// AlgoTag names a signature algorithm in the transaction envelope.
type AlgoTag string

// SignedTransaction is the wire envelope: canonical transaction fields
// plus the signature metadata that is never part of the signing preimage.
type SignedTransaction struct {
	Tx        Transaction
	Signature []byte
	PublicKey []byte
	Algorithm AlgoTag
	GasLimit  uint64
	GasPrice  uint64
}

// TxHash returns the canonical transaction hash (blake3 over canonical
// bytes), independent of the envelope's signature fields.
func (stx *SignedTransaction) TxHash() (Hash, error) { return TxHash(&stx.Tx) }

// ReceiptStatus is the lifecycle state of a submitted transaction.
type ReceiptStatus string

const (
	ReceiptPending ReceiptStatus = "pending"
	ReceiptSuccess ReceiptStatus = "success"
	ReceiptFailed  ReceiptStatus = "failed"
)

// Receipt records the outcome of executing one transaction. GasUsed is
// the intrinsic gas (gas_limit on out-of-gas, zero when execution stopped
// before fee escrow); an escrowed gas_limit*gas_price fee is charged in
// full and never refunded.
type Receipt struct {
	Version     int
	TxHash      Hash
	Status      ReceiptStatus
	BlockHeight *uint64
	Index       *int
	From        Address
	To          Address
	Amount      *Amount
	Fee         *Amount
	Nonce       uint64
	Error       string
	GasUsed     uint64
	GasLimit    uint64
	GasPrice    uint64
	Success     bool
}

// BlockHeader carries the fields that feed ComputeBlockHash.
type BlockHeader struct {
	Height     uint64
	ParentHash Hash
	Timestamp  int64
	ProducerID string
}

// Block is a committed batch of executed transactions. Txs holds only
// the transactions that executed successfully; failed ones are left out
// of Txs, and receipts (stored separately) record every outcome.
type Block struct {
	Header BlockHeader
	Txs    []*SignedTransaction
	Hash   Hash
}

// BlockView is the read-facing shape returned by the query facade,
// flattening BlockHeader into the wire block object.
type BlockView struct {
	Hash      Hash                 `json:"hash"`
	Height    uint64               `json:"height"`
	Parent    Hash                 `json:"parent"`
	Timestamp int64                `json:"timestamp"`
	Txs       []*SignedTransaction `json:"txs"`
}

func (b *Block) ToView() BlockView {
	return BlockView{
		Hash:      b.Hash,
		Height:    b.Header.Height,
		Parent:    b.Header.ParentHash,
		Timestamp: b.Header.Timestamp,
		Txs:       b.Txs,
	}
}
