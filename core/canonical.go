package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"lukechampine.com/blake3"
)

// canonicalValue builds the sorted-key, string-amount tree that is both
// the JSON wire shape and the exact hash/signature preimage.
// encoding/json sorts map[string]interface{} keys alphabetically at
// every nesting depth and emits no whitespace without an indent option,
// so a plain json.Marshal over this tree is already canonical — no
// hand-written sorted encoder is needed.
func (tx *Transaction) canonicalValue() map[string]interface{} {
	msgs := make([]interface{}, len(tx.Msgs))
	for i, m := range tx.Msgs {
		msgs[i] = m.canonicalValue()
	}
	fee := "0"
	if tx.Fee != nil {
		fee = tx.Fee.String()
	}
	return map[string]interface{}{
		"chain_id": tx.ChainID,
		"nonce":    tx.Nonce,
		"msgs":     msgs,
		"fee":      fee,
		"memo":     tx.Memo,
	}
}

// CanonicalBytes returns the canonical JSON preimage of tx.
func CanonicalBytes(tx *Transaction) ([]byte, error) {
	return json.Marshal(tx.canonicalValue())
}

// TxHash returns the blake3-256 digest of tx's canonical bytes.
func TxHash(tx *Transaction) (Hash, error) {
	b, err := CanonicalBytes(tx)
	if err != nil {
		return Hash{}, err
	}
	return blake3.Sum256(b), nil
}

// ComputeBlockHash hashes a block header together with its included
// transaction hashes, in order. This is an internal chain-hash, distinct
// from the JSON-based canonical transaction preimage above.
func ComputeBlockHash(h BlockHeader, txHashes []Hash) Hash {
	buf := make([]byte, 0, 24+len(h.ProducerID)+len(txHashes)*32)
	buf = appendUint64(buf, h.Height)
	buf = append(buf, h.ParentHash[:]...)
	buf = appendUint64(buf, uint64(h.Timestamp))
	buf = append(buf, []byte(h.ProducerID)...)
	for _, th := range txHashes {
		buf = append(buf, th[:]...)
	}
	return blake3.Sum256(buf)
}

func appendUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return append(buf, b[:]...)
}

// wireMsg mirrors one element of the envelope's "msgs" array closely
// enough to dispatch on "type" before building the real Msg value.
type wireMsg struct {
	Type   string `json:"type"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	Denom  string `json:"denom,omitempty"`
	Amount string `json:"amount,omitempty"`
}

// wireTransaction is the parse-side mirror of canonicalValue. Nonce is
// json.Number so large 64-bit values survive round-trip without the
// float64 precision loss a plain numeric field would suffer.
type wireTransaction struct {
	ChainID string      `json:"chain_id"`
	Nonce   json.Number `json:"nonce"`
	Msgs    []wireMsg   `json:"msgs"`
	Fee     string      `json:"fee"`
	Memo    string      `json:"memo"`
}

func (wt wireTransaction) toTransaction() (*Transaction, error) {
	nonce, err := strconv.ParseUint(wt.Nonce.String(), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("canonical: invalid nonce %q: %w", wt.Nonce, err)
	}
	fee, err := AmountFromDecimal(wt.Fee)
	if err != nil {
		return nil, fmt.Errorf("canonical: invalid fee: %w", err)
	}
	msgs := make([]Msg, len(wt.Msgs))
	for i, wm := range wt.Msgs {
		switch MsgType(strings.ToLower(wm.Type)) {
		case MsgSend:
			amt, err := AmountFromDecimal(wm.Amount)
			if err != nil {
				return nil, fmt.Errorf("canonical: invalid msg amount: %w", err)
			}
			msgs[i] = SendMsg{From: Address(wm.From), To: Address(wm.To), Denom: Denom(wm.Denom), Amount: amt}
		default:
			return nil, fmt.Errorf("canonical: unknown message type %q", wm.Type)
		}
	}
	return &Transaction{ChainID: wt.ChainID, Nonce: nonce, Msgs: msgs, Fee: fee, Memo: wt.Memo}, nil
}

// ParseCanonicalTransaction parses the canonical wire form produced by
// CanonicalBytes back into a Transaction.
func ParseCanonicalTransaction(data []byte) (*Transaction, error) {
	var wt wireTransaction
	if err := json.Unmarshal(data, &wt); err != nil {
		return nil, err
	}
	return wt.toTransaction()
}

func (tx Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(tx.canonicalValue())
}

func (tx *Transaction) UnmarshalJSON(data []byte) error {
	parsed, err := ParseCanonicalTransaction(data)
	if err != nil {
		return err
	}
	*tx = *parsed
	return nil
}

func (stx SignedTransaction) MarshalJSON() ([]byte, error) {
	v := stx.Tx.canonicalValue()
	v["signature"] = stx.Signature
	v["public_key"] = stx.PublicKey
	v["algorithm"] = string(stx.Algorithm)
	v["gas_limit"] = stx.GasLimit
	v["gas_price"] = stx.GasPrice
	return json.Marshal(v)
}

func (stx *SignedTransaction) UnmarshalJSON(data []byte) error {
	var wt wireTransaction
	if err := json.Unmarshal(data, &wt); err != nil {
		return err
	}
	tx, err := wt.toTransaction()
	if err != nil {
		return err
	}
	var extra struct {
		Signature []byte `json:"signature"`
		PublicKey []byte `json:"public_key"`
		Algorithm string `json:"algorithm"`
		GasLimit  uint64 `json:"gas_limit"`
		GasPrice  uint64 `json:"gas_price"`
	}
	if err := json.Unmarshal(data, &extra); err != nil {
		return err
	}
	stx.Tx = *tx
	stx.Signature = extra.Signature
	stx.PublicKey = extra.PublicKey
	stx.Algorithm = AlgoTag(extra.Algorithm)
	stx.GasLimit = extra.GasLimit
	stx.GasPrice = extra.GasPrice
	return nil
}

func (h Hash) MarshalJSON() ([]byte, error) { return json.Marshal(h.Hex()) }

func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := hashFromHex(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

type receiptWire struct {
	Version     int           `json:"version"`
	TxHash      Hash          `json:"tx_hash"`
	Status      ReceiptStatus `json:"status"`
	BlockHeight *uint64       `json:"block_height,omitempty"`
	Index       *int          `json:"index,omitempty"`
	From        Address       `json:"from"`
	To          Address       `json:"to"`
	Amount      string        `json:"amount"`
	Fee         string        `json:"fee"`
	Nonce       uint64        `json:"nonce"`
	Error       string        `json:"error,omitempty"`
	GasUsed     uint64        `json:"gas_used"`
	GasLimit    uint64        `json:"gas_limit"`
	GasPrice    uint64        `json:"gas_price"`
	Success     bool          `json:"success"`
}

func (r Receipt) MarshalJSON() ([]byte, error) {
	amt, fee := "0", "0"
	if r.Amount != nil {
		amt = r.Amount.String()
	}
	if r.Fee != nil {
		fee = r.Fee.String()
	}
	w := receiptWire{
		Version: r.Version, TxHash: r.TxHash, Status: r.Status,
		BlockHeight: r.BlockHeight, Index: r.Index,
		From: r.From, To: r.To, Amount: amt, Fee: fee, Nonce: r.Nonce,
		Error: r.Error, GasUsed: r.GasUsed, GasLimit: r.GasLimit, GasPrice: r.GasPrice,
		Success: r.Success,
	}
	return json.Marshal(w)
}

func (r *Receipt) UnmarshalJSON(data []byte) error {
	var w receiptWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	amt, err := AmountFromDecimal(w.Amount)
	if err != nil {
		return err
	}
	fee, err := AmountFromDecimal(w.Fee)
	if err != nil {
		return err
	}
	*r = Receipt{
		Version: w.Version, TxHash: w.TxHash, Status: w.Status,
		BlockHeight: w.BlockHeight, Index: w.Index,
		From: w.From, To: w.To, Amount: amt, Fee: fee, Nonce: w.Nonce,
		Error: w.Error, GasUsed: w.GasUsed, GasLimit: w.GasLimit, GasPrice: w.GasPrice,
		Success: w.Success,
	}
	return nil
}
