package core

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v2"
	"github.com/sirupsen/logrus"
)

// Storage is the badger-backed chain keyspace. Every block commit is
// one atomic batch covering the block, its receipts, and every touched
// account, so a crash mid-commit leaves the previous tip intact.
type Storage struct {
	db  *badger.DB
	log *logrus.Logger
}

// OpenStorage opens (creating if absent) the badger database rooted at
// dataDir.
func OpenStorage(dataDir string, log *logrus.Logger) (*Storage, error) {
	opts := badger.DefaultOptions(dataDir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", dataDir, err)
	}
	return &Storage{db: db, log: log}, nil
}

func (s *Storage) Close() error { return s.db.Close() }

// Key layout. Prefixes are chosen so ordered prefix scans (e.g. the
// legacy-balance migration sweep) stay cheap under badger's LSM ordering.
var (
	keyMetaHeight    = []byte("meta:height")
	keyMetaBestHash  = []byte("meta:best_hash")
	keyMetaChainID   = []byte("meta:chain_id")
	keyStakingTotal  = []byte("staking:total_stake")
	keyStakingIndex  = []byte("staking:reward_index")
	keyStakingPend   = []byte("staking:pending_emission")
	keyEmissionLastH = []byte("emission:last_accounted_height")

	legacyBalancePrefix = []byte("acct:bal:")
)

func keyBlockHash(h Hash) []byte { return append([]byte("blk:hash:"), h[:]...) }
func keyBlockNum(height uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, height)
	return append([]byte("blk:num:"), b...)
}
func keyTx(h Hash) []byte      { return append([]byte("tx:"), h[:]...) }
func keyReceipt(h Hash) []byte { return append([]byte("rcpt:"), h[:]...) }

func keyBalances(addr Address) []byte { return append([]byte("acct:balances:"), []byte(addr)...) }
func keyLegacyBalance(addr Address) []byte {
	return append(append([]byte(nil), legacyBalancePrefix...), []byte(addr)...)
}
func keyNonce(addr Address) []byte       { return append([]byte("acct:nonce:"), []byte(addr)...) }
func keyTotalSupply(denom Denom) []byte  { return append([]byte("supply:"), []byte(denom)...) }
func keyEmissionPool(pool string) []byte { return append([]byte("emission:pool:"), []byte(pool)...) }
func keyStakeOf(addr Address) []byte {
	return append([]byte("staking:delegator:stake:"), []byte(addr)...)
}
func keyDebtOf(addr Address) []byte {
	return append([]byte("staking:delegator:debt:"), []byte(addr)...)
}
func keyGovParam(k string) []byte { return append([]byte("gov:params:"), []byte(k)...) }

func txnGet(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var out []byte
	err = item.Value(func(val []byte) error {
		out = append([]byte(nil), val...)
		return nil
	})
	return out, err
}

func (s *Storage) get(key []byte) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		v, err := txnGet(txn, key)
		out = v
		return err
	})
	return out, err
}

func (s *Storage) put(key, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error { return txn.Set(key, value) })
}

// --- compact binary encoding for amounts/balances ---

func encodeAmount(a *Amount) []byte {
	b := a.Bytes32()
	return b[:]
}

func decodeAmount(data []byte) (*Amount, error) {
	if len(data) != 32 {
		return nil, ErrCorrupt
	}
	return new(Amount).SetBytes32(data), nil
}

func encodeBalances(m map[Denom]*Amount) ([]byte, error) {
	denoms := make([]string, 0, len(m))
	for d := range m {
		denoms = append(denoms, string(d))
	}
	sortStrings(denoms)
	buf := new(bytes.Buffer)
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(denoms)))
	buf.Write(n[:])
	for _, d := range denoms {
		db := []byte(d)
		var l [4]byte
		binary.BigEndian.PutUint32(l[:], uint32(len(db)))
		buf.Write(l[:])
		buf.Write(db)
		amt := m[Denom(d)].Bytes32()
		buf.Write(amt[:])
	}
	return buf.Bytes(), nil
}

func decodeBalances(data []byte) (map[Denom]*Amount, error) {
	if len(data) < 4 {
		return nil, ErrCorrupt
	}
	n := binary.BigEndian.Uint32(data[:4])
	data = data[4:]
	out := make(map[Denom]*Amount, n)
	for i := uint32(0); i < n; i++ {
		if len(data) < 4 {
			return nil, ErrCorrupt
		}
		l := binary.BigEndian.Uint32(data[:4])
		data = data[4:]
		if uint32(len(data)) < l+32 {
			return nil, ErrCorrupt
		}
		denom := Denom(data[:l])
		data = data[l:]
		amt := new(Amount).SetBytes32(data[:32])
		data = data[32:]
		out[denom] = amt
	}
	return out, nil
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// LoadAccount resolves an account's balances and nonce. If the
// multi-denom key is absent but a legacy single-denom key exists, the
// legacy value is synthesized into a one-entry balance map under the
// default denomination; the caller decides whether to persist that
// synthesis (see MigrateLegacyBalances for the explicit sweep).
func (s *Storage) LoadAccount(addr Address) (map[Denom]*Amount, uint64, error) {
	balBytes, err := s.get(keyBalances(addr))
	var balances map[Denom]*Amount
	switch {
	case err == nil:
		balances, err = decodeBalances(balBytes)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: balances for %s", ErrCorrupt, addr)
		}
	case errors.Is(err, ErrNotFound):
		legacy, lerr := s.get(keyLegacyBalance(addr))
		switch {
		case lerr == nil:
			amt, derr := decodeAmount(legacy)
			if derr != nil {
				return nil, 0, fmt.Errorf("%w: legacy balance for %s", ErrCorrupt, addr)
			}
			balances = map[Denom]*Amount{}
			if !amt.IsZero() {
				balances[DefaultDenom] = amt
			}
		case errors.Is(lerr, ErrNotFound):
			balances = map[Denom]*Amount{}
		default:
			return nil, 0, lerr
		}
	default:
		return nil, 0, err
	}

	nonceBytes, err := s.get(keyNonce(addr))
	var nonce uint64
	switch {
	case err == nil:
		if len(nonceBytes) != 8 {
			return nil, 0, fmt.Errorf("%w: nonce for %s", ErrCorrupt, addr)
		}
		nonce = binary.BigEndian.Uint64(nonceBytes)
	case errors.Is(err, ErrNotFound):
		nonce = 0
	default:
		return nil, 0, err
	}
	return balances, nonce, nil
}

// MigrateLegacyBalances is the explicit, idempotent one-way sweep that
// rewrites every remaining legacy single-denom balance into the
// multi-denom keyspace and deletes the legacy key. Normal operation
// migrates lazily on read and dual-writes on commit; this sweep is the
// operator-triggered cleanup and is never invoked implicitly.
func (s *Storage) MigrateLegacyBalances(ctx context.Context) (int, error) {
	count := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = legacyBalancePrefix
		it := txn.NewIterator(opts)
		var keys [][]byte
		for it.Seek(legacyBalancePrefix); it.ValidForPrefix(legacyBalancePrefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, k := range keys {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			addr := Address(bytes.TrimPrefix(k, legacyBalancePrefix))
			_, err := txnGet(txn, keyBalances(addr))
			if err != nil {
				if !errors.Is(err, ErrNotFound) {
					return err
				}
				legacyBytes, lerr := txnGet(txn, k)
				if lerr != nil {
					return lerr
				}
				amt, derr := decodeAmount(legacyBytes)
				if derr != nil {
					return fmt.Errorf("%w: legacy balance for %s", ErrCorrupt, addr)
				}
				balances := map[Denom]*Amount{}
				if !amt.IsZero() {
					balances[DefaultDenom] = amt
				}
				enc, eerr := encodeBalances(balances)
				if eerr != nil {
					return eerr
				}
				if err := txn.Set(keyBalances(addr), enc); err != nil {
					return err
				}
			}
			if err := txn.Delete(k); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}

// CommitBlock persists a block, its receipts (successful and failed
// alike), and every touched account in one atomic batch. A failure here
// leaves the previous tip intact; the caller is responsible for
// discarding its speculative in-memory state (State.DiscardDirty).
func (s *Storage) CommitBlock(block *Block, receipts []*Receipt, accounts map[Address]AccountSnapshot) error {
	return s.db.Update(func(txn *badger.Txn) error {
		blkBytes, err := json.Marshal(block)
		if err != nil {
			return err
		}
		if err := txn.Set(keyBlockHash(block.Hash), blkBytes); err != nil {
			return err
		}
		if err := txn.Set(keyBlockNum(block.Header.Height), block.Hash[:]); err != nil {
			return err
		}
		hb := make([]byte, 8)
		binary.BigEndian.PutUint64(hb, block.Header.Height)
		if err := txn.Set(keyMetaHeight, hb); err != nil {
			return err
		}
		if err := txn.Set(keyMetaBestHash, block.Hash[:]); err != nil {
			return err
		}
		for _, r := range receipts {
			rb, err := json.Marshal(r)
			if err != nil {
				return err
			}
			if err := txn.Set(keyReceipt(r.TxHash), rb); err != nil {
				return err
			}
		}
		for addr, acc := range accounts {
			enc, err := encodeBalances(acc.Balances)
			if err != nil {
				return err
			}
			if err := txn.Set(keyBalances(addr), enc); err != nil {
				return err
			}
			legacyAmt := acc.Balances[DefaultDenom]
			if legacyAmt == nil {
				legacyAmt = new(Amount)
			}
			if err := txn.Set(keyLegacyBalance(addr), encodeAmount(legacyAmt)); err != nil {
				return err
			}
			nb := make([]byte, 8)
			binary.BigEndian.PutUint64(nb, acc.Nonce)
			if err := txn.Set(keyNonce(addr), nb); err != nil {
				return err
			}
		}
		return nil
	})
}

// EnsureTxArchived writes the raw transaction record if it is not
// already present, so every produced block's transactions are
// retrievable by hash even when Submit was bypassed (e.g. in tests that
// feed the mempool directly).
func (s *Storage) EnsureTxArchived(stx *SignedTransaction, hash Hash) error {
	if _, err := s.get(keyTx(hash)); err == nil {
		return nil
	}
	b, err := json.Marshal(stx)
	if err != nil {
		return err
	}
	return s.put(keyTx(hash), b)
}

func (s *Storage) GetTx(hash Hash) (*SignedTransaction, error) {
	raw, err := s.get(keyTx(hash))
	if err != nil {
		return nil, err
	}
	var stx SignedTransaction
	if err := json.Unmarshal(raw, &stx); err != nil {
		return nil, fmt.Errorf("%w: tx %s", ErrCorrupt, hash.Hex())
	}
	return &stx, nil
}

// PutPendingTx archives a just-admitted transaction and its pending
// receipt, prior to any block including it.
func (s *Storage) PutPendingTx(stx *SignedTransaction, hash Hash, receipt *Receipt) error {
	return s.db.Update(func(txn *badger.Txn) error {
		txBytes, err := json.Marshal(stx)
		if err != nil {
			return err
		}
		if err := txn.Set(keyTx(hash), txBytes); err != nil {
			return err
		}
		rb, err := json.Marshal(receipt)
		if err != nil {
			return err
		}
		return txn.Set(keyReceipt(hash), rb)
	})
}

func (s *Storage) GetReceipt(hash Hash) (*Receipt, error) {
	raw, err := s.get(keyReceipt(hash))
	if err != nil {
		return nil, err
	}
	var r Receipt
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("%w: receipt %s", ErrCorrupt, hash.Hex())
	}
	return &r, nil
}

func (s *Storage) GetBlockByHash(h Hash) (*Block, error) {
	raw, err := s.get(keyBlockHash(h))
	if err != nil {
		return nil, err
	}
	var b Block
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("%w: block %s", ErrCorrupt, h.Hex())
	}
	return &b, nil
}

func (s *Storage) GetBlockByHeight(height uint64) (*Block, error) {
	raw, err := s.get(keyBlockNum(height))
	if err != nil {
		return nil, err
	}
	if len(raw) != 32 {
		return nil, ErrCorrupt
	}
	var h Hash
	copy(h[:], raw)
	return s.GetBlockByHash(h)
}

func (s *Storage) GetHeight() (uint64, error) {
	raw, err := s.get(keyMetaHeight)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if len(raw) != 8 {
		return 0, ErrCorrupt
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (s *Storage) GetBestHash() (Hash, error) {
	raw, err := s.get(keyMetaBestHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return GenesisParentHash, nil
		}
		return Hash{}, err
	}
	if len(raw) != 32 {
		return Hash{}, ErrCorrupt
	}
	var h Hash
	copy(h[:], raw)
	return h, nil
}

func (s *Storage) GetChainID() (string, error) {
	raw, err := s.get(keyMetaChainID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return string(raw), nil
}

// InitChainID enforces chain-id immutability: the first call persists the
// id; any later call with a different value is a configuration error.
func (s *Storage) InitChainID(chainID string) error {
	existing, err := s.GetChainID()
	if err != nil {
		return err
	}
	if existing == "" {
		return s.put(keyMetaChainID, []byte(chainID))
	}
	if existing != chainID {
		return newCoded(CodeChainIDMismatch, fmt.Sprintf("configured %q does not match stored %q", chainID, existing))
	}
	return nil
}

// --- amount-valued metadata helpers shared by emission/staking ---

func (s *Storage) getAmountOrZero(key []byte) (*Amount, error) {
	raw, err := s.get(key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return new(Amount), nil
		}
		return nil, err
	}
	return decodeAmount(raw)
}

func (s *Storage) setAmount(key []byte, amt *Amount) error { return s.put(key, encodeAmount(amt)) }

func (s *Storage) GetTotalSupply(denom Denom) (*Amount, error) {
	return s.getAmountOrZero(keyTotalSupply(denom))
}
func (s *Storage) AddTotalSupply(denom Denom, delta *Amount) error {
	cur, err := s.GetTotalSupply(denom)
	if err != nil {
		return err
	}
	return s.setAmount(keyTotalSupply(denom), checkedAdd(cur, delta))
}

func (s *Storage) GetEmissionPool(pool string) (*Amount, error) {
	return s.getAmountOrZero(keyEmissionPool(pool))
}
func (s *Storage) AddEmissionPool(pool string, delta *Amount) error {
	cur, err := s.GetEmissionPool(pool)
	if err != nil {
		return err
	}
	return s.setAmount(keyEmissionPool(pool), checkedAdd(cur, delta))
}

func (s *Storage) SetEmissionLastHeight(h uint64) error {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, h)
	return s.put(keyEmissionLastH, b)
}
func (s *Storage) GetEmissionLastHeight() (uint64, error) {
	raw, err := s.get(keyEmissionLastH)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if len(raw) != 8 {
		return 0, ErrCorrupt
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (s *Storage) GetStakingTotal() (*Amount, error)   { return s.getAmountOrZero(keyStakingTotal) }
func (s *Storage) SetStakingTotal(a *Amount) error     { return s.setAmount(keyStakingTotal, a) }
func (s *Storage) GetStakingIndex() (*Amount, error)   { return s.getAmountOrZero(keyStakingIndex) }
func (s *Storage) SetStakingIndex(a *Amount) error     { return s.setAmount(keyStakingIndex, a) }
func (s *Storage) GetStakingPending() (*Amount, error) { return s.getAmountOrZero(keyStakingPend) }
func (s *Storage) SetStakingPending(a *Amount) error   { return s.setAmount(keyStakingPend, a) }
func (s *Storage) GetDelegatorStake(addr Address) (*Amount, error) {
	return s.getAmountOrZero(keyStakeOf(addr))
}
func (s *Storage) SetDelegatorStake(addr Address, a *Amount) error {
	return s.setAmount(keyStakeOf(addr), a)
}
func (s *Storage) GetDelegatorDebt(addr Address) (*Amount, error) {
	return s.getAmountOrZero(keyDebtOf(addr))
}
func (s *Storage) SetDelegatorDebt(addr Address, a *Amount) error {
	return s.setAmount(keyDebtOf(addr), a)
}

func (s *Storage) GetGovParam(key string) (string, error) {
	raw, err := s.get(keyGovParam(key))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
func (s *Storage) SetGovParam(key, value string) error { return s.put(keyGovParam(key), []byte(value)) }
