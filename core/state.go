package core

import "sync"

// account is the in-memory working copy of one address's balances and
// nonce. Zero balances are pruned so an account that has spent down to
// nothing does not leave a stray zero-value entry in the balance map.
type account struct {
	balances map[Denom]*Amount
	nonce    uint64
}

func balanceOf(a *account, denom Denom) *Amount {
	if v, ok := a.balances[denom]; ok {
		return v
	}
	return new(Amount)
}

func setBalance(a *account, denom Denom, amt *Amount) {
	if amt.IsZero() {
		delete(a.balances, denom)
		return
	}
	a.balances[denom] = amt
}

func cloneBalances(m map[Denom]*Amount) map[Denom]*Amount {
	out := make(map[Denom]*Amount, len(m))
	for d, a := range m {
		out[d] = cloneAmount(a)
	}
	return out
}

// AccountSnapshot is the durable view of one account handed to
// Storage.CommitBlock.
type AccountSnapshot struct {
	Balances map[Denom]*Amount
	Nonce    uint64
}

type acctSnap struct {
	balances map[Denom]*Amount
	nonce    uint64
}

// State is the authoritative in-memory ledger for the chain tip. It
// lazily materializes accounts from Storage and accumulates mutations in
// memory; nothing reaches disk until the producer flushes the dirty set
// through Storage.CommitBlock in the same atomic batch as the block and
// its receipts. A per-transfer write-through would break block
// atomicity.
type State struct {
	mu      sync.Mutex
	storage *Storage
	cache   map[Address]*account
	dirty   map[Address]bool
}

func NewState(storage *Storage) *State {
	return &State{storage: storage, cache: map[Address]*account{}, dirty: map[Address]bool{}}
}

// load must be called with s.mu held.
func (s *State) load(addr Address) (*account, error) {
	if a, ok := s.cache[addr]; ok {
		return a, nil
	}
	balances, nonce, err := s.storage.LoadAccount(addr)
	if err != nil {
		return nil, err
	}
	a := &account{balances: balances, nonce: nonce}
	s.cache[addr] = a
	return a, nil
}

func (s *State) markDirty(addr Address) { s.dirty[addr] = true }

func (s *State) BalanceOf(addr Address, denom Denom) (*Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.load(addr)
	if err != nil {
		return nil, err
	}
	return cloneAmount(balanceOf(a, denom)), nil
}

func (s *State) AllBalances(addr Address) (map[Denom]*Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.load(addr)
	if err != nil {
		return nil, err
	}
	return cloneBalances(a.balances), nil
}

func (s *State) NonceOf(addr Address) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.load(addr)
	if err != nil {
		return 0, err
	}
	return a.nonce, nil
}

// SnapshotNonce is a read-only alias used by mempool admission checks,
// named distinctly so the call site documents intent.
func (s *State) SnapshotNonce(addr Address) (uint64, error) { return s.NonceOf(addr) }

// Transfer moves value of denom from one account to another. Both
// accounts must already exist in the sense that loading them succeeds;
// a nonexistent account simply has a zero balance.
func (s *State) Transfer(from, to Address, denom Denom, value *Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fa, err := s.load(from)
	if err != nil {
		return err
	}
	ta, err := s.load(to)
	if err != nil {
		return err
	}
	have := balanceOf(fa, denom)
	if have.Cmp(value) < 0 {
		return ErrInsufficientBalance
	}
	newFrom := new(Amount)
	newFrom.Sub(have, value)
	setBalance(fa, denom, newFrom)
	s.markDirty(from)

	cur := balanceOf(ta, denom)
	setBalance(ta, denom, checkedAdd(cur, value))
	s.markDirty(to)
	return nil
}

// Debit removes amount of denom from addr's balance, used for fee
// escrow where there is no matching credit.
func (s *State) Debit(addr Address, denom Denom, amount *Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.load(addr)
	if err != nil {
		return err
	}
	have := balanceOf(a, denom)
	if have.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	newBal := new(Amount)
	newBal.Sub(have, amount)
	setBalance(a, denom, newBal)
	s.markDirty(addr)
	return nil
}

// Mint credits amount of denom to addr with no corresponding debit,
// used by the emission engine to pay block/staking rewards.
func (s *State) Mint(addr Address, denom Denom, amount *Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.load(addr)
	if err != nil {
		return err
	}
	cur := balanceOf(a, denom)
	setBalance(a, denom, checkedAdd(cur, amount))
	s.markDirty(addr)
	return nil
}

func (s *State) SetNonce(addr Address, nonce uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.load(addr)
	if err != nil {
		return err
	}
	a.nonce = nonce
	s.markDirty(addr)
	return nil
}

// snapshotAccounts captures the current balances/nonce of every address
// in addrs, for later restoration if a transaction's messages must be
// rolled back mid-execution.
func (s *State) snapshotAccounts(addrs map[Address]bool) map[Address]acctSnap {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Address]acctSnap, len(addrs))
	for addr := range addrs {
		a, err := s.load(addr)
		if err != nil {
			continue
		}
		out[addr] = acctSnap{balances: cloneBalances(a.balances), nonce: a.nonce}
	}
	return out
}

func (s *State) restoreAccounts(snap map[Address]acctSnap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for addr, sn := range snap {
		s.cache[addr] = &account{balances: sn.balances, nonce: sn.nonce}
	}
}

// DirtyAccounts returns a durable snapshot of every account touched
// since the last ClearDirty, for the producer to pass to
// Storage.CommitBlock.
func (s *State) DirtyAccounts() map[Address]AccountSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Address]AccountSnapshot, len(s.dirty))
	for addr := range s.dirty {
		a := s.cache[addr]
		if a == nil {
			continue
		}
		out[addr] = AccountSnapshot{Balances: cloneBalances(a.balances), Nonce: a.nonce}
	}
	return out
}

// ClearDirty marks the current dirty set as durably committed.
func (s *State) ClearDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = map[Address]bool{}
}

// DiscardDirty drops the in-memory speculative state for every dirty
// account, forcing the next access to reload from Storage. Used when a
// tick's block commit fails partway through.
func (s *State) DiscardDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for addr := range s.dirty {
		delete(s.cache, addr)
	}
	s.dirty = map[Address]bool{}
}
