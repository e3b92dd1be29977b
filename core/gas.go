package core

import "fmt"

// GasSchedule prices a transaction before execution. Costs key off
// transaction shape rather than VM opcodes; there is no contract
// execution on this chain.
type GasSchedule struct {
	BaseTransferCost     uint64
	PerByteCost          uint64
	PerAdditionalMsgCost uint64
}

func DefaultGasSchedule() GasSchedule {
	return GasSchedule{BaseTransferCost: 500, PerByteCost: 2, PerAdditionalMsgCost: 200}
}

// IntrinsicGas is the fixed cost of admitting tx's shape into a block,
// independent of whether its messages ultimately succeed.
func (g GasSchedule) IntrinsicGas(tx *Transaction) (uint64, error) {
	b, err := CanonicalBytes(tx)
	if err != nil {
		return 0, err
	}
	gas := g.BaseTransferCost + g.PerByteCost*uint64(len(b))
	if len(tx.Msgs) > 1 {
		gas += uint64(len(tx.Msgs)-1) * g.PerAdditionalMsgCost
	}
	return gas, nil
}

// Engine executes admitted transactions against State, producing a
// Receipt. It never refunds unspent gas: once escrowed, the full
// gas_limit*gas_price is never returned, regardless of outcome. The
// gas schedule is resolved from the governance parameter store at every
// execution entry, so a committed parameter change prices the very next
// transaction.
type Engine struct {
	params   *ParamStore
	feeDenom Denom
}

func NewEngine(params *ParamStore, feeDenom Denom) *Engine {
	if params == nil {
		params = NewParamStore(nil)
	}
	return &Engine{params: params, feeDenom: feeDenom}
}

type appliedTransfer struct {
	from, to Address
	denom    Denom
	amount   *Amount
}

// Execute runs the nonce/escrow/intrinsic-gas/apply protocol for one
// signed transaction. txHash must already be the canonical hash of
// stx.Tx (computed once by the caller so it can also key the receipt).
func (e *Engine) Execute(state *State, stx *SignedTransaction, txHash Hash) *Receipt {
	primary := primarySend(stx.Tx.Msgs)
	r := &Receipt{
		Version:  1,
		TxHash:   txHash,
		Nonce:    stx.Tx.Nonce,
		GasLimit: stx.GasLimit,
		GasPrice: stx.GasPrice,
		Fee:      cloneAmount(stx.Tx.Fee),
		Amount:   new(Amount),
	}
	var from Address
	if primary != nil {
		r.From = primary.From
		r.To = primary.To
		r.Amount = cloneAmount(primary.Amount)
		from = primary.From
	}

	fail := func(errMsg string, gasUsed uint64) *Receipt {
		r.Status = ReceiptFailed
		r.Success = false
		r.Error = errMsg
		r.GasUsed = gasUsed
		return r
	}

	// 1. nonce gate.
	curNonce, err := state.NonceOf(from)
	if err != nil {
		return fail(fmt.Sprintf("internal: %v", err), 0)
	}
	if curNonce != stx.Tx.Nonce {
		return fail(newNonceError(curNonce, stx.Tx.Nonce).Error(), 0)
	}

	// 2. fee escrow: gas_limit * gas_price, charged whole regardless of
	// what happens next. No state change occurs if this fails.
	upfront := new(Amount)
	if _, overflow := upfront.MulOverflow(AmountFromUint64(stx.GasLimit), AmountFromUint64(stx.GasPrice)); overflow {
		return fail(ErrGasOverflow.Error(), 0)
	}
	if err := state.Debit(from, e.feeDenom, upfront); err != nil {
		if err == ErrInsufficientBalance {
			return fail("insufficient_funds: fee escrow", 0)
		}
		return fail(fmt.Sprintf("internal: %v", err), 0)
	}

	// 3. nonce advances on any execution attempt past fee escrow,
	// success or failure.
	if err := state.SetNonce(from, curNonce+1); err != nil {
		return fail(fmt.Sprintf("internal: %v", err), 0)
	}

	// 4. intrinsic gas charge, priced by the current governance-resolved
	// schedule.
	intrinsic, err := e.params.GasSchedule().IntrinsicGas(&stx.Tx)
	if err != nil {
		return fail(fmt.Sprintf("internal: %v", err), 0)
	}
	if intrinsic > stx.GasLimit {
		return fail(ErrOutOfGas.Error(), stx.GasLimit)
	}

	// 5. apply messages; any failure reverts every transfer this
	// transaction performed (the already-escrowed fee is never reverted).
	touched := map[Address]bool{}
	for _, m := range stx.Tx.Msgs {
		if send, ok := m.(SendMsg); ok {
			touched[send.From] = true
			touched[send.To] = true
		}
	}
	snapshot := state.snapshotAccounts(touched)

	var execErr error
	for _, m := range stx.Tx.Msgs {
		send, ok := m.(SendMsg)
		if !ok {
			continue
		}
		if err := state.Transfer(send.From, send.To, send.Denom, send.Amount); err != nil {
			execErr = err
			break
		}
	}
	if execErr != nil {
		// snapshot was taken after the fee escrow and nonce advance, so
		// restoring it reverts only the message transfers, not the fee.
		state.restoreAccounts(snapshot)
		return fail(fmt.Sprintf("%s: %v", "insufficient_balance", execErr), intrinsic)
	}

	r.Status = ReceiptSuccess
	r.Success = true
	r.GasUsed = intrinsic
	return r
}
