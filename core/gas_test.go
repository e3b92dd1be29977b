package core

import (
	"strings"
	"testing"
)

func newExecFixture(t *testing.T) (*Engine, *State) {
	t.Helper()
	storage := newTestStorage(t)
	state := NewState(storage)
	return NewEngine(NewParamStore(storage), DefaultDenom), state
}

func TestIntrinsicGasLinearInSize(t *testing.T) {
	sched := DefaultGasSchedule()
	tx := vectorTx()
	b, err := CanonicalBytes(tx)
	if err != nil {
		t.Fatalf("canonical bytes: %v", err)
	}
	got, err := sched.IntrinsicGas(tx)
	if err != nil {
		t.Fatalf("intrinsic gas: %v", err)
	}
	want := sched.BaseTransferCost + sched.PerByteCost*uint64(len(b))
	if got != want {
		t.Fatalf("intrinsic=%d want %d", got, want)
	}
}

func TestIntrinsicGasChargesAdditionalMessages(t *testing.T) {
	sched := DefaultGasSchedule()
	single := vectorTx()
	double := vectorTx()
	double.Msgs = append(double.Msgs, double.Msgs[0])

	g1, err := sched.IntrinsicGas(single)
	if err != nil {
		t.Fatalf("intrinsic single: %v", err)
	}
	g2, err := sched.IntrinsicGas(double)
	if err != nil {
		t.Fatalf("intrinsic double: %v", err)
	}
	b1, _ := CanonicalBytes(single)
	b2, _ := CanonicalBytes(double)
	sizeDelta := sched.PerByteCost * uint64(len(b2)-len(b1))
	if g2 != g1+sizeDelta+sched.PerAdditionalMsgCost {
		t.Fatalf("second message not charged: g1=%d g2=%d", g1, g2)
	}
}

func TestExecuteSuccessfulTransfer(t *testing.T) {
	engine, state := newExecFixture(t)
	kp := testKeypair(t, 1)
	to := Address("dgt1recipient")
	fund(t, state, kp.Address(), DefaultDenom, 100_000_000)

	stx := signedSend(t, kp, to, 0, DefaultDenom, 1_000_000, 25_000, 1_000)
	r := engine.Execute(state, stx, mustHash(t, &stx.Tx))

	if r.Status != ReceiptSuccess || !r.Success {
		t.Fatalf("status=%s err=%s", r.Status, r.Error)
	}
	// 100_000_000 - 25_000_000 escrow - 1_000_000 value.
	if got := balanceU64(t, state, kp.Address(), DefaultDenom); got != 74_000_000 {
		t.Fatalf("sender balance=%d want 74000000", got)
	}
	if got := balanceU64(t, state, to, DefaultDenom); got != 1_000_000 {
		t.Fatalf("recipient balance=%d want 1000000", got)
	}
	nonce, err := state.NonceOf(kp.Address())
	if err != nil {
		t.Fatalf("nonce: %v", err)
	}
	if nonce != 1 {
		t.Fatalf("nonce=%d want 1", nonce)
	}
	if r.GasUsed == 0 || r.GasUsed > stx.GasLimit {
		t.Fatalf("gas_used=%d out of range", r.GasUsed)
	}
}

func TestExecuteInsufficientEscrowNoStateChange(t *testing.T) {
	engine, state := newExecFixture(t)
	kp := testKeypair(t, 2)
	fund(t, state, kp.Address(), DefaultDenom, 1_000)

	stx := signedSend(t, kp, "dgt1recipient", 0, DefaultDenom, 100, 25_000, 1_000)
	r := engine.Execute(state, stx, mustHash(t, &stx.Tx))

	if r.Status != ReceiptFailed {
		t.Fatalf("status=%s want failed", r.Status)
	}
	if r.GasUsed != 0 {
		t.Fatalf("gas_used=%d want 0", r.GasUsed)
	}
	if got := balanceU64(t, state, kp.Address(), DefaultDenom); got != 1_000 {
		t.Fatalf("sender balance=%d want 1000 (unchanged)", got)
	}
	nonce, _ := state.NonceOf(kp.Address())
	if nonce != 0 {
		t.Fatalf("nonce advanced on escrow failure: %d", nonce)
	}
}

func TestExecuteNonceMismatchNoStateChange(t *testing.T) {
	engine, state := newExecFixture(t)
	kp := testKeypair(t, 3)
	fund(t, state, kp.Address(), DefaultDenom, 100_000_000)

	stx := signedSend(t, kp, "dgt1recipient", 7, DefaultDenom, 100, 25_000, 1_000)
	r := engine.Execute(state, stx, mustHash(t, &stx.Tx))

	if r.Status != ReceiptFailed || r.GasUsed != 0 {
		t.Fatalf("status=%s gas_used=%d", r.Status, r.GasUsed)
	}
	if got := balanceU64(t, state, kp.Address(), DefaultDenom); got != 100_000_000 {
		t.Fatalf("fee taken on nonce mismatch: balance=%d", got)
	}
}

func TestExecuteOutOfGasChargesFullEscrowAndAdvancesNonce(t *testing.T) {
	engine, state := newExecFixture(t)
	kp := testKeypair(t, 4)
	to := Address("dgt1recipient")
	fund(t, state, kp.Address(), DefaultDenom, 100_000_000)

	// gas_limit 100 is far below the ~500 base intrinsic cost.
	stx := signedSend(t, kp, to, 0, DefaultDenom, 1_000, 100, 1_000)
	r := engine.Execute(state, stx, mustHash(t, &stx.Tx))

	if r.Status != ReceiptFailed {
		t.Fatalf("status=%s want failed", r.Status)
	}
	if !strings.Contains(r.Error, "out of gas") {
		t.Fatalf("error=%q want out-of-gas", r.Error)
	}
	if got := balanceU64(t, state, kp.Address(), DefaultDenom); got != 100_000_000-100*1_000 {
		t.Fatalf("sender balance=%d want %d", got, 100_000_000-100*1_000)
	}
	if got := balanceU64(t, state, to, DefaultDenom); got != 0 {
		t.Fatalf("recipient credited on out-of-gas: %d", got)
	}
	nonce, _ := state.NonceOf(kp.Address())
	if nonce != 1 {
		t.Fatalf("nonce=%d want 1", nonce)
	}
}

func TestExecuteRevertsAllTransfersOnMidTxFailure(t *testing.T) {
	engine, state := newExecFixture(t)
	kp := testKeypair(t, 5)
	to := Address("dgt1recipient")
	fund(t, state, kp.Address(), DefaultDenom, 60_000_000)

	// Escrow 25_000_000 leaves 35_000_000; first send of 30_000_000
	// succeeds, second overdraws and must drag the first back with it.
	tx := &Transaction{
		ChainID: "dyt-test-1",
		Nonce:   0,
		Msgs: []Msg{
			SendMsg{From: kp.Address(), To: to, Denom: DefaultDenom, Amount: AmountFromUint64(30_000_000)},
			SendMsg{From: kp.Address(), To: to, Denom: DefaultDenom, Amount: AmountFromUint64(30_000_000)},
		},
		Fee: AmountFromUint64(25_000_000),
	}
	stx, err := kp.SignTransaction(tx, 25_000, 1_000)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	r := engine.Execute(state, stx, mustHash(t, &stx.Tx))

	if r.Status != ReceiptFailed {
		t.Fatalf("status=%s want failed", r.Status)
	}
	if got := balanceU64(t, state, kp.Address(), DefaultDenom); got != 35_000_000 {
		t.Fatalf("sender balance=%d want 35000000 (fee charged, transfers reverted)", got)
	}
	if got := balanceU64(t, state, to, DefaultDenom); got != 0 {
		t.Fatalf("recipient balance=%d want 0 after revert", got)
	}
	nonce, _ := state.NonceOf(kp.Address())
	if nonce != 1 {
		t.Fatalf("nonce=%d want 1", nonce)
	}
	if r.GasUsed == 0 {
		t.Fatalf("intrinsic gas not recorded on execution failure")
	}
}

func TestGasParamChangeAppliesToNextExecution(t *testing.T) {
	storage := newTestStorage(t)
	state := NewState(storage)
	engine := NewEngine(NewParamStore(storage), DefaultDenom)
	kp := testKeypair(t, 7)
	fund(t, state, kp.Address(), DefaultDenom, 1_000_000_000)

	stx := signedSend(t, kp, "dgt1peer", 0, DefaultDenom, 1_000, 25_000, 1_000)
	r := engine.Execute(state, stx, mustHash(t, &stx.Tx))
	if r.Status != ReceiptSuccess {
		t.Fatalf("status=%s err=%s before override", r.Status, r.Error)
	}

	// Commit a base-cost override above the gas limit; the very next
	// execution must price against it and run out of gas.
	if err := storage.SetGovParam(ParamGasBaseTransferCost, "1000000"); err != nil {
		t.Fatalf("set param: %v", err)
	}
	stx2 := signedSend(t, kp, "dgt1peer", 1, DefaultDenom, 1_000, 25_000, 1_000)
	r = engine.Execute(state, stx2, mustHash(t, &stx2.Tx))
	if r.Status != ReceiptFailed || !strings.Contains(r.Error, "out of gas") {
		t.Fatalf("override ignored: status=%s err=%q", r.Status, r.Error)
	}
}

func TestExecuteFeeInDifferentDenomThanValue(t *testing.T) {
	engine, state := newExecFixture(t)
	kp := testKeypair(t, 6)
	to := Address("dgt1recipient")
	fund(t, state, kp.Address(), DefaultDenom, 30_000_000) // fee denom
	fund(t, state, kp.Address(), "uatom", 5_000_000)       // value denom

	tx := &Transaction{
		ChainID: "dyt-test-1",
		Nonce:   0,
		Msgs:    []Msg{SendMsg{From: kp.Address(), To: to, Denom: "uatom", Amount: AmountFromUint64(2_000_000)}},
		Fee:     AmountFromUint64(25_000_000),
	}
	stx, err := kp.SignTransaction(tx, 25_000, 1_000)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	r := engine.Execute(state, stx, mustHash(t, &stx.Tx))

	if r.Status != ReceiptSuccess {
		t.Fatalf("status=%s err=%s", r.Status, r.Error)
	}
	if got := balanceU64(t, state, kp.Address(), DefaultDenom); got != 5_000_000 {
		t.Fatalf("fee-denom balance=%d want 5000000", got)
	}
	if got := balanceU64(t, state, kp.Address(), "uatom"); got != 3_000_000 {
		t.Fatalf("value-denom balance=%d want 3000000", got)
	}
	if got := balanceU64(t, state, to, "uatom"); got != 2_000_000 {
		t.Fatalf("recipient balance=%d want 2000000", got)
	}
}
