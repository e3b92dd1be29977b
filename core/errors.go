package core

import (
	"errors"
	"fmt"
)

// ErrorCode is the machine-readable discriminator carried by every
// client-visible validation error. RPC adapters translate these
// directly into wire error codes; never into HTTP status alone.
type ErrorCode string

const (
	CodeInvalidNonce            ErrorCode = "invalid_nonce"
	CodeInsufficientFunds       ErrorCode = "insufficient_funds"
	CodeDuplicateTx             ErrorCode = "duplicate_tx"
	CodeMempoolFull             ErrorCode = "mempool_full"
	CodeInvalidSignature        ErrorCode = "invalid_signature"
	CodeUnderpricedGas          ErrorCode = "underpriced_gas"
	CodeOversizedTx             ErrorCode = "oversized_tx"
	CodeUnknownAlgorithm        ErrorCode = "unknown_algorithm"
	CodeLegacyAlgorithmRejected ErrorCode = "legacy_algorithm_rejected"
	CodeChainIDMismatch         ErrorCode = "chain_id_mismatch"
	CodeInternal                ErrorCode = "internal"
)

// CodedError is a validation error caught at the submission boundary.
// It is never returned after admission succeeds; post-admission
// failures are recorded as a failed Receipt instead.
type CodedError struct {
	Code     ErrorCode
	Message  string
	Expected *uint64
	Got      *uint64
}

func (e *CodedError) Error() string {
	if e.Expected != nil && e.Got != nil {
		return fmt.Sprintf("%s: %s (expected %d, got %d)", e.Code, e.Message, *e.Expected, *e.Got)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is allows errors.Is(err, SomeCodedError) style matching purely on code,
// so callers can check e.g. errors.Is(err, &CodedError{Code: CodeDuplicateTx}).
func (e *CodedError) Is(target error) bool {
	var other *CodedError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

func newCoded(code ErrorCode, msg string) error {
	return &CodedError{Code: code, Message: msg}
}

func newNonceError(expected, got uint64) error {
	return &CodedError{Code: CodeInvalidNonce, Message: "nonce mismatch", Expected: &expected, Got: &got}
}

func newNonceGapError(expected, got uint64) error {
	return &CodedError{Code: CodeInvalidNonce, Message: "nonce gap", Expected: &expected, Got: &got}
}

// Execution-failure sentinels. These never escape the Execute call,
// they are folded into a failed Receipt's Error field, but are exposed
// so callers can classify a returned error from lower-level
// State/Storage calls.
var (
	ErrInsufficientBalance = errors.New("state: insufficient balance")
	ErrOutOfGas            = errors.New("execution: out of gas")
	ErrGasOverflow         = errors.New("execution: gas_limit*gas_price overflow")

	ErrNotFound = errors.New("storage: not found")
	ErrCorrupt  = errors.New("storage: corrupt value")
)
