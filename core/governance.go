package core

import (
	"strconv"
	"sync"
)

// Well-known governance parameter keys. This is the fixed set the read
// path resolves; parameter writes are performed by an external
// governance pipeline.
const (
	ParamGasBaseTransferCost = "gas.base_transfer_cost"
	ParamGasPerByteCost      = "gas.per_byte_cost"
	ParamMempoolMinGasPrice  = "mempool.min_gas_price"
	ParamProducerBlockMaxTx  = "producer.block_max_tx"
)

// ParamStore resolves governance-tunable parameters: an optional
// on-chain overlay (written by something outside this core) takes
// precedence over a compiled-in default for every known key.
type ParamStore struct {
	mu       sync.RWMutex
	storage  *Storage
	defaults map[string]string
}

func NewParamStore(storage *Storage) *ParamStore {
	return &ParamStore{
		storage: storage,
		defaults: map[string]string{
			ParamGasBaseTransferCost: "500",
			ParamGasPerByteCost:      "2",
			ParamMempoolMinGasPrice:  "1",
			ParamProducerBlockMaxTx:  "500",
		},
	}
}

// GetParam resolves key, reporting false only if key is unknown to both
// the overlay and the compiled-in defaults.
func (p *ParamStore) GetParam(key string) (string, bool) {
	if p.storage != nil {
		if v, err := p.storage.GetGovParam(key); err == nil {
			return v, true
		}
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.defaults[key]
	return v, ok
}

// GetOverride resolves key from the on-chain overlay only, ignoring the
// compiled-in defaults. Callers that carry their own configured value
// use this so a default never shadows explicit configuration.
func (p *ParamStore) GetOverride(key string) (string, bool) {
	if p.storage == nil {
		return "", false
	}
	v, err := p.storage.GetGovParam(key)
	if err != nil {
		return "", false
	}
	return v, true
}

func (p *ParamStore) GetOverrideUint64(key string) (uint64, bool) {
	v, ok := p.GetOverride(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (p *ParamStore) GetParamUint64(key string) (uint64, bool) {
	v, ok := p.GetParam(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// GasSchedule resolves a GasSchedule from the param store, falling back
// to DefaultGasSchedule's constants for anything unset.
func (p *ParamStore) GasSchedule() GasSchedule {
	sched := DefaultGasSchedule()
	if v, ok := p.GetParamUint64(ParamGasBaseTransferCost); ok {
		sched.BaseTransferCost = v
	}
	if v, ok := p.GetParamUint64(ParamGasPerByteCost); ok {
		sched.PerByteCost = v
	}
	return sched
}
