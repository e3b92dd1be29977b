package core

import "sync"

// EmissionScheduleKind selects one of the three supported per-block
// issuance modes.
type EmissionScheduleKind string

const (
	ScheduleStatic     EmissionScheduleKind = "static"
	SchedulePhased     EmissionScheduleKind = "phased"
	SchedulePercentage EmissionScheduleKind = "percentage"
)

// EmissionPhase is one entry of a Phased schedule; EndHeight nil means
// the phase runs to the chain's tip.
type EmissionPhase struct {
	StartHeight    uint64
	EndHeight      *uint64
	PerBlockAmount *Amount
}

// EmissionSchedule describes how much total reward is minted at a given
// height.
type EmissionSchedule struct {
	Kind           EmissionScheduleKind
	StaticPerBlock *Amount
	Phases         []EmissionPhase
	AnnualRateBps  uint64
	GenesisAmount  *Amount
}

// blocksPerYear approximates a 5-second block interval; only the
// Percentage schedule uses it, as a coarse inflation-rate derivation.
const blocksPerYear = 6_311_520

// PerBlock returns the total reward to mint at height, given the
// current total supply (only consulted by the Percentage schedule).
func (s EmissionSchedule) PerBlock(height uint64, totalSupply *Amount) *Amount {
	switch s.Kind {
	case ScheduleStatic:
		return cloneAmount(s.StaticPerBlock)
	case SchedulePhased:
		for _, ph := range s.Phases {
			if height < ph.StartHeight {
				continue
			}
			if ph.EndHeight != nil && height > *ph.EndHeight {
				continue
			}
			return cloneAmount(ph.PerBlockAmount)
		}
		return new(Amount)
	case SchedulePercentage:
		if totalSupply == nil || totalSupply.IsZero() {
			return cloneAmount(s.GenesisAmount)
		}
		num := new(Amount).Mul(totalSupply, AmountFromUint64(s.AnnualRateBps))
		den := AmountFromUint64(10_000 * blocksPerYear)
		return new(Amount).Div(num, den)
	default:
		return new(Amount)
	}
}

// EmissionBreakdown splits a block's total reward across named pools.
// Percentages must sum to <= 100; the remainder after staking/AI/bridge
// shares always lands in block_rewards so nothing is lost to rounding.
type EmissionBreakdown struct {
	StakingRewardsPct uint64
	AIIncentivesPct   uint64
	BridgeOpsPct      uint64
}

func DefaultEmissionBreakdown() EmissionBreakdown {
	return EmissionBreakdown{StakingRewardsPct: 25, AIIncentivesPct: 10, BridgeOpsPct: 5}
}

func pctOf(total *Amount, p uint64) *Amount {
	z := new(Amount).Mul(total, AmountFromUint64(p))
	return z.Div(z, AmountFromUint64(100))
}

func splitByPercent(total *Amount, b EmissionBreakdown) map[string]*Amount {
	staking := pctOf(total, b.StakingRewardsPct)
	ai := pctOf(total, b.AIIncentivesPct)
	bridge := pctOf(total, b.BridgeOpsPct)
	spent := checkedAdd(checkedAdd(staking, ai), bridge)
	blockRewards := new(Amount)
	if total.Cmp(spent) >= 0 {
		blockRewards.Sub(total, spent)
	}
	return map[string]*Amount{
		"block_rewards":   blockRewards,
		"staking_rewards": staking,
		"ai_incentives":   ai,
		"bridge_ops":      bridge,
	}
}

// rewardIndexScale is the fixed-point scale for the staking reward-per-
// stake index, giving headroom for small per-block reward/total-stake
// ratios without losing precision to integer division.
const rewardIndexScale = 1_000_000_000_000

// EmissionEngine runs the per-block issuance schedule and the
// accumulator-based staking reward accrual:
// a reward-per-stake index that only advances, plus a per-delegator
// "debt" snapshot of the index at their last claim.
type EmissionEngine struct {
	mu          sync.Mutex
	storage     *Storage
	state       *State
	schedule    EmissionSchedule
	breakdown   EmissionBreakdown
	rewardDenom Denom
}

func NewEmissionEngine(storage *Storage, state *State, schedule EmissionSchedule, breakdown EmissionBreakdown, rewardDenom Denom) *EmissionEngine {
	return &EmissionEngine{storage: storage, state: state, schedule: schedule, breakdown: breakdown, rewardDenom: rewardDenom}
}

// Tick runs issuance for height; it must be called exactly once per
// committed block, after the block's own transactions are applied.
func (e *EmissionEngine) Tick(height uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	totalSupply, err := e.storage.GetTotalSupply(e.rewardDenom)
	if err != nil {
		return err
	}
	total := e.schedule.PerBlock(height, totalSupply)
	if total.IsZero() {
		return e.storage.SetEmissionLastHeight(height)
	}

	shares := splitByPercent(total, e.breakdown)
	for pool, amt := range shares {
		if err := e.storage.AddEmissionPool(pool, amt); err != nil {
			return err
		}
	}
	if err := e.storage.AddTotalSupply(e.rewardDenom, total); err != nil {
		return err
	}
	if err := e.accrueStakingLocked(shares["staking_rewards"]); err != nil {
		return err
	}
	return e.storage.SetEmissionLastHeight(height)
}

// accrueStakingLocked folds amount into the staking reward index. If
// total stake is currently zero, the amount is parked in a pending pool
// instead of being divided by zero; it is distributed in full the
// moment total stake next becomes nonzero (SetTotalStake).
func (e *EmissionEngine) accrueStakingLocked(amount *Amount) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	total, err := e.storage.GetStakingTotal()
	if err != nil {
		return err
	}
	if total.IsZero() {
		pending, err := e.storage.GetStakingPending()
		if err != nil {
			return err
		}
		return e.storage.SetStakingPending(checkedAdd(pending, amount))
	}
	return e.foldIntoIndexLocked(amount, total)
}

func (e *EmissionEngine) foldIntoIndexLocked(amount, total *Amount) error {
	pending, err := e.storage.GetStakingPending()
	if err != nil {
		return err
	}
	index, err := e.storage.GetStakingIndex()
	if err != nil {
		return err
	}
	effective := checkedAdd(amount, pending)
	delta := new(Amount).Mul(effective, AmountFromUint64(rewardIndexScale))
	delta.Div(delta, total)
	if err := e.storage.SetStakingIndex(checkedAdd(index, delta)); err != nil {
		return err
	}
	return e.storage.SetStakingPending(new(Amount))
}

// SetTotalStake updates the chain's total delegated stake. If it
// crosses from zero to a positive value while pending emission is
// outstanding, the full pending amount is folded into the index in the
// same call.
func (e *EmissionEngine) SetTotalStake(newTotal *Amount) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	old, err := e.storage.GetStakingTotal()
	if err != nil {
		return err
	}
	if err := e.storage.SetStakingTotal(newTotal); err != nil {
		return err
	}
	if old.IsZero() && !newTotal.IsZero() {
		pending, err := e.storage.GetStakingPending()
		if err != nil {
			return err
		}
		if !pending.IsZero() {
			return e.foldIntoIndexLocked(new(Amount), newTotal)
		}
	}
	return nil
}

func (e *EmissionEngine) SetDelegatorStake(delegator Address, stake *Amount) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.storage.SetDelegatorStake(delegator, stake)
}

// Claim pays out delegator's accrued staking reward, minting it to
// their RewardDenom balance and resetting their debt to the current
// index. A second claim with no intervening emission returns a zero
// Amount, not an error.
func (e *EmissionEngine) Claim(delegator Address) (*Amount, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	stake, err := e.storage.GetDelegatorStake(delegator)
	if err != nil {
		return nil, err
	}
	debt, err := e.storage.GetDelegatorDebt(delegator)
	if err != nil {
		return nil, err
	}
	index, err := e.storage.GetStakingIndex()
	if err != nil {
		return nil, err
	}

	diff := new(Amount)
	if index.Cmp(debt) > 0 {
		diff.Sub(index, debt)
	}
	accrued := new(Amount).Mul(stake, diff)
	accrued.Div(accrued, AmountFromUint64(rewardIndexScale))

	if err := e.storage.SetDelegatorDebt(delegator, index); err != nil {
		return nil, err
	}
	if accrued.IsZero() {
		return accrued, nil
	}
	if err := e.state.Mint(delegator, e.rewardDenom, accrued); err != nil {
		return nil, err
	}
	return accrued, nil
}
