package account

import (
	"errors"
	"math/bits"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/minacore/ledger/pkg/types"
)

// Timing errors
var (
	ErrZeroVestingPeriod = errors.New("vesting period must be positive")
)

// Timing is an account's vesting schedule. The zero value is untimed.
type Timing struct {
	// IsTimed distinguishes Timed from Untimed
	IsTimed bool

	InitialMinimumBalance types.Balance
	CliffTime             types.Slot
	CliffAmount           types.Amount
	VestingPeriod         types.Slot
	VestingIncrement      types.Amount
}

// Untimed returns the untimed schedule.
func Untimed() Timing {
	return Timing{}
}

// Validate rejects timed schedules with a zero vesting period.
func (t Timing) Validate() error {
	if t.IsTimed && t.VestingPeriod == 0 {
		return ErrZeroVestingPeriod
	}
	return nil
}

// MinBalanceAt returns the minimum balance the schedule demands at a slot.
// Before the cliff the whole initial minimum is locked; afterwards the cliff
// amount unlocks at once and the increment unlocks every vesting period.
func (t Timing) MinBalanceAt(slot types.Slot) types.Balance {
	if !t.IsTimed {
		return 0
	}
	if slot < t.CliffTime {
		return t.InitialMinimumBalance
	}
	periods := uint64(slot-t.CliffTime) / uint64(t.VestingPeriod)
	hi, vested := bits.Mul64(periods, uint64(t.VestingIncrement))
	if hi != 0 {
		return 0
	}
	unlocked, carry := bits.Add64(uint64(t.CliffAmount), vested, 0)
	if carry != 0 {
		return 0
	}
	if unlocked >= uint64(t.InitialMinimumBalance) {
		return 0
	}
	return t.InitialMinimumBalance - types.Balance(unlocked)
}

// LockedTokens reports whether any balance is still locked at the slot.
func (t Timing) LockedTokens(slot types.Slot) bool {
	return t.MinBalanceAt(slot) > 0
}

// ToFields flattens the schedule for hashing as a flagged record.
func (t Timing) ToFields() []fr.Element {
	var out []fr.Element
	out = append(out, boolField(t.IsTimed))
	out = append(out, t.InitialMinimumBalance.ToField())
	var f fr.Element
	f.SetUint64(uint64(t.CliffTime))
	out = append(out, f)
	out = append(out, t.CliffAmount.ToField())
	f.SetUint64(uint64(t.VestingPeriod))
	out = append(out, f)
	out = append(out, t.VestingIncrement.ToField())
	return out
}
