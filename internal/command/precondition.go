package command

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/minacore/ledger/pkg/types"
)

// ClosedInterval is an inclusive numeric bound.
type ClosedInterval[T uint32 | uint64] struct {
	Lower T
	Upper T
}

// Contains reports lower <= v <= upper.
func (c ClosedInterval[T]) Contains(v T) bool {
	return c.Lower <= v && v <= c.Upper
}

// Numeric is a numeric precondition: absent means accept anything.
type Numeric[T uint32 | uint64] struct {
	Check    bool
	Interval ClosedInterval[T]
}

// AcceptNumeric accepts every value.
func AcceptNumeric[T uint32 | uint64]() Numeric[T] {
	return Numeric[T]{}
}

// Between bounds the value inclusively.
func Between[T uint32 | uint64](lo, hi T) Numeric[T] {
	return Numeric[T]{Check: true, Interval: ClosedInterval[T]{Lower: lo, Upper: hi}}
}

// Satisfied evaluates the precondition.
func (n Numeric[T]) Satisfied(v T) bool {
	return !n.Check || n.Interval.Contains(v)
}

// EqField is an equality precondition on a field element.
type EqField struct {
	Check bool
	Value fr.Element
}

// Satisfied evaluates the precondition.
func (e EqField) Satisfied(v fr.Element) bool {
	return !e.Check || e.Value.Equal(&v)
}

// EqBool is an equality precondition on a flag.
type EqBool struct {
	Check bool
	Value bool
}

// Satisfied evaluates the precondition.
func (e EqBool) Satisfied(v bool) bool {
	return !e.Check || e.Value == v
}

// EqKey is an equality precondition on a compressed key.
type EqKey struct {
	Check bool
	Value types.CompressedPubKey
}

// Satisfied evaluates the precondition.
func (e EqKey) Satisfied(v types.CompressedPubKey) bool {
	return !e.Check || e.Value.Equal(v)
}

// AccountPrecondition constrains the account an update runs against.
type AccountPrecondition struct {
	Balance          Numeric[uint64]
	Nonce            Numeric[uint32]
	ReceiptChainHash EqField
	Delegate         EqKey
	State            [8]EqField
	ActionState      EqField
	ProvedState      EqBool
	IsNew            EqBool
}

// AcceptAccount accepts any account.
func AcceptAccount() AccountPrecondition {
	return AccountPrecondition{}
}

// NonceExactly constrains only the nonce to one value.
func NonceExactly(n types.Nonce) AccountPrecondition {
	p := AcceptAccount()
	p.Nonce = Between(uint32(n), uint32(n))
	return p
}

// HasConstantNonce reports whether the nonce precondition pins a single
// value; replay protection relies on it.
func (p AccountPrecondition) HasConstantNonce() bool {
	return p.Nonce.Check && p.Nonce.Interval.Lower == p.Nonce.Interval.Upper
}

// EpochLedgerPrecondition constrains one epoch's ledger summary.
type EpochLedgerPrecondition struct {
	Hash          EqField
	TotalCurrency Numeric[uint64]
}

// EpochDataPrecondition constrains one epoch's data.
type EpochDataPrecondition struct {
	Ledger          EpochLedgerPrecondition
	Seed            EqField
	StartCheckpoint EqField
	LockCheckpoint  EqField
	EpochLength     Numeric[uint32]
}

// ProtocolStatePrecondition constrains the protocol-state view a command
// may run under.
type ProtocolStatePrecondition struct {
	SnarkedLedgerHash      EqField
	BlockchainLength       Numeric[uint32]
	MinWindowDensity       Numeric[uint32]
	TotalCurrency          Numeric[uint64]
	GlobalSlotSinceGenesis Numeric[uint32]
	StakingEpoch           EpochDataPrecondition
	NextEpoch              EpochDataPrecondition
}

// AcceptProtocolState accepts any protocol state.
func AcceptProtocolState() ProtocolStatePrecondition {
	return ProtocolStatePrecondition{}
}

// Preconditions bundles everything an update demands of its environment.
type Preconditions struct {
	Network    ProtocolStatePrecondition
	Account    AccountPrecondition
	ValidWhile Numeric[uint32]
}

// ProtocolStateView is the slice of protocol state the preconditions are
// evaluated against.
type ProtocolStateView struct {
	SnarkedLedgerHash      fr.Element
	BlockchainLength       types.Length
	MinWindowDensity       types.Length
	TotalCurrency          types.Amount
	GlobalSlotSinceGenesis types.Slot
	StakingEpoch           EpochDataView
	NextEpoch              EpochDataView
}

// EpochDataView is one epoch's data in the view.
type EpochDataView struct {
	LedgerHash          fr.Element
	LedgerTotalCurrency types.Amount
	Seed                fr.Element
	StartCheckpoint     fr.Element
	LockCheckpoint      fr.Element
	EpochLength         types.Length
}

// Satisfied evaluates the network precondition against a view.
func (p ProtocolStatePrecondition) Satisfied(v ProtocolStateView) bool {
	epochOK := func(pre EpochDataPrecondition, ev EpochDataView) bool {
		return pre.Ledger.Hash.Satisfied(ev.LedgerHash) &&
			pre.Ledger.TotalCurrency.Satisfied(uint64(ev.LedgerTotalCurrency)) &&
			pre.Seed.Satisfied(ev.Seed) &&
			pre.StartCheckpoint.Satisfied(ev.StartCheckpoint) &&
			pre.LockCheckpoint.Satisfied(ev.LockCheckpoint) &&
			pre.EpochLength.Satisfied(uint32(ev.EpochLength))
	}
	return p.SnarkedLedgerHash.Satisfied(v.SnarkedLedgerHash) &&
		p.BlockchainLength.Satisfied(uint32(v.BlockchainLength)) &&
		p.MinWindowDensity.Satisfied(uint32(v.MinWindowDensity)) &&
		p.TotalCurrency.Satisfied(uint64(v.TotalCurrency)) &&
		p.GlobalSlotSinceGenesis.Satisfied(uint32(v.GlobalSlotSinceGenesis)) &&
		epochOK(p.StakingEpoch, v.StakingEpoch) &&
		epochOK(p.NextEpoch, v.NextEpoch)
}
