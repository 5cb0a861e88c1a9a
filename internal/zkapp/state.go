// Package zkapp implements the account-update application state machine.
// The same step logic drives two executors: a concrete one that mutates a
// ledger mask, and a witness one that additionally records the field-element
// trace an external prover consumes.
package zkapp

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/minacore/ledger/internal/command"
	"github.com/minacore/ledger/internal/ledger"
	"github.com/minacore/ledger/internal/poseidon"
	"github.com/minacore/ledger/pkg/types"
)

// StackFrame is one level of the call-forest traversal: the token context
// plus the updates still to run at this level.
type StackFrame struct {
	Caller       types.TokenID
	CallerCaller types.TokenID
	Calls        command.CallForest
}

// DefaultFrame returns an empty frame in the default token context.
func DefaultFrame() *StackFrame {
	return &StackFrame{
		Caller:       types.DefaultTokenID(),
		CallerCaller: types.DefaultTokenID(),
		Calls:        nil,
	}
}

// Hash commits to the frame.
func (f *StackFrame) Hash() fr.Element {
	return poseidon.Hash(poseidon.TagStackFrameCons, f.Caller.F, f.CallerCaller.F, f.Calls.Hash())
}

// CallStack is a stack of suspended frames.
type CallStack []*StackFrame

// Push returns the stack with a frame on top.
func (s CallStack) Push(f *StackFrame) CallStack {
	out := make(CallStack, 0, len(s)+1)
	out = append(out, s...)
	return append(out, f)
}

// Pop splits the stack into its top frame (a default frame when empty) and
// the remainder.
func (s CallStack) Pop() (*StackFrame, CallStack) {
	if len(s) == 0 {
		return DefaultFrame(), nil
	}
	return s[len(s)-1], s[:len(s)-1]
}

// IsEmpty reports an empty stack.
func (s CallStack) IsEmpty() bool {
	return len(s) == 0
}

// LocalState is the execution thread of one block segment.
type LocalState struct {
	StackFrame                *StackFrame
	CallStack                 CallStack
	TransactionCommitment     fr.Element
	FullTransactionCommitment fr.Element

	// Excess is the default-token balance still owed within the current
	// command; it must settle to zero by the last update
	Excess         types.Signed
	SupplyIncrease types.Signed

	// Ledger is the mask the current command's updates write to
	Ledger *ledger.Mask

	Success            bool
	AccountUpdateIndex uint32
	FailureTable       *types.FailureTable
	WillSucceed        bool
}

// NewLocalState returns the pristine thread state.
func NewLocalState() *LocalState {
	return &LocalState{
		StackFrame:     DefaultFrame(),
		Excess:         types.SignedZero(),
		SupplyIncrease: types.SignedZero(),
		Success:        true,
		FailureTable:   types.NewFailureTable(0),
		WillSucceed:    true,
	}
}

// Checkpoint is a comparable snapshot of a local state, used to check that
// the concrete and witness executors stay in lockstep.
type Checkpoint struct {
	FrameHash                 fr.Element
	CallStackDepth            int
	TransactionCommitment     fr.Element
	FullTransactionCommitment fr.Element
	Excess                    types.Signed
	SupplyIncrease            types.Signed
	LedgerRoot                fr.Element
	Success                   bool
	AccountUpdateIndex        uint32
	WillSucceed               bool
}

// Checkpoint snapshots the state.
func (l *LocalState) Checkpoint() Checkpoint {
	cp := Checkpoint{
		FrameHash:                 l.StackFrame.Hash(),
		CallStackDepth:            len(l.CallStack),
		TransactionCommitment:     l.TransactionCommitment,
		FullTransactionCommitment: l.FullTransactionCommitment,
		Excess:                    l.Excess,
		SupplyIncrease:            l.SupplyIncrease,
		Success:                   l.Success,
		AccountUpdateIndex:        l.AccountUpdateIndex,
		WillSucceed:               l.WillSucceed,
	}
	if l.Ledger != nil {
		cp.LedgerRoot = l.Ledger.MerkleRoot()
	}
	return cp
}

// GlobalState is the block-wide application state.
type GlobalState struct {
	FirstPassLedger  *ledger.Mask
	SecondPassLedger *ledger.Mask
	FeeExcess        types.Signed
	SupplyIncrease   types.Signed
	ProtocolState    command.ProtocolStateView
	BlockGlobalSlot  types.Slot
}

// StartData carries what a new command brings into the thread.
type StartData struct {
	// AccountUpdates is the forest with the fee payer update at its head
	AccountUpdates command.CallForest
	MemoHash       fr.Element
	WillSucceed    bool
}

// IsStartKind resolves whether a step starts a new command.
type IsStartKind uint8

const (
	// StartNo continues the current command
	StartNo IsStartKind = iota

	// StartYes begins the given command; the thread must be idle
	StartYes

	// StartCompute begins the given command iff the thread is idle
	StartCompute
)

// IsStart pairs the kind with the start data it may consume.
type IsStart struct {
	Kind IsStartKind
	Data *StartData
}
