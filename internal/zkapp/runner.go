package zkapp

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/minacore/ledger/internal/command"
	"github.com/minacore/ledger/pkg/types"
)

// GlobalCheckpoint is a comparable snapshot of the global state.
type GlobalCheckpoint struct {
	FirstPassRoot   fr.Element
	SecondPassRoot  fr.Element
	FeeExcess       types.Signed
	SupplyIncrease  types.Signed
	BlockGlobalSlot types.Slot
}

// Checkpoint snapshots the global state.
func (g *GlobalState) Checkpoint() GlobalCheckpoint {
	cp := GlobalCheckpoint{
		FeeExcess:       g.FeeExcess,
		SupplyIncrease:  g.SupplyIncrease,
		BlockGlobalSlot: g.BlockGlobalSlot,
	}
	if g.FirstPassLedger != nil {
		cp.FirstPassRoot = g.FirstPassLedger.MerkleRoot()
	}
	if g.SecondPassLedger != nil {
		cp.SecondPassRoot = g.SecondPassLedger.MerkleRoot()
	}
	return cp
}

// StatePair is a (global, local) snapshot.
type StatePair struct {
	Global GlobalCheckpoint
	Local  Checkpoint
}

// SegmentStates is what the driver materialises per proof segment: the
// states around it and the first-pass ledger root observed between segments
// of the same command.
type SegmentStates struct {
	Segment          command.Segment
	Before           StatePair
	After            StatePair
	ConnectingLedger fr.Element
}

// BuildStartData lowers a command into the thread's start data: the fee
// payer update consed onto the call forest, plus the memo hash.
func BuildStartData(cmd *command.ZkAppCommand, willSucceed bool) *StartData {
	fp := cmd.FeePayerUpdate()
	forest := append(command.CallForest{command.NewNode(fp, nil)}, cmd.AccountUpdates...)
	return &StartData{
		AccountUpdates: forest,
		MemoHash:       cmd.Memo.Hash(),
		WillSucceed:    willSucceed,
	}
}

// ApplySegments groups the commands into proof segments and replays them
// through the engine, materialising the per-segment state pairs. The
// returned failure table spans every applied update.
func ApplySegments(z Backend, global *GlobalState, cmds []*command.ZkAppCommand) ([]SegmentStates, *types.FailureTable, error) {
	segments := command.GroupCommands(cmds)
	local := NewLocalState()

	starts := make([]*StartData, len(cmds))
	for i, c := range cmds {
		starts[i] = BuildStartData(c, true)
	}

	var out []SegmentStates
	for _, seg := range segments {
		before := StatePair{Global: global.Checkpoint(), Local: local.Checkpoint()}
		connecting := fr.Element{}
		if global.FirstPassLedger != nil {
			connecting = global.FirstPassLedger.MerkleRoot()
		}
		for _, su := range seg.Updates {
			isStart := IsStart{Kind: StartNo}
			if su.IsStart {
				isStart = IsStart{Kind: StartCompute, Data: starts[su.CmdIndex]}
			}
			if err := Step(z, &StepParams{Global: global, Local: local, IsStart: isStart}); err != nil {
				return out, local.FailureTable, err
			}
		}
		out = append(out, SegmentStates{
			Segment:          seg,
			Before:           before,
			After:            StatePair{Global: global.Checkpoint(), Local: local.Checkpoint()},
			ConnectingLedger: connecting,
		})
	}
	return out, local.FailureTable, nil
}

// ApplyCommand replays a single command to completion against the global
// state.
func ApplyCommand(z Backend, global *GlobalState, cmd *command.ZkAppCommand) (*types.FailureTable, error) {
	_, table, err := ApplySegments(z, global, []*command.ZkAppCommand{cmd})
	return table, err
}
