package staged

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/minacore/ledger/internal/account"
	"github.com/minacore/ledger/internal/command"
	"github.com/minacore/ledger/internal/ledger"
	"github.com/minacore/ledger/internal/poseidon"
	"github.com/minacore/ledger/internal/zkapp"
	"github.com/minacore/ledger/pkg/types"
)

// Driver errors
var (
	ErrHashMismatch    = errors.New("staged ledger hash does not match the block's declared hash")
	ErrUnknownParent   = errors.New("unknown parent staged ledger")
	ErrUnknownSnarked  = errors.New("unknown snarked ledger")
	ErrCommandRejected = errors.New("block carries an inapplicable command")
)

// StagedKey identifies a staged ledger by its snarked root and pending
// coinbase collection.
type StagedKey struct {
	SnarkRoot       [32]byte
	PendingCoinbase [32]byte
}

// KeyOf builds a StagedKey from the two hashes.
func KeyOf(snarkRoot, pendingCoinbase fr.Element) StagedKey {
	return StagedKey{SnarkRoot: snarkRoot.Bytes(), PendingCoinbase: pendingCoinbase.Bytes()}
}

// Block is the slice of a block the driver consumes.
type Block struct {
	StateHash                fr.Element
	ProtocolState            command.ProtocolStateView
	GlobalSlot               types.Slot
	PendingCoinbaseHash      fr.Element
	CoinbaseReceiver         types.CompressedPubKey
	CoinbaseAmount           types.Amount
	Commands                 []command.Transaction
	CompletedWork            int
	DeclaredStagedLedgerHash fr.Element
}

// Diff is what one block feeds into the scan state.
type Diff struct {
	StateHash     fr.Element
	Commands      []command.Transaction
	CompletedWork int
}

// StagedLedger is one entry of the staged set.
type StagedLedger struct {
	Mask            *ledger.Mask
	SnarkRoot       fr.Element
	PendingCoinbase fr.Element
}

// DiagnosticStore receives the dump written on a hash mismatch.
type DiagnosticStore interface {
	SaveDiagnostic(ctx context.Context, kind string, blob []byte) error
}

// Driver owns the snarked and staged ledger sets and applies blocks.
type Driver struct {
	mu       sync.Mutex
	registry *ledger.Registry
	scan     ScanState
	store    DiagnosticStore

	// verifier consumes the side-loaded proof statements the engine
	// captures per command
	verifier *zkapp.CircuitManager

	snarked map[[32]byte]*ledger.Mask
	staged  map[StagedKey]*StagedLedger
}

// NewDriver builds a driver over a genesis ledger.
func NewDriver(genesis *ledger.Mask, scan ScanState, store DiagnosticStore) *Driver {
	d := &Driver{
		registry: ledger.DefaultRegistry(),
		scan:     scan,
		store:    store,
		verifier: zkapp.NewCircuitManager(),
		snarked:  make(map[[32]byte]*ledger.Mask),
		staged:   make(map[StagedKey]*StagedLedger),
	}
	root := genesis.MerkleRoot()
	d.snarked[root.Bytes()] = genesis
	stagedMask := genesis.RegisterMask()
	d.staged[KeyOf(root, fr.Element{})] = &StagedLedger{
		Mask:      stagedMask,
		SnarkRoot: root,
	}
	return d
}

// StagedLedgerHash combines a mask root with the pending coinbase hash.
func StagedLedgerHash(root, pendingCoinbase fr.Element) fr.Element {
	return poseidon.Hash(poseidon.TagProtoStateBody, root, pendingCoinbase)
}

// Staged returns the staged ledger registered under a key.
func (d *Driver) Staged(key StagedKey) (*StagedLedger, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sl, ok := d.staged[key]
	return sl, ok
}

// Snarked returns the snarked ledger with the given root.
func (d *Driver) Snarked(root fr.Element) (*ledger.Mask, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.snarked[root.Bytes()]
	return m, ok
}

// ApplyBlock clones the parent staged mask, applies the block's commands and
// coinbase, absorbs the diff into the scan state, and checks the declared
// staged-ledger hash. On mismatch the mask is discarded, the apply context
// is dumped, and ErrHashMismatch is returned.
func (d *Driver) ApplyBlock(ctx context.Context, parent StagedKey, block *Block) (StagedKey, error) {
	d.mu.Lock()
	parentLedger, ok := d.staged[parent]
	d.mu.Unlock()
	if !ok {
		return StagedKey{}, ErrUnknownParent
	}

	mask := parentLedger.Mask.RegisterMask()
	if err := d.applyCommands(mask, block); err != nil {
		_ = mask.Unregister(ledger.UnregisterCheck)
		return StagedKey{}, fmt.Errorf("%w: %v", ErrCommandRejected, err)
	}

	diff := &Diff{
		StateHash:     block.StateHash,
		Commands:      block.Commands,
		CompletedWork: block.CompletedWork,
	}
	if err := d.scan.ApplyDiff(diff); err != nil {
		_ = mask.Unregister(ledger.UnregisterCheck)
		return StagedKey{}, err
	}

	computed := StagedLedgerHash(mask.MerkleRoot(), block.PendingCoinbaseHash)
	if !computed.Equal(&block.DeclaredStagedLedgerHash) {
		d.dumpMismatch(ctx, mask, block)
		_ = mask.Unregister(ledger.UnregisterCheck)
		return StagedKey{}, ErrHashMismatch
	}

	key := KeyOf(parentLedger.SnarkRoot, block.PendingCoinbaseHash)
	d.mu.Lock()
	d.staged[key] = &StagedLedger{
		Mask:            mask,
		SnarkRoot:       parentLedger.SnarkRoot,
		PendingCoinbase: block.PendingCoinbaseHash,
	}
	d.mu.Unlock()
	return key, nil
}

// applyCommands runs every command of the block, then the coinbase credit.
// Side-loaded proof statements captured by the engine go through the
// verifier before the command counts as applied.
func (d *Driver) applyCommands(mask *ledger.Mask, block *Block) error {
	for i, tx := range block.Commands {
		var err error
		if tx.IsZkapp() {
			backend := zkapp.NewConcreteBackend()
			global := &zkapp.GlobalState{
				FirstPassLedger:  mask,
				SecondPassLedger: mask,
				ProtocolState:    block.ProtocolState,
				BlockGlobalSlot:  block.GlobalSlot,
			}
			_, err = zkapp.ApplyCommand(backend, global, tx.Zkapp)
			if err == nil {
				err = d.verifier.VerifyStatements(backend.PendingProofs)
			}
		} else {
			err = ApplySignedCommand(mask, tx.Signed, block.GlobalSlot)
		}
		if err != nil {
			return fmt.Errorf("command %d: %w", i, err)
		}
	}
	return d.applyCoinbase(mask, block)
}

func (d *Driver) applyCoinbase(mask *ledger.Mask, block *Block) error {
	if block.CoinbaseAmount == 0 {
		return nil
	}
	id := types.NewAccountID(block.CoinbaseReceiver, types.DefaultTokenID())
	loc, ok := mask.LocationOfAccount(id)
	if ok {
		rcv := mask.GetAtIndex(loc).Clone()
		var okAdd bool
		rcv.Balance, okAdd = rcv.Balance.AddAmountChecked(block.CoinbaseAmount)
		if !okAdd {
			return ErrInsufficientFunds
		}
		return mask.SetAtIndex(loc, rcv)
	}
	amt, okSub := block.CoinbaseAmount.SubChecked(zkapp.AccountCreationFee)
	if !okSub {
		return fmt.Errorf("%w: coinbase below creation fee", ErrInsufficientFunds)
	}
	rcv := account.Initialize(id)
	rcv.Balance = types.Balance(amt)
	_, _, err := mask.GetOrCreateAccount(id, rcv)
	return err
}

// Commit advances the root: it reconstructs the new snarked ledger from the
// scan state when proofs moved it, drops every ledger not in the keep set,
// and folds the surviving staged ledger's mask chain down to the new root.
func (d *Driver) Commit(newRoot StagedKey, bestTip StagedKey, keep map[StagedKey]struct{}) error {
	d.mu.Lock()
	target, ok := d.staged[newRoot]
	d.mu.Unlock()
	if !ok {
		return ErrUnknownParent
	}

	// Reconstruct the snarked ledger implied by the proofs applied since
	// the previous root.
	parts, err := d.scan.GetSnarkedLedgerSync()
	if err != nil {
		return err
	}
	if len(parts.ProvedTransactions) > 0 {
		base, ok := d.Snarked(target.SnarkRoot)
		if !ok {
			return ErrUnknownSnarked
		}
		reconstructed, err := ReplayTransactions(base, parts.ProvedTransactions)
		if err != nil {
			return err
		}
		newSnarkRoot := reconstructed.MerkleRoot()
		d.mu.Lock()
		d.snarked[newSnarkRoot.Bytes()] = reconstructed
		d.mu.Unlock()
		d.saveCheckpoint(newSnarkRoot, reconstructed)
	}

	// Drop everything outside the keep set. A mask that is still an
	// ancestor of a kept one only leaves the map here; the fold below
	// consumes it.
	d.mu.Lock()
	var keptMasks []*ledger.Mask
	for key, sl := range d.staged {
		if key == newRoot || key == bestTip {
			keptMasks = append(keptMasks, sl.Mask)
			continue
		}
		if _, kept := keep[key]; kept {
			keptMasks = append(keptMasks, sl.Mask)
		}
	}
	isAncestorOfKept := func(m *ledger.Mask) bool {
		for _, kept := range keptMasks {
			for p := kept; p != nil; p = p.Parent() {
				if p == m {
					return true
				}
			}
		}
		return false
	}
	for key, sl := range d.staged {
		if key == newRoot || key == bestTip {
			continue
		}
		if _, kept := keep[key]; kept {
			continue
		}
		delete(d.staged, key)
		if !isAncestorOfKept(sl.Mask) {
			_ = sl.Mask.Unregister(ledger.UnregisterRecursive)
		}
	}
	d.mu.Unlock()

	// Fold the new root's mask chain: commit each ancestor into its own
	// parent until the chain bottoms out at the root store.
	for {
		p := target.Mask.Parent()
		if p == nil || p.Parent() == nil {
			break
		}
		if err := p.Commit(); err != nil {
			return err
		}
		if err := p.Unregister(ledger.UnregisterReparent); err != nil {
			return err
		}
	}
	return nil
}

// ReplayTransactions applies transactions onto a fresh child of base and
// returns the child mask.
func ReplayTransactions(base *ledger.Mask, txs []command.Transaction) (*ledger.Mask, error) {
	mask := base.RegisterMask()
	for i, tx := range txs {
		var err error
		if tx.IsZkapp() {
			backend := zkapp.NewConcreteBackend()
			global := &zkapp.GlobalState{
				FirstPassLedger:  mask,
				SecondPassLedger: mask,
			}
			_, err = zkapp.ApplyCommand(backend, global, tx.Zkapp)
		} else {
			err = ApplySignedCommand(mask, tx.Signed, 0)
		}
		if err != nil {
			_ = mask.Unregister(ledger.UnregisterCheck)
			return nil, fmt.Errorf("replay %d: %w", i, err)
		}
	}
	return mask, nil
}

// Reconstruction is an in-progress snarked-ledger rebuild running on a
// worker goroutine. Cancellation is cooperative: cancelling the context
// drops the callback.
type Reconstruction struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// StartReconstruction replays parts onto base off the driver goroutine and
// delivers the result through the callback unless cancelled.
func StartReconstruction(ctx context.Context, base *ledger.Mask, parts *SnarkedLedgerParts, callback func(*ledger.Mask, error)) *Reconstruction {
	ctx, cancel := context.WithCancel(ctx)
	r := &Reconstruction{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(r.done)
		mask, err := ReplayTransactions(base, parts.ProvedTransactions)
		select {
		case <-ctx.Done():
			if mask != nil {
				_ = mask.Unregister(ledger.UnregisterCheck)
			}
		default:
			callback(mask, err)
		}
	}()
	return r
}

// Cancel stops the reconstruction's delivery.
func (r *Reconstruction) Cancel() {
	r.cancel()
}

// Wait blocks until the worker finished.
func (r *Reconstruction) Wait() {
	<-r.done
}
