package zkapp

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/minacore/ledger/internal/account"
	"github.com/minacore/ledger/internal/command"
	"github.com/minacore/ledger/internal/ledger"
	"github.com/minacore/ledger/internal/signer"
	"github.com/minacore/ledger/pkg/types"
)

const testDepth = 8

// testWorld is a funded ledger plus the keys behind its accounts.
type testWorld struct {
	mask *ledger.Mask
	keys []*signer.PrivateKey
	ids  []types.AccountID
}

func newWorld(t *testing.T, seed int64, n int) *testWorld {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	w := &testWorld{mask: ledger.NewRoot(testDepth, ledger.NewRegistry())}
	for i := 0; i < n; i++ {
		key, err := signer.GeneratePrivateKey(rng)
		if err != nil {
			t.Fatal(err)
		}
		id := types.NewAccountID(key.PublicKey(), types.DefaultTokenID())
		acct := account.Initialize(id)
		acct.Balance = 1 << 50
		if _, _, err := w.mask.GetOrCreateAccount(id, acct); err != nil {
			t.Fatal(err)
		}
		w.keys = append(w.keys, key)
		w.ids = append(w.ids, id)
	}
	return w
}

func (w *testWorld) global(slot types.Slot) *GlobalState {
	return &GlobalState{
		FirstPassLedger:  w.mask,
		SecondPassLedger: w.mask,
		BlockGlobalSlot:  slot,
	}
}

func (w *testWorld) balanceOf(t *testing.T, i int) types.Balance {
	t.Helper()
	loc, ok := w.mask.LocationOfAccount(w.ids[i])
	if !ok {
		t.Fatal("account vanished")
	}
	return w.mask.GetAtIndex(loc).Balance
}

// buildTransfer builds fee payer = keys[0], debit on keys[1], credit on
// keys[2], all bodies first, signatures last.
func buildTransfer(w *testWorld, fee types.Fee, amount types.Amount, mutate func(*command.ZkAppCommand)) *command.ZkAppCommand {
	debit := command.Body{
		PublicKey:         w.ids[1].PublicKey,
		TokenID:           types.DefaultTokenID(),
		BalanceChange:     types.SignedOf(amount).Negate(),
		UseFullCommitment: true,
		Preconditions: command.Preconditions{
			Network: command.AcceptProtocolState(),
			Account: command.AcceptAccount(),
		},
		AuthorizationKind: command.AuthKindSignature,
	}
	credit := command.Body{
		PublicKey:         w.ids[2].PublicKey,
		TokenID:           types.DefaultTokenID(),
		BalanceChange:     types.SignedOf(amount),
		UseFullCommitment: true,
		Preconditions: command.Preconditions{
			Network: command.AcceptProtocolState(),
			Account: command.AcceptAccount(),
		},
		AuthorizationKind: command.AuthKindNoneGiven,
	}
	memo, _ := command.MemoFromString("transfer")
	cmd := &command.ZkAppCommand{
		FeePayer: command.FeePayer{
			Body: command.FeePayerBody{PublicKey: w.ids[0].PublicKey, Fee: fee, Nonce: 0},
		},
		AccountUpdates: command.CallForest{
			command.NewNode(command.AccountUpdate{Body: debit}, nil),
			command.NewNode(command.AccountUpdate{Body: credit}, nil),
		},
		Memo: memo,
	}
	if mutate != nil {
		mutate(cmd)
	}

	tx := cmd.TxCommitment()
	full := cmd.FullCommitment()
	cmd.FeePayer.Authorization = signer.Sign(w.keys[0], signer.FlavourCommitment, full)
	cmd.AccountUpdates.ForEach(func(u *command.AccountUpdate) {
		if u.Body.AuthorizationKind == command.AuthKindSignature {
			msg := tx
			if u.Body.UseFullCommitment {
				msg = full
			}
			for i, id := range w.ids {
				if id.PublicKey.Equal(u.Body.PublicKey) {
					u.Authorization = command.Control{
						Kind:      command.AuthKindSignature,
						Signature: signer.Sign(w.keys[i], signer.FlavourCommitment, msg),
					}
				}
			}
		}
	})
	return cmd
}

func TestApplyTransfer(t *testing.T) {
	w := newWorld(t, 1, 3)
	before0 := w.balanceOf(t, 0)
	before1 := w.balanceOf(t, 1)
	before2 := w.balanceOf(t, 2)

	cmd := buildTransfer(w, 1000, 500, nil)
	global := w.global(10)
	backend := NewConcreteBackend()
	table, err := ApplyCommand(backend, global, cmd)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !table.IsEmpty() {
		t.Fatalf("unexpected failures: %v", table)
	}

	if got := w.balanceOf(t, 0); got != before0-1000 {
		t.Errorf("fee payer balance %d, want %d", got, before0-1000)
	}
	if got := w.balanceOf(t, 1); got != before1-500 {
		t.Errorf("debited balance %d, want %d", got, before1-500)
	}
	if got := w.balanceOf(t, 2); got != before2+500 {
		t.Errorf("credited balance %d, want %d", got, before2+500)
	}

	// The fee landed in the global excess.
	want := types.SignedOf(1000)
	if !global.FeeExcess.Equal(want) {
		t.Errorf("global fee excess %+v, want %+v", global.FeeExcess, want)
	}

	// Fee payer nonce moved.
	loc, _ := w.mask.LocationOfAccount(w.ids[0])
	if nonce := w.mask.GetAtIndex(loc).Nonce; nonce != 1 {
		t.Errorf("fee payer nonce %d, want 1", nonce)
	}
}

// The concrete and witness executors must land on identical post-states.
func TestConcreteWitnessEquivalence(t *testing.T) {
	w1 := newWorld(t, 42, 3)
	w2 := newWorld(t, 42, 3)

	cmd1 := buildTransfer(w1, 777, 333, nil)
	cmd2 := buildTransfer(w2, 777, 333, nil)

	g1 := w1.global(5)
	g2 := w2.global(5)

	concrete := NewConcreteBackend()
	witness := NewWitnessBackend()

	states1, table1, err1 := ApplySegments(concrete, g1, []*command.ZkAppCommand{cmd1})
	states2, table2, err2 := ApplySegments(witness, g2, []*command.ZkAppCommand{cmd2})
	if err1 != nil || err2 != nil {
		t.Fatalf("apply: %v / %v", err1, err2)
	}
	if !table1.Equal(table2) {
		t.Fatal("executors disagree on the failure table")
	}

	r1 := w1.mask.MerkleRoot()
	r2 := w2.mask.MerkleRoot()
	if !r1.Equal(&r2) {
		t.Fatal("executors disagree on the ledger root")
	}
	if len(states1) != len(states2) {
		t.Fatal("executors disagree on segmentation")
	}
	for i := range states1 {
		if states1[i].After.Local != states2[i].After.Local {
			t.Fatalf("segment %d local state diverged", i)
		}
		if states1[i].After.Global != states2[i].After.Global {
			t.Fatalf("segment %d global state diverged", i)
		}
	}
	if len(witness.Trace.Fields) == 0 {
		t.Fatal("witness executor recorded nothing")
	}
}

// Segmentation of fee payer + signature + none-given updates.
func TestSegmentStates(t *testing.T) {
	w := newWorld(t, 2, 3)
	cmd := buildTransfer(w, 100, 50, nil)
	global := w.global(1)

	states, _, err := ApplySegments(NewConcreteBackend(), global, []*command.ZkAppCommand{cmd})
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(states))
	}
	if states[0].Segment.Basic != command.OptSignedOptSigned || states[0].Segment.Kind != command.KindNew {
		t.Fatalf("first segment wrong: %+v", states[0].Segment)
	}
	if states[1].Segment.Basic != command.OptSigned || states[1].Segment.Kind != command.KindSame {
		t.Fatalf("second segment wrong: %+v", states[1].Segment)
	}
	var zero fr.Element
	if states[0].ConnectingLedger.Equal(&zero) {
		t.Fatal("connecting ledger not captured")
	}
}

// A failing fee payer aborts the command.
func TestFeePayerMustSucceed(t *testing.T) {
	w := newWorld(t, 3, 3)
	cmd := buildTransfer(w, 100, 50, func(c *command.ZkAppCommand) {
		c.FeePayer.Body.Nonce = 99 // wrong nonce
	})
	_, err := ApplyCommand(NewConcreteBackend(), w.global(1), cmd)
	if !errors.Is(err, ErrFirstUpdateFailed) {
		t.Fatalf("expected ErrFirstUpdateFailed, got %v", err)
	}
}

// A failing inner update is recorded but the command completes.
func TestInnerFailureRecorded(t *testing.T) {
	w := newWorld(t, 4, 3)
	cmd := buildTransfer(w, 100, 50, func(c *command.ZkAppCommand) {
		// Credit update demands an impossible balance.
		credit := &c.AccountUpdates[1].Update.Body
		credit.Preconditions.Account.Balance = command.Between(uint64(1), uint64(2))
	})
	global := w.global(1)

	table, err := ApplyCommand(NewConcreteBackend(), global, cmd)
	if err != nil {
		t.Fatalf("inner failure must not abort: %v", err)
	}
	if table.IsEmpty() {
		t.Fatal("expected a recorded failure")
	}

	// The credit is update index 2 (fee payer, debit, credit).
	found := false
	for _, f := range table.Row(2) {
		if f == types.FailureAccountBalancePreconditionUnsatisfied {
			found = true
		}
	}
	if !found {
		t.Fatalf("balance precondition failure not recorded: %v", table.Row(2))
	}
}

// Proof-authorised updates capture their statement for the external
// verifier.
func TestProofStatementCapture(t *testing.T) {
	w := newWorld(t, 5, 3)
	cmd := buildTransfer(w, 100, 50, func(c *command.ZkAppCommand) {
		credit := &c.AccountUpdates[1].Update.Body
		credit.AuthorizationKind = command.AuthKindProof
		credit.VkHash = account.DummyVkHash()
	})
	cmd.AccountUpdates[1].Update.Authorization = command.Control{
		Kind:  command.AuthKindProof,
		Proof: []byte{1, 2, 3},
	}

	backend := NewConcreteBackend()
	if _, err := ApplyCommand(backend, w.global(1), cmd); err != nil {
		t.Fatal(err)
	}
	if len(backend.PendingProofs) != 1 {
		t.Fatalf("expected 1 captured statement, got %d", len(backend.PendingProofs))
	}
	stmt := backend.PendingProofs[0]
	dummy := account.DummyVkHash()
	if !stmt.VkHash.Equal(&dummy) {
		t.Fatal("statement carries the wrong vk hash")
	}
	var zero fr.Element
	if stmt.AccountUpdateHash.Equal(&zero) {
		t.Fatal("statement update hash empty")
	}
}

// Actions roll into the account's action state.
func TestActionState(t *testing.T) {
	w := newWorld(t, 6, 3)
	var action fr.Element
	action.SetUint64(321)
	cmd := buildTransfer(w, 100, 50, func(c *command.ZkAppCommand) {
		debit := &c.AccountUpdates[0].Update.Body
		debit.Actions = [][]fr.Element{{action}}
	})
	if _, err := ApplyCommand(NewConcreteBackend(), w.global(7), cmd); err != nil {
		t.Fatal(err)
	}

	loc, _ := w.mask.LocationOfAccount(w.ids[1])
	acct := w.mask.GetAtIndex(loc)
	if acct.Zkapp == nil {
		t.Fatal("action emission must materialise the zkApp record")
	}
	empty := account.ActionStateEmpty()
	if acct.Zkapp.ActionState[0].Equal(&empty) {
		t.Fatal("action state head unchanged")
	}
	if acct.Zkapp.LastActionSlot != 7 {
		t.Fatalf("last action slot %d, want 7", acct.Zkapp.LastActionSlot)
	}
}

// The vk permission fallback downgrades only proof-gated policies.
func TestVkPermFallback(t *testing.T) {
	cases := map[account.AuthRequired]account.AuthRequired{
		account.AuthProof:      account.AuthSignature,
		account.AuthEither:     account.AuthSignature,
		account.AuthSignature:  account.AuthSignature,
		account.AuthNone:       account.AuthNone,
		account.AuthImpossible: account.AuthImpossible,
	}
	for in, want := range cases {
		if got := verificationKeyPermFallbackToSignatureWithOlderVersion(in); got != want {
			t.Errorf("fallback(%d) = %d, want %d", in, got, want)
		}
	}
}

// A signed non-start update that neither pins its nonce while incrementing
// it nor binds the fee payer via the full commitment is replayable and must
// be flagged.
func TestReplayProtectionClause(t *testing.T) {
	w := newWorld(t, 8, 3)
	cmd := buildTransfer(w, 100, 50, func(c *command.ZkAppCommand) {
		debit := &c.AccountUpdates[0].Update.Body
		debit.UseFullCommitment = false
	})
	table, err := ApplyCommand(NewConcreteBackend(), w.global(1), cmd)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	found := false
	for _, f := range table.Row(1) {
		if f == types.FailureZkappCommandReplayCheckFailed {
			found = true
		}
	}
	if !found {
		t.Fatalf("replay failure not recorded: %v", table.Row(1))
	}
}
