package generator

import (
	"testing"

	"github.com/minacore/ledger/internal/command"
	"github.com/minacore/ledger/internal/ledger"
	"github.com/minacore/ledger/internal/zkapp"
)

const testDepth = 8

// The generator is a pure function of its seed.
func TestDeterministicStream(t *testing.T) {
	cfg := DefaultConfig()
	f1, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	f2, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 10; i++ {
		c1 := f1.GenZkAppCommand()
		c2 := f2.GenZkAppCommand()
		h1 := c1.FullCommitment()
		h2 := c2.FullCommitment()
		if !h1.Equal(&h2) {
			t.Fatalf("command %d diverged between equal seeds", i)
		}
	}

	cfg2 := DefaultConfig()
	cfg2.Seed = 2
	f3, err := New(cfg2)
	if err != nil {
		t.Fatal(err)
	}
	c1 := f1.GenZkAppCommand()
	c3 := f3.GenZkAppCommand()
	h1 := c1.FullCommitment()
	h3 := c3.FullCommitment()
	if h1.Equal(&h3) {
		t.Fatal("different seeds produced the same command")
	}
}

// Generated signed commands carry valid signatures.
func TestGeneratedSignedCommandsVerify(t *testing.T) {
	f, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		c := f.GenSignedCommand()
		if !c.Verify() {
			t.Fatalf("command %d does not verify", i)
		}
	}
}

// The forest respects the configured depth bound.
func TestForestDepthBound(t *testing.T) {
	cfg := StressConfig()
	f, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		cmd := f.GenZkAppCommand()
		if d := cmd.AccountUpdates.Depth(); d > cfg.MaxForestDepth {
			t.Fatalf("forest depth %d exceeds bound %d", d, cfg.MaxForestDepth)
		}
	}
}

// Generated zkApp commands apply cleanly through the engine.
func TestGeneratedZkappCommandsApply(t *testing.T) {
	cfg := DefaultConfig()
	f, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	mask := ledger.NewRoot(testDepth, ledger.NewRegistry())
	if err := f.SeedLedger(mask); err != nil {
		t.Fatal(err)
	}

	global := &zkapp.GlobalState{FirstPassLedger: mask, SecondPassLedger: mask}
	for i := 0; i < 5; i++ {
		cmd := f.GenZkAppCommand()
		table, err := zkapp.ApplyCommand(zkapp.NewConcreteBackend(), global, cmd)
		if err != nil {
			t.Fatalf("command %d: %v", i, err)
		}
		if !table.IsEmpty() {
			t.Fatalf("command %d recorded failures: %v", i, table)
		}
	}
}

// With the new-party bias forced up, commands mint fresh accounts through
// the engine's creation path and still apply cleanly.
func TestFreshAccountsCreated(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NewAccountProb = 0.9
	f, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	mask := ledger.NewRoot(testDepth, ledger.NewRegistry())
	if err := f.SeedLedger(mask); err != nil {
		t.Fatal(err)
	}
	before := len(mask.AccountIDs())

	global := &zkapp.GlobalState{FirstPassLedger: mask, SecondPassLedger: mask}
	for i := 0; i < 4; i++ {
		cmd := f.GenZkAppCommand()
		table, err := zkapp.ApplyCommand(zkapp.NewConcreteBackend(), global, cmd)
		if err != nil {
			t.Fatalf("command %d: %v", i, err)
		}
		if !table.IsEmpty() {
			t.Fatalf("command %d recorded failures: %v", i, table)
		}
	}

	after := len(mask.AccountIDs())
	if after <= before {
		t.Fatalf("no fresh accounts created: %d -> %d", before, after)
	}

	// Fresh accounts joined the pool for later commands.
	if len(f.Pool()) <= cfg.PoolSize {
		t.Fatal("fresh accounts did not join the pool")
	}
}

// Proof-authorised updates carry opaque proofs, never signatures.
func TestProofUpdatesNotSigned(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProofProb = 1.0
	f, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	sawProof := false
	for i := 0; i < 10; i++ {
		cmd := f.GenZkAppCommand()
		cmd.AccountUpdates.ForEach(func(u *command.AccountUpdate) {
			if u.Body.AuthorizationKind == command.AuthKindProof {
				sawProof = true
				if len(u.Authorization.Proof) == 0 {
					t.Fatal("proof update without proof bytes")
				}
				var zero [32]byte
				if u.Authorization.Signature.R.Bytes() != zero || !u.Authorization.Signature.S.IsZero() {
					t.Fatal("proof update carries a signature")
				}
			}
		})
	}
	if !sawProof {
		t.Fatal("expected at least one proof update")
	}
}

func TestConfigDepthBounds(t *testing.T) {
	def := DefaultConfig()
	if def.MaxForestDepth != 3 {
		t.Fatalf("default depth bound %d, want 3", def.MaxForestDepth)
	}
	stress := StressConfig()
	if stress.MaxForestDepth != 5 {
		t.Fatalf("stress depth bound %d, want 5", stress.MaxForestDepth)
	}
}
