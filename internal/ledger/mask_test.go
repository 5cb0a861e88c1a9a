package ledger

import (
	"context"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/minacore/ledger/internal/account"
	"github.com/minacore/ledger/internal/poseidon"
	"github.com/minacore/ledger/pkg/types"
)

const testDepth = 4

func testAccount(i uint64) *account.Account {
	var pk types.CompressedPubKey
	pk.X.SetUint64(i + 1)
	a := account.Initialize(types.NewAccountID(pk, types.DefaultTokenID()))
	a.Balance = types.Balance(1000 + i)
	return a
}

func freshRoot(t *testing.T, depth int) *Mask {
	t.Helper()
	return NewRoot(depth, NewRegistry())
}

// The root must equal the manual Poseidon reduction of all 2^depth leaf
// hashes.
func TestMerkleRootMatchesManualReduction(t *testing.T) {
	m := freshRoot(t, testDepth)
	n := 6
	for i := 0; i < n; i++ {
		a := testAccount(uint64(i))
		if _, _, err := m.GetOrCreateAccount(a.ID(), a); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	leaves := make([]fr.Element, 1<<testDepth)
	emptyLeaf := account.Empty().Hash()
	for i := range leaves {
		if a := m.GetAtIndex(uint64(i)); a != nil {
			leaves[i] = a.Hash()
		} else {
			leaves[i] = emptyLeaf
		}
	}
	level := leaves
	for height := 0; len(level) > 1; height++ {
		next := make([]fr.Element, len(level)/2)
		for i := range next {
			next[i] = poseidon.HashTwo(poseidon.PrefixMklTree(height), level[2*i], level[2*i+1])
		}
		level = next
	}

	root := m.MerkleRoot()
	if !root.Equal(&level[0]) {
		t.Fatal("merkle root disagrees with manual reduction")
	}
}

// Every leaf's merkle path must fold back to the root.
func TestMerklePathVerifies(t *testing.T) {
	m := freshRoot(t, testDepth)
	for i := 0; i < 5; i++ {
		a := testAccount(uint64(i))
		if _, _, err := m.GetOrCreateAccount(a.ID(), a); err != nil {
			t.Fatal(err)
		}
	}
	root := m.MerkleRoot()
	emptyLeaf := account.Empty().Hash()

	for i := uint64(0); i < 1<<testDepth; i++ {
		path, err := m.MerklePath(LeafAddress(testDepth, i))
		if err != nil {
			t.Fatalf("path at %d: %v", i, err)
		}
		if len(path) != testDepth {
			t.Fatalf("path length %d, want %d", len(path), testDepth)
		}
		leaf := emptyLeaf
		if a := m.GetAtIndex(i); a != nil {
			leaf = a.Hash()
		}
		if implied := VerifyMerklePath(leaf, path); !implied.Equal(&root) {
			t.Fatalf("path at %d does not verify", i)
		}
	}
}

// Insertion order is part of the root; identical order reproduces the root
// bit-for-bit.
func TestInsertionOrderSensitivity(t *testing.T) {
	accounts := make([]*account.Account, 1<<testDepth)
	for i := range accounts {
		accounts[i] = testAccount(uint64(i))
	}

	insert := func(order []int) fr.Element {
		m := freshRoot(t, testDepth)
		for _, i := range order {
			if _, _, err := m.GetOrCreateAccount(accounts[i].ID(), accounts[i]); err != nil {
				t.Fatal(err)
			}
		}
		return m.MerkleRoot()
	}

	forward := make([]int, len(accounts))
	reverse := make([]int, len(accounts))
	for i := range accounts {
		forward[i] = i
		reverse[i] = len(accounts) - 1 - i
	}

	r1 := insert(forward)
	r2 := insert(forward)
	r3 := insert(reverse)

	if !r1.Equal(&r2) {
		t.Fatal("same order produced different roots")
	}
	if r1.Equal(&r3) {
		t.Fatal("reversed order produced the same root")
	}
}

// Removing every account restores the empty root.
func TestRemoveAllRestoresEmptyRoot(t *testing.T) {
	m := freshRoot(t, testDepth)
	emptyRoot := m.MerkleRoot()
	want := EmptyHashAt(testDepth)
	if !emptyRoot.Equal(&want) {
		t.Fatal("fresh ledger root is not the empty-subtree hash")
	}

	for i := 0; i < 7; i++ {
		a := testAccount(uint64(i))
		if _, _, err := m.GetOrCreateAccount(a.ID(), a); err != nil {
			t.Fatal(err)
		}
	}
	if r := m.MerkleRoot(); r.Equal(&emptyRoot) {
		t.Fatal("inserts did not move the root")
	}

	if err := m.RemoveAccounts(m.AccountIDs()); err != nil {
		t.Fatal(err)
	}
	if r := m.MerkleRoot(); !r.Equal(&emptyRoot) {
		t.Fatal("root after removing all accounts is not the empty root")
	}
}

func TestGetOrCreateSemantics(t *testing.T) {
	m := freshRoot(t, testDepth)
	a := testAccount(0)

	action, addr, err := m.GetOrCreateAccount(a.ID(), a)
	if err != nil {
		t.Fatal(err)
	}
	if action != Added {
		t.Fatal("first insert should add")
	}

	// Re-inserting with different content must keep the stored account.
	other := testAccount(0)
	other.Balance = 1
	action, addr2, err := m.GetOrCreateAccount(other.ID(), other)
	if err != nil {
		t.Fatal(err)
	}
	if action != Existed || addr2 != addr {
		t.Fatal("second insert should return the existing address")
	}
	if got := m.GetAtIndex(addr.Index); got.Balance != a.Balance {
		t.Fatal("existing account was overwritten")
	}
}

func TestOutOfLeaves(t *testing.T) {
	m := freshRoot(t, 2)
	for i := 0; i < 4; i++ {
		a := testAccount(uint64(i))
		if _, _, err := m.GetOrCreateAccount(a.ID(), a); err != nil {
			t.Fatal(err)
		}
	}
	a := testAccount(99)
	if _, _, err := m.GetOrCreateAccount(a.ID(), a); err != ErrOutOfLeaves {
		t.Fatalf("expected ErrOutOfLeaves, got %v", err)
	}
}

// A child mask shadows its parent without disturbing it; committing folds
// the edits down.
func TestMaskShadowingAndCommit(t *testing.T) {
	root := freshRoot(t, testDepth)
	for i := 0; i < 3; i++ {
		a := testAccount(uint64(i))
		if _, _, err := root.GetOrCreateAccount(a.ID(), a); err != nil {
			t.Fatal(err)
		}
	}
	parentRoot := root.MerkleRoot()

	child := root.RegisterMask()
	if r := child.MerkleRoot(); !r.Equal(&parentRoot) {
		t.Fatal("fresh child must mirror its parent")
	}

	edited := testAccount(1)
	edited.Balance = 777_777
	loc, ok := child.LocationOfAccount(edited.ID())
	if !ok {
		t.Fatal("account not visible through child")
	}
	if err := child.SetAtIndex(loc, edited); err != nil {
		t.Fatal(err)
	}

	childRoot := child.MerkleRoot()
	if childRoot.Equal(&parentRoot) {
		t.Fatal("child edit did not move the child root")
	}
	if r := root.MerkleRoot(); !r.Equal(&parentRoot) {
		t.Fatal("child edit leaked into the parent")
	}

	if err := child.Commit(); err != nil {
		t.Fatal(err)
	}
	if r := root.MerkleRoot(); !r.Equal(&childRoot) {
		t.Fatal("commit did not fold the edit into the parent")
	}
	if got := root.GetAtIndex(loc); got.Balance != 777_777 {
		t.Fatal("committed account not visible in parent")
	}
}

// Committing child-to-parent then parent-to-grandparent equals committing
// the same edits directly.
func TestCommitAssociativity(t *testing.T) {
	build := func() (*Mask, *Mask, *Mask) {
		g := freshRoot(t, testDepth)
		for i := 0; i < 4; i++ {
			a := testAccount(uint64(i))
			if _, _, err := g.GetOrCreateAccount(a.ID(), a); err != nil {
				t.Fatal(err)
			}
		}
		p := g.RegisterMask()
		c := p.RegisterMask()
		return g, p, c
	}

	edit := func(m *Mask, idx uint64, balance types.Balance) {
		a := m.GetAtIndex(idx).Clone()
		a.Balance = balance
		if err := m.SetAtIndex(idx, a); err != nil {
			t.Fatal(err)
		}
	}

	// Chain: edit in p, edit in c, commit c into p, commit p into g.
	g1, p1, c1 := build()
	edit(p1, 0, 11)
	edit(c1, 2, 22)
	if err := c1.Commit(); err != nil {
		t.Fatal(err)
	}
	if err := p1.Commit(); err != nil {
		t.Fatal(err)
	}

	// Direct: the same edits applied straight to the grandparent.
	g2, _, _ := build()
	edit(g2, 0, 11)
	edit(g2, 2, 22)

	r1 := g1.MerkleRoot()
	r2 := g2.MerkleRoot()
	if !r1.Equal(&r2) {
		t.Fatal("commit is not associative")
	}
}

// A sibling mask's caches must not survive a commit that changes the shared
// parent underneath it.
func TestSiblingInvalidationOnCommit(t *testing.T) {
	root := freshRoot(t, testDepth)
	a := testAccount(0)
	if _, _, err := root.GetOrCreateAccount(a.ID(), a); err != nil {
		t.Fatal(err)
	}

	editor := root.RegisterMask()
	observer := root.RegisterMask()
	_ = observer.MerkleRoot() // warm the observer's cache

	edited := a.Clone()
	edited.Balance = 5
	if err := editor.SetAtIndex(0, edited); err != nil {
		t.Fatal(err)
	}
	if err := editor.Commit(); err != nil {
		t.Fatal(err)
	}

	want := root.MerkleRoot()
	got := observer.MerkleRoot()
	if !got.Equal(&want) {
		t.Fatal("observer returned a stale root after sibling commit")
	}
}

func TestSetBatchAccounts(t *testing.T) {
	m1 := freshRoot(t, testDepth)
	m2 := freshRoot(t, testDepth)

	var batch []IndexedAccount
	for i := 0; i < 5; i++ {
		a := testAccount(uint64(i))
		batch = append(batch, IndexedAccount{Index: uint64(i), Account: a})
		if err := m1.SetAtIndex(uint64(i), a); err != nil {
			t.Fatal(err)
		}
	}
	if err := m2.SetBatchAccounts(batch); err != nil {
		t.Fatal(err)
	}

	r1, r2 := m1.MerkleRoot(), m2.MerkleRoot()
	if !r1.Equal(&r2) {
		t.Fatal("batched writes disagree with sequential writes")
	}
}

func TestSetAllAccountsRootedAt(t *testing.T) {
	m := freshRoot(t, testDepth)
	accts := []*account.Account{testAccount(10), testAccount(11)}

	// Subtree of height 1 at depth 3, index 2 covers leaves 4 and 5.
	if err := m.SetAllAccountsRootedAt(Address{Depth: 3, Index: 2}, accts); err != nil {
		t.Fatal(err)
	}
	if got := m.GetAtIndex(4); got == nil || got.Balance != accts[0].Balance {
		t.Fatal("left leaf not assigned")
	}
	if got := m.GetAtIndex(5); got == nil || got.Balance != accts[1].Balance {
		t.Fatal("right leaf not assigned")
	}

	// Overflowing the subtree must fail.
	three := []*account.Account{testAccount(1), testAccount(2), testAccount(3)}
	if err := m.SetAllAccountsRootedAt(Address{Depth: 3, Index: 2}, three); err == nil {
		t.Fatal("expected overflow of height-1 subtree to fail")
	}
}

func TestBatchLookups(t *testing.T) {
	m := freshRoot(t, testDepth)
	var ids []types.AccountID
	for i := 0; i < 3; i++ {
		a := testAccount(uint64(i))
		ids = append(ids, a.ID())
		if _, _, err := m.GetOrCreateAccount(a.ID(), a); err != nil {
			t.Fatal(err)
		}
	}
	missing := testAccount(50).ID()
	res := m.LocationOfAccountBatch(append(ids, missing))
	for i := 0; i < 3; i++ {
		if !res[i].Found || res[i].Index != uint64(i) {
			t.Fatalf("lookup %d wrong: %+v", i, res[i])
		}
	}
	if res[3].Found {
		t.Fatal("missing id reported as found")
	}

	accts, err := m.GetBatch([]Address{LeafAddress(testDepth, 0), LeafAddress(testDepth, 9)})
	if err != nil {
		t.Fatal(err)
	}
	if accts[0] == nil || accts[1] != nil {
		t.Fatal("batch read wrong")
	}
}

func TestUnregisterPolicies(t *testing.T) {
	reg := NewRegistry()
	root := NewRoot(testDepth, reg)
	child := root.RegisterMask()
	grand := child.RegisterMask()

	if err := child.Unregister(UnregisterCheck); err != ErrMaskHasChildren {
		t.Fatalf("expected ErrMaskHasChildren, got %v", err)
	}

	// Reparent: grand moves under root.
	if err := child.Unregister(UnregisterReparent); err != nil {
		t.Fatal(err)
	}
	if grand.Parent() != root {
		t.Fatal("grandchild was not reparented")
	}
	if reg.AliveCount() != 2 {
		t.Fatalf("expected 2 alive masks, got %d", reg.AliveCount())
	}

	// Recursive: everything below root goes away.
	grand2 := grand.RegisterMask()
	_ = grand2
	if err := grand.Unregister(UnregisterRecursive); err != nil {
		t.Fatal(err)
	}
	if reg.AliveCount() != 1 {
		t.Fatalf("expected only the root alive, got %d", reg.AliveCount())
	}
}

// The manager must serialise operations in submission order.
func TestManagerSerialises(t *testing.T) {
	m := freshRoot(t, testDepth)
	mgr := NewManager(m)
	defer mgr.Close()

	ctx := context.Background()
	for i := 0; i < 8; i++ {
		i := i
		err := mgr.With(ctx, func(mask *Mask) {
			a := testAccount(uint64(i))
			if _, _, err := mask.GetOrCreateAccount(a.ID(), a); err != nil {
				t.Errorf("insert %d: %v", i, err)
			}
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	var n uint64
	if err := mgr.With(ctx, func(mask *Mask) { n = mask.NumAccounts() }); err != nil {
		t.Fatal(err)
	}
	if n != 8 {
		t.Fatalf("expected 8 accounts, got %d", n)
	}
}

// Empty-subtree hashes are stable across depths and recomputation.
func TestEmptyHashTable(t *testing.T) {
	for _, h := range []int{0, 1, 5, 10, 35} {
		a := EmptyHashAt(h)
		b := EmptyHashAt(h)
		if !a.Equal(&b) {
			t.Fatalf("empty hash at height %d unstable", h)
		}
	}
	// Spot-check the recurrence.
	want := poseidon.HashTwo(poseidon.PrefixMklTree(4), EmptyHashAt(4), EmptyHashAt(4))
	h5 := EmptyHashAt(5)
	if !h5.Equal(&want) {
		t.Fatal("empty hash recurrence broken")
	}
}
