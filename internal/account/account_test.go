package account

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/minacore/ledger/pkg/types"
)

// The full §-table of permission evaluation.
func TestCheckPermissionTable(t *testing.T) {
	cases := []struct {
		auth  AuthRequired
		proof bool
		sig   bool
		none  bool
	}{
		{AuthImpossible, false, false, false},
		{AuthNone, true, true, true},
		{AuthProof, true, false, false},
		{AuthSignature, false, true, false},
		{AuthEither, true, true, false},
		{AuthBoth, false, false, false},
	}
	for _, c := range cases {
		if got := CheckPermission(c.auth, TagProof); got != c.proof {
			t.Errorf("auth %d tag Proof: got %v want %v", c.auth, got, c.proof)
		}
		if got := CheckPermission(c.auth, TagSignature); got != c.sig {
			t.Errorf("auth %d tag Signature: got %v want %v", c.auth, got, c.sig)
		}
		if got := CheckPermission(c.auth, TagNoneGiven); got != c.none {
			t.Errorf("auth %d tag NoneGiven: got %v want %v", c.auth, got, c.none)
		}
	}
}

// The encoded evaluation must agree with the direct truth table for every
// satisfiable controller.
func TestEncodedEvalMatchesTable(t *testing.T) {
	auths := []AuthRequired{AuthNone, AuthEither, AuthProof, AuthSignature, AuthImpossible}
	for _, a := range auths {
		enc := a.Encode()
		if got, want := enc.EvalProof(), CheckPermission(a, TagProof); got != want {
			t.Errorf("auth %d: EvalProof = %v, table says %v", a, got, want)
		}
		if got, want := enc.EvalNoProof(true), CheckPermission(a, TagSignature); got != want {
			t.Errorf("auth %d: EvalNoProof(sig) = %v, table says %v", a, got, want)
		}
		if got, want := enc.EvalNoProof(false), CheckPermission(a, TagNoneGiven); got != want {
			t.Errorf("auth %d: EvalNoProof(none) = %v, table says %v", a, got, want)
		}
	}
}

func TestPermissionsValidateRejectsBoth(t *testing.T) {
	p := UserDefault()
	p.Send = AuthBoth
	if err := p.Validate(); err == nil {
		t.Fatal("expected reserved Both to be rejected")
	}
}

func TestTimingSchedule(t *testing.T) {
	timing := Timing{
		IsTimed:               true,
		InitialMinimumBalance: 1000,
		CliffTime:             100,
		CliffAmount:           300,
		VestingPeriod:         10,
		VestingIncrement:      50,
	}

	cases := []struct {
		slot types.Slot
		want types.Balance
	}{
		{0, 1000},
		{99, 1000},
		{100, 700},  // cliff unlocks 300
		{109, 700},  // within first vesting period
		{110, 650},  // one increment
		{150, 450},  // five increments
		{240, 0},    // fully vested
		{5000, 0},
	}
	for _, c := range cases {
		if got := timing.MinBalanceAt(c.slot); got != c.want {
			t.Errorf("MinBalanceAt(%d) = %d, want %d", c.slot, got, c.want)
		}
	}

	if !timing.LockedTokens(50) {
		t.Error("expected locked tokens before cliff")
	}
	if timing.LockedTokens(240) {
		t.Error("expected no locked tokens after full vesting")
	}
	if Untimed().LockedTokens(0) {
		t.Error("untimed account must never lock")
	}
}

func TestTimingValidate(t *testing.T) {
	bad := Timing{IsTimed: true, VestingPeriod: 0}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected zero vesting period to be rejected")
	}
}

// The account hash must be deterministic and sensitive to every mutated
// field.
func TestAccountHashSensitivity(t *testing.T) {
	base := Empty()
	h := base.Hash()
	h2 := Empty().Hash()
	if !h.Equal(&h2) {
		t.Fatal("empty account hash is not deterministic")
	}

	mutations := map[string]func(*Account){
		"balance":  func(a *Account) { a.Balance = 1 },
		"nonce":    func(a *Account) { a.Nonce = 1 },
		"symbol":   func(a *Account) { a.TokenSymbol = "seb" },
		"delegate": func(a *Account) { a.Delegate = types.Some(types.CompressedPubKey{IsOdd: true}) },
		"timing":   func(a *Account) { a.Timing = Timing{IsTimed: true, VestingPeriod: 1} },
		"zkapp":    func(a *Account) { a.Zkapp = EmptyZkapp() },
		"perms":    func(a *Account) { a.Permissions = UserDefault() },
	}
	for name, mutate := range mutations {
		a := Empty()
		mutate(a)
		if got := a.Hash(); got.Equal(&h) {
			t.Errorf("mutating %s did not change the hash", name)
		}
	}
}

// An absent zkApp record must hash like a present-but-empty one modulo the
// presence flag, i.e. the sub-hash itself is equal.
func TestZkappSubHash(t *testing.T) {
	var nilRecord *ZkappAccount
	h1 := nilRecord.Hash()
	h2 := EmptyZkapp().Hash()
	if !h1.Equal(&h2) {
		t.Fatal("nil and empty zkApp records hash differently")
	}
}

func TestInitializeDelegateRule(t *testing.T) {
	pk := types.CompressedPubKey{IsOdd: true}

	def := Initialize(types.NewAccountID(pk, types.DefaultTokenID()))
	if !def.Delegate.IsSome || !def.Delegate.Value.Equal(pk) {
		t.Fatal("default-token account must self-delegate")
	}
	if err := def.Validate(); err != nil {
		t.Fatalf("default account invalid: %v", err)
	}

	custom := DeriveTokenID(types.NewAccountID(pk, types.DefaultTokenID()))
	cust := Initialize(types.NewAccountID(pk, custom))
	if cust.Delegate.IsSome {
		t.Fatal("custom-token account must not delegate")
	}
	if err := cust.Validate(); err != nil {
		t.Fatalf("custom account invalid: %v", err)
	}
}

func TestValidateSymbolLength(t *testing.T) {
	a := Empty()
	a.TokenSymbol = "toolong"
	if err := a.Validate(); err == nil {
		t.Fatal("expected 7-byte symbol to be rejected")
	}
}

// Token-id derivation must be deterministic and collision-free across
// distinct owners.
func TestDeriveTokenID(t *testing.T) {
	seen := make(map[[32]byte]bool)
	for i := 0; i < 64; i++ {
		var pk types.CompressedPubKey
		pk.X.SetUint64(uint64(i))
		id := types.NewAccountID(pk, types.DefaultTokenID())

		t1 := DeriveTokenID(id)
		t2 := DeriveTokenID(id)
		if !t1.Equal(t2) {
			t.Fatal("derivation is not deterministic")
		}
		key := t1.F.Bytes()
		if seen[key] {
			t.Fatalf("collision at owner %d", i)
		}
		seen[key] = true
	}
}

// A serialisation round trip must preserve the hash.
func TestAccountSerializeRoundTripHash(t *testing.T) {
	var pk types.CompressedPubKey
	pk.X.SetUint64(77)
	pk.IsOdd = true

	a := Initialize(types.NewAccountID(pk, types.DefaultTokenID()))
	a.TokenSymbol = "seb"
	a.Balance = 10101
	a.Nonce = 62772
	a.Zkapp = EmptyZkapp()
	a.Zkapp.ZkappURI = "https://zkapp.example"
	want := a.Hash()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(a); err != nil {
		t.Fatal(err)
	}
	var back Account
	if err := gob.NewDecoder(&buf).Decode(&back); err != nil {
		t.Fatal(err)
	}
	got := back.Hash()
	if !got.Equal(&want) {
		t.Fatal("hash changed across a serialisation round trip")
	}
}

// A fixture with key, symbol, balance, nonce and user permissions set hashes
// stably and differently from empty.
func TestFixtureAccountHash(t *testing.T) {
	build := func() *Account {
		var pk types.CompressedPubKey
		pk.X.SetUint64(123456789)
		a := Empty()
		a.PublicKey = pk
		a.TokenSymbol = "seb"
		a.Balance = 10101
		a.Nonce = 62772
		a.Permissions = UserDefault()
		return a
	}
	h1 := build().Hash()
	h2 := build().Hash()
	if !h1.Equal(&h2) {
		t.Fatal("fixture hash unstable")
	}
	empty := Empty().Hash()
	if h1.Equal(&empty) {
		t.Fatal("fixture hashes like the empty account")
	}
}

func TestVkHashFallsBackToDummy(t *testing.T) {
	z := EmptyZkapp()
	dummy := DummyVkHash()
	if got := z.VkHash(); !got.Equal(&dummy) {
		t.Fatal("absent vk must hash as the dummy key")
	}
	z.VerificationKey = types.Some(VerificationKey{Data: []byte("vk")})
	if got := z.VkHash(); got.Equal(&dummy) {
		t.Fatal("present vk must not hash as the dummy key")
	}
}
