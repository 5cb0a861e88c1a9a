package account

import (
	"errors"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/minacore/ledger/internal/poseidon"
	"github.com/minacore/ledger/pkg/types"
)

// Account errors
var (
	ErrSymbolTooLong        = errors.New("token symbol longer than 6 bytes")
	ErrDelegateOnCustomToken = errors.New("delegate set on non-default token")
	ErrMissingDelegate       = errors.New("default-token account without delegate")
)

// MaxTokenSymbolLen bounds the issued-token symbol.
const MaxTokenSymbolLen = 6

// Account is one ledger leaf.
type Account struct {
	// PublicKey is the owner
	PublicKey types.CompressedPubKey

	// TokenID is the token this account holds
	TokenID types.TokenID

	// TokenSymbol is at most 6 bytes, meaningful only on issued tokens
	TokenSymbol string

	// Balance in base units
	Balance types.Balance

	// Nonce increases monotonically with signed commands
	Nonce types.Nonce

	// ReceiptChainHash commits to the history of signed commands
	ReceiptChainHash fr.Element

	// Delegate receives this account's stake; required on the default
	// token, forbidden elsewhere
	Delegate types.FlaggedOption[types.CompressedPubKey]

	// VotingFor is the state hash the stake votes for
	VotingFor fr.Element

	// Timing is the vesting schedule
	Timing Timing

	// Permissions is the controller set
	Permissions Permissions

	// Zkapp is the optional zkApp sub-record
	Zkapp *ZkappAccount
}

// Empty returns the account stored at unoccupied leaves.
func Empty() *Account {
	return &Account{
		TokenID:          types.DefaultTokenID(),
		ReceiptChainHash: emptyReceiptChain(),
		Permissions:      EmptyPermissions(),
	}
}

// Initialize returns a fresh account for an id, applying the delegate rule:
// default-token accounts delegate to themselves, custom-token accounts have
// no delegate.
func Initialize(id types.AccountID) *Account {
	a := Empty()
	a.PublicKey = id.PublicKey
	a.TokenID = id.TokenID
	a.Permissions = UserDefault()
	if id.TokenID.IsDefault() {
		a.Delegate = types.Some(id.PublicKey)
	}
	return a
}

func emptyReceiptChain() fr.Element {
	return poseidon.Hash(poseidon.TagReceiptUC)
}

// EmptyReceiptChainHash is the receipt chain of an account with no history.
func EmptyReceiptChainHash() fr.Element {
	return emptyReceiptChain()
}

// ID returns the account id.
func (a *Account) ID() types.AccountID {
	return types.NewAccountID(a.PublicKey, a.TokenID)
}

// HasLockedTokens reports whether the timing schedule still locks balance at
// the slot.
func (a *Account) HasLockedTokens(slot types.Slot) bool {
	return a.Timing.LockedTokens(slot)
}

// Validate enforces the structural invariants: symbol length, delegate rule,
// permission sanity, vesting period.
func (a *Account) Validate() error {
	if len(a.TokenSymbol) > MaxTokenSymbolLen {
		return ErrSymbolTooLong
	}
	if !a.TokenID.IsDefault() && a.Delegate.IsSome {
		return ErrDelegateOnCustomToken
	}
	if a.TokenID.IsDefault() && !a.PublicKey.IsEmpty() && !a.Delegate.IsSome {
		return ErrMissingDelegate
	}
	if err := a.Permissions.Validate(); err != nil {
		return err
	}
	return a.Timing.Validate()
}

// Clone deep-copies the account.
func (a *Account) Clone() *Account {
	c := *a
	c.Zkapp = a.Zkapp.Clone()
	return &c
}

// HasPermissionTo evaluates a controller of this account against the
// authorisation present on an update.
func (a *Account) HasPermissionTo(auth AuthRequired, tag ControlTag) bool {
	return CheckPermission(auth, tag)
}

// ToFields flattens the account in its canonical hashing order.
func (a *Account) ToFields() []fr.Element {
	var out []fr.Element
	out = append(out, a.PublicKey.ToFields()...)
	out = append(out, a.TokenID.F)
	out = append(out, poseidon.HashBytes(poseidon.TagZkappURI, []byte(a.TokenSymbol)))
	out = append(out, a.Balance.ToField())
	var f fr.Element
	f.SetUint64(uint64(a.Nonce))
	out = append(out, f)
	out = append(out, a.ReceiptChainHash)
	out = append(out, boolField(a.Delegate.IsSome))
	out = append(out, a.Delegate.Value.ToFields()...)
	out = append(out, a.VotingFor)
	out = append(out, a.Timing.ToFields()...)
	out = append(out, a.Permissions.ToFields()...)
	out = append(out, boolField(a.Zkapp != nil), a.Zkapp.Hash())
	return out
}

// Hash commits to the account; this is the ledger leaf hash.
func (a *Account) Hash() fr.Element {
	return poseidon.Hash(poseidon.TagAccount, a.ToFields()...)
}

// DeriveTokenID derives the token id owned by an account id.
func DeriveTokenID(owner types.AccountID) types.TokenID {
	h := poseidon.Hash(poseidon.TagDeriveTokenID,
		owner.PublicKey.X, owner.TokenID.F, owner.PublicKey.OddField())
	return types.TokenID{F: h}
}
