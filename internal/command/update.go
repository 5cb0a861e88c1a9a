package command

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/minacore/ledger/internal/account"
	"github.com/minacore/ledger/internal/poseidon"
	"github.com/minacore/ledger/internal/signer"
	"github.com/minacore/ledger/pkg/types"
)

// MayUseToken says how a child update may touch its caller's token.
type MayUseToken uint8

const (
	// MayUseTokenNo forbids token inheritance
	MayUseTokenNo MayUseToken = iota

	// ParentsOwnToken lets the child act on the token its parent owns
	ParentsOwnToken

	// InheritFromParent passes the parent's caller token down unchanged
	InheritFromParent
)

// AuthorizationKind declares what authorisation an update carries.
type AuthorizationKind uint8

const (
	// AuthKindNoneGiven carries nothing
	AuthKindNoneGiven AuthorizationKind = iota

	// AuthKindSignature carries a signature over the chosen commitment
	AuthKindSignature

	// AuthKindProof carries a side-loaded proof
	AuthKindProof
)

// ControlTag maps the kind to the permission-evaluation tag.
func (k AuthorizationKind) ControlTag() account.ControlTag {
	switch k {
	case AuthKindSignature:
		return account.TagSignature
	case AuthKindProof:
		return account.TagProof
	default:
		return account.TagNoneGiven
	}
}

// Update is the diff an account update applies to its account.
type Update struct {
	AppState        [account.AppStateSize]types.SetOrKeep[fr.Element]
	Delegate        types.SetOrKeep[types.CompressedPubKey]
	VerificationKey types.SetOrKeep[account.VerificationKey]
	Permissions     types.SetOrKeep[account.Permissions]
	ZkappURI        types.SetOrKeep[string]
	TokenSymbol     types.SetOrKeep[string]
	Timing          types.SetOrKeep[account.Timing]
	VotingFor       types.SetOrKeep[fr.Element]
}

// NoUpdate keeps every field.
func NoUpdate() Update {
	return Update{}
}

// Body is the unauthorised content of an account update.
type Body struct {
	// PublicKey and TokenID name the target account
	PublicKey types.CompressedPubKey
	TokenID   types.TokenID

	// Update is the diff to apply
	Update Update

	// BalanceChange is the signed delta
	BalanceChange types.Signed

	// IncrementNonce bumps the account nonce
	IncrementNonce bool

	// Events and Actions are emitted field matrices; actions roll into the
	// account's action state
	Events  [][]fr.Element
	Actions [][]fr.Element

	// CallData is an opaque argument to the zkApp
	CallData fr.Element

	// CallDepth is the nesting depth inside the forest
	CallDepth int

	// Preconditions guard the application
	Preconditions Preconditions

	// UseFullCommitment selects which commitment the signature covers
	UseFullCommitment bool

	// ImplicitAccountCreationFee pays the creation fee out of the balance
	// change instead of the local excess
	ImplicitAccountCreationFee bool

	// MayUseToken positions this update relative to its caller's token
	MayUseToken MayUseToken

	// AuthorizationKind declares the carried authorisation; for proofs,
	// VkHash pins the verification key the proof is against
	AuthorizationKind AuthorizationKind
	VkHash            fr.Element
}

// AccountID names the account the update targets.
func (b *Body) AccountID() types.AccountID {
	return types.NewAccountID(b.PublicKey, b.TokenID)
}

// Control is the authorisation attached to an update.
type Control struct {
	Kind      AuthorizationKind
	Signature signer.Signature

	// Proof is opaque to the core; the external verifier consumes it
	Proof []byte
}

// NoneControl is the empty authorisation.
func NoneControl() Control {
	return Control{Kind: AuthKindNoneGiven}
}

// AccountUpdate is one node body plus its authorisation.
type AccountUpdate struct {
	Body          Body
	Authorization Control
}

// setOrKeepFields flattens a set-or-keep as (set_bit, value fields...).
func setOrKeepFields(isSet bool, value ...fr.Element) []fr.Element {
	var bit fr.Element
	if isSet {
		bit.SetOne()
	}
	return append([]fr.Element{bit}, value...)
}

// ToFields flattens the update diff for hashing.
func (u *Update) ToFields() []fr.Element {
	var out []fr.Element
	for i := range u.AppState {
		out = append(out, setOrKeepFields(u.AppState[i].IsSet, u.AppState[i].Value)...)
	}
	out = append(out, setOrKeepFields(u.Delegate.IsSet, u.Delegate.Value.ToFields()...)...)
	vkHash := account.DummyVkHash()
	if u.VerificationKey.IsSet {
		vkHash = u.VerificationKey.Value.Hash()
	}
	out = append(out, setOrKeepFields(u.VerificationKey.IsSet, vkHash)...)
	permFields := account.EmptyPermissions().ToFields()
	if u.Permissions.IsSet {
		permFields = u.Permissions.Value.ToFields()
	}
	out = append(out, setOrKeepFields(u.Permissions.IsSet, permFields...)...)
	out = append(out, setOrKeepFields(u.ZkappURI.IsSet,
		poseidon.HashBytes(poseidon.TagZkappURI, []byte(u.ZkappURI.Value)))...)
	out = append(out, setOrKeepFields(u.TokenSymbol.IsSet,
		poseidon.HashBytes(poseidon.TagZkappURI, []byte(u.TokenSymbol.Value)))...)
	out = append(out, setOrKeepFields(u.Timing.IsSet, u.Timing.Value.ToFields()...)...)
	out = append(out, setOrKeepFields(u.VotingFor.IsSet, u.VotingFor.Value)...)
	return out
}

func boolField(b bool) fr.Element {
	var f fr.Element
	if b {
		f.SetOne()
	}
	return f
}

func uintField(v uint64) fr.Element {
	var f fr.Element
	f.SetUint64(v)
	return f
}

// eventsCommitment folds a field matrix into one element.
func eventsCommitment(tag string, rows [][]fr.Element) fr.Element {
	acc := poseidon.Hash(tag)
	for _, row := range rows {
		h := poseidon.Hash(tag, row...)
		acc = poseidon.HashTwo(tag, acc, h)
	}
	return acc
}

// numericFields flattens a numeric precondition.
func numericFields[T uint32 | uint64](n Numeric[T]) []fr.Element {
	return []fr.Element{boolField(n.Check), uintField(uint64(n.Interval.Lower)), uintField(uint64(n.Interval.Upper))}
}

func eqFieldFields(e EqField) []fr.Element {
	return []fr.Element{boolField(e.Check), e.Value}
}

// toFields flattens the full precondition set.
func (p *Preconditions) toFields() []fr.Element {
	var out []fr.Element
	n := &p.Network
	out = append(out, eqFieldFields(n.SnarkedLedgerHash)...)
	out = append(out, numericFields(n.BlockchainLength)...)
	out = append(out, numericFields(n.MinWindowDensity)...)
	out = append(out, numericFields(n.TotalCurrency)...)
	out = append(out, numericFields(n.GlobalSlotSinceGenesis)...)
	for _, ep := range []EpochDataPrecondition{n.StakingEpoch, n.NextEpoch} {
		out = append(out, eqFieldFields(ep.Ledger.Hash)...)
		out = append(out, numericFields(ep.Ledger.TotalCurrency)...)
		out = append(out, eqFieldFields(ep.Seed)...)
		out = append(out, eqFieldFields(ep.StartCheckpoint)...)
		out = append(out, eqFieldFields(ep.LockCheckpoint)...)
		out = append(out, numericFields(ep.EpochLength)...)
	}
	a := &p.Account
	out = append(out, numericFields(a.Balance)...)
	out = append(out, numericFields(a.Nonce)...)
	out = append(out, eqFieldFields(a.ReceiptChainHash)...)
	out = append(out, boolField(a.Delegate.Check))
	out = append(out, a.Delegate.Value.ToFields()...)
	for i := range a.State {
		out = append(out, eqFieldFields(a.State[i])...)
	}
	out = append(out, eqFieldFields(a.ActionState)...)
	out = append(out, boolField(a.ProvedState.Check), boolField(a.ProvedState.Value))
	out = append(out, boolField(a.IsNew.Check), boolField(a.IsNew.Value))
	out = append(out, numericFields(p.ValidWhile)...)
	return out
}

// ToFields flattens the body in canonical order.
func (b *Body) ToFields() []fr.Element {
	var out []fr.Element
	out = append(out, b.PublicKey.ToFields()...)
	out = append(out, b.TokenID.F)
	out = append(out, b.Update.ToFields()...)
	out = append(out, b.BalanceChange.ToFields()...)
	out = append(out, boolField(b.IncrementNonce))
	out = append(out, eventsCommitment(poseidon.TagZkappEvents, b.Events))
	out = append(out, eventsCommitment(poseidon.TagZkappActions, b.Actions))
	out = append(out, b.CallData)
	out = append(out, b.Preconditions.toFields()...)
	out = append(out, boolField(b.UseFullCommitment))
	out = append(out, boolField(b.ImplicitAccountCreationFee))
	out = append(out, uintField(uint64(b.MayUseToken)))
	out = append(out, uintField(uint64(b.AuthorizationKind)))
	out = append(out, b.VkHash)
	return out
}

// Digest commits to the body.
func (u *AccountUpdate) Digest() fr.Element {
	return poseidon.Hash(poseidon.TagZkappBody, u.Body.ToFields()...)
}

// ActionsCommitment returns the commitment absorbed into the action state.
func (b *Body) ActionsCommitment() fr.Element {
	return eventsCommitment(poseidon.TagZkappActions, b.Actions)
}

// HasActions reports whether the update emits actions.
func (b *Body) HasActions() bool {
	return len(b.Actions) > 0
}
