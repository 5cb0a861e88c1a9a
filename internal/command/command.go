package command

import (
	"errors"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/minacore/ledger/internal/poseidon"
	"github.com/minacore/ledger/internal/signer"
	"github.com/minacore/ledger/pkg/types"
)

// Apply errors
var (
	ErrEmptyForest = errors.New("zkapp command with empty call forest")
)

// FeePayerBody is the always-signed header of a zkApp command.
type FeePayerBody struct {
	PublicKey  types.CompressedPubKey
	Fee        types.Fee
	ValidUntil types.FlaggedOption[types.Slot]
	Nonce      types.Nonce
}

// FeePayer is the fee payer body plus its signature over the full
// commitment.
type FeePayer struct {
	Body          FeePayerBody
	Authorization signer.Signature
}

// AccountID names the fee-paying account; fees are always in the default
// token.
func (fp *FeePayer) AccountID() types.AccountID {
	return types.NewAccountID(fp.Body.PublicKey, types.DefaultTokenID())
}

// Digest commits to the fee payer body.
func (fp *FeePayer) Digest() fr.Element {
	var out []fr.Element
	out = append(out, fp.Body.PublicKey.ToFields()...)
	var f fr.Element
	f.SetUint64(uint64(fp.Body.Fee))
	out = append(out, f)
	out = append(out, boolField(fp.Body.ValidUntil.IsSome))
	f.SetUint64(uint64(fp.Body.ValidUntil.Value))
	out = append(out, f)
	f.SetUint64(uint64(fp.Body.Nonce))
	out = append(out, f)
	return poseidon.Hash(poseidon.TagZkappFeePayer, out...)
}

// ZkAppCommand is a fee payer, a call forest of account updates, and a memo.
type ZkAppCommand struct {
	FeePayer       FeePayer
	AccountUpdates CallForest
	Memo           Memo
}

// TxCommitment is the hash of the call forest. Inner signatures default to
// covering it.
func (c *ZkAppCommand) TxCommitment() fr.Element {
	return c.AccountUpdates.Hash()
}

// FullCommitment additionally binds the memo and the fee payer (in its
// lowered account-update form); the fee payer's signature always covers it.
func (c *ZkAppCommand) FullCommitment() fr.Element {
	fp := c.FeePayerUpdate()
	return FullCommitment(c.Memo.Hash(), fp.Digest(), c.TxCommitment())
}

// FullCommitment combines the three commitment legs.
func FullCommitment(memoHash, feePayerHash, txCommitment fr.Element) fr.Element {
	return poseidon.Hash(poseidon.TagAcctUpdateCons, memoHash, feePayerHash, txCommitment)
}

// FeePayerUpdate lowers the fee payer into an account-update shape: a signed
// default-token update subtracting the fee, incrementing the nonce, with an
// exact nonce precondition and the full commitment.
func (c *ZkAppCommand) FeePayerUpdate() AccountUpdate {
	body := Body{
		PublicKey:         c.FeePayer.Body.PublicKey,
		TokenID:           types.DefaultTokenID(),
		BalanceChange:     types.SignedOf(types.Amount(c.FeePayer.Body.Fee)).Negate(),
		IncrementNonce:    true,
		UseFullCommitment: true,
		Preconditions: Preconditions{
			Network:    AcceptProtocolState(),
			Account:    NonceExactly(c.FeePayer.Body.Nonce),
			ValidWhile: feePayerValidWhile(c.FeePayer.Body.ValidUntil),
		},
		AuthorizationKind: AuthKindSignature,
	}
	return AccountUpdate{
		Body:          body,
		Authorization: Control{Kind: AuthKindSignature, Signature: c.FeePayer.Authorization},
	}
}

func feePayerValidWhile(until types.FlaggedOption[types.Slot]) Numeric[uint32] {
	if !until.IsSome {
		return AcceptNumeric[uint32]()
	}
	return Between(uint32(0), uint32(until.Value))
}

// AllUpdates is the fee payer update followed by the flattened forest.
func (c *ZkAppCommand) AllUpdates() []*AccountUpdate {
	fp := c.FeePayerUpdate()
	out := []*AccountUpdate{&fp}
	return append(out, c.AccountUpdates.Flatten()...)
}

// AccountsReferenced lists the distinct account ids the command touches, fee
// payer first, in execution order.
func (c *ZkAppCommand) AccountsReferenced() []types.AccountID {
	seen := make(map[types.AccountIDKey]struct{})
	var out []types.AccountID
	for _, u := range c.AllUpdates() {
		id := u.Body.AccountID()
		k := id.MapKey()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, id)
	}
	return out
}

// SignedCommandKind distinguishes the two classical commands.
type SignedCommandKind uint8

const (
	// KindPayment moves funds between default-token accounts
	KindPayment SignedCommandKind = iota

	// KindStakeDelegation redelegates stake
	KindStakeDelegation
)

// SignedCommandBody is the variant part of a signed command.
type SignedCommandBody struct {
	Kind SignedCommandKind

	// Receiver is the payment target or the new delegate
	Receiver types.CompressedPubKey

	// Amount is the payment amount; unused for delegations
	Amount types.Amount
}

// SignedCommandPayload is everything the legacy signature covers.
type SignedCommandPayload struct {
	Fee        types.Fee
	FeePayer   types.CompressedPubKey
	Nonce      types.Nonce
	ValidUntil types.FlaggedOption[types.Slot]
	Memo       Memo
	Body       SignedCommandBody
}

// SignedCommand is a classical payment or stake delegation.
type SignedCommand struct {
	Payload   SignedCommandPayload
	Signer    types.CompressedPubKey
	Signature signer.Signature
}

// ToFields flattens the payload for legacy signing and receipt chaining.
func (p *SignedCommandPayload) ToFields() []fr.Element {
	var out []fr.Element
	var f fr.Element
	f.SetUint64(uint64(p.Fee))
	out = append(out, f)
	out = append(out, p.FeePayer.ToFields()...)
	f.SetUint64(uint64(p.Nonce))
	out = append(out, f)
	out = append(out, boolField(p.ValidUntil.IsSome))
	f.SetUint64(uint64(p.ValidUntil.Value))
	out = append(out, f)
	out = append(out, p.Memo.Hash())
	f.SetUint64(uint64(p.Body.Kind))
	out = append(out, f)
	out = append(out, p.Body.Receiver.ToFields()...)
	out = append(out, p.Body.Amount.ToField())
	return out
}

// Sign signs the payload with the legacy flavour.
func (c *SignedCommand) Sign(key *signer.PrivateKey) {
	c.Signer = key.PublicKey()
	c.Signature = signer.Sign(key, signer.FlavourLegacy, c.Payload.ToFields()...)
}

// Verify checks the legacy signature; the signer must be the fee payer.
func (c *SignedCommand) Verify() bool {
	if !c.Signer.Equal(c.Payload.FeePayer) {
		return false
	}
	return signer.Verify(c.Signer, c.Signature, signer.FlavourLegacy, c.Payload.ToFields()...)
}

// ReceiptChainCons folds a signed command into a receipt chain hash.
func ReceiptChainCons(payload *SignedCommandPayload, prev fr.Element) fr.Element {
	fields := append(payload.ToFields(), prev)
	return poseidon.Hash(poseidon.TagReceiptUC, fields...)
}

// ZkappReceiptChainCons folds a zkApp command (by its commitment) into a
// receipt chain hash.
func ZkappReceiptChainCons(commitment fr.Element, prev fr.Element) fr.Element {
	return poseidon.Hash(poseidon.TagReceiptUC, commitment, prev)
}

// Transaction is either a signed command or a zkApp command.
type Transaction struct {
	Signed *SignedCommand
	Zkapp  *ZkAppCommand
}

// IsZkapp reports the variant.
func (t *Transaction) IsZkapp() bool {
	return t.Zkapp != nil
}
