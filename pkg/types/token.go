package types

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// TokenID identifies a custom token. The default (MINA) token has id 1.
type TokenID struct {
	F fr.Element
}

// DefaultTokenID returns the id of the default token.
func DefaultTokenID() TokenID {
	var t TokenID
	t.F.SetOne()
	return t
}

// IsDefault reports whether t is the default token.
func (t TokenID) IsDefault() bool {
	return t.F.IsOne()
}

// Equal reports token equality.
func (t TokenID) Equal(o TokenID) bool {
	return t.F.Equal(&o.F)
}

// AccountID names an account: a key holding a balance in one token.
type AccountID struct {
	PublicKey CompressedPubKey
	TokenID   TokenID
}

// NewAccountID builds an AccountID.
func NewAccountID(pk CompressedPubKey, token TokenID) AccountID {
	return AccountID{PublicKey: pk, TokenID: token}
}

// Equal reports account-id equality.
func (a AccountID) Equal(o AccountID) bool {
	return a.PublicKey.Equal(o.PublicKey) && a.TokenID.Equal(o.TokenID)
}

// Compare orders ids by key, then token.
func (a AccountID) Compare(o AccountID) int {
	if c := a.PublicKey.Compare(o.PublicKey); c != 0 {
		return c
	}
	return a.TokenID.F.Cmp(&o.TokenID.F)
}

// MapKey returns a comparable form usable as a Go map key.
func (a AccountID) MapKey() AccountIDKey {
	return AccountIDKey{
		X:     a.PublicKey.X.Bytes(),
		IsOdd: a.PublicKey.IsOdd,
		Token: a.TokenID.F.Bytes(),
	}
}

// AccountIDKey is the comparable image of an AccountID.
type AccountIDKey struct {
	X     [32]byte
	IsOdd bool
	Token [32]byte
}
