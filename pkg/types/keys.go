// Package types defines the primitive value types shared by the ledger and
// transaction-application core: compressed public keys, token identifiers,
// amounts and signed amounts, slots, nonces, and failure tables.
package types

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// CompressedPubKey is a public key compressed to its x coordinate plus the
// parity of y. The empty key is (0, false).
type CompressedPubKey struct {
	// X is the affine x coordinate as a field element
	X fr.Element

	// IsOdd is the parity bit of the y coordinate
	IsOdd bool
}

// EmptyKey returns the distinguished empty key.
func EmptyKey() CompressedPubKey {
	return CompressedPubKey{}
}

// IsEmpty reports whether k is the empty key.
func (k CompressedPubKey) IsEmpty() bool {
	return k.X.IsZero() && !k.IsOdd
}

// Equal reports field-for-field equality.
func (k CompressedPubKey) Equal(o CompressedPubKey) bool {
	return k.X.Equal(&o.X) && k.IsOdd == o.IsOdd
}

// Compare orders keys lexicographically on (x, is_odd).
func (k CompressedPubKey) Compare(o CompressedPubKey) int {
	if c := k.X.Cmp(&o.X); c != 0 {
		return c
	}
	switch {
	case k.IsOdd == o.IsOdd:
		return 0
	case o.IsOdd:
		return -1
	default:
		return 1
	}
}

// OddField returns the parity bit as a field element (0 or 1).
func (k CompressedPubKey) OddField() fr.Element {
	var f fr.Element
	if k.IsOdd {
		f.SetOne()
	}
	return f
}

// ToFields flattens the key for hashing.
func (k CompressedPubKey) ToFields() []fr.Element {
	return []fr.Element{k.X, k.OddField()}
}
