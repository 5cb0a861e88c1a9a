package types

import (
	"math"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Amount is an unsigned quantity of tokens in base units.
type Amount uint64

// Balance is an account balance in base units.
type Balance uint64

// Fee is a transaction fee in base units.
type Fee uint64

// Slot is a global slot number.
type Slot uint32

// Nonce is an account nonce.
type Nonce uint32

// Length is a block-height style counter.
type Length uint32

// TxnVersion tags the protocol version a permission set was written under.
type TxnVersion uint32

// CurrentTxnVersion is the transaction version of this protocol release.
const CurrentTxnVersion TxnVersion = 3

// MaxSlot is the largest representable slot.
const MaxSlot Slot = math.MaxUint32

// AddChecked returns a+b and reports overflow.
func (a Amount) AddChecked(b Amount) (Amount, bool) {
	s := a + b
	return s, s >= a
}

// SubChecked returns a-b and reports underflow.
func (a Amount) SubChecked(b Amount) (Amount, bool) {
	if b > a {
		return 0, false
	}
	return a - b, true
}

// ToField embeds the amount into the field.
func (a Amount) ToField() fr.Element {
	var f fr.Element
	f.SetUint64(uint64(a))
	return f
}

// AddAmountChecked returns the balance plus an amount, reporting overflow.
func (b Balance) AddAmountChecked(a Amount) (Balance, bool) {
	s := b + Balance(a)
	return s, s >= b
}

// SubAmountChecked returns the balance minus an amount, reporting underflow.
func (b Balance) SubAmountChecked(a Amount) (Balance, bool) {
	if Balance(a) > b {
		return 0, false
	}
	return b - Balance(a), true
}

// AddSignedChecked applies a signed delta to the balance.
func (b Balance) AddSignedChecked(d Signed) (Balance, bool) {
	if d.Sgn == Pos {
		return b.AddAmountChecked(d.Magnitude)
	}
	return b.SubAmountChecked(d.Magnitude)
}

// ToField embeds the balance into the field.
func (b Balance) ToField() fr.Element {
	var f fr.Element
	f.SetUint64(uint64(b))
	return f
}

// Sgn is the sign of a signed amount.
type Sgn int8

const (
	// Pos marks a non-negative amount
	Pos Sgn = 1

	// Neg marks a negative amount
	Neg Sgn = -1
)

// ToField embeds the sign into the field (1 or -1).
func (s Sgn) ToField() fr.Element {
	var f fr.Element
	f.SetOne()
	if s == Neg {
		f.Neg(&f)
	}
	return f
}

// Signed is a sign-magnitude amount. Zero is canonically positive.
type Signed struct {
	Magnitude Amount
	Sgn       Sgn
}

// SignedZero returns the canonical zero.
func SignedZero() Signed {
	return Signed{Magnitude: 0, Sgn: Pos}
}

// SignedOf builds a positive signed amount.
func SignedOf(a Amount) Signed {
	return Signed{Magnitude: a, Sgn: Pos}
}

// Negate flips the sign, keeping zero canonical.
func (s Signed) Negate() Signed {
	if s.Magnitude == 0 {
		return SignedZero()
	}
	return Signed{Magnitude: s.Magnitude, Sgn: -s.Sgn}
}

// IsZero reports whether the magnitude is zero.
func (s Signed) IsZero() bool {
	return s.Magnitude == 0
}

// IsNeg reports whether s is strictly negative.
func (s Signed) IsNeg() bool {
	return s.Sgn == Neg && s.Magnitude != 0
}

// IsNonNeg reports whether s is zero or positive.
func (s Signed) IsNonNeg() bool {
	return !s.IsNeg()
}

// Equal reports equality after zero canonicalisation.
func (s Signed) Equal(o Signed) bool {
	if s.Magnitude == 0 && o.Magnitude == 0 {
		return true
	}
	return s.Magnitude == o.Magnitude && s.Sgn == o.Sgn
}

// AddFlagged adds two signed amounts and reports overflow of the magnitude.
func (s Signed) AddFlagged(o Signed) (Signed, bool) {
	if s.Sgn == o.Sgn {
		m, ok := s.Magnitude.AddChecked(o.Magnitude)
		if !ok {
			return Signed{Magnitude: m, Sgn: s.Sgn}, true
		}
		if m == 0 {
			return SignedZero(), false
		}
		return Signed{Magnitude: m, Sgn: s.Sgn}, false
	}
	// Opposite signs: subtract the smaller magnitude from the larger.
	if s.Magnitude >= o.Magnitude {
		m := s.Magnitude - o.Magnitude
		if m == 0 {
			return SignedZero(), false
		}
		return Signed{Magnitude: m, Sgn: s.Sgn}, false
	}
	return Signed{Magnitude: o.Magnitude - s.Magnitude, Sgn: o.Sgn}, false
}

// ToFields flattens the signed amount for hashing as (magnitude, sgn).
func (s Signed) ToFields() []fr.Element {
	return []fr.Element{s.Magnitude.ToField(), s.Sgn.ToField()}
}
