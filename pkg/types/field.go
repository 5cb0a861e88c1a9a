package types

import (
	"errors"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Field errors
var (
	ErrInvalidBigInt = errors.New("scalar outside the field")
)

// FieldFromBytes decodes a big-endian scalar, rejecting values at or above
// the field modulus instead of silently reducing them.
func FieldFromBytes(b []byte) (fr.Element, error) {
	v := new(big.Int).SetBytes(b)
	if v.Cmp(fr.Modulus()) >= 0 {
		return fr.Element{}, ErrInvalidBigInt
	}
	var e fr.Element
	e.SetBigInt(v)
	return e, nil
}

// FieldToBytes encodes a field element big-endian.
func FieldToBytes(e fr.Element) []byte {
	b := e.Bytes()
	return b[:]
}
