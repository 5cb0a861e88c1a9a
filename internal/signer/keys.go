// Package signer implements the two signature flavours consumed by the
// transaction core: the legacy scheme over signed-command payloads and the
// commitment scheme over zkApp transaction commitments. Both are Schnorr
// signatures over the embedded twisted Edwards curve, so public keys
// compress to (x, is_odd) with x a field element.
package signer

import (
	"errors"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards"
	"golang.org/x/crypto/blake2b"

	"github.com/minacore/ledger/pkg/types"
)

// Signer errors
var (
	ErrNotOnCurve       = errors.New("compressed key does not decompress onto the curve")
	ErrInvalidScalar    = errors.New("scalar outside the group order")
	ErrInvalidSignature = errors.New("signature rejected")
)

// PrivateKey is a scalar of the embedded curve's prime-order subgroup.
type PrivateKey struct {
	scalar *big.Int
}

// RandSource is the minimal randomness the key sampler needs; a seeded
// *math/rand.Rand satisfies it.
type RandSource interface {
	Read(p []byte) (int, error)
}

// GeneratePrivateKey samples a key from an explicit randomness handle.
// Sampling from the same handle state reproduces the same key.
func GeneratePrivateKey(rng RandSource) (*PrivateKey, error) {
	curve := twistededwards.GetEdwardsCurve()
	buf := make([]byte, 64)
	if _, err := rng.Read(buf); err != nil {
		return nil, err
	}
	s := new(big.Int).SetBytes(buf)
	s.Mod(s, &curve.Order)
	if s.Sign() == 0 {
		s.SetUint64(1)
	}
	return &PrivateKey{scalar: s}, nil
}

// PrivateKeyFromBytes builds a key from a big-endian scalar.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	curve := twistededwards.GetEdwardsCurve()
	s := new(big.Int).SetBytes(b)
	if s.Sign() == 0 || s.Cmp(&curve.Order) >= 0 {
		return nil, ErrInvalidScalar
	}
	return &PrivateKey{scalar: s}, nil
}

// PublicPoint returns the full public key point.
func (k *PrivateKey) PublicPoint() twistededwards.PointAffine {
	curve := twistededwards.GetEdwardsCurve()
	var p twistededwards.PointAffine
	p.ScalarMultiplication(&curve.Base, k.scalar)
	return p
}

// PublicKey returns the compressed public key.
func (k *PrivateKey) PublicKey() types.CompressedPubKey {
	return Compress(k.PublicPoint())
}

// Compress projects a point to (x, is_odd).
func Compress(p twistededwards.PointAffine) types.CompressedPubKey {
	return types.CompressedPubKey{X: p.X, IsOdd: isOdd(p.Y)}
}

// Decompress recovers the full point from a compressed key. On the Edwards
// curve a*x^2 + y^2 = 1 + d*x^2*y^2, so y^2 = (1 - a*x^2) / (1 - d*x^2).
func Decompress(k types.CompressedPubKey) (twistededwards.PointAffine, error) {
	curve := twistededwards.GetEdwardsCurve()
	var x2, num, den, y2, y fr.Element
	x2.Square(&k.X)

	var one fr.Element
	one.SetOne()
	num.Mul(&curve.A, &x2)
	num.Sub(&one, &num)
	den.Mul(&curve.D, &x2)
	den.Sub(&one, &den)
	if den.IsZero() {
		return twistededwards.PointAffine{}, ErrNotOnCurve
	}
	den.Inverse(&den)
	y2.Mul(&num, &den)
	if y.Sqrt(&y2) == nil {
		return twistededwards.PointAffine{}, ErrNotOnCurve
	}
	if isOdd(y) != k.IsOdd {
		y.Neg(&y)
	}
	p := twistededwards.PointAffine{X: k.X, Y: y}
	if !p.IsOnCurve() {
		return twistededwards.PointAffine{}, ErrNotOnCurve
	}
	return p, nil
}

// isOdd reports the parity of the canonical byte form.
func isOdd(e fr.Element) bool {
	b := e.Bytes()
	return b[len(b)-1]&1 == 1
}

// deriveNonce derives the deterministic signing nonce from the key and
// message, reduced into the group order.
func deriveNonce(k *PrivateKey, tag string, msg []fr.Element) *big.Int {
	curve := twistededwards.GetEdwardsCurve()
	h, _ := blake2b.New512(nil)
	h.Write(k.scalar.Bytes())
	h.Write([]byte(tag))
	for _, m := range msg {
		b := m.Bytes()
		h.Write(b[:])
	}
	n := new(big.Int).SetBytes(h.Sum(nil))
	n.Mod(n, &curve.Order)
	if n.Sign() == 0 {
		n.SetUint64(1)
	}
	return n
}
