package signer

import (
	"crypto/subtle"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards"

	"github.com/minacore/ledger/internal/poseidon"
	"github.com/minacore/ledger/pkg/types"
)

// Signature is a Schnorr (r, s) pair: the x coordinate of the commitment
// point and the response scalar.
type Signature struct {
	R fr.Element
	S fr.Element
}

// Flavour selects the domain the signature lives in.
type Flavour uint8

const (
	// FlavourLegacy signs classical signed-command payloads
	FlavourLegacy Flavour = iota

	// FlavourCommitment signs zkApp transaction commitments
	FlavourCommitment
)

func (f Flavour) tag() string {
	if f == FlavourLegacy {
		return poseidon.TagSignatureLegacy
	}
	return poseidon.TagSignature
}

// challenge folds the commitment x, the signer key, and the message into a
// scalar.
func challenge(flavour Flavour, rx fr.Element, pub types.CompressedPubKey, msg []fr.Element) *big.Int {
	curve := twistededwards.GetEdwardsCurve()
	fields := make([]fr.Element, 0, len(msg)+3)
	fields = append(fields, rx, pub.X, pub.OddField())
	fields = append(fields, msg...)
	e := poseidon.Hash(flavour.tag(), fields...)
	var eb big.Int
	e.BigInt(&eb)
	eb.Mod(&eb, &curve.Order)
	return &eb
}

// Sign produces a signature over the message fields.
func Sign(k *PrivateKey, flavour Flavour, msg ...fr.Element) Signature {
	curve := twistededwards.GetEdwardsCurve()
	nonce := deriveNonce(k, flavour.tag(), msg)

	var r twistededwards.PointAffine
	r.ScalarMultiplication(&curve.Base, nonce)

	e := challenge(flavour, r.X, k.PublicKey(), msg)
	s := new(big.Int).Mul(e, k.scalar)
	s.Add(s, nonce)
	s.Mod(s, &curve.Order)

	var sig Signature
	sig.R = r.X
	sig.S.SetBigInt(s)
	return sig
}

// Verify checks a signature against a compressed public key. Comparison of
// the recomputed commitment is constant time for equal-length inputs.
func Verify(pub types.CompressedPubKey, sig Signature, flavour Flavour, msg ...fr.Element) bool {
	point, err := Decompress(pub)
	if err != nil {
		return false
	}
	curve := twistededwards.GetEdwardsCurve()

	e := challenge(flavour, sig.R, pub, msg)
	var sb big.Int
	sig.S.BigInt(&sb)
	if sb.Cmp(&curve.Order) >= 0 {
		return false
	}

	// R' = s*B - e*P
	var sB, eP twistededwards.PointAffine
	sB.ScalarMultiplication(&curve.Base, &sb)
	eP.ScalarMultiplication(&point, e)
	eP.Neg(&eP)
	sB.Add(&sB, &eP)

	got := sB.X.Bytes()
	want := sig.R.Bytes()
	return subtle.ConstantTimeCompare(got[:], want[:]) == 1
}

// DummySignature returns the placeholder signature carried by updates whose
// authorisation is not a signature.
func DummySignature() Signature {
	var sig Signature
	sig.S.SetOne()
	return sig
}
