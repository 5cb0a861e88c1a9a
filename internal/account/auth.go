// Package account implements the account record, its permission and timing
// models, the zkApp sub-account, and hashing of all of these into the ledger.
package account

import (
	"errors"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Authorisation errors
var (
	ErrReservedAuthRequired = errors.New("auth required 'both' is reserved")
	ErrInvalidAuthRequired  = errors.New("invalid auth required encoding")
)

// AuthRequired is a permission controller: what authorisation a transaction
// must carry to perform the guarded operation.
type AuthRequired uint8

const (
	// AuthNone requires no authorisation
	AuthNone AuthRequired = iota

	// AuthEither accepts a proof or a signature
	AuthEither

	// AuthProof requires a proof
	AuthProof

	// AuthSignature requires a signature
	AuthSignature

	// AuthImpossible rejects everything
	AuthImpossible

	// AuthBoth is reserved and never satisfiable
	AuthBoth
)

// ControlTag classifies the authorisation actually present on an update.
type ControlTag uint8

const (
	// TagNoneGiven marks an unauthorised update
	TagNoneGiven ControlTag = iota

	// TagSignature marks a signature-authorised update
	TagSignature

	// TagProof marks a proof-authorised update
	TagProof
)

// CheckPermission evaluates the §4.2 truth table. The reserved Both variant
// satisfies nothing.
func CheckPermission(auth AuthRequired, tag ControlTag) bool {
	switch auth {
	case AuthNone:
		return true
	case AuthEither:
		return tag == TagProof || tag == TagSignature
	case AuthProof:
		return tag == TagProof
	case AuthSignature:
		return tag == TagSignature
	case AuthImpossible, AuthBoth:
		return false
	default:
		return false
	}
}

// AuthEncoding is the circuit form of an AuthRequired: three bits
// (constant, signature_necessary, signature_sufficient).
type AuthEncoding struct {
	Constant            bool
	SignatureNecessary  bool
	SignatureSufficient bool
}

// Encode maps an AuthRequired to its bit encoding. Both maps to the
// impossible triple; it cannot be expressed as a satisfiable policy.
func (a AuthRequired) Encode() AuthEncoding {
	switch a {
	case AuthNone:
		return AuthEncoding{Constant: true, SignatureNecessary: false, SignatureSufficient: true}
	case AuthEither:
		return AuthEncoding{Constant: false, SignatureNecessary: false, SignatureSufficient: true}
	case AuthProof:
		return AuthEncoding{Constant: false, SignatureNecessary: false, SignatureSufficient: false}
	case AuthSignature:
		return AuthEncoding{Constant: false, SignatureNecessary: true, SignatureSufficient: true}
	default:
		return AuthEncoding{Constant: true, SignatureNecessary: true, SignatureSufficient: false}
	}
}

// EvalNoProof evaluates the encoded controller against a signature bit, for
// updates that carry no proof.
func (e AuthEncoding) EvalNoProof(signatureVerifies bool) bool {
	return e.SignatureSufficient && (e.Constant || (!e.Constant && signatureVerifies))
}

// EvalProof evaluates the encoded controller for proof-authorised updates.
func (e AuthEncoding) EvalProof() bool {
	return !e.SignatureNecessary && !(e.Constant && !e.SignatureSufficient)
}

// ToFields flattens the encoding for hashing.
func (e AuthEncoding) ToFields() []fr.Element {
	return []fr.Element{boolField(e.Constant), boolField(e.SignatureNecessary), boolField(e.SignatureSufficient)}
}

// VerifiesAgainst reports whether the control tag is admitted by the
// encoding, combining the proof and no-proof evaluations.
func (e AuthEncoding) VerifiesAgainst(tag ControlTag) bool {
	if tag == TagProof {
		return e.EvalProof()
	}
	return e.EvalNoProof(tag == TagSignature)
}

func boolField(b bool) fr.Element {
	var f fr.Element
	if b {
		f.SetOne()
	}
	return f
}
