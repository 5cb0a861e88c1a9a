package zkapp

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/minacore/ledger/internal/command"
	"github.com/minacore/ledger/internal/signer"
	"github.com/minacore/ledger/pkg/types"
)

// WitnessGenerator receives every value the witness layout needs. The
// concrete executor plugs in a sink; the witness executor records.
type WitnessGenerator interface {
	// Exists pushes field elements onto the trace
	Exists(fs ...fr.Element)

	// ExistsBool pushes flags onto the trace
	ExistsBool(bs ...bool)
}

// AuthResult is the outcome of authorisation checking for one update.
type AuthResult struct {
	ProofVerifies     bool
	SignatureVerifies bool
}

// ProofStatement is the claim a side-loaded proof must certify; the external
// verifier consumes it.
type ProofStatement struct {
	AccountUpdateHash fr.Element
	SubForestHash     fr.Element
	VkHash            fr.Element
}

// Backend supplies the executor-specific capabilities of the state machine:
// the witness sink and the authorisation checker.
type Backend interface {
	Witness() WitnessGenerator

	// CheckAuthorization evaluates the update's authorisation over the
	// chosen commitment and captures proof statements for later
	// verification.
	CheckAuthorization(u *command.AccountUpdate, forest command.CallForest, commitment fr.Element) (AuthResult, error)
}

// Branch evaluates both closures in a fixed order (onTrue first) and selects
// by the condition. Witness values pushed inside the closures land in the
// trace in the same order in both executors; only the selection differs.
// Never split a branch into a bare if/else in engine code: the untaken side
// must still run.
func Branch[T any](w WitnessGenerator, cond bool, onTrue, onFalse func() T) T {
	tv := onTrue()
	fv := onFalse()
	if cond {
		return tv
	}
	return fv
}

// BranchField is Branch specialised to a field element, recording the
// selected value.
func BranchField(w WitnessGenerator, cond bool, onTrue, onFalse func() fr.Element) fr.Element {
	v := Branch(w, cond, onTrue, onFalse)
	w.Exists(v)
	return v
}

// CheckedKeyEqual compares compressed keys. When bIsConstant is set the
// comparison treats b as a circuit constant, which changes the witness
// layout but not the result; callers pass true exactly when b is the empty
// key.
func CheckedKeyEqual(w WitnessGenerator, a, b types.CompressedPubKey, bIsConstant bool) bool {
	if !bIsConstant {
		w.Exists(b.X)
		w.ExistsBool(b.IsOdd)
	}
	eq := a.Equal(b)
	w.ExistsBool(eq)
	return eq
}

// noopWitness drops everything; the concrete executor's sink.
type noopWitness struct{}

func (noopWitness) Exists(...fr.Element) {}
func (noopWitness) ExistsBool(...bool)   {}

// ConcreteBackend drives the real ledger mutation.
type ConcreteBackend struct {
	// PendingProofs accumulates side-loaded proof statements for the
	// external verifier
	PendingProofs []ProofStatement
}

// NewConcreteBackend returns a fresh concrete executor backend.
func NewConcreteBackend() *ConcreteBackend {
	return &ConcreteBackend{}
}

// Witness returns the discarding sink.
func (b *ConcreteBackend) Witness() WitnessGenerator {
	return noopWitness{}
}

// CheckAuthorization verifies signatures and captures proof statements.
func (b *ConcreteBackend) CheckAuthorization(u *command.AccountUpdate, forest command.CallForest, commitment fr.Element) (AuthResult, error) {
	return checkAuthorization(&b.PendingProofs, u, forest, commitment)
}

// Trace is the recorded witness of one segment run.
type Trace struct {
	Fields []fr.Element
}

// Exists appends to the trace.
func (t *Trace) Exists(fs ...fr.Element) {
	t.Fields = append(t.Fields, fs...)
}

// ExistsBool appends flags as 0/1 field elements.
func (t *Trace) ExistsBool(bs ...bool) {
	for _, b := range bs {
		var f fr.Element
		if b {
			f.SetOne()
		}
		t.Fields = append(t.Fields, f)
	}
}

// WitnessBackend runs the identical state machine while recording the
// witness trace.
type WitnessBackend struct {
	Trace         Trace
	PendingProofs []ProofStatement
}

// NewWitnessBackend returns a fresh witness executor backend.
func NewWitnessBackend() *WitnessBackend {
	return &WitnessBackend{}
}

// Witness returns the recording sink.
func (b *WitnessBackend) Witness() WitnessGenerator {
	return &b.Trace
}

// CheckAuthorization mirrors the concrete backend and records the
// commitment.
func (b *WitnessBackend) CheckAuthorization(u *command.AccountUpdate, forest command.CallForest, commitment fr.Element) (AuthResult, error) {
	b.Trace.Exists(commitment)
	return checkAuthorization(&b.PendingProofs, u, forest, commitment)
}

// checkAuthorization implements the shared semantics: a proof update has its
// statement captured, a signature update is verified over the commitment, a
// bare update verifies nothing.
func checkAuthorization(pending *[]ProofStatement, u *command.AccountUpdate, forest command.CallForest, commitment fr.Element) (AuthResult, error) {
	switch u.Body.AuthorizationKind {
	case command.AuthKindProof:
		*pending = append(*pending, ProofStatement{
			AccountUpdateHash: u.Digest(),
			SubForestHash:     forest.Hash(),
			VkHash:            u.Body.VkHash,
		})
		return AuthResult{ProofVerifies: true}, nil
	case command.AuthKindSignature:
		ok := signer.Verify(u.Body.PublicKey, u.Authorization.Signature, signer.FlavourCommitment, commitment)
		return AuthResult{SignatureVerifies: ok}, nil
	default:
		return AuthResult{}, nil
	}
}
