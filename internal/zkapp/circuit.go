package zkapp

import (
	"errors"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// Circuit errors
var (
	ErrCircuitNotCompiled      = errors.New("circuit not compiled")
	ErrProofGenerationFailed   = errors.New("proof generation failed")
	ErrProofVerificationFailed = errors.New("proof verification failed")
	ErrVerifierReject          = errors.New("side-loaded proof verifier rejected the statement")
)

// AuthorizationCircuit is the in-circuit form of the permission evaluation:
// given the (constant, signature_necessary, signature_sufficient) encoding of
// a controller and the verification bits, it constrains the update to be
// authorised, the commitment to be carried unchanged through the segment,
// and the side-loaded statement legs to be bound under one public anchor.
type AuthorizationCircuit struct {
	// Public inputs
	Commitment      frontend.Variable `gnark:",public"`
	CommitmentAfter frontend.Variable `gnark:",public"`
	ProofVerifies   frontend.Variable `gnark:",public"`
	UpdateHash      frontend.Variable `gnark:",public"`
	SubForestHash   frontend.Variable `gnark:",public"`
	VkHash          frontend.Variable `gnark:",public"`
	StatementAnchor frontend.Variable `gnark:",public"`

	// Private inputs
	Constant            frontend.Variable
	SignatureNecessary  frontend.Variable
	SignatureSufficient frontend.Variable
	SignatureVerifies   frontend.Variable
}

// Define implements the circuit constraints.
func (c *AuthorizationCircuit) Define(api frontend.API) error {
	for _, b := range []frontend.Variable{
		c.Constant, c.SignatureNecessary, c.SignatureSufficient,
		c.SignatureVerifies, c.ProofVerifies,
	} {
		api.AssertIsBoolean(b)
	}

	// eval_no_proof = signature_sufficient ∧ (constant ∨ (¬constant ∧ signature_verifies))
	notConstant := api.Sub(1, c.Constant)
	inner := api.Mul(notConstant, c.SignatureVerifies)
	orTerm := api.Sub(api.Add(c.Constant, inner), api.Mul(c.Constant, inner))
	evalNoProof := api.Mul(c.SignatureSufficient, orTerm)

	// eval_proof = ¬signature_necessary ∧ ¬(constant ∧ ¬signature_sufficient)
	notNecessary := api.Sub(1, c.SignatureNecessary)
	blocked := api.Mul(c.Constant, api.Sub(1, c.SignatureSufficient))
	evalProof := api.Mul(notNecessary, api.Sub(1, blocked))

	// authorised = proof_verifies ? eval_proof : eval_no_proof
	authorised := api.Select(c.ProofVerifies, evalProof, evalNoProof)
	api.AssertIsEqual(authorised, 1)

	// The commitment is threaded through the segment untouched.
	api.AssertIsEqual(c.Commitment, c.CommitmentAfter)

	// The statement legs are bound together under the anchor.
	api.AssertIsEqual(api.Add(c.UpdateHash, c.SubForestHash, c.VkHash), c.StatementAnchor)
	return nil
}

// CompiledCircuit holds a compiled constraint system with its keys.
type CompiledCircuit struct {
	CCS          constraint.ConstraintSystem
	ProvingKey   groth16.ProvingKey
	VerifyingKey groth16.VerifyingKey
}

// CircuitManager compiles and caches the authorisation circuit and runs the
// groth16 prove/verify pair over it. It stands in for the external prover at
// the statement boundary.
type CircuitManager struct {
	mu       sync.Mutex
	compiled *CompiledCircuit
}

// NewCircuitManager returns an empty manager.
func NewCircuitManager() *CircuitManager {
	return &CircuitManager{}
}

// Compile builds and caches the constraint system and keys.
func (cm *CircuitManager) Compile() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.compiled != nil {
		return nil
	}
	var circuit AuthorizationCircuit
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &circuit)
	if err != nil {
		return err
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return err
	}
	cm.compiled = &CompiledCircuit{CCS: ccs, ProvingKey: pk, VerifyingKey: vk}
	return nil
}

// Prove generates a proof for an assignment.
func (cm *CircuitManager) Prove(assignment *AuthorizationCircuit) (groth16.Proof, error) {
	cm.mu.Lock()
	compiled := cm.compiled
	cm.mu.Unlock()
	if compiled == nil {
		return nil, ErrCircuitNotCompiled
	}
	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, err
	}
	proof, err := groth16.Prove(compiled.CCS, compiled.ProvingKey, witness)
	if err != nil {
		return nil, errors.Join(ErrProofGenerationFailed, err)
	}
	return proof, nil
}

// statementAssignment lowers a captured side-loaded statement into the
// circuit: a Proof-controller encoding under a verifying proof, with the
// update hash threaded as the commitment and the statement legs anchored.
func statementAssignment(s ProofStatement) *AuthorizationCircuit {
	var anchor fr.Element
	anchor.Add(&s.AccountUpdateHash, &s.SubForestHash)
	anchor.Add(&anchor, &s.VkHash)
	updateHash := s.AccountUpdateHash.BigInt(new(big.Int))
	return &AuthorizationCircuit{
		Commitment:          updateHash,
		CommitmentAfter:     updateHash,
		ProofVerifies:       1,
		UpdateHash:          updateHash,
		SubForestHash:       s.SubForestHash.BigInt(new(big.Int)),
		VkHash:              s.VkHash.BigInt(new(big.Int)),
		StatementAnchor:     anchor.BigInt(new(big.Int)),
		Constant:            0,
		SignatureNecessary:  0,
		SignatureSufficient: 0,
		SignatureVerifies:   0,
	}
}

// VerifyStatements proves and verifies every captured side-loaded statement.
// It is the boundary the engine's pending-proof list feeds into; a rejected
// statement surfaces as ErrVerifierReject.
func (cm *CircuitManager) VerifyStatements(stmts []ProofStatement) error {
	if len(stmts) == 0 {
		return nil
	}
	if err := cm.Compile(); err != nil {
		return err
	}
	for _, s := range stmts {
		assignment := statementAssignment(s)
		proof, err := cm.Prove(assignment)
		if err != nil {
			return errors.Join(ErrVerifierReject, err)
		}
		if err := cm.Verify(proof, assignment); err != nil {
			return errors.Join(ErrVerifierReject, err)
		}
	}
	return nil
}

// Verify checks a proof against the public part of an assignment.
func (cm *CircuitManager) Verify(proof groth16.Proof, assignment *AuthorizationCircuit) error {
	cm.mu.Lock()
	compiled := cm.compiled
	cm.mu.Unlock()
	if compiled == nil {
		return ErrCircuitNotCompiled
	}
	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return err
	}
	if err := groth16.Verify(proof, compiled.VerifyingKey, witness); err != nil {
		return errors.Join(ErrProofVerificationFailed, err)
	}
	return nil
}
