package zkapp

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Compile once, prove a satisfiable assignment, reject an unsatisfiable one.
func TestAuthorizationCircuit(t *testing.T) {
	if testing.Short() {
		t.Skip("groth16 setup is slow")
	}
	cm := NewCircuitManager()
	if err := cm.Compile(); err != nil {
		t.Fatalf("compile: %v", err)
	}

	// Signature-gated controller satisfied by a verifying signature:
	// encoding (constant=0, necessary=1, sufficient=1).
	good := &AuthorizationCircuit{
		Commitment:          7,
		CommitmentAfter:     7,
		ProofVerifies:       0,
		UpdateHash:          1,
		SubForestHash:       2,
		VkHash:              3,
		StatementAnchor:     6,
		Constant:            0,
		SignatureNecessary:  1,
		SignatureSufficient: 1,
		SignatureVerifies:   1,
	}
	proof, err := cm.Prove(good)
	if err != nil {
		t.Fatalf("prove: %v", err)
	}
	if err := cm.Verify(proof, good); err != nil {
		t.Fatalf("verify: %v", err)
	}

	// The same controller without a signature must not prove: the
	// evaluation comes out 0 and the constraint system is unsatisfiable.
	bad := &AuthorizationCircuit{
		Commitment:          7,
		CommitmentAfter:     7,
		ProofVerifies:       0,
		UpdateHash:          1,
		SubForestHash:       2,
		VkHash:              3,
		StatementAnchor:     6,
		Constant:            0,
		SignatureNecessary:  1,
		SignatureSufficient: 1,
		SignatureVerifies:   0,
	}
	if _, err := cm.Prove(bad); err == nil {
		t.Fatal("unsatisfiable assignment proved")
	}
}

// The statements the engine captures for proof-authorised updates flow
// through the verifier boundary.
func TestVerifyStatements(t *testing.T) {
	if testing.Short() {
		t.Skip("groth16 setup is slow")
	}
	cm := NewCircuitManager()

	var u, s, v fr.Element
	u.SetUint64(11)
	s.SetUint64(22)
	v.SetUint64(33)
	stmts := []ProofStatement{
		{AccountUpdateHash: u, SubForestHash: s, VkHash: v},
	}
	if err := cm.VerifyStatements(stmts); err != nil {
		t.Fatalf("verify statements: %v", err)
	}

	// An empty list is a no-op and must not force a compile.
	empty := NewCircuitManager()
	if err := empty.VerifyStatements(nil); err != nil {
		t.Fatal(err)
	}
	if empty.compiled != nil {
		t.Fatal("empty statement list compiled the circuit")
	}
}
