// Package staged implements the staged-ledger driver: it clones the
// predecessor's mask, applies a block's commands through the application
// engine, absorbs snark work into the scan state, checks the declared hash,
// and manages the snarked/staged ledger sets across root transitions.
package staged

import (
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/minacore/ledger/internal/command"
)

// Job is one unit of proof work visible in the scan state.
type Job struct {
	// StatementHash identifies the work statement
	StatementHash fr.Element

	// Transactions are the commands the work certifies
	Transactions []command.Transaction
}

// SnarkedLedgerParts is what the scan state hands back for reconstructing a
// snarked ledger: the proved transactions to replay on top of the old root.
type SnarkedLedgerParts struct {
	ProvedTransactions []command.Transaction
}

// ScanState is the external scan-state boundary the driver consumes. The
// production implementation lives outside the core.
type ScanState interface {
	// View lists the current jobs
	View() []Job

	// RequiredStateHashes lists the protocol-state hashes proofs refer to
	RequiredStateHashes() []fr.Element

	// ApplyDiff absorbs a block's completed work and emitted commands
	ApplyDiff(diff *Diff) error

	// GetSnarkedLedgerSync returns the replay package for the proofs
	// completed since the last root
	GetSnarkedLedgerSync() (*SnarkedLedgerParts, error)
}

// MemoryScanState is a minimal in-process scan state used by tests and the
// daemon's standalone mode.
type MemoryScanState struct {
	mu     sync.Mutex
	jobs   []Job
	hashes []fr.Element
	proved []command.Transaction
}

// NewMemoryScanState returns an empty scan state.
func NewMemoryScanState() *MemoryScanState {
	return &MemoryScanState{}
}

// View lists the current jobs.
func (s *MemoryScanState) View() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Job(nil), s.jobs...)
}

// RequiredStateHashes lists the referenced state hashes.
func (s *MemoryScanState) RequiredStateHashes() []fr.Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]fr.Element(nil), s.hashes...)
}

// ApplyDiff queues the block's commands as pending work and marks the
// completed work proved.
func (s *MemoryScanState) ApplyDiff(diff *Diff) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, Job{StatementHash: diff.StateHash, Transactions: diff.Commands})
	s.hashes = append(s.hashes, diff.StateHash)
	for i := 0; i < diff.CompletedWork; i++ {
		if len(s.jobs) == 0 {
			break
		}
		done := s.jobs[0]
		s.jobs = s.jobs[1:]
		s.proved = append(s.proved, done.Transactions...)
	}
	return nil
}

// GetSnarkedLedgerSync drains the proved transactions.
func (s *MemoryScanState) GetSnarkedLedgerSync() (*SnarkedLedgerParts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	parts := &SnarkedLedgerParts{ProvedTransactions: s.proved}
	s.proved = nil
	return parts, nil
}
