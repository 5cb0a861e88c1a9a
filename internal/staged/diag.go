package staged

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/minacore/ledger/internal/account"
	"github.com/minacore/ledger/internal/ledger"
)

// ApplyContext is the diagnostic dump written when a block's declared hash
// disagrees with the computed one.
type ApplyContext struct {
	Accounts []*account.Account
	Jobs     []Job
	Block    *Block
}

// ReconstructContext is the layout of a reconstruction diagnostic dump. The
// driver writes only ApplyContext dumps; no code path writes this one.
type ReconstructContext struct {
	Accounts []*account.Account
	Parts    *SnarkedLedgerParts
}

// encodeLengthPrefixed gob-encodes the value behind a length prefix, so the
// blobs can be concatenated and split back apart.
func encodeLengthPrefixed(v any) ([]byte, error) {
	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(v); err != nil {
		return nil, err
	}
	var out bytes.Buffer
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(payload.Len()))
	out.Write(n[:])
	out.Write(payload.Bytes())
	return out.Bytes(), nil
}

// CheckpointStore is implemented by stores that also persist ledger
// checkpoints.
type CheckpointStore interface {
	SaveCheckpoint(ctx context.Context, rootHash, accounts []byte) error
}

// saveCheckpoint persists the account set of a freshly reconstructed
// snarked ledger when the configured store supports it.
func (d *Driver) saveCheckpoint(root fr.Element, mask *ledger.Mask) {
	cs, ok := d.store.(CheckpointStore)
	if !ok {
		return
	}
	blob, err := encodeLengthPrefixed(mask.Accounts())
	if err != nil {
		return
	}
	rootBytes := root.Bytes()
	_ = cs.SaveCheckpoint(context.Background(), rootBytes[:], blob)
}

// dumpMismatch writes the apply context for a failed block application. The
// dump is diagnostic only; errors writing it are swallowed.
func (d *Driver) dumpMismatch(ctx context.Context, mask *ledger.Mask, block *Block) {
	if d.store == nil {
		return
	}
	dump := &ApplyContext{
		Accounts: mask.Accounts(),
		Jobs:     d.scan.View(),
		Block:    block,
	}
	blob, err := encodeLengthPrefixed(dump)
	if err != nil {
		return
	}
	_ = d.store.SaveDiagnostic(ctx, "apply_context", blob)
}
