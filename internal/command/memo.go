// Package command implements the two transaction kinds the engine applies:
// classical signed commands and zkApp commands with their call forest of
// account updates, preconditions, transaction commitments, and the grouping
// of updates into proof segments.
package command

import (
	"errors"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/minacore/ledger/internal/poseidon"
)

// Command errors
var (
	ErrMemoTooLong = errors.New("memo exceeds 32 bytes")
)

// MemoLen is the fixed memo size: a tag byte, a length byte, and 32 bytes of
// payload.
const MemoLen = 34

// Memo is a user-supplied annotation carried by every command.
type Memo [MemoLen]byte

// EmptyMemo returns the canonical empty memo.
func EmptyMemo() Memo {
	var m Memo
	m[0] = 1
	return m
}

// MemoFromString packs a string into a memo.
func MemoFromString(s string) (Memo, error) {
	if len(s) > 32 {
		return Memo{}, ErrMemoTooLong
	}
	var m Memo
	m[0] = 1
	m[1] = byte(len(s))
	copy(m[2:], s)
	return m, nil
}

// Hash commits to the memo.
func (m Memo) Hash() fr.Element {
	return poseidon.HashBytes(poseidon.TagZkappMemo, m[:])
}
