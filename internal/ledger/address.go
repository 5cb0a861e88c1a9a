// Package ledger implements the fixed-depth sparse Merkle ledger: a root
// store plus stacked mask overlays with lazy hash caching, inclusion proofs,
// and transactional commit/unregister.
package ledger

import (
	"errors"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/minacore/ledger/internal/account"
	"github.com/minacore/ledger/internal/poseidon"
)

// Ledger errors
var (
	ErrOutOfLeaves      = errors.New("ledger is out of leaves")
	ErrBadAddress       = errors.New("address outside the tree")
	ErrAccountNotFound  = errors.New("account not found")
	ErrMaskHasChildren  = errors.New("mask still has registered children")
	ErrMaskNotRegistered = errors.New("mask is not registered")
)

// DefaultDepth is the production ledger depth.
const DefaultDepth = 35

// Address names a node in the tree as (depth from root, index within level).
// Depth D addresses are leaves; depth 0 index 0 is the root.
type Address struct {
	Depth int
	Index uint64
}

// LeafAddress returns the address of leaf i in a depth-d tree.
func LeafAddress(depth int, i uint64) Address {
	return Address{Depth: depth, Index: i}
}

// Root is the root address.
func Root() Address {
	return Address{}
}

// Parent returns the enclosing node's address.
func (a Address) Parent() Address {
	return Address{Depth: a.Depth - 1, Index: a.Index >> 1}
}

// ChildLeft and ChildRight descend one level.
func (a Address) ChildLeft() Address  { return Address{Depth: a.Depth + 1, Index: a.Index << 1} }
func (a Address) ChildRight() Address { return Address{Depth: a.Depth + 1, Index: a.Index<<1 | 1} }

// IsRightChild reports whether the node is its parent's right child.
func (a Address) IsRightChild() bool {
	return a.Index&1 == 1
}

// PathElem is one step of a Merkle inclusion proof: the sibling hash and
// whether it sits on the left of the running hash.
type PathElem struct {
	Left bool
	Hash fr.Element
}

// VerifyMerklePath folds a leaf hash through a path and returns the implied
// root. Path elements run from the leaf's sibling up to the root's children.
func VerifyMerklePath(leaf fr.Element, path []PathElem) fr.Element {
	acc := leaf
	for height, e := range path {
		tag := poseidon.PrefixMklTree(height)
		if e.Left {
			acc = poseidon.HashTwo(tag, e.Hash, acc)
		} else {
			acc = poseidon.HashTwo(tag, acc, e.Hash)
		}
	}
	return acc
}

// emptyHashes caches the empty-subtree hash per height. Height 0 is the hash
// of the empty account.
var emptyHashes struct {
	mu    sync.Mutex
	table []fr.Element
}

// EmptyHashAt returns the hash of an empty subtree of the given height.
func EmptyHashAt(height int) fr.Element {
	emptyHashes.mu.Lock()
	defer emptyHashes.mu.Unlock()
	for len(emptyHashes.table) <= height {
		h := len(emptyHashes.table)
		if h == 0 {
			emptyHashes.table = append(emptyHashes.table, account.Empty().Hash())
			continue
		}
		prev := emptyHashes.table[h-1]
		emptyHashes.table = append(emptyHashes.table,
			poseidon.HashTwo(poseidon.PrefixMklTree(h-1), prev, prev))
	}
	return emptyHashes.table[height]
}
