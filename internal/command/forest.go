package command

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/minacore/ledger/internal/poseidon"
)

// Node is one tree of the call forest: an account update plus the updates it
// spawns.
type Node struct {
	Update AccountUpdate
	Calls  CallForest

	// stackHash caches the hash of the forest suffix starting at this
	// node; zero means not yet computed
	stackHash  fr.Element
	hashCached bool
}

// CallForest is an ordered list of update trees.
type CallForest []*Node

// NewNode builds a tree from an update and its children.
func NewNode(u AccountUpdate, calls CallForest) *Node {
	return &Node{Update: u, Calls: calls}
}

// TreeHash commits to one tree: the update body and its subforest.
func (n *Node) TreeHash() fr.Element {
	return poseidon.HashTwo(poseidon.TagAcctUpdateNode, n.Update.Digest(), n.Calls.Hash())
}

// Hash commits to the forest: zero for empty, else a cons of the head tree
// over the tail.
func (f CallForest) Hash() fr.Element {
	if len(f) == 0 {
		return fr.Element{}
	}
	head := f[0]
	if head.hashCached {
		return head.stackHash
	}
	tail := f[1:].Hash()
	h := poseidon.HashTwo(poseidon.TagAcctUpdateCons, head.TreeHash(), tail)
	head.stackHash = h
	head.hashCached = true
	return h
}

// InvalidateHashes drops every cached stack hash in the forest.
func (f CallForest) InvalidateHashes() {
	for _, n := range f {
		n.hashCached = false
		n.stackHash = fr.Element{}
		n.Calls.InvalidateHashes()
	}
}

// IsEmpty reports an empty forest.
func (f CallForest) IsEmpty() bool {
	return len(f) == 0
}

// Pop splits the forest into its first update, that update's subforest, and
// the remaining forest.
func (f CallForest) Pop() (*Node, CallForest, CallForest) {
	if len(f) == 0 {
		return nil, nil, nil
	}
	return f[0], f[0].Calls, f[1:]
}

// Flatten lists the updates in execution (preorder) order, fixing each
// body's CallDepth to its nesting depth.
func (f CallForest) Flatten() []*AccountUpdate {
	var out []*AccountUpdate
	var walk func(forest CallForest, depth int)
	walk = func(forest CallForest, depth int) {
		for _, n := range forest {
			n.Update.Body.CallDepth = depth
			out = append(out, &n.Update)
			walk(n.Calls, depth+1)
		}
	}
	walk(f, 0)
	return out
}

// Count returns the number of updates in the forest.
func (f CallForest) Count() int {
	n := 0
	for _, t := range f {
		n += 1 + t.Calls.Count()
	}
	return n
}

// Depth returns the deepest nesting level, zero for an empty forest.
func (f CallForest) Depth() int {
	d := 0
	for _, t := range f {
		if sub := 1 + t.Calls.Depth(); sub > d {
			d = sub
		}
	}
	return d
}

// ForEach visits every update in execution order.
func (f CallForest) ForEach(fn func(*AccountUpdate)) {
	for _, u := range f.Flatten() {
		fn(u)
	}
}
