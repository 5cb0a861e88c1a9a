package ledger

import (
	"fmt"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/google/uuid"

	"github.com/minacore/ledger/internal/account"
	"github.com/minacore/ledger/internal/poseidon"
	"github.com/minacore/ledger/pkg/types"
)

// AddOrExisted is the result of GetOrCreateAccount.
type AddOrExisted uint8

const (
	// Added means a fresh leaf was allocated
	Added AddOrExisted = iota

	// Existed means the id already had a leaf
	Existed
)

// UnregisterBehavior selects how a mask detaches from the stack.
type UnregisterBehavior uint8

const (
	// UnregisterCheck fails if the mask still has children
	UnregisterCheck UnregisterBehavior = iota

	// UnregisterRecursive detaches the whole subtree of masks
	UnregisterRecursive

	// UnregisterReparent moves children onto this mask's parent; only
	// sound when this mask holds no uncommitted edits
	UnregisterReparent
)

type nodeKey struct {
	depth int
	index uint64
}

type idEntry struct {
	index   uint64
	removed bool
}

// IndexedAccount pairs a leaf index with an account for batched writes.
type IndexedAccount struct {
	Index   uint64
	Account *account.Account
}

// MaybeLocation is one result of a batched location lookup.
type MaybeLocation struct {
	ID    types.AccountID
	Index uint64
	Found bool
}

// Mask is one layer of the ledger stack: a sparse overlay of account and
// hash edits over a parent mask. A mask with no parent is a root ledger.
// Reads fall through to the parent where the overlay is silent; hashing
// always sees the topmost content.
type Mask struct {
	mu sync.RWMutex

	id       uuid.UUID
	depth    int
	parent   *Mask
	registry *Registry
	children map[uuid.UUID]*Mask

	// accounts is the leaf overlay; a nil value is a tombstone shadowing
	// the parent's account
	accounts map[uint64]*account.Account

	// ids overlays the id -> leaf index mapping
	ids map[types.AccountIDKey]idEntry

	// hashes caches node hashes valid for this mask's content
	hashes map[nodeKey]fr.Element

	// dirty marks nodes whose inherited cache entries are stale: every
	// ancestor (leaf included) of an overlay edit
	dirty map[nodeKey]struct{}

	// fill is this layer's lower bound on the next fresh leaf index
	fill uint64
}

// NewRoot creates a root ledger of the given depth and registers it.
func NewRoot(depth int, reg *Registry) *Mask {
	if reg == nil {
		reg = DefaultRegistry()
	}
	m := newMask(depth, nil, reg)
	reg.register(m)
	return m
}

// RegisterMask creates a child overlay of m and registers it.
func (m *Mask) RegisterMask() *Mask {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := newMask(m.depth, m, m.registry)
	m.children[c.id] = c
	m.registry.register(c)
	return c
}

func newMask(depth int, parent *Mask, reg *Registry) *Mask {
	return &Mask{
		id:       uuid.New(),
		depth:    depth,
		parent:   parent,
		registry: reg,
		children: make(map[uuid.UUID]*Mask),
		accounts: make(map[uint64]*account.Account),
		ids:      make(map[types.AccountIDKey]idEntry),
		hashes:   make(map[nodeKey]fr.Element),
		dirty:    make(map[nodeKey]struct{}),
	}
}

// UUID returns the mask identity.
func (m *Mask) UUID() uuid.UUID { return m.id }

// Depth returns the tree depth.
func (m *Mask) Depth() int { return m.depth }

// Parent returns the parent mask, nil for a root.
func (m *Mask) Parent() *Mask { return m.parent }

// HasChildren reports whether any child mask is registered.
func (m *Mask) HasChildren() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.children) > 0
}

// NumAccounts returns the next fresh leaf index across the stack.
func (m *Mask) NumAccounts() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.numAccountsLocked()
}

func (m *Mask) numAccountsLocked() uint64 {
	n := m.fill
	if m.parent != nil {
		if p := m.parent.NumAccounts(); p > n {
			n = p
		}
	}
	return n
}

// GetAtIndex resolves the account at a leaf index through the stack,
// returning nil when the leaf is empty.
func (m *Mask) GetAtIndex(i uint64) *account.Account {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getAtIndexLocked(i)
}

func (m *Mask) getAtIndexLocked(i uint64) *account.Account {
	if a, ok := m.accounts[i]; ok {
		return a
	}
	if m.parent != nil {
		return m.parent.GetAtIndex(i)
	}
	return nil
}

// Get resolves a leaf address.
func (m *Mask) Get(addr Address) (*account.Account, error) {
	if addr.Depth != m.depth {
		return nil, ErrBadAddress
	}
	return m.GetAtIndex(addr.Index), nil
}

// LocationOfAccount resolves an id to its leaf index through the stack.
func (m *Mask) LocationOfAccount(id types.AccountID) (uint64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.locationLocked(id)
}

func (m *Mask) locationLocked(id types.AccountID) (uint64, bool) {
	if e, ok := m.ids[id.MapKey()]; ok {
		if e.removed {
			return 0, false
		}
		return e.index, true
	}
	if m.parent != nil {
		return m.parent.LocationOfAccount(id)
	}
	return 0, false
}

// LocationOfAccountBatch resolves many ids under one lock acquisition.
func (m *Mask) LocationOfAccountBatch(ids []types.AccountID) []MaybeLocation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]MaybeLocation, len(ids))
	for i, id := range ids {
		idx, ok := m.locationLocked(id)
		out[i] = MaybeLocation{ID: id, Index: idx, Found: ok}
	}
	return out
}

// GetBatch reads many leaf addresses.
func (m *Mask) GetBatch(addrs []Address) ([]*account.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*account.Account, len(addrs))
	for i, addr := range addrs {
		if addr.Depth != m.depth {
			return nil, ErrBadAddress
		}
		out[i] = m.getAtIndexLocked(addr.Index)
	}
	return out, nil
}

// GetOrCreateAccount appends the account under a fresh leaf when the id is
// unseen; an existing id keeps its leaf and its stored account untouched.
func (m *Mask) GetOrCreateAccount(id types.AccountID, a *account.Account) (AddOrExisted, Address, error) {
	m.mu.Lock()
	if idx, ok := m.locationLocked(id); ok {
		m.mu.Unlock()
		return Existed, LeafAddress(m.depth, idx), nil
	}
	idx := m.numAccountsLocked()
	if idx >= uint64(1)<<m.depth {
		m.mu.Unlock()
		return 0, Address{}, ErrOutOfLeaves
	}
	m.setAtIndexLocked(idx, a)
	m.mu.Unlock()
	m.notifyChildren([]uint64{idx})
	return Added, LeafAddress(m.depth, idx), nil
}

// SetAtIndex writes an account directly at a leaf index.
func (m *Mask) SetAtIndex(i uint64, a *account.Account) error {
	if i >= uint64(1)<<m.depth {
		return ErrBadAddress
	}
	m.mu.Lock()
	m.setAtIndexLocked(i, a)
	m.mu.Unlock()
	m.notifyChildren([]uint64{i})
	return nil
}

// Set writes an account at a leaf address.
func (m *Mask) Set(addr Address, a *account.Account) error {
	if addr.Depth != m.depth {
		return ErrBadAddress
	}
	return m.SetAtIndex(addr.Index, a)
}

// SetBatchAccounts writes a batch of leaves under one lock acquisition and
// notifies child masks once for the whole batch. Each leaf still invalidates
// its own ancestor path.
func (m *Mask) SetBatchAccounts(batch []IndexedAccount) error {
	m.mu.Lock()
	for _, e := range batch {
		if e.Index >= uint64(1)<<m.depth {
			m.mu.Unlock()
			return ErrBadAddress
		}
	}
	touched := make([]uint64, 0, len(batch))
	for _, e := range batch {
		m.setAtIndexLocked(e.Index, e.Account)
		touched = append(touched, e.Index)
	}
	m.mu.Unlock()
	m.notifyChildren(touched)
	return nil
}

// SetAllAccountsRootedAt assigns the leaves under an inner address from the
// left.
func (m *Mask) SetAllAccountsRootedAt(addr Address, accts []*account.Account) error {
	if addr.Depth < 0 || addr.Depth > m.depth {
		return ErrBadAddress
	}
	height := m.depth - addr.Depth
	capacity := uint64(1) << height
	if uint64(len(accts)) > capacity {
		return fmt.Errorf("%w: %d accounts under height-%d subtree", ErrBadAddress, len(accts), height)
	}
	start := addr.Index << height
	m.mu.Lock()
	touched := make([]uint64, 0, len(accts))
	for i, a := range accts {
		m.setAtIndexLocked(start+uint64(i), a)
		touched = append(touched, start+uint64(i))
	}
	m.mu.Unlock()
	m.notifyChildren(touched)
	return nil
}

// RemoveAccounts deletes the given ids, leaving tombstones that shadow any
// parent content.
func (m *Mask) RemoveAccounts(ids []types.AccountID) error {
	m.mu.Lock()
	for _, id := range ids {
		if _, ok := m.locationLocked(id); !ok {
			m.mu.Unlock()
			return fmt.Errorf("%w: remove", ErrAccountNotFound)
		}
	}
	touched := make([]uint64, 0, len(ids))
	for _, id := range ids {
		idx, _ := m.locationLocked(id)
		m.accounts[idx] = nil
		m.ids[id.MapKey()] = idEntry{removed: true}
		m.invalidateLocked(idx)
		touched = append(touched, idx)
	}
	m.mu.Unlock()
	m.notifyChildren(touched)
	return nil
}

// setAtIndexLocked installs the account, maintains the id overlay and fill,
// and invalidates the leaf's ancestors.
func (m *Mask) setAtIndexLocked(i uint64, a *account.Account) {
	if old := m.getAtIndexLocked(i); old != nil && (a == nil || !old.ID().Equal(a.ID())) {
		m.ids[old.ID().MapKey()] = idEntry{removed: true}
	}
	m.accounts[i] = a
	if a != nil {
		m.ids[a.ID().MapKey()] = idEntry{index: i}
	}
	if i+1 > m.fill {
		m.fill = i + 1
	}
	m.invalidateLocked(i)
}

// invalidateLocked drops cached hashes for the leaf and every ancestor.
func (m *Mask) invalidateLocked(leaf uint64) {
	k := nodeKey{depth: m.depth, index: leaf}
	for {
		delete(m.hashes, k)
		m.dirty[k] = struct{}{}
		if k.depth == 0 {
			return
		}
		k = nodeKey{depth: k.depth - 1, index: k.index >> 1}
	}
}

// MerkleRoot computes (and caches) the root hash of the stack as seen from
// this mask.
func (m *Mask) MerkleRoot() fr.Element {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nodeHashLocked(nodeKey{}, m.numAccountsLocked())
}

// MerklePath returns the sibling path for a leaf, ordered leaf to root.
func (m *Mask) MerklePath(addr Address) ([]PathElem, error) {
	if addr.Depth != m.depth {
		return nil, ErrBadAddress
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	fill := m.numAccountsLocked()
	path := make([]PathElem, 0, m.depth)
	node := addr
	for node.Depth > 0 {
		sibling := nodeKey{depth: node.Depth, index: node.Index ^ 1}
		path = append(path, PathElem{
			Left: node.IsRightChild(),
			Hash: m.nodeHashLocked(sibling, fill),
		})
		node = node.Parent()
	}
	return path, nil
}

// nodeHashLocked resolves a node hash: own cache, then a clean inherited
// cache entry, then an empty-subtree constant, else recomputation from the
// children.
func (m *Mask) nodeHashLocked(k nodeKey, fill uint64) fr.Element {
	if h, ok := m.hashes[k]; ok {
		return h
	}
	if _, stale := m.dirty[k]; !stale {
		if h, ok := m.inheritedHash(k); ok {
			m.hashes[k] = h
			return h
		}
	}
	height := m.depth - k.depth
	var h fr.Element
	if k.index<<height >= fill {
		h = EmptyHashAt(height)
	} else if k.depth == m.depth {
		if a := m.getAtIndexLocked(k.index); a != nil {
			h = a.Hash()
		} else {
			h = EmptyHashAt(0)
		}
	} else {
		left := m.nodeHashLocked(nodeKey{depth: k.depth + 1, index: k.index << 1}, fill)
		right := m.nodeHashLocked(nodeKey{depth: k.depth + 1, index: k.index<<1 | 1}, fill)
		h = poseidon.HashTwo(poseidon.PrefixMklTree(height-1), left, right)
	}
	m.hashes[k] = h
	delete(m.dirty, k)
	return h
}

// inheritedHash walks the parent chain for a cache entry that is clean at
// every layer between here and where it was found.
func (m *Mask) inheritedHash(k nodeKey) (fr.Element, bool) {
	p := m.parent
	for p != nil {
		p.mu.RLock()
		if _, stale := p.dirty[k]; stale {
			p.mu.RUnlock()
			return fr.Element{}, false
		}
		if h, ok := p.hashes[k]; ok {
			p.mu.RUnlock()
			return h, true
		}
		next := p.parent
		p.mu.RUnlock()
		p = next
	}
	return fr.Element{}, false
}

// Commit folds this mask's edits into its parent and clears the overlay.
// The mask stays registered and keeps its (still valid) hash cache.
func (m *Mask) Commit() error {
	if m.parent == nil {
		return fmt.Errorf("%w: root has no parent to commit into", ErrMaskNotRegistered)
	}
	m.mu.Lock()
	p := m.parent

	p.mu.Lock()
	touched := make([]uint64, 0, len(m.accounts))
	for i, a := range m.accounts {
		if old := p.getAtIndexLocked(i); old != nil && (a == nil || !old.ID().Equal(a.ID())) {
			p.ids[old.ID().MapKey()] = idEntry{removed: true}
		}
		p.accounts[i] = a
		p.invalidateLocked(i)
		touched = append(touched, i)
	}
	for key, e := range m.ids {
		p.ids[key] = e
	}
	if m.fill > p.fill {
		p.fill = m.fill
	}
	p.mu.Unlock()

	m.accounts = make(map[uint64]*account.Account)
	m.ids = make(map[types.AccountIDKey]idEntry)
	m.dirty = make(map[nodeKey]struct{})
	m.mu.Unlock()

	// Siblings of this mask read through the parent; their caches over the
	// touched leaves are stale now.
	for _, c := range p.snapshotChildren() {
		if c.id != m.id {
			c.invalidateInherited(touched)
		}
	}
	return nil
}

// notifyChildren propagates an invalidation downward to masks that read the
// touched leaves through this one.
func (m *Mask) notifyChildren(indices []uint64) {
	if len(indices) == 0 {
		return
	}
	for _, c := range m.snapshotChildren() {
		c.invalidateInherited(indices)
	}
}

func (m *Mask) invalidateInherited(indices []uint64) {
	m.mu.Lock()
	pass := make([]uint64, 0, len(indices))
	for _, i := range indices {
		if _, shadowed := m.accounts[i]; shadowed {
			continue
		}
		m.invalidateLocked(i)
		pass = append(pass, i)
	}
	m.mu.Unlock()
	m.notifyChildren(pass)
}

// Unregister detaches the mask from the stack per the chosen behavior.
func (m *Mask) Unregister(behavior UnregisterBehavior) error {
	switch behavior {
	case UnregisterCheck:
		if m.HasChildren() {
			return ErrMaskHasChildren
		}
	case UnregisterRecursive:
		for _, c := range m.snapshotChildren() {
			if err := c.Unregister(UnregisterRecursive); err != nil {
				return err
			}
		}
	case UnregisterReparent:
		m.mu.Lock()
		newParent := m.parent
		kids := m.snapshotChildrenLocked()
		m.children = make(map[uuid.UUID]*Mask)
		m.mu.Unlock()
		for _, c := range kids {
			c.mu.Lock()
			c.parent = newParent
			c.mu.Unlock()
			if newParent != nil {
				newParent.mu.Lock()
				newParent.children[c.id] = c
				newParent.mu.Unlock()
			}
		}
	}
	m.mu.Lock()
	p := m.parent
	m.parent = nil
	m.mu.Unlock()
	if p != nil {
		p.mu.Lock()
		delete(p.children, m.id)
		p.mu.Unlock()
	}
	m.registry.unregister(m.id)
	return nil
}

func (m *Mask) snapshotChildren() []*Mask {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotChildrenLocked()
}

func (m *Mask) snapshotChildrenLocked() []*Mask {
	out := make([]*Mask, 0, len(m.children))
	for _, c := range m.children {
		out = append(out, c)
	}
	return out
}

// AccountIDs lists the ids live in the stack, in leaf order.
func (m *Mask) AccountIDs() []types.AccountID {
	m.mu.RLock()
	n := m.numAccountsLocked()
	m.mu.RUnlock()
	var out []types.AccountID
	for i := uint64(0); i < n; i++ {
		if a := m.GetAtIndex(i); a != nil {
			out = append(out, a.ID())
		}
	}
	return out
}

// Accounts snapshots the live accounts in leaf order.
func (m *Mask) Accounts() []*account.Account {
	m.mu.RLock()
	n := m.numAccountsLocked()
	m.mu.RUnlock()
	var out []*account.Account
	for i := uint64(0); i < n; i++ {
		if a := m.GetAtIndex(i); a != nil {
			out = append(out, a)
		}
	}
	return out
}
