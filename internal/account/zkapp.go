package account

import (
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/minacore/ledger/internal/poseidon"
	"github.com/minacore/ledger/pkg/types"
)

// AppStateSize is the number of on-chain app state slots.
const AppStateSize = 8

// ActionStateSize is the length of the rolling action-state window.
const ActionStateSize = 5

// ZkappVersion tags the zkApp account layout version.
type ZkappVersion uint32

// VerificationKey is an opaque side-loaded verification key. The core only
// ever needs its hash; the prover consumes the data.
type VerificationKey struct {
	Data []byte
}

// Hash returns the side-loaded vk hash.
func (vk VerificationKey) Hash() fr.Element {
	return poseidon.HashBytes(poseidon.TagSideLoadedVk, vk.Data)
}

// DummyVerificationKey is the deterministic placeholder hashed in place of an
// absent key.
func DummyVerificationKey() VerificationKey {
	return VerificationKey{Data: []byte("dummy-side-loaded-vk")}
}

var (
	dummyVkHashOnce sync.Once
	dummyVkHash     fr.Element

	actionEmptyOnce sync.Once
	actionEmptyElt  fr.Element
)

// DummyVkHash returns the hash of the dummy verification key.
func DummyVkHash() fr.Element {
	dummyVkHashOnce.Do(func() {
		dummyVkHash = DummyVerificationKey().Hash()
	})
	return dummyVkHash
}

// ActionStateEmpty returns the empty action-state element.
func ActionStateEmpty() fr.Element {
	actionEmptyOnce.Do(func() {
		actionEmptyElt = poseidon.Hash(poseidon.TagZkappActionStateEmpty)
	})
	return actionEmptyElt
}

// ZkappAccount is the zkApp sub-record of an account.
type ZkappAccount struct {
	// AppState is the 8-slot on-chain state
	AppState [AppStateSize]fr.Element

	// VerificationKey is the side-loaded key, absent on plain zkApp accounts
	VerificationKey types.FlaggedOption[VerificationKey]

	// ZkappVersion is the layout version
	ZkappVersion ZkappVersion

	// ActionState is the rolling 5-slot action commitment window;
	// slot 0 is the most recent
	ActionState [ActionStateSize]fr.Element

	// LastActionSlot is the slot the action state last moved in
	LastActionSlot types.Slot

	// ProvedState is set once all app state was set under a proof
	ProvedState bool

	// ZkappURI locates off-chain app data
	ZkappURI string
}

// EmptyZkapp returns the zkApp record materialised for accounts that have
// none yet.
func EmptyZkapp() *ZkappAccount {
	z := &ZkappAccount{}
	for i := range z.ActionState {
		z.ActionState[i] = ActionStateEmpty()
	}
	return z
}

// Clone deep-copies the record.
func (z *ZkappAccount) Clone() *ZkappAccount {
	if z == nil {
		return nil
	}
	c := *z
	if z.VerificationKey.IsSome {
		c.VerificationKey.Value.Data = append([]byte(nil), z.VerificationKey.Value.Data...)
	}
	return &c
}

// VkHash returns the stored vk hash, or the dummy hash when absent.
func (z *ZkappAccount) VkHash() fr.Element {
	if z != nil && z.VerificationKey.IsSome {
		return z.VerificationKey.Value.Hash()
	}
	return DummyVkHash()
}

// Hash commits to the whole sub-record.
func (z *ZkappAccount) Hash() fr.Element {
	rec := z
	if rec == nil {
		rec = EmptyZkapp()
	}
	var fields []fr.Element
	fields = append(fields, rec.AppState[:]...)
	fields = append(fields, boolField(rec.VerificationKey.IsSome), rec.VkHash())
	var v fr.Element
	v.SetUint64(uint64(rec.ZkappVersion))
	fields = append(fields, v)
	fields = append(fields, rec.ActionState[:]...)
	v.SetUint64(uint64(rec.LastActionSlot))
	fields = append(fields, v)
	fields = append(fields, boolField(rec.ProvedState))
	fields = append(fields, poseidon.HashBytes(poseidon.TagZkappURI, []byte(rec.ZkappURI)))
	return poseidon.Hash(poseidon.TagZkappAccount, fields...)
}
