package account

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/minacore/ledger/pkg/types"
)

// SetVerificationKeyPerm guards verification-key replacement. The stored
// transaction version lets old policies be downgraded when the protocol
// version moves past them.
type SetVerificationKeyPerm struct {
	Auth       AuthRequired
	TxnVersion types.TxnVersion
}

// Permissions is the full controller set of an account.
type Permissions struct {
	EditState          AuthRequired
	Access             AuthRequired
	Send               AuthRequired
	Receive            AuthRequired
	SetDelegate        AuthRequired
	SetPermissions     AuthRequired
	SetVerificationKey SetVerificationKeyPerm
	SetZkappURI        AuthRequired
	EditActionState    AuthRequired
	SetTokenSymbol     AuthRequired
	IncrementNonce     AuthRequired
	SetVotingFor       AuthRequired
	SetTiming          AuthRequired
}

// UserDefault returns the permissions a plain user account starts with.
func UserDefault() Permissions {
	return Permissions{
		EditState:          AuthSignature,
		Access:             AuthNone,
		Send:               AuthSignature,
		Receive:            AuthNone,
		SetDelegate:        AuthSignature,
		SetPermissions:     AuthSignature,
		SetVerificationKey: SetVerificationKeyPerm{Auth: AuthSignature, TxnVersion: types.CurrentTxnVersion},
		SetZkappURI:        AuthSignature,
		EditActionState:    AuthSignature,
		SetTokenSymbol:     AuthSignature,
		IncrementNonce:     AuthSignature,
		SetVotingFor:       AuthSignature,
		SetTiming:          AuthSignature,
	}
}

// EmptyPermissions returns the all-open permission set carried by empty accounts.
func EmptyPermissions() Permissions {
	return Permissions{
		EditState:          AuthNone,
		Access:             AuthNone,
		Send:               AuthNone,
		Receive:            AuthNone,
		SetDelegate:        AuthNone,
		SetPermissions:     AuthNone,
		SetVerificationKey: SetVerificationKeyPerm{Auth: AuthNone, TxnVersion: types.CurrentTxnVersion},
		SetZkappURI:        AuthNone,
		EditActionState:    AuthNone,
		SetTokenSymbol:     AuthNone,
		IncrementNonce:     AuthNone,
		SetVotingFor:       AuthNone,
		SetTiming:          AuthNone,
	}
}

// Validate rejects permission sets carrying the reserved Both variant.
func (p Permissions) Validate() error {
	for _, a := range p.list() {
		if a == AuthBoth {
			return ErrReservedAuthRequired
		}
	}
	if p.SetVerificationKey.Auth == AuthBoth {
		return ErrReservedAuthRequired
	}
	return nil
}

func (p Permissions) list() []AuthRequired {
	return []AuthRequired{
		p.EditState, p.Access, p.Send, p.Receive, p.SetDelegate,
		p.SetPermissions, p.SetZkappURI, p.EditActionState,
		p.SetTokenSymbol, p.IncrementNonce, p.SetVotingFor, p.SetTiming,
	}
}

// ToFields flattens the controller set for hashing: each controller as its
// three-bit encoding, with the vk controller carrying its txn version.
func (p Permissions) ToFields() []fr.Element {
	var out []fr.Element
	for _, a := range []AuthRequired{
		p.EditState, p.Access, p.Send, p.Receive, p.SetDelegate, p.SetPermissions,
	} {
		out = append(out, a.Encode().ToFields()...)
	}
	out = append(out, p.SetVerificationKey.Auth.Encode().ToFields()...)
	var ver fr.Element
	ver.SetUint64(uint64(p.SetVerificationKey.TxnVersion))
	out = append(out, ver)
	for _, a := range []AuthRequired{
		p.SetZkappURI, p.EditActionState, p.SetTokenSymbol,
		p.IncrementNonce, p.SetVotingFor, p.SetTiming,
	} {
		out = append(out, a.Encode().ToFields()...)
	}
	return out
}
