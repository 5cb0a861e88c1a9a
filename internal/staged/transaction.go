package staged

import (
	"errors"
	"fmt"

	"github.com/minacore/ledger/internal/account"
	"github.com/minacore/ledger/internal/command"
	"github.com/minacore/ledger/internal/ledger"
	"github.com/minacore/ledger/internal/zkapp"
	"github.com/minacore/ledger/pkg/types"
)

// Signed-command errors
var (
	ErrBadSignature      = errors.New("signed command signature invalid")
	ErrSourceNotFound    = errors.New("fee payer account not found")
	ErrBadNonce          = errors.New("nonce mismatch")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrExpired           = errors.New("command past its valid-until slot")
	ErrMinimumBalance    = errors.New("locked balance below minimum")
	ErrNotPermitted      = errors.New("permission denied")
)

// ApplySignedCommand applies a payment or stake delegation to the mask,
// updating nonce and receipt chain on the fee payer.
func ApplySignedCommand(mask *ledger.Mask, c *command.SignedCommand, slot types.Slot) error {
	if !c.Verify() {
		return ErrBadSignature
	}
	p := &c.Payload
	if p.ValidUntil.IsSome && slot > p.ValidUntil.Value {
		return ErrExpired
	}

	srcID := types.NewAccountID(p.FeePayer, types.DefaultTokenID())
	loc, ok := mask.LocationOfAccount(srcID)
	if !ok {
		return ErrSourceNotFound
	}
	src := mask.GetAtIndex(loc).Clone()
	if src.Nonce != p.Nonce {
		return fmt.Errorf("%w: have %d want %d", ErrBadNonce, p.Nonce, src.Nonce)
	}
	if !src.HasPermissionTo(src.Permissions.Send, account.TagSignature) {
		return ErrNotPermitted
	}

	total := types.Amount(p.Fee)
	if p.Body.Kind == command.KindPayment {
		var okAdd bool
		total, okAdd = total.AddChecked(p.Body.Amount)
		if !okAdd {
			return ErrInsufficientFunds
		}
	}
	newBalance, okSub := src.Balance.SubAmountChecked(total)
	if !okSub {
		return ErrInsufficientFunds
	}
	if newBalance < src.Timing.MinBalanceAt(slot) {
		return ErrMinimumBalance
	}

	src.Balance = newBalance
	src.Nonce++
	src.ReceiptChainHash = command.ReceiptChainCons(p, src.ReceiptChainHash)

	switch p.Body.Kind {
	case command.KindStakeDelegation:
		src.Delegate = types.Some(p.Body.Receiver)
		if err := mask.SetAtIndex(loc, src); err != nil {
			return err
		}
	case command.KindPayment:
		if err := mask.SetAtIndex(loc, src); err != nil {
			return err
		}
		rcvID := types.NewAccountID(p.Body.Receiver, types.DefaultTokenID())
		rcvLoc, exists := mask.LocationOfAccount(rcvID)
		if exists {
			rcv := mask.GetAtIndex(rcvLoc).Clone()
			var okAdd bool
			rcv.Balance, okAdd = rcv.Balance.AddAmountChecked(p.Body.Amount)
			if !okAdd {
				return ErrInsufficientFunds
			}
			return mask.SetAtIndex(rcvLoc, rcv)
		}
		// New receiver pays the creation fee out of the received amount.
		amt, okSub := p.Body.Amount.SubChecked(zkapp.AccountCreationFee)
		if !okSub {
			return fmt.Errorf("%w: amount below account creation fee", ErrInsufficientFunds)
		}
		rcv := account.Initialize(rcvID)
		rcv.Balance = types.Balance(amt)
		_, _, err := mask.GetOrCreateAccount(rcvID, rcv)
		return err
	}
	return nil
}
