package types

import "fmt"

// Failure is a recoverable per-account-update failure code. Failures are
// recorded in the failure table; they mark the enclosing segment as failed
// but do not abort it.
type Failure int

const (
	FailureNone Failure = iota
	FailureOverflow
	FailureLocalExcessOverflow
	FailureGlobalExcessOverflow
	FailureLocalSupplyIncreaseOverflow
	FailureGlobalSupplyIncreaseOverflow
	FailureAmountInsufficientToCreateAccount
	FailureCannotPayCreationFeeInToken
	FailureInvalidFeeExcess
	FailureTokenOwnerNotCaller
	FailureAccountNonceMustIncrease
	FailureZkappCommandReplayCheckFailed
	FailureFeePayerNonceMustIncrease
	FailureFeePayerMustBeSigned
	FailureAccountBalancePreconditionUnsatisfied
	FailureAccountNoncePreconditionUnsatisfied
	FailureAccountReceiptChainHashPreconditionUnsatisfied
	FailureAccountDelegatePreconditionUnsatisfied
	FailureAccountActionStatePreconditionUnsatisfied
	FailureAccountAppStatePreconditionUnsatisfied
	FailureAccountProvedStatePreconditionUnsatisfied
	FailureAccountIsNewPreconditionUnsatisfied
	FailureProtocolStatePreconditionUnsatisfied
	FailureValidWhilePreconditionUnsatisfied
	FailureUnexpectedVerificationKeyHash
	FailureUpdateNotPermittedBalance
	FailureUpdateNotPermittedAccess
	FailureUpdateNotPermittedTiming
	FailureUpdateNotPermittedDelegate
	FailureUpdateNotPermittedAppState
	FailureUpdateNotPermittedVerificationKey
	FailureUpdateNotPermittedActionState
	FailureUpdateNotPermittedZkappURI
	FailureUpdateNotPermittedTokenSymbol
	FailureUpdateNotPermittedNonce
	FailureUpdateNotPermittedVotingFor
	FailureUpdateNotPermittedPermissions
	FailureSourceMinimumBalanceViolation
)

var failureNames = map[Failure]string{
	FailureNone:                                           "none",
	FailureOverflow:                                       "overflow",
	FailureLocalExcessOverflow:                            "local_excess_overflow",
	FailureGlobalExcessOverflow:                           "global_excess_overflow",
	FailureLocalSupplyIncreaseOverflow:                    "local_supply_increase_overflow",
	FailureGlobalSupplyIncreaseOverflow:                   "global_supply_increase_overflow",
	FailureAmountInsufficientToCreateAccount:              "amount_insufficient_to_create_account",
	FailureCannotPayCreationFeeInToken:                    "cannot_pay_creation_fee_in_token",
	FailureInvalidFeeExcess:                               "invalid_fee_excess",
	FailureTokenOwnerNotCaller:                            "token_owner_not_caller",
	FailureAccountNonceMustIncrease:                       "account_nonce_must_increase",
	FailureZkappCommandReplayCheckFailed:                  "zkapp_command_replay_check_failed",
	FailureFeePayerNonceMustIncrease:                      "fee_payer_nonce_must_increase",
	FailureFeePayerMustBeSigned:                           "fee_payer_must_be_signed",
	FailureAccountBalancePreconditionUnsatisfied:          "account_balance_precondition_unsatisfied",
	FailureAccountNoncePreconditionUnsatisfied:            "account_nonce_precondition_unsatisfied",
	FailureAccountReceiptChainHashPreconditionUnsatisfied: "account_receipt_chain_hash_precondition_unsatisfied",
	FailureAccountDelegatePreconditionUnsatisfied:         "account_delegate_precondition_unsatisfied",
	FailureAccountActionStatePreconditionUnsatisfied:      "account_action_state_precondition_unsatisfied",
	FailureAccountAppStatePreconditionUnsatisfied:         "account_app_state_precondition_unsatisfied",
	FailureAccountProvedStatePreconditionUnsatisfied:      "account_proved_state_precondition_unsatisfied",
	FailureAccountIsNewPreconditionUnsatisfied:            "account_is_new_precondition_unsatisfied",
	FailureProtocolStatePreconditionUnsatisfied:           "protocol_state_precondition_unsatisfied",
	FailureValidWhilePreconditionUnsatisfied:              "valid_while_precondition_unsatisfied",
	FailureUnexpectedVerificationKeyHash:                  "unexpected_verification_key_hash",
	FailureUpdateNotPermittedBalance:                      "update_not_permitted_balance",
	FailureUpdateNotPermittedAccess:                       "update_not_permitted_access",
	FailureUpdateNotPermittedTiming:                       "update_not_permitted_timing",
	FailureUpdateNotPermittedDelegate:                     "update_not_permitted_delegate",
	FailureUpdateNotPermittedAppState:                     "update_not_permitted_app_state",
	FailureUpdateNotPermittedVerificationKey:              "update_not_permitted_verification_key",
	FailureUpdateNotPermittedActionState:                  "update_not_permitted_action_state",
	FailureUpdateNotPermittedZkappURI:                     "update_not_permitted_zkapp_uri",
	FailureUpdateNotPermittedTokenSymbol:                  "update_not_permitted_token_symbol",
	FailureUpdateNotPermittedNonce:                        "update_not_permitted_nonce",
	FailureUpdateNotPermittedVotingFor:                    "update_not_permitted_voting_for",
	FailureUpdateNotPermittedPermissions:                  "update_not_permitted_permissions",
	FailureSourceMinimumBalanceViolation:                  "source_minimum_balance_violation",
}

// String returns the snake_case name of the failure.
func (f Failure) String() string {
	if n, ok := failureNames[f]; ok {
		return n
	}
	return fmt.Sprintf("failure(%d)", int(f))
}

// FailureTable records failures per account-update index within a command.
// Index 0 is the fee payer.
type FailureTable struct {
	rows [][]Failure
}

// NewFailureTable returns a table sized for n updates.
func NewFailureTable(n int) *FailureTable {
	return &FailureTable{rows: make([][]Failure, n)}
}

// Append records a failure against the update at index i, growing the table
// if needed.
func (t *FailureTable) Append(i int, f Failure) {
	for len(t.rows) <= i {
		t.rows = append(t.rows, nil)
	}
	t.rows[i] = append(t.rows[i], f)
}

// Row returns the failures recorded for update i.
func (t *FailureTable) Row(i int) []Failure {
	if i < 0 || i >= len(t.rows) {
		return nil
	}
	return t.rows[i]
}

// IsEmpty reports whether no failure was recorded.
func (t *FailureTable) IsEmpty() bool {
	for _, r := range t.rows {
		if len(r) > 0 {
			return false
		}
	}
	return true
}

// Len returns the number of rows.
func (t *FailureTable) Len() int {
	return len(t.rows)
}

// Clone deep-copies the table.
func (t *FailureTable) Clone() *FailureTable {
	c := &FailureTable{rows: make([][]Failure, len(t.rows))}
	for i, r := range t.rows {
		c.rows[i] = append([]Failure(nil), r...)
	}
	return c
}

// Equal reports row-for-row equality.
func (t *FailureTable) Equal(o *FailureTable) bool {
	a, b := t.trimmed(), o.trimmed()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}

func (t *FailureTable) trimmed() [][]Failure {
	rows := t.rows
	for len(rows) > 0 && len(rows[len(rows)-1]) == 0 {
		rows = rows[:len(rows)-1]
	}
	return rows
}
