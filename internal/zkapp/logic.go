package zkapp

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/minacore/ledger/internal/account"
	"github.com/minacore/ledger/internal/command"
	"github.com/minacore/ledger/internal/ledger"
	"github.com/minacore/ledger/internal/poseidon"
	"github.com/minacore/ledger/pkg/types"
)

// Engine errors
var (
	ErrAssertionFailed    = errors.New("application invariant violated")
	ErrFirstUpdateFailed  = errors.New("first account update of the command failed")
	ErrAuthorizationShape = errors.New("authorisation result disagrees with declared kind")
)

// AccountCreationFee is debited whenever an update materialises a new
// account.
const AccountCreationFee types.Amount = 1_000_000_000

// StepParams feeds one application step.
type StepParams struct {
	Global  *GlobalState
	Local   *LocalState
	IsStart IsStart
}

type nextUpdateResult struct {
	update       *command.AccountUpdate
	callerID     types.TokenID
	updateForest command.CallForest
	newCallStack CallStack
	newFrame     *StackFrame
}

// getNextAccountUpdate pops the next update from the traversal, resolving
// the caller token the update runs under and the frame/stack that remain.
func getNextAccountUpdate(w WitnessGenerator, currentForest *StackFrame, callStack CallStack) nextUpdateResult {
	currentIsEmpty := currentForest.Calls.IsEmpty()
	nextForest, nextCallStack := callStack.Pop()
	currentForest = Branch(w, currentIsEmpty,
		func() *StackFrame { return nextForest },
		func() *StackFrame { return currentForest },
	)
	callStack = Branch(w, currentIsEmpty,
		func() CallStack { return nextCallStack },
		func() CallStack { return callStack },
	)
	if len(currentForest.Calls) == 0 {
		// Nothing left anywhere; the caller must not step an idle thread.
		panic("zkapp: step on empty call forest")
	}

	node, updateForest, remainder := currentForest.Calls.Pop()
	mayUse := node.Update.Body.MayUseToken

	callerID := Branch(w, mayUse == command.InheritFromParent,
		func() types.TokenID { return currentForest.CallerCaller },
		func() types.TokenID {
			if mayUse == command.ParentsOwnToken {
				return currentForest.Caller
			}
			return types.DefaultTokenID()
		},
	)
	w.Exists(callerID.F)

	updateForestEmpty := updateForest.IsEmpty()
	remainderEmpty := remainder.IsEmpty()
	newlyPopped, poppedCallStack := callStack.Pop()

	remainderFrame := &StackFrame{
		Caller:       currentForest.Caller,
		CallerCaller: currentForest.CallerCaller,
		Calls:        remainder,
	}

	newCallStack := Branch(w, updateForestEmpty,
		func() CallStack {
			if remainderEmpty {
				return poppedCallStack
			}
			return callStack
		},
		func() CallStack {
			if remainderEmpty {
				return callStack
			}
			return callStack.Push(remainderFrame)
		},
	)

	newFrame := Branch(w, updateForestEmpty,
		func() *StackFrame {
			return Branch(w, remainderEmpty,
				func() *StackFrame { return newlyPopped },
				func() *StackFrame { return remainderFrame },
			)
		},
		func() *StackFrame {
			return &StackFrame{
				Caller:       account.DeriveTokenID(node.Update.Body.AccountID()),
				CallerCaller: callerID,
				Calls:        updateForest,
			}
		},
	)

	return nextUpdateResult{
		update:       &node.Update,
		callerID:     callerID,
		updateForest: updateForest,
		newCallStack: newCallStack,
		newFrame:     newFrame,
	}
}

// addCheck records a failure when the condition does not hold; the segment
// continues but is marked failed.
func addCheck(l *LocalState, f types.Failure, ok bool) {
	if !ok {
		l.FailureTable.Append(int(l.AccountUpdateIndex), f)
		l.Success = false
	}
}

func assertThat(ok bool, what string) error {
	if !ok {
		return fmt.Errorf("%w: %s", ErrAssertionFailed, what)
	}
	return nil
}

// controllerCheck evaluates a permission controller against the
// authorisation outcome, in the encoded circuit form.
func controllerCheck(auth account.AuthRequired, res AuthResult) bool {
	enc := auth.Encode()
	if res.ProofVerifies {
		return enc.EvalProof()
	}
	return enc.EvalNoProof(res.SignatureVerifies)
}

// updateActionState pushes the actions commitment into the rolling window.
// The window shifts only when the last write happened in an earlier slot.
func updateActionState(w WitnessGenerator, state [account.ActionStateSize]fr.Element, body *command.Body, txnSlot, lastSlot types.Slot) ([account.ActionStateSize]fr.Element, types.Slot) {
	isEmpty := !body.HasActions()
	s1Updated := poseidon.HashTwo(poseidon.TagZkappActions, state[0], body.ActionsCommitment())
	s1 := Branch(w, isEmpty,
		func() fr.Element { return state[0] },
		func() fr.Element { return s1Updated },
	)
	isThisSlot := txnSlot == lastSlot
	keep := isEmpty || isThisSlot

	out := state
	out[0] = s1
	if !keep {
		out[4] = state[3]
		out[3] = state[2]
		out[2] = state[1]
		out[1] = state[0]
	}
	w.Exists(out[:]...)
	newLast := Branch(w, isEmpty,
		func() types.Slot { return lastSlot },
		func() types.Slot { return txnSlot },
	)
	return out, newLast
}

// checkAccountPreconditions evaluates the update's account preconditions
// against the loaded account, recording one failure per unsatisfied clause.
func checkAccountPreconditions(l *LocalState, pre *command.AccountPrecondition, a *account.Account, isNew bool) {
	addCheck(l, types.FailureAccountBalancePreconditionUnsatisfied, pre.Balance.Satisfied(uint64(a.Balance)))
	addCheck(l, types.FailureAccountNoncePreconditionUnsatisfied, pre.Nonce.Satisfied(uint32(a.Nonce)))
	addCheck(l, types.FailureAccountReceiptChainHashPreconditionUnsatisfied, pre.ReceiptChainHash.Satisfied(a.ReceiptChainHash))
	delegate := a.Delegate.OrDefault(types.EmptyKey())
	addCheck(l, types.FailureAccountDelegatePreconditionUnsatisfied, pre.Delegate.Satisfied(delegate))

	zk := a.Zkapp
	if zk == nil {
		zk = account.EmptyZkapp()
	}
	if pre.ActionState.Check {
		found := false
		for _, s := range zk.ActionState {
			if s.Equal(&pre.ActionState.Value) {
				found = true
				break
			}
		}
		addCheck(l, types.FailureAccountActionStatePreconditionUnsatisfied, found)
	}
	for i := range pre.State {
		addCheck(l, types.FailureAccountAppStatePreconditionUnsatisfied, pre.State[i].Satisfied(zk.AppState[i]))
	}
	addCheck(l, types.FailureAccountProvedStatePreconditionUnsatisfied, pre.ProvedState.Satisfied(zk.ProvedState))
	addCheck(l, types.FailureAccountIsNewPreconditionUnsatisfied, pre.IsNew.Satisfied(isNew))
}

// Step applies one account update to the thread state. It mirrors the
// circuit step exactly, so the concrete and witness executors stay in
// lockstep.
func Step(z Backend, p *StepParams) error {
	w := z.Witness()
	local := p.Local
	global := p.Global

	// Resolve whether a new command starts here.
	isEmptyCallForest := local.StackFrame.Calls.IsEmpty() && local.CallStack.IsEmpty()
	switch p.IsStart.Kind {
	case StartYes:
		if err := assertThat(isEmptyCallForest, "start on busy thread"); err != nil {
			return err
		}
	case StartNo:
		if err := assertThat(!isEmptyCallForest, "continue on idle thread"); err != nil {
			return err
		}
	}
	isStart := p.IsStart.Kind == StartYes ||
		(p.IsStart.Kind == StartCompute && isEmptyCallForest)

	if isStart {
		local.WillSucceed = p.IsStart.Data.WillSucceed
		local.Ledger = global.FirstPassLedger
	}

	// Swap in the new command's forest when starting.
	toPop := Branch(w, isStart,
		func() *StackFrame {
			if p.IsStart.Data == nil {
				return local.StackFrame
			}
			return &StackFrame{
				Caller:       types.DefaultTokenID(),
				CallerCaller: types.DefaultTokenID(),
				Calls:        p.IsStart.Data.AccountUpdates,
			}
		},
		func() *StackFrame { return local.StackFrame },
	)
	callStack := local.CallStack
	if isStart {
		callStack = nil
	}

	next := getNextAccountUpdate(w, toPop, callStack)
	update := next.update
	body := &update.Body

	// The update must run in the default token or in the token its caller
	// owns.
	tokenIsDefault := body.TokenID.IsDefault()
	addCheck(local, types.FailureTokenOwnerNotCaller,
		tokenIsDefault || body.TokenID.Equal(next.callerID))

	// Load the account, or start from the empty one for a fresh slot.
	loc, found := local.Ledger.LocationOfAccount(body.AccountID())
	var a *account.Account
	if found {
		stored := local.Ledger.GetAtIndex(loc)
		if stored == nil {
			found = false
		} else {
			a = stored.Clone()
		}
	}
	if !found {
		a = account.Empty()
	}
	accountIsNew := !found

	// The loaded slot must belong to the update's key, or be the empty
	// account of a fresh slot.
	if accountIsNew {
		if err := assertThat(CheckedKeyEqual(w, a.PublicKey, types.EmptyKey(), true), "fresh slot is empty"); err != nil {
			return err
		}
	} else {
		if err := assertThat(CheckedKeyEqual(w, a.PublicKey, body.PublicKey, false), "account key matches update"); err != nil {
			return err
		}
	}

	// Check inclusion of the loaded account against the mask.
	if found {
		path, err := local.Ledger.MerklePath(ledger.LeafAddress(local.Ledger.Depth(), loc))
		if err != nil {
			return err
		}
		root := local.Ledger.MerkleRoot()
		implied := ledger.VerifyMerklePath(a.Hash(), path)
		if err := assertThat(implied.Equal(&root), "account inclusion"); err != nil {
			return err
		}
		w.Exists(root)
	}

	// Update the running commitments at command starts.
	if isStart {
		txCommitment := next.newFrame.Calls.Hash()
		fullCommitment := command.FullCommitment(p.IsStart.Data.MemoHash, update.Digest(), txCommitment)
		local.TransactionCommitment = BranchField(w, isStart,
			func() fr.Element { return txCommitment },
			func() fr.Element { return local.TransactionCommitment },
		)
		local.FullTransactionCommitment = BranchField(w, isStart,
			func() fr.Element { return fullCommitment },
			func() fr.Element { return local.FullTransactionCommitment },
		)
	}

	local.StackFrame = next.newFrame
	local.CallStack = next.newCallStack

	// Self-delegation for fresh default-token accounts.
	selfDelegate := accountIsNew && tokenIsDefault
	if selfDelegate {
		a.Delegate = types.Some(body.PublicKey)
	}

	// A proof update must run against the verification key it was compiled
	// for.
	isProved := body.AuthorizationKind == command.AuthKindProof
	isSigned := body.AuthorizationKind == command.AuthKindSignature
	matchingVk := true
	if isProved {
		vkHash := a.Zkapp.VkHash()
		matchingVk = vkHash.Equal(&body.VkHash)
	}
	addCheck(local, types.FailureUnexpectedVerificationKeyHash, matchingVk)

	checkAccountPreconditions(local, &body.Preconditions.Account, a, accountIsNew)

	addCheck(local, types.FailureProtocolStatePreconditionUnsatisfied,
		body.Preconditions.Network.Satisfied(global.ProtocolState))
	addCheck(local, types.FailureValidWhilePreconditionUnsatisfied,
		body.Preconditions.ValidWhile.Satisfied(uint32(global.BlockGlobalSlot)))

	// Authorisation.
	commitment := BranchField(w, body.UseFullCommitment,
		func() fr.Element { return local.FullTransactionCommitment },
		func() fr.Element { return local.TransactionCommitment },
	)
	auth, err := z.CheckAuthorization(update, next.updateForest, commitment)
	if err != nil {
		return err
	}
	if auth.ProofVerifies != isProved {
		return fmt.Errorf("%w: proof", ErrAuthorizationShape)
	}
	if auth.SignatureVerifies != isSigned {
		return fmt.Errorf("%w: signature", ErrAuthorizationShape)
	}

	// The fee payer update must be signed and increment its nonce.
	addCheck(local, types.FailureFeePayerNonceMustIncrease, body.IncrementNonce || !isStart)
	addCheck(local, types.FailureFeePayerMustBeSigned, auth.SignatureVerifies || !isStart)

	// Replay protection.
	{
		incrementsAndConstrains := body.IncrementNonce && body.Preconditions.Account.HasConstantNonce()
		dependsOnFeePayer := body.UseFullCommitment && !isStart
		noSignature := !auth.SignatureVerifies
		addCheck(local, types.FailureZkappCommandReplayCheckFailed,
			incrementsAndConstrains || dependsOnFeePayer || noSignature)
	}

	a.TokenID = body.TokenID

	// Timing.
	{
		timing := body.Update.Timing
		hasPermission := controllerCheck(a.Permissions.SetTiming, auth)
		addCheck(local, types.FailureUpdateNotPermittedTiming,
			!timing.IsSet || (!a.Timing.IsTimed && hasPermission))
		newTiming := Branch(w, timing.IsSet,
			func() account.Timing { return timing.Value },
			func() account.Timing { return a.Timing },
		)
		if newTiming.IsTimed {
			if err := assertThat(newTiming.VestingPeriod > 0, "vesting period positive"); err != nil {
				return err
			}
		}
		a.Timing = newTiming
	}

	// Creation fees are only payable in the default token.
	implicitFee := body.ImplicitAccountCreationFee
	addCheck(local, types.FailureCannotPayCreationFeeInToken, !implicitFee || tokenIsDefault)

	// Balance change, net of an implicit creation fee.
	balanceChange := body.BalanceChange
	actualBalanceChange := balanceChange
	{
		negFee := types.SignedOf(AccountCreationFee).Negate()
		withFee, creationOverflow := balanceChange.AddFlagged(negFee)
		payCreationFee := accountIsNew && implicitFee
		creationOverflow = payCreationFee && creationOverflow
		if payCreationFee {
			actualBalanceChange = withFee
		}
		addCheck(local, types.FailureAmountInsufficientToCreateAccount,
			!(payCreationFee && (creationOverflow || actualBalanceChange.IsNeg())))
	}

	// Apply the balance change; explicit creation fees debit the local
	// excess, and every new account debits the supply increase.
	{
		payFromExcess := accountIsNew && !implicitFee
		newBalance, balanceOK := a.Balance.AddSignedChecked(actualBalanceChange)
		addCheck(local, types.FailureOverflow, balanceOK)

		negFee := types.SignedOf(AccountCreationFee).Negate()
		excessMinusFee, excessFailed := local.Excess.AddFlagged(negFee)
		addCheck(local, types.FailureLocalExcessOverflow, !(payFromExcess && excessFailed))
		if payFromExcess {
			local.Excess = excessMinusFee
		}

		supplyMinusFee, supplyFailed := local.SupplyIncrease.AddFlagged(negFee)
		addCheck(local, types.FailureLocalSupplyIncreaseOverflow, !(accountIsNew && supplyFailed))
		if accountIsNew {
			local.SupplyIncrease = supplyMinusFee
		}

		isReceiver := actualBalanceChange.IsNonNeg()
		controller := Branch(w, isReceiver,
			func() account.AuthRequired { return a.Permissions.Receive },
			func() account.AuthRequired { return a.Permissions.Send },
		)
		hasPermission := controllerCheck(controller, auth)
		addCheck(local, types.FailureUpdateNotPermittedBalance,
			hasPermission || actualBalanceChange.IsZero())
		a.Balance = newBalance
	}

	// Re-check timing against the updated balance.
	txnSlot := global.BlockGlobalSlot
	{
		minBalance := a.Timing.MinBalanceAt(txnSlot)
		addCheck(local, types.FailureSourceMinimumBalanceViolation, a.Balance >= minBalance)
		if !a.Timing.LockedTokens(txnSlot) {
			a.Timing = account.Untimed()
		}
	}

	// Materialise the zkApp sub-record for the remaining updates.
	if a.Zkapp == nil {
		a.Zkapp = account.EmptyZkapp()
	}

	addCheck(local, types.FailureUpdateNotPermittedAccess,
		controllerCheck(a.Permissions.Access, auth))

	// App state.
	{
		appState := body.Update.AppState
		keepingAll, settingAll := true, true
		for i := range appState {
			keepingAll = keepingAll && !appState[i].IsSet
			settingAll = settingAll && appState[i].IsSet
		}
		provedState := Branch(w, keepingAll,
			func() bool { return a.Zkapp.ProvedState },
			func() bool {
				return Branch(w, auth.ProofVerifies,
					func() bool {
						return Branch(w, settingAll,
							func() bool { return true },
							func() bool { return a.Zkapp.ProvedState },
						)
					},
					func() bool { return false },
				)
			},
		)
		a.Zkapp.ProvedState = provedState
		addCheck(local, types.FailureUpdateNotPermittedAppState,
			keepingAll || controllerCheck(a.Permissions.EditState, auth))
		for i := range appState {
			a.Zkapp.AppState[i] = appState[i].Apply(a.Zkapp.AppState[i])
		}
		w.Exists(a.Zkapp.AppState[:]...)
	}

	// Verification key; an outdated policy version downgrades to signature.
	{
		vk := body.Update.VerificationKey
		perm := a.Permissions.SetVerificationKey
		effAuth := Branch(w, perm.TxnVersion < types.CurrentTxnVersion,
			func() account.AuthRequired {
				return verificationKeyPermFallbackToSignatureWithOlderVersion(perm.Auth)
			},
			func() account.AuthRequired { return perm.Auth },
		)
		hasPermission := controllerCheck(effAuth, auth)
		addCheck(local, types.FailureUpdateNotPermittedVerificationKey,
			!vk.IsSet || hasPermission)
		if vk.IsSet {
			a.Zkapp.VerificationKey = types.Some(vk.Value)
		}
		w.Exists(a.Zkapp.VkHash())
	}

	// Action state.
	{
		newState, newLast := updateActionState(w, a.Zkapp.ActionState, body, txnSlot, a.Zkapp.LastActionSlot)
		addCheck(local, types.FailureUpdateNotPermittedActionState,
			!body.HasActions() || controllerCheck(a.Permissions.EditActionState, auth))
		a.Zkapp.ActionState = newState
		a.Zkapp.LastActionSlot = newLast
	}

	// zkApp URI.
	{
		uri := body.Update.ZkappURI
		addCheck(local, types.FailureUpdateNotPermittedZkappURI,
			!uri.IsSet || controllerCheck(a.Permissions.SetZkappURI, auth))
		a.Zkapp.ZkappURI = uri.Apply(a.Zkapp.ZkappURI)
	}

	// An untouched empty zkApp record is dropped again, so plain accounts
	// keep their plain hash.
	if zkappIsDefault(a.Zkapp) {
		a.Zkapp = nil
	}

	// Token symbol.
	{
		sym := body.Update.TokenSymbol
		addCheck(local, types.FailureUpdateNotPermittedTokenSymbol,
			!sym.IsSet || controllerCheck(a.Permissions.SetTokenSymbol, auth))
		a.TokenSymbol = sym.Apply(a.TokenSymbol)
	}

	// Delegate; only meaningful in the default token.
	{
		del := body.Update.Delegate
		hasPermission := controllerCheck(a.Permissions.SetDelegate, auth)
		addCheck(local, types.FailureUpdateNotPermittedDelegate,
			!del.IsSet || (hasPermission && tokenIsDefault))
		if del.IsSet {
			a.Delegate = types.Some(del.Value)
		}
	}

	// Nonce.
	{
		if body.IncrementNonce {
			a.Nonce++
		}
		addCheck(local, types.FailureUpdateNotPermittedNonce,
			!body.IncrementNonce || controllerCheck(a.Permissions.IncrementNonce, auth))
	}

	// Voting-for.
	{
		vf := body.Update.VotingFor
		addCheck(local, types.FailureUpdateNotPermittedVotingFor,
			!vf.IsSet || controllerCheck(a.Permissions.SetVotingFor, auth))
		a.VotingFor = vf.Apply(a.VotingFor)
	}

	// Receipt chain: consed whenever any authorisation verified.
	{
		a.ReceiptChainHash = BranchField(w, auth.SignatureVerifies || auth.ProofVerifies,
			func() fr.Element {
				var idx fr.Element
				idx.SetUint64(uint64(local.AccountUpdateIndex))
				return poseidon.Hash(poseidon.TagReceiptUC, idx, local.FullTransactionCommitment, a.ReceiptChainHash)
			},
			func() fr.Element { return a.ReceiptChainHash },
		)
	}

	// Permissions.
	{
		perms := body.Update.Permissions
		addCheck(local, types.FailureUpdateNotPermittedPermissions,
			!perms.IsSet || controllerCheck(a.Permissions.SetPermissions, auth))
		if perms.IsSet {
			a.Permissions = perms.Value
		}
	}

	// Fresh accounts take their identity from the update.
	if accountIsNew {
		a.PublicKey = body.PublicKey
		a.TokenID = body.TokenID
	}

	// Merge the balance change into the local excess (default token only).
	localDelta := balanceChange.Negate()
	if isStart {
		if err := assertThat(tokenIsDefault && localDelta.IsNonNeg(), "fee payer pays a non-negative default-token fee"); err != nil {
			return err
		}
	}
	{
		newExcess, overflow := local.Excess.AddFlagged(localDelta)
		overflowed := tokenIsDefault && overflow
		if tokenIsDefault {
			local.Excess = newExcess
		}
		addCheck(local, types.FailureLocalExcessOverflow, !overflowed)
	}

	// Write the account back.
	if accountIsNew {
		if _, _, err := local.Ledger.GetOrCreateAccount(a.ID(), a); err != nil {
			return err
		}
	} else {
		if err := local.Ledger.SetAtIndex(loc, a); err != nil {
			return err
		}
	}

	isLast := next.newFrame.Calls.IsEmpty()

	// Commitments clear at the end of the command.
	if isLast {
		local.TransactionCommitment = fr.Element{}
		local.FullTransactionCommitment = fr.Element{}
	}

	// The local excess must settle by the last update.
	validFeeExcess := isStart || !isLast || local.Excess.IsZero()
	addCheck(local, types.FailureInvalidFeeExcess, validFeeExcess)

	isStartOrLast := isStart || isLast
	updateGlobalExcess := isStartOrLast && local.Success
	{
		res, overflow := global.FeeExcess.AddFlagged(local.Excess)
		failed := updateGlobalExcess && overflow
		if updateGlobalExcess {
			global.FeeExcess = res
		}
		addCheck(local, types.FailureGlobalExcessOverflow, !failed)
	}
	if isStartOrLast {
		local.Excess = types.SignedZero()
	}

	newGlobalSupply, supplyOverflow := global.SupplyIncrease.AddFlagged(local.SupplyIncrease)
	addCheck(local, types.FailureGlobalSupplyIncreaseOverflow, !supplyOverflow)

	// The first update of a command must succeed outright.
	if isStart && !local.Success {
		return fmt.Errorf("%w: %v", ErrFirstUpdateFailed, local.FailureTable.Row(int(local.AccountUpdateIndex)))
	}

	// Fee payer boundary: first-pass ledger absorbs the fee, the rest of
	// the command runs on the second pass.
	if isStart {
		global.FirstPassLedger = local.Ledger
		local.Ledger = global.SecondPassLedger
	}

	if isLast && local.Success && !local.WillSucceed {
		return fmt.Errorf("%w: will-succeed flag disagrees with outcome", ErrAssertionFailed)
	}

	if isLast && local.Success {
		global.SupplyIncrease = newGlobalSupply
		global.SecondPassLedger = local.Ledger
	}

	if isLast {
		local.Ledger = nil
		local.Success = true
		local.AccountUpdateIndex = 0
		local.SupplyIncrease = types.SignedZero()
		local.WillSucceed = true
	} else {
		local.AccountUpdateIndex++
	}

	return nil
}

// zkappIsDefault reports whether the record carries nothing beyond the
// empty zkApp state.
func zkappIsDefault(z *account.ZkappAccount) bool {
	if z == nil {
		return true
	}
	empty := account.EmptyZkapp()
	if z.VerificationKey.IsSome || z.ZkappVersion != 0 || z.LastActionSlot != 0 ||
		z.ProvedState || z.ZkappURI != "" {
		return false
	}
	for i := range z.AppState {
		if !z.AppState[i].IsZero() {
			return false
		}
	}
	for i := range z.ActionState {
		if !z.ActionState[i].Equal(&empty.ActionState[i]) {
			return false
		}
	}
	return true
}

// verificationKeyPermFallbackToSignatureWithOlderVersion downgrades a
// vk-setting policy written under an older transaction version. Preserved
// exactly: proof-gated policies become signature-gated, everything else is
// untouched.
func verificationKeyPermFallbackToSignatureWithOlderVersion(auth account.AuthRequired) account.AuthRequired {
	switch auth {
	case account.AuthProof, account.AuthEither:
		return account.AuthSignature
	default:
		return auth
	}
}
