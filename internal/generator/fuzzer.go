package generator

import (
	"fmt"
	"math/rand"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/minacore/ledger/internal/account"
	"github.com/minacore/ledger/internal/command"
	"github.com/minacore/ledger/internal/ledger"
	"github.com/minacore/ledger/internal/signer"
	"github.com/minacore/ledger/internal/zkapp"
	"github.com/minacore/ledger/pkg/types"
)

// poolAccount pairs a key with its id and the nonce the generator has used
// up to.
type poolAccount struct {
	key   *signer.PrivateKey
	id    types.AccountID
	nonce types.Nonce
}

// FuzzerCtx generates well-typed commands against an account pool. The rng
// handle is explicit: two contexts built from the same seed emit identical
// streams. Fresh accounts minted inside a command wait in staged until the
// command is finished, then join the pool.
type FuzzerCtx struct {
	cfg    *Config
	rng    *rand.Rand
	pool   []*poolAccount
	staged []*poolAccount
}

// New builds a context and its key pool from the config seed.
func New(cfg *Config) (*FuzzerCtx, error) {
	f := &FuzzerCtx{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
	for i := 0; i < cfg.PoolSize; i++ {
		key, err := signer.GeneratePrivateKey(f.rng)
		if err != nil {
			return nil, err
		}
		f.pool = append(f.pool, &poolAccount{
			key: key,
			id:  types.NewAccountID(key.PublicKey(), types.DefaultTokenID()),
		})
	}
	return f, nil
}

// SeedLedger funds the pool accounts in the mask, in pool order. A slice of
// the pool gets a signature-gated receive controller per the configured mix.
func (f *FuzzerCtx) SeedLedger(mask *ledger.Mask) error {
	for _, p := range f.pool {
		acct := account.Initialize(p.id)
		acct.Balance = types.Balance(f.cfg.InitialBalance)
		if f.flip(f.cfg.StrictReceiveProb) {
			acct.Permissions.Receive = account.AuthSignature
		}
		if _, _, err := mask.GetOrCreateAccount(p.id, acct); err != nil {
			return err
		}
	}
	return nil
}

// Pool exposes the generated account ids.
func (f *FuzzerCtx) Pool() []types.AccountID {
	ids := make([]types.AccountID, len(f.pool))
	for i, p := range f.pool {
		ids[i] = p.id
	}
	return ids
}

func (f *FuzzerCtx) pick() *poolAccount {
	return f.pool[f.rng.Intn(len(f.pool))]
}

// pickParty draws the target of a credit or payment: an existing pool
// account with the configured 0.9 bias, else a fresh keypair. Fresh parties
// are staged and only join the pool once the current command is complete,
// so a command never spends from an account it has not created yet.
func (f *FuzzerCtx) pickParty() (*poolAccount, bool) {
	if f.flip(f.cfg.NewAccountProb) {
		if key, err := signer.GeneratePrivateKey(f.rng); err == nil {
			p := &poolAccount{
				key: key,
				id:  types.NewAccountID(key.PublicKey(), types.DefaultTokenID()),
			}
			f.staged = append(f.staged, p)
			return p, true
		}
	}
	return f.pick(), false
}

// flushStaged admits the command's fresh accounts into the pool.
func (f *FuzzerCtx) flushStaged() {
	f.pool = append(f.pool, f.staged...)
	f.staged = nil
}

func (f *FuzzerCtx) flip(p float64) bool {
	return f.rng.Float64() < p
}

func (f *FuzzerCtx) randField() fr.Element {
	var buf [32]byte
	f.rng.Read(buf[:16])
	var e fr.Element
	e.SetBytes(buf[:])
	return e
}

// GenSignedCommand emits a signed payment or stake delegation from a pool
// account.
func (f *FuzzerCtx) GenSignedCommand() *command.SignedCommand {
	src := f.pick()
	kind := command.KindPayment
	if f.flip(0.2) {
		kind = command.KindStakeDelegation
	}

	// Payment receivers follow the 0.9/0.1 existing/new bias and fresh
	// ones are funded well past the creation fee; delegation targets stay
	// in the pool.
	var rcv *poolAccount
	rcvIsNew := false
	if kind == command.KindPayment {
		rcv, rcvIsNew = f.pickParty()
	} else {
		rcv = f.pick()
	}
	receiver := rcv.id.PublicKey
	amount := types.Amount(f.rng.Intn(1_000_000_000))
	if rcvIsNew {
		amount += freshAccountFunding
	}

	memo, _ := command.MemoFromString(fmt.Sprintf("fuzz-%d", f.rng.Intn(1<<20)))
	c := &command.SignedCommand{
		Payload: command.SignedCommandPayload{
			Fee:      types.Fee(1_000_000 + f.rng.Intn(1_000_000)),
			FeePayer: src.id.PublicKey,
			Nonce:    src.nonce,
			Memo:     memo,
			Body: command.SignedCommandBody{
				Kind:     kind,
				Receiver: receiver,
				Amount:   amount,
			},
		},
	}
	c.Sign(src.key)
	src.nonce++
	f.flushStaged()
	return c
}

// genAccountPrecondition emits either wide-open preconditions or intervals around
// the account's current nonce.
func (f *FuzzerCtx) genAccountPrecondition(nonce types.Nonce, exact bool) command.AccountPrecondition {
	if exact {
		return command.NonceExactly(nonce)
	}
	if f.flip(f.cfg.PreconditionAcceptProb) {
		return command.AcceptAccount()
	}
	p := command.AcceptAccount()
	lo := uint32(0)
	if uint32(nonce) > 4 {
		lo = uint32(nonce) - 4
	}
	p.Nonce = command.Between(lo, uint32(nonce)+4)
	return p
}

// genUpdateDiff rolls each set-or-keep field independently.
func (f *FuzzerCtx) genUpdateDiff() command.Update {
	var u command.Update
	for i := range u.AppState {
		if f.flip(f.cfg.SetProb) {
			u.AppState[i] = types.SetTo(f.randField())
		}
	}
	if f.flip(f.cfg.SetProb) {
		u.VotingFor = types.SetTo(f.randField())
	}
	if f.flip(f.cfg.SetProb / 2) {
		u.ZkappURI = types.SetTo(fmt.Sprintf("https://zkapp.example/%d", f.rng.Intn(1<<16)))
	}
	return u
}

// freshAccountFunding is what a fresh account is credited with on top of
// the implicit creation fee, so it can later pay fees and debits itself.
const freshAccountFunding = types.Amount(zkapp.AccountCreationFee) + 1_000_000_000

// genForest builds a balanced set of debit/credit updates, recursing below
// the depth bound. Debits always draw from the pool; credit targets follow
// the 0.9/0.1 existing/new bias, so fresh leaves flow through the engine's
// account-creation path. Every emitted pair nets to zero so the command's
// local excess settles.
func (f *FuzzerCtx) genForest(depth int) command.CallForest {
	if depth >= f.cfg.MaxForestDepth {
		return nil
	}
	var forest command.CallForest
	pairs := 1 + f.rng.Intn(f.cfg.MaxUpdatesPerLevel)
	for i := 0; i < pairs; i++ {
		from := f.pick()
		to, toIsNew := f.pickParty()
		amount := types.Amount(1 + f.rng.Intn(1_000_000))
		if toIsNew {
			amount += freshAccountFunding
		}

		debit := f.genUpdate(from, types.SignedOf(amount).Negate(), depth, false)
		credit := f.genUpdate(to, types.SignedOf(amount), depth, toIsNew)
		forest = append(forest, debit, credit)
	}
	return forest
}

// genUpdate emits one update node; debits are signed, credits may carry a
// proof or nothing. A credit that materialises a fresh account pays the
// creation fee implicitly out of its own balance change.
func (f *FuzzerCtx) genUpdate(p *poolAccount, delta types.Signed, depth int, isNew bool) *command.Node {
	body := command.Body{
		PublicKey:     p.id.PublicKey,
		TokenID:       p.id.TokenID,
		Update:        f.genUpdateDiff(),
		BalanceChange: delta,
		Preconditions: command.Preconditions{
			Network: command.AcceptProtocolState(),
			Account: f.genAccountPrecondition(p.nonce, false),
		},
		UseFullCommitment:          true,
		ImplicitAccountCreationFee: isNew,
		MayUseToken:                command.MayUseTokenNo,
	}
	switch {
	case delta.IsNeg():
		body.AuthorizationKind = command.AuthKindSignature
	case f.flip(f.cfg.ProofProb):
		body.AuthorizationKind = command.AuthKindProof
		body.VkHash = account.DummyVkHash()
		// Setting app state needs edit_state = Signature under default
		// permissions; a proof cannot carry it.
		body.Update = command.NoUpdate()
	default:
		body.AuthorizationKind = command.AuthKindNoneGiven
		body.Update = command.NoUpdate()
	}

	var calls command.CallForest
	if f.flip(0.3) {
		calls = f.genForest(depth + 1)
	}
	return command.NewNode(command.AccountUpdate{Body: body}, calls)
}

// GenZkAppCommand builds a full zkApp command: bodies first, then the fee
// payer's signature over the full commitment and each signature-authorised
// update's signature over its chosen commitment. Proof-authorised updates
// get shape-valid random proofs; the generator never signs them.
func (f *FuzzerCtx) GenZkAppCommand() *command.ZkAppCommand {
	payer := f.pick()
	memo, _ := command.MemoFromString(fmt.Sprintf("zkfuzz-%d", f.rng.Intn(1<<20)))

	cmd := &command.ZkAppCommand{
		FeePayer: command.FeePayer{
			Body: command.FeePayerBody{
				PublicKey: payer.id.PublicKey,
				Fee:       types.Fee(1_000_000 + f.rng.Intn(10_000_000)),
				Nonce:     payer.nonce,
			},
		},
		AccountUpdates: f.genForest(0),
		Memo:           memo,
	}
	payer.nonce++
	f.flushStaged()

	full := cmd.FullCommitment()
	tx := cmd.TxCommitment()
	cmd.FeePayer.Authorization = signer.Sign(payer.key, signer.FlavourCommitment, full)

	cmd.AccountUpdates.ForEach(func(u *command.AccountUpdate) {
		switch u.Body.AuthorizationKind {
		case command.AuthKindSignature:
			key := f.keyFor(u.Body.PublicKey)
			msg := tx
			if u.Body.UseFullCommitment {
				msg = full
			}
			u.Authorization = command.Control{
				Kind:      command.AuthKindSignature,
				Signature: signer.Sign(key, signer.FlavourCommitment, msg),
			}
		case command.AuthKindProof:
			proof := make([]byte, 64)
			f.rng.Read(proof)
			u.Authorization = command.Control{Kind: command.AuthKindProof, Proof: proof}
		default:
			u.Authorization = command.NoneControl()
		}
	})
	return cmd
}

// GenTransaction emits a random command of either kind.
func (f *FuzzerCtx) GenTransaction() command.Transaction {
	if f.flip(0.5) {
		return command.Transaction{Signed: f.GenSignedCommand()}
	}
	return command.Transaction{Zkapp: f.GenZkAppCommand()}
}

func (f *FuzzerCtx) keyFor(pk types.CompressedPubKey) *signer.PrivateKey {
	for _, p := range f.pool {
		if p.id.PublicKey.Equal(pk) {
			return p.key
		}
	}
	panic("generator: key outside pool")
}
