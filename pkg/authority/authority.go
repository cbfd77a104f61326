// Copyright 2025 Certen Protocol
//
// Package authority implements spec.md §4.F, the authority state machine:
// shard routing and the four core handlers (transfer order, confirmation
// order, cross-shard recipient commit, account info query). Each shard is
// an independent logical actor (spec.md §5) serialized by its own mutex;
// across shards, handler execution is concurrent.
package authority

import (
	"hash/fnv"
	"sync"

	"github.com/fastpay/authority/pkg/account"
	"github.com/fastpay/authority/pkg/committee"
	"github.com/fastpay/authority/pkg/errs"
	"github.com/fastpay/authority/pkg/messages"
	"github.com/fastpay/authority/pkg/types"
)

// shard owns one slice of the account space. Its mutex is the sole
// synchronization point for every handler touching an account routed here.
type shard struct {
	mu    sync.Mutex
	store *account.Store
}

// Authority is one committee member's local process: its own keypair, the
// (immutable, shared) committee view, and its set of shard actors.
type Authority struct {
	Name      types.AuthorityName
	secret    *types.KeyPair
	committee *committee.Committee
	numShards uint32
	shards    []*shard
}

// New constructs an Authority with numShards empty, in-memory shard stores
// (spec.md §4.D.1). secret is this authority's own Coconut-independent
// Ed25519 signing key; committee is the genesis-agreed, immutable authority
// set (spec.md §5: "immutable after process start").
func New(secret *types.KeyPair, cmt *committee.Committee, numShards uint32) *Authority {
	if numShards == 0 {
		numShards = 1
	}
	a := &Authority{
		Name:      secret.Address(),
		secret:    secret,
		committee: cmt,
		numShards: numShards,
		shards:    make([]*shard, numShards),
	}
	for i := range a.shards {
		a.shards[i] = &shard{store: account.NewMemStore()}
	}
	return a
}

// ShardOf implements spec.md's `shard_of(account_id) = stable_hash(account_id)
// mod num_shards`. FNV-1a gives a stable, uniformly-distributed hash without
// pulling in a third-party hashing library for what is an internal routing
// decision, not a wire format.
func (a *Authority) ShardOf(id types.AccountId) uint32 {
	h := fnv.New32a()
	h.Write(id.Bytes())
	return h.Sum32() % a.numShards
}

func (a *Authority) shardFor(id types.AccountId) (*shard, uint32) {
	idx := a.ShardOf(id)
	return a.shards[idx], idx
}

// IsLocalShard reports whether account id is routed to a shard this
// Authority instance owns — always true in this single-process reference
// design (every shard configured for an authority lives in its one
// process), so the handlers' explicit WrongShard checks (spec.md §4.F
// step 1) never fire today; a future multi-process shard split only needs
// to change this method for them to take effect.
func (a *Authority) IsLocalShard(id types.AccountId) bool {
	return a.ShardOf(id) < a.numShards
}

// HandleTransferOrder implements spec.md §4.F "Handler: handle_transfer_order".
func (a *Authority) HandleTransferOrder(order messages.TransferOrder) (*messages.SignedVote, error) {
	if !a.IsLocalShard(order.Data.Sender) {
		return nil, errs.New(errs.WrongShard, "sender account is not routed to this authority's shard set")
	}
	s, _ := a.shardFor(order.Data.Sender)
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, err := s.store.GetOrCreate(order.Data.Sender)
	if err != nil {
		return nil, err
	}

	if acc.PendingConfirmation != nil {
		if acc.PendingConfirmation.Order.Equal(order) {
			// P2: idempotent retry returns the identical vote unchanged.
			return acc.PendingConfirmation, nil
		}
		return nil, errs.New(errs.PreviousTransferMustBeConfirmedFirst,
			"a different order is already pending at this sequence")
	}

	if err := acc.ValidateTransferOrder(order); err != nil {
		return nil, err
	}

	d, err := order.Digest()
	if err != nil {
		return nil, err
	}
	vote := &messages.SignedVote{
		Order:     order,
		Authority: a.Name,
		Signature: a.secret.SignDigest(d),
	}
	acc.PendingConfirmation = vote
	if err := s.store.Put(order.Data.Sender, acc); err != nil {
		return nil, err
	}
	return vote, nil
}

// ConfirmationEffects is what the dispatch shell (pkg/server) must do after
// a confirmation order is accepted: answer the submitter and forward the
// cross-shard credit. A replay of an already-confirmed certificate re-emits
// the same commit, and the recipient's ApplyCredit ignores the duplicate.
type ConfirmationEffects struct {
	Info   *messages.InfoResponse
	Commit *messages.CrossShardRecipientCommit // set for fresh confirmations and matching replays alike
}

// HandleConfirmationOrder implements spec.md §4.F "Handler:
// handle_confirmation_order".
func (a *Authority) HandleConfirmationOrder(cert messages.Certificate) (*ConfirmationEffects, error) {
	d, err := cert.Digest()
	if err != nil {
		return nil, err
	}
	votes := make([]committee.Signed, 0, len(cert.Signatures))
	for _, sig := range cert.Signatures {
		votes = append(votes, committee.Signed{Name: sig.Authority, Signature: sig.Signature})
	}
	if err := a.committee.BatchVerify(d, votes); err != nil {
		return nil, err
	}

	sender := cert.Value.Data.Sender
	if !a.IsLocalShard(sender) {
		return nil, errs.New(errs.WrongShard, "sender account is not routed to this authority's shard set")
	}
	s, _ := a.shardFor(sender)
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, err := s.store.GetOrCreate(sender)
	if err != nil {
		return nil, err
	}

	seq := cert.Value.Data.Sequence
	switch {
	case seq < acc.NextSequence:
		// Stale certificate: re-emit its cross-shard effect if it matches
		// history (idempotent replay, P3), otherwise the log disagrees
		// with what we hold — an authority never stores two certificates
		// at the same sequence (I2), so a mismatch here means the caller
		// is replaying a different, never-confirmed-by-us order.
		if int(seq) >= len(acc.ConfirmedLog) {
			return nil, errs.New(errs.UnexpectedSequenceNumber, "sequence below next_sequence has no matching confirmed_log entry")
		}
		prior := acc.ConfirmedLog[seq]
		priorDigest, err := prior.Digest()
		if err != nil {
			return nil, err
		}
		if priorDigest != d {
			return nil, errs.New(errs.UnexpectedSequenceNumber, "replayed certificate does not match confirmed_log history")
		}
		commit := &messages.CrossShardRecipientCommit{Certificate: prior}
		return &ConfirmationEffects{Info: infoResponseFor(sender, acc), Commit: commit}, nil

	case seq > acc.NextSequence:
		return nil, errs.New(errs.MissingEarlierConfirmations, "certificate sequence is ahead of next_sequence")

	default:
		if err := acc.ApplyConfirmation(cert); err != nil {
			return nil, err
		}
		if err := s.store.Put(sender, acc); err != nil {
			return nil, err
		}
		commit := &messages.CrossShardRecipientCommit{Certificate: cert}
		return &ConfirmationEffects{Info: infoResponseFor(sender, acc), Commit: commit}, nil
	}
}

// HandleCrossShardRecipientCommit implements spec.md §4.F "Handler:
// handle_cross_shard_recipient_commit".
func (a *Authority) HandleCrossShardRecipientCommit(commit messages.CrossShardRecipientCommit) error {
	d, err := commit.Certificate.Digest()
	if err != nil {
		return err
	}
	votes := make([]committee.Signed, 0, len(commit.Certificate.Signatures))
	for _, sig := range commit.Certificate.Signatures {
		votes = append(votes, committee.Signed{Name: sig.Authority, Signature: sig.Signature})
	}
	if err := a.committee.BatchVerify(d, votes); err != nil {
		return err
	}

	recipient := commit.Certificate.Value.Data.Recipient
	if !a.IsLocalShard(recipient) {
		return errs.New(errs.WrongShard, "recipient account is not routed to this authority's shard set")
	}
	s, _ := a.shardFor(recipient)
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, err := s.store.GetOrCreate(recipient)
	if err != nil {
		return err
	}
	if err := acc.ApplyCredit(commit.Certificate); err != nil {
		return err
	}
	return s.store.Put(recipient, acc)
}

// AcknowledgeCrossShardCommit removes cert from the sender account's
// synchronization_log once the recipient shard (possibly on another
// authority process) has acknowledged the credit, ending retransmission
// (spec.md §4.F "Cross-shard delivery contract").
func (a *Authority) AcknowledgeCrossShardCommit(cert messages.Certificate) error {
	sender := cert.Value.Data.Sender
	if !a.IsLocalShard(sender) {
		return errs.New(errs.WrongShard, "sender account is not routed to this authority's shard set")
	}
	s, _ := a.shardFor(sender)
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, err := s.store.GetOrCreate(sender)
	if err != nil {
		return err
	}
	if err := acc.AcknowledgeSync(cert); err != nil {
		return err
	}
	return s.store.Put(sender, acc)
}

// PendingCrossShardCommits returns a copy of the sender account's current
// synchronization_log (certificates whose credit is not yet acknowledged).
// The dispatch shell's retransmission scheduler does not read it; it keeps
// its own outbox in pkg/server.
func (a *Authority) PendingCrossShardCommits(sender types.AccountId) ([]messages.Certificate, error) {
	s, _ := a.shardFor(sender)
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok, err := s.store.Get(sender)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	out := make([]messages.Certificate, len(acc.SynchronizationLog))
	copy(out, acc.SynchronizationLog)
	return out, nil
}

// SeedAccount installs an account's genesis balance (InitialStateConfig,
// spec.md §3 "Lifecycles": "an account is created at genesis..."). It is
// meant to be called once, before the authority starts serving requests.
func (a *Authority) SeedAccount(id types.AccountId, balance types.Balance) error {
	s, _ := a.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Put(id, account.New(id, balance))
}

// CreditAccountDirect applies an unconditional credit to id's balance,
// outside the certificate pipeline — used by the Coconut extension's
// handle_coin_spend (spec.md §4.G), which credits a destination account on
// a verified credential rather than a quorum-certified transfer. It
// satisfies pkg/coconut's AccountCredit interface.
func (a *Authority) CreditAccountDirect(id types.AccountId, amount types.Amount) error {
	s, _ := a.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, err := s.store.GetOrCreate(id)
	if err != nil {
		return err
	}
	newBalance, err := acc.Balance.TryAdd(amount)
	if err != nil {
		return err
	}
	acc.Balance = newBalance
	return s.store.Put(id, acc)
}

// HandleAccountInfoRequest implements spec.md §4.F "Info query". Read-only.
func (a *Authority) HandleAccountInfoRequest(req messages.InfoRequest) (*messages.InfoResponse, error) {
	if !a.IsLocalShard(req.AccountId) {
		return nil, errs.New(errs.WrongShard, "account is not routed to this authority's shard set")
	}
	s, _ := a.shardFor(req.AccountId)
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok, err := s.store.Get(req.AccountId)
	if err != nil {
		return nil, err
	}
	if !ok {
		acc = account.New(req.AccountId, types.ZeroBalance())
	}
	resp := infoResponseFor(req.AccountId, acc)
	if req.HasRequestSequence {
		if req.RequestSequence >= uint64(len(acc.ConfirmedLog)) {
			return nil, errs.New(errs.InvalidSequenceNumber, "requested confirmed_log entry does not exist")
		}
		resp.HasRequestedCertificate = true
		resp.RequestedCertificate = acc.ConfirmedLog[req.RequestSequence]
	}
	return resp, nil
}

func infoResponseFor(id types.AccountId, acc *account.Account) *messages.InfoResponse {
	resp := &messages.InfoResponse{
		AccountId:    id,
		HasOwner:     true,
		Owner:        id,
		Balance:      acc.Balance,
		NextSequence: acc.NextSequence,
	}
	if acc.PendingConfirmation != nil {
		resp.HasPendingVote = true
		resp.PendingVote = *acc.PendingConfirmation
	}
	return resp
}
