// Copyright 2025 Certen Protocol
//
// Package account implements spec.md §4.D: the per-account ledger entry
// and its pure (no I/O) state transitions. Accounts are mutated only by
// their home shard's handlers (pkg/authority); everything in this file is
// deterministic and free of side effects so it can be unit tested in
// isolation from the store and the network.
package account

import (
	"github.com/fastpay/authority/pkg/errs"
	"github.com/fastpay/authority/pkg/messages"
	"github.com/fastpay/authority/pkg/types"
)

// Account is the home-shard record for one AccountId (spec.md §3). An
// account's identity is its AccountId itself — in FastPay the account
// address and the owner's Ed25519 public key are the same value (spec.md
// §3 Glossary), so there is no separate nullable "owner" to track: a
// TransferOrder is valid for this account iff its Sender equals ID.
type Account struct {
	ID                  types.AccountId
	Balance             types.Balance
	NextSequence        types.SequenceNumber
	PendingConfirmation *messages.SignedVote

	// ConfirmedLog[k] certifies the outgoing transfer with sequence k
	// (invariant I2): len(ConfirmedLog) == NextSequence.
	ConfirmedLog []messages.Certificate

	// SynchronizationLog holds outgoing certificates whose cross-shard
	// credit has not yet been acknowledged; AcknowledgeSync removes an entry
	// once its credit is acked (spec.md §4.F "Cross-shard delivery
	// contract"). The dispatch shell retransmits from its own outbox in
	// pkg/server, not from this log.
	SynchronizationLog []messages.Certificate

	// ReceivedLog is certificates that credited this account, deduplicated
	// by digest (invariant I5). receivedSet mirrors it for O(1) membership.
	ReceivedLog []messages.Certificate
	receivedSet map[[32]byte]struct{}
}

// New creates a fresh account record for id, with initialBalance and an
// empty history (spec.md §3 "Lifecycles").
func New(id types.AccountId, initialBalance types.Balance) *Account {
	return &Account{
		ID:          id,
		Balance:     initialBalance,
		receivedSet: make(map[[32]byte]struct{}),
	}
}

func (a *Account) ensureReceivedSet() {
	if a.receivedSet == nil {
		a.receivedSet = make(map[[32]byte]struct{}, len(a.ReceivedLog))
		for _, cert := range a.ReceivedLog {
			if d, err := cert.Digest(); err == nil {
				a.receivedSet[d] = struct{}{}
			}
		}
	}
}

// HasReceived reports whether cert is already recorded in ReceivedLog
// (invariant I5, O(1)).
func (a *Account) HasReceived(cert messages.Certificate) (bool, error) {
	a.ensureReceivedSet()
	d, err := cert.Digest()
	if err != nil {
		return false, err
	}
	_, ok := a.receivedSet[d]
	return ok, nil
}

// ValidateTransferOrder checks owner match, signature, sequence, and
// sufficient post-debit balance, and that the pending slot (if any)
// already covers this exact order (spec.md §4.D). It never mutates a.
func (a *Account) ValidateTransferOrder(order messages.TransferOrder) error {
	if a.ID != order.Data.Sender {
		return errs.New(errs.IncorrectSigner, "transfer order sender does not match account owner")
	}
	if err := order.Verify(); err != nil {
		return err
	}
	if order.Data.Sequence != a.NextSequence {
		return errs.New(errs.InvalidSequenceNumber, "order sequence does not match account's next_sequence")
	}
	if a.PendingConfirmation != nil {
		if !a.PendingConfirmation.Order.Equal(order) {
			return errs.New(errs.PreviousTransferMustBeConfirmedFirst,
				"this authority has already voted a different order at this sequence")
		}
		// Identical retry: validation succeeds idempotently.
		return nil
	}
	after, err := a.Balance.TrySub(order.Data.Amount)
	if err != nil {
		return err
	}
	if after.IsNegative() {
		return errs.New(errs.InsufficientFunding, "balance would go negative")
	}
	return nil
}

// ApplyConfirmation debits the account and appends cert to ConfirmedLog
// and SynchronizationLog, advancing NextSequence (spec.md §4.D). Precondition
// (checked): cert.Value.Data.Sequence == a.NextSequence.
func (a *Account) ApplyConfirmation(cert messages.Certificate) error {
	if cert.Value.Data.Sequence != a.NextSequence {
		return errs.New(errs.UnexpectedSequenceNumber, "certificate sequence does not match account's next_sequence")
	}
	newBalance, err := a.Balance.TrySub(cert.Value.Data.Amount)
	if err != nil {
		return err
	}
	if newBalance.IsNegative() {
		return errs.New(errs.InsufficientFunding, "confirmation would drive balance negative")
	}
	next, err := a.NextSequence.Next()
	if err != nil {
		return err
	}
	a.Balance = newBalance
	a.ConfirmedLog = append(a.ConfirmedLog, cert)
	a.SynchronizationLog = append(a.SynchronizationLog, cert)
	a.NextSequence = next
	a.PendingConfirmation = nil
	return nil
}

// ApplyCredit credits the account by cert's amount, unless cert is already
// present in ReceivedLog (invariant I5 — set-idempotent by certificate
// identity, spec.md §4.F).
func (a *Account) ApplyCredit(cert messages.Certificate) error {
	already, err := a.HasReceived(cert)
	if err != nil {
		return err
	}
	if already {
		return nil // idempotent no-op, P3
	}
	newBalance, err := a.Balance.TryAdd(cert.Value.Data.Amount)
	if err != nil {
		return err
	}
	a.Balance = newBalance
	a.ReceivedLog = append(a.ReceivedLog, cert)
	d, err := cert.Digest()
	if err != nil {
		return err
	}
	a.ensureReceivedSet()
	a.receivedSet[d] = struct{}{}
	return nil
}

// AcknowledgeSync removes cert from SynchronizationLog once the recipient
// shard has acknowledged the cross-shard credit.
func (a *Account) AcknowledgeSync(cert messages.Certificate) error {
	target, err := cert.Digest()
	if err != nil {
		return err
	}
	out := a.SynchronizationLog[:0]
	for _, c := range a.SynchronizationLog {
		d, err := c.Digest()
		if err != nil {
			return err
		}
		if d != target {
			out = append(out, c)
		}
	}
	a.SynchronizationLog = out
	return nil
}
