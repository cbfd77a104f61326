// Copyright 2025 Certen Protocol

package server

import (
	"math/big"
	"testing"

	"github.com/fastpay/authority/pkg/authority"
	"github.com/fastpay/authority/pkg/committee"
	"github.com/fastpay/authority/pkg/messages"
	"github.com/fastpay/authority/pkg/types"
)

// maxI128 mirrors the bound types.Balance enforces, used here to force a
// credit into BalanceOverflow on every retry attempt.
var maxI128 = func() *big.Int {
	v := new(big.Int).Lsh(big.NewInt(1), 127)
	return v.Sub(v, big.NewInt(1))
}()

func buildOverflowingCommit(t *testing.T, auth *types.KeyPair, cmt *committee.Committee, recipient types.AccountId) messages.CrossShardRecipientCommit {
	t.Helper()
	sender := mustKeyPair(t)
	data := messages.TransferOrderData{Sender: sender.Address(), Recipient: recipient, Amount: 1, Sequence: 0}
	digest, err := data.Digest()
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	order := messages.TransferOrder{Data: data, SenderSignature: sender.SignDigest(digest)}
	orderDigest, err := order.Digest()
	if err != nil {
		t.Fatalf("order digest: %v", err)
	}
	cert := messages.NewCertificate(order, []messages.AuthoritySignature{
		{Authority: auth.Address(), Signature: auth.SignDigest(orderDigest)},
	})
	return messages.CrossShardRecipientCommit{Certificate: cert}
}

// TestRetransmitterExhaustsAfterMaxAttempts confirms a commit that keeps
// failing to apply is retried exactly maxAttempts times and then left
// queued, not dropped (spec.md §5: "kept in synchronization_log
// indefinitely for manual retry").
func TestRetransmitterExhaustsAfterMaxAttempts(t *testing.T) {
	auth := mustKeyPair(t)
	recipientKp := mustKeyPair(t)
	recipient := recipientKp.Address()

	cmt, err := committee.New(map[types.AuthorityName]uint64{auth.Address(): 1})
	if err != nil {
		t.Fatalf("committee: %v", err)
	}
	a := authority.New(auth, cmt, 1)
	if err := a.SeedAccount(recipient, types.BalanceFromBigInt(maxI128)); err != nil {
		t.Fatalf("seed recipient: %v", err)
	}

	srv := New(Config{Authority: a, MaxAttempts: 3})
	commit := buildOverflowingCommit(t, auth, cmt, recipient)
	srv.scheduler.enqueue(recipient, commit)

	for i := 0; i < 3; i++ {
		srv.scheduler.retryOnce()
	}

	srv.scheduler.mu.Lock()
	if len(srv.scheduler.outbox) != 1 {
		srv.scheduler.mu.Unlock()
		t.Fatalf("expected the exhausted commit to remain queued, got %d entries", len(srv.scheduler.outbox))
	}
	if !srv.scheduler.outbox[0].exhausted {
		srv.scheduler.mu.Unlock()
		t.Fatalf("expected commit to be marked exhausted after %d attempts", srv.scheduler.maxAttempts)
	}
	if srv.scheduler.outbox[0].attempts != 3 {
		srv.scheduler.mu.Unlock()
		t.Fatalf("expected 3 recorded attempts, got %d", srv.scheduler.outbox[0].attempts)
	}
	srv.scheduler.mu.Unlock()

	// A further retryOnce must not re-attempt an exhausted entry.
	srv.scheduler.retryOnce()
	srv.scheduler.mu.Lock()
	attempts := srv.scheduler.outbox[0].attempts
	srv.scheduler.mu.Unlock()
	if attempts != 3 {
		t.Fatalf("exhausted commit should not be retried further, attempts now %d", attempts)
	}
}

// TestRetransmitterDropsOnceAcknowledged confirms a queued commit that
// succeeds on retry is removed from the outbox.
func TestRetransmitterDropsOnceAcknowledged(t *testing.T) {
	auth := mustKeyPair(t)
	sender := mustKeyPair(t)
	recipient := mustKeyPair(t).Address()

	cmt, err := committee.New(map[types.AuthorityName]uint64{auth.Address(): 1})
	if err != nil {
		t.Fatalf("committee: %v", err)
	}
	a := authority.New(auth, cmt, 1)
	if err := a.SeedAccount(sender.Address(), types.NewBalance(100)); err != nil {
		t.Fatalf("seed sender: %v", err)
	}

	data := messages.TransferOrderData{Sender: sender.Address(), Recipient: recipient, Amount: 10, Sequence: 0}
	digest, err := data.Digest()
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	order := messages.TransferOrder{Data: data, SenderSignature: sender.SignDigest(digest)}
	orderDigest, err := order.Digest()
	if err != nil {
		t.Fatalf("order digest: %v", err)
	}
	cert := messages.NewCertificate(order, []messages.AuthoritySignature{
		{Authority: auth.Address(), Signature: auth.SignDigest(orderDigest)},
	})
	commit := messages.CrossShardRecipientCommit{Certificate: cert}

	srv := New(Config{Authority: a, MaxAttempts: 5})
	srv.scheduler.enqueue(sender.Address(), commit)
	srv.scheduler.retryOnce()

	srv.scheduler.mu.Lock()
	defer srv.scheduler.mu.Unlock()
	if len(srv.scheduler.outbox) != 0 {
		t.Fatalf("expected the acknowledged commit to be dropped from the outbox")
	}
}
