// Copyright 2025 Certen Protocol
//
// The retransmission scheduler drives spec.md §4.F's cross-shard delivery
// contract ("at-least-once... synchronization_log drives periodic
// retransmission until acknowledged") for commits that failed their first,
// synchronous delivery attempt. Its Start/Stop/ticker-loop shape follows
// the teacher's own pkg/batch.Scheduler.
package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/fastpay/authority/pkg/messages"
	"github.com/fastpay/authority/pkg/types"
)

type schedulerState string

const (
	schedulerStopped schedulerState = "stopped"
	schedulerRunning schedulerState = "running"
)

// queuedCommit is one outstanding cross-shard credit awaiting
// retransmission, with its own attempt counter (spec.md §5 "Cross-shard
// retransmission is bounded by max_attempts; after exhaustion the message
// is kept... indefinitely for manual retry").
type queuedCommit struct {
	sender   types.AccountId
	commit   messages.CrossShardRecipientCommit
	attempts int
	exhausted bool
}

// retransmitter owns the outbox of queuedCommits and the ticker loop that
// retries them. It is embedded in Server rather than exported on its own,
// since nothing outside this package needs to address it directly.
type retransmitter struct {
	server      *Server
	interval    time.Duration
	maxAttempts int
	logger      *log.Logger

	mu     sync.Mutex
	state  schedulerState
	outbox []*queuedCommit
	stopCh chan struct{}
	doneCh chan struct{}
}

func newRetransmitter(s *Server, interval time.Duration, maxAttempts int, logger *log.Logger) *retransmitter {
	return &retransmitter{
		server:      s,
		interval:    interval,
		maxAttempts: maxAttempts,
		logger:      logger,
		state:       schedulerStopped,
	}
}

func (r *retransmitter) enqueue(sender types.AccountId, commit messages.CrossShardRecipientCommit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outbox = append(r.outbox, &queuedCommit{sender: sender, commit: commit})
}

func (r *retransmitter) start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == schedulerRunning {
		return
	}
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.state = schedulerRunning
	go r.run(ctx)
}

func (r *retransmitter) stop() {
	r.mu.Lock()
	if r.state != schedulerRunning {
		r.mu.Unlock()
		return
	}
	close(r.stopCh)
	r.state = schedulerStopped
	r.mu.Unlock()
	<-r.doneCh
}

func (r *retransmitter) run(ctx context.Context) {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.retryOnce()
		}
	}
}

// retryOnce attempts every not-yet-exhausted queued commit once. A commit
// that delivers successfully is acknowledged and dropped from the outbox;
// one that reaches maxAttempts is marked exhausted and left in place for
// manual intervention rather than retried forever (spec.md §5).
func (r *retransmitter) retryOnce() {
	r.mu.Lock()
	pending := make([]*queuedCommit, len(r.outbox))
	copy(pending, r.outbox)
	r.mu.Unlock()

	var remaining []*queuedCommit
	for _, qc := range pending {
		if qc.exhausted {
			remaining = append(remaining, qc)
			continue
		}
		qc.attempts++
		err := r.server.authority.HandleCrossShardRecipientCommit(qc.commit)
		if err != nil {
			r.logger.Printf("cross-shard retry %d/%d for %s failed: %v", qc.attempts, r.maxAttempts, qc.sender, err)
			if qc.attempts >= r.maxAttempts {
				qc.exhausted = true
				r.logger.Printf("cross-shard commit for %s exhausted retries; left queued for manual retry", qc.sender)
			}
			remaining = append(remaining, qc)
			continue
		}
		if ackErr := r.server.authority.AcknowledgeCrossShardCommit(qc.commit.Certificate); ackErr != nil {
			r.logger.Printf("cross-shard ack for %s failed: %v", qc.sender, ackErr)
			remaining = append(remaining, qc)
			continue
		}
		if r.server.metrics != nil {
			r.server.metrics.CrossShardAcks.Inc()
		}
	}

	r.mu.Lock()
	// Keep commits enqueued while this pass ran (everything past the
	// snapshot taken above).
	r.outbox = append(remaining, r.outbox[len(pending):]...)
	r.mu.Unlock()
}
