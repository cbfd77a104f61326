// Copyright 2025 Certen Protocol
//
// Package server implements spec.md §4.H, the dispatch shell: one I/O loop
// per listener that decodes wire frames (pkg/messages), invokes the
// authority state machine (pkg/authority), and drives cross-shard
// retransmission until acknowledged. Everything below the frame boundary
// (which bytes moved, over TCP or UDP) is pkg/transport's concern; this
// package never imports net directly.
package server

import (
	"context"
	"log"
	"time"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/google/uuid"

	"github.com/fastpay/authority/pkg/audit"
	"github.com/fastpay/authority/pkg/authority"
	"github.com/fastpay/authority/pkg/coconut"
	"github.com/fastpay/authority/pkg/errs"
	"github.com/fastpay/authority/pkg/messages"
	"github.com/fastpay/authority/pkg/metrics"
	"github.com/fastpay/authority/pkg/transport"
	"github.com/fastpay/authority/pkg/types"
)

// Config assembles one dispatch shell instance. Only Listener and Authority
// are required; everything else is an optional collaborator the shell wires
// in if present (spec.md §4.H).
type Config struct {
	Listener transport.Listener
	Authority *authority.Authority
	Coconut  *coconut.Handler // nil disables wire tags 6/7
	Metrics  *metrics.Registry
	Audit    *audit.Sink
	Logger   *log.Logger

	// RetryInterval and MaxAttempts govern the cross-shard retransmission
	// scheduler (spec.md §4.F "Cross-shard delivery contract", §5
	// "Cancellation / timeouts").
	RetryInterval time.Duration
	MaxAttempts   int
}

// Server is one authority process's dispatch shell.
type Server struct {
	listener transport.Listener
	authority *authority.Authority
	coconut  *coconut.Handler
	metrics  *metrics.Registry
	audit    *audit.Sink
	logger   *log.Logger

	retryInterval time.Duration
	maxAttempts   int

	scheduler *retransmitter
}

// New builds a Server from cfg, filling in defaults for the retry knobs
// and the logger the way the teacher's own constructors do.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[fastpay] ", log.LstdFlags)
	}
	interval := cfg.RetryInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 10
	}

	s := &Server{
		listener:      cfg.Listener,
		authority:     cfg.Authority,
		coconut:       cfg.Coconut,
		metrics:       cfg.Metrics,
		audit:         cfg.Audit,
		logger:        logger,
		retryInterval: interval,
		maxAttempts:   maxAttempts,
	}
	s.scheduler = newRetransmitter(s, interval, maxAttempts, logger)
	return s
}

// Serve accepts connections until ctx is canceled or the listener errors,
// dispatching each in its own goroutine, and runs the retransmission
// scheduler for the lifetime of the call.
func (s *Server) Serve(ctx context.Context) error {
	s.scheduler.start(ctx)
	defer s.scheduler.stop()

	type acceptResult struct {
		conn transport.Conn
		err  error
	}
	acceptCh := make(chan acceptResult, 1)
	go func() {
		for {
			conn, err := s.listener.Accept()
			acceptCh <- acceptResult{conn, err}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return s.listener.Close()
		case r := <-acceptCh:
			if r.err != nil {
				return r.err
			}
			go s.handleConn(r.conn)
		}
	}
}

// handleConn services exactly one request/response exchange — the shape
// both the TCP and UDP transport.Conn implementations give a dispatch loop
// (spec.md §4.H "for each configured shard, spawn an independent I/O loop").
func (s *Server) handleConn(conn transport.Conn) {
	defer conn.Close()
	reqID := uuid.New().String()

	frame, err := conn.ReadFrame()
	if err != nil {
		s.logger.Printf("[%s] read frame from %s: %v", reqID, conn.RemoteAddr(), err)
		return
	}

	tag, body, err := messages.DecodeTag(frame)
	if err != nil {
		s.logger.Printf("[%s] decode tag from %s: %v", reqID, conn.RemoteAddr(), err)
		_ = conn.WriteFrame(encodeErrorFrame(err))
		return
	}

	out, err := s.dispatch(tag, body)
	if err != nil {
		s.logger.Printf("[%s] tag %d from %s: %v", reqID, tag, conn.RemoteAddr(), err)
		_ = conn.WriteFrame(encodeErrorFrame(err))
		return
	}
	if err := conn.WriteFrame(out); err != nil {
		s.logger.Printf("[%s] write response to %s: %v", reqID, conn.RemoteAddr(), err)
	}
}

// dispatch routes a decoded frame body to the matching authority handler
// and encodes its result. Responses are framed as a leading status byte
// (0 ok, 1 error) followed by the body — RLP for every tag except the
// Coconut tags 6 and 7, whose replies are gob-encoded — the reply side of the wire
// contract never needs messages.ValidateTag since the caller always knows
// what shape it asked for.
func (s *Server) dispatch(tag messages.Tag, body []byte) ([]byte, error) {
	switch tag {
	case messages.TagTransferOrder:
		return s.handleTransferOrder(body)
	case messages.TagConfirmationOrder:
		return s.handleConfirmationOrder(body)
	case messages.TagCrossShardRecipientCommit:
		return s.handleCrossShardRecipientCommit(body)
	case messages.TagInfoRequest:
		return s.handleInfoRequest(body)
	case messages.TagCoinCreationRequest:
		return s.handleCoinCreationRequest(body)
	case messages.TagCoinSpend:
		return s.handleCoinSpend(body)
	default:
		return nil, errs.New(errs.ErrorWhileProcessingTransferOrder, "no handler registered for this wire tag")
	}
}

func (s *Server) handleTransferOrder(body []byte) ([]byte, error) {
	var order messages.TransferOrder
	if err := messages.Decode(body, &order); err != nil {
		return nil, err
	}

	var vote *messages.SignedVote
	err := s.observe("handle_transfer_order", func() error {
		v, err := s.authority.HandleTransferOrder(order)
		vote = v
		return err
	})
	s.countOutcome(err)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.VotesIssued.Inc()
	}
	return encodeOKFrame(*vote)
}

func (s *Server) handleConfirmationOrder(body []byte) ([]byte, error) {
	var cert messages.Certificate
	if err := messages.Decode(body, &cert); err != nil {
		return nil, err
	}

	var effects *authority.ConfirmationEffects
	err := s.observe("handle_confirmation_order", func() error {
		e, err := s.authority.HandleConfirmationOrder(cert)
		effects = e
		return err
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.CertificatesConfirmed.Inc()
	}
	if s.audit != nil {
		if auditErr := s.audit.RecordCertificate(context.Background(), cert); auditErr != nil {
			s.logger.Printf("audit sink: record certificate: %v", auditErr)
		}
	}
	if effects.Commit != nil {
		s.deliverOrQueue(cert.Value.Data.Sender, *effects.Commit)
	}
	return encodeOKFrame(*effects.Info)
}

func (s *Server) handleCrossShardRecipientCommit(body []byte) ([]byte, error) {
	var commit messages.CrossShardRecipientCommit
	if err := messages.Decode(body, &commit); err != nil {
		return nil, err
	}
	err := s.observe("handle_cross_shard_recipient_commit", func() error {
		return s.authority.HandleCrossShardRecipientCommit(commit)
	})
	if err != nil {
		return nil, err
	}
	return encodeOKFrame(ackOK{})
}

func (s *Server) handleInfoRequest(body []byte) ([]byte, error) {
	var req messages.InfoRequest
	if err := messages.Decode(body, &req); err != nil {
		return nil, err
	}
	var resp *messages.InfoResponse
	err := s.observe("handle_account_info_request", func() error {
		r, err := s.authority.HandleAccountInfoRequest(req)
		resp = r
		return err
	})
	if err != nil {
		return nil, err
	}
	return encodeOKFrame(*resp)
}

// deliverOrQueue attempts the cross-shard credit in-process immediately
// (every shard of one authority lives in this same process in this
// reference design — authority.Authority.IsLocalShard is always true);
// on failure it hands the commit to the retransmission scheduler instead
// of blocking the confirming client on it (spec.md §4.H step 4).
func (s *Server) deliverOrQueue(sender types.AccountId, commit messages.CrossShardRecipientCommit) {
	if s.metrics != nil {
		s.metrics.CrossShardSends.Inc()
	}
	if err := s.authority.HandleCrossShardRecipientCommit(commit); err != nil {
		s.logger.Printf("cross-shard commit delivery failed, queuing for retry: %v", err)
		s.scheduler.enqueue(sender, commit)
		return
	}
	if err := s.authority.AcknowledgeCrossShardCommit(commit.Certificate); err != nil {
		s.logger.Printf("cross-shard commit acknowledge failed: %v", err)
		return
	}
	if s.metrics != nil {
		s.metrics.CrossShardAcks.Inc()
	}
}

func (s *Server) observe(handler string, fn func() error) error {
	if s.metrics == nil {
		return fn()
	}
	return s.metrics.ObserveHandler(handler, fn)
}

func (s *Server) countOutcome(err error) {
	if s.metrics == nil {
		return
	}
	if err != nil {
		s.metrics.OrdersReceived.WithLabelValues("rejected").Inc()
		return
	}
	s.metrics.OrdersReceived.WithLabelValues("accepted").Inc()
}

// ackOK is the empty success payload for handlers that return no value.
type ackOK struct{}

// wireError is the RLP shape a dispatch error is reported in — stable
// across restarts, unlike err.Error()'s free-form text, so a client can
// branch on Kind.
type wireError struct {
	Kind   string
	Detail string
}

func encodeOKFrame(payload interface{}) ([]byte, error) {
	body, err := rlp.EncodeToBytes(payload)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidEncoding, "encode response", err)
	}
	return append([]byte{0}, body...), nil
}

func encodeErrorFrame(err error) []byte {
	kind, _ := errs.Of(err)
	we := wireError{Kind: string(kind), Detail: err.Error()}
	body, encErr := rlp.EncodeToBytes(we)
	if encErr != nil {
		return []byte{1}
	}
	return append([]byte{1}, body...)
}
