// Copyright 2025 Certen Protocol
//
// Package metrics exposes per-authority operational counters and
// histograms via Prometheus, wired to Config.MetricsAddr — the teacher's
// own MetricsAddr field, left unwired in the reference snapshot.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric one authority process emits. All fields are
// safe for concurrent use, matching the Prometheus client's own
// thread-safety guarantees.
type Registry struct {
	registry *prometheus.Registry

	OrdersReceived       *prometheus.CounterVec
	VotesIssued          prometheus.Counter
	CertificatesConfirmed prometheus.Counter
	CrossShardSends      prometheus.Counter
	CrossShardAcks       prometheus.Counter
	HandlerLatency       *prometheus.HistogramVec
	CoinCreationRequests prometheus.Counter
	CoinSpends           *prometheus.CounterVec
}

// New builds a Registry with every metric pre-registered under the
// "fastpay" namespace.
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		registry: reg,

		OrdersReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fastpay",
			Name:      "orders_received_total",
			Help:      "Transfer orders received, labeled by outcome.",
		}, []string{"outcome"}),

		VotesIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "fastpay",
			Name:      "votes_issued_total",
			Help:      "Signed votes issued on valid transfer orders.",
		}),

		CertificatesConfirmed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "fastpay",
			Name:      "certificates_confirmed_total",
			Help:      "Accepted confirmation orders, including replays of already-confirmed certificates.",
		}),

		CrossShardSends: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "fastpay",
			Name:      "cross_shard_sends_total",
			Help:      "Cross-shard recipient-credit messages sent.",
		}),

		CrossShardAcks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "fastpay",
			Name:      "cross_shard_acks_total",
			Help:      "Cross-shard recipient-credit messages acknowledged.",
		}),

		HandlerLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fastpay",
			Name:      "handler_latency_seconds",
			Help:      "Latency of authority state-machine handlers.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"handler"}),

		CoinCreationRequests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "fastpay",
			Name:      "coconut_coin_creation_requests_total",
			Help:      "Coconut coin-creation requests partially signed.",
		}),

		CoinSpends: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fastpay",
			Name:      "coconut_coin_spends_total",
			Help:      "Coconut coin spends, labeled by outcome.",
		}, []string{"outcome"}),
	}
}

// ObserveHandler times fn under the named handler's latency histogram.
func (r *Registry) ObserveHandler(handler string, fn func() error) error {
	start := time.Now()
	err := fn()
	r.HandlerLatency.WithLabelValues(handler).Observe(time.Since(start).Seconds())
	return err
}

// Serve starts the /metrics HTTP endpoint on addr and blocks until ctx is
// canceled, then shuts the server down gracefully.
func (r *Registry) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
