// Copyright 2025 Certen Protocol

package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOrdersReceivedCounterIncrementsByOutcome(t *testing.T) {
	r := New()
	r.OrdersReceived.WithLabelValues("accepted").Inc()
	r.OrdersReceived.WithLabelValues("accepted").Inc()
	r.OrdersReceived.WithLabelValues("rejected").Inc()

	if got := testutil.ToFloat64(r.OrdersReceived.WithLabelValues("accepted")); got != 2 {
		t.Fatalf("expected 2 accepted orders, got %v", got)
	}
	if got := testutil.ToFloat64(r.OrdersReceived.WithLabelValues("rejected")); got != 1 {
		t.Fatalf("expected 1 rejected order, got %v", got)
	}
}

func TestObserveHandlerRecordsLatencyAndPropagatesError(t *testing.T) {
	r := New()
	wantErr := errors.New("boom")

	err := r.ObserveHandler("handle_transfer_order", func() error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected error to propagate, got %v", err)
	}

	count := testutil.CollectAndCount(r.HandlerLatency)
	if count == 0 {
		t.Fatalf("expected handler latency to be recorded")
	}
}
