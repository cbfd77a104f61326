// Copyright 2025 Certen Protocol

package types

import "github.com/fastpay/authority/pkg/errs"

// SequenceNumber identifies the position of a transfer in an account's
// outgoing order. It starts at 0 and is strictly monotone (invariant I3).
type SequenceNumber uint64

// MaxSequenceNumber is spec.md §3's ceiling: 2^63 - 1.
const MaxSequenceNumber SequenceNumber = (1 << 63) - 1

func (s SequenceNumber) Next() (SequenceNumber, error) {
	if s >= MaxSequenceNumber {
		return 0, errs.New(errs.SequenceOverflow, "sequence number exceeded 2^63-1")
	}
	return s + 1, nil
}
