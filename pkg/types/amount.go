// Copyright 2025 Certen Protocol
//
// Package types holds FastPay's base value types and the canonical digest
// used to bind every signature to a deterministic byte representation
// (spec.md §3, §4.A).
package types

import (
	"math"

	"github.com/fastpay/authority/pkg/errs"
)

// Amount is an unsigned quantity of the FastPay native asset. It never goes
// negative; TryAdd/TrySub report overflow/underflow rather than wrapping.
type Amount uint64

// MaxAmount is the largest representable Amount (spec.md §3: unsigned 64-bit).
const MaxAmount = Amount(math.MaxUint64)

func (a Amount) TryAdd(b Amount) (Amount, error) {
	sum := a + b
	if sum < a {
		return 0, errs.New(errs.AmountOverflow, "amount addition overflowed uint64")
	}
	return sum, nil
}

func (a Amount) TrySub(b Amount) (Amount, error) {
	if b > a {
		return 0, errs.New(errs.AmountUnderflow, "amount subtraction underflowed below zero")
	}
	return a - b, nil
}
