// Copyright 2025 Certen Protocol
//
// Package errs provides the named, structured failure taxonomy shared by
// every FastPay component (spec.md §7). Every handler returns a *Error
// instead of an ad-hoc error string, so callers can branch on Kind the same
// way the rest of the codebase compares sentinel errors with errors.Is.

package errs

import (
	"errors"
	"fmt"
)

// Kind names a failure category. Kinds are comparable and stable across
// releases; Detail carries the human-readable specifics.
type Kind string

const (
	// Sequence
	InvalidSequenceNumber      Kind = "invalid_sequence_number"
	UnexpectedSequenceNumber   Kind = "unexpected_sequence_number"
	MissingEarlierConfirmations Kind = "missing_earlier_confirmations"
	SequenceOverflow           Kind = "sequence_overflow"
	SequenceUnderflow          Kind = "sequence_underflow"

	// Value
	AmountOverflow      Kind = "amount_overflow"
	AmountUnderflow     Kind = "amount_underflow"
	BalanceOverflow     Kind = "balance_overflow"
	BalanceUnderflow    Kind = "balance_underflow"
	InsufficientFunding Kind = "insufficient_funding"

	// Identity
	IncorrectSigner  Kind = "incorrect_signer"
	UnknownSigner    Kind = "unknown_signer"
	InvalidSignature Kind = "invalid_signature"

	// Protocol
	PreviousTransferMustBeConfirmedFirst Kind = "previous_transfer_must_be_confirmed_first"
	CertificateRequiresQuorum            Kind = "certificate_requires_quorum"
	WrongShard                           Kind = "wrong_shard"
	ErrorWhileProcessingTransferOrder     Kind = "error_while_processing_transfer_order"

	// Crypto extension (Coconut)
	InvalidCoconutRequest Kind = "invalid_coconut_request"
	DoubleSpend           Kind = "double_spend"

	// Encoding / configuration
	InvalidEncoding Kind = "invalid_encoding"
)

// Error is the concrete error type returned by every FastPay handler.
type Error struct {
	Kind   Kind
	Detail string
	Err    error // optional wrapped cause
}

func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func Wrap(kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: cause}
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, errs.New(KindX, "")) and
// errors.Is(err, errs.Sentinel(KindX)) comparisons work by matching on Kind
// alone, ignoring Detail.
func (e *Error) Is(target error) bool {
	if k, ok := target.(kindSentinel); ok {
		return e.Kind == Kind(k)
	}
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// kindSentinel is the error value Sentinel returns for a Kind, so callers
// can write errors.Is(err, errs.Sentinel(errs.InsufficientFunding)) without
// building an *Error. A bare Kind is not an error and cannot be passed to
// errors.Is directly.
type kindSentinel Kind

func (k kindSentinel) Error() string { return string(k) }

// Sentinel returns an error value usable with errors.Is that matches any
// *Error of the given Kind, regardless of Detail.
func Sentinel(k Kind) error { return kindSentinel(k) }

// Of reports the Kind of err if it is (or wraps) an *Error, and ok=false
// otherwise.
func Of(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
