// Copyright 2025 Certen Protocol

package types

import (
	"math/big"

	"github.com/fastpay/authority/pkg/errs"
)

// BalanceFromBigInt constructs a Balance from an arbitrary-precision value,
// for callers (config, JSON-backed stores) that already hold a *big.Int.
func BalanceFromBigInt(v *big.Int) Balance {
	return Balance{v: new(big.Int).Set(v)}
}

// maxI128 is the upper bound spec.md §3 places on Balance: the largest
// signed 128-bit value.
var maxI128 = func() *big.Int {
	v := new(big.Int).Lsh(big.NewInt(1), 127)
	return v.Sub(v, big.NewInt(1))
}()

var minI128 = new(big.Int).Neg(new(big.Int).Add(maxI128, big.NewInt(1)))

// Balance is a signed 128-bit quantity. Accounts must hold Balance >= 0 at
// rest (invariant I4); it is represented as signed because debits are
// validated against a prospective post-debit value before being applied.
type Balance struct {
	v *big.Int
}

func NewBalance(v int64) Balance {
	return Balance{v: big.NewInt(v)}
}

func ZeroBalance() Balance { return Balance{v: big.NewInt(0)} }

func (b Balance) Int() *big.Int {
	if b.v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(b.v)
}

func (b Balance) IsNegative() bool {
	return b.Int().Sign() < 0
}

func (b Balance) Cmp(other Balance) int {
	return b.Int().Cmp(other.Int())
}

func (b Balance) String() string {
	return b.Int().String()
}

// TryAdd credits the balance by amount, reporting overflow past MAX_I128.
func (b Balance) TryAdd(amount Amount) (Balance, error) {
	sum := new(big.Int).Add(b.Int(), new(big.Int).SetUint64(uint64(amount)))
	if sum.Cmp(maxI128) > 0 {
		return Balance{}, errs.New(errs.BalanceOverflow, "balance addition exceeded MAX_I128")
	}
	return Balance{v: sum}, nil
}

// TrySub debits the balance by amount, reporting underflow past MIN_I128.
// Callers enforcing invariant I4 (balance >= 0 at rest) additionally reject
// the result with InsufficientFunding before committing it; TrySub itself
// only guards the representable range.
func (b Balance) TrySub(amount Amount) (Balance, error) {
	diff := new(big.Int).Sub(b.Int(), new(big.Int).SetUint64(uint64(amount)))
	if diff.Cmp(minI128) < 0 {
		return Balance{}, errs.New(errs.BalanceUnderflow, "balance subtraction exceeded MIN_I128")
	}
	return Balance{v: diff}, nil
}

// rlpBalance is Balance's on-the-wire shape: *big.Int's RLP encoding only
// supports non-negative integers, so the sign travels alongside the
// magnitude.
type rlpBalance struct {
	Neg bool
	Mag *big.Int
}

func (b Balance) toRLP() rlpBalance {
	i := b.Int()
	return rlpBalance{Neg: i.Sign() < 0, Mag: new(big.Int).Abs(i)}
}

func balanceFromRLP(r rlpBalance) Balance {
	v := new(big.Int).Set(r.Mag)
	if r.Neg {
		v.Neg(v)
	}
	return Balance{v: v}
}

// MarshalJSON renders Balance as a decimal string, since big.Int values can
// exceed the safe range of a JSON number in other languages' parsers.
func (b Balance) MarshalJSON() ([]byte, error) {
	return []byte(`"` + b.String() + `"`), nil
}

func (b *Balance) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errs.New(errs.InvalidEncoding, "balance must be a JSON string")
	}
	v, ok := new(big.Int).SetString(string(data[1:len(data)-1]), 10)
	if !ok {
		return errs.New(errs.InvalidEncoding, "balance is not a valid decimal integer")
	}
	b.v = v
	return nil
}
