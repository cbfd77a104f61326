// Copyright 2025 Certen Protocol

package coconut

import (
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"

	"github.com/fastpay/authority/pkg/errs"
	"github.com/fastpay/authority/pkg/types"
)

// AccountCredit is the minimal surface a Handler needs from the authority's
// account store to apply a coin spend — kept as an interface so this
// package never imports pkg/authority, avoiding a dependency cycle (the
// authority package is free to import pkg/coconut, not the reverse).
type AccountCredit interface {
	CreditAccountDirect(id types.AccountId, amount types.Amount) error
}

// Handler implements spec.md §4.G's two operations for one authority:
// issuing a partial signature on a funded coin-creation request, and
// crediting a destination account on a verified, not-yet-spent credential.
type Handler struct {
	Share  SecretShare
	Prover *Prover
	Tags   *TagStore
	Ledger AccountCredit

	AggregateVKey bls12381.G2Affine
}

// HandleCoinCreationRequest implements "handle_coin_creation_request".
func (h *Handler) HandleCoinCreationRequest(req CoinCreationRequest) (*PartialSignature, error) {
	if err := req.ValidateFunding(); err != nil {
		return nil, err
	}
	if err := h.Prover.Verify(&req.Proof); err != nil {
		return nil, err
	}
	if req.Proof.Commitment.Cmp(new(big.Int).SetBytes(req.Commitment[:])) != 0 {
		return nil, errs.New(errs.InvalidCoconutRequest, "proof commitment does not match request commitment")
	}
	fundedAmount := new(big.Int).SetUint64(uint64(req.FundingCert.Value.Data.Amount))
	if req.Proof.FundedAmount == nil || req.Proof.FundedAmount.Cmp(fundedAmount) != 0 {
		return nil, errs.New(errs.InvalidCoconutRequest, "proof funded amount does not match funding certificate amount")
	}

	sig := h.Share.Sign(req.Message())
	return &sig, nil
}

// HandleCoinSpend implements "handle_coin_spend".
func (h *Handler) HandleCoinSpend(spend CoinSpend) error {
	if err := spend.Verify(h.AggregateVKey); err != nil {
		return err
	}
	alreadySpent, err := h.Tags.CheckAndMark(spend.LinkingTag)
	if err != nil {
		return err
	}
	if alreadySpent {
		return errs.New(errs.DoubleSpend, "linking tag already spent")
	}
	return h.Ledger.CreditAccountDirect(spend.Destination, spend.Amount)
}
