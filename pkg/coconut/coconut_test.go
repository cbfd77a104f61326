// Copyright 2025 Certen Protocol

package coconut

import (
	"math/big"
	"testing"

	"github.com/fastpay/authority/pkg/errs"
	"github.com/fastpay/authority/pkg/types"
)

func TestSetupProducesConsistentShares(t *testing.T) {
	setup, err := CoconutSetup(4, 3)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if len(setup.Shares) != 4 || len(setup.PublicShares) != 4 {
		t.Fatalf("expected 4 shares, got %d/%d", len(setup.Shares), len(setup.PublicShares))
	}
}

func TestPartialSignAndAggregateReconstructsVerifiableCredential(t *testing.T) {
	setup, err := CoconutSetup(4, 3)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	message := []byte("coin-creation-message")

	var partials []PartialSignature
	for _, share := range setup.Shares[:3] {
		partials = append(partials, share.Sign(message))
	}

	cred, err := Aggregate(partials, setup.Threshold)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	if !Verify(setup.AggregateVKey, cred, message) {
		t.Fatalf("expected reconstructed credential to verify")
	}

	if Verify(setup.AggregateVKey, cred, []byte("different message")) {
		t.Fatalf("credential should not verify against a different message")
	}
}

func TestAggregateRejectsBelowThreshold(t *testing.T) {
	setup, err := CoconutSetup(4, 3)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	message := []byte("coin-creation-message")

	var partials []PartialSignature
	for _, share := range setup.Shares[:2] {
		partials = append(partials, share.Sign(message))
	}

	_, err = Aggregate(partials, setup.Threshold)
	if k, ok := errs.Of(err); !ok || k != errs.InvalidCoconutRequest {
		t.Fatalf("expected InvalidCoconutRequest, got %v", err)
	}
}

func TestPartialSignatureVerifiesAgainstItsPublicShare(t *testing.T) {
	setup, err := CoconutSetup(4, 3)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	message := []byte("coin-creation-message")

	sig := setup.Shares[0].Sign(message)
	if !setup.PublicShares[0].VerifyPartial(sig, message) {
		t.Fatalf("expected valid partial signature to verify against its public share")
	}
	if setup.PublicShares[1].VerifyPartial(sig, message) {
		t.Fatalf("partial signature should not verify against a different authority's public share")
	}
}

type stubLedger struct {
	credited map[types.AccountId]types.Amount
}

func (s *stubLedger) CreditAccountDirect(id types.AccountId, amount types.Amount) error {
	if s.credited == nil {
		s.credited = make(map[types.AccountId]types.Amount)
	}
	s.credited[id] += amount
	return nil
}

func memKV() tagKV {
	return &mapKV{m: make(map[string][]byte)}
}

type mapKV struct{ m map[string][]byte }

func (k *mapKV) Get(key []byte) ([]byte, error) { return k.m[string(key)], nil }
func (k *mapKV) Set(key, value []byte) error {
	k.m[string(key)] = append([]byte(nil), value...)
	return nil
}

func TestHandleCoinSpendRejectsDoubleSpend(t *testing.T) {
	setup, err := CoconutSetup(4, 3)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	recipient, err := types.GenerateKeyPair()
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}

	destination := recipient.Address()
	var partials []PartialSignature
	spendMsg := CoinSpend{Destination: destination, Amount: 10}
	for _, share := range setup.Shares[:3] {
		partials = append(partials, share.Sign(spendMsg.Message()))
	}
	cred, err := Aggregate(partials, setup.Threshold)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	spendMsg.Credential = *cred
	spendMsg.LinkingTag = DeriveLinkingTag(*cred)

	ledger := &stubLedger{}
	handler := &Handler{
		Tags:          NewTagStore(memKV()),
		Ledger:        ledger,
		AggregateVKey: setup.AggregateVKey,
	}

	if err := handler.HandleCoinSpend(spendMsg); err != nil {
		t.Fatalf("first spend: %v", err)
	}
	if ledger.credited[destination] != 10 {
		t.Fatalf("expected destination credited 10, got %d", ledger.credited[destination])
	}

	err = handler.HandleCoinSpend(spendMsg)
	if k, ok := errs.Of(err); !ok || k != errs.DoubleSpend {
		t.Fatalf("expected DoubleSpend on replay, got %v", err)
	}
	if ledger.credited[destination] != 10 {
		t.Fatalf("balance must not double-credit on replay, got %d", ledger.credited[destination])
	}
}

// TestHandleCoinSpendRejectsForgedLinkingTag confirms a resubmission of an
// already-verified credential under a fresh, attacker-chosen LinkingTag is
// rejected rather than treated as an unseen spend — LinkingTag arrives on
// the wire and is never itself part of what the issuing authorities sign,
// so the handler must recompute it from the credential rather than trust
// the caller's value.
func TestHandleCoinSpendRejectsForgedLinkingTag(t *testing.T) {
	setup, err := CoconutSetup(4, 3)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	recipient, err := types.GenerateKeyPair()
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}

	destination := recipient.Address()
	var partials []PartialSignature
	spendMsg := CoinSpend{Destination: destination, Amount: 10}
	for _, share := range setup.Shares[:3] {
		partials = append(partials, share.Sign(spendMsg.Message()))
	}
	cred, err := Aggregate(partials, setup.Threshold)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	spendMsg.Credential = *cred
	spendMsg.LinkingTag = DeriveLinkingTag(*cred)

	ledger := &stubLedger{}
	handler := &Handler{
		Tags:          NewTagStore(memKV()),
		Ledger:        ledger,
		AggregateVKey: setup.AggregateVKey,
	}

	if err := handler.HandleCoinSpend(spendMsg); err != nil {
		t.Fatalf("first spend: %v", err)
	}
	if ledger.credited[destination] != 10 {
		t.Fatalf("expected destination credited 10, got %d", ledger.credited[destination])
	}

	// Resubmit the same credential with a forged, unrelated linking tag.
	forged := spendMsg
	forged.LinkingTag[0] ^= 0xFF
	err = handler.HandleCoinSpend(forged)
	if k, ok := errs.Of(err); !ok || k != errs.InvalidCoconutRequest {
		t.Fatalf("expected InvalidCoconutRequest for forged linking tag, got %v", err)
	}
	if ledger.credited[destination] != 10 {
		t.Fatalf("balance must not double-credit via forged linking tag, got %d", ledger.credited[destination])
	}
}

func TestHandleCoinCreationRequestRejectsUnderfundedRequest(t *testing.T) {
	requester, err := types.GenerateKeyPair()
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}
	setup, err := CoconutSetup(4, 3)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	handler := &Handler{
		Share:         setup.Shares[0],
		Prover:        NewProver(),
		AggregateVKey: setup.AggregateVKey,
	}

	req := CoinCreationRequest{
		Requester: requester.Address(),
		Value:     100,
		Proof:     Groth16Proof{Commitment: big.NewInt(0), FundedAmount: big.NewInt(0)},
	}
	req.FundingCert.Value.Data.Sender = requester.Address()
	req.FundingCert.Value.Data.Amount = 50 // less than requested value

	_, err = handler.HandleCoinCreationRequest(req)
	if k, ok := errs.Of(err); !ok || k != errs.InvalidCoconutRequest {
		t.Fatalf("expected InvalidCoconutRequest, got %v", err)
	}
}
