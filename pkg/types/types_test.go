// Copyright 2025 Certen Protocol

package types

import "testing"

func TestAmountTryAddOverflow(t *testing.T) {
	_, err := MaxAmount.TryAdd(1)
	if err == nil {
		t.Fatalf("expected overflow error")
	}
}

func TestAmountTrySubUnderflow(t *testing.T) {
	_, err := Amount(0).TrySub(1)
	if err == nil {
		t.Fatalf("expected underflow error")
	}
}

func TestBalanceRoundTripNegative(t *testing.T) {
	b := NewBalance(-42)
	if !b.IsNegative() {
		t.Fatalf("expected negative balance")
	}
	r := b.toRLP()
	back := balanceFromRLP(r)
	if back.Cmp(b) != 0 {
		t.Fatalf("balance round trip mismatch: got %s, want %s", back, b)
	}
}

func TestSequenceNumberNextOverflow(t *testing.T) {
	_, err := MaxSequenceNumber.Next()
	if err == nil {
		t.Fatalf("expected sequence overflow error")
	}
}

func TestAddressDecodeBase64RejectsWrongLength(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	longer := kp.Address().EncodeBase64() + kp.Address().EncodeBase64()
	if _, err := DecodeAddressBase64(longer); err == nil {
		t.Fatalf("expected bad key length error for oversized input")
	}
}

func TestSignAndVerifyDigest(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	d := MustDigest("hello")
	sig := kp.SignDigest(d)
	if err := sig.Verify(kp.Address(), d); err != nil {
		t.Fatalf("verify: %v", err)
	}
	d2 := MustDigest("goodbye")
	if err := sig.Verify(kp.Address(), d2); err == nil {
		t.Fatalf("expected verification failure against different digest")
	}
}
