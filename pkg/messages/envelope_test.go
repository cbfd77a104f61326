// Copyright 2025 Certen Protocol

package messages

import (
	"testing"

	"github.com/fastpay/authority/pkg/types"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	kp, err := types.GenerateKeyPair()
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}
	recipientKp, err := types.GenerateKeyPair()
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}

	data := TransferOrderData{
		Sender:    kp.Address(),
		Recipient: recipientKp.Address(),
		Amount:    10,
		Sequence:  0,
	}
	digest, err := data.Digest()
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	order := TransferOrder{Data: data, SenderSignature: kp.SignDigest(digest)}

	frame, err := Encode(TagTransferOrder, order)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	tag, body, err := DecodeTag(frame)
	if err != nil {
		t.Fatalf("decode tag: %v", err)
	}
	if tag != TagTransferOrder {
		t.Fatalf("expected TagTransferOrder, got %v", tag)
	}

	var decoded TransferOrder
	if err := Decode(body, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !decoded.Equal(order) {
		t.Fatalf("round-tripped order does not match original")
	}
}

func TestDecodeTagRejectsEmptyFrame(t *testing.T) {
	if _, _, err := DecodeTag(nil); err == nil {
		t.Fatalf("expected empty frame to be rejected")
	}
}

func TestDecodeTagRejectsUnknownTag(t *testing.T) {
	if _, _, err := DecodeTag([]byte{0xFF}); err == nil {
		t.Fatalf("expected unknown tag to be rejected")
	}
}
