// Copyright 2025 Certen Protocol

package types

import (
	"crypto/ed25519"
	"encoding/base64"
	"io"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/fastpay/authority/pkg/errs"
)

// Signature is a 64-byte Ed25519 signature over a Digest (spec.md §3).
type Signature [ed25519.SignatureSize]byte

func (s Signature) Bytes() []byte { return s[:] }

func (s Signature) EncodeBase64() string {
	return base64.StdEncoding.EncodeToString(s[:])
}

// Verify checks this signature against the given digest and signer
// address, returning an *errs.Error{Kind: InvalidSignature} on any failure
// (wrong key, malformed signature, mismatched digest).
func (s Signature) Verify(signer Address, digest [32]byte) error {
	if !ed25519.Verify(signer[:], digest[:], s[:]) {
		return errs.New(errs.InvalidSignature, "ed25519 verification failed")
	}
	return nil
}

func (s Signature) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, s[:])
}

func (s *Signature) DecodeRLP(stream *rlp.Stream) error {
	var b []byte
	if err := stream.Decode(&b); err != nil {
		return err
	}
	if len(b) != ed25519.SignatureSize {
		return errs.New(errs.InvalidSignature, "bad signature length")
	}
	copy(s[:], b)
	return nil
}
