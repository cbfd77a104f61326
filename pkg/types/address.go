// Copyright 2025 Certen Protocol

package types

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"

	"github.com/fastpay/authority/pkg/errs"
)

// Address is a 32-byte Ed25519 public key (spec.md §3). AuthorityName and
// AccountId are both Address under the hood: in this reference design an
// account is identified by the public key of its owner, exactly as the
// original FastPay design does, and an authority is identified by its own
// Ed25519 public key.
type Address [ed25519.PublicKeySize]byte

type AuthorityName = Address
type AccountId = Address

func (a Address) Bytes() []byte { return a[:] }

func (a Address) String() string { return hex.EncodeToString(a[:]) }

// Less gives AccountId/Address a total order so it can be sorted
// deterministically (needed when ordering Certificate signer lists, §4.E).
func (a Address) Less(b Address) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

func AddressFromEd25519(pub ed25519.PublicKey) (Address, error) {
	var a Address
	if len(pub) != ed25519.PublicKeySize {
		return a, errs.New(errs.InvalidSignature, "bad key length")
	}
	copy(a[:], pub)
	return a, nil
}

// DecodeAddressBase64 decodes a base64-encoded Ed25519 public key as used
// by the JSON config files (spec.md §6). Unlike the original FastPay
// implementation — which truncates a longer-than-expected decoded key via
// a bounds-unchecked copy_from_slice — this rejects any input that does
// not decode to exactly PublicKeySize bytes (spec.md §9 Open Question,
// resolved: fail rather than silently truncate).
func DecodeAddressBase64(s string) (Address, error) {
	var a Address
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return a, errs.Wrap(errs.InvalidSignature, "address is not valid base64", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return a, errs.New(errs.InvalidSignature, "bad key length")
	}
	copy(a[:], raw)
	return a, nil
}

func (a Address) EncodeBase64() string {
	return base64.StdEncoding.EncodeToString(a[:])
}
