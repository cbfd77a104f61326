// Copyright 2025 Certen Protocol

package types

import (
	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/crypto/sha3"
)

// Digest is the 32-byte content hash every signature is computed over
// (spec.md §4.A: "signatures are always computed over digest, never over
// raw structures, so signature validity is independent of encoder
// variants"). It is SHA3-256 of the value's RLP encoding — RLP supplies
// the canonical, length-prefixed, deterministically-ordered byte
// representation the spec requires, and SHA3-256 is the "SHA-512/256 or
// equivalent" digest the spec calls for.
func Digest(v interface{}) ([32]byte, error) {
	var out [32]byte
	enc, err := rlp.EncodeToBytes(v)
	if err != nil {
		return out, err
	}
	out = sha3.Sum256(enc)
	return out, nil
}

// MustDigest panics on encode failure. Reserved for call sites where the
// value's type is known at compile time to be RLP-encodable (e.g. within
// this package's own tests); handler code always uses Digest and
// propagates the error.
func MustDigest(v interface{}) [32]byte {
	d, err := Digest(v)
	if err != nil {
		panic(err)
	}
	return d
}
