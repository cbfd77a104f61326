// Copyright 2025 Certen Protocol

package types

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"

	"github.com/fastpay/authority/pkg/errs"
)

// KeyPair holds an Ed25519 secret key. The secret is exposed only through
// the explicit Copy method and through SecretBase64, which serializes it for
// config files (spec.md §9: "secrets as non-duplicable
// handles") — there is deliberately no exported Clone/copy-by-assignment
// path, and the struct is passed by pointer everywhere in this package so a
// stray value copy does not silently duplicate the secret.
type KeyPair struct {
	secret  ed25519.PrivateKey
	public  Address
}

// GenerateKeyPair creates a fresh Ed25519 key pair.
func GenerateKeyPair() (*KeyPair, error) {
	pub, sec, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	addr, err := AddressFromEd25519(pub)
	if err != nil {
		return nil, err
	}
	return &KeyPair{secret: sec, public: addr}, nil
}

// KeyPairFromSecretBase64 loads a key pair from its base64-encoded Ed25519
// secret key, as stored in AuthorityServerConfig (spec.md §6).
func KeyPairFromSecretBase64(s string) (*KeyPair, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidSignature, "secret key is not valid base64", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, errs.New(errs.InvalidSignature, "bad key length")
	}
	sec := ed25519.PrivateKey(append([]byte(nil), raw...))
	addr, err := AddressFromEd25519(sec.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	return &KeyPair{secret: sec, public: addr}, nil
}

// Copy explicitly duplicates the secret. This is the only way to obtain a
// second KeyPair holding the same secret material.
func (k *KeyPair) Copy() *KeyPair {
	sec := append(ed25519.PrivateKey(nil), k.secret...)
	return &KeyPair{secret: sec, public: k.public}
}

func (k *KeyPair) Address() Address { return k.public }

func (k *KeyPair) SecretBase64() string {
	return base64.StdEncoding.EncodeToString(k.secret)
}

// SignDigest signs a 32-byte digest produced by Digest() (never a raw
// structure, per spec.md §4.A) and returns the 64-byte Ed25519 signature.
func (k *KeyPair) SignDigest(digest [32]byte) Signature {
	var sig Signature
	copy(sig[:], ed25519.Sign(k.secret, digest[:]))
	return sig
}
