// Copyright 2025 Certen Protocol
//
// Package coconut implements spec.md §4.G, the threshold blind-signature
// extension for anonymous coin issuance. A trusted dealer runs CoconutSetup
// once at genesis, splitting a master secret into n Shamir shares (threshold
// t = floor(2n/3)+1, matching the committee's own quorum threshold); each
// authority signs coin-creation requests with its own share, and a client
// holding t partial signatures reconstructs the full threshold signature by
// Lagrange interpolation — no distributed key generation, exactly as
// spec.md assumes.
package coconut

import (
	"crypto/sha256"
	"encoding/binary"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/fastpay/authority/pkg/errs"
)

// DomainCoinCredential is the domain separation tag for hash-to-curve when
// signing a coin-creation message, mirroring the teacher's per-purpose
// Domain* constants in pkg/crypto/bls.
const DomainCoinCredential = "FASTPAY_COCONUT_CREDENTIAL_V1"

// SecretShare is one authority's slice of the trusted-dealer master secret
// (a point on the degree-(t-1) Shamir polynomial).
type SecretShare struct {
	Index uint64 // 1-based authority index into the polynomial
	Value fr.Element
}

// PublicShare is the public counterpart of a SecretShare, published so a
// client can validate an individual partial signature before aggregating.
type PublicShare struct {
	Index uint64
	Point bls12381.G2Affine // Value * G2
}

// SetupResult is what CoconutSetup produces: one secret share per authority,
// the matching public shares, and the aggregate verification key (the
// master secret's own public point, never materialized on any single
// authority).
type SetupResult struct {
	Threshold      uint64
	Shares         []SecretShare
	PublicShares   []PublicShare
	AggregateVKey  bls12381.G2Affine // masterSecret * G2
}

// CoconutSetup is the trusted-dealer step: generate a random degree-(t-1)
// polynomial, evaluate it at 1..n to produce n shares, and reveal the
// aggregate verification key. masterSecret is known only transiently to the
// dealer process and discarded after this call returns.
func CoconutSetup(n int, threshold uint64) (*SetupResult, error) {
	if n <= 0 {
		return nil, errs.New(errs.InvalidCoconutRequest, "authority count must be positive")
	}
	if threshold == 0 || threshold > uint64(n) {
		return nil, errs.New(errs.InvalidCoconutRequest, "threshold out of range")
	}

	coeffs := make([]fr.Element, threshold)
	for i := range coeffs {
		if _, err := coeffs[i].SetRandom(); err != nil {
			return nil, err
		}
	}
	masterSecret := coeffs[0]

	_, _, _, g2Gen := bls12381.Generators()

	shares := make([]SecretShare, n)
	publicShares := make([]PublicShare, n)
	for i := 1; i <= n; i++ {
		v := evalPolynomial(coeffs, uint64(i))
		shares[i-1] = SecretShare{Index: uint64(i), Value: v}

		var vBig big.Int
		v.BigInt(&vBig)
		var pub bls12381.G2Affine
		pub.ScalarMultiplication(&g2Gen, &vBig)
		publicShares[i-1] = PublicShare{Index: uint64(i), Point: pub}
	}

	var masterBig big.Int
	masterSecret.BigInt(&masterBig)
	var aggVKey bls12381.G2Affine
	aggVKey.ScalarMultiplication(&g2Gen, &masterBig)

	return &SetupResult{
		Threshold:     threshold,
		Shares:        shares,
		PublicShares:  publicShares,
		AggregateVKey: aggVKey,
	}, nil
}

func evalPolynomial(coeffs []fr.Element, x uint64) fr.Element {
	var xElem fr.Element
	xElem.SetUint64(x)

	var result fr.Element
	for i := len(coeffs) - 1; i >= 0; i-- {
		result.Mul(&result, &xElem)
		result.Add(&result, &coeffs[i])
	}
	return result
}

// PartialSignature is one authority's share-signed credential over a
// coin-creation message (spec.md §4.G "issue a partial blind signature").
type PartialSignature struct {
	Index uint64
	Point bls12381.G1Affine // share.Value * H(message)
}

// Sign produces this authority's partial signature over message using its
// SecretShare.
func (s SecretShare) Sign(message []byte) PartialSignature {
	h := hashToG1(message)
	var vBig big.Int
	s.Value.BigInt(&vBig)
	var sig bls12381.G1Affine
	sig.ScalarMultiplication(&h, &vBig)
	return PartialSignature{Index: s.Index, Point: sig}
}

// VerifyPartial checks a partial signature against its authority's public
// share — lets a client reject a malformed/malicious partial before it
// corrupts an aggregation.
func (p PublicShare) VerifyPartial(sig PartialSignature, message []byte) bool {
	if sig.Index != p.Index {
		return false
	}
	h := hashToG1(message)
	var negPub bls12381.G2Affine
	negPub.Neg(&p.Point)
	_, _, _, g2Gen := bls12381.Generators()
	ok, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{sig.Point, h},
		[]bls12381.G2Affine{g2Gen, negPub},
	)
	return err == nil && ok
}

// Credential is the client-reconstructed, full threshold signature over a
// coin-creation message, after aggregating t partials (spec.md §4.G "the
// client aggregates t partials into a full Coconut credential").
type Credential struct {
	Point bls12381.G1Affine
}

// Aggregate reconstructs the full credential from t (or more) partial
// signatures by Lagrange interpolation at x=0: since each partial is linear
// in its share value, the interpolated combination equals masterSecret *
// H(message) directly, with no party ever holding masterSecret itself.
func Aggregate(partials []PartialSignature, threshold uint64) (*Credential, error) {
	if uint64(len(partials)) < threshold {
		return nil, errs.New(errs.InvalidCoconutRequest, "insufficient partial signatures for threshold")
	}
	used := partials[:threshold]

	indices := make([]uint64, len(used))
	for i, p := range used {
		indices[i] = p.Index
	}

	var acc bls12381.G1Jac
	acc.FromAffine(&bls12381.G1Affine{}) // identity
	for i, p := range used {
		coeff := lagrangeCoefficientAtZero(indices, i)
		var coeffBig big.Int
		coeff.BigInt(&coeffBig)
		var term bls12381.G1Jac
		term.FromAffine(&p.Point)
		term.ScalarMultiplication(&term, &coeffBig)
		acc.AddAssign(&term)
	}

	var result bls12381.G1Affine
	result.FromJacobian(&acc)
	return &Credential{Point: result}, nil
}

// lagrangeCoefficientAtZero computes L_i(0) = prod_{j != i} (0 - x_j) / (x_i - x_j)
// over the scalar field, for the share index at position i in indices.
func lagrangeCoefficientAtZero(indices []uint64, i int) fr.Element {
	var xi fr.Element
	xi.SetUint64(indices[i])

	var num, den fr.Element
	num.SetOne()
	den.SetOne()
	for j, idx := range indices {
		if j == i {
			continue
		}
		var xj fr.Element
		xj.SetUint64(idx)

		var negXj fr.Element
		negXj.Neg(&xj)
		num.Mul(&num, &negXj)

		var diff fr.Element
		diff.Sub(&xi, &xj)
		den.Mul(&den, &diff)
	}
	var denInv fr.Element
	denInv.Inverse(&den)

	var coeff fr.Element
	coeff.Mul(&num, &denInv)
	return coeff
}

// Verify checks a reconstructed credential against the committee's
// aggregate verification key: e(credential, G2) == e(H(message), vkey).
func Verify(aggregateVKey bls12381.G2Affine, cred *Credential, message []byte) bool {
	h := hashToG1(message)
	var negVKey bls12381.G2Affine
	negVKey.Neg(&aggregateVKey)
	_, _, _, g2Gen := bls12381.Generators()
	ok, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{cred.Point, h},
		[]bls12381.G2Affine{g2Gen, negVKey},
	)
	return err == nil && ok
}

// hashToG1 follows the teacher's "hash and pray" counter-probe method from
// pkg/crypto/bls, domain-separated for Coconut credentials.
func hashToG1(message []byte) bls12381.G1Affine {
	h := sha256.New()
	h.Write([]byte(DomainCoinCredential))
	h.Write(message)
	seed := h.Sum(nil)

	_, _, g1Gen, _ := bls12381.Generators()

	var counter uint64
	for {
		h2 := sha256.New()
		h2.Write(seed)
		binary.Write(h2, binary.BigEndian, counter)
		hash := h2.Sum(nil)

		var point bls12381.G1Affine
		if _, err := point.SetBytes(hash); err == nil && !point.IsInfinity() {
			return point
		}

		var scalar fr.Element
		scalar.SetBytes(hash)
		var scalarBig big.Int
		scalar.BigInt(&scalarBig)
		var result bls12381.G1Affine
		result.ScalarMultiplication(&g1Gen, &scalarBig)
		if !result.IsInfinity() {
			return result
		}

		counter++
		if counter > 1000 {
			return g1Gen
		}
	}
}
