// Copyright 2025 Certen Protocol
//
// Groth16 circuit proving that a CoinCreationRequest's declared value and
// blinding factor open its commitment, and that the value does not exceed
// the amount certified by its funding certificate — modeled directly on
// the teacher's pkg/crypto/bls_zkp circuit/prover pair (frontend.Variable
// public/private split, MiMC commitment check, groth16.Setup/Prove/Verify).
package coconut

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// CommitmentCircuit proves: Commitment == MiMC(Value, BlindingFactor), and
// Value <= FundedAmount (the funding certificate's certified debit).
type CommitmentCircuit struct {
	// Public inputs.
	Commitment   frontend.Variable `gnark:",public"`
	FundedAmount frontend.Variable `gnark:",public"`

	// Private inputs.
	Value          frontend.Variable
	BlindingFactor frontend.Variable
}

func (c *CommitmentCircuit) Define(api frontend.API) error {
	hasher, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	hasher.Write(c.Value, c.BlindingFactor)
	api.AssertIsEqual(c.Commitment, hasher.Sum())

	// Value <= FundedAmount.
	api.AssertIsLessOrEqual(c.Value, c.FundedAmount)

	return nil
}
