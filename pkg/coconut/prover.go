// Copyright 2025 Certen Protocol

package coconut

import (
	"bytes"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/fastpay/authority/pkg/errs"
)

// Groth16Proof is a serialized Groth16 proof plus the public inputs it was
// produced against, suitable for embedding in a CoinCreationRequest.
type Groth16Proof struct {
	Bytes        []byte
	Commitment   *big.Int
	FundedAmount *big.Int
}

// Prover compiles the commitment circuit once and reuses the resulting
// proving/verification keys, mirroring the teacher's BLSZKProver lifecycle
// (one-time Initialize, then repeated GenerateProof/VerifyProofLocally).
type Prover struct {
	mu sync.RWMutex

	cs constraint.ConstraintSystem
	pk groth16.ProvingKey
	vk groth16.VerifyingKey

	initialized bool
}

func NewProver() *Prover {
	return &Prover{}
}

func (p *Prover) Setup() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		return nil
	}

	var circuit CommitmentCircuit
	cs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &circuit)
	if err != nil {
		return errs.Wrap(errs.InvalidCoconutRequest, "compile commitment circuit", err)
	}
	pk, vk, err := groth16.Setup(cs)
	if err != nil {
		return errs.Wrap(errs.InvalidCoconutRequest, "groth16 setup", err)
	}

	p.cs, p.pk, p.vk = cs, pk, vk
	p.initialized = true
	return nil
}

// Prove produces a proof that commitment == MiMC(value, blindingFactor) and
// value <= fundedAmount.
func (p *Prover) Prove(value, blindingFactor, commitment, fundedAmount *big.Int) (*Groth16Proof, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.initialized {
		return nil, errs.New(errs.InvalidCoconutRequest, "prover not initialized")
	}

	assignment := &CommitmentCircuit{
		Commitment:     commitment,
		FundedAmount:   fundedAmount,
		Value:          value,
		BlindingFactor: blindingFactor,
	}
	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, errs.Wrap(errs.InvalidCoconutRequest, "build witness", err)
	}

	proof, err := groth16.Prove(p.cs, p.pk, witness)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidCoconutRequest, "generate proof", err)
	}

	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, errs.Wrap(errs.InvalidCoconutRequest, "serialize proof", err)
	}

	return &Groth16Proof{
		Bytes:        buf.Bytes(),
		Commitment:   new(big.Int).Set(commitment),
		FundedAmount: new(big.Int).Set(fundedAmount),
	}, nil
}

// Verify checks a Groth16Proof against its own embedded public inputs.
func (p *Prover) Verify(proof *Groth16Proof) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.initialized {
		return errs.New(errs.InvalidCoconutRequest, "prover not initialized")
	}

	assignment := &CommitmentCircuit{
		Commitment:   proof.Commitment,
		FundedAmount: proof.FundedAmount,
	}
	publicWitness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return errs.Wrap(errs.InvalidCoconutRequest, "build public witness", err)
	}

	g16Proof := groth16.NewProof(ecc.BN254)
	if _, err := g16Proof.ReadFrom(bytes.NewReader(proof.Bytes)); err != nil {
		return errs.Wrap(errs.InvalidCoconutRequest, "deserialize proof", err)
	}

	if err := groth16.Verify(g16Proof, p.vk, publicWitness); err != nil {
		return errs.Wrap(errs.InvalidCoconutRequest, "proof did not verify", err)
	}
	return nil
}
