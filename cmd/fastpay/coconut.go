// Copyright 2025 Certen Protocol
//
// Coconut share files hold one authority's trusted-dealer secret share
// plus the committee's aggregate verification key (spec.md §4.G). The
// trusted-dealer split itself (pkg/coconut.CoconutSetup) is a one-time
// offline genesis step, not a cmd/fastpay verb — this file only loads what
// that step produced. Shares contain gnark-crypto field/curve values with
// no RLP encoding, so they're framed with encoding/gob, the same choice
// pkg/server's wire handling makes for the live coin-creation/coin-spend
// traffic carrying the same types.
package main

import (
	"encoding/gob"
	"fmt"
	"os"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/fastpay/authority/pkg/coconut"
	"github.com/fastpay/authority/pkg/kvdb"
)

// coconutShareFile is the on-disk (gob-encoded) shape of a --coconut-share
// file.
type coconutShareFile struct {
	Share         coconut.SecretShare
	AggregateVKey bls12381.G2Affine
}

type coconutHandlerHolder struct {
	share   coconut.SecretShare
	handler *coconut.Handler
}

func loadCoconutHandler(path string, ledger coconut.AccountCredit) (*coconutHandlerHolder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open coconut share: %w", err)
	}
	defer f.Close()

	var file coconutShareFile
	if err := gob.NewDecoder(f).Decode(&file); err != nil {
		return nil, fmt.Errorf("decode coconut share: %w", err)
	}

	prover := coconut.NewProver()
	if err := prover.Setup(); err != nil {
		return nil, fmt.Errorf("setup coconut prover: %w", err)
	}

	tags := coconut.NewTagStore(kvdb.NewKVAdapter(dbm.NewMemDB()))

	handler := &coconut.Handler{
		Share:         file.Share,
		Prover:        prover,
		Tags:          tags,
		Ledger:        ledger,
		AggregateVKey: file.AggregateVKey,
	}
	return &coconutHandlerHolder{share: file.Share, handler: handler}, nil
}
