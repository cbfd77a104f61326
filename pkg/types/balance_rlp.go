// Copyright 2025 Certen Protocol

package types

import (
	"io"

	"github.com/ethereum/go-ethereum/rlp"
)

// EncodeRLP implements rlp.Encoder so Balance can be embedded directly in
// other canonically-encoded structs (e.g. AccountInfoResponse).
func (b Balance) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, b.toRLP())
}

// DecodeRLP implements rlp.Decoder.
func (b *Balance) DecodeRLP(s *rlp.Stream) error {
	var r rlpBalance
	if err := s.Decode(&r); err != nil {
		return err
	}
	*b = balanceFromRLP(r)
	return nil
}
