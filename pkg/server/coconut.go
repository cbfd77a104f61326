// Copyright 2025 Certen Protocol
//
// Coconut's wire tags (6, 7) carry gnark-crypto curve points and field
// elements that RLP has no native encoding for, so this file frames them
// with encoding/gob instead of the RLP envelope pkg/messages otherwise
// uses everywhere else — Coconut already computes its own signed byte
// strings (CoinCreationRequest.Message, CoinSpend.Message) rather than
// types.Digest, so it never depended on RLP's canonical encoding to begin
// with.
package server

import (
	"bytes"
	"encoding/gob"

	"github.com/fastpay/authority/pkg/coconut"
	"github.com/fastpay/authority/pkg/errs"
)

func decodeGob(body []byte, out interface{}) error {
	dec := gob.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(out); err != nil {
		return errs.Wrap(errs.InvalidEncoding, "decode coconut message", err)
	}
	return nil
}

func encodeGobFrame(payload interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, errs.Wrap(errs.InvalidEncoding, "encode coconut response", err)
	}
	out := append([]byte{0}, buf.Bytes()...)
	return out, nil
}

func (s *Server) handleCoinCreationRequest(body []byte) ([]byte, error) {
	if s.coconut == nil {
		return nil, errs.New(errs.InvalidCoconutRequest, "this authority does not serve the coconut extension")
	}
	var req coconut.CoinCreationRequest
	if err := decodeGob(body, &req); err != nil {
		return nil, err
	}

	var sig *coconut.PartialSignature
	err := s.observe("handle_coin_creation_request", func() error {
		p, err := s.coconut.HandleCoinCreationRequest(req)
		sig = p
		return err
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.CoinCreationRequests.Inc()
	}
	return encodeGobFrame(*sig)
}

func (s *Server) handleCoinSpend(body []byte) ([]byte, error) {
	if s.coconut == nil {
		return nil, errs.New(errs.InvalidCoconutRequest, "this authority does not serve the coconut extension")
	}
	var spend coconut.CoinSpend
	if err := decodeGob(body, &spend); err != nil {
		return nil, err
	}

	err := s.observe("handle_coin_spend", func() error {
		return s.coconut.HandleCoinSpend(spend)
	})
	if s.metrics != nil {
		if err != nil {
			s.metrics.CoinSpends.WithLabelValues("rejected").Inc()
		} else {
			s.metrics.CoinSpends.WithLabelValues("accepted").Inc()
		}
	}
	if err != nil {
		return nil, err
	}
	return encodeGobFrame(ackOK{})
}
