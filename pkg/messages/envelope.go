// Copyright 2025 Certen Protocol

package messages

import (
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/fastpay/authority/pkg/errs"
)

// Encode frames a wire message as its tag byte followed by its RLP
// encoding — the payload a transport.Conn.WriteFrame call carries
// (spec.md §6: "length-prefixed, canonical byte encoding").
func Encode(tag Tag, payload interface{}) ([]byte, error) {
	body, err := rlp.EncodeToBytes(payload)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidEncoding, "encode wire message", err)
	}
	out := make([]byte, 0, len(body)+1)
	out = append(out, byte(tag))
	out = append(out, body...)
	return out, nil
}

// DecodeTag reads the tag byte off a received frame without decoding its
// body, so the dispatch shell can pick the right payload type before
// unmarshaling.
func DecodeTag(frame []byte) (Tag, []byte, error) {
	if len(frame) == 0 {
		return 0, nil, errs.New(errs.InvalidEncoding, "empty frame")
	}
	tag, err := ValidateTag(frame[0])
	if err != nil {
		return 0, nil, err
	}
	return tag, frame[1:], nil
}

// Decode unmarshals a frame's body (post DecodeTag) into out.
func Decode(body []byte, out interface{}) error {
	if err := rlp.DecodeBytes(body, out); err != nil {
		return errs.Wrap(errs.InvalidEncoding, "decode wire message", err)
	}
	return nil
}
