// Copyright 2025 Certen Protocol
//
// Package transport implements spec.md §1/§6's transport contract: "reliable
// enough delivery plus frame integrity", switchable per authority between
// TCP and UDP. Everything above the frame boundary (message decoding,
// handler dispatch) lives in pkg/server and never depends on which
// transport moved the bytes.
package transport

import (
	"encoding/binary"
	"io"
	"net"

	"github.com/fastpay/authority/pkg/errs"
)

// MaxFrameBytes bounds a single frame on either transport — large enough
// for any RLP-encoded wire message in pkg/messages, small enough to reject
// a corrupt or hostile length prefix before allocating for it.
const MaxFrameBytes = 1 << 20 // 1 MiB

// Conn is one framed duplex connection: ReadFrame blocks for exactly one
// frame's payload, WriteFrame sends exactly one. Both TCP and UDP
// implementations satisfy this with the same contract, so pkg/server never
// needs to know which one it was handed.
type Conn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(payload []byte) error
	Close() error
	RemoteAddr() net.Addr
}

// Listener accepts framed connections.
type Listener interface {
	Accept() (Conn, error)
	Close() error
	Addr() net.Addr
}

// Kind selects which concrete transport AuthorityServerConfig.Transport
// names.
type Kind string

const (
	KindTCP Kind = "tcp"
	KindUDP Kind = "udp"
)

// Listen starts a Listener of the given kind on addr. bufferSize bounds a
// single UDP datagram; it is ignored for TCP, where frames are
// length-delimited instead.
func Listen(kind Kind, addr string, bufferSize int) (Listener, error) {
	switch kind {
	case KindTCP:
		return listenTCP(addr)
	case KindUDP:
		return listenUDP(addr, bufferSize)
	default:
		return nil, errs.New(errs.InvalidEncoding, "unknown transport kind: "+string(kind))
	}
}

// Dial opens a Conn of the given kind to addr.
func Dial(kind Kind, addr string, bufferSize int) (Conn, error) {
	switch kind {
	case KindTCP:
		return dialTCP(addr)
	case KindUDP:
		return dialUDP(addr, bufferSize)
	default:
		return nil, errs.New(errs.InvalidEncoding, "unknown transport kind: "+string(kind))
	}
}

// writeFrameTCP writes a 4-byte big-endian length prefix followed by
// payload, mirroring the length-prefix-then-payload shape used throughout
// the reference corpus's own wire framing.
func writeFrameTCP(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameBytes {
		return errs.New(errs.InvalidEncoding, "frame exceeds max frame size")
	}
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}

// readFrameTCP reads one length-prefixed frame from r, rejecting a
// declared length over MaxFrameBytes before allocating for it.
func readFrameTCP(r io.Reader) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(prefix[:])
	if length > MaxFrameBytes {
		return nil, errs.New(errs.InvalidEncoding, "declared frame length exceeds max frame size")
	}
	if length == 0 {
		return []byte{}, nil
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
