// Copyright 2025 Certen Protocol

package transport

import (
	"io"
	"net"
	"sync"

	"github.com/fastpay/authority/pkg/errs"
)

// udpConn models one request/response exchange over a shared UDP socket:
// a server-side udpConn is born already holding the datagram that produced
// it (ReadFrame returns it exactly once), and WriteFrame sends the reply
// datagram back to that same peer — matching spec.md's framing of UDP as
// "single-datagram frames", not a stream.
type udpConn struct {
	socket     *net.UDPConn
	remoteAddr *net.UDPAddr
	bufferSize int

	mu       sync.Mutex
	pending  []byte
	consumed bool
	owned    bool // true for a client-dialed conn, which owns (and closes) socket
}

func (c *udpConn) ReadFrame() ([]byte, error) {
	c.mu.Lock()
	if !c.consumed {
		c.consumed = true
		payload := c.pending
		c.pending = nil
		c.mu.Unlock()
		if payload != nil {
			return payload, nil
		}
	} else {
		c.mu.Unlock()
	}

	buf := make([]byte, c.bufferSize)
	n, err := c.socket.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (c *udpConn) WriteFrame(payload []byte) error {
	if len(payload) > c.bufferSize {
		return errs.New(errs.InvalidEncoding, "frame exceeds configured UDP buffer size")
	}
	if c.remoteAddr != nil {
		_, err := c.socket.WriteToUDP(payload, c.remoteAddr)
		return err
	}
	_, err := c.socket.Write(payload)
	return err
}

func (c *udpConn) Close() error {
	if c.owned {
		return c.socket.Close()
	}
	return nil
}

func (c *udpConn) RemoteAddr() net.Addr {
	if c.remoteAddr != nil {
		return c.remoteAddr
	}
	return c.socket.RemoteAddr()
}

type udpListener struct {
	socket     *net.UDPConn
	bufferSize int
}

func listenUDP(addr string, bufferSize int) (Listener, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}
	return &udpListener{socket: conn, bufferSize: bufferSize}, nil
}

// Accept blocks for the next datagram and returns a udpConn scoped to the
// peer that sent it, already holding that datagram as its first frame.
func (l *udpListener) Accept() (Conn, error) {
	buf := make([]byte, l.bufferSize)
	n, remote, err := l.socket.ReadFromUDP(buf)
	if err != nil {
		return nil, err
	}
	return &udpConn{
		socket:     l.socket,
		remoteAddr: remote,
		bufferSize: l.bufferSize,
		pending:    buf[:n],
	}, nil
}

func (l *udpListener) Close() error   { return l.socket.Close() }
func (l *udpListener) Addr() net.Addr { return l.socket.LocalAddr() }

func dialUDP(addr string, bufferSize int) (Conn, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, err
	}
	return &udpConn{socket: conn, bufferSize: bufferSize, consumed: true, owned: true}, nil
}

var _ io.Closer = (*udpConn)(nil)
