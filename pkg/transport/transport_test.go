// Copyright 2025 Certen Protocol

package transport

import (
	"testing"
)

func TestTCPFrameRoundTrip(t *testing.T) {
	ln, err := Listen(KindTCP, "127.0.0.1:0", 0)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	done := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			done <- err
			return
		}
		defer conn.Close()
		frame, err := conn.ReadFrame()
		if err != nil {
			done <- err
			return
		}
		done <- conn.WriteFrame(frame)
	}()

	client, err := Dial(KindTCP, ln.Addr().String(), 0)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	payload := []byte("transfer-order-bytes")
	if err := client.WriteFrame(payload); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	if err := <-done; err != nil {
		t.Fatalf("server side: %v", err)
	}

	echoed, err := client.ReadFrame()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if string(echoed) != string(payload) {
		t.Fatalf("expected %q, got %q", payload, echoed)
	}
}

func TestTCPFrameOverMaxSizeRejected(t *testing.T) {
	ln, err := Listen(KindTCP, "127.0.0.1:0", 0)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	client, err := Dial(KindTCP, ln.Addr().String(), 0)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	oversized := make([]byte, MaxFrameBytes+1)
	if err := client.WriteFrame(oversized); err == nil {
		t.Fatalf("expected oversized frame to be rejected")
	}
}

func TestUDPFrameRoundTrip(t *testing.T) {
	const bufSize = 2048

	ln, err := Listen(KindUDP, "127.0.0.1:0", bufSize)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	done := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			done <- err
			return
		}
		frame, err := conn.ReadFrame()
		if err != nil {
			done <- err
			return
		}
		done <- conn.WriteFrame(frame)
	}()

	client, err := Dial(KindUDP, ln.Addr().String(), bufSize)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	payload := []byte("account-info-request-bytes")
	if err := client.WriteFrame(payload); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("server side: %v", err)
	}

	reply, err := client.ReadFrame()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if string(reply) != string(payload) {
		t.Fatalf("expected %q, got %q", payload, reply)
	}
}

func TestUDPFrameOverBufferSizeRejected(t *testing.T) {
	const bufSize = 64

	ln, err := Listen(KindUDP, "127.0.0.1:0", bufSize)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	client, err := Dial(KindUDP, ln.Addr().String(), bufSize)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	oversized := make([]byte, bufSize+1)
	if err := client.WriteFrame(oversized); err == nil {
		t.Fatalf("expected oversized datagram to be rejected")
	}
}
