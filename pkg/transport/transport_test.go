package transport

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"
)

func listenLoopback(t *testing.T) (net.Listener, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return ln, port
}

func TestDialAndWriteAll(t *testing.T) {
	ln, port := listenLoopback(t)
	defer ln.Close()

	done := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			done <- nil
			return
		}
		buf := make([]byte, 5)
		conn.Read(buf)
		done <- buf
		conn.Close()
	}()

	sock, err := Dial(context.Background(), "127.0.0.1", port, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer sock.Close()

	if err := sock.WriteAll([]byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := <-done
	if string(got) != "hello" {
		t.Fatalf("server got %q", got)
	}
}

func TestReadUntilDelimiterCarriesOverExtraBytes(t *testing.T) {
	ln, port := listenLoopback(t)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.Write([]byte("GET / HTTP/1.1\r\n\r\nEXTRA"))
		conn.Close()
	}()

	sock, err := Dial(context.Background(), "127.0.0.1", port, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer sock.Close()

	head, err := sock.ReadUntil([]byte("\r\n\r\n"))
	if err != nil {
		t.Fatalf("read until: %v", err)
	}
	if string(head) != "GET / HTTP/1.1\r\n\r\n" {
		t.Fatalf("got %q", head)
	}

	rest, err := sock.ReadExactly(5)
	if err != nil {
		t.Fatalf("read exactly: %v", err)
	}
	if string(rest) != "EXTRA" {
		t.Fatalf("got %q", rest)
	}
}

func TestShutdownAbortsPendingRead(t *testing.T) {
	ln, port := listenLoopback(t)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	sock, err := Dial(context.Background(), "127.0.0.1", port, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	<-accepted

	errCh := make(chan error, 1)
	go func() {
		_, err := sock.ReadExactly(10)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	sock.Shutdown()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatalf("expected shutdown to surface an error on the pending read")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("shutdown did not unblock the pending read")
	}
}

func TestReadUntilEOFIsNotAnError(t *testing.T) {
	ln, port := listenLoopback(t)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.Write([]byte("body without content-length"))
		conn.Close()
	}()

	sock, err := Dial(context.Background(), "127.0.0.1", port, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer sock.Close()

	body, err := sock.ReadUntilEOF()
	if err != nil {
		t.Fatalf("expected EOF to be treated as success, got %v", err)
	}
	if string(body) != "body without content-length" {
		t.Fatalf("got %q", body)
	}
}
