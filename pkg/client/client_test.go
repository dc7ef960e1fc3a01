package client

import (
	"bufio"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	httpcoreerrors "github.com/arlobraun/httpcore/pkg/errors"
	"github.com/arlobraun/httpcore/pkg/header"
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

func TestRequestEchoBody(t *testing.T) {
	ln, port := listenLoopback(t)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		for {
			line, _ := r.ReadString('\n')
			if line == "\r\n" || line == "" {
				break
			}
		}
		conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello"))
	}()

	c, err := New("127.0.0.1:"+strconv.Itoa(port), Config{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer c.Close()

	resp, err := c.Request("GET", "/string", nil, header.New())
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCodeOnly() != "200" {
		t.Fatalf("got status %q", resp.StatusCode)
	}
	if string(resp.Body.Bytes()) != "hello" {
		t.Fatalf("got body %q", resp.Body.Bytes())
	}
}

func TestRequestChunkedResponse(t *testing.T) {
	ln2, port2 := listenLoopback(t)
	defer ln2.Close()
	go func() {
		conn, err := ln2.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		for {
			line, _ := r.ReadString('\n')
			if line == "\r\n" || line == "" {
				break
			}
		}
		conn.Write([]byte("HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n"))
	}()

	c, err := New("127.0.0.1:"+strconv.Itoa(port2), Config{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer c.Close()

	resp, err := c.Request("GET", "/x", nil, header.New())
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if string(resp.Body.Bytes()) != "hello world" {
		t.Fatalf("got body %q", resp.Body.Bytes())
	}
}

func TestRequestProxyAbsoluteForm(t *testing.T) {
	ln, port := listenLoopback(t)
	defer ln.Close()

	lineCh := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		first, _ := r.ReadString('\n')
		lineCh <- strings.TrimRight(first, "\r\n")
		for {
			line, _ := r.ReadString('\n')
			if line == "\r\n" || line == "" {
				break
			}
		}
		conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n"))
	}()

	c, err := New("host:81", Config{
		Timeout: 2 * time.Second,
		Proxy:   "127.0.0.1:" + strconv.Itoa(port),
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer c.Close()

	if _, err := c.Request("GET", "/a", nil, header.New()); err != nil {
		t.Fatalf("request: %v", err)
	}

	got := <-lineCh
	want := "GET http://host:81/a HTTP/1.1"
	if got != want {
		t.Fatalf("got first line %q, want %q", got, want)
	}
}

func TestRequestTimeoutSurfacesError(t *testing.T) {
	ln, port := listenLoopback(t)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(500 * time.Millisecond) // never responds in time
	}()

	c, err := New("127.0.0.1:"+strconv.Itoa(port), Config{Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer c.Close()

	_, err = c.Request("GET", "/", nil, header.New())
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if !httpcoreerrors.IsTimeoutError(err) {
		t.Fatalf("got error %v, want a classified timeout error", err)
	}
}
