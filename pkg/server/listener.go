package server

import (
	"context"
	"net"
	"time"
)

// newListener binds addr, optionally setting SO_REUSEADDR before bind, and
// wraps the result so every accepted connection gets TCP keep-alives.
// Only the kernel-level probe interval is set here, not the HTTP-level
// keep-alive decision, which serveConn handles.
// setReuseAddrControl is platform-specific (listener_unix.go /
// listener_other.go).
func newListener(addr string, reuseAddress bool) (net.Listener, error) {
	lc := net.ListenConfig{}
	if reuseAddress {
		lc.Control = setReuseAddrControl
	}

	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, err
	}
	return keepAliveListener{ln.(*net.TCPListener)}, nil
}

// keepAliveListener sets a kernel-level keep-alive probe on every
// accepted connection, matching badu-http/tcp_keep_alive_listener.go.
type keepAliveListener struct {
	*net.TCPListener
}

func (l keepAliveListener) Accept() (net.Conn, error) {
	conn, err := l.AcceptTCP()
	if err != nil {
		return nil, err
	}
	conn.SetKeepAlive(true)
	conn.SetKeepAlivePeriod(3 * time.Minute)
	return conn, nil
}
