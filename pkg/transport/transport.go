// Package transport implements the byte-stream socket abstraction (S) both
// engines schedule I/O on: async connect, read-until-delimiter,
// read-exactly-N, read-until-EOF, write-all, shutdown, and close.
//
// Socket is parameterized over the underlying net.Conn so a plain TCP
// connection or a TLS-wrapped one can be plugged in at the same seam; the
// TLS handshake and certificate policy themselves are an external
// collaborator and are not implemented here.
package transport

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"time"

	"github.com/arlobraun/httpcore/pkg/errors"
)

// Socket wraps a net.Conn with the buffered read operations the HTTP
// framer needs and the forced-shutdown semantics pkg/deadline drives.
type Socket struct {
	conn   net.Conn
	reader *bufio.Reader
}

// Wrap adapts an already-established net.Conn (plain TCP, or a
// TLS-wrapped connection) into a Socket.
func Wrap(conn net.Conn) *Socket {
	return &Socket{conn: conn, reader: bufio.NewReader(conn)}
}

// Dial resolves host and connects to host:port, applying connTimeout as
// the connect deadline (0 = no timeout). On success it sets TCP_NODELAY.
func Dial(ctx context.Context, host string, port int, connTimeout time.Duration) (*Socket, error) {
	dialer := &net.Dialer{Timeout: connTimeout}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.NewConnectionError(host, port, err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}

	return Wrap(conn), nil
}

// SetDeadline applies to both the next read and the next write.
func (s *Socket) SetDeadline(t time.Time) error {
	return s.conn.SetDeadline(t)
}

// SetReadDeadline applies a deadline to pending and future reads only.
func (s *Socket) SetReadDeadline(t time.Time) error {
	return s.conn.SetReadDeadline(t)
}

// SetWriteDeadline applies a deadline to pending and future writes only.
func (s *Socket) SetWriteDeadline(t time.Time) error {
	return s.conn.SetWriteDeadline(t)
}

// ReadUntil reads until the given delimiter is seen (inclusive) and returns
// everything read, delimiter included. Bytes buffered past the delimiter
// are retained internally for the next Read* call — the framer relies on
// this to carry leftover body bytes from the header read into the body
// read.
func (s *Socket) ReadUntil(delim []byte) ([]byte, error) {
	var out []byte
	last := delim[len(delim)-1]
	for {
		chunk, err := s.reader.ReadBytes(last)
		out = append(out, chunk...)
		if err != nil {
			return out, errors.NewIOError("reading until delimiter", err)
		}
		if hasSuffix(out, delim) {
			return out, nil
		}
	}
}

func hasSuffix(b, suffix []byte) bool {
	if len(b) < len(suffix) {
		return false
	}
	for i := range suffix {
		if b[len(b)-len(suffix)+i] != suffix[i] {
			return false
		}
	}
	return true
}

// ReadExactly reads exactly n bytes, blocking until they arrive or an error
// (including a deadline-forced shutdown) occurs.
func (s *Socket) ReadExactly(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	total := 0
	for total < len(buf) {
		c, err := s.reader.Read(buf[total:])
		total += c
		if err != nil {
			return buf[:total], errors.NewIOError("reading exact length", err)
		}
	}
	return buf, nil
}

// ReadUntilEOF reads until the peer closes its write side. EOF terminates
// the read successfully — it is not an error.
func (s *Socket) ReadUntilEOF() ([]byte, error) {
	var out []byte
	buf := make([]byte, 32*1024)
	for {
		n, err := s.reader.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil {
			if isEOF(err) {
				return out, nil
			}
			return out, errors.NewIOError("reading until close", err)
		}
	}
}

func isEOF(err error) bool {
	return err.Error() == "EOF"
}

// Peek returns the next n buffered bytes without consuming them, for
// callers that need to inspect before deciding how to read forward.
func (s *Socket) Peek(n int) ([]byte, error) {
	return s.reader.Peek(n)
}

// Buffered returns the number of bytes currently buffered and unread.
func (s *Socket) Buffered() int {
	return s.reader.Buffered()
}

// Write implements io.Writer by delegating to WriteAll, so a Socket can
// be handed directly to helpers like header.Map.WriteTo.
func (s *Socket) Write(p []byte) (int, error) {
	if err := s.WriteAll(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteAll writes every byte of p, looping over partial writes.
func (s *Socket) WriteAll(p []byte) error {
	written := 0
	for written < len(p) {
		n, err := s.conn.Write(p[written:])
		written += n
		if err != nil {
			return errors.NewIOError("writing request", err)
		}
	}
	return nil
}

// Shutdown forcibly aborts any in-flight operation by pushing the deadline
// into the past, then closes the connection. This is what pkg/deadline's
// Timer calls on expiry.
func (s *Socket) Shutdown() {
	_ = s.conn.SetDeadline(time.Unix(0, 0))
	_ = s.conn.Close()
}

// Close closes the underlying connection without forcing a deadline; used
// on the normal completion / error paths where no operation is in flight.
func (s *Socket) Close() error {
	return s.conn.Close()
}

// RemoteAddr returns the peer's address, as a server Request needs for its
// remote_address/remote_port fields.
func (s *Socket) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// LocalAddr returns the local socket address.
func (s *Socket) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}
