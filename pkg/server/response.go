package server

import (
	"bytes"
	"fmt"
	"time"

	"github.com/arlobraun/httpcore/pkg/constants"
	"github.com/arlobraun/httpcore/pkg/deadline"
	"github.com/arlobraun/httpcore/pkg/header"
	"github.com/arlobraun/httpcore/pkg/transport"
)

// Response is the write-side byte sink a handler appends status line,
// headers, and body to. Rather than flushing on destruction, the engine
// flushes it explicitly once the handler returns.
type Response struct {
	sock *transport.Socket

	statusCode int
	reason     string
	header     header.Map
	body       bytes.Buffer

	// CloseConnectionAfterResponse lets a handler force connection
	// teardown regardless of the request's Connection header.
	CloseConnectionAfterResponse bool

	contentTimeout time.Duration
	headersSent    bool
	flushed        bool
}

func newResponse(sock *transport.Socket, contentTimeout time.Duration) *Response {
	return &Response{
		sock:           sock,
		statusCode:     200,
		reason:         "OK",
		header:         header.New(),
		contentTimeout: contentTimeout,
	}
}

// SetStatus sets the status line a handler wants written. Defaults to
// 200 OK when never called.
func (r *Response) SetStatus(code int, reason string) {
	r.statusCode = code
	r.reason = reason
}

// Header returns the response header map for the handler to populate.
func (r *Response) Header() header.Map {
	return r.header
}

// Write appends p to the buffered body, implementing io.Writer.
func (r *Response) Write(p []byte) (int, error) {
	return r.body.Write(p)
}

// Close sets CloseConnectionAfterResponse, forcing the connection closed
// once the response has been flushed.
func (r *Response) Close() {
	r.CloseConnectionAfterResponse = true
}

// flush writes the status line, headers (adding Content-Length from the
// buffered body length unless the handler already set one), and any
// body bytes not already streamed out by Send. A
// Response is flushed exactly once.
func (r *Response) flush() error {
	if r.flushed {
		return nil
	}
	r.flushed = true

	timer := deadline.Arm(r.contentTimeout, r.sock)
	defer timer.Cancel()
	if r.contentTimeout > 0 {
		r.sock.SetWriteDeadline(time.Now().Add(r.contentTimeout))
	}

	if !r.headersSent {
		if err := r.writeHead(r.body.Len()); err != nil {
			return err
		}
	}
	if r.body.Len() > 0 {
		if err := r.sock.WriteAll(r.body.Bytes()); err != nil {
			return err
		}
		r.body.Reset()
	}
	return nil
}

// writeHead renders and writes the status line plus headers. bodyLen
// supplies an automatic Content-Length when the handler didn't set one
// and the caller isn't switching to a length-less streamed response.
func (r *Response) writeHead(bodyLen int) error {
	r.headersSent = true

	if r.header.Get("Content-Length") == "" && bodyLen >= 0 {
		r.header.Set("Content-Length", fmt.Sprintf("%d", bodyLen))
	}

	head := fmt.Sprintf("HTTP/1.1 %d %s\r\n", r.statusCode, r.reason)
	if err := r.sock.WriteAll([]byte(head)); err != nil {
		return err
	}
	return r.header.WriteTo(r.sock)
}

// Send streams whatever is currently buffered in the response body out to
// the socket in fixed-size slices, useful for pumping a large static
// payload without holding all of it in the body buffer at once. Each
// Response owns its own slice rather than sharing one across connections.
// callback is invoked once after the drain completes or fails.
func (r *Response) Send(callback func(error)) {
	err := r.sendNow()
	if callback != nil {
		callback(err)
	}
}

func (r *Response) sendNow() error {
	if !r.headersSent {
		// A streamed response has no a-priori body length; writeHead is
		// called with bodyLen -1 so it never fabricates a Content-Length
		// the handler hasn't already supplied (e.g. via chunked framing).
		if err := r.writeHead(-1); err != nil {
			return err
		}
	}

	timer := deadline.Arm(r.contentTimeout, r.sock)
	defer timer.Cancel()
	if r.contentTimeout > 0 {
		r.sock.SetWriteDeadline(time.Now().Add(r.contentTimeout))
	}

	buf := make([]byte, constants.StaticSendBufferSize)
	for {
		n, _ := r.body.Read(buf)
		if n == 0 {
			break
		}
		if err := r.sock.WriteAll(buf[:n]); err != nil {
			return err
		}
	}
	return nil
}
