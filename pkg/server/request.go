package server

import (
	"net"
	"strconv"

	"github.com/arlobraun/httpcore/pkg/buffer"
	"github.com/arlobraun/httpcore/pkg/header"
)

// Request is allocated fresh on every socket accept (and on every
// keep-alive restart) and populated by pkg/framer off the wire. RemoteAddr/RemotePort are set before parsing even
// begins, so a parse failure can still be reported against a request
// that carries only those two fields.
//
// Body is an opaque byte sequence readable as a stream, backed by
// pkg/buffer.Buffer: bodies within constants.DefaultBodyMemLimit stay in
// memory, larger ones spill to disk. Reader() reads either form;
// Bytes() returns nil once the body has spilled. Body is nil for a
// request with no body.
type Request struct {
	Method      string
	Path        string
	HTTPVersion string
	Header      header.Map
	Body        *buffer.Buffer

	RemoteAddr string
	RemotePort int
}

// newPendingRequest returns a Request with only its remote endpoint
// filled in, for use before the request line has been read.
func newPendingRequest(remote net.Addr) *Request {
	req := &Request{}
	host, portStr, err := net.SplitHostPort(remote.String())
	if err != nil {
		req.RemoteAddr = remote.String()
		return req
	}
	req.RemoteAddr = host
	if port, err := strconv.Atoi(portStr); err == nil {
		req.RemotePort = port
	}
	return req
}
