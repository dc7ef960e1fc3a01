// Package httpcore is a minimal HTTP/1.1 client and server pair built
// directly on a TCP transport, sharing one message-framing engine
// (pkg/framer) between the two. It re-exports the client and server
// package types for single-import use.
package httpcore

import (
	"github.com/arlobraun/httpcore/pkg/buffer"
	"github.com/arlobraun/httpcore/pkg/client"
	"github.com/arlobraun/httpcore/pkg/errors"
	"github.com/arlobraun/httpcore/pkg/header"
	"github.com/arlobraun/httpcore/pkg/server"
)

// Version is the current version of this library.
const Version = "1.0.0"

// Re-export key types for easier single-import usage.
type (
	// Header is the case-insensitive, multi-valued header map shared by
	// both the client and server engines.
	Header = header.Map

	// Buffer is the memory-then-disk-spill body store backing both a
	// server Request's body and a client Response's content.
	Buffer = buffer.Buffer

	// ClientConfig controls a Client's timeouts and forward-proxy use.
	ClientConfig = client.Config

	// ClientResponse is a fully materialized client-side HTTP response.
	ClientResponse = client.Response

	// ServerConfig controls a Server's listening endpoint, worker pool
	// size, and request/content deadlines.
	ServerConfig = server.Config

	// Request is the server-side, per-connection HTTP request.
	Request = server.Request

	// Response is the server-side write sink a handler appends to.
	Response = server.Response

	// HandlerFunc produces a Response for one Request.
	HandlerFunc = server.HandlerFunc

	// RouteHandler is the optional richer-routing collaborator consulted
	// before the method-keyed handler table.
	RouteHandler = server.RouteHandler

	// ErrorFunc is invoked for every reportable server-side failure.
	ErrorFunc = server.ErrorFunc

	// Error is the structured error type shared by both engines.
	Error = errors.Error
)

// Re-export error-type constants for convenience.
const (
	ErrorTypeDNS        = errors.ErrorTypeDNS
	ErrorTypeConnection = errors.ErrorTypeConnection
	ErrorTypeTLS        = errors.ErrorTypeTLS
	ErrorTypeTimeout    = errors.ErrorTypeTimeout
	ErrorTypeProtocol   = errors.ErrorTypeProtocol
	ErrorTypeIO         = errors.ErrorTypeIO
	ErrorTypeValidation = errors.ErrorTypeValidation
	ErrorTypeHandler    = errors.ErrorTypeHandler
)

// NewClient returns a Client targeting hostport ("host:port", default
// port 80). The socket is established lazily on the first request.
func NewClient(hostport string, cfg ClientConfig) (*client.Client, error) {
	return client.New(hostport, cfg)
}

// NewServer returns a Server for cfg. Register handlers with Handle
// before calling Start.
func NewServer(cfg ServerConfig) *server.Server {
	return server.New(cfg)
}
