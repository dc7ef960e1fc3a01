// Package server implements the Server Engine (V): binds a listening
// endpoint, accepts connections on a worker pool, parses each request,
// dispatches to a handler keyed by HTTP method, writes the response,
// and manages keep-alive.
//
// Grounded on this module's own deadline/buffer idioms for I/O, and on
// badu-http's (a net/http fork) conn.go and tcp_keep_alive_listener.go for
// the accept/parse/dispatch/keep-alive lifecycle shape.
package server

import (
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/arlobraun/httpcore/pkg/constants"
	httpcoreerrors "github.com/arlobraun/httpcore/pkg/errors"
	"github.com/arlobraun/httpcore/pkg/transport"
)

// HandlerFunc produces a response for one request. Returning a non-nil
// error before the handler has written anything signals a failure: the
// engine reports it via ErrorFunc and abandons the connection without
// flushing a response.
type HandlerFunc func(resp *Response, req *Request) error

// HandlerTable maps an HTTP method (uppercase token) to its default
// handler for that method.
type HandlerTable map[string]HandlerFunc

// RouteHandler is an optional richer-routing collaborator: when set, it
// is consulted before the method-keyed HandlerTable. Regex routing, URL
// parameter capture, and static-file serving live behind this seam, not
// in this package.
type RouteHandler interface {
	Match(method, path string) (HandlerFunc, bool)
}

// ErrorFunc is invoked for parse errors, I/O errors, handler-thrown
// errors, and Content-Length conversion failures.
// req may hold only RemoteAddr/RemotePort when the failure happened
// before the request line was read.
type ErrorFunc func(req *Request, err error)

// Config controls the listening endpoint, worker pool size, and the two
// deadlines of the per-connection pipeline.
type Config struct {
	// Address is the bind address; empty means any.
	Address string
	// Port is the listen port.
	Port int
	// WorkerCount is the number of goroutines draining accepted
	// connections; 0 defaults to constants.DefaultWorkerCount.
	WorkerCount int
	// RequestTimeout bounds the header-block read; 0 defaults to
	// constants.DefaultRequestTimeout.
	RequestTimeout time.Duration
	// ContentTimeout bounds the request body read and the response
	// flush; 0 defaults to constants.DefaultContentTimeout.
	ContentTimeout time.Duration
	// ReuseAddress sets SO_REUSEADDR on the listening socket.
	ReuseAddress bool
}

func (c Config) withDefaults() Config {
	if c.WorkerCount <= 0 {
		c.WorkerCount = constants.DefaultWorkerCount
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = constants.DefaultRequestTimeout
	}
	if c.ContentTimeout <= 0 {
		c.ContentTimeout = constants.DefaultContentTimeout
	}
	return c
}

// Server is the accept-loop engine. Handler tables are populated before
// Start; the table is read-only once accepting begins.
type Server struct {
	config Config

	mu       sync.RWMutex
	handlers HandlerTable
	router   RouteHandler
	onError  ErrorFunc

	listener net.Listener
	acceptCh chan net.Conn
	wg       sync.WaitGroup
}

// New returns a Server for cfg. Handlers are registered with Handle
// before calling Start.
func New(cfg Config) *Server {
	return &Server{
		config:   cfg.withDefaults(),
		handlers: make(HandlerTable),
		onError:  func(*Request, error) {},
	}
}

// Handle registers h as the default-resource handler for method.
func (s *Server) Handle(method string, h HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// SetRouter installs the optional richer-routing collaborator, tried
// before the method-keyed HandlerTable on every dispatch.
func (s *Server) SetRouter(r RouteHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.router = r
}

// OnError installs the callback invoked for every reportable failure.
func (s *Server) OnError(f ErrorFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f != nil {
		s.onError = f
	}
}

func (s *Server) reportError(req *Request, err error) {
	s.mu.RLock()
	f := s.onError
	s.mu.RUnlock()
	f(req, err)
}

// Start binds the listening endpoint, spawns the accept loop and
// (WorkerCount − 1) worker goroutines, then runs the final worker loop on
// the caller's own goroutine. Start blocks until Stop is called and every
// worker has drained its in-flight connection.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.config.Address, strconv.Itoa(s.config.Port))

	ln, err := newListener(addr, s.config.ReuseAddress)
	if err != nil {
		return err
	}
	s.listener = ln
	s.acceptCh = make(chan net.Conn, 64)

	s.wg.Add(1)
	go s.acceptLoop()

	for i := 1; i < s.config.WorkerCount; i++ {
		s.wg.Add(1)
		go s.workerLoop()
	}

	s.wg.Add(1)
	s.workerLoop() // run the final worker on the caller's own goroutine
	s.wg.Wait()
	return nil
}

// Stop closes the listening acceptor; in-flight connections drain
// naturally.
func (s *Server) Stop() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// acceptLoop immediately re-issues a new accept after each completion and
// hands the connection to a worker. It stops, without reporting an
// error, once the listener is closed by Stop.
func (s *Server) acceptLoop() {
	defer s.wg.Done()
	defer close(s.acceptCh)

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.reportError(&Request{}, httpcoreerrors.NewAcceptError(err))
			continue
		}

		if tcpConn, ok := conn.(*net.TCPConn); ok {
			_ = tcpConn.SetNoDelay(true)
		}

		s.acceptCh <- conn
	}
}

// workerLoop is one of the WorkerCount goroutines: it pulls accepted connections off the shared
// channel and runs each one's keep-alive pipeline to completion before
// taking the next.
func (s *Server) workerLoop() {
	defer s.wg.Done()
	for conn := range s.acceptCh {
		s.serveConn(transport.Wrap(conn))
	}
}
