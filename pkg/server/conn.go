package server

import (
	"errors"
	"io"
	"strings"

	"github.com/arlobraun/httpcore/pkg/buffer"
	"github.com/arlobraun/httpcore/pkg/constants"
	"github.com/arlobraun/httpcore/pkg/deadline"
	httpcoreerrors "github.com/arlobraun/httpcore/pkg/errors"
	"github.com/arlobraun/httpcore/pkg/framer"
	"github.com/arlobraun/httpcore/pkg/header"
	"github.com/arlobraun/httpcore/pkg/transport"
)

// serveConn drives the per-connection pipeline to completion, restarting
// it at step 1 for each keep-alive request. Go expresses the recursion as
// a loop rather than literal call recursion; the observable behavior —
// N serial requests on one socket yielding N responses in order — is the
// same.
//
// Grounded on badu-http/conn.go's readRequest/keep-alive-loop shape,
// adapted to this library's simpler method-keyed dispatch and to
// pkg/framer/pkg/deadline instead of net/http's internal request state.
func (s *Server) serveConn(conn *transport.Socket) {
	defer conn.Close()

	for {
		req, resp, ok := s.readRequest(conn)
		if !ok {
			return
		}

		keepAlive := s.dispatch(req, resp)
		if req.Body != nil {
			req.Body.Close()
		}
		if !keepAlive {
			return
		}
	}
}

// readRequest performs steps 1-5 of the pipeline: allocate the Request,
// read the header block under a request-phase deadline, parse it, and
// read any Content-Length or chunked body under a content-phase deadline. ok is
// false whenever the connection should simply be dropped (clean peer
// close, parse failure, or I/O error) — in every case other than a
// clean idle close, on_error has already been invoked.
func (s *Server) readRequest(conn *transport.Socket) (*Request, *Response, bool) {
	pending := newPendingRequest(conn.RemoteAddr())

	timer := deadline.Arm(s.config.RequestTimeout, conn)
	head, err := conn.ReadUntil([]byte("\r\n\r\n"))
	expired := timer.Expired()
	timer.Cancel()
	if err != nil {
		if !expired && len(head) == 0 && errors.Is(err, io.EOF) {
			// Peer closed an idle connection without sending a byte; this
			// is routine keep-alive teardown, not reportable.
			return nil, nil, false
		}
		if expired {
			s.reportError(pending, httpcoreerrors.NewTimeoutError("read request", s.config.RequestTimeout))
		} else {
			s.reportError(pending, err)
		}
		return nil, nil, false
	}

	firstLine, headerLines := framer.SplitHeadBlock(head)
	reqLine, err := framer.ParseRequestLine(firstLine)
	if err != nil {
		s.reportError(pending, err)
		return nil, nil, false
	}

	headers := framer.ParseHeaderLines(headerLines)
	if err := header.Validate(headers); err != nil {
		s.reportError(pending, httpcoreerrors.NewProtocolError("invalid header", err))
		return nil, nil, false
	}

	req := pending
	req.Method = strings.ToUpper(reqLine.Method)
	req.Path = reqLine.Target
	req.HTTPVersion = reqLine.Version
	req.Header = headers

	mode, contentLength, err := framer.DetermineBodyMode(headers, reqLine.Version, false)
	if err != nil {
		s.reportError(req, err)
		return nil, nil, false
	}

	if mode == framer.BodyModeContentLength || mode == framer.BodyModeChunked {
		var bodyTimer *deadline.Timer
		if mode == framer.BodyModeChunked || int64(conn.Buffered()) < contentLength {
			bodyTimer = deadline.Arm(s.config.ContentTimeout, conn)
		}
		bodyBytes, err := framer.ReadBody(conn, mode, contentLength)
		bodyExpired := bodyTimer.Expired()
		bodyTimer.Cancel()
		if err != nil {
			if bodyExpired {
				s.reportError(req, httpcoreerrors.NewTimeoutError("read request body", s.config.ContentTimeout))
			} else {
				s.reportError(req, err)
			}
			return nil, nil, false
		}
		body := buffer.New(constants.DefaultBodyMemLimit)
		if _, err := body.Write(bodyBytes); err != nil {
			s.reportError(req, err)
			return nil, nil, false
		}
		req.Body = body
	}

	resp := newResponse(conn, s.config.ContentTimeout)
	return req, resp, true
}

// dispatch performs steps 6-8: look up and invoke the handler, flush the
// response, and decide whether the connection stays open for another
// request.
func (s *Server) dispatch(req *Request, resp *Response) bool {
	handler, ok := s.lookupHandler(req.Method, req.Path)
	if !ok {
		// No-match connections simply fall off the pipeline; there is no
		// automatic 404 at this layer.
		return false
	}

	if err := s.invokeHandler(handler, resp, req); err != nil {
		s.reportError(req, httpcoreerrors.NewHandlerError(err))
		return false
	}

	if err := resp.flush(); err != nil {
		s.reportError(req, err)
		return false
	}

	return s.keepAliveDecision(req, resp)
}

// invokeHandler runs the handler, converting a panic into the same
// handler-error path a returned error takes, so one misbehaving handler cannot take down a
// worker goroutine.
func (s *Server) invokeHandler(h HandlerFunc, resp *Response, req *Request) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = httpcoreerrors.NewHandlerError(recoverErr(rec))
		}
	}()
	return h(resp, req)
}

func recoverErr(rec any) error {
	if e, ok := rec.(error); ok {
		return e
	}
	return httpcoreerrors.NewValidationError("handler panic")
}

// keepAliveDecision decides whether the connection stays open for
// another request: an explicit Close always wins, then the request's
// Connection header, then the HTTP version's default persistence.
func (s *Server) keepAliveDecision(req *Request, resp *Response) bool {
	if resp.CloseConnectionAfterResponse {
		return false
	}
	if req.Header.Has("Connection", "close") {
		return false
	}
	if req.Header.Has("Connection", "keep-alive") {
		return true
	}
	return !httpVersionBelow11(req.HTTPVersion)
}

func httpVersionBelow11(v string) bool {
	v = strings.TrimSpace(v)
	return strings.HasPrefix(v, "1.0") || strings.HasPrefix(v, "0.9")
}

// lookupHandler tries the optional richer Router collaborator first,
// then falls back to the method-keyed default-resource table.
func (s *Server) lookupHandler(method, path string) (HandlerFunc, bool) {
	if s.router != nil {
		if h, ok := s.router.Match(method, path); ok {
			return h, true
		}
	}
	s.mu.RLock()
	h, ok := s.handlers[method]
	s.mu.RUnlock()
	return h, ok
}
