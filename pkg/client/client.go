// Package client implements the Client Engine (C): given a host:port and
// an optional forward proxy, it performs one request/response exchange
// synchronously from the caller's perspective.
package client

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/arlobraun/httpcore/pkg/buffer"
	"github.com/arlobraun/httpcore/pkg/constants"
	"github.com/arlobraun/httpcore/pkg/deadline"
	"github.com/arlobraun/httpcore/pkg/errors"
	"github.com/arlobraun/httpcore/pkg/framer"
	"github.com/arlobraun/httpcore/pkg/header"
	"github.com/arlobraun/httpcore/pkg/transport"
)

// Config controls timeouts and forward-proxy use for a Client.
type Config struct {
	// Timeout bounds the request write and, separately, the response
	// read; each phase gets the full Timeout. 0 means no timeout.
	Timeout time.Duration
	// ConnectTimeout bounds the connect step. 0 means "use Timeout";
	// if Timeout is also 0, constants.DefaultConnTimeout applies.
	ConnectTimeout time.Duration
	// Proxy is a forward proxy endpoint as "host:port", or "" for none.
	// A bare host with no port defaults to constants.DefaultProxyPort.
	Proxy string
}

// Response is the fully materialized client-side HTTP response.
type Response struct {
	HTTPVersion string
	// StatusCode holds the numeric code and reason phrase concatenated
	// with a space (e.g. "200 OK"). Use StatusCodeOnly/Reason for the
	// split form.
	StatusCode string
	Header     header.Map
	// Body is the response content buffer, backed by
	// pkg/buffer.Buffer so a response larger than
	// constants.DefaultBodyMemLimit spills to disk instead of growing
	// the process's memory without bound.
	Body *buffer.Buffer
}

// StatusCodeOnly returns just the leading numeric status code.
func (r *Response) StatusCodeOnly() string {
	return (framer.StatusLine{StatusCode: r.StatusCode}).StatusCodeOnly()
}

// Reason returns the reason phrase following the numeric status code.
func (r *Response) Reason() string {
	return (framer.StatusLine{StatusCode: r.StatusCode}).Reason()
}

// Client owns one connection to a single host:port and drives one
// request/response exchange at a time.
type Client struct {
	host   string
	port   int
	config Config

	proxyHost string
	proxyPort int
	hasProxy  bool

	sock *transport.Socket
}

// New parses hostport (default port 80 if no ":port" suffix) and returns
// an unconnected Client. The socket is established lazily on the first
// Request call.
func New(hostport string, cfg Config) (*Client, error) {
	host, port, err := splitHostPort(hostport, constants.DefaultHTTPPort)
	if err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("invalid target %q: %v", hostport, err))
	}

	c := &Client{host: host, port: port, config: cfg}

	if cfg.Proxy != "" {
		ph, pp, err := splitHostPort(cfg.Proxy, constants.DefaultProxyPort)
		if err != nil {
			return nil, errors.NewValidationError(fmt.Sprintf("invalid proxy %q: %v", cfg.Proxy, err))
		}
		c.proxyHost, c.proxyPort, c.hasProxy = ph, pp, true
	}

	return c, nil
}

// splitHostPort splits "host:port", defaulting the port to defaultPort
// when absent. It accepts the bare "host:port" form only: no scheme.
func splitHostPort(hostport string, defaultPort int) (string, int, error) {
	if !strings.Contains(hostport, ":") {
		return hostport, defaultPort, nil
	}
	h, p, err := net.SplitHostPort(hostport)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q", p)
	}
	return h, port, nil
}

// connect dials the socket if it is not already open, applying the
// connect-timeout deadline.
func (c *Client) connect(ctx context.Context) error {
	if c.sock != nil {
		return nil
	}

	dialHost, dialPort := c.host, c.port
	if c.hasProxy {
		dialHost, dialPort = c.proxyHost, c.proxyPort
	}

	connTimeout := c.config.ConnectTimeout
	if connTimeout == 0 {
		connTimeout = c.config.Timeout
	}
	if connTimeout == 0 {
		connTimeout = constants.DefaultConnTimeout
	}

	sock, err := transport.Dial(ctx, dialHost, dialPort, connTimeout)
	if err != nil {
		return err
	}
	c.sock = sock
	return nil
}

// Request performs one request/response exchange and returns the fully
// materialized Response.
func (c *Client) Request(method, path string, body []byte, extraHeaders header.Map) (*Response, error) {
	if err := c.connect(context.Background()); err != nil {
		return nil, err
	}

	reqBytes := c.buildRequest(method, path, body, extraHeaders)

	writeTimer := deadline.Arm(c.config.Timeout, c.sock)
	err := c.sock.WriteAll(reqBytes)
	expired := writeTimer.Expired()
	writeTimer.Cancel()
	if err != nil {
		c.closeOnError()
		if expired {
			return nil, errors.NewTimeoutError("write request", c.config.Timeout)
		}
		return nil, err
	}

	resp, err := c.readResponse()
	if err != nil {
		c.closeOnError()
		return nil, err
	}
	return resp, nil
}

func (c *Client) closeOnError() {
	if c.sock != nil {
		c.sock.Close()
		c.sock = nil
	}
}

// buildRequest renders the request line, Host header, caller headers,
// Content-Length (if body is non-empty), the blank line, and the body.
// The path is rewritten to absolute-form when a proxy is configured.
func (c *Client) buildRequest(method, path string, body []byte, extra header.Map) []byte {
	if path == "" {
		path = "/"
	}

	target := path
	if c.hasProxy {
		target = fmt.Sprintf("http://%s:%d%s", c.host, c.port, path)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\n", strings.ToUpper(method), target)
	fmt.Fprintf(&b, "Host: %s:%d\r\n", c.host, c.port)

	for name, values := range extra {
		for _, v := range values {
			fmt.Fprintf(&b, "%s: %s\r\n", name, v)
		}
	}

	if len(body) > 0 {
		fmt.Fprintf(&b, "Content-Length: %d\r\n", len(body))
	}

	b.WriteString("\r\n")

	out := []byte(b.String())
	out = append(out, body...)
	return out
}

// readResponse reads the status line and header block, then frames the
// body per the rules in pkg/framer.
func (c *Client) readResponse() (*Response, error) {
	readTimer := deadline.Arm(c.config.Timeout, c.sock)
	defer readTimer.Cancel()

	head, err := c.sock.ReadUntil([]byte("\r\n\r\n"))
	if err != nil {
		return nil, c.classifyReadErr(err, readTimer)
	}

	firstLine, headerLines := framer.SplitHeadBlock(head)
	statusLine, err := framer.ParseStatusLine(firstLine)
	if err != nil {
		return nil, err
	}
	headers := framer.ParseHeaderLines(headerLines)

	mode, contentLength, err := framer.DetermineBodyMode(headers, statusLine.Version, true)
	if err != nil {
		return nil, err
	}

	bodyBytes, err := framer.ReadBody(c.sock, mode, contentLength)
	if err != nil {
		return nil, c.classifyReadErr(err, readTimer)
	}

	body := buffer.New(constants.DefaultBodyMemLimit)
	if _, err := body.Write(bodyBytes); err != nil {
		return nil, err
	}

	return &Response{
		HTTPVersion: statusLine.Version,
		StatusCode:  statusLine.StatusCode,
		Header:      headers,
		Body:        body,
	}, nil
}

// classifyReadErr upgrades err to a structured timeout error when
// readTimer fired before the read returned; otherwise err passes through
// unchanged.
func (c *Client) classifyReadErr(err error, readTimer *deadline.Timer) error {
	if readTimer.Expired() {
		return errors.NewTimeoutError("read response", c.config.Timeout)
	}
	return err
}

// Close closes the underlying connection, if any.
func (c *Client) Close() error {
	if c.sock == nil {
		return nil
	}
	err := c.sock.Close()
	c.sock = nil
	return err
}
