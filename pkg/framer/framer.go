// Package framer implements the HTTP Framer (F): stateless parsing of the
// request line or status line and the header block from a byte buffer, and
// the three-way body-framing decision (Content-Length, chunked, or
// connection-close). It is a pure function library shared by both the
// client and server engines.
//
// Grounded on the go-rawhttp client's readHeaders/readBody/readChunkedBody
// sequencing, generalized so the server can reuse the same body-framing
// decision instead of re-deriving it.
package framer

import (
	"strconv"
	"strings"

	"github.com/arlobraun/httpcore/pkg/errors"
	"github.com/arlobraun/httpcore/pkg/header"
)

// RequestLine holds the parsed pieces of an HTTP request line.
type RequestLine struct {
	Method  string
	Target  string
	Version string
}

// StatusLine holds the parsed pieces of an HTTP status line. StatusCode
// intentionally holds the numeric code and reason phrase concatenated
// with a space. StatusCodeOnly and Reason split it apart for callers who
// want just one half.
type StatusLine struct {
	Version    string
	StatusCode string
}

// StatusCodeOnly returns the leading numeric portion of StatusCode.
func (s StatusLine) StatusCodeOnly() string {
	i := strings.IndexByte(s.StatusCode, ' ')
	if i < 0 {
		return s.StatusCode
	}
	return s.StatusCode[:i]
}

// Reason returns everything after the numeric code, or "" if absent.
func (s StatusLine) Reason() string {
	i := strings.IndexByte(s.StatusCode, ' ')
	if i < 0 || i+1 >= len(s.StatusCode) {
		return ""
	}
	return s.StatusCode[i+1:]
}

// trimLineEnding strips a trailing CR and/or LF explicitly, rather than by
// fixed-offset arithmetic, so a stream that delivers LF only without a
// preceding CR never silently drops a byte of the version string.
func trimLineEnding(s string) string {
	s = strings.TrimSuffix(s, "\n")
	s = strings.TrimSuffix(s, "\r")
	return s
}

// safeSlice returns s[start:end], clamped to s's bounds instead of
// panicking. A line shorter than the expected token length silently
// yields an empty substring rather than erroring.
func safeSlice(s string, start, end int) string {
	if start < 0 {
		start = 0
	}
	if start > len(s) {
		start = len(s)
	}
	if end > len(s) {
		end = len(s)
	}
	if end < start {
		end = start
	}
	return s[start:end]
}

// ParseRequestLine parses "METHOD SP TARGET SP \"HTTP/\" VERSION CRLF".
// An empty TARGET is normalized to "/".
func ParseRequestLine(line string) (RequestLine, error) {
	line = trimLineEnding(line)

	sp1 := strings.IndexByte(line, ' ')
	if sp1 < 0 {
		return RequestLine{}, errors.NewProtocolError("malformed request line: missing method separator", nil)
	}
	rest := safeSlice(line, sp1+1, len(line))
	sp2 := strings.IndexByte(rest, ' ')
	if sp2 < 0 {
		return RequestLine{}, errors.NewProtocolError("malformed request line: missing target separator", nil)
	}

	method := safeSlice(line, 0, sp1)
	target := safeSlice(rest, 0, sp2)
	if target == "" {
		target = "/"
	}

	protoPart := safeSlice(rest, sp2+1, len(rest))
	const want = "HTTP/"
	if !strings.HasPrefix(protoPart, want) {
		return RequestLine{}, errors.NewProtocolError("malformed request line: expected HTTP/ before version", nil)
	}
	version := safeSlice(protoPart, len(want), len(protoPart))

	return RequestLine{Method: method, Target: target, Version: version}, nil
}

// ParseStatusLine parses "\"HTTP/\" VERSION SP STATUS-CODE-AND-REASON CRLF".
func ParseStatusLine(line string) (StatusLine, error) {
	line = trimLineEnding(line)

	const want = "HTTP/"
	if !strings.HasPrefix(line, want) {
		return StatusLine{}, errors.NewProtocolError("malformed status line: expected HTTP/ prefix", nil)
	}

	sp := strings.IndexByte(line, ' ')
	if sp < 0 {
		return StatusLine{}, errors.NewProtocolError("malformed status line: missing version separator", nil)
	}

	version := safeSlice(line, len(want), sp)
	statusCode := safeSlice(line, sp+1, len(line))

	return StatusLine{Version: version, StatusCode: statusCode}, nil
}

// SplitHeadBlock splits the raw bytes up to and including the blank-line
// terminator into the first line (request or status line, CRLF stripped
// by the caller's parser) and the remaining header lines.
func SplitHeadBlock(raw []byte) (firstLine string, headerLines []string) {
	lines := strings.Split(string(raw), "\n")
	if len(lines) == 0 {
		return "", nil
	}
	return lines[0], lines[1:]
}

// ParseHeaderLines parses a sequence of "Name: Value" lines into a header
// Map. It stops at the first line that contains no colon — in practice the
// blank line preceding the body.
func ParseHeaderLines(lines []string) header.Map {
	h := header.New()
	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			break
		}
		name := line[:idx]
		value := line[idx+1:]
		value = strings.TrimPrefix(value, " ")
		h.Add(name, value)
	}
	return h
}

// BodyMode identifies which of the three disjoint body-framing rules
// applies to a message.
type BodyMode int

const (
	// BodyModeNone means the message has no body.
	BodyModeNone BodyMode = iota
	// BodyModeContentLength means the body is exactly ContentLength bytes.
	BodyModeContentLength
	// BodyModeChunked means the body is chunked transfer-encoded.
	BodyModeChunked
	// BodyModeUntilClose means the body runs until the peer closes the
	// connection (client-side only).
	BodyModeUntilClose
)

// DetermineBodyMode applies the body-framing rule, in order:
// Content-Length, then chunked, then (client side only) HTTP<1.1 or
// Connection: close, else no body. isClient distinguishes a response
// parse (which allows the until-close fallback) from a request parse
// (which does not — the server never infers an until-close request body).
func DetermineBodyMode(h header.Map, httpVersion string, isClient bool) (BodyMode, int64, error) {
	if cl := h.Get("Content-Length"); cl != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(cl), 10, 64)
		if err != nil {
			return BodyModeNone, 0, errors.NewProtocolError("invalid Content-Length", err)
		}
		if n < 0 {
			return BodyModeNone, 0, errors.NewProtocolError("negative Content-Length", nil)
		}
		return BodyModeContentLength, n, nil
	}

	if h.Get("Transfer-Encoding") == "chunked" {
		return BodyModeChunked, 0, nil
	}

	if isClient {
		if httpVersionLess11(httpVersion) || h.Has("Connection", "close") {
			return BodyModeUntilClose, 0, nil
		}
	}

	return BodyModeNone, 0, nil
}

func httpVersionLess11(v string) bool {
	v = strings.TrimSpace(v)
	switch {
	case strings.HasPrefix(v, "1.1"):
		return false
	case strings.HasPrefix(v, "1.0"), strings.HasPrefix(v, "0.9"):
		return true
	default:
		// Any other (e.g. "2", "2.0") is not less than 1.1 for this
		// library's purposes — it never negotiates those protocols.
		return false
	}
}

// Reader is the subset of pkg/transport.Socket the body-reading helpers
// need, kept narrow so framer stays a pure function library with no
// dependency on the concrete socket type.
type Reader interface {
	ReadUntil(delim []byte) ([]byte, error)
	ReadExactly(n int) ([]byte, error)
	ReadUntilEOF() ([]byte, error)
}

// ReadBody reads the message body according to mode/contentLength,
// returning the fully materialized body bytes. Bodies are always
// buffered before dispatch — this library has no streaming-body
// callback seam.
func ReadBody(r Reader, mode BodyMode, contentLength int64) ([]byte, error) {
	switch mode {
	case BodyModeContentLength:
		if contentLength > constantsMaxContentLength {
			return nil, errors.NewProtocolError("content-length too large", nil)
		}
		return r.ReadExactly(int(contentLength))
	case BodyModeChunked:
		return readChunked(r)
	case BodyModeUntilClose:
		return r.ReadUntilEOF()
	default:
		return nil, nil
	}
}

// constantsMaxContentLength mirrors pkg/constants.MaxContentLength without
// importing it, to keep framer free of a dependency cycle risk as the
// constants package grows server/client-specific knobs.
const constantsMaxContentLength = 1024 * 1024 * 1024 * 1024 // 1TB

// readChunked decodes a chunked transfer-encoded body: repeatedly read a
// line containing a hex size, read that many bytes, discard the trailing
// CRLF, stop when size is zero.
func readChunked(r Reader) ([]byte, error) {
	var body []byte
	for {
		line, err := r.ReadUntil([]byte("\r\n"))
		if err != nil {
			return nil, errors.NewProtocolError("reading chunk size", err)
		}
		sizeLine := strings.TrimSuffix(string(line), "\r\n")
		sizeLine = strings.TrimSpace(strings.Split(sizeLine, ";")[0]) // ignore chunk extensions

		size, err := strconv.ParseInt(sizeLine, 16, 64)
		if err != nil {
			return nil, errors.NewProtocolError("invalid chunk size", err)
		}

		if size == 0 {
			// Consume the terminating CRLF after the zero-size chunk.
			if _, err := r.ReadUntil([]byte("\r\n")); err != nil {
				return nil, errors.NewProtocolError("reading chunk terminator", err)
			}
			break
		}

		payload, err := r.ReadExactly(int(size))
		if err != nil {
			return nil, errors.NewIOError("reading chunk body", err)
		}
		body = append(body, payload...)

		if _, err := r.ReadExactly(2); err != nil { // trailing CRLF
			return nil, errors.NewIOError("reading chunk CRLF", err)
		}
	}
	return body, nil
}
