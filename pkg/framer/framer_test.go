package framer

import (
	"strings"
	"testing"
)

func TestParseRequestLineBasic(t *testing.T) {
	rl, err := ParseRequestLine("POST /string HTTP/1.1\r\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rl.Method != "POST" || rl.Target != "/string" || rl.Version != "1.1" {
		t.Fatalf("got %+v", rl)
	}
}

func TestParseRequestLineEmptyPathNormalizedToSlash(t *testing.T) {
	rl, err := ParseRequestLine("GET  HTTP/1.1\r\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rl.Target != "/" {
		t.Fatalf("got target %q, want /", rl.Target)
	}
}

func TestParseRequestLineMissingHTTPLiteralFails(t *testing.T) {
	if _, err := ParseRequestLine("GET /a XTTP/1.1\r\n"); err == nil {
		t.Fatalf("expected error when HTTP/ literal is absent")
	}
}

func TestParseRequestLineMissingSpaceFails(t *testing.T) {
	if _, err := ParseRequestLine("GET/a HTTP/1.1\r\n"); err == nil {
		t.Fatalf("expected error when method separator is missing")
	}
}

func TestParseRequestLineTrimsLFOnlyStream(t *testing.T) {
	rl, err := ParseRequestLine("GET /a HTTP/1.1\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rl.Version != "1.1" {
		t.Fatalf("got version %q, want 1.1 (LF-only stream should not drop a byte)", rl.Version)
	}
}

func TestParseStatusLineKeepsCombinedField(t *testing.T) {
	sl, err := ParseStatusLine("HTTP/1.1 200 OK\r\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if sl.Version != "1.1" {
		t.Fatalf("got version %q", sl.Version)
	}
	if sl.StatusCode != "200 OK" {
		t.Fatalf("got status code field %q, want combined \"200 OK\"", sl.StatusCode)
	}
	if sl.StatusCodeOnly() != "200" {
		t.Fatalf("got StatusCodeOnly() %q", sl.StatusCodeOnly())
	}
	if sl.Reason() != "OK" {
		t.Fatalf("got Reason() %q", sl.Reason())
	}
}

func TestParseHeaderLinesStripsOneLeadingSpaceAndCR(t *testing.T) {
	lines := strings.Split("Host: h\r\nContent-Length:  5\r\n\r\n", "\n")
	h := ParseHeaderLines(lines)
	if h.Get("Host") != "h" {
		t.Fatalf("got Host %q", h.Get("Host"))
	}
	// Only one leading space is stripped, so a second space survives.
	if h.Get("Content-Length") != " 5" {
		t.Fatalf("got Content-Length %q, want \" 5\"", h.Get("Content-Length"))
	}
}

func TestDetermineBodyModeContentLengthWins(t *testing.T) {
	h := ParseHeaderLines(strings.Split("Content-Length: 5\r\nTransfer-Encoding: chunked\r\n\r\n", "\n"))
	mode, n, err := DetermineBodyMode(h, "1.1", false)
	if err != nil {
		t.Fatalf("determine: %v", err)
	}
	if mode != BodyModeContentLength || n != 5 {
		t.Fatalf("got mode=%v n=%d", mode, n)
	}
}

func TestDetermineBodyModeChunked(t *testing.T) {
	h := ParseHeaderLines(strings.Split("Transfer-Encoding: chunked\r\n\r\n", "\n"))
	mode, _, err := DetermineBodyMode(h, "1.1", false)
	if err != nil {
		t.Fatalf("determine: %v", err)
	}
	if mode != BodyModeChunked {
		t.Fatalf("got mode=%v", mode)
	}
}

func TestDetermineBodyModeUntilCloseOnlyForClient(t *testing.T) {
	h := ParseHeaderLines(strings.Split("Connection: close\r\n\r\n", "\n"))

	mode, _, err := DetermineBodyMode(h, "1.1", true)
	if err != nil {
		t.Fatalf("determine: %v", err)
	}
	if mode != BodyModeUntilClose {
		t.Fatalf("client side: got mode=%v, want until-close", mode)
	}

	mode, _, err = DetermineBodyMode(h, "1.1", false)
	if err != nil {
		t.Fatalf("determine: %v", err)
	}
	if mode != BodyModeNone {
		t.Fatalf("server side: got mode=%v, want none (server never infers until-close)", mode)
	}
}

func TestDetermineBodyModeInvalidContentLength(t *testing.T) {
	h := ParseHeaderLines(strings.Split("Content-Length: notanumber\r\n\r\n", "\n"))
	if _, _, err := DetermineBodyMode(h, "1.1", false); err == nil {
		t.Fatalf("expected protocol error for invalid content-length")
	}
}

type fakeReader struct {
	data []byte
	pos  int
}

func (f *fakeReader) ReadUntil(delim []byte) ([]byte, error) {
	idx := strings.Index(string(f.data[f.pos:]), string(delim))
	if idx < 0 {
		return nil, errEOF
	}
	end := f.pos + idx + len(delim)
	out := f.data[f.pos:end]
	f.pos = end
	return out, nil
}

func (f *fakeReader) ReadExactly(n int) ([]byte, error) {
	if f.pos+n > len(f.data) {
		return nil, errEOF
	}
	out := f.data[f.pos : f.pos+n]
	f.pos += n
	return out, nil
}

func (f *fakeReader) ReadUntilEOF() ([]byte, error) {
	out := f.data[f.pos:]
	f.pos = len(f.data)
	return out, nil
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

const errEOF = simpleErr("eof")

func TestReadBodyChunked(t *testing.T) {
	r := &fakeReader{data: []byte("5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n")}
	body, err := ReadBody(r, BodyModeChunked, 0)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "hello world" {
		t.Fatalf("got %q", body)
	}
}

func TestReadBodyContentLength(t *testing.T) {
	r := &fakeReader{data: []byte("hello")}
	body, err := ReadBody(r, BodyModeContentLength, 5)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "hello" {
		t.Fatalf("got %q", body)
	}
}
