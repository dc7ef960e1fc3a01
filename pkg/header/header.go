// Package header implements the multi-valued, case-insensitive header map
// shared by both engines.
package header

import (
	"fmt"
	"io"
	"net/textproto"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// Map is a multi-valued mapping from header name to header value. Name
// comparison and hashing are ASCII case-insensitive (keys are stored
// canonicalized); values for the same name are preserved in insertion
// order, which is what Set-Cookie and repeated Connection tokens need.
// Ordering between distinct names is not observable.
type Map map[string][]string

// New returns an empty Map.
func New() Map {
	return make(Map)
}

// canonical returns the canonical form of a header field name, identical
// to textproto.CanonicalMIMEHeaderKey.
func canonical(key string) string {
	return textproto.CanonicalMIMEHeaderKey(key)
}

// Add appends a value under key, preserving any existing values.
func (m Map) Add(key, value string) {
	k := canonical(key)
	m[k] = append(m[k], value)
}

// Set replaces any existing values for key with a single value.
func (m Map) Set(key, value string) {
	m[canonical(key)] = []string{value}
}

// Get returns the first value associated with key, or "" if none.
func (m Map) Get(key string) string {
	v := m[canonical(key)]
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

// Values returns every value associated with key, in insertion order —
// an equal_range("Connection")-style multi-value lookup. The returned
// slice is the map's own backing slice, not a copy.
func (m Map) Values(key string) []string {
	return m[canonical(key)]
}

// Has reports whether any value equal to want (case-insensitive) is present
// under key. Used for Connection: close / Connection: keep-alive checks.
func (m Map) Has(key, want string) bool {
	for _, v := range m.Values(key) {
		if strings.EqualFold(strings.TrimSpace(v), want) {
			return true
		}
	}
	return false
}

// Del removes all values for key.
func (m Map) Del(key string) {
	delete(m, canonical(key))
}

// Clone returns a deep copy, so a Request can outlive the buffer its
// header lines were parsed from.
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	c := make(Map, len(m))
	for k, v := range m {
		cv := make([]string, len(v))
		copy(cv, v)
		c[k] = cv
	}
	return c
}

// WriteTo serializes the map to wire format ("Key: Value\r\n..." followed by
// the blank-line terminator) and writes it to w.
func (m Map) WriteTo(w io.Writer) error {
	for k, vals := range m {
		for _, v := range vals {
			if _, err := fmt.Fprintf(w, "%s: %s\r\n", k, v); err != nil {
				return err
			}
		}
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}

// Validate enforces RFC 7230 §3.2.6 field-name and field-value syntax,
// using golang.org/x/net/http/httpguts for the character-class checks
// rather than hand-rolling them a second time. The server calls this on
// parsed request headers; a violation surfaces as a protocol error.
func Validate(m Map) error {
	for k, vals := range m {
		if !httpguts.ValidHeaderFieldName(k) {
			return fmt.Errorf("header: invalid field name %q", k)
		}
		for _, v := range vals {
			if !httpguts.ValidHeaderFieldValue(v) {
				return fmt.Errorf("header: invalid value for %q", k)
			}
		}
	}
	return nil
}
