// Package buffer implements the body store shared by the server's request
// pipeline and the client's response reader: bytes accumulate in memory up
// to a configurable watermark, and once a write would cross it the buffer
// transparently switches to a spooled temp file so a large body never grows
// the process's heap without bound.
package buffer

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/arlobraun/httpcore/pkg/constants"
	"github.com/arlobraun/httpcore/pkg/errors"
)

// Buffer accumulates written bytes in memory until the configured
// watermark is crossed, then spools the remainder (and everything
// already buffered) to a temp file. Zero value is not usable; construct
// with New.
type Buffer struct {
	mu        sync.Mutex
	mem       bytes.Buffer
	file      *os.File
	path      string
	watermark int64
	written   int64
	closed    bool
}

// New returns a Buffer that keeps up to watermark bytes in memory before
// spooling to disk. A non-positive watermark falls back to
// constants.DefaultBodyMemLimit.
func New(watermark int64) *Buffer {
	if watermark <= 0 {
		watermark = constants.DefaultBodyMemLimit
	}
	return &Buffer{watermark: watermark}
}

// Write appends p, crossing over to a spooled temp file the moment doing
// so in memory would exceed the watermark. Once spooled, every
// subsequent Write goes straight to the file.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, errors.NewIOError("write to closed buffer", nil)
	}

	if b.file == nil && b.fitsInMemoryLocked(len(p)) {
		n, _ := b.mem.Write(p)
		b.written += int64(n)
		return n, nil
	}

	if b.file == nil {
		if err := b.openSpillFileLocked(); err != nil {
			return 0, err
		}
	}

	n, err := b.file.Write(p)
	b.written += int64(n)
	if err != nil {
		return n, errors.NewIOError("write to spooled body file", err)
	}
	return n, nil
}

// fitsInMemoryLocked reports whether n more bytes can be appended to the
// in-memory buffer without crossing the watermark. Caller holds mu.
func (b *Buffer) fitsInMemoryLocked(n int) bool {
	return int64(b.mem.Len()+n) <= b.watermark
}

// openSpillFileLocked creates the backing temp file and migrates whatever
// is already held in memory onto it. Caller holds mu.
func (b *Buffer) openSpillFileLocked() error {
	f, err := os.CreateTemp("", "httpcore-body-*.tmp")
	if err != nil {
		return errors.NewIOError("create spool file", err)
	}
	b.file = f
	b.path = f.Name()

	if b.mem.Len() > 0 {
		if _, err := f.Write(b.mem.Bytes()); err != nil {
			b.closeFileLocked()
			return errors.NewIOError("migrate buffered body to spool file", err)
		}
		b.mem.Reset()
	}
	return nil
}

// Bytes returns the accumulated data if it is still held in memory, and
// nil once the buffer has spilled to disk — callers that need the data
// unconditionally should go through Reader instead.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.file != nil {
		return nil
	}
	return b.mem.Bytes()
}

// Path returns the spool file's path, or "" while the buffer is still
// entirely in memory.
func (b *Buffer) Path() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.path
}

// Size returns the total number of bytes written so far, regardless of
// whether they live in memory or on disk.
func (b *Buffer) Size() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.written
}

// IsSpilled reports whether the watermark has been crossed and a spool
// file backs the buffer.
func (b *Buffer) IsSpilled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file != nil
}

// Reader returns a fresh, independent reader over everything written so
// far. For a spilled buffer this reopens the spool file by path so a
// reader can be taken out without disturbing the writer's state.
func (b *Buffer) Reader() (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errors.NewIOError("read from closed buffer", nil)
	}

	if b.file == nil {
		return io.NopCloser(bytes.NewReader(b.mem.Bytes())), nil
	}

	if err := b.file.Sync(); err != nil {
		return nil, errors.NewIOError("flush spool file before read", err)
	}
	f, err := os.Open(b.path)
	if err != nil {
		return nil, errors.NewIOError("reopen spool file", err)
	}
	return f, nil
}

// Close releases the spool file, if any, removing it from disk. Close is
// idempotent: calling it again is a no-op that returns nil.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.closeFileLocked()
}

// closeFileLocked closes and removes the spool file if one is open.
// Caller holds mu.
func (b *Buffer) closeFileLocked() error {
	if b.file == nil {
		return nil
	}
	closeErr := b.file.Close()
	removeErr := os.Remove(b.path)
	b.file = nil
	b.path = ""
	if closeErr != nil {
		return errors.NewIOError("close spool file", closeErr)
	}
	if removeErr != nil {
		return errors.NewIOError("remove spool file", removeErr)
	}
	return nil
}

// Reset discards any spooled file and zeroes the buffer so it can be
// reused for another body under the same watermark.
func (b *Buffer) Reset() error {
	if err := b.Close(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mem.Reset()
	b.written = 0
	b.closed = false
	return nil
}
