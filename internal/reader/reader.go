// Package reader provides a buffered byte cursor with two bytes of
// look-ahead over an arbitrary io.Reader.
package reader

import (
	"bufio"
	"io"
)

// DefaultBufferSize is the block size pulled from the source per refill.
const DefaultBufferSize = 8 * 1024

// Reader is a pull-based cursor over a byte source. Once the source is
// exhausted or fails, every accessor reports no byte; Err tells the two
// cases apart.
type Reader struct {
	src    *bufio.Reader
	err    error
	offset int64
}

// New wraps src using DefaultBufferSize.
func New(src io.Reader) *Reader {
	return NewSize(src, DefaultBufferSize)
}

// NewSize wraps src with a buffer of at least size bytes.
func NewSize(src io.Reader, size int) *Reader {
	if size < 16 {
		size = DefaultBufferSize
	}
	return &Reader{src: bufio.NewReaderSize(src, size)}
}

// Get consumes and returns the next byte.
func (r *Reader) Get() (byte, bool) {
	if r.err != nil {
		return 0, false
	}
	b, err := r.src.ReadByte()
	if err != nil {
		r.fail(err)
		return 0, false
	}
	r.offset++
	return b, true
}

// Peek returns the next byte without consuming it.
func (r *Reader) Peek() (byte, bool) {
	return r.peekAt(0)
}

// PeekNext returns the byte after the next one without consuming either.
func (r *Reader) PeekNext() (byte, bool) {
	return r.peekAt(1)
}

// Advance skips one byte. It is used after Peek accepted the byte.
func (r *Reader) Advance() {
	if r.err != nil {
		return
	}
	n, err := r.src.Discard(1)
	r.offset += int64(n)
	if err != nil {
		r.fail(err)
	}
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int64 {
	return r.offset
}

// Err returns the first non-EOF error reported by the source.
func (r *Reader) Err() error {
	if r.err == io.EOF {
		return nil
	}
	return r.err
}

func (r *Reader) peekAt(idx int) (byte, bool) {
	if r.err != nil {
		return 0, false
	}
	buf, err := r.src.Peek(idx + 1)
	// A short peek at EOF is not terminal: the bytes before it can
	// still be consumed.
	if err != nil && err != io.EOF {
		r.fail(err)
	}
	if len(buf) > idx {
		return buf[idx], true
	}
	return 0, false
}

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}
