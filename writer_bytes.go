package tlscodec

import "io"

// BytesWriter is an append-only sink over a caller-supplied slice.
// It never grows the slice: a write that does not fit writes what it can
// and returns io.ErrShortWrite.
type BytesWriter struct {
	B []byte // destination slice, borrowed
	N int    // current write position
}

// NewBytesWriter creates a BytesWriter over the full capacity of p.
func NewBytesWriter(p []byte) *BytesWriter {
	return &BytesWriter{B: p[:cap(p)]}
}

// Write implements the io.Writer interface.
func (w *BytesWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if w.N >= len(w.B) {
		return 0, io.ErrShortWrite
	}
	n := copy(w.B[w.N:], p)
	w.N += n
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// WriteByte implements the io.ByteWriter interface.
func (w *BytesWriter) WriteByte(c byte) error {
	if w.N >= len(w.B) {
		return io.ErrShortWrite
	}
	w.B[w.N] = c
	w.N++
	return nil
}

// Reset allows the underlying slice to be reused.
func (w *BytesWriter) Reset() { w.N = 0 }

// Len returns the number of bytes written.
func (w *BytesWriter) Len() int { return w.N }

// Available returns the number of bytes that still fit.
func (w *BytesWriter) Available() int { return len(w.B) - w.N }

// Bytes returns a view of the written data.
func (w *BytesWriter) Bytes() []byte { return w.B[:w.N] }
