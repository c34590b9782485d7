package tlscodec

import (
	"bufio"
	"bytes"
	"io"
)

// sink is the minimal destination a Writer appends to.
type sink interface {
	io.Writer
	io.ByteWriter
}

type (
	// byteWriterAdapter gives a plain io.Writer a WriteByte method
	// without buffering; the scratch byte is the only state it holds.
	byteWriterAdapter struct {
		io.Writer
		scratch [1]byte
	}
	// countingSink accepts everything and stores nothing. Writers built on it
	// perform the validation dry run used by Marshal.
	countingSink struct{}
)

var (
	_ sink = (*BytesWriter)(nil)
	_ sink = (*bytes.Buffer)(nil)
	_ sink = (*bufio.Writer)(nil)
	_ sink = (*byteWriterAdapter)(nil)
	_ sink = countingSink{}
)

func (a *byteWriterAdapter) WriteByte(c byte) error {
	a.scratch[0] = c
	n, err := a.Writer.Write(a.scratch[:])
	if err != nil {
		return err
	}
	if n != 1 {
		return io.ErrShortWrite
	}
	return nil
}

func (countingSink) Write(p []byte) (int, error) { return len(p), nil }
func (countingSink) WriteByte(byte) error        { return nil }

// asSink picks the cheapest adapter for w. Destinations that already support
// WriteByte (BytesWriter, bytes.Buffer, bufio.Writer) are used directly.
func asSink(w io.Writer) sink {
	if s, ok := w.(sink); ok {
		return s
	}
	return &byteWriterAdapter{Writer: w}
}
