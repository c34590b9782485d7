package tlscodec

import (
	"encoding/binary"
	"io"
)

// Writer is the output sink every codec encodes into. It appends big-endian
// primitives to a borrowed destination and tracks the first error; after an
// error all subsequent writes become no-ops.
//
// A Writer is not transactional: bytes written before a failure stay in the
// destination and the caller must discard the whole output.
type Writer struct {
	w     sink
	count int   // total bytes committed
	err   error // first error encountered
}

// NewWriter creates a Writer appending to w. Nothing is buffered internally,
// so no Flush is needed.
func NewWriter(w io.Writer) (*Writer, error) {
	if w == nil {
		return nil, ErrNilIO
	}
	return &Writer{w: asSink(w)}, nil
}

// newCountingWriter returns a Writer that only counts bytes.
func newCountingWriter() *Writer {
	return &Writer{w: countingSink{}}
}

func (w *Writer) Count() int { return w.count }
func (w *Writer) Err() error { return w.err }

// Result returns the number of bytes written and the first error.
func (w *Writer) Result() (int, error) {
	return w.count, w.err
}

// setError records the first non-nil error.
func (w *Writer) setError(err error) {
	if w.err == nil && err != nil {
		w.err = err
	}
}

// Fail records an error of the given kind at the current output offset and
// returns the latched error.
func (w *Writer) Fail(kind ErrorKind, format string, args ...any) error {
	w.setError(newError(kind, w.count, format, args...))
	return w.err
}

// propagate latches err (typically from a nested codec) and returns the latched error.
func (w *Writer) propagate(err error) error {
	w.setError(err)
	return w.err
}

func (w *Writer) sinkError(err error) {
	if err != nil {
		w.setError(&Error{Kind: KindEncodingError, Offset: w.count, Detail: "sink rejected write", Err: err})
	}
}

// Write implements io.Writer so raw bytes can be streamed into the sink.
func (w *Writer) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	if len(p) == 0 {
		return 0, nil
	}
	n, err := w.w.Write(p)
	if n < 0 || n > len(p) {
		n, err = 0, ErrInvalidWrite
	} else if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	w.count += n
	w.sinkError(err)
	return n, w.err
}

// WriteBytes writes p verbatim.
func (w *Writer) WriteBytes(p []byte) {
	_, _ = w.Write(p)
}

// --- Primitive Write Operations ---

func (w *Writer) WriteByte(v byte) error {
	if w.err != nil {
		return w.err
	}
	err := w.w.WriteByte(v)
	if err == nil {
		w.count++
	} else {
		w.sinkError(err)
	}
	return w.err
}

func (w *Writer) WriteUint8(v uint8) {
	_ = w.WriteByte(v)
}

// WriteBool writes the canonical flag byte: 1 for true, 0 for false.
func (w *Writer) WriteBool(v bool) {
	if v {
		_ = w.WriteByte(1)
	} else {
		_ = w.WriteByte(0)
	}
}

func (w *Writer) WriteUint16(v uint16) {
	if w.err != nil {
		return
	}
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	_, _ = w.Write(buf[:])
}

// WriteUint24 writes the low 24 bits of v. Callers check the range first.
func (w *Writer) WriteUint24(v uint32) {
	if w.err != nil {
		return
	}
	buf := [3]byte{byte(v >> 16), byte(v >> 8), byte(v)}
	_, _ = w.Write(buf[:])
}

func (w *Writer) WriteUint32(v uint32) {
	if w.err != nil {
		return
	}
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, _ = w.Write(buf[:])
}

func (w *Writer) WriteUint64(v uint64) {
	if w.err != nil {
		return
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	_, _ = w.Write(buf[:])
}

// WriteUint writes the low width bytes of v big-endian. width is 1..8.
func (w *Writer) WriteUint(v uint64, width int) {
	if w.err != nil {
		return
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	_, _ = w.Write(buf[8-width:])
}
