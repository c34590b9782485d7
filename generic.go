package tlscodec

import (
	"bytes"
	"io"
)

// Validate performs a counting dry run of c.Encode: every declared bound is
// checked and the produced length must equal c.Size(v). Nothing is written.
func Validate[T any](c Codec[T], v T) (int, error) {
	expected := c.Size(v)
	w := newCountingWriter()
	if err := c.Encode(w, v); err != nil {
		return 0, err
	}
	if w.Count() != expected {
		return 0, newError(KindEncodingError, w.Count(), "codec reported size %d but encoded %d bytes", expected, w.Count())
	}
	return expected, nil
}

// Marshal encodes v into a new slice of exactly c.Size(v) bytes. Bounds are
// validated before any byte is committed.
func Marshal[T any](c Codec[T], v T) ([]byte, error) {
	size, err := Validate(c, v)
	if err != nil {
		return nil, err
	}
	bw := NewBytesWriter(make([]byte, size))
	if err := c.Encode(&Writer{w: bw}, v); err != nil {
		return nil, err
	}
	return bw.Bytes(), nil
}

// Append encodes v after the contents of dst, growing it at most once.
func Append[T any](dst []byte, c Codec[T], v T) ([]byte, error) {
	size, err := Validate(c, v)
	if err != nil {
		return dst, err
	}
	start := len(dst)
	if cap(dst)-start < size {
		grown := make([]byte, start, start+size)
		copy(grown, dst)
		dst = grown
	}
	bw := NewBytesWriter(dst[start : start+size])
	if err := c.Encode(&Writer{w: bw}, v); err != nil {
		return dst, err
	}
	return dst[:start+size], nil
}

// MarshalTo encodes v into buf without allocating and returns the number of
// bytes written. A buffer shorter than c.Size(v) is rejected up front.
func MarshalTo[T any](c Codec[T], v T, buf []byte) (int, error) {
	size, err := Validate(c, v)
	if err != nil {
		return 0, err
	}
	if len(buf) < size {
		return 0, &Error{Kind: KindEncodingError, Detail: "destination too small", Err: io.ErrShortBuffer}
	}
	w := &Writer{w: NewBytesWriter(buf[:size])}
	if err := c.Encode(w, v); err != nil {
		return w.Count(), err
	}
	return w.Count(), nil
}

// Encode streams v to dst. Streaming sinks cannot be pre-validated: on error
// the bytes already written must be discarded by the caller.
func Encode[T any](dst io.Writer, c Codec[T], v T) (int64, error) {
	w, err := NewWriter(dst)
	if err != nil {
		return 0, err
	}
	err = c.Encode(w, v)
	return int64(w.Count()), err
}

// UnmarshalPrefix decodes one value from the front of data and returns the
// number of bytes consumed. Bytes after the value are left alone.
func UnmarshalPrefix[T any](c Codec[T], data []byte, v *T) (int, error) {
	r := NewReader(data)
	if err := c.Decode(r, v); err != nil {
		logDecodeFailure(err, len(data))
		return r.Count(), err
	}
	return r.Count(), nil
}

// Unmarshal decodes exactly one value from data. Any byte left over is
// TrailingData.
func Unmarshal[T any](c Codec[T], data []byte, v *T) error {
	n, err := UnmarshalPrefix(c, data, v)
	if err != nil {
		return err
	}
	if n != len(data) {
		err := newError(KindTrailingData, n, "%d bytes left after value", len(data)-n)
		logDecodeFailure(err, len(data))
		return err
	}
	return nil
}

// ReadFrom reads src to EOF and decodes exactly one value from it.
// It is not a streaming decoder: the whole input is buffered first.
func ReadFrom[T any](src io.Reader, c Codec[T], v *T) (int64, error) {
	if src == nil {
		return 0, ErrNilIO
	}
	buf := getBuffer()
	defer putBuffer(buf)

	n, err := buf.ReadFrom(src)
	if err != nil {
		return n, err
	}
	return n, Unmarshal(c, bytes.Clone(buf.Bytes()), v)
}

// Binding ties a value to its codec so it satisfies the standard library's
// encoding interfaces (encoding.BinaryMarshaler, io.WriterTo, ...).
type Binding[T any] struct {
	Codec Codec[T]
	Value *T
}

var _ Full = (*Binding[struct{}])(nil)

// Bind returns a Binding for *v.
func Bind[T any](c Codec[T], v *T) *Binding[T] {
	return &Binding[T]{Codec: c, Value: v}
}

func (b *Binding[T]) Size() int { return b.Codec.Size(*b.Value) }

// MarshalBinary implements encoding.BinaryMarshaler.
func (b *Binding[T]) MarshalBinary() ([]byte, error) {
	return Marshal(b.Codec, *b.Value)
}

// MarshalTo encodes into a caller buffer.
func (b *Binding[T]) MarshalTo(buf []byte) (int, error) {
	return MarshalTo(b.Codec, *b.Value, buf)
}

// WriteTo implements io.WriterTo. The value is validated first, so a bound
// violation never reaches w.
func (b *Binding[T]) WriteTo(w io.Writer) (int64, error) {
	if _, err := Validate(b.Codec, *b.Value); err != nil {
		return 0, err
	}
	return Encode(w, b.Codec, *b.Value)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (b *Binding[T]) UnmarshalBinary(data []byte) error {
	return Unmarshal(b.Codec, data, b.Value)
}

// ReadFrom implements io.ReaderFrom.
func (b *Binding[T]) ReadFrom(r io.Reader) (int64, error) {
	return ReadFrom(r, b.Codec, b.Value)
}
