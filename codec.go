package tlscodec

import (
	"encoding"
	"io"
)

// Codec is the size/encode/decode triad for values of type T.
//
// Implementations must keep Size(v) equal to the number of bytes Encode(w, v)
// writes; every composite codec relies on that equality to frame its content.
// Codecs are immutable once built and safe for concurrent use.
type Codec[T any] interface {
	// Size returns the exact serialized length of v in bytes.
	Size(v T) int
	// Encode appends v to w. On error, bytes already written are not rolled back.
	Encode(w *Writer, v T) error
	// Decode reads a value from r into v, stopping at the first failure.
	Decode(r *Reader, v *T) error
}

// Sizer is an interface for types that can report their serialized size.
type Sizer interface {
	// Size returns the size of the value in bytes when encoded.
	Size() int
}

// Message is implemented by types that carry their own wire representation.
// It is the per-type override hook: Derive and Self use it instead of
// deriving a layout from the Go type.
type Message interface {
	Sizer
	// Serialize appends the value to w.
	Serialize(w *Writer) error
	// Deserialize reads the value from r.
	Deserialize(r *Reader) error
}

// Marshaler mirrors the standard library's encoding entry points for a bound value.
type Marshaler interface {
	encoding.BinaryMarshaler // MarshalBinary() ([]byte, error)
	io.WriterTo              // WriteTo(w io.Writer) (int64, error)

	// MarshalTo encodes into a caller buffer without allocating.
	MarshalTo(buf []byte) (int, error)
}

// Unmarshaler mirrors the standard library's decoding entry points for a bound value.
type Unmarshaler interface {
	encoding.BinaryUnmarshaler // UnmarshalBinary(data []byte) error
	io.ReaderFrom              // ReadFrom(r io.Reader) (int64, error)
}

// Full aggregates every interface a Binding satisfies.
type Full interface {
	Sizer
	Marshaler
	Unmarshaler
}

// Func adapts three functions into a Codec. It is the escape hatch for
// fields whose wire form cannot be derived from their Go type.
type Func[T any] struct {
	SizeFunc   func(v T) int
	EncodeFunc func(w *Writer, v T) error
	DecodeFunc func(r *Reader, v *T) error
}

var _ Codec[int] = Func[int]{}

func (f Func[T]) Size(v T) int                 { return f.SizeFunc(v) }
func (f Func[T]) Encode(w *Writer, v T) error  { return f.EncodeFunc(w, v) }
func (f Func[T]) Decode(r *Reader, v *T) error { return f.DecodeFunc(r, v) }
