package tlscodec

import (
	"fmt"
	"math/bits"

	"golang.org/x/exp/constraints"
)

// uintCodec encodes an unsigned integer as width big-endian bytes.
type uintCodec[T constraints.Unsigned] struct {
	width int
	max   uint64 // largest value representable in width bytes
}

// Uint returns a codec writing T as a width-byte big-endian integer.
// width must be between 1 and the size of T; narrower widths reject
// values that do not fit at encode time instead of truncating them.
func Uint[T constraints.Unsigned](width int) Codec[T] {
	size := bits.Len64(uint64(^T(0))) / 8
	if width < 1 || width > size {
		panic(fmt.Sprintf("tlscodec: integer width %d out of range 1..%d", width, size))
	}
	return uintCodec[T]{width: width, max: maxForWidth(width)}
}

func Uint8[T ~uint8]() Codec[T]   { return Uint[T](1) }
func Uint16[T ~uint16]() Codec[T] { return Uint[T](2) }
func Uint24[T ~uint32]() Codec[T] { return Uint[T](3) }
func Uint32[T ~uint32]() Codec[T] { return Uint[T](4) }
func Uint64[T ~uint64]() Codec[T] { return Uint[T](8) }

func maxForWidth(width int) uint64 {
	if width >= 8 {
		return ^uint64(0)
	}
	return 1<<(8*uint(width)) - 1
}

func (c uintCodec[T]) Size(T) int { return c.width }

func (c uintCodec[T]) Encode(w *Writer, v T) error {
	if uint64(v) > c.max {
		return w.Fail(KindEncodingError, "value %d does not fit in %d bytes", uint64(v), c.width)
	}
	w.WriteUint(uint64(v), c.width)
	return w.Err()
}

func (c uintCodec[T]) Decode(r *Reader, v *T) error {
	var u uint64
	r.ReadUint(&u, c.width)
	if r.Err() != nil {
		return r.Err()
	}
	*v = T(u)
	return nil
}

type boolCodec struct{}

// Bool encodes a boolean as one canonical byte. Decoding rejects anything
// but 0 and 1 with InvalidInput.
func Bool() Codec[bool] { return boolCodec{} }

func (boolCodec) Size(bool) int { return 1 }

func (boolCodec) Encode(w *Writer, v bool) error {
	w.WriteBool(v)
	return w.Err()
}

func (boolCodec) Decode(r *Reader, v *bool) error {
	r.ReadBool(v)
	return r.Err()
}

type emptyCodec[T any] struct{}

// Empty is the zero-length codec, used for payload-less union variants.
func Empty[T any]() Codec[T] { return emptyCodec[T]{} }

func (emptyCodec[T]) Size(T) int              { return 0 }
func (emptyCodec[T]) Encode(*Writer, T) error { return nil }
func (emptyCodec[T]) Decode(*Reader, *T) error {
	return nil
}

type fixedBytes struct {
	n int
}

// FixedBytes encodes exactly n raw bytes with no prefix (opaque x[n]).
func FixedBytes(n int) Codec[[]byte] {
	if n < 0 {
		panic("tlscodec: negative fixed length")
	}
	return fixedBytes{n: n}
}

func (c fixedBytes) Size([]byte) int { return c.n }

func (c fixedBytes) Encode(w *Writer, v []byte) error {
	if len(v) != c.n {
		return w.Fail(KindEncodingError, "fixed opaque needs %d bytes, got %d", c.n, len(v))
	}
	w.WriteBytes(v)
	return w.Err()
}

func (c fixedBytes) Decode(r *Reader, v *[]byte) error {
	p := r.ReadBytes(c.n)
	if r.Err() != nil {
		return r.Err()
	}
	*v = append((*v)[:0], p...)
	return nil
}

type arrayCodec[T any] struct {
	n    int
	elem Codec[T]
}

// Array encodes exactly n elements back to back with no prefix (T x[n]).
func Array[T any](n int, elem Codec[T]) Codec[[]T] {
	if n < 0 {
		panic("tlscodec: negative array length")
	}
	return arrayCodec[T]{n: n, elem: elem}
}

func (c arrayCodec[T]) Size(v []T) int {
	total := 0
	for _, e := range v {
		total += c.elem.Size(e)
	}
	return total
}

func (c arrayCodec[T]) Encode(w *Writer, v []T) error {
	if len(v) != c.n {
		return w.Fail(KindEncodingError, "fixed array needs %d elements, got %d", c.n, len(v))
	}
	for i, e := range v {
		if err := c.elem.Encode(w, e); err != nil {
			return w.propagate(withIndex(err, i))
		}
	}
	return nil
}

func (c arrayCodec[T]) Decode(r *Reader, v *[]T) error {
	out := make([]T, c.n)
	for i := range out {
		if err := c.elem.Decode(r, &out[i]); err != nil {
			return r.propagate(withIndex(err, i))
		}
	}
	*v = out
	return nil
}

// Pair is a fixed-size two-tuple.
type Pair[A, B any] struct {
	First  A
	Second B
}

// Triple is a fixed-size three-tuple.
type Triple[A, B, C any] struct {
	First  A
	Second B
	Third  C
}

// Tuple2 encodes a Pair as its two members in order.
func Tuple2[A, B any](a Codec[A], b Codec[B]) Codec[Pair[A, B]] {
	return Struct(
		FieldOf("first", func(p *Pair[A, B]) *A { return &p.First }, a),
		FieldOf("second", func(p *Pair[A, B]) *B { return &p.Second }, b),
	)
}

// Tuple3 encodes a Triple as its three members in order.
func Tuple3[A, B, C any](a Codec[A], b Codec[B], c Codec[C]) Codec[Triple[A, B, C]] {
	return Struct(
		FieldOf("first", func(t *Triple[A, B, C]) *A { return &t.First }, a),
		FieldOf("second", func(t *Triple[A, B, C]) *B { return &t.Second }, b),
		FieldOf("third", func(t *Triple[A, B, C]) *C { return &t.Third }, c),
	)
}
