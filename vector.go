package tlscodec

import (
	"errors"
	"fmt"
	"math"
)

// Width is the size in bytes of a vector's content-length prefix.
type Width uint8

const (
	Width8  Width = 1 // <0..2^8-1>
	Width16 Width = 2 // <0..2^16-1>
	Width24 Width = 3 // <0..2^24-1>
	Width32 Width = 4 // <0..2^32-1>
)

// Valid reports whether w is one of the four prefix widths.
func (w Width) Valid() bool { return w >= Width8 && w <= Width32 }

// Max returns the largest content length the prefix can express.
func (w Width) Max() uint64 { return maxForWidth(int(w)) }

func (w Width) String() string { return fmt.Sprintf("u%d", 8*int(w)) }

// frame is the content-length prefix shared by every vector-like codec.
type frame struct {
	width    Width
	min, max uint64
}

func newFrame(width Width) frame {
	if !width.Valid() {
		panic(fmt.Sprintf("tlscodec: invalid vector prefix width %d", width))
	}
	return frame{width: width, max: width.Max()}
}

// bounded narrows the frame to [min, max]. It panics when the bounds are
// inverted or exceed what the prefix can express; use CheckBounds to
// validate bounds coming from untrusted descriptions.
func (f frame) bounded(min, max uint64) frame {
	if err := CheckBounds(f.width, min, max); err != nil {
		panic(err.Error())
	}
	f.min, f.max = min, max
	return f
}

// CheckBounds validates a declared [min, max] content bound against a prefix width.
func CheckBounds(width Width, min, max uint64) error {
	if !width.Valid() {
		return fmt.Errorf("%w: invalid prefix width %d", ErrInvalidSchema, width)
	}
	if min > max {
		return fmt.Errorf("%w: vector bounds inverted: min %d > max %d", ErrInvalidSchema, min, max)
	}
	if max > width.Max() {
		return fmt.Errorf("%w: vector max %d exceeds %s prefix capacity %d", ErrInvalidSchema, max, width, width.Max())
	}
	return nil
}

// check validates a content length before anything is written.
func (f frame) check(w *Writer, n int) error {
	if n < 0 {
		return w.Fail(KindInvalidVectorLength, "content length overflows")
	}
	if uint64(n) > f.width.Max() {
		return w.Fail(KindInvalidVectorLength, "content length %d exceeds %s prefix capacity %d", n, f.width, f.width.Max())
	}
	if uint64(n) < f.min || uint64(n) > f.max {
		return w.Fail(KindInvalidVectorLength, "content length %d outside declared bounds [%d, %d]", n, f.min, f.max)
	}
	return nil
}

// begin validates n and writes the prefix.
func (f frame) begin(w *Writer, n int) error {
	if w.Err() != nil {
		return w.Err()
	}
	if err := f.check(w, n); err != nil {
		return err
	}
	w.WriteUint(uint64(n), int(f.width))
	return w.Err()
}

// open reads the prefix and validates it against the remaining input and the bounds.
func (f frame) open(r *Reader) (int, error) {
	var n uint64
	r.ReadUint(&n, int(f.width))
	if r.Err() != nil {
		return 0, r.Err()
	}
	if n > uint64(r.Remaining()) {
		return 0, r.Fail(KindEndOfStream, "content length %d exceeds %d remaining bytes", n, r.Remaining())
	}
	if n < f.min || n > f.max {
		return 0, r.Fail(KindInvalidVectorLength, "content length %d outside declared bounds [%d, %d]", n, f.min, f.max)
	}
	return int(n), nil
}

// overrun reclassifies an end-of-stream inside a fully present region: the
// bytes exist, the prefix simply declared too few of them. Wrappers around
// the codec error are kept.
func overrun(err error) error {
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindEndOfStream {
		return err
	}
	e.Kind = KindInvalidVectorLength
	if e.Detail != "" {
		e.Detail = "element overruns vector content: " + e.Detail
	} else {
		e.Detail = "element overruns vector content"
	}
	return err
}

// VectorCodec encodes a sequence as [content-length prefix][elements].
type VectorCodec[T any] struct {
	frame
	elem Codec[T]
}

var _ Codec[[]uint8] = (*VectorCodec[uint8])(nil)

// Vector returns a codec for T<0..2^(8*width)-1>: the prefix counts content
// bytes, not elements.
func Vector[T any](width Width, elem Codec[T]) *VectorCodec[T] {
	return &VectorCodec[T]{frame: newFrame(width), elem: elem}
}

// WithBounds returns a copy restricted to content lengths in [min, max].
func (c *VectorCodec[T]) WithBounds(min, max uint64) *VectorCodec[T] {
	cp := *c
	cp.frame = c.bounded(min, max)
	return &cp
}

// ContentSize returns the byte length of the elements without the prefix,
// or -1 when the sum overflows.
func (c *VectorCodec[T]) ContentSize(v []T) int {
	total := 0
	for _, e := range v {
		var ok bool
		if total, ok = checkedAdd(total, c.elem.Size(e)); !ok {
			return -1
		}
	}
	return total
}

func (c *VectorCodec[T]) Size(v []T) int {
	n := c.ContentSize(v)
	if n < 0 {
		return math.MaxInt
	}
	return int(c.width) + n
}

func (c *VectorCodec[T]) Encode(w *Writer, v []T) error {
	if err := c.begin(w, c.ContentSize(v)); err != nil {
		return err
	}
	for i, e := range v {
		if err := c.elem.Encode(w, e); err != nil {
			return w.propagate(withIndex(err, i))
		}
	}
	return nil
}

func (c *VectorCodec[T]) Decode(r *Reader, v *[]T) error {
	n, err := c.open(r)
	if err != nil {
		return err
	}
	var out []T
	err = r.Within(n, func(sub *Reader) error {
		for i := 0; sub.Remaining() > 0; i++ {
			var e T
			before := sub.Count()
			if err := c.elem.Decode(sub, &e); err != nil {
				return withIndex(overrun(err), i)
			}
			if sub.Count() == before {
				return withIndex(sub.Fail(KindEndOfStream, "element consumed no bytes, %d content bytes left", sub.Remaining()), i)
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if out == nil {
		out = []T{}
	}
	*v = out
	return nil
}

// OpaqueCodec is the []byte fast path of Vector: opaque data<..>.
type OpaqueCodec struct {
	frame
	borrow bool
}

var _ Codec[[]byte] = (*OpaqueCodec)(nil)

// Opaque returns a codec for length-prefixed raw bytes.
func Opaque(width Width) *OpaqueCodec {
	return &OpaqueCodec{frame: newFrame(width)}
}

// WithBounds returns a copy restricted to content lengths in [min, max].
func (c *OpaqueCodec) WithBounds(min, max uint64) *OpaqueCodec {
	cp := *c
	cp.frame = c.bounded(min, max)
	return &cp
}

// Borrowed returns a copy whose decoded slices alias the input buffer
// instead of being copied out of it.
func (c *OpaqueCodec) Borrowed() *OpaqueCodec {
	cp := *c
	cp.borrow = true
	return &cp
}

func (c *OpaqueCodec) Size(v []byte) int { return int(c.width) + len(v) }

func (c *OpaqueCodec) Encode(w *Writer, v []byte) error {
	if err := c.begin(w, len(v)); err != nil {
		return err
	}
	w.WriteBytes(v)
	return w.Err()
}

func (c *OpaqueCodec) Decode(r *Reader, v *[]byte) error {
	n, err := c.open(r)
	if err != nil {
		return err
	}
	p := r.ReadBytes(n)
	if r.Err() != nil {
		return r.Err()
	}
	if c.borrow {
		*v = p
	} else {
		*v = append([]byte{}, p...)
	}
	return nil
}

// StringCodec encodes a string as length-prefixed raw bytes.
type StringCodec struct {
	frame
}

var _ Codec[string] = (*StringCodec)(nil)

// String returns a codec for a length-prefixed byte string. No character
// encoding is imposed.
func String(width Width) *StringCodec {
	return &StringCodec{frame: newFrame(width)}
}

// WithBounds returns a copy restricted to content lengths in [min, max].
func (c *StringCodec) WithBounds(min, max uint64) *StringCodec {
	cp := *c
	cp.frame = c.bounded(min, max)
	return &cp
}

func (c *StringCodec) Size(v string) int { return int(c.width) + len(v) }

func (c *StringCodec) Encode(w *Writer, v string) error {
	if err := c.begin(w, len(v)); err != nil {
		return err
	}
	w.WriteBytes([]byte(v))
	return w.Err()
}

func (c *StringCodec) Decode(r *Reader, v *string) error {
	n, err := c.open(r)
	if err != nil {
		return err
	}
	p := r.ReadBytes(n)
	if r.Err() != nil {
		return r.Err()
	}
	*v = string(p)
	return nil
}

// EnclosedCodec wraps a single value in a content-length prefix, as TLS does
// for extension bodies. The inner value must consume the content exactly.
type EnclosedCodec[T any] struct {
	frame
	inner Codec[T]
}

var _ Codec[bool] = (*EnclosedCodec[bool])(nil)

// Enclosed returns a codec writing [content-length prefix][inner value].
func Enclosed[T any](width Width, inner Codec[T]) *EnclosedCodec[T] {
	return &EnclosedCodec[T]{frame: newFrame(width), inner: inner}
}

// WithBounds returns a copy restricted to content lengths in [min, max].
func (c *EnclosedCodec[T]) WithBounds(min, max uint64) *EnclosedCodec[T] {
	cp := *c
	cp.frame = c.bounded(min, max)
	return &cp
}

func (c *EnclosedCodec[T]) Size(v T) int { return int(c.width) + c.inner.Size(v) }

func (c *EnclosedCodec[T]) Encode(w *Writer, v T) error {
	if err := c.begin(w, c.inner.Size(v)); err != nil {
		return err
	}
	return c.inner.Encode(w, v)
}

func (c *EnclosedCodec[T]) Decode(r *Reader, v *T) error {
	n, err := c.open(r)
	if err != nil {
		return err
	}
	return r.Within(n, func(sub *Reader) error {
		if err := c.inner.Decode(sub, v); err != nil {
			return overrun(err)
		}
		if sub.Remaining() > 0 {
			return sub.Fail(KindEndOfStream, "%d enclosed bytes left unread", sub.Remaining())
		}
		return nil
	})
}
