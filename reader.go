package tlscodec

import "encoding/binary"

// Reader is the input cursor every codec decodes from. It is a view over a
// caller-supplied slice: reads return sub-slices or copy into caller memory,
// the position only moves forward, and it never reads past its end.
//
// Like Writer, Reader latches the first error; subsequent reads are no-ops
// and the position stays where the failure happened.
type Reader struct {
	b    []byte // borrowed input
	n    int    // current read position within b
	base int    // absolute offset of b[0] in the outermost input
	err  error  // first error encountered
}

// NewReader creates a Reader over b.
func NewReader(b []byte) *Reader {
	return &Reader{b: b}
}

// Count returns the number of bytes consumed by this reader.
func (r *Reader) Count() int { return r.n }

// Offset returns the absolute offset of the next byte in the outermost input.
func (r *Reader) Offset() int { return r.base + r.n }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.b) - r.n }

func (r *Reader) Err() error { return r.err }

// Result returns the bytes consumed and the first error.
func (r *Reader) Result() (int, error) {
	return r.n, r.err
}

// setError records the first non-nil error.
func (r *Reader) setError(err error) {
	if r.err == nil && err != nil {
		r.err = err
	}
}

// Fail records an error of the given kind at the current offset and returns the latched error.
func (r *Reader) Fail(kind ErrorKind, format string, args ...any) error {
	r.setError(newError(kind, r.Offset(), format, args...))
	return r.err
}

// propagate latches err (typically from a nested codec) and returns the latched error.
func (r *Reader) propagate(err error) error {
	r.setError(err)
	return r.err
}

// next consumes n bytes and returns them as a view, or latches EndOfStream.
func (r *Reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > r.Remaining() {
		r.Fail(KindEndOfStream, "need %d bytes, have %d", n, r.Remaining())
		return nil
	}
	p := r.b[r.n : r.n+n : r.n+n]
	r.n += n
	return p
}

// Peek returns the next n bytes without consuming them, or nil if fewer remain.
func (r *Reader) Peek(n int) []byte {
	if r.err != nil || n < 0 || n > r.Remaining() {
		return nil
	}
	return r.b[r.n : r.n+n : r.n+n]
}

// ReadBytes consumes n bytes and returns a view into the input.
// The view aliases the caller's buffer; copy it to retain it.
func (r *Reader) ReadBytes(n int) []byte {
	return r.next(n)
}

// ReadBytesTo fills dest from the input.
func (r *Reader) ReadBytesTo(dest []byte) {
	if p := r.next(len(dest)); p != nil {
		copy(dest, p)
	}
}

// Rest consumes and returns everything left in this reader.
func (r *Reader) Rest() []byte {
	return r.next(r.Remaining())
}

// Within runs fn on a nested reader bounded to the next n bytes. The parent
// advances by however much fn consumed, so a failure leaves the parent at
// the position reached. n beyond the remaining input is EndOfStream.
func (r *Reader) Within(n int, fn func(sub *Reader) error) error {
	if r.err != nil {
		return r.err
	}
	if n < 0 || n > r.Remaining() {
		return r.Fail(KindEndOfStream, "region of %d bytes exceeds %d remaining", n, r.Remaining())
	}
	sub := Reader{b: r.b[r.n : r.n+n : r.n+n], base: r.Offset()}
	err := fn(&sub)
	r.n += sub.n
	if err == nil {
		err = sub.err
	}
	if err != nil {
		return r.propagate(err)
	}
	return nil
}

// --- Primitive Read Operations ---

func (r *Reader) ReadByte() (byte, error) {
	p := r.next(1)
	if p == nil {
		return 0, r.err
	}
	return p[0], nil
}

func (r *Reader) ReadUint8(dest *uint8) {
	if p := r.next(1); p != nil {
		*dest = p[0]
	}
}

// ReadBool reads a canonical flag byte. Anything but 0 or 1 is InvalidInput.
func (r *Reader) ReadBool(dest *bool) {
	p := r.Peek(1)
	if p == nil {
		r.next(1)
		return
	}
	switch p[0] {
	case 0:
		*dest = false
	case 1:
		*dest = true
	default:
		r.Fail(KindInvalidInput, "non-canonical flag byte 0x%02x", p[0])
		return
	}
	r.n++
}

func (r *Reader) ReadUint16(dest *uint16) {
	if p := r.next(2); p != nil {
		*dest = binary.BigEndian.Uint16(p)
	}
}

func (r *Reader) ReadUint24(dest *uint32) {
	if p := r.next(3); p != nil {
		*dest = uint32(p[0])<<16 | uint32(p[1])<<8 | uint32(p[2])
	}
}

func (r *Reader) ReadUint32(dest *uint32) {
	if p := r.next(4); p != nil {
		*dest = binary.BigEndian.Uint32(p)
	}
}

func (r *Reader) ReadUint64(dest *uint64) {
	if p := r.next(8); p != nil {
		*dest = binary.BigEndian.Uint64(p)
	}
}

// ReadUint reads a big-endian unsigned integer of width bytes (1..8).
func (r *Reader) ReadUint(dest *uint64, width int) {
	p := r.next(width)
	if p == nil {
		return
	}
	var v uint64
	for _, b := range p {
		v = v<<8 | uint64(b)
	}
	*dest = v
}
