package tlscodec

import (
	"math"
	"sync"
)

// Field describes one member of a record: its name (used only for error
// paths, never written) and how to reach and code it.
type Field[T any] struct {
	Name   string
	size   func(v *T) int
	encode func(w *Writer, v *T) error
	decode func(r *Reader, v *T) error
}

// FieldOf declares a record field. ref returns a pointer to the field inside
// the record and c codes it.
func FieldOf[T, F any](name string, ref func(*T) *F, c Codec[F]) Field[T] {
	if ref == nil || c == nil {
		panic("tlscodec: FieldOf " + name + ": nil accessor or codec")
	}
	return Field[T]{
		Name:   name,
		size:   func(v *T) int { return c.Size(*ref(v)) },
		encode: func(w *Writer, v *T) error { return c.Encode(w, *ref(v)) },
		decode: func(r *Reader, v *T) error { return c.Decode(r, ref(v)) },
	}
}

// StructCodec composes field codecs in declaration order. The same order is
// used to encode and decode; nothing identifies fields on the wire.
type StructCodec[T any] struct {
	fields []Field[T]
}

var _ Codec[struct{}] = (*StructCodec[struct{}])(nil)

// Struct builds a record codec from an ordered field list.
func Struct[T any](fields ...Field[T]) *StructCodec[T] {
	return &StructCodec[T]{fields: append([]Field[T](nil), fields...)}
}

// Fields returns the field names in wire order.
func (c *StructCodec[T]) Fields() []string {
	names := make([]string, len(c.fields))
	for i, f := range c.fields {
		names[i] = f.Name
	}
	return names
}

func (c *StructCodec[T]) Size(v T) int {
	total := 0
	for _, f := range c.fields {
		var ok bool
		if total, ok = checkedAdd(total, f.size(&v)); !ok {
			return math.MaxInt
		}
	}
	return total
}

// Encode writes every field in order and stops at the first failure.
// Bytes of the fields before it remain in the sink.
func (c *StructCodec[T]) Encode(w *Writer, v T) error {
	for _, f := range c.fields {
		if err := f.encode(w, &v); err != nil {
			return w.propagate(withField(err, f.Name))
		}
	}
	return w.Err()
}

// Decode reads every field in order and stops at the first failure, leaving
// the cursor where that field stopped and earlier fields populated.
func (c *StructCodec[T]) Decode(r *Reader, v *T) error {
	for _, f := range c.fields {
		if err := f.decode(r, v); err != nil {
			return r.propagate(withField(err, f.Name))
		}
	}
	return r.Err()
}

type lazyCodec[T any] struct {
	once  sync.Once
	build func() Codec[T]
	c     Codec[T]
}

// Lazy defers building a codec until first use, which lets recursive types
// refer to their own codec.
func Lazy[T any](build func() Codec[T]) Codec[T] {
	return &lazyCodec[T]{build: build}
}

func (l *lazyCodec[T]) get() Codec[T] {
	l.once.Do(func() { l.c = l.build() })
	return l.c
}

func (l *lazyCodec[T]) Size(v T) int                 { return l.get().Size(v) }
func (l *lazyCodec[T]) Encode(w *Writer, v T) error  { return l.get().Encode(w, v) }
func (l *lazyCodec[T]) Decode(r *Reader, v *T) error { return l.get().Decode(r, v) }

type selfCodec[T any, PT interface {
	*T
	Message
}] struct{}

// Self adapts a type implementing Message (on its pointer) into a Codec.
func Self[T any, PT interface {
	*T
	Message
}]() Codec[T] {
	return selfCodec[T, PT]{}
}

func (selfCodec[T, PT]) Size(v T) int                 { return PT(&v).Size() }
func (selfCodec[T, PT]) Encode(w *Writer, v T) error  { return PT(&v).Serialize(w) }
func (selfCodec[T, PT]) Decode(r *Reader, v *T) error { return PT(v).Deserialize(r) }
