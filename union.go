package tlscodec

import (
	"fmt"
	"reflect"
)

// Unknown is what a catch-all variant captures: the raw discriminant and
// the bytes it did not decode.
type Unknown struct {
	Tag  uint64
	Body []byte
}

// Variant is one (tag, payload codec) entry of a union. Build it with Case,
// Select or CatchAll.
type Variant[U any] struct {
	Tag  uint64
	Name string

	catchAll bool
	width    Width        // catch-all body prefix; 0 means the rest of the region
	typ      reflect.Type // payload type for Case dispatch
	err      error        // deferred construction error, reported by NewUnion

	match  func(U) bool
	size   func(U) int
	encode func(*Writer, U) error
	decode func(*Reader) (U, error)
	raw    func(U) (Unknown, bool)
	wrap   func(Unknown) U
}

// Case declares a variant whose payload is the concrete type P. Encoding
// dispatches on the dynamic type of the union value, so every Case of a
// union needs a distinct P, and P must be assignable to U.
func Case[U, P any](tag uint64, name string, c Codec[P]) Variant[U] {
	pt, ut := reflect.TypeFor[P](), reflect.TypeFor[U]()
	v := Variant[U]{Tag: tag, Name: name, typ: pt}
	if !pt.AssignableTo(ut) {
		v.err = fmt.Errorf("%w: variant %q: %s is not assignable to %s", ErrInvalidSchema, name, pt, ut)
	}
	v.match = func(u U) bool {
		_, ok := any(u).(P)
		return ok
	}
	v.size = func(u U) int { return c.Size(any(u).(P)) }
	v.encode = func(w *Writer, u U) error { return c.Encode(w, any(u).(P)) }
	v.decode = func(r *Reader) (U, error) {
		var p P
		if err := c.Decode(r, &p); err != nil {
			var zero U
			return zero, err
		}
		u, _ := any(p).(U)
		return u, nil
	}
	return v
}

// Select declares a variant with explicit conversions, for unions whose
// variants cannot be told apart by Go type. unwrap reports whether a union
// value belongs to this variant.
func Select[U, P any](tag uint64, name string, c Codec[P], wrap func(P) U, unwrap func(U) (P, bool)) Variant[U] {
	return Variant[U]{
		Tag:  tag,
		Name: name,
		match: func(u U) bool {
			_, ok := unwrap(u)
			return ok
		},
		size: func(u U) int {
			p, _ := unwrap(u)
			return c.Size(p)
		},
		encode: func(w *Writer, u U) error {
			p, _ := unwrap(u)
			return c.Encode(w, p)
		},
		decode: func(r *Reader) (U, error) {
			var p P
			if err := c.Decode(r, &p); err != nil {
				var zero U
				return zero, err
			}
			return wrap(p), nil
		},
	}
}

// CatchAll declares the fallback for undeclared tags. Its body is the rest of
// the current region when width is 0, or a width-prefixed opaque block.
// unwrap reports whether a union value is an unknown variant.
func CatchAll[U any](name string, width Width, wrap func(Unknown) U, unwrap func(U) (Unknown, bool)) Variant[U] {
	v := Variant[U]{Name: name, catchAll: true, width: width, wrap: wrap, raw: unwrap}
	if width != 0 && !width.Valid() {
		v.err = fmt.Errorf("%w: catch-all %q: invalid body width %d", ErrInvalidSchema, name, width)
	}
	v.match = func(u U) bool {
		_, ok := unwrap(u)
		return ok
	}
	return v
}

// CatchUnknown is CatchAll for unions whose value type can hold an Unknown directly.
func CatchUnknown[U any](name string, width Width) Variant[U] {
	v := CatchAll(name, width,
		func(x Unknown) U { return any(x).(U) },
		func(u U) (Unknown, bool) {
			x, ok := any(u).(Unknown)
			return x, ok
		})
	if ut := reflect.TypeFor[U](); !reflect.TypeFor[Unknown]().AssignableTo(ut) && v.err == nil {
		v.err = fmt.Errorf("%w: catch-all %q: Unknown is not assignable to %s", ErrInvalidSchema, name, ut)
	}
	return v
}

// UnionCodec encodes a tagged union as [tag][payload]. Its tag table is
// built once by NewUnion and only looked up afterwards.
type UnionCodec[U any] struct {
	tagWidth int
	variants []Variant[U]
	byTag    map[uint64]int
	byType   map[reflect.Type]int
	fallback *Variant[U]
	body     *OpaqueCodec // framed catch-all body, nil when the body runs to the region end
}

var _ Codec[any] = (*UnionCodec[any])(nil)

// NewUnion builds a union whose discriminant is a tagWidth-byte integer.
// Duplicate tags or names, tags that do not fit, repeated payload types
// among Case variants and more than one catch-all are rejected.
func NewUnion[U any](tagWidth int, variants ...Variant[U]) (*UnionCodec[U], error) {
	if tagWidth < 1 || tagWidth > 8 {
		return nil, fmt.Errorf("%w: union tag width %d out of range 1..8", ErrInvalidSchema, tagWidth)
	}
	c := &UnionCodec[U]{
		tagWidth: tagWidth,
		byTag:    make(map[uint64]int, len(variants)),
		byType:   make(map[reflect.Type]int, len(variants)),
	}
	names := make(map[string]bool, len(variants))
	for _, v := range variants {
		if v.err != nil {
			return nil, v.err
		}
		if v.Name != "" {
			if names[v.Name] {
				return nil, fmt.Errorf("%w: duplicate variant name %q", ErrInvalidSchema, v.Name)
			}
			names[v.Name] = true
		}
		if v.catchAll {
			if c.fallback != nil {
				return nil, fmt.Errorf("%w: more than one catch-all variant", ErrInvalidSchema)
			}
			fb := v
			c.fallback = &fb
			if v.width != 0 {
				c.body = Opaque(v.width)
			}
			continue
		}
		if v.Tag > maxForWidth(tagWidth) {
			return nil, fmt.Errorf("%w: variant %q tag %d does not fit in %d bytes", ErrInvalidSchema, v.Name, v.Tag, tagWidth)
		}
		if prev, ok := c.byTag[v.Tag]; ok {
			return nil, fmt.Errorf("%w: variants %q and %q share tag %d", ErrInvalidSchema, c.variants[prev].Name, v.Name, v.Tag)
		}
		idx := len(c.variants)
		if v.typ != nil {
			if prev, ok := c.byType[v.typ]; ok {
				return nil, fmt.Errorf("%w: variants %q and %q share payload type %s", ErrInvalidSchema, c.variants[prev].Name, v.Name, v.typ)
			}
			c.byType[v.typ] = idx
		}
		c.byTag[v.Tag] = idx
		c.variants = append(c.variants, v)
	}
	return c, nil
}

// MustUnion is like NewUnion but panics on an invalid declaration. It is
// meant for package-level codec variables.
func MustUnion[U any](tagWidth int, variants ...Variant[U]) *UnionCodec[U] {
	c, err := NewUnion(tagWidth, variants...)
	if err != nil {
		panic(err)
	}
	return c
}

// Tags returns the declared discriminants in declaration order.
func (c *UnionCodec[U]) Tags() []uint64 {
	tags := make([]uint64, len(c.variants))
	for i, v := range c.variants {
		tags[i] = v.Tag
	}
	return tags
}

// HasCatchAll reports whether undeclared tags decode into a catch-all.
func (c *UnionCodec[U]) HasCatchAll() bool { return c.fallback != nil }

// variantOf finds the declared variant holding u, or nil.
func (c *UnionCodec[U]) variantOf(u U) *Variant[U] {
	if len(c.byType) > 0 {
		if t := reflect.TypeOf(any(u)); t != nil {
			if i, ok := c.byType[t]; ok {
				return &c.variants[i]
			}
		}
	}
	for i := range c.variants {
		if c.variants[i].match(u) {
			return &c.variants[i]
		}
	}
	return nil
}

func (c *UnionCodec[U]) Size(u U) int {
	if v := c.variantOf(u); v != nil {
		return c.tagWidth + v.size(u)
	}
	if c.fallback != nil {
		if x, ok := c.fallback.raw(u); ok {
			if c.fallback.width == 0 {
				return c.tagWidth + len(x.Body)
			}
			return c.tagWidth + int(c.fallback.width) + len(x.Body)
		}
	}
	return c.tagWidth
}

func (c *UnionCodec[U]) Encode(w *Writer, u U) error {
	if v := c.variantOf(u); v != nil {
		w.WriteUint(v.Tag, c.tagWidth)
		if w.Err() != nil {
			return w.Err()
		}
		if err := v.encode(w, u); err != nil {
			return w.propagate(withField(err, v.Name))
		}
		return nil
	}
	if c.fallback != nil {
		if x, ok := c.fallback.raw(u); ok {
			return c.encodeUnknown(w, x)
		}
	}
	return w.Fail(KindEncodingError, "value of type %T matches no declared variant", any(u))
}

func (c *UnionCodec[U]) encodeUnknown(w *Writer, x Unknown) error {
	if x.Tag > maxForWidth(c.tagWidth) {
		return w.Fail(KindEncodingError, "unknown tag %d does not fit in %d bytes", x.Tag, c.tagWidth)
	}
	if i, ok := c.byTag[x.Tag]; ok {
		return w.Fail(KindEncodingError, "unknown variant reuses tag %d declared by %q", x.Tag, c.variants[i].Name)
	}
	w.WriteUint(x.Tag, c.tagWidth)
	if c.body == nil {
		w.WriteBytes(x.Body)
		return w.Err()
	}
	if err := c.body.Encode(w, x.Body); err != nil {
		return withField(err, c.fallback.Name)
	}
	return nil
}

// Decode reads the tag and decodes exactly the matching variant. An
// undeclared tag goes to the catch-all when there is one and is
// UnknownDiscriminant otherwise; no variant is ever guessed.
func (c *UnionCodec[U]) Decode(r *Reader, u *U) error {
	start := r.Offset()
	var tag uint64
	r.ReadUint(&tag, c.tagWidth)
	if r.Err() != nil {
		return r.Err()
	}
	if i, ok := c.byTag[tag]; ok {
		v := &c.variants[i]
		Logger().Trace().Uint64("tag", tag).Str("variant", v.Name).Msg("tlscodec: union dispatch")
		val, err := v.decode(r)
		if err != nil {
			return r.propagate(withField(err, v.Name))
		}
		*u = val
		return nil
	}
	if c.fallback == nil {
		Logger().Debug().Uint64("tag", tag).Int("offset", start).Msg("tlscodec: unknown discriminant")
		r.setError(newError(KindUnknownDiscriminant, start, "tag %d is not declared", tag))
		return r.Err()
	}
	var body []byte
	if c.body == nil {
		body = append([]byte{}, r.Rest()...)
	} else if err := c.body.Decode(r, &body); err != nil {
		return r.propagate(withField(err, c.fallback.Name))
	}
	if r.Err() != nil {
		return r.Err()
	}
	Logger().Debug().Uint64("tag", tag).Int("body_len", len(body)).Str("variant", c.fallback.Name).Msg("tlscodec: catch-all variant")
	*u = c.fallback.wrap(Unknown{Tag: tag, Body: body})
	return nil
}
