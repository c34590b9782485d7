package schema

import (
	"fmt"
	"strings"

	"github.com/oy3o/tlscodec"
)

// compiled is a type ready for use: its codec and the converter from plain
// decoder output.
type compiled struct {
	codec tlscodec.Codec[any]
	plain func(any) (any, error)
}

var kinds = map[string]bool{
	"struct": true, "union": true, "vector": true, "array": true, "bytes": true,
	"fixed": true, "string": true, "optional": true, "enclosed": true,
}

var intWidths = map[string]int{"u8": 1, "u16": 2, "u24": 3, "u32": 4, "u64": 8}

var primitives = map[string]func() *compiled{
	"u8":  func() *compiled { return uintType(1) },
	"u16": func() *compiled { return uintType(2) },
	"u24": func() *compiled { return uintType(3) },
	"u32": func() *compiled { return uintType(4) },
	"u64": func() *compiled { return uintType(8) },
	"bool": func() *compiled {
		return &compiled{codec: dyn(tlscodec.Bool(), "bool", toBool), plain: plainBool}
	},
	"empty": func() *compiled {
		return &compiled{codec: tlscodec.Empty[any](), plain: func(any) (any, error) { return nil, nil }}
	},
}

func uintType(width int) *compiled {
	return &compiled{
		codec: dyn(tlscodec.Uint[uint64](width), fmt.Sprintf("u%d", 8*width), toUint),
		plain: func(x any) (any, error) { return plainUint(x, width) },
	}
}

type compiler struct {
	decls  map[string]typeDecl
	done   map[string]*compiled
	active map[string]bool
}

func newCompiler(decls map[string]typeDecl) *compiler {
	return &compiler{
		decls:  decls,
		done:   make(map[string]*compiled, len(decls)),
		active: make(map[string]bool),
	}
}

// named resolves a type reference. A reference to a type still being
// compiled is recursive and resolves lazily.
func (c *compiler) named(name string) (*compiled, error) {
	if p, ok := primitives[name]; ok {
		return p(), nil
	}
	if t, ok := c.done[name]; ok {
		return t, nil
	}
	decl, ok := c.decls[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown type %q", tlscodec.ErrInvalidSchema, name)
	}
	if c.active[name] {
		return &compiled{
			codec: tlscodec.Lazy(func() tlscodec.Codec[any] { return c.done[name].codec }),
			plain: func(x any) (any, error) { return c.done[name].plain(x) },
		}, nil
	}
	if decl.Kind == "" {
		return nil, fmt.Errorf("%w: type %q has no kind", tlscodec.ErrInvalidSchema, name)
	}
	c.active[name] = true
	t, err := c.compile(name, decl.Kind, &decl)
	delete(c.active, name)
	if err != nil {
		return nil, fmt.Errorf("type %s: %w", name, err)
	}
	c.done[name] = t
	return t, nil
}

// unguarded appends the declared types a value of this kind contains before
// any framing byte has been read. Unions, optionals and prefixed kinds stop
// the walk.
func (c *compiler) unguarded(kind string, s *typeDecl, out []string) []string {
	switch kind {
	case "struct":
		for i := range s.Fields {
			f := &s.Fields[i]
			out = c.unguarded(f.Type, &f.typeDecl, out)
		}
	case "array":
		out = c.unguarded(s.Elem, &typeDecl{}, out)
	case "union", "vector", "optional", "enclosed", "bytes", "fixed", "string":
	default:
		if _, ok := c.decls[kind]; ok {
			out = append(out, kind)
		}
	}
	return out
}

// checkCycles rejects types that contain themselves unframed. Decoding such
// a type recurses without consuming input.
func (c *compiler) checkCycles(names []string) error {
	const (
		visiting = 1
		finished = 2
	)
	state := make(map[string]int, len(c.decls))
	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		path = append(path, name)
		switch state[name] {
		case finished:
			return nil
		case visiting:
			return fmt.Errorf("%w: type %q contains itself unframed: %s",
				tlscodec.ErrInvalidSchema, name, strings.Join(path, " -> "))
		}
		state[name] = visiting
		decl := c.decls[name]
		for _, next := range c.unguarded(decl.Kind, &decl, nil) {
			if err := visit(next, path); err != nil {
				return err
			}
		}
		state[name] = finished
		return nil
	}
	for _, name := range names {
		if err := visit(name, nil); err != nil {
			return err
		}
	}
	return nil
}

func (c *compiler) width(s *typeDecl) (tlscodec.Width, error) {
	if s.Width < 1 || s.Width > 4 {
		return 0, fmt.Errorf("%w: width %d must be 1..4", tlscodec.ErrInvalidSchema, s.Width)
	}
	return tlscodec.Width(s.Width), nil
}

func (c *compiler) length(s *typeDecl) (int, error) {
	if s.Len == nil {
		return 0, fmt.Errorf("%w: missing len", tlscodec.ErrInvalidSchema)
	}
	if *s.Len < 0 {
		return 0, fmt.Errorf("%w: negative len %d", tlscodec.ErrInvalidSchema, *s.Len)
	}
	return *s.Len, nil
}

func (c *compiler) bounds(s *typeDecl) (tlscodec.Width, uint64, uint64, error) {
	w, err := c.width(s)
	if err != nil {
		return 0, 0, 0, err
	}
	lo, hi := uint64(0), w.Max()
	if s.Min != nil {
		lo = *s.Min
	}
	if s.Max != nil {
		hi = *s.Max
	}
	if err := tlscodec.CheckBounds(w, lo, hi); err != nil {
		return 0, 0, 0, err
	}
	return w, lo, hi, nil
}

func (c *compiler) elem(s *typeDecl) (*compiled, error) {
	if s.Elem == "" {
		return nil, fmt.Errorf("%w: missing elem", tlscodec.ErrInvalidSchema)
	}
	return c.named(s.Elem)
}

// compile builds the codec of one kind. name labels records and unions.
func (c *compiler) compile(name, kind string, s *typeDecl) (*compiled, error) {
	switch kind {
	case "struct":
		return c.record(name, s)
	case "union":
		return c.union(name, s)
	case "vector":
		w, lo, hi, err := c.bounds(s)
		if err != nil {
			return nil, err
		}
		e, err := c.elem(s)
		if err != nil {
			return nil, err
		}
		vc := tlscodec.Vector(w, e.codec).WithBounds(lo, hi)
		return &compiled{codec: dyn[[]any](vc, "vector", toList), plain: plainList(e, -1)}, nil
	case "array":
		n, err := c.length(s)
		if err != nil {
			return nil, err
		}
		e, err := c.elem(s)
		if err != nil {
			return nil, err
		}
		return &compiled{codec: dyn(tlscodec.Array(n, e.codec), "array", toList), plain: plainList(e, n)}, nil
	case "bytes":
		w, lo, hi, err := c.bounds(s)
		if err != nil {
			return nil, err
		}
		oc := tlscodec.Opaque(w).WithBounds(lo, hi)
		return &compiled{codec: dyn[[]byte](oc, "bytes", toBytes), plain: plainBytes(-1)}, nil
	case "fixed":
		n, err := c.length(s)
		if err != nil {
			return nil, err
		}
		return &compiled{codec: dyn(tlscodec.FixedBytes(n), "fixed", toBytes), plain: plainBytes(n)}, nil
	case "string":
		w, lo, hi, err := c.bounds(s)
		if err != nil {
			return nil, err
		}
		sc := tlscodec.String(w).WithBounds(lo, hi)
		return &compiled{codec: dyn[string](sc, "string", toString), plain: plainString}, nil
	case "optional":
		e, err := c.elem(s)
		if err != nil {
			return nil, err
		}
		return &compiled{codec: dyn(tlscodec.Optional(e.codec), "optional", toOptional), plain: plainOptional(e)}, nil
	case "enclosed":
		w, lo, hi, err := c.bounds(s)
		if err != nil {
			return nil, err
		}
		e, err := c.elem(s)
		if err != nil {
			return nil, err
		}
		return &compiled{codec: tlscodec.Enclosed(w, e.codec).WithBounds(lo, hi), plain: e.plain}, nil
	}
	if kind == name {
		return nil, fmt.Errorf("%w: type %q refers to itself", tlscodec.ErrInvalidSchema, name)
	}
	// a bare type reference, e.g. kind = "u16" or type = "Extension"
	if s.hasParams() {
		return nil, fmt.Errorf("%w: reference to %q takes no parameters", tlscodec.ErrInvalidSchema, kind)
	}
	return c.named(kind)
}

func (c *compiler) record(name string, s *typeDecl) (*compiled, error) {
	if len(s.Fields) == 0 {
		return nil, fmt.Errorf("%w: struct without fields", tlscodec.ErrInvalidSchema)
	}
	rc := &recordCodec{typ: name}
	plains := make([]func(any) (any, error), 0, len(s.Fields))
	fields := make([]tlscodec.Field[*Record], 0, len(s.Fields))
	seen := make(map[string]bool, len(s.Fields))
	for i := range s.Fields {
		f := &s.Fields[i]
		if f.Name == "" {
			return nil, fmt.Errorf("%w: field %d has no name", tlscodec.ErrInvalidSchema, i)
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("%w: duplicate field %q", tlscodec.ErrInvalidSchema, f.Name)
		}
		seen[f.Name] = true
		if f.Type == "" {
			return nil, fmt.Errorf("%w: field %q has no type", tlscodec.ErrInvalidSchema, f.Name)
		}
		t, err := c.compile(name+"."+f.Name, f.Type, &f.typeDecl)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		idx := i
		fields = append(fields, tlscodec.FieldOf(f.Name, func(r **Record) *any { return &(*r).Fields[idx].Value }, t.codec))
		rc.names = append(rc.names, f.Name)
		plains = append(plains, t.plain)
	}
	rc.inner = tlscodec.Struct(fields...)
	return &compiled{codec: rc, plain: plainRecord(name, rc.names, plains)}, nil
}

func (c *compiler) union(name string, s *typeDecl) (*compiled, error) {
	tagWidth, ok := intWidths[s.Tag]
	if !ok {
		return nil, fmt.Errorf("%w: union tag type %q must be one of u8 u16 u24 u32 u64", tlscodec.ErrInvalidSchema, s.Tag)
	}
	if len(s.Variants) == 0 && s.CatchAll == nil {
		return nil, fmt.Errorf("%w: union without variants", tlscodec.ErrInvalidSchema)
	}
	variants := make([]tlscodec.Variant[any], 0, len(s.Variants)+1)
	plains := make(map[string]variantPlain, len(s.Variants)+1)
	for i := range s.Variants {
		v := &s.Variants[i]
		if v.Name == "" {
			return nil, fmt.Errorf("%w: variant %d has no name", tlscodec.ErrInvalidSchema, i)
		}
		payload := primitives["empty"]()
		if v.Type != "" {
			var err error
			if payload, err = c.compile(name+"."+v.Name, v.Type, &v.typeDecl); err != nil {
				return nil, fmt.Errorf("variant %s: %w", v.Name, err)
			}
		}
		vname, tag := v.Name, v.Tag
		variants = append(variants, tlscodec.Select(tag, vname, payload.codec,
			func(p any) any { return &Choice{Variant: vname, Tag: tag, Value: p} },
			func(u any) (any, bool) {
				ch, ok := u.(*Choice)
				if !ok || ch.Variant != vname {
					return nil, false
				}
				return ch.Value, true
			}))
		plains[vname] = variantPlain{tag: tag, plain: payload.plain}
	}
	if ca := s.CatchAll; ca != nil {
		if ca.Name == "" {
			return nil, fmt.Errorf("%w: catch-all has no name", tlscodec.ErrInvalidSchema)
		}
		if ca.Width < 0 || ca.Width > 4 {
			return nil, fmt.Errorf("%w: catch-all width %d must be 0..4", tlscodec.ErrInvalidSchema, ca.Width)
		}
		cname := ca.Name
		variants = append(variants, tlscodec.CatchAll(cname, tlscodec.Width(ca.Width),
			func(x tlscodec.Unknown) any { return &Choice{Variant: cname, Tag: x.Tag, Value: Hex(x.Body)} },
			func(u any) (tlscodec.Unknown, bool) {
				ch, ok := u.(*Choice)
				if !ok || ch.Variant != cname {
					return tlscodec.Unknown{}, false
				}
				body, _ := toBytes(ch.Value)
				return tlscodec.Unknown{Tag: ch.Tag, Body: body}, true
			}))
		plains[cname] = variantPlain{catchAll: true, plain: plainBytes(-1)}
	}
	uc, err := tlscodec.NewUnion(tagWidth, variants...)
	if err != nil {
		return nil, err
	}
	return &compiled{codec: uc, plain: plainChoice(name, plains)}, nil
}

// recordCodec runs a struct codec over *Record values, checking the
// record's shape before touching its fields.
type recordCodec struct {
	typ   string
	names []string
	inner *tlscodec.StructCodec[*Record]
}

func (c *recordCodec) shaped(v any) (*Record, bool) {
	r, ok := v.(*Record)
	if !ok || r == nil || len(r.Fields) != len(c.names) {
		return nil, false
	}
	for i, f := range r.Fields {
		if f.Name != c.names[i] {
			return nil, false
		}
	}
	return r, true
}

func (c *recordCodec) Size(v any) int {
	r, ok := c.shaped(v)
	if !ok {
		return 0
	}
	return c.inner.Size(r)
}

func (c *recordCodec) Encode(w *tlscodec.Writer, v any) error {
	r, ok := c.shaped(v)
	if !ok {
		return w.Fail(tlscodec.KindEncodingError, "value %T is not a %s record", v, c.typ)
	}
	return c.inner.Encode(w, r)
}

func (c *recordCodec) Decode(r *tlscodec.Reader, v *any) error {
	rec := &Record{Type: c.typ, Fields: make([]Field, len(c.names))}
	for i, name := range c.names {
		rec.Fields[i].Name = name
	}
	err := c.inner.Decode(r, &rec)
	*v = rec
	return err
}

// dynCodec adapts a typed codec to dynamic values.
type dynCodec[T any] struct {
	c    tlscodec.Codec[T]
	kind string
	from func(any) (T, bool)
}

func dyn[T any](c tlscodec.Codec[T], kind string, from func(any) (T, bool)) tlscodec.Codec[any] {
	return dynCodec[T]{c: c, kind: kind, from: from}
}

func (d dynCodec[T]) Size(v any) int {
	t, _ := d.from(v)
	return d.c.Size(t)
}

func (d dynCodec[T]) Encode(w *tlscodec.Writer, v any) error {
	t, ok := d.from(v)
	if !ok {
		return w.Fail(tlscodec.KindEncodingError, "%s cannot hold %T", d.kind, v)
	}
	return d.c.Encode(w, t)
}

func (d dynCodec[T]) Decode(r *tlscodec.Reader, v *any) error {
	var t T
	if err := d.c.Decode(r, &t); err != nil {
		return err
	}
	*v = fromTyped(t)
	return nil
}

// fromTyped maps decoded Go values to their dynamic representation.
func fromTyped(v any) any {
	switch x := v.(type) {
	case []byte:
		return Hex(x)
	case *any:
		if x == nil {
			return nil
		}
		return *x
	}
	return v
}

func toUint(v any) (uint64, bool) {
	u, ok := v.(uint64)
	return u, ok
}

func toBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func toString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func toList(v any) ([]any, bool) {
	l, ok := v.([]any)
	return l, ok
}

func toBytes(v any) ([]byte, bool) {
	switch b := v.(type) {
	case Hex:
		return b, true
	case []byte:
		return b, true
	}
	return nil, false
}

func toOptional(v any) (*any, bool) {
	if v == nil {
		return nil, true
	}
	return &v, true
}
