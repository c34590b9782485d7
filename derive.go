package tlscodec

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/puzpuzpuz/xsync/v4"
)

// plans caches derived layouts per type so reflection over the struct
// definition happens once. registry holds codecs installed with Register.
var (
	plans    = xsync.NewMap[reflect.Type, node]()
	registry = xsync.NewMap[reflect.Type, node]()
)

var messageType = reflect.TypeFor[Message]()

// node is a codec over reflected values. decode always receives an
// addressable value.
type node interface {
	size(v reflect.Value) int
	encode(w *Writer, v reflect.Value) error
	decode(r *Reader, v reflect.Value) error
}

// Register installs c as the codec for every field of type T reached by
// Derive. Register before deriving: plans derived earlier are discarded.
func Register[T any](c Codec[T]) {
	registry.Store(reflect.TypeFor[T](), codecNode[T]{c: c})
	plans.Clear()
}

// Derive builds a codec for T from its Go definition. Exported struct fields
// are coded in declaration order, tuned by `tls:"..."` tags:
//
//	u8 u16 u24 u32 u64   integer wire width (at most the Go size)
//	vec=N                N-byte content-length prefix; required for slices and strings
//	min=N max=N          content bounds of the vector
//	opt                  pointer is coded as a presence byte plus the value
//	enc=N                wrap the value in an N-byte content-length prefix
//	name=x               field name used in error paths
//	-                    skip the field
//
// Options are comma separated. A "/" starts the layer applied to the element
// type, so `tls:"vec=2/vec=1"` codes a [][]byte as u16-framed u8-framed
// blobs. Types implementing Message and types given to Register use their
// own codec.
func Derive[T any]() (Codec[T], error) {
	n, err := deriveType(reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	return derived[T]{n: n}, nil
}

// MustDerive is like Derive but panics on an unsupported type.
func MustDerive[T any]() Codec[T] {
	c, err := Derive[T]()
	if err != nil {
		panic(err)
	}
	return c
}

func deriveType(t reflect.Type) (node, error) {
	if n, ok := plans.Load(t); ok {
		return n, nil
	}
	b := builder{building: make(map[reflect.Type]*structNode)}
	n, err := b.build(t, nil)
	if err != nil {
		return nil, err
	}
	for st, sn := range b.building {
		plans.LoadOrStore(st, sn)
	}
	n, _ = plans.LoadOrStore(t, n)
	return n, nil
}

type derived[T any] struct {
	n node
}

func (d derived[T]) Size(v T) int                 { return d.n.size(reflect.ValueOf(&v).Elem()) }
func (d derived[T]) Encode(w *Writer, v T) error  { return d.n.encode(w, reflect.ValueOf(&v).Elem()) }
func (d derived[T]) Decode(r *Reader, v *T) error { return d.n.decode(r, reflect.ValueOf(v).Elem()) }

// --- tags ---

type layer struct {
	width          int // integer width override
	vec            Width
	enc            Width
	min, max       uint64
	hasMin, hasMax bool
	opt            bool
}

func (l layer) zero() bool { return l == layer{} }

var intWidths = map[string]int{"u8": 1, "u16": 2, "u24": 3, "u32": 4, "u64": 8}

func parseTag(tag string) (name string, skip bool, layers []layer, err error) {
	if tag == "-" {
		return "", true, nil, nil
	}
	if tag == "" {
		return "", false, nil, nil
	}
	for i, part := range strings.Split(tag, "/") {
		var l layer
		for _, opt := range strings.Split(part, ",") {
			opt = strings.TrimSpace(opt)
			key, val, hasVal := strings.Cut(opt, "=")
			if w, ok := intWidths[key]; ok && !hasVal {
				l.width = w
				continue
			}
			switch key {
			case "":
			case "opt":
				l.opt = true
			case "name":
				if i > 0 {
					return "", false, nil, fmt.Errorf("%w: tag %q: name only allowed in the first layer", ErrInvalidSchema, tag)
				}
				name = val
			case "vec", "enc":
				n, perr := strconv.ParseUint(val, 10, 8)
				if perr != nil || !Width(n).Valid() {
					return "", false, nil, fmt.Errorf("%w: tag %q: %s width must be 1..4", ErrInvalidSchema, tag, key)
				}
				if key == "vec" {
					l.vec = Width(n)
				} else {
					l.enc = Width(n)
				}
			case "min", "max":
				n, perr := strconv.ParseUint(val, 10, 64)
				if perr != nil {
					return "", false, nil, fmt.Errorf("%w: tag %q: bad %s", ErrInvalidSchema, tag, key)
				}
				if key == "min" {
					l.min, l.hasMin = n, true
				} else {
					l.max, l.hasMax = n, true
				}
			default:
				return "", false, nil, fmt.Errorf("%w: tag %q: unknown option %q", ErrInvalidSchema, tag, opt)
			}
		}
		layers = append(layers, l)
	}
	return name, false, layers, nil
}

// --- plan building ---

type builder struct {
	building map[reflect.Type]*structNode
}

func (b *builder) build(t reflect.Type, layers []layer) (node, error) {
	var l layer
	var rest []layer
	if len(layers) > 0 {
		l, rest = layers[0], layers[1:]
	}

	if l.enc != 0 {
		inner := l
		inner.enc = 0
		n, err := b.build(t, append([]layer{inner}, rest...))
		if err != nil {
			return nil, err
		}
		return &enclosedNode{frame: newFrame(l.enc), inner: n}, nil
	}
	if l.opt {
		if t.Kind() != reflect.Pointer {
			return nil, fmt.Errorf("%w: opt on non-pointer type %s", ErrInvalidSchema, t)
		}
		inner := l
		inner.opt = false
		n, err := b.build(t.Elem(), append([]layer{inner}, rest...))
		if err != nil {
			return nil, err
		}
		return &optionalNode{elem: t.Elem(), inner: n}, nil
	}

	if n, ok := registry.Load(t); ok {
		if !l.zero() || len(rest) > 0 {
			return nil, fmt.Errorf("%w: type %s has a registered codec and takes no options", ErrInvalidSchema, t)
		}
		return n, nil
	}
	if t.Kind() != reflect.Pointer && reflect.PointerTo(t).Implements(messageType) {
		if !l.zero() || len(rest) > 0 {
			return nil, fmt.Errorf("%w: type %s codes itself and takes no options", ErrInvalidSchema, t)
		}
		return messageNode{}, nil
	}

	leaf := func() error {
		if len(rest) > 0 {
			return fmt.Errorf("%w: type %s has no element for tag layer", ErrInvalidSchema, t)
		}
		if l.vec != 0 || l.hasMin || l.hasMax {
			return fmt.Errorf("%w: vector options on non-vector type %s", ErrInvalidSchema, t)
		}
		return nil
	}

	switch t.Kind() {
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if err := leaf(); err != nil {
			return nil, err
		}
		width := int(t.Size())
		if l.width != 0 {
			if l.width > width {
				return nil, fmt.Errorf("%w: u%d does not fit in %s", ErrInvalidSchema, 8*l.width, t)
			}
			width = l.width
		}
		return uintNode{width: width, max: maxForWidth(width)}, nil
	case reflect.Bool:
		if err := leaf(); err != nil {
			return nil, err
		}
		return boolNode{}, nil
	case reflect.String:
		fr, err := vectorFrame(t, l)
		if err != nil {
			return nil, err
		}
		if len(rest) > 0 {
			return nil, fmt.Errorf("%w: type %s has no element for tag layer", ErrInvalidSchema, t)
		}
		return stringNode{c: &StringCodec{frame: fr}}, nil
	case reflect.Slice:
		fr, err := vectorFrame(t, l)
		if err != nil {
			return nil, err
		}
		if b.rawByte(t.Elem()) && len(rest) == 0 {
			return opaqueNode{c: &OpaqueCodec{frame: fr}}, nil
		}
		elem, err := b.build(t.Elem(), rest)
		if err != nil {
			return nil, err
		}
		return &vectorNode{frame: fr, typ: t, elem: elem}, nil
	case reflect.Array:
		if l.width != 0 || l.vec != 0 || l.hasMin || l.hasMax {
			return nil, fmt.Errorf("%w: fixed array %s takes no width options", ErrInvalidSchema, t)
		}
		if b.rawByte(t.Elem()) && len(rest) == 0 {
			return byteArrayNode{n: t.Len()}, nil
		}
		elem, err := b.build(t.Elem(), rest)
		if err != nil {
			return nil, err
		}
		return arrayNode{elem: elem}, nil
	case reflect.Struct:
		if err := leaf(); err != nil {
			return nil, err
		}
		if l.width != 0 {
			return nil, fmt.Errorf("%w: integer width on struct %s", ErrInvalidSchema, t)
		}
		return b.structPlan(t)
	case reflect.Pointer:
		return nil, fmt.Errorf("%w: pointer type %s needs the opt tag", ErrInvalidSchema, t)
	}
	return nil, fmt.Errorf("%w: unsupported type %s", ErrInvalidSchema, t)
}

// rawByte reports whether t can take the []byte fast path.
func (b *builder) rawByte(t reflect.Type) bool {
	if t.Kind() != reflect.Uint8 {
		return false
	}
	if _, ok := registry.Load(t); ok {
		return false
	}
	return !reflect.PointerTo(t).Implements(messageType)
}

func vectorFrame(t reflect.Type, l layer) (frame, error) {
	if l.vec == 0 {
		return frame{}, fmt.Errorf("%w: %s needs a vec=N prefix width", ErrInvalidSchema, t)
	}
	if l.width != 0 {
		return frame{}, fmt.Errorf("%w: integer width on %s", ErrInvalidSchema, t)
	}
	fr := frame{width: l.vec, max: l.vec.Max()}
	if l.hasMin {
		fr.min = l.min
	}
	if l.hasMax {
		fr.max = l.max
	}
	if err := CheckBounds(fr.width, fr.min, fr.max); err != nil {
		return frame{}, err
	}
	return fr, nil
}

func (b *builder) structPlan(t reflect.Type) (node, error) {
	if n, ok := plans.Load(t); ok {
		return n, nil
	}
	if sn, ok := b.building[t]; ok {
		return sn, nil
	}
	sn := &structNode{}
	b.building[t] = sn
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, skip, layers, err := parseTag(f.Tag.Get("tls"))
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t, f.Name, err)
		}
		if skip {
			continue
		}
		if name == "" {
			name = f.Name
		}
		n, err := b.build(f.Type, layers)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t, f.Name, err)
		}
		sn.fields = append(sn.fields, fieldNode{name: name, index: i, node: n})
	}
	return sn, nil
}

// --- nodes ---

type uintNode struct {
	width int
	max   uint64
}

func (n uintNode) size(reflect.Value) int { return n.width }

func (n uintNode) encode(w *Writer, v reflect.Value) error {
	u := v.Uint()
	if u > n.max {
		return w.Fail(KindEncodingError, "value %d does not fit in %d bytes", u, n.width)
	}
	w.WriteUint(u, n.width)
	return w.Err()
}

func (n uintNode) decode(r *Reader, v reflect.Value) error {
	var u uint64
	r.ReadUint(&u, n.width)
	if r.Err() != nil {
		return r.Err()
	}
	v.SetUint(u)
	return nil
}

type boolNode struct{}

func (boolNode) size(reflect.Value) int { return 1 }

func (boolNode) encode(w *Writer, v reflect.Value) error {
	w.WriteBool(v.Bool())
	return w.Err()
}

func (boolNode) decode(r *Reader, v reflect.Value) error {
	var b bool
	r.ReadBool(&b)
	if r.Err() != nil {
		return r.Err()
	}
	v.SetBool(b)
	return nil
}

type stringNode struct{ c *StringCodec }

func (n stringNode) size(v reflect.Value) int                { return n.c.Size(v.String()) }
func (n stringNode) encode(w *Writer, v reflect.Value) error { return n.c.Encode(w, v.String()) }

func (n stringNode) decode(r *Reader, v reflect.Value) error {
	var s string
	if err := n.c.Decode(r, &s); err != nil {
		return err
	}
	v.SetString(s)
	return nil
}

type opaqueNode struct{ c *OpaqueCodec }

func (n opaqueNode) size(v reflect.Value) int                { return n.c.Size(v.Bytes()) }
func (n opaqueNode) encode(w *Writer, v reflect.Value) error { return n.c.Encode(w, v.Bytes()) }

func (n opaqueNode) decode(r *Reader, v reflect.Value) error {
	var p []byte
	if err := n.c.Decode(r, &p); err != nil {
		return err
	}
	v.SetBytes(p)
	return nil
}

type byteArrayNode struct{ n int }

func (n byteArrayNode) size(reflect.Value) int { return n.n }

func (n byteArrayNode) encode(w *Writer, v reflect.Value) error {
	for i := 0; i < n.n; i++ {
		w.WriteUint8(uint8(v.Index(i).Uint()))
	}
	return w.Err()
}

func (n byteArrayNode) decode(r *Reader, v reflect.Value) error {
	p := r.ReadBytes(n.n)
	if r.Err() != nil {
		return r.Err()
	}
	for i, b := range p {
		v.Index(i).SetUint(uint64(b))
	}
	return nil
}

type arrayNode struct{ elem node }

func (n arrayNode) size(v reflect.Value) int {
	total := 0
	for i := 0; i < v.Len(); i++ {
		var ok bool
		if total, ok = checkedAdd(total, n.elem.size(v.Index(i))); !ok {
			return math.MaxInt
		}
	}
	return total
}

func (n arrayNode) encode(w *Writer, v reflect.Value) error {
	for i := 0; i < v.Len(); i++ {
		if err := n.elem.encode(w, v.Index(i)); err != nil {
			return w.propagate(withIndex(err, i))
		}
	}
	return nil
}

func (n arrayNode) decode(r *Reader, v reflect.Value) error {
	for i := 0; i < v.Len(); i++ {
		if err := n.elem.decode(r, v.Index(i)); err != nil {
			return r.propagate(withIndex(err, i))
		}
	}
	return nil
}

type vectorNode struct {
	frame
	typ  reflect.Type
	elem node
}

func (n *vectorNode) content(v reflect.Value) int {
	total := 0
	for i := 0; i < v.Len(); i++ {
		var ok bool
		if total, ok = checkedAdd(total, n.elem.size(v.Index(i))); !ok {
			return -1
		}
	}
	return total
}

func (n *vectorNode) size(v reflect.Value) int {
	c := n.content(v)
	if c < 0 {
		return math.MaxInt
	}
	return int(n.width) + c
}

func (n *vectorNode) encode(w *Writer, v reflect.Value) error {
	if err := n.begin(w, n.content(v)); err != nil {
		return err
	}
	for i := 0; i < v.Len(); i++ {
		if err := n.elem.encode(w, v.Index(i)); err != nil {
			return w.propagate(withIndex(err, i))
		}
	}
	return nil
}

func (n *vectorNode) decode(r *Reader, v reflect.Value) error {
	size, err := n.open(r)
	if err != nil {
		return err
	}
	out := reflect.MakeSlice(n.typ, 0, 0)
	err = r.Within(size, func(sub *Reader) error {
		for i := 0; sub.Remaining() > 0; i++ {
			e := reflect.New(n.typ.Elem()).Elem()
			before := sub.Count()
			if err := n.elem.decode(sub, e); err != nil {
				return withIndex(overrun(err), i)
			}
			if sub.Count() == before {
				return withIndex(sub.Fail(KindEndOfStream, "element consumed no bytes, %d content bytes left", sub.Remaining()), i)
			}
			out = reflect.Append(out, e)
		}
		return nil
	})
	if err != nil {
		return err
	}
	v.Set(out)
	return nil
}

type optionalNode struct {
	elem  reflect.Type
	inner node
}

func (n *optionalNode) size(v reflect.Value) int {
	if v.IsNil() {
		return 1
	}
	return 1 + n.inner.size(v.Elem())
}

func (n *optionalNode) encode(w *Writer, v reflect.Value) error {
	w.WriteBool(!v.IsNil())
	if w.Err() != nil || v.IsNil() {
		return w.Err()
	}
	return n.inner.encode(w, v.Elem())
}

func (n *optionalNode) decode(r *Reader, v reflect.Value) error {
	var present bool
	r.ReadBool(&present)
	if r.Err() != nil {
		return r.Err()
	}
	if !present {
		v.SetZero()
		return nil
	}
	p := reflect.New(n.elem)
	if err := n.inner.decode(r, p.Elem()); err != nil {
		return r.propagate(err)
	}
	v.Set(p)
	return nil
}

type enclosedNode struct {
	frame
	inner node
}

func (n *enclosedNode) size(v reflect.Value) int { return int(n.width) + n.inner.size(v) }

func (n *enclosedNode) encode(w *Writer, v reflect.Value) error {
	if err := n.begin(w, n.inner.size(v)); err != nil {
		return err
	}
	return n.inner.encode(w, v)
}

func (n *enclosedNode) decode(r *Reader, v reflect.Value) error {
	size, err := n.open(r)
	if err != nil {
		return err
	}
	return r.Within(size, func(sub *Reader) error {
		if err := n.inner.decode(sub, v); err != nil {
			return overrun(err)
		}
		if sub.Remaining() > 0 {
			return sub.Fail(KindEndOfStream, "%d enclosed bytes left unread", sub.Remaining())
		}
		return nil
	})
}

type fieldNode struct {
	name  string
	index int
	node  node
}

type structNode struct {
	fields []fieldNode
}

func (n *structNode) size(v reflect.Value) int {
	total := 0
	for _, f := range n.fields {
		var ok bool
		if total, ok = checkedAdd(total, f.node.size(v.Field(f.index))); !ok {
			return math.MaxInt
		}
	}
	return total
}

func (n *structNode) encode(w *Writer, v reflect.Value) error {
	for _, f := range n.fields {
		if err := f.node.encode(w, v.Field(f.index)); err != nil {
			return w.propagate(withField(err, f.name))
		}
	}
	return w.Err()
}

func (n *structNode) decode(r *Reader, v reflect.Value) error {
	for _, f := range n.fields {
		if err := f.node.decode(r, v.Field(f.index)); err != nil {
			return r.propagate(withField(err, f.name))
		}
	}
	return r.Err()
}

// messageNode defers to a type's own Message implementation.
type messageNode struct{}

func addressOf(v reflect.Value) Message {
	if v.CanAddr() {
		return v.Addr().Interface().(Message)
	}
	p := reflect.New(v.Type())
	p.Elem().Set(v)
	return p.Interface().(Message)
}

func (messageNode) size(v reflect.Value) int                { return addressOf(v).Size() }
func (messageNode) encode(w *Writer, v reflect.Value) error { return addressOf(v).Serialize(w) }
func (messageNode) decode(r *Reader, v reflect.Value) error { return addressOf(v).Deserialize(r) }

// codecNode runs a typed codec over a reflected value of its type.
type codecNode[T any] struct{ c Codec[T] }

func (n codecNode[T]) size(v reflect.Value) int {
	x, _ := v.Interface().(T)
	return n.c.Size(x)
}

func (n codecNode[T]) encode(w *Writer, v reflect.Value) error {
	x, _ := v.Interface().(T)
	return n.c.Encode(w, x)
}

func (n codecNode[T]) decode(r *Reader, v reflect.Value) error {
	return n.c.Decode(r, v.Addr().Interface().(*T))
}
