// Package schema builds wire codecs at runtime from a TOML description of
// TLS-style structures and codes them to and from dynamic values.
//
// A description names types under [types.NAME]; each has a kind and the
// parameters of that kind:
//
//	root = "Hello"
//
//	[types.Hello]
//	kind = "struct"
//	fields = [
//	  { name = "version", type = "u16" },
//	  { name = "suites", type = "vector", width = 2, min = 2, elem = "u16" },
//	]
//
// Kinds are struct, union, vector, bytes, string, fixed, array, optional and
// enclosed. The primitives u8, u16, u24, u32, u64, bool and empty can be
// referenced anywhere a type name is expected.
package schema

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/oy3o/tlscodec"
)

// typeDecl carries a kind and its parameters. It appears as a [types.NAME]
// table (kind) and inline in fields and variants (type).
type typeDecl struct {
	Kind     string        `toml:"kind"`
	Type     string        `toml:"type"`
	Width    int           `toml:"width"`
	Min      *uint64       `toml:"min"`
	Max      *uint64       `toml:"max"`
	Len      *int          `toml:"len"`
	Elem     string        `toml:"elem"`
	Fields   []fieldDecl   `toml:"fields"`
	Tag      string        `toml:"tag"`
	Variants []variantDecl `toml:"variants"`
	CatchAll *catchDecl    `toml:"catch_all"`
}

// hasParams reports whether any kind parameter is set. Bare references take none.
func (d *typeDecl) hasParams() bool {
	return d.Width != 0 || d.Min != nil || d.Max != nil || d.Len != nil || d.Elem != "" ||
		len(d.Fields) > 0 || d.Tag != "" || len(d.Variants) > 0 || d.CatchAll != nil
}

type fieldDecl struct {
	Name string `toml:"name"`
	typeDecl
}

type variantDecl struct {
	Name string `toml:"name"`
	Tag  uint64 `toml:"tag"`
	typeDecl
}

type catchDecl struct {
	Name  string `toml:"name"`
	Width int    `toml:"width"`
}

type file struct {
	Root  string              `toml:"root"`
	Types map[string]typeDecl `toml:"types"`
}

// Schema is a compiled description. It is immutable and safe for concurrent use.
type Schema struct {
	Root  string
	types map[string]*compiled
}

// Load reads and compiles a description file.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: reading %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("schema: %s: %w", path, err)
	}
	return s, nil
}

// Parse compiles a description. Unknown keys, dangling type references,
// invalid widths or bounds, and duplicate names or tags are rejected.
func Parse(data []byte) (*Schema, error) {
	var f file
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", tlscodec.ErrInvalidSchema, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%w: unknown keys: %s", tlscodec.ErrInvalidSchema, strings.Join(keys, ", "))
	}
	if len(f.Types) == 0 {
		return nil, fmt.Errorf("%w: no types declared", tlscodec.ErrInvalidSchema)
	}

	c := newCompiler(f.Types)
	names := make([]string, 0, len(f.Types))
	for name := range f.Types {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if _, ok := primitives[name]; ok {
			return nil, fmt.Errorf("%w: type %q shadows a primitive", tlscodec.ErrInvalidSchema, name)
		}
		if kinds[name] {
			return nil, fmt.Errorf("%w: type %q shadows a kind", tlscodec.ErrInvalidSchema, name)
		}
	}
	if err := c.checkCycles(names); err != nil {
		return nil, err
	}
	for _, name := range names {
		if _, err := c.named(name); err != nil {
			return nil, err
		}
	}
	if f.Root != "" {
		if _, ok := c.done[f.Root]; !ok {
			return nil, fmt.Errorf("%w: root type %q is not declared", tlscodec.ErrInvalidSchema, f.Root)
		}
	}
	return &Schema{Root: f.Root, types: c.done}, nil
}

// Types returns the declared type names, sorted.
func (s *Schema) Types() []string {
	names := make([]string, 0, len(s.types))
	for name := range s.types {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (s *Schema) lookup(name string) (*compiled, error) {
	if name == "" {
		name = s.Root
	}
	if name == "" {
		return nil, fmt.Errorf("schema: no type given and no root declared")
	}
	t, ok := s.types[name]
	if !ok {
		return nil, fmt.Errorf("schema: unknown type %q", name)
	}
	return t, nil
}

// Codec returns the codec of a declared type. An empty name selects the root.
func (s *Schema) Codec(name string) (tlscodec.Codec[any], error) {
	t, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	return t.codec, nil
}

// Decode decodes exactly one value of the named type from data.
func (s *Schema) Decode(name string, data []byte) (any, error) {
	t, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	var v any
	if err := tlscodec.Unmarshal(t.codec, data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Encode encodes a dynamic value of the named type.
func (s *Schema) Encode(name string, v any) ([]byte, error) {
	t, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	return tlscodec.Marshal(t.codec, v)
}

// FromPlain converts the generic output of a YAML or JSON decoder (maps,
// slices, numbers, strings) into the dynamic value Encode expects for the
// named type. Byte strings are given in hex.
func (s *Schema) FromPlain(name string, plain any) (any, error) {
	t, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	return t.plain(plain)
}
