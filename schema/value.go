package schema

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

// Dynamic values produced by Decode and accepted by Encode:
//
//	u8..u64          uint64
//	bool             bool
//	bytes, fixed     Hex
//	string           string
//	vector, array    []any
//	optional         nil or the element value
//	struct           *Record
//	union            *Choice
//	empty            nil

// Hex is a byte string that renders as lowercase hex in YAML and JSON.
type Hex []byte

func (h Hex) MarshalText() ([]byte, error) {
	out := make([]byte, hex.EncodedLen(len(h)))
	hex.Encode(out, h)
	return out, nil
}

// UnmarshalText accepts hex digits, ignoring whitespace and ':' separators.
func (h *Hex) UnmarshalText(text []byte) error {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', ':':
			return -1
		}
		return r
	}, string(text))
	b, err := hex.DecodeString(clean)
	if err != nil {
		return err
	}
	*h = b
	return nil
}

func (h Hex) String() string { return hex.EncodeToString(h) }

// Field is one named member of a Record.
type Field struct {
	Name  string
	Value any
}

// Record is a decoded struct. Fields keep wire order.
type Record struct {
	Type   string
	Fields []Field
}

// Get returns the value of the named field.
func (r *Record) Get(name string) (any, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// MarshalYAML renders the record as a mapping in wire order.
func (r *Record) MarshalYAML() (any, error) {
	n := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range r.Fields {
		val := &yaml.Node{}
		if err := val.Encode(f.Value); err != nil {
			return nil, err
		}
		n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: f.Name}, val)
	}
	return n, nil
}

// MarshalJSON renders the record as an object in wire order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Choice is a decoded union value. Variant names the declared variant or
// the catch-all; Tag is the discriminant on the wire.
type Choice struct {
	Variant string `yaml:"variant" json:"variant"`
	Tag     uint64 `yaml:"tag" json:"tag"`
	Value   any    `yaml:"value" json:"value"`
}
