package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Converters from the generic values a YAML or JSON decoder produces.

func plainUint(x any, width int) (any, error) {
	var u uint64
	switch v := x.(type) {
	case uint64:
		u = v
	case int:
		if v < 0 {
			return nil, fmt.Errorf("negative integer %d", v)
		}
		u = uint64(v)
	case int64:
		if v < 0 {
			return nil, fmt.Errorf("negative integer %d", v)
		}
		u = uint64(v)
	case float64:
		if v < 0 || v != math.Trunc(v) || v >= math.MaxUint64 {
			return nil, fmt.Errorf("%v is not an unsigned integer", v)
		}
		u = uint64(v)
	case json.Number:
		n, err := strconv.ParseUint(v.String(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s is not an unsigned integer", v)
		}
		u = n
	default:
		return nil, fmt.Errorf("want integer, got %T", x)
	}
	if width < 8 && u > 1<<(8*uint(width))-1 {
		return nil, fmt.Errorf("%d does not fit in u%d", u, 8*width)
	}
	return u, nil
}

func plainBool(x any) (any, error) {
	b, ok := x.(bool)
	if !ok {
		return nil, fmt.Errorf("want bool, got %T", x)
	}
	return b, nil
}

func plainString(x any) (any, error) {
	s, ok := x.(string)
	if !ok {
		return nil, fmt.Errorf("want string, got %T", x)
	}
	return s, nil
}

// plainBytes parses a hex string. n >= 0 requires exactly n bytes.
func plainBytes(n int) func(any) (any, error) {
	return func(x any) (any, error) {
		var h Hex
		switch v := x.(type) {
		case string:
			if err := h.UnmarshalText([]byte(v)); err != nil {
				return nil, fmt.Errorf("bad hex: %w", err)
			}
		case []byte:
			h = v
		case Hex:
			h = v
		default:
			return nil, fmt.Errorf("want hex string, got %T", x)
		}
		if n >= 0 && len(h) != n {
			return nil, fmt.Errorf("want %d bytes, got %d", n, len(h))
		}
		return h, nil
	}
}

// plainList converts each element. n >= 0 requires exactly n elements.
func plainList(elem *compiled, n int) func(any) (any, error) {
	return func(x any) (any, error) {
		in, ok := x.([]any)
		if !ok {
			if x != nil {
				return nil, fmt.Errorf("want list, got %T", x)
			}
			in = []any{}
		}
		if n >= 0 && len(in) != n {
			return nil, fmt.Errorf("want %d elements, got %d", n, len(in))
		}
		out := make([]any, len(in))
		for i, e := range in {
			v, err := elem.plain(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = v
		}
		return out, nil
	}
}

func plainOptional(elem *compiled) func(any) (any, error) {
	return func(x any) (any, error) {
		if x == nil {
			return nil, nil
		}
		return elem.plain(x)
	}
}

func plainRecord(typ string, names []string, plains []func(any) (any, error)) func(any) (any, error) {
	return func(x any) (any, error) {
		m, ok := x.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: want mapping, got %T", typ, x)
		}
		rec := &Record{Type: typ, Fields: make([]Field, len(names))}
		for i, name := range names {
			raw, ok := m[name]
			if !ok {
				return nil, fmt.Errorf("%s: missing field %q", typ, name)
			}
			v, err := plains[i](raw)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", typ, name, err)
			}
			rec.Fields[i] = Field{Name: name, Value: v}
		}
		if len(m) != len(names) {
			for k := range m {
				if _, ok := rec.Get(k); !ok {
					return nil, fmt.Errorf("%s: unknown field %q", typ, k)
				}
			}
		}
		return rec, nil
	}
}

type variantPlain struct {
	tag      uint64
	catchAll bool
	plain    func(any) (any, error)
}

// plainChoice reads {variant, tag, value}. tag is optional for declared
// variants and required for the catch-all.
func plainChoice(typ string, variants map[string]variantPlain) func(any) (any, error) {
	return func(x any) (any, error) {
		m, ok := x.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: want mapping with variant and value, got %T", typ, x)
		}
		for k := range m {
			if k != "variant" && k != "tag" && k != "value" {
				return nil, fmt.Errorf("%s: unknown key %q", typ, k)
			}
		}
		name, _ := m["variant"].(string)
		vp, ok := variants[name]
		if !ok {
			return nil, fmt.Errorf("%s: unknown variant %q", typ, name)
		}
		ch := &Choice{Variant: name, Tag: vp.tag}
		if raw, ok := m["tag"]; ok {
			t, err := plainUint(raw, 8)
			if err != nil {
				return nil, fmt.Errorf("%s: tag: %w", typ, err)
			}
			if !vp.catchAll && t.(uint64) != vp.tag {
				return nil, fmt.Errorf("%s: variant %q has tag %d, not %d", typ, name, vp.tag, t)
			}
			ch.Tag = t.(uint64)
		} else if vp.catchAll {
			return nil, fmt.Errorf("%s: catch-all %q needs a tag", typ, name)
		}
		v, err := vp.plain(m["value"])
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", typ, name, err)
		}
		ch.Value = v
		return ch, nil
	}
}
