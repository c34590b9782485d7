package tlscodec

type optionalCodec[T any] struct {
	inner Codec[T]
}

// Optional encodes a *T as a presence byte (0 absent, 1 present) followed by
// the value when present. A flag other than 0 or 1 is InvalidInput.
func Optional[T any](inner Codec[T]) Codec[*T] {
	return optionalCodec[T]{inner: inner}
}

func (c optionalCodec[T]) Size(v *T) int {
	if v == nil {
		return 1
	}
	return 1 + c.inner.Size(*v)
}

func (c optionalCodec[T]) Encode(w *Writer, v *T) error {
	w.WriteBool(v != nil)
	if w.Err() != nil || v == nil {
		return w.Err()
	}
	return c.inner.Encode(w, *v)
}

func (c optionalCodec[T]) Decode(r *Reader, v **T) error {
	var present bool
	r.ReadBool(&present)
	if r.Err() != nil {
		return r.Err()
	}
	if !present {
		*v = nil
		return nil
	}
	val := new(T)
	if err := c.inner.Decode(r, val); err != nil {
		return r.propagate(err)
	}
	*v = val
	return nil
}
