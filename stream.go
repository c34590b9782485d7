package tlscodec

import (
	"errors"
	"io"
)

// FrameReader pulls width-prefixed frames off a byte stream, e.g. handshake
// messages concatenated on a connection. It never reads past the frame it
// returns.
type FrameReader struct {
	src    io.Reader
	frame  frame
	offset int // absolute stream offset, for error reporting
}

// NewFrameReader reads frames with a width-byte prefix and content of at most max bytes.
// A max of 0 means the prefix capacity.
func NewFrameReader(src io.Reader, width Width, max uint64) (*FrameReader, error) {
	if src == nil {
		return nil, ErrNilIO
	}
	if max == 0 {
		max = width.Max()
	}
	if err := CheckBounds(width, 0, max); err != nil {
		return nil, err
	}
	return &FrameReader{src: src, frame: frame{width: width, max: max}}, nil
}

// Next returns the content of the next frame. A stream ending cleanly
// between frames yields io.EOF; ending inside a frame is EndOfStream.
func (fr *FrameReader) Next() ([]byte, error) {
	var prefix [4]byte
	p := prefix[:fr.frame.width]
	read, err := io.ReadFull(fr.src, p)
	if err != nil {
		if errors.Is(err, io.EOF) && read == 0 {
			return nil, io.EOF
		}
		return nil, fr.fail(KindEndOfStream, read, err, "frame prefix cut short")
	}
	var n uint64
	for _, b := range p {
		n = n<<8 | uint64(b)
	}
	if n > fr.frame.max {
		return nil, fr.fail(KindInvalidVectorLength, len(p), nil, "frame length exceeds limit")
	}
	content := make([]byte, n)
	got, err := io.ReadFull(fr.src, content)
	if err != nil {
		return nil, fr.fail(KindEndOfStream, len(p)+got, err, "frame content cut short")
	}
	fr.offset += len(p) + got
	return content, nil
}

func (fr *FrameReader) fail(kind ErrorKind, consumed int, cause error, detail string) error {
	e := &Error{Kind: kind, Offset: fr.offset + consumed, Detail: detail}
	if cause != nil && !errors.Is(cause, io.EOF) && !errors.Is(cause, io.ErrUnexpectedEOF) {
		e.Err = cause
	}
	fr.offset += consumed
	return e
}

// ReadMessage reads the next frame and decodes exactly one value from its content.
func ReadMessage[T any](fr *FrameReader, c Codec[T], v *T) error {
	content, err := fr.Next()
	if err != nil {
		return err
	}
	return Unmarshal(c, content, v)
}

// WriteMessage writes v to dst as one width-prefixed frame. The value is
// validated before the prefix is written.
func WriteMessage[T any](dst io.Writer, width Width, c Codec[T], v T) (int64, error) {
	size, err := Validate(c, v)
	if err != nil {
		return 0, err
	}
	w, err := NewWriter(dst)
	if err != nil {
		return 0, err
	}
	if err := newFrame(width).begin(w, size); err != nil {
		return int64(w.Count()), err
	}
	err = c.Encode(w, v)
	return int64(w.Count()), err
}

// WriteFrame writes content to dst behind a width-byte length prefix.
func WriteFrame(dst io.Writer, width Width, content []byte) (int64, error) {
	return WriteMessage(dst, width, FixedBytes(len(content)), content)
}
