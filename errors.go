package tlscodec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrorKind classifies every failure the codec can report.
// A kind is never silently turned into another one.
type ErrorKind uint8

const (
	// KindEndOfStream means the cursor ran out of bytes mid-read.
	KindEndOfStream ErrorKind = iota + 1
	// KindInvalidVectorLength means a content-length prefix is outside the
	// prefix width or the declared bounds, or an element overran it.
	KindInvalidVectorLength
	// KindUnknownDiscriminant means a union tag is not declared and the union has no catch-all.
	KindUnknownDiscriminant
	// KindInvalidInput means a non-canonical encoding, e.g. a flag byte other than 0 or 1.
	KindInvalidInput
	// KindEncodingError means a value cannot be written as declared.
	KindEncodingError
	// KindTrailingData means a whole-message decode left unread bytes behind.
	KindTrailingData
)

var (
	// ErrNilIO indicates that NewWriter or ReadFrom was called with a nil io.Writer/io.Reader.
	ErrNilIO = errors.New("tlscodec: nil io.Reader/io.Writer")

	// ErrInvalidWrite indicates that an io.Writer returned an invalid count from Write.
	ErrInvalidWrite = errors.New("tlscodec: writer returned invalid count from Write")

	// ErrInvalidSchema indicates a codec was constructed from an inconsistent description.
	ErrInvalidSchema = errors.New("tlscodec: invalid schema")
)

var (
	// ErrEndOfStream indicates the input ended before a value was complete.
	ErrEndOfStream = errors.New("tlscodec: end of stream")

	// ErrInvalidVectorLength indicates a vector length prefix violates its width or bounds.
	ErrInvalidVectorLength = errors.New("tlscodec: invalid vector length")

	// ErrUnknownDiscriminant indicates a union tag outside the declared set.
	ErrUnknownDiscriminant = errors.New("tlscodec: unknown discriminant")

	// ErrInvalidInput indicates a non-canonical byte sequence.
	ErrInvalidInput = errors.New("tlscodec: invalid input")

	// ErrEncoding indicates a value could not be encoded as declared.
	ErrEncoding = errors.New("tlscodec: encoding error")

	// ErrTrailingData is returned by Unmarshal when bytes remain after the value.
	ErrTrailingData = errors.New("tlscodec: trailing data after value")
)

var kindNames = [...]string{
	KindEndOfStream:         "EndOfStream",
	KindInvalidVectorLength: "InvalidVectorLength",
	KindUnknownDiscriminant: "UnknownDiscriminant",
	KindInvalidInput:        "InvalidInput",
	KindEncodingError:       "EncodingError",
	KindTrailingData:        "TrailingData",
}

func (k ErrorKind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "ErrorKind(" + strconv.Itoa(int(k)) + ")"
}

// Sentinel returns the package-level error matching k.
func (k ErrorKind) Sentinel() error {
	switch k {
	case KindEndOfStream:
		return ErrEndOfStream
	case KindInvalidVectorLength:
		return ErrInvalidVectorLength
	case KindUnknownDiscriminant:
		return ErrUnknownDiscriminant
	case KindInvalidInput:
		return ErrInvalidInput
	case KindEncodingError:
		return ErrEncoding
	case KindTrailingData:
		return ErrTrailingData
	}
	return nil
}

// Error is the structured failure returned by every codec.
//
// Offset is absolute: the input offset for decode failures and the number of
// bytes already committed to the sink for encode failures. Path locates the
// failing field, e.g. "extensions[2].server_name".
type Error struct {
	Kind   ErrorKind
	Offset int
	Path   string
	Detail string
	Err    error // underlying cause, e.g. io.ErrShortWrite from a sink
}

func (e *Error) Error() string {
	var b strings.Builder
	if s := e.Kind.Sentinel(); s != nil {
		b.WriteString(s.Error())
	} else {
		b.WriteString("tlscodec: " + e.Kind.String())
	}
	b.WriteString(" at offset ")
	b.WriteString(strconv.Itoa(e.Offset))
	if e.Path != "" {
		b.WriteString(" (")
		b.WriteString(e.Path)
		b.WriteString(")")
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.Sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func newError(kind ErrorKind, offset int, format string, args ...any) *Error {
	e := &Error{Kind: kind, Offset: offset}
	if format != "" {
		e.Detail = fmt.Sprintf(format, args...)
	}
	return e
}

// KindOf reports the ErrorKind carried by err, or 0 if err is not a codec error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrEndOfStream):
		return KindEndOfStream
	case errors.Is(err, ErrInvalidVectorLength):
		return KindInvalidVectorLength
	case errors.Is(err, ErrUnknownDiscriminant):
		return KindUnknownDiscriminant
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrEncoding):
		return KindEncodingError
	case errors.Is(err, ErrTrailingData):
		return KindTrailingData
	}
	return 0
}

// withField prefixes the path of a codec error with a field name.
func withField(err error, name string) error {
	var e *Error
	if name == "" || !errors.As(err, &e) {
		return err
	}
	switch {
	case e.Path == "":
		e.Path = name
	case e.Path[0] == '[':
		e.Path = name + e.Path
	default:
		e.Path = name + "." + e.Path
	}
	return err
}

// withIndex prefixes the path of a codec error with a sequence index.
func withIndex(err error, i int) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	idx := "[" + strconv.Itoa(i) + "]"
	switch {
	case e.Path == "":
		e.Path = idx
	case e.Path[0] == '[':
		e.Path = idx + e.Path
	default:
		e.Path = idx + "." + e.Path
	}
	return err
}
