package tlscodec

import (
	"bytes"
	"encoding"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lyingCodec reports a size that disagrees with what it writes.
type lyingCodec struct{}

func (lyingCodec) Size(uint8) int { return 2 }
func (lyingCodec) Encode(w *Writer, v uint8) error {
	w.WriteUint8(v)
	return w.Err()
}
func (lyingCodec) Decode(r *Reader, v *uint8) error {
	r.ReadUint8(v)
	return r.Err()
}

func TestValidate(t *testing.T) {
	n, err := Validate[pairRecord](pairCodec, pairRecord{A: 1, B: []uint8{2}})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = Validate[uint8](lyingCodec{}, 1)
	assert.Equal(t, KindEncodingError, KindOf(err))

	_, err = Marshal[uint8](lyingCodec{}, 1)
	assert.Equal(t, KindEncodingError, KindOf(err))
}

func TestAppend(t *testing.T) {
	dst := []byte{0xFF}
	out, err := Append[pairRecord](dst, pairCodec, pairRecord{A: 7, B: []uint8{9, 9}})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0x07, 0x02, 0x09, 0x09}, out)

	roomy := make([]byte, 1, 16)
	out, err = Append[pairRecord](roomy, pairCodec, pairRecord{A: 1})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 0}, out)
	assert.Same(t, &roomy[0], &out[0], "no reallocation when capacity suffices")

	out, err = Append[uint8](dst, lyingCodec{}, 1)
	assert.Error(t, err)
	assert.Equal(t, dst, out)
}

func TestMarshalTo(t *testing.T) {
	buf := make([]byte, 8)
	n, err := MarshalTo[pairRecord](pairCodec, pairRecord{A: 7, B: []uint8{9, 9}}, buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{7, 2, 9, 9, 0, 0, 0, 0}, buf)

	small := make([]byte, 3)
	_, err = MarshalTo[pairRecord](pairCodec, pairRecord{A: 7, B: []uint8{9, 9}}, small)
	assert.ErrorIs(t, err, io.ErrShortBuffer)
	assert.Equal(t, KindEncodingError, KindOf(err))
	assert.Equal(t, []byte{0, 0, 0}, small)
}

func TestUnmarshalTrailingData(t *testing.T) {
	var v pairRecord
	err := Unmarshal[pairRecord](pairCodec, []byte{7, 1, 9, 0xEE}, &v)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindTrailingData, e.Kind)
	assert.Equal(t, 3, e.Offset)
	assert.ErrorIs(t, err, ErrTrailingData)

	n, err := UnmarshalPrefix[pairRecord](pairCodec, []byte{7, 1, 9, 0xEE}, &v)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestEncodeStreams(t *testing.T) {
	var buf bytes.Buffer
	n, err := Encode[pairRecord](&buf, pairCodec, pairRecord{A: 7, B: []uint8{9, 9}})
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
	assert.Equal(t, []byte{7, 2, 9, 9}, buf.Bytes())

	_, err = Encode[pairRecord](nil, pairCodec, pairRecord{})
	assert.ErrorIs(t, err, ErrNilIO)
}

func TestReadFrom(t *testing.T) {
	var v pairRecord
	n, err := ReadFrom[pairRecord](bytes.NewReader([]byte{7, 2, 9, 9}), pairCodec, &v)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
	assert.Equal(t, pairRecord{A: 7, B: []uint8{9, 9}}, v)

	_, err = ReadFrom[pairRecord](nil, pairCodec, &v)
	assert.ErrorIs(t, err, ErrNilIO)

	_, err = ReadFrom[pairRecord](strings.NewReader("\x07\x05"), pairCodec, &v)
	assert.ErrorIs(t, err, ErrEndOfStream)
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestReadFromSourceError(t *testing.T) {
	var v pairRecord
	_, err := ReadFrom[pairRecord](errReader{}, pairCodec, &v)
	assert.EqualError(t, err, "boom")
}

func TestBinding(t *testing.T) {
	v := pairRecord{A: 7, B: []uint8{9, 9}}
	b := Bind[pairRecord](pairCodec, &v)

	var (
		_ encoding.BinaryMarshaler   = b
		_ encoding.BinaryUnmarshaler = b
		_ io.WriterTo                = b
		_ io.ReaderFrom              = b
	)

	assert.Equal(t, 4, b.Size())
	data, err := b.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{7, 2, 9, 9}, data)

	buf := make([]byte, 4)
	n, err := b.MarshalTo(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	var sink bytes.Buffer
	wn, err := b.WriteTo(&sink)
	require.NoError(t, err)
	assert.EqualValues(t, 4, wn)

	var out pairRecord
	require.NoError(t, Bind[pairRecord](pairCodec, &out).UnmarshalBinary(data))
	assert.Equal(t, v, out)

	var again pairRecord
	_, err = Bind[pairRecord](pairCodec, &again).ReadFrom(&sink)
	require.NoError(t, err)
	assert.Equal(t, v, again)
}

func TestBindingWriteToValidatesFirst(t *testing.T) {
	v := make([]uint8, 300)
	b := Bind[[]uint8](Vector(Width8, Uint8[uint8]()), &v)

	var sink bytes.Buffer
	n, err := b.WriteTo(&sink)
	assert.Equal(t, KindInvalidVectorLength, KindOf(err))
	assert.Zero(t, n)
	assert.Zero(t, sink.Len())
}

func TestDecodeFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))
	t.Cleanup(func() { SetLogger(zerolog.Nop()) })

	var v pairRecord
	err := Unmarshal[pairRecord](pairCodec, []byte{7, 2, 9}, &v)
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, `"kind":"EndOfStream"`)
	assert.Contains(t, out, `"input_len":3`)
	assert.Contains(t, out, "tlscodec: decode failed")
}

func TestLoggerDefaultsToNop(t *testing.T) {
	assert.Equal(t, zerolog.Disabled, Logger().GetLevel())
}
