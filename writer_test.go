package tlscodec

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

// plainWriter hides bytes.Buffer's WriteByte so the adapter path is taken.
type plainWriter struct{ buf bytes.Buffer }

func (p *plainWriter) Write(b []byte) (int, error) { return p.buf.Write(b) }

// failingWriter accepts limit bytes and then fails.
type failingWriter struct {
	limit int
	n     int
}

var errSinkClosed = errors.New("sink closed")

func (f *failingWriter) Write(p []byte) (int, error) {
	room := f.limit - f.n
	if room <= 0 {
		return 0, errSinkClosed
	}
	if len(p) > room {
		f.n += room
		return room, errSinkClosed
	}
	f.n += len(p)
	return len(p), nil
}

// --- Writer Test Suite ---

type WriterTestSuite struct {
	suite.Suite
	buf    *bytes.Buffer
	writer *Writer
}

// SetupTest runs before each test in the suite, ensuring a clean state.
func (s *WriterTestSuite) SetupTest() {
	s.buf = &bytes.Buffer{}
	s.writer, _ = NewWriter(s.buf)
}

func (s *WriterTestSuite) TestConstructors() {
	s.T().Run("ErrorOnNilWriter", func(t *testing.T) {
		_, err := NewWriter(nil)
		assert.ErrorIs(t, err, ErrNilIO)
	})
}

func (s *WriterTestSuite) TestBasicWrites() {
	s.writer.WriteUint8(0xAA)
	s.writer.WriteUint16(0xBBCC)
	s.writer.WriteUint24(0x010203)
	s.writer.WriteUint32(0xDDEEFF00)
	s.writer.WriteUint64(0x0102030405060708)
	s.writer.WriteBool(true)
	s.writer.WriteBool(false)
	s.writer.WriteBytes([]byte{5, 6, 7})
	s.writer.WriteUint(0x0A0B0C, 3)

	n, err := s.writer.Result()
	s.Require().NoError(err)
	s.Assert().Equal(1+2+3+4+8+1+1+3+3, n)
	s.Assert().Equal(s.buf.Len(), s.writer.Count())

	expected := []byte{
		0xAA,       // WriteUint8
		0xBB, 0xCC, // WriteUint16 (big endian)
		0x01, 0x02, 0x03, // WriteUint24
		0xDD, 0xEE, 0xFF, 0x00, // WriteUint32
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, // WriteUint64
		0x01, 0x00, // WriteBool
		5, 6, 7, // WriteBytes
		0x0A, 0x0B, 0x0C, // WriteUint width 3
	}
	s.Assert().Equal(expected, s.buf.Bytes())
}

func (s *WriterTestSuite) TestAdapterSink() {
	var p plainWriter
	w, err := NewWriter(&p)
	s.Require().NoError(err)

	w.WriteUint8(1)
	w.WriteUint16(0x0203)
	s.Require().NoError(w.Err())
	s.Assert().Equal([]byte{1, 2, 3}, p.buf.Bytes())
}

func (s *WriterTestSuite) TestErrorLatching() {
	w, err := NewWriter(&failingWriter{limit: 3})
	s.Require().NoError(err)

	w.WriteUint16(0x0102)
	s.Require().NoError(w.Err())
	w.WriteUint32(0x03040506) // only one byte fits
	first := w.Err()
	s.Require().Error(first)
	s.Assert().ErrorIs(first, ErrEncoding)
	s.Assert().ErrorIs(first, errSinkClosed)
	s.Assert().Equal(3, w.Count())

	w.WriteUint8(7)
	w.WriteBytes([]byte{8, 9})
	s.Assert().Same(first, w.Err(), "later writes keep the first error")
	s.Assert().Equal(3, w.Count())
}

func (s *WriterTestSuite) TestFailRecordsOffset() {
	s.writer.WriteUint16(1)
	err := s.writer.Fail(KindInvalidVectorLength, "too long")

	var e *Error
	s.Require().ErrorAs(err, &e)
	s.Assert().Equal(KindInvalidVectorLength, e.Kind)
	s.Assert().Equal(2, e.Offset)

	s.writer.Fail(KindEncodingError, "ignored")
	s.Assert().Same(err, s.writer.Err())
}

func TestWriterSuite(t *testing.T) {
	suite.Run(t, new(WriterTestSuite))
}

func TestBytesWriter(t *testing.T) {
	buf := make([]byte, 4)
	bw := NewBytesWriter(buf)

	n, err := bw.Write([]byte{1, 2, 3})
	assert.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 1, bw.Available())

	n, err = bw.Write([]byte{4, 5})
	assert.ErrorIs(t, err, io.ErrShortWrite)
	assert.Equal(t, 1, n)
	assert.Equal(t, []byte{1, 2, 3, 4}, bw.Bytes())
	assert.ErrorIs(t, bw.WriteByte(6), io.ErrShortWrite)

	bw.Reset()
	assert.Equal(t, 0, bw.Len())
	assert.NoError(t, bw.WriteByte(9))
	assert.Equal(t, []byte{9}, bw.Bytes())
}

func TestBytesWriterThroughWriter(t *testing.T) {
	bw := NewBytesWriter(make([]byte, 2))
	w, err := NewWriter(bw)
	assert.NoError(t, err)

	w.WriteUint24(0xABCDEF)
	assert.ErrorIs(t, w.Err(), io.ErrShortWrite)
	assert.Equal(t, 2, w.Count())
}
