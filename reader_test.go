package tlscodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ReaderTestSuite struct {
	suite.Suite
}

func (s *ReaderTestSuite) TestPrimitives() {
	r := NewReader([]byte{
		0xAA,
		0xBB, 0xCC,
		0x01, 0x02, 0x03,
		0xDD, 0xEE, 0xFF, 0x00,
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
		0x01,
		0x0A, 0x0B,
	})
	var (
		u8  uint8
		u16 uint16
		u24 uint32
		u32 uint32
		u64 uint64
		b   bool
		u   uint64
	)
	r.ReadUint8(&u8)
	r.ReadUint16(&u16)
	r.ReadUint24(&u24)
	r.ReadUint32(&u32)
	r.ReadUint64(&u64)
	r.ReadBool(&b)
	r.ReadUint(&u, 2)

	n, err := r.Result()
	s.Require().NoError(err)
	s.Assert().Equal(21, n)
	s.Assert().Equal(uint8(0xAA), u8)
	s.Assert().Equal(uint16(0xBBCC), u16)
	s.Assert().Equal(uint32(0x010203), u24)
	s.Assert().Equal(uint32(0xDDEEFF00), u32)
	s.Assert().Equal(uint64(0x0102030405060708), u64)
	s.Assert().True(b)
	s.Assert().Equal(uint64(0x0A0B), u)
	s.Assert().Zero(r.Remaining())
}

func (s *ReaderTestSuite) TestEndOfStreamLatches() {
	r := NewReader([]byte{1, 2, 3})
	var v uint32
	r.ReadUint32(&v)

	var e *Error
	s.Require().ErrorAs(r.Err(), &e)
	s.Assert().Equal(KindEndOfStream, e.Kind)
	s.Assert().Equal(0, e.Offset)
	s.Assert().Zero(v, "destination untouched")
	s.Assert().Equal(0, r.Count(), "position stays at the failure")

	var b uint8
	r.ReadUint8(&b)
	s.Assert().Zero(b, "reads after an error are no-ops")
	s.Assert().Same(e, r.Err())
}

func (s *ReaderTestSuite) TestStrictBool() {
	for _, tc := range []struct {
		in   byte
		want bool
	}{{0, false}, {1, true}} {
		var b bool
		r := NewReader([]byte{tc.in})
		r.ReadBool(&b)
		s.Require().NoError(r.Err())
		s.Assert().Equal(tc.want, b)
	}

	r := NewReader([]byte{0x02})
	var b bool
	r.ReadBool(&b)
	s.Assert().Equal(KindInvalidInput, KindOf(r.Err()))
	s.Assert().ErrorIs(r.Err(), ErrInvalidInput)
	s.Assert().Equal(0, r.Count())
}

func (s *ReaderTestSuite) TestPeekAndBytes() {
	data := []byte{1, 2, 3, 4}
	r := NewReader(data)

	s.Assert().Equal([]byte{1, 2}, r.Peek(2))
	s.Assert().Nil(r.Peek(5))
	s.Assert().Equal(0, r.Count())

	view := r.ReadBytes(2)
	s.Assert().Equal([]byte{1, 2}, view)
	data[0] = 9
	s.Assert().Equal(byte(9), view[0], "ReadBytes borrows the input")

	dst := make([]byte, 1)
	r.ReadBytesTo(dst)
	s.Assert().Equal([]byte{3}, dst)
	s.Assert().Equal([]byte{4}, r.Rest())
	s.Assert().Zero(r.Remaining())
}

func (s *ReaderTestSuite) TestWithin() {
	r := NewReader([]byte{0xFF, 1, 2, 3, 4})
	r.ReadBytes(1)

	err := r.Within(3, func(sub *Reader) error {
		s.Assert().Equal(3, sub.Remaining())
		s.Assert().Equal(1, sub.Offset())
		var v uint16
		sub.ReadUint16(&v)
		s.Assert().Equal(uint16(0x0102), v)
		var w uint16
		sub.ReadUint16(&w) // crosses the region end
		return sub.Err()
	})
	var e *Error
	s.Require().ErrorAs(err, &e)
	s.Assert().Equal(KindEndOfStream, e.Kind)
	s.Assert().Equal(3, e.Offset, "offsets are absolute")
	s.Assert().Equal(3, r.Count(), "parent advanced by what the region consumed")
	s.Assert().Same(e, r.Err())
}

func (s *ReaderTestSuite) TestWithinTooLong() {
	r := NewReader([]byte{1, 2})
	called := false
	err := r.Within(3, func(*Reader) error {
		called = true
		return nil
	})
	s.Assert().False(called)
	s.Assert().Equal(KindEndOfStream, KindOf(err))
}

func (s *ReaderTestSuite) TestWithinLatchedSubError() {
	r := NewReader([]byte{1})
	err := r.Within(1, func(sub *Reader) error {
		var v uint16
		sub.ReadUint16(&v)
		return nil // the latched error still surfaces
	})
	s.Assert().Equal(KindEndOfStream, KindOf(err))
}

func TestReaderSuite(t *testing.T) {
	suite.Run(t, new(ReaderTestSuite))
}

func TestReadByte(t *testing.T) {
	r := NewReader([]byte{7})
	b, err := r.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(7), b)

	_, err = r.ReadByte()
	assert.ErrorIs(t, err, ErrEndOfStream)
}
