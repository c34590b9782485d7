package tlscodec

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type derivedHello struct {
	Version      ProtocolVersion
	Random       [32]byte
	SessionID    []byte        `tls:"vec=1,max=32,name=legacy_session_id"`
	CipherSuites []CipherSuite `tls:"vec=2,min=2,name=cipher_suites"`
	Compression  []uint8       `tls:"vec=1,min=1"`
	Length       uint32        `tls:"u24"`
	ALPN         [][]byte      `tls:"vec=2/vec=1,min=1"`
	Ticket       *[]byte       `tls:"opt,vec=2"`
	Point        point
	Flags        [2]bool
	Note         string `tls:"enc=2,vec=1"`
	Ignored      int    `tls:"-"`
	internal     int
}

func TestDeriveRoundTrip(t *testing.T) {
	c, err := Derive[derivedHello]()
	require.NoError(t, err)

	v := derivedHello{
		Version:      0x0303,
		SessionID:    []byte{1},
		CipherSuites: []CipherSuite{0x1301},
		Compression:  []uint8{0},
		Length:       0x010203,
		ALPN:         [][]byte{[]byte("h2")},
		Ticket:       Ptr([]byte{0xEE}),
		Point:        point{X: 5, Y: 6},
		Flags:        [2]bool{true, false},
		Note:         "hi",
		Ignored:      99,
	}
	v.Random[31] = 0xFF

	b, err := Marshal(c, v)
	require.NoError(t, err)
	want := []byte{0x03, 0x03}
	want = append(want, v.Random[:]...)
	want = append(want,
		1, 1, // session id
		0, 2, 0x13, 0x01, // cipher suites
		1, 0, // compression
		0x01, 0x02, 0x03, // u24 length
		0, 3, 2, 'h', '2', // alpn
		1, 0, 1, 0xEE, // ticket
		0, 5, 0, 6, // point
		1, 0, // flags
		0, 3, 2, 'h', 'i', // enclosed note
	)
	assert.Equal(t, want, b)
	assert.Equal(t, len(want), c.Size(v))

	var got derivedHello
	require.NoError(t, Unmarshal(c, b, &got))
	v.Ignored = 0
	assert.Equal(t, v, got)
}

func TestDeriveBoundsAndPaths(t *testing.T) {
	c := MustDerive[derivedHello]()

	_, err := Marshal(c, derivedHello{Compression: []uint8{0}, ALPN: [][]byte{}})
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindInvalidVectorLength, e.Kind)
	assert.Equal(t, "cipher_suites", e.Path)

	v := derivedHello{CipherSuites: []CipherSuite{1}, Compression: []uint8{0}, ALPN: [][]byte{{}}}
	_, err = Marshal(c, v)
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "ALPN[0]", e.Path)

	v.ALPN = nil
	v.Length = 1 << 24
	_, err = Marshal(c, v)
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindEncodingError, e.Kind)
	assert.Equal(t, "Length", e.Path)
}

func TestDeriveNilOptional(t *testing.T) {
	type withTicket struct {
		Ticket *uint16 `tls:"opt"`
	}
	c := MustDerive[withTicket]()
	b, err := Marshal(c, withTicket{})
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, b)

	var got withTicket
	require.NoError(t, Unmarshal(c, []byte{1, 0, 7}, &got))
	require.NotNil(t, got.Ticket)
	assert.Equal(t, uint16(7), *got.Ticket)

	err = Unmarshal(c, []byte{2}, &got)
	assert.Equal(t, KindInvalidInput, KindOf(err))
}

func TestDeriveByteArraySinkFailure(t *testing.T) {
	type digest struct {
		Sum [4]byte
	}
	c := MustDerive[digest]()

	n, err := Encode(&failingWriter{limit: 2}, c, digest{Sum: [4]byte{1, 2, 3, 4}})
	assert.ErrorIs(t, err, errSinkClosed)
	assert.Equal(t, KindEncodingError, KindOf(err))
	assert.EqualValues(t, 2, n)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "Sum", e.Path)
}

type derivedNode struct {
	Value    uint8
	Children []derivedNode `tls:"vec=2"`
	Next     *derivedNode  `tls:"opt"`
}

func TestDeriveRecursive(t *testing.T) {
	c, err := Derive[derivedNode]()
	require.NoError(t, err)

	v := derivedNode{Value: 1, Children: []derivedNode{{Value: 2, Children: []derivedNode{}}}, Next: &derivedNode{Value: 3, Children: []derivedNode{}}}
	b, err := Marshal(c, v)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 4, 2, 0, 0, 0, 1, 3, 0, 0, 0}, b)

	var got derivedNode
	require.NoError(t, Unmarshal(c, b, &got))
	assert.Equal(t, v, got)
}

type registeredVersion uint16

type withRegistered struct {
	V registeredVersion
}

func TestDeriveRegister(t *testing.T) {
	// Always coded in one byte regardless of the Go type.
	Register[registeredVersion](Func[registeredVersion]{
		SizeFunc: func(registeredVersion) int { return 1 },
		EncodeFunc: func(w *Writer, v registeredVersion) error {
			w.WriteUint8(uint8(v - 0x0300))
			return w.Err()
		},
		DecodeFunc: func(r *Reader, v *registeredVersion) error {
			var b uint8
			r.ReadUint8(&b)
			*v = registeredVersion(0x0300 + uint16(b))
			return r.Err()
		},
	})

	c := MustDerive[withRegistered]()
	b, err := Marshal(c, withRegistered{V: 0x0304})
	require.NoError(t, err)
	assert.Equal(t, []byte{4}, b)

	var got withRegistered
	require.NoError(t, Unmarshal(c, b, &got))
	assert.Equal(t, registeredVersion(0x0304), got.V)
}

func TestDeriveRejects(t *testing.T) {
	type noVec struct{ B []byte }
	type badWidth struct {
		V uint16 `tls:"u32"`
	}
	type ptrNoOpt struct{ P *uint8 }
	type badOpt struct {
		V uint8 `tls:"opt"`
	}
	type unknownOpt struct {
		V uint8 `tls:"fast"`
	}
	type badBounds struct {
		B []byte `tls:"vec=1,max=300"`
	}
	type signed struct{ I int32 }
	type mapField struct {
		M map[string]uint8
	}
	type leafLayer struct {
		V uint8 `tls:"u8/u8"`
	}

	for name, derive := range map[string]func() error{
		"slice without vec": func() error { _, err := Derive[noVec](); return err },
		"width too wide":    func() error { _, err := Derive[badWidth](); return err },
		"pointer w/o opt":   func() error { _, err := Derive[ptrNoOpt](); return err },
		"opt on value":      func() error { _, err := Derive[badOpt](); return err },
		"unknown option":    func() error { _, err := Derive[unknownOpt](); return err },
		"bounds":            func() error { _, err := Derive[badBounds](); return err },
		"signed int":        func() error { _, err := Derive[signed](); return err },
		"map":               func() error { _, err := Derive[mapField](); return err },
		"extra layer":       func() error { _, err := Derive[leafLayer](); return err },
	} {
		assert.ErrorIs(t, derive(), ErrInvalidSchema, name)
	}
	assert.Panics(t, func() { MustDerive[noVec]() })
}

func TestDeriveConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := Derive[derivedNode]()
			if assert.NoError(t, err) {
				_, err = Marshal(c, derivedNode{Children: []derivedNode{}})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
}
