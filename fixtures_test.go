package tlscodec

// A cut-down ClientHello used across the tests.

type (
	ProtocolVersion uint16
	CipherSuite     uint16
)

type ServerName struct {
	HostName []byte
}

type SupportedVersions struct {
	Versions []ProtocolVersion
}

type EarlyData struct{}

type ClientHello struct {
	Version      ProtocolVersion
	Random       []byte
	SessionID    []byte
	CipherSuites []CipherSuite
	Extensions   []any
}

var serverNameCodec = Struct(
	FieldOf("host_name", func(s *ServerName) *[]byte { return &s.HostName }, Opaque(Width16).WithBounds(1, 255)),
)

var supportedVersionsCodec = Struct(
	FieldOf("versions", func(s *SupportedVersions) *[]ProtocolVersion { return &s.Versions },
		Vector(Width8, Uint16[ProtocolVersion]()).WithBounds(2, 254)),
)

var extensionCodec = MustUnion[any](2,
	Case[any, ServerName](0, "server_name", Enclosed[ServerName](Width16, serverNameCodec)),
	Case[any, EarlyData](42, "early_data", Enclosed(Width16, Empty[EarlyData]())),
	Case[any, SupportedVersions](43, "supported_versions", Enclosed[SupportedVersions](Width16, supportedVersionsCodec)),
	CatchUnknown[any]("unknown", Width16),
)

var clientHelloCodec = Struct(
	FieldOf("legacy_version", func(h *ClientHello) *ProtocolVersion { return &h.Version }, Uint16[ProtocolVersion]()),
	FieldOf("random", func(h *ClientHello) *[]byte { return &h.Random }, FixedBytes(32)),
	FieldOf("legacy_session_id", func(h *ClientHello) *[]byte { return &h.SessionID }, Opaque(Width8).WithBounds(0, 32)),
	FieldOf("cipher_suites", func(h *ClientHello) *[]CipherSuite { return &h.CipherSuites },
		Vector(Width16, Uint16[CipherSuite]()).WithBounds(2, 65534)),
	FieldOf("extensions", func(h *ClientHello) *[]any { return &h.Extensions }, Vector[any](Width16, extensionCodec)),
)

func sampleHello() ClientHello {
	random := make([]byte, 32)
	for i := range random {
		random[i] = byte(i)
	}
	return ClientHello{
		Version:      0x0303,
		Random:       random,
		SessionID:    []byte{0xAA, 0xBB},
		CipherSuites: []CipherSuite{0x1301, 0x1302},
		Extensions: []any{
			ServerName{HostName: []byte("example.com")},
			SupportedVersions{Versions: []ProtocolVersion{0x0304, 0x0303}},
			EarlyData{},
		},
	}
}

// pairRecord is {a: u8, b: u8<0..255>}.
type pairRecord struct {
	A uint8
	B []uint8
}

var pairCodec = Struct(
	FieldOf("a", func(p *pairRecord) *uint8 { return &p.A }, Uint8[uint8]()),
	FieldOf("b", func(p *pairRecord) *[]uint8 { return &p.B }, Vector(Width8, Uint8[uint8]())),
)
