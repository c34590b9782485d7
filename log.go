package tlscodec

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

var (
	nopLogger = zerolog.Nop()
	logger    atomic.Pointer[zerolog.Logger]
)

// SetLogger installs the logger used for decode diagnostics. The package is
// silent until one is installed.
func SetLogger(l zerolog.Logger) {
	logger.Store(&l)
}

// Logger returns the installed logger, or a no-op logger.
func Logger() *zerolog.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return &nopLogger
}

// logDecodeFailure reports a failed top-level decode with its location.
func logDecodeFailure(err error, size int) {
	ev := Logger().Debug()
	if !ev.Enabled() {
		return
	}
	if e, ok := err.(*Error); ok {
		ev = ev.Str("kind", e.Kind.String()).Int("offset", e.Offset).Str("path", e.Path)
	}
	ev.Int("input_len", size).Err(err).Msg("tlscodec: decode failed")
}
