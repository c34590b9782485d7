package tlscodec

import (
	"bytes"
	"sync"
)

// bytesBufPool reuses buffers for reading whole messages off a stream.
// Decoded values never alias a pooled buffer: the message is cloned out
// before decoding.
var bytesBufPool = sync.Pool{
	New: func() any {
		// A 16KB default covers a full TLS record without re-allocating.
		return bytes.NewBuffer(make([]byte, 0, 16*1024))
	},
}

// maxPooledBuffer keeps oversized buffers from being pinned in the pool.
const maxPooledBuffer = 1 << 20

func getBuffer() *bytes.Buffer {
	buf := bytesBufPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBuffer {
		return
	}
	bytesBufPool.Put(buf)
}
