package transport

import (
	"sync"
)

// bufferPool recycles 9000-byte receive buffers across UDPv4Transport.Receive
// calls, keeping the hot path allocation-free after warmup.
//
// Usage:
//   bufPtr := GetBuffer()
//   defer PutBuffer(bufPtr)
//   buf := *bufPtr
var bufferPool = sync.Pool{
	New: func() interface{} {
		// Allocate 9KB buffer for mDNS packets
		// RFC 6762 §17: mDNS messages can exceed 512 bytes (jumbo frames up to 9000)
		buf := make([]byte, 9000)
		return &buf
	},
}

// GetBuffer returns a pointer to a 9000-byte buffer from the pool.
//
// Caller MUST call PutBuffer() to return the buffer (use defer).
//
// Returns:
//   - *[]byte: Pointer to 9KB buffer
func GetBuffer() *[]byte {
	return bufferPool.Get().(*[]byte)
}

// PutBuffer returns a buffer to the pool for reuse.
//
// Caller MUST NOT use the buffer after calling PutBuffer().
// Best practice: Use defer PutBuffer(bufPtr) immediately after GetBuffer().
//
// Parameters:
//   - bufPtr: Pointer to buffer (from GetBuffer())
func PutBuffer(bufPtr *[]byte) {
	// Zeroed before returning to the pool to avoid leaking one receive's
	// data into the next caller's read.
	buf := *bufPtr
	for i := range buf {
		buf[i] = 0
	}

	bufferPool.Put(bufPtr)
}
