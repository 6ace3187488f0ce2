// Package framing delimits messages inside a ring buffer byte stream.
//
// Every frame is a 4 byte little-endian length header followed by exactly
// that many payload bytes. The header is written and read one byte at a time
// so it can wrap across the end of the ring storage like any other data.
// The codec knows nothing about payload content.
package framing

import (
	"math"

	"github.com/ValentinKolb/dIPC/lib/ring"
)

const (
	// HeaderSize is the size of the length prefix in bytes
	HeaderSize = 4

	// MaxFrameLength is the largest payload length a frame may announce.
	// Lengths are reported back to callers as int byte counts, so the limit
	// is the largest signed 32 bit value.
	MaxFrameLength = math.MaxInt32
)

// PutLength writes the header for a frame of length n, least significant
// byte first. The caller must have confirmed HeaderSize bytes of free space.
func PutLength(r *ring.RingBuffer, n uint32) {
	for i := 0; i < HeaderSize; i++ {
		r.PutByte(byte(n >> (8 * i) & 0xff))
	}
}

// PopLength reads a frame header written by PutLength. The caller must have
// confirmed HeaderSize bytes are available.
func PopLength(r *ring.RingBuffer) uint32 {
	var n uint32
	for i := 0; i < HeaderSize; i++ {
		b, _ := r.PopByte()
		n |= uint32(b) << (8 * i)
	}
	return n
}

// ValidLength reports whether n can be announced by a frame header.
func ValidLength(n uint64) bool {
	return n <= MaxFrameLength
}
