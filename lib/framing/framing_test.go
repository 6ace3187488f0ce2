package framing

import (
	"testing"

	"github.com/ValentinKolb/dIPC/lib/ring"
)

// TestLengthRoundTrip writes and pops headers for a set of interesting lengths
func TestLengthRoundTrip(t *testing.T) {
	lengths := []uint32{0, 1, 9, 255, 256, 65535, 65536, 1 << 24, MaxFrameLength}

	r, _ := ring.New(16)
	for _, want := range lengths {
		PutLength(r, want)
		if r.UsedSpace() != HeaderSize {
			t.Fatalf("expected %d header bytes, got %d", HeaderSize, r.UsedSpace())
		}
		if got := PopLength(r); got != want {
			t.Errorf("expected length %d, got %d", want, got)
		}
	}
}

// TestLittleEndianLayout checks the byte order of the header on the wire
func TestLittleEndianLayout(t *testing.T) {
	r, _ := ring.New(16)
	PutLength(r, 0x0a0b0c0d)

	want := []byte{0x0d, 0x0c, 0x0b, 0x0a}
	for i, w := range want {
		b, ok := r.PopByte()
		if !ok || b != w {
			t.Fatalf("byte %d: expected %#x, got %#x", i, w, b)
		}
	}
}

// TestHeaderWrapsAroundStorage places a header across the end of the ring storage
func TestHeaderWrapsAroundStorage(t *testing.T) {
	r, _ := ring.New(7)

	// move both cursors to index 5 so the header spans indices 5, 6, 0, 1
	r.WriteBytes([]byte("abcde"))
	r.ReadBytes(make([]byte, 5))

	PutLength(r, 0x01020304)
	if got := PopLength(r); got != 0x01020304 {
		t.Fatalf("expected %#x, got %#x", 0x01020304, got)
	}
}

// TestValidLength checks the frame length bound
func TestValidLength(t *testing.T) {
	if !ValidLength(MaxFrameLength) {
		t.Errorf("MaxFrameLength must be valid")
	}
	if ValidLength(MaxFrameLength + 1) {
		t.Errorf("MaxFrameLength+1 must be invalid")
	}
}
