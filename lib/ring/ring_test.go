package ring

import (
	"bytes"
	"math/rand"
	"sync"
	"testing"
)

// TestNewRejectsSmallCapacity checks the lower capacity bound
func TestNewRejectsSmallCapacity(t *testing.T) {
	if _, err := New(MinCapacity - 1); err == nil {
		t.Fatalf("expected error for capacity %d", MinCapacity-1)
	}
	r, err := New(MinCapacity)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Capacity() != MinCapacity {
		t.Errorf("expected capacity %d, got %d", MinCapacity, r.Capacity())
	}
}

// TestReservedSlot checks that at most capacity-1 bytes are live
func TestReservedSlot(t *testing.T) {
	r, _ := New(8)

	if r.FreeSpace() != 7 || r.UsedSpace() != 0 || !r.Empty() {
		t.Fatalf("unexpected empty state: free=%d used=%d", r.FreeSpace(), r.UsedSpace())
	}

	n := r.WriteBytes([]byte("0123456789"))
	if n != 7 {
		t.Fatalf("expected 7 bytes written, got %d", n)
	}
	if r.FreeSpace() != 0 || r.UsedSpace() != 7 {
		t.Errorf("unexpected full state: free=%d used=%d", r.FreeSpace(), r.UsedSpace())
	}
	if r.PutByte('x') {
		t.Errorf("PutByte on a full buffer should fail")
	}
	if r.WriteBytes([]byte("x")) != 0 {
		t.Errorf("WriteBytes on a full buffer should write nothing")
	}
}

// TestPartialTransfersStopAtWrap checks that a single call never crosses the end of the storage
func TestPartialTransfersStopAtWrap(t *testing.T) {
	r, _ := New(8)

	r.WriteBytes([]byte("abcde"))
	buf := make([]byte, 5)
	if n := r.ReadBytes(buf); n != 5 || string(buf) != "abcde" {
		t.Fatalf("unexpected read: %d %q", n, buf[:n])
	}

	// cursors are at 5, only 3 bytes remain before the wrap
	if n := r.WriteBytes([]byte("fghij")); n != 3 {
		t.Fatalf("expected 3 bytes before wrap, got %d", n)
	}
	if n := r.WriteBytes([]byte("ij")); n != 2 {
		t.Fatalf("expected 2 bytes after wrap, got %d", n)
	}

	if n := r.ReadBytes(buf); n != 3 || string(buf[:n]) != "fgh" {
		t.Fatalf("unexpected read before wrap: %q", buf[:n])
	}
	if n := r.ReadBytes(buf); n != 2 || string(buf[:n]) != "ij" {
		t.Fatalf("unexpected read after wrap: %q", buf[:n])
	}
	if !r.Empty() {
		t.Errorf("expected empty buffer")
	}
}

// TestPutPopByte checks the single byte helpers across the wrap point
func TestPutPopByte(t *testing.T) {
	r, _ := New(6)

	for round := byte(0); round < 4; round++ {
		for i := byte(0); i < 4; i++ {
			if !r.PutByte(i + round*10) {
				t.Fatalf("round %d: PutByte(%d) failed", round, i)
			}
		}
		for i := byte(0); i < 4; i++ {
			b, ok := r.PopByte()
			if !ok || b != i+round*10 {
				t.Fatalf("round %d: expected %d, got %d (ok=%t)", round, i+round*10, b, ok)
			}
		}
	}

	if _, ok := r.PopByte(); ok {
		t.Errorf("PopByte on empty buffer should fail")
	}
}

// TestFIFOConcurrent streams random data through a small buffer with one writer and one reader
func TestFIFOConcurrent(t *testing.T) {
	r, _ := New(13)

	data := make([]byte, 64*1024)
	rand.New(rand.NewSource(1)).Read(data)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		src := data
		for len(src) > 0 {
			chunk := min(len(src), 1+len(src)%7)
			n := r.WriteBytes(src[:chunk])
			src = src[n:]
		}
	}()

	received := make([]byte, 0, len(data))
	buf := make([]byte, 5)
	for len(received) < len(data) {
		n := r.ReadBytes(buf)
		received = append(received, buf[:n]...)
	}
	wg.Wait()

	if !bytes.Equal(received, data) {
		t.Fatalf("data received out of order")
	}
}

func BenchmarkWriteRead(b *testing.B) {
	r, _ := New(4096)
	payload := make([]byte, 512)
	buf := make([]byte, 512)

	b.SetBytes(int64(len(payload)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for off := 0; off < len(payload); {
			off += r.WriteBytes(payload[off:])
		}
		for off := 0; off < len(buf); {
			off += r.ReadBytes(buf[off:])
		}
	}
}
