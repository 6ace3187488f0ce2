package channel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ValentinKolb/dIPC/lib/transform"
)

func newTestPair(t *testing.T, bufferSize int) (*DuplexChannel, *Endpoint, *Endpoint) {
	ch, err := New(Config{BufferSize: bufferSize})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	a, err := ch.Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	b, err := ch.Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return ch, a.(*Endpoint), b.(*Endpoint)
}

// waitForState polls until d reaches want
func waitForState(t *testing.T, d *direction, want State) {
	deadline := time.Now().Add(5 * time.Second)
	for d.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %s to reach state %q, still %q", d.name, want, d.State())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestEndpointBinding(t *testing.T) {
	ch, a, b := newTestPair(t, 64)
	if a.out != ch.bufA || a.in != ch.bufB {
		t.Errorf("Expected slot 0 to write bufA and read bufB")
	}
	if b.out != ch.bufB || b.in != ch.bufA {
		t.Errorf("Expected slot 1 to write bufB and read bufA")
	}
}

func TestReadBlocksUntilData(t *testing.T) {
	_, a, b := newTestPair(t, 64)
	ctx := context.Background()

	type result struct {
		msg []byte
		err error
	}
	res := make(chan result, 1)
	go func() {
		msg, err := ReadMessage(ctx, b, 16)
		res <- result{msg, err}
	}()

	waitForState(t, b.in, StateWaitingForData)
	if _, err := a.Write(ctx, []byte("wake up")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	r := <-res
	if r.err != nil || string(r.msg) != "wake up" {
		t.Errorf("Expected %q, got %q, %v", "wake up", r.msg, r.err)
	}
	waitForState(t, b.in, StateIdle)
}

func TestReadInterrupted(t *testing.T) {
	_, _, b := newTestPair(t, 64)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	n, err := b.Read(ctx, make([]byte, 4))
	if n != 0 || !errors.Is(err, ErrInterrupted) {
		t.Errorf("Expected 0, ErrInterrupted; got %d, %v", n, err)
	}
	if b.in.State() != StateIdle {
		t.Errorf("Expected state to return to idle, got %q", b.in.State())
	}
}

func TestCloseWakesBlockedRead(t *testing.T) {
	_, _, b := newTestPair(t, 64)

	errCh := make(chan error, 1)
	go func() {
		_, err := b.Read(context.Background(), make([]byte, 4))
		errCh <- err
	}()

	waitForState(t, b.in, StateWaitingForData)
	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := <-errCh; !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestWriteBlocksWhenFull(t *testing.T) {
	_, a, b := newTestPair(t, 8)
	ctx := context.Background()

	// 8 byte buffer: header plus 3 payload bytes fill the 7 usable bytes
	errCh := make(chan error, 1)
	go func() {
		_, err := a.Write(ctx, []byte("abcdefghij"))
		errCh <- err
	}()

	waitForState(t, a.out, StateWaitingForSpace)

	msg, err := ReadMessage(ctx, b, 2)
	if err != nil || string(msg) != "abcdefghij" {
		t.Errorf("Expected %q, got %q, %v", "abcdefghij", msg, err)
	}
	if err := <-errCh; err != nil {
		t.Errorf("Write failed: %v", err)
	}
}

func TestInterruptedWriteParksTail(t *testing.T) {
	_, a, b := newTestPair(t, 8)

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		n   int
		err error
	}
	res := make(chan result, 1)
	go func() {
		n, err := a.Write(ctx, []byte("abcdefghij"))
		res <- result{n, err}
	}()

	waitForState(t, a.out, StateWaitingForSpace)
	cancel()

	r := <-res
	if !errors.Is(r.err, ErrInterrupted) {
		t.Fatalf("Expected ErrInterrupted, got %v", r.err)
	}
	// the header is queued, so the whole frame counts as written
	if r.n != 10 {
		t.Errorf("Expected the committed frame to report 10 bytes, got %d", r.n)
	}

	info, _ := a.channel.Info()
	if parked := info.Directions[0].ParkedOutbound; parked != 8 {
		t.Errorf("Expected 8 parked bytes, got %d", parked)
	}

	// the next write completes the interrupted frame first
	bg := context.Background()
	go func() {
		_, _ = a.Write(bg, []byte("next"))
	}()

	msg, err := ReadMessage(bg, b, 3)
	if err != nil || string(msg) != "abcdefghij" {
		t.Errorf("Expected the interrupted frame %q, got %q, %v", "abcdefghij", msg, err)
	}
	msg, err = ReadMessage(bg, b, 3)
	if err != nil || string(msg) != "next" {
		t.Errorf("Expected %q, got %q, %v", "next", msg, err)
	}
}

func TestInterruptedBase64WriteParksEncodedTail(t *testing.T) {
	_, a, _ := newTestPair(t, 10)
	if err := a.SetTransform(transform.Base64, true); err != nil {
		t.Fatalf("SetTransform failed: %v", err)
	}

	// 10 byte buffer: header plus one 4 byte chunk leaves 1 free byte,
	// so the second chunk has to wait
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	n, err := a.Write(ctx, []byte("abcdefghi"))
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("Expected ErrInterrupted, got %v", err)
	}
	if n != 9 {
		t.Errorf("Expected the committed frame to report 9 bytes, got %d", n)
	}
	if len(a.out.parked) != 8 {
		t.Errorf("Expected 8 parked bytes, got %d", len(a.out.parked))
	}
}

func TestMalformedFrame(t *testing.T) {
	_, _, b := newTestPair(t, 16)

	// a header announcing 0x80000000 bytes
	for _, v := range []byte{0x00, 0x00, 0x00, 0x80} {
		b.in.ring.PutByte(v)
	}

	_, err := b.Read(context.Background(), make([]byte, 4))
	if !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("Expected ErrMalformedFrame, got %v", err)
	}
}

func TestInfoStatistics(t *testing.T) {
	ch, a, b := newTestPair(t, 64)
	ctx := context.Background()

	for _, msg := range []string{"a", "bb", "ccc"} {
		if _, err := a.Write(ctx, []byte(msg)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if _, err := ReadMessage(ctx, b, 8); err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}

	info, err := ch.Info()
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	d := info.Directions[0]
	if d.Name != "bufA" {
		t.Errorf("Expected first direction bufA, got %s", d.Name)
	}
	if d.FramesWritten != 3 || d.FramesRead != 1 {
		t.Errorf("Expected 3 frames written and 1 read, got %d and %d", d.FramesWritten, d.FramesRead)
	}
	if d.BytesWritten != 6 || d.BytesRead != 1 {
		t.Errorf("Expected 6 bytes written and 1 read, got %d and %d", d.BytesWritten, d.BytesRead)
	}
	if d.MaxFrameSize != 3 {
		t.Errorf("Expected max frame size 3, got %d", d.MaxFrameSize)
	}
	if want := 2*4 + 5; d.UsedBytes != want {
		t.Errorf("Expected %d queued bytes, got %d", want, d.UsedBytes)
	}
}
