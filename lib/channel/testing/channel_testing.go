package testing

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dIPC/lib/channel"
	"github.com/ValentinKolb/dIPC/lib/transform"
)

// ChannelFactory creates a new two endpoint channel whose ring buffers hold
// bufferSize bytes each
type ChannelFactory func(bufferSize int) channel.IChannel

// RunChannelTests runs a comprehensive test suite for an IChannel implementation.
func RunChannelTests(t *testing.T, name string, factory ChannelFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Admission", func(t *testing.T) {
			testAdmission(t, factory(64))
		})

		t.Run("Transforms", func(t *testing.T) {
			testTransforms(t, factory)
		})

		t.Run("OneByteReads", func(t *testing.T) {
			testOneByteReads(t, factory(64))
		})

		t.Run("EmptyFrame", func(t *testing.T) {
			testEmptyFrame(t, factory(64))
		})

		t.Run("Backpressure", func(t *testing.T) {
			testBackpressure(t, factory(16))
		})

		t.Run("Bidirectional", func(t *testing.T) {
			testBidirectional(t, factory(32))
		})

		t.Run("FlagsResetOnOpen", func(t *testing.T) {
			testFlagsResetOnOpen(t, factory(64))
		})

		t.Run("InvalidControl", func(t *testing.T) {
			testInvalidControl(t, factory(64))
		})

		t.Run("DataSurvivesReopen", func(t *testing.T) {
			testDataSurvivesReopen(t, factory(64))
		})

		t.Run("ClosedEndpoint", func(t *testing.T) {
			testClosedEndpoint(t, factory(64))
		})

		t.Run("ManyMessages", func(t *testing.T) {
			testManyMessages(t, factory(128))
		})

		t.Run("CancelledRead", func(t *testing.T) {
			testCancelledRead(t, factory(64))
		})

		t.Run("CancelledWrite", func(t *testing.T) {
			testCancelledWrite(t, factory(16))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// testContext bounds every test so that a lost wakeup fails instead of hanging
func testContext(t testing.TB) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// openPair opens both endpoints of ch
func openPair(t testing.TB, ch channel.IChannel) (channel.IEndpoint, channel.IEndpoint) {
	a, err := ch.Open()
	if err != nil {
		t.Fatalf("Failed to open first endpoint: %v", err)
	}
	b, err := ch.Open()
	if err != nil {
		t.Fatalf("Failed to open second endpoint: %v", err)
	}
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return a, b
}

func mustWrite(t testing.TB, ctx context.Context, ep channel.IEndpoint, msg []byte) {
	n, err := ep.Write(ctx, msg)
	if err != nil {
		t.Fatalf("Write of %d bytes failed: %v", len(msg), err)
	}
	if n != len(msg) {
		t.Fatalf("Expected Write to consume %d bytes, got %d", len(msg), n)
	}
}

func mustReadMessage(t testing.TB, ctx context.Context, ep channel.IEndpoint, chunk int) []byte {
	msg, err := channel.ReadMessage(ctx, ep, chunk)
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	return msg
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testAdmission(t *testing.T, ch channel.IChannel) {
	a, err := ch.Open()
	if err != nil {
		t.Fatalf("Failed to open first endpoint: %v", err)
	}
	b, err := ch.Open()
	if err != nil {
		t.Fatalf("Failed to open second endpoint: %v", err)
	}
	if a.Slot() != 0 || b.Slot() != 1 {
		t.Errorf("Expected slots 0 and 1, got %d and %d", a.Slot(), b.Slot())
	}

	if _, err := ch.Open(); !errors.Is(err, channel.ErrChannelBusy) {
		t.Errorf("Expected ErrChannelBusy for a third endpoint, got %v", err)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	c, err := ch.Open()
	if err != nil {
		t.Fatalf("Expected a freed slot to be reusable, got %v", err)
	}
	if c.Slot() != 0 {
		t.Errorf("Expected the reopened endpoint to take slot 0, got %d", c.Slot())
	}

	info, err := ch.Info()
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.OpenEndpoints != 2 {
		t.Errorf("Expected 2 open endpoints, got %d", info.OpenEndpoints)
	}

	_ = b.Close()
	_ = c.Close()
}

func testTransforms(t *testing.T, factory ChannelFactory) {
	tests := []struct {
		name  string
		kinds []transform.Kind
		want  string
	}{
		{"none", nil, "shmowzow!"},
		{"rot13", []transform.Kind{transform.Rot13}, "fuzbjmbj!"},
		{"reverse", []transform.Kind{transform.Reverse}, "!wozwomhs"},
		{"base64", []transform.Kind{transform.Base64}, "c2htb3d6b3ch"},
		{"reverse+rot13", []transform.Kind{transform.Reverse, transform.Rot13}, "!jbmjbzuf"},
		{"reverse+base64", []transform.Kind{transform.Reverse, transform.Base64}, "IXdvendvbWhz"},
		{"all", []transform.Kind{transform.Base64, transform.Rot13, transform.Reverse}, "IWpibWpienVm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testContext(t)
			a, b := openPair(t, factory(64))

			for _, kind := range tt.kinds {
				if err := a.SetTransform(kind, true); err != nil {
					t.Fatalf("SetTransform(%s) failed: %v", kind, err)
				}
			}

			mustWrite(t, ctx, a, []byte("shmowzow!"))
			if got := mustReadMessage(t, ctx, b, 64); string(got) != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func testOneByteReads(t *testing.T, ch channel.IChannel) {
	ctx := testContext(t)
	a, b := openPair(t, ch)

	mustWrite(t, ctx, a, []byte("abc"))
	mustWrite(t, ctx, a, []byte("de"))

	expect := []struct {
		n int
		b byte
	}{{1, 'a'}, {1, 'b'}, {1, 'c'}, {0, 0}, {1, 'd'}, {1, 'e'}, {0, 0}}

	buf := make([]byte, 1)
	for i, e := range expect {
		n, err := b.Read(ctx, buf)
		if err != nil {
			t.Fatalf("Read %d failed: %v", i, err)
		}
		if n != e.n {
			t.Fatalf("Read %d: expected %d bytes, got %d", i, e.n, n)
		}
		if n == 1 && buf[0] != e.b {
			t.Errorf("Read %d: expected %q, got %q", i, e.b, buf[0])
		}
	}
}

func testEmptyFrame(t *testing.T, ch channel.IChannel) {
	ctx := testContext(t)
	a, b := openPair(t, ch)

	mustWrite(t, ctx, a, nil)
	mustWrite(t, ctx, a, []byte("x"))

	buf := make([]byte, 8)
	if n, err := b.Read(ctx, buf); err != nil || n != 0 {
		t.Fatalf("Expected the empty frame to read as 0, nil; got %d, %v", n, err)
	}
	if got := mustReadMessage(t, ctx, b, 8); string(got) != "x" {
		t.Errorf("Expected %q after the empty frame, got %q", "x", got)
	}
}

func testBackpressure(t *testing.T, ch channel.IChannel) {
	ctx := testContext(t)
	a, b := openPair(t, ch)

	msg := bytes.Repeat([]byte("0123456789"), 20)

	errCh := make(chan error, 1)
	go func() {
		_, err := a.Write(ctx, msg)
		errCh <- err
	}()

	got := mustReadMessage(t, ctx, b, 5)
	if !bytes.Equal(got, msg) {
		t.Errorf("Expected %d bytes %q, got %d bytes %q", len(msg), msg, len(got), got)
	}
	if err := <-errCh; err != nil {
		t.Errorf("Write of a message larger than the buffer failed: %v", err)
	}

	// the same with base64, whose chunks are 4 bytes
	if err := a.SetTransform(transform.Base64, true); err != nil {
		t.Fatalf("SetTransform failed: %v", err)
	}
	go func() {
		_, err := a.Write(ctx, msg)
		errCh <- err
	}()
	got = mustReadMessage(t, ctx, b, 3)
	if want := base64.StdEncoding.EncodeToString(msg); string(got) != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
	if err := <-errCh; err != nil {
		t.Errorf("Base64 write of a message larger than the buffer failed: %v", err)
	}
}

func testBidirectional(t *testing.T, ch channel.IChannel) {
	ctx := testContext(t)
	a, b := openPair(t, ch)

	const count = 50
	var wg sync.WaitGroup
	errs := make(chan error, 4)

	send := func(ep channel.IEndpoint, prefix string) {
		defer wg.Done()
		for i := 0; i < count; i++ {
			if _, err := ep.Write(ctx, []byte(fmt.Sprintf("%s-%d", prefix, i))); err != nil {
				errs <- fmt.Errorf("%s write %d: %w", prefix, i, err)
				return
			}
		}
	}
	receive := func(ep channel.IEndpoint, prefix string) {
		defer wg.Done()
		for i := 0; i < count; i++ {
			msg, err := channel.ReadMessage(ctx, ep, 7)
			if err != nil {
				errs <- fmt.Errorf("%s read %d: %w", prefix, i, err)
				return
			}
			if want := fmt.Sprintf("%s-%d", prefix, i); string(msg) != want {
				errs <- fmt.Errorf("expected %q, got %q", want, msg)
				return
			}
		}
	}

	wg.Add(4)
	go send(a, "ping")
	go send(b, "pong")
	go receive(b, "ping")
	go receive(a, "pong")
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func testFlagsResetOnOpen(t *testing.T, ch channel.IChannel) {
	ctx := testContext(t)
	a, b := openPair(t, ch)

	if err := a.SetTransform(transform.Rot13, true); err != nil {
		t.Fatalf("SetTransform failed: %v", err)
	}
	if !a.Flags().Rot13 {
		t.Errorf("Expected rot13 to be enabled")
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	a, err := ch.Open()
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer a.Close()

	if a.Flags() != (transform.Flags{}) {
		t.Errorf("Expected no filters after reopen, got %s", a.Flags())
	}
	mustWrite(t, ctx, a, []byte("plain"))
	if got := mustReadMessage(t, ctx, b, 16); string(got) != "plain" {
		t.Errorf("Expected %q, got %q", "plain", got)
	}
}

func testInvalidControl(t *testing.T, ch channel.IChannel) {
	a, _ := openPair(t, ch)

	if err := a.SetTransform(transform.Kind(0x99), true); !errors.Is(err, channel.ErrInvalidControl) {
		t.Errorf("Expected ErrInvalidControl, got %v", err)
	}
	if a.Flags() != (transform.Flags{}) {
		t.Errorf("Expected flags to be unchanged, got %s", a.Flags())
	}

	if err := a.SetTransform(transform.Reverse, true); err != nil {
		t.Fatalf("SetTransform failed: %v", err)
	}
	if err := a.SetTransform(transform.Reverse, false); err != nil {
		t.Fatalf("SetTransform failed: %v", err)
	}
	if a.Flags().Reverse {
		t.Errorf("Expected reverse to be disabled again")
	}
}

func testDataSurvivesReopen(t *testing.T, ch channel.IChannel) {
	ctx := testContext(t)
	a, b := openPair(t, ch)

	mustWrite(t, ctx, a, []byte("hello"))
	mustWrite(t, ctx, a, []byte("world"))

	// consume part of the first frame, then hand the slot over
	buf := make([]byte, 2)
	if n, err := b.Read(ctx, buf); err != nil || n != 2 {
		t.Fatalf("Expected to read 2 bytes, got %d, %v", n, err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	a, err := ch.Open()
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer a.Close()
	b, err = ch.Open()
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer b.Close()

	if got := mustReadMessage(t, ctx, b, 16); string(got) != "llo" {
		t.Errorf("Expected the rest of the first frame %q, got %q", "llo", got)
	}
	if got := mustReadMessage(t, ctx, b, 16); string(got) != "world" {
		t.Errorf("Expected %q, got %q", "world", got)
	}
}

func testClosedEndpoint(t *testing.T, ch channel.IChannel) {
	ctx := testContext(t)
	a, err := ch.Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := a.Write(ctx, []byte("x")); !errors.Is(err, channel.ErrClosed) {
		t.Errorf("Expected ErrClosed from Write, got %v", err)
	}
	if _, err := a.Read(ctx, make([]byte, 1)); !errors.Is(err, channel.ErrClosed) {
		t.Errorf("Expected ErrClosed from Read, got %v", err)
	}
	if err := a.Close(); !errors.Is(err, channel.ErrClosed) {
		t.Errorf("Expected ErrClosed from a second Close, got %v", err)
	}
}

func testManyMessages(t *testing.T, ch channel.IChannel) {
	ctx := testContext(t)
	a, b := openPair(t, ch)

	const count = 200
	go func() {
		for i := 0; i < count; i++ {
			msg := bytes.Repeat([]byte{byte('a' + i%26)}, i%300)
			if _, err := a.Write(ctx, msg); err != nil {
				return
			}
		}
	}()

	for i := 0; i < count; i++ {
		want := bytes.Repeat([]byte{byte('a' + i%26)}, i%300)
		got, err := channel.ReadMessage(ctx, b, 64)
		if err != nil {
			t.Fatalf("ReadMessage %d failed: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Message %d: expected %d bytes of %q, got %d bytes", i, len(want), want[:min(1, len(want))], len(got))
		}
	}
}

// testCancelledRead cancels a read that has no deadline and checks that the
// next frame still arrives intact
func testCancelledRead(t *testing.T, ch channel.IChannel) {
	ctx := testContext(t)
	a, b := openPair(t, ch)

	readCtx, cancel := context.WithCancel(ctx)
	timer := time.AfterFunc(100*time.Millisecond, cancel)
	defer timer.Stop()

	start := time.Now()
	n, err := b.Read(readCtx, make([]byte, 16))
	if n != 0 || !errors.Is(err, channel.ErrInterrupted) {
		t.Fatalf("Expected 0, ErrInterrupted; got %d, %v", n, err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Cancelled read returned after %v", elapsed)
	}

	mustWrite(t, ctx, a, []byte("hello"))
	if got := mustReadMessage(t, ctx, b, 16); string(got) != "hello" {
		t.Errorf("Expected %q after the cancelled read, got %q", "hello", got)
	}
}

// testCancelledWrite cancels a write blocked on a full buffer. The frame is
// committed, so it is delivered once in full and never has to be resent.
func testCancelledWrite(t *testing.T, ch channel.IChannel) {
	ctx := testContext(t)
	a, b := openPair(t, ch)

	msg := bytes.Repeat([]byte("0123456789"), 4)

	writeCtx, cancel := context.WithCancel(ctx)
	timer := time.AfterFunc(100*time.Millisecond, cancel)
	defer timer.Stop()

	n, err := a.Write(writeCtx, msg)
	if !errors.Is(err, channel.ErrInterrupted) {
		t.Fatalf("Expected ErrInterrupted, got %d, %v", n, err)
	}
	if n != len(msg) {
		t.Fatalf("Expected the committed frame to report %d bytes, got %d", len(msg), n)
	}

	// the next write flushes the parked tail first
	errCh := make(chan error, 1)
	go func() {
		_, err := a.Write(ctx, []byte("next"))
		errCh <- err
	}()

	if got := mustReadMessage(t, ctx, b, 8); !bytes.Equal(got, msg) {
		t.Errorf("Expected the interrupted frame %q, got %q", msg, got)
	}
	if got := mustReadMessage(t, ctx, b, 8); string(got) != "next" {
		t.Errorf("Expected %q, got %q", "next", got)
	}
	if err := <-errCh; err != nil {
		t.Errorf("Write after the cancelled write failed: %v", err)
	}
}
