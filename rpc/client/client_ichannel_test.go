package client_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/dIPC/lib/channel"
	chtesting "github.com/ValentinKolb/dIPC/lib/channel/testing"
	"github.com/ValentinKolb/dIPC/lib/transform"
	"github.com/ValentinKolb/dIPC/rpc/client"
	"github.com/ValentinKolb/dIPC/rpc/common"
	"github.com/ValentinKolb/dIPC/rpc/serializer"
	"github.com/ValentinKolb/dIPC/rpc/server"
	"github.com/ValentinKolb/dIPC/rpc/transport/unix"
)

const testChannelID = 1

// startServer serves a single channel on a fresh unix socket and returns a
// client channel connected to it
func startServer(t testing.TB, bufferSize int, s serializer.IRPCSerializer) channel.IChannel {
	t.Helper()

	// unix socket paths are short, t.TempDir can exceed the limit
	dir, err := os.MkdirTemp("", "dipc")
	if err != nil {
		t.Fatalf("MkdirTemp failed: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	socket := filepath.Join(dir, "s.sock")

	srv := server.NewRPCServer(common.ServerConfig{
		Channels: []common.ServerChannel{{
			ChannelID: testChannelID,
			Config:    channel.Config{BufferSize: bufferSize},
		}},
		Endpoint: socket,
	}, unix.NewUnixDefaultServerTransport(), s)

	served := make(chan error, 1)
	go func() { served <- srv.Serve() }()
	t.Cleanup(func() { _ = srv.Shutdown() })

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(socket); err == nil {
			break
		}
		select {
		case err := <-served:
			t.Fatalf("Serve failed: %v", err)
		default:
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not create %s", socket)
		}
		time.Sleep(10 * time.Millisecond)
	}

	clientTransport := unix.NewUnixClientTransport()
	ch, err := client.NewRPCChannel(testChannelID, common.ClientConfig{
		Endpoints:     []string{socket},
		TimeoutSecond: 30,
		RetryCount:    1,
	}, clientTransport, s)
	if err != nil {
		t.Fatalf("NewRPCChannel failed: %v", err)
	}
	t.Cleanup(func() { _ = clientTransport.Close() })
	return ch
}

func TestRPCChannel(t *testing.T) {
	for name, s := range map[string]serializer.IRPCSerializer{
		"binary": serializer.NewBinarySerializer(),
		"cbor":   serializer.NewCBORSerializer(),
	} {
		chtesting.RunChannelTests(t, name, func(bufferSize int) channel.IChannel {
			return startServer(t, bufferSize, s)
		})
	}
}

func BenchmarkRPCChannel(b *testing.B) {
	chtesting.RunChannelBenchmarks(b, "binary", func(bufferSize int) channel.IChannel {
		return startServer(b, bufferSize, serializer.NewBinarySerializer())
	})
}

func TestRPCDeadlineInterruptsRead(t *testing.T) {
	ch := startServer(t, 64, serializer.NewBinarySerializer())
	ep, err := ch.Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer ep.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = ep.Read(ctx, make([]byte, 8))
	if !errors.Is(err, channel.ErrInterrupted) {
		t.Fatalf("Expected ErrInterrupted, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Read returned after %v", elapsed)
	}
}

// TestRPCCancelWithoutDeadline cancels a read whose context has no deadline.
// The server must stop reading at once, otherwise it would swallow the next
// frame.
func TestRPCCancelWithoutDeadline(t *testing.T) {
	ch := startServer(t, 64, serializer.NewBinarySerializer())
	a, err := ch.Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer a.Close()
	b, err := ch.Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	_, err = b.Read(ctx, make([]byte, 16))
	if !errors.Is(err, channel.ErrInterrupted) {
		t.Fatalf("Expected ErrInterrupted, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Read returned after %v", elapsed)
	}

	bg, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if _, err := a.Write(bg, []byte("hello")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	msg, err := channel.ReadMessage(bg, b, 16)
	if err != nil || string(msg) != "hello" {
		t.Errorf("Expected %q, got %q, %v", "hello", msg, err)
	}
}

func TestRPCShortReadBuffer(t *testing.T) {
	ch := startServer(t, 64, serializer.NewBinarySerializer())
	a, err := ch.Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	b, err := ch.Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	ctx := context.Background()
	if _, err := a.Write(ctx, []byte("hello")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// the server never returns more than requested, so the frame arrives in pieces
	buf := make([]byte, 2)
	var got []byte
	for {
		n, err := b.Read(ctx, buf)
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if n == 0 {
			break
		}
		got = append(got, buf[:n]...)
	}
	if string(got) != "hello" {
		t.Errorf("Expected hello, got %q", got)
	}
}

func TestRPCFlagsMirror(t *testing.T) {
	ch := startServer(t, 64, serializer.NewBinarySerializer())
	ep, err := ch.Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := ep.SetTransform(transform.Base64, true); err != nil {
		t.Fatalf("SetTransform failed: %v", err)
	}
	if !ep.Flags().Base64 {
		t.Errorf("Expected base64 to be enabled")
	}
	if err := ep.SetTransform(transform.Kind(0x42), true); !errors.Is(err, channel.ErrInvalidControl) {
		t.Errorf("Expected ErrInvalidControl, got %v", err)
	}
	if flags := ep.Flags(); flags.Rot13 || flags.Reverse || !flags.Base64 {
		t.Errorf("Unexpected flags after rejected control: %s", flags)
	}
}

func TestRPCInfo(t *testing.T) {
	ch := startServer(t, 128, serializer.NewJSONSerializer())
	a, err := ch.Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := a.Write(context.Background(), []byte("abc")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	info, err := ch.Info()
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.Directions[0].Capacity != 128 {
		t.Errorf("Expected capacity 128, got %d", info.Directions[0].Capacity)
	}
	if info.OpenEndpoints != 1 {
		t.Errorf("Expected 1 open endpoint, got %d", info.OpenEndpoints)
	}
	if info.Directions[0].UsedBytes != 7 {
		t.Errorf("Expected 7 used bytes in bufA, got %d", info.Directions[0].UsedBytes)
	}
}
