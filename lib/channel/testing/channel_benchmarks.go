package testing

import (
	"bytes"
	"context"
	"testing"

	"github.com/ValentinKolb/dIPC/lib/channel"
	"github.com/ValentinKolb/dIPC/lib/transform"
)

// RunChannelBenchmarks runs all benchmarks for a channel implementation
func RunChannelBenchmarks(b *testing.B, name string, factory ChannelFactory) {
	b.Run(name+"/SmallMessages", func(b *testing.B) {
		benchmarkRoundTrip(b, factory(4096), 16, transform.Flags{})
	})

	b.Run(name+"/LargeMessages", func(b *testing.B) {
		benchmarkRoundTrip(b, factory(4096), 16*1024, transform.Flags{})
	})

	b.Run(name+"/AllTransforms", func(b *testing.B) {
		benchmarkRoundTrip(b, factory(4096), 1024, transform.Flags{Rot13: true, Base64: true, Reverse: true})
	})
}

// benchmarkRoundTrip writes b.N messages of size bytes on one endpoint and
// reads them on the other one concurrently
func benchmarkRoundTrip(b *testing.B, ch channel.IChannel, size int, flags transform.Flags) {
	ctx := context.Background()
	w, r := openPair(b, ch)

	for _, kind := range []struct {
		k  transform.Kind
		on bool
	}{{transform.Rot13, flags.Rot13}, {transform.Base64, flags.Base64}, {transform.Reverse, flags.Reverse}} {
		if err := w.SetTransform(kind.k, kind.on); err != nil {
			b.Fatalf("SetTransform failed: %v", err)
		}
	}

	msg := bytes.Repeat([]byte("x"), size)
	done := make(chan struct{})

	b.SetBytes(int64(size))
	b.ResetTimer()

	go func() {
		defer close(done)
		for i := 0; i < b.N; i++ {
			if _, err := channel.ReadMessage(ctx, r, 4096); err != nil {
				b.Errorf("ReadMessage failed: %v", err)
				return
			}
		}
	}()

	for i := 0; i < b.N; i++ {
		if _, err := w.Write(ctx, msg); err != nil {
			b.Fatalf("Write failed: %v", err)
		}
	}
	<-done
}
