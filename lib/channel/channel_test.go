package channel_test

import (
	"errors"
	"testing"

	"github.com/ValentinKolb/dIPC/lib/channel"
	chtesting "github.com/ValentinKolb/dIPC/lib/channel/testing"
)

func newLocal(bufferSize int) channel.IChannel {
	ch, err := channel.New(channel.Config{BufferSize: bufferSize})
	if err != nil {
		panic(err)
	}
	return ch
}

func TestDuplexChannel(t *testing.T) {
	chtesting.RunChannelTests(t, "DuplexChannel", newLocal)
}

func BenchmarkDuplexChannel(b *testing.B) {
	chtesting.RunChannelBenchmarks(b, "DuplexChannel", newLocal)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		config channel.Config
		valid  bool
	}{
		{"defaults", channel.Config{}, true},
		{"minimum buffer", channel.Config{BufferSize: 6}, true},
		{"buffer too small", channel.Config{BufferSize: 5}, false},
		{"single endpoint", channel.Config{MaxEndpoints: 1}, true},
		{"three endpoints", channel.Config{MaxEndpoints: 3}, false},
		{"negative endpoints", channel.Config{MaxEndpoints: -1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := channel.New(tt.config)
			if tt.valid && err != nil {
				t.Errorf("Expected config to be valid, got %v", err)
			}
			if !tt.valid && !errors.Is(err, channel.ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestSingleEndpointLimit(t *testing.T) {
	ch, err := channel.New(channel.Config{MaxEndpoints: 1})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ep, err := ch.Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer ep.Close()

	if _, err := ch.Open(); !errors.Is(err, channel.ErrChannelBusy) {
		t.Errorf("Expected ErrChannelBusy, got %v", err)
	}
}

func TestInfoDefaults(t *testing.T) {
	ch, err := channel.New(channel.Config{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	info, err := ch.Info()
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.MaxEndpoints != channel.DefaultMaxEndpoints {
		t.Errorf("Expected %d endpoint slots, got %d", channel.DefaultMaxEndpoints, info.MaxEndpoints)
	}
	if len(info.Directions) != 2 {
		t.Fatalf("Expected 2 directions, got %d", len(info.Directions))
	}
	for _, d := range info.Directions {
		if d.Capacity != channel.DefaultBufferSize || d.FreeBytes != channel.DefaultBufferSize-1 || d.UsedBytes != 0 {
			t.Errorf("Unexpected fresh direction %+v", d)
		}
		if d.State != channel.StateIdle.String() {
			t.Errorf("Expected state %q, got %q", channel.StateIdle, d.State)
		}
	}
}

func TestErrorCodes(t *testing.T) {
	err := channel.NewError(channel.RetCInterrupted, "wait for data: context canceled")
	if !errors.Is(err, channel.ErrInterrupted) {
		t.Errorf("Expected errors.Is to match on the code")
	}
	if errors.Is(err, channel.ErrClosed) {
		t.Errorf("Expected errors.Is not to match a different code")
	}
	if channel.CodeOf(nil) != channel.RetCOK {
		t.Errorf("Expected nil to map to RetCOK")
	}
	if channel.CodeOf(errors.New("boom")) != channel.RetCInternal {
		t.Errorf("Expected a foreign error to map to RetCInternal")
	}
}
