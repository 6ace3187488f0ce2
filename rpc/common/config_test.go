package common

import (
	"strings"
	"testing"

	"github.com/ValentinKolb/dIPC/lib/channel"
)

func TestServerConfigStringShowsDefaults(t *testing.T) {
	config := ServerConfig{
		Channels: []ServerChannel{
			{ChannelID: 1, Config: channel.Config{}},
			{ChannelID: 2, Config: channel.Config{BufferSize: 64, MaxEndpoints: 1}},
		},
		Endpoint: "/tmp/dipc.sock",
	}

	s := config.String()
	for _, want := range []string{
		"4096 byte buffers, 2 endpoints",
		"64 byte buffers, 1 endpoints",
		"Workers Per Conn      : default",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("Expected %q in\n%s", want, s)
		}
	}
	if strings.Contains(s, "0 endpoints") {
		t.Errorf("Unexpected raw zero endpoint limit in\n%s", s)
	}
}

func TestParseChannels(t *testing.T) {
	channels, err := ParseChannels("1=4096, 2=64:1")
	if err != nil {
		t.Fatalf("ParseChannels failed: %v", err)
	}
	if len(channels) != 2 {
		t.Fatalf("Expected 2 channels, got %d", len(channels))
	}
	if c := channels[0]; c.ChannelID != 1 || c.Config.BufferSize != 4096 || c.Config.MaxEndpoints != channel.DefaultMaxEndpoints {
		t.Errorf("Unexpected first channel %+v", c)
	}
	if c := channels[1]; c.ChannelID != 2 || c.Config.BufferSize != 64 || c.Config.MaxEndpoints != 1 {
		t.Errorf("Unexpected second channel %+v", c)
	}

	for _, bad := range []string{"", "1", "x=64", "1=64,1=64", "1=abc", "1=64:x", "1=64:3"} {
		if _, err := ParseChannels(bad); err == nil {
			t.Errorf("Expected an error for %q", bad)
		}
	}
}
