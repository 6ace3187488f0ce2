package common

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ValentinKolb/dIPC/lib/channel"
)

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerChannel describes one channel hosted by the server
type ServerChannel struct {
	// ChannelID is the ID clients address the channel with
	ChannelID uint64
	// Config is the ring buffer size and endpoint limit of the channel
	Config channel.Config
}

// ServerConfig holds all configuration parameters of the RPC server.
type ServerConfig struct {
	// the channels hosted by the server
	Channels []ServerChannel

	// maximum time in seconds a single request may block, 0 disables the limit
	TimeoutSecond int64

	// transport settings
	Endpoint       string
	WorkersPerConn int

	// address of the prometheus metrics endpoint, empty disables it
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	workers := "default"
	if c.WorkersPerConn != 0 {
		workers = strconv.Itoa(c.WorkersPerConn)
	}
	addField("Workers Per Conn", workers)
	if c.MetricsEndpoint != "" {
		addField("Metrics Endpoint", c.MetricsEndpoint)
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	// Channels
	addSection("Channels")
	for _, ch := range c.Channels {
		cfg := ch.Config.WithDefaults()
		addField(strconv.FormatUint(ch.ChannelID, 10),
			fmt.Sprintf("%d byte buffers, %d endpoints", cfg.BufferSize, cfg.MaxEndpoints))
	}

	return sb.String()
}

// ParseChannels parses a channel list like "1=4096,2=65536:1" where each item is
// id=bufferSize[:maxEndpoints]
func ParseChannels(spec string) ([]ServerChannel, error) {
	var channels []ServerChannel
	seen := make(map[uint64]bool)

	for _, item := range strings.Split(spec, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		idStr, rest, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("invalid channel %q: expected id=bufferSize[:maxEndpoints]", item)
		}
		id, err := strconv.ParseUint(strings.TrimSpace(idStr), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid channel id %q: %w", idStr, err)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate channel id %d", id)
		}
		seen[id] = true

		sizeStr, maxStr, hasMax := strings.Cut(rest, ":")
		size, err := strconv.Atoi(strings.TrimSpace(sizeStr))
		if err != nil {
			return nil, fmt.Errorf("invalid buffer size %q for channel %d: %w", sizeStr, id, err)
		}
		config := channel.Config{BufferSize: size, MaxEndpoints: channel.DefaultMaxEndpoints}
		if hasMax {
			if config.MaxEndpoints, err = strconv.Atoi(strings.TrimSpace(maxStr)); err != nil {
				return nil, fmt.Errorf("invalid endpoint limit %q for channel %d: %w", maxStr, id, err)
			}
		}
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("channel %d: %w", id, err)
		}

		channels = append(channels, ServerChannel{ChannelID: id, Config: config})
	}

	if len(channels) == 0 {
		return nil, fmt.Errorf("no channels configured")
	}
	return channels, nil
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Endpoints     []string
	TimeoutSecond int
	RetryCount    int
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.RetryCount))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
