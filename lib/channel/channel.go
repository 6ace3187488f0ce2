package channel

import (
	"fmt"
	"sync"

	"github.com/ValentinKolb/dIPC/lib/ring"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/rcrowley/go-metrics"
)

// Logger is the logger of the channel package
var Logger = logger.GetLogger("channel")

const (
	// DefaultBufferSize is the ring buffer capacity used when none is configured
	DefaultBufferSize = 4096

	// DefaultMaxEndpoints is the endpoint limit used when none is configured
	DefaultMaxEndpoints = 2
)

// Config configures a DuplexChannel.
type Config struct {
	// BufferSize is the capacity of each of the two ring buffers in bytes.
	// One byte is reserved, so at most BufferSize-1 bytes are queued.
	BufferSize int `json:"buffer_size"`
	// MaxEndpoints is the number of endpoints that may be open at once (1 or 2).
	MaxEndpoints int `json:"max_endpoints"`
}

// WithDefaults fills in zero values with the package defaults
func (c Config) WithDefaults() Config {
	if c.BufferSize == 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.MaxEndpoints == 0 {
		c.MaxEndpoints = DefaultMaxEndpoints
	}
	return c
}

// Validate checks the config after defaults were applied
func (c Config) Validate() error {
	c = c.WithDefaults()
	if c.BufferSize < ring.MinCapacity {
		return NewError(RetCInvalidConfig, fmt.Sprintf("buffer size %d is below the minimum of %d", c.BufferSize, ring.MinCapacity))
	}
	if c.MaxEndpoints < 1 || c.MaxEndpoints > 2 {
		return NewError(RetCInvalidConfig, fmt.Sprintf("max endpoints must be 1 or 2, got %d", c.MaxEndpoints))
	}
	return nil
}

// --------------------------------------------------------------------------
// Duplex Channel
// --------------------------------------------------------------------------

// DuplexChannel is the in-process implementation of IChannel
type DuplexChannel struct {
	config   Config
	bufA     *direction
	bufB     *direction
	registry metrics.Registry

	mu    sync.Mutex
	slots []*Endpoint // nil entries are free
}

// New creates a channel and allocates both ring buffers
func New(config Config) (*DuplexChannel, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config = config.WithDefaults()

	registry := metrics.NewRegistry()
	bufA, err := newDirection("bufA", config.BufferSize, newDirectionStats("bufA", registry))
	if err != nil {
		return nil, NewError(RetCInvalidConfig, err.Error())
	}
	bufB, err := newDirection("bufB", config.BufferSize, newDirectionStats("bufB", registry))
	if err != nil {
		return nil, NewError(RetCInvalidConfig, err.Error())
	}

	Logger.Debugf("created channel with 2 x %d byte buffers and %d endpoint slots", config.BufferSize, config.MaxEndpoints)

	return &DuplexChannel{
		config:   config,
		bufA:     bufA,
		bufB:     bufB,
		registry: registry,
		slots:    make([]*Endpoint, config.MaxEndpoints),
	}, nil
}

// Config returns the effective configuration
func (c *DuplexChannel) Config() Config {
	return c.config
}

// Registry returns the registry holding the traffic statistics
func (c *DuplexChannel) Registry() metrics.Registry {
	return c.registry
}

// --------------------------------------------------------------------------
// Interface Methods (docu see IChannel)
// --------------------------------------------------------------------------

func (c *DuplexChannel) Open() (IEndpoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for slot, ep := range c.slots {
		if ep != nil {
			continue
		}
		ep = c.newEndpoint(slot)
		c.slots[slot] = ep
		Logger.Debugf("opened endpoint %d", slot)
		return ep, nil
	}
	return nil, NewError(RetCChannelBusy, fmt.Sprintf("all %d endpoint slots are taken", len(c.slots)))
}

func (c *DuplexChannel) Info() (ChannelInfo, error) {
	return ChannelInfo{
		MaxEndpoints:  c.config.MaxEndpoints,
		OpenEndpoints: c.OpenEndpoints(),
		Directions:    []DirectionInfo{c.bufA.info(), c.bufB.info()},
	}, nil
}

// OpenEndpoints returns the number of currently open endpoints
func (c *DuplexChannel) OpenEndpoints() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, ep := range c.slots {
		if ep != nil {
			n++
		}
	}
	return n
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// newEndpoint binds slot 0 to {out: bufA, in: bufB} and slot 1 to the mirror
func (c *DuplexChannel) newEndpoint(slot int) *Endpoint {
	out, in := c.bufA, c.bufB
	if slot == 1 {
		out, in = c.bufB, c.bufA
	}
	return &Endpoint{
		channel: c,
		slot:    slot,
		out:     out,
		in:      in,
		done:    make(chan struct{}),
	}
}

// release frees the slot held by ep
func (c *DuplexChannel) release(ep *Endpoint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.slots[ep.slot] == ep {
		c.slots[ep.slot] = nil
		Logger.Debugf("released endpoint %d", ep.slot)
	}
}
