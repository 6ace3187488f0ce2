package base

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dIPC/rpc/common"
	"github.com/ValentinKolb/dIPC/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport/rpc")

// errNotSent marks failures that happened before the request reached the
// server; only those are retried
var errNotSent = errors.New("request not sent")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection based on the provided configuration
	Connect(endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// responseResult contains the result of a request
type responseResult struct {
	data []byte
	err  error
}

// clientConnection represents a single net connection
type clientConnection struct {
	conn         net.Conn
	endpoint     string
	stopCh       chan struct{} // Close signal for the reader goroutine
	requestChans *xsync.MapOf[uint64, chan responseResult]
	connMu       sync.Mutex // Protects the connection itself
	parent       *clientTransport
}

// clientTransport implements the core client transport functionality
// independent of the specific transport medium (unix, tcp, etc.).
//
// All requests use one connection at a time: the server binds endpoints to
// the connection (session) they were opened on, so spreading requests over
// several connections would lose them. The other endpoints are failover
// targets.
type clientTransport struct {
	connector     IClientConnector
	config        common.ClientConfig
	connections   []*clientConnection
	connectionsMu sync.RWMutex
	current       atomic.Uint64 // index of the active connection
	nextRequestID atomic.Uint64 // counter for unique request IDs
	stopping      atomic.Bool   // Signals shutdown
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{
		connector: connector,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if len(config.Endpoints) == 0 {
		return fmt.Errorf("no endpoints provided")
	}

	// Close all existing connections
	t.closeConnections()

	t.config = config
	t.stopping.Store(false)
	t.current.Store(0)

	connections := make([]*clientConnection, 0, len(config.Endpoints))
	for _, endpoint := range config.Endpoints {
		clientConn := &clientConnection{
			endpoint:     endpoint,
			stopCh:       make(chan struct{}),
			requestChans: xsync.NewMapOf[uint64, chan responseResult](),
			parent:       t,
		}

		// Establish the initial connection using reconnect
		if err := clientConn.reconnect(); err != nil {
			Logger.Warningf("Failed to connect to %s: %v", endpoint, err)
			continue
		}
		Logger.Infof("Connected to %s", endpoint)

		connections = append(connections, clientConn)
		go clientConn.readResponses()
	}

	if len(connections) == 0 {
		return fmt.Errorf("failed to connect to any endpoint")
	}

	t.connectionsMu.Lock()
	t.connections = connections
	t.connectionsMu.Unlock()

	Logger.Infof("Connected to %d out of %d endpoints using %s transport",
		len(connections), len(config.Endpoints), t.connector.GetName())

	return nil
}

func (t *clientTransport) Send(ctx context.Context, channelID uint64, req []byte) (resp []byte, err error) {
	requestID := t.nextRequestID.Add(1)

	// We always try at least once, and up to RetryCount times
	maxRetries := max(t.config.RetryCount, 1)

	// Initial backoff duration in milliseconds
	backoffMs := 50

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		conn := t.activeConnection()
		if conn == nil {
			return nil, fmt.Errorf("no active connections available")
		}

		data, err := conn.send(ctx, channelID, requestID, req)
		if err == nil {
			return data, nil
		}

		// the server may already act on a request that was sent, so only
		// requests that never left the client are repeated
		if !errors.Is(err, errNotSent) {
			return nil, err
		}
		lastErr = err
		Logger.Debugf("Request attempt %d/%d failed: %v", i+1, maxRetries, err)
		t.failover(conn)

		if i < maxRetries-1 {
			// Exponential backoff with a small random jitter (+-10%)
			jitter := float64(backoffMs) * (0.9 + 0.2*rand.Float64())
			select {
			case <-time.After(time.Duration(jitter) * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoffMs *= 2
		}
	}

	return nil, fmt.Errorf("failed to send request after %d attempts: %w", maxRetries, lastErr)
}

func (t *clientTransport) Close() error {
	t.stopping.Store(true)
	t.closeConnections()
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// activeConnection returns the connection all requests currently use
func (t *clientTransport) activeConnection() *clientConnection {
	t.connectionsMu.RLock()
	defer t.connectionsMu.RUnlock()

	if len(t.connections) == 0 {
		return nil
	}
	return t.connections[t.current.Load()%uint64(len(t.connections))]
}

// failover moves to the next connection if failed is still the active one.
// A single connection is reconnected instead.
func (t *clientTransport) failover(failed *clientConnection) {
	t.connectionsMu.RLock()
	n := uint64(len(t.connections))
	t.connectionsMu.RUnlock()
	if n == 0 {
		return
	}

	cur := t.current.Load()
	if t.activeConnection() != failed {
		return
	}
	if n > 1 {
		t.current.CompareAndSwap(cur, cur+1)
		Logger.Warningf("Failing over from %s", failed.endpoint)
		return
	}
	if err := failed.reconnect(); err != nil {
		Logger.Errorf("Failed to reconnect to %s: %v", failed.endpoint, err)
		return
	}
	go failed.readResponses()
}

// closeConnections closes all active connections
func (t *clientTransport) closeConnections() {
	t.connectionsMu.Lock()
	defer t.connectionsMu.Unlock()

	for _, conn := range t.connections {
		// Signal reader goroutine to stop
		close(conn.stopCh)

		conn.connMu.Lock()
		if conn.conn != nil {
			conn.conn.Close()
		}
		conn.connMu.Unlock()
	}

	t.connections = nil
}

// send writes one request and waits for its response
func (c *clientConnection) send(ctx context.Context, channelID, requestID uint64, req []byte) ([]byte, error) {
	// Create a channel for the response and register the request
	respCh := make(chan responseResult, 1)
	c.requestChans.Store(requestID, respCh)
	defer c.requestChans.Delete(requestID)

	// Lock the connection only for writing
	c.connMu.Lock()
	conn := c.conn
	if conn == nil {
		c.connMu.Unlock()
		return nil, fmt.Errorf("%w: connection to %s is closed", errNotSent, c.endpoint)
	}
	if c.parent.config.TimeoutSecond > 0 {
		timeout := time.Duration(c.parent.config.TimeoutSecond) * time.Second
		_ = conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	err := writeFrame(conn, channelID, requestID, req)
	c.connMu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("%w: %v", errNotSent, err)
	}

	// Wait for response or until the caller gives up
	select {
	case result := <-respCh:
		return result.data, result.err
	case <-ctx.Done():
		return nil, fmt.Errorf("request timed out: %w", ctx.Err())
	}
}

// readResponses reads responses in a loop and distributes them to waiting
// requests. It returns when the connection fails or the transport stops; all
// requests still waiting then fail.
func (c *clientConnection) readResponses() {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return
	}

	for {
		_, requestID, data, err := readFrame(conn, nil)
		if err != nil {
			select {
			case <-c.stopCh:
			default:
				Logger.Warningf("Connection to %s failed: %v", c.endpoint, err)
			}
			c.failPending(fmt.Errorf("error reading response: %w", err))

			c.connMu.Lock()
			if c.conn == conn {
				c.conn.Close()
				c.conn = nil
			}
			c.connMu.Unlock()
			return
		}

		// Find the corresponding request channel
		if respCh, found := c.requestChans.Load(requestID); found {
			respCh <- responseResult{data, nil}
		} else {
			Logger.Warningf("Received response for unknown request ID %d", requestID)
		}
	}
}

// failPending hands err to every request waiting on this connection
func (c *clientConnection) failPending(err error) {
	c.requestChans.Range(func(_ uint64, respCh chan responseResult) bool {
		select {
		case respCh <- responseResult{nil, err}:
		default:
		}
		return true
	})
}

// reconnect establishes or restores a connection to the endpoint
func (c *clientConnection) reconnect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	// Close the old connection if it exists
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	conn, err := c.parent.connector.Connect(c.endpoint)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.endpoint, err)
	}

	// Upgrade the connection with protocol-specific settings
	if err := c.parent.connector.UpgradeConnection(conn, c.parent.config); err != nil {
		conn.Close()
		return fmt.Errorf("failed to upgrade connection to %s: %w", c.endpoint, err)
	}

	c.conn = conn
	return nil
}
