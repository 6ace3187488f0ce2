package base

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dIPC/rpc/common"
	"github.com/ValentinKolb/dIPC/rpc/transport"
	"github.com/puzpuzpuz/xsync/v3"
)

// DefaultWorkersPerConn is used when the config does not set WorkersPerConn.
// Blocked reads and writes occupy a worker until they return, so the value
// bounds the number of calls one connection can have in flight.
const DefaultWorkersPerConn = 64

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport implements the core server transport functionality
type serverTransport struct {
	connector         IServerConnector
	handler           transport.ServerHandleFunc
	onClose           transport.SessionCloseFunc
	config            common.ServerConfig
	bufferPool        *sync.Pool
	maxWorkersPerConn int

	mu       sync.Mutex
	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	stopping atomic.Bool

	nextSession atomic.Uint64
	sessions    *xsync.MapOf[uint64, net.Conn]
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport with per-connection worker pool
func NewBaseServerTransport(connector IServerConnector, bufferSize int) transport.IRPCServerTransport {
	ctx, cancel := context.WithCancel(context.Background())
	return &serverTransport{
		connector: connector,
		ctx:       ctx,
		cancel:    cancel,
		sessions:  xsync.NewMapOf[uint64, net.Conn](),
		bufferPool: &sync.Pool{
			New: func() interface{} {
				return make([]byte, bufferSize)
			},
		},
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc, onClose transport.SessionCloseFunc) {
	t.handler = handler
	t.onClose = onClose
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	t.config = config

	// minimum one worker per connection
	t.maxWorkersPerConn = max(config.WorkersPerConn, 1)
	if config.WorkersPerConn == 0 {
		t.maxWorkersPerConn = DefaultWorkersPerConn
	}

	// Create listener using the connector
	listener, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	t.mu.Lock()
	t.listener = listener
	t.mu.Unlock()
	if t.stopping.Load() {
		_ = listener.Close()
		return nil
	}

	Logger.Infof("Starting %s server on %s with %d workers per connection",
		t.connector.GetName(), config.Endpoint, t.maxWorkersPerConn)

	// Accept connections
	for {
		conn, err := listener.Accept()
		if err != nil {
			if t.stopping.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			Logger.Errorf("Accept error: %v", err)
			continue
		}

		if err := t.connector.UpgradeConnection(conn); err != nil {
			Logger.Warningf("Failed to upgrade connection: %v", err)
		}

		// Handle the connection in a goroutine
		go t.handleConnection(conn)
	}
}

func (t *serverTransport) Shutdown() error {
	t.stopping.Store(true)
	t.cancel()

	t.mu.Lock()
	listener := t.listener
	t.mu.Unlock()

	var err error
	if listener != nil {
		err = listener.Close()
	}

	t.sessions.Range(func(_ uint64, conn net.Conn) bool {
		_ = conn.Close()
		return true
	})
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleConnection handles incoming requests for one connection. The
// connection is one session: when it ends the session context is cancelled,
// running requests are awaited and the close callback is invoked.
func (t *serverTransport) handleConnection(conn net.Conn) {
	session := t.nextSession.Add(1)
	t.sessions.Store(session, conn)
	ctx, cancel := context.WithCancel(t.ctx)

	defer func() {
		t.sessions.Delete(session)
		if t.onClose != nil {
			t.onClose(session)
		}
	}()
	defer conn.Close()

	// Timeout in seconds, applied to writing responses
	timeout := time.Duration(t.config.TimeoutSecond) * time.Second

	// Create a semaphore to limit concurrent workers for this connection
	// The buffered channel acts as a counting semaphore
	workerSemaphore := make(chan struct{}, t.maxWorkersPerConn)

	// Create a wait group to wait for all workers to finish
	var wg sync.WaitGroup

	// Create a mutex to protect writes to the connection
	var connMutex sync.Mutex

	// Handler function that processes requests in worker goroutines
	handleResponse := func(channelID, requestID uint64, data []byte) {
		// When done, release the semaphore and mark worker as done
		defer func() {
			<-workerSemaphore // Release semaphore slot
			wg.Done()         // Mark worker as done
		}()

		// Process the request
		start := time.Now()
		resp := t.handler(ctx, session, channelID, data)
		Logger.Debugf("Processed request for channel %d with requestID %d in session %d took %s", channelID, requestID, session, time.Since(start))

		// Protect writes to the connection with a mutex
		connMutex.Lock()
		defer connMutex.Unlock()

		if timeout > 0 {
			if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
				Logger.Errorf("Failed to set write deadline: %v", err)
				return
			}
		}

		// Write the response with the same requestID
		if err := writeFrame(conn, channelID, requestID, resp); err != nil {
			Logger.Errorf("Failed to write response: %v", err)
		}
	}

	// Function to handle incoming requests. There is no read deadline: an idle
	// connection is a session that may still hold endpoints.
	handleRequest := func() error {
		// Get a buffer from the pool
		buf := t.bufferPool.Get().([]byte)

		// Read the frame with requestID
		channelID, requestID, data, err := readFrame(conn, buf)
		if err != nil {
			t.bufferPool.Put(buf)
			return err
		}

		// Acquire a slot in the semaphore (blocks if maxWorkersPerConn is reached)
		select {
		case workerSemaphore <- struct{}{}:
		case <-ctx.Done():
			t.bufferPool.Put(buf)
			return ctx.Err()
		}

		wg.Add(1)

		// Process in a goroutine
		go func() {
			defer t.bufferPool.Put(buf)
			handleResponse(channelID, requestID, data)
		}()

		return nil
	}

	// Handle requests in a loop
	for {
		err := handleRequest()

		// Case EOF: Connection closed by client
		if err == io.EOF {
			Logger.Infof("Session %d closed by client", session)
			break
		}

		// Case error: log and close connection
		if err != nil {
			if !t.stopping.Load() {
				Logger.Errorf("Error handling request in session %d: %v", session, err)
			}
			break
		}
	}

	// Interrupt blocked calls of this session and wait for all workers to
	// finish before the session is closed
	cancel()
	wg.Wait()
}
