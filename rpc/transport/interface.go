package transport

import (
	"context"

	"github.com/ValentinKolb/dIPC/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests
// This function is called by a server transport layer when a request is received.
// ctx is cancelled once the connection the request arrived on is gone.
// session identifies that connection; it is 0 for transports without
// connections (HTTP).
type ServerHandleFunc func(ctx context.Context, session uint64, channelID uint64, req []byte) (resp []byte)

// SessionCloseFunc is called once a session has ended and all its requests
// returned
type SessionCloseFunc func(session uint64)

// IRPCServerTransport is the interface for the RPC transport layer
type IRPCServerTransport interface {
	// RegisterHandler registers the request handler and the callback for ended
	// sessions. onClose may be nil.
	// The transport layer is responsible for routing the request to the appropriate channel
	RegisterHandler(handler ServerHandleFunc, onClose SessionCloseFunc)
	// Listen starts the transport layer and listens for incoming requests.
	// It blocks until Shutdown is called or the listener fails.
	Listen(config common.ServerConfig) error
	// Shutdown stops listening and closes all connections
	Shutdown() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a request to the server and returns the response.
	// It waits for the response until ctx is done.
	Send(ctx context.Context, channelID uint64, req []byte) (resp []byte, err error)
	// Close closes the transport connection
	Close() error
}
