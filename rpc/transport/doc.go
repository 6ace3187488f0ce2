// Package transport defines the interfaces and abstractions for RPC communication
// in dIPC. It provides a common contract that all transport implementations
// must fulfill, enabling protocol-agnostic communication.
//
// The package focuses on:
//   - Defining clear interfaces for client and server transport layers
//   - Supporting channel-based request routing
//   - Sessions: stream transports tie every request to the connection it
//     arrived on, so the server can release what a vanished client held
//   - Enabling multiple transport implementations (HTTP, TCP, Unix sockets)
//
// Key Components:
//
//   - IRPCClientTransport: Interface for client-side transport implementations that
//     handles connection management and request sending.
//
//   - IRPCServerTransport: Interface for server-side transport implementations that
//     receives requests and routes them to appropriate handlers.
//
//   - ServerHandleFunc: Function type for request handling callbacks.
//
//   - SessionCloseFunc: Callback for connections that ended.
package transport
