// Package base provides a foundation for stream transport layers in dIPC,
// implementing core functionality for RPC communication independent of the
// specific network protocol (TCP, Unix sockets). It serves as a base layer
// that is extended with protocol-specific connectors.
//
// The package focuses on:
//   - Protocol-agnostic client and server transport implementations
//   - Frame-based message protocol with channelID and requestID tracking
//   - Sessions: every server side connection is a session with its own
//     context that is cancelled when the connection ends
//   - Automatic request routing and response correlation
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific operations
//     that allow extending the base transport with different network protocols.
//
//   - clientTransport: Core client implementation. All requests share one
//     connection because endpoints are bound to the session they were opened
//     on; further endpoints are used for failover. Only requests that never
//     reached the server are retried.
//
//   - serverTransport: Core server implementation that accepts connections,
//     runs requests in a per-connection worker pool and routes them to the
//     handler based on channelID.
//
// Performance Optimizations:
//
//   - Buffer Pooling: The server uses a sync.Pool to reuse buffers, reducing
//     GC pressure and memory allocations.
//
//   - Asynchronous Processing: The client sends requests and correlates responses
//     asynchronously using unique request IDs, so blocked reads do not hold up
//     other calls on the same connection.
//
//   - Frame Batching: The transport uses net.Buffers to reduce syscalls when
//     writing frames, combining header and payload into a single write operation.
//
// Thread Safety:
//
//	All public methods are thread-safe. The client transport uses atomic operations
//	and mutexes to ensure concurrent access safety, while the server creates a
//	dedicated goroutine for each connection.
package base
