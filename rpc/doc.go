// Package rpc exposes duplex channels to other processes. It acts as the
// communication layer between clients and a server hosting the channels,
// so two processes can each hold one endpoint of the same channel.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the Message protocol, configuration structures, and logging.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, Unix sockets, HTTP). Stream transports treat every connection as a
//     session that owns the endpoints opened through it.
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB, CBOR)
//     for converting between Message objects and byte arrays.
//
//   - client: RPC client implementing the channel.IChannel interface, so remote
//     endpoints are used exactly like local ones.
//
//   - server: RPC server components that host the channels, map handles to
//     endpoints and export request metrics.
package rpc
