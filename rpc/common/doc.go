// Package common provides core data structures and utilities shared by the
// RPC client, server and transports of dIPC. It defines the wire message,
// the configuration structures and the logger setup used by the other
// packages.
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication. Requests and
//     responses share the same struct, which fields are used depends on the
//     MessageType. Responses carry the numeric channel.RetCode of an error so
//     the client can hand the same error values to its callers.
//
//   - MessageType: Enumeration of the supported operations, split into
//     channel operations (open, info) and endpoint operations (close, write,
//     read, setTransform, cancel). Writes and reads carry a call id that a
//     later cancel request refers to.
//
//   - ServerConfig: Configuration of the server: hosted channels, transport
//     endpoint, request timeout and metrics endpoint.
//
//   - ClientConfig: Configuration for client components, controlling
//     endpoints, timeouts and retry behavior.
//
//   - Logger: Custom logger factory for the dragonboat logger registry that
//     gives all packages a consistent output format.
package common
