// Package tcp implements TCP socket-based transport for the dIPC RPC system.
// It provides concrete implementations of the base package's connector
// interfaces for TCP connections.
//
// This package builds on the base package's transport functionality, inheriting
// buffer reuse, request routing and per-connection sessions. See the base
// package documentation for the underlying transport mechanisms.
//
// Key Components:
//
//   - clientConnector: TCP-specific implementation of base.IClientConnector
//
//   - serverConnector: TCP-specific implementation of base.IServerConnector.
//     Accepted connections get TCP_NODELAY and keep-alive, so that a client
//     that vanished ends its session.
//
// The default server buffer size is set to 512 KB, which provides good performance
// for typical workloads, but can be customized for specific use cases.
package tcp
