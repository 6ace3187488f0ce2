// Package http implements an HTTP-based transport layer for RPC communication
// in dIPC. It provides concrete implementations of the transport interfaces
// defined in the parent package.
//
// The package focuses on:
//   - Client-side HTTP transport for sending RPC requests to servers
//   - Server-side HTTP transport for receiving and handling RPC requests
//   - Request routing based on channel IDs (POST /{channelId})
//
// HTTP is sessionless: the server handles every request with session 0, so
// endpoints opened over HTTP are never released on behalf of the client and
// must be closed explicitly. A client that hangs up still interrupts its own
// blocked request through the request context.
//
// Key Components:
//
//   - httpClientTransport: Implements IRPCClientTransport. It sends every
//     request to the active endpoint and moves on to the next one only when a
//     dial fails, because handles are bound to the server that issued them.
//
//   - httpServerTransport: Implements IRPCServerTransport, setting up
//     an HTTP server that routes incoming requests to the handler
//     based on the channel ID specified in the URL path.
package http
