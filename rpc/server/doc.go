// Package server implements the RPC server of dIPC. It hosts any number of
// duplex channels, each addressed by a channel ID, and lets remote clients
// open endpoints on them.
//
// The package focuses on:
//   - Server-side RPC request handling for channel and endpoint operations
//   - Adapter pattern to decouple channel logic from RPC mechanisms
//   - Handle bookkeeping: endpoints opened by a client are bound to its
//     session and released when the session ends
//   - Prometheus metrics for requests, latency and buffer occupancy
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle method that processes incoming requests against a
//     channel.IChannel.
//
//   - NewIChannelServerAdapter: Factory function creating the adapter that
//     translates RPC requests to channel.IChannel and channel.IEndpoint calls.
//
//   - HandleRegistry: Maps the handles returned by open requests to endpoints,
//     the channel and the session they belong to.
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     transport and serializer mechanisms.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Channels: []common.ServerChannel{
//	    {ChannelID: 1, Config: channel.Config{BufferSize: 4096, MaxEndpoints: 2}},
//	  },
//	  Endpoint:        "/tmp/dipc.sock",
//	  MetricsEndpoint: ":9100",
//	  LogLevel:        "info",
//	}
//
//	s := server.NewRPCServer(
//	  config,
//	  unix.NewUnixDefaultServerTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Blocking calls:
//
//	Reads and writes block on the server until they can proceed. A call is
//	bounded by the wait time the client sends along (derived from its context
//	deadline), by TimeoutSecond and by the lifetime of the client connection.
//	A cancel request naming the handle and call id ends it early. A bounded
//	call that runs out of time or is cancelled returns channel.ErrInterrupted.
//
// Thread Safety:
//
//	The server implementation is thread-safe and can handle concurrent requests
//	across multiple connections. The Serve method should be called only once.
package server
