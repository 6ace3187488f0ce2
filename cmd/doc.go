// Package cmd implements the command-line interface for dIPC. It provides a
// hierarchical command structure with operations for running the server,
// interacting with it as a client and running the in-process demos.
//
// The package is organized into several subpackages:
//
//   - serve: Commands for starting and configuring the dIPC server
//   - endpoint: Commands that open a remote endpoint (send, recv, pipe, info, perf)
//   - demo: In-process duplex and producer/consumer demos
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dipc -help for a list of all commands.
package cmd
