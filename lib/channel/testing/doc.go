// Package testing provides standardised tests and benchmarks for channel
// implementations that satisfy the channel.IChannel interface.
//
// The same suite runs against the in-process channel and against the RPC
// client, so both are held to the same observable behavior.
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func(bufferSize int) channel.IChannel {
//		ch, _ := channel.New(channel.Config{BufferSize: bufferSize})
//		return ch
//	}
//
//	// Running the standard test suite
//	testing.RunChannelTests(t, "DuplexChannel", factory)
//
//	// Running performance benchmarks
//	testing.RunChannelBenchmarks(b, "DuplexChannel", factory)
package testing
