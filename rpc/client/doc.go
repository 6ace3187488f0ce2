// Package client implements the RPC client of dIPC.
// It provides an implementation of the channel.IChannel interface whose
// endpoints live on a remote server and are driven via RPC.
//
// The package focuses on:
//   - Transparent remote access to duplex channels
//   - Integration with the transport and serialization layers
//   - Conversion of error codes in responses back into channel errors
//
// Key Components:
//
//   - NewRPCChannel: Factory function that creates a client implementing the
//     channel.IChannel interface. Open returns endpoints satisfying
//     channel.IEndpoint; every call is forwarded to the server.
//
// Usage Example:
//
//	config := common.ClientConfig{
//		Endpoints:     []string{"/tmp/dipc.sock"},
//		TimeoutSecond: 5,
//		RetryCount:    3,
//	}
//
//	ch, _ := client.NewRPCChannel(1, config, unix.NewUnixClientTransport(), serializer.NewBinarySerializer())
//	ep, _ := ch.Open()
//	defer ep.Close()
//
//	ep.SetTransform(transform.Rot13, true)
//	ep.Write(ctx, []byte("hello"))
//
// Blocking:
//
//	Read and Write block on the server. The deadline of the passed context
//	(or TimeoutSecond, whichever ends first) is sent along with the request
//	so the server stops waiting and answers with channel.ErrInterrupted. A
//	context without deadline and a TimeoutSecond of 0 wait indefinitely.
//	Cancelling the context sends a cancel request for that call; the server
//	interrupts it and its response (channel.ErrInterrupted) is still awaited.
//
// Thread Safety:
//
//	All client implementations are thread-safe and can be used concurrently from
//	multiple goroutines without additional synchronization.
package client
