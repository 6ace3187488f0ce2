package client

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dIPC/lib/channel"
	"github.com/ValentinKolb/dIPC/rpc/common"
	"github.com/ValentinKolb/dIPC/rpc/serializer"
	"github.com/ValentinKolb/dIPC/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc")

	// nextCall numbers the writes and reads sent by this process
	nextCall atomic.Uint64
)

// responseGrace is how long the client waits past a deadline it sent along,
// so that the server's own Interrupted response still arrives
const responseGrace = time.Second

// rpcClientAdapter is a struct that stores all data needed for an implementation of an RPC client
// Used by the rpcChannel and rpcEndpoint with composition pattern
type rpcClientAdapter struct {
	channelId  uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// requestContext derives the wait time sent to the server from the deadline
// of ctx and the configured timeout. The returned context does not end with
// ctx: it outlives the deadline by responseGrace, so that the server's own
// Interrupted response still arrives.
func (a *rpcClientAdapter) requestContext(ctx context.Context) (int64, context.Context, context.CancelFunc) {
	deadline, hasDeadline := ctx.Deadline()
	if a.config.TimeoutSecond > 0 {
		timeoutDeadline := time.Now().Add(time.Duration(a.config.TimeoutSecond) * time.Second)
		if !hasDeadline || timeoutDeadline.Before(deadline) {
			deadline, hasDeadline = timeoutDeadline, true
		}
	}
	detached := context.WithoutCancel(ctx)
	if !hasDeadline {
		sendCtx, cancel := context.WithCancel(detached)
		return 0, sendCtx, cancel
	}

	waitMs := max(time.Until(deadline).Milliseconds(), 1)
	sendCtx, cancel := context.WithDeadline(detached, deadline.Add(responseGrace))
	return waitMs, sendCtx, cancel
}

// invoke sends req with the wait time derived from ctx. Writes and reads
// carry a call id; when ctx is cancelled the server is asked to interrupt
// that call and its response is still awaited, so data the server already
// moved is not lost.
func (a *rpcClientAdapter) invoke(ctx context.Context, req *common.Message) (*common.Message, error) {
	waitMs, sendCtx, cancel := a.requestContext(ctx)
	defer cancel()

	if req.MsgType != common.MsgTWrite && req.MsgType != common.MsgTRead {
		stop := context.AfterFunc(ctx, cancel)
		defer stop()
		return invokeRPCRequest(sendCtx, a.channelId, req, a.transport, a.serializer)
	}

	req.WaitMs = waitMs
	req.Call = nextCall.Add(1)
	handle, call := req.Handle, req.Call

	finished := make(chan struct{})
	defer close(finished)
	stop := context.AfterFunc(ctx, func() {
		// the server ends the call at the same deadline on its own
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return
		}
		a.cancelCall(handle, call)
		select {
		case <-finished:
		case <-time.After(responseGrace):
			cancel()
		}
	})
	defer stop()

	resp, err := invokeRPCRequest(sendCtx, a.channelId, req, a.transport, a.serializer)
	if err != nil && resp == nil && ctx.Err() != nil {
		return nil, channel.NewError(channel.RetCInterrupted, fmt.Sprintf("%s call %d: %v", req.MsgType, call, err))
	}
	return resp, err
}

// cancelCall asks the server to interrupt a pending write or read
func (a *rpcClientAdapter) cancelCall(handle, call uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), responseGrace)
	defer cancel()
	if _, err := invokeRPCRequest(ctx, a.channelId, common.NewCancelRequest(handle, call), a.transport, a.serializer); err != nil {
		Logger.Debugf("cancel of call %d on handle %d failed: %v", call, handle, err)
	}
}

// invokeRPCRequest is a helper function used for all RPC Clients to send requests
// It takes a context, a channel ID, a request message, a transport layer and a serializer as parameters
// It returns a response message and an error if any occurs. For responses
// that carry a channel error both are returned, since some fields (like the
// number of bytes written) stay meaningful.
// This method also checks if the type of the response is the expected type
func invokeRPCRequest(ctx context.Context, channelId uint64, req *common.Message, transport transport.IRPCClientTransport, serializer serializer.IRPCSerializer) (*common.Message, error) {
	// Serialize the request
	reqBytes, err := serializer.Serialize(*req)
	if err != nil {
		return nil, err
	}

	// Send the request
	respBytes, err := transport.Send(ctx, channelId, reqBytes)
	if err != nil {
		return nil, err
	}

	// Deserialize the response
	resp := &common.Message{}
	if err := serializer.Deserialize(respBytes, resp); err != nil {
		return nil, fmt.Errorf("RPC IChannelAdapter - Error: %s", err)
	}

	// Check if the response is an error response
	if err := resp.AsError(); err != nil {
		return resp, err
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != req.MsgType {
		return nil, fmt.Errorf("RPC IChannelAdapter - Unexpected message type: %s, expected %s", resp.MsgType, req.MsgType)
	}

	return resp, nil
}
