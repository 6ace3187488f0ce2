package server

import (
	"context"
	"fmt"
	"time"

	"github.com/ValentinKolb/dIPC/lib/channel"
	"github.com/ValentinKolb/dIPC/lib/transform"
	"github.com/ValentinKolb/dIPC/rpc/common"
)

// maxReadLen caps the buffer a single read request may ask for
const maxReadLen = 16 * 1024 * 1024

// NewIChannelServerAdapter creates the adapter for one hosted channel.
// timeout bounds every blocking call, 0 disables the bound.
func NewIChannelServerAdapter(channelID uint64, registry *HandleRegistry, timeout time.Duration) IRPCServerAdapter {
	return &iChannelServerAdapterImpl{
		channelID: channelID,
		registry:  registry,
		timeout:   timeout,
	}
}

type iChannelServerAdapterImpl struct {
	channelID uint64
	registry  *HandleRegistry
	timeout   time.Duration
}

func (adapter *iChannelServerAdapterImpl) Handle(ctx context.Context, session uint64, req *common.Message, ch channel.IChannel) *common.Message {
	// Check for nil channel
	if ch == nil {
		return common.NewErrorResponse(channel.RetCInternal, "handler: channel is nil")
	}

	// Handle different message types
	switch req.MsgType {
	case common.MsgTOpen:
		ep, err := ch.Open()
		if err != nil {
			return common.NewOpenResponse(0, 0, err)
		}
		handle := adapter.registry.Register(session, adapter.channelID, ep)
		return common.NewOpenResponse(handle, ep.Slot(), nil)

	case common.MsgTInfo:
		info, err := ch.Info()
		return common.NewInfoResponse(info, err)

	case common.MsgTClose:
		ep, ok := adapter.registry.Remove(session, adapter.channelID, req.Handle)
		if !ok {
			return common.NewCloseResponse(adapter.unknownHandle(req.Handle))
		}
		return common.NewCloseResponse(ep.Close())

	case common.MsgTWrite:
		ep, ok := adapter.registry.Lookup(session, adapter.channelID, req.Handle)
		if !ok {
			return common.NewWriteResponse(0, adapter.unknownHandle(req.Handle))
		}
		waitCtx, cancel := adapter.waitContext(ctx, req.WaitMs)
		defer cancel()
		defer adapter.registry.BeginCall(session, req.Handle, req.Call, cancel)()
		n, err := ep.Write(waitCtx, req.Value)
		return common.NewWriteResponse(n, err)

	case common.MsgTRead:
		ep, ok := adapter.registry.Lookup(session, adapter.channelID, req.Handle)
		if !ok {
			return common.NewReadResponse(nil, adapter.unknownHandle(req.Handle))
		}
		waitCtx, cancel := adapter.waitContext(ctx, req.WaitMs)
		defer cancel()
		defer adapter.registry.BeginCall(session, req.Handle, req.Call, cancel)()
		buf := make([]byte, min(req.MaxLen, maxReadLen))
		n, err := ep.Read(waitCtx, buf)
		return common.NewReadResponse(buf[:n], err)

	case common.MsgTSetTransform:
		ep, ok := adapter.registry.Lookup(session, adapter.channelID, req.Handle)
		if !ok {
			return common.NewSetTransformResponse(adapter.unknownHandle(req.Handle))
		}
		return common.NewSetTransformResponse(ep.SetTransform(transform.Kind(req.Kind), req.Enabled))

	case common.MsgTCancel:
		if _, ok := adapter.registry.Lookup(session, adapter.channelID, req.Handle); !ok {
			return common.NewCancelResponse(adapter.unknownHandle(req.Handle))
		}
		if !adapter.registry.CancelCall(session, req.Handle, req.Call) {
			Logger.Debugf("no running call %d on handle %d, remembering the cancel", req.Call, req.Handle)
		}
		return common.NewCancelResponse(nil)

	default:
		return common.NewErrorResponse(channel.RetCInternal,
			fmt.Sprintf("RPC IChannelAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// waitContext bounds a blocking call by the client's wait time and the server timeout
func (adapter *iChannelServerAdapterImpl) waitContext(ctx context.Context, waitMs int64) (context.Context, context.CancelFunc) {
	wait := adapter.timeout
	if waitMs > 0 {
		clientWait := time.Duration(waitMs) * time.Millisecond
		if wait == 0 || clientWait < wait {
			wait = clientWait
		}
	}
	if wait == 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, wait)
}

// unknownHandle is the error for handles that were closed or never existed
func (adapter *iChannelServerAdapterImpl) unknownHandle(handle uint64) error {
	return channel.NewError(channel.RetCClosed, fmt.Sprintf("unknown handle %d on channel %d", handle, adapter.channelID))
}
