package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/dIPC/lib/channel"
	"github.com/ValentinKolb/dIPC/lib/transform"
	"github.com/ValentinKolb/dIPC/rpc/common"
	"github.com/ValentinKolb/dIPC/rpc/serializer"
	"github.com/ValentinKolb/dIPC/rpc/transport"
)

// NewRPCChannel creates a new RPC channel
// The function takes a channel ID, a config, a transport and a serializer as parameters
// It returns a channel.IChannel and an error
func NewRPCChannel(
	channelId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (channel.IChannel, error) {

	// Connect the transport
	if err := transport.Connect(config); err != nil {
		return nil, err
	}
	Logger.Debugf("RPC channel %d connected (endpoints %v)", channelId, config.Endpoints)

	return &rpcChannel{
		rpcClientAdapter{
			channelId:  channelId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}, nil
}

type rpcChannel struct {
	rpcClientAdapter
}

// rpcEndpoint is an endpoint held by the server on behalf of this client
type rpcEndpoint struct {
	rpcClientAdapter
	handle uint64
	slot   int

	flagsMu sync.Mutex
	flags   transform.Flags // mirror of the server side flags

	closed atomic.Bool
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the channel package in interface.go)
// --------------------------------------------------------------------------

func (c *rpcChannel) Open() (channel.IEndpoint, error) {
	resp, err := c.invoke(context.Background(), common.NewOpenRequest())
	if err != nil {
		return nil, err
	}
	return &rpcEndpoint{
		rpcClientAdapter: c.rpcClientAdapter,
		handle:           resp.Handle,
		slot:             int(resp.Slot),
	}, nil
}

func (c *rpcChannel) Info() (info channel.ChannelInfo, err error) {
	resp, err := c.invoke(context.Background(), common.NewInfoRequest())
	if err != nil {
		return info, err
	}
	if err := json.Unmarshal(resp.Value, &info); err != nil {
		return info, fmt.Errorf("RPC IChannelAdapter - invalid info: %w", err)
	}
	return info, nil
}

func (e *rpcEndpoint) Slot() int {
	return e.slot
}

func (e *rpcEndpoint) Write(ctx context.Context, p []byte) (int, error) {
	if e.closed.Load() {
		return 0, channel.ErrClosed
	}
	if p == nil {
		p = []byte{}
	}
	resp, err := e.invoke(ctx, common.NewWriteRequest(e.handle, p, 0))
	if resp == nil {
		return 0, err
	}
	return int(resp.N), err
}

func (e *rpcEndpoint) Read(ctx context.Context, p []byte) (int, error) {
	if e.closed.Load() {
		return 0, channel.ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	resp, err := e.invoke(ctx, common.NewReadRequest(e.handle, uint32(min(len(p), 1<<31-1)), 0))
	if err != nil {
		return 0, err
	}
	if len(resp.Value) > len(p) {
		return 0, channel.NewError(channel.RetCFaultDuringCopy,
			fmt.Sprintf("server returned %d bytes for a %d byte buffer", len(resp.Value), len(p)))
	}
	return copy(p, resp.Value), nil
}

func (e *rpcEndpoint) SetTransform(kind transform.Kind, enabled bool) error {
	if e.closed.Load() {
		return channel.ErrClosed
	}

	e.flagsMu.Lock()
	defer e.flagsMu.Unlock()

	// reject unknown kinds without a round trip
	flags := e.flags
	if err := flags.Set(kind, enabled); err != nil {
		return channel.NewError(channel.RetCInvalidControl, err.Error())
	}
	if _, err := e.invoke(context.Background(), common.NewSetTransformRequest(e.handle, uint32(kind), enabled)); err != nil {
		return err
	}
	e.flags = flags
	return nil
}

func (e *rpcEndpoint) Flags() transform.Flags {
	e.flagsMu.Lock()
	defer e.flagsMu.Unlock()
	return e.flags
}

func (e *rpcEndpoint) Close() error {
	if e.closed.Swap(true) {
		return channel.ErrClosed
	}
	_, err := e.invoke(context.Background(), common.NewCloseRequest(e.handle))
	return err
}
