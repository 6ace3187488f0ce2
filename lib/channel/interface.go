package channel

import (
	"context"

	"github.com/ValentinKolb/dIPC/lib/transform"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IChannel is the generic interface of a duplex channel. It is implemented by
// the in-process DuplexChannel and by the RPC client.
type IChannel interface {
	// Open admits a new endpoint. It fails with ErrChannelBusy when every
	// endpoint slot is taken.
	Open() (IEndpoint, error)
	// Info returns a snapshot of the channel state and traffic statistics.
	// It is not guaranteed that all fields are filled in.
	Info() (info ChannelInfo, err error)
}

// IEndpoint is one side of a duplex channel. It writes frames into one ring
// buffer and reads frames from the other one.
type IEndpoint interface {
	// Slot returns the endpoint index (0 or 1) that defines the buffer binding.
	Slot() int
	// Write transforms p with the enabled filters, frames it and enqueues the
	// frame. It blocks until the whole frame is in the buffer, ctx is done or
	// the endpoint is closed.
	//
	// A frame is committed once its header is in the buffer. Write then
	// returns len(p), even together with ErrInterrupted or ErrClosed: the
	// whole frame will still be delivered and the caller must not resend any
	// of p. With n == 0 nothing of p was queued and p may be written again.
	Write(ctx context.Context, p []byte) (n int, err error)
	// Read copies bytes of the current inbound frame into p. It blocks until
	// data is available. A frame longer than p is delivered over several
	// calls. Once a frame has been delivered completely the next call returns
	// 0 and a nil error, marking the message boundary.
	Read(ctx context.Context, p []byte) (n int, err error)
	// SetTransform enables or disables a filter for frames written from now on.
	SetTransform(kind transform.Kind, enabled bool) error
	// Flags returns the filters currently enabled on the endpoint.
	Flags() transform.Flags
	// Close releases the endpoint slot. Buffered data stays in the channel.
	Close() error
}

// --------------------------------------------------------------------------
// Channel Info
// --------------------------------------------------------------------------

// DirectionInfo describes the state of one ring buffer
type DirectionInfo struct {
	Name            string  `json:"name"`
	Capacity        int     `json:"capacity"`
	UsedBytes       int     `json:"used_bytes"`
	FreeBytes       int     `json:"free_bytes"`
	State           string  `json:"state"`
	FramesWritten   int64   `json:"frames_written"`
	FramesRead      int64   `json:"frames_read"`
	BytesWritten    int64   `json:"bytes_written"`
	BytesRead       int64   `json:"bytes_read"`
	SpaceWaits      int64   `json:"space_waits"`
	DataWaits       int64   `json:"data_waits"`
	Interrupted     int64   `json:"interrupted"`
	MeanFrameSize   float64 `json:"mean_frame_size"`
	MaxFrameSize    int64   `json:"max_frame_size"`
	P99FrameSize    float64 `json:"p99_frame_size"`
	PendingInbound  uint32  `json:"pending_inbound"`
	ParkedOutbound  int     `json:"parked_outbound"`
	MessageComplete bool    `json:"message_complete"`
}

// ChannelInfo is a snapshot of a duplex channel
type ChannelInfo struct {
	MaxEndpoints  int             `json:"max_endpoints"`
	OpenEndpoints int             `json:"open_endpoints"`
	Directions    []DirectionInfo `json:"directions"`
}
