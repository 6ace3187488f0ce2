package channel

import (
	"context"
	"sync"

	"github.com/ValentinKolb/dIPC/lib/transform"
)

// Endpoint is one open side of a DuplexChannel. It is safe for concurrent
// use: calls of the same kind are serialized.
type Endpoint struct {
	channel *DuplexChannel
	slot    int
	out     *direction
	in      *direction

	flagsMu sync.Mutex
	flags   transform.Flags // every session starts with no filter enabled

	done      chan struct{}
	closeOnce sync.Once
}

// closed reports whether Close was called
func (e *Endpoint) closed() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see IEndpoint)
// --------------------------------------------------------------------------

func (e *Endpoint) Slot() int {
	return e.slot
}

// Write is documented on IEndpoint. The rest of an interrupted frame is
// parked on the outbound buffer and flushed before the next frame written
// there, so the whole frame is still delivered.
func (e *Endpoint) Write(ctx context.Context, p []byte) (int, error) {
	if e.closed() {
		return 0, ErrClosed
	}
	return e.out.write(ctx, e.done, e.Flags(), p)
}

func (e *Endpoint) Read(ctx context.Context, p []byte) (int, error) {
	if e.closed() {
		return 0, ErrClosed
	}
	return e.in.read(ctx, e.done, p)
}

func (e *Endpoint) SetTransform(kind transform.Kind, enabled bool) error {
	if e.closed() {
		return ErrClosed
	}
	e.flagsMu.Lock()
	defer e.flagsMu.Unlock()
	return fromTransform(e.flags.Set(kind, enabled))
}

func (e *Endpoint) Flags() transform.Flags {
	e.flagsMu.Lock()
	defer e.flagsMu.Unlock()
	return e.flags
}

func (e *Endpoint) Close() error {
	err := error(ErrClosed)
	e.closeOnce.Do(func() {
		close(e.done)
		e.channel.release(e)
		err = nil
	})
	return err
}
