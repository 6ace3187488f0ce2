package channel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/dIPC/lib/framing"
	"github.com/ValentinKolb/dIPC/lib/ring"
	"github.com/ValentinKolb/dIPC/lib/transform"
)

// --------------------------------------------------------------------------
// Synchronization State
// --------------------------------------------------------------------------

// State is the synchronization state of one ring buffer direction
type State int32

const (
	StateIdle            State = iota // nobody is suspended
	StateWaitingForSpace              // the writer is suspended until space is freed
	StateWaitingForData               // the reader is suspended until data arrives
)

// String returns the string representation of a State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaitingForSpace:
		return "waiting for space"
	case StateWaitingForData:
		return "waiting for data"
	default:
		return "unknown"
	}
}

// headerSpace is the free space required before a frame header is written
const headerSpace = framing.HeaderSize + 1

// --------------------------------------------------------------------------
// Direction
// --------------------------------------------------------------------------

// pendingMessage is the reader side progress through the current frame
type pendingMessage struct {
	lengthRemaining uint32
	messageComplete bool
}

// direction couples one ring buffer with the wait/wake discipline that lets
// exactly one writer and one reader share it.
//
// writeMu and readMu serialize the calls of one side, so that even
// concurrent calls on the same endpoint keep a single mutator per cursor.
// The wake signals are channels with room for one token: a side stores its
// cursor first and then leaves a token, the other side re-checks its
// predicate after every token, so wakeups are never lost and spurious ones
// are harmless.
type direction struct {
	name       string
	ring       *ring.RingBuffer
	dataReady  chan struct{}
	spaceReady chan struct{}
	state      atomic.Int32
	stats      *directionStats

	writeMu sync.Mutex
	parked  []byte // encoded payload of an interrupted frame, guarded by writeMu

	readMu  sync.Mutex
	pending pendingMessage // guarded by readMu
}

func newDirection(name string, capacity int, stats *directionStats) (*direction, error) {
	r, err := ring.New(capacity)
	if err != nil {
		return nil, err
	}
	return &direction{
		name:       name,
		ring:       r,
		dataReady:  make(chan struct{}, 1),
		spaceReady: make(chan struct{}, 1),
		stats:      stats,
	}, nil
}

// State returns the current synchronization state
func (d *direction) State() State {
	return State(d.state.Load())
}

// wakeReader leaves a token for a reader suspended on this direction
func (d *direction) wakeReader() {
	select {
	case d.dataReady <- struct{}{}:
	default:
	}
}

// wakeWriter leaves a token for a writer suspended on this direction
func (d *direction) wakeWriter() {
	select {
	case d.spaceReady <- struct{}{}:
	default:
	}
}

// waitForSpace suspends the writer until at least need bytes are free.
// It fails with ErrInterrupted when ctx is done and with ErrClosed when done
// is closed.
func (d *direction) waitForSpace(ctx context.Context, done <-chan struct{}, need int) error {
	if d.ring.FreeSpace() >= need {
		return nil
	}
	d.stats.spaceWaits.Inc(1)
	d.state.Store(int32(StateWaitingForSpace))
	defer d.state.CompareAndSwap(int32(StateWaitingForSpace), int32(StateIdle))

	for d.ring.FreeSpace() < need {
		d.wakeReader()
		select {
		case <-d.spaceReady:
		case <-ctx.Done():
			d.stats.interrupted.Inc(1)
			return NewError(RetCInterrupted, fmt.Sprintf("%s: wait for %d free bytes: %v", d.name, need, ctx.Err()))
		case <-done:
			return NewError(RetCClosed, fmt.Sprintf("%s: endpoint closed while waiting for space", d.name))
		}
	}
	return nil
}

// waitForData suspends the reader until at least need bytes are available.
func (d *direction) waitForData(ctx context.Context, done <-chan struct{}, need int) error {
	if d.ring.UsedSpace() >= need {
		return nil
	}
	d.stats.dataWaits.Inc(1)
	d.state.Store(int32(StateWaitingForData))
	defer d.state.CompareAndSwap(int32(StateWaitingForData), int32(StateIdle))

	for d.ring.UsedSpace() < need {
		d.wakeWriter()
		select {
		case <-d.dataReady:
		case <-ctx.Done():
			d.stats.interrupted.Inc(1)
			return NewError(RetCInterrupted, fmt.Sprintf("%s: wait for %d bytes of data: %v", d.name, need, ctx.Err()))
		case <-done:
			return NewError(RetCClosed, fmt.Sprintf("%s: endpoint closed while waiting for data", d.name))
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Write Path
// --------------------------------------------------------------------------

// put copies b into the ring. The caller must have confirmed the space.
func (d *direction) put(b []byte) {
	for len(b) > 0 {
		n := d.ring.WriteBytes(b)
		b = b[n:]
	}
}

// flushParked writes the rest of a previously interrupted frame.
// Must be called with writeMu held.
func (d *direction) flushParked(ctx context.Context, done <-chan struct{}) error {
	for len(d.parked) > 0 {
		chunk := min(len(d.parked), 4)
		if err := d.waitForSpace(ctx, done, chunk+1); err != nil {
			return err
		}
		n := min(len(d.parked), d.ring.FreeSpace()-1)
		d.put(d.parked[:n])
		d.parked = d.parked[n:]
		d.stats.bytesWritten.Inc(int64(n))
		d.wakeReader()
	}
	d.parked = nil
	return nil
}

// write frames p with flags applied. See IEndpoint.Write for the semantics:
// once the header is queued the frame counts as written in full.
func (d *direction) write(ctx context.Context, done <-chan struct{}, flags transform.Flags, p []byte) (int, error) {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	if err := d.flushParked(ctx, done); err != nil {
		return 0, err
	}

	length, err := flags.EncodedLength(len(p))
	if err != nil {
		return 0, fromTransform(err)
	}

	// header
	if err := d.waitForSpace(ctx, done, headerSpace); err != nil {
		return 0, err
	}
	framing.PutLength(d.ring, length)
	d.wakeReader()
	d.stats.framesWritten.Inc(1)
	d.stats.frameSizes.Update(int64(length))

	// payload, chunk by chunk. After a failed wait the rest of the encoded
	// payload is parked so that the frame can still be completed later.
	var waitErr error
	written := 0
	err = flags.Encode(p, func(chunk []byte) error {
		if waitErr == nil {
			// wait while the free space is at or below one chunk
			if waitErr = d.waitForSpace(ctx, done, len(chunk)+1); waitErr == nil {
				d.put(chunk)
				written += len(chunk)
				d.stats.bytesWritten.Inc(int64(len(chunk)))
				d.wakeReader()
				return nil
			}
		}
		d.parked = append(d.parked, chunk...)
		return nil
	})
	if err != nil {
		return 0, NewError(RetCInternal, err.Error())
	}
	if waitErr != nil {
		Logger.Debugf("%s: write interrupted after %d of %d payload bytes, %d bytes parked", d.name, written, length, len(d.parked))
		// the frame is committed, the parked tail completes it
		return len(p), waitErr
	}
	return len(p), nil
}

// --------------------------------------------------------------------------
// Read Path
// --------------------------------------------------------------------------

// read delivers bytes of the current frame. See Endpoint.Read for the semantics.
func (d *direction) read(ctx context.Context, done <-chan struct{}, p []byte) (int, error) {
	d.readMu.Lock()
	defer d.readMu.Unlock()

	if len(p) == 0 {
		return 0, nil
	}

	// message boundary marker of the previous frame
	if d.pending.messageComplete {
		d.pending.messageComplete = false
		return 0, nil
	}

	if d.pending.lengthRemaining == 0 {
		if err := d.waitForData(ctx, done, framing.HeaderSize); err != nil {
			return 0, err
		}
		length := framing.PopLength(d.ring)
		d.wakeWriter()
		if !framing.ValidLength(uint64(length)) {
			return 0, NewError(RetCMalformedFrame, fmt.Sprintf("%s: frame announces %d bytes", d.name, length))
		}
		d.stats.framesRead.Inc(1)
		if length == 0 {
			// an empty frame is its own boundary marker
			return 0, nil
		}
		d.pending.lengthRemaining = length
	}

	if err := d.waitForData(ctx, done, 1); err != nil {
		return 0, err
	}

	want := min(len(p), int(d.pending.lengthRemaining))
	n := 0
	for n < want {
		k := d.ring.ReadBytes(p[n:want])
		if k == 0 {
			break
		}
		n += k
	}

	d.pending.lengthRemaining -= uint32(n)
	if d.pending.lengthRemaining == 0 {
		d.pending.messageComplete = true
	}
	d.stats.bytesRead.Inc(int64(n))
	d.wakeWriter()
	return n, nil
}

// --------------------------------------------------------------------------
// Info
// --------------------------------------------------------------------------

// info returns a snapshot of the direction. The pending and parked fields are
// read without taking the side locks and are approximate while calls are in
// flight.
func (d *direction) info() DirectionInfo {
	info := DirectionInfo{
		Name:      d.name,
		Capacity:  d.ring.Capacity(),
		UsedBytes: d.ring.UsedSpace(),
		FreeBytes: d.ring.FreeSpace(),
		State:     d.State().String(),
	}
	if d.readMu.TryLock() {
		info.PendingInbound = d.pending.lengthRemaining
		info.MessageComplete = d.pending.messageComplete
		d.readMu.Unlock()
	}
	if d.writeMu.TryLock() {
		info.ParkedOutbound = len(d.parked)
		d.writeMu.Unlock()
	}
	d.stats.fill(&info)
	return info
}
