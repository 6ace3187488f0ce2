package ring

import (
	"fmt"
	"sync/atomic"
)

// MinCapacity is the smallest usable capacity: one reserved slot, a 4 byte
// frame header and at least one payload byte.
const MinCapacity = 6

// RingBuffer is a single-producer, single-consumer circular byte store with
// independent read and write cursors.
type RingBuffer struct {
	storage     []byte
	capacity    int
	readCursor  atomic.Int64
	writeCursor atomic.Int64
}

// New creates a ring buffer owning capacity bytes of storage
func New(capacity int) (*RingBuffer, error) {
	if capacity < MinCapacity {
		return nil, fmt.Errorf("ring capacity %d is below the minimum of %d", capacity, MinCapacity)
	}
	return &RingBuffer{
		storage:  make([]byte, capacity),
		capacity: capacity,
	}, nil
}

// --------------------------------------------------------------------------
// Occupancy
// --------------------------------------------------------------------------

// Capacity returns the size of the backing storage. The number of bytes that
// can be live at once is Capacity()-1.
func (r *RingBuffer) Capacity() int {
	return r.capacity
}

// FreeSpace returns how many bytes can be written before the buffer is full.
func (r *RingBuffer) FreeSpace() int {
	read := int(r.readCursor.Load())
	write := int(r.writeCursor.Load())
	return (read - write - 1 + r.capacity) % r.capacity
}

// UsedSpace returns how many bytes are available for reading.
func (r *RingBuffer) UsedSpace() int {
	read := int(r.readCursor.Load())
	write := int(r.writeCursor.Load())
	return (write - read + r.capacity) % r.capacity
}

// Empty reports whether no bytes are live.
func (r *RingBuffer) Empty() bool {
	return r.readCursor.Load() == r.writeCursor.Load()
}

// --------------------------------------------------------------------------
// Writer side
// --------------------------------------------------------------------------

// WriteBytes copies as much of src as fits into the contiguous run that
// starts at the write cursor, and returns the number of bytes copied.
// It never overwrites unread bytes and stops at the end of the storage, so
// callers loop until their request is satisfied.
func (r *RingBuffer) WriteBytes(src []byte) int {
	write := int(r.writeCursor.Load())
	n := min(len(src), r.FreeSpace(), r.capacity-write)
	if n <= 0 {
		return 0
	}
	copy(r.storage[write:write+n], src[:n])
	r.writeCursor.Store(int64((write + n) % r.capacity))
	return n
}

// PutByte appends a single byte. It returns false if the buffer is full.
func (r *RingBuffer) PutByte(b byte) bool {
	if r.FreeSpace() == 0 {
		return false
	}
	write := int(r.writeCursor.Load())
	r.storage[write] = b
	r.writeCursor.Store(int64((write + 1) % r.capacity))
	return true
}

// --------------------------------------------------------------------------
// Reader side
// --------------------------------------------------------------------------

// ReadBytes copies up to len(dst) live bytes from the contiguous run that
// starts at the read cursor and returns the number of bytes copied.
func (r *RingBuffer) ReadBytes(dst []byte) int {
	read := int(r.readCursor.Load())
	n := min(len(dst), r.UsedSpace(), r.capacity-read)
	if n <= 0 {
		return 0
	}
	copy(dst[:n], r.storage[read:read+n])
	r.readCursor.Store(int64((read + n) % r.capacity))
	return n
}

// PopByte removes and returns the oldest live byte. The boolean is false if
// the buffer is empty.
func (r *RingBuffer) PopByte() (byte, bool) {
	if r.Empty() {
		return 0, false
	}
	read := int(r.readCursor.Load())
	b := r.storage[read]
	r.readCursor.Store(int64((read + 1) % r.capacity))
	return b, true
}
