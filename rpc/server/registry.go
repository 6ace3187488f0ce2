package server

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dIPC/lib/channel"
	"github.com/puzpuzpuz/xsync/v3"
)

// handleEntry is an endpoint opened on behalf of a client
type handleEntry struct {
	session   uint64
	channelID uint64
	endpoint  channel.IEndpoint
}

// cancelTombstoneTTL is how long a cancel for a call that has not started
// yet is remembered
const cancelTombstoneTTL = time.Minute

// callKey identifies a blocking call of a client. Call ids are chosen by the
// client and are only unique within a handle.
type callKey struct {
	session uint64
	handle  uint64
	call    uint64
}

// callEntry is either a running call or, with a nil cancel, a tombstone for a
// cancel that arrived first
type callEntry struct {
	cancel context.CancelFunc
	at     time.Time
}

// HandleRegistry maps the handles given to clients to the endpoints they
// opened. A handle is only valid on the channel and in the session it was
// opened in. It also tracks the blocking calls in flight so that a client
// can interrupt them.
type HandleRegistry struct {
	next    atomic.Uint64
	handles *xsync.MapOf[uint64, handleEntry]
	calls   *xsync.MapOf[callKey, callEntry]
}

// NewHandleRegistry creates an empty registry
func NewHandleRegistry() *HandleRegistry {
	return &HandleRegistry{
		handles: xsync.NewMapOf[uint64, handleEntry](),
		calls:   xsync.NewMapOf[callKey, callEntry](),
	}
}

// Register stores ep and returns its handle. Handles start at 1.
func (r *HandleRegistry) Register(session, channelID uint64, ep channel.IEndpoint) uint64 {
	handle := r.next.Add(1)
	r.handles.Store(handle, handleEntry{
		session:   session,
		channelID: channelID,
		endpoint:  ep,
	})
	return handle
}

// Lookup returns the endpoint behind handle
func (r *HandleRegistry) Lookup(session, channelID, handle uint64) (channel.IEndpoint, bool) {
	entry, ok := r.handles.Load(handle)
	if !ok || entry.session != session || entry.channelID != channelID {
		return nil, false
	}
	return entry.endpoint, true
}

// Remove deletes handle and returns its endpoint
func (r *HandleRegistry) Remove(session, channelID, handle uint64) (channel.IEndpoint, bool) {
	var ep channel.IEndpoint
	r.handles.Compute(handle, func(entry handleEntry, loaded bool) (handleEntry, bool) {
		if !loaded || entry.session != session || entry.channelID != channelID {
			// keep whatever is there
			return entry, !loaded
		}
		ep = entry.endpoint
		return entry, true
	})
	return ep, ep != nil
}

// CloseSession closes all endpoints opened in session and returns their
// number. Session 0 belongs to sessionless transports and is never closed.
func (r *HandleRegistry) CloseSession(session uint64) int {
	if session == 0 {
		return 0
	}
	r.calls.Range(func(key callKey, _ callEntry) bool {
		if key.session == session {
			r.calls.Delete(key)
		}
		return true
	})
	closed := 0
	r.handles.Range(func(handle uint64, entry handleEntry) bool {
		if entry.session != session {
			return true
		}
		if ep, ok := r.Remove(session, entry.channelID, handle); ok {
			_ = ep.Close()
			closed++
		}
		return true
	})
	return closed
}

// Len returns the number of open handles
func (r *HandleRegistry) Len() int {
	return r.handles.Size()
}

// BeginCall records a blocking call that cancel interrupts. The returned
// func must be called once the call returned. A call id of 0 is not tracked.
func (r *HandleRegistry) BeginCall(session, handle, call uint64, cancel context.CancelFunc) func() {
	if call == 0 {
		return func() {}
	}
	key := callKey{session: session, handle: handle, call: call}
	cancelled := false
	r.calls.Compute(key, func(entry callEntry, loaded bool) (callEntry, bool) {
		if loaded && entry.cancel == nil {
			cancelled = true
			return entry, true
		}
		return callEntry{cancel: cancel, at: time.Now()}, false
	})
	if cancelled {
		cancel()
		return func() {}
	}
	return func() {
		r.calls.Delete(key)
	}
}

// CancelCall interrupts a running call and reports whether one was found.
// If the call has not started yet it is interrupted as soon as it does.
func (r *HandleRegistry) CancelCall(session, handle, call uint64) bool {
	key := callKey{session: session, handle: handle, call: call}
	var cancel context.CancelFunc
	r.calls.Compute(key, func(entry callEntry, loaded bool) (callEntry, bool) {
		if loaded && entry.cancel != nil {
			cancel = entry.cancel
			return entry, true
		}
		return callEntry{at: time.Now()}, false
	})
	if cancel == nil {
		r.pruneTombstones()
		return false
	}
	cancel()
	return true
}

// Calls returns the number of tracked calls, tombstones included
func (r *HandleRegistry) Calls() int {
	return r.calls.Size()
}

// pruneTombstones forgets cancels whose call never showed up
func (r *HandleRegistry) pruneTombstones() {
	cutoff := time.Now().Add(-cancelTombstoneTTL)
	r.calls.Range(func(key callKey, entry callEntry) bool {
		if entry.cancel == nil && entry.at.Before(cutoff) {
			r.calls.Delete(key)
		}
		return true
	})
}
