package storage

import (
	"sync/atomic"

	"github.com/coral-mesh/pulse/internal/pulse/describe"
	"github.com/coral-mesh/pulse/internal/pulse/platform"
)

// Handle is the explicit stand-in for the source's thread-local storage
// slot (spec §4.3, §9 Design Notes). Core.Activate swaps the pointer this
// handle wraps without any cooperation from the owning goroutine — that is
// what makes deactivation safe to call from another goroutine and what
// makes the hot path a single atomic load plus a nil check.
//
// A Handle is returned once by RegisterThread/RegisterFiber; the caller
// keeps it in a variable confined to the owning goroutine (or fiber, in
// engines that model fibers explicitly) and passes it to Start/Stop/Push/
// Pop. Go has no implicit per-goroutine storage and goroutines are not
// 1:1 with OS threads, so this explicit handle is the safe translation of
// the C++ thread_local pointer, not a shortcut around it.
type Handle struct {
	slot atomic.Pointer[EventStorage]
}

// NewHandle creates a Handle with no storage installed (capture inactive).
func NewHandle() *Handle { return &Handle{} }

// set installs (or clears, with nil) the storage this handle resolves to.
// Called only by the registry (core package) during activation.
func (h *Handle) set(s *EventStorage) { h.slot.Store(s) }

// Load returns the currently installed storage, or nil if the handle's
// owner is not part of an active capture.
func (h *Handle) Load() *EventStorage { return h.slot.Load() }

// Slot exposes the underlying atomic pointer so the core registry can
// install/clear it; it is not part of the hot-path API.
func (h *Handle) Slot() *atomic.Pointer[EventStorage] { return &h.slot }

// Span is the scoped wrapper returned by Start. Calling Stop (typically
// deferred) completes the event's Finish timestamp. A Span holding a nil
// data pointer (because the handle was inactive) makes Stop a no-op,
// mirroring the source's "construct always, destruct conditionally" RAII
// pattern without needing a separate guard at each call site.
type Span struct {
	data *EventData
}

// Stop completes the in-flight event this span wraps, if any.
func (s Span) Stop() {
	if s.data == nil {
		return
	}
	s.data.Time.Finish = platform.Now()
}

// Start begins a scoped event on the storage a handle currently resolves
// to. If the handle is inactive (capture not running, or thread not yet
// registered), Start returns a Span that does nothing on Stop and touches
// no shared memory beyond the atomic load of the handle — the "no-capture
// no-op" property of spec §8.
func Start(h *Handle, desc *describe.Description) Span {
	s := h.Load()
	if s == nil {
		return Span{}
	}
	rec := s.events.Add()
	rec.Description = desc
	rec.Time.Start = platform.Now()
	rec.Time.Finish = platform.InvalidTimestamp
	return Span{data: rec}
}

// AddExternal appends a pre-measured event directly to storage, used by
// integrations that already have start/finish timestamps from a source
// other than a call-stack scope (the GPU profiler, I/O completion
// callbacks). It bypasses the handle/Span ceremony entirely.
func AddExternal(s *EventStorage, desc *describe.Description, start, finish int64) {
	rec := s.events.Add()
	rec.Description = desc
	rec.Time.Start = start
	rec.Time.Finish = finish
}

// PushEvent is the imperative counterpart to Start: it appends an event
// with Finish left invalid and records its slot on the storage's push/pop
// stack for a later PopEvent to complete. It returns false (and records
// nothing further to pop) if the stack is already at PushPopStackCapacity
// — the source's "silently drop" behavior, exposed here as an explicit
// signal callers may choose to log (spec §9).
func PushEvent(h *Handle, desc *describe.Description) bool {
	s := h.Load()
	if s == nil {
		return false
	}
	if s.pushStackLen >= PushPopStackCapacity {
		return false
	}
	rec := s.events.Add()
	rec.Description = desc
	rec.Time.Start = platform.Now()
	rec.Time.Finish = platform.InvalidTimestamp

	s.pushStack[s.pushStackLen] = pushedEvent{data: rec}
	s.pushStackLen++
	return true
}

// PopEvent completes the most recently pushed, not-yet-popped event on the
// handle's storage. It returns false if there is nothing to pop (including
// when the handle is inactive), matching the push/no-op symmetry above.
func PopEvent(h *Handle) bool {
	s := h.Load()
	if s == nil || s.pushStackLen == 0 {
		return false
	}
	s.pushStackLen--
	top := s.pushStack[s.pushStackLen]
	top.data.Time.Finish = platform.Now()
	return true
}
