// Package trace defines the Collectors that ingest records delivered by an
// external kernel-tracing Trace provider (ETW/DTrace/perf, out of scope
// per spec §1), plus the Provider interface that provider implementations
// satisfy. Collectors are fed from the provider's own callback thread and
// are single-consumer: no internal locking (spec §4.6).
package trace

import (
	"github.com/coral-mesh/pulse/internal/pulse/mempool"
	"github.com/coral-mesh/pulse/internal/pulse/storage"
)

// SwitchContext is one OS scheduler context switch (spec §3).
type SwitchContext struct {
	Timestamp int64
	OldTID    int64
	NewTID    int64
	CPUID     int32
	Reason    uint8
}

// SwitchContextCollector accumulates context-switch records for the
// lifetime of one capture.
type SwitchContextCollector struct {
	pool *mempool.Pool[SwitchContext]
}

// NewSwitchContextCollector creates an empty collector.
func NewSwitchContextCollector() *SwitchContextCollector {
	return &SwitchContextCollector{pool: mempool.New[SwitchContext](0)}
}

// Add records one context switch.
func (c *SwitchContextCollector) Add(sc SwitchContext) {
	*c.pool.Add() = sc
}

// ForEach iterates records in arrival order.
func (c *SwitchContextCollector) ForEach(f func(SwitchContext)) {
	c.pool.ForEach(func(r *SwitchContext) { f(*r) })
}

// Len reports the number of recorded switches.
func (c *SwitchContextCollector) Len() int { return c.pool.Size() }

// Clear empties the collector, keeping allocated chunks for reuse.
func (c *SwitchContextCollector) Clear() { c.pool.Clear(true) }

// pendingSyscall tracks an entry that has not yet seen its matching exit.
type pendingSyscall struct {
	threadID  int64
	syscallID uint32
	enter     int64
}

// Syscall is one matched enter/exit pair (spec §3: {EventTime, threadID,
// syscall_id}).
type Syscall struct {
	Time      storage.EventTime
	ThreadID  int64
	SyscallID uint32
}

// SyscallCollector pairs enter/exit events per thread and records the
// completed pairs. An exit with no matching enter on its thread is
// discarded (spec §4.6).
type SyscallCollector struct {
	pool    *mempool.Pool[Syscall]
	pending map[int64]pendingSyscall // keyed by threadID; one outstanding call per thread
}

// NewSyscallCollector creates an empty collector.
func NewSyscallCollector() *SyscallCollector {
	return &SyscallCollector{
		pool:    mempool.New[Syscall](0),
		pending: make(map[int64]pendingSyscall),
	}
}

// Enter records a syscall entry on threadID, pending its matching exit.
// A second Enter on the same thread before its Exit overwrites the
// pending record, matching "one outstanding call per thread".
func (c *SyscallCollector) Enter(threadID int64, syscallID uint32, timestamp int64) {
	c.pending[threadID] = pendingSyscall{threadID: threadID, syscallID: syscallID, enter: timestamp}
}

// Exit completes the pending syscall on threadID, if any. An exit with no
// matching pending entry is discarded silently.
func (c *SyscallCollector) Exit(threadID int64, timestamp int64) {
	p, ok := c.pending[threadID]
	if !ok {
		return
	}
	delete(c.pending, threadID)
	rec := c.pool.Add()
	rec.Time = storage.EventTime{Start: p.enter, Finish: timestamp}
	rec.ThreadID = threadID
	rec.SyscallID = p.syscallID
}

// ForEach iterates completed syscall pairs in completion order.
func (c *SyscallCollector) ForEach(f func(Syscall)) {
	c.pool.ForEach(func(r *Syscall) { f(*r) })
}

// Len reports the number of completed syscall pairs.
func (c *SyscallCollector) Len() int { return c.pool.Size() }

// Clear empties the collector, including any unmatched pending entries.
func (c *SyscallCollector) Clear() {
	c.pool.Clear(true)
	c.pending = make(map[int64]pendingSyscall)
}

// CallstackDesc is what a Trace provider reports for one stack walk: a
// thread, a timestamp, and instruction pointers from leaf to root.
type CallstackDesc struct {
	ThreadID  int64
	Timestamp int64
	PCs       []uint64 // leaf-first, as captured by the walker
}

// maxCallstackDepth bounds a single walk (spec §4.6: depth ≤ 255).
const maxCallstackDepth = 255

// CallstackCollector stores call stacks in one densely packed pool per
// spec §3: each walk contributes `[threadID, timestamp, depth, pc_0, …,
// pc_{depth-1}]` to a flat uint64 pool, addresses reversed from the
// walker's leaf-first order so pc_0 is the outermost frame (spec example
// in §8: `CallstackDesc{pc=[A,B,C]}` packs as `..., 3, C, B, A`).
type CallstackCollector struct {
	pool *mempool.Pool[uint64]
}

// NewCallstackCollector creates an empty collector.
func NewCallstackCollector() *CallstackCollector {
	return &CallstackCollector{pool: mempool.New[uint64](0)}
}

// Add packs one stack walk. Walks deeper than maxCallstackDepth are
// truncated to the innermost frames.
func (c *CallstackCollector) Add(desc CallstackDesc) {
	pcs := desc.PCs
	if len(pcs) > maxCallstackDepth {
		pcs = pcs[:maxCallstackDepth]
	}
	*c.pool.Add() = uint64(desc.ThreadID)
	*c.pool.Add() = uint64(desc.Timestamp)
	*c.pool.Add() = uint64(len(pcs))
	for i := len(pcs) - 1; i >= 0; i-- {
		*c.pool.Add() = pcs[i]
	}
}

// Raw returns the packed pool contents as a flat slice, for the dumper's
// CallstackPack message.
func (c *CallstackCollector) Raw() []uint64 { return c.pool.ToSlice() }

// IsEmpty reports whether any stack walk has been recorded.
func (c *CallstackCollector) IsEmpty() bool { return c.pool.IsEmpty() }

// Clear empties the collector.
func (c *CallstackCollector) Clear() { c.pool.Clear(true) }
