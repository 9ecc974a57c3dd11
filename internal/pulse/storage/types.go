// Package storage implements the per-thread (and per-fiber) event storage
// model of spec §3–§4.3: the single-writer buffers a capture records into,
// and the scoped/imperative APIs that append to them.
package storage

import (
	"github.com/coral-mesh/pulse/internal/pulse/describe"
	"github.com/coral-mesh/pulse/internal/pulse/mempool"
	"github.com/coral-mesh/pulse/internal/pulse/platform"
)

// MaxGPUNodes and GPUQueueCount bound the GPU event grid every EventStorage
// carries, per spec §3's GPU model.
const (
	MaxGPUNodes   = 2
	GPUQueueCount = 4 // graphics, compute, transfer, vsync

	// PushPopStackCapacity is the depth of the imperative Push/Pop stack.
	// The source silently drops overflow; spec §9 preserves that wire
	// behavior while recommending implementations offer an explicit error
	// path, which PushEvent below does via its bool return.
	PushPopStackCapacity = 32

	eventChunkSize = 1024
	tagChunkSize   = 256
)

// GPUQueue identifies one of the fixed queue slots in the GPU grid.
type GPUQueue int

const (
	QueueGraphics GPUQueue = iota
	QueueCompute
	QueueTransfer
	QueueVSync
)

// EventTime is {start, finish} in platform ticks. InvalidTimestamp marks
// "not set yet" (used for in-flight GPU events and unmatched syscall
// pairs).
type EventTime struct {
	Start  int64
	Finish int64
}

// IsValid reports whether both endpoints have been set.
func (t EventTime) IsValid() bool {
	return t.Start != platform.InvalidTimestamp && t.Finish != platform.InvalidTimestamp
}

// EventData is one recorded scope: a time range plus the description it
// refers to. Description may be nil on storages whose descriptions are
// resolved later (e.g. syscalls); the wire encoder maps that to
// describe.NullIndex (spec §9).
type EventData struct {
	Time        EventTime
	Description *describe.Description
}

// TagKind selects which payload field of a TagData is meaningful (spec §3,
// TagData<T>); exactly one field is, chosen by its Kind.
type TagKind uint8

const (
	TagFloat32 TagKind = iota
	TagInt32
	TagUint32
	TagUint64
	TagPoint3D
	TagString
)

// Point3D is a 3-float point tag payload.
type Point3D struct{ X, Y, Z float32 }

// TagData is a timestamped, typed key-value annotation attached to the
// containing frame of the emitting thread.
type TagData struct {
	Description *describe.Description
	Timestamp   int64
	Kind        TagKind
	F32         float32
	I32         int32
	U32         uint32
	U64         uint64
	Point       Point3D
	Str         string
}

// GPUContext identifies where GPU events recorded via gpu_event_start/stop
// land: which node/queue, and an opaque command-buffer handle the GPU
// backend understands. Command is deliberately untyped (any) because the
// concrete command-buffer representation belongs to the GpuProfiler
// backend (out of scope per spec §1), not to the core.
type GPUContext struct {
	Node    int
	Queue   GPUQueue
	Command any
}

// fiberSync marks a window during which a fiber was attached to a given
// OS thread (spec §3, fiberSyncBuffer).
type fiberSync struct {
	Time     EventTime
	ThreadID int64
}

// pushedEvent is one entry on the imperative Push/Pop stack: a pointer
// into eventBuffer whose Finish field PopEvent will complete.
type pushedEvent struct {
	data *EventData
}

// EventStorage is owned by exactly one thread or fiber at a time and is
// never shared mutably; every append on it must come from its owner. It
// holds event, tag, fiber-sync, and GPU-event buffers plus the explicit
// push/pop stack, matching spec §3.
type EventStorage struct {
	IsFiberStorage bool

	events     *mempool.Pool[EventData]
	fiberSyncs *mempool.Pool[fiberSync]

	tagsF32    *mempool.Pool[TagData]
	tagsI32    *mempool.Pool[TagData]
	tagsU32    *mempool.Pool[TagData]
	tagsU64    *mempool.Pool[TagData]
	tagsPoint  *mempool.Pool[TagData]
	tagsString *mempool.Pool[TagData]

	gpuEvents [MaxGPUNodes][GPUQueueCount]*mempool.Pool[EventData]
	gpuCtx    GPUContext

	pushStack    [PushPopStackCapacity]pushedEvent
	pushStackLen int
}

// NewEventStorage allocates an EventStorage with empty (but not yet
// chunk-allocated) pools.
func NewEventStorage(isFiber bool) *EventStorage {
	s := &EventStorage{
		IsFiberStorage: isFiber,
		events:         mempool.New[EventData](eventChunkSize),
		fiberSyncs:     mempool.New[fiberSync](tagChunkSize),
		tagsF32:        mempool.New[TagData](tagChunkSize),
		tagsI32:        mempool.New[TagData](tagChunkSize),
		tagsU32:        mempool.New[TagData](tagChunkSize),
		tagsU64:        mempool.New[TagData](tagChunkSize),
		tagsPoint:      mempool.New[TagData](tagChunkSize),
		tagsString:     mempool.New[TagData](tagChunkSize),
	}
	for n := 0; n < MaxGPUNodes; n++ {
		for q := 0; q < GPUQueueCount; q++ {
			s.gpuEvents[n][q] = mempool.New[EventData](eventChunkSize)
		}
	}
	return s
}

// Events exposes the event pool for the dumper.
func (s *EventStorage) Events() *mempool.Pool[EventData] { return s.events }

// GPUEvents exposes one node/queue's GPU event pool for the dumper and
// the GPU profiler's resolve pass.
func (s *EventStorage) GPUEvents(node int, queue GPUQueue) *mempool.Pool[EventData] {
	return s.gpuEvents[node][queue]
}

// SetGPUContext installs the current command-buffer/queue/node triple that
// gpu_event_start/stop (package gpu) will append events against.
func (s *EventStorage) SetGPUContext(ctx GPUContext) { s.gpuCtx = ctx }

// GPUContextCurrent returns the currently installed GPU context.
func (s *EventStorage) GPUContextCurrent() GPUContext { return s.gpuCtx }

// TagPool returns the pool backing the given tag kind.
func (s *EventStorage) TagPool(kind TagKind) *mempool.Pool[TagData] {
	switch kind {
	case TagFloat32:
		return s.tagsF32
	case TagInt32:
		return s.tagsI32
	case TagUint32:
		return s.tagsU32
	case TagUint64:
		return s.tagsU64
	case TagPoint3D:
		return s.tagsPoint
	case TagString:
		return s.tagsString
	default:
		return nil
	}
}

// Clear resets every owned pool. preserveMemory keeps allocated chunks for
// reuse, matching the zero-allocation steady state of spec §5.
func (s *EventStorage) Clear(preserveMemory bool) {
	s.events.Clear(preserveMemory)
	s.fiberSyncs.Clear(preserveMemory)
	s.tagsF32.Clear(preserveMemory)
	s.tagsI32.Clear(preserveMemory)
	s.tagsU32.Clear(preserveMemory)
	s.tagsU64.Clear(preserveMemory)
	s.tagsPoint.Clear(preserveMemory)
	s.tagsString.Clear(preserveMemory)
	for n := 0; n < MaxGPUNodes; n++ {
		for q := 0; q < GPUQueueCount; q++ {
			s.gpuEvents[n][q].Clear(preserveMemory)
		}
	}
	s.pushStackLen = 0
}

// AppendFiberSync records a fiber↔thread attachment window.
func (s *EventStorage) AppendFiberSync(t EventTime, threadID int64) {
	rec := s.fiberSyncs.Add()
	rec.Time = t
	rec.ThreadID = threadID
}

// ForEachFiberSync iterates fiber-sync records in insertion order.
func (s *EventStorage) ForEachFiberSync(f func(t EventTime, threadID int64)) {
	s.fiberSyncs.ForEach(func(r *fiberSync) { f(r.Time, r.ThreadID) })
}
