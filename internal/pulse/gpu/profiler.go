package gpu

import (
	"sync"

	"github.com/coral-mesh/pulse/internal/pulse/describe"
	"github.com/coral-mesh/pulse/internal/pulse/perrors"
	"github.com/coral-mesh/pulse/internal/pulse/platform"
	"github.com/coral-mesh/pulse/internal/pulse/storage"
)

// NumFramesDelay is the depth of the query-frame ring: a frame's GPU
// timestamp queries are not read back until this many gpu_flip calls
// later, once the backend's fence for that frame has signaled.
const NumFramesDelay = 4

// DefaultMaxQueries is the per-node query index space, a power of two so
// the monotonic counter wraps cleanly modulo it (spec §3).
const DefaultMaxQueries = 1 << 14

// Backend is the per-API GPU query provider (D3D12, Vulkan) that gpu.
// Profiler drives. Implementing one is out of scope for this module
// (spec §1 Non-goals); Profiler only consumes it.
type Backend interface {
	// Start begins query tracking for nodeCount devices and returns each
	// node's initial clock calibration.
	Start(nodeCount int) ([]ClockSync, error)

	// Stop releases any backend-owned query heaps/fences.
	Stop()

	// RecordQuery schedules a timestamp query on node's current command
	// list and returns the monotonic index (mod maxQueries) assigned to
	// it. The backend need not remember anything beyond the command
	// list recording itself; Profiler tracks the index-to-destination
	// mapping.
	RecordQuery(node int) uint32

	// Resolve returns the raw GPU timestamps, in issue order, for the
	// half-open query range [start, start+count) taken modulo
	// maxQueries, or ok=false if that range's fence has not signaled
	// yet (spec's "if not ready, skip frame").
	Resolve(node int, start, count uint32) (ticks []int64, ok bool)
}

type queryFrameRange struct {
	indexStart uint32
	indexCount uint32
}

type nodeState struct {
	clock ClockSync

	nextQuery uint32
	pending   []*int64 // ring sized maxQueries, indexed by query index % maxQueries

	frames          [NumFramesDelay]queryFrameRange
	frameNumber     uint64
	frameQueryStart uint32 // first query index of the frame now being recorded

	// frameBracket holds the synthetic "GPU Frame" event bracketing one
	// presentation interval; it lives in its own storage rather than a
	// caller's, since no single CPU thread owns a presentation frame.
	frameStorage *storage.EventStorage
	frameDesc    *describe.Description
	openFrame    *storage.EventData

	vsyncDesc *describe.Description
}

// Profiler is the process-wide GPU timestamp subsystem: one per process,
// shared by every call site that records GPU events, matching the single
// GpuProfiler collaborator of spec §3's component table.
type Profiler struct {
	mu         sync.Mutex
	board      *describe.Board
	backend    Backend
	maxQueries uint32
	nodes      []*nodeState
	running    bool
}

// New creates an inactive Profiler. maxQueries must be a power of two; a
// value of zero selects DefaultMaxQueries.
func New(board *describe.Board, maxQueries uint32) *Profiler {
	if maxQueries == 0 {
		maxQueries = DefaultMaxQueries
	}
	return &Profiler{board: board, maxQueries: maxQueries}
}

// Start installs backend and begins tracking nodeCount devices. Calling
// Start while already running is an error.
func (p *Profiler) Start(backend Backend, nodeCount int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return perrors.ErrGPUProfilerRunning
	}
	clocks, err := backend.Start(nodeCount)
	if err != nil {
		return err
	}

	frameDesc, err := p.board.CreateSharedDescription("GPU Frame", "", 0, 0, 0)
	if err != nil {
		return err
	}
	vsyncDesc, err := p.board.CreateSharedDescription("VSync", "", 0, 0, 0)
	if err != nil {
		return err
	}

	p.nodes = make([]*nodeState, len(clocks))
	for i, clock := range clocks {
		n := &nodeState{
			clock:        clock,
			pending:      make([]*int64, p.maxQueries),
			frameStorage: storage.NewEventStorage(false),
			frameDesc:    frameDesc,
			vsyncDesc:    vsyncDesc,
		}
		p.nodes[i] = n
		p.openFrameLocked(i, n)
	}
	p.backend = backend
	p.running = true
	return nil
}

// Stop tears down backend tracking. Outstanding unresolved queries are
// discarded; their events keep INVALID_TIMESTAMP, same as a frame whose
// queries never signal.
func (p *Profiler) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.backend.Stop()
	p.backend = nil
	p.nodes = nil
	p.running = false
}

// Running reports whether the profiler is currently tracking a backend.
func (p *Profiler) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// NodeCount returns the number of GPU nodes currently tracked.
func (p *Profiler) NodeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.nodes)
}

// issueLocked allocates the next query index for node and records dest as
// the CPU-side location its resolved timestamp will be written to.
// Caller holds p.mu.
func (p *Profiler) issueLocked(nodeIdx int, n *nodeState, dest *int64) {
	idx := n.nextQuery
	n.nextQuery++
	n.pending[idx%p.maxQueries] = dest
	p.backend.RecordQuery(nodeIdx)
}

// EventStart appends a GPU event to s's [node][queue] grid and schedules
// a timestamp query for its start time (spec §4.7). The event's
// timestamps remain INVALID_TIMESTAMP until a later Flip resolves them.
func (p *Profiler) EventStart(s *storage.EventStorage, node int, queue storage.GPUQueue, desc *describe.Description) *storage.EventData {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running || node >= len(p.nodes) {
		return nil
	}
	rec := s.GPUEvents(node, queue).Add()
	rec.Description = desc
	rec.Time.Start = platform.InvalidTimestamp
	rec.Time.Finish = platform.InvalidTimestamp
	p.issueLocked(node, p.nodes[node], &rec.Time.Start)
	return rec
}

// EventStop schedules a timestamp query for rec's finish time. rec must
// be a value previously returned by EventStart on the same node.
func (p *Profiler) EventStop(node int, rec *storage.EventData) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running || rec == nil || node >= len(p.nodes) {
		return
	}
	p.issueLocked(node, p.nodes[node], &rec.Time.Finish)
}

// openFrameLocked pushes a new "GPU Frame" bracket event for node. Caller
// holds p.mu.
func (p *Profiler) openFrameLocked(nodeIdx int, n *nodeState) {
	rec := n.frameStorage.Events().Add()
	rec.Description = n.frameDesc
	rec.Time.Finish = platform.InvalidTimestamp
	p.issueLocked(nodeIdx, n, &rec.Time.Start)
	n.openFrame = rec
}

// VSyncStats is the subset of swapchain presentation statistics a backend
// can report at flip time; all fields are best-effort and may be zero
// when the backend cannot supply them.
type VSyncStats struct {
	Start, Finish int64 // CPU-domain ticks; both zero or both platform.InvalidTimestamp if unavailable
}

// Flip performs the per-presentation bookkeeping of spec §4.7 step by
// step: closes the outgoing frame's GPU Frame bracket, opens the next
// one, resolves the frame from NumFramesDelay flips ago if its queries
// have signaled, and records a VSync event when the caller has stats for
// it. It must be called once per presented frame, from the thread that
// owns the swapchain.
func (p *Profiler) Flip(nodeIdx int, vsync VSyncStats) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running || nodeIdx >= len(p.nodes) {
		return
	}
	n := p.nodes[nodeIdx]

	frameStart := n.frameQueryStart
	p.issueLocked(nodeIdx, n, &n.openFrame.Time.Finish)
	rng := queryFrameRange{indexStart: frameStart, indexCount: n.nextQuery - frameStart}
	n.frameQueryStart = n.nextQuery

	p.openFrameLocked(nodeIdx, n)

	slot := n.frameNumber % NumFramesDelay
	if n.frameNumber >= NumFramesDelay {
		p.resolveLocked(nodeIdx, n, n.frames[slot])
	}
	n.frames[slot] = rng
	n.frameNumber++

	if vsync != (VSyncStats{}) && vsync.Start != platform.InvalidTimestamp && vsync.Finish != platform.InvalidTimestamp {
		rec := n.frameStorage.Events().Add()
		rec.Description = n.vsyncDesc
		rec.Time.Start = vsync.Start
		rec.Time.Finish = vsync.Finish
	}
}

// resolveLocked reads back one frame's query range and writes the mapped
// CPU timestamps to the destinations recorded at issue time. If the
// backend reports the range is not yet signaled, the frame's events keep
// INVALID_TIMESTAMP and are silently dropped by the dumper, matching
// spec §4.7's failure mode — this is not treated as an error here.
func (p *Profiler) resolveLocked(nodeIdx int, n *nodeState, rng queryFrameRange) {
	if rng.indexCount == 0 {
		return
	}
	ticks, ok := p.backend.Resolve(nodeIdx, rng.indexStart, rng.indexCount)
	if !ok {
		return
	}
	for i := uint32(0); i < rng.indexCount; i++ {
		idx := (rng.indexStart + i) % p.maxQueries
		dest := n.pending[idx]
		if dest == nil {
			continue
		}
		*dest = n.clock.ToCPU(ticks[i])
		n.pending[idx] = nil
	}
}

// FrameStorage exposes the node-level storage carrying the synthetic
// "GPU Frame" and VSync bracket events, for the dumper.
func (p *Profiler) FrameStorage(nodeIdx int) *storage.EventStorage {
	p.mu.Lock()
	defer p.mu.Unlock()
	if nodeIdx >= len(p.nodes) {
		return nil
	}
	return p.nodes[nodeIdx].frameStorage
}
