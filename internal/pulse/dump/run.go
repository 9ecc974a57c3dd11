package dump

import (
	"github.com/coral-mesh/pulse/internal/pulse/describe"
	"github.com/coral-mesh/pulse/internal/pulse/gpu"
	"github.com/coral-mesh/pulse/internal/pulse/storage"
	"github.com/coral-mesh/pulse/internal/pulse/symbol"
	"github.com/coral-mesh/pulse/internal/pulse/trace"
	"github.com/coral-mesh/pulse/internal/pulse/wire"
)

// Sender is how the dumper emits one message at a time; Core's server
// connection implements it. Kept minimal and decoupled from net.Conn so
// this package can be exercised without a live socket.
type Sender interface {
	Send(t wire.MessageType, payload []byte)
}

// ThreadSource is one registered thread's contribution to a dump: its
// description, its storage, and a stable thread-number (the dense index
// the wire protocol uses instead of the raw OS thread id).
type ThreadSource struct {
	Number      int32
	Description storage.ThreadDescription
	Storage     *storage.EventStorage
}

// FiberSource is the fiber analog of ThreadSource.
type FiberSource struct {
	Number  int32
	ID      uint64
	Storage *storage.EventStorage
}

// ExtraSource is one RegisterStorage source's contribution to a dump: a
// GPU queue, I/O pump, or other engine subsystem that isn't a registered
// thread or fiber but still records events into its own storage.
type ExtraSource struct {
	Number  int32
	Name    string
	Storage *storage.EventStorage
}

// Request bundles everything one dump_frames pass needs (spec §4.8). Core
// assembles this from its registry and capture bookkeeping.
type Request struct {
	BoardNumber     uint32
	Frequency       int64
	Mode            uint32
	ProcessID       int32
	CPUCount        int32
	MainThreadIndex int32

	Threads []ThreadSource
	Fibers  []FiberSource
	Extra   []ExtraSource

	GPUProfiler *gpu.Profiler
	Board       *describe.Board

	SwitchContexts *trace.SwitchContextCollector
	Syscalls       *trace.SyscallCollector
	Callstacks     *trace.CallstackCollector
	Symbols        symbol.Engine

	FrameDurations []int64
	Summary        []wire.SummaryPair
	Attachments    []wire.Attachment
}

// Run executes the 10-step dump sequence of spec §4.8 against r, sending
// every message through sink in order. It does not itself clear any
// storage or collector; Core does that as part of completing the Dump
// transition, once every message here has been sent.
func Run(sink Sender, r Request) {
	// Step 3: SummaryPack, then summary/attachments are considered spent
	// by the caller (Core clears them after Run returns).
	sink.Send(wire.TypeSummaryPack, wire.EncodeSummaryPack(r.BoardNumber, r.FrameDurations, r.Summary, r.Attachments))

	// Step 4: timeSlice spans the main thread's recorded events (see
	// mainThreadTimeSlice); the per-frame boundaries are not consulted.
	timeSlice := mainThreadTimeSlice(r)

	// Step 5: FrameDescriptionBoard.
	threadDescs := make([]storage.ThreadDescription, len(r.Threads))
	for i, t := range r.Threads {
		threadDescs[i] = t.Description
	}
	fiberIDs := make([]uint64, len(r.Fibers))
	for i, f := range r.Fibers {
		fiberIDs[i] = f.ID
	}
	sink.Send(wire.TypeFrameDescriptionBoard, wire.EncodeFrameDescriptionBoard(wire.FrameDescriptionBoard{
		BoardNumber:     r.BoardNumber,
		Frequency:       r.Frequency,
		TimeSlice:       timeSlice,
		Threads:         threadDescs,
		FiberIDs:        fiberIDs,
		MainThreadIndex: r.MainThreadIndex,
		Descriptions:    r.Board.Snapshot(),
		Mode:            r.Mode,
		ProcessID:       r.ProcessID,
		CPUCount:        r.CPUCount,
	}))

	// Step 6: per-thread scope packing, events then tags.
	for _, t := range r.Threads {
		dumpStorage(sink, r.BoardNumber, t.Number, -1, t.Storage)
	}

	// Step 7: per-fiber, same as threads plus FiberSynchronizationData.
	for _, f := range r.Fibers {
		dumpStorage(sink, r.BoardNumber, -1, f.Number, f.Storage)
		dumpFiberSync(sink, r.BoardNumber, f.Number, f.Storage)
	}

	// Extra sources (spec §6's RegisterStorage non-thread subsystems — GPU
	// queues, I/O pumps, engine-specific event streams) dump the same way
	// as a thread, keyed by a thread-number range that can't collide with
	// a real registered thread or the GPU profiler's synthetic frame
	// storage below.
	for _, x := range r.Extra {
		dumpStorage(sink, r.BoardNumber, -(1000 + x.Number), -1, x.Storage)
	}

	// Step 8: GPU profiler emits its own per-node/queue buffers through
	// the same dumper path, plus its synthetic "GPU Frame"/VSync bracket
	// storage.
	if r.GPUProfiler != nil {
		for node := 0; node < r.GPUProfiler.NodeCount(); node++ {
			if fs := r.GPUProfiler.FrameStorage(node); fs != nil {
				dumpStorage(sink, r.BoardNumber, int32(-(node + 2)), -1, fs)
			}
			for q := 0; q < storage.GPUQueueCount; q++ {
				for _, t := range r.Threads {
					events := t.Storage.GPUEvents(node, storage.GPUQueue(q)).ToSlice()
					emitScopes(sink, r.BoardNumber, int32(-(node + 2)), -1, events)
				}
			}
		}
	}

	// Step 9: switch-contexts, syscalls, and (if non-empty) resolved
	// callstacks.
	sink.Send(wire.TypeSynchronizationData, wire.EncodeSynchronizationData(r.BoardNumber, collectSwitches(r.SwitchContexts)))
	sink.Send(wire.TypeSyscallPack, wire.EncodeSyscallPack(r.BoardNumber, collectSyscalls(r.Syscalls)))
	if r.Callstacks != nil && !r.Callstacks.IsEmpty() {
		modules, symbols := resolveCallstacks(r.Symbols, r.Callstacks)
		sink.Send(wire.TypeCallstackDescriptionBoard, wire.EncodeCallstackDescriptionBoard(r.BoardNumber, modules, symbols))
		sink.Send(wire.TypeCallstackPack, wire.EncodeCallstackPack(r.BoardNumber, r.Callstacks.Raw()))
	}

	// Step 10: terminator.
	sink.Send(wire.TypeNullFrame, wire.EncodeNullFrame())
}

// mainThreadTimeSlice computes [min(start), max(finish)] over the main
// thread's recorded events (spec §4.8 step 4); if the main thread has no
// events, every thread's event boundaries are considered instead.
func mainThreadTimeSlice(r Request) storage.EventTime {
	if r.MainThreadIndex >= 0 && int(r.MainThreadIndex) < len(r.Threads) {
		if ts, ok := boundsOf(r.Threads[r.MainThreadIndex].Storage.Events().ToSlice()); ok {
			return ts
		}
	}
	var all []storage.EventData
	for _, t := range r.Threads {
		all = append(all, t.Storage.Events().ToSlice()...)
	}
	if ts, ok := boundsOf(all); ok {
		return ts
	}
	return storage.EventTime{Start: 0, Finish: 0}
}

func boundsOf(events []storage.EventData) (storage.EventTime, bool) {
	if len(events) == 0 {
		return storage.EventTime{}, false
	}
	min, max := events[0].Time.Start, events[0].Time.Finish
	for _, e := range events[1:] {
		if e.Time.Start < min {
			min = e.Time.Start
		}
		if e.Time.Finish > max {
			max = e.Time.Finish
		}
	}
	return storage.EventTime{Start: min, Finish: max}, true
}

func dumpStorage(sink Sender, boardNumber uint32, threadNumber, fiberNumber int32, s *storage.EventStorage) {
	emitScopes(sink, boardNumber, threadNumber, fiberNumber, s.Events().ToSlice())

	pack := wire.TagPack{
		F32:    s.TagPool(storage.TagFloat32).ToSlice(),
		I32:    s.TagPool(storage.TagInt32).ToSlice(),
		U32:    s.TagPool(storage.TagUint32).ToSlice(),
		U64:    s.TagPool(storage.TagUint64).ToSlice(),
		Point:  s.TagPool(storage.TagPoint3D).ToSlice(),
		String: s.TagPool(storage.TagString).ToSlice(),
	}
	sink.Send(wire.TypeTagsPack, wire.EncodeTagsPack(boardNumber, threadNumber, pack))
}

func emitScopes(sink Sender, boardNumber uint32, threadNumber, fiberNumber int32, events []storage.EventData) {
	for _, scope := range PackScopes(boardNumber, threadNumber, fiberNumber, events) {
		sink.Send(wire.TypeEventFrame, wire.EncodeEventFrame(scope))
	}
}

func dumpFiberSync(sink Sender, boardNumber uint32, fiberNumber int32, s *storage.EventStorage) {
	var syncs []wire.FiberSync
	s.ForEachFiberSync(func(t storage.EventTime, threadID int64) {
		syncs = append(syncs, wire.FiberSync{Time: t, ThreadID: threadID})
	})
	sink.Send(wire.TypeFiberSynchronizationData, wire.EncodeFiberSynchronizationData(boardNumber, fiberNumber, syncs))
}

func collectSwitches(c *trace.SwitchContextCollector) []trace.SwitchContext {
	if c == nil {
		return nil
	}
	out := make([]trace.SwitchContext, 0, c.Len())
	c.ForEach(func(sc trace.SwitchContext) { out = append(out, sc) })
	return out
}

func collectSyscalls(c *trace.SyscallCollector) []trace.Syscall {
	if c == nil {
		return nil
	}
	out := make([]trace.Syscall, 0, c.Len())
	c.ForEach(func(sc trace.Syscall) { out = append(out, sc) })
	return out
}

func resolveCallstacks(engine symbol.Engine, c *trace.CallstackCollector) ([]symbol.Module, []symbol.Symbol) {
	if engine == nil {
		return nil, nil
	}
	modules := engine.GetModules()

	seen := make(map[uint64]bool)
	var symbols []symbol.Symbol
	raw := c.Raw()
	for i := 0; i < len(raw); {
		if i+3 > len(raw) {
			break
		}
		depth := int(raw[i+2])
		i += 3
		for j := 0; j < depth && i < len(raw); j++ {
			addr := raw[i]
			i++
			if seen[addr] {
				continue
			}
			seen[addr] = true
			if sym, ok := engine.GetSymbol(addr); ok {
				symbols = append(symbols, sym)
			}
		}
	}
	return modules, symbols
}
