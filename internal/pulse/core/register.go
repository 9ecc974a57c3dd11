package core

import (
	"github.com/coral-mesh/pulse/internal/pulse/dump"
	"github.com/coral-mesh/pulse/internal/pulse/platform"
	"github.com/coral-mesh/pulse/internal/pulse/storage"
	"github.com/coral-mesh/pulse/internal/pulse/trace"
	"github.com/coral-mesh/pulse/internal/pulse/wire"
)

// RegisterThread registers the calling thread and returns the Handle it
// must pass to Start/Stop/PushEvent/PopEvent (spec §6, §9 Design Notes).
// Re-registering a still-alive thread id is a no-op that returns the
// existing handle (spec §7's Registration.Duplicate).
func (c *Core) RegisterThread(name string, threadID int64, maxDepth, priority int32, mask uint64) *storage.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.threads[threadID]; ok && e.IsAlive() {
		return e.Handle
	}

	e := storage.NewThreadEntry(storage.ThreadDescription{
		Name:      name,
		ThreadID:  threadID,
		ProcessID: c.processID,
		MaxDepth:  maxDepth,
		Priority:  priority,
		Mask:      mask,
	})
	if _, existed := c.threads[threadID]; !existed {
		c.threadOrder = append(c.threadOrder, threadID)
	}
	c.threads[threadID] = e
	if !c.hasMain {
		c.mainThreadID = threadID
		c.hasMain = true
	}
	if c.state == StateActive {
		e.Activate(true)
	}
	return e.Handle
}

// UnregisterThread marks threadID's entry dead. The entry and any events
// it already recorded are kept until the next Dump completes, so a
// capture spanning a thread's exit still serializes its data (spec §3's
// "thread entries persist until capture end even after the thread exits,
// then may be reclaimed").
func (c *Core) UnregisterThread(threadID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.threads[threadID]
	if !ok {
		return
	}
	e.Activate(false)
	e.Kill()
}

// RegisterFiber registers a fiber identified by id and returns the Handle
// a scheduler must swap on fiber activation/deactivation (spec §6).
func (c *Core) RegisterFiber(id uint64) *storage.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.fibers[id]; ok && e.IsAlive() {
		return e.Handle
	}
	e := storage.NewFiberEntry(id)
	if _, existed := c.fibers[id]; !existed {
		c.fiberOrder = append(c.fiberOrder, id)
	}
	c.fibers[id] = e
	if c.state == StateActive {
		e.Activate(true)
	}
	return e.Handle
}

// UnregisterFiber marks a fiber entry dead, with the same persist-until-
// dump semantics as UnregisterThread.
func (c *Core) UnregisterFiber(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.fibers[id]
	if !ok {
		return
	}
	e.Activate(false)
	e.Kill()
}

// RegisterStorage creates an "extra" storage for a non-thread source —
// a GPU queue, an I/O completion pump, or another engine subsystem that
// records events without being a registered thread or fiber (spec §6).
// Re-registering an existing name returns its existing handle.
func (c *Core) RegisterStorage(name string) *storage.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.extra[name]; ok && e.isAlive {
		return e.handle
	}
	e := &extraEntry{storage: storage.NewEventStorage(false), handle: storage.NewHandle(), isAlive: true}
	if _, existed := c.extra[name]; !existed {
		c.extraOrder = append(c.extraOrder, name)
	}
	c.extra[name] = e
	if c.state == StateActive {
		e.storage.Clear(true)
		e.handle.Slot().Store(e.storage)
	}
	return e.handle
}

func (c *Core) aliveThreadIDsLocked() []int64 {
	ids := make([]int64, 0, len(c.threadOrder))
	for _, tid := range c.threadOrder {
		if e := c.threads[tid]; e != nil && e.IsAlive() {
			ids = append(ids, tid)
		}
	}
	return ids
}

func (c *Core) activateLocked() {
	for _, tid := range c.threadOrder {
		if e := c.threads[tid]; e != nil && e.IsAlive() {
			e.Activate(true)
		}
	}
	for _, fid := range c.fiberOrder {
		if e := c.fibers[fid]; e != nil && e.IsAlive() {
			e.Activate(true)
		}
	}
	for _, e := range c.extra {
		if e.isAlive {
			e.storage.Clear(true)
			e.handle.Slot().Store(e.storage)
		}
	}
	c.frames = c.frames[:0]

	status := trace.StatusOK
	if c.traceProvider != nil && c.mode.Has(trace.ModeSwitchContexts) {
		c.switchCtx.Clear()
		c.syscalls.Clear()
		c.callstacks.Clear()
		sink := trace.Sink{SwitchContext: c.switchCtx, Callstack: c.callstacks, Syscall: c.syscalls}
		status = c.traceProvider.Start(c.mode, c.aliveThreadIDsLocked(), sink)
	}
	if c.gpuProfiler != nil && c.gpuBackend != nil && c.mode.Has(trace.ModeGPU) {
		if err := c.gpuProfiler.Start(c.gpuBackend, c.gpuNodes); err != nil {
			c.logger.Warn().Err(err).Msg("gpu profiler failed to start")
		}
	}

	if c.sender != nil {
		platformName, hostname := platform.HostInfo()
		c.sender.Send(wire.TypeHandshake, wire.EncodeHandshake(status, platformName, hostname))
	}
}

func (c *Core) deactivateLocked() {
	if c.traceProvider != nil {
		c.traceProvider.Stop()
	}
	if c.gpuProfiler != nil && c.gpuProfiler.Running() {
		c.gpuProfiler.Stop()
	}
	for _, tid := range c.threadOrder {
		if e := c.threads[tid]; e != nil {
			e.Activate(false)
		}
	}
	for _, fid := range c.fiberOrder {
		if e := c.fibers[fid]; e != nil {
			e.Activate(false)
		}
	}
	for _, e := range c.extra {
		e.handle.Slot().Store(nil)
	}
}

func (c *Core) runDumpLocked() {
	c.boardNumber++

	threads := make([]dump.ThreadSource, 0, len(c.threadOrder))
	mainIdx := int32(-1)
	for i, tid := range c.threadOrder {
		e := c.threads[tid]
		threads = append(threads, dump.ThreadSource{
			Number:      int32(i),
			Description: e.Description,
			Storage:     e.Storage,
		})
		if tid == c.mainThreadID {
			mainIdx = int32(i)
		}
	}
	fibers := make([]dump.FiberSource, 0, len(c.fiberOrder))
	for i, fid := range c.fiberOrder {
		e := c.fibers[fid]
		fibers = append(fibers, dump.FiberSource{Number: int32(i), ID: fid, Storage: e.Storage})
	}

	extra := make([]dump.ExtraSource, 0, len(c.extraOrder))
	for i, name := range c.extraOrder {
		if e := c.extra[name]; e != nil {
			extra = append(extra, dump.ExtraSource{Number: int32(i), Name: name, Storage: e.storage})
		}
	}

	req := dump.Request{
		BoardNumber:     c.boardNumber,
		Frequency:       platform.Frequency(),
		Mode:            uint32(c.mode),
		ProcessID:       c.processID,
		CPUCount:        int32(c.cpuCount),
		MainThreadIndex: mainIdx,
		Threads:         threads,
		Fibers:          fibers,
		Extra:           extra,
		GPUProfiler:     c.gpuProfiler,
		Board:           c.board,
		SwitchContexts:  c.switchCtx,
		Syscalls:        c.syscalls,
		Callstacks:      c.callstacks,
		Symbols:         c.symbols,
		FrameDurations:  frameDurationsMs(c.frames),
		Summary:         c.summary,
		Attachments:     c.attachments,
	}

	if c.sender != nil {
		dump.Run(c.sender, req)
	}

	for _, tid := range c.threadOrder {
		c.threads[tid].Storage.Clear(true)
	}
	for _, fid := range c.fiberOrder {
		c.fibers[fid].Storage.Clear(true)
	}
	for _, e := range c.extra {
		e.storage.Clear(true)
	}
	c.switchCtx.Clear()
	c.syscalls.Clear()
	c.callstacks.Clear()
	c.summary = nil
	c.attachments = nil
	c.frames = nil

	c.reclaimDeadLocked()
}

// reclaimDeadLocked drops registry entries for threads/fibers that exited
// during the just-completed capture, now that their data has been
// serialized (spec §3).
func (c *Core) reclaimDeadLocked() {
	live := c.threadOrder[:0]
	for _, tid := range c.threadOrder {
		if c.threads[tid].IsAlive() {
			live = append(live, tid)
		} else {
			delete(c.threads, tid)
		}
	}
	c.threadOrder = live

	liveFibers := c.fiberOrder[:0]
	for _, fid := range c.fiberOrder {
		if c.fibers[fid].IsAlive() {
			liveFibers = append(liveFibers, fid)
		} else {
			delete(c.fibers, fid)
		}
	}
	c.fiberOrder = liveFibers
}

func frameDurationsMs(frames []storage.EventTime) []int64 {
	freq := platform.Frequency()
	out := make([]int64, 0, len(frames))
	for _, f := range frames {
		if f.Finish == platform.InvalidTimestamp {
			continue
		}
		out = append(out, (f.Finish-f.Start)*1000/freq)
	}
	return out
}
