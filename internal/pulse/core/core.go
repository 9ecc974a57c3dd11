// Package core implements the capture state machine of spec §4.4: the
// thread/fiber/extra-storage registry, activation/deactivation of the
// Trace provider and GPU profiler, and the next_frame-gated transition
// pump that drives the Capture Dumper.
package core

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/pulse/internal/pulse/describe"
	"github.com/coral-mesh/pulse/internal/pulse/dump"
	"github.com/coral-mesh/pulse/internal/pulse/gpu"
	"github.com/coral-mesh/pulse/internal/pulse/platform"
	"github.com/coral-mesh/pulse/internal/pulse/storage"
	"github.com/coral-mesh/pulse/internal/pulse/symbol"
	"github.com/coral-mesh/pulse/internal/pulse/trace"
	"github.com/coral-mesh/pulse/internal/pulse/wire"
)

// State is the capture lifecycle state of spec §4.4.
type State int

const (
	StateIdle State = iota
	StateActive
)

func (s State) String() string {
	if s == StateActive {
		return "Active"
	}
	return "Idle"
}

// Request is an external capture-control request.
type Request int

const (
	RequestStart Request = iota
	RequestStop
	RequestDump
)

// StateChangedFunc is the host hook spec §4.4 calls before any transition
// with the requested action; returning false delays the transition one
// frame (used by a host to request a screenshot before a Dump).
type StateChangedFunc func(req Request) bool

type extraEntry struct {
	storage *storage.EventStorage
	handle  *storage.Handle
	isAlive bool
}

// Core is the process-wide capture engine: one instance per pulse.Session
// (normally exactly one, process-global). Every exported method takes its
// own lock; applyPendingLocked releases that lock for the duration of a
// StateChangedFunc callback specifically so the callback can call back
// into Core (e.g. AttachSummary) without deadlocking Go's non-reentrant
// sync.Mutex (a documented deviation from the source's reentrant mutex;
// see DESIGN.md).
type Core struct {
	mu     sync.Mutex
	logger zerolog.Logger
	board  *describe.Board

	threads     map[int64]*storage.ThreadEntry
	threadOrder []int64
	fibers      map[uint64]*storage.FiberEntry
	fiberOrder  []uint64
	extra       map[string]*extraEntry
	extraOrder  []string

	mainThreadID int64
	hasMain      bool

	state          State
	pendingRequest *Request
	stateChanged   StateChangedFunc

	traceProvider trace.Provider
	switchCtx     *trace.SwitchContextCollector
	syscalls      *trace.SyscallCollector
	callstacks    *trace.CallstackCollector

	gpuProfiler *gpu.Profiler
	gpuBackend  gpu.Backend
	gpuNodes    int

	symbols symbol.Engine
	sender  dump.Sender

	frames      []storage.EventTime
	frameNumber uint32
	boardNumber uint32
	mode        trace.Mode

	summary     []wire.SummaryPair
	attachments []wire.Attachment

	processID int32
	cpuCount  int
}

// New creates an idle Core. tp, gp, and se may be nil; a nil collaborator
// simply does not get started/stopped/consulted (spec's "core degrades
// gracefully" policy for optional providers).
func New(logger zerolog.Logger, tp trace.Provider, gp *gpu.Profiler, se symbol.Engine) *Core {
	return &Core{
		logger:        logger.With().Str("component", "core").Logger(),
		board:         describe.New(logger),
		threads:       make(map[int64]*storage.ThreadEntry),
		fibers:        make(map[uint64]*storage.FiberEntry),
		extra:         make(map[string]*extraEntry),
		switchCtx:     trace.NewSwitchContextCollector(),
		syscalls:      trace.NewSyscallCollector(),
		callstacks:    trace.NewCallstackCollector(),
		traceProvider: tp,
		gpuProfiler:   gp,
		symbols:       se,
		processID:     platform.ProcessID(),
		cpuCount:      platform.CPUCount(),
	}
}

// Board exposes the process-wide Description Board.
func (c *Core) Board() *describe.Board { return c.board }

// State returns the current capture state.
func (c *Core) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetStateChangedCallback installs (or clears, with nil) the capture-state
// hook (spec §6).
func (c *Core) SetStateChangedCallback(fn StateChangedFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateChanged = fn
}

// SetSender installs the connection the dumper sends messages through.
// Calling it with nil disconnects: NextFrame's Dump transition still runs
// and clears buffers, it just has nowhere to send the output.
func (c *Core) SetSender(sender dump.Sender) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sender = sender
}

// AttachSummary records one key/value pair for the next Dump's
// SummaryPack (spec §6).
func (c *Core) AttachSummary(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summary = append(c.summary, wire.SummaryPair{Key: key, Value: value})
}

// AttachFile records a file attachment for the next Dump's SummaryPack
// (spec §6). kind follows wire.Attachment's {0=Image, 1=Text, 2=Other}.
func (c *Core) AttachFile(kind uint8, name string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attachments = append(c.attachments, wire.Attachment{Kind: kind, Name: name, Data: data})
}

// StartCapture requests a transition to Active, applied at the next
// NextFrame call (spec §4.4).
func (c *Core) StartCapture(mode trace.Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = mode
	req := RequestStart
	c.pendingRequest = &req
}

// StopCapture requests a transition back to Idle without dumping.
func (c *Core) StopCapture() {
	c.mu.Lock()
	defer c.mu.Unlock()
	req := RequestStop
	c.pendingRequest = &req
}

// DumpCapture requests deactivation (if active) followed by a full dump
// pass.
func (c *Core) DumpCapture() {
	c.mu.Lock()
	defer c.mu.Unlock()
	req := RequestDump
	c.pendingRequest = &req
}

// SetTracePassword forwards a capture-start password to the installed
// Trace provider, ahead of the next activation (spec §4.10's Start
// request carries one for platforms that require elevation).
func (c *Core) SetTracePassword(password string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.traceProvider != nil {
		c.traceProvider.SetPassword(password)
	}
}

// SetGPUBackend installs the GPU query backend a later activation will
// start (spec §6's gpu_init_d3d12/gpu_init_vulkan collaborator
// installation); nodeCount is the number of devices the backend exposes.
func (c *Core) SetGPUBackend(backend gpu.Backend, nodeCount int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gpuBackend = backend
	c.gpuNodes = nodeCount
}

// Flip forwards to the GPU profiler's per-presentation bookkeeping
// (spec §4.7's gpu_flip); a no-op if the GPU profiler is not running.
func (c *Core) Flip(node int, vsync gpu.VSyncStats) {
	c.mu.Lock()
	gp := c.gpuProfiler
	c.mu.Unlock()
	if gp != nil && gp.Running() {
		gp.Flip(node, vsync)
	}
}

// NextFrame is the only mandatory call outside annotations (spec §4.4,
// §6): (1) stops the previous frame, (2) pumps pending server messages,
// (3) applies any pending state transition, (4) if active, opens a new
// frame, and (5) returns the incremented frame number.
func (c *Core) NextFrame(pump func()) uint32 {
	c.mu.Lock()
	if n := len(c.frames); n > 0 && c.frames[n-1].Finish == platform.InvalidTimestamp {
		c.frames[n-1].Finish = platform.Now()
	}
	c.mu.Unlock()

	if pump != nil {
		pump()
	}

	c.mu.Lock()
	c.applyPendingLocked()
	active := c.state == StateActive
	if active {
		c.frames = append(c.frames, storage.EventTime{Start: platform.Now(), Finish: platform.InvalidTimestamp})
	}
	c.frameNumber++
	n := c.frameNumber
	c.mu.Unlock()
	return n
}

// applyPendingLocked resolves c.pendingRequest, if any. Caller holds
// c.mu; it is released for the duration of the stateChanged callback and
// re-acquired before returning.
func (c *Core) applyPendingLocked() {
	if c.pendingRequest == nil {
		return
	}
	req := *c.pendingRequest

	if c.stateChanged != nil {
		c.mu.Unlock()
		allowed := c.stateChanged(req)
		c.mu.Lock()
		if !allowed {
			return
		}
	}
	c.pendingRequest = nil

	switch req {
	case RequestStart:
		if c.state == StateIdle {
			c.activateLocked()
			c.state = StateActive
		}
	case RequestStop:
		if c.state == StateActive {
			c.deactivateLocked()
		}
		c.state = StateIdle
	case RequestDump:
		if c.state == StateActive {
			c.deactivateLocked()
		}
		c.state = StateIdle
		c.runDumpLocked()
	}
}
