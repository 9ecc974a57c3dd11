// Package pulse is the public facade over the capture engine: the
// functions an instrumented application calls directly (spec §6).
// Everything here is a thin wrapper around internal/pulse/core.Core plus
// a lazily-started internal/pulse/server.Server; the interesting logic
// lives in those packages.
package pulse

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/pulse/internal/pulse/core"
	"github.com/coral-mesh/pulse/internal/pulse/describe"
	"github.com/coral-mesh/pulse/internal/pulse/gpu"
	"github.com/coral-mesh/pulse/internal/pulse/server"
	"github.com/coral-mesh/pulse/internal/pulse/storage"
	"github.com/coral-mesh/pulse/internal/pulse/symbol"
	"github.com/coral-mesh/pulse/internal/pulse/trace"
)

// State mirrors core.State without exposing the internal package.
type State = core.State

// Request mirrors core.Request.
type Request = core.Request

const (
	StateIdle   = core.StateIdle
	StateActive = core.StateActive

	RequestStart = core.RequestStart
	RequestStop  = core.RequestStop
	RequestDump  = core.RequestDump
)

// StateChangedFunc is the host hook type (spec §4.4, §6).
type StateChangedFunc = core.StateChangedFunc

// Option configures a Session at construction.
type Option func(*options)

type options struct {
	logger        zerolog.Logger
	traceProvider trace.Provider
	gpuQueries    uint32
	symbolEngine  symbol.Engine
	listen        bool
}

// WithLogger installs a zerolog.Logger the session's components log
// through. Defaults to a disabled logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithTraceProvider installs the OS kernel-tracing collaborator (spec
// §4.6); omit it to run with Instrumentation/Tags modes only.
func WithTraceProvider(p trace.Provider) Option {
	return func(o *options) { o.traceProvider = p }
}

// WithSymbolEngine installs the callstack symbol resolver (spec §4.9);
// omit it to dump raw, unresolved callstack addresses.
func WithSymbolEngine(e symbol.Engine) Option {
	return func(o *options) { o.symbolEngine = e }
}

// WithGPUQueryCapacity overrides the GPU profiler's per-node query ring
// size (default gpu.DefaultMaxQueries).
func WithGPUQueryCapacity(n uint32) Option {
	return func(o *options) { o.gpuQueries = n }
}

// WithoutServer skips starting the TCP listener. Such a Session has no
// Sender attached, and Session has no method to install one, so its
// dumps emit no messages.
func WithoutServer() Option {
	return func(o *options) { o.listen = false }
}

// Session is one capture engine instance. Most applications use the
// process-wide Default session via the package-level functions below;
// NewSession exists for tests and for hosts embedding more than one
// capture domain in a single process.
type Session struct {
	core   *core.Core
	server *server.Server
}

// NewSession builds a Session and, unless WithoutServer is given, starts
// its TCP listener immediately.
func NewSession(opts ...Option) (*Session, error) {
	o := options{
		logger:     zerolog.Nop(),
		gpuQueries: gpu.DefaultMaxQueries,
		listen:     true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	board := describe.New(o.logger)
	gpuProfiler := gpu.New(board, o.gpuQueries)
	c := core.New(o.logger, o.traceProvider, gpuProfiler, o.symbolEngine)

	s := &Session{core: c}
	if o.listen {
		srv := server.New(o.logger, c)
		if err := srv.Listen(); err != nil {
			return nil, err
		}
		s.server = srv
	}
	return s, nil
}

// Close stops the session's server, if any. Capture state and buffered
// events are left as-is; a host that wants a final dump should call
// DumpCapture and one more NextFrame before Close.
func (s *Session) Close() {
	if s.server != nil {
		s.server.Stop()
	}
}

// Board exposes the session's Description Board, for callers that build
// their own describe.Description registration helpers.
func (s *Session) Board() *describe.Board { return s.core.Board() }

// RegisterThread registers the calling thread (spec §6).
func (s *Session) RegisterThread(name string, threadID int64, maxDepth, priority int32, mask uint64) *storage.Handle {
	return s.core.RegisterThread(name, threadID, maxDepth, priority, mask)
}

// UnregisterThread unregisters a previously registered thread.
func (s *Session) UnregisterThread(threadID int64) { s.core.UnregisterThread(threadID) }

// RegisterFiber registers a fiber identified by id.
func (s *Session) RegisterFiber(id uint64) *storage.Handle { return s.core.RegisterFiber(id) }

// UnregisterFiber unregisters a previously registered fiber.
func (s *Session) UnregisterFiber(id uint64) { s.core.UnregisterFiber(id) }

// RegisterStorage registers a non-thread event source.
func (s *Session) RegisterStorage(name string) *storage.Handle { return s.core.RegisterStorage(name) }

// SetStateChangedCallback installs the capture-state hook.
func (s *Session) SetStateChangedCallback(fn StateChangedFunc) { s.core.SetStateChangedCallback(fn) }

// AttachSummary records a key/value pair for the next Dump's SummaryPack.
func (s *Session) AttachSummary(key, value string) { s.core.AttachSummary(key, value) }

// AttachFile records a file attachment for the next Dump's SummaryPack.
func (s *Session) AttachFile(kind uint8, name string, data []byte) {
	s.core.AttachFile(kind, name, data)
}

// StartCapture requests activation with the given mode bitmask.
func (s *Session) StartCapture(mode trace.Mode) { s.core.StartCapture(mode) }

// StopCapture requests deactivation without dumping.
func (s *Session) StopCapture() { s.core.StopCapture() }

// DumpCapture requests deactivation (if active) followed by a dump pass.
func (s *Session) DumpCapture() { s.core.DumpCapture() }

// State returns the current capture state.
func (s *Session) State() State { return s.core.State() }

// NextFrame must be called once per application frame (spec §4.4, §6).
func (s *Session) NextFrame() uint32 { return s.core.NextFrame(nil) }

// SetGPUBackend installs the GPU query backend a later activation will
// start, and the device count it exposes (spec §6's gpu_init_*).
func (s *Session) SetGPUBackend(backend gpu.Backend, nodeCount int) {
	s.core.SetGPUBackend(backend, nodeCount)
}

// Flip reports one presentation/vsync event on the given GPU node.
func (s *Session) Flip(node int, vsync gpu.VSyncStats) { s.core.Flip(node, vsync) }

var (
	defaultOnce    sync.Once
	defaultSession *Session
	defaultErr     error
)

// Default returns the process-wide Session, creating it (with a disabled
// logger and a listening server) on first use. Most instrumented
// applications only ever need this one session; call InitDefault first
// if you need non-default options.
func Default() (*Session, error) {
	defaultOnce.Do(func() {
		defaultSession, defaultErr = NewSession()
	})
	return defaultSession, defaultErr
}

// InitDefault installs opts for the process-wide Default session. It
// must be called before the first Default() call; calling it afterward
// has no effect. Intended for a host's startup code, e.g.:
//
//	pulse.InitDefault(pulse.WithLogger(appLogger), pulse.WithTraceProvider(linuxTracer))
//	session, err := pulse.Default()
func InitDefault(opts ...Option) {
	defaultOnce.Do(func() {
		defaultSession, defaultErr = NewSession(opts...)
	})
}
