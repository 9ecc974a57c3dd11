// Package perrors enumerates the error taxonomy a capture can surface.
//
// Errors here are sentinel values checked with errors.Is; subsystems wrap
// them with context via fmt.Errorf("...: %w", err) the way the rest of the
// module does.
package perrors

import "errors"

// Capture-start failures, surfaced to the GUI in a Handshake message
// (see internal/pulse/wire) and never returned as a call panic.
var (
	// ErrTracerAlreadyExists means a kernel trace session name is already
	// in use by another profiler instance.
	ErrTracerAlreadyExists = errors.New("pulse: tracer session already exists")

	// ErrTracerAccessDenied means the process lacks the privilege required
	// to start the OS trace provider.
	ErrTracerAccessDenied = errors.New("pulse: tracer access denied")

	// ErrTracerInvalidPassword means the platform required elevation and
	// the supplied credential was rejected.
	ErrTracerInvalidPassword = errors.New("pulse: tracer invalid password")

	// ErrTracerFailed is a generic, non-specific tracer start failure.
	ErrTracerFailed = errors.New("pulse: tracer failed to start")
)

// Protocol-level errors from the wire framing and message decoders.
var (
	// ErrFramingError means a frame's mark bytes did not match; the
	// receiver resynchronizes by scanning for the next mark and the
	// connection is kept open.
	ErrFramingError = errors.New("pulse: bad frame mark")

	// ErrUnknownMessage means the message type code has no registered
	// decoder; the frame is discarded but the connection stays open.
	ErrUnknownMessage = errors.New("pulse: unknown message type")

	// ErrStreamCorrupt means a decoder ran past the end of a frame's
	// payload. The server logs the request that failed to decode and
	// discards it; the connection is not dropped.
	ErrStreamCorrupt = errors.New("pulse: stream corrupt")
)

// GPU query errors.
var (
	// ErrGPUQueryNotReady means a frame's timestamp queries had not been
	// signaled by the backend when the profiler expected to resolve them.
	// The entire frame's GPU events are dropped silently by the caller;
	// this value exists for logging, not for propagation to users.
	ErrGPUQueryNotReady = errors.New("pulse: gpu queries not ready")

	// ErrGPUProfilerRunning means Start was called on a gpu.Profiler that
	// already has a backend installed.
	ErrGPUProfilerRunning = errors.New("pulse: gpu profiler already running")
)

// Registration/description errors.
var (
	// ErrDescriptionIndexOverflow means the process has registered more
	// event descriptions than fit in the 32-bit index space. Registration
	// fails deterministically rather than wrapping the index counter.
	ErrDescriptionIndexOverflow = errors.New("pulse: description index space exhausted")

	// ErrStorageInactive means Start was called against a handle whose
	// owner is not part of an active capture. Callers should treat this
	// as the normal "no-op" path, not a failure.
	ErrStorageInactive = errors.New("pulse: storage inactive")
)

// Server errors.
var (
	// ErrNoFreePort means no port in the configured bind range was
	// available to the TCP server.
	ErrNoFreePort = errors.New("pulse: no free port in bind range")

	// ErrAlreadyConnected means Listen was called on a Server that already
	// holds a listening socket.
	ErrAlreadyConnected = errors.New("pulse: a client is already connected")
)
