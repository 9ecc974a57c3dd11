package trace

// Mode is the capture mode bitmask carried by the Start request (spec
// §4.10) and consulted by Core to decide which collaborators to start
// (spec SPEC_FULL.md §3, grounded in the original source's Common.h).
type Mode uint32

const (
	ModeInstrumentation Mode = 1 << iota
	ModeSampling
	ModeTags
	ModeAutoSampling
	ModeSwitchContexts
	ModeIO
	ModeGPU
)

// Has reports whether m includes the given flag.
func (m Mode) Has(flag Mode) bool { return m&flag != 0 }

// Status is the outcome of a Provider.Start call, surfaced to the GUI
// exactly once in the Handshake message (spec §4.4, §7).
type Status uint8

const (
	StatusOK Status = iota
	StatusAccessDenied
	StatusAlreadyExists
	StatusFailed
	StatusInvalidPassword
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusAccessDenied:
		return "AccessDenied"
	case StatusAlreadyExists:
		return "AlreadyExists"
	case StatusFailed:
		return "Failed"
	case StatusInvalidPassword:
		return "InvalidPassword"
	default:
		return "Unknown"
	}
}

// Sink is how a Provider delivers records back into the core without
// depending on the core package directly (avoiding an import cycle): Core
// passes a Sink backed by its collectors when starting the provider.
type Sink struct {
	SwitchContext *SwitchContextCollector
	Callstack     *CallstackCollector
	Syscall       *SyscallCollector
}

// ReportSwitchContext forwards to the switch-context collector, if any.
func (s Sink) ReportSwitchContext(sc SwitchContext) {
	if s.SwitchContext != nil {
		s.SwitchContext.Add(sc)
	}
}

// ReportStackWalk forwards to the callstack collector, if any.
func (s Sink) ReportStackWalk(desc CallstackDesc) {
	if s.Callstack != nil {
		s.Callstack.Add(desc)
	}
}

// ReportSyscallEnter forwards a syscall entry to the syscall collector.
func (s Sink) ReportSyscallEnter(threadID int64, syscallID uint32, timestamp int64) {
	if s.Syscall != nil {
		s.Syscall.Enter(threadID, syscallID, timestamp)
	}
}

// ReportSyscallExit forwards a syscall exit to the syscall collector.
func (s Sink) ReportSyscallExit(threadID int64, timestamp int64) {
	if s.Syscall != nil {
		s.Syscall.Exit(threadID, timestamp)
	}
}

// Provider is the external kernel-tracing collaborator (ETW, DTrace,
// perf/ftrace) that Core drives. Implementing one is out of scope per
// spec §1 Non-goals; Core only consumes this interface (spec §6).
type Provider interface {
	// Start begins tracing the given mode for the given thread ids,
	// delivering records to sink from the provider's own callback
	// thread until Stop is called.
	Start(mode Mode, threadIDs []int64, sink Sink) Status

	// Stop ends tracing. It returns false if the provider was not
	// running.
	Stop() bool

	// SetPassword supplies a credential for platforms that require
	// elevation to attach a kernel trace session.
	SetPassword(password string)
}
