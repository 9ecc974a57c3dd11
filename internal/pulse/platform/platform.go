// Package platform wraps the handful of OS-level facts the profiler core
// needs: a monotonic clock, thread and process identity, and host info for
// the Handshake message. It is the Go equivalent of the source's
// Platform.h/.cpp.
package platform

import (
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"

	"github.com/coral-mesh/pulse/internal/safe"
)

// InvalidTimestamp is the sentinel used throughout the event model for
// "not yet set" (in-flight GPU events, unmatched syscall exits).
const InvalidTimestamp int64 = -1

var processStart = time.Now()

// Now returns the current time in platform ticks. Ticks are nanoseconds
// from Go's monotonic clock reading, which is the idiomatic stand-in for
// the source's raw TSC sample: monotonic, cheap, and comparable across
// goroutines on the same process.
func Now() int64 {
	return time.Since(processStart).Nanoseconds()
}

// Frequency returns the number of ticks per second, used to populate
// FrameDescriptionBoard.frequency on the wire.
func Frequency() int64 {
	return int64(time.Second)
}

// ProcessID returns the current OS process id, clamped to int32 (the wire
// format's FrameDescriptionBoard.process_id field width) rather than
// truncated, on the off chance a host OS hands back a pid wider than
// 32 bits.
func ProcessID() int32 {
	pid, _ := safe.IntToInt32(os.Getpid())
	return pid
}

// CPUCount returns the number of logical CPUs visible to the process,
// sampled via gopsutil rather than runtime.NumCPU so that it reflects the
// host's physical topology even when GOMAXPROCS has been constrained.
func CPUCount() int {
	counts, err := cpu.Counts(true)
	if err != nil || counts <= 0 {
		return 1
	}
	return counts
}

// HostInfo reports the platform string and hostname sent in the Handshake
// message. Both fields degrade to "unknown" rather than failing the
// handshake if the host info cannot be sampled.
func HostInfo() (platformName, hostname string) {
	info, err := host.Info()
	if err != nil || info == nil {
		return "unknown", "unknown"
	}
	platformName = info.Platform
	if platformName == "" {
		platformName = info.OS
	}
	if platformName == "" {
		platformName = "unknown"
	}
	hostname = info.Hostname
	if hostname == "" {
		hostname = "unknown"
	}
	return platformName, hostname
}
