//go:build linux

package platform

import "golang.org/x/sys/unix"

// ThreadID returns the kernel thread id (gettid) of the calling OS thread.
//
// This is only meaningful when the calling goroutine is locked to its OS
// thread (runtime.LockOSThread); callers that register a "thread" with
// pulse are expected to do so from a goroutine that holds that lock for
// its lifetime, matching the source's assumption that registration happens
// once per OS thread.
func ThreadID() int64 {
	return int64(unix.Gettid())
}
