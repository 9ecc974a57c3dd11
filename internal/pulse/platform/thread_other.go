//go:build !linux

package platform

import (
	"sync/atomic"
)

var syntheticThreadSeq int64

// ThreadID returns a process-unique synthetic thread id on platforms where
// the module does not read the kernel thread id directly. Every call
// returns a new value; callers should sample it once at registration time
// and not call it again for the same logical thread.
func ThreadID() int64 {
	return atomic.AddInt64(&syntheticThreadSeq, 1)
}
