package storage

// ThreadDescription is the static identity of a registered thread, carried
// once at registration and emitted verbatim in the FrameDescriptionBoard
// message (spec §3, §4.10).
type ThreadDescription struct {
	Name      string
	ThreadID  int64
	ProcessID int32
	MaxDepth  int32
	Priority  int32
	Mask      uint64
}

// ThreadEntry is the registry's record for one registered OS thread: its
// static description, the EventStorage it owns while active, and the
// Handle through which that thread's own goroutine reaches the storage.
// Exactly one of these exists per RegisterThread call for the lifetime of
// that thread (spec §3, ThreadEntry).
type ThreadEntry struct {
	Description ThreadDescription
	Storage     *EventStorage
	Handle      *Handle

	isAlive bool
}

// NewThreadEntry builds a ThreadEntry in the inactive state: it owns
// storage but its handle resolves to nil until Activate(true) is called.
func NewThreadEntry(desc ThreadDescription) *ThreadEntry {
	return &ThreadEntry{
		Description: desc,
		Storage:     NewEventStorage(false),
		Handle:      NewHandle(),
		isAlive:     true,
	}
}

// IsAlive reports whether the owning thread is still registered.
func (e *ThreadEntry) IsAlive() bool { return e.isAlive }

// Kill marks the entry as no longer backed by a live thread. The storage
// and any already-dumped events remain valid; only future registration
// lookups and capture activation should skip it.
func (e *ThreadEntry) Kill() { e.isAlive = false }

// Activate installs or clears this thread's storage behind its Handle.
// Per spec §3's activation contract: going active clears (but keeps
// allocated) the storage so a capture always starts from an empty buffer,
// then publishes the storage pointer; going inactive publishes nil first,
// so the thread's next Start/PushEvent call sees "no capture" before any
// pending dump reads the buffer.
func (e *ThreadEntry) Activate(active bool) {
	if active {
		e.Storage.Clear(true)
		e.Handle.set(e.Storage)
		return
	}
	e.Handle.set(nil)
}

// FiberEntry is the registry's record for one registered fiber. Fibers
// carry no OS-level description beyond an identifier the engine assigns;
// everything else about where they ran is reconstructed from the fiber
// sync buffers of the threads that hosted them (spec §3, FiberEntry).
type FiberEntry struct {
	ID      uint64
	Storage *EventStorage
	Handle  *Handle

	isAlive bool
}

// NewFiberEntry builds a FiberEntry in the inactive state.
func NewFiberEntry(id uint64) *FiberEntry {
	return &FiberEntry{
		ID:      id,
		Storage: NewEventStorage(true),
		Handle:  NewHandle(),
		isAlive: true,
	}
}

// IsAlive reports whether the fiber is still registered.
func (e *FiberEntry) IsAlive() bool { return e.isAlive }

// Kill marks the fiber entry as no longer backed by a live fiber.
func (e *FiberEntry) Kill() { e.isAlive = false }

// Activate installs or clears this fiber's storage behind its Handle,
// with the same ordering as ThreadEntry.Activate: clear-then-publish on
// activation, withdraw without clearing on deactivation.
func (e *FiberEntry) Activate(active bool) {
	if active {
		e.Storage.Clear(true)
		e.Handle.set(e.Storage)
		return
	}
	e.Handle.set(nil)
}
