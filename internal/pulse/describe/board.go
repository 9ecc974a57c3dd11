// Package describe implements the process-global Description Board: the
// de-duplicated registry of EventDescriptions every recorded event refers
// to by index (spec §3, §4.2).
package describe

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"

	"github.com/coral-mesh/pulse/internal/pulse/perrors"
)

// NullIndex is the wire sentinel for "no description" (spec §4.9,
// Design Notes on EventData.description possibly being null).
const NullIndex uint32 = 0xFFFFFFFF

// Description is the immutable identity of one annotation point.
type Description struct {
	// Index is dense, monotonically increasing, and never reused; it is
	// assigned once, at registration, and is the only identifier the wire
	// protocol carries for a description.
	Index uint32

	Name     string
	File     string
	Line     int32
	Color    uint32 // ARGB; zero means "not a category"
	Filter   uint32 // opaque GUI filter bitmask, pass-through only
	Budget   float32 // always 0; kept for wire compatibility, see spec §9
}

// IsCategory reports whether the description has a non-null color, which
// is what makes an event using it a "category" event for the dumper.
func (d *Description) IsCategory() bool { return d.Color != 0 }

// Board is the process-global registry. Creation is rare and guarded by a
// mutex; readers that already hold a *Description (cached at the call
// site, as the hot path does) never take the lock.
type Board struct {
	mu     sync.Mutex
	logger zerolog.Logger

	ordered []*Description          // source of truth for Index order
	shared  map[uint64]*Description // xxh3 hash of name -> interned description
	arena   []string                // owns copies of interned shared names
}

// New creates an empty Description Board.
func New(logger zerolog.Logger) *Board {
	return &Board{
		logger: logger.With().Str("component", "describe.board").Logger(),
		shared: make(map[uint64]*Description),
	}
}

// CreateDescription always allocates a new Description. The caller must
// guarantee name (and file, if non-empty) outlive the process, as with a
// string literal or a function name constant — this is the "static"
// registration mode of spec §3.
func (b *Board) CreateDescription(name, file string, line int32, color, filter uint32) (*Description, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.appendLocked(name, file, line, color, filter)
}

// CreateSharedDescription interns by a 64-bit hash of name: repeated calls
// with the same name return the same *Description and the same Index, and
// the name is copied into a process-wide arena rather than trusted to
// outlive the call (the "shared" mode of spec §3). The hash function is an
// internal implementation detail, not part of the wire contract, so this
// uses xxh3 rather than the source's bespoke string hash — see DESIGN.md.
func (b *Board) CreateSharedDescription(name, file string, line int32, color, filter uint32) (*Description, error) {
	h := xxh3.HashString(name)

	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, ok := b.shared[h]; ok && existing.Name == name {
		return existing, nil
	}

	// Copy the name into the arena so the registry does not depend on the
	// caller's string living forever.
	b.arena = append(b.arena, name)
	owned := b.arena[len(b.arena)-1]

	desc, err := b.appendLocked(owned, file, line, color, filter)
	if err != nil {
		return nil, err
	}
	b.shared[h] = desc
	return desc, nil
}

// appendLocked assigns the next index and appends; caller holds b.mu.
func (b *Board) appendLocked(name, file string, line int32, color, filter uint32) (*Description, error) {
	if len(b.ordered) >= int(NullIndex) {
		return nil, perrors.ErrDescriptionIndexOverflow
	}
	desc := &Description{
		Index:  uint32(len(b.ordered)),
		Name:   name,
		File:   file,
		Line:   line,
		Color:  color,
		Filter: filter,
	}
	b.ordered = append(b.ordered, desc)
	return desc, nil
}

// Count returns the number of registered descriptions.
func (b *Board) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ordered)
}

// Snapshot returns the descriptions in index order. The returned slice is a
// copy of the index; callers must not mutate the pointees.
func (b *Board) Snapshot() []*Description {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Description, len(b.ordered))
	copy(out, b.ordered)
	return out
}

// ByIndex looks up a description by its wire index. It is safe to call
// concurrently with registration; the mutex only guards the slice header.
func (b *Board) ByIndex(idx uint32) (*Description, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if int(idx) >= len(b.ordered) {
		return nil, false
	}
	return b.ordered[idx], true
}
