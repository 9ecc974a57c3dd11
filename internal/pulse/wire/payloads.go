package wire

import (
	"github.com/coral-mesh/pulse/internal/pulse/describe"
	"github.com/coral-mesh/pulse/internal/pulse/storage"
	"github.com/coral-mesh/pulse/internal/pulse/symbol"
	"github.com/coral-mesh/pulse/internal/pulse/trace"
)

// EncodeEventDescription writes one EventDescription: name, file, line,
// filter, color, f32 budget=0, u8 flags=0 (spec §4.9).
func EncodeEventDescription(e *Encoder, d *describe.Description) {
	e.String(d.Name)
	e.String(d.File)
	e.I32(d.Line)
	e.U32(d.Filter)
	e.U32(d.Color)
	e.F32(0) // budget: always zero, kept only for wire-shape compatibility
	e.U8(0)  // flags: unused, reserved
}

// EncodeEventTime writes {start, finish} as i64 each (spec §4.9).
func EncodeEventTime(e *Encoder, t storage.EventTime) {
	e.I64(t.Start)
	e.I64(t.Finish)
}

// EncodeEventData writes EventTime followed by the u32 description index,
// or describe.NullIndex if Description is nil (spec §4.9).
func EncodeEventData(e *Encoder, ev storage.EventData) {
	EncodeEventTime(e, ev.Time)
	if ev.Description == nil {
		e.U32(describe.NullIndex)
	} else {
		e.U32(ev.Description.Index)
	}
}

// ScopeHeader identifies which board/thread/fiber/time-range a ScopeData
// belongs to (spec §4.9).
type ScopeHeader struct {
	BoardNumber  uint32
	ThreadNumber int32
	FiberNumber  int32 // -1 when the scope is not a fiber
	Time         storage.EventTime
}

// EncodeScopeHeader writes a ScopeHeader.
func EncodeScopeHeader(e *Encoder, h ScopeHeader) {
	e.U32(h.BoardNumber)
	e.I32(h.ThreadNumber)
	e.I32(h.FiberNumber)
	EncodeEventTime(e, h.Time)
}

// ScopeData is one flushed root-and-children packing from the Capture
// Dumper's scope-packing pass (spec §4.8–§4.9): a header, the category
// events under the root, and the root plus all of its children.
type ScopeData struct {
	Header     ScopeHeader
	Categories []storage.EventData
	Events     []storage.EventData
}

// EncodeScopeData writes one ScopeData (the EventFrame message payload).
func EncodeScopeData(e *Encoder, s ScopeData) {
	EncodeScopeHeader(e, s.Header)
	e.Vector(len(s.Categories), func(i int) { EncodeEventData(e, s.Categories[i]) })
	e.Vector(len(s.Events), func(i int) { EncodeEventData(e, s.Events[i]) })
}

// EncodeEventFrame builds message type 1: one ScopeData.
func EncodeEventFrame(s ScopeData) []byte {
	e := NewEncoder()
	EncodeScopeData(e, s)
	return e.Bytes()
}

// EncodeNullFrame builds message type 3: the empty dump terminator
// (spec §4.8, §4.10).
func EncodeNullFrame() []byte { return nil }

// EncodeReportProgress builds message type 4: a single status string.
func EncodeReportProgress(status string) []byte {
	e := NewEncoder()
	e.String(status)
	return e.Bytes()
}

// EncodeHandshake builds message type 5: tracer status plus platform and
// hostname strings (spec §4.4, §4.10).
func EncodeHandshake(status trace.Status, platform, hostname string) []byte {
	e := NewEncoder()
	e.U32(uint32(status))
	e.String(platform)
	e.String(hostname)
	return e.Bytes()
}

func encodeThreadDescription(e *Encoder, td storage.ThreadDescription) {
	e.String(td.Name)
	e.I64(td.ThreadID)
	e.I32(td.ProcessID)
	e.I32(td.MaxDepth)
	e.I32(td.Priority)
	e.U64(td.Mask)
}

// FrameDescriptionBoard is the per-dump header payload of spec §4.8
// step 5. origin and precision are reserved fields the source carries for
// future clock models; this module always emits them as zero. It carries
// no process-description or thread-description lists after the mode
// field; ProcessID and CPUCount follow mode directly.
type FrameDescriptionBoard struct {
	BoardNumber     uint32
	Frequency       int64
	TimeSlice       storage.EventTime
	Threads         []storage.ThreadDescription
	FiberIDs        []uint64
	MainThreadIndex int32
	Descriptions    []*describe.Description
	Mode            uint32
	ProcessID       int32
	CPUCount        int32
}

// EncodeFrameDescriptionBoard builds message type 0: everything a GUI
// needs to interpret every EventFrame/TagsPack that follows in the same
// dump, emitted once before any of them (spec §4.8 step 5).
func EncodeFrameDescriptionBoard(b FrameDescriptionBoard) []byte {
	e := NewEncoder()
	e.U32(b.BoardNumber)
	e.I64(b.Frequency)
	e.I64(0) // origin
	e.I64(0) // precision
	EncodeEventTime(e, b.TimeSlice)
	e.Vector(len(b.Threads), func(i int) { encodeThreadDescription(e, b.Threads[i]) })
	e.Vector(len(b.FiberIDs), func(i int) { e.U64(b.FiberIDs[i]) })
	e.I32(b.MainThreadIndex)
	e.Vector(len(b.Descriptions), func(i int) { EncodeEventDescription(e, b.Descriptions[i]) })
	e.U8(0) // paddings: reserved alignment byte, always zero
	e.U32(b.Mode)
	e.I32(b.ProcessID)
	e.I32(b.CPUCount)
	return e.Bytes()
}

// TagPack is the ordered set of one thread's tag pools for one dump
// (spec §4.10's "typed tag vectors in a fixed order").
type TagPack struct {
	F32    []storage.TagData
	I32    []storage.TagData
	U32    []storage.TagData
	U64    []storage.TagData
	Point  []storage.TagData
	String []storage.TagData
}

func encodeTagCommon(e *Encoder, t storage.TagData) {
	EncodeEventTime(e, storage.EventTime{Start: t.Timestamp, Finish: t.Timestamp})
	if t.Description == nil {
		e.U32(describe.NullIndex)
	} else {
		e.U32(t.Description.Index)
	}
}

// EncodeTagsPack builds message type 8: boardNumber, threadNumber, then
// the six typed tag vectors in a fixed order (spec §4.10).
func EncodeTagsPack(boardNumber uint32, threadNumber int32, pack TagPack) []byte {
	e := NewEncoder()
	e.U32(boardNumber)
	e.I32(threadNumber)

	e.Vector(len(pack.F32), func(i int) { encodeTagCommon(e, pack.F32[i]); e.F32(pack.F32[i].F32) })
	e.Vector(len(pack.I32), func(i int) { encodeTagCommon(e, pack.I32[i]); e.I32(pack.I32[i].I32) })
	e.Vector(len(pack.U32), func(i int) { encodeTagCommon(e, pack.U32[i]); e.U32(pack.U32[i].U32) })
	e.Vector(len(pack.U64), func(i int) { encodeTagCommon(e, pack.U64[i]); e.U64(pack.U64[i].U64) })
	e.Vector(len(pack.Point), func(i int) {
		encodeTagCommon(e, pack.Point[i])
		p := pack.Point[i].Point
		e.F32(p.X)
		e.F32(p.Y)
		e.F32(p.Z)
	})
	e.Vector(len(pack.String), func(i int) { encodeTagCommon(e, pack.String[i]); e.String(pack.String[i].Str) })
	return e.Bytes()
}

func encodeSwitchContext(e *Encoder, sc trace.SwitchContext) {
	e.I64(sc.Timestamp)
	e.I64(sc.OldTID)
	e.I64(sc.NewTID)
	e.I32(sc.CPUID)
	e.U8(sc.Reason)
}

// EncodeSynchronizationData builds message type 7: boardNumber plus the
// switch-context pool (spec §4.10).
func EncodeSynchronizationData(boardNumber uint32, switches []trace.SwitchContext) []byte {
	e := NewEncoder()
	e.U32(boardNumber)
	e.Vector(len(switches), func(i int) { encodeSwitchContext(e, switches[i]) })
	return e.Bytes()
}

func encodeSyscall(e *Encoder, sc trace.Syscall) {
	EncodeEventTime(e, sc.Time)
	e.I64(sc.ThreadID)
	e.U32(sc.SyscallID)
}

// EncodeSyscallPack builds message type 257: boardNumber plus the syscall
// pool (spec §4.10).
func EncodeSyscallPack(boardNumber uint32, syscalls []trace.Syscall) []byte {
	e := NewEncoder()
	e.U32(boardNumber)
	e.Vector(len(syscalls), func(i int) { encodeSyscall(e, syscalls[i]) })
	return e.Bytes()
}

func encodeModule(e *Encoder, m symbol.Module) {
	e.String(m.Path)
	e.U64(m.Base)
	e.U64(m.Size)
}

func encodeSymbol(e *Encoder, s symbol.Symbol) {
	e.U64(s.Addr)
	e.U64(s.Offset)
	e.String(s.Module)
	e.String(s.File)
	e.I32(s.Line)
	e.String(s.Function)
}

// EncodeCallstackDescriptionBoard builds message type 9: boardNumber, the
// loaded modules, and the symbols resolved for every unique address the
// callstack collector recorded (spec §4.8 step 9, §4.10).
func EncodeCallstackDescriptionBoard(boardNumber uint32, modules []symbol.Module, symbols []symbol.Symbol) []byte {
	e := NewEncoder()
	e.U32(boardNumber)
	e.Vector(len(modules), func(i int) { encodeModule(e, modules[i]) })
	e.Vector(len(symbols), func(i int) { encodeSymbol(e, symbols[i]) })
	return e.Bytes()
}

// EncodeCallstackPack builds message type 10: boardNumber plus the raw
// packed callstack pool (spec §3, §4.10).
func EncodeCallstackPack(boardNumber uint32, raw []uint64) []byte {
	e := NewEncoder()
	e.U32(boardNumber)
	e.Vector(len(raw), func(i int) { e.U64(raw[i]) })
	return e.Bytes()
}

// FiberSync is one fiber↔thread attachment window, as recorded by
// storage.EventStorage.AppendFiberSync.
type FiberSync struct {
	Time     storage.EventTime
	ThreadID int64
}

// EncodeFiberSynchronizationData builds message type 256: boardNumber,
// fiberNumber, and the fiber-sync pool (spec §4.10).
func EncodeFiberSynchronizationData(boardNumber uint32, fiberNumber int32, syncs []FiberSync) []byte {
	e := NewEncoder()
	e.U32(boardNumber)
	e.I32(fiberNumber)
	e.Vector(len(syncs), func(i int) {
		EncodeEventTime(e, syncs[i].Time)
		e.I64(syncs[i].ThreadID)
	})
	return e.Bytes()
}

// Attachment is one file attached via attach_file (spec §6).
type Attachment struct {
	Kind uint8 // 0=Image, 1=Text, 2=Other
	Name string
	Data []byte
}

// SummaryPair is one attach_summary key/value entry.
type SummaryPair struct {
	Key, Value string
}

// EncodeSummaryPack builds the SummaryPack message: boardNumber, the
// per-frame durations recorded since the previous dump, the key/value
// list from attach_summary, and file attachments from attach_file
// (spec §4.10).
func EncodeSummaryPack(boardNumber uint32, frameDurations []int64, kv []SummaryPair, files []Attachment) []byte {
	e := NewEncoder()
	e.U32(boardNumber)
	e.Vector(len(frameDurations), func(i int) { e.I64(frameDurations[i]) })
	e.Vector(len(kv), func(i int) {
		e.String(kv[i].Key)
		e.String(kv[i].Value)
	})
	e.Vector(len(files), func(i int) {
		e.U8(files[i].Kind)
		e.String(files[i].Name)
		e.Vector(len(files[i].Data), func(j int) { e.U8(files[i].Data[j]) })
	})
	return e.Bytes()
}
