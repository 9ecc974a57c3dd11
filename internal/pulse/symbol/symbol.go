// Package symbol defines the SymbolEngine collaborator interface of spec
// §6 and a reference StaticEngine implementation used by tests. Real
// DWARF/PDB-backed engines are out of scope per spec §1.
package symbol

import (
	"sort"

	"github.com/ianlancetaylor/demangle"
)

// Module is one loaded binary image (spec §6).
type Module struct {
	Path string
	Base uint64
	Size uint64
}

// Contains reports whether addr falls within the module's mapped range.
func (m Module) Contains(addr uint64) bool {
	return addr >= m.Base && addr < m.Base+m.Size
}

// Symbol is a resolved address (spec §6).
type Symbol struct {
	Addr     uint64
	Offset   uint64
	Module   string
	File     string
	Line     int32
	Function string
}

// Engine resolves instruction pointers to symbols for the Capture Dumper's
// CallstackDescriptionBoard message (spec §4.8, §6).
type Engine interface {
	GetSymbol(addr uint64) (Symbol, bool)
	GetModules() []Module
}

// entry is one address range registered ahead of time.
type entry struct {
	lo, hi   uint64
	function string
	file     string
	line     int32
	module   string
}

// StaticEngine resolves addresses from a table registered ahead of time
// rather than by reading DWARF/PDB debug info, making it suitable as a
// test double and for statically-linked demo binaries whose symbol table
// this process already knows (spec SPEC_FULL.md §4.12). Itanium-mangled
// C++ names are demangled on registration with
// github.com/ianlancetaylor/demangle.
type StaticEngine struct {
	modules []Module
	entries []entry // kept sorted by lo for binary search
}

// NewStaticEngine creates an engine with no registered symbols or modules.
func NewStaticEngine() *StaticEngine {
	return &StaticEngine{}
}

// AddModule registers a loaded image.
func (e *StaticEngine) AddModule(m Module) {
	e.modules = append(e.modules, m)
}

// AddFunction registers the address range [lo, hi) as one function. name
// is demangled if it looks like an Itanium mangled symbol (a leading
// "_Z"); otherwise it is stored verbatim.
func (e *StaticEngine) AddFunction(lo, hi uint64, name, module, file string, line int32) {
	fn := name
	if demangled, err := demangle.ToString(name); err == nil {
		fn = demangled
	}
	e.entries = append(e.entries, entry{lo: lo, hi: hi, function: fn, file: file, line: line, module: module})
	sort.Slice(e.entries, func(i, j int) bool { return e.entries[i].lo < e.entries[j].lo })
}

// GetSymbol resolves addr against the registered function ranges.
func (e *StaticEngine) GetSymbol(addr uint64) (Symbol, bool) {
	i := sort.Search(len(e.entries), func(i int) bool { return e.entries[i].hi > addr })
	if i == len(e.entries) || addr < e.entries[i].lo {
		return Symbol{}, false
	}
	ent := e.entries[i]
	return Symbol{
		Addr:     addr,
		Offset:   addr - ent.lo,
		Module:   ent.module,
		File:     ent.file,
		Line:     ent.line,
		Function: ent.function,
	}, true
}

// GetModules returns every registered module.
func (e *StaticEngine) GetModules() []Module { return e.modules }
