package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModule_Contains(t *testing.T) {
	m := Module{Path: "libgame.so", Base: 0x1000, Size: 0x100}
	assert.True(t, m.Contains(0x1000))
	assert.True(t, m.Contains(0x10FF))
	assert.False(t, m.Contains(0x1100))
	assert.False(t, m.Contains(0x0FFF))
}

func TestStaticEngine_ResolvesRegisteredRange(t *testing.T) {
	e := NewStaticEngine()
	e.AddModule(Module{Path: "libgame.so", Base: 0x1000, Size: 0x1000})
	e.AddFunction(0x1000, 0x1010, "updatePhysics", "libgame.so", "physics.cpp", 42)

	sym, ok := e.GetSymbol(0x1004)
	require.True(t, ok)
	assert.Equal(t, uint64(0x1004), sym.Addr)
	assert.Equal(t, uint64(4), sym.Offset)
	assert.Equal(t, "updatePhysics", sym.Function)
	assert.Equal(t, "physics.cpp", sym.File)
	assert.Equal(t, int32(42), sym.Line)

	assert.Len(t, e.GetModules(), 1)
}

func TestStaticEngine_UnresolvedAddrReturnsFalse(t *testing.T) {
	e := NewStaticEngine()
	e.AddFunction(0x1000, 0x1010, "fn", "mod", "f.cpp", 1)

	_, ok := e.GetSymbol(0x2000)
	assert.False(t, ok)
}

func TestStaticEngine_DemanglesItaniumNames(t *testing.T) {
	e := NewStaticEngine()
	e.AddFunction(0x1000, 0x1010, "_Z3fooi", "mod", "f.cpp", 1)

	sym, ok := e.GetSymbol(0x1000)
	require.True(t, ok)
	assert.Equal(t, "foo(int)", sym.Function)
}

func TestStaticEngine_NonMangledNameKeptVerbatim(t *testing.T) {
	e := NewStaticEngine()
	e.AddFunction(0x1000, 0x1010, "plainName", "mod", "f.cpp", 1)

	sym, ok := e.GetSymbol(0x1000)
	require.True(t, ok)
	assert.Equal(t, "plainName", sym.Function)
}

func TestStaticEngine_ResolvesAcrossMultipleRegisteredRanges(t *testing.T) {
	e := NewStaticEngine()
	e.AddFunction(0x2000, 0x2010, "second", "mod", "f.cpp", 2)
	e.AddFunction(0x1000, 0x1010, "first", "mod", "f.cpp", 1)

	sym, ok := e.GetSymbol(0x2005)
	require.True(t, ok)
	assert.Equal(t, "second", sym.Function)

	sym, ok = e.GetSymbol(0x1005)
	require.True(t, ok)
	assert.Equal(t, "first", sym.Function)
}
