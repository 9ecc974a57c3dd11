package mempool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_AddPointersStableAcrossChunks(t *testing.T) {
	p := New[int](4)
	ptrs := make([]*int, 0, 10)
	for i := 0; i < 10; i++ {
		rec := p.Add()
		*rec = i
		ptrs = append(ptrs, rec)
	}
	require.Equal(t, 10, p.Size())
	for i, ptr := range ptrs {
		assert.Equal(t, i, *ptr, "pointer returned by Add must stay valid after later Add calls")
	}
}

func TestPool_BackReflectsLastAdd(t *testing.T) {
	p := New[int](4)
	assert.Nil(t, p.Back())
	p.Add()
	rec := p.Add()
	*rec = 42
	assert.Equal(t, 42, *p.Back())
}

func TestPool_TryAddRespectsChunkBoundary(t *testing.T) {
	p := New[int](4)
	run, ok := p.TryAdd(4)
	require.True(t, ok)
	assert.Len(t, run, 4)

	_, ok = p.TryAdd(1)
	assert.False(t, ok, "a full chunk must not let TryAdd straddle into the next one")
}

func TestPool_ClearPreserveMemoryKeepsChunksAllocated(t *testing.T) {
	p := New[int](4)
	for i := 0; i < 8; i++ {
		p.Add()
	}
	p.Clear(true)
	assert.Equal(t, 0, p.Size())
	assert.True(t, p.IsEmpty())

	rec := p.Add()
	*rec = 7
	assert.Equal(t, 7, *p.At(0))
}

func TestPool_ClearWithoutPreserveReleasesChunks(t *testing.T) {
	p := New[int](4)
	p.Add()
	p.Clear(false)
	assert.Equal(t, 0, p.Size())

	rec := p.Add()
	*rec = 5
	assert.Equal(t, 5, *p.At(0))
}

func TestPool_ForEachAndToSliceOrder(t *testing.T) {
	p := New[int](3)
	for i := 0; i < 7; i++ {
		rec := p.Add()
		*rec = i
	}
	var seen []int
	p.ForEach(func(v *int) { seen = append(seen, *v) })
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6}, seen)
	assert.Equal(t, seen, p.ToSlice())
}

func TestPool_AtPanicsOutOfRange(t *testing.T) {
	p := New[int](4)
	p.Add()
	assert.Panics(t, func() { p.At(1) })
	assert.Panics(t, func() { p.At(-1) })
}
