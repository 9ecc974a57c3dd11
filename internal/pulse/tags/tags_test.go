package tags

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/pulse/internal/pulse/storage"
)

func TestTags_InactiveHandleIsNoOp(t *testing.T) {
	h := storage.NewHandle()
	assert.NotPanics(t, func() {
		Float32(h, nil, 1)
		Int32(h, nil, 1)
		Uint32(h, nil, 1)
		Uint64(h, nil, 1)
		Point(h, nil, 1, 2, 3)
		String(h, nil, "x")
	})
}

func TestTags_EachKindAppendsToItsOwnPool(t *testing.T) {
	entry := storage.NewThreadEntry(storage.ThreadDescription{Name: "t", ThreadID: 1})
	entry.Activate(true)

	Float32(entry.Handle, nil, 1.5)
	Int32(entry.Handle, nil, -2)
	Uint32(entry.Handle, nil, 3)
	Uint64(entry.Handle, nil, 4)
	Point(entry.Handle, nil, 1, 2, 3)
	String(entry.Handle, nil, "hello")

	require.Equal(t, 1, entry.Storage.TagPool(storage.TagFloat32).Size())
	assert.Equal(t, float32(1.5), entry.Storage.TagPool(storage.TagFloat32).At(0).F32)

	require.Equal(t, 1, entry.Storage.TagPool(storage.TagInt32).Size())
	assert.Equal(t, int32(-2), entry.Storage.TagPool(storage.TagInt32).At(0).I32)

	require.Equal(t, 1, entry.Storage.TagPool(storage.TagUint32).Size())
	assert.Equal(t, uint32(3), entry.Storage.TagPool(storage.TagUint32).At(0).U32)

	require.Equal(t, 1, entry.Storage.TagPool(storage.TagUint64).Size())
	assert.Equal(t, uint64(4), entry.Storage.TagPool(storage.TagUint64).At(0).U64)

	require.Equal(t, 1, entry.Storage.TagPool(storage.TagPoint3D).Size())
	assert.Equal(t, storage.Point3D{X: 1, Y: 2, Z: 3}, entry.Storage.TagPool(storage.TagPoint3D).At(0).Point)

	require.Equal(t, 1, entry.Storage.TagPool(storage.TagString).Size())
	assert.Equal(t, "hello", entry.Storage.TagPool(storage.TagString).At(0).Str)
}

func TestTags_StringTruncatesToMaxLen(t *testing.T) {
	entry := storage.NewThreadEntry(storage.ThreadDescription{Name: "t", ThreadID: 1})
	entry.Activate(true)

	long := strings.Repeat("x", maxStringLen+10)
	String(entry.Handle, nil, long)

	got := entry.Storage.TagPool(storage.TagString).At(0).Str
	assert.Len(t, got, maxStringLen)
}
