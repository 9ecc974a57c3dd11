package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreadEntry_ActivateClearsThenPublishes(t *testing.T) {
	e := NewThreadEntry(ThreadDescription{Name: "main", ThreadID: 1})
	assert.Nil(t, e.Handle.Load())

	AddExternal(e.Storage, nil, 0, 1)
	require.Equal(t, 1, e.Storage.Events().Size())

	e.Activate(true)
	require.Same(t, e.Storage, e.Handle.Load())
	assert.Equal(t, 0, e.Storage.Events().Size(), "activation must clear stale events from a prior capture")

	e.Activate(false)
	assert.Nil(t, e.Handle.Load())
}

func TestThreadEntry_KillMarksDead(t *testing.T) {
	e := NewThreadEntry(ThreadDescription{Name: "t", ThreadID: 2})
	assert.True(t, e.IsAlive())
	e.Kill()
	assert.False(t, e.IsAlive())
}

func TestFiberEntry_ActivateAndKill(t *testing.T) {
	e := NewFiberEntry(7)
	assert.True(t, e.Storage.IsFiberStorage)

	e.Activate(true)
	require.Same(t, e.Storage, e.Handle.Load())

	e.Activate(false)
	assert.Nil(t, e.Handle.Load())

	assert.True(t, e.IsAlive())
	e.Kill()
	assert.False(t, e.IsAlive())
}
