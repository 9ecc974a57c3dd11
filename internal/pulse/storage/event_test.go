package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStart_InactiveHandleIsNoOp(t *testing.T) {
	h := NewHandle()
	span := Start(h, nil)
	assert.NotPanics(t, func() { span.Stop() })
}

func TestStart_RecordsEventWhenActive(t *testing.T) {
	h := NewHandle()
	s := NewEventStorage(false)
	h.set(s)

	span := Start(h, nil)
	assert.Equal(t, 1, s.Events().Size())
	span.Stop()

	ev := s.Events().At(0)
	assert.True(t, ev.Time.IsValid())
	assert.LessOrEqual(t, ev.Time.Start, ev.Time.Finish)
}

func TestPushPopEvent_LIFO(t *testing.T) {
	h := NewHandle()
	s := NewEventStorage(false)
	h.set(s)

	require.True(t, PushEvent(h, nil))
	require.True(t, PushEvent(h, nil))
	require.Equal(t, 2, s.Events().Size())

	require.True(t, PopEvent(h))
	inner := s.Events().At(1)
	assert.True(t, inner.Time.IsValid())
	outer := s.Events().At(0)
	assert.False(t, outer.Time.IsValid(), "outer event must still be open")

	require.True(t, PopEvent(h))
	assert.True(t, s.Events().At(0).Time.IsValid())

	assert.False(t, PopEvent(h), "popping an empty stack must report false, not panic")
}

func TestPushEvent_OverflowDropsSilently(t *testing.T) {
	h := NewHandle()
	s := NewEventStorage(false)
	h.set(s)

	for i := 0; i < PushPopStackCapacity; i++ {
		require.True(t, PushEvent(h, nil))
	}
	assert.False(t, PushEvent(h, nil), "the stack is at capacity; one more push must be rejected")
	assert.Equal(t, PushPopStackCapacity, s.Events().Size(), "the rejected push must not have recorded an event")
}

func TestPushEvent_InactiveHandleReturnsFalse(t *testing.T) {
	h := NewHandle()
	assert.False(t, PushEvent(h, nil))
	assert.False(t, PopEvent(h))
}

func TestAddExternal_RecordsPreMeasuredEvent(t *testing.T) {
	s := NewEventStorage(false)
	AddExternal(s, nil, 100, 200)

	ev := s.Events().At(0)
	assert.Equal(t, int64(100), ev.Time.Start)
	assert.Equal(t, int64(200), ev.Time.Finish)
}

func TestHandle_LoadReflectsActivation(t *testing.T) {
	h := NewHandle()
	assert.Nil(t, h.Load())

	s := NewEventStorage(false)
	h.set(s)
	assert.Same(t, s, h.Load())

	h.set(nil)
	assert.Nil(t, h.Load())
}
