package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/pulse/internal/pulse/wire"
	"github.com/coral-mesh/pulse/internal/testutil"
)

type fakeSender struct {
	types []wire.MessageType
}

func (s *fakeSender) Send(t wire.MessageType, payload []byte) {
	s.types = append(s.types, t)
}

func newTestCore(t *testing.T) *Core {
	return New(testutil.NewTestLogger(t), nil, nil, nil)
}

func TestCore_StartsIdle(t *testing.T) {
	c := newTestCore(t)
	assert.Equal(t, StateIdle, c.State())
}

func TestCore_RegisterThread_DuplicateReturnsSameHandle(t *testing.T) {
	c := newTestCore(t)
	h1 := c.RegisterThread("main", 1, 32, 0, 0)
	h2 := c.RegisterThread("main", 1, 32, 0, 0)
	assert.Same(t, h1, h2)
}

func TestCore_StartCapture_TransitionsOnNextFrame(t *testing.T) {
	c := newTestCore(t)
	assert.Equal(t, StateIdle, c.State())

	c.StartCapture(0)
	c.NextFrame(nil)
	assert.Equal(t, StateActive, c.State())
}

func TestCore_RegisterThread_ActivatedImmediatelyWhileCaptureIsActive(t *testing.T) {
	c := newTestCore(t)
	c.StartCapture(0)
	c.NextFrame(nil)

	h := c.RegisterThread("worker", 2, 32, 0, 0)
	assert.NotNil(t, h.Load(), "a thread registered mid-capture must be activated immediately")
}

func TestCore_StopCapture_ReturnsToIdle(t *testing.T) {
	c := newTestCore(t)
	c.StartCapture(0)
	c.NextFrame(nil)
	require.Equal(t, StateActive, c.State())

	c.StopCapture()
	c.NextFrame(nil)
	assert.Equal(t, StateIdle, c.State())
}

func TestCore_DumpCapture_SendsMessagesThroughSenderAndReturnsIdle(t *testing.T) {
	c := newTestCore(t)
	sender := &fakeSender{}
	c.SetSender(sender)

	c.StartCapture(0)
	c.NextFrame(nil)
	require.Equal(t, StateActive, c.State())

	c.DumpCapture()
	c.NextFrame(nil)

	assert.Equal(t, StateIdle, c.State())
	require.NotEmpty(t, sender.types)
	assert.Equal(t, wire.TypeNullFrame, sender.types[len(sender.types)-1])
}

func TestCore_StateChangedCallback_CanDelayTransition(t *testing.T) {
	c := newTestCore(t)
	allow := false
	calls := 0
	c.SetStateChangedCallback(func(req Request) bool {
		calls++
		return allow
	})

	c.StartCapture(0)
	c.NextFrame(nil)
	assert.Equal(t, StateIdle, c.State(), "a false return from the callback must delay the transition")

	allow = true
	c.NextFrame(nil)
	assert.Equal(t, StateActive, c.State())
	assert.GreaterOrEqual(t, calls, 2)
}

func TestCore_NextFrame_ReturnsIncrementingFrameNumbers(t *testing.T) {
	c := newTestCore(t)
	n1 := c.NextFrame(nil)
	n2 := c.NextFrame(nil)
	assert.Equal(t, n1+1, n2)
}

func TestCore_NextFrame_CallsPumpBeforeApplyingPendingRequest(t *testing.T) {
	c := newTestCore(t)
	c.StartCapture(0)

	pumped := false
	c.NextFrame(func() {
		pumped = true
		assert.Equal(t, StateIdle, c.State(), "pump runs before the pending request is applied")
	})
	assert.True(t, pumped)
	assert.Equal(t, StateActive, c.State())
}

func TestCore_AttachSummaryAndFile_ConsumedByNextDump(t *testing.T) {
	c := newTestCore(t)
	sender := &fakeSender{}
	c.SetSender(sender)

	c.AttachSummary("build", "debug")
	c.AttachFile(1, "notes.txt", []byte("hello"))

	c.StartCapture(0)
	c.NextFrame(nil)
	c.DumpCapture()
	c.NextFrame(nil)

	// Activation sends the Handshake first; the dump opens with SummaryPack.
	assert.Equal(t, wire.TypeHandshake, sender.types[0])
	assert.Equal(t, wire.TypeSummaryPack, sender.types[1])
}

func TestCore_UnregisterThread_PersistsUntilDump(t *testing.T) {
	c := newTestCore(t)
	c.StartCapture(0)
	c.NextFrame(nil)

	c.RegisterThread("worker", 5, 32, 0, 0)
	c.UnregisterThread(5)

	sender := &fakeSender{}
	c.SetSender(sender)
	c.DumpCapture()
	c.NextFrame(nil)

	_, stillTracked := c.threads[5]
	assert.False(t, stillTracked, "a dead thread must be reclaimed once its data has been dumped")
}
