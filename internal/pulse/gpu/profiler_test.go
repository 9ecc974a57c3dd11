package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/pulse/internal/pulse/describe"
	"github.com/coral-mesh/pulse/internal/pulse/storage"
	"github.com/coral-mesh/pulse/internal/testutil"
)

// fakeBackend is an in-memory Backend stand-in: every issued query resolves
// to its own index as the raw GPU tick, so a 1:1 clock mapping makes
// resolved timestamps trivially predictable.
type fakeBackend struct {
	nodeCount int
	issued    []int
	signaled  bool
}

func (b *fakeBackend) Start(nodeCount int) ([]ClockSync, error) {
	b.nodeCount = nodeCount
	clocks := make([]ClockSync, nodeCount)
	for i := range clocks {
		clocks[i] = ClockSync{FreqCPU: 1, FreqGPU: 1, TsCPU: 0, TsGPU: 0}
	}
	return clocks, nil
}

func (b *fakeBackend) Stop() {}

func (b *fakeBackend) RecordQuery(node int) uint32 {
	idx := uint32(len(b.issued))
	b.issued = append(b.issued, node)
	return idx
}

func (b *fakeBackend) Resolve(node int, start, count uint32) ([]int64, bool) {
	if !b.signaled {
		return nil, false
	}
	ticks := make([]int64, count)
	for i := range ticks {
		ticks[i] = int64(start) + int64(i)
	}
	return ticks, true
}

func newStartedProfiler(t *testing.T) (*Profiler, *fakeBackend) {
	board := describe.New(testutil.NewTestLogger(t))
	p := New(board, 0)
	backend := &fakeBackend{}
	require.NoError(t, p.Start(backend, 1))
	return p, backend
}

func TestProfiler_StartTwiceIsAnError(t *testing.T) {
	p, backend := newStartedProfiler(t)
	assert.Error(t, p.Start(backend, 1))
}

func TestProfiler_EventStartStopScheduleQueries(t *testing.T) {
	p, _ := newStartedProfiler(t)
	s := storage.NewEventStorage(false)

	desc, err := p.board.CreateSharedDescription("Draw", "", 0, 0, 0)
	require.NoError(t, err)

	rec := p.EventStart(s, 0, storage.QueueGraphics, desc)
	require.NotNil(t, rec)
	assert.Same(t, desc, rec.Description)

	p.EventStop(0, rec)

	require.Equal(t, 1, s.GPUEvents(0, storage.QueueGraphics).Size())
}

func TestProfiler_EventStartOnInactiveProfilerReturnsNil(t *testing.T) {
	p := New(describe.New(testutil.NewTestLogger(t)), 0)
	s := storage.NewEventStorage(false)
	assert.Nil(t, p.EventStart(s, 0, storage.QueueGraphics, nil))
}

func TestProfiler_FlipResolvesAfterNumFramesDelay(t *testing.T) {
	p, backend := newStartedProfiler(t)
	backend.signaled = true

	for i := 0; i < NumFramesDelay+1; i++ {
		p.Flip(0, VSyncStats{Start: 0, Finish: 0})
	}

	frameStorage := p.FrameStorage(0)
	require.NotNil(t, frameStorage)
	require.GreaterOrEqual(t, frameStorage.Events().Size(), 1)

	resolved := false
	frameStorage.Events().ForEach(func(ev *storage.EventData) {
		if ev.Time.IsValid() {
			resolved = true
		}
	})
	assert.True(t, resolved, "at least one frame bracket from NumFramesDelay flips ago must have resolved")
}

func TestProfiler_FlipBeforeBackendSignalsLeavesEventsUnresolved(t *testing.T) {
	p, _ := newStartedProfiler(t)
	for i := 0; i < NumFramesDelay+1; i++ {
		p.Flip(0, VSyncStats{Start: 0, Finish: 0})
	}

	frameStorage := p.FrameStorage(0)
	frameStorage.Events().ForEach(func(ev *storage.EventData) {
		assert.False(t, ev.Time.IsValid(), "no backend signal means timestamps must stay invalid")
	})
}

func TestProfiler_StopClearsRunningState(t *testing.T) {
	p, _ := newStartedProfiler(t)
	require.True(t, p.Running())
	p.Stop()
	assert.False(t, p.Running())
	assert.Equal(t, 0, p.NodeCount())
}
