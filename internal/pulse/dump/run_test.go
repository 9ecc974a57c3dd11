package dump

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/pulse/internal/pulse/describe"
	"github.com/coral-mesh/pulse/internal/pulse/storage"
	"github.com/coral-mesh/pulse/internal/pulse/wire"
	"github.com/coral-mesh/pulse/internal/testutil"
)

type recordingSender struct {
	types []wire.MessageType
}

func (s *recordingSender) Send(t wire.MessageType, payload []byte) {
	s.types = append(s.types, t)
}

func TestRun_MinimalRequestEmitsExpectedMessageSequence(t *testing.T) {
	board := describe.New(testutil.NewTestLogger(t))
	desc, err := board.CreateDescription("Update", "main.cpp", 1, 0, 0)
	require.NoError(t, err)

	ts := storage.NewEventStorage(false)
	rec := ts.Events().Add()
	rec.Description = desc
	rec.Time = storage.EventTime{Start: 0, Finish: 100}

	req := Request{
		BoardNumber:     1,
		Frequency:       1_000_000_000,
		ProcessID:       42,
		MainThreadIndex: 0,
		Threads: []ThreadSource{
			{Number: 0, Description: storage.ThreadDescription{Name: "main", ThreadID: 1}, Storage: ts},
		},
		Board: board,
	}

	sink := &recordingSender{}
	Run(sink, req)

	require.GreaterOrEqual(t, len(sink.types), 4)
	assert.Equal(t, wire.TypeSummaryPack, sink.types[0])
	assert.Equal(t, wire.TypeFrameDescriptionBoard, sink.types[1])
	assert.Equal(t, wire.TypeEventFrame, sink.types[2])
	assert.Equal(t, wire.TypeTagsPack, sink.types[3])
	assert.Equal(t, wire.TypeNullFrame, sink.types[len(sink.types)-1], "the dump must always end with the terminator frame")
}

func TestRun_NoThreadsStillEmitsBoardAndTerminator(t *testing.T) {
	board := describe.New(testutil.NewTestLogger(t))
	req := Request{BoardNumber: 1, Board: board, MainThreadIndex: -1}

	sink := &recordingSender{}
	Run(sink, req)

	assert.Equal(t, wire.TypeSummaryPack, sink.types[0])
	assert.Equal(t, wire.TypeFrameDescriptionBoard, sink.types[1])
	assert.Equal(t, wire.TypeSynchronizationData, sink.types[2])
	assert.Equal(t, wire.TypeSyscallPack, sink.types[3])
	assert.Equal(t, wire.TypeNullFrame, sink.types[4])
}

func TestRun_FiberEmitsSynchronizationDataAfterItsScopes(t *testing.T) {
	board := describe.New(testutil.NewTestLogger(t))
	fs := storage.NewEventStorage(true)

	req := Request{
		BoardNumber:     1,
		Board:           board,
		MainThreadIndex: -1,
		Fibers: []FiberSource{
			{Number: 0, ID: 7, Storage: fs},
		},
	}

	sink := &recordingSender{}
	Run(sink, req)

	// thread pass is empty; fiber pass emits TagsPack then
	// FiberSynchronizationData before the trailing collectors/terminator.
	foundTags, foundSync := false, false
	for i, typ := range sink.types {
		if typ == wire.TypeTagsPack {
			foundTags = true
		}
		if typ == wire.TypeFiberSynchronizationData {
			foundSync = true
			assert.True(t, foundTags, "FiberSynchronizationData must follow the fiber's TagsPack")
			_ = i
		}
	}
	assert.True(t, foundSync)
}
