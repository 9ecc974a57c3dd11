package dump

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/pulse/internal/pulse/describe"
	"github.com/coral-mesh/pulse/internal/pulse/storage"
)

func ev(desc *describe.Description, start, finish int64) storage.EventData {
	return storage.EventData{Description: desc, Time: storage.EventTime{Start: start, Finish: finish}}
}

func TestPackScopes_OneRootContainsItsChildren(t *testing.T) {
	root := &describe.Description{Index: 1, Name: "Update"}
	child := &describe.Description{Index: 2, Name: "Physics"}

	events := []storage.EventData{
		ev(root, 0, 100),
		ev(child, 10, 20),
	}

	scopes := PackScopes(0, 1, -1, events)
	require.Len(t, scopes, 1)
	assert.Equal(t, storage.EventTime{Start: 0, Finish: 100}, scopes[0].Header.Time)
	assert.Len(t, scopes[0].Events, 2)
}

func TestPackScopes_NonOverlappingEventsProduceSeparateRoots(t *testing.T) {
	d := &describe.Description{Index: 1, Name: "Frame"}
	events := []storage.EventData{
		ev(d, 0, 10),
		ev(d, 20, 30),
	}

	scopes := PackScopes(0, 1, -1, events)
	require.Len(t, scopes, 2)
	assert.Equal(t, int64(0), scopes[0].Header.Time.Start)
	assert.Equal(t, int64(20), scopes[1].Header.Time.Start)
}

func TestPackScopes_SortsByStartAscFinishDescBeforeFolding(t *testing.T) {
	d := &describe.Description{Index: 1, Name: "X"}
	// Fed out of order; the earliest-starting, widest event must still
	// become the root.
	events := []storage.EventData{
		ev(d, 10, 20),
		ev(d, 0, 100),
	}

	scopes := PackScopes(0, 1, -1, events)
	require.Len(t, scopes, 1)
	assert.Equal(t, int64(0), scopes[0].Header.Time.Start)
	assert.Equal(t, int64(100), scopes[0].Header.Time.Finish)
	assert.Len(t, scopes[0].Events, 2)
}

func TestPackScopes_CategoryEventsAttachToContainingRootAndStayInTree(t *testing.T) {
	root1 := &describe.Description{Index: 1, Name: "Frame1"}
	root2 := &describe.Description{Index: 2, Name: "Frame2"}
	category := &describe.Description{Index: 3, Name: "Rendering", Color: 0xFF0000}

	events := []storage.EventData{
		ev(root1, 0, 10),
		ev(root2, 20, 30),
		ev(category, 2, 8),
	}

	scopes := PackScopes(0, 1, -1, events)
	require.Len(t, scopes, 2)
	assert.Len(t, scopes[0].Categories, 1)
	assert.Len(t, scopes[1].Categories, 0)

	// The category event folds into the tree like any other event, on top
	// of being duplicated into Categories.
	require.Len(t, scopes[0].Events, 2)
	assert.Contains(t, scopes[0].Events, ev(category, 2, 8))
}

func TestPackScopes_SingleColoredEventStillProducesARoot(t *testing.T) {
	category := &describe.Description{Index: 1, Name: "Draw", Color: 0xFF00FF00}
	events := []storage.EventData{ev(category, 1000, 2000)}

	scopes := PackScopes(0, 1, -1, events)
	require.Len(t, scopes, 1)
	assert.Equal(t, storage.EventTime{Start: 1000, Finish: 2000}, scopes[0].Header.Time)
	require.Len(t, scopes[0].Events, 1)
	require.Len(t, scopes[0].Categories, 1)
}

func TestPackScopes_EmptyInputProducesNoScopes(t *testing.T) {
	scopes := PackScopes(0, 1, -1, nil)
	assert.Empty(t, scopes)
}
