// Package dump implements the Capture Dumper: the serialization pass that
// walks every thread/fiber/GPU storage once a capture transitions to
// Dump, and turns them into the wire-protocol message sequence of spec
// §4.8. It also offers a pprof/flamegraph-compatible export as an
// additional, file-based consumption path (SPEC_FULL.md §4.11).
package dump

import (
	"sort"

	"github.com/coral-mesh/pulse/internal/pulse/storage"
	"github.com/coral-mesh/pulse/internal/pulse/wire"
)

// PackScopes implements the scope-packing algorithm of spec §4.8 step 6:
// every event is sorted by (start asc, finish desc) and folded into roots
// — an event whose finish is at or before the open root's finish is a
// child, otherwise the root is flushed and the event starts a new one.
// Category events (those whose description has a non-null color) fold
// into the tree exactly like any other event, and are additionally
// duplicated into whichever root's Categories they fall within (matching
// ScopeData::AddEvent in the original source, which pushes a colored
// event into both the event list and the category list). Flushing emits
// one ScopeData per root (spec's "root event fully contains all other
// events; no two roots overlap").
func PackScopes(boardNumber uint32, threadNumber, fiberNumber int32, events []storage.EventData) []wire.ScopeData {
	var categories []storage.EventData
	for _, ev := range events {
		if ev.Description != nil && ev.Description.IsCategory() {
			categories = append(categories, ev)
		}
	}

	plain := append([]storage.EventData(nil), events...)
	sort.Slice(plain, func(i, j int) bool {
		if plain[i].Time.Start != plain[j].Time.Start {
			return plain[i].Time.Start < plain[j].Time.Start
		}
		return plain[i].Time.Finish > plain[j].Time.Finish
	})

	var scopes []wire.ScopeData
	var current []storage.EventData
	var rootFinish int64
	open := false

	flush := func() {
		if !open {
			return
		}
		root := current[0]
		scopes = append(scopes, wire.ScopeData{
			Header: wire.ScopeHeader{
				BoardNumber:  boardNumber,
				ThreadNumber: threadNumber,
				FiberNumber:  fiberNumber,
				Time:         root.Time,
			},
			Categories: categoriesWithin(categories, root.Time),
			Events:     append([]storage.EventData(nil), current...),
		})
		current = nil
		open = false
	}

	for _, ev := range plain {
		if open && ev.Time.Finish <= rootFinish {
			current = append(current, ev)
			continue
		}
		flush()
		current = []storage.EventData{ev}
		rootFinish = ev.Time.Finish
		open = true
	}
	flush()

	return scopes
}

// categoriesWithin returns the category events fully contained in root's
// time range, the association the GUI needs to color-group a root's
// subtree (the category's own nesting into specific children is a GUI
// rendering concern, not a core one).
func categoriesWithin(categories []storage.EventData, root storage.EventTime) []storage.EventData {
	var out []storage.EventData
	for _, c := range categories {
		if c.Time.Start >= root.Start && c.Time.Finish <= root.Finish {
			out = append(out, c)
		}
	}
	return out
}
