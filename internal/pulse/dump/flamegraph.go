package dump

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/coral-mesh/pulse/internal/pulse/storage"
	"github.com/coral-mesh/pulse/internal/pulse/wire"
)

// WriteFlameGraph emits scopes in the folded-stack text format standard
// flamegraph tooling consumes: one line per unique call path,
// semicolon-joined from outermost to innermost frame, followed by a
// space and a weight (the summed self duration: each event's own duration
// minus that of the events nested directly under it, in the same clock
// units as platform.Now()). Paths are reconstructed from each ScopeData's
// already scope-packed Events slice using the same LIFO nesting
// assumption PackScopes relies on (spec §4.8's "no two roots overlap").
func WriteFlameGraph(w io.Writer, scopes []wire.ScopeData) error {
	weights := make(map[string]int64)
	for _, s := range scopes {
		for path, dur := range foldPaths(s.Events) {
			weights[path] += dur
		}
	}

	paths := make([]string, 0, len(weights))
	for p := range weights {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if _, err := fmt.Fprintf(w, "%s %d\n", p, weights[p]); err != nil {
			return err
		}
	}
	return nil
}

type openFrame struct {
	name   string
	path   string
	finish int64
}

// foldPaths walks one root's flattened (start asc, finish desc) event
// list and, by tracking which open frames an event nests under, builds
// the folded ancestry path for every event.
func foldPaths(events []storage.EventData) map[string]int64 {
	out := make(map[string]int64)
	var stack []openFrame

	for _, ev := range events {
		for len(stack) > 0 && ev.Time.Start >= stack[len(stack)-1].finish {
			stack = stack[:len(stack)-1]
		}
		name := "unknown"
		if ev.Description != nil {
			name = ev.Description.Name
		}

		names := make([]string, 0, len(stack)+1)
		for _, f := range stack {
			names = append(names, f.name)
		}
		names = append(names, name)

		dur := ev.Time.Finish - ev.Time.Start
		if dur < 0 {
			dur = 0
		}
		path := strings.Join(names, ";")
		out[path] += dur
		if len(stack) > 0 {
			out[stack[len(stack)-1].path] -= dur
		}

		stack = append(stack, openFrame{name: name, path: path, finish: ev.Time.Finish})
	}
	return out
}
