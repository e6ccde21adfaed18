package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
	"golang.org/x/exp/slices"

	"github.com/Emyrk/profgraph/graph"
)

type TopOptions struct {
	// N is how many functions to list. Zero lists all of them.
	N     int
	Theme Theme
	Strip bool
	// Color writes ANSI true color escapes. Otherwise the report is plain text.
	Color bool
}

// WriteTop lists functions heaviest first by total time ratio, each line
// colored the way its node would be in the graph.
func WriteTop(w io.Writer, p *graph.Profile, opts TopOptions) error {
	profile := termenv.Ascii
	if opts.Color {
		profile = termenv.TrueColor
	}
	out := termenv.NewOutput(w, termenv.WithProfile(profile))

	fns := p.Functions()
	slices.SortStableFunc(fns, func(a, b *graph.Function) int {
		ta, _ := a.Lookup(graph.TotalTimeRatio)
		tb, _ := b.Lookup(graph.TotalTimeRatio)
		switch {
		case ta > tb:
			return -1
		case ta < tb:
			return 1
		}
		return 0
	})
	if opts.N > 0 && len(fns) > opts.N {
		fns = fns[:opts.N]
	}

	_, err := fmt.Fprintf(out, "%8s %8s %8s  %s\n", "total", "self", "called", "function")
	if err != nil {
		return err
	}
	for _, f := range fns {
		total, _ := f.Lookup(graph.TotalTimeRatio)
		self, _ := f.Lookup(graph.TimeRatio)
		called := "-"
		if n, ok := f.Called(); ok {
			called = graph.Calls.Format(n)
		}

		name := f.Name
		if opts.Strip {
			name = graph.StripName(name)
		}
		if c := f.Cycle(); c != nil {
			name = fmt.Sprintf("%s <cycle %d>", name, c.ID)
		}

		line := fmt.Sprintf("%8s %8s %8s  %s",
			graph.TotalTimeRatio.Format(total),
			graph.TimeRatio.Format(self),
			called,
			strings.ReplaceAll(name, "\n", " "),
		)
		weight, ok := f.Weight()
		if !ok {
			weight = total
		}
		styled := out.String(line).Foreground(out.Color(opts.Theme.Color(weight).Hex()))
		_, err = fmt.Fprintln(out, styled.String())
		if err != nil {
			return err
		}
	}
	return nil
}
