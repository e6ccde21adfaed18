package profile_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/pprof/profile"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Emyrk/profgraph/graph"
	profgraph "github.com/Emyrk/profgraph/profile"
)

const delta = 1e-9

func byName(t *testing.T, p *graph.Profile) map[string]*graph.Function {
	t.Helper()
	out := make(map[string]*graph.Function)
	for _, f := range p.Functions() {
		out[f.Name] = f
	}
	return out
}

var (
	testMapping = &profile.Mapping{ID: 1, Start: 0x1000, Limit: 0x9000, File: "/usr/local/bin/server", HasFunctions: true}

	fnMain   = &profile.Function{ID: 1, Name: "main.main", SystemName: "main.main", Filename: "main.go"}
	fnWork   = &profile.Function{ID: 2, Name: "main.work", SystemName: "main.work", Filename: "work.go"}
	fnLeaf   = &profile.Function{ID: 3, Name: "main.leaf", SystemName: "main.leaf", Filename: "work.go"}
	fnInline = &profile.Function{ID: 4, Name: "main.inlined", SystemName: "main.inlined", Filename: "work.go"}

	locMain = &profile.Location{ID: 1, Address: 0x1100, Mapping: testMapping, Line: []profile.Line{{Function: fnMain, Line: 10}}}
	locWork = &profile.Location{ID: 2, Address: 0x1200, Mapping: testMapping, Line: []profile.Line{{Function: fnWork, Line: 20}}}
	locLeaf = &profile.Location{ID: 3, Address: 0x1300, Mapping: testMapping, Line: []profile.Line{
		{Function: fnInline, Line: 31},
		{Function: fnLeaf, Line: 30},
	}}
	locAnon = &profile.Location{ID: 4, Address: 0x1400, Mapping: testMapping}
)

func pprofData(t *testing.T) []byte {
	t.Helper()
	prof := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "samples", Unit: "count"},
			{Type: "cpu", Unit: "nanoseconds"},
		},
		PeriodType: &profile.ValueType{Type: "cpu", Unit: "nanoseconds"},
		Period:     10000000,
		Sample: []*profile.Sample{
			{Location: []*profile.Location{locLeaf, locWork, locMain}, Value: []int64{1, 10}},
			{Location: []*profile.Location{locWork, locMain}, Value: []int64{1, 5}},
			{Location: []*profile.Location{locAnon, locMain}, Value: []int64{1, 0}},
		},
		Location: []*profile.Location{locMain, locWork, locLeaf, locAnon},
		Function: []*profile.Function{fnMain, fnWork, fnLeaf, fnInline},
		Mapping:  []*profile.Mapping{testMapping},
	}
	require.NoError(t, prof.CheckValid())

	var buf bytes.Buffer
	require.NoError(t, prof.Write(&buf))
	return buf.Bytes()
}

func TestPprof(t *testing.T) {
	t.Parallel()

	t.Run("DefaultSampleType", func(t *testing.T) {
		t.Parallel()
		p, err := profgraph.Load(profgraph.FormatPprof, bytes.NewReader(pprofData(t)), profgraph.Options{}, zerolog.Nop())
		require.NoError(t, err)

		fns := byName(t, p)
		// Zero valued samples are ignored entirely.
		require.NotContains(t, fns, "0x1400")
		require.Len(t, fns, 4)

		require.Equal(t, "server", fns["main.main"].Module)
		require.Equal(t, "work.go", fns["main.leaf"].Filename)

		require.InDelta(t, 10, fns["main.inlined"].Get(graph.Samples), delta)
		require.InDelta(t, 0, fns["main.leaf"].Get(graph.Samples), delta)
		require.InDelta(t, 5, fns["main.work"].Get(graph.Samples), delta)

		require.InDelta(t, 15, fns["main.main"].Get(graph.TotalTime), delta)
		require.InDelta(t, 15, fns["main.work"].Get(graph.TotalTime), delta)
		require.InDelta(t, 10, fns["main.leaf"].Get(graph.TotalTime), delta)
		require.InDelta(t, 1, fns["main.main"].Get(graph.TotalTimeRatio), delta)
		require.InDelta(t, 10.0/15, fns["main.inlined"].Get(graph.TotalTimeRatio), delta)

		call, ok := fns["main.leaf"].Call(fns["main.inlined"].ID)
		require.True(t, ok, "inlined frame is called by its caller")
		require.InDelta(t, 10, call.Get(graph.Samples2), delta)
	})

	t.Run("NamedSampleType", func(t *testing.T) {
		t.Parallel()
		p, err := profgraph.Load(profgraph.FormatPprof, bytes.NewReader(pprofData(t)), profgraph.Options{SampleType: "samples"}, zerolog.Nop())
		require.NoError(t, err)

		fns := byName(t, p)
		require.Contains(t, fns, "0x1400")
		require.InDelta(t, 3, fns["main.main"].Get(graph.TotalTime), delta)
		require.InDelta(t, 1.0/3, fns["main.work"].Get(graph.TimeRatio), delta)
	})

	t.Run("CallStacks", func(t *testing.T) {
		t.Parallel()
		p, err := profgraph.Load(profgraph.FormatPprof, bytes.NewReader(pprofData(t)), profgraph.Options{Method: graph.TotalCallStacks}, zerolog.Nop())
		require.NoError(t, err)

		fns := byName(t, p)
		require.InDelta(t, 1, fns["main.main"].Get(graph.TotalTimeRatio), delta)
		require.InDelta(t, 1, fns["main.work"].Get(graph.TotalTimeRatio), delta)
		require.InDelta(t, 10.0/15, fns["main.leaf"].Get(graph.TotalTimeRatio), delta)
	})

	t.Run("UnknownSampleType", func(t *testing.T) {
		t.Parallel()
		_, err := profgraph.Load(profgraph.FormatPprof, bytes.NewReader(pprofData(t)), profgraph.Options{SampleType: "alloc_space"}, zerolog.Nop())
		require.Error(t, err)
	})

	t.Run("Garbage", func(t *testing.T) {
		t.Parallel()
		_, err := profgraph.Load(profgraph.FormatPprof, strings.NewReader("not a profile"), profgraph.Options{}, zerolog.Nop())
		require.Error(t, err)
	})
}

const collapsed = `# perf script | stackcollapse-perf.pl
main;work;leaf 10
main;work 5

main;helper;main 3
`

func TestCollapsed(t *testing.T) {
	t.Parallel()

	p, err := profgraph.Load(profgraph.FormatCollapsed, strings.NewReader(collapsed), profgraph.Options{Method: graph.TotalCallStacks}, zerolog.Nop())
	require.NoError(t, err)

	fns := byName(t, p)
	require.Len(t, fns, 4)
	require.InDelta(t, 18, p.Get(graph.Samples), delta)
	require.InDelta(t, 3, fns["main"].Get(graph.Samples), delta)
	// main appears twice in one stack but is only counted once.
	require.InDelta(t, 18, fns["main"].Get(graph.TotalSamples), delta)
	require.InDelta(t, 1, fns["main"].Get(graph.TotalTimeRatio), delta)
	require.InDelta(t, 15.0/18, fns["work"].Get(graph.TotalTimeRatio), delta)
	require.Len(t, p.Cycles(), 1)

	t.Run("Malformed", func(t *testing.T) {
		t.Parallel()
		for _, input := range []string{"main;work", "main;work ten"} {
			_, err := profgraph.Load(profgraph.FormatCollapsed, strings.NewReader(input), profgraph.Options{}, zerolog.Nop())
			require.ErrorContains(t, err, "malformed input", input)
		}
	})
}

const callgrindExample = `events: Ir Dr
cmd: ./a.out

ob=/usr/bin/a.out
fl=main.c
fn=main
16 25 2
cfn=work
calls=1 30
17 400 40

fn=work
30 100 10
cfl=util.c
cfn=helper
calls=10 40
31 300 30

fl=util.c
fn=helper
40 300 30
`

func TestCallgrind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		event string
		// totals are main, work, helper
		totals [3]float64
	}{
		{name: "FirstEvent", totals: [3]float64{425, 400, 300}},
		{name: "NamedEvent", event: "Dr", totals: [3]float64{42, 40, 30}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, err := profgraph.Load(profgraph.FormatCallgrind, strings.NewReader(callgrindExample), profgraph.Options{Event: tt.event}, zerolog.Nop())
			require.NoError(t, err)

			fns := byName(t, p)
			require.InDelta(t, tt.totals[0], fns["main"].Get(graph.TotalTime), delta)
			require.InDelta(t, tt.totals[1], fns["work"].Get(graph.TotalTime), delta)
			require.InDelta(t, tt.totals[2], fns["helper"].Get(graph.TotalTime), delta)

			called, ok := fns["helper"].Called()
			require.True(t, ok)
			require.InDelta(t, 10, called, delta)
			require.Equal(t, "a.out", fns["helper"].Module)
			require.Equal(t, "util.c", fns["helper"].Filename)
		})
	}

	t.Run("UnknownEvent", func(t *testing.T) {
		t.Parallel()
		_, err := profgraph.Load(profgraph.FormatCallgrind, strings.NewReader(callgrindExample), profgraph.Options{Event: "Bc"}, zerolog.Nop())
		require.ErrorContains(t, err, `"Bc"`)
	})

	t.Run("CallStacksUnsupported", func(t *testing.T) {
		t.Parallel()
		_, err := profgraph.Load(profgraph.FormatCallgrind, strings.NewReader(callgrindExample), profgraph.Options{Method: graph.TotalCallStacks}, zerolog.Nop())
		require.Error(t, err)
	})
}

const eludedExample = `[
  {"key": "", "cpu": 10, "children": [
    {"key": "a", "cpu": 6, "children": [{"key": "b", "cpu": 2}]},
    {"key": "b", "cpu": 3}
  ]}
]`

func TestEluded(t *testing.T) {
	t.Parallel()

	p, err := profgraph.Load(profgraph.FormatEluded, strings.NewReader(eludedExample), profgraph.Options{}, zerolog.Nop())
	require.NoError(t, err)

	fns := byName(t, p)
	require.Len(t, fns, 3)
	require.Contains(t, fns, "tick")

	require.InDelta(t, 0.001, fns["tick"].Get(graph.Time), delta)
	require.InDelta(t, 0.005, fns["b"].Get(graph.Time), delta)

	require.InDelta(t, 0.010, fns["tick"].Get(graph.TotalTime), delta)
	require.InDelta(t, 0.006, fns["a"].Get(graph.TotalTime), delta)
	require.InDelta(t, 0.005, fns["b"].Get(graph.TotalTime), delta)

	called, ok := fns["b"].Called()
	require.True(t, ok)
	require.InDelta(t, 2, called, delta)
}

func TestUnknownFormat(t *testing.T) {
	t.Parallel()

	_, err := profgraph.Load("perf.data", strings.NewReader(""), profgraph.Options{}, zerolog.Nop())
	require.ErrorIs(t, err, profgraph.ErrUnknownFormat)
	require.ElementsMatch(t, []string{"pprof", "callgrind", "collapsed", "eluded"}, profgraph.FormatNames())
}
