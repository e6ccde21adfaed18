package graph_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Emyrk/profgraph/graph"
)

func reducedChain(t *testing.T) testGraph {
	t.Helper()
	g := build(t,
		[]node{{"A", 10}, {"B", 5}, {"C", 3}, {"D", 0}},
		[]edge{{"A", "B", 1}, {"B", "C", 1}, {"D", "C", 0}},
	)
	require.NoError(t, graph.Reduce(g.Profile, graph.ReduceOptions{
		SelfEvent: graph.Samples,
		CallEvent: graph.Samples2,
	}))
	return g
}

func names(p *graph.Profile) []string {
	var out []string
	for _, f := range p.Functions() {
		out = append(out, f.Name)
	}
	return out
}

func TestPruneZeroIsNoop(t *testing.T) {
	g := reducedChain(t)
	functions, calls := g.Prune(graph.PruneOptions{})
	require.Zero(t, functions)
	require.Zero(t, calls)
	require.Equal(t, []string{"A", "B", "C", "D"}, names(g.Profile))

	w, ok := g.fn["B"].Weight()
	require.True(t, ok)
	require.InDelta(t, 8.0/18.0, w, delta)
}

func TestPruneOne(t *testing.T) {
	g := reducedChain(t)
	functions, calls := g.Prune(graph.PruneOptions{NodeThreshold: 1, EdgeThreshold: 1})
	require.Equal(t, 3, functions)
	require.Equal(t, 1, calls)
	require.Empty(t, g.fn["A"].Calls())
	require.Equal(t, []string{"A"}, names(g.Profile))
}

func TestPruneThresholds(t *testing.T) {
	g := reducedChain(t)
	// C is 3/18 of the total, B 8/18.
	functions, _ := g.Prune(graph.PruneOptions{NodeThreshold: 0.2, EdgeThreshold: 0.5})
	require.Equal(t, 2, functions)
	require.Equal(t, []string{"A", "B"}, names(g.Profile))
	// A->B weighs 8/18, below the edge threshold.
	require.Empty(t, g.fn["A"].Calls())
}

func TestPruneCallWeightFallsBackToEndpoints(t *testing.T) {
	g := reducedChain(t)
	// D->C carries no samples, so it has a total ratio of zero. Remove it to
	// force the endpoint estimate.
	call, ok := g.fn["D"].Call(g.fn["C"].ID)
	require.True(t, ok)
	call.Delete(graph.TotalTimeRatio)

	g.Prune(graph.PruneOptions{})
	w, ok := call.Weight()
	require.True(t, ok)
	require.InDelta(t, min(g.fn["D"].Get(graph.TotalTimeRatio), g.fn["C"].Get(graph.TotalTimeRatio)), w, delta)
}

func TestPrunePaths(t *testing.T) {
	g := reducedChain(t)
	g.fn["A"].Filename = "/src/app/main.go"
	g.fn["B"].Filename = "/usr/lib/libc.so"
	g.Prune(graph.PruneOptions{Paths: []string{"/src/"}})
	require.Equal(t, []string{"A", "C", "D"}, names(g.Profile))
	require.Empty(t, g.fn["A"].Calls())
}

func TestPruneColorBySelfTime(t *testing.T) {
	g := reducedChain(t)
	g.Prune(graph.PruneOptions{ColorBySelfTime: true})
	w, _ := g.fn["A"].Weight()
	require.InDelta(t, 1.0, w, delta)
	w, _ = g.fn["B"].Weight()
	require.InDelta(t, 0.5, w, delta)
}

func TestPruneRoot(t *testing.T) {
	testCases := []struct {
		Name  string
		Root  string
		Depth int
		Want  []string
	}{
		{Name: "Unlimited", Root: "B", Depth: -1, Want: []string{"B", "C"}},
		{Name: "DepthZero", Root: "B", Depth: 0, Want: []string{"B"}},
		{Name: "DepthOne", Root: "A", Depth: 1, Want: []string{"A", "B"}},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.Name, func(t *testing.T) {
			g := reducedChain(t)
			require.NoError(t, g.PruneRoot([]graph.FunctionID{g.fn[testCase.Root].ID}, testCase.Depth))
			require.Equal(t, testCase.Want, names(g.Profile))
		})
	}
}

func TestPruneLeaf(t *testing.T) {
	g := reducedChain(t)
	require.NoError(t, g.PruneLeaf([]graph.FunctionID{g.fn["B"].ID}, -1))
	require.Equal(t, []string{"A", "B"}, names(g.Profile))
	require.Empty(t, g.fn["B"].Calls())

	g = reducedChain(t)
	require.NoError(t, g.PruneLeaf([]graph.FunctionID{g.fn["C"].ID}, -1))
	require.Equal(t, []string{"A", "B", "C", "D"}, names(g.Profile))
}

func TestPruneMissingFocus(t *testing.T) {
	g := reducedChain(t)
	err := g.PruneRoot([]graph.FunctionID{1000}, -1)
	require.ErrorIs(t, err, graph.ErrFunctionNotFound)
	err = g.PruneLeaf([]graph.FunctionID{1000}, -1)
	require.ErrorIs(t, err, graph.ErrFunctionNotFound)
	require.Len(t, names(g.Profile), 4)

	_, err = g.FunctionIDs("nope")
	require.ErrorIs(t, err, graph.ErrFunctionNotFound)

	ids, err := g.FunctionIDs("[AB]")
	require.NoError(t, err)
	require.Equal(t, []graph.FunctionID{g.fn["A"].ID, g.fn["B"].ID}, ids)
}

func TestFocus(t *testing.T) {
	g := reducedChain(t)
	require.NoError(t, g.Focus([]string{"A"}, []string{"B"}, -1))
	require.Equal(t, []string{"A", "B"}, names(g.Profile))

	g = reducedChain(t)
	require.NoError(t, g.Focus([]string{"B", "D"}, nil, -1))
	require.Equal(t, []string{"B", "C", "D"}, names(g.Profile))

	g = reducedChain(t)
	err := g.Focus(nil, []string{"main"}, -1)
	require.ErrorIs(t, err, graph.ErrFunctionNotFound)
	require.ErrorContains(t, err, "leaf")
	require.Len(t, names(g.Profile), 4)
}
