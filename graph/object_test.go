package graph_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Emyrk/profgraph/graph"
)

func TestObject(t *testing.T) {
	var o graph.Object
	require.False(t, o.Has(graph.Time))
	_, ok := o.Lookup(graph.Time)
	require.False(t, ok)
	require.PanicsWithError(t, `undefined event "Time"`, func() {
		o.Get(graph.Time)
	})

	o.Set(graph.Time, 0)
	require.True(t, o.Has(graph.Time))
	require.Zero(t, o.Get(graph.Time))

	require.NoError(t, o.Add(graph.Time, 2.5))
	require.NoError(t, o.Add(graph.Calls, 1))
	require.Equal(t, []graph.Event{graph.Calls, graph.Time}, o.Events())

	o.Set(graph.TotalTime, 1)
	require.Error(t, o.Add(graph.TotalTime, 1))
	require.Equal(t, 1.0, o.Get(graph.TotalTime))

	o.Delete(graph.Time)
	require.False(t, o.Has(graph.Time))
}

func TestEventFormat(t *testing.T) {
	require.Equal(t, "12.50%", graph.TotalTimeRatio.Format(0.125))
	require.Equal(t, "7", graph.Calls.Format(7))
	require.Equal(t, graph.AggregateForbid, graph.TotalTime.Aggregation())
	require.Equal(t, "Total time", graph.TotalTime.String())
}

func TestStripName(t *testing.T) {
	testCases := []struct {
		Name string
		In   string
		Want string
	}{
		{Name: "Plain", In: "main.main", Want: "main.main"},
		{Name: "Arguments", In: "foo(int, char*)", Want: "foo"},
		{Name: "NestedArguments", In: "foo(void (*)(int))", Want: "foo"},
		{Name: "Const", In: "Bar::get() const", Want: "Bar::get"},
		{Name: "Templates", In: "std::vector<std::pair<int, int> >::push_back(int const&)", Want: "std::vector::push_back"},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.Name, func(t *testing.T) {
			require.Equal(t, testCase.Want, graph.StripName(testCase.In))
		})
	}
}

func TestReduceCallStacks(t *testing.T) {
	// main -> work -> leaf, one stack with 4 samples in leaf and 2 in work.
	p := graph.New(zerolog.Nop())
	main := p.NewFunction("main")
	work := p.NewFunction("work")
	leaf := p.NewFunction("leaf")
	main.Set(graph.Samples, 0)
	work.Set(graph.Samples, 2)
	leaf.Set(graph.Samples, 4)
	main.Set(graph.TotalSamples, 6)
	work.Set(graph.TotalSamples, 6)
	leaf.Set(graph.TotalSamples, 4)
	main.CallTo(work.ID).Set(graph.Samples2, 6)
	work.CallTo(leaf.ID).Set(graph.Samples2, 4)

	require.NoError(t, graph.Reduce(p, graph.ReduceOptions{
		SelfEvent: graph.Samples,
		CallEvent: graph.Samples2,
		Method:    graph.TotalCallStacks,
	}))

	require.InDelta(t, 1.0, main.Get(graph.TotalTimeRatio), delta)
	require.InDelta(t, 4.0/6.0, leaf.Get(graph.TotalTimeRatio), delta)
	require.InDelta(t, 2.0/6.0, work.Get(graph.TimeRatio), delta)

	call, _ := work.Call(leaf.ID)
	require.InDelta(t, 4.0/6.0, call.Get(graph.TotalTimeRatio), delta)
}

func TestReduceUnknownMethod(t *testing.T) {
	p := graph.New(zerolog.Nop())
	p.NewFunction("main").Set(graph.Samples, 1)
	err := graph.Reduce(p, graph.ReduceOptions{
		SelfEvent: graph.Samples,
		CallEvent: graph.Samples2,
		Method:    "guess",
	})
	require.Error(t, err)
}
