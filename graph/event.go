package graph

import (
	"fmt"
)

// Event is a measurement kind. Events are compared by identity, never by name.
type Event uint8

const (
	Calls Event = iota
	Samples
	Samples2
	Time
	TimeRatio
	TotalTime
	TotalTimeRatio
	TotalSamples

	numEvents
)

// Aggregation is how two values of the same event combine.
type Aggregation uint8

const (
	// AggregateSum adds values together.
	AggregateSum Aggregation = iota
	// AggregateForbid marks events that must never be combined.
	AggregateForbid
)

type eventInfo struct {
	name        string
	null        float64
	aggregation Aggregation
	format      func(float64) string
}

var registry = [numEvents]eventInfo{
	Calls:          {name: "Calls", aggregation: AggregateSum, format: formatCount},
	Samples:        {name: "Samples", aggregation: AggregateSum, format: formatCount},
	Samples2:       {name: "Samples", aggregation: AggregateSum, format: formatCount},
	Time:           {name: "Time", aggregation: AggregateSum, format: formatTime},
	TimeRatio:      {name: "Time ratio", aggregation: AggregateSum, format: formatPercentage},
	TotalTime:      {name: "Total time", aggregation: AggregateForbid, format: formatTime},
	TotalTimeRatio: {name: "Total time ratio", aggregation: AggregateForbid, format: formatPercentage},
	TotalSamples:   {name: "Total samples", aggregation: AggregateSum, format: formatCount},
}

func (e Event) info() eventInfo {
	if e >= numEvents {
		panic(fmt.Sprintf("graph: unknown event %d", e))
	}
	return registry[e]
}

func (e Event) String() string {
	if e >= numEvents {
		return fmt.Sprintf("Event(%d)", e)
	}
	return registry[e].name
}

// Null is the value an aggregate over nothing starts from.
func (e Event) Null() float64 {
	return e.info().null
}

func (e Event) Aggregation() Aggregation {
	return e.info().aggregation
}

// Aggregate combines two values of the event. Events with AggregateForbid
// return an error.
func (e Event) Aggregate(a, b float64) (float64, error) {
	switch e.info().aggregation {
	case AggregateSum:
		return a + b, nil
	default:
		return 0, fmt.Errorf("event %q cannot be aggregated", e)
	}
}

// Format renders a value of this event for display.
func (e Event) Format(v float64) string {
	return e.info().format(v)
}

func formatCount(v float64) string {
	return fmt.Sprintf("%d", int64(v+0.5))
}

func formatTime(v float64) string {
	return fmt.Sprintf("%.4gs", v)
}

func formatPercentage(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}
