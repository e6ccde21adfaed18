package serve

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/Emyrk/profgraph/graph"
)

var (
	_ prometheus.Collector = (*Collector)(nil)
	_ zerolog.Hook         = (*Collector)(nil)
)

type graphStats struct {
	functions float64
	calls     float64
	cycles    float64
}

// Collector holds the render service metrics. It is also a zerolog hook, so
// warnings the reducer logs while handling a request are counted.
type Collector struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	diagnostics *prometheus.CounterVec
	lastUpdated prometheus.Gauge

	// Size of the most recently rendered graph.
	last atomic.Pointer[graphStats]

	functionsDesc *prometheus.Desc
	callsDesc     *prometheus.Desc
	cyclesDesc    *prometheus.Desc
}

func NewCollector(namespace string) *Collector {
	return &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_requests_total",
			Help:      "Render requests by input format and outcome.",
		}, []string{"format", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Time to parse, reduce and render a profile.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"format"}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Warnings and errors logged while reducing profiles.",
		}, []string{"level"}),
		lastUpdated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_render_unix_s",
			Help:      "Timestamp in unix seconds of the last successful render.",
		}),
		functionsDesc: prometheus.NewDesc(namespace+"_graph_functions", "Functions in the last rendered graph.", nil, nil),
		callsDesc:     prometheus.NewDesc(namespace+"_graph_calls", "Calls in the last rendered graph.", nil, nil),
		cyclesDesc:    prometheus.NewDesc(namespace+"_graph_cycles", "Cycles found in the last rendered profile.", nil, nil),
	}
}

func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	c.requests.Describe(descs)
	c.duration.Describe(descs)
	c.diagnostics.Describe(descs)
	descs <- c.lastUpdated.Desc()
	descs <- c.functionsDesc
	descs <- c.callsDesc
	descs <- c.cyclesDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.requests.Collect(ch)
	c.duration.Collect(ch)
	c.diagnostics.Collect(ch)
	ch <- c.lastUpdated

	stats := c.last.Load()
	if stats == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.functionsDesc, prometheus.GaugeValue, stats.functions)
	ch <- prometheus.MustNewConstMetric(c.callsDesc, prometheus.GaugeValue, stats.calls)
	ch <- prometheus.MustNewConstMetric(c.cyclesDesc, prometheus.GaugeValue, stats.cycles)
}

// Run counts log events at warn level and above.
func (c *Collector) Run(_ *zerolog.Event, level zerolog.Level, _ string) {
	if level < zerolog.WarnLevel || level == zerolog.NoLevel || level == zerolog.Disabled {
		return
	}
	c.diagnostics.WithLabelValues(level.String()).Inc()
}

func (c *Collector) observe(format, status string, took time.Duration) {
	c.requests.WithLabelValues(format, status).Inc()
	c.duration.WithLabelValues(format).Observe(took.Seconds())
}

// setGraph records the graph that was just rendered. cycles is counted
// before pruning, since pruning can drop members of a cycle.
func (c *Collector) setGraph(p *graph.Profile, cycles int) {
	stats := graphStats{cycles: float64(cycles)}
	for _, f := range p.Functions() {
		stats.functions++
		stats.calls += float64(len(f.Calls()))
	}
	c.last.Store(&stats)
	c.lastUpdated.Set(float64(time.Now().Unix()))
}
