// Package profile converts the output of external profilers into a
// graph.Profile ready for reduction.
package profile

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/Emyrk/profgraph/graph"
)

type Format string

const (
	FormatPprof     Format = "pprof"
	FormatCallgrind Format = "callgrind"
	FormatCollapsed Format = "collapsed"
	FormatEluded    Format = "eluded"
)

var ErrUnknownFormat = errors.New("unknown profile format")

// Formats lists every supported input format.
func Formats() []Format {
	return []Format{FormatPprof, FormatCallgrind, FormatCollapsed, FormatEluded}
}

func FormatNames() []string {
	var out []string
	for _, f := range Formats() {
		out = append(out, string(f))
	}
	return out
}

type Options struct {
	// SampleType picks the pprof sample value by type name. Empty uses the
	// profile's default sample type, or the last one.
	SampleType string
	// Event picks the callgrind event column by name. Empty uses the first.
	Event string
	// Method selects how total time is computed. Only stack based formats
	// (pprof, collapsed) support graph.TotalCallStacks.
	Method graph.TotalMethod
}

type parseFunc func(r io.Reader, opts Options, p *graph.Profile) (graph.ReduceOptions, error)

var parsers = map[Format]parseFunc{
	FormatPprof:     parsePprof,
	FormatCallgrind: parseCallgrind,
	FormatCollapsed: parseCollapsed,
	FormatEluded:    parseEluded,
}

// Parse decodes r into a new profile. The returned options say which events
// the format populated and should be passed to graph.Reduce.
func Parse(format Format, r io.Reader, opts Options, logger zerolog.Logger) (*graph.Profile, graph.ReduceOptions, error) {
	parse, ok := parsers[format]
	if !ok {
		return nil, graph.ReduceOptions{}, fmt.Errorf("%q: %w", format, ErrUnknownFormat)
	}

	p := graph.New(logger.With().Str("format", string(format)).Logger())
	reduce, err := parse(r, opts, p)
	if err != nil {
		return nil, graph.ReduceOptions{}, fmt.Errorf("%s: %w", format, err)
	}
	return p, reduce, nil
}

// Load parses r and reduces the result.
func Load(format Format, r io.Reader, opts Options, logger zerolog.Logger) (*graph.Profile, error) {
	p, reduce, err := Parse(format, r, opts, logger)
	if err != nil {
		return nil, err
	}
	err = graph.Reduce(p, reduce)
	if err != nil {
		return nil, fmt.Errorf("reduce: %w", err)
	}
	return p, nil
}

func callRatiosOnly(format Format, opts Options) (graph.TotalMethod, error) {
	switch opts.Method {
	case "", graph.TotalCallRatios:
		return graph.TotalCallRatios, nil
	default:
		return "", fmt.Errorf("total method %q is not supported by %s", opts.Method, format)
	}
}
