package profile

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/google/pprof/profile"

	"github.com/Emyrk/profgraph/graph"
)

func parsePprof(r io.Reader, opts Options, p *graph.Profile) (graph.ReduceOptions, error) {
	prof, err := profile.Parse(r)
	if err != nil {
		return graph.ReduceOptions{}, fmt.Errorf("parse: %w", err)
	}

	idx, err := prof.SampleIndexByName(opts.SampleType)
	if err != nil {
		return graph.ReduceOptions{}, fmt.Errorf("sample type: %w", err)
	}

	logger := p.Logger()
	logger.Debug().
		Int("samples", len(prof.Sample)).
		Str("sample_type", prof.SampleType[idx].Type).
		Str("unit", prof.SampleType[idx].Unit).
		Msg("decoded pprof profile")

	s := newStacks(p)
	skipped := 0
	for _, sample := range prof.Sample {
		v := sample.Value[idx]
		if v < 0 {
			skipped++
			continue
		}
		if v == 0 {
			continue
		}
		s.add(pprofFrames(sample), float64(v))
	}
	if skipped > 0 {
		logger.Warn().Int("samples", skipped).Msg("skipped samples with negative values")
	}

	return stackReduceOptions(opts), nil
}

// pprofFrames flattens the locations of a sample into frames, leaf first.
// Inlined functions of a location come before the function they are inlined
// into.
func pprofFrames(sample *profile.Sample) []frame {
	var frames []frame
	for _, loc := range sample.Location {
		var module string
		if loc.Mapping != nil && loc.Mapping.File != "" {
			module = filepath.Base(loc.Mapping.File)
		}

		if len(loc.Line) == 0 {
			frames = append(frames, frame{name: fmt.Sprintf("0x%x", loc.Address), module: module})
			continue
		}
		for _, line := range loc.Line {
			fr := frame{module: module}
			if line.Function != nil {
				fr.name = line.Function.Name
				fr.file = line.Function.Filename
			}
			if fr.name == "" {
				fr.name = fmt.Sprintf("0x%x", loc.Address)
			}
			frames = append(frames, fr)
		}
	}
	return frames
}
