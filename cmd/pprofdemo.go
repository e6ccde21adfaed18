package cmd

import (
	"bytes"
	"fmt"
	"runtime/pprof"
	"time"

	"github.com/google/pprof/profile"

	"github.com/Emyrk/profgraph/cmd/workdemo"

	"github.com/coder/serpent"
)

func (r *Root) demo() *serpent.Command {
	var depth int64
	return &serpent.Command{
		Use:   "demo",
		Short: "Write a CPU profile of a small recursive workload to stdout.",
		Options: serpent.OptionSet{
			{
				Name:        "depth",
				Description: "Recursion depth of the workload.",
				Flag:        "depth",
				Default:     "6",
				Value:       serpent.Int64Of(&depth),
			},
		},
		Handler: func(i *serpent.Invocation) error {
			logger := r.Logger(i)

			var buf bytes.Buffer
			err := pprof.StartCPUProfile(&buf)
			if err != nil {
				return fmt.Errorf("start cpu profile: %w", err)
			}

			// Do some work
			start := time.Now()
			result := workdemo.Root(int(depth))

			// Stop profile
			pprof.StopCPUProfile()

			prof, err := profile.Parse(bytes.NewReader(buf.Bytes()))
			if err != nil {
				return fmt.Errorf("parse cpu profile: %w", err)
			}
			logger.Info().
				Int("samples", len(prof.Sample)).
				Int("functions", len(prof.Function)).
				Int("result", result).
				Dur("took", time.Since(start)).
				Msg("profiled workload")

			// Write the profile to output
			_, err = buf.WriteTo(i.Stdout)
			return err
		},
	}
}
