package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/muesli/termenv"
	"github.com/rs/zerolog"

	"github.com/Emyrk/profgraph/graph"
	"github.com/Emyrk/profgraph/profile"
	"github.com/Emyrk/profgraph/render"

	"github.com/coder/serpent"
)

var (
	GroupInput = &serpent.Group{
		Name:        "Input",
		YAML:        "input",
		Description: "How the profile is read and reduced.",
	}
	GroupGraph = &serpent.Group{
		Name:        "Graph",
		YAML:        "graph",
		Description: "What part of the graph is shown.",
	}
	GroupOutput = &serpent.Group{
		Name:        "Output",
		YAML:        "output",
		Description: "How the graph is drawn.",
	}
)

type renderOptions struct {
	Format     string
	SampleType string
	Event      string
	Total      string

	NodeThres   string
	EdgeThres   string
	Paths       []string
	ColorBySelf bool
	Roots       []string
	Leaves      []string
	Depth       int64

	Output       string
	OutputFormat string
	Theme        string
	Skew         string
	Strip        bool
	Wrap         bool
	Top          int64
}

func (r *Root) RenderCmd() *serpent.Command {
	var opts renderOptions
	return &serpent.Command{
		Use:        "render [file]",
		Short:      "Render a profile as a call graph. Reads stdin when no file is given.",
		Middleware: serpent.RequireRangeArgs(0, 1),
		Options: serpent.OptionSet{
			{
				Name:          "format",
				Description:   "Input profile format.",
				Flag:          "format",
				FlagShorthand: "f",
				Env:           "PROFGRAPH_FORMAT",
				Default:       string(profile.FormatPprof),
				Value:         serpent.EnumOf(&opts.Format, profile.FormatNames()...),
				Group:         GroupInput,
			},
			{
				Name:        "sample-type",
				Description: "pprof sample type to use, for example cpu or alloc_space. Defaults to the profile's default.",
				Flag:        "sample-type",
				Value:       serpent.StringOf(&opts.SampleType),
				Group:       GroupInput,
			},
			{
				Name:        "event",
				Description: "callgrind event to use. Defaults to the first one.",
				Flag:        "event",
				Value:       serpent.StringOf(&opts.Event),
				Group:       GroupInput,
			},
			{
				Name:        "total",
				Description: "How total time is computed. callstacks is only valid for stack sampled formats.",
				Flag:        "total",
				Default:     string(graph.TotalCallRatios),
				Value:       serpent.EnumOf(&opts.Total, string(graph.TotalCallRatios), string(graph.TotalCallStacks)),
				Group:       GroupInput,
			},
			{
				Name:          "node-thres",
				Description:   "Remove functions below this total time percentage.",
				Flag:          "node-thres",
				FlagShorthand: "n",
				Default:       "0.5",
				Value:         serpent.StringOf(&opts.NodeThres),
				Group:         GroupGraph,
			},
			{
				Name:          "edge-thres",
				Description:   "Remove calls below this total time percentage.",
				Flag:          "edge-thres",
				FlagShorthand: "e",
				Default:       "0.1",
				Value:         serpent.StringOf(&opts.EdgeThres),
				Group:         GroupGraph,
			},
			{
				Name:        "path",
				Description: "Only keep functions from files under these path prefixes.",
				Flag:        "path",
				Value:       serpent.StringArrayOf(&opts.Paths),
				Group:       GroupGraph,
			},
			{
				Name:        "color-by-self",
				Description: "Color functions by self time instead of total time.",
				Flag:        "color-by-self",
				Value:       serpent.BoolOf(&opts.ColorBySelf),
				Group:       GroupGraph,
			},
			{
				Name:          "root",
				Description:   "Only show what these functions call. Names are regular expressions.",
				Flag:          "root",
				FlagShorthand: "z",
				Value:         serpent.StringArrayOf(&opts.Roots),
				Group:         GroupGraph,
			},
			{
				Name:          "leaf",
				Description:   "Only show what calls these functions. Names are regular expressions.",
				Flag:          "leaf",
				FlagShorthand: "l",
				Value:         serpent.StringArrayOf(&opts.Leaves),
				Group:         GroupGraph,
			},
			{
				Name:        "depth",
				Description: "How many calls away from --root or --leaf to keep. Negative is unlimited.",
				Flag:        "depth",
				Default:     "-1",
				Value:       serpent.Int64Of(&opts.Depth),
				Group:       GroupGraph,
			},
			{
				Name:          "output",
				Description:   "File to write to. Defaults to stdout.",
				Flag:          "output",
				FlagShorthand: "o",
				Value:         serpent.StringOf(&opts.Output),
				Group:         GroupOutput,
			},
			{
				Name:        "output-format",
				Description: "What to write. text is a colored list of the heaviest functions.",
				Flag:        "output-format",
				Default:     string(render.OutputDot),
				Value:       serpent.EnumOf(&opts.OutputFormat, render.OutputFormats()...),
				Group:       GroupOutput,
			},
			{
				Name:          "theme",
				Description:   "Color theme.",
				Flag:          "theme",
				FlagShorthand: "c",
				Default:       render.DefaultTheme,
				Value:         serpent.EnumOf(&opts.Theme, render.ThemeNames()...),
				Group:         GroupOutput,
			},
			{
				Name:        "skew",
				Description: "Skew the colorization curve. Values above 1 give more color to hot functions.",
				Flag:        "skew",
				Default:     "1",
				Value:       serpent.StringOf(&opts.Skew),
				Group:       GroupOutput,
			},
			{
				Name:          "strip",
				Description:   "Strip argument lists and template parameters from function names.",
				Flag:          "strip",
				FlagShorthand: "s",
				Value:         serpent.BoolOf(&opts.Strip),
				Group:         GroupOutput,
			},
			{
				Name:          "wrap",
				Description:   "Wrap long function names.",
				Flag:          "wrap",
				FlagShorthand: "w",
				Value:         serpent.BoolOf(&opts.Wrap),
				Group:         GroupOutput,
			},
			{
				Name:        "top",
				Description: "Number of functions in the text output. Zero lists all.",
				Flag:        "top",
				Default:     "20",
				Value:       serpent.Int64Of(&opts.Top),
				Group:       GroupOutput,
			},
		},
		Handler: func(inv *serpent.Invocation) error {
			logger := r.Logger(inv)

			var in io.Reader = inv.Stdin
			name := "stdin"
			if len(inv.Args) == 1 && inv.Args[0] != "-" {
				name = inv.Args[0]
				f, err := os.Open(name)
				if err != nil {
					return fmt.Errorf("open profile: %w", err)
				}
				defer f.Close()
				in = f
			}

			out := inv.Stdout
			color := opts.OutputFormat == string(render.OutputText) &&
				termenv.NewOutput(inv.Stdout).EnvColorProfile() != termenv.Ascii
			if opts.Output != "" && opts.Output != "-" {
				f, err := os.Create(opts.Output)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				out = f
				color = false
			}

			w := bufio.NewWriter(out)
			err := opts.run(bufio.NewReader(in), w, color, logger.With().Str("profile", name).Logger())
			if err != nil {
				return err
			}
			return w.Flush()
		},
	}
}

func (o renderOptions) run(in io.Reader, out io.Writer, color bool, logger zerolog.Logger) error {
	nodeThres, err := parsePercent("node-thres", o.NodeThres)
	if err != nil {
		return err
	}
	edgeThres, err := parsePercent("edge-thres", o.EdgeThres)
	if err != nil {
		return err
	}
	theme, err := render.LookupTheme(o.Theme)
	if err != nil {
		return err
	}
	theme.Skew, err = strconv.ParseFloat(o.Skew, 64)
	if err != nil || theme.Skew <= 0 {
		return fmt.Errorf("skew %q must be a positive number", o.Skew)
	}

	p, err := profile.Load(profile.Format(o.Format), in, profile.Options{
		SampleType: o.SampleType,
		Event:      o.Event,
		Method:     graph.TotalMethod(o.Total),
	}, logger)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}

	functions, calls := p.Prune(graph.PruneOptions{
		NodeThreshold:   nodeThres,
		EdgeThreshold:   edgeThres,
		Paths:           o.Paths,
		ColorBySelfTime: o.ColorBySelf,
	})
	err = p.Focus(o.Roots, o.Leaves, int(o.Depth))
	if err != nil {
		return fmt.Errorf("%w (it might already be pruned, try --node-thres=0 --edge-thres=0)", err)
	}

	logger.Info().
		Int("functions", p.Len()).
		Int("cycles", len(p.Cycles())).
		Int("pruned_functions", functions).
		Int("pruned_calls", calls).
		Msg("reduced profile")

	return render.Render(out, p, render.Options{
		Format: render.OutputFormat(o.OutputFormat),
		Theme:  theme,
		Strip:  o.Strip,
		Wrap:   o.Wrap,
		Top:    int(o.Top),
		Color:  color,
	})
}

// parsePercent reads a percentage, with or without a trailing %, as a
// fraction.
func parsePercent(name, v string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "%"), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if f < 0 || f > 100 {
		return 0, fmt.Errorf("%s: %v is not a percentage", name, f)
	}
	return f / 100, nil
}
