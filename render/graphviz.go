package render

import (
	"bytes"
	"fmt"
	"io"

	"github.com/goccy/go-graphviz"

	"github.com/Emyrk/profgraph/graph"
)

// OutputFormat is what a profile is rendered as.
type OutputFormat string

const (
	OutputDot  OutputFormat = "dot"
	OutputSVG  OutputFormat = "svg"
	OutputPNG  OutputFormat = "png"
	OutputText OutputFormat = "text"
)

func OutputFormats() []string {
	return []string{string(OutputDot), string(OutputSVG), string(OutputPNG), string(OutputText)}
}

// ContentType is the MIME type of the rendered output.
func (f OutputFormat) ContentType() string {
	switch f {
	case OutputSVG:
		return "image/svg+xml"
	case OutputPNG:
		return "image/png"
	case OutputDot:
		return "text/vnd.graphviz; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

type Options struct {
	Format OutputFormat
	Theme  Theme
	Strip  bool
	Wrap   bool
	// Top limits the text report to the heaviest functions. Zero shows all.
	Top int
	// Color enables terminal colors in the text report.
	Color bool
}

// Render writes p in the requested format.
func Render(w io.Writer, p *graph.Profile, opts Options) error {
	switch opts.Format {
	case OutputText:
		return WriteTop(w, p, TopOptions{N: opts.Top, Theme: opts.Theme, Strip: opts.Strip, Color: opts.Color})
	case "", OutputDot:
		return writeDot(w, p, opts)
	case OutputSVG, OutputPNG:
		var dot bytes.Buffer
		err := writeDot(&dot, p, opts)
		if err != nil {
			return err
		}
		return RenderImage(w, dot.Bytes(), opts.Format)
	default:
		return fmt.Errorf("unknown output format %q", opts.Format)
	}
}

func writeDot(w io.Writer, p *graph.Profile, opts Options) error {
	dw := NewDotWriter(w)
	dw.Strip = opts.Strip
	dw.Wrap = opts.Wrap
	return dw.Graph(p, opts.Theme)
}

// RenderImage lays out DOT source with the embedded Graphviz library.
func RenderImage(w io.Writer, dot []byte, format OutputFormat) error {
	var gvFormat graphviz.Format
	switch format {
	case OutputSVG:
		gvFormat = graphviz.SVG
	case OutputPNG:
		gvFormat = graphviz.PNG
	default:
		return fmt.Errorf("graphviz cannot render %q", format)
	}

	g, err := graphviz.ParseBytes(dot)
	if err != nil {
		return fmt.Errorf("parse dot: %w", err)
	}
	defer g.Close()

	gv := graphviz.New()
	defer gv.Close()

	err = gv.Render(g, gvFormat, w)
	if err != nil {
		return fmt.Errorf("render %s: %w", format, err)
	}
	return nil
}
