// Package render draws a reduced graph.Profile: Graphviz DOT text, images
// rendered from it, and a plain terminal report.
package render

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/mitchellh/go-wordwrap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/Emyrk/profgraph/graph"
)

const (
	// dot cannot parse quoted strings longer than its 16K lexer buffer.
	maxFunctionName = 4096
	wrapWidth       = 32
	multiplication  = "×"
)

// DotWriter writes a profile as a Graphviz digraph. Nodes are labeled with
// module, name, total and self time ratios and call count; edges with their
// total time ratio and call count.
type DotWriter struct {
	w   *bufio.Writer
	err error

	// Strip removes argument lists and template parameters from names.
	Strip bool
	// Wrap breaks long names over several lines.
	Wrap bool
}

func NewDotWriter(w io.Writer) *DotWriter {
	return &DotWriter{w: bufio.NewWriter(w)}
}

// Graph writes the whole profile. It only reads from p.
func (d *DotWriter) Graph(p *graph.Profile, theme Theme) error {
	d.write("digraph {\n")
	d.attr("graph", map[string]any{
		"fontname": theme.FontName,
		"ranksep":  0.25,
		"nodesep":  0.125,
	})
	d.attr("node", map[string]any{
		"fontname":  theme.FontName,
		"shape":     "box",
		"style":     theme.NodeStyle,
		"fontcolor": theme.FontColor,
		"width":     0,
		"height":    0,
	})
	d.attr("edge", map[string]any{
		"fontname": theme.FontName,
	})

	for _, f := range p.Functions() {
		weight, _ := f.Weight()
		attrs := map[string]any{
			"label":     d.functionLabel(f),
			"color":     hex(theme.NodeColor(weight)),
			"fontcolor": hex(theme.NodeFontColor(weight)),
			"fontsize":  fmt.Sprintf("%.2f", theme.FontSize(weight)),
		}
		if f.Filename != "" {
			attrs["tooltip"] = f.Filename
		}
		d.node(int(f.ID), attrs)

		for _, call := range f.Calls() {
			callee, ok := p.Function(call.CalleeID)
			if !ok {
				continue
			}
			weight, ok := call.Weight()
			if !ok {
				weight, _ = callee.Weight()
			}
			color := hex(theme.Color(weight))
			penWidth := fmt.Sprintf("%.2f", theme.PenWidth(weight))
			d.edge(int(f.ID), int(call.CalleeID), map[string]any{
				"label":         callLabel(call),
				"color":         color,
				"fontcolor":     color,
				"fontsize":      fmt.Sprintf("%.2f", theme.FontSize(weight)),
				"penwidth":      penWidth,
				"labeldistance": penWidth,
				"arrowsize":     fmt.Sprintf("%.2f", theme.ArrowSize(weight)),
			})
		}
	}

	d.write("}\n")
	if d.err != nil {
		return d.err
	}
	return d.w.Flush()
}

func (d *DotWriter) functionLabel(f *graph.Function) string {
	var labels []string
	if f.Process != "" {
		labels = append(labels, f.Process)
	}
	if f.Module != "" {
		labels = append(labels, f.Module)
	}

	name := f.Name
	if d.Strip {
		name = graph.StripName(name)
	}
	if len(name) >= maxFunctionName {
		name = truncate(name, maxFunctionName-1) + "…"
	}
	if d.Wrap {
		name = wrapName(name)
	}
	labels = append(labels, name)

	if v, ok := f.Lookup(graph.TotalTimeRatio); ok {
		labels = append(labels, graph.TotalTimeRatio.Format(v))
	}
	if v, ok := f.Lookup(graph.TimeRatio); ok {
		labels = append(labels, "("+graph.TimeRatio.Format(v)+")")
	}
	if called, ok := f.Called(); ok {
		labels = append(labels, graph.Calls.Format(called)+multiplication)
	}
	return strings.Join(labels, "\n")
}

func callLabel(call *graph.Call) string {
	var labels []string
	if v, ok := call.Lookup(graph.TotalTimeRatio); ok {
		labels = append(labels, graph.TotalTimeRatio.Format(v))
	}
	if v, ok := call.Lookup(graph.Calls); ok {
		labels = append(labels, graph.Calls.Format(v)+multiplication)
	}
	return strings.Join(labels, "\n")
}

func wrapName(name string) string {
	if len(name) > wrapWidth {
		name = wordwrap.WrapString(name, wrapWidth)
	}
	name = strings.ReplaceAll(name, ", ", ",")
	// Twice, for runs of closing brackets.
	name = strings.ReplaceAll(name, "> >", ">>")
	name = strings.ReplaceAll(name, "> >", ">>")
	return name
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func hex(c colorful.Color) string {
	return c.Hex()
}

func (d *DotWriter) attr(what string, attrs map[string]any) {
	d.write("\t" + what + " ")
	d.attrList(attrs)
	d.write(";\n")
}

func (d *DotWriter) node(id int, attrs map[string]any) {
	d.write("\t" + strconv.Itoa(id) + " ")
	d.attrList(attrs)
	d.write(";\n")
}

func (d *DotWriter) edge(from, to int, attrs map[string]any) {
	d.write("\t" + strconv.Itoa(from) + " -> " + strconv.Itoa(to) + " ")
	d.attrList(attrs)
	d.write(";\n")
}

func (d *DotWriter) attrList(attrs map[string]any) {
	keys := maps.Keys(attrs)
	slices.Sort(keys)

	d.write("[")
	for i, k := range keys {
		if i > 0 {
			d.write(", ")
		}
		d.write(k + "=" + id(attrs[k]))
	}
	d.write("]")
}

// id formats a DOT id: numbers and plain words as they are, anything else
// quoted and escaped.
func id(v any) string {
	switch v := v.(type) {
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		if isPlainID(v) {
			return v
		}
		return escape(v)
	default:
		return escape(fmt.Sprint(v))
	}
}

func isPlainID(s string) bool {
	if s == "" || strings.HasPrefix(s, "0x") {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return false
		}
	}
	return true
}

func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\t", `\t`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func (d *DotWriter) write(s string) {
	if d.err != nil {
		return
	}
	_, d.err = d.w.WriteString(s)
}
