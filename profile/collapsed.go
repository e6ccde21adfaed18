package profile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Emyrk/profgraph/graph"
)

var errMalformedCollapsed = errors.New("malformed input")

// parseCollapsed reads Brendan Gregg's folded stack format, one
// "root;child;leaf count" sample per line.
func parseCollapsed(r io.Reader, opts Options, p *graph.Profile) (graph.ReduceOptions, error) {
	s := newStacks(p)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		idx := strings.LastIndexByte(line, ' ')
		if idx == -1 {
			return graph.ReduceOptions{}, fmt.Errorf("line %d: %w", lineNo, errMalformedCollapsed)
		}
		count, err := strconv.ParseInt(line[idx+1:], 10, 64)
		if err != nil {
			return graph.ReduceOptions{}, fmt.Errorf("line %d: %w: %w", lineNo, errMalformedCollapsed, err)
		}
		if count <= 0 {
			continue
		}

		stack := strings.Split(strings.TrimSpace(line[:idx]), ";")
		frames := make([]frame, 0, len(stack))
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i] == "" {
				continue
			}
			frames = append(frames, frame{name: stack[i]})
		}
		s.add(frames, float64(count))
	}
	if err := scanner.Err(); err != nil {
		return graph.ReduceOptions{}, fmt.Errorf("read: %w", err)
	}

	return stackReduceOptions(opts), nil
}
