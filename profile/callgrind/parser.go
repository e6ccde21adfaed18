// Package callgrind decodes the callgrind profile format written by valgrind's
// callgrind tool, kcachegrind-compatible profilers and many language profilers
// (xdebug, php-spx, pyprof2calltree).
package callgrind

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var ErrNoEvents = errors.New("no events line before first cost line")

// Parser reads one callgrind file.
type Parser struct {
	r    io.Reader
	line int

	profile *Profile

	// Compressed name tables: objects, files and functions each have their
	// own namespace.
	objects   map[string]string
	files     map[string]string
	functions map[string]string

	ob, fl, fn    string
	cob, cfi, cfn string

	current    *Function
	pending    bool
	pendingCnt int64
	positions  []int64
}

func NewCallgrindParser(r io.Reader) *Parser {
	return &Parser{
		r: r,
		profile: &Profile{
			Header:    make(map[string]string),
			Positions: []string{"line"},
			functions: make(map[string]*Function),
		},
		objects:   make(map[string]string),
		files:     make(map[string]string),
		functions: make(map[string]string),
		positions: make([]int64, 1),
	}
}

func (p *Parser) Parse() (*Profile, error) {
	scanner := bufio.NewScanner(p.r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		p.line++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		err := p.parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("callgrind: line %d: %w", p.line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("callgrind: read: %w", err)
	}
	if p.pending {
		return nil, fmt.Errorf("callgrind: line %d: calls= without a cost line", p.line)
	}
	return p.profile, nil
}

func (p *Parser) parseLine(line string) error {
	switch c := line[0]; {
	case c >= '0' && c <= '9', c == '+', c == '-', c == '*':
		return p.parseCost(line)
	}

	if key, value, ok := strings.Cut(line, "="); ok && isSpecKey(key) {
		return p.parseSpec(key, strings.TrimSpace(value))
	}

	if key, value, ok := strings.Cut(line, ":"); ok {
		p.parseHeader(strings.TrimSpace(key), strings.TrimSpace(value))
		return nil
	}
	return fmt.Errorf("unrecognized line %q", line)
}

func isSpecKey(key string) bool {
	switch key {
	case "ob", "fl", "fi", "fe", "fn", "cob", "cfi", "cfl", "cfn", "calls", "jump", "jcnd":
		return true
	}
	return false
}

func (p *Parser) parseHeader(key, value string) {
	switch key {
	case "events":
		p.profile.Events = strings.Fields(value)
	case "positions":
		p.profile.Positions = strings.Fields(value)
		p.positions = make([]int64, len(p.profile.Positions))
	}
	p.profile.Header[key] = value
}

func (p *Parser) parseSpec(key, value string) error {
	if p.pending && key != "calls" {
		return fmt.Errorf("%s= between calls= and its cost line", key)
	}
	switch key {
	case "ob":
		p.ob = expand(p.objects, value)
	case "fl":
		p.fl = expand(p.files, value)
	case "fi", "fe":
		// Inlined file changes do not change the current function.
		expand(p.files, value)
	case "fn":
		p.fn = expand(p.functions, value)
		p.current = p.profile.function(p.fn)
		if p.current.Object == "" {
			p.current.Object = p.ob
		}
		if p.current.File == "" {
			p.current.File = p.fl
		}
		p.cob, p.cfi, p.cfn = "", "", ""
	case "cob":
		p.cob = expand(p.objects, value)
	case "cfi", "cfl":
		p.cfi = expand(p.files, value)
	case "cfn":
		p.cfn = expand(p.functions, value)
	case "calls":
		fields := strings.Fields(value)
		if len(fields) == 0 {
			return fmt.Errorf("empty calls=")
		}
		count, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return fmt.Errorf("calls count %q: %w", fields[0], err)
		}
		if p.cfn == "" {
			return fmt.Errorf("calls= without cfn=")
		}
		p.pending = true
		p.pendingCnt = count
	case "jump", "jcnd":
		// Jump lines describe control flow inside a function.
	}
	return nil
}

func (p *Parser) parseCost(line string) error {
	if len(p.profile.Events) == 0 {
		return ErrNoEvents
	}
	if p.current == nil {
		return fmt.Errorf("cost line before fn=")
	}

	fields := strings.Fields(line)
	if len(fields) < len(p.positions) {
		return fmt.Errorf("cost line %q has fewer than %d positions", line, len(p.positions))
	}
	for i := range p.positions {
		pos, err := subposition(fields[i], p.positions[i])
		if err != nil {
			return err
		}
		p.positions[i] = pos
	}

	values := fields[len(p.positions):]
	if len(values) > len(p.profile.Events) {
		return fmt.Errorf("cost line %q has more values than events", line)
	}
	costs := make([]int64, len(p.profile.Events))
	for i, v := range values {
		n, err := parseNumber(v)
		if err != nil {
			return fmt.Errorf("cost %q: %w", v, err)
		}
		costs[i] = n
	}

	if !p.pending {
		addCosts(&p.current.Self, costs)
		return nil
	}

	callee := p.profile.function(p.cfn)
	if callee.Object == "" {
		callee.Object = p.cob
		if callee.Object == "" {
			callee.Object = p.ob
		}
	}
	if callee.File == "" {
		callee.File = p.cfi
		if callee.File == "" {
			callee.File = p.fl
		}
	}
	callee.Called += p.pendingCnt

	call := p.current.call(callee.ID, len(p.profile.Events))
	call.Count += p.pendingCnt
	addCosts(&call.Inclusive, costs)

	p.pending = false
	p.pendingCnt = 0
	return nil
}

func addCosts(dst *[]int64, costs []int64) {
	for len(*dst) < len(costs) {
		*dst = append(*dst, 0)
	}
	for i, c := range costs {
		(*dst)[i] += c
	}
}

// expand resolves callgrind name compression: "(id) name" defines id,
// "(id)" refers back to it.
func expand(table map[string]string, value string) string {
	if !strings.HasPrefix(value, "(") {
		return value
	}
	end := strings.IndexByte(value, ')')
	if end < 0 {
		return value
	}
	id := value[1:end]
	name := strings.TrimSpace(value[end+1:])
	if name == "" {
		return get(table, id, value)
	}
	table[id] = name
	return name
}

// subposition decodes an absolute position or one relative to the last:
// "+n", "-n", or "*" for unchanged.
func subposition(field string, last int64) (int64, error) {
	switch {
	case field == "*":
		return last, nil
	case strings.HasPrefix(field, "+"):
		n, err := parseNumber(field[1:])
		return last + n, err
	case strings.HasPrefix(field, "-"):
		n, err := parseNumber(field[1:])
		return last - n, err
	default:
		return parseNumber(field)
	}
}

func parseNumber(s string) (int64, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseInt(s[2:], 16, 64)
	}
	return strconv.ParseInt(s, 10, 64)
}
