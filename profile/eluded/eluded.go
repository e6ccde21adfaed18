// Package eluded decodes call trees written by the screeps "eluded" profiler:
// a JSON array of ticks, each a tree of {key, cpu, children} nodes where cpu
// is inclusive milliseconds.
package eluded

import (
	"encoding/json"
	"fmt"
	"io"
)

type Profile struct {
	Key       string    `json:"key"`
	Start     float64   `json:"start"`
	CPU       float64   `json:"cpu"`
	Children  []Profile `json:"children"`
	UnixMilli int64     `json:"um,omitempty"`
}

// Decode reads either a JSON array of trees or a single tree.
func Decode(r io.Reader) ([]Profile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	var ticks []Profile
	err = json.Unmarshal(data, &ticks)
	if err == nil {
		return ticks, nil
	}

	var single Profile
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return []Profile{single}, nil
}

// CPUNano returns the number of nanoseconds. Probably too much
// precision.
// Default is in ms, so just bump by a factor of 6.
func (p Profile) CPUNano() int64 {
	return int64(p.CPU * 1e6)
}

// SelfCPU is the time spent in this node itself, in milliseconds. Rounding in
// the profiler can make children add up to more than their parent; that is
// reported as zero.
func (p Profile) SelfCPU() float64 {
	total := p.CPU
	for _, child := range p.Children {
		total -= child.CPU
	}
	return max(total, 0)
}

func (p Profile) SelfCostNano() int64 {
	return int64(p.SelfCPU() * 1e6)
}
