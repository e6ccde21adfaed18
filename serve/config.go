package serve

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Emyrk/profgraph/graph"
	"github.com/Emyrk/profgraph/profile"
	"github.com/Emyrk/profgraph/render"
)

type Config struct {
	Listen string `yaml:"listen"`
	// MaxBodyBytes limits the size of an uploaded profile.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
	// Namespace prefixes every exported metric.
	Namespace string   `yaml:"metrics_namespace"`
	Defaults  Defaults `yaml:"defaults"`
}

// Defaults apply to render requests that leave a parameter out.
type Defaults struct {
	Format profile.Format      `yaml:"format"`
	Output render.OutputFormat `yaml:"output"`
	Theme  string              `yaml:"theme"`
	Method graph.TotalMethod   `yaml:"total"`
	// Thresholds are percentages.
	NodeThreshold float64 `yaml:"node_threshold"`
	EdgeThreshold float64 `yaml:"edge_threshold"`
	Strip         bool    `yaml:"strip"`
	Wrap          bool    `yaml:"wrap"`
}

func DefaultConfig() Config {
	return Config{
		Listen:       ":2112",
		MaxBodyBytes: 64 << 20,
		Namespace:    "profgraph",
		Defaults: Defaults{
			Format:        profile.FormatPprof,
			Output:        render.OutputSVG,
			Theme:         render.DefaultTheme,
			Method:        graph.TotalCallRatios,
			NodeThreshold: 0.5,
			EdgeThreshold: 0.1,
			Wrap:          true,
		},
	}
}

// ReadConfig reads a YAML config file. Fields the file leaves out keep their
// DefaultConfig values.
func ReadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	yamlData, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	err = yaml.Unmarshal(yamlData, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
