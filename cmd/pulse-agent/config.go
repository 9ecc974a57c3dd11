package main

import (
	"gopkg.in/yaml.v3"

	"github.com/coral-mesh/pulse/internal/safe"
)

// Config is the pulse-agent's on-disk configuration (spec §9's ambient
// config concern; the profiler core itself takes no config beyond what
// pulse.Option exposes).
type Config struct {
	// LogLevel is one of trace, debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// Pretty enables human-readable console log output.
	Pretty bool `yaml:"pretty"`

	// GPUQueryCapacity overrides the GPU profiler's per-node query ring
	// size; zero keeps the package default.
	GPUQueryCapacity uint32 `yaml:"gpu_query_capacity"`

	// DemoThreadCount is how many synthetic worker goroutines the demo
	// subcommand spins up.
	DemoThreadCount int `yaml:"demo_thread_count"`
}

// DefaultConfig returns the pulse-agent's default configuration.
func DefaultConfig() Config {
	return Config{
		LogLevel:        "info",
		Pretty:          true,
		DemoThreadCount: 2,
	}
}

// LoadConfig reads and parses a YAML config file, starting from
// DefaultConfig for any field the file omits.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := safe.ReadFile(path, nil)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
