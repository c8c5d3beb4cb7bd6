// Package config holds all starling engine configuration: heap sizing and
// collection thresholds, feature switches for gated proposals, and logging
// settings. Configuration is loaded from a YAML file with environment
// overrides applied on top; a file watcher supports live reload in the CLI
// shell.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all starling configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Heap sizing and collection behaviour.
	Heap HeapConfig `yaml:"heap"`

	// Gated language features.
	Features FeatureConfig `yaml:"features"`

	// Logging.
	Logging LoggingConfig `yaml:"logging"`
}

// HeapConfig tunes the typed-arena heap and its collector.
type HeapConfig struct {
	// GCThreshold is the allocation count between automatic collections.
	GCThreshold int `yaml:"gc_threshold"`
	// StressGC collects at every safepoint. Debug/test only.
	StressGC bool `yaml:"stress_gc"`
	// DisableGC suppresses automatic collection (debug only).
	DisableGC bool `yaml:"disable_gc"`
	// DebugChecks validates handle epochs at access time.
	DebugChecks bool `yaml:"debug_checks"`
	// MaxArrayBufferBytes bounds a single buffer allocation.
	MaxArrayBufferBytes int64 `yaml:"max_array_buffer_bytes"`
}

// FeatureConfig switches early-proposal behaviour on or off.
type FeatureConfig struct {
	// Float16Array installs the Float16Array constructor and prototype.
	Float16Array bool `yaml:"float16array"`
}

// LoggingConfig mirrors the settings internal/logging consumes.
type LoggingConfig struct {
	DebugMode bool   `yaml:"debug_mode"`
	Level     string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "starling",
		Version: "0.3.0",

		Heap: HeapConfig{
			GCThreshold:         8192,
			MaxArrayBufferBytes: 1<<31 - 1,
		},

		Features: FeatureConfig{
			Float16Array: false,
		},

		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Load reads configuration from path, falling back to defaults when the file
// does not exist, and applies environment overrides last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides lets the environment win over file settings.
// STARLING_DEBUG, STARLING_GC_THRESHOLD, STARLING_STRESS_GC and
// STARLING_FEATURE_FLOAT16 are recognized.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("STARLING_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Logging.DebugMode = b
		}
	}
	if v := os.Getenv("STARLING_GC_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Heap.GCThreshold = n
		}
	}
	if v := os.Getenv("STARLING_STRESS_GC"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Heap.StressGC = b
		}
	}
	if v := os.Getenv("STARLING_FEATURE_FLOAT16"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Features.Float16Array = b
		}
	}
}

// Validate rejects configurations the engine cannot honor.
func (c *Config) Validate() error {
	if c.Heap.GCThreshold < 0 {
		return fmt.Errorf("heap.gc_threshold must be non-negative, got %d", c.Heap.GCThreshold)
	}
	if c.Heap.MaxArrayBufferBytes < 0 {
		return fmt.Errorf("heap.max_array_buffer_bytes must be non-negative, got %d", c.Heap.MaxArrayBufferBytes)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug/info/warn/error", c.Logging.Level)
	}
	return nil
}
