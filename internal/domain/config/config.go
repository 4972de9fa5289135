// Package config loads and validates the stratum build configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file looked up when none is given.
const DefaultFileName = "stratum.yaml"

// Duration wraps time.Duration with YAML support for "30s"-style values.
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// LogConfig configures build logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Config is the build executor configuration.
type Config struct {
	CacheDir      string    `yaml:"cache_dir"`
	CacheCapacity int64     `yaml:"cache_capacity_bytes"` // 0 means unlimited
	WorkDir       string    `yaml:"work_dir"`
	StepTimeout   Duration  `yaml:"step_timeout"` // 0 means no per-step timeout
	Log           LogConfig `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	cacheDir := ".stratum/cache"
	if home, err := os.UserHomeDir(); err == nil {
		cacheDir = filepath.Join(home, ".stratum", "cache")
	}

	return Config{
		CacheDir: cacheDir,
		WorkDir:  os.TempDir(),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads and validates the configuration at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, &UserError{
				Code:       ErrCodeConfigNotFound,
				Message:    "config file not found",
				Context:    path,
				Suggestion: fmt.Sprintf("Create %s or omit --config to use defaults.", DefaultFileName),
				Underlying: err,
			}
		}
		return Config{}, &UserError{
			Code:       ErrCodeConfigNotFound,
			Message:    "config file could not be read",
			Context:    path,
			Underlying: err,
		}
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, &UserError{
			Code:       ErrCodeConfigParse,
			Message:    "config file is not valid YAML",
			Context:    path,
			Suggestion: "Check the file for indentation or syntax mistakes.",
			Underlying: err,
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadOrDefault loads path if given, otherwise the default file when it
// exists, otherwise the built-in defaults.
func LoadOrDefault(path string) (Config, error) {
	if path != "" {
		return Load(path)
	}

	if _, err := os.Stat(DefaultFileName); err == nil {
		return Load(DefaultFileName)
	}

	return Default(), nil
}

// Validate checks the configuration for invalid values.
func (c Config) Validate() error {
	if c.CacheCapacity < 0 {
		return &UserError{
			Code:       ErrCodeConfigInvalid,
			Message:    fmt.Sprintf("cache_capacity_bytes must not be negative, got %d", c.CacheCapacity),
			Suggestion: "Use 0 for an unbounded cache.",
		}
	}

	if c.StepTimeout < 0 {
		return &UserError{
			Code:       ErrCodeConfigInvalid,
			Message:    "step_timeout must not be negative",
			Suggestion: "Use 0 to disable the per-step timeout.",
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return &UserError{
			Code:       ErrCodeConfigInvalid,
			Message:    fmt.Sprintf("unknown log level %q", c.Log.Level),
			Suggestion: "Valid levels are debug, info, warn and error.",
		}
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return &UserError{
			Code:       ErrCodeConfigInvalid,
			Message:    fmt.Sprintf("unknown log format %q", c.Log.Format),
			Suggestion: "Valid formats are text and json.",
		}
	}

	return nil
}
