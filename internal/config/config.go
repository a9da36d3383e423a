package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// MarkerDir is the directory that marks a project root and holds its
// config.yaml, logs and local pipes.
const MarkerDir = ".geese"

// Config holds all geese configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Pipe operation engine
	Pipes PipesConfig `yaml:"pipes"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "geese",
		Version: "0.4.0",

		Pipes: PipesConfig{
			GlobalDir:      "",
			MarkerDir:      MarkerDir,
			ReadsPerSecond: 10,
			ReadBurst:      10,
			BlockedImports: []string{"unsafe", "syscall", "os/exec", "plugin"},
			WatchDebounce:  "300ms",
		},

		Logging: LoggingConfig{
			Level:     "info",
			Format:    "text",
			DebugMode: false,
		},
	}
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults (with env overrides applied).
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// LoadForWorkspace loads <project>/.geese/config.yaml for the project
// containing dir.
func LoadForWorkspace(dir string) (*Config, string, error) {
	root := FindProjectRoot(dir, MarkerDir)
	cfg, err := Load(filepath.Join(root, MarkerDir, "config.yaml"))
	if err != nil {
		return nil, "", err
	}
	return cfg, root, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if home := os.Getenv("GEESE_HOME"); home != "" {
		c.Pipes.GlobalDir = home
	}
	if v := os.Getenv("GEESE_READS_PER_SECOND"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil {
			c.Pipes.ReadsPerSecond = rate
			c.Pipes.ReadBurst = rate
		}
	}
	if os.Getenv("GEESE_DEBUG") == "1" {
		c.Logging.DebugMode = true
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Pipes.Validate(); err != nil {
		return err
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid logging level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}
	return nil
}
