package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// PipesConfig configures the pipe operation engine.
type PipesConfig struct {
	// GlobalDir is the user-global scope root; its pipes/ subdirectory holds
	// global custom operations. Empty means ~/.geese.
	GlobalDir string `yaml:"global_dir"`

	// MarkerDir is the project marker directory searched for upward from
	// the working directory. Its pipes/ subdirectory is the local scope.
	MarkerDir string `yaml:"marker_dir"`

	// File-read throttle for readFile/loadFile.
	ReadsPerSecond float64 `yaml:"reads_per_second"`
	ReadBurst      float64 `yaml:"read_burst"`

	// Imports rejected in custom operation modules.
	BlockedImports []string `yaml:"blocked_imports"`

	// Debounce window for the pipes directory watcher.
	WatchDebounce string `yaml:"watch_debounce"`
}

// Validate checks that the pipes settings are usable.
func (p PipesConfig) Validate() error {
	if p.ReadsPerSecond <= 0 {
		return fmt.Errorf("pipes.reads_per_second must be > 0, got %v", p.ReadsPerSecond)
	}
	if p.ReadBurst < 0 {
		return fmt.Errorf("pipes.read_burst must be >= 0, got %v", p.ReadBurst)
	}
	if p.WatchDebounce != "" {
		if _, err := time.ParseDuration(p.WatchDebounce); err != nil {
			return fmt.Errorf("pipes.watch_debounce: %w", err)
		}
	}
	return nil
}

// GetWatchDebounce returns the watcher debounce as a duration.
func (p PipesConfig) GetWatchDebounce() time.Duration {
	d, err := time.ParseDuration(p.WatchDebounce)
	if err != nil || d <= 0 {
		return 300 * time.Millisecond
	}
	return d
}

// GlobalRoot returns the user-global scope root directory.
func (p PipesConfig) GlobalRoot() string {
	if p.GlobalDir != "" {
		return p.GlobalDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", MarkerDir)
	}
	return filepath.Join(home, MarkerDir)
}

// Marker returns the configured project marker directory name.
func (p PipesConfig) Marker() string {
	if p.MarkerDir == "" {
		return MarkerDir
	}
	return p.MarkerDir
}

// FindProjectRoot walks upward from start and returns the first directory
// containing a marker directory. Falls back to start when none is found.
func FindProjectRoot(start, marker string) string {
	dir, err := filepath.Abs(start)
	if err != nil {
		return start
	}

	original := dir
	for {
		if info, err := os.Stat(filepath.Join(dir, marker)); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return original
}

// FindMarkerDir is like FindProjectRoot but reports whether a marker was
// found, returning the marker directory itself.
func FindMarkerDir(start, marker string) (string, bool) {
	root := FindProjectRoot(start, marker)
	candidate := filepath.Join(root, marker)
	if info, err := os.Stat(candidate); err == nil && info.IsDir() {
		return candidate, true
	}
	return "", false
}
