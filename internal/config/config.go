// Package config loads project-level settings from mindgraph.yml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultCacheDir is where the graph file lives, relative to the project root.
const DefaultCacheDir = ".mindgraph"

// PruneConfig tunes the confidence-based edge pruning defaults.
type PruneConfig struct {
	Threshold            float64 `yaml:"threshold,omitempty" validate:"gte=0,lte=1"`
	RemoveTransitive     bool    `yaml:"removeTransitive,omitempty"`
	MaxRemovalPercentage float64 `yaml:"maxRemovalPercentage,omitempty" validate:"gte=0,lte=100"`
}

// WatchConfig tunes the filesystem watcher.
type WatchConfig struct {
	DebounceMs int `yaml:"debounceMs,omitempty" validate:"gte=0"`
}

// ProjectConfig holds project-level settings loaded from mindgraph.yml.
type ProjectConfig struct {
	CacheDir    string      `yaml:"cacheDir,omitempty"`
	Languages   []string    `yaml:"languages,omitempty"`
	ExcludeDirs []string    `yaml:"excludeDirs,omitempty"`
	Verbose     bool        `yaml:"verbose,omitempty"`
	Prune       PruneConfig `yaml:"prune,omitempty"`
	Watch       WatchConfig `yaml:"watch,omitempty"`
}

// Load attempts to read mindgraph.yml or mindgraph.yaml from the given
// directory. Returns a zero-value config (not an error) if no config file
// exists.
func Load(dir string) (*ProjectConfig, error) {
	for _, name := range []string{"mindgraph.yml", "mindgraph.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var cfg ProjectConfig
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", name, err)
		}
		if err := validator.New().Struct(&cfg); err != nil {
			return nil, fmt.Errorf("config: invalid %s: %w", name, err)
		}
		return &cfg, nil
	}
	return &ProjectConfig{}, nil
}

// GraphPath returns the absolute path of the persisted graph file.
func (c *ProjectConfig) GraphPath(projectRoot string) string {
	dir := c.CacheDir
	if dir == "" {
		dir = DefaultCacheDir
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(projectRoot, dir)
	}
	return filepath.Join(dir, "graph.json")
}

// WatchDebounce returns the configured debounce interval, or zero if unset so
// the watcher can fall back to its own default.
func (c *ProjectConfig) WatchDebounce() time.Duration {
	if c.Watch.DebounceMs <= 0 {
		return 0
	}
	return time.Duration(c.Watch.DebounceMs) * time.Millisecond
}
