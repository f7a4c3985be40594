// Package config loads the YAML configuration for the watch service, in
// the same style as the teacher's modules/config package referenced from
// main.go: a thin wrapper around gopkg.in/yaml.v3.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Root describes one directory this process should watch.
type Root struct {
	Path            string   `yaml:"path"`
	Ignore          []string `yaml:"ignore"`
	RecursiveRemove bool     `yaml:"recursive_remove"`
}

// Config is the top-level configuration for the dirwatch service.
type Config struct {
	Roots       []Root `yaml:"roots"`
	SnapshotDir string `yaml:"snapshot_dir"`
	LogLevel    string `yaml:"log_level"`
}

// FromYamlFile reads and parses path into out.
func FromYamlFile(path string, out *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	return nil
}
