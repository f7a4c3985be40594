package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFromYamlFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	contents := `
roots:
  - path: /srv/data
    ignore:
      - /srv/data/tmp
    recursive_remove: true
  - path: /srv/logs
snapshot_dir: /var/lib/dirwatch
log_level: debug
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var cfg Config
	if err := FromYamlFile(path, &cfg); err != nil {
		t.Fatalf("FromYamlFile: %v", err)
	}

	if len(cfg.Roots) != 2 {
		t.Fatalf("got %d roots, want 2", len(cfg.Roots))
	}
	if cfg.Roots[0].Path != "/srv/data" || !cfg.Roots[0].RecursiveRemove {
		t.Fatalf("roots[0] = %+v, unexpected", cfg.Roots[0])
	}
	if len(cfg.Roots[0].Ignore) != 1 || cfg.Roots[0].Ignore[0] != "/srv/data/tmp" {
		t.Fatalf("roots[0].Ignore = %+v, unexpected", cfg.Roots[0].Ignore)
	}
	if cfg.Roots[1].Path != "/srv/logs" || cfg.Roots[1].RecursiveRemove {
		t.Fatalf("roots[1] = %+v, unexpected", cfg.Roots[1])
	}
	if cfg.SnapshotDir != "/var/lib/dirwatch" {
		t.Fatalf("SnapshotDir = %q, unexpected", cfg.SnapshotDir)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q, unexpected", cfg.LogLevel)
	}
}

func TestFromYamlFileMissingFile(t *testing.T) {
	var cfg Config
	err := FromYamlFile("/does/not/exist.yaml", &cfg)
	if err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
