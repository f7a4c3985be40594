package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dirwatch/corewatch/config"
	"github.com/dirwatch/corewatch/event"
)

func TestServiceScanPostsCreateEvents(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	svc, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer svc.Close()

	events, err := svc.Scan(root, nil, false)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	found := false
	for _, e := range events {
		if e.Path == filepath.Join(root, "a.txt") && e.Type() == event.TypeCreate {
			found = true
		}
	}
	if !found {
		t.Fatalf("Scan did not report the file, got %+v", events)
	}
}

func TestServiceWriteSnapshotsUsesConfiguredRoots(t *testing.T) {
	root := t.TempDir()
	snapDir := t.TempDir()

	svc, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer svc.Close()

	cfg := &config.Config{
		Roots:       []config.Root{{Path: root}},
		SnapshotDir: snapDir,
	}

	err = svc.Start(cfg, func(root string, batch []event.Event) {})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := svc.WriteSnapshots(cfg); err != nil {
		t.Fatalf("WriteSnapshots: %v", err)
	}

	if _, err := os.Stat(snapshotPath(snapDir, root)); err != nil {
		t.Fatalf("expected a snapshot file at the configured location: %v", err)
	}
}
