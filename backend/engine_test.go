package backend

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dirwatch/corewatch/event"
	"github.com/dirwatch/corewatch/tree"
)

// fakeWatcher is a minimal Watcher for exercising Engine without a live
// platform backend.
type fakeWatcher struct {
	dir             string
	ignore          map[string]struct{}
	events          *event.List
	recursiveRemove bool
	notified        int
}

func newFakeWatcher(dir string) *fakeWatcher {
	return &fakeWatcher{dir: dir, ignore: map[string]struct{}{}, events: event.NewList()}
}

func (w *fakeWatcher) Dir() string                     { return w.dir }
func (w *fakeWatcher) Ignore() map[string]struct{}     { return w.ignore }
func (w *fakeWatcher) Events() *event.List             { return w.events }
func (w *fakeWatcher) Notify()                         { w.notified++ }
func (w *fakeWatcher) RecursiveRemove() bool            { return w.recursiveRemove }

var _ Watcher = (*fakeWatcher)(nil)

// fakePlatform is a no-op platformEngine standing in for a real OS backend
// in tests, since Engine's shared operations (Scan, WriteSnapshot,
// UpdateSnapshot, GetEventsSince) don't depend on live kernel events.
type fakePlatform struct {
	subscribed   []Watcher
	unsubscribed []Watcher
	closed       bool
}

func (p *fakePlatform) subscribe(w Watcher, h *tree.Handle) error {
	p.subscribed = append(p.subscribed, w)
	return nil
}

func (p *fakePlatform) unsubscribe(w Watcher) error {
	p.unsubscribed = append(p.unsubscribed, w)
	return nil
}

func (p *fakePlatform) close() error {
	p.closed = true
	return nil
}

func newTestEngine() (*Engine, *fakePlatform) {
	p := &fakePlatform{}
	return &Engine{cache: tree.NewCache(), platform: p}, p
}

func TestEngineScanPostsCreateForEveryEntry(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "a.txt"))
	mustMkdir(t, filepath.Join(root, "sub"))
	mustWriteFile(t, filepath.Join(root, "sub", "b.txt"))

	eng, _ := newTestEngine()
	w := newFakeWatcher(root)

	if err := eng.Scan(w); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	events := w.Events().Events()
	paths := make(map[string]bool)
	for _, e := range events {
		paths[e.Path] = true
		if e.Type() != event.TypeCreate {
			t.Fatalf("Scan should only post creates, got %v for %q", e.Type(), e.Path)
		}
	}

	if paths[root] {
		t.Fatal("Scan should not post a create for the root itself")
	}
	if !paths[filepath.Join(root, "a.txt")] || !paths[filepath.Join(root, "sub")] || !paths[filepath.Join(root, "sub", "b.txt")] {
		t.Fatalf("Scan missed entries, got %+v", paths)
	}
}

func TestEngineWriteSnapshotAndGetEventsSince(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "a.txt"))

	eng, _ := newTestEngine()
	w := newFakeWatcher(root)

	snapPath := filepath.Join(t.TempDir(), "snap")
	if err := eng.WriteSnapshot(w, snapPath); err != nil {
		t.Fatalf("WriteSnapshot failed: %v", err)
	}
	if _, err := os.Stat(snapPath); err != nil {
		t.Fatalf("snapshot file missing: %v", err)
	}

	// No changes since the snapshot: GetEventsSince should post nothing.
	w2 := newFakeWatcher(root)
	if err := eng.GetEventsSince(w2, snapPath); err != nil {
		t.Fatalf("GetEventsSince failed: %v", err)
	}
	if w2.Events().Size() != 0 {
		t.Fatalf("Size() = %d, want 0 when nothing changed since the snapshot", w2.Events().Size())
	}

	// Add a file after the snapshot was taken; the new watcher should see
	// one create for it.
	mustWriteFile(t, filepath.Join(root, "b.txt"))
	w3 := newFakeWatcher(root)
	if err := eng.GetEventsSince(w3, snapPath); err != nil {
		t.Fatalf("GetEventsSince failed: %v", err)
	}
	events := w3.Events().Events()
	found := false
	for _, e := range events {
		if e.Path == filepath.Join(root, "b.txt") && e.Type() == event.TypeCreate {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a create for the new file, got %+v", events)
	}
}

func TestEngineGetEventsSinceMissingSnapshotIsNoop(t *testing.T) {
	root := t.TempDir()
	eng, _ := newTestEngine()
	w := newFakeWatcher(root)

	err := eng.GetEventsSince(w, filepath.Join(root, "does-not-exist"))
	if err != nil {
		t.Fatalf("GetEventsSince should swallow a missing snapshot, got %v", err)
	}
	if w.Events().Size() != 0 {
		t.Fatal("a missing snapshot should not post any events")
	}
}

func TestEngineUpdateSnapshot(t *testing.T) {
	root := t.TempDir()
	eng, _ := newTestEngine()
	w := newFakeWatcher(root)

	// Hold a handle for the whole test: the cache evicts a root's tree when
	// its last handle is released, and UpdateSnapshot releases its own.
	h := eng.cache.GetCached(root, false)
	defer h.Release()

	entry := SnapshotEntry{Path: root + "/new", Ino: 7, Mtime: 1, Kind: tree.File, FileID: "fid"}
	if err := eng.UpdateSnapshot(w, entry, SnapshotCreate); err != nil {
		t.Fatalf("UpdateSnapshot create failed: %v", err)
	}

	if found := h.Find(entry.Path); found == nil || found.Ino != 7 {
		t.Fatalf("UpdateSnapshot create did not land, got %+v", found)
	}

	entry.Mtime = 2
	if err := eng.UpdateSnapshot(w, entry, SnapshotUpdate); err != nil {
		t.Fatalf("UpdateSnapshot update failed: %v", err)
	}
	if found := h.Find(entry.Path); found == nil || found.Mtime != 2 {
		t.Fatalf("UpdateSnapshot update did not land, got %+v", found)
	}

	if err := eng.UpdateSnapshot(w, entry, SnapshotDelete); err != nil {
		t.Fatalf("UpdateSnapshot delete failed: %v", err)
	}
	if found := h.Find(entry.Path); found != nil {
		t.Fatalf("UpdateSnapshot delete should have removed the entry, got %+v", found)
	}
}

func TestEngineSubscribeUnsubscribeDelegatesToPlatform(t *testing.T) {
	root := t.TempDir()
	eng, p := newTestEngine()
	w := newFakeWatcher(root)

	if err := eng.Subscribe(w); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if len(p.subscribed) != 1 || p.subscribed[0] != w {
		t.Fatalf("platform.subscribe was not called with w, got %+v", p.subscribed)
	}

	if err := eng.Unsubscribe(w); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	if len(p.unsubscribed) != 1 || p.unsubscribed[0] != w {
		t.Fatalf("platform.unsubscribe was not called with w, got %+v", p.unsubscribed)
	}

	if err := eng.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !p.closed {
		t.Fatal("Close should delegate to platform.close")
	}
}
