package backend

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/dirwatch/corewatch/diff"
	"github.com/dirwatch/corewatch/tree"
)

// platformEngine is implemented once per OS family. Linux gets the fully
// specified inotify state machine; other platforms are thin
// external-collaborator stubs feeding the same Engine/EventList API, per
// the spec's scope note that only the inotify family is specified in
// depth.
type platformEngine interface {
	subscribe(w Watcher, h *tree.Handle) error
	unsubscribe(w Watcher) error
	close() error
}

// Engine is the public backend surface: the process-wide tree cache plus
// whichever platform state machine watches the kernel for live changes.
type Engine struct {
	cache    *tree.Cache
	platform platformEngine
}

// New constructs an Engine and starts its platform backend.
func New() (*Engine, error) {
	p, err := newPlatformEngine()
	if err != nil {
		return nil, err
	}
	return &Engine{cache: tree.NewCache(), platform: p}, nil
}

// Close shuts down the platform backend. Idempotent per platform's own
// contract.
func (e *Engine) Close() error {
	return e.platform.close()
}

func (e *Engine) getTree(w Watcher, shouldRead bool) *tree.Handle {
	h := e.cache.GetCached(w.Dir(), w.RecursiveRemove())
	if !h.IsComplete() && shouldRead {
		readTreeFromDisk(h.DirTree, w.Dir())
		h.MarkComplete()
	}
	return h
}

// readTreeFromDisk performs the full recursive filesystem walk that
// populates a freshly cached, incomplete tree. Missing entries (a path
// that disappears mid-walk) are skipped rather than failing the scan.
func readTreeFromDisk(t *tree.DirTree, root string) {
	_ = walkInto(t, root)
}

func walkInto(t *tree.DirTree, root string) error {
	return walkDir(root, func(path string, isDir bool, info os.FileInfo) {
		ino, mtime := statInfo(info)
		kind := tree.File
		if isDir {
			kind = tree.Dir
		}
		t.Add(path, ino, mtime, kind, tree.FakeFileID)
	})
}

// Scan enumerates the watcher's tree (reading it from disk first if it
// isn't complete yet) and posts one create event per entry, excluding
// the root itself.
func (e *Engine) Scan(w Watcher) error {
	h := e.getTree(w, true)
	defer h.Release()

	for _, entry := range h.Snapshot() {
		if entry.Path == w.Dir() {
			continue
		}
		w.Events().Create(entry.Path, entry.Kind == tree.Dir, entry.Ino, entry.FileID)
	}
	return nil
}

// WriteSnapshot obtains (reading from disk if needed) and serializes the
// watcher's tree to path.
func (e *Engine) WriteSnapshot(w Watcher, path string) error {
	h := e.getTree(w, true)
	defer h.Release()

	f, err := os.Create(path)
	if err != nil {
		return &SystemCallError{Syscall: "open", Err: err}
	}
	defer f.Close()

	return h.Write(f)
}

// UpdateSnapshot mutates the cached tree for entry's watcher according to
// eventType, without touching any file on disk. A create/update whose
// entry changed kind (file<->directory) is modeled as remove-then-add.
func (e *Engine) UpdateSnapshot(w Watcher, entry SnapshotEntry, eventType SnapshotEventType) error {
	h := e.cache.GetCached(w.Dir(), w.RecursiveRemove())
	defer h.Release()

	found := h.Find(entry.Path)

	switch eventType {
	case SnapshotCreate, SnapshotUpdate:
		switch {
		case found == nil:
			h.Add(entry.Path, entry.Ino, entry.Mtime, entry.Kind, entry.FileID)
		case found.Kind == entry.Kind:
			h.Update(entry.Path, entry.Ino, entry.Mtime, entry.FileID)
		default:
			h.Remove(entry.Path)
			h.Add(entry.Path, entry.Ino, entry.Mtime, entry.Kind, entry.FileID)
		}
	case SnapshotDelete:
		if found != nil {
			h.Remove(entry.Path)
		}
	}

	return nil
}

// GetEventsSince reads the snapshot at path, diffs it against the live
// tree and populates the watcher's event list. A missing or unreadable
// snapshot is swallowed as a SnapshotOpenError logged at warn level and
// otherwise ignored: a missing snapshot typically just means "first run".
func (e *Engine) GetEventsSince(w Watcher, path string) error {
	f, err := os.Open(path)
	if err != nil {
		log.Warn().Caller().Err(&SnapshotOpenError{Path: path, Err: err}).Msg("no snapshot to recover events from")
		return nil
	}
	defer f.Close()

	snapshot, err := tree.ReadTree(w.Dir(), f, w.RecursiveRemove())
	if err != nil {
		log.Warn().Caller().Err(&SnapshotOpenError{Path: path, Err: err}).Msg("failed to parse snapshot")
		return nil
	}

	h := e.getTree(w, true)
	defer h.Release()

	diff.Diff(h.DirTree, snapshot, w.Events())
	return nil
}

// Subscribe activates live watching for w.
func (e *Engine) Subscribe(w Watcher) error {
	h := e.getTree(w, true)
	return e.platform.subscribe(w, h)
}

// Unsubscribe deactivates live watching for w. Idempotent.
func (e *Engine) Unsubscribe(w Watcher) error {
	return e.platform.unsubscribe(w)
}
