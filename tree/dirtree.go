package tree

import (
	"strings"
	"sync"
)

const dirSep = "/"

// DirTree is the in-memory mirror of one watched root directory. Path is
// the primary key because filesystem uniqueness is defined by path;
// inode and file-id are secondary indexes used only by rename detection
// (see the diff package), which is why FindByIno/FindByFileID are linear
// scans instead of maintained indexes.
type DirTree struct {
	Root string

	mu              sync.Mutex
	entries         map[string]*DirEntry
	isComplete      bool
	recursiveRemove bool
}

// NewDirTree constructs an empty tree rooted at root. Most callers should
// go through a DirTreeCache instead so that trees are shared across
// subscriptions of the same root.
func NewDirTree(root string, recursiveRemove bool) *DirTree {
	return &DirTree{
		Root:            root,
		entries:         make(map[string]*DirEntry),
		recursiveRemove: recursiveRemove,
	}
}

// IsComplete reports whether a full filesystem scan has populated this
// tree yet.
func (t *DirTree) IsComplete() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isComplete
}

// MarkComplete records that a full scan has populated the tree.
func (t *DirTree) MarkComplete() {
	t.mu.Lock()
	t.isComplete = true
	t.mu.Unlock()
}

// Add inserts an entry if absent and returns a stable pointer to it. If an
// entry already exists at path, it is returned unchanged.
func (t *DirTree) Add(path string, ino uint64, mtime int64, kind Kind, fileID string) *DirEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.entries[path]; ok {
		return existing
	}

	entry := newDirEntry(path, ino, mtime, kind, fileID)
	t.entries[path] = entry
	return entry
}

// Find returns the entry at path, or nil if absent.
func (t *DirTree) Find(path string) *DirEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries[path]
}

// Update overwrites mtime unconditionally, ino unless it is FakeIno, and
// fileID unless it is FakeFileID. Kind is never changed. Returns nil if
// path is absent.
func (t *DirTree) Update(path string, ino uint64, mtime int64, fileID string) *DirEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	found, ok := t.entries[path]
	if !ok {
		return nil
	}

	found.Mtime = mtime
	if ino != FakeIno {
		found.Ino = ino
	}
	if fileID != FakeFileID {
		found.FileID = fileID
	}

	return found
}

// Remove deletes the entry at path. If recursiveRemove is set and the
// removed entry was a directory, every entry whose path begins with
// path + "/" is removed too.
func (t *DirTree) Remove(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	found, ok := t.entries[path]
	if ok && t.recursiveRemove && found.Kind == Dir {
		prefix := path + dirSep
		for p := range t.entries {
			if strings.HasPrefix(p, prefix) {
				delete(t.entries, p)
			}
		}
	}

	delete(t.entries, path)
}

// FindByIno performs a linear scan for the first entry with the given
// inode. Acceptable because the differ is the only caller and runs off
// the hot path.
func (t *DirTree) FindByIno(ino uint64) *DirEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range t.entries {
		if e.Ino == ino {
			return e
		}
	}
	return nil
}

// FindByFileID performs a linear scan for the first entry with the given
// file-id.
func (t *DirTree) FindByFileID(fileID string) *DirEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range t.entries {
		if e.FileID == fileID {
			return e
		}
	}
	return nil
}

// Snapshot returns a stable copy of every entry, for callers (like the
// differ) that need to iterate without holding the tree's lock for the
// whole pass. Order is unspecified.
func (t *DirTree) Snapshot() []*DirEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*DirEntry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	return out
}

// Len returns the number of entries currently tracked.
func (t *DirTree) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// rewritePrefix moves a single entry to a new key without disturbing any
// other field. It returns false if oldPath was absent. Nothing in this
// module calls it; the differ uses RewriteDescendants.
func (t *DirTree) rewritePrefix(oldPath, newPath string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[oldPath]
	if !ok {
		return false
	}

	delete(t.entries, oldPath)
	entry.Path = newPath
	t.entries[newPath] = entry
	return true
}

// RewriteDescendants is exported for the differ, which needs to move a
// snapshot's children along with a renamed directory so later iterations
// of its own entry loop find them at their post-rename paths.
func (t *DirTree) RewriteDescendants(oldPrefix, newPrefix string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	start := oldPrefix + dirSep
	for path, entry := range t.entries {
		if strings.HasPrefix(path, start) {
			delete(t.entries, path)
			entry.Path = newPrefix + strings.TrimPrefix(path, oldPrefix)
			t.entries[entry.Path] = entry
		}
	}
}
