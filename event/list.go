package event

import (
	"sync"

	"github.com/dirwatch/corewatch/tree"
)

// List is the ordered, mutex-guarded sequence of pending events for one
// watcher. Order is insertion order of the first observation of each
// path; later observations mutate the existing entry in place. At most
// one event exists per path at any time.
type List struct {
	mu     sync.Mutex
	order  []string
	byPath map[string]*Event
}

// NewList returns an empty event list.
func NewList() *List {
	return &List{byPath: make(map[string]*Event)}
}

// Create records (or coalesces into) a create event for path. If an event
// already exists marked as deleted, a rapid delete-then-create collapses
// into an update instead of a fresh create (see the rapid create/delete
// scenario tests).
func (l *List) Create(path string, isDir bool, ino uint64, fileID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.internalUpdate(path, isDir, ino, fileID)
	if e.isDeleted {
		e.isDeleted = false
	} else {
		e.isCreated = true
	}
}

// Update records (or coalesces into) an update event for path, leaving
// any existing created/deleted flags untouched.
func (l *List) Update(path string, ino uint64, fileID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.internalUpdate(path, false, ino, fileID)
}

// Remove records (or coalesces into) a delete event for path. If the
// existing event was a fresh create, the pair cancels out entirely
// (rapid create-then-delete produces no event).
func (l *List) Remove(path string, isDir bool, ino uint64, fileID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.internalUpdate(path, isDir, ino, fileID)
	if e.isCreated {
		l.erase(path)
	} else {
		e.isDeleted = true
	}
}

// Rename moves the event state at oldPath to newPath, chaining through
// any prior rename so that A->B->C collapses to a single rename(A, C).
func (l *List) Rename(oldPath, newPath string, isDir bool, ino uint64, fileID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if overwritten, ok := l.byPath[newPath]; ok {
		if overwritten.isCreated {
			l.erase(newPath)
		} else {
			overwritten.isDeleted = true
		}
	}

	oldEvent, ok := l.byPath[oldPath]
	if !ok {
		// The source of the rename was never observed, typically at
		// startup: treat it like an ordinary create/update at newPath.
		e := l.internalUpdate(newPath, isDir, ino, fileID)
		if e.isDeleted {
			e.isDeleted = false
		} else {
			e.isCreated = true
		}
		return
	}

	oldIno := oldEvent.Ino
	oldFileID := oldEvent.FileID
	oldOldPath := oldEvent.OldPath
	l.erase(oldPath)

	e := &Event{
		Path:   newPath,
		IsDir:  isDir,
		Ino:    oldIno,
		FileID: oldFileID,
	}
	if ino != tree.FakeIno {
		e.Ino = ino
	}
	if fileID != tree.FakeFileID {
		e.FileID = fileID
	}
	if oldOldPath != "" {
		e.OldPath = oldOldPath
	} else {
		e.OldPath = oldPath
	}

	l.order = append(l.order, e.Path)
	l.byPath[e.Path] = e
}

// Size returns the number of pending events.
func (l *List) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order)
}

// Events returns a snapshot of the pending events in first-observation
// order.
func (l *List) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Event, 0, len(l.order))
	for _, p := range l.order {
		out = append(out, *l.byPath[p])
	}
	return out
}

// Clear discards all pending events.
func (l *List) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.order = l.order[:0]
	l.byPath = make(map[string]*Event)
}

// internalUpdate must be called with mu held. It locates or inserts the
// event for path, updating ino/fileID iff non-sentinel and setting IsDir.
func (l *List) internalUpdate(path string, isDir bool, ino uint64, fileID string) *Event {
	e, ok := l.byPath[path]
	if !ok {
		e = &Event{Path: path, Ino: ino, FileID: fileID}
		l.order = append(l.order, path)
		l.byPath[path] = e
	} else {
		if ino != tree.FakeIno {
			e.Ino = ino
		}
		if fileID != tree.FakeFileID {
			e.FileID = fileID
		}
	}
	e.IsDir = isDir
	return e
}

// erase must be called with mu held.
func (l *List) erase(path string) {
	if _, ok := l.byPath[path]; !ok {
		return
	}
	delete(l.byPath, path)
	for i, p := range l.order {
		if p == path {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}
