// Package backend ties the tree, event and diff packages together into
// the public operations a native binding layer (or, in this repo, the
// service package) drives: Scan, WriteSnapshot, UpdateSnapshot,
// GetEventsSince, Subscribe and Unsubscribe.
package backend

import (
	"fmt"

	"github.com/dirwatch/corewatch/event"
	"github.com/dirwatch/corewatch/tree"
)

// Watcher is the external collaborator the core talks to: one
// subscription's target directory, ignore set, pending event list and
// notification callback. The core never outlives a Watcher and never
// stores an owning reference to one — only the Engine's internal
// subscription tables hold back-references, and those are cleared on
// Unsubscribe.
type Watcher interface {
	Dir() string
	Ignore() map[string]struct{}
	Events() *event.List
	Notify()
	RecursiveRemove() bool
}

// EventKind mirrors tree.Kind for UpdateSnapshot callers that don't
// otherwise depend on the tree package.
type EventKind = tree.Kind

// SnapshotEventType is the kind of change UpdateSnapshot applies to the
// cached tree.
type SnapshotEventType int

const (
	SnapshotCreate SnapshotEventType = iota
	SnapshotUpdate
	SnapshotDelete
)

// SnapshotEntry is the minimal description of one filesystem node used
// by UpdateSnapshot to mutate a cached tree without a live backend.
type SnapshotEntry struct {
	Path   string
	Ino    uint64
	Mtime  int64
	Kind   tree.Kind
	FileID string
}

// SystemCallError wraps a failed system call: pipe2 or inotify_init1 when
// New starts the linux backend, fsnotify setup on windows, or creating the
// file in WriteSnapshot. Poll and read failures inside the linux backend
// loop are logged and are not returned as a SystemCallError: a poll
// failure ends the loop, a read failure ends the current drain pass.
type SystemCallError struct {
	Syscall string
	Err     error
}

func (e *SystemCallError) Error() string {
	return fmt.Sprintf("%s: %v", e.Syscall, e.Err)
}

func (e *SystemCallError) Unwrap() error { return e.Err }

// WatcherError wraps a failed inotify_add_watch/inotify_rm_watch call.
// Recoverable at the subscription level: callers should Unsubscribe the
// named watcher.
type WatcherError struct {
	Path string
	W    Watcher
	Err  error
}

func (e *WatcherError) Error() string {
	return fmt.Sprintf("watch error on %q: %v", e.Path, e.Err)
}

func (e *WatcherError) Unwrap() error { return e.Err }

// SnapshotOpenError describes a snapshot file that is missing or
// unreadable; GetEventsSince logs it at warn level, returns nil and leaves the
// watcher's event list untouched, since a missing snapshot typically
// just means "first run".
type SnapshotOpenError struct {
	Path string
	Err  error
}

func (e *SnapshotOpenError) Error() string {
	return fmt.Sprintf("cannot open snapshot %q: %v", e.Path, e.Err)
}

func (e *SnapshotOpenError) Unwrap() error { return e.Err }
