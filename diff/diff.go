// Package diff computes the minimal event sequence reconciling a
// previously persisted tree snapshot with the current live tree, so that
// a watcher can recover the events it missed while offline.
package diff

import (
	"github.com/dirwatch/corewatch/event"
	"github.com/dirwatch/corewatch/tree"
)

// Diff compares current against snapshot and appends the reconciling
// events to out. Both trees are read entry-by-entry; snapshot's entries
// are mutated in place when a directory rename is detected, so that
// later iterations of the loop over current's entries find renamed
// descendants at their post-rename keys.
//
// Matching preference: fileId takes precedence over ino whenever the
// current entry carries a real fileId. Where multiple entries share the
// same inode (hardlinks), the first match found wins.
func Diff(current, snapshot *tree.DirTree, out *event.List) {
	for _, cur := range current.Snapshot() {
		found := matchInSnapshot(snapshot, cur)
		if found != nil {
			diffMatched(snapshot, out, found, cur)
			continue
		}

		snap := snapshot.Find(cur.Path)
		switch {
		case snap == nil:
			out.Create(cur.Path, cur.Kind == tree.Dir, cur.Ino, cur.FileID)
		case snap.Mtime != cur.Mtime && snap.Kind == tree.File && cur.Kind == tree.File:
			out.Update(cur.Path, cur.Ino, cur.FileID)
		}
	}

	for _, snap := range snapshot.Snapshot() {
		var found *tree.DirEntry
		if snap.FileID != tree.FakeFileID {
			found = current.FindByFileID(snap.FileID)
		} else {
			found = current.FindByIno(snap.Ino)
		}

		if found == nil {
			out.Remove(snap.Path, snap.Kind == tree.Dir, snap.Ino, snap.FileID)
		}
	}
}

func matchInSnapshot(snapshot *tree.DirTree, cur *tree.DirEntry) *tree.DirEntry {
	if cur.FileID != tree.FakeFileID {
		return snapshot.FindByFileID(cur.FileID)
	}
	return snapshot.FindByIno(cur.Ino)
}

func diffMatched(snapshot *tree.DirTree, out *event.List, found, cur *tree.DirEntry) {
	sameType := found.Kind == cur.Kind
	samePath := found.Path == cur.Path

	switch {
	case !sameType:
		out.Remove(found.Path, found.Kind == tree.Dir, found.Ino, found.FileID)
		out.Create(cur.Path, cur.Kind == tree.Dir, cur.Ino, cur.FileID)

	case !samePath:
		// Give the rename a known source in the output stream, then the
		// rename itself.
		out.Create(found.Path, found.Kind == tree.Dir, found.Ino, found.FileID)
		out.Rename(found.Path, cur.Path, cur.Kind == tree.Dir, cur.Ino, cur.FileID)

		if found.Kind == tree.Dir {
			snapshot.RewriteDescendants(found.Path, cur.Path)
		}

	case cur.Kind == tree.File && found.Mtime != cur.Mtime:
		out.Update(cur.Path, cur.Ino, cur.FileID)
	}
}
