// Package tree implements the in-memory directory tree model: one node's
// metadata (DirEntry), the per-root mapping of path to entry (DirTree),
// and the process-wide cache that hands out shared trees (DirTreeCache).
package tree

// Kind distinguishes a directory entry's filesystem type.
type Kind int

const (
	File Kind = iota
	Dir
)

func (k Kind) String() string {
	if k == Dir {
		return "directory"
	}
	return "file"
}

const (
	// FakeIno is the sentinel inode value meaning "unknown".
	FakeIno uint64 = 0
	// FakeFileID is the sentinel file-id value meaning "unknown".
	FakeFileID = ""
)

// DirEntry is one filesystem node's metadata as tracked by a DirTree.
// State is reserved scratch space for backend use; the tree never reads
// or writes it itself.
type DirEntry struct {
	Path   string
	Ino    uint64
	Mtime  int64
	Kind   Kind
	FileID string
	State  interface{}
}

func newDirEntry(path string, ino uint64, mtime int64, kind Kind, fileID string) *DirEntry {
	return &DirEntry{
		Path:   path,
		Ino:    ino,
		Mtime:  mtime,
		Kind:   kind,
		FileID: fileID,
	}
}
