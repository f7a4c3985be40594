//go:build linux || darwin

package backend

import (
	"os"
	"syscall"
)

// statInfo extracts the inode and mtime fields the tree cares about from
// an already-obtained os.FileInfo. mtime is nanoseconds since epoch.
func statInfo(info os.FileInfo) (ino uint64, mtime int64) {
	if info == nil {
		return 0, 0
	}

	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, info.ModTime().UnixNano()
	}

	return uint64(st.Ino), info.ModTime().UnixNano()
}
