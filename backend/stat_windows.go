//go:build windows

package backend

import "os"

// statInfo on Windows has no inode-equivalent available from os.FileInfo
// alone; callers fall back to tree.FakeIno and rely on fileId (unused
// here, also a stub) or path identity instead.
func statInfo(info os.FileInfo) (ino uint64, mtime int64) {
	if info == nil {
		return 0, 0
	}
	return 0, info.ModTime().UnixNano()
}
