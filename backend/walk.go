package backend

import (
	"os"
	"path/filepath"
)

// walkDir performs a recursive lstat-based walk of root, invoking fn for
// every entry including root itself. Symlinks are not followed, mirroring
// the rest of the backend's lstat-over-stat preference for entries whose
// kind the kernel cannot watch anyway.
func walkDir(root string, fn func(path string, isDir bool, info os.FileInfo)) error {
	info, err := os.Lstat(root)
	if err != nil {
		return err
	}

	fn(root, info.IsDir(), info)

	if !info.IsDir() {
		return nil
	}

	children, err := os.ReadDir(root)
	if err != nil {
		return nil
	}

	for _, child := range children {
		childPath := filepath.Join(root, child.Name())
		_ = walkDir(childPath, fn)
	}

	return nil
}
