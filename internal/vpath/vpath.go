// Package vpath maps client-visible virtual paths onto node-local filesystem
// paths. The same resolver is used by the gateway and every storage node, so
// a path like "~quince/docs/a.pdf" lands in the same relative location under
// whichever root serves it.
//
// Paths are trusted to originate from a cooperating gateway or client: no
// symlink resolution and no "."/".." normalization happens here.
package vpath

import (
	"os"
	"path/filepath"
	"strings"
)

// Strip removes the alias prefix (and one following slash) from a virtual
// path and returns the relative remainder. One trailing slash is dropped
// first. An empty remainder denotes the root itself.
func Strip(alias, vpath string) string {
	p := strings.TrimSuffix(vpath, "/")
	if strings.HasPrefix(p, alias) {
		p = p[len(alias):]
		p = strings.TrimPrefix(p, "/")
	}
	return p
}

// Resolve maps a virtual path onto the node's local root. The empty
// remainder maps to the root itself.
func Resolve(root, alias, vpath string) string {
	rel := Strip(alias, vpath)
	if rel == "" {
		return root
	}
	return root + "/" + rel
}

// EnsureParents creates every missing ancestor directory of a target file
// path, mode 0755. It fails if an existing path component is not a
// directory.
func EnsureParents(target string) error {
	return os.MkdirAll(filepath.Dir(target), 0o755)
}

// CleanupEmptyDirs removes now-empty directories starting at dir and
// climbing one level at a time, stopping at root (exclusive) or at the
// first directory that is non-empty or cannot be removed. It returns the
// number of directories removed.
func CleanupEmptyDirs(dir, root string) int {
	removed := 0
	sep := string(os.PathSeparator)
	for dir != root && strings.HasPrefix(dir, root+sep) {
		if err := os.Remove(dir); err != nil {
			break
		}
		removed++
		dir = filepath.Dir(dir)
	}
	return removed
}
