// Package archive builds tar archives of a category's files. Archives are
// written to a private temporary file that the caller removes after sending.
package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// BuildTemp writes a tar archive of every regular file under root whose name
// ends in ext into a new temporary file, and returns the archive's path and
// size. An empty file set (including a missing root) yields a valid empty
// archive rather than an error; files that disappear or fail to open while
// archiving are skipped.
func BuildTemp(root, ext string) (string, int64, error) {
	f, err := os.CreateTemp("", "quince-tar-*")
	if err != nil {
		return "", 0, fmt.Errorf("create temp archive: %w", err)
	}
	name := f.Name()

	tw := tar.NewWriter(f)
	// Walk errors (missing root, unreadable subtree) degrade to a smaller or
	// empty archive; they never fail the operation.
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if !strings.HasSuffix(d.Name(), ext) {
			return nil
		}
		addFile(tw, root, path)
		return nil
	})

	if err := tw.Close(); err != nil {
		f.Close()
		os.Remove(name)
		return "", 0, fmt.Errorf("finalize archive: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", 0, fmt.Errorf("close archive: %w", err)
	}

	info, err := os.Stat(name)
	if err != nil {
		os.Remove(name)
		return "", 0, fmt.Errorf("stat archive: %w", err)
	}
	return name, info.Size(), nil
}

func addFile(tw *tar.Writer, root, path string) {
	src, err := os.Open(path)
	if err != nil {
		return
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil || !info.Mode().IsRegular() {
		return
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return
	}
	if rel, err := filepath.Rel(root, path); err == nil {
		hdr.Name = filepath.ToSlash(rel)
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return
	}
	io.CopyN(tw, src, info.Size())
}
