package node

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/fruitsalade/quince/internal/archive"
	"github.com/fruitsalade/quince/internal/metrics"
	"github.com/fruitsalade/quince/internal/vpath"
	"github.com/fruitsalade/quince/internal/wire"
)

// createTarget opens a store destination for writing. A seam so tests can
// inject write failures.
var createTarget = func(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

// handleStore receives "STORE <path> <size>" followed by exactly size payload
// bytes. Whatever goes wrong locally, the declared payload is still consumed
// from the stream so the connection stays usable for the next command; a
// partially written file is never left at the target path.
func (s *Service) handleStore(c *wire.Conn, rest string, log *zap.Logger) bool {
	args := strings.Fields(rest)
	if len(args) != 2 {
		c.WriteLine("ERROR: Invalid STORE command")
		return false
	}
	size, err := wire.ParseSize(args[1])
	if err != nil {
		c.WriteLine("ERROR: Invalid STORE command")
		return false
	}

	full := vpath.Resolve(s.cfg.Root, s.cfg.Alias, args[0])
	if err := vpath.EnsureParents(full); err != nil {
		log.Warn("store: directory creation failed", zap.String("path", full), zap.Error(err))
		c.Drain(size)
		c.WriteLine("ERROR")
		return false
	}

	f, err := createTarget(full)
	if err != nil {
		log.Warn("store: open failed", zap.String("path", full), zap.Error(err))
		c.Drain(size)
		c.WriteLine("ERROR")
		return false
	}

	n, err := c.CopyN(f, size)
	metrics.AddBytesIn(serviceName, n)
	f.Close()
	if err != nil {
		os.Remove(full)
		var we *wire.WriteError
		if errors.As(err, &we) {
			// Local write failure (disk full, quota). The peer is still
			// sending; drain the undelivered remainder so the session
			// survives.
			log.Warn("store: write failed",
				zap.String("path", full), zap.Int64("written", n), zap.Error(we.Err))
			c.Drain(size - n)
			c.WriteLine("ERROR")
			return false
		}
		// Sender disconnected mid-transfer; drop the partial file. The
		// response is best effort, the session ends on the next read.
		log.Warn("store: connection lost mid-transfer",
			zap.String("path", full), zap.Int64("received", n), zap.Int64("declared", size))
		c.WriteLine("ERROR")
		return false
	}

	log.Info("stored file", zap.String("path", full), zap.Int64("size", size))
	c.WriteLine("SUCCESS")
	return true
}

// handleGet streams "<size>\n<bytes>" for an existing file. Absence of an
// error line is the success signal; no trailing status follows the payload.
func (s *Service) handleGet(c *wire.Conn, rest string, log *zap.Logger) bool {
	if rest == "" {
		c.WriteLine("ERROR")
		return false
	}

	full := vpath.Resolve(s.cfg.Root, s.cfg.Alias, rest)
	f, err := os.Open(full)
	if err != nil {
		c.WriteLine("ERROR: File not found")
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		c.WriteLine("ERROR: File not found")
		return false
	}

	size := info.Size()
	if err := c.WriteSize(size); err != nil {
		return false
	}
	if err := c.SendN(f, size); err != nil {
		log.Warn("get: send failed", zap.String("path", full), zap.Error(err))
		return false
	}
	metrics.AddBytesOut(serviceName, size)
	log.Info("sent file", zap.String("path", full), zap.Int64("size", size))
	return true
}

// handleDel unlinks a file and, on success, removes any ancestor directories
// the deletion left empty, stopping below the node's root.
func (s *Service) handleDel(c *wire.Conn, rest string, log *zap.Logger) bool {
	if rest == "" {
		c.WriteLine("ERROR")
		return false
	}

	full := vpath.Resolve(s.cfg.Root, s.cfg.Alias, rest)
	if err := os.Remove(full); err != nil {
		log.Warn("del: unlink failed", zap.String("path", full), zap.Error(err))
		c.WriteLine("ERROR")
		return false
	}

	removed := vpath.CleanupEmptyDirs(filepath.Dir(full), s.cfg.Root)
	log.Info("deleted file",
		zap.String("path", full), zap.Int("dirs_removed", removed))
	c.WriteLine("SUCCESS")
	return true
}

// handleTar archives every file of the node's category under its root and
// streams the archive. An empty file set produces a valid empty archive. The
// temporary archive is removed whether or not sending succeeds.
func (s *Service) handleTar(c *wire.Conn, rest string, log *zap.Logger) bool {
	ext := strings.TrimSpace(rest)
	if ext == "" || ext != s.cfg.Category.Ext() {
		c.Writef("ERROR: %s node only handles %s files", s.cfg.Category, s.cfg.Category.Ext())
		return false
	}

	tmp, size, err := archive.BuildTemp(s.cfg.Root, ext)
	if err != nil {
		log.Error("tar: archive build failed", zap.Error(err))
		c.WriteLine("ERROR: Unable to create archive")
		return false
	}
	defer os.Remove(tmp)

	f, err := os.Open(tmp)
	if err != nil {
		c.WriteLine("ERROR: Unable to create archive")
		return false
	}
	defer f.Close()

	if err := c.WriteSize(size); err != nil {
		return false
	}
	if err := c.SendN(f, size); err != nil {
		log.Warn("tar: send failed", zap.Error(err))
		return false
	}
	metrics.AddBytesOut(serviceName, size)
	log.Info("sent archive", zap.String("ext", ext), zap.Int64("size", size))
	return true
}

// handleList responds with the newline-joined names of the immediate regular,
// non-hidden entries of a directory, preceded by the list's byte length. A
// directory that cannot be opened is "no files" (a 0 length), not an error.
func (s *Service) handleList(c *wire.Conn, rest string, log *zap.Logger) bool {
	dir := s.cfg.Root
	if rest != "" && rest != "." {
		dir = vpath.Resolve(s.cfg.Root, s.cfg.Alias, rest)
	}

	names := listNames(dir)
	if len(names) == 0 {
		c.WriteSize(0)
		return true
	}

	body := strings.Join(names, "\n") + "\n"
	if err := c.WriteSize(int64(len(body))); err != nil {
		return false
	}
	if err := c.SendN(strings.NewReader(body), int64(len(body))); err != nil {
		return false
	}
	return true
}

// listNames returns the unsorted names of the immediate regular, non-hidden
// entries of dir. An unreadable directory yields nil.
func listNames(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if !e.Type().IsRegular() {
			continue
		}
		names = append(names, e.Name())
	}
	return names
}
