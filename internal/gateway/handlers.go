package gateway

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fruitsalade/quince/internal/archive"
	"github.com/fruitsalade/quince/internal/category"
	"github.com/fruitsalade/quince/internal/metrics"
	"github.com/fruitsalade/quince/internal/vpath"
	"github.com/fruitsalade/quince/internal/wire"
)

// createStaging opens an upload staging file for writing. A seam so tests can
// inject write failures.
var createStaging = func(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

// handleUpload receives "uploadf <filename> <destPath> <size>" followed by the
// payload. The file is always staged under the gateway's own tree first; for a
// delegated category it is then forwarded to the owning node and the staged
// copy is removed only after the node confirms. A forwarding failure leaves
// the staged copy in place so the bytes are never lost.
//
// When the upload cannot be accepted at all (bad extension, staging failure),
// the declared payload is still drained so the session survives the refusal.
func (s *Service) handleUpload(c *wire.Conn, rest string, log *zap.Logger) bool {
	args := strings.Fields(rest)
	if len(args) != 3 {
		c.WriteLine("ERROR: Invalid uploadf command format")
		return false
	}
	filename, destPath := args[0], args[1]

	size, err := wire.ParseSize(args[2])
	if err != nil {
		c.WriteLine("ERROR: Invalid file size")
		return false
	}

	cat, err := category.ForFilename(filename)
	if err != nil {
		c.Drain(size)
		c.WriteLine("ERROR: File upload failed")
		return false
	}

	destDir := vpath.Resolve(s.cfg.Root, s.cfg.Alias, destPath)
	target := destDir + "/" + filename

	if err := vpath.EnsureParents(target); err != nil {
		log.Warn("upload: directory creation failed", zap.String("path", target), zap.Error(err))
		c.Drain(size)
		c.WriteLine("ERROR: File upload failed")
		return false
	}
	f, err := createStaging(target)
	if err != nil {
		log.Warn("upload: staging open failed", zap.String("path", target), zap.Error(err))
		c.Drain(size)
		c.WriteLine("ERROR: File upload failed")
		return false
	}
	n, err := c.CopyN(f, size)
	metrics.AddBytesIn(serviceName, n)
	f.Close()
	if err != nil {
		os.Remove(target)
		var we *wire.WriteError
		if errors.As(err, &we) {
			// Staging write failure; drain the undelivered remainder so
			// the session survives.
			log.Warn("upload: staging write failed",
				zap.String("path", target), zap.Int64("written", n), zap.Error(we.Err))
			c.Drain(size - n)
			c.WriteLine("ERROR: File upload failed")
			return false
		}
		log.Warn("upload: connection lost mid-transfer",
			zap.String("path", target), zap.Int64("received", n), zap.Int64("declared", size))
		c.WriteLine("ERROR: File upload failed")
		return false
	}

	if cat == category.Source {
		log.Info("uploaded file",
			zap.String("path", target), zap.Int64("size", size))
		c.WriteLine("SUCCESS: File uploaded")
		return true
	}

	// Delegated category: replay the payload to the owning node from the
	// staged copy.
	remote := filename
	if sub := vpath.Strip(s.cfg.Alias, destPath); sub != "" {
		remote = sub + "/" + filename
	}

	nc, err := s.dialNode(cat)
	if err != nil {
		log.Warn("upload: node unreachable",
			zap.String("category", cat.String()), zap.Error(err))
		c.WriteLine("ERROR: File upload failed")
		return false
	}
	defer nc.Close()

	staged, err := os.Open(target)
	if err != nil {
		c.WriteLine("ERROR: File upload failed")
		return false
	}
	err = nc.Store(remote, size, staged)
	staged.Close()
	if err != nil {
		log.Warn("upload: forwarding failed",
			zap.String("category", cat.String()), zap.String("remote", remote), zap.Error(err))
		c.WriteLine("ERROR: File upload failed")
		return false
	}

	os.Remove(target)
	vpath.CleanupEmptyDirs(destDir, s.cfg.Root)
	log.Info("uploaded file",
		zap.String("category", cat.String()), zap.String("remote", remote), zap.Int64("size", size))
	c.WriteLine("SUCCESS: File uploaded")
	return true
}

// handleDownload serves "downlf <path>". Source files come straight off the
// gateway's tree; every other category is fetched from its node and the
// payload relayed without touching disk. The response is either an ERROR line
// or "<size>\n<bytes>" with no trailing status.
func (s *Service) handleDownload(c *wire.Conn, rest string, log *zap.Logger) bool {
	path := strings.TrimSpace(rest)
	if path == "" {
		c.WriteLine("ERROR: Invalid downlf command format")
		return false
	}

	cat, err := category.ForFilename(path)
	if err == category.ErrNoExtension {
		c.WriteLine("ERROR: Invalid file path")
		return false
	}
	if err != nil {
		c.WriteLine("ERROR: Unsupported file type")
		return false
	}

	if cat == category.Source {
		full := vpath.Resolve(s.cfg.Root, s.cfg.Alias, path)
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
			log.Warn("download: send failed", zap.String("path", full), zap.Error(err))
			return false
		}
		metrics.AddBytesOut(serviceName, size)
		log.Info("served file", zap.String("path", full), zap.Int64("size", size))
		return true
	}

	nc, err := s.dialNode(cat)
	if err != nil {
		log.Warn("download: node unreachable",
			zap.String("category", cat.String()), zap.Error(err))
		c.WriteLine("ERROR: File server unavailable")
		return false
	}
	defer nc.Close()

	sub := vpath.Strip(s.cfg.Alias, path)
	size, errLine, err := nc.Get(sub)
	if err != nil {
		log.Warn("download: fetch failed",
			zap.String("category", cat.String()), zap.String("remote", sub), zap.Error(err))
		c.WriteLine("ERROR: Failed to retrieve file")
		return false
	}
	if errLine != "" {
		c.WriteLine(errLine)
		return false
	}

	if err := c.WriteSize(size); err != nil {
		return false
	}
	if err := c.SendN(nc.Conn().Reader(), size); err != nil {
		log.Warn("download: relay failed", zap.String("remote", sub), zap.Error(err))
		return false
	}
	metrics.AddBytesOut(serviceName, size)
	log.Info("relayed file",
		zap.String("category", cat.String()), zap.String("remote", sub), zap.Int64("size", size))
	return true
}

// handleRemove serves "removef <path>", deleting locally for the source
// category and by node command otherwise. A successful local deletion also
// prunes directories it left empty.
func (s *Service) handleRemove(c *wire.Conn, rest string, log *zap.Logger) bool {
	path := strings.TrimSpace(rest)
	if path == "" {
		c.WriteLine("ERROR: Invalid removef command format")
		return false
	}

	cat, err := category.ForFilename(path)
	if err == category.ErrNoExtension {
		c.WriteLine("ERROR: Invalid file path")
		return false
	}
	if err != nil {
		c.WriteLine("ERROR: Unsupported file type")
		return false
	}

	if cat == category.Source {
		full := vpath.Resolve(s.cfg.Root, s.cfg.Alias, path)
		if err := os.Remove(full); err != nil {
			c.WriteLine("ERROR: File not found or cannot remove")
			return false
		}
		vpath.CleanupEmptyDirs(filepath.Dir(full), s.cfg.Root)
		log.Info("removed file", zap.String("path", full))
		c.WriteLine("SUCCESS: File removed")
		return true
	}

	nc, err := s.dialNode(cat)
	if err != nil {
		log.Warn("remove: node unreachable",
			zap.String("category", cat.String()), zap.Error(err))
		c.WriteLine("ERROR: File not found or cannot remove")
		return false
	}
	defer nc.Close()

	sub := vpath.Strip(s.cfg.Alias, path)
	ok, err := nc.Del(sub)
	if err != nil || !ok {
		c.WriteLine("ERROR: File not found or cannot remove")
		return false
	}
	log.Info("removed file",
		zap.String("category", cat.String()), zap.String("remote", sub))
	c.WriteLine("SUCCESS: File removed")
	return true
}

// handleTarball serves "downltar <filetype>": an archive of every file of one
// category. Source archives are built from the gateway's own tree; the rest
// are built by the owning node and relayed. An empty tree still yields a
// valid, empty archive.
func (s *Service) handleTarball(c *wire.Conn, rest string, log *zap.Logger) bool {
	fileType := strings.TrimSpace(rest)
	if fileType == "" {
		c.WriteLine("ERROR: Invalid downltar command format")
		return false
	}

	cat, ok := category.ForExt(fileType)
	if !ok {
		c.WriteLine("ERROR: Invalid filetype (supported: .c, .pdf, .txt, .zip)")
		return false
	}

	if cat == category.Source {
		tmp, size, err := archive.BuildTemp(s.cfg.Root, cat.Ext())
		if err != nil {
			log.Error("tarball: archive build failed", zap.Error(err))
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
			log.Warn("tarball: send failed", zap.Error(err))
			return false
		}
		metrics.AddBytesOut(serviceName, size)
		log.Info("served archive", zap.String("ext", cat.Ext()), zap.Int64("size", size))
		return true
	}

	nc, err := s.dialNode(cat)
	if err != nil {
		log.Warn("tarball: node unreachable",
			zap.String("category", cat.String()), zap.Error(err))
		c.WriteLine("ERROR: File server unavailable")
		return false
	}
	defer nc.Close()

	size, errLine, err := nc.Tar(cat.Ext())
	if err != nil {
		log.Warn("tarball: fetch failed",
			zap.String("category", cat.String()), zap.Error(err))
		c.WriteLine("ERROR: Tar failed (no response from server)")
		return false
	}
	if errLine != "" {
		c.WriteLine(errLine)
		return false
	}

	if err := c.WriteSize(size); err != nil {
		return false
	}
	if err := c.SendN(nc.Conn().Reader(), size); err != nil {
		log.Warn("tarball: relay failed", zap.Error(err))
		return false
	}
	metrics.AddBytesOut(serviceName, size)
	log.Info("relayed archive",
		zap.String("category", cat.String()), zap.Int64("size", size))
	return true
}

// handleListNames serves "dispfnames <dir>": the names of every stored file
// whose virtual location is that directory, across all categories. Names are
// sorted within each category and the categories appear in a fixed order;
// an unreachable node contributes nothing rather than failing the command.
func (s *Service) handleListNames(c *wire.Conn, rest string, log *zap.Logger) bool {
	dirPath := strings.TrimSpace(rest)
	if dirPath == "" {
		c.WriteLine("ERROR: Invalid dispfnames command format")
		return false
	}

	sub := vpath.Strip(s.cfg.Alias, dirPath)
	byCategory := make(map[category.Category][]string)

	localDir := vpath.Resolve(s.cfg.Root, s.cfg.Alias, dirPath)
	byCategory[category.Source] = listLocalNames(localDir, category.Source.Ext())

	for _, cat := range category.Delegated {
		nc, err := s.dialNode(cat)
		if err != nil {
			log.Debug("list: node unreachable, skipping",
				zap.String("category", cat.String()), zap.Error(err))
			continue
		}
		names, err := nc.List(sub)
		nc.Close()
		if err != nil {
			log.Debug("list: node query failed, skipping",
				zap.String("category", cat.String()), zap.Error(err))
			continue
		}
		sort.Strings(names)
		byCategory[cat] = names
	}

	var sb strings.Builder
	for _, cat := range category.Order {
		for _, name := range byCategory[cat] {
			sb.WriteString(name)
			sb.WriteByte('\n')
		}
	}
	if sb.Len() == 0 {
		c.WriteLine("No files found")
		return true
	}

	body := sb.String()
	if err := c.WriteSize(int64(len(body))); err != nil {
		return false
	}
	if err := c.SendN(strings.NewReader(body), int64(len(body))); err != nil {
		return false
	}
	log.Info("listed files", zap.String("dir", dirPath), zap.Int("bytes", len(body)))
	return true
}

// listLocalNames returns the sorted names of the regular, non-hidden entries
// of dir carrying ext. An unreadable directory yields nil.
func listLocalNames(dir, ext string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") || !e.Type().IsRegular() {
			continue
		}
		if filepath.Ext(e.Name()) != ext {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}
