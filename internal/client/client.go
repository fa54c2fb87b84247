// Package client is a small library speaking the gateway's line protocol on
// behalf of interactive tools.
package client

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fruitsalade/quince/internal/wire"
)

// Client holds one gateway session. Commands run strictly one at a time; the
// client is not safe for concurrent use.
type Client struct {
	c *wire.Conn
}

// Dial connects to a gateway.
func Dial(addr string) (*Client, error) {
	c, err := wire.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("dial gateway %s: %w", addr, err)
	}
	return &Client{c: c}, nil
}

// Close ends the session.
func (cl *Client) Close() error {
	return cl.c.Close()
}

// Upload sends a local file to destPath and returns the gateway's verdict
// line. The verdict is returned even when it is an error; err is non-nil only
// for transport failures.
func (cl *Client) Upload(localPath, destPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s is not a regular file", localPath)
	}
	size := info.Size()

	if err := cl.c.Writef("uploadf %s %s %d", filepath.Base(localPath), destPath, size); err != nil {
		return "", err
	}
	if err := cl.c.SendN(f, size); err != nil {
		return "", fmt.Errorf("send payload: %w", err)
	}
	return cl.c.ReadLine()
}

// Download fetches remotePath and streams the payload into dst. A gateway
// error line is returned as an error carrying its text.
func (cl *Client) Download(remotePath string, dst io.Writer) (int64, error) {
	if err := cl.c.Writef("downlf %s", remotePath); err != nil {
		return 0, err
	}
	return cl.recvEnvelope(dst)
}

// Remove deletes remotePath and returns the gateway's verdict line.
func (cl *Client) Remove(remotePath string) (string, error) {
	if err := cl.c.Writef("removef %s", remotePath); err != nil {
		return "", err
	}
	return cl.c.ReadLine()
}

// Tarball fetches the archive of every stored file with extension fileType
// and streams it into dst.
func (cl *Client) Tarball(fileType string, dst io.Writer) (int64, error) {
	if err := cl.c.Writef("downltar %s", fileType); err != nil {
		return 0, err
	}
	return cl.recvEnvelope(dst)
}

// ListNames returns the names of every stored file whose virtual location is
// dir, in the gateway's category order. An empty store is nil, nil.
func (cl *Client) ListNames(dir string) ([]string, error) {
	if err := cl.c.Writef("dispfnames %s", dir); err != nil {
		return nil, err
	}
	line, err := cl.c.ReadLine()
	if err != nil {
		return nil, err
	}
	if line == "No files found" {
		return nil, nil
	}
	if strings.HasPrefix(line, "ERROR") {
		return nil, fmt.Errorf("%s", line)
	}
	size, err := wire.ParseSize(line)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	if _, err := cl.c.CopyN(&sb, size); err != nil {
		return nil, err
	}
	var names []string
	for _, name := range strings.Split(sb.String(), "\n") {
		if name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// recvEnvelope reads a transfer envelope: either an ERROR line, or a size
// line followed by exactly that many payload bytes copied into dst.
func (cl *Client) recvEnvelope(dst io.Writer) (int64, error) {
	line, err := cl.c.ReadLine()
	if err != nil {
		return 0, err
	}
	if strings.HasPrefix(line, "ERROR") {
		return 0, fmt.Errorf("%s", line)
	}
	size, err := wire.ParseSize(line)
	if err != nil {
		return 0, err
	}
	return cl.c.CopyN(dst, size)
}
