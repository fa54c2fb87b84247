package gateway

import (
	"fmt"
	"io"
	"strings"

	"github.com/fruitsalade/quince/internal/metrics"
	"github.com/fruitsalade/quince/internal/wire"
)

// NodeClient replays the storage-node protocol over one backend connection.
// A client is opened for a single command's forwarding and closed before the
// gateway responds to its own client; it is never shared between sessions.
type NodeClient struct {
	c *wire.Conn
}

// DialNode connects to a storage node.
func DialNode(addr string) (*NodeClient, error) {
	c, err := wire.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("dial node %s: %w", addr, err)
	}
	return &NodeClient{c: c}, nil
}

// Close closes the backend connection.
func (n *NodeClient) Close() error {
	return n.c.Close()
}

// Conn exposes the underlying connection for payload relaying.
func (n *NodeClient) Conn() *wire.Conn {
	return n.c
}

// Store issues "STORE <path> <size>", streams size bytes from src, and
// returns nil only when the node answers SUCCESS.
func (n *NodeClient) Store(path string, size int64, src io.Reader) error {
	if err := n.c.Writef("STORE %s %d", path, size); err != nil {
		return fmt.Errorf("send STORE: %w", err)
	}
	if err := n.c.SendN(src, size); err != nil {
		return fmt.Errorf("forward payload: %w", err)
	}
	metrics.AddBytesOut(serviceName, size)

	verdict, err := n.c.ReadLine()
	if err != nil {
		return fmt.Errorf("read STORE verdict: %w", err)
	}
	if !strings.HasPrefix(verdict, "SUCCESS") {
		return fmt.Errorf("node rejected store: %s", verdict)
	}
	return nil
}

// Get issues "GET <path>" and reads the node's first response line. On
// success it returns the payload size and the caller relays exactly that
// many bytes from Conn. A node-side error comes back as errLine.
func (n *NodeClient) Get(path string) (size int64, errLine string, err error) {
	if err := n.c.Writef("GET %s", path); err != nil {
		return 0, "", fmt.Errorf("send GET: %w", err)
	}
	line, err := n.c.ReadLine()
	if err != nil {
		return 0, "", fmt.Errorf("read GET response: %w", err)
	}
	if strings.HasPrefix(line, "ERROR") {
		return 0, line, nil
	}
	size, err = wire.ParseSize(line)
	if err != nil {
		return 0, "", err
	}
	return size, "", nil
}

// Del issues "DEL <path>" and reports whether the node confirmed the
// removal.
func (n *NodeClient) Del(path string) (bool, error) {
	if err := n.c.Writef("DEL %s", path); err != nil {
		return false, fmt.Errorf("send DEL: %w", err)
	}
	verdict, err := n.c.ReadLine()
	if err != nil {
		return false, fmt.Errorf("read DEL verdict: %w", err)
	}
	return strings.HasPrefix(verdict, "SUCCESS"), nil
}

// Tar issues "TAR <ext>" and reads the first response line, mirroring Get's
// contract: on success the caller relays size bytes from Conn.
func (n *NodeClient) Tar(ext string) (size int64, errLine string, err error) {
	if err := n.c.Writef("TAR %s", ext); err != nil {
		return 0, "", fmt.Errorf("send TAR: %w", err)
	}
	line, err := n.c.ReadLine()
	if err != nil {
		return 0, "", fmt.Errorf("read TAR response: %w", err)
	}
	if strings.HasPrefix(line, "ERROR") {
		return 0, line, nil
	}
	size, err = wire.ParseSize(line)
	if err != nil {
		return 0, "", err
	}
	return size, "", nil
}

// List issues "LIST <path>" and returns the node's file names. A zero-length
// list is nil, nil.
func (n *NodeClient) List(path string) ([]string, error) {
	if path == "" {
		path = "."
	}
	if err := n.c.Writef("LIST %s", path); err != nil {
		return nil, fmt.Errorf("send LIST: %w", err)
	}
	size, err := n.c.ReadSize()
	if err != nil {
		return nil, fmt.Errorf("read LIST size: %w", err)
	}
	if size == 0 {
		return nil, nil
	}

	var sb strings.Builder
	if _, err := n.c.CopyN(&sb, size); err != nil {
		return nil, fmt.Errorf("read LIST body: %w", err)
	}
	var names []string
	for _, name := range strings.Split(sb.String(), "\n") {
		if name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}
