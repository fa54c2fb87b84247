// Package gateway implements the client-facing routing engine: it owns the
// upload/download/remove/archive/list protocol, serves the source category
// from its own directory tree, and relays every other category to the
// storage node that owns it.
package gateway

import (
	"fmt"
	"io"
	"net"
	"os"

	"go.uber.org/zap"

	"github.com/fruitsalade/quince/internal/category"
	"github.com/fruitsalade/quince/internal/logging"
	"github.com/fruitsalade/quince/internal/metrics"
	"github.com/fruitsalade/quince/internal/wire"
)

const serviceName = "gateway"

// Config holds the gateway's settings.
type Config struct {
	ListenAddr string
	Root       string                       // local tree for the source category
	Alias      string                       // client-visible alias token
	Nodes      map[category.Category]string // delegated category -> node address
}

// Service is a running gateway.
type Service struct {
	cfg Config
	ln  net.Listener
}

// New creates a gateway service. The local root is created if missing and
// every delegated category must have a node address.
func New(cfg Config) (*Service, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("root directory is required")
	}
	for _, cat := range category.Delegated {
		if cfg.Nodes[cat] == "" {
			return nil, fmt.Errorf("no node address for category %s", cat)
		}
	}
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create root %s: %w", cfg.Root, err)
	}
	return &Service{cfg: cfg}, nil
}

// Listen binds the gateway's listener.
func (s *Service) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.ListenAddr, err)
	}
	s.ln = ln
	return nil
}

// Addr returns the bound listen address.
func (s *Service) Addr() net.Addr {
	return s.ln.Addr()
}

// Serve runs the accept loop. Each client connection gets its own goroutine
// and shares nothing with its siblings beyond the immutable node-address
// table and the filesystem.
func (s *Service) Serve() error {
	logging.Info("gateway listening",
		zap.String("addr", s.ln.Addr().String()),
		zap.String("root", s.cfg.Root),
		zap.String("alias", s.cfg.Alias))

	for {
		nc, err := s.ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return err
		}
		go s.handleConn(nc)
	}
}

// Close stops the accept loop. In-flight sessions finish on their own.
func (s *Service) Close() error {
	if s.ln != nil {
		return s.ln.Close()
	}
	return nil
}

// handleConn runs one client session. Commands are processed strictly in
// arrival order; a command's complete response, payload included, is written
// before the next command's header is read.
func (s *Service) handleConn(nc net.Conn) {
	metrics.SessionOpened(serviceName)
	defer metrics.SessionClosed(serviceName)

	c := wire.New(nc)
	defer c.Close()

	log := logging.L().With(zap.String("remote", nc.RemoteAddr().String()))
	log.Info("client connected")

	for {
		line, err := c.ReadLine()
		if err != nil {
			if err != io.EOF {
				log.Debug("session read failed", zap.Error(err))
			}
			log.Info("client disconnected")
			return
		}
		if line == "" {
			continue
		}

		cmd, rest := wire.SplitCommand(line)
		log.Debug("command received", zap.String("command", cmd))

		var ok bool
		switch cmd {
		case "uploadf":
			ok = s.handleUpload(c, rest, log)
		case "downlf":
			ok = s.handleDownload(c, rest, log)
		case "removef":
			ok = s.handleRemove(c, rest, log)
		case "downltar":
			ok = s.handleTarball(c, rest, log)
		case "dispfnames":
			ok = s.handleListNames(c, rest, log)
		default:
			c.WriteLine("ERROR: Unknown command")
		}
		metrics.RecordCommand(serviceName, cmd, ok)
	}
}

// dialNode opens a backend connection for one delegated category.
func (s *Service) dialNode(cat category.Category) (*NodeClient, error) {
	nc, err := DialNode(s.cfg.Nodes[cat])
	metrics.RecordBackendDial(cat.String(), err == nil)
	return nc, err
}
