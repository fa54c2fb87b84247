// Package node implements a storage-node service: one category-specific
// backend owning a local directory tree and exposing STORE / GET / DEL /
// TAR / LIST over the line protocol.
package node

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

const serviceName = "node"

// Config holds a storage node's settings.
type Config struct {
	ListenAddr string
	Root       string            // local directory tree owned by this node
	Alias      string            // alias token stripped from virtual paths
	Category   category.Category // the one category this node serves
}

// Service is a running storage node.
type Service struct {
	cfg Config
	ln  net.Listener
}

// New creates a storage node service. The root directory is created if
// missing.
func New(cfg Config) (*Service, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("root directory is required")
	}
	if !cfg.Category.IsDelegated() {
		return nil, fmt.Errorf("category %q is not served by storage nodes", cfg.Category)
	}
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create root %s: %w", cfg.Root, err)
	}
	return &Service{cfg: cfg}, nil
}

// Listen binds the node's listener.
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

// Serve runs the accept loop, handing each connection to its own goroutine.
// It returns when the listener is closed.
func (s *Service) Serve() error {
	logging.Info("storage node listening",
		zap.String("addr", s.ln.Addr().String()),
		zap.String("category", s.cfg.Category.String()),
		zap.String("root", s.cfg.Root))

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

// handleConn runs one session: read a command line, dispatch, respond,
// repeat until the peer disconnects. Sessions share no state with each
// other.
func (s *Service) handleConn(nc net.Conn) {
	metrics.SessionOpened(serviceName)
	defer metrics.SessionClosed(serviceName)

	c := wire.New(nc)
	defer c.Close()

	log := logging.L().With(
		zap.String("remote", nc.RemoteAddr().String()),
		zap.String("category", s.cfg.Category.String()))
	log.Debug("session started")

	for {
		line, err := c.ReadLine()
		if err != nil {
			if err != io.EOF {
				log.Debug("session read failed", zap.Error(err))
			}
			log.Debug("session closed")
			return
		}
		if line == "" {
			continue
		}

		cmd, rest := wire.SplitCommand(line)
		log.Debug("command received", zap.String("command", cmd))

		var ok bool
		switch cmd {
		case "STORE":
			ok = s.handleStore(c, rest, log)
		case "GET":
			ok = s.handleGet(c, rest, log)
		case "DEL":
			ok = s.handleDel(c, rest, log)
		case "TAR":
			ok = s.handleTar(c, rest, log)
		case "LIST":
			ok = s.handleList(c, rest, log)
		default:
			c.WriteLine("ERROR: Unknown command")
		}
		metrics.RecordCommand(serviceName, cmd, ok)
	}
}
