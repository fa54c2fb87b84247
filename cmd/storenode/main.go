// Quince storage node
//
// One category-specific backend daemon. QUINCE_CATEGORY selects which of the
// delegated categories (pdf, text, archive) this instance serves; each
// category runs as its own process with its own directory tree.
package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fruitsalade/quince/internal/category"
	"github.com/fruitsalade/quince/internal/config"
	"github.com/fruitsalade/quince/internal/logging"
	"github.com/fruitsalade/quince/internal/metrics"
	"github.com/fruitsalade/quince/internal/node"
)

func main() {
	cfg, err := config.LoadNode()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	cat, _ := category.Parse(cfg.Category)
	logging.Info("quince storage node starting...",
		zap.String("category", cat.String()),
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr))

	svc, err := node.New(node.Config{
		ListenAddr: cfg.ListenAddr,
		Root:       cfg.Root,
		Alias:      cfg.Alias,
		Category:   cat,
	})
	if err != nil {
		logging.Fatal("node init failed", zap.Error(err))
	}
	if err := svc.Listen(); err != nil {
		logging.Fatal("node listen failed", zap.Error(err))
	}

	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")
		svc.Close()
		metricsServer.Close()
	}()

	if err := svc.Serve(); err != nil {
		logging.Info("node stopped", zap.Error(err))
	}
}
