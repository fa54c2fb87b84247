// Quince gateway
//
// The client-facing daemon: accepts line-protocol connections, serves .c
// files from its own tree, and routes every other category to the storage
// node that owns it. Prometheus metrics and structured logging included.
package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fruitsalade/quince/internal/config"
	"github.com/fruitsalade/quince/internal/gateway"
	"github.com/fruitsalade/quince/internal/logging"
	"github.com/fruitsalade/quince/internal/metrics"
)

func main() {
	cfg, err := config.LoadGateway()
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

	logging.Info("quince gateway starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr))

	svc, err := gateway.New(gateway.Config{
		ListenAddr: cfg.ListenAddr,
		Root:       cfg.Root,
		Alias:      cfg.Alias,
		Nodes:      cfg.NodeAddrs(),
	})
	if err != nil {
		logging.Fatal("gateway init failed", zap.Error(err))
	}
	if err := svc.Listen(); err != nil {
		logging.Fatal("gateway listen failed", zap.Error(err))
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
		logging.Info("gateway stopped", zap.Error(err))
	}
}
