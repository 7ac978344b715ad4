package main

import (
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leonardcser/persisted-map/internal/blobstore"
	"github.com/leonardcser/persisted-map/internal/config"
	"github.com/leonardcser/persisted-map/internal/logger"
	"github.com/leonardcser/persisted-map/internal/metrics"
	"github.com/leonardcser/persisted-map/internal/storage"
)

func main() {
	if err := logger.InitFromEnv(); err != nil {
		panic(err)
	}
	defer logger.Close()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Errorf("load config: %v", err)
		panic(err)
	}

	// Ensure socket dir exists and remove stale socket
	_ = os.MkdirAll(filepath.Dir(cfg.StoreSocket), 0o755)
	_ = os.MkdirAll(filepath.Dir(cfg.StoreDB), 0o755)
	_ = os.Remove(cfg.StoreSocket)

	area, closer, err := openDurable(cfg)
	if err != nil {
		logger.Errorf("open %s store at %s: %v", cfg.StoreDriver, cfg.StoreDB, err)
		panic(err)
	}
	defer closer.Close()
	logger.Infof("Opened %s store at %s", cfg.StoreDriver, cfg.StoreDB)

	registry := prometheus.NewRegistry()
	area = metrics.NewCollector(registry).Instrument(blobstore.Durable, area)
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, registry)
	}

	l, err := net.Listen("unix", cfg.StoreSocket)
	if err != nil {
		logger.Errorf("listen on %s: %v", cfg.StoreSocket, err)
		panic(err)
	}
	_ = os.Chmod(cfg.StoreSocket, 0o600)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		logger.Infof("Shutting down store daemon")
		_ = l.Close()
	}()

	logger.Infof("Serving store on %s", cfg.StoreSocket)
	if err := storage.Serve(l, area); err != nil {
		logger.Errorf("serve: %v", err)
	}
}

func openDurable(cfg config.Config) (storage.Area, io.Closer, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		s, err := storage.OpenSQLite(cfg.StoreDB, storage.SQLiteOptions{})
		return s, s, err
	case config.DriverBolt:
		b, err := storage.OpenBolt(cfg.StoreDB, storage.BoltOptions{Bucket: "items"})
		return b, b, err
	}
	return nil, nil, errors.New("unknown store driver " + cfg.StoreDriver)
}

func serveMetrics(addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	logger.Infof("Serving metrics on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Errorf("metrics server: %v", err)
	}
}
