// Package main runs the strategy lifecycle coordinator service:
// - Document store backend (firestore, postgres, or memory)
// - Startup verification of every collection before serving traffic
// - HTTP API for registration, stage transitions, and record appends
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"strategy-lifecycle-lab/internal/bootstrap"
	"strategy-lifecycle-lab/internal/config"
	"strategy-lifecycle-lab/internal/docstore"
	fsstore "strategy-lifecycle-lab/internal/docstore/firestore"
	"strategy-lifecycle-lab/internal/docstore/memory"
	pgstore "strategy-lifecycle-lab/internal/docstore/postgres"
	"strategy-lifecycle-lab/internal/lifecycle"
	"strategy-lifecycle-lab/internal/observability"
)

func main() {
	// Parse flags (env vars as defaults)
	configPath := flag.String("config", os.Getenv("COORDINATOR_CONFIG"), "Path to YAML config file")
	backend := flag.String("backend", os.Getenv("STORE_BACKEND"), "Store backend override: firestore, postgres, memory")
	listen := flag.String("listen", "", "HTTP listen address override")
	metricsNS := flag.String("metrics-namespace", "", "Prometheus metrics namespace override")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := loadConfig(*configPath, *backend, *listen)
	if err != nil {
		logger.Error("configuration rejected", "error", err)
		os.Exit(1)
	}
	if *metricsNS != "" {
		cfg.MetricsNS = *metricsNS
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics(cfg.MetricsNS)

	store, cleanup, err := createStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to create store", "backend", cfg.Store.Backend, "error", err)
		os.Exit(1)
	}
	defer cleanup()

	instrumented := observability.Instrument(store, metrics)
	collections := cfg.ResolveCollections()

	// Every collection must prove writable, readable, and deletable before
	// the service accepts traffic.
	start := time.Now()
	if err := bootstrap.Verify(ctx, instrumented, collections, logger); err != nil {
		logger.Error("storage verification failed", "error", err)
		os.Exit(1)
	}
	metrics.BootstrapDuration.Observe(time.Since(start).Seconds())
	logger.Info("storage verified", "backend", cfg.Store.Backend, "elapsed", time.Since(start))

	coordinator := lifecycle.New(lifecycle.Options{
		Store:       instrumented,
		Collections: collections,
		Logger:      logger,
		Metrics:     metrics,
	})

	server := &http.Server{
		Addr:    cfg.Listen,
		Handler: newServer(coordinator, logger).routes(),
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Listen)
		errCh <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
			os.Exit(1)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}

// loadConfig reads the config file and applies flag overrides. With no file,
// a minimal config is assembled from the flags alone.
func loadConfig(path, backend, listen string) (*config.Config, error) {
	var cfg *config.Config
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = &config.Config{Listen: ":8080"}
		cfg.Store.Backend = backend
		cfg.Store.ProjectID = os.Getenv("FIRESTORE_PROJECT_ID")
		cfg.Store.CredentialsPath = os.Getenv("FIRESTORE_CREDENTIALS")
		cfg.Store.PostgresDSN = os.Getenv("POSTGRES_DSN")
	}

	if backend != "" {
		cfg.Store.Backend = backend
	}
	if listen != "" {
		cfg.Listen = listen
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// createStore builds the configured document store backend.
func createStore(ctx context.Context, cfg *config.Config) (docstore.Store, func(), error) {
	switch cfg.Store.Backend {
	case "firestore":
		store, err := fsstore.New(ctx, cfg.Store.ProjectID, cfg.Store.CredentialsPath)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to firestore: %w", err)
		}
		return store, func() { store.Close() }, nil

	case "postgres":
		pool, err := pgstore.NewPool(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := pgstore.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("apply migrations: %w", err)
		}
		store := pgstore.NewStore(pool)
		return store, func() { store.Close() }, nil

	case "memory":
		return memory.New(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
