// Command kbcoordd runs the coordination service: it migrates the schema,
// reconciles satellite tables to match the registry, and serves the
// read-only introspection API until told to shut down.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/glenn-edgar/kbcoord/internal/api"
	"github.com/glenn-edgar/kbcoord/internal/config"
	"github.com/glenn-edgar/kbcoord/internal/kb/job"
	"github.com/glenn-edgar/kbcoord/internal/kb/reconcile"
	"github.com/glenn-edgar/kbcoord/internal/kb/registry"
	"github.com/glenn-edgar/kbcoord/internal/kb/rpcclient"
	"github.com/glenn-edgar/kbcoord/internal/kb/rpcserver"
	"github.com/glenn-edgar/kbcoord/internal/kb/status"
	"github.com/glenn-edgar/kbcoord/internal/kb/stream"
	"github.com/glenn-edgar/kbcoord/internal/store"
	"github.com/glenn-edgar/kbcoord/internal/telemetry"
	"github.com/glenn-edgar/kbcoord/pkg/shared/logging"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults if omitted)")
	reconcileOnce := flag.Bool("reconcile-once", false, "reconcile satellite tables once and exit, instead of serving")
	flag.Parse()

	if err := run(*configPath, *reconcileOnce); err != nil {
		fmt.Fprintln(os.Stderr, "kbcoordd:", err)
		os.Exit(1)
	}
}

func run(configPath string, reconcileOnce bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}

	if err := store.Migrate(&cfg.Database); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logging.Info(log, "migrations applied", logging.NewFields().Component("kbcoordd"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := store.Connect(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to store: %w", err)
	}
	defer db.Close()

	registryStore := registry.NewPGStore(db)
	reconciler := reconcile.New(db, registryStore)

	if err := reconciler.Reconcile(ctx); err != nil {
		return fmt.Errorf("initial reconcile: %w", err)
	}
	logging.Info(log, "reconcile complete", logging.NewFields().Component("kbcoordd").Operation("reconcile"))

	if reconcileOnce {
		return nil
	}

	promRegistry := prometheus.NewRegistry()
	metrics := telemetry.NewMetricsWithRegistry(promRegistry)

	server := &api.Server{
		DB:         db,
		Metrics:    metrics,
		Registry:   promRegistry,
		Jobs:       job.New(db),
		Streams:    stream.New(db),
		Statuses:   status.New(db),
		RPCServers: rpcserver.New(db),
		RPCClients: rpcclient.New(db),
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewRouter(server),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info(log, "listening", logging.NewFields().Component("kbcoordd").Custom("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	reconcileTicker := time.NewTicker(30 * time.Second)
	defer reconcileTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info(log, "shutting down", logging.NewFields().Component("kbcoordd"))
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer shutdownCancel()
			return httpServer.Shutdown(shutdownCtx)
		case err := <-errCh:
			return fmt.Errorf("http server: %w", err)
		case <-reconcileTicker.C:
			if err := reconciler.Reconcile(ctx); err != nil {
				logging.Error(log, err, "periodic reconcile failed", logging.NewFields().Component("kbcoordd").Operation("reconcile"))
			}
		}
	}
}
