package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/sourcefactory"
	"mercator-hq/conduit/pkg/telemetry/logging"
	"mercator-hq/conduit/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the data source service",
	Long: `Start the data source service with the specified configuration.

All enabled data sources are constructed, registered, and health-monitored.
An HTTP endpoint serves Prometheus metrics, a health summary, and
per-source statistics.

Examples:
  # Start with default config
  conduit run

  # Start with custom config
  conduit run --config /etc/conduit/config.yaml

  # Override listen address
  conduit run --listen 0.0.0.0:9464

  # Validate config without starting
  conduit run --dry-run`,
	RunE: runService,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override metrics listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the service")
}

func runService(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFileWithEnv(cfgFile)
	if err != nil {
		return err
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Metrics.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	if _, err := logging.Setup(cfg.Logging, os.Stdout); err != nil {
		return err
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting conduit",
		"version", Version,
		"config", cfgFile,
		"data_sources", len(cfg.DataSources),
	)

	manager := sourcefactory.NewManager(cfg.Manager)
	defer manager.Shutdown()

	if err := manager.Initialize(ctx, cfg.DataSources); err != nil {
		return err
	}

	if err := manager.StartMetricsCollection(cfg.Metrics.CollectionSchedule); err != nil {
		return err
	}

	server := newHTTPServer(cfg, manager)
	serverErr := make(chan error, 1)
	go func() {
		slog.Info("http endpoint listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")

	grace := cfg.Manager.ShutdownGrace
	if grace <= 0 {
		grace = config.DefaultShutdownGrace
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http server shutdown incomplete", "error", err)
	}

	return manager.Shutdown()
}

func newHTTPServer(cfg *config.Config, manager *sourcefactory.Manager) *http.Server {
	mux := http.NewServeMux()

	if cfg.Metrics.Enabled {
		collector := metrics.NewCollector(cfg.Metrics, manager)
		mux.Handle("/metrics", metrics.Handler(metrics.NewRegistry(collector)))
	}

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		stats := manager.Registry().Statistics()
		status := http.StatusOK
		if stats.TotalSources > 0 && stats.HealthySources == 0 {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"total_sources":     stats.TotalSources,
			"healthy_sources":   stats.HealthySources,
			"unhealthy_sources": stats.UnhealthySources,
			"health_percentage": stats.HealthPercentage,
		})
	})

	mux.HandleFunc("/statistics", func(w http.ResponseWriter, r *http.Request) {
		stats := manager.Statistics()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"uptime_seconds":  stats.Uptime.Seconds(),
			"total_sources":   stats.Registry.TotalSources,
			"healthy_sources": stats.Registry.HealthySources,
			"sources":         stats.Sources,
		})
	})

	addr := cfg.Metrics.ListenAddress
	if addr == "" {
		addr = ":9464"
	}

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
