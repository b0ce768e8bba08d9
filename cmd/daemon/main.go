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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"osnova/go-core/internal/app"
	"osnova/go-core/internal/platform/privacylog"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "Path to config.yaml (optional)")
	dataDir := flag.String("data-dir", "", "Directory for daemon local data (optional)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus listen address (optional)")
	flag.Parse()
	if *showVersion {
		fmt.Printf("osnova-core version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}

	cfg := app.LoadConfig(*configPath)
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	log := slog.New(privacylog.WrapHandler(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}),
	))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt := app.NewRuntime(cfg, log)
	if err := rt.Start(); err != nil {
		log.Error("osnova-core failed to initialize", "error", err)
		os.Exit(1)
	}
	defer rt.Close()

	identities, err := rt.IdentityService()
	if err != nil {
		log.Error("identity service unavailable", "error", err)
		os.Exit(1)
	}
	status := identities.Status()
	log.Info("osnova-core starting",
		"version", version,
		"identity_initialized", status.Initialized,
		"address", status.Address,
	)
	if status.Initialized {
		if err := rt.EnsureVault(); err != nil {
			log.Error("key vault initialization failed", "error", err)
			os.Exit(1)
		}
	}

	metrics := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics listener failed", "error", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metrics.Shutdown(shutdownCtx); err != nil {
		log.Warn("metrics shutdown", "error", err)
	}
	log.Info("osnova-core stopped")
}
