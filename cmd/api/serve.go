package main

import (
	"context"
	"errors"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"chaos-ai/internal/config"
	"chaos-ai/internal/http"
	"chaos-ai/internal/metrics"
	"chaos-ai/internal/service"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return service.WrapError(err, "load configuration")
			}
			if port != "" {
				cfg.APIPort = port
			}
			setupLogging(cfg, os.Stdout)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	deps := &http.Deps{
		AllowedOrigins:  cfg.AllowedOrigins,
		MaxMessageBytes: cfg.MaxMessageBytes,
	}

	var recorder service.Recorder
	if cfg.MetricsEnabled {
		registry := prometheus.NewRegistry()
		prom, err := metrics.NewPrometheusRecorder(registry)
		if err != nil {
			return service.WrapError(err, "create metrics recorder")
		}
		recorder = prom
		deps.Observer = prom
		deps.Metrics = metrics.Handler(registry)
		slog.Info("Metrics enabled", "path", "/metrics")
	}

	relay, client, err := newRelay(cfg, recorder)
	if err != nil {
		return err
	}
	deps.Relay = relay
	deps.Backend = client

	router, err := http.NewRouter(deps)
	if err != nil {
		return service.WrapError(err, "create router")
	}
	slog.Info("WebSocket gateway initialized", "backend_url", cfg.BackendURL, "path", "/socket")

	srv := &nethttp.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(router.Shutdown)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting API server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return service.WrapError(err, "API server failed")
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return service.WrapError(err, "shutdown API server")
	}
	return nil
}
