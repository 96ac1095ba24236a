package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/cryptoadvisor/internal/api/middleware"
	"github.com/cloo-solutions/cryptoadvisor/internal/config"
	"github.com/cloo-solutions/cryptoadvisor/internal/jobs"
	"github.com/cloo-solutions/cryptoadvisor/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the advisor server",
		Long:  "Start the HTTP API and web chat interface on the configured port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides ADVISOR_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("watch-docs", false, "Re-ingest the documents directory when files change")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	// 10% sampling in production, everything elsewhere
	sampleRate := 1.0
	if cfg.Environment == "production" {
		sampleRate = 0.1
	}
	flush := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: sampleRate,
		Debug:            cfg.Debug,
	}, logger)
	defer flush()

	if noMigrate, _ := cmd.Flags().GetBool("no-migrate"); !noMigrate {
		if err := runMigrations(cfg.DatabaseURL, logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Bootstrap(ctx); err != nil {
		return fmt.Errorf("failed to bootstrap initial user: %w", err)
	}

	src, err := app.DocumentSource(cfg.DocsDir, cfg.DocsS3Prefix)
	if err != nil {
		return err
	}
	ingestion, err := app.Ingestion(src)
	if err != nil {
		return err
	}
	reingest := jobs.NewReingestProcessor(ingestion, logger)

	var worker *jobs.Worker
	if cfg.HasReingest() {
		worker = jobs.NewWorker(reingest, cfg.ReingestInterval, logger)
		go worker.Start(ctx)
	}
	if watch, _ := cmd.Flags().GetBool("watch-docs"); watch && cfg.DocsS3Prefix == "" {
		watcher := jobs.NewDirWatcher(cfg.DocsDir, reingest, jobs.DefaultDebounce, logger)
		go func() {
			if err := watcher.Run(ctx); err != nil {
				logger.WithError(err).Error("document watcher stopped")
			}
		}()
	}

	limiter := middleware.NewUserRateLimiter(cfg.RateLimitMessages, cfg.RateLimitWindow)
	router := app.Router(limiter)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.Port).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutting down...")

	if worker != nil {
		worker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}
