package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zombar/truthlens/internal/app"
)

func newServeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.Int("port", 0, "server port (env: PORT)")
	flags.String("db", "", "SQLite path or PostgreSQL DSN (env: DB_PATH)")
	flags.String("backend", "", "classifier backend: lexical, remote, ollama, openai")
	flags.String("model", "", "classifier model name")
	flags.Bool("debug", false, "include debug_info in every response")
	for key, flag := range map[string]string{
		"server.port":            "port",
		"database.path":          "db",
		"classifier.backend":     "backend",
		"classifier.model":       "model",
		"server.debug_responses": "debug",
	} {
		_ = opts.v.BindPFlag(key, flags.Lookup(flag))
	}
	return cmd
}

func runServe(ctx context.Context, opts *options) error {
	cfg := opts.cfg
	logger, err := newLogger(cfg.Log, os.Stdout)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	logger.Info("truthlens service initializing", "version", Version)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			logger.Error("error releasing resources", "error", err)
		}
	}()

	go a.RunDBStats(ctx)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      a.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("truthlens service starting",
			"port", cfg.Server.Port,
			"database", cfg.Database.Path,
			"backend", cfg.Classifier.Backend,
			"model", cfg.Classifier.Model,
			"stats_backend", cfg.Stats.Backend,
			"queue_enabled", a.Queue != nil,
			"ocr_enabled", a.OCR != nil,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
