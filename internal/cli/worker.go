package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/zombar/truthlens/internal/app"
)

func newWorkerCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Process queued URL and feed jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd.Context(), opts)
		},
	}

	cmd.Flags().Int("concurrency", 0, "number of jobs processed in parallel")
	cmd.Flags().String("redis", "", "Redis address (env: REDIS_ADDR)")
	_ = opts.v.BindPFlag("worker.concurrency", cmd.Flags().Lookup("concurrency"))
	_ = opts.v.BindPFlag("redis.addr", cmd.Flags().Lookup("redis"))
	return cmd
}

func runWorker(ctx context.Context, opts *options) error {
	cfg := opts.cfg
	logger, err := newLogger(cfg.Log, os.Stdout)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

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

	worker, err := a.NewWorker()
	if err != nil {
		return err
	}

	logger.Info("truthlens worker starting",
		"redis", cfg.Redis.Addr,
		"concurrency", cfg.Worker.Concurrency,
	)
	// Run blocks until SIGINT or SIGTERM, then drains in-flight jobs
	if err := worker.Start(); err != nil {
		return err
	}
	logger.Info("worker stopped")
	return nil
}
