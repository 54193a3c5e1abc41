package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/zipsync/internal/adapters/driven/auth"
	"github.com/custodia-labs/zipsync/internal/adapters/driving/http"
	"github.com/custodia-labs/zipsync/internal/core/domain"
	"github.com/custodia-labs/zipsync/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the task worker, scheduler and ops HTTP server",
	Long: `worker processes pipeline tasks from the queue until interrupted. When the
scheduler is enabled it seeds the source-sync and status-report schedules and
enqueues them when due. The ops HTTP server exposes health, metrics, the
current run state and authenticated task triggers.`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.db.InitSchema(ctx); err != nil {
		return err
	}

	scheduler := a.scheduler()
	if scheduler != nil {
		defaults := domain.DefaultSchedulerConfig(cfg.Scheduler.SyncInterval, cfg.Scheduler.ReportInterval)
		if err := scheduler.SeedDefaults(ctx, defaults); err != nil {
			return err
		}
	} else {
		logger.Info("scheduler disabled")
	}

	w := worker.NewWorker(worker.WorkerConfig{
		TaskQueue:      a.queue,
		Sources:        a.sourceFetcher(),
		Pipeline:       a.pipeline(),
		Publisher:      a.publisher(),
		Reporter:       a.reporter(),
		Scheduler:      scheduler,
		Metrics:        a.metrics,
		Logger:         logger,
		Concurrency:    cfg.Worker.Concurrency,
		DequeueTimeout: cfg.Worker.DequeueTimeout,
	})

	server := http.NewServer(http.Config{
		Host:    cfg.HTTP.Host,
		Port:    cfg.HTTP.Port,
		Version: version,
		Logger:  logger,
	}, a.opsService(), auth.NewAdapter(cfg.HTTP.JWTSecret), a.registry)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start()
	})
	g.Go(func() error {
		if err := w.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		w.Stop()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
