package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cie-hub/cambridge-innovation-events/internal/app"
	"github.com/cie-hub/cambridge-innovation-events/internal/config"
	"github.com/cie-hub/cambridge-innovation-events/internal/logger"
	"github.com/cie-hub/cambridge-innovation-events/internal/models"
)

type batchRunner interface {
	Run(ctx context.Context, batch string) models.RunReport
}

func main() {
	once := flag.Bool("once", false, "run every batch once and exit")
	flag.Parse()

	log := logger.New("worker")
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	pipeline, err := app.NewPipeline(ctx, cfg.Common, cfg.Ingest, nil, log)
	if err != nil {
		log.Error("init pipeline", slog.Any("err", err))
		os.Exit(1)
	}
	defer pipeline.Close()

	batches := pipeline.Registry.BatchNames()
	log.Info("worker started",
		slog.Duration("interval", cfg.Interval),
		slog.Any("batches", batches),
		slog.Bool("once", *once || cfg.Once),
	)

	if *once || cfg.Once {
		runAll(ctx, log, pipeline.Orchestrator, batches)
		return
	}
	loop(ctx, log, pipeline.Orchestrator, batches, cfg.Interval)
}

// runAll runs each batch in turn, or every source when none are configured.
func runAll(ctx context.Context, log *slog.Logger, r batchRunner, batches []string) {
	if len(batches) == 0 {
		runBatch(ctx, log, r, "")
		return
	}
	for _, b := range batches {
		if ctx.Err() != nil {
			return
		}
		runBatch(ctx, log, r, b)
	}
}

// loop runs one batch per tick, cycling through batches.
func loop(ctx context.Context, log *slog.Logger, r batchRunner, batches []string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	next := 0
	for {
		next = runNext(ctx, log, r, batches, next)
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received")
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
		}
	}
}

func runNext(ctx context.Context, log *slog.Logger, r batchRunner, batches []string, next int) int {
	if len(batches) == 0 {
		runBatch(ctx, log, r, "")
		return 0
	}
	runBatch(ctx, log, r, batches[next%len(batches)])
	return (next + 1) % len(batches)
}

func runBatch(ctx context.Context, log *slog.Logger, r batchRunner, batch string) {
	report := r.Run(ctx, batch)

	failed := 0
	for _, res := range report.Results {
		if res.Status != models.StatusOK {
			failed++
		}
	}
	log.Info("batch finished",
		slog.String("run_id", report.RunID),
		slog.String("batch", batch),
		slog.Int("sources", report.Sources),
		slog.Int("failed", failed),
		slog.Duration("took", report.FinishedAt.Sub(report.StartedAt)),
	)
}
