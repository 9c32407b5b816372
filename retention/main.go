package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cie-hub/cambridge-innovation-events/internal/config"
	"github.com/cie-hub/cambridge-innovation-events/internal/elasticsearch"
	"github.com/cie-hub/cambridge-innovation-events/internal/ingest"
	"github.com/cie-hub/cambridge-innovation-events/internal/logger"
)

type maintainer interface {
	Maintain(ctx context.Context) ingest.Maintenance
}

func main() {
	log := logger.New("retention")
	cfg, err := config.LoadRetention()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	reg, err := config.LoadRegistry(cfg.SourcesFile)
	if err != nil {
		log.Error("load registry", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	esClient, err := elasticsearch.Connect(ctx, cfg.ElasticsearchAddr, cfg.EventsIndex, cfg.SourcesIndex, log, 10)
	if err != nil {
		log.Error("failed to connect to elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}
	log.Info("connected to elasticsearch")

	// Only run-level maintenance happens here, so no collectors are wired.
	orch := ingest.New(esClient, nil, nil, reg, ingest.Options{
		RetentionMonths: cfg.RetentionMonths,
		Logger:          log,
	})

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	log.Info("retention job running",
		slog.Duration("interval", cfg.Interval),
		slog.Int("retention_months", cfg.RetentionMonths),
	)

	runOnce(ctx, log, orch)

	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received")
			return
		case <-ticker.C:
			runOnce(ctx, log, orch)
		}
	}
}

func runOnce(ctx context.Context, log *slog.Logger, m maintainer) {
	subCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	res := m.Maintain(subCtx)
	if len(res.Errors) > 0 {
		log.Warn("retention run incomplete (will retry on next interval)", slog.Any("errors", res.Errors))
	}

	deleted := res.RetentionDeleted + res.UnregisteredDeleted + res.DuplicatesDeleted
	if deleted > 0 {
		log.Info("retention run completed",
			slog.Int64("expired", res.RetentionDeleted),
			slog.Int64("unregistered", res.UnregisteredDeleted),
			slog.Int64("duplicates", res.DuplicatesDeleted),
		)
	} else {
		log.Debug("retention run completed, nothing to remove")
	}
}
