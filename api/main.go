package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cie-hub/cambridge-innovation-events/internal/app"
	"github.com/cie-hub/cambridge-innovation-events/internal/config"
	"github.com/cie-hub/cambridge-innovation-events/internal/logger"
	"github.com/cie-hub/cambridge-innovation-events/internal/metrics"
)

func main() {
	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	promReg := prometheus.NewRegistry()
	pipeline, err := app.NewPipeline(ctx, cfg.Common, cfg.Ingest, promReg, log)
	if err != nil {
		log.Error("init pipeline", slog.Any("err", err))
		os.Exit(1)
	}
	defer pipeline.Close()

	srv := &server{
		log:        log,
		store:      pipeline.Store,
		runner:     pipeline.Orchestrator,
		secret:     cfg.CronSecret,
		runTimeout: cfg.RunTimeout,
	}
	if srv.secret == "" {
		log.Warn("CRON_SECRET is not set; the scrape trigger will refuse requests")
	}

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(metrics.Handler(promReg)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RunTimeout + 15*time.Second,
	}

	go func() {
		log.Info("api server starting", slog.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}
