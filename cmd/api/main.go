// cmd/api/main.go

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"trendscope/internal/adapter/storage"
	"trendscope/internal/app"
	"trendscope/internal/config"
	"trendscope/internal/domain/trend"
	"trendscope/internal/server"
	"trendscope/internal/server/handlers"
	"trendscope/internal/service/pipeline"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := app.NewLogger(cfg.LogLevel)

	// Cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies
	a, err := app.New(ctx, cfg, logger, storage.NewMemoryStore(cfg.Server.MaxReports))
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	// Push every completed report to WebSocket subscribers
	hub := handlers.NewHub()
	a.Pipeline.RegisterReportHandler(func(r *trend.Report) {
		hub.BroadcastReport(r)
	})

	scheduler := pipeline.NewScheduler(a.Pipeline, cfg.Server.RefreshInterval, logger.With("component", "scheduler"))

	// Initialize HTTP server
	httpServer := server.NewServer(cfg.Server, a.Store, scheduler, hub, a.Metrics.Registry())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return scheduler.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("starting HTTP server", "host", cfg.Server.Host, "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", "error", err)
		a.Close()
		log.Fatalf("Shutdown error: %v", err)
	}

	logger.Info("shutdown complete")
}
