package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/i474232898/aqi-data-ingestion/internal/aqi"
	"github.com/i474232898/aqi-data-ingestion/internal/aqi/datagov"
	httpapi "github.com/i474232898/aqi-data-ingestion/internal/api/http"
	"github.com/i474232898/aqi-data-ingestion/internal/config"
	"github.com/i474232898/aqi-data-ingestion/internal/logging"
	"github.com/i474232898/aqi-data-ingestion/internal/metrics"
	"github.com/i474232898/aqi-data-ingestion/internal/scheduler"
	"github.com/i474232898/aqi-data-ingestion/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logging.NewLogger(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := store.Open(ctx, cfg)
	if err != nil {
		zl.Fatal("failed to open store", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	defer func() {
		if err := closeStore(context.Background()); err != nil {
			zl.Error("failed to close store", zap.Error(err))
		}
	}()

	// Shared HTTP client for outbound upstream calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	source := datagov.NewClient(cfg.DataGov(), httpClient, zl.Named("datagov"))

	collectors := metrics.New()
	service := aqi.NewService(st, source, aqi.ServiceOptions{
		PageLimit: cfg.DataGovPageLimit,
		Logger:    zl.Named("ingestion"),
		Recorder:  collectors,
	})

	if cfg.SchedulerEnabled {
		sched := scheduler.New(service, zl)
		if err := sched.Start(); err != nil {
			zl.Fatal("failed to start scheduler", zap.Error(err))
		}
		defer sched.Stop()
	} else {
		zl.Info("scheduler disabled")
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.ServiceName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// On-demand reads wait for a full upstream round trip.
		WriteTimeout: cfg.HTTPTimeout + 30*time.Second,
		ErrorHandler: httpapi.ErrorHandler,
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": cfg.ServiceName,
			"mode":    cfg.QueryMode,
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(collectors.Handler()))

	httpapi.RegisterRoutes(app, service, cfg.QueryMode)

	go func() {
		zl.Info("http server listening", zap.String("port", cfg.Port), zap.String("mode", string(cfg.QueryMode)))
		if err := app.Listen(":" + cfg.Port); err != nil {
			zl.Error("fiber server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		zl.Error("error during shutdown", zap.Error(err))
	}
}
