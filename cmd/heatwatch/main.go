package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/heatwatch/heatwatch/internal/alert"
	httpapi "github.com/heatwatch/heatwatch/internal/api/http"
	"github.com/heatwatch/heatwatch/internal/config"
	"github.com/heatwatch/heatwatch/internal/export"
	"github.com/heatwatch/heatwatch/internal/logger"
	"github.com/heatwatch/heatwatch/internal/notify"
	"github.com/heatwatch/heatwatch/internal/quality"
	"github.com/heatwatch/heatwatch/internal/scheduler"
	"github.com/heatwatch/heatwatch/internal/store"
	"github.com/heatwatch/heatwatch/internal/weather"
	"github.com/heatwatch/heatwatch/internal/weather/providers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()

	// Stores: postgres when configured, in-memory otherwise.
	var (
		readings store.ReadingStore
		users    store.UserStore
		alerts   store.AlertStore
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			zlog.Fatal("failed to open database", zap.Error(err))
		}
		if err := db.Ping(); err != nil {
			zlog.Fatal("failed to ping database", zap.Error(err))
		}
		defer db.Close()

		pg := store.NewPostgresStore(db, zlog)
		readings, users, alerts = pg, pg, pg
	} else {
		zlog.Warn("DATABASE_URL not set; using in-memory store")
		mem := store.NewMemoryStore()
		readings, users, alerts = mem, mem, mem
	}

	// Shared HTTP client for outbound weather calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	var provs []weather.Provider
	provs = append(provs, providers.NewOpenMeteoProvider(httpClient))
	if cfg.OpenWeatherAPIKey != "" {
		provs = append(provs, providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey))
	}
	lookup := weather.NewLookupService(weather.NewGoogleResolver(cfg.GoogleAPIKey), provs, zlog)

	// Outbound SMS channel; dry-run logging when Twilio is not configured.
	var dispatcher notify.Dispatcher
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		dispatcher = notify.NewTwilioDispatcher(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, zlog)
	} else {
		zlog.Warn("twilio credentials not set; alerts will be logged, not sent")
		dispatcher = notify.NewLogDispatcher(zlog)
	}

	// Core components.
	enricher := quality.NewEnricher(readings, users, lookup, cfg.Rule, zlog)
	dedupe := quality.NewDeduplicator(readings, zlog)
	throttle := alert.NewThrottle(alerts)
	engine := alert.NewEngine(readings, throttle, cfg.Rule)
	worker := alert.NewWorker(users, engine, throttle, dispatcher, zlog)
	exporter := export.NewExporter(readings, users)

	// Scheduled enrichment and alert passes.
	sched := scheduler.New(readings, enricher, worker, cfg.EnrichInterval, cfg.AlertInterval, cfg.EnrichThrottleDelay, zlog)
	if err := sched.Start(); err != nil {
		zlog.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	// Prometheus metrics on a side listener.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":"+cfg.MetricsPort, mux); err != nil {
			zlog.Error("metrics listener stopped", zap.Error(err))
		}
	}()

	app := fiber.New(fiber.Config{
		AppName:               "heatwatch",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "heatwatch",
		})
	})

	httpapi.RegisterRoutes(app, httpapi.Handlers{
		Readings:      readings,
		Users:         users,
		Exporter:      exporter,
		Worker:        worker,
		Enricher:      enricher,
		Dedupe:        dedupe,
		ThrottleDelay: cfg.EnrichThrottleDelay,
		Logger:        zlog,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			zlog.Error("fiber server stopped", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		zlog.Error("error during shutdown", zap.Error(err))
	}
}
