package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/flight-price-aggregation/internal/api/http"
	"github.com/i474232898/flight-price-aggregation/internal/config"
	"github.com/i474232898/flight-price-aggregation/internal/prices"
	"github.com/i474232898/flight-price-aggregation/internal/prices/providers"
	"github.com/i474232898/flight-price-aggregation/internal/scheduler"
	"github.com/i474232898/flight-price-aggregation/internal/store"
)

func main() {
	// Load configuration (also reads .env).
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	fetcher := newFetcher(cfg, httpClient)
	repo := newRepository(cfg)

	var exporters []prices.Exporter
	if cfg.ExportCSVPath != "" {
		exporters = append(exporters, store.CSVExporter{Path: cfg.ExportCSVPath})
	}
	if cfg.ExportParquetPath != "" {
		exporters = append(exporters, store.ParquetExporter{Path: cfg.ExportParquetPath})
	}

	// Core service orchestrating fetcher and stores.
	service := prices.NewService(repo, fetcher, prices.ServiceOptions{
		MaxSeriesLen:     cfg.MaxSeriesLen,
		MaxResults:       cfg.MaxResults,
		RouteConcurrency: cfg.RouteConcurrency,
		Exporters:        exporters,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Without credentials or a token nothing useful can happen.
	if err := fetcher.Authenticate(ctx); err != nil {
		stop()
		log.Fatalf("failed to authenticate with %s: %v", fetcher.Name(), err)
	}

	if cfg.RunMode == config.RunModeOnce {
		report, err := service.RunSweep(ctx, cfg.Plan(time.Now().UTC()))
		if err != nil {
			if errors.Is(err, prices.ErrAuthFailed) || errors.Is(err, prices.ErrMissingCredentials) {
				stop()
				log.Fatalf("sweep aborted: %v", err)
			}
			log.Printf("ERROR: sweep %s finished with errors: %v", report.ID, err)
			return
		}
		log.Printf("INFO: wrote %s and %s", cfg.SeriesPath, cfg.BucketsPath)
		return
	}

	// Scheduler that periodically sweeps and stores data.
	sched := scheduler.New(cfg.Schedule, service, cfg.Plan)
	if err := sched.Start(ctx); err != nil {
		stop()
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "flight-price-aggregation",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler:          errorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"service":  "flight-price-aggregation",
			"provider": fetcher.Name(),
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, service)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}

func newFetcher(cfg *config.AppConfig, client *http.Client) prices.Fetcher {
	switch cfg.Provider {
	case config.ProviderTequila:
		return providers.NewTequilaProvider(client, providers.TequilaOptions{
			BaseURL: cfg.TequilaBaseURL,
			APIKey:  cfg.TequilaAPIKey,
			Retry:   cfg.Retry,
			Pace:    cfg.SearchPace,
		})
	default:
		return providers.NewAmadeusProvider(client, providers.AmadeusOptions{
			BaseURL:      cfg.AmadeusBaseURL,
			ClientID:     cfg.AmadeusClientID,
			ClientSecret: cfg.AmadeusClientSecret,
			Retry:        cfg.Retry,
			Pace:         cfg.SearchPace,
		})
	}
}

func newRepository(cfg *config.AppConfig) prices.Repository {
	if cfg.StoreBackend == config.BackendMemory {
		log.Println("INFO: using in-memory store; nothing will be persisted")
		return store.NewMemoryStore()
	}
	return store.NewFileStore(cfg.SeriesPath, cfg.BucketsPath)
}

// errorHandler renders every error as a JSON body.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}
