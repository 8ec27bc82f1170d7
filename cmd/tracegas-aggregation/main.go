package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	httpapi "github.com/satdata/tracegas-aggregation/internal/api/http"
	"github.com/satdata/tracegas-aggregation/internal/archive"
	"github.com/satdata/tracegas-aggregation/internal/calendar"
	"github.com/satdata/tracegas-aggregation/internal/config"
	"github.com/satdata/tracegas-aggregation/internal/product"
	"github.com/satdata/tracegas-aggregation/internal/scheduler"
	"github.com/satdata/tracegas-aggregation/internal/store"
	"github.com/satdata/tracegas-aggregation/internal/tracegas"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Per-day product files on local disk.
	products := product.NewFileStore(cfg.DataDir, cfg.FilePrefix)

	// Optional remote archive with resilience (backoff + circuit breaker).
	var fetcher tracegas.Fetcher
	if cfg.ArchiveBaseURL != "" {
		httpClient := &http.Client{
			Timeout: cfg.HTTPTimeout,
		}
		fetcher = archive.NewFetcher(cfg.ArchiveBaseURL, cfg.DataDir, cfg.FilePrefix, httpClient)
	}

	// Optional holiday calendar.
	var holidays calendar.Calendar
	if cfg.HolidayFile != "" {
		fileCal, err := calendar.LoadFile(cfg.HolidayFile)
		if err != nil {
			log.Fatalf("failed to load holiday calendar: %v", err)
		}
		log.Printf("INFO: loaded %d holidays from %s", fileCal.Len(), cfg.HolidayFile)
		holidays = fileCal
	}

	// In-memory result store with configured retention.
	results := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)

	// Core service orchestrating loading, averaging and storage.
	service := tracegas.NewService(products, fetcher, results, holidays, nil)

	// Scheduler that periodically re-runs standing averaging jobs.
	var jobs []scheduler.Job
	if cfg.JobEnabled {
		jobs = append(jobs, scheduler.Job{
			Field:      cfg.JobField,
			Bounds:     cfg.JobBounds,
			WindowDays: cfg.JobWindowDays,
		})
	}
	sched := scheduler.New(jobs, cfg.ScheduleInterval, service)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "tracegas-aggregation",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
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

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "tracegas-aggregation",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, service)

	// Start server with graceful shutdown
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
