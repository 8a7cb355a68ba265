package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/audiolift/api/internal/client"
	"github.com/audiolift/api/internal/config"
	"github.com/audiolift/api/internal/handler"
	"github.com/audiolift/api/internal/middleware"
	"github.com/audiolift/api/internal/service"
	"github.com/audiolift/api/internal/storage"
)

// uploadBodyHeadroom is added to the configured maximum file size when
// sizing the HTTP body limit, leaving room for multipart framing so the
// size check happens in the extraction pipeline rather than the transport.
const uploadBodyHeadroom = 16 * 1024 * 1024

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))

	// Initialize storage
	store, err := storage.New(cfg.Storage.BaseDir)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	jobStore := storage.NewJobStore(store)

	// Initialize Redis client (rate limiting only, the limiter fails open
	// when Redis is down)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx := context.Background()
	redisOK := true
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisOK = false
		log.Printf("Warning: Redis not available, rate limiting disabled: %v", err)
	}

	// Initialize ffmpeg client
	ffmpegClient := client.NewFFmpegClient(&cfg.FFmpeg, store.ProcessedDir())
	ffmpegOK := true
	if err := ffmpegClient.VerifyInstalled(ctx); err != nil {
		ffmpegOK = false
		log.Printf("Warning: %v", err)
	}

	// Initialize services
	extractionService := service.NewExtractionService(
		store,
		jobStore,
		ffmpegClient,
		cfg.Upload.MaxFileSize,
		cfg.FFmpeg.OutputFormat,
		appLogger,
	)
	cleanupService := service.NewCleanupService(
		store,
		time.Duration(cfg.Cleanup.ThresholdMinutes)*time.Minute,
		time.Duration(cfg.Cleanup.IntervalMinutes)*time.Minute,
		appLogger,
	)

	// Initialize handlers
	extractionHandler := handler.NewExtractionHandler(extractionService, store)
	maintenanceHandler := handler.NewMaintenanceHandler(cleanupService)

	// Initialize middleware
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    int(cfg.Upload.MaxFileSize) + uploadBodyHeadroom,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(middleware.Metrics())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${reqHeaders}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"ffmpeg":  ffmpegOK,
				"redis":   redisOK,
				"storage": true,
			},
		})
	})

	// Prometheus metrics
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API routes
	api := app.Group("/api")

	extraction := api.Group("/audio-extraction")
	extraction.Post("/upload", rateLimiter.UploadLimit(cfg.RateLimit.UploadPerHour), extractionHandler.Upload)
	extraction.Get("/status/:jobId", extractionHandler.Status)
	extraction.Get("/download/:jobId", extractionHandler.Download)
	extraction.Post("/cleanup", maintenanceHandler.Cleanup)

	// Start the periodic upload cleanup sweeper
	sweeperCtx, stopSweeper := context.WithCancel(ctx)
	cleanupService.Start(sweeperCtx)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		stopSweeper()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func parseLogLevel(level string) slog.Level {
	if strings.EqualFold(level, "debug") {
		return slog.LevelDebug
	} else if strings.EqualFold(level, "warn") {
		return slog.LevelWarn
	} else if strings.EqualFold(level, "error") {
		return slog.LevelError
	}
	return slog.LevelInfo
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
