package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/campusops/devtrack/internal/cache"
	"github.com/campusops/devtrack/internal/config"
	"github.com/campusops/devtrack/internal/database"
	"github.com/campusops/devtrack/internal/events"
	"github.com/campusops/devtrack/internal/handler"
	"github.com/campusops/devtrack/internal/middleware"
	"github.com/campusops/devtrack/internal/models"
	"github.com/campusops/devtrack/internal/observability"
	"github.com/campusops/devtrack/internal/repository"
	"github.com/campusops/devtrack/internal/router"
	"github.com/campusops/devtrack/internal/sequencer"
	"github.com/campusops/devtrack/internal/service"
	"github.com/campusops/devtrack/pkg/tracker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.StudentRecord{},
		&models.TagCounter{},
		&models.AuditSession{},
		&models.AuditMark{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	assetCache := cache.New(redisClient, cfg.AssetCacheTTL, logger)

	trackerClient, err := tracker.New(tracker.Config{
		BaseURL: cfg.TrackerBaseURL,
		Token:   cfg.TrackerToken,
		Timeout: cfg.TrackerTimeout,
		Retry: tracker.RetryPolicy{
			MaxRetries:      cfg.TrackerMaxRetries,
			BackoffBase:     cfg.TrackerBackoffBase,
			BackoffCap:      8 * time.Second,
			RetryableStatus: tracker.DefaultRetryPolicy().RetryableStatus,
		},
		RequestsPerSecond: cfg.TrackerRateRPS,
		Burst:             cfg.TrackerRateBurst,
	}, assetCache, observability.NewTrackerMetrics(), logger)
	if err != nil {
		log.Fatalf("failed to create tracker client: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	publisher := events.NewPublisher(natsConn, logger)

	studentRepo := repository.NewStudentRepository(db)
	counterRepo := repository.NewTagCounterRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	tagSequencer := sequencer.New(counterRepo, logger)
	fields := service.FieldNames{Serial: cfg.TrackerFieldSerial, Type: cfg.TrackerFieldType}

	checkInService := service.NewCheckInService(trackerClient, assetCache, studentRepo, tagSequencer, fields, publisher, validate, logger)
	auditService := service.NewAuditService(auditRepo, repository.NewLedgerRoster(studentRepo), publisher, logger)

	checkInHandler := handler.NewCheckInHandler(checkInService, validate, logger)
	auditHandler := handler.NewAuditHandler(auditService, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		CheckInHandler: checkInHandler,
		AuditHandler:   auditHandler,
		JWTMiddleware:  middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
