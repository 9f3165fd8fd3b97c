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

	"github.com/optimark/optimark-api/internal/config"
	"github.com/optimark/optimark-api/internal/database"
	"github.com/optimark/optimark-api/internal/handler"
	"github.com/optimark/optimark-api/internal/middleware"
	"github.com/optimark/optimark-api/internal/models"
	"github.com/optimark/optimark-api/internal/omr"
	"github.com/optimark/optimark-api/internal/repository"
	"github.com/optimark/optimark-api/internal/router"
	"github.com/optimark/optimark-api/internal/service"
	cloud "github.com/optimark/optimark-api/pkg/cloudinary"
	"github.com/optimark/optimark-api/pkg/imagestore"
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
		&models.Batch{},
		&models.Student{},
		&models.Exam{},
		&models.AnswerKeySet{},
		&models.Score{},
		&models.Scan{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, scan events stay node-local")
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		logger.Warn().Err(err).Msg("nats unavailable, scan events stay node-local")
		natsConn = nil
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	var archiver service.SheetArchiver
	if cfg.CloudinaryCloudName != "" {
		uploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		archiver = uploader
	}

	store, err := imagestore.New(cfg.MediaDir, logger)
	if err != nil {
		log.Fatalf("failed to initialise media storage: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	batchRepo := repository.NewBatchRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	examRepo := repository.NewExamRepository(db)
	scoreRepo := repository.NewScoreRepository(db)
	scanRepo := repository.NewScanRepository(db)

	interpreter := omr.NewSidecarInterpreter(cfg.ScanItemCount, logger)

	rosterService := service.NewRosterService(batchRepo, studentRepo, validate, logger)
	examService := service.NewExamService(examRepo, batchRepo, validate, logger)
	scoreService := service.NewScoreService(scoreRepo, examRepo, studentRepo, validate, logger)
	analyticsService := service.NewAnalyticsService(scoreRepo, examRepo, logger)
	eventService := service.NewScanEventService(redisClient, natsConn, cfg.EventChannelBase, logger)
	scanService := service.NewScanService(scanRepo, examRepo, studentRepo, scoreService, interpreter, store, archiver, eventService, validate, cfg.MaxScanSizeMB, logger)
	seedService := service.NewSeedService(batchRepo, studentRepo, examRepo, validate, cfg.SeedEnabled, cfg.SeedToken, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eventService.Start(ctx)

	batchHandler := handler.NewBatchHandler(rosterService, validate, logger)
	studentHandler := handler.NewStudentHandler(rosterService, validate, logger)
	examHandler := handler.NewExamHandler(examService, scoreService, validate, logger)
	scoreHandler := handler.NewScoreHandler(scoreService, validate, logger)
	scanHandler := handler.NewScanHandler(scanService, validate, logger)
	scanEventsHandler := handler.NewScanEventsHandler(eventService, logger)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsService, logger)
	seedHandler := handler.NewSeedHandler(seedService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		BatchHandler:      batchHandler,
		StudentHandler:    studentHandler,
		ExamHandler:       examHandler,
		ScoreHandler:      scoreHandler,
		ScanHandler:       scanHandler,
		ScanEventsHandler: scanEventsHandler,
		AnalyticsHandler:  analyticsHandler,
		SeedHandler:       seedHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
		UploadRateLimit:   middleware.RateLimit("scan-upload", cfg.UploadRateLimit, cfg.UploadRateWindow),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(ctx, app)
}

func waitForShutdown(ctx context.Context, app *fiber.App) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
