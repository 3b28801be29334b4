package main

import (
	"fmt"
	"log"

	_ "github.com/noah-isme/teacher-transfer-api/api/swagger"
	"github.com/noah-isme/teacher-transfer-api/internal/handler"
	"github.com/noah-isme/teacher-transfer-api/internal/repository"
	"github.com/noah-isme/teacher-transfer-api/internal/server"
	"github.com/noah-isme/teacher-transfer-api/internal/service"
	"github.com/noah-isme/teacher-transfer-api/pkg/cache"
	"github.com/noah-isme/teacher-transfer-api/pkg/config"
	"github.com/noah-isme/teacher-transfer-api/pkg/database"
	"github.com/noah-isme/teacher-transfer-api/pkg/export"
	"github.com/noah-isme/teacher-transfer-api/pkg/logger"
	"github.com/noah-isme/teacher-transfer-api/pkg/mailer"
	"github.com/noah-isme/teacher-transfer-api/pkg/storage"
)

// @title Teacher Transfer API
// @version 1.0.0
// @description Administrative backend for teacher registration and transfer workflows
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	if err := database.Migrate(db); err != nil {
		logr.Sugar().Fatalw("failed to run migrations", "error", err)
	}

	metrics := service.NewMetricsService()

	var cacheService *service.CacheService
	if cfg.Schools.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, school cache disabled", "error", err)
		} else {
			defer redisClient.Close() //nolint:errcheck
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheService = service.NewCacheService(cacheRepo, metrics, cfg.Schools.CacheTTL, logr, true)
		}
	}
	if cacheService == nil {
		cacheService = service.NewCacheService(nil, metrics, cfg.Schools.CacheTTL, logr, false)
	}

	store, err := storage.NewLocalStorage(cfg.Uploads.Dir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}

	mail := mailer.New(cfg.Mail, logr)
	validate := service.NewValidator()

	userRepo := repository.NewUserRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	schoolRepo := repository.NewSchoolRepository(db)
	transferRepo := repository.NewTransferRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	authService := service.NewAuthService(userRepo, teacherRepo, validate, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      cfg.JWT.Issuer,
	})
	registrationService := service.NewRegistrationService(teacherRepo, userRepo, schoolRepo, store, mail, validate, logr, service.RegistrationConfig{
		MaxFileSizeBytes: cfg.Uploads.MaxFileSizeBytes,
	})
	schoolService := service.NewSchoolService(schoolRepo, cacheService, validate, logr)
	teacherService := service.NewTeacherService(teacherRepo, store, validate, logr)
	transferService := service.NewTransferService(transferRepo, teacherRepo, schoolRepo, export.NewLetterExporter(), mail, metrics, validate, logr)
	notificationService := service.NewNotificationService(notificationRepo, userRepo, teacherRepo, mail, validate, logr)

	handlers := server.Handlers{
		Auth:         handler.NewAuthHandler(authService, registrationService),
		Transfer:     handler.NewTransferHandler(transferService),
		School:       handler.NewSchoolHandler(schoolService),
		Teacher:      handler.NewTeacherHandler(teacherService),
		Notification: handler.NewNotificationHandler(notificationService),
		Metrics:      handler.NewMetricsHandler(metrics),
	}

	r := server.New(cfg, logr, authService, metrics, handlers)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
