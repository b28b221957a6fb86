package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/smaehq/smae-backend/internal/config"
	"github.com/smaehq/smae-backend/internal/db"
	"github.com/smaehq/smae-backend/internal/domain"
	"github.com/smaehq/smae-backend/internal/handlers"
	"github.com/smaehq/smae-backend/internal/locks"
	"github.com/smaehq/smae-backend/internal/logger"
	"github.com/smaehq/smae-backend/internal/middleware"
	"github.com/smaehq/smae-backend/internal/observability"
	"github.com/smaehq/smae-backend/internal/platform/sendgrid"
	"github.com/smaehq/smae-backend/internal/repos"
	"github.com/smaehq/smae-backend/internal/server"
	"github.com/smaehq/smae-backend/internal/services"
	"github.com/smaehq/smae-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Config
	cfg, err := config.Load(log)
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Tracing
	shutdownOtel := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "smae-backend",
		Environment: utils.GetEnv("ENVIRONMENT", "development", log),
		Version:     utils.GetEnv("SERVICE_VERSION", "dev", log),
	})
	if shutdownOtel != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownOtel(ctx)
		}()
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos...")
	userRepo := repos.NewUserRepo(thePG, log)
	userTokenRepo := repos.NewUserTokenRepo(thePG, log)
	skillRepo := repos.NewSkillRepo(thePG, log)
	validationRepo := repos.NewValidationRepo(thePG, log)

	// Locking
	locker, err := locks.New(log, cfg.RedisAddr)
	if err != nil {
		log.Error("Failed to init skill locker", "error", err)
		os.Exit(1)
	}

	clock := domain.RealClock{}

	// Services
	log.Info("Setting up services...")
	authService := services.NewAuthService(thePG, log, userRepo, userTokenRepo, cfg.JWTSecretKey, time.Duration(cfg.AccessTokenTTL)*time.Second, time.Duration(cfg.RefreshTokenTTL)*time.Second)
	skillService := services.NewSkillService(thePG, log, skillRepo, locker, clock)
	validationService := services.NewValidationService(thePG, log, skillRepo, validationRepo, locker, clock)

	var mentorHandler *handlers.MentorHandler
	mentorService, err := services.NewMentorService(log)
	if err != nil {
		log.Warn("Mentor service disabled", "error", err)
	} else {
		mentorHandler = handlers.NewMentorHandler(mentorService)
	}

	// Notification sweep
	mailer, err := sendgrid.NewFromEnv(log)
	if err != nil {
		log.Warn("Email notifications disabled", "error", err)
	} else {
		notifier := services.NewNotifierService(log, validationRepo, mailer, clock)
		notifier.StartWorker(context.Background(), time.Duration(cfg.SweepInterval)*time.Minute)
	}

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	skillHandler := handlers.NewSkillHandler(skillService)
	validationHandler := handlers.NewValidationHandler(validationService)
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	router := server.NewRouter(server.RouterConfig{
		CORSOrigins:       cfg.CORSOrigins,
		AuthHandler:       authHandler,
		AuthMiddleware:    authMiddleware,
		SkillHandler:      skillHandler,
		ValidationHandler: validationHandler,
		MentorHandler:     mentorHandler,
		DebugRoutes:       utils.GetEnv("DEBUG_ROUTES", "", log) != "",
	})

	log.Info("Starting server", "port", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Error("Server exited", "error", err)
		os.Exit(1)
	}
}
