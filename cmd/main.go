package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/NivaraGame/adaptive-lms/internal/adaptation"
	redisclient "github.com/NivaraGame/adaptive-lms/internal/clients/redis"
	"github.com/NivaraGame/adaptive-lms/internal/db"
	"github.com/NivaraGame/adaptive-lms/internal/handlers"
	"github.com/NivaraGame/adaptive-lms/internal/metrics"
	"github.com/NivaraGame/adaptive-lms/internal/middleware"
	"github.com/NivaraGame/adaptive-lms/internal/observability"
	"github.com/NivaraGame/adaptive-lms/internal/pkg/logger"
	"github.com/NivaraGame/adaptive-lms/internal/platform/envutil"
	"github.com/NivaraGame/adaptive-lms/internal/repos"
	"github.com/NivaraGame/adaptive-lms/internal/server"
	"github.com/NivaraGame/adaptive-lms/internal/services"
)

const serviceName = "adaptive-lms"

func main() {
	_ = godotenv.Load()

	// Logger
	logMode := envutil.String("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Tracing
	shutdownOTel := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: serviceName,
		Environment: envutil.String("APP_ENV", "development"),
		Version:     envutil.String("APP_VERSION", "dev"),
	})
	if shutdownOTel != nil {
		defer func() {
			if err := shutdownOTel(context.Background()); err != nil {
				log.Warn("OTel shutdown failed", "error", err)
			}
		}()
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos...")
	userRepo := repos.NewUserRepo(thePG, log)
	dialogRepo := repos.NewDialogRepo(thePG, log)
	messageRepo := repos.NewMessageRepo(thePG, log)
	metricRepo := repos.NewMetricRepo(thePG, log)
	contentRepo := repos.NewContentRepo(thePG, log)
	profileRepo := repos.NewUserProfileRepo(thePG, log)
	experimentRepo := repos.NewExperimentRepo(thePG, log)

	// Adaptation config
	adaptCfg, err := adaptation.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load adaptation config", "error", err)
	}

	// Metrics pipeline
	aggregator := metrics.NewAggregator(thePG, log, profileRepo, contentRepo,
		envutil.Float64("MASTERY_EMA_ALPHA", 0.3),
		envutil.Int("ROLLING_WINDOW", 10))
	workflow := metrics.NewWorkflow(thePG, log, messageRepo, dialogRepo, contentRepo, metricRepo, profileRepo, aggregator)

	// Adaptation engine
	engine := adaptation.NewEngine(log, adaptCfg, profileRepo, metricRepo, dialogRepo, messageRepo)

	// Redis cache for recently shown content. The service degrades to the
	// message log when unavailable.
	var tracker redisclient.RecentContentTracker
	if t, err := redisclient.NewRecentContentTracker(log); err != nil {
		log.Warn("Recent-content tracker disabled", "error", err)
	} else {
		tracker = t
	}

	// Services
	log.Info("Setting up services...")
	userService := services.NewUserService(thePG, log, userRepo)
	authService := services.NewAuthService(log, userRepo)
	dialogService := services.NewDialogService(thePG, log, dialogRepo, userRepo)
	messageService := services.NewMessageService(thePG, log, messageRepo, dialogRepo, workflow)
	contentService := services.NewContentService(thePG, log, contentRepo)
	profileService := services.NewProfileService(thePG, log, profileRepo, userRepo)
	metricsService := services.NewMetricsService(thePG, log, metricRepo, workflow)
	experimentService := services.NewExperimentService(thePG, log, experimentRepo, userRepo)
	recommendationService := services.NewRecommendationService(log, engine, contentRepo, messageRepo, dialogRepo, tracker, nil)

	// HTTP
	router := server.NewRouter(server.RouterConfig{
		ServiceName:           serviceName,
		AuthMiddleware:        middleware.NewAuthMiddleware(log, authService),
		AuthHandler:           handlers.NewAuthHandler(log, authService),
		UserHandler:           handlers.NewUserHandler(log, userService),
		ProfileHandler:        handlers.NewProfileHandler(log, profileService),
		DialogHandler:         handlers.NewDialogHandler(log, dialogService),
		MessageHandler:        handlers.NewMessageHandler(log, messageService),
		ContentHandler:        handlers.NewContentHandler(log, contentService),
		MetricsHandler:        handlers.NewMetricsHandler(log, metricsService),
		RecommendationHandler: handlers.NewRecommendationHandler(log, recommendationService),
		ExperimentHandler:     handlers.NewExperimentHandler(log, experimentService),
	})

	port := envutil.String("PORT", "8080")
	log.Info("Starting server", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Server exited", "error", err)
	}
}
