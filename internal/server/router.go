package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/NivaraGame/adaptive-lms/internal/handlers"
	"github.com/NivaraGame/adaptive-lms/internal/middleware"
	"github.com/NivaraGame/adaptive-lms/internal/platform/envutil"
)

type RouterConfig struct {
	ServiceName           string
	AuthMiddleware        *middleware.AuthMiddleware
	AuthHandler           *handlers.AuthHandler
	UserHandler           *handlers.UserHandler
	ProfileHandler        *handlers.ProfileHandler
	DialogHandler         *handlers.DialogHandler
	MessageHandler        *handlers.MessageHandler
	ContentHandler        *handlers.ContentHandler
	MetricsHandler        *handlers.MetricsHandler
	RecommendationHandler *handlers.RecommendationHandler
	ExperimentHandler     *handlers.ExperimentHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(middleware.RequestID())
	if envutil.Bool("OTEL_ENABLED", false) {
		router.Use(otelgin.Middleware(cfg.ServiceName))
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(envutil.String("CORS_ALLOW_ORIGINS", "http://localhost:3000"), ","),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", middleware.RequestIDHeader},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api/v1")
	api.POST("/users", cfg.UserHandler.Create)
	api.POST("/auth/login", cfg.AuthHandler.Login)

	// ===============
	// || Protected ||
	// ===============
	protected := api.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())

	// Users
	protected.GET("/users", cfg.UserHandler.List)
	protected.GET("/users/me", cfg.UserHandler.GetMe)
	protected.GET("/users/:user_id", cfg.UserHandler.GetByID)

	// Profiles
	protected.GET("/users/:user_id/profile", cfg.ProfileHandler.Get)
	protected.PATCH("/users/:user_id/profile", cfg.ProfileHandler.Update)
	protected.DELETE("/users/:user_id/profile", cfg.ProfileHandler.Delete)
	protected.GET("/users/:user_id/profile/weak-topics", cfg.ProfileHandler.WeakTopics)
	protected.GET("/users/:user_id/profile/strong-topics", cfg.ProfileHandler.StrongTopics)

	// Dialogs and messages
	protected.POST("/dialogs", cfg.DialogHandler.Create)
	protected.GET("/dialogs/:dialog_id", cfg.DialogHandler.GetByID)
	protected.POST("/dialogs/:dialog_id/end", cfg.DialogHandler.End)
	protected.GET("/users/:user_id/dialogs", cfg.DialogHandler.ListByUser)
	protected.POST("/dialogs/:dialog_id/messages", cfg.MessageHandler.Create)
	protected.GET("/dialogs/:dialog_id/messages", cfg.MessageHandler.ListByDialog)
	protected.GET("/messages/:message_id", cfg.MessageHandler.GetByID)

	// Content catalog
	protected.POST("/content", cfg.ContentHandler.Create)
	protected.GET("/content", cfg.ContentHandler.List)
	protected.GET("/content/random", cfg.ContentHandler.Random)
	protected.GET("/content/topics", cfg.ContentHandler.Topics)
	protected.GET("/content/topics/:topic/next", cfg.ContentHandler.NextInTopic)
	protected.GET("/content/:content_id", cfg.ContentHandler.GetByID)
	protected.DELETE("/content/:content_id", cfg.ContentHandler.Delete)

	// Metrics
	protected.POST("/metrics/process", cfg.MetricsHandler.Process)
	protected.POST("/metrics/reprocess", cfg.MetricsHandler.Reprocess)
	protected.GET("/metrics/:metric_id", cfg.MetricsHandler.GetByID)
	protected.GET("/users/:user_id/metrics", cfg.MetricsHandler.ListByUser)
	protected.GET("/messages/:message_id/metrics", cfg.MetricsHandler.ListByMessage)

	// Recommendations
	protected.POST("/recommendations/next", cfg.RecommendationHandler.Next)
	protected.POST("/recommendations/cold-start", cfg.RecommendationHandler.ColdStart)
	protected.GET("/recommendations/strategy", cfg.RecommendationHandler.Strategy)
	protected.PUT("/recommendations/strategy", cfg.RecommendationHandler.SetStrategy)
	protected.GET("/users/:user_id/recommendations", cfg.RecommendationHandler.History)

	// Experiments
	protected.POST("/experiments", cfg.ExperimentHandler.Enroll)
	protected.GET("/experiments/:experiment_id", cfg.ExperimentHandler.GetByID)
	protected.POST("/experiments/:experiment_id/end", cfg.ExperimentHandler.End)
	protected.GET("/users/:user_id/experiments", cfg.ExperimentHandler.ListByUser)

	return router
}
