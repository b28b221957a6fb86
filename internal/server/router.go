package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/smaehq/smae-backend/internal/handlers"
	"github.com/smaehq/smae-backend/internal/middleware"
)

type RouterConfig struct {
	CORSOrigins       []string
	AuthHandler       *handlers.AuthHandler
	AuthMiddleware    *middleware.AuthMiddleware
	SkillHandler      *handlers.SkillHandler
	ValidationHandler *handlers.ValidationHandler
	MentorHandler     *handlers.MentorHandler
	DebugRoutes       bool
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware("smae-backend"))

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Public
	router.GET("/healthcheck", handlers.HealthCheck)
	router.POST("/register", cfg.AuthHandler.Register)
	router.POST("/login", cfg.AuthHandler.Login)

	// Protected
	protected := router.Group("/api")
	protected.Use(cfg.AuthMiddleware.RequireAuth())

	// Auth
	protected.POST("/refresh", cfg.AuthHandler.Refresh)
	protected.POST("/logout", cfg.AuthHandler.Logout)

	// Skills
	protected.GET("/skills", cfg.SkillHandler.List)
	protected.POST("/skills", cfg.SkillHandler.Create)
	protected.GET("/skills/:id", cfg.SkillHandler.Get)
	protected.PUT("/skills/:id", cfg.SkillHandler.Update)
	protected.DELETE("/skills/:id", cfg.SkillHandler.Delete)
	protected.POST("/skills/:id/level-up", cfg.SkillHandler.LevelUp)

	// Validations
	protected.GET("/skills/:id/validations", cfg.ValidationHandler.History)
	protected.POST("/skills/:id/validations", cfg.ValidationHandler.Submit)
	protected.GET("/skills/:id/cooldown", cfg.ValidationHandler.Cooldown)
	protected.POST("/validations/:id/panic", cfg.ValidationHandler.Panic)

	// AI mentor (optional)
	if cfg.MentorHandler != nil {
		protected.POST("/ai/analyze-evidence", cfg.MentorHandler.AnalyzeEvidence)
		protected.POST("/ai/micro-curriculum", cfg.MentorHandler.GenerateMicroCurriculum)
	}

	// Debug
	if cfg.DebugRoutes {
		protected.POST("/skills/:id/fast-forward", cfg.SkillHandler.FastForward)
	}

	return router
}
