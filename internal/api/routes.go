package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"resumebuilder/internal/analysis"
	"resumebuilder/internal/api/middleware"
	"resumebuilder/internal/auth"
	"resumebuilder/internal/repository"
	"resumebuilder/internal/storage"
	"resumebuilder/internal/tasks"
	"resumebuilder/internal/worker"
)

// Deps carries what the HTTP layer needs. Google, Redis, Queue and Storage
// are optional; the routes that depend on them answer 503 when unset.
type Deps struct {
	DB       *gorm.DB
	Auth     *auth.AuthService
	Google   *auth.GoogleService
	Redis    redis.UniversalClient
	Queue    tasks.Enqueuer
	Storage  storage.ObjectStore
	Renderer ResumeRenderer
	Analyzer analysis.Analyzer
	Logger   *slog.Logger

	// Notifications overrides the Redis backed notification feed.
	Notifications NotificationFeed

	LoginRateLimitPerHour int
	UIRedirectURL         string
	AllowedOrigins        []string
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// RegisterRoutes mounts the API under the given group.
func RegisterRoutes(api *gin.RouterGroup, deps Deps) {
	analyzer := deps.Analyzer
	if analyzer == nil {
		analyzer = analysis.NewHeuristic()
	}

	users := repository.NewUsers(deps.DB)
	resumes := repository.NewResumes(deps.DB)

	resumeHandler := NewResumeHandler(resumes, users, deps.Renderer, deps.Queue, deps.Storage)
	aiHandler := NewAIHandler(resumes, analyzer)
	authHandler := NewAuthHandler(users, deps.Auth, deps.Google, deps.Redis, deps.LoginRateLimitPerHour, deps.UIRedirectURL)
	feed := deps.Notifications
	if feed == nil && deps.Redis != nil {
		feed = worker.NewRedisFeed(deps.Redis)
	}
	wsHandler := NewWsHandler(feed, deps.Auth, deps.logger(), deps.AllowedOrigins)
	authMiddleware := middleware.AuthMiddleware(deps.Auth)

	api.GET("/ws", wsHandler.HandleConnection)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.GET("/profile", authMiddleware, authHandler.Profile)
		authGroup.GET("/google/start", authHandler.GoogleStart)
		authGroup.GET("/google/callback", authHandler.GoogleCallback)
	}

	resumeGroup := api.Group("/resumes")
	resumeGroup.Use(authMiddleware)
	{
		resumeGroup.GET("", resumeHandler.ListResumes)
		resumeGroup.POST("", resumeHandler.CreateResume)
		resumeGroup.GET("/:id", resumeHandler.GetResume)
		resumeGroup.POST("/:id", resumeHandler.SaveResume)
		resumeGroup.DELETE("/:id", resumeHandler.DeleteResume)
		resumeGroup.POST("/:id/pdf", resumeHandler.GeneratePDF)
		resumeGroup.POST("/:id/pdf/archive", resumeHandler.ArchivePDF)
		resumeGroup.GET("/:id/pdf/link", resumeHandler.GetPDFLink)
	}

	aiGroup := api.Group("/ai")
	aiGroup.Use(authMiddleware)
	{
		aiGroup.POST("/:id/analyze", aiHandler.Analyze)
		aiGroup.POST("/:id/cover-letter", aiHandler.CoverLetter)
		aiGroup.POST("/:id/optimize", aiHandler.Optimize)
	}
}
