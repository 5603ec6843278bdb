package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cbt/internal/config"
	"github.com/stemsi/exstem-cbt/internal/database"
	"github.com/stemsi/exstem-cbt/internal/handler"
	"github.com/stemsi/exstem-cbt/internal/logger"
	"github.com/stemsi/exstem-cbt/internal/middleware"
	"github.com/stemsi/exstem-cbt/internal/model"
	"github.com/stemsi/exstem-cbt/internal/response"
	"github.com/stemsi/exstem-cbt/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Session *handler.SessionHandler
	WS      *handler.WSHandler
}

// Deps carries what the router needs besides handlers.
type Deps struct {
	Auth *service.AuthService
	// LoginLimiter throttles POST /auth/login per client IP. Nil disables it.
	LoginLimiter *middleware.RateLimiter
	// Health is pinged by GET /health.
	Health map[string]database.Pinger
	Log    zerolog.Logger
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(handlers *Handlers, deps Deps, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour

	router.Use(
		gin.Recovery(),
		cors.New(corsConfig),
		response.RequestIDMiddleware(),
		logger.GinMiddleware(deps.Log, "/health"),
		middleware.Compress(middleware.DefaultCompressConfig),
	)

	router.NoRoute(func(c *gin.Context) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	})

	router.GET("/health", healthCheck(deps.Health))

	requireAuth := middleware.RequireAuth(deps.Auth)
	studentOnly := middleware.RequireRole(model.RoleStudent)

	// ─── 1. Auth Group ─────────────────────────────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		login := []gin.HandlerFunc{handlers.Auth.Login}
		if deps.LoginLimiter != nil {
			login = append([]gin.HandlerFunc{deps.LoginLimiter.Middleware()}, login...)
		}
		auth.POST("/login", login...)
		auth.POST("/logout", requireAuth, handlers.Auth.Logout)
		auth.GET("/me", requireAuth, handlers.Auth.Me)
	}

	// ─── 2. Student Group (JWT + single device + role) ─────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(requireAuth, studentOnly)
	{
		studentAPI.GET("/exams", handlers.Session.ListExams)
		studentAPI.POST("/exams/:exam_id/sessions", handlers.Session.StartSession)

		studentAPI.GET("/sessions/:session_id", handlers.Session.GetSession)
		studentAPI.DELETE("/sessions/:session_id", handlers.Session.Abandon)
		studentAPI.PUT("/sessions/:session_id/answers/:question_id", handlers.Session.RecordAnswer)
		studentAPI.POST("/sessions/:session_id/navigate", handlers.Session.Navigate)
		studentAPI.POST("/sessions/:session_id/review/:question_id", handlers.Session.ToggleReview)
		studentAPI.POST("/sessions/:session_id/submit", handlers.Session.Submit)

		studentAPI.GET("/results", handlers.Session.ListResults)
	}

	// ─── 3. WebSocket Group ────────────────────────────────────────────
	// Browsers cannot set headers on a WebSocket handshake, so RequireAuth
	// also accepts ?token=.
	ws := router.Group("/ws/v1")
	ws.Use(requireAuth, studentOnly)
	{
		ws.GET("/student/sessions/:session_id/stream", handlers.WS.SessionStream)
	}

	return router
}

func healthCheck(deps map[string]database.Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, healthy := database.Health(c.Request.Context(), 2*time.Second, deps)
		if !healthy {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "checks": status})
			return
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ok", "checks": status})
	}
}
