package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prepdesk/examtake/internal/config"
	"github.com/prepdesk/examtake/internal/handler"
	"github.com/prepdesk/examtake/internal/middleware"
	"github.com/prepdesk/examtake/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Attempt *handler.AttemptHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(handlers *Handlers, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
		corsConfig.AllowCredentials = true
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply compression globally; WebSocket upgrades pass through.
	router.Use(middleware.Compress())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for attempt creation (30 requests per minute per IP).
	startLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── Attempts Group (Credential Forwarding) ────────────────────────
	attempts := router.Group("/api/v1/attempts")
	attempts.Use(middleware.RequireCredential())
	{
		attempts.POST("", startLimiter.Middleware(), handlers.Attempt.StartAttempt)
		attempts.GET("/last-practice", handlers.Attempt.LastPractice)

		attempts.GET("/:attempt_id", handlers.Attempt.GetSession)
		attempts.GET("/:attempt_id/questions/:position", handlers.Attempt.GetQuestion)
		attempts.POST("/:attempt_id/answers", handlers.Attempt.RecordAnswer)

		attempts.POST("/:attempt_id/submit", handlers.Attempt.RequestSubmit)
		attempts.POST("/:attempt_id/submit/confirm", handlers.Attempt.ConfirmSubmit)
		attempts.POST("/:attempt_id/submit/cancel", handlers.Attempt.CancelSubmit)

		attempts.GET("/:attempt_id/result", handlers.Attempt.GetResult)
		attempts.GET("/:attempt_id/review", handlers.Attempt.GetReview)
		attempts.POST("/:attempt_id/exit", handlers.Attempt.SaveAndExit)
	}

	// ─── WebSocket Group ───────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireCredential())
	{
		ws.GET("/attempts/:attempt_id/stream", handlers.WS.AttemptStream)
	}

	return router
}
