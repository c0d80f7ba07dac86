package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/mockmate/internal/config"
	"github.com/stemsi/mockmate/internal/handler"
	"github.com/stemsi/mockmate/internal/middleware"
	"github.com/stemsi/mockmate/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Question *handler.QuestionHandler
	Test     *handler.TestHandler
	Session  *handler.SessionHandler
	Monitor  *handler.MonitorHandler
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	handlers *Handlers,
	rdb *redis.Client,
	checks map[string]HealthCheck,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(log))

	router.GET("/health", health(checks))

	lookupLimiter := middleware.NewRateLimiter(rdb, "lookup", cfg.LookupRateLimit, time.Minute, log)

	api := router.Group("/api/v1")
	api.Use(middleware.Brotli())

	// ─── 1. Public Group (Rate Limited) ───────────────────────────────
	public := api.Group("/public")
	public.Use(lookupLimiter.Middleware(), middleware.CacheControl(0))
	{
		public.GET("/tests/:code/window", handlers.Test.GetWindow)
	}

	// ─── 2. Question Bank ─────────────────────────────────────────────
	questions := api.Group("/questions")
	{
		questions.GET("", handlers.Question.ListQuestions)
		questions.POST("", handlers.Question.CreateQuestion)
	}

	// ─── 3. Test Management ───────────────────────────────────────────
	tests := api.Group("/tests")
	{
		tests.POST("", handlers.Test.CreateTest)
		tests.GET("/:code", handlers.Test.GetTest)
		tests.GET("/:code/results", handlers.Test.ListResults)
	}

	// ─── 4. Live Monitoring ───────────────────────────────────────────
	sessions := api.Group("/sessions")
	sessions.Use(middleware.CacheControl(0))
	{
		sessions.GET("/:session_id/answers", handlers.Monitor.SessionAnswers)
	}

	// ─── 5. WebSocket Group (Rate Limited) ────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(lookupLimiter.Middleware())
	{
		ws.GET("/tests/:code/session", handlers.Session.Stream)
	}

	return router
}

func health(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		deps := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				deps[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			deps[name] = "ok"
		}

		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		response.Success(c, status, gin.H{"status": state, "dependencies": deps})
	}
}
