package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"critique-backend/internal/chat"
	"critique-backend/internal/query"
	"critique-backend/internal/services/health"
	"critique-backend/internal/shared/config"
	"critique-backend/internal/shared/metrics"
	"critique-backend/internal/shared/server/middleware"
	"critique-backend/internal/shared/server/respond"
)

// RouterDeps groups the handlers the routers mount.
type RouterDeps struct {
	Config       config.Config
	Health       *health.Service
	QueryHandler *query.Handler
	ChatHandler  *chat.Handler
	Limiter      *middleware.RateLimiter
}

var queryRateRules = map[string]middleware.RateLimitRule{
	"DEFAULT": {Rate: 10, Burst: 50},
	"SEARCH":  {Rate: 2, Burst: 10},
}

var chatRateRules = map[string]middleware.RateLimitRule{
	"DEFAULT": {Rate: 20, Burst: 40},
}

// NewQueryRouter builds the read-only query API.
func NewQueryRouter(deps RouterDeps) *gin.Engine {
	r := newEngine(deps)
	r.Use(middleware.RateLimit(middleware.RateLimitConfig{
		Rules:   queryRateRules,
		Limiter: deps.Limiter,
		GroupFor: func(c *gin.Context) string {
			if c.FullPath() == "/search" {
				return "SEARCH"
			}
			return "DEFAULT"
		},
	}))
	if deps.QueryHandler != nil {
		deps.QueryHandler.RegisterRoutes(r)
	}
	return r
}

// NewBotRouter builds the chat webhook server. Chat events are limited per chat
// user, so the user id is bound from the body before the limiter runs.
func NewBotRouter(deps RouterDeps) *gin.Engine {
	r := newEngine(deps)
	if deps.ChatHandler != nil {
		hooks := r.Group("/",
			middleware.WebhookSecret(deps.Config.WebhookSecret),
			chat.IdentifyUser(),
			middleware.RateLimit(middleware.RateLimitConfig{
				Rules:   chatRateRules,
				Limiter: deps.Limiter,
			}),
		)
		deps.ChatHandler.RegisterRoutes(hooks)
	}
	return r
}

func newEngine(deps RouterDeps) *gin.Engine {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService()
	}
	r.GET("/health", func(c *gin.Context) {
		report := healthSvc.Status(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})
	r.GET("/metrics", metrics.Handler())
	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
