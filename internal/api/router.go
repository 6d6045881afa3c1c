package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/charlesng35/weddingdesk/internal/app"
	"github.com/charlesng35/weddingdesk/internal/handlers"
	"github.com/charlesng35/weddingdesk/internal/middleware"
	"github.com/charlesng35/weddingdesk/internal/monitoring"
	"github.com/charlesng35/weddingdesk/internal/services"
)

// Dependencies groups the services the HTTP surface is built on.
type Dependencies struct {
	Config   *app.Config
	Events   *services.EventStore
	Workflow *services.Workflow
	Health   *monitoring.HealthManager
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	cfg := deps.Config
	switch {
	case cfg == nil:
		return nil, fmt.Errorf("config must be provided")
	case deps.Events == nil:
		return nil, fmt.Errorf("event store must be provided")
	case deps.Workflow == nil:
		return nil, fmt.Errorf("workflow must be provided")
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())

	r.NoRoute(middleware.NotFoundHandler)

	registerHealthRoutes(r, cfg, deps.Health)

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	registerEventRoutes(r, cfg, handlers.NewEventHandler(deps.Workflow))

	if cfg.Admin.AdminEnabled() {
		registerAdminRoutes(r, cfg, handlers.NewAdminHandler(deps.Events, deps.Workflow))
	}

	return r, nil
}

func registerEventRoutes(r *gin.Engine, cfg *app.Config, handler *handlers.EventHandler) {
	window := cfg.Server.RegisterRateWindow
	if window <= 0 {
		window = time.Minute
	}
	limiter := middleware.NewRateLimiter(cfg.Server.RegisterRateLimit, window)

	r.POST("/register", limiter.Handler(), handler.Register)
	r.GET("/accept", handler.Accept)
	r.GET("/decline", handler.Decline)
}

func registerAdminRoutes(r *gin.Engine, cfg *app.Config, handler *handlers.AdminHandler) {
	admin := r.Group("/admin/api")
	admin.Use(middleware.AdminBasicAuth(cfg.Admin.Username, cfg.Admin.PasswordHash))

	events := admin.Group("/events")
	{
		events.GET("", handler.List)
		events.GET("/:id", handler.Detail)
		events.GET("/:id/email-logs", handler.EmailLogs)
		events.POST("/:id/resend-offer", handler.ResendOffer)
		events.POST("/:id/send-reminder-now", handler.SendReminderNow)
		events.POST("/:id/accept", handler.Accept)
		events.POST("/:id/decline", handler.Decline)
	}
}
