package router

import (
	"log/slog"

	"github.com/anonto42/letterbox/backend/internal/handlers"
	"github.com/anonto42/letterbox/backend/internal/middleware"
	"github.com/anonto42/letterbox/backend/internal/ratelimit"
	"github.com/labstack/echo/v4"
)

// Handlers groups the HTTP handlers mounted by SetupRoutes. Push may be nil
// when no subscription store is configured.
type Handlers struct {
	Auth          *handlers.AuthHandler
	Users         *handlers.UserHandler
	Content       *handlers.ContentHandler
	Likes         *handlers.LikeHandler
	Notifications *handlers.NotificationHandler
	Highlight     *handlers.HighlightHandler
	Push          *handlers.PushHandler
	Health        echo.HandlerFunc
}

// Options carries the cross-cutting pieces of the protected group.
type Options struct {
	// Auth authenticates /api/v1 requests and stores the user id.
	Auth               echo.MiddlewareFunc
	Limiter            *ratelimit.Limiter
	RateLimitPerMinute int
	Log                *slog.Logger
}

// SetupRoutes configures all application routes
func SetupRoutes(e *echo.Echo, h Handlers, opts Options) {
	// Health check - always accessible
	e.GET("/health", h.Health)

	// --- Unprotected routes for authentication ---
	authGroup := e.Group("/api/v1/auth")
	h.Auth.RegisterAuthRoutes(authGroup)

	// --- Protected routes ---
	api := e.Group("/api/v1")
	api.Use(opts.Auth)
	if opts.Limiter != nil {
		api.Use(middleware.RateLimit(opts.Limiter, opts.RateLimitPerMinute))
	}

	h.Users.RegisterProfileRoutes(api)
	h.Content.RegisterContentRoutes(api)
	h.Likes.RegisterLikeRoutes(api)
	h.Notifications.RegisterNotificationRoutes(api)
	h.Highlight.RegisterHighlightRoutes(api)
	if h.Push != nil {
		h.Push.RegisterPushRoutes(api)
	} else {
		opts.Log.Warn("push subscription routes disabled")
	}

	opts.Log.Info("routes configured", "count", len(e.Routes()))
}
