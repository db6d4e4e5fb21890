package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/insight-lab/research-go-api/internal/config"
	"github.com/insight-lab/research-go-api/internal/handler"
	"github.com/insight-lab/research-go-api/internal/middleware"
	"github.com/insight-lab/research-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AssignmentHandler   *handler.AssignmentHandler
	SubmissionHandler   *handler.SubmissionHandler
	GradingHandler      *handler.GradingHandler
	NotificationHandler *handler.NotificationHandler
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.AssignmentHandler != nil {
		assignments := app.Group("/api/v1/assignments", jwtMiddleware)
		deps.AssignmentHandler.Register(assignments)
	}

	if deps.SubmissionHandler != nil {
		// Answer saves arrive in bursts while a participant works through a
		// quiz, so the attempt surface is the only rate-limited group.
		submissions := app.Group("/api/v1/submissions", jwtMiddleware)
		if cfg.RateLimitPerMin > 0 {
			submissions.Use(middleware.RateLimit("submissions", cfg.RateLimitPerMin, time.Minute))
		}
		deps.SubmissionHandler.Register(submissions)
	}

	if deps.GradingHandler != nil {
		// Grading is researcher-facing end to end; per-quiz ownership is
		// still checked inside the service.
		grading := app.Group("/api/v1/grading", jwtMiddleware,
			middleware.RequireRole(middleware.AuthRoleResearcher, middleware.AuthRoleAdmin))
		deps.GradingHandler.Register(grading)
	}

	if deps.NotificationHandler != nil {
		notifications := app.Group("/api/v1/notifications", jwtMiddleware)
		deps.NotificationHandler.Register(notifications)
	}
}
