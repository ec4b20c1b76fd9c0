package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/cefr-placement-api/internal/config"
	"github.com/noah-isme/cefr-placement-api/internal/handler"
	"github.com/noah-isme/cefr-placement-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	EvaluationHandler *handler.EvaluationHandler
	QuestionHandler   *handler.QuestionHandler
	JWTMiddleware     fiber.Handler
	RateLimiter       fiber.Handler
	MetricsHandler    fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	metrics := deps.MetricsHandler
	if metrics == nil {
		metrics = observability.MetricsHandler()
	}
	app.Get("/metrics", metrics)

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	// Without a JWT secret the evaluation routes stay open
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.QuestionHandler != nil {
		deps.QuestionHandler.Register(api.Group("/questions"))
	}

	if deps.EvaluationHandler != nil {
		rounds := []fiber.Handler{}
		if deps.RateLimiter != nil {
			rounds = append(rounds, deps.RateLimiter)
		}
		deps.EvaluationHandler.Register(api.Group("/evaluation", jwtMiddleware), rounds...)
	}
}
