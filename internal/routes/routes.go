package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/moderation-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/moderation-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/moderation-backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	healthHandler *handlers.HealthHandler,
	moderationHandler *handlers.ModerationHandler,
	policyHandler *handlers.PolicyHandler,
) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	// Health (no tenant required)
	api.Get("/health", healthHandler.Check)

	// Reporter endpoint (JWT required)
	api.Post("/reports", middleware.JWTProtected(cfg), moderationHandler.FileReport)

	// Review surface (JWT + admin required)
	admin := api.Group("/admin", middleware.JWTProtected(cfg), middleware.AdminRequired(cfg))
	mod := admin.Group("/moderation")
	mod.Get("/reports", moderationHandler.ListReports)
	mod.Get("/reports/:id", moderationHandler.GetReport)
	mod.Get("/reports/:id/audit", moderationHandler.GetAuditTrail)
	mod.Post("/reports/:id/review", moderationHandler.StartReview)
	mod.Post("/reports/:id/resolve", moderationHandler.Resolve)
	mod.Post("/reports/:id/dismiss", moderationHandler.Dismiss)
	mod.Get("/content/:type/:id", moderationHandler.GetAggregate)
	mod.Get("/policy", policyHandler.GetPolicy)
	mod.Put("/policy", policyHandler.SetPolicy)
}
