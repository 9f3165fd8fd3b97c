package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/optimark/optimark-api/internal/config"
	"github.com/optimark/optimark-api/internal/handler"
	"github.com/optimark/optimark-api/internal/middleware"
	"github.com/optimark/optimark-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	BatchHandler      *handler.BatchHandler
	StudentHandler    *handler.StudentHandler
	ExamHandler       *handler.ExamHandler
	ScoreHandler      *handler.ScoreHandler
	ScanHandler       *handler.ScanHandler
	ScanEventsHandler *handler.ScanEventsHandler
	AnalyticsHandler  *handler.AnalyticsHandler
	SeedHandler       *handler.SeedHandler
	JWTMiddleware     fiber.Handler
	UploadRateLimit   fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	readRoles := middleware.RequireRole("admin", "checker")
	adminOnly := middleware.RequireRole("admin")

	if deps.BatchHandler != nil {
		batches := api.Group("/batches", jwtMiddleware)
		batches.Get("", readRoles)
		batches.Get("/:id", readRoles)
		batches.Post("", adminOnly)
		batches.Delete("/:id", adminOnly)
		deps.BatchHandler.Register(batches)
	}

	if deps.StudentHandler != nil {
		students := api.Group("/students", jwtMiddleware)
		students.Get("", readRoles)
		students.Post("", adminOnly)
		students.Patch("/:id", adminOnly)
		students.Delete("/:id", adminOnly)
		deps.StudentHandler.Register(students)
	}

	if deps.ExamHandler != nil {
		exams := api.Group("/exams", jwtMiddleware)
		exams.Get("", readRoles)
		exams.Get("/:id", readRoles)
		exams.Post("", adminOnly)
		exams.Patch("/:id", adminOnly)
		exams.Delete("/:id", adminOnly)
		exams.Get("/:id/sets", readRoles)
		exams.Put("/:id/sets", adminOnly)
		exams.Delete("/:id/sets/:set_code", adminOnly)
		exams.Get("/:id/scores", readRoles)
		exams.Post("/:id/recompute", adminOnly)
		exams.Get("/:id/export", readRoles)
		deps.ExamHandler.Register(exams)

		if deps.AnalyticsHandler != nil {
			exams.Get("/:id/analytics", readRoles)
			deps.AnalyticsHandler.Register(exams)
		}
	}

	// both score routes write; reads live under /exams/:id/scores
	if deps.ScoreHandler != nil {
		scores := api.Group("/scores", jwtMiddleware, adminOnly)
		deps.ScoreHandler.Register(scores)
	}

	if deps.ScanHandler != nil {
		scans := api.Group("/scans", jwtMiddleware)
		if deps.UploadRateLimit != nil {
			scans.Post("", deps.UploadRateLimit)
		}
		scans.Get("", readRoles)
		scans.Get("/:id", readRoles)
		scans.Post("", readRoles)
		scans.Post("/:id/process", readRoles)
		scans.Post("/:id/review", readRoles)
		scans.Get("/:id/overlay", readRoles)
		scans.Delete("/:id", adminOnly)

		if deps.ScanEventsHandler != nil {
			deps.ScanEventsHandler.Register(scans)
		}

		deps.ScanHandler.Register(scans)
	}

	if deps.SeedHandler != nil {
		seed := api.Group("/seed")
		deps.SeedHandler.Register(seed)
	}
}
