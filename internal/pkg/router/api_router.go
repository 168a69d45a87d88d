package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/InvoiceFox/app/controllers"
	"github.com/ManuelReschke/InvoiceFox/internal/pkg/middleware"
)

// Handlers are the controllers and guards mounted under /api/v1.
type Handlers struct {
	Recurrence    *controllers.RecurrenceController
	Alerts        *controllers.AlertController
	Logs          *controllers.ExecutionLogController
	TriggerSecret string
	// RateLimit guards the run trigger. Nil disables limiting.
	RateLimit fiber.Handler
	// Health serves /healthz. Nil answers healthy unconditionally.
	Health fiber.Handler
}

type ApiRouter struct {
	h Handlers
}

func (r ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api")
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")

	recurring := v1.Group("/recurring-invoices")
	if rc := r.h.Recurrence; rc != nil {
		recurring.Options("/run", rc.HandleRunOptions)
		recurring.Post("/run", r.triggered(rc.HandleRun)...)
		recurring.Post("/jobs", r.triggered(rc.HandleEnqueue)...)
		recurring.Get("/jobs", middleware.RequireAdmin, rc.HandleQueueStats)
		recurring.Get("/jobs/:id", middleware.RequireTriggerSecret(r.h.TriggerSecret), rc.HandleJobStatus)
		recurring.Get("/stats", middleware.RequireAdmin, rc.HandleStats)
	}
	if lc := r.h.Logs; lc != nil {
		recurring.Get("/logs", middleware.RequireUser, lc.HandleList)
	}

	if ac := r.h.Alerts; ac != nil {
		alerts := v1.Group("/alerts", middleware.RequireUser)
		alerts.Post("/test", ac.HandleTest)
		alerts.Get("/settings", ac.HandleGetSettings)
		alerts.Put("/settings", ac.HandlePutSettings)
	}
}

// triggered prepends the trigger secret and rate limit to handler.
func (r ApiRouter) triggered(handler fiber.Handler) []fiber.Handler {
	chain := []fiber.Handler{middleware.RequireTriggerSecret(r.h.TriggerSecret)}
	if r.h.RateLimit != nil {
		chain = append(chain, r.h.RateLimit)
	}
	return append(chain, handler)
}

func NewApiRouter(h Handlers) *ApiRouter {
	return &ApiRouter{h: h}
}
