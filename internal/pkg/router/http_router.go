package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/ManuelReschke/InvoiceFox/app/controllers"
	"github.com/ManuelReschke/InvoiceFox/internal/pkg/middleware"
)

type HttpRouter struct {
	health fiber.Handler
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// Run triggers come from dashboards on other origins.
	app.Use(cors.New(cors.Config{
		// the run trigger answers its own preflight with an empty 200
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions && c.Path() == controllers.RunPreflightPath
		},
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-User-ID, X-User-Role",
		AllowMethods: "GET,POST,PUT,OPTIONS",
	}))

	// Apply UserContext middleware globally so every group can read the tenant
	app.Use(middleware.UserContextMiddleware)

	health := h.health
	if health == nil {
		health = func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"healthy": true})
		}
	}
	app.Get("/healthz", health)
}

func NewHttpRouter(health fiber.Handler) *HttpRouter {
	return &HttpRouter{health: health}
}
