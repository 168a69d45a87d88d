package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/InvoiceFox/internal/pkg/usercontext"
)

// UserContextMiddleware resolves the tenant from the headers set by the
// upstream identity provider. Missing or malformed ids leave the request anonymous.
func UserContextMiddleware(c *fiber.Ctx) error {
	raw := strings.TrimSpace(c.Get(usercontext.HeaderUserID))
	if raw == "" {
		usercontext.SetUserContext(c, usercontext.UserContext{})
		return c.Next()
	}

	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		usercontext.SetUserContext(c, usercontext.UserContext{})
		return c.Next()
	}

	role := strings.ToLower(strings.TrimSpace(c.Get(usercontext.HeaderRole)))
	usercontext.SetUserContext(c, usercontext.UserContext{
		UserID:     uint(id),
		Role:       role,
		IsLoggedIn: true,
		IsAdmin:    role == usercontext.RoleAdmin,
	})
	return c.Next()
}
