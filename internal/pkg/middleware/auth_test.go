package middleware

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/InvoiceFox/internal/pkg/usercontext"
)

func newTestApp(handlers ...fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Use(UserContextMiddleware)
	chain := append([]fiber.Handler{}, handlers...)
	chain = append(chain, func(c *fiber.Ctx) error {
		return c.JSON(usercontext.GetUserContext(c))
	})
	app.Get("/", chain...)
	app.Options("/", chain...)
	return app
}

func TestUserContextMiddleware(t *testing.T) {
	app := newTestApp()

	tests := []struct {
		name    string
		headers map[string]string
		want    usercontext.UserContext
	}{
		{name: "anonymous", want: usercontext.UserContext{}},
		{name: "malformed id", headers: map[string]string{"X-User-ID": "abc"}, want: usercontext.UserContext{}},
		{name: "zero id", headers: map[string]string{"X-User-ID": "0"}, want: usercontext.UserContext{}},
		{
			name:    "tenant",
			headers: map[string]string{"X-User-ID": " 42 "},
			want:    usercontext.UserContext{UserID: 42, IsLoggedIn: true},
		},
		{
			name:    "admin role",
			headers: map[string]string{"X-User-ID": "7", "X-User-Role": "Admin"},
			want:    usercontext.UserContext{UserID: 7, Role: "admin", IsLoggedIn: true, IsAdmin: true},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			var got usercontext.UserContext
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRequireUser(t *testing.T) {
	app := newTestApp(RequireUser)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set("X-User-ID", "3")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireAdmin(t *testing.T) {
	app := newTestApp(RequireAdmin)

	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set("X-User-ID", "3")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set("X-User-ID", "3")
	req.Header.Set("X-User-Role", "admin")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireTriggerSecret(t *testing.T) {
	app := newTestApp(RequireTriggerSecret("s3cret"))

	tests := []struct {
		name   string
		method string
		auth   string
		want   int
	}{
		{name: "missing header", method: fiber.MethodGet, want: fiber.StatusUnauthorized},
		{name: "wrong secret", method: fiber.MethodGet, auth: "Bearer nope", want: fiber.StatusUnauthorized},
		{name: "not bearer", method: fiber.MethodGet, auth: "Basic s3cret", want: fiber.StatusUnauthorized},
		{name: "valid", method: fiber.MethodGet, auth: "Bearer s3cret", want: fiber.StatusOK},
		{name: "case insensitive scheme", method: fiber.MethodGet, auth: "bearer s3cret", want: fiber.StatusOK},
		{name: "preflight passes", method: fiber.MethodOptions, want: fiber.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/", nil)
			if tc.auth != "" {
				req.Header.Set("Authorization", tc.auth)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestRequireTriggerSecret_DisabledWhenEmpty(t *testing.T) {
	app := newTestApp(RequireTriggerSecret("  "))

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
