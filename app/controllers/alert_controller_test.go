package controllers

import (
	"errors"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/InvoiceFox/app/models"
	"github.com/ManuelReschke/InvoiceFox/internal/pkg/alerting"
)

var tenant7 = map[string]string{"X-User-ID": "7"}

func newAlertApp(ac *AlertController) *fiber.App {
	return newTestApp(func(app *fiber.App) {
		app.Post("/alerts/test", ac.HandleTest)
		app.Get("/alerts/settings", ac.HandleGetSettings)
		app.Put("/alerts/settings", ac.HandlePutSettings)
	})
}

func TestHandleTest_ExplicitTargets(t *testing.T) {
	tester := &fakeTester{result: alerting.TestAlertResult{
		Success: true,
		Webhook: alerting.ChannelResult{Attempted: true, Sent: true},
	}}
	app := newAlertApp(NewAlertController(tester, &fakeSettings{}))

	status, body := doRequest(t, app, fiber.MethodPost, "/alerts/test",
		`{"webhook_url":"https://hooks.example.com/a","webhook_enabled":true}`, tenant7)

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"])
	require.Len(t, tester.got, 1)
	assert.Equal(t, uint(7), tester.got[0].UserID)
	assert.Equal(t, "https://hooks.example.com/a", tester.got[0].WebhookURL)
	assert.False(t, tester.got[0].EmailEnabled)
}

func TestHandleTest_FallsBackToStoredSettings(t *testing.T) {
	tester := &fakeTester{}
	settings := &fakeSettings{byUser: map[uint]*models.AlertSettings{
		7: {UserID: 7, Email: "ops@example.com", EmailEnabled: true, WebhookURL: "https://hooks.example.com/x"},
	}}
	app := newAlertApp(NewAlertController(tester, settings))

	status, _ := doRequest(t, app, fiber.MethodPost, "/alerts/test", "", tenant7)

	assert.Equal(t, fiber.StatusOK, status)
	require.Len(t, tester.got, 1)
	assert.True(t, tester.got[0].EmailEnabled)
	assert.Equal(t, "ops@example.com", tester.got[0].Email)
	assert.False(t, tester.got[0].WebhookEnabled, "disabled channel stays disabled")
}

func TestHandleTest_Rejections(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "no channel and no stored settings", body: ""},
		{name: "enabled email without address", body: `{"email_enabled":true}`},
		{name: "malformed webhook url", body: `{"webhook_enabled":true,"webhook_url":"not a url"}`},
		{name: "malformed json", body: `{"email":`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tester := &fakeTester{}
			app := newAlertApp(NewAlertController(tester, &fakeSettings{}))

			status, body := doRequest(t, app, fiber.MethodPost, "/alerts/test", tc.body, tenant7)

			assert.Equal(t, fiber.StatusBadRequest, status)
			assert.Equal(t, false, body["success"])
			assert.Empty(t, tester.got)
		})
	}
}

func TestHandleGetSettings(t *testing.T) {
	settings := &fakeSettings{byUser: map[uint]*models.AlertSettings{
		7: {ID: 3, UserID: 7, WebhookURL: "https://hooks.example.com/x", WebhookEnabled: true},
	}}
	app := newAlertApp(NewAlertController(&fakeTester{}, settings))

	status, body := doRequest(t, app, fiber.MethodGet, "/alerts/settings", "", tenant7)
	require.Equal(t, fiber.StatusOK, status)
	got := body["settings"].(map[string]interface{})
	assert.Equal(t, true, got["webhook_enabled"])

	status, body = doRequest(t, app, fiber.MethodGet, "/alerts/settings", "", map[string]string{"X-User-ID": "8"})
	require.Equal(t, fiber.StatusOK, status)
	got = body["settings"].(map[string]interface{})
	assert.EqualValues(t, 8, got["user_id"])
	assert.Equal(t, false, got["email_enabled"])
	assert.Equal(t, false, got["webhook_enabled"])
}

func TestHandleGetSettings_StoreFailure(t *testing.T) {
	app := newAlertApp(NewAlertController(&fakeTester{}, &fakeSettings{err: errors.New("db down")}))
	status, _ := doRequest(t, app, fiber.MethodGet, "/alerts/settings", "", tenant7)
	assert.Equal(t, fiber.StatusInternalServerError, status)
}

func TestHandlePutSettings(t *testing.T) {
	settings := &fakeSettings{}
	app := newAlertApp(NewAlertController(&fakeTester{}, settings))

	status, body := doRequest(t, app, fiber.MethodPut, "/alerts/settings",
		`{"user_id":99,"email":" billing@example.com ","email_enabled":true}`, tenant7)

	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"])
	stored := settings.byUser[7]
	require.NotNil(t, stored, "tenant from header wins over body")
	assert.Nil(t, settings.byUser[99])
	assert.Equal(t, "billing@example.com", stored.Email)
}

func TestHandlePutSettings_Validation(t *testing.T) {
	settings := &fakeSettings{}
	app := newAlertApp(NewAlertController(&fakeTester{}, settings))

	status, _ := doRequest(t, app, fiber.MethodPut, "/alerts/settings", `{"email":"nope","email_enabled":true}`, tenant7)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = doRequest(t, app, fiber.MethodPut, "/alerts/settings", `{"webhook_enabled":true}`, tenant7)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Empty(t, settings.byUser)
}

func TestHandlePutSettings_StoreFailure(t *testing.T) {
	app := newAlertApp(NewAlertController(&fakeTester{}, &fakeSettings{err: errors.New("db down")}))
	status, _ := doRequest(t, app, fiber.MethodPut, "/alerts/settings", `{"email_enabled":false}`, tenant7)
	assert.Equal(t, fiber.StatusInternalServerError, status)
}
