package controllers

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/InvoiceFox/app/models"
	"github.com/ManuelReschke/InvoiceFox/internal/pkg/alerting"
	"github.com/ManuelReschke/InvoiceFox/internal/pkg/usercontext"
)

// AlertTester delivers a test alert to explicit targets.
type AlertTester interface {
	SendTest(ctx context.Context, t alerting.TestAlert) alerting.TestAlertResult
}

// AlertSettingsStore reads and writes tenant alert settings.
type AlertSettingsStore interface {
	Get(ctx context.Context, userID uint) (*models.AlertSettings, error)
	Save(ctx context.Context, settings *models.AlertSettings) error
}

type AlertController struct {
	tester   AlertTester
	settings AlertSettingsStore
}

func NewAlertController(tester AlertTester, settings AlertSettingsStore) *AlertController {
	return &AlertController{tester: tester, settings: settings}
}

// HandleTest sends a test alert. Without channel flags in the body the
// stored settings of the tenant are used.
func (ac *AlertController) HandleTest(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)

	var t alerting.TestAlert
	if err := decodeOptionalJSON(c, &t); err != nil {
		return badRequest(c, "Invalid request body")
	}
	t.UserID = userID

	if !t.EmailEnabled && !t.WebhookEnabled {
		stored, err := ac.settings.Get(c.UserContext(), userID)
		if err != nil {
			log.Errorf("[AlertController] Loading settings for user %d failed: %v", userID, err)
			return internalError(c, "failed to load alert settings")
		}
		if stored.HasActiveChannel() {
			t.Email, t.EmailEnabled = stored.Email, stored.EmailActive()
			t.WebhookURL, t.WebhookEnabled = stored.WebhookURL, stored.WebhookActive()
		}
	}

	if err := t.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	result := ac.tester.SendTest(c.UserContext(), t)
	return c.JSON(result)
}

// HandleGetSettings returns the tenant settings, or disabled defaults.
func (ac *AlertController) HandleGetSettings(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)

	settings, err := ac.settings.Get(c.UserContext(), userID)
	if err != nil {
		log.Errorf("[AlertController] Loading settings for user %d failed: %v", userID, err)
		return internalError(c, "failed to load alert settings")
	}
	if settings == nil {
		settings = &models.AlertSettings{UserID: userID}
	}
	return c.JSON(fiber.Map{"success": true, "settings": settings})
}

// HandlePutSettings validates and stores the tenant settings.
func (ac *AlertController) HandlePutSettings(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)

	var input models.AlertSettings
	if err := decodeOptionalJSON(c, &input); err != nil {
		return badRequest(c, "Invalid request body")
	}
	settings := &models.AlertSettings{
		UserID:         userID,
		Email:          input.Email,
		EmailEnabled:   input.EmailEnabled,
		WebhookURL:     input.WebhookURL,
		WebhookEnabled: input.WebhookEnabled,
	}

	if err := ac.settings.Save(c.UserContext(), settings); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return badRequest(c, err.Error())
		}
		log.Errorf("[AlertController] Saving settings for user %d failed: %v", userID, err)
		return internalError(c, "failed to save alert settings")
	}
	return c.JSON(fiber.Map{"success": true, "settings": settings})
}
