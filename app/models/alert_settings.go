package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// AlertSettings configures where a tenant is notified about failed recurring runs.
type AlertSettings struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	Email          string    `gorm:"type:varchar(255)" json:"email" validate:"required_if=EmailEnabled true,omitempty,email"`
	EmailEnabled   bool      `gorm:"not null;default:false" json:"email_enabled"`
	WebhookURL     string    `gorm:"type:varchar(2048)" json:"webhook_url" validate:"required_if=WebhookEnabled true,omitempty,http_url"`
	WebhookEnabled bool      `gorm:"not null;default:false" json:"webhook_enabled"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (AlertSettings) TableName() string {
	return "recurring_alert_settings"
}

var alertSettingsValidator = validator.New()

// Validate checks address formats; an enabled channel needs a target.
func (s *AlertSettings) Validate() error {
	s.Email = strings.TrimSpace(s.Email)
	s.WebhookURL = strings.TrimSpace(s.WebhookURL)
	return alertSettingsValidator.Struct(s)
}

// EmailActive reports whether the email channel can be used.
func (s *AlertSettings) EmailActive() bool {
	return s != nil && s.EmailEnabled && strings.TrimSpace(s.Email) != ""
}

// WebhookActive reports whether the webhook channel can be used.
func (s *AlertSettings) WebhookActive() bool {
	return s != nil && s.WebhookEnabled && strings.TrimSpace(s.WebhookURL) != ""
}

// HasActiveChannel is false for nil settings or when both channels are off.
func (s *AlertSettings) HasActiveChannel() bool {
	return s.EmailActive() || s.WebhookActive()
}
