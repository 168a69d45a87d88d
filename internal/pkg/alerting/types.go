package alerting

import (
	"time"

	"github.com/ManuelReschke/InvoiceFox/app/models"
)

const (
	WebhookTypeFailed = "recurring_invoices_failed"
	WebhookTypeTest   = "recurring_invoices_test"
)

// FailureAlert is handed to the dispatcher once per tenant with failed contracts.
type FailureAlert struct {
	UserID         uint
	ExecutionLogID uint
	RunID          string
	ExecutionDate  time.Time
	Failed         []models.ContractProcessingResult
	Summary        models.RunSummary
}

// WebhookPayload is the JSON body posted to tenant webhooks.
type WebhookPayload struct {
	Type            string                            `json:"type"`
	UserID          uint                              `json:"user_id"`
	RunID           string                            `json:"run_id,omitempty"`
	ExecutionDate   string                            `json:"execution_date"`
	Summary         models.RunSummary                 `json:"summary"`
	FailedContracts []models.ContractProcessingResult `json:"failed_contracts"`
}

// TestAlert carries explicit targets that need not match the stored settings.
type TestAlert struct {
	UserID         uint   `json:"-"`
	Email          string `json:"email" validate:"required_if=EmailEnabled true,omitempty,email"`
	EmailEnabled   bool   `json:"email_enabled"`
	WebhookURL     string `json:"webhook_url" validate:"required_if=WebhookEnabled true,omitempty,http_url"`
	WebhookEnabled bool   `json:"webhook_enabled"`
}

// ChannelResult reports one delivery attempt.
type ChannelResult struct {
	Attempted bool   `json:"attempted"`
	Sent      bool   `json:"sent"`
	Error     string `json:"error,omitempty"`
}

type TestAlertResult struct {
	Success bool          `json:"success"`
	Email   ChannelResult `json:"email"`
	Webhook ChannelResult `json:"webhook"`
}
