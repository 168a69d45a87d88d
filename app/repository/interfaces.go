package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/InvoiceFox/app/models"
)

// ErrInvoiceAlreadyExists is returned when an automatic invoice for the same
// contract and billing period has already been stored.
var ErrInvoiceAlreadyExists = errors.New("invoice already exists for contract and billing period")

// DueContract is an active contract joined with its client's display name.
type DueContract struct {
	models.RecurringContract
	ClientName string `gorm:"column:client_name" json:"client_name"`
}

// ContractFilter narrows the contracts returned by ListActive. A nil ChargeDay
// and an empty IDs slice select every active contract.
type ContractFilter struct {
	ChargeDay        *int
	IDs              []uint
	RequireAutoIssue bool
}

// ContractRepository defines read access to recurring contracts
type ContractRepository interface {
	ListActive(ctx context.Context, filter ContractFilter) ([]DueContract, error)
}

// InvoiceRepository defines the invoice operations the recurrence engine needs
type InvoiceRepository interface {
	// FindForContractInPeriod returns nil, nil when no invoice exists in [from, to).
	FindForContractInPeriod(ctx context.Context, contractID uint, from, to time.Time) (*models.Invoice, error)
	// CreateDraft stores the invoice or returns ErrInvoiceAlreadyExists.
	CreateDraft(ctx context.Context, invoice *models.Invoice) error
}

// AuditRepository stores invoice audit events
type AuditRepository interface {
	Create(ctx context.Context, event *models.InvoiceAuditEvent) error
}

// ExecutionLogRepository stores per-tenant run summaries
type ExecutionLogRepository interface {
	Create(ctx context.Context, log *models.ExecutionLog) error
	MarkAlertSent(ctx context.Context, id uint, at time.Time) error
	ListByUser(ctx context.Context, userID uint, offset, limit int) ([]models.ExecutionLog, int64, error)
}

// AlertSettingsRepository stores per-tenant alert configuration
type AlertSettingsRepository interface {
	// GetByUser returns nil, nil when the tenant never configured alerts.
	GetByUser(ctx context.Context, userID uint) (*models.AlertSettings, error)
	Upsert(ctx context.Context, settings *models.AlertSettings) error
}

// Repositories holds all repository instances
type Repositories struct {
	Contract      ContractRepository
	Invoice       InvoiceRepository
	Audit         AuditRepository
	ExecutionLog  ExecutionLogRepository
	AlertSettings AlertSettingsRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Contract:      NewContractRepository(db),
		Invoice:       NewInvoiceRepository(db),
		Audit:         NewAuditRepository(db),
		ExecutionLog:  NewExecutionLogRepository(db),
		AlertSettings: NewAlertSettingsRepository(db),
	}
}
