package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	InvoiceStatusDraft      = "draft"
	InvoiceStatusProcessing = "processing"
	InvoiceStatusIssued     = "issued"
	InvoiceStatusCancelled  = "cancelled"
)

// BillingPeriodLayout formats the calendar month an automatic invoice belongs to.
const BillingPeriodLayout = "2006-01"

// Invoice is a tenant invoice. Automatic invoices carry RecurringContractID and
// BillingPeriod; the unique index on both columns allows one invoice per contract
// per month. Manual invoices leave both NULL.
type Invoice struct {
	ID                  uint            `gorm:"primaryKey" json:"id"`
	UserID              uint            `gorm:"not null;index" json:"user_id"`
	ClientID            uint            `gorm:"not null;index" json:"client_id"`
	RecurringContractID *uint           `gorm:"index:ux_invoices_contract_period,unique,priority:1" json:"recurring_contract_id"`
	BillingPeriod       *string         `gorm:"type:char(7);index:ux_invoices_contract_period,unique,priority:2" json:"billing_period,omitempty"`
	Amount              decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	ServiceDescription  string          `gorm:"type:text" json:"service_description"`
	EmissionDate        time.Time       `gorm:"type:datetime;not null;index" json:"emission_date"`
	Status              string          `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsRecurring reports whether the invoice was generated from a recurring contract.
func (i *Invoice) IsRecurring() bool {
	return i.RecurringContractID != nil
}
