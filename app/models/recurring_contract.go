package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ContractStatusActive = "active"
	ContractStatusPaused = "paused"
)

// RecurringContract bills a fixed client a fixed amount on ChargeDay of every month.
type RecurringContract struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	UserID             uint            `gorm:"not null;index" json:"user_id"`
	ClientID           uint            `gorm:"not null;index" json:"client_id"`
	Name               string          `gorm:"type:varchar(255);not null" json:"name" validate:"required,max=255"`
	Amount             decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	ServiceDescription string          `gorm:"type:text" json:"service_description"`
	ChargeDay          int             `gorm:"not null;index:idx_recurring_contracts_due,priority:2" json:"charge_day" validate:"min=1,max=31"`
	AutoIssue          bool            `gorm:"not null;index:idx_recurring_contracts_due,priority:3" json:"auto_issue"`
	IsVIP              bool            `gorm:"column:is_vip;not null;default:false" json:"is_vip"`
	Status             string          `gorm:"type:varchar(20);not null;default:'active';index:idx_recurring_contracts_due,priority:1" json:"status" validate:"oneof=active paused"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsActive reports whether the contract may be picked up by the engine.
func (c *RecurringContract) IsActive() bool {
	return c.Status == ContractStatusActive
}
