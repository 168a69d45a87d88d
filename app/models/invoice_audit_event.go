package models

import (
	"time"

	"gorm.io/datatypes"
)

const AuditEventAutoGenerated = "auto_generated"

// InvoiceAuditPayload ties an automatic invoice back to the contract and run that created it.
type InvoiceAuditPayload struct {
	ContractID   uint      `json:"contract_id"`
	ContractName string    `json:"contract_name"`
	ChargeDay    int       `json:"charge_day"`
	GeneratedAt  time.Time `json:"generated_at"`
	RunID        string    `json:"run_id,omitempty"`
}

type InvoiceAuditEvent struct {
	ID        uint                                    `gorm:"primaryKey" json:"id"`
	InvoiceID uint                                    `gorm:"not null;index" json:"invoice_id"`
	EventType string                                  `gorm:"type:varchar(50);not null;index" json:"event_type"`
	Message   string                                  `gorm:"type:text" json:"message"`
	Payload   datatypes.JSONType[InvoiceAuditPayload] `gorm:"type:json" json:"payload"`
	CreatedAt time.Time                               `gorm:"autoCreateTime" json:"created_at"`
}
