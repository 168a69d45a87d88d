package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	ContractResultSuccess = "success"
	ContractResultError   = "error"
	ContractResultSkipped = "skipped"
)

const (
	ExecutionStatusSuccess = "success"
	ExecutionStatusError   = "error"
)

// ContractProcessingResult is the outcome of evaluating one contract in one run.
type ContractProcessingResult struct {
	ContractID   uint            `json:"contract_id"`
	ContractName string          `json:"contract_name"`
	UserID       uint            `json:"user_id"`
	ClientName   string          `json:"client_name"`
	Amount       decimal.Decimal `json:"amount"`
	Status       string          `json:"status"`
	IsVIP        bool            `json:"is_vip"`
	Error        string          `json:"error,omitempty"`
	InvoiceID    *uint           `json:"invoice_id,omitempty"`
	TargetDate   time.Time       `json:"target_date"`
}

// DisplayName returns the best human readable label for the result.
func (r ContractProcessingResult) DisplayName() string {
	if r.ClientName != "" {
		return r.ClientName
	}
	if r.ContractName != "" {
		return r.ContractName
	}
	return fmt.Sprintf("contract #%d", r.ContractID)
}

// RunSummary aggregates outcome counts of a run.
type RunSummary struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Errors  int `json:"errors"`
	Skipped int `json:"skipped"`
}

// Add counts one result into the summary.
func (s *RunSummary) Add(status string) {
	s.Total++
	switch status {
	case ContractResultSuccess:
		s.Success++
	case ContractResultError:
		s.Errors++
	case ContractResultSkipped:
		s.Skipped++
	}
}

// ExecutionLog is the per-tenant summary of one engine run.
type ExecutionLog struct {
	ID                   uint                                          `gorm:"primaryKey" json:"id"`
	UserID               uint                                          `gorm:"not null;index:idx_execution_logs_user_date,priority:1" json:"user_id"`
	RunID                string                                        `gorm:"type:varchar(36);not null;index" json:"run_id"`
	Source               string                                        `gorm:"type:varchar(50)" json:"source"`
	ExecutionDate        time.Time                                     `gorm:"type:date;not null;index:idx_execution_logs_user_date,priority:2" json:"execution_date"`
	Status               string                                        `gorm:"type:varchar(20);not null" json:"status"`
	InvoicesCreatedCount int                                           `gorm:"not null;default:0" json:"invoices_created_count"`
	ErrorMessage         *string                                       `gorm:"type:text" json:"error_message"`
	AffectedContracts    datatypes.JSONSlice[ContractProcessingResult] `gorm:"type:json" json:"affected_contracts"`
	AlertSent            bool                                          `gorm:"not null;default:false" json:"alert_sent"`
	AlertSentAt          *time.Time                                    `gorm:"type:timestamp;default:null" json:"alert_sent_at,omitempty"`
	CreatedAt            time.Time                                     `gorm:"autoCreateTime" json:"created_at"`
}

func (ExecutionLog) TableName() string {
	return "recurring_execution_logs"
}
