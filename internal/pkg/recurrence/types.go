package recurrence

import (
	"errors"
	"time"

	"github.com/ManuelReschke/InvoiceFox/app/models"
)

var (
	// ErrInvalidTargetDate marks a request whose target_date is not a calendar date.
	ErrInvalidTargetDate = errors.New("Invalid target_date: expected a calendar date in YYYY-MM-DD format")
	// ErrInvalidRequest marks any other malformed request field.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotConfigured is returned when the engine is missing a required repository.
	ErrNotConfigured = errors.New("recurrence engine is not configured")
)

// IsValidationError reports whether err rejects the request itself rather
// than an infrastructure failure.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidTargetDate) || errors.Is(err, ErrInvalidRequest)
}

const (
	ModeScheduled = "scheduled"
	ModeForced    = "forced"
	ModeReprocess = "reprocess"
	ModeSelective = "selective"
)

const (
	MessageAlreadyIssued = "invoice already issued for this period"
	MessageLocked        = "another run is processing this contract for this period"
)

// Request describes one invocation of the engine. All fields are optional.
type Request struct {
	Source      string `json:"source" validate:"max=100"`
	Manual      bool   `json:"manual"`
	Force       bool   `json:"force"`
	TargetDate  string `json:"target_date" validate:"omitempty,datetime=2006-01-02"`
	ContractIDs []uint `json:"contract_ids" validate:"omitempty,dive,gt=0"`
}

// Detail is the compact per-contract line shown by dashboards.
type Detail struct {
	Client  string `json:"client"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Response is the outcome of one run.
type Response struct {
	Success    bool                              `json:"success"`
	RunID      string                            `json:"run_id"`
	Mode       string                            `json:"mode"`
	Processed  int                               `json:"processed"`
	Details    []Detail                          `json:"details"`
	Message    string                            `json:"message"`
	TargetDate time.Time                         `json:"target_date"`
	Summary    models.RunSummary                 `json:"summary"`
	Results    []models.ContractProcessingResult `json:"results"`
}
