package jobqueue

import (
	"encoding/json"
	"time"

	"github.com/ManuelReschke/InvoiceFox/internal/pkg/recurrence"
)

type JobType string

const (
	JobTypeRecurringRun JobType = "recurring_run"
)

// JobStatus is stored on the job and used as a field of the job_stats hash.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job is the JSON document kept under job:<id>.
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	Result      json.RawMessage        `json:"result,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// RecurringRunJobPayload is the stored form of a recurrence.Request.
type RecurringRunJobPayload struct {
	Source      string `json:"source"`
	Manual      bool   `json:"manual"`
	Force       bool   `json:"force"`
	TargetDate  string `json:"target_date,omitempty"`
	ContractIDs []uint `json:"contract_ids,omitempty"`
}

// NewRecurringRunJobPayload copies an engine request into a job payload
func NewRecurringRunJobPayload(req recurrence.Request) RecurringRunJobPayload {
	return RecurringRunJobPayload{
		Source:      req.Source,
		Manual:      req.Manual,
		Force:       req.Force,
		TargetDate:  req.TargetDate,
		ContractIDs: req.ContractIDs,
	}
}

func (p RecurringRunJobPayload) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"source": p.Source,
		"manual": p.Manual,
		"force":  p.Force,
	}
	if p.TargetDate != "" {
		m["target_date"] = p.TargetDate
	}
	if len(p.ContractIDs) > 0 {
		m["contract_ids"] = p.ContractIDs
	}
	return m
}

// Request converts the payload back into an engine request
func (p RecurringRunJobPayload) Request() recurrence.Request {
	return recurrence.Request{
		Source:      p.Source,
		Manual:      p.Manual,
		Force:       p.Force,
		TargetDate:  p.TargetDate,
		ContractIDs: p.ContractIDs,
	}
}

// RecurringRunJobPayloadFromMap decodes a payload read back from Redis.
func RecurringRunJobPayloadFromMap(data map[string]interface{}) (*RecurringRunJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var payload RecurringRunJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// startedAt is when the current attempt began.
func (j *Job) startedAt() time.Time {
	if j.ProcessedAt != nil && !j.ProcessedAt.IsZero() {
		return *j.ProcessedAt
	}
	return j.UpdatedAt
}

// IsRetryable reports whether a failed job has attempts left.
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed counts the attempt and keeps the error for GET /jobs/:id.
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
