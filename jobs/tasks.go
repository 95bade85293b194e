package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity is the task type for the raw postings check.
	TaskLedgerIntegrity = "ledger:integrity"
)

// IntegrityPayload selects the company and period to check. Dates use the
// YYYY-MM-DD layout; when both are empty the job checks the current month to date.
type IntegrityPayload struct {
	CompanyID int64  `json:"company_id"`
	Start     string `json:"start,omitempty"`
	End       string `json:"end,omitempty"`
}

// NewIntegrityTask constructs an Asynq task.
func NewIntegrityTask(payload IntegrityPayload) (*asynq.Task, error) {
	if payload.CompanyID <= 0 {
		return nil, fmt.Errorf("integrity task: company id required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data, asynq.MaxRetry(3), asynq.Timeout(5*time.Minute)), nil
}

// Window resolves the payload dates against now.
func (p IntegrityPayload) Window(now time.Time) (time.Time, time.Time, error) {
	if p.Start == "" && p.End == "" {
		now = now.UTC()
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		return start, end, nil
	}
	start, err := time.Parse(time.DateOnly, p.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("integrity task: start: %w", err)
	}
	end, err := time.Parse(time.DateOnly, p.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("integrity task: end: %w", err)
	}
	return start, end, nil
}
