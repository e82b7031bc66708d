package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDriftScan recomputes account balances from the timeline and reports
	// drift against the stored values.
	TaskDriftScan = "ledger:drift_scan"
)

// DriftScanPayload controls one drift scan run.
type DriftScanPayload struct {
	// Heal rewrites drifted balances with the recomputed value.
	Heal bool `json:"heal"`
}

// NewDriftScanTask constructs an Asynq task.
func NewDriftScanTask(payload DriftScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDriftScan, data), nil
}
