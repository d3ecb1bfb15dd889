package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueInvoices carries invoice maintenance tasks.
	QueueInvoices = "invoices"
	// TaskInvoicesSweepOverdue persists the sent -> overdue transition for past-due invoices.
	TaskInvoicesSweepOverdue = "invoices:sweep_overdue"

	sweepMaxRetry = 3
	// A sweep requested while another is still queued is dropped.
	sweepUniqueWindow = 5 * time.Minute
)

// SweepOverduePayload describes who requested a sweep.
type SweepOverduePayload struct {
	TriggeredBy string `json:"triggered_by"`
}

// NewSweepOverdueTask constructs an overdue sweep task.
func NewSweepOverdueTask(triggeredBy string) (*asynq.Task, error) {
	if triggeredBy == "" {
		triggeredBy = "scheduler"
	}
	data, err := json.Marshal(SweepOverduePayload{TriggeredBy: triggeredBy})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvoicesSweepOverdue, data,
		asynq.Queue(QueueInvoices),
		asynq.MaxRetry(sweepMaxRetry),
		asynq.Unique(sweepUniqueWindow),
	), nil
}
