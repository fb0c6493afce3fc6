package jobs

import (
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReportWarmup is the task type for precomputing visitor reports.
	TaskReportWarmup = "reports:warmup"
)

// NewReportWarmupTask constructs the report warmup task. It carries no
// payload; the handler derives its windows from the current date.
func NewReportWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskReportWarmup, nil)
}
