package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gatehouse-vms/gatehouse/internal/visitors"
)

// ReportWarmupJob precomputes the visitor report caches so the first report
// reader after the cache expires does not pay for the aggregate queries.
type ReportWarmupJob struct {
	Reporter *visitors.Reporter
	Logger   *slog.Logger
	clock    func() time.Time
}

// NewReportWarmupJob wires dependencies for the warmup handler.
func NewReportWarmupJob(reporter *visitors.Reporter, logger *slog.Logger) *ReportWarmupJob {
	return &ReportWarmupJob{
		Reporter: reporter,
		Logger:   logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes report warmup tasks.
func (j *ReportWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reporter == nil {
		return errors.New("report warmup: handler not configured")
	}

	logger := j.logger()
	logger.Info("starting report warmup")

	jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	start := j.now()
	if err := j.Reporter.Warm(jobCtx); err != nil {
		logger.Error("report warmup failed", slog.Any("error", err))
		return err
	}

	logger.Info("completed report warmup", slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *ReportWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportWarmup))
	}
	return slog.Default().With(slog.String("job", TaskReportWarmup))
}

func (j *ReportWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
