package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/aquaflow-backend/internal/subscriptions"
	"github.com/angelmondragon/aquaflow-backend/pkg/logger"
)

// SubscriptionBatchJobName is the registry name of the daily materialization run.
const SubscriptionBatchJobName = "subscription-batch"

type batchRunner interface {
	RunBatch(ctx context.Context, today time.Time) (*subscriptions.BatchReport, error)
}

type SubscriptionBatchJobParams struct {
	Logger       *logger.Logger
	Materializer batchRunner
	Location     *time.Location
	Now          func() time.Time
}

// SubscriptionBatchJob turns due subscriptions into orders for the scheduler's
// calendar date.
type SubscriptionBatchJob struct {
	logg         *logger.Logger
	materializer batchRunner
	loc          *time.Location
	now          func() time.Time
}

func NewSubscriptionBatchJob(params SubscriptionBatchJobParams) (*SubscriptionBatchJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Materializer == nil {
		return nil, fmt.Errorf("materializer required")
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &SubscriptionBatchJob{
		logg:         params.Logger,
		materializer: params.Materializer,
		loc:          loc,
		now:          now,
	}, nil
}

func (j *SubscriptionBatchJob) Name() string { return SubscriptionBatchJobName }

// Run materializes today's deliveries. Per-subscription failures are logged
// and left for the next run; only a batch that cannot start is an error.
func (j *SubscriptionBatchJob) Run(ctx context.Context) error {
	_, err := j.RunFor(ctx, subscriptions.Today(j.now(), j.loc))
	return err
}

// RunFor runs the batch for an explicit calendar date.
func (j *SubscriptionBatchJob) RunFor(ctx context.Context, date time.Time) (*subscriptions.BatchReport, error) {
	report, err := j.materializer.RunBatch(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("subscription batch: %w", err)
	}
	if report.Errors != nil {
		j.logg.Warn(j.logg.WithFields(ctx, map[string]any{
			"date":   report.Date.Format(time.DateOnly),
			"failed": report.Failed,
			"errors": report.Errors.Error(),
		}), "subscription batch finished with failures")
	}
	return report, nil
}
