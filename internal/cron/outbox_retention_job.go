package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/aquaflow-backend/pkg/logger"
)

const (
	defaultRetentionDays = 30
	retentionChunk       = 500
)

type outboxPruner interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxPruner
	// Retention is in days; zero means the default of 30.
	Retention int
	ChunkSize int
}

// NewOutboxRetentionJob prunes published outbox rows older than the
// retention window. Deletes run in short chunked transactions so the job
// never holds locks the publisher is waiting on.
func NewOutboxRetentionJob(p OutboxRetentionJobParams) (Job, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger required")
	case p.DB == nil:
		return nil, errors.New("db runner required")
	case p.Repository == nil:
		return nil, errors.New("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:  p.Logger,
		db:    p.DB,
		repo:  p.Repository,
		days:  p.Retention,
		chunk: p.ChunkSize,
		now:   time.Now,
	}
	if job.days <= 0 {
		job.days = defaultRetentionDays
	}
	if job.chunk <= 0 {
		job.chunk = retentionChunk
	}
	return job, nil
}

type outboxRetentionJob struct {
	logg  *logger.Logger
	db    txRunner
	repo  outboxPruner
	days  int
	chunk int
	now   func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.days)

	var total int64
	for chunks := 0; ; chunks++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		var n int64
		err := j.db.WithTx(ctx, func(tx *gorm.DB) (err error) {
			n, err = j.repo.DeletePublishedBefore(ctx, tx, cutoff, j.chunk)
			return err
		})
		if err != nil {
			return fmt.Errorf("outbox retention after %d rows: %w", total, err)
		}
		total += n
		if n < int64(j.chunk) {
			j.logg.Info(j.logg.WithFields(ctx, map[string]any{
				"cutoff":         cutoff.Format(time.RFC3339),
				"retention_days": j.days,
				"rows_deleted":   total,
				"chunks":         chunks + 1,
			}), "outbox.retention.done")
			return nil
		}
	}
}
