package cron

import (
	"context"
	"fmt"

	"github.com/stagetrak/stagetrak-backend/pkg/logger"
)

// lockSweeper is the slice of the lock coordinator the job needs.
type lockSweeper interface {
	SweepOrphans(ctx context.Context) (int, error)
}

// OrphanLockJobParams configures the orphan lock sweep.
type OrphanLockJobParams struct {
	Logger *logger.Logger
	Locks  lockSweeper
}

// NewOrphanLockJob constructs the job that releases edit locks whose holder
// no longer resolves to an active user. Safe to run repeatedly.
func NewOrphanLockJob(params OrphanLockJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("lock coordinator required")
	}
	return &orphanLockJob{logg: params.Logger, locks: params.Locks}, nil
}

type orphanLockJob struct {
	logg  *logger.Logger
	locks lockSweeper
}

func (j *orphanLockJob) Name() string { return "orphan-lock-sweep" }

func (j *orphanLockJob) Run(ctx context.Context) error {
	released, err := j.locks.SweepOrphans(ctx)
	if err != nil {
		return fmt.Errorf("sweep orphan locks: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"released": released})
	j.logg.Info(logCtx, "orphan lock sweep complete")
	return nil
}
