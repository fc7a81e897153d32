package reconcile

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stagetrak/stagetrak-backend/pkg/db/models"
	"github.com/stagetrak/stagetrak-backend/pkg/enums"
	"github.com/stagetrak/stagetrak-backend/pkg/errors"
	"github.com/stagetrak/stagetrak-backend/pkg/logger"
)

// Engine recomputes stage outputs from the defect ledger and pushes the
// result forward through the order's started downstream stages. Every call
// runs inside the caller's transaction: a cascade is applied completely or
// not at all.
type Engine struct {
	repo Repository
	logg *logger.Logger
}

func NewEngine(repo Repository, logg *logger.Logger) *Engine {
	return &Engine{repo: repo, logg: logg}
}

// RecomputeFrom recalculates the output of the given stage instance from its
// current input and ledger, then cascades: each downstream instance that has
// already been started takes the previous stage's output as its input and is
// recomputed in turn. Instances that were never started are left untouched;
// the cascade never starts a stage.
func (e *Engine) RecomputeFrom(ctx context.Context, tx *gorm.DB, stageInstanceID uuid.UUID) error {
	repo := e.repo.WithTx(tx)

	start, err := repo.InstanceByID(ctx, stageInstanceID)
	if err != nil {
		return errors.Wrap(errors.CodeNotFound, err, "stage instance not found")
	}

	instances, err := repo.InstancesByOrder(ctx, start.OrderID)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "loading order stage instances")
	}

	carry := start.InputQty
	recomputing := false
	for _, instance := range instances {
		if instance.ID == start.ID {
			recomputing = true
		}
		if !recomputing {
			continue
		}
		if instance.Status == enums.StageStatusNotStarted {
			break
		}
		if instance.ID != start.ID {
			// Downstream input is the upstream output.
			instance.InputQty = carry
		}

		rows, err := repo.RowsByStage(ctx, instance.ID)
		if err != nil {
			return errors.Wrap(errors.CodeInternal, err, "loading defect ledger for recompute")
		}
		output := Output(instance.InputQty, rows)
		if err := repo.UpdateIO(ctx, instance.ID, instance.InputQty, output); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "persisting recomputed stage quantities")
		}
		carry = output
	}
	return nil
}

// OutputOf computes (without persisting) the output the given stage would
// have under its current ledger.
func (e *Engine) OutputOf(ctx context.Context, tx *gorm.DB, instance models.StageInstance) (int, error) {
	rows, err := e.repo.WithTx(tx).RowsByStage(ctx, instance.ID)
	if err != nil {
		return 0, errors.Wrap(errors.CodeInternal, err, "loading defect ledger")
	}
	return Output(instance.InputQty, rows), nil
}
