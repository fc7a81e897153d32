package locks

import (
	"context"
	stdErrors "errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/stagetrak/stagetrak-backend/internal/directory"
	"github.com/stagetrak/stagetrak-backend/pkg/db/models"
	"github.com/stagetrak/stagetrak-backend/pkg/errors"
	"github.com/stagetrak/stagetrak-backend/pkg/logger"
)

// Service is the exclusive per-order edit lock coordinator. Exactly one user
// holds the lock on an order at a time; every mutating workflow verifies the
// lease before touching the order's stages or ledgers.
type Service struct {
	repo      Repository
	directory directory.Repository
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(repo Repository, dir directory.Repository, logg *logger.Logger) *Service {
	return &Service{
		repo:      repo,
		directory: dir,
		logg:      logg,
		now:       time.Now,
	}
}

type AcquireInput struct {
	OrderID  uuid.UUID
	UserID   uuid.UUID
	UserName string
}

type ReleaseInput struct {
	OrderID uuid.UUID
	UserID  uuid.UUID
}

// Acquire grants the edit lock on an order. Re-acquisition by the current
// holder succeeds and refreshes the lease timestamp. When another user holds
// the lock the call fails with LOCK_DENIED carrying the holder's identity.
func (s *Service) Acquire(ctx context.Context, input AcquireInput) (*models.ProductionOrder, error) {
	if input.OrderID == uuid.Nil || input.UserID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "order id and user id are required")
	}

	acquired, err := s.repo.TryAcquire(ctx, input.OrderID, input.UserID, input.UserName, s.now().UTC())
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "acquiring order lock")
	}
	if !acquired {
		order, findErr := s.repo.FindOrder(ctx, input.OrderID)
		if findErr != nil {
			if stdErrors.Is(findErr, gorm.ErrRecordNotFound) {
				return nil, errors.New(errors.CodeNotFound, "production order not found")
			}
			return nil, errors.Wrap(errors.CodeInternal, findErr, "loading order after lock denial")
		}
		return nil, deniedError(order)
	}

	order, err := s.repo.FindOrder(ctx, input.OrderID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "production order not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading locked order")
	}
	return order, nil
}

// Release clears the caller's lock. Releasing an order that is not locked is
// a no-op; releasing a lock held by someone else fails with LOCK_DENIED.
func (s *Service) Release(ctx context.Context, input ReleaseInput) error {
	if input.OrderID == uuid.Nil || input.UserID == uuid.Nil {
		return errors.New(errors.CodeValidation, "order id and user id are required")
	}

	released, err := s.repo.Release(ctx, input.OrderID, input.UserID)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "releasing order lock")
	}
	if released {
		return nil
	}

	order, err := s.repo.FindOrder(ctx, input.OrderID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New(errors.CodeNotFound, "production order not found")
		}
		return errors.Wrap(errors.CodeInternal, err, "loading order after release")
	}
	if !order.Locked {
		return nil
	}
	return deniedError(order)
}

// RequireHeld verifies inside a transaction that userID currently holds the
// order's lock. Stage transitions and ledger edits call this before mutating
// anything. The order row is read FOR UPDATE, so two mutating transactions on
// the same order commit one at a time.
func (s *Service) RequireHeld(ctx context.Context, tx *gorm.DB, orderID, userID uuid.UUID) (*models.ProductionOrder, error) {
	order, err := s.repo.WithTx(tx).FindOrderForUpdate(ctx, orderID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "production order not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading order for lock check")
	}
	if !order.Locked || order.LockedByID == nil || *order.LockedByID != userID {
		return nil, deniedError(order)
	}
	return order, nil
}

// SerializeOrder takes the order's row lock for the rest of tx without
// checking the edit lease. Change-request approval uses it: resolving never
// requires the lease, but its ledger writes still must not interleave with
// other mutations on the same order.
func (s *Service) SerializeOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	if _, err := s.repo.WithTx(tx).FindOrderForUpdate(ctx, orderID); err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New(errors.CodeNotFound, "production order not found")
		}
		return errors.Wrap(errors.CodeInternal, err, "locking order row")
	}
	return nil
}

// SweepOrphans force-releases locks whose holder no longer resolves to an
// active directory user. Runs on a schedule; idempotent. A failure on one
// order does not stop the sweep of the rest.
func (s *Service) SweepOrphans(ctx context.Context) (int, error) {
	locked, err := s.repo.ListLocked(ctx)
	if err != nil {
		return 0, errors.Wrap(errors.CodeInternal, err, "listing locked orders")
	}

	released := 0
	var errs []error
	for _, order := range locked {
		orphaned := order.LockedByID == nil
		if !orphaned {
			active, err := s.directory.IsActive(ctx, *order.LockedByID)
			if err != nil {
				errs = append(errs, errors.Wrap(errors.CodeInternal, err, "resolving lock holder"))
				continue
			}
			orphaned = !active
		}
		if !orphaned {
			continue
		}

		cleared, err := s.repo.ForceRelease(ctx, order.ID)
		if err != nil {
			errs = append(errs, errors.Wrap(errors.CodeInternal, err, "force-releasing orphan lock"))
			continue
		}
		if cleared {
			released++
			sweepCtx := s.logg.WithOrderNumber(ctx, order.OrderNumber)
			s.logg.Warn(sweepCtx, "released orphaned order lock")
		}
	}
	return released, multierr.Combine(errs...)
}

func deniedError(order *models.ProductionOrder) error {
	details := map[string]any{}
	if order.LockedByID != nil {
		details["heldById"] = order.LockedByID.String()
	}
	if order.LockedByName != nil {
		details["heldBy"] = *order.LockedByName
	}
	if order.LockedAt != nil {
		details["lockedAt"] = order.LockedAt.UTC()
	}
	return errors.New(errors.CodeLockDenied, "order is locked by another user").WithDetails(details)
}
