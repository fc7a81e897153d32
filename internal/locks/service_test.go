package locks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/stagetrak/stagetrak-backend/internal/directory"
	"github.com/stagetrak/stagetrak-backend/pkg/db/models"
	"github.com/stagetrak/stagetrak-backend/pkg/errors"
	"github.com/stagetrak/stagetrak-backend/pkg/logger"
)

type stubLockRepo struct {
	order          *models.ProductionOrder
	locked         []models.ProductionOrder
	tryAcquire     func(orderID, userID uuid.UUID) (bool, error)
	release        func(orderID, userID uuid.UUID) (bool, error)
	forceReleased  []uuid.UUID
	forceReleaseFn func(orderID uuid.UUID) (bool, error)
}

func (s *stubLockRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubLockRepo) FindOrder(_ context.Context, orderID uuid.UUID) (*models.ProductionOrder, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubLockRepo) FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.ProductionOrder, error) {
	return s.FindOrder(ctx, orderID)
}

func (s *stubLockRepo) TryAcquire(_ context.Context, orderID, userID uuid.UUID, _ string, _ time.Time) (bool, error) {
	if s.tryAcquire != nil {
		return s.tryAcquire(orderID, userID)
	}
	return false, nil
}

func (s *stubLockRepo) Release(_ context.Context, orderID, userID uuid.UUID) (bool, error) {
	if s.release != nil {
		return s.release(orderID, userID)
	}
	return false, nil
}

func (s *stubLockRepo) ForceRelease(_ context.Context, orderID uuid.UUID) (bool, error) {
	if s.forceReleaseFn != nil {
		return s.forceReleaseFn(orderID)
	}
	s.forceReleased = append(s.forceReleased, orderID)
	return true, nil
}

func (s *stubLockRepo) ListLocked(_ context.Context) ([]models.ProductionOrder, error) {
	return s.locked, nil
}

type stubDirectory struct {
	active map[uuid.UUID]bool
}

func (s *stubDirectory) WithTx(tx *gorm.DB) directory.Repository { return s }

func (s *stubDirectory) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if s.active[id] {
		return &models.User{ID: id, Active: true}, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubDirectory) IsActive(_ context.Context, id uuid.UUID) (bool, error) {
	return s.active[id], nil
}

func lockedOrder(holderID uuid.UUID, holderName string) *models.ProductionOrder {
	at := time.Now().UTC()
	return &models.ProductionOrder{
		ID:           uuid.New(),
		OrderNumber:  "PO-1001",
		Quantity:     100,
		Locked:       true,
		LockedByID:   &holderID,
		LockedByName: &holderName,
		LockedAt:     &at,
	}
}

func newTestLockService(repo Repository, dir *stubDirectory) *Service {
	return NewService(repo, dir, logger.New(logger.Options{ServiceName: "test"}))
}

func TestAcquireDeniedCarriesHolderIdentity(t *testing.T) {
	holder := uuid.New()
	order := lockedOrder(holder, "Alice Cruz")
	repo := &stubLockRepo{order: order}

	svc := newTestLockService(repo, &stubDirectory{})
	_, err := svc.Acquire(context.Background(), AcquireInput{
		OrderID:  order.ID,
		UserID:   uuid.New(),
		UserName: "Bob",
	})
	require.Error(t, err)
	require.True(t, errors.HasCode(err, errors.CodeLockDenied))

	typed := errors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, holder.String(), details["heldById"])
	assert.Equal(t, "Alice Cruz", details["heldBy"])
	assert.Contains(t, details, "lockedAt")
}

func TestAcquireSucceeds(t *testing.T) {
	holder := uuid.New()
	order := lockedOrder(holder, "Alice Cruz")
	repo := &stubLockRepo{
		order: order,
		tryAcquire: func(_, _ uuid.UUID) (bool, error) {
			return true, nil
		},
	}

	svc := newTestLockService(repo, &stubDirectory{})
	got, err := svc.Acquire(context.Background(), AcquireInput{
		OrderID: order.ID, UserID: holder, UserName: "Alice Cruz",
	})
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
}

func TestAcquireUnknownOrder(t *testing.T) {
	repo := &stubLockRepo{}
	svc := newTestLockService(repo, &stubDirectory{})
	_, err := svc.Acquire(context.Background(), AcquireInput{
		OrderID: uuid.New(), UserID: uuid.New(),
	})
	require.True(t, errors.HasCode(err, errors.CodeNotFound))
}

func TestReleaseIsIdempotentWhenUnlocked(t *testing.T) {
	order := &models.ProductionOrder{ID: uuid.New(), OrderNumber: "PO-1", Locked: false}
	repo := &stubLockRepo{order: order}

	svc := newTestLockService(repo, &stubDirectory{})
	err := svc.Release(context.Background(), ReleaseInput{OrderID: order.ID, UserID: uuid.New()})
	require.NoError(t, err)
}

func TestReleaseHeldByAnotherUserDenied(t *testing.T) {
	holder := uuid.New()
	order := lockedOrder(holder, "Alice Cruz")
	repo := &stubLockRepo{order: order}

	svc := newTestLockService(repo, &stubDirectory{})
	err := svc.Release(context.Background(), ReleaseInput{OrderID: order.ID, UserID: uuid.New()})
	require.True(t, errors.HasCode(err, errors.CodeLockDenied))
}

func TestRequireHeld(t *testing.T) {
	holder := uuid.New()
	order := lockedOrder(holder, "Alice Cruz")
	repo := &stubLockRepo{order: order}
	svc := newTestLockService(repo, &stubDirectory{})

	got, err := svc.RequireHeld(context.Background(), nil, order.ID, holder)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = svc.RequireHeld(context.Background(), nil, order.ID, uuid.New())
	require.True(t, errors.HasCode(err, errors.CodeLockDenied))
}

func TestSweepOrphansReleasesInactiveHolders(t *testing.T) {
	activeHolder := uuid.New()
	goneHolder := uuid.New()
	held := *lockedOrder(activeHolder, "Active")
	orphaned := *lockedOrder(goneHolder, "Gone")
	headless := *lockedOrder(uuid.New(), "Headless")
	headless.LockedByID = nil

	repo := &stubLockRepo{locked: []models.ProductionOrder{held, orphaned, headless}}
	dir := &stubDirectory{active: map[uuid.UUID]bool{activeHolder: true}}

	svc := newTestLockService(repo, dir)
	released, err := svc.SweepOrphans(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, released)
	assert.ElementsMatch(t, []uuid.UUID{orphaned.ID, headless.ID}, repo.forceReleased)
}

func TestSweepOrphansNoLocks(t *testing.T) {
	svc := newTestLockService(&stubLockRepo{}, &stubDirectory{})
	released, err := svc.SweepOrphans(context.Background())
	require.NoError(t, err)
	assert.Zero(t, released)
}
