package stages

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/stagetrak/stagetrak-backend/internal/audit"
	"github.com/stagetrak/stagetrak-backend/internal/catalog"
	"github.com/stagetrak/stagetrak-backend/internal/directory"
	"github.com/stagetrak/stagetrak-backend/internal/locks"
	"github.com/stagetrak/stagetrak-backend/internal/orders"
	"github.com/stagetrak/stagetrak-backend/internal/reconcile"
	"github.com/stagetrak/stagetrak-backend/pkg/config"
	"github.com/stagetrak/stagetrak-backend/pkg/db/models"
	"github.com/stagetrak/stagetrak-backend/pkg/enums"
	"github.com/stagetrak/stagetrak-backend/pkg/errors"
	"github.com/stagetrak/stagetrak-backend/pkg/logger"
	"github.com/stagetrak/stagetrak-backend/pkg/pagination"
	"github.com/stagetrak/stagetrak-backend/pkg/types"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubStageRepo struct {
	instances map[uuid.UUID]*models.StageInstance
	inserted  []*models.StageInstance
	saved     []*models.StageInstance
	insertErr error
}

func (s *stubStageRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubStageRepo) Insert(_ context.Context, instance *models.StageInstance) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	if instance.ID == uuid.Nil {
		instance.ID = uuid.New()
	}
	if s.instances == nil {
		s.instances = make(map[uuid.UUID]*models.StageInstance)
	}
	s.instances[instance.ID] = instance
	s.inserted = append(s.inserted, instance)
	return nil
}

func (s *stubStageRepo) FindByID(_ context.Context, id uuid.UUID) (*models.StageInstance, error) {
	if instance, ok := s.instances[id]; ok {
		return instance, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubStageRepo) FindByOrderAndCode(_ context.Context, orderID uuid.UUID, stageCode string) (*models.StageInstance, error) {
	for _, instance := range s.instances {
		if instance.OrderID == orderID && instance.StageCode == stageCode {
			return instance, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubStageRepo) ListByOrder(_ context.Context, orderID uuid.UUID) ([]models.StageInstance, error) {
	var out []models.StageInstance
	for _, instance := range s.instances {
		if instance.OrderID == orderID {
			out = append(out, *instance)
		}
	}
	return out, nil
}

func (s *stubStageRepo) Save(_ context.Context, instance *models.StageInstance) error {
	s.saved = append(s.saved, instance)
	return nil
}

type stubOrderRepo struct {
	progress []enums.OrderStatus
}

func (s *stubOrderRepo) WithTx(tx *gorm.DB) orders.Repository { return s }

func (s *stubOrderRepo) Insert(_ context.Context, _ *models.ProductionOrder) error { return nil }

func (s *stubOrderRepo) FindByID(_ context.Context, _ uuid.UUID) (*models.ProductionOrder, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrderRepo) FindByNumber(_ context.Context, _ string) (*models.ProductionOrder, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrderRepo) List(_ context.Context, _ orders.ListFilter, _ int, _ *pagination.Cursor) ([]models.ProductionOrder, error) {
	return nil, nil
}

func (s *stubOrderRepo) UpdateProgress(_ context.Context, _ uuid.UUID, _ *string, status enums.OrderStatus) error {
	s.progress = append(s.progress, status)
	return nil
}

type stubLockRepo struct {
	order *models.ProductionOrder
}

func (s *stubLockRepo) WithTx(tx *gorm.DB) locks.Repository { return s }

func (s *stubLockRepo) FindOrder(_ context.Context, orderID uuid.UUID) (*models.ProductionOrder, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubLockRepo) FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.ProductionOrder, error) {
	return s.FindOrder(ctx, orderID)
}

func (s *stubLockRepo) TryAcquire(_ context.Context, _, _ uuid.UUID, _ string, _ time.Time) (bool, error) {
	return false, nil
}

func (s *stubLockRepo) Release(_ context.Context, _, _ uuid.UUID) (bool, error) {
	return false, nil
}

func (s *stubLockRepo) ForceRelease(_ context.Context, _ uuid.UUID) (bool, error) {
	return false, nil
}

func (s *stubLockRepo) ListLocked(_ context.Context) ([]models.ProductionOrder, error) {
	return nil, nil
}

type stubDirectory struct{}

func (s *stubDirectory) WithTx(tx *gorm.DB) directory.Repository { return s }

func (s *stubDirectory) FindByID(_ context.Context, _ uuid.UUID) (*models.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubDirectory) IsActive(_ context.Context, _ uuid.UUID) (bool, error) { return true, nil }

type stubEngineRepo struct {
	instances []models.StageInstance
	rows      map[uuid.UUID][]models.DefectRow
}

func (s *stubEngineRepo) WithTx(tx *gorm.DB) reconcile.Repository { return s }

func (s *stubEngineRepo) InstanceByID(_ context.Context, id uuid.UUID) (*models.StageInstance, error) {
	for i := range s.instances {
		if s.instances[i].ID == id {
			return &s.instances[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubEngineRepo) InstancesByOrder(_ context.Context, _ uuid.UUID) ([]models.StageInstance, error) {
	return s.instances, nil
}

func (s *stubEngineRepo) RowsByStage(_ context.Context, stageID uuid.UUID) ([]models.DefectRow, error) {
	return s.rows[stageID], nil
}

func (s *stubEngineRepo) UpdateIO(_ context.Context, _ uuid.UUID, _, _ int) error { return nil }

type stubAuditRepo struct {
	entries []*models.AuditEntry
}

func (s *stubAuditRepo) WithTx(tx *gorm.DB) audit.Repository { return s }

func (s *stubAuditRepo) Insert(_ context.Context, entry *models.AuditEntry) error {
	s.entries = append(s.entries, entry)
	return nil
}

func (s *stubAuditRepo) List(_ context.Context, _ audit.ListFilter, _ int, _ *pagination.Cursor) ([]models.AuditEntry, error) {
	return nil, nil
}

func (s *stubAuditRepo) StageIDsByOrder(_ context.Context, _ uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

func (s *stubAuditRepo) DefectRowIDsByStages(_ context.Context, _ []uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

func (s *stubAuditRepo) ChangeRequestIDsByStages(_ context.Context, _ []uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

type stageFixture struct {
	svc       *Service
	repo      *stubStageRepo
	orderRepo *stubOrderRepo
	audit     *stubAuditRepo
	order     *models.ProductionOrder
	operator  uuid.UUID
}

func newStageFixture(t *testing.T) *stageFixture {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test"})

	stageCatalog, err := catalog.LoadStages(config.CatalogConfig{Stages: "CUT:Cutting,SEW:Sewing,ASM:Assembly"})
	require.NoError(t, err)

	operator := uuid.New()
	name := "Test Operator"
	at := time.Now().UTC()
	order := &models.ProductionOrder{
		ID:           uuid.New(),
		OrderNumber:  "PO-2001",
		Quantity:     100,
		Status:       enums.OrderStatusCreated,
		Locked:       true,
		LockedByID:   &operator,
		LockedByName: &name,
		LockedAt:     &at,
	}

	repo := &stubStageRepo{instances: map[uuid.UUID]*models.StageInstance{}}
	orderRepo := &stubOrderRepo{}
	auditRepo := &stubAuditRepo{}
	lockSvc := locks.NewService(&stubLockRepo{order: order}, &stubDirectory{}, logg)
	engine := reconcile.NewEngine(&stubEngineRepo{}, logg)

	svc := NewService(stubTxRunner{}, repo, orderRepo, lockSvc, engine, audit.NewService(auditRepo, logg), stageCatalog, logg)
	return &stageFixture{
		svc:       svc,
		repo:      repo,
		orderRepo: orderRepo,
		audit:     auditRepo,
		order:     order,
		operator:  operator,
	}
}

func (f *stageFixture) addInstance(code string, seq int, status enums.StageStatus, inputQty int, outputQty *int, lineNo *string) *models.StageInstance {
	instance := &models.StageInstance{
		ID:         uuid.New(),
		OrderID:    f.order.ID,
		StageCode:  code,
		Sequence:   seq,
		Status:     status,
		OperatorID: f.operator,
		InputQty:   inputQty,
		OutputQty:  outputQty,
		LineNo:     lineNo,
	}
	f.repo.instances[instance.ID] = instance
	return instance
}

func TestStartFirstStageUsesOrderQuantity(t *testing.T) {
	f := newStageFixture(t)

	instance, err := f.svc.Start(context.Background(), StartInput{
		OrderID:   f.order.ID,
		StageCode: "CUT",
		ActorID:   f.operator,
	})
	require.NoError(t, err)
	assert.Equal(t, 100, instance.InputQty)
	assert.Equal(t, enums.StageStatusStarted, instance.Status)
	assert.True(t, instance.ResourceFactor.Equal(decimal.NewFromInt(1)))
	require.Len(t, f.orderRepo.progress, 1)
	assert.Equal(t, enums.OrderStatusInProgress, f.orderRepo.progress[0])
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, types.AuditKindStageInstance, f.audit.entries[0].TableName)
}

func TestStartWithoutLockDenied(t *testing.T) {
	f := newStageFixture(t)

	_, err := f.svc.Start(context.Background(), StartInput{
		OrderID:   f.order.ID,
		StageCode: "CUT",
		ActorID:   uuid.New(),
	})
	require.True(t, errors.HasCode(err, errors.CodeLockDenied))
}

func TestStartOutOfSequence(t *testing.T) {
	f := newStageFixture(t)

	_, err := f.svc.Start(context.Background(), StartInput{
		OrderID:   f.order.ID,
		StageCode: "SEW",
		ActorID:   f.operator,
	})
	require.True(t, errors.HasCode(err, errors.CodeSequenceViolation))

	typed := errors.As(err)
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "CUT", details["previousStage"])
}

func TestStartWhilePreviousIncomplete(t *testing.T) {
	f := newStageFixture(t)
	f.addInstance("CUT", 1, enums.StageStatusStarted, 100, nil, nil)

	_, err := f.svc.Start(context.Background(), StartInput{
		OrderID:   f.order.ID,
		StageCode: "SEW",
		ActorID:   f.operator,
	})
	require.True(t, errors.HasCode(err, errors.CodeSequenceViolation))
}

func TestStartCarriesPreviousOutput(t *testing.T) {
	f := newStageFixture(t)
	output := 94
	line := "L1"
	f.addInstance("CUT", 1, enums.StageStatusCompleted, 100, &output, &line)

	instance, err := f.svc.Start(context.Background(), StartInput{
		OrderID:   f.order.ID,
		StageCode: "SEW",
		ActorID:   f.operator,
	})
	require.NoError(t, err)
	assert.Equal(t, 94, instance.InputQty)
}

func TestStartTwiceRejected(t *testing.T) {
	f := newStageFixture(t)
	f.addInstance("CUT", 1, enums.StageStatusStarted, 100, nil, nil)

	_, err := f.svc.Start(context.Background(), StartInput{
		OrderID:   f.order.ID,
		StageCode: "CUT",
		ActorID:   f.operator,
	})
	require.True(t, errors.HasCode(err, errors.CodeAlreadyStarted))
}

func TestStartOnCompletedOrder(t *testing.T) {
	f := newStageFixture(t)
	f.order.Status = enums.OrderStatusCompleted

	_, err := f.svc.Start(context.Background(), StartInput{
		OrderID:   f.order.ID,
		StageCode: "CUT",
		ActorID:   f.operator,
	})
	require.True(t, errors.HasCode(err, errors.CodeSequenceViolation))
}

func TestStartUnknownStageCode(t *testing.T) {
	f := newStageFixture(t)

	_, err := f.svc.Start(context.Background(), StartInput{
		OrderID:   f.order.ID,
		StageCode: "NOPE",
		ActorID:   f.operator,
	})
	require.True(t, errors.HasCode(err, errors.CodeValidation))
}

func TestCompleteRequiresLineNumber(t *testing.T) {
	f := newStageFixture(t)
	f.addInstance("CUT", 1, enums.StageStatusStarted, 100, nil, nil)

	_, err := f.svc.Complete(context.Background(), CompleteInput{
		OrderID:   f.order.ID,
		StageCode: "CUT",
		ActorID:   f.operator,
	})
	require.True(t, errors.HasCode(err, errors.CodeMissingLineNumber))
}

func TestCompleteAcceptsLineNumberAtCompletion(t *testing.T) {
	f := newStageFixture(t)
	f.addInstance("CUT", 1, enums.StageStatusStarted, 100, nil, nil)

	line := "L2"
	instance, err := f.svc.Complete(context.Background(), CompleteInput{
		OrderID:   f.order.ID,
		StageCode: "CUT",
		ActorID:   f.operator,
		LineNo:    &line,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.StageStatusCompleted, instance.Status)
	require.NotNil(t, instance.OutputQty)
	assert.Equal(t, 100, *instance.OutputQty)
	require.NotNil(t, instance.CompletedAt)
}

func TestCompleteCorrectsResourceFactor(t *testing.T) {
	f := newStageFixture(t)
	line := "L1"
	instance := f.addInstance("CUT", 1, enums.StageStatusStarted, 100, nil, &line)
	instance.ResourceFactor = decimal.NewFromInt(1)

	completed, err := f.svc.Complete(context.Background(), CompleteInput{
		OrderID:        f.order.ID,
		StageCode:      "CUT",
		ActorID:        f.operator,
		ResourceFactor: decimal.NewFromFloat(1.5),
	})
	require.NoError(t, err)
	assert.True(t, completed.ResourceFactor.Equal(decimal.NewFromFloat(1.5)))
}

func TestCompleteKeepsResourceFactorWhenOmitted(t *testing.T) {
	f := newStageFixture(t)
	line := "L1"
	instance := f.addInstance("CUT", 1, enums.StageStatusStarted, 100, nil, &line)
	instance.ResourceFactor = decimal.NewFromInt(2)

	completed, err := f.svc.Complete(context.Background(), CompleteInput{
		OrderID:   f.order.ID,
		StageCode: "CUT",
		ActorID:   f.operator,
	})
	require.NoError(t, err)
	assert.True(t, completed.ResourceFactor.Equal(decimal.NewFromInt(2)))
}

func TestCompleteNotStartedStage(t *testing.T) {
	f := newStageFixture(t)

	line := "L1"
	_, err := f.svc.Complete(context.Background(), CompleteInput{
		OrderID:   f.order.ID,
		StageCode: "CUT",
		ActorID:   f.operator,
		LineNo:    &line,
	})
	require.True(t, errors.HasCode(err, errors.CodeNotStarted))
}

func TestCompleteTwiceRejected(t *testing.T) {
	f := newStageFixture(t)
	output := 100
	line := "L1"
	f.addInstance("CUT", 1, enums.StageStatusCompleted, 100, &output, &line)

	_, err := f.svc.Complete(context.Background(), CompleteInput{
		OrderID:   f.order.ID,
		StageCode: "CUT",
		ActorID:   f.operator,
	})
	require.True(t, errors.HasCode(err, errors.CodeStageCompleted))
}

func TestCompleteFinalStageCompletesOrder(t *testing.T) {
	f := newStageFixture(t)
	line := "L3"
	f.addInstance("ASM", 3, enums.StageStatusStarted, 90, nil, &line)

	_, err := f.svc.Complete(context.Background(), CompleteInput{
		OrderID:   f.order.ID,
		StageCode: "ASM",
		ActorID:   f.operator,
	})
	require.NoError(t, err)
	require.Len(t, f.orderRepo.progress, 1)
	assert.Equal(t, enums.OrderStatusCompleted, f.orderRepo.progress[0])
}

func TestBoardCoversFullCatalog(t *testing.T) {
	f := newStageFixture(t)
	output := 94
	line := "L1"
	f.addInstance("CUT", 1, enums.StageStatusCompleted, 100, &output, &line)

	views, err := f.svc.Board(context.Background(), f.order.ID)
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, "CUT", views[0].Stage.Code)
	require.NotNil(t, views[0].Instance)
	assert.Nil(t, views[1].Instance)
	assert.Nil(t, views[2].Instance)
}
