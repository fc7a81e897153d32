package orders

import (
	"context"
	stdErrors "errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/stagetrak/stagetrak-backend/internal/audit"
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

type stubOrderRepo struct {
	orders    map[uuid.UUID]*models.ProductionOrder
	insertErr error
	listed    []models.ProductionOrder
}

func (s *stubOrderRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubOrderRepo) Insert(_ context.Context, order *models.ProductionOrder) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if s.orders == nil {
		s.orders = make(map[uuid.UUID]*models.ProductionOrder)
	}
	s.orders[order.ID] = order
	return nil
}

func (s *stubOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*models.ProductionOrder, error) {
	if order, ok := s.orders[id]; ok {
		return order, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrderRepo) FindByNumber(_ context.Context, orderNumber string) (*models.ProductionOrder, error) {
	for _, order := range s.orders {
		if order.OrderNumber == orderNumber {
			return order, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrderRepo) List(_ context.Context, _ ListFilter, limit int, _ *pagination.Cursor) ([]models.ProductionOrder, error) {
	if len(s.listed) > limit {
		return s.listed[:limit], nil
	}
	return s.listed, nil
}

func (s *stubOrderRepo) UpdateProgress(_ context.Context, _ uuid.UUID, _ *string, _ enums.OrderStatus) error {
	return nil
}

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

func newTestOrderService(repo Repository, auditRepo *stubAuditRepo) *Service {
	logg := logger.New(logger.Options{ServiceName: "test"})
	return NewService(stubTxRunner{}, repo, audit.NewService(auditRepo, logg), logg)
}

func TestCreateTrimsOrderNumberAndAudits(t *testing.T) {
	repo := &stubOrderRepo{}
	auditRepo := &stubAuditRepo{}
	svc := newTestOrderService(repo, auditRepo)

	order, err := svc.Create(context.Background(), CreateInput{
		OrderNumber: "  PO-2024-001  ",
		Quantity:    250,
		ActorID:     uuid.New(),
	})
	require.NoError(t, err)
	assert.Equal(t, "PO-2024-001", order.OrderNumber)
	assert.Equal(t, enums.OrderStatusCreated, order.Status)
	assert.Nil(t, order.CurrentStage)

	require.Len(t, auditRepo.entries, 1)
	assert.Equal(t, types.AuditKindProductionOrder, auditRepo.entries[0].TableName)
	assert.Equal(t, enums.AuditActionCreate, auditRepo.entries[0].Action)
}

func TestCreateValidation(t *testing.T) {
	svc := newTestOrderService(&stubOrderRepo{}, &stubAuditRepo{})

	cases := []struct {
		name  string
		input CreateInput
	}{
		{"blank order number", CreateInput{OrderNumber: "   ", Quantity: 10, ActorID: uuid.New()}},
		{"zero quantity", CreateInput{OrderNumber: "PO-1", Quantity: 0, ActorID: uuid.New()}},
		{"negative quantity", CreateInput{OrderNumber: "PO-1", Quantity: -5, ActorID: uuid.New()}},
		{"missing actor", CreateInput{OrderNumber: "PO-1", Quantity: 10}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.input)
			require.True(t, errors.HasCode(err, errors.CodeValidation))
		})
	}
}

func TestCreateDuplicateOrderNumber(t *testing.T) {
	repo := &stubOrderRepo{
		insertErr: stdErrors.New(`ERROR: duplicate key value violates unique constraint "idx_production_orders_order_number"`),
	}
	svc := newTestOrderService(repo, &stubAuditRepo{})

	_, err := svc.Create(context.Background(), CreateInput{
		OrderNumber: "PO-1",
		Quantity:    10,
		ActorID:     uuid.New(),
	})
	require.True(t, errors.HasCode(err, errors.CodeConflict))
}

func TestGetUnknownOrder(t *testing.T) {
	svc := newTestOrderService(&stubOrderRepo{}, &stubAuditRepo{})
	_, err := svc.Get(context.Background(), uuid.New())
	require.True(t, errors.HasCode(err, errors.CodeNotFound))
}

func TestGetByNumber(t *testing.T) {
	repo := &stubOrderRepo{orders: map[uuid.UUID]*models.ProductionOrder{}}
	order := &models.ProductionOrder{ID: uuid.New(), OrderNumber: "PO-77", Quantity: 10}
	repo.orders[order.ID] = order

	svc := newTestOrderService(repo, &stubAuditRepo{})
	got, err := svc.GetByNumber(context.Background(), " PO-77 ")
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = svc.GetByNumber(context.Background(), "PO-unknown")
	require.True(t, errors.HasCode(err, errors.CodeNotFound))
}

func TestListRejectsInvalidStatus(t *testing.T) {
	svc := newTestOrderService(&stubOrderRepo{}, &stubAuditRepo{})
	_, err := svc.List(context.Background(), ListInput{Status: "shipped"})
	require.True(t, errors.HasCode(err, errors.CodeValidation))
}

func TestListPaginates(t *testing.T) {
	now := time.Now().UTC()
	var orders []models.ProductionOrder
	for i := 0; i < 3; i++ {
		orders = append(orders, models.ProductionOrder{
			ID:          uuid.New(),
			OrderNumber: "PO",
			Quantity:    1,
			CreatedAt:   now.Add(-time.Duration(i) * time.Minute),
		})
	}
	repo := &stubOrderRepo{listed: orders}
	svc := newTestOrderService(repo, &stubAuditRepo{})

	result, err := svc.List(context.Background(), ListInput{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, result.Orders, 2)
	assert.NotEmpty(t, result.NextCursor)

	cursor, err := pagination.ParseCursor(result.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, result.Orders[1].ID, cursor.ID)
}
