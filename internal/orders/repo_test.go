package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stagetrak/stagetrak-backend/pkg/db/models"
	"github.com/stagetrak/stagetrak-backend/pkg/enums"
	"github.com/stagetrak/stagetrak-backend/pkg/pagination"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS production_orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL UNIQUE,
  quantity INTEGER NOT NULL,
  current_stage TEXT,
  status TEXT NOT NULL DEFAULT 'created',
  locked INTEGER NOT NULL DEFAULT 0,
  locked_by_id TEXT,
  locked_by_name TEXT,
  locked_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(ddl).Error)
	require.NoError(t, db.Exec("DELETE FROM production_orders").Error)
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, number string, status enums.OrderStatus, created time.Time) *models.ProductionOrder {
	t.Helper()

	order := &models.ProductionOrder{
		ID:          uuid.New(),
		OrderNumber: number,
		Quantity:    100,
		Status:      status,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestRepositoryInsertAndFind(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	order := &models.ProductionOrder{
		ID:          uuid.New(),
		OrderNumber: "PO-INS-1",
		Quantity:    40,
		Status:      enums.OrderStatusCreated,
	}
	require.NoError(t, repo.Insert(context.Background(), order))

	byID, err := repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, "PO-INS-1", byID.OrderNumber)

	byNumber, err := repo.FindByNumber(context.Background(), "PO-INS-1")
	require.NoError(t, err)
	assert.Equal(t, order.ID, byNumber.ID)

	_, err = repo.FindByNumber(context.Background(), "PO-missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryListPagination(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	now := time.Now().UTC()
	older := seedOrder(t, db, "PO-PAGE-1", enums.OrderStatusCreated, now.Add(-time.Hour))
	newer := seedOrder(t, db, "PO-PAGE-2", enums.OrderStatusCreated, now)

	first, err := repo.List(context.Background(), ListFilter{}, 1, nil)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, newer.ID, first[0].ID)

	cursor := &pagination.Cursor{CreatedAt: first[0].CreatedAt, ID: first[0].ID}
	second, err := repo.List(context.Background(), ListFilter{}, 1, cursor)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, older.ID, second[0].ID)
}

func TestRepositoryListStatusFilter(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	now := time.Now().UTC()
	seedOrder(t, db, "PO-FIL-1", enums.OrderStatusCreated, now.Add(-time.Minute))
	active := seedOrder(t, db, "PO-FIL-2", enums.OrderStatusInProgress, now)

	rows, err := repo.List(context.Background(), ListFilter{Status: enums.OrderStatusInProgress}, 10, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, active.ID, rows[0].ID)
}

func TestRepositoryUpdateProgress(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	order := seedOrder(t, db, "PO-PROG-1", enums.OrderStatusCreated, time.Now().UTC())

	stage := "SEW"
	require.NoError(t, repo.UpdateProgress(context.Background(), order.ID, &stage, enums.OrderStatusInProgress))

	got, err := repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentStage)
	assert.Equal(t, "SEW", *got.CurrentStage)
	assert.Equal(t, enums.OrderStatusInProgress, got.Status)

	require.NoError(t, repo.UpdateProgress(context.Background(), order.ID, nil, enums.OrderStatusCompleted))
	got, err = repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CurrentStage)
	assert.Equal(t, enums.OrderStatusCompleted, got.Status)
}
