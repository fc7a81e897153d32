package locks

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
)

func setupLocksTestDB(t *testing.T) *gorm.DB {
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

func seedUnlockedOrder(t *testing.T, db *gorm.DB, number string) *models.ProductionOrder {
	t.Helper()

	order := &models.ProductionOrder{
		ID:          uuid.New(),
		OrderNumber: number,
		Quantity:    100,
		Status:      enums.OrderStatusInProgress,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestRepositoryTryAcquireIsExclusive(t *testing.T) {
	db := setupLocksTestDB(t)
	repo := NewRepository(db)

	order := seedUnlockedOrder(t, db, "PO-LCK-1")
	alice := uuid.New()
	bob := uuid.New()
	now := time.Now().UTC()

	got, err := repo.TryAcquire(context.Background(), order.ID, alice, "Alice", now)
	require.NoError(t, err)
	require.True(t, got)

	// The conditional UPDATE matches no row while another user holds it.
	got, err = repo.TryAcquire(context.Background(), order.ID, bob, "Bob", now)
	require.NoError(t, err)
	assert.False(t, got)

	held, err := repo.FindOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.NotNil(t, held.LockedByID)
	assert.Equal(t, alice, *held.LockedByID)
}

func TestRepositoryTryAcquireRefreshesOwnLease(t *testing.T) {
	db := setupLocksTestDB(t)
	repo := NewRepository(db)

	order := seedUnlockedOrder(t, db, "PO-LCK-2")
	alice := uuid.New()
	first := time.Now().UTC().Add(-time.Hour)
	second := time.Now().UTC()

	got, err := repo.TryAcquire(context.Background(), order.ID, alice, "Alice", first)
	require.NoError(t, err)
	require.True(t, got)

	got, err = repo.TryAcquire(context.Background(), order.ID, alice, "Alice", second)
	require.NoError(t, err)
	require.True(t, got)

	held, err := repo.FindOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.NotNil(t, held.LockedAt)
	assert.WithinDuration(t, second, *held.LockedAt, time.Second)
}

func TestRepositoryReleaseOnlyByHolder(t *testing.T) {
	db := setupLocksTestDB(t)
	repo := NewRepository(db)

	order := seedUnlockedOrder(t, db, "PO-LCK-3")
	alice := uuid.New()
	bob := uuid.New()

	got, err := repo.TryAcquire(context.Background(), order.ID, alice, "Alice", time.Now().UTC())
	require.NoError(t, err)
	require.True(t, got)

	released, err := repo.Release(context.Background(), order.ID, bob)
	require.NoError(t, err)
	assert.False(t, released)

	released, err = repo.Release(context.Background(), order.ID, alice)
	require.NoError(t, err)
	require.True(t, released)

	freed, err := repo.FindOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.False(t, freed.Locked)
	assert.Nil(t, freed.LockedByID)
	assert.Nil(t, freed.LockedAt)
}

func TestRepositoryForceRelease(t *testing.T) {
	db := setupLocksTestDB(t)
	repo := NewRepository(db)

	order := seedUnlockedOrder(t, db, "PO-LCK-4")

	// Unlocked orders match nothing.
	cleared, err := repo.ForceRelease(context.Background(), order.ID)
	require.NoError(t, err)
	assert.False(t, cleared)

	got, err := repo.TryAcquire(context.Background(), order.ID, uuid.New(), "Gone", time.Now().UTC())
	require.NoError(t, err)
	require.True(t, got)

	cleared, err = repo.ForceRelease(context.Background(), order.ID)
	require.NoError(t, err)
	require.True(t, cleared)

	freed, err := repo.FindOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.False(t, freed.Locked)
}

func TestRepositoryListLocked(t *testing.T) {
	db := setupLocksTestDB(t)
	repo := NewRepository(db)

	unlocked := seedUnlockedOrder(t, db, "PO-LCK-5")
	older := seedUnlockedOrder(t, db, "PO-LCK-6")
	newer := seedUnlockedOrder(t, db, "PO-LCK-7")

	now := time.Now().UTC()
	got, err := repo.TryAcquire(context.Background(), older.ID, uuid.New(), "Old", now.Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, got)
	got, err = repo.TryAcquire(context.Background(), newer.ID, uuid.New(), "New", now)
	require.NoError(t, err)
	require.True(t, got)

	locked, err := repo.ListLocked(context.Background())
	require.NoError(t, err)
	require.Len(t, locked, 2)
	assert.Equal(t, older.ID, locked[0].ID)
	assert.Equal(t, newer.ID, locked[1].ID)
	for _, order := range locked {
		assert.NotEqual(t, unlocked.ID, order.ID)
	}
}
