package locks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stagetrak/stagetrak-backend/pkg/db/models"
)

// Repository holds the conditional-update queries the lock coordinator is
// built on. Acquisition and release are single UPDATE statements whose WHERE
// clause encodes the ownership rule, so two competing callers can never both
// see RowsAffected == 1.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.ProductionOrder, error)
	FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.ProductionOrder, error)
	TryAcquire(ctx context.Context, orderID, userID uuid.UUID, userName string, at time.Time) (bool, error)
	Release(ctx context.Context, orderID, userID uuid.UUID) (bool, error)
	ForceRelease(ctx context.Context, orderID uuid.UUID) (bool, error)
	ListLocked(ctx context.Context) ([]models.ProductionOrder, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a lock repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.ProductionOrder, error) {
	var order models.ProductionOrder
	if err := r.db.WithContext(ctx).First(&order, "id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindOrderForUpdate loads the order under SELECT ... FOR UPDATE. Callers use
// it inside a transaction to serialize concurrent mutations on the same order.
func (r *repository) FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.ProductionOrder, error) {
	var order models.ProductionOrder
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, "id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// TryAcquire grants the lock when the order is unlocked or already held by
// the same user (re-acquisition refreshes the lease timestamp).
func (r *repository) TryAcquire(ctx context.Context, orderID, userID uuid.UUID, userName string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ProductionOrder{}).
		Where("id = ? AND (locked = ? OR locked_by_id = ?)", orderID, false, userID).
		Updates(map[string]any{
			"locked":         true,
			"locked_by_id":   userID,
			"locked_by_name": userName,
			"locked_at":      at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) Release(ctx context.Context, orderID, userID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ProductionOrder{}).
		Where("id = ? AND locked = ? AND locked_by_id = ?", orderID, true, userID).
		Updates(clearLockColumns())
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ForceRelease clears the lock regardless of holder. Reserved for the orphan
// sweep.
func (r *repository) ForceRelease(ctx context.Context, orderID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ProductionOrder{}).
		Where("id = ? AND locked = ?", orderID, true).
		Updates(clearLockColumns())
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ListLocked(ctx context.Context) ([]models.ProductionOrder, error) {
	var orders []models.ProductionOrder
	if err := r.db.WithContext(ctx).
		Where("locked = ?", true).
		Order("locked_at ASC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func clearLockColumns() map[string]any {
	return map[string]any{
		"locked":         false,
		"locked_by_id":   nil,
		"locked_by_name": nil,
		"locked_at":      nil,
	}
}
