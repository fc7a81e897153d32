package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stagetrak/stagetrak-backend/pkg/db/models"
	"github.com/stagetrak/stagetrak-backend/pkg/enums"
	"github.com/stagetrak/stagetrak-backend/pkg/pagination"
)

// ListFilter narrows the order listing.
type ListFilter struct {
	Status enums.OrderStatus
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, order *models.ProductionOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ProductionOrder, error)
	FindByNumber(ctx context.Context, orderNumber string) (*models.ProductionOrder, error)
	List(ctx context.Context, filter ListFilter, limit int, cursor *pagination.Cursor) ([]models.ProductionOrder, error)
	UpdateProgress(ctx context.Context, id uuid.UUID, currentStage *string, status enums.OrderStatus) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an order repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, order *models.ProductionOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ProductionOrder, error) {
	var order models.ProductionOrder
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByNumber(ctx context.Context, orderNumber string) (*models.ProductionOrder, error) {
	var order models.ProductionOrder
	if err := r.db.WithContext(ctx).First(&order, "order_number = ?", orderNumber).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter, limit int, cursor *pagination.Cursor) ([]models.ProductionOrder, error) {
	query := r.db.WithContext(ctx).Model(&models.ProductionOrder{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var orders []models.ProductionOrder
	if err := query.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) UpdateProgress(ctx context.Context, id uuid.UUID, currentStage *string, status enums.OrderStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.ProductionOrder{}).
		Where("id = ?", id).
		Updates(map[string]any{"current_stage": currentStage, "status": status}).Error
}
