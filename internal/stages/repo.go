package stages

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stagetrak/stagetrak-backend/pkg/db/models"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, instance *models.StageInstance) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.StageInstance, error)
	FindByOrderAndCode(ctx context.Context, orderID uuid.UUID, stageCode string) (*models.StageInstance, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.StageInstance, error)
	Save(ctx context.Context, instance *models.StageInstance) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a stage repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, instance *models.StageInstance) error {
	return r.db.WithContext(ctx).Create(instance).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.StageInstance, error) {
	var instance models.StageInstance
	if err := r.db.WithContext(ctx).First(&instance, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &instance, nil
}

func (r *repository) FindByOrderAndCode(ctx context.Context, orderID uuid.UUID, stageCode string) (*models.StageInstance, error) {
	var instance models.StageInstance
	if err := r.db.WithContext(ctx).
		First(&instance, "order_id = ? AND stage_code = ?", orderID, stageCode).Error; err != nil {
		return nil, err
	}
	return &instance, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.StageInstance, error) {
	var instances []models.StageInstance
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("sequence ASC").
		Find(&instances).Error; err != nil {
		return nil, err
	}
	return instances, nil
}

func (r *repository) Save(ctx context.Context, instance *models.StageInstance) error {
	return r.db.WithContext(ctx).Save(instance).Error
}
