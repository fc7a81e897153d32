package reconcile

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stagetrak/stagetrak-backend/pkg/db/models"
)

// Repository is the narrow data surface the engine recomputes over.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	InstanceByID(ctx context.Context, id uuid.UUID) (*models.StageInstance, error)
	InstancesByOrder(ctx context.Context, orderID uuid.UUID) ([]models.StageInstance, error)
	RowsByStage(ctx context.Context, stageInstanceID uuid.UUID) ([]models.DefectRow, error)
	UpdateIO(ctx context.Context, stageInstanceID uuid.UUID, inputQty, outputQty int) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a reconciliation repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) InstanceByID(ctx context.Context, id uuid.UUID) (*models.StageInstance, error) {
	var instance models.StageInstance
	if err := r.db.WithContext(ctx).First(&instance, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &instance, nil
}

func (r *repository) InstancesByOrder(ctx context.Context, orderID uuid.UUID) ([]models.StageInstance, error) {
	var instances []models.StageInstance
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("sequence ASC").
		Find(&instances).Error; err != nil {
		return nil, err
	}
	return instances, nil
}

func (r *repository) RowsByStage(ctx context.Context, stageInstanceID uuid.UUID) ([]models.DefectRow, error) {
	var rows []models.DefectRow
	if err := r.db.WithContext(ctx).
		Where("stage_instance_id = ?", stageInstanceID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) UpdateIO(ctx context.Context, stageInstanceID uuid.UUID, inputQty, outputQty int) error {
	return r.db.WithContext(ctx).
		Model(&models.StageInstance{}).
		Where("id = ?", stageInstanceID).
		Updates(map[string]any{"input_qty": inputQty, "output_qty": outputQty}).Error
}
