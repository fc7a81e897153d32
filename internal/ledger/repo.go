package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stagetrak/stagetrak-backend/pkg/db/models"
)

// Repository persists defect rows. The stage+type and stage+name lookups
// exist for the change-request identity recovery chain.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, row *models.DefectRow) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.DefectRow, error)
	FindByStageAndType(ctx context.Context, stageInstanceID, defectTypeID uuid.UUID) (*models.DefectRow, error)
	FindByStageAndName(ctx context.Context, stageInstanceID uuid.UUID, defectName string) (*models.DefectRow, error)
	ListByStage(ctx context.Context, stageInstanceID uuid.UUID) ([]models.DefectRow, error)
	Save(ctx context.Context, row *models.DefectRow) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a defect row repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, row *models.DefectRow) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.DefectRow, error) {
	var row models.DefectRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindByStageAndType(ctx context.Context, stageInstanceID, defectTypeID uuid.UUID) (*models.DefectRow, error) {
	var row models.DefectRow
	if err := r.db.WithContext(ctx).
		Order("created_at ASC").
		First(&row, "stage_instance_id = ? AND defect_type_id = ?", stageInstanceID, defectTypeID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindByStageAndName(ctx context.Context, stageInstanceID uuid.UUID, defectName string) (*models.DefectRow, error) {
	var row models.DefectRow
	if err := r.db.WithContext(ctx).
		Order("created_at ASC").
		First(&row, "stage_instance_id = ? AND defect_name = ?", stageInstanceID, defectName).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) ListByStage(ctx context.Context, stageInstanceID uuid.UUID) ([]models.DefectRow, error) {
	var rows []models.DefectRow
	if err := r.db.WithContext(ctx).
		Where("stage_instance_id = ?", stageInstanceID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Save(ctx context.Context, row *models.DefectRow) error {
	return r.db.WithContext(ctx).Save(row).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.DefectRow{}, "id = ?", id).Error
}
