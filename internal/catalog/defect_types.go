package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stagetrak/stagetrak-backend/pkg/db/models"
)

// DefectTypeRepository exposes defect-type catalog lookups. Lookup by name is
// used only by the change-request identity recovery procedure.
type DefectTypeRepository interface {
	WithTx(tx *gorm.DB) DefectTypeRepository
	FindByID(ctx context.Context, id uuid.UUID) (*models.DefectType, error)
	FindByName(ctx context.Context, name string) (*models.DefectType, error)
	ListActive(ctx context.Context) ([]models.DefectType, error)
}

type defectTypeRepository struct {
	db *gorm.DB
}

// NewDefectTypeRepository returns a defect-type repository bound to the provided database.
func NewDefectTypeRepository(db *gorm.DB) DefectTypeRepository {
	return &defectTypeRepository{db: db}
}

func (r *defectTypeRepository) WithTx(tx *gorm.DB) DefectTypeRepository {
	if tx == nil {
		return r
	}
	return &defectTypeRepository{db: tx}
}

func (r *defectTypeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.DefectType, error) {
	var defectType models.DefectType
	if err := r.db.WithContext(ctx).First(&defectType, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &defectType, nil
}

func (r *defectTypeRepository) FindByName(ctx context.Context, name string) (*models.DefectType, error) {
	var defectType models.DefectType
	if err := r.db.WithContext(ctx).First(&defectType, "name = ?", name).Error; err != nil {
		return nil, err
	}
	return &defectType, nil
}

func (r *defectTypeRepository) ListActive(ctx context.Context) ([]models.DefectType, error) {
	var defectTypes []models.DefectType
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("name ASC").
		Find(&defectTypes).Error; err != nil {
		return nil, err
	}
	return defectTypes, nil
}
