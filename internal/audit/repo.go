package audit

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stagetrak/stagetrak-backend/pkg/db/models"
	"github.com/stagetrak/stagetrak-backend/pkg/pagination"
	"github.com/stagetrak/stagetrak-backend/pkg/types"
)

// ListFilter narrows an audit query to a set of records. The service resolves
// order- and stage-level filters into the concrete (kind, id) pairs first.
type ListFilter struct {
	Refs []types.AuditRef
}

// Repository persists and reads the append-only audit trail.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, entry *models.AuditEntry) error
	List(ctx context.Context, filter ListFilter, limit int, cursor *pagination.Cursor) ([]models.AuditEntry, error)

	// Fan-in helpers: resolve the record ids hanging off an order or stage.
	StageIDsByOrder(ctx context.Context, orderID uuid.UUID) ([]uuid.UUID, error)
	DefectRowIDsByStages(ctx context.Context, stageIDs []uuid.UUID) ([]uuid.UUID, error)
	ChangeRequestIDsByStages(ctx context.Context, stageIDs []uuid.UUID) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an audit repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, entry *models.AuditEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) List(ctx context.Context, filter ListFilter, limit int, cursor *pagination.Cursor) ([]models.AuditEntry, error) {
	query := r.db.WithContext(ctx).Model(&models.AuditEntry{})

	if len(filter.Refs) > 0 {
		clause := r.db.Session(&gorm.Session{NewDB: true})
		for _, ref := range filter.Refs {
			clause = clause.Or("(table_name = ? AND record_id = ?)", ref.Kind, ref.ID)
		}
		query = query.Where(clause)
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var entries []models.AuditEntry
	if err := query.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) StageIDsByOrder(ctx context.Context, orderID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.StageInstance{}).
		Where("order_id = ?", orderID).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) DefectRowIDsByStages(ctx context.Context, stageIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(stageIDs) == 0 {
		return nil, nil
	}
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.DefectRow{}).
		Where("stage_instance_id IN ?", stageIDs).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) ChangeRequestIDsByStages(ctx context.Context, stageIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(stageIDs) == 0 {
		return nil, nil
	}
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.ChangeRequest{}).
		Where("stage_instance_id IN ?", stageIDs).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
