package requests

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stagetrak/stagetrak-backend/pkg/db/models"
	"github.com/stagetrak/stagetrak-backend/pkg/enums"
	"github.com/stagetrak/stagetrak-backend/pkg/pagination"
)

// ListFilter narrows the change-request listing. OrderID joins through
// stage_instances.
type ListFilter struct {
	OrderID         uuid.UUID
	StageInstanceID uuid.UUID
	Status          enums.RequestStatus
	Type            enums.RequestType
	RequestedByID   uuid.UUID
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, request *models.ChangeRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ChangeRequest, error)
	FindPendingByTargetRow(ctx context.Context, targetRowID uuid.UUID) (*models.ChangeRequest, error)
	FindPendingAdd(ctx context.Context, stageInstanceID, defectTypeID uuid.UUID) (*models.ChangeRequest, error)
	Save(ctx context.Context, request *models.ChangeRequest) error
	List(ctx context.Context, filter ListFilter, limit int, cursor *pagination.Cursor) ([]models.ChangeRequest, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a change-request repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, request *models.ChangeRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ChangeRequest, error) {
	var request models.ChangeRequest
	if err := r.db.WithContext(ctx).First(&request, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) FindPendingByTargetRow(ctx context.Context, targetRowID uuid.UUID) (*models.ChangeRequest, error) {
	var request models.ChangeRequest
	if err := r.db.WithContext(ctx).
		First(&request, "target_row_id = ? AND status = ?", targetRowID, enums.RequestStatusPending).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) FindPendingAdd(ctx context.Context, stageInstanceID, defectTypeID uuid.UUID) (*models.ChangeRequest, error) {
	var request models.ChangeRequest
	if err := r.db.WithContext(ctx).
		First(&request,
			"stage_instance_id = ? AND defect_type_id = ? AND target_row_id IS NULL AND status = ?",
			stageInstanceID, defectTypeID, enums.RequestStatusPending).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) Save(ctx context.Context, request *models.ChangeRequest) error {
	return r.db.WithContext(ctx).Save(request).Error
}

func (r *repository) List(ctx context.Context, filter ListFilter, limit int, cursor *pagination.Cursor) ([]models.ChangeRequest, error) {
	query := r.db.WithContext(ctx).Model(&models.ChangeRequest{})

	if filter.OrderID != uuid.Nil {
		query = query.
			Joins("JOIN stage_instances ON stage_instances.id = change_requests.stage_instance_id").
			Where("stage_instances.order_id = ?", filter.OrderID)
	}
	if filter.StageInstanceID != uuid.Nil {
		query = query.Where("change_requests.stage_instance_id = ?", filter.StageInstanceID)
	}
	if filter.Status != "" {
		query = query.Where("change_requests.status = ?", filter.Status)
	}
	if filter.Type != "" {
		query = query.Where("change_requests.type = ?", filter.Type)
	}
	if filter.RequestedByID != uuid.Nil {
		query = query.Where("change_requests.requested_by_id = ?", filter.RequestedByID)
	}
	if cursor != nil {
		query = query.Where(
			"(change_requests.created_at < ?) OR (change_requests.created_at = ? AND change_requests.id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.ChangeRequest
	if err := query.
		Order("change_requests.created_at DESC, change_requests.id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
