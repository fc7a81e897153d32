package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/stagetrak/stagetrak-backend/pkg/enums"
)

// ChangeRequest proposes an add/edit/delete against a stage's defect ledger.
// Edit/delete requests reference an existing row; add requests carry the
// denormalized defect-type data since no row exists yet. The denormalized
// name also feeds the identity-recovery search when the referenced row has
// drifted by the time an admin resolves the request.
type ChangeRequest struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StageInstanceID uuid.UUID         `gorm:"column:stage_instance_id;type:uuid;not null;index"`
	Type            enums.RequestType `gorm:"column:type;type:text;not null"`

	TargetRowID  *uuid.UUID `gorm:"column:target_row_id;type:uuid;index"`
	DefectTypeID *uuid.UUID `gorm:"column:defect_type_id;type:uuid"`
	DefectName   string     `gorm:"column:defect_name;type:text;not null"`
	Category     string     `gorm:"column:category;type:text"`
	Reworkable   bool       `gorm:"column:reworkable;not null"`
	Machine      *string    `gorm:"column:machine;type:text"`

	CurrentQty            *int `gorm:"column:current_qty"`
	CurrentQtyRework      *int `gorm:"column:current_qty_rework"`
	CurrentQtyNoGood      *int `gorm:"column:current_qty_no_good"`
	CurrentQtyReplacement *int `gorm:"column:current_qty_replacement"`

	RequestedQty            int `gorm:"column:requested_qty;not null"`
	RequestedQtyRework      int `gorm:"column:requested_qty_rework;not null;default:0"`
	RequestedQtyNoGood      int `gorm:"column:requested_qty_no_good;not null;default:0"`
	RequestedQtyReplacement int `gorm:"column:requested_qty_replacement;not null;default:0"`

	Reason string              `gorm:"column:reason;type:text;not null"`
	Status enums.RequestStatus `gorm:"column:status;type:text;not null;default:pending"`

	RequestedByID   uuid.UUID  `gorm:"column:requested_by_id;type:uuid;not null"`
	RequestedByName string     `gorm:"column:requested_by_name;type:text"`
	ResolvedByID    *uuid.UUID `gorm:"column:resolved_by_id;type:uuid"`
	ResolutionNote  *string    `gorm:"column:resolution_note;type:text"`
	ResolvedAt      *time.Time `gorm:"column:resolved_at;type:timestamptz"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
