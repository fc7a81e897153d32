package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stagetrak/stagetrak-backend/pkg/enums"
)

// StageInstance is one stage of one production order. Output quantity stays
// nil until the reconciliation engine computes it; once the order moves on,
// the row is historical and only the change-request workflow may alter its
// ledger.
type StageInstance struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index:idx_stage_instances_order_stage,unique"`
	StageCode string            `gorm:"column:stage_code;type:text;not null;index:idx_stage_instances_order_stage,unique"`
	Sequence  int               `gorm:"column:sequence;not null"`
	Status    enums.StageStatus `gorm:"column:status;type:text;not null;default:not_started"`

	OperatorID  uuid.UUID  `gorm:"column:operator_id;type:uuid;not null"`
	EncoderID   *uuid.UUID `gorm:"column:encoder_id;type:uuid"`
	StartedAt   time.Time  `gorm:"column:started_at;type:timestamptz;not null"`
	CompletedAt *time.Time `gorm:"column:completed_at;type:timestamptz"`

	InputQty       int             `gorm:"column:input_qty;not null"`
	OutputQty      *int            `gorm:"column:output_qty"`
	ResourceFactor decimal.Decimal `gorm:"column:resource_factor;type:numeric(10,4);not null;default:1"`
	LineNo         *string         `gorm:"column:line_no;type:text"`
	Shift          string          `gorm:"column:shift;type:text"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
