package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/stagetrak/stagetrak-backend/pkg/enums"
)

// ProductionOrder is a unit of work moving through the fixed stage sequence.
// Orders are never deleted; they are completed. Lock fields implement the
// exclusive-edit lease the Lock Coordinator hands out.
type ProductionOrder struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber  string            `gorm:"column:order_number;type:text;not null;uniqueIndex"`
	Quantity     int               `gorm:"column:quantity;not null"`
	CurrentStage *string           `gorm:"column:current_stage;type:text"`
	Status       enums.OrderStatus `gorm:"column:status;type:text;not null;default:created"`

	Locked       bool       `gorm:"column:locked;not null;default:false"`
	LockedByID   *uuid.UUID `gorm:"column:locked_by_id;type:uuid"`
	LockedByName *string    `gorm:"column:locked_by_name;type:text"`
	LockedAt     *time.Time `gorm:"column:locked_at;type:timestamptz"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
