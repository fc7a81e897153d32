package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/stagetrak/stagetrak-backend/pkg/enums"
)

// Notification is the durable pull-side record of a fan-out event. Exactly
// one of UserID or Role is set: user-addressed rows target the requester,
// role-addressed rows target a group such as the administrators.
type Notification struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    *uuid.UUID             `gorm:"column:user_id;type:uuid;index"`
	Role      *enums.UserRole        `gorm:"column:role;type:text;index"`
	Type      enums.NotificationType `gorm:"column:type;type:text;not null"`
	Title     string                 `gorm:"column:title;type:text;not null"`
	Message   string                 `gorm:"column:message;type:text;not null"`
	Link      *string                `gorm:"column:link;type:text"`
	ReadAt    *time.Time             `gorm:"column:read_at;type:timestamptz"`
	CreatedAt time.Time              `gorm:"column:created_at;type:timestamptz;default:now()"`
}
