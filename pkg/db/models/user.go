package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/stagetrak/stagetrak-backend/pkg/enums"
)

// User mirrors the external user directory: the lock orphan sweep resolves
// lock holders against it, and auth claims are validated against the role.
type User struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Username    string         `gorm:"column:username;type:text;not null;uniqueIndex"`
	DisplayName string         `gorm:"column:display_name;type:text;not null"`
	Role        enums.UserRole `gorm:"column:role;type:text;not null"`
	Active      bool           `gorm:"column:active;not null;default:true"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
