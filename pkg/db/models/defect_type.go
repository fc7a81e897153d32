package models

import (
	"time"

	"github.com/google/uuid"
)

// DefectType is the catalog entry a ledger row snapshots at recording time.
// Lookup by name exists only for the identity-recovery path.
type DefectType struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name       string    `gorm:"column:name;type:text;not null;uniqueIndex"`
	Category   string    `gorm:"column:category;type:text"`
	Reworkable bool      `gorm:"column:reworkable;not null"`
	Machine    *string   `gorm:"column:machine;type:text"`
	Active     bool      `gorm:"column:active;not null;default:true"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
