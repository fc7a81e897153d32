package models

import (
	"time"

	"github.com/google/uuid"
)

// DefectRow is one defect-type entry recorded against a stage instance.
// Invariants enforced by the ledger service: Qty == QtyRework + QtyNoGood;
// non-reworkable rows carry QtyRework == 0; QtyReplacement is non-zero only
// on the catalog's first stage and never exceeds Qty. Reworkable is copied
// from the defect type at recording time so later catalog edits do not
// rewrite history.
type DefectRow struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StageInstanceID uuid.UUID `gorm:"column:stage_instance_id;type:uuid;not null;index"`
	DefectTypeID    uuid.UUID `gorm:"column:defect_type_id;type:uuid;not null"`
	DefectName      string    `gorm:"column:defect_name;type:text;not null"`
	Reworkable      bool      `gorm:"column:reworkable;not null"`

	Qty            int `gorm:"column:qty;not null"`
	QtyRework      int `gorm:"column:qty_rework;not null;default:0"`
	QtyNoGood      int `gorm:"column:qty_no_good;not null;default:0"`
	QtyReplacement int `gorm:"column:qty_replacement;not null;default:0"`

	RecordedByID uuid.UUID `gorm:"column:recorded_by_id;type:uuid;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
