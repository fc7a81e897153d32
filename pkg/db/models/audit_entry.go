package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/stagetrak/stagetrak-backend/pkg/enums"
	"github.com/stagetrak/stagetrak-backend/pkg/types"
)

// AuditEntry is an append-only before/after snapshot of one record mutation.
// Entries are addressed by (table_name, record_id), the typed AuditRef,
// because the trail spans heterogeneous record families.
type AuditEntry struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TableName types.AuditKind   `gorm:"column:table_name;type:text;not null;index:idx_audit_entries_ref"`
	RecordID  uuid.UUID         `gorm:"column:record_id;type:uuid;not null;index:idx_audit_entries_ref"`
	Action    enums.AuditAction `gorm:"column:action;type:text;not null"`
	Before    json.RawMessage   `gorm:"column:before_value;type:jsonb"`
	After     json.RawMessage   `gorm:"column:after_value;type:jsonb"`
	ActorID   uuid.UUID         `gorm:"column:actor_id;type:uuid;not null"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
}
