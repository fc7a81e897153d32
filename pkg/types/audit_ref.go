package types

import (
	"fmt"

	"github.com/google/uuid"
)

// AuditKind names a record family the audit trail can address. Entries are
// keyed by (kind, id) so heterogeneous records share one append-only log.
type AuditKind string

const (
	AuditKindProductionOrder AuditKind = "production_orders"
	AuditKindStageInstance   AuditKind = "stage_instances"
	AuditKindDefectRow       AuditKind = "defect_rows"
	AuditKindChangeRequest   AuditKind = "change_requests"
)

var validAuditKinds = []AuditKind{
	AuditKindProductionOrder,
	AuditKindStageInstance,
	AuditKindDefectRow,
	AuditKindChangeRequest,
}

// IsValid reports whether the kind matches a known record family.
func (k AuditKind) IsValid() bool {
	for _, candidate := range validAuditKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseAuditKind converts the raw string to AuditKind.
func ParseAuditKind(value string) (AuditKind, error) {
	for _, candidate := range validAuditKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit kind %q", value)
}

// AuditRef is the typed join key for audit entries.
type AuditRef struct {
	Kind AuditKind `json:"kind"`
	ID   uuid.UUID `json:"id"`
}

// Ref builds an AuditRef for the given kind and record id.
func Ref(kind AuditKind, id uuid.UUID) AuditRef {
	return AuditRef{Kind: kind, ID: id}
}
