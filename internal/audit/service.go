package audit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stagetrak/stagetrak-backend/pkg/db/models"
	"github.com/stagetrak/stagetrak-backend/pkg/enums"
	"github.com/stagetrak/stagetrak-backend/pkg/errors"
	"github.com/stagetrak/stagetrak-backend/pkg/logger"
	"github.com/stagetrak/stagetrak-backend/pkg/pagination"
	"github.com/stagetrak/stagetrak-backend/pkg/types"
)

// Service writes and reads the append-only audit trail. Entries are never
// updated or deleted; a correction is a new entry.
type Service struct {
	repo Repository
	logg *logger.Logger
}

func NewService(repo Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

// Record appends a before/after snapshot for the mutation of ref inside the
// caller's transaction. Nil before/after is fine: creates have no before,
// deletes have no after.
func (s *Service) Record(ctx context.Context, tx *gorm.DB, ref types.AuditRef, action enums.AuditAction, before, after any, actorID uuid.UUID) error {
	if !ref.Kind.IsValid() || ref.ID == uuid.Nil {
		return errors.New(errors.CodeValidation, "audit reference is incomplete")
	}
	if actorID == uuid.Nil {
		return errors.New(errors.CodeValidation, "audit actor is required")
	}

	beforeJSON, err := marshalSnapshot(before)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "encoding audit before snapshot")
	}
	afterJSON, err := marshalSnapshot(after)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "encoding audit after snapshot")
	}

	entry := &models.AuditEntry{
		TableName: ref.Kind,
		RecordID:  ref.ID,
		Action:    action,
		Before:    beforeJSON,
		After:     afterJSON,
		ActorID:   actorID,
	}
	if err := s.repo.WithTx(tx).Insert(ctx, entry); err != nil {
		return errors.Wrap(errors.CodeInternal, err, "appending audit entry")
	}
	return nil
}

// QueryInput selects which slice of the trail to read. At most one of
// OrderID / StageInstanceID / Ref is honored, in that precedence. An order
// filter fans in across the order, its stages, their defect rows and their
// change requests.
type QueryInput struct {
	OrderID         uuid.UUID
	StageInstanceID uuid.UUID
	Ref             *types.AuditRef
	Limit           int
	Cursor          string
}

// QueryResult is one page of audit entries, newest first.
type QueryResult struct {
	Entries    []models.AuditEntry
	NextCursor string
}

func (s *Service) Query(ctx context.Context, input QueryInput) (*QueryResult, error) {
	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "invalid cursor")
	}

	filter, err := s.resolveFilter(ctx, input)
	if err != nil {
		return nil, err
	}

	limit := pagination.NormalizeLimit(input.Limit)
	entries, err := s.repo.List(ctx, filter, limit+1, cursor)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing audit entries")
	}

	result := &QueryResult{Entries: entries}
	if len(entries) > limit {
		result.Entries = entries[:limit]
		last := result.Entries[limit-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return result, nil
}

func (s *Service) resolveFilter(ctx context.Context, input QueryInput) (ListFilter, error) {
	switch {
	case input.OrderID != uuid.Nil:
		return s.orderFilter(ctx, input.OrderID)
	case input.StageInstanceID != uuid.Nil:
		return s.stageFilter(ctx, input.StageInstanceID)
	case input.Ref != nil:
		if !input.Ref.Kind.IsValid() || input.Ref.ID == uuid.Nil {
			return ListFilter{}, errors.New(errors.CodeValidation, "audit reference is incomplete")
		}
		return ListFilter{Refs: []types.AuditRef{*input.Ref}}, nil
	default:
		return ListFilter{}, nil
	}
}

func (s *Service) orderFilter(ctx context.Context, orderID uuid.UUID) (ListFilter, error) {
	stageIDs, err := s.repo.StageIDsByOrder(ctx, orderID)
	if err != nil {
		return ListFilter{}, errors.Wrap(errors.CodeInternal, err, "resolving order stages")
	}

	refs := []types.AuditRef{types.Ref(types.AuditKindProductionOrder, orderID)}
	for _, id := range stageIDs {
		refs = append(refs, types.Ref(types.AuditKindStageInstance, id))
	}
	leafRefs, err := s.leafRefs(ctx, stageIDs)
	if err != nil {
		return ListFilter{}, err
	}
	return ListFilter{Refs: append(refs, leafRefs...)}, nil
}

func (s *Service) stageFilter(ctx context.Context, stageID uuid.UUID) (ListFilter, error) {
	refs := []types.AuditRef{types.Ref(types.AuditKindStageInstance, stageID)}
	leafRefs, err := s.leafRefs(ctx, []uuid.UUID{stageID})
	if err != nil {
		return ListFilter{}, err
	}
	return ListFilter{Refs: append(refs, leafRefs...)}, nil
}

func (s *Service) leafRefs(ctx context.Context, stageIDs []uuid.UUID) ([]types.AuditRef, error) {
	rowIDs, err := s.repo.DefectRowIDsByStages(ctx, stageIDs)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "resolving defect rows")
	}
	requestIDs, err := s.repo.ChangeRequestIDsByStages(ctx, stageIDs)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "resolving change requests")
	}

	refs := make([]types.AuditRef, 0, len(rowIDs)+len(requestIDs))
	for _, id := range rowIDs {
		refs = append(refs, types.Ref(types.AuditKindDefectRow, id))
	}
	for _, id := range requestIDs {
		refs = append(refs, types.Ref(types.AuditKindChangeRequest, id))
	}
	return refs, nil
}

func marshalSnapshot(value any) (json.RawMessage, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
