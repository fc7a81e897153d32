package requests

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stagetrak/stagetrak-backend/internal/audit"
	"github.com/stagetrak/stagetrak-backend/internal/catalog"
	"github.com/stagetrak/stagetrak-backend/internal/ledger"
	"github.com/stagetrak/stagetrak-backend/internal/locks"
	"github.com/stagetrak/stagetrak-backend/internal/notify"
	"github.com/stagetrak/stagetrak-backend/internal/reconcile"
	"github.com/stagetrak/stagetrak-backend/internal/stages"
	"github.com/stagetrak/stagetrak-backend/pkg/db/models"
	"github.com/stagetrak/stagetrak-backend/pkg/enums"
	"github.com/stagetrak/stagetrak-backend/pkg/errors"
	"github.com/stagetrak/stagetrak-backend/pkg/logger"
	"github.com/stagetrak/stagetrak-backend/pkg/pagination"
	"github.com/stagetrak/stagetrak-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service runs the change-request workflow: non-admin users propose ledger
// mutations, admins resolve them. Approval applies the mutation and re-runs
// the reconciliation cascade in one transaction; rejection records only the
// decision. A request whose target row cannot be recovered stays pending.
type Service struct {
	db          txRunner
	repo        Repository
	rows        ledger.Repository
	stageRepo   stages.Repository
	defectTypes catalog.DefectTypeRepository
	locks       *locks.Service
	engine      *reconcile.Engine
	audit       *audit.Service
	notify      *notify.Service
	catalog     *catalog.Stages
	logg        *logger.Logger
	now         func() time.Time
}

func NewService(
	client txRunner,
	repo Repository,
	rowRepo ledger.Repository,
	stageRepo stages.Repository,
	defectTypes catalog.DefectTypeRepository,
	lockSvc *locks.Service,
	engine *reconcile.Engine,
	auditSvc *audit.Service,
	notifySvc *notify.Service,
	stageCatalog *catalog.Stages,
	logg *logger.Logger,
) *Service {
	return &Service{
		db:          client,
		repo:        repo,
		rows:        rowRepo,
		stageRepo:   stageRepo,
		defectTypes: defectTypes,
		locks:       lockSvc,
		engine:      engine,
		audit:       auditSvc,
		notify:      notifySvc,
		catalog:     stageCatalog,
		logg:        logg,
		now:         time.Now,
	}
}

type SubmitInput struct {
	StageInstanceID uuid.UUID
	Type            enums.RequestType
	TargetRowID     *uuid.UUID
	DefectTypeID    *uuid.UUID
	Requested       reconcile.Quantities
	Reason          string
	ActorID         uuid.UUID
	ActorName       string
	ActorRole       enums.UserRole
}

// Submit files a change request. Admins are rejected outright since they edit
// the ledger directly. A pending request already covering the same target is
// updated in place rather than duplicated.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (*models.ChangeRequest, error) {
	if input.ActorRole.IsAdmin() {
		return nil, errors.New(errors.CodeAdminDirectEdit, "administrators edit the ledger directly")
	}
	if input.StageInstanceID == uuid.Nil || input.ActorID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "stage instance id and actor id are required")
	}
	if !input.Type.IsValid() {
		return nil, errors.New(errors.CodeValidation, "invalid request type")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return nil, errors.New(errors.CodeValidation, "a reason is required")
	}
	if input.Type == enums.RequestTypeDelete {
		// A delete proposes removal; quantities are irrelevant and normalized.
		input.Requested = reconcile.Quantities{}
	}

	var request *models.ChangeRequest
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		instance, err := s.stageRepo.WithTx(tx).FindByID(ctx, input.StageInstanceID)
		if err != nil {
			if stdErrors.Is(err, gorm.ErrRecordNotFound) {
				return errors.New(errors.CodeNotFound, "stage instance not found")
			}
			return errors.Wrap(errors.CodeInternal, err, "loading stage instance")
		}
		if instance.Status == enums.StageStatusNotStarted {
			return errors.New(errors.CodeNotStarted, "stage has not been started")
		}

		switch input.Type {
		case enums.RequestTypeAdd:
			request, err = s.submitAdd(ctx, tx, instance, input)
		default:
			request, err = s.submitRowChange(ctx, tx, instance, input)
		}
		if err != nil {
			return err
		}

		adminRole := enums.UserRoleAdmin
		return s.notify.Publish(ctx, tx, notify.Message{
			Role:    &adminRole,
			Type:    enums.NotificationTypeRequestSubmitted,
			Title:   "Change request submitted",
			Message: fmt.Sprintf("%s requested to %s %q", input.ActorName, input.Type, request.DefectName),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithField(ctx, "request_id", request.ID), "change request submitted")
	return request, nil
}

func (s *Service) submitAdd(ctx context.Context, tx *gorm.DB, instance *models.StageInstance, input SubmitInput) (*models.ChangeRequest, error) {
	if input.DefectTypeID == nil || *input.DefectTypeID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "defect type id is required for an add request")
	}

	defectType, err := s.defectTypes.WithTx(tx).FindByID(ctx, *input.DefectTypeID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "defect type not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading defect type")
	}
	if err := reconcile.ValidateQuantities(input.Requested, defectType.Reworkable, s.catalog.IsFirst(instance.StageCode)); err != nil {
		return nil, err
	}

	repo := s.repo.WithTx(tx)

	// Dedupe: one pending add per (stage, defect type). An existing pending
	// request absorbs the new values.
	if existing, err := repo.FindPendingAdd(ctx, instance.ID, defectType.ID); err == nil {
		return s.refreshPending(ctx, tx, existing, input)
	} else if !stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrap(errors.CodeInternal, err, "checking for pending add request")
	}

	request := &models.ChangeRequest{
		StageInstanceID: instance.ID,
		Type:            enums.RequestTypeAdd,
		DefectTypeID:    &defectType.ID,
		DefectName:      defectType.Name,
		Category:        defectType.Category,
		Reworkable:      defectType.Reworkable,
		Machine:         defectType.Machine,
		Reason:          strings.TrimSpace(input.Reason),
		Status:          enums.RequestStatusPending,
		RequestedByID:   input.ActorID,
		RequestedByName: input.ActorName,
	}
	applyRequested(request, input.Requested)

	if err := repo.Insert(ctx, request); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "inserting change request")
	}
	ref := types.Ref(types.AuditKindChangeRequest, request.ID)
	if err := s.audit.Record(ctx, tx, ref, enums.AuditActionCreate, nil, request, input.ActorID); err != nil {
		return nil, err
	}
	return request, nil
}

func (s *Service) submitRowChange(ctx context.Context, tx *gorm.DB, instance *models.StageInstance, input SubmitInput) (*models.ChangeRequest, error) {
	if input.TargetRowID == nil || *input.TargetRowID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "target row id is required for an edit or delete request")
	}

	row, err := s.rows.WithTx(tx).FindByID(ctx, *input.TargetRowID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "target defect row not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading target defect row")
	}
	if row.StageInstanceID != instance.ID {
		return nil, errors.New(errors.CodeValidation, "target row does not belong to the stage")
	}
	if input.Type == enums.RequestTypeEdit {
		if err := reconcile.ValidateQuantities(input.Requested, row.Reworkable, s.catalog.IsFirst(instance.StageCode)); err != nil {
			return nil, err
		}
	}

	repo := s.repo.WithTx(tx)

	// Dedupe: one pending request per target row.
	if existing, err := repo.FindPendingByTargetRow(ctx, row.ID); err == nil {
		existing.Type = input.Type
		return s.refreshPending(ctx, tx, existing, input)
	} else if !stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrap(errors.CodeInternal, err, "checking for pending row request")
	}

	request := &models.ChangeRequest{
		StageInstanceID: instance.ID,
		Type:            input.Type,
		TargetRowID:     &row.ID,
		DefectTypeID:    &row.DefectTypeID,
		DefectName:      row.DefectName,
		Reworkable:      row.Reworkable,
		Reason:          strings.TrimSpace(input.Reason),
		Status:          enums.RequestStatusPending,
		RequestedByID:   input.ActorID,
		RequestedByName: input.ActorName,
	}
	snapshotCurrent(request, row)
	applyRequested(request, input.Requested)

	if err := repo.Insert(ctx, request); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "inserting change request")
	}
	ref := types.Ref(types.AuditKindChangeRequest, request.ID)
	if err := s.audit.Record(ctx, tx, ref, enums.AuditActionCreate, nil, request, input.ActorID); err != nil {
		return nil, err
	}
	return request, nil
}

// refreshPending folds a duplicate submission into the already-pending
// request for the same target.
func (s *Service) refreshPending(ctx context.Context, tx *gorm.DB, request *models.ChangeRequest, input SubmitInput) (*models.ChangeRequest, error) {
	before := *request
	applyRequested(request, input.Requested)
	request.Reason = strings.TrimSpace(input.Reason)
	request.RequestedByID = input.ActorID
	request.RequestedByName = input.ActorName

	if err := s.repo.WithTx(tx).Save(ctx, request); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "updating pending change request")
	}
	ref := types.Ref(types.AuditKindChangeRequest, request.ID)
	if err := s.audit.Record(ctx, tx, ref, enums.AuditActionUpdate, before, request, input.ActorID); err != nil {
		return nil, err
	}
	return request, nil
}

type ResolveInput struct {
	RequestID uuid.UUID
	Approve   bool
	Note      *string
	ActorID   uuid.UUID
	ActorRole enums.UserRole
}

// Resolve approves or rejects a pending request. Approval applies the
// proposed mutation, recovering the target row if its id went stale, and
// cascades the recomputation. When recovery exhausts every fallback the call
// fails with TARGET_ROW_NOT_FOUND and the request stays pending.
func (s *Service) Resolve(ctx context.Context, input ResolveInput) (*models.ChangeRequest, error) {
	if !input.ActorRole.IsAdmin() {
		return nil, errors.New(errors.CodeForbidden, "only administrators resolve change requests")
	}
	if input.RequestID == uuid.Nil || input.ActorID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "request id and actor id are required")
	}

	var request *models.ChangeRequest
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		request, err = s.repo.WithTx(tx).FindByID(ctx, input.RequestID)
		if err != nil {
			if stdErrors.Is(err, gorm.ErrRecordNotFound) {
				return errors.New(errors.CodeNotFound, "change request not found")
			}
			return errors.Wrap(errors.CodeInternal, err, "loading change request")
		}
		if request.Status != enums.RequestStatusPending {
			return errors.New(errors.CodeAlreadyResolved, "change request is already resolved").
				WithDetails(map[string]any{"status": request.Status})
		}

		before := *request

		if input.Approve {
			if err := s.applyApproval(ctx, tx, request, input.ActorID); err != nil {
				return err
			}
			request.Status = enums.RequestStatusApproved
		} else {
			request.Status = enums.RequestStatusRejected
		}

		now := s.now().UTC()
		request.ResolvedByID = &input.ActorID
		request.ResolutionNote = input.Note
		request.ResolvedAt = &now
		if err := s.repo.WithTx(tx).Save(ctx, request); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "saving resolved change request")
		}

		ref := types.Ref(types.AuditKindChangeRequest, request.ID)
		if err := s.audit.Record(ctx, tx, ref, enums.AuditActionUpdate, before, request, input.ActorID); err != nil {
			return err
		}

		requester := request.RequestedByID
		return s.notify.Publish(ctx, tx, notify.Message{
			UserID:  &requester,
			Type:    enums.NotificationTypeRequestResolved,
			Title:   "Change request resolved",
			Message: fmt.Sprintf("Your %s request for %q was %s", request.Type, request.DefectName, request.Status),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"request_id": request.ID,
		"status":     request.Status,
	}), "change request resolved")
	return request, nil
}

func (s *Service) applyApproval(ctx context.Context, tx *gorm.DB, request *models.ChangeRequest, actorID uuid.UUID) error {
	instance, err := s.stageRepo.WithTx(tx).FindByID(ctx, request.StageInstanceID)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "loading stage instance for approval")
	}
	// Row-lock the order before reading the ledger so a concurrent approval
	// on the same order cannot commit a stale recomputed output.
	if err := s.locks.SerializeOrder(ctx, tx, instance.OrderID); err != nil {
		return err
	}
	firstStage := s.catalog.IsFirst(instance.StageCode)
	requested := requestedQuantities(request)

	switch request.Type {
	case enums.RequestTypeAdd:
		if err := reconcile.ValidateQuantities(requested, request.Reworkable, firstStage); err != nil {
			return err
		}
		row := &models.DefectRow{
			StageInstanceID: request.StageInstanceID,
			DefectTypeID:    derefUUID(request.DefectTypeID),
			DefectName:      request.DefectName,
			Reworkable:      request.Reworkable,
			Qty:             requested.Qty,
			QtyRework:       requested.QtyRework,
			QtyNoGood:       requested.QtyNoGood,
			QtyReplacement:  requested.QtyReplacement,
			RecordedByID:    request.RequestedByID,
		}
		if err := s.rows.WithTx(tx).Insert(ctx, row); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "inserting approved defect row")
		}
		request.TargetRowID = &row.ID
		ref := types.Ref(types.AuditKindDefectRow, row.ID)
		if err := s.audit.Record(ctx, tx, ref, enums.AuditActionCreate, nil, row, actorID); err != nil {
			return err
		}

	case enums.RequestTypeEdit:
		row, err := s.recoverTargetRow(ctx, tx, request)
		if err != nil {
			return err
		}
		if err := reconcile.ValidateQuantities(requested, row.Reworkable, firstStage); err != nil {
			return err
		}
		beforeRow := *row
		row.Qty = requested.Qty
		row.QtyRework = requested.QtyRework
		row.QtyNoGood = requested.QtyNoGood
		row.QtyReplacement = requested.QtyReplacement
		if err := s.rows.WithTx(tx).Save(ctx, row); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "saving approved defect row edit")
		}
		request.TargetRowID = &row.ID
		ref := types.Ref(types.AuditKindDefectRow, row.ID)
		if err := s.audit.Record(ctx, tx, ref, enums.AuditActionUpdate, beforeRow, row, actorID); err != nil {
			return err
		}

	case enums.RequestTypeDelete:
		row, err := s.recoverTargetRow(ctx, tx, request)
		if err != nil {
			return err
		}
		if err := s.rows.WithTx(tx).Delete(ctx, row.ID); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "deleting approved defect row")
		}
		request.TargetRowID = &row.ID
		ref := types.Ref(types.AuditKindDefectRow, row.ID)
		if err := s.audit.Record(ctx, tx, ref, enums.AuditActionDelete, row, nil, actorID); err != nil {
			return err
		}
	}

	return s.engine.RecomputeFrom(ctx, tx, request.StageInstanceID)
}

// recoverTargetRow walks the identity recovery chain: the stored row id, then
// the same stage's row for the same defect type, then the same stage's row
// with the same defect name. Exhaustion means the target is gone.
func (s *Service) recoverTargetRow(ctx context.Context, tx *gorm.DB, request *models.ChangeRequest) (*models.DefectRow, error) {
	rows := s.rows.WithTx(tx)

	if request.TargetRowID != nil && *request.TargetRowID != uuid.Nil {
		row, err := rows.FindByID(ctx, *request.TargetRowID)
		if err == nil && row.StageInstanceID == request.StageInstanceID {
			return row, nil
		}
		if err != nil && !stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrap(errors.CodeInternal, err, "loading target row")
		}
	}

	if request.DefectTypeID != nil && *request.DefectTypeID != uuid.Nil {
		row, err := rows.FindByStageAndType(ctx, request.StageInstanceID, *request.DefectTypeID)
		if err == nil {
			return row, nil
		}
		if !stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrap(errors.CodeInternal, err, "recovering row by defect type")
		}
	}

	if request.DefectName != "" {
		row, err := rows.FindByStageAndName(ctx, request.StageInstanceID, request.DefectName)
		if err == nil {
			return row, nil
		}
		if !stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrap(errors.CodeInternal, err, "recovering row by defect name")
		}
	}

	return nil, errors.New(errors.CodeTargetRowNotFound, "target defect row could not be recovered").
		WithDetails(map[string]any{"requestId": request.ID})
}

type ListInput struct {
	OrderID         uuid.UUID
	StageInstanceID uuid.UUID
	Status          string
	Type            string
	RequestedByID   uuid.UUID
	Limit           int
	Cursor          string
}

type ListResult struct {
	Requests   []models.ChangeRequest
	NextCursor string
}

func (s *Service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	filter := ListFilter{
		OrderID:         input.OrderID,
		StageInstanceID: input.StageInstanceID,
		RequestedByID:   input.RequestedByID,
	}
	if input.Status != "" {
		status, err := enums.ParseRequestStatus(input.Status)
		if err != nil {
			return nil, errors.Wrap(errors.CodeValidation, err, "invalid status filter")
		}
		filter.Status = status
	}
	if input.Type != "" {
		requestType, err := enums.ParseRequestType(input.Type)
		if err != nil {
			return nil, errors.Wrap(errors.CodeValidation, err, "invalid type filter")
		}
		filter.Type = requestType
	}

	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(input.Limit)
	rows, err := s.repo.List(ctx, filter, limit+1, cursor)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing change requests")
	}

	result := &ListResult{Requests: rows}
	if len(rows) > limit {
		result.Requests = rows[:limit]
		last := result.Requests[limit-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return result, nil
}

// Get loads one change request.
func (s *Service) Get(ctx context.Context, requestID uuid.UUID) (*models.ChangeRequest, error) {
	if requestID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "request id is required")
	}
	request, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "change request not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading change request")
	}
	return request, nil
}

func applyRequested(request *models.ChangeRequest, q reconcile.Quantities) {
	request.RequestedQty = q.Qty
	request.RequestedQtyRework = q.QtyRework
	request.RequestedQtyNoGood = q.QtyNoGood
	request.RequestedQtyReplacement = q.QtyReplacement
}

func requestedQuantities(request *models.ChangeRequest) reconcile.Quantities {
	return reconcile.Quantities{
		Qty:            request.RequestedQty,
		QtyRework:      request.RequestedQtyRework,
		QtyNoGood:      request.RequestedQtyNoGood,
		QtyReplacement: request.RequestedQtyReplacement,
	}
}

func snapshotCurrent(request *models.ChangeRequest, row *models.DefectRow) {
	qty, rework, noGood, replacement := row.Qty, row.QtyRework, row.QtyNoGood, row.QtyReplacement
	request.CurrentQty = &qty
	request.CurrentQtyRework = &rework
	request.CurrentQtyNoGood = &noGood
	request.CurrentQtyReplacement = &replacement
}

func derefUUID(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}
