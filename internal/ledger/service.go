package ledger

import (
	"context"
	stdErrors "errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stagetrak/stagetrak-backend/internal/audit"
	"github.com/stagetrak/stagetrak-backend/internal/catalog"
	"github.com/stagetrak/stagetrak-backend/internal/locks"
	"github.com/stagetrak/stagetrak-backend/internal/reconcile"
	"github.com/stagetrak/stagetrak-backend/internal/stages"
	"github.com/stagetrak/stagetrak-backend/pkg/db/models"
	"github.com/stagetrak/stagetrak-backend/pkg/enums"
	"github.com/stagetrak/stagetrak-backend/pkg/errors"
	"github.com/stagetrak/stagetrak-backend/pkg/logger"
	"github.com/stagetrak/stagetrak-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service handles direct defect ledger edits against a stage that is still
// open. Once a stage completes, non-admin edits must go through the
// change-request workflow; admins may keep editing directly. Every mutation
// revalidates the ledger invariants and re-runs the reconciliation cascade
// in the same transaction.
type Service struct {
	db          txRunner
	repo        Repository
	stageRepo   stages.Repository
	defectTypes catalog.DefectTypeRepository
	locks       *locks.Service
	engine      *reconcile.Engine
	audit       *audit.Service
	catalog     *catalog.Stages
	logg        *logger.Logger
}

func NewService(
	client txRunner,
	repo Repository,
	stageRepo stages.Repository,
	defectTypes catalog.DefectTypeRepository,
	lockSvc *locks.Service,
	engine *reconcile.Engine,
	auditSvc *audit.Service,
	stageCatalog *catalog.Stages,
	logg *logger.Logger,
) *Service {
	return &Service{
		db:          client,
		repo:        repo,
		stageRepo:   stageRepo,
		defectTypes: defectTypes,
		locks:       lockSvc,
		engine:      engine,
		audit:       auditSvc,
		catalog:     stageCatalog,
		logg:        logg,
	}
}

type AddInput struct {
	StageInstanceID uuid.UUID
	DefectTypeID    uuid.UUID
	Quantities      reconcile.Quantities
	ActorID         uuid.UUID
	ActorRole       enums.UserRole
}

func (s *Service) Add(ctx context.Context, input AddInput) (*models.DefectRow, error) {
	if input.StageInstanceID == uuid.Nil || input.DefectTypeID == uuid.Nil || input.ActorID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "stage, defect type and actor ids are required")
	}

	var row *models.DefectRow
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		instance, err := s.openStage(ctx, tx, input.StageInstanceID, input.ActorID, input.ActorRole)
		if err != nil {
			return err
		}

		defectType, err := s.defectTypes.WithTx(tx).FindByID(ctx, input.DefectTypeID)
		if err != nil {
			if stdErrors.Is(err, gorm.ErrRecordNotFound) {
				return errors.New(errors.CodeNotFound, "defect type not found")
			}
			return errors.Wrap(errors.CodeInternal, err, "loading defect type")
		}

		if err := reconcile.ValidateQuantities(input.Quantities, defectType.Reworkable, s.catalog.IsFirst(instance.StageCode)); err != nil {
			return err
		}

		row = &models.DefectRow{
			StageInstanceID: instance.ID,
			DefectTypeID:    defectType.ID,
			DefectName:      defectType.Name,
			Reworkable:      defectType.Reworkable,
			Qty:             input.Quantities.Qty,
			QtyRework:       input.Quantities.QtyRework,
			QtyNoGood:       input.Quantities.QtyNoGood,
			QtyReplacement:  input.Quantities.QtyReplacement,
			RecordedByID:    input.ActorID,
		}
		if err := s.repo.WithTx(tx).Insert(ctx, row); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "inserting defect row")
		}
		if err := s.engine.RecomputeFrom(ctx, tx, instance.ID); err != nil {
			return err
		}

		ref := types.Ref(types.AuditKindDefectRow, row.ID)
		return s.audit.Record(ctx, tx, ref, enums.AuditActionCreate, nil, row, input.ActorID)
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

type UpdateInput struct {
	RowID      uuid.UUID
	Quantities reconcile.Quantities
	ActorID    uuid.UUID
	ActorRole  enums.UserRole
}

func (s *Service) Update(ctx context.Context, input UpdateInput) (*models.DefectRow, error) {
	if input.RowID == uuid.Nil || input.ActorID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "row id and actor id are required")
	}

	var row *models.DefectRow
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		row, err = s.repo.WithTx(tx).FindByID(ctx, input.RowID)
		if err != nil {
			if stdErrors.Is(err, gorm.ErrRecordNotFound) {
				return errors.New(errors.CodeNotFound, "defect row not found")
			}
			return errors.Wrap(errors.CodeInternal, err, "loading defect row")
		}

		instance, err := s.openStage(ctx, tx, row.StageInstanceID, input.ActorID, input.ActorRole)
		if err != nil {
			return err
		}
		if err := reconcile.ValidateQuantities(input.Quantities, row.Reworkable, s.catalog.IsFirst(instance.StageCode)); err != nil {
			return err
		}

		before := *row
		row.Qty = input.Quantities.Qty
		row.QtyRework = input.Quantities.QtyRework
		row.QtyNoGood = input.Quantities.QtyNoGood
		row.QtyReplacement = input.Quantities.QtyReplacement
		if err := s.repo.WithTx(tx).Save(ctx, row); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "saving defect row")
		}
		if err := s.engine.RecomputeFrom(ctx, tx, instance.ID); err != nil {
			return err
		}

		ref := types.Ref(types.AuditKindDefectRow, row.ID)
		return s.audit.Record(ctx, tx, ref, enums.AuditActionUpdate, before, row, input.ActorID)
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

type DeleteInput struct {
	RowID     uuid.UUID
	ActorID   uuid.UUID
	ActorRole enums.UserRole
}

func (s *Service) Delete(ctx context.Context, input DeleteInput) error {
	if input.RowID == uuid.Nil || input.ActorID == uuid.Nil {
		return errors.New(errors.CodeValidation, "row id and actor id are required")
	}

	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		row, err := s.repo.WithTx(tx).FindByID(ctx, input.RowID)
		if err != nil {
			if stdErrors.Is(err, gorm.ErrRecordNotFound) {
				return errors.New(errors.CodeNotFound, "defect row not found")
			}
			return errors.Wrap(errors.CodeInternal, err, "loading defect row")
		}

		instance, err := s.openStage(ctx, tx, row.StageInstanceID, input.ActorID, input.ActorRole)
		if err != nil {
			return err
		}

		if err := s.repo.WithTx(tx).Delete(ctx, row.ID); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "deleting defect row")
		}
		if err := s.engine.RecomputeFrom(ctx, tx, instance.ID); err != nil {
			return err
		}

		ref := types.Ref(types.AuditKindDefectRow, row.ID)
		return s.audit.Record(ctx, tx, ref, enums.AuditActionDelete, row, nil, input.ActorID)
	})
}

// ListByStage returns a stage's ledger rows in recording order.
func (s *Service) ListByStage(ctx context.Context, stageInstanceID uuid.UUID) ([]models.DefectRow, error) {
	if stageInstanceID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "stage instance id is required")
	}
	rows, err := s.repo.ListByStage(ctx, stageInstanceID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing defect rows")
	}
	return rows, nil
}

// openStage loads the stage, verifies the actor holds the order lock, and
// enforces the completed-stage gate: direct edits on a completed stage are
// an admin privilege, everyone else is redirected to change requests.
func (s *Service) openStage(ctx context.Context, tx *gorm.DB, stageInstanceID, actorID uuid.UUID, role enums.UserRole) (*models.StageInstance, error) {
	instance, err := s.stageRepo.WithTx(tx).FindByID(ctx, stageInstanceID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "stage instance not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading stage instance")
	}
	if instance.Status == enums.StageStatusNotStarted {
		return nil, errors.New(errors.CodeNotStarted, "stage has not been started")
	}
	if instance.Status == enums.StageStatusCompleted && !role.IsAdmin() {
		return nil, errors.New(errors.CodeStageCompleted, "stage is completed; submit a change request instead")
	}
	if _, err := s.locks.RequireHeld(ctx, tx, instance.OrderID, actorID); err != nil {
		return nil, err
	}
	return instance, nil
}
