package stages

import (
	"context"
	stdErrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stagetrak/stagetrak-backend/internal/audit"
	"github.com/stagetrak/stagetrak-backend/internal/catalog"
	"github.com/stagetrak/stagetrak-backend/internal/locks"
	"github.com/stagetrak/stagetrak-backend/internal/orders"
	"github.com/stagetrak/stagetrak-backend/internal/reconcile"
	"github.com/stagetrak/stagetrak-backend/pkg/db"
	"github.com/stagetrak/stagetrak-backend/pkg/db/models"
	"github.com/stagetrak/stagetrak-backend/pkg/enums"
	"github.com/stagetrak/stagetrak-backend/pkg/errors"
	"github.com/stagetrak/stagetrak-backend/pkg/logger"
	"github.com/stagetrak/stagetrak-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service drives the stage state machine. Stages start strictly in catalog
// order: the first stage draws its input from the order quantity, every later
// stage from the completed predecessor's output. Completing a stage freezes
// its output until the ledger changes again, at which point the engine
// recomputes and cascades.
type Service struct {
	db      txRunner
	repo    Repository
	orders  orders.Repository
	locks   *locks.Service
	engine  *reconcile.Engine
	audit   *audit.Service
	catalog *catalog.Stages
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(
	client txRunner,
	repo Repository,
	orderRepo orders.Repository,
	lockSvc *locks.Service,
	engine *reconcile.Engine,
	auditSvc *audit.Service,
	stageCatalog *catalog.Stages,
	logg *logger.Logger,
) *Service {
	return &Service{
		db:      client,
		repo:    repo,
		orders:  orderRepo,
		locks:   lockSvc,
		engine:  engine,
		audit:   auditSvc,
		catalog: stageCatalog,
		logg:    logg,
		now:     time.Now,
	}
}

type StartInput struct {
	OrderID        uuid.UUID
	StageCode      string
	ActorID        uuid.UUID
	EncoderID      *uuid.UUID
	Shift          string
	LineNo         *string
	ResourceFactor decimal.Decimal
}

// Start opens a stage for an order. The caller must hold the order's edit
// lock. Fails with SEQUENCE_VIOLATION when the previous catalog stage has not
// completed, and ALREADY_STARTED when the stage instance already exists.
func (s *Service) Start(ctx context.Context, input StartInput) (*models.StageInstance, error) {
	if input.OrderID == uuid.Nil || input.ActorID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "order id and actor id are required")
	}
	stage, ok := s.catalog.ByCode(input.StageCode)
	if !ok {
		return nil, errors.New(errors.CodeValidation, "unknown stage code").
			WithDetails(map[string]any{"stageCode": input.StageCode})
	}

	var instance *models.StageInstance
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.locks.RequireHeld(ctx, tx, input.OrderID, input.ActorID)
		if err != nil {
			return err
		}
		if order.Status == enums.OrderStatusCompleted {
			return errors.New(errors.CodeSequenceViolation, "order is already completed")
		}

		repo := s.repo.WithTx(tx)
		if _, err := repo.FindByOrderAndCode(ctx, order.ID, stage.Code); err == nil {
			return errors.New(errors.CodeAlreadyStarted, "stage already started for this order").
				WithDetails(map[string]any{"stageCode": stage.Code})
		} else if !stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.Wrap(errors.CodeInternal, err, "checking for existing stage instance")
		}

		inputQty := order.Quantity
		if !s.catalog.IsFirst(stage.Code) {
			prev, _ := s.catalog.Prev(stage.Code)
			prevInstance, err := repo.FindByOrderAndCode(ctx, order.ID, prev.Code)
			if err != nil {
				if stdErrors.Is(err, gorm.ErrRecordNotFound) {
					return sequenceError(prev.Code, "previous stage has not started")
				}
				return errors.Wrap(errors.CodeInternal, err, "loading previous stage instance")
			}
			if prevInstance.Status != enums.StageStatusCompleted {
				return sequenceError(prev.Code, "previous stage has not completed")
			}
			if prevInstance.OutputQty == nil {
				return errors.New(errors.CodeInternal, "completed stage is missing an output quantity")
			}
			inputQty = *prevInstance.OutputQty
		}

		factor := input.ResourceFactor
		if factor.IsZero() {
			factor = decimal.NewFromInt(1)
		}

		instance = &models.StageInstance{
			OrderID:        order.ID,
			StageCode:      stage.Code,
			Sequence:       stage.Sequence,
			Status:         enums.StageStatusStarted,
			OperatorID:     input.ActorID,
			EncoderID:      input.EncoderID,
			StartedAt:      s.now().UTC(),
			InputQty:       inputQty,
			ResourceFactor: factor,
			LineNo:         input.LineNo,
			Shift:          input.Shift,
		}
		if err := repo.Insert(ctx, instance); err != nil {
			if db.IsUniqueViolation(err, "idx_stage_instances_order_stage") {
				return errors.New(errors.CodeAlreadyStarted, "stage already started for this order")
			}
			return errors.Wrap(errors.CodeInternal, err, "inserting stage instance")
		}

		stageCode := stage.Code
		if err := s.orders.WithTx(tx).UpdateProgress(ctx, order.ID, &stageCode, enums.OrderStatusInProgress); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "advancing order progress")
		}

		ref := types.Ref(types.AuditKindStageInstance, instance.ID)
		return s.audit.Record(ctx, tx, ref, enums.AuditActionCreate, nil, instance, input.ActorID)
	})
	if err != nil {
		return nil, err
	}

	stageCtx := s.logg.WithFields(ctx, map[string]any{"stage_code": stage.Code, "order_id": input.OrderID})
	s.logg.Info(stageCtx, "stage started")
	return instance, nil
}

type CompleteInput struct {
	OrderID        uuid.UUID
	StageCode      string
	ActorID        uuid.UUID
	EncoderID      *uuid.UUID
	LineNo         *string
	ResourceFactor decimal.Decimal
}

// Complete closes a started stage. A non-empty line number must be on record
// (either set at start or provided here) or the call fails with
// MISSING_LINE_NUMBER. A non-zero resource factor corrects the value recorded
// at start. The output quantity is recomputed from the ledger and frozen;
// completing the final catalog stage completes the order.
func (s *Service) Complete(ctx context.Context, input CompleteInput) (*models.StageInstance, error) {
	if input.OrderID == uuid.Nil || input.ActorID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "order id and actor id are required")
	}
	stage, ok := s.catalog.ByCode(input.StageCode)
	if !ok {
		return nil, errors.New(errors.CodeValidation, "unknown stage code").
			WithDetails(map[string]any{"stageCode": input.StageCode})
	}

	var instance *models.StageInstance
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.locks.RequireHeld(ctx, tx, input.OrderID, input.ActorID)
		if err != nil {
			return err
		}

		repo := s.repo.WithTx(tx)
		instance, err = repo.FindByOrderAndCode(ctx, order.ID, stage.Code)
		if err != nil {
			if stdErrors.Is(err, gorm.ErrRecordNotFound) {
				return errors.New(errors.CodeNotStarted, "stage has not been started").
					WithDetails(map[string]any{"stageCode": stage.Code})
			}
			return errors.Wrap(errors.CodeInternal, err, "loading stage instance")
		}
		switch instance.Status {
		case enums.StageStatusStarted:
		case enums.StageStatusCompleted:
			return errors.New(errors.CodeStageCompleted, "stage is already completed")
		default:
			return errors.New(errors.CodeNotStarted, "stage has not been started")
		}

		before := *instance

		if input.LineNo != nil && strings.TrimSpace(*input.LineNo) != "" {
			instance.LineNo = input.LineNo
		}
		if instance.LineNo == nil || strings.TrimSpace(*instance.LineNo) == "" {
			return errors.New(errors.CodeMissingLineNumber, "line number is required to complete a stage")
		}
		if input.EncoderID != nil {
			instance.EncoderID = input.EncoderID
		}
		if !input.ResourceFactor.IsZero() {
			instance.ResourceFactor = input.ResourceFactor
		}

		output, err := s.engine.OutputOf(ctx, tx, *instance)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		instance.OutputQty = &output
		instance.Status = enums.StageStatusCompleted
		instance.CompletedAt = &now
		if err := repo.Save(ctx, instance); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "persisting completed stage")
		}

		if s.catalog.IsLast(stage.Code) {
			stageCode := stage.Code
			if err := s.orders.WithTx(tx).UpdateProgress(ctx, order.ID, &stageCode, enums.OrderStatusCompleted); err != nil {
				return errors.Wrap(errors.CodeInternal, err, "completing order")
			}
		}

		ref := types.Ref(types.AuditKindStageInstance, instance.ID)
		return s.audit.Record(ctx, tx, ref, enums.AuditActionUpdate, before, instance, input.ActorID)
	})
	if err != nil {
		return nil, err
	}

	stageCtx := s.logg.WithFields(ctx, map[string]any{"stage_code": stage.Code, "order_id": input.OrderID})
	s.logg.Info(stageCtx, "stage completed")
	return instance, nil
}

// StageView pairs a catalog stage with the order's instance, when one exists.
type StageView struct {
	Stage    catalog.Stage
	Instance *models.StageInstance
}

// Board returns the order's position against the full catalog: one entry per
// catalog stage, populated where an instance exists.
func (s *Service) Board(ctx context.Context, orderID uuid.UUID) ([]StageView, error) {
	if orderID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "order id is required")
	}
	instances, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing stage instances")
	}

	byCode := make(map[string]*models.StageInstance, len(instances))
	for i := range instances {
		byCode[instances[i].StageCode] = &instances[i]
	}

	views := make([]StageView, 0, s.catalog.Len())
	for _, stage := range s.catalog.All() {
		views = append(views, StageView{Stage: stage, Instance: byCode[stage.Code]})
	}
	return views, nil
}

func sequenceError(prevCode, message string) error {
	return errors.New(errors.CodeSequenceViolation, message).
		WithDetails(map[string]any{"previousStage": prevCode})
}
