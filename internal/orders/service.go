package orders

import (
	"context"
	stdErrors "errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stagetrak/stagetrak-backend/internal/audit"
	"github.com/stagetrak/stagetrak-backend/pkg/db"
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

// Service handles production order intake and lookup. Orders enter in the
// created state with no current stage; the stage workflow moves them along.
type Service struct {
	db    txRunner
	repo  Repository
	audit *audit.Service
	logg  *logger.Logger
}

func NewService(client txRunner, repo Repository, auditSvc *audit.Service, logg *logger.Logger) *Service {
	return &Service{db: client, repo: repo, audit: auditSvc, logg: logg}
}

type CreateInput struct {
	OrderNumber string
	Quantity    int
	ActorID     uuid.UUID
}

func (s *Service) Create(ctx context.Context, input CreateInput) (*models.ProductionOrder, error) {
	orderNumber := strings.TrimSpace(input.OrderNumber)
	if orderNumber == "" {
		return nil, errors.New(errors.CodeValidation, "order number is required")
	}
	if input.Quantity <= 0 {
		return nil, errors.New(errors.CodeValidation, "quantity must be positive")
	}
	if input.ActorID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "actor id is required")
	}

	order := &models.ProductionOrder{
		OrderNumber: orderNumber,
		Quantity:    input.Quantity,
		Status:      enums.OrderStatusCreated,
	}

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Insert(ctx, order); err != nil {
			if db.IsUniqueViolation(err, "") {
				return errors.New(errors.CodeConflict, "order number already exists")
			}
			return errors.Wrap(errors.CodeInternal, err, "inserting production order")
		}
		ref := types.Ref(types.AuditKindProductionOrder, order.ID)
		return s.audit.Record(ctx, tx, ref, enums.AuditActionCreate, nil, order, input.ActorID)
	})
	if err != nil {
		return nil, err
	}

	orderCtx := s.logg.WithOrderNumber(ctx, order.OrderNumber)
	s.logg.Info(orderCtx, "production order created")
	return order, nil
}

func (s *Service) Get(ctx context.Context, orderID uuid.UUID) (*models.ProductionOrder, error) {
	if orderID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "order id is required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "production order not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading production order")
	}
	return order, nil
}

func (s *Service) GetByNumber(ctx context.Context, orderNumber string) (*models.ProductionOrder, error) {
	if strings.TrimSpace(orderNumber) == "" {
		return nil, errors.New(errors.CodeValidation, "order number is required")
	}
	order, err := s.repo.FindByNumber(ctx, strings.TrimSpace(orderNumber))
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "production order not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading production order")
	}
	return order, nil
}

type ListInput struct {
	Status string
	Limit  int
	Cursor string
}

type ListResult struct {
	Orders     []models.ProductionOrder
	NextCursor string
}

func (s *Service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	var filter ListFilter
	if input.Status != "" {
		status, err := enums.ParseOrderStatus(input.Status)
		if err != nil {
			return nil, errors.Wrap(errors.CodeValidation, err, "invalid status filter")
		}
		filter.Status = status
	}

	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(input.Limit)
	rows, err := s.repo.List(ctx, filter, limit+1, cursor)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing production orders")
	}

	result := &ListResult{Orders: rows}
	if len(rows) > limit {
		result.Orders = rows[:limit]
		last := result.Orders[limit-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return result, nil
}
