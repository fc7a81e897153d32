package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stagetrak/stagetrak-backend/pkg/db/models"
	"github.com/stagetrak/stagetrak-backend/pkg/enums"
	"github.com/stagetrak/stagetrak-backend/pkg/errors"
	"github.com/stagetrak/stagetrak-backend/pkg/logger"
	"github.com/stagetrak/stagetrak-backend/pkg/pagination"
	"github.com/stagetrak/stagetrak-backend/pkg/redis"
)

// Service fans out workflow events. The durable notification row is the
// source of truth and is written inside the caller's transaction; the redis
// pub/sub hint is best-effort: publish failures are logged, never returned,
// and consumers reconcile through the pull API anyway.
type Service struct {
	repo  Repository
	redis *redis.Client
	logg  *logger.Logger
	now   func() time.Time
}

func NewService(repo Repository, redisClient *redis.Client, logg *logger.Logger) *Service {
	return &Service{repo: repo, redis: redisClient, logg: logg, now: time.Now}
}

// Message is one fan-out event. Exactly one of UserID or Role must be set.
type Message struct {
	UserID  *uuid.UUID
	Role    *enums.UserRole
	Type    enums.NotificationType
	Title   string
	Message string
	Link    *string
}

// hint is the payload pushed over pub/sub so connected clients can refresh
// without polling.
type hint struct {
	ID        uuid.UUID              `json:"id"`
	Type      enums.NotificationType `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Link      *string                `json:"link,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// Publish stores the durable notification row inside tx and pushes a
// best-effort hint. A hint for a transaction that later rolls back is
// harmless: the pull API never sees the row.
func (s *Service) Publish(ctx context.Context, tx *gorm.DB, msg Message) error {
	if (msg.UserID == nil) == (msg.Role == nil) {
		return errors.New(errors.CodeValidation, "notification needs exactly one addressee")
	}
	if !msg.Type.IsValid() {
		return errors.New(errors.CodeValidation, "invalid notification type")
	}

	notification := &models.Notification{
		UserID:    msg.UserID,
		Role:      msg.Role,
		Type:      msg.Type,
		Title:     msg.Title,
		Message:   msg.Message,
		Link:      msg.Link,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.WithTx(tx).Insert(ctx, notification); err != nil {
		return errors.Wrap(errors.CodeInternal, err, "storing notification")
	}

	s.pushHint(ctx, notification)
	return nil
}

func (s *Service) pushHint(ctx context.Context, notification *models.Notification) {
	if s.redis == nil {
		return
	}

	payload, err := json.Marshal(hint{
		ID:        notification.ID,
		Type:      notification.Type,
		Title:     notification.Title,
		Message:   notification.Message,
		Link:      notification.Link,
		CreatedAt: notification.CreatedAt,
	})
	if err != nil {
		s.logg.Error(ctx, "encoding notification hint", err)
		return
	}

	var channel string
	switch {
	case notification.UserID != nil:
		channel = s.redis.UserChannel(notification.UserID.String())
	case notification.Role != nil:
		channel = s.redis.RoleChannel(string(*notification.Role))
	default:
		return
	}
	if err := s.redis.Publish(ctx, channel, payload); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "channel", channel), "notification hint publish failed")
	}
}

type ListInput struct {
	UserID     uuid.UUID
	Role       enums.UserRole
	UnreadOnly bool
	Limit      int
	Cursor     string
}

type ListResult struct {
	Notifications []models.Notification
	NextCursor    string
}

// List is the authoritative pull side: everything addressed to the user or
// their role, newest first.
func (s *Service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	if input.UserID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "user id is required")
	}

	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(input.Limit)
	rows, err := s.repo.List(ctx, ListFilter{
		UserID:     input.UserID,
		Role:       input.Role,
		UnreadOnly: input.UnreadOnly,
	}, limit+1, cursor)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing notifications")
	}

	result := &ListResult{Notifications: rows}
	if len(rows) > limit {
		result.Notifications = rows[:limit]
		last := result.Notifications[limit-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return result, nil
}

func (s *Service) MarkRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	if notificationID == uuid.Nil || userID == uuid.Nil {
		return errors.New(errors.CodeValidation, "notification id and user id are required")
	}
	updated, err := s.repo.MarkRead(ctx, notificationID, userID, s.now().UTC())
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "marking notification read")
	}
	if !updated {
		return errors.New(errors.CodeNotFound, "notification not found or already read")
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, errors.New(errors.CodeValidation, "user id is required")
	}
	count, err := s.repo.MarkAllRead(ctx, userID, s.now().UTC())
	if err != nil {
		return 0, errors.Wrap(errors.CodeInternal, err, "marking notifications read")
	}
	return count, nil
}

// Stream subscribes to the user's and role's hint channels. The returned
// channel closes when ctx is done; the caller must invoke the cleanup func.
func (s *Service) Stream(ctx context.Context, userID uuid.UUID, role enums.UserRole) (<-chan string, func(), error) {
	if s.redis == nil {
		return nil, nil, errors.New(errors.CodeDependency, "notification stream unavailable")
	}

	sub, err := s.redis.Subscribe(ctx,
		s.redis.UserChannel(userID.String()),
		s.redis.RoleChannel(string(role)),
	)
	if err != nil {
		return nil, nil, errors.Wrap(errors.CodeDependency, err, "subscribing to notification channels")
	}

	out := make(chan string, 8)
	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	cleanup := func() {
		_ = sub.Close()
	}
	return out, cleanup, nil
}
