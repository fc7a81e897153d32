package controllers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stagetrak/stagetrak-backend/api/responses"
	"github.com/stagetrak/stagetrak-backend/api/validators"
	"github.com/stagetrak/stagetrak-backend/internal/notify"
	"github.com/stagetrak/stagetrak-backend/pkg/errors"
	"github.com/stagetrak/stagetrak-backend/pkg/logger"
	"github.com/stagetrak/stagetrak-backend/pkg/pagination"
)

// ListNotifications returns the durable notification rows addressed to the
// caller or their role. This pull side is authoritative; the stream only
// carries hints.
func ListNotifications(svc *notify.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		unreadOnly, err := validators.ParseQueryBool(r, "unreadOnly", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), notify.ListInput{
			UserID:     act.ID,
			Role:       act.Role,
			UnreadOnly: unreadOnly,
			Limit:      limit,
			Cursor:     strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"notifications": result.Notifications,
			"nextCursor":    result.NextCursor,
		})
	}
}

// MarkNotificationRead marks one user-addressed notification as read.
func MarkNotificationRead(svc *notify.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		notificationID, err := pathUUID(r, "notificationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.MarkRead(r.Context(), notificationID, act.ID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "read"})
	}
}

// MarkAllNotificationsRead marks every unread user-addressed notification.
func MarkAllNotificationsRead(svc *notify.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		count, err := svc.MarkAllRead(r.Context(), act.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"marked": count})
	}
}

// NotificationStream pushes best-effort hints over SSE. Clients must still
// poll the list endpoint: hints can be dropped without notice.
func NotificationStream(svc *notify.Service, logg *logger.Logger, heartbeat time.Duration) http.HandlerFunc {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return func(w http.ResponseWriter, r *http.Request) {
		act, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			responses.WriteError(r.Context(), logg, w,
				errors.New(errors.CodeInternal, "streaming unsupported by connection"))
			return
		}

		hints, cleanup, err := svc.Stream(r.Context(), act.ID, act.Role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer cleanup()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				fmt.Fprint(w, ": heartbeat\n\n")
				flusher.Flush()
			case hint, open := <-hints:
				if !open {
					return
				}
				fmt.Fprintf(w, "event: notification\ndata: %s\n\n", hint)
				flusher.Flush()
			}
		}
	}
}
