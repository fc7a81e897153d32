package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stagetrak/stagetrak-backend/api/controllers"
	"github.com/stagetrak/stagetrak-backend/api/middleware"
	"github.com/stagetrak/stagetrak-backend/internal/audit"
	"github.com/stagetrak/stagetrak-backend/internal/catalog"
	"github.com/stagetrak/stagetrak-backend/internal/ledger"
	"github.com/stagetrak/stagetrak-backend/internal/locks"
	"github.com/stagetrak/stagetrak-backend/internal/notify"
	"github.com/stagetrak/stagetrak-backend/internal/orders"
	"github.com/stagetrak/stagetrak-backend/internal/requests"
	"github.com/stagetrak/stagetrak-backend/internal/stages"
	"github.com/stagetrak/stagetrak-backend/pkg/config"
	"github.com/stagetrak/stagetrak-backend/pkg/db"
	"github.com/stagetrak/stagetrak-backend/pkg/logger"
	"github.com/stagetrak/stagetrak-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	database *db.Client,
	redisClient *redis.Client,
	ordersSvc *orders.Service,
	stagesSvc *stages.Service,
	locksSvc *locks.Service,
	ledgerSvc *ledger.Service,
	requestsSvc *requests.Service,
	auditSvc *audit.Service,
	notifySvc *notify.Service,
	stageCatalog *catalog.Stages,
	defectTypes catalog.DefectTypeRepository,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, database, redisClient))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.OrderCreate(ordersSvc, logg))
			r.Get("/", controllers.OrderList(ordersSvc, logg))
			r.Get("/{orderId}", controllers.OrderDetail(ordersSvc, logg))
			r.Get("/{orderId}/board", controllers.OrderBoard(stagesSvc, logg))
			r.Post("/{orderId}/lock", controllers.OrderLock(locksSvc, logg))
			r.Post("/{orderId}/unlock", controllers.OrderUnlock(locksSvc, logg))
			r.Post("/{orderId}/stages/{stageCode}/start", controllers.StageStart(stagesSvc, logg))
			r.Post("/{orderId}/stages/{stageCode}/complete", controllers.StageComplete(stagesSvc, logg))
		})

		r.Route("/stages/{stageId}/defects", func(r chi.Router) {
			r.Post("/", controllers.DefectAdd(ledgerSvc, logg))
			r.Get("/", controllers.DefectList(ledgerSvc, logg))
		})
		r.Route("/defects/{rowId}", func(r chi.Router) {
			r.Put("/", controllers.DefectUpdate(ledgerSvc, logg))
			r.Delete("/", controllers.DefectDelete(ledgerSvc, logg))
		})

		r.Route("/change-requests", func(r chi.Router) {
			r.Post("/", controllers.ChangeRequestSubmit(requestsSvc, logg))
			r.Get("/", controllers.ChangeRequestList(requestsSvc, logg))
			r.Get("/{requestId}", controllers.ChangeRequestDetail(requestsSvc, logg))
			r.With(middleware.RequireRole("admin", logg)).
				Post("/{requestId}/resolve", controllers.ChangeRequestResolve(requestsSvc, logg))
		})

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/stages", controllers.CatalogStages(stageCatalog))
			r.Get("/defect-types", controllers.CatalogDefectTypes(defectTypes, logg))
		})

		r.Get("/audit", controllers.AuditQuery(auditSvc, logg))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notifySvc, logg))
			r.Get("/stream", controllers.NotificationStream(notifySvc, logg, cfg.Notify.StreamHeartbeat))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notifySvc, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notifySvc, logg))
		})
	})

	return r
}
