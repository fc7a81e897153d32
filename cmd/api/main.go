package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/stagetrak/stagetrak-backend/api/routes"
	"github.com/stagetrak/stagetrak-backend/internal/audit"
	"github.com/stagetrak/stagetrak-backend/internal/catalog"
	"github.com/stagetrak/stagetrak-backend/internal/directory"
	"github.com/stagetrak/stagetrak-backend/internal/ledger"
	"github.com/stagetrak/stagetrak-backend/internal/locks"
	"github.com/stagetrak/stagetrak-backend/internal/notify"
	"github.com/stagetrak/stagetrak-backend/internal/orders"
	"github.com/stagetrak/stagetrak-backend/internal/reconcile"
	"github.com/stagetrak/stagetrak-backend/internal/requests"
	"github.com/stagetrak/stagetrak-backend/internal/stages"
	"github.com/stagetrak/stagetrak-backend/pkg/config"
	"github.com/stagetrak/stagetrak-backend/pkg/db"
	"github.com/stagetrak/stagetrak-backend/pkg/logger"
	"github.com/stagetrak/stagetrak-backend/pkg/migrate"
	"github.com/stagetrak/stagetrak-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stageCatalog, err := catalog.LoadStages(cfg.Catalog)
	if err != nil {
		logg.Error(context.Background(), "failed to load stage catalog", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	ordersRepo := orders.NewRepository(gormDB)
	stagesRepo := stages.NewRepository(gormDB)
	ledgerRepo := ledger.NewRepository(gormDB)
	requestsRepo := requests.NewRepository(gormDB)
	auditRepo := audit.NewRepository(gormDB)
	notifyRepo := notify.NewRepository(gormDB)
	locksRepo := locks.NewRepository(gormDB)
	directoryRepo := directory.NewRepository(gormDB)
	defectTypes := catalog.NewDefectTypeRepository(gormDB)

	auditSvc := audit.NewService(auditRepo, logg)
	engine := reconcile.NewEngine(reconcile.NewRepository(gormDB), logg)
	locksSvc := locks.NewService(locksRepo, directoryRepo, logg)
	notifySvc := notify.NewService(notifyRepo, redisClient, logg)
	ordersSvc := orders.NewService(dbClient, ordersRepo, auditSvc, logg)
	stagesSvc := stages.NewService(dbClient, stagesRepo, ordersRepo, locksSvc, engine, auditSvc, stageCatalog, logg)
	ledgerSvc := ledger.NewService(dbClient, ledgerRepo, stagesRepo, defectTypes, locksSvc, engine, auditSvc, stageCatalog, logg)
	requestsSvc := requests.NewService(dbClient, requestsRepo, ledgerRepo, stagesRepo, defectTypes, locksSvc, engine, auditSvc, notifySvc, stageCatalog, logg)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg, logg, dbClient, redisClient,
			ordersSvc, stagesSvc, locksSvc, ledgerSvc,
			requestsSvc, auditSvc, notifySvc,
			stageCatalog, defectTypes,
		),
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}
