package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/stagetrak/stagetrak-backend/api/responses"
	"github.com/stagetrak/stagetrak-backend/pkg/config"
	"github.com/stagetrak/stagetrak-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthLive answers liveness probes.
func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		responses.WriteSuccess(w, map[string]string{"status": "ok", "env": cfg.App.Env})
	}
}

// HealthReady verifies the datastore and cache are reachable.
func HealthReady(cfg *config.Config, logg *logger.Logger, database, cache pinger) http.HandlerFunc {
	deps := []struct {
		name string
		dep  pinger
	}{
		{"postgres", database},
		{"redis", cache},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]string{}
		healthy := true
		for _, d := range deps {
			if d.dep == nil {
				checks[d.name] = "skipped"
				continue
			}
			if err := d.dep.Ping(ctx); err != nil {
				checks[d.name] = "unreachable"
				healthy = false
				if logg != nil {
					logg.Error(logg.WithField(ctx, "dependency", d.name), "readiness check failed", err)
				}
				continue
			}
			checks[d.name] = "ok"
		}

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		responses.WriteSuccessStatus(w, status, map[string]any{
			"env":    cfg.App.Env,
			"checks": checks,
		})
	}
}
