package controllers

import (
	"net/http"

	"github.com/butterandcrumb/storefront-backend/api/responses"
	"github.com/butterandcrumb/storefront-backend/pkg/config"
	"github.com/butterandcrumb/storefront-backend/pkg/logger"
	"github.com/butterandcrumb/storefront-backend/pkg/redis"
)

// HealthLive reports process liveness.
func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		responses.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
			"env":    cfg.App.Env,
		})
	}
}

// HealthReady reports readiness, pinging the optional cart store backend.
func HealthReady(cfg *config.Config, logg *logger.Logger, cartStore redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{}
		healthy := true

		if cartStore != nil {
			if err := cartStore.Ping(r.Context()); err != nil {
				checks["redis"] = "unreachable"
				healthy = false
				if logg != nil {
					logg.Error(r.Context(), "readiness redis ping failed", err)
				}
			} else {
				checks["redis"] = "ok"
			}
		}

		status := http.StatusOK
		state := "ready"
		if !healthy {
			status = http.StatusServiceUnavailable
			state = "degraded"
		}
		responses.WriteJSON(w, status, map[string]any{
			"status": state,
			"env":    cfg.App.Env,
			"checks": checks,
		})
	}
}
