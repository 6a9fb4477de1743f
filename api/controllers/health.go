package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/pkruczek/spizarka-backend/api/responses"
	"github.com/pkruczek/spizarka-backend/pkg/config"
	"github.com/pkruczek/spizarka-backend/pkg/logger"
)

const envHeader = "X-Spizarka-Env"

// Pinger is the connectivity check each dependency exposes.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every registered dependency and reports per-component
// status. Any failure makes the endpoint return 503.
func HealthReady(cfg *config.Config, logg *logger.Logger, checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		components := map[string]string{}
		ready := true
		for name, check := range checks {
			if check == nil {
				components[name] = "not configured"
				continue
			}
			if err := check.Ping(ctx); err != nil {
				components[name] = "unavailable"
				ready = false
				if logg != nil {
					logg.Warn(ctx, name+" health check failed: "+err.Error())
				}
				continue
			}
			components[name] = "ok"
		}

		body := map[string]any{
			"status":     "ready",
			"components": components,
		}
		if !ready {
			body["status"] = "degraded"
			responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, body)
			return
		}
		responses.WriteSuccess(w, body)
	}
}
