package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/foodrescue/rescue-backend/api/responses"
	"github.com/foodrescue/rescue-backend/pkg/config"
	"github.com/foodrescue/rescue-backend/pkg/db"
	pkgerrors "github.com/foodrescue/rescue-backend/pkg/errors"
	"github.com/foodrescue/rescue-backend/pkg/logger"
	"github.com/foodrescue/rescue-backend/pkg/redis"
)

const readinessTimeout = 2 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-FoodRescue-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports 503 when the database or redis cannot be reached.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-FoodRescue-Env", cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{}
		deps := []struct {
			name string
			p    interface{ Ping(context.Context) error }
		}{
			{name: "database", p: dbP},
			{name: "redis", p: redisP},
		}
		for _, dep := range deps {
			if dep.p == nil {
				checks[dep.name] = "skipped"
				continue
			}
			if err := dep.p.Ping(ctx); err != nil {
				checks[dep.name] = "down"
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, dep.name+" unavailable").
						WithDetails(map[string]any{"checks": checks}))
				return
			}
			checks[dep.name] = "up"
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
