package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/chorepay-backend/api/responses"
	"github.com/angelmondragon/chorepay-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/chorepay-backend/pkg/errors"
	"github.com/angelmondragon/chorepay-backend/pkg/logger"
)

const (
	envHeader        = "X-Chorepay-Env"
	readinessTimeout = 2 * time.Second
)

// Pinger is anything readiness can ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadinessCheck names a dependency pinged by HealthReady.
type ReadinessCheck struct {
	Name   string
	Pinger Pinger
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every check and reports 503 when any of them fails.
func HealthReady(cfg *config.Config, logg *logger.Logger, checks ...ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		failed := map[string]string{}
		for _, check := range checks {
			if check.Pinger == nil {
				continue
			}
			if err := check.Pinger.Ping(ctx); err != nil {
				failed[check.Name] = err.Error()
			}
		}

		if len(failed) > 0 {
			err := pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").WithDetails(failed)
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
