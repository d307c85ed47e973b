package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/chorepay-backend/api/controllers"
	"github.com/angelmondragon/chorepay-backend/api/middleware"
	"github.com/angelmondragon/chorepay-backend/internal/ledger"
	"github.com/angelmondragon/chorepay-backend/internal/profiles"
	"github.com/angelmondragon/chorepay-backend/internal/tasks"
	"github.com/angelmondragon/chorepay-backend/pkg/config"
	"github.com/angelmondragon/chorepay-backend/pkg/db"
	"github.com/angelmondragon/chorepay-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/chorepay-backend/pkg/redis"
)

// Cache is the Redis surface the router needs for idempotency, throttling and
// readiness.
type Cache interface {
	pkgredis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Ping(ctx context.Context) error
}

// Services groups the domain services exposed over HTTP.
type Services struct {
	Ledger   ledger.Service
	Profiles profiles.Service
	Tasks    tasks.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	cache Cache,
	svcs Services,
	metricsHandler http.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	mutationPolicy := middleware.NewRateLimitPolicy(
		"mutations",
		cfg.RateLimit.Window,
		cfg.RateLimit.IPLimit,
		cfg.RateLimit.UserLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg,
			controllers.ReadinessCheck{Name: "database", Pinger: dbP},
			controllers.ReadinessCheck{Name: "redis", Pinger: cache},
		))
	})

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RateLimit(mutationPolicy, cache, logg))

		// inline so the full route pattern is resolved before the rule lookup
		idem := middleware.Idempotency(cache, logg)

		r.Route("/profiles", func(r chi.Router) {
			r.Get("/", controllers.ProfileList(svcs.Profiles, logg))
			r.With(middleware.RequireParent(logg), idem).Post("/", controllers.ProfileCreate(svcs.Profiles, logg))

			r.Route("/{profileId}", func(r chi.Router) {
				r.Use(middleware.RequireParentOrSelf(logg))
				r.Get("/", controllers.ProfileGet(svcs.Profiles, logg))
				r.With(idem).Post("/goals", controllers.ProfileAddGoal(svcs.Profiles, logg))

				r.Route("/ledger", func(r chi.Router) {
					r.Get("/balance", controllers.LedgerBalance(svcs.Ledger, logg))
					r.Get("/transactions", controllers.LedgerTransactions(svcs.Ledger, logg))
					r.With(idem).Post("/withdrawals", controllers.LedgerWithdrawalRequest(svcs.Ledger, logg))
					r.With(idem).Post("/goal-allocations", controllers.LedgerGoalAllocation(svcs.Ledger, logg))

					r.Group(func(r chi.Router) {
						r.Use(middleware.RequireParent(logg))
						r.With(idem).Post("/task-payments", controllers.LedgerTaskPayment(svcs.Ledger, logg))
						r.With(idem).Post("/advances", controllers.LedgerAdvance(svcs.Ledger, logg))
						r.With(idem).Post("/adjustments", controllers.LedgerAdjustment(svcs.Ledger, logg))
						r.With(idem).Post("/withdrawals/{transactionId}/finalize", controllers.LedgerFinalizeWithdrawal(svcs.Ledger, logg))
						r.With(idem).Post("/withdrawals/{transactionId}/reject", controllers.LedgerRejectWithdrawal(svcs.Ledger, logg))
					})
				})
			})
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", controllers.TaskList(svcs.Tasks, logg))
			r.Get("/{taskId}", controllers.TaskGet(svcs.Tasks, logg))
			r.With(idem).Post("/{taskId}/submit", controllers.TaskSubmit(svcs.Tasks, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireParent(logg))
				r.With(idem).Post("/", controllers.TaskCreate(svcs.Tasks, logg))
				r.With(idem).Post("/{taskId}/reject", controllers.TaskReject(svcs.Tasks, logg))
				r.Delete("/{taskId}", controllers.TaskDelete(svcs.Tasks, logg))
			})
		})
	})

	return r
}
