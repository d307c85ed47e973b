package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/chorepay-backend/pkg/db/models"
	"github.com/angelmondragon/chorepay-backend/pkg/logger"
	"github.com/angelmondragon/chorepay-backend/pkg/metrics"
)

const (
	withdrawalReviewDays  = 7
	staleWithdrawalsLimit = 500
)

type StaleWithdrawalsJobParams struct {
	Logger     *logger.Logger
	Repository staleWithdrawalRepo
	Metrics    *metrics.CronJobMetrics
	ReviewDays int
}

type staleWithdrawalRepo interface {
	ListStalePendingWithdrawals(ctx context.Context, cutoff time.Time, limit int) ([]models.LedgerTransaction, error)
}

// NewStaleWithdrawalsJob reports withdrawal requests a parent has left
// pending past the review window. It never settles them.
func NewStaleWithdrawalsJob(params StaleWithdrawalsJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("withdrawal repository required")
	}
	return &staleWithdrawalsJob{
		logg:       params.Logger,
		repo:       params.Repository,
		metrics:    params.Metrics,
		reviewDays: positiveOr(params.ReviewDays, withdrawalReviewDays),
		now:        time.Now,
	}, nil
}

type staleWithdrawalsJob struct {
	logg       *logger.Logger
	repo       staleWithdrawalRepo
	metrics    *metrics.CronJobMetrics
	reviewDays int
	now        func() time.Time
}

func (j *staleWithdrawalsJob) Name() string { return "stale-withdrawals" }

func (j *staleWithdrawalsJob) Run(ctx context.Context) error {
	cutoff := daysBefore(j.now().UTC(), j.reviewDays)
	rows, err := j.repo.ListStalePendingWithdrawals(ctx, cutoff, staleWithdrawalsLimit)
	if err != nil {
		return fmt.Errorf("list stale withdrawals: %w", err)
	}
	j.metrics.SetStaleWithdrawals(len(rows))

	for _, row := range rows {
		rowCtx := j.logg.WithHouseholdID(ctx, row.HouseholdID)
		rowCtx = j.logg.WithProfileID(rowCtx, row.ProfileID)
		rowCtx = j.logg.WithFields(rowCtx, map[string]any{
			"transaction_id": row.ID,
			"amount_cents":   row.AmountCents,
			"requested_at":   row.CreatedAt,
		})
		j.logg.Warn(rowCtx, "withdrawal request pending past review window")
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":      cutoff,
		"review_days": j.reviewDays,
		"stale_count": len(rows),
		"truncated":   len(rows) == staleWithdrawalsLimit,
	})
	j.logg.Info(logCtx, "stale withdrawal sweep complete")
	return nil
}
