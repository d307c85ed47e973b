package main

import (
	"context"

	"github.com/angelmondragon/chorepay-backend/pkg/config"
	"github.com/angelmondragon/chorepay-backend/pkg/db"
	"github.com/angelmondragon/chorepay-backend/pkg/logger"
	"github.com/angelmondragon/chorepay-backend/pkg/metrics"
)

// ledgerRetryOptions counts every balance conflict retry on the ledger metrics.
func ledgerRetryOptions(cfg config.LedgerConfig, ledgerMetrics *metrics.LedgerMetrics, logg *logger.Logger) db.RetryOptions {
	return db.RetryOptions{
		MaxAttempts: cfg.TxMaxAttempts,
		BaseDelay:   cfg.TxRetryBaseDelay,
		OnRetry: func(attempt int, err error) {
			ledgerMetrics.IncConflictRetry()
			retryCtx := logg.WithFields(context.Background(), map[string]any{"attempt": attempt})
			logg.Warn(retryCtx, "ledger transaction conflict, retrying")
		},
	}
}

// profileRetryOptions shares the ledger backoff but only logs.
func profileRetryOptions(cfg config.LedgerConfig, logg *logger.Logger) db.RetryOptions {
	return db.RetryOptions{
		MaxAttempts: cfg.TxMaxAttempts,
		BaseDelay:   cfg.TxRetryBaseDelay,
		OnRetry: func(attempt int, err error) {
			retryCtx := logg.WithFields(context.Background(), map[string]any{"attempt": attempt})
			logg.Warn(retryCtx, "profile goal update conflict, retrying")
		},
	}
}
