package main

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/chorepay-backend/pkg/db/models"
	"github.com/angelmondragon/chorepay-backend/pkg/enums"
	"github.com/angelmondragon/chorepay-backend/pkg/outbox/registry"
)

type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeDeadLettered
	// outcomeDeferred rows wait because an earlier row of the same household
	// failed in this batch.
	outcomeDeferred
)

type batchStats struct {
	claimed      int
	published    int
	retried      int
	deadLettered int
	deferred     int
}

func (b *batchStats) record(o outcome) {
	switch o {
	case outcomePublished:
		b.published++
	case outcomeRetry:
		b.retried++
	case outcomeDeadLettered:
		b.deadLettered++
	case outcomeDeferred:
		b.deferred++
	}
}

// drained reports a full batch where nothing is left waiting on a retry.
func (b batchStats) drained(batchSize int) bool {
	return b.claimed >= batchSize && b.retried == 0 && b.deferred == 0
}

func (s *Service) relayBatch(ctx context.Context) (batchStats, error) {
	var stats batchStats
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim outbox rows: %w", err)
		}
		stats = batchStats{claimed: len(rows)}

		failed := map[string]bool{}
		for _, row := range rows {
			o, err := s.relayRow(ctx, tx, row, failed)
			if err != nil {
				return err
			}
			stats.record(o)
		}
		return nil
	})
	if err != nil || stats.claimed == 0 {
		return stats, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"claimed":       stats.claimed,
		"published":     stats.published,
		"retried":       stats.retried,
		"dead_lettered": stats.deadLettered,
		"deferred":      stats.deferred,
	}), "outbox batch relayed")
	return stats, nil
}

// relayRow publishes one row and records the outcome in tx. failedHouseholds
// collects households whose earlier row failed in this batch; their later rows
// are left untouched so consumers never see them out of order.
func (s *Service) relayRow(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, failedHouseholds map[string]bool) (outcome, error) {
	if failedHouseholds[row.HouseholdID] {
		return outcomeDeferred, nil
	}
	rowCtx := s.logg.WithFields(ctx, rowFields(row))

	resolved, err := s.registry.Resolve(row)
	if err != nil {
		return outcomeDeadLettered, s.deadLetter(rowCtx, tx, row, enums.OutboxDLQReasonNonRetryable, err)
	}
	rowCtx = s.logg.WithField(rowCtx, "topic", resolved.Descriptor.Topic)

	err = s.publish(ctx, row, resolved)
	var nonRetryable registry.NonRetryableError
	switch {
	case err == nil:
		if err := s.repo.MarkPublishedTx(tx, row.ID); err != nil {
			return 0, fmt.Errorf("mark published %s: %w", row.ID, err)
		}
		s.logg.Debug(rowCtx, "outbox event published")
		return outcomePublished, nil
	case errors.As(err, &nonRetryable):
		return outcomeDeadLettered, s.deadLetter(rowCtx, tx, row, enums.OutboxDLQReasonNonRetryable, err)
	case row.AttemptCount+1 >= s.maxAttempts:
		return outcomeDeadLettered, s.deadLetter(rowCtx, tx, row, enums.OutboxDLQReasonMaxAttempts, fmt.Errorf("max publish attempts reached: %w", err))
	}

	failedHouseholds[row.HouseholdID] = true
	s.logg.Warn(s.logg.WithFields(rowCtx, map[string]any{
		"error":        err.Error(),
		"next_attempt": row.AttemptCount + 1,
	}), "outbox publish failed, household held for retry")
	if err := s.repo.MarkFailedTx(tx, row.ID, err); err != nil {
		return 0, fmt.Errorf("mark failed %s: %w", row.ID, err)
	}
	return outcomeRetry, nil
}

// deadLetter copies the row to outbox_dlq and pins it so it is never claimed
// again.
func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"error_reason": reason,
		"error":        cause.Error(),
	}), "outbox event dead-lettered")

	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Payload:       row.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  row.AttemptCount,
		FailedAt:      s.now().UTC(),
	}
	if err := s.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", row.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, row.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", row.ID, err)
	}
	return nil
}

func rowFields(row models.OutboxEvent) map[string]any {
	return map[string]any{
		"outbox_id":     row.ID.String(),
		"event_type":    row.EventType,
		"aggregate_id":  row.AggregateID,
		"household_id":  row.HouseholdID,
		"attempt_count": row.AttemptCount,
	}
}
