package notifications

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/chorepay-backend/pkg/enums"
	"github.com/angelmondragon/chorepay-backend/pkg/outbox"
	"github.com/angelmondragon/chorepay-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Notifier queues ledger notifications on the outbox. Each call runs in its
// own short transaction, separate from the ledger write it reports on.
type Notifier struct {
	tx     txRunner
	outbox outboxEmitter
}

// NewNotifier wires the notifier dependencies.
func NewNotifier(tx txRunner, emitter outboxEmitter) (*Notifier, error) {
	if tx == nil {
		return nil, errors.New("transaction runner required")
	}
	if emitter == nil {
		return nil, errors.New("outbox emitter required")
	}
	return &Notifier{tx: tx, outbox: emitter}, nil
}

// TaskPaid tells the assignee their chore was paid.
func (n *Notifier) TaskPaid(ctx context.Context, event payloads.TaskPaidEvent) error {
	return n.emit(ctx, outbox.DomainEvent{
		EventType:     enums.EventTaskPaid,
		AggregateType: enums.AggregateTask,
		AggregateID:   event.TaskID,
		HouseholdID:   event.HouseholdID,
		Data:          event,
		OccurredAt:    event.PaidAt,
	})
}

// WithdrawalRequested tells parents a withdrawal awaits settlement.
func (n *Notifier) WithdrawalRequested(ctx context.Context, event payloads.WithdrawalRequestedEvent) error {
	return n.emit(ctx, outbox.DomainEvent{
		EventType:     enums.EventWithdrawalRequested,
		AggregateType: enums.AggregateLedgerTransaction,
		AggregateID:   event.TransactionID,
		HouseholdID:   event.HouseholdID,
		Data:          event,
	})
}

// WithdrawalSettled reports a finalized or rejected withdrawal.
func (n *Notifier) WithdrawalSettled(ctx context.Context, event payloads.WithdrawalFinalizedEvent) error {
	return n.emit(ctx, outbox.DomainEvent{
		EventType:     enums.EventWithdrawalFinalized,
		AggregateType: enums.AggregateLedgerTransaction,
		AggregateID:   event.TransactionID,
		HouseholdID:   event.HouseholdID,
		Data:          event,
	})
}

func (n *Notifier) emit(ctx context.Context, event outbox.DomainEvent) error {
	err := n.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return n.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return fmt.Errorf("queue %s: %w", event.EventType, err)
	}
	return nil
}
