package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/chorepay-backend/pkg/config"
	"github.com/angelmondragon/chorepay-backend/pkg/db/models"
	"github.com/angelmondragon/chorepay-backend/pkg/enums"
	"github.com/angelmondragon/chorepay-backend/pkg/outbox"
	"github.com/angelmondragon/chorepay-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate/topic/payload schema.
// Route extracts the household and the type-specific message attributes from
// a decoded payload.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() interface{}
	Route          func(payload interface{}) Route
}

// Route is what a publisher needs beyond the raw payload bytes.
type Route struct {
	HouseholdID string
	Attributes  map[string]string
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
	Route      Route
}

// OrderingKey keeps every event of one household in commit order.
func (r *ResolvedEvent) OrderingKey() string {
	return "household:" + r.Route.HouseholdID
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

// Error implements error.
func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewEventRegistry builds the registry with the configured topic names.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.NotificationTopic == "" {
		return nil, fmt.Errorf("notification topic is required")
	}
	if cfg.LedgerTopic == "" {
		return nil, fmt.Errorf("ledger topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}

	reg.register(EventDescriptor{
		EventType:      enums.EventTaskPaid,
		AggregateType:  enums.AggregateTask,
		Topic:          cfg.NotificationTopic,
		PayloadFactory: func() interface{} { return &payloads.TaskPaidEvent{} },
		Route: func(p interface{}) Route {
			e := p.(*payloads.TaskPaidEvent)
			attrs := map[string]string{
				"task_id":        e.TaskID,
				"profile_id":     e.TargetProfileID,
				"transaction_id": e.TransactionID,
				"amount_cents":   strconv.FormatInt(e.AmountCents, 10),
			}
			if !e.PaidAt.IsZero() {
				attrs["paid_at"] = e.PaidAt.UTC().Format(time.RFC3339Nano)
			}
			return Route{HouseholdID: e.HouseholdID, Attributes: attrs}
		},
	})
	reg.register(EventDescriptor{
		EventType:      enums.EventWithdrawalRequested,
		AggregateType:  enums.AggregateLedgerTransaction,
		Topic:          cfg.LedgerTopic,
		PayloadFactory: func() interface{} { return &payloads.WithdrawalRequestedEvent{} },
		Route: func(p interface{}) Route {
			e := p.(*payloads.WithdrawalRequestedEvent)
			return Route{HouseholdID: e.HouseholdID, Attributes: map[string]string{
				"profile_id":     e.ProfileID,
				"transaction_id": e.TransactionID,
				"amount_cents":   strconv.FormatInt(e.AmountCents, 10),
			}}
		},
	})
	reg.register(EventDescriptor{
		EventType:      enums.EventWithdrawalFinalized,
		AggregateType:  enums.AggregateLedgerTransaction,
		Topic:          cfg.LedgerTopic,
		PayloadFactory: func() interface{} { return &payloads.WithdrawalFinalizedEvent{} },
		Route: func(p interface{}) Route {
			e := p.(*payloads.WithdrawalFinalizedEvent)
			return Route{HouseholdID: e.HouseholdID, Attributes: map[string]string{
				"profile_id":     e.ProfileID,
				"transaction_id": e.TransactionID,
				"status":         e.Status,
			}}
		},
	})

	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil || desc.Route == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Topics lists every topic the registry can route to.
func (r *EventRegistry) Topics() []string {
	seen := map[string]struct{}{}
	var topics []string
	for _, desc := range r.entries {
		if _, ok := seen[desc.Topic]; ok {
			continue
		}
		seen[desc.Topic] = struct{}{}
		topics = append(topics, desc.Topic)
	}
	return topics
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if strings.TrimSpace(event.AggregateID) == "" {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if payload == nil {
		return nil, NewNonRetryableError(fmt.Errorf("payload factory not configured for %s", event.EventType))
	}
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	route := desc.Route(payload)
	if route.HouseholdID == "" {
		route.HouseholdID = event.HouseholdID
	}
	if strings.TrimSpace(route.HouseholdID) == "" {
		return nil, NewNonRetryableError(fmt.Errorf("missing household for %s", event.EventType))
	}
	if event.HouseholdID != "" && route.HouseholdID != event.HouseholdID {
		return nil, NewNonRetryableError(fmt.Errorf("household mismatch: row %s payload %s", event.HouseholdID, route.HouseholdID))
	}
	route.Attributes["event_id"] = envelope.EventID
	route.Attributes["event_type"] = string(event.EventType)
	route.Attributes["household_id"] = route.HouseholdID
	route.Attributes["schema_version"] = strconv.Itoa(envelope.Version)
	if !envelope.OccurredAt.IsZero() {
		route.Attributes["occurred_at"] = envelope.OccurredAt.UTC().Format(time.RFC3339Nano)
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
		Route:      route,
	}, nil
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}
