package registry

import (
	"encoding/json"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/angelmondragon/chorepay-backend/pkg/config"
	"github.com/angelmondragon/chorepay-backend/pkg/db/models"
	"github.com/angelmondragon/chorepay-backend/pkg/enums"
	"github.com/angelmondragon/chorepay-backend/pkg/outbox"
	"github.com/angelmondragon/chorepay-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
)

func TestEventRegistryResolveSuccess(t *testing.T) {
	reg := newTestEventRegistry(t)

	payloadBytes := mustMarshal(t, payloads.TaskPaidEvent{
		HouseholdID:     "house-1",
		TaskID:          "task-1",
		TargetProfileID: "kid-1",
		TransactionID:   "txn-1",
		AmountCents:     500,
	})

	event := models.OutboxEvent{
		EventType:     enums.EventTaskPaid,
		AggregateType: enums.AggregateTask,
		AggregateID:   "task-1",
		Payload:       mustEnvelope(t, payloadBytes),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "notification-topic" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
	payload, ok := resolved.Payload.(*payloads.TaskPaidEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.TargetProfileID != "kid-1" || payload.AmountCents != 500 {
		t.Fatalf("payload mismatch %+v", payload)
	}
	if resolved.Envelope.EventID == "" {
		t.Fatalf("envelope missing event id")
	}
	if resolved.Envelope.OccurredAt.IsZero() {
		t.Fatalf("envelope missing occurred_at")
	}
}

func TestEventRegistryRoutesWithdrawalsToLedgerTopic(t *testing.T) {
	reg := newTestEventRegistry(t)

	event := models.OutboxEvent{
		EventType:     enums.EventWithdrawalFinalized,
		AggregateType: enums.AggregateLedgerTransaction,
		AggregateID:   "txn-9",
		HouseholdID:   "house-2",
		Payload: mustEnvelope(t, mustMarshal(t, payloads.WithdrawalFinalizedEvent{
			TransactionID: "txn-9",
			Status:        "PAID",
		})),
	}
	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "ledger-topic" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
	if resolved.Route.HouseholdID != "house-2" || resolved.Route.Attributes["status"] != "PAID" {
		t.Fatalf("expected household from the row and status attribute, got %+v", resolved.Route)
	}

	topics := reg.Topics()
	sort.Strings(topics)
	if len(topics) != 2 || topics[0] != "ledger-topic" || topics[1] != "notification-topic" {
		t.Fatalf("unexpected topics %v", topics)
	}
}

func TestEventRegistryRouteAttributesPerEventType(t *testing.T) {
	reg := newTestEventRegistry(t)
	paidAt := time.Date(2026, 3, 1, 8, 0, 1, 0, time.UTC)

	cases := []struct {
		name    string
		event   models.OutboxEvent
		want    map[string]string
		missing []string
	}{
		{
			name: "task paid",
			event: models.OutboxEvent{
				EventType:     enums.EventTaskPaid,
				AggregateType: enums.AggregateTask,
				AggregateID:   "task-1",
				HouseholdID:   "house-1",
				Payload: mustEnvelope(t, mustMarshal(t, payloads.TaskPaidEvent{
					HouseholdID: "house-1", TaskID: "task-1", TargetProfileID: "kid-1",
					TransactionID: "txn-1", AmountCents: 250, PaidAt: paidAt,
				})),
			},
			want: map[string]string{
				"event_type": "task_paid", "household_id": "house-1", "task_id": "task-1",
				"profile_id": "kid-1", "transaction_id": "txn-1", "amount_cents": "250",
				"paid_at": "2026-03-01T08:00:01Z", "schema_version": "1",
			},
			missing: []string{"status"},
		},
		{
			name: "withdrawal requested",
			event: models.OutboxEvent{
				EventType:     enums.EventWithdrawalRequested,
				AggregateType: enums.AggregateLedgerTransaction,
				AggregateID:   "txn-2",
				HouseholdID:   "house-1",
				Payload: mustEnvelope(t, mustMarshal(t, payloads.WithdrawalRequestedEvent{
					HouseholdID: "house-1", ProfileID: "kid-1", TransactionID: "txn-2", AmountCents: 400,
				})),
			},
			want:    map[string]string{"profile_id": "kid-1", "transaction_id": "txn-2", "amount_cents": "400"},
			missing: []string{"task_id", "status"},
		},
		{
			name: "withdrawal finalized",
			event: models.OutboxEvent{
				EventType:     enums.EventWithdrawalFinalized,
				AggregateType: enums.AggregateLedgerTransaction,
				AggregateID:   "txn-2",
				HouseholdID:   "house-1",
				Payload: mustEnvelope(t, mustMarshal(t, payloads.WithdrawalFinalizedEvent{
					HouseholdID: "house-1", ProfileID: "kid-1", TransactionID: "txn-2", Status: "REJECTED",
				})),
			},
			want:    map[string]string{"status": "REJECTED", "transaction_id": "txn-2"},
			missing: []string{"amount_cents", "task_id"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resolved, err := reg.Resolve(tc.event)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			attrs := resolved.Route.Attributes
			for k, v := range tc.want {
				if attrs[k] != v {
					t.Fatalf("attribute %s: expected %q, got %q", k, v, attrs[k])
				}
			}
			for _, k := range tc.missing {
				if _, ok := attrs[k]; ok {
					t.Fatalf("unexpected attribute %s", k)
				}
			}
			if attrs["event_id"] != resolved.Envelope.EventID || attrs["occurred_at"] == "" {
				t.Fatalf("envelope identity missing from %v", attrs)
			}
			if resolved.OrderingKey() != "household:house-1" {
				t.Fatalf("unexpected ordering key %q", resolved.OrderingKey())
			}
		})
	}
}

func TestEventRegistryResolveHouseholdMismatch(t *testing.T) {
	reg := newTestEventRegistry(t)

	event := models.OutboxEvent{
		EventType:     enums.EventWithdrawalRequested,
		AggregateType: enums.AggregateLedgerTransaction,
		AggregateID:   "txn-1",
		HouseholdID:   "house-1",
		Payload: mustEnvelope(t, mustMarshal(t, payloads.WithdrawalRequestedEvent{
			HouseholdID: "house-2", ProfileID: "kid-1", TransactionID: "txn-1", AmountCents: 100,
		})),
	}
	_, err := reg.Resolve(event)
	assertNonRetryable(t, err)

	event.HouseholdID = ""
	event.Payload = mustEnvelope(t, mustMarshal(t, payloads.WithdrawalRequestedEvent{ProfileID: "kid-1", TransactionID: "txn-1"}))
	_, err = reg.Resolve(event)
	assertNonRetryable(t, err)
}

func TestEventRegistryResolveUnknownEvent(t *testing.T) {
	reg := newTestEventRegistry(t)

	event := models.OutboxEvent{
		EventType:     enums.OutboxEventType("order_created"),
		AggregateType: enums.AggregateTask,
		AggregateID:   "task-1",
		Payload:       mustEnvelope(t, []byte(`{"reason":"none"}`)),
	}

	_, err := reg.Resolve(event)
	assertNonRetryable(t, err)
}

func TestEventRegistryResolveAggregateMismatch(t *testing.T) {
	reg := newTestEventRegistry(t)

	event := models.OutboxEvent{
		EventType:     enums.EventTaskPaid,
		AggregateType: enums.AggregateProfile,
		AggregateID:   "kid-1",
		Payload:       mustEnvelope(t, []byte(`{"taskId":"task-1"}`)),
	}

	_, err := reg.Resolve(event)
	assertNonRetryable(t, err)
}

func TestEventRegistryResolveMissingAggregateID(t *testing.T) {
	reg := newTestEventRegistry(t)

	event := models.OutboxEvent{
		EventType:     enums.EventTaskPaid,
		AggregateType: enums.AggregateTask,
		AggregateID:   " ",
		Payload:       mustEnvelope(t, []byte(`{}`)),
	}

	_, err := reg.Resolve(event)
	assertNonRetryable(t, err)
}

func TestEventRegistryResolveNullPayload(t *testing.T) {
	reg := newTestEventRegistry(t)

	event := models.OutboxEvent{
		EventType:     enums.EventTaskPaid,
		AggregateType: enums.AggregateTask,
		AggregateID:   "task-1",
		Payload:       mustEnvelope(t, []byte("null")),
	}

	_, err := reg.Resolve(event)
	assertNonRetryable(t, err)
}

func TestNewEventRegistryRequiresTopics(t *testing.T) {
	if _, err := NewEventRegistry(config.PubSubConfig{NotificationTopic: "n"}); err == nil {
		t.Fatal("expected missing ledger topic error")
	}
	if _, err := NewEventRegistry(config.PubSubConfig{LedgerTopic: "l"}); err == nil {
		t.Fatal("expected missing notification topic error")
	}
}

func assertNonRetryable(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error")
	}
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error, got %T", err)
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	cfg := config.PubSubConfig{
		NotificationTopic: "notification-topic",
		LedgerTopic:       "ledger-topic",
	}
	reg, err := NewEventRegistry(cfg)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func mustEnvelope(t *testing.T, payload []byte) json.RawMessage {
	t.Helper()
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return data
}
