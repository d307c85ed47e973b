package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/chorepay-backend/pkg/db/models"
	"github.com/angelmondragon/chorepay-backend/pkg/enums"
	"github.com/angelmondragon/chorepay-backend/pkg/outbox/payloads"
)

func newOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:outbox_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.OutboxEvent{}, &models.OutboxDLQ{}))
	return conn
}

func TestEmitWritesEnvelope(t *testing.T) {
	conn := newOutboxTestDB(t)
	svc := NewService(NewRepository(conn), nil)

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventTaskPaid,
			AggregateType: enums.AggregateTask,
			AggregateID:   "task-1",
			HouseholdID:   "house-1",
			Data: payloads.TaskPaidEvent{
				HouseholdID:     "house-1",
				TaskID:          "task-1",
				TargetProfileID: "kid-1",
				AmountCents:     300,
			},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, "task-1", rows[0].AggregateID)
	require.Nil(t, rows[0].PublishedAt)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	require.Equal(t, 1, envelope.Version)
	require.NotEmpty(t, envelope.EventID)

	var data payloads.TaskPaidEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	require.Equal(t, "kid-1", data.TargetProfileID)
	require.EqualValues(t, 300, data.AmountCents)
}

func TestEmitRejectsInvalidEvents(t *testing.T) {
	conn := newOutboxTestDB(t)
	svc := NewService(NewRepository(conn), nil)

	require.Error(t, svc.Emit(context.Background(), nil, DomainEvent{}))
	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventTaskPaid,
			AggregateType: enums.AggregateTask,
		})
	})
	require.Error(t, err)
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	conn := newOutboxTestDB(t)
	repo := NewRepository(conn)

	first := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventTaskPaid, AggregateType: enums.AggregateTask, AggregateID: "a", HouseholdID: "h", Payload: json.RawMessage(`{}`)}
	second := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventTaskPaid, AggregateType: enums.AggregateTask, AggregateID: "b", HouseholdID: "h", Payload: json.RawMessage(`{}`)}
	require.NoError(t, repo.Insert(conn, first))
	require.NoError(t, repo.Insert(conn, second))

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NoError(t, repo.MarkPublishedTx(conn, first.ID))
	require.NoError(t, repo.MarkFailedTx(conn, second.ID, errors.New("unavailable")))

	rows, err = repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, second.ID, rows[0].ID)
	require.Equal(t, 1, rows[0].AttemptCount)
	require.NotNil(t, rows[0].LastError)

	require.NoError(t, repo.MarkTerminalTx(conn, second.ID, errors.New("gave up"), 3))
	rows, err = repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestDLQRepositoryInsertTruncatesError(t *testing.T) {
	conn := newOutboxTestDB(t)
	dlq := NewDLQRepository(conn)

	eventID := uuid.New()
	long := make([]byte, maxDLQErrorLen+50)
	for i := range long {
		long[i] = 'x'
	}
	msg := string(long)
	require.NoError(t, dlq.InsertTx(conn, models.OutboxDLQ{
		EventID:       eventID,
		EventType:     enums.EventWithdrawalRequested,
		AggregateType: enums.AggregateLedgerTransaction,
		AggregateID:   "txn-1",
		Payload:       json.RawMessage(`{}`),
		ErrorReason:   enums.OutboxDLQReasonNonRetryable,
		ErrorMessage:  &msg,
	}))

	var rows []models.OutboxDLQ
	require.NoError(t, conn.Where("event_id = ?", eventID).Find(&rows).Error)
	require.Len(t, rows, 1)
	require.NotEqual(t, uuid.Nil, rows[0].ID)
	require.Len(t, *rows[0].ErrorMessage, maxDLQErrorLen)
}

func TestMarkFailedKeepsLastErrorValidUTF8(t *testing.T) {
	conn := newOutboxTestDB(t)
	repo := NewRepository(conn)

	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventTaskPaid,
		AggregateType: enums.AggregateTask,
		AggregateID:   "task-1",
		HouseholdID:   "house-1",
		Payload:       json.RawMessage(`{}`),
	}
	require.NoError(t, repo.Insert(conn, row))

	cause := errors.New(strings.Repeat("x", maxLastErrorLen-1) + "€ memo")
	require.NoError(t, repo.MarkFailedTx(conn, row.ID, cause))

	var stored models.OutboxEvent
	require.NoError(t, conn.Where("id = ?", row.ID).First(&stored).Error)
	require.NotNil(t, stored.LastError)
	require.True(t, utf8.ValidString(*stored.LastError))
	require.Equal(t, strings.Repeat("x", maxLastErrorLen-1), *stored.LastError)
}

func TestRepositoryDeletePublishedBefore(t *testing.T) {
	conn := newOutboxTestDB(t)
	repo := NewRepository(conn)
	now := time.Now().UTC()
	old := now.Add(-60 * 24 * time.Hour)
	published := now.Add(-59 * 24 * time.Hour)

	rows := []models.OutboxEvent{
		{ID: uuid.New(), EventType: enums.EventTaskPaid, AggregateType: enums.AggregateTask, AggregateID: "published", HouseholdID: "h", Payload: json.RawMessage(`{}`), CreatedAt: old, PublishedAt: &published},
		{ID: uuid.New(), EventType: enums.EventTaskPaid, AggregateType: enums.AggregateTask, AggregateID: "terminal", HouseholdID: "h", Payload: json.RawMessage(`{}`), CreatedAt: old, AttemptCount: 10},
		{ID: uuid.New(), EventType: enums.EventTaskPaid, AggregateType: enums.AggregateTask, AggregateID: "pending", HouseholdID: "h", Payload: json.RawMessage(`{}`), CreatedAt: old, AttemptCount: 2},
		{ID: uuid.New(), EventType: enums.EventTaskPaid, AggregateType: enums.AggregateTask, AggregateID: "recent", HouseholdID: "h", Payload: json.RawMessage(`{}`), CreatedAt: now, PublishedAt: &now},
	}
	for _, row := range rows {
		require.NoError(t, repo.Insert(conn, row))
	}

	deleted, err := repo.DeletePublishedBefore(context.Background(), conn, now.Add(-30*24*time.Hour), 10)
	require.NoError(t, err)
	require.EqualValues(t, 2, deleted)

	var remaining []models.OutboxEvent
	require.NoError(t, conn.Order("aggregate_id").Find(&remaining).Error)
	require.Len(t, remaining, 2)
	require.Equal(t, "pending", remaining[0].AggregateID)
	require.Equal(t, "recent", remaining[1].AggregateID)
}

func TestDLQRepositoryDeleteFailedBefore(t *testing.T) {
	conn := newOutboxTestDB(t)
	dlq := NewDLQRepository(conn)
	now := time.Now().UTC()

	for _, failedAt := range []time.Time{now.Add(-120 * 24 * time.Hour), now} {
		require.NoError(t, dlq.InsertTx(conn, models.OutboxDLQ{
			EventID:       uuid.New(),
			EventType:     enums.EventTaskPaid,
			AggregateType: enums.AggregateTask,
			AggregateID:   "task-1",
			Payload:       json.RawMessage(`{}`),
			ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
			FailedAt:      failedAt,
		}))
	}

	deleted, err := dlq.DeleteFailedBefore(context.Background(), conn, now.Add(-90*24*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	var rows []models.OutboxDLQ
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
}
