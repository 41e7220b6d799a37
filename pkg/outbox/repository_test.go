package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableorders-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tableorders-backend/pkg/db/models"
	"github.com/angelmondragon/tableorders-backend/pkg/enums"
)

func seedEvent(t *testing.T, db *gorm.DB, eventType enums.OutboxEventType, aggregateID uuid.UUID) models.OutboxEvent {
	t.Helper()
	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateTableSession,
		AggregateID:   aggregateID,
		Payload:       json.RawMessage(`{"version":1,"eventId":"x","data":{}}`),
	}
	require.NoError(t, db.Create(&row).Error)
	return row
}

func TestFetchUnpublishedSkipsExhaustedRows(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)

	fresh := seedEvent(t, db, enums.EventSessionOpened, uuid.New())
	exhausted := seedEvent(t, db, enums.EventSubmissionCreated, uuid.New())
	require.NoError(t, repo.MarkTerminalTx(db, exhausted.ID, errors.New("gone"), 3))

	rows, err := repo.FetchUnpublishedForPublish(db, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, fresh.ID, rows[0].ID)

	require.NoError(t, repo.MarkFailedTx(db, fresh.ID, errors.New("timeout")))
	var reloaded models.OutboxEvent
	require.NoError(t, db.First(&reloaded, "id = ?", fresh.ID).Error)
	require.Equal(t, 1, reloaded.AttemptCount)
	require.NotNil(t, reloaded.LastError)
	require.Equal(t, "timeout", *reloaded.LastError)

	require.NoError(t, repo.MarkPublishedTx(db, fresh.ID))
	rows, err = repo.FetchUnpublishedForPublish(db, 10, 3)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestDeletePublishedBeforeKeepsRecentRows(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)

	old := seedEvent(t, db, enums.EventSessionPaid, uuid.New())
	recent := seedEvent(t, db, enums.EventSessionPaid, uuid.New())
	pending := seedEvent(t, db, enums.EventReceiptIssued, uuid.New())

	longAgo := time.Now().UTC().Add(-40 * 24 * time.Hour)
	require.NoError(t, db.Model(&models.OutboxEvent{}).Where("id = ?", old.ID).
		Update("published_at", longAgo).Error)
	require.NoError(t, repo.MarkPublishedTx(db, recent.ID))

	cutoff := time.Now().UTC().Add(-30 * 24 * time.Hour)
	deleted, err := repo.DeletePublishedBefore(context.Background(), db, cutoff, 5)
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	var remaining []models.OutboxEvent
	require.NoError(t, db.Order("created_at ASC").Find(&remaining).Error)
	ids := []uuid.UUID{}
	for _, row := range remaining {
		ids = append(ids, row.ID)
	}
	require.ElementsMatch(t, []uuid.UUID{recent.ID, pending.ID}, ids)
}

func TestEmitIfNotExistsQueuesOnce(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(NewRepository(db), nil)
	sessionID := uuid.New()

	event := DomainEvent{
		EventType:     enums.EventPaymentOverdue,
		AggregateType: enums.AggregateTableSession,
		AggregateID:   sessionID,
		Data:          map[string]any{"table_number": 2},
	}
	require.NoError(t, svc.EmitIfNotExists(context.Background(), db, event))
	require.NoError(t, svc.EmitIfNotExists(context.Background(), db, event))

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_id = ?", enums.EventPaymentOverdue, sessionID).
		Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestEmitWrapsPayloadInEnvelope(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(NewRepository(db), nil)
	sessionID := uuid.New()
	table := 4

	require.NoError(t, svc.Emit(context.Background(), db, DomainEvent{
		EventType:     enums.EventSessionOpened,
		AggregateType: enums.AggregateTableSession,
		AggregateID:   sessionID,
		Actor:         &ActorRef{Role: ActorCustomer, TableNumber: &table},
		Data:          map[string]any{"table_number": table},
	}))
	require.ErrorIs(t, svc.Emit(context.Background(), nil, DomainEvent{}), ErrTxRequired)

	var row models.OutboxEvent
	require.NoError(t, db.First(&row, "aggregate_id = ?", sessionID).Error)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &envelope))
	require.Equal(t, 1, envelope.Version)
	require.NotEmpty(t, envelope.EventID)
	require.False(t, envelope.OccurredAt.IsZero())
	require.Equal(t, row.ID.String(), envelope.EventID)
	require.Equal(t, ActorCustomer, envelope.Actor.Role)
	require.JSONEq(t, `{"table_number":4}`, string(envelope.Data))
}

func TestEmitRejectsIncompleteEvents(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(NewRepository(db), nil)
	valid := DomainEvent{
		EventType:     enums.EventReceiptIssued,
		AggregateType: enums.AggregateTableSession,
		AggregateID:   uuid.New(),
	}

	unknownType := valid
	unknownType.EventType = "table_teleported"
	require.ErrorContains(t, svc.Emit(context.Background(), db, unknownType), "unknown event type")

	noAggregate := valid
	noAggregate.AggregateID = uuid.Nil
	require.ErrorContains(t, svc.Emit(context.Background(), db, noAggregate), "without aggregate id")

	unencodable := valid
	unencodable.Data = make(chan int)
	require.ErrorContains(t, svc.Emit(context.Background(), db, unencodable), "encode receipt_issued data")

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	require.Zero(t, count)
}
