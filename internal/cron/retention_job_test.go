package cron

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableorders-backend/internal/alerts"
	"github.com/angelmondragon/tableorders-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tableorders-backend/pkg/db/models"
	"github.com/angelmondragon/tableorders-backend/pkg/enums"
	"github.com/angelmondragon/tableorders-backend/pkg/logger"
	"github.com/angelmondragon/tableorders-backend/pkg/outbox"
)

var sweepNow = time.Date(2026, 10, 16, 4, 0, 0, 0, time.UTC)

type recordingEventPruner struct {
	cutoff time.Time
	floor  int
	err    error
}

func (r *recordingEventPruner) DeletePublishedBefore(_ context.Context, _ *gorm.DB, cutoff time.Time, floor int) (int64, error) {
	r.cutoff = cutoff
	r.floor = floor
	return 3, r.err
}

type recordingAlertPruner struct {
	cutoff time.Time
	err    error
}

func (r *recordingAlertPruner) DeleteReadBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.cutoff = cutoff
	return 5, r.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func buildRetentionJob(t *testing.T, params RetentionJobParams) *retentionJob {
	t.Helper()
	params.Logger = testLogger()
	if params.DB == nil {
		params.DB = nilTxRunner{}
	}
	job, err := NewRetentionJob(params)
	require.NoError(t, err)
	typed := job.(*retentionJob)
	typed.now = func() time.Time { return sweepNow }
	return typed
}

func TestRetentionJobUsesConfiguredWindows(t *testing.T) {
	events := &recordingEventPruner{}
	reads := &recordingAlertPruner{}
	job := buildRetentionJob(t, RetentionJobParams{Outbox: events, Alerts: reads, OutboxDays: 7, AlertDays: 2})

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, sweepNow.AddDate(0, 0, -7), events.cutoff)
	assert.Equal(t, defaultStuckAttemptFloor, events.floor)
	assert.Equal(t, sweepNow.AddDate(0, 0, -2), reads.cutoff)
	assert.Equal(t, "data-retention", job.Name())
	assert.Equal(t, 24*time.Hour, job.Every())
}

func TestRetentionJobFallsBackToDefaults(t *testing.T) {
	events := &recordingEventPruner{}
	job := buildRetentionJob(t, RetentionJobParams{Outbox: events, OutboxDays: -1})

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, sweepNow.AddDate(0, 0, -defaultOutboxRetentionDays), events.cutoff)
	assert.Equal(t, defaultAlertRetentionDays, job.alertDays)
}

func TestRetentionJobPrunesAlertsWhenOutboxFails(t *testing.T) {
	events := &recordingEventPruner{err: errors.New("lock timeout")}
	reads := &recordingAlertPruner{}
	job := buildRetentionJob(t, RetentionJobParams{Outbox: events, Alerts: reads})

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 1)
	assert.Contains(t, err.Error(), "prune outbox_events")
	assert.False(t, reads.cutoff.IsZero(), "alert pruning must still run")
}

func TestNewRetentionJobRequiresDependencies(t *testing.T) {
	_, err := NewRetentionJob(RetentionJobParams{})
	require.Error(t, err)
	_, err = NewRetentionJob(RetentionJobParams{Logger: testLogger(), DB: nilTxRunner{}})
	require.ErrorContains(t, err, "outbox pruner")
}

func TestRetentionJobAgainstDatabase(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	staleAt := sweepNow.AddDate(0, 0, -40)

	published := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventSessionPaid,
		AggregateType: enums.AggregateTableSession,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1,"data":{}}`),
		CreatedAt:     staleAt,
		PublishedAt:   &staleAt,
	}
	require.NoError(t, db.Create(&published).Error)

	readAt := sweepNow.AddDate(0, 0, -20)
	alert := &models.StaffAlert{
		EventID:     uuid.New(),
		SessionID:   uuid.New(),
		TableNumber: 2,
		Type:        enums.AlertTypeNewOrder,
		Title:       "New order",
		Message:     "Table 2",
		ReadAt:      &readAt,
	}
	require.NoError(t, db.Create(alert).Error)

	job := buildRetentionJob(t, RetentionJobParams{
		DB:     sqliteTx{db: db},
		Outbox: outbox.NewRepository(db),
		Alerts: alerts.NewRepository(db),
	})
	require.NoError(t, job.Run(ctx))

	var events, staff int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&events).Error)
	require.NoError(t, db.Model(&models.StaffAlert{}).Count(&staff).Error)
	assert.Zero(t, events)
	assert.Zero(t, staff)
}
