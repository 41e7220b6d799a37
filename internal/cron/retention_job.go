package cron

import (
	"context"
	"errors"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableorders-backend/pkg/logger"
)

const (
	defaultOutboxRetentionDays = 30
	defaultAlertRetentionDays  = 14
	// Unpublished rows that burned through this many attempts are pruned too.
	defaultStuckAttemptFloor = 10
	retentionPeriod          = 24 * time.Hour
)

type publishedEventPruner interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type readAlertPruner interface {
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionJobParams wires the daily cleanup of delivered events and acknowledged alerts.
type RetentionJobParams struct {
	Logger *logger.Logger
	DB     txRunner
	Outbox publishedEventPruner
	// Alerts is optional; without it only the outbox is pruned.
	Alerts readAlertPruner

	OutboxDays        int
	AlertDays         int
	StuckAttemptFloor int
}

type retentionJob struct {
	logg       *logger.Logger
	db         txRunner
	outbox     publishedEventPruner
	alerts     readAlertPruner
	outboxDays int
	alertDays  int
	floor      int
	now        func() time.Time
}

func NewRetentionJob(params RetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("retention job: logger required")
	case params.DB == nil:
		return nil, errors.New("retention job: db runner required")
	case params.Outbox == nil:
		return nil, errors.New("retention job: outbox pruner required")
	}
	return &retentionJob{
		logg:       params.Logger,
		db:         params.DB,
		outbox:     params.Outbox,
		alerts:     params.Alerts,
		outboxDays: positiveOr(params.OutboxDays, defaultOutboxRetentionDays),
		alertDays:  positiveOr(params.AlertDays, defaultAlertRetentionDays),
		floor:      positiveOr(params.StuckAttemptFloor, defaultStuckAttemptFloor),
		now:        time.Now,
	}, nil
}

func positiveOr(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

func (j *retentionJob) Name() string { return "data-retention" }

func (j *retentionJob) Every() time.Duration { return retentionPeriod }

// Run prunes each table independently so a failure in one does not keep the other growing.
func (j *retentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	fields := map[string]any{}
	var errs error

	outboxCutoff := now.AddDate(0, 0, -j.outboxDays)
	var events int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		events, err = j.outbox.DeletePublishedBefore(ctx, tx, outboxCutoff, j.floor)
		return err
	})
	if err != nil {
		errs = multierr.Append(errs, &pruneError{target: "outbox_events", err: err})
	} else {
		fields["outbox_events_deleted"] = events
	}

	if j.alerts != nil {
		alertCutoff := now.AddDate(0, 0, -j.alertDays)
		alerts, err := j.alerts.DeleteReadBefore(ctx, alertCutoff)
		if err != nil {
			errs = multierr.Append(errs, &pruneError{target: "staff_alerts", err: err})
		} else {
			fields["staff_alerts_deleted"] = alerts
		}
	}

	if len(fields) > 0 {
		j.logg.Info(j.logg.WithFields(ctx, fields), "retention sweep finished")
	}
	return errs
}

type pruneError struct {
	target string
	err    error
}

func (e *pruneError) Error() string { return "prune " + e.target + ": " + e.err.Error() }

func (e *pruneError) Unwrap() error { return e.err }
