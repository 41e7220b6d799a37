package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableorders-backend/pkg/db/models"
	"github.com/angelmondragon/tableorders-backend/pkg/enums"
	"github.com/angelmondragon/tableorders-backend/pkg/logger"
	"github.com/angelmondragon/tableorders-backend/pkg/outbox"
	"github.com/angelmondragon/tableorders-backend/pkg/outbox/payloads"
)

const (
	defaultPaymentNudgeAfter = 30 * time.Minute
	defaultPaymentNudgeBatch = 100
)

// PaymentNudgeJobParams configure the overdue bill reminder.
type PaymentNudgeJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Sessions  awaitingPaymentReader
	Outbox    overdueEmitter
	After     time.Duration
	BatchSize int
}

type awaitingPaymentReader interface {
	FindAwaitingPaymentBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.TableSession, error)
}

type overdueEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// NewPaymentNudgeJob queues one payment_overdue event per session whose receipt has been
// waiting longer than After.
func NewPaymentNudgeJob(params PaymentNudgeJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("sessions reader required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	after := params.After
	if after <= 0 {
		after = defaultPaymentNudgeAfter
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultPaymentNudgeBatch
	}
	return &paymentNudgeJob{
		logg:     params.Logger,
		db:       params.DB,
		sessions: params.Sessions,
		outbox:   params.Outbox,
		after:    after,
		batch:    batch,
		now:      time.Now,
	}, nil
}

type paymentNudgeJob struct {
	logg     *logger.Logger
	db       txRunner
	sessions awaitingPaymentReader
	outbox   overdueEmitter
	after    time.Duration
	batch    int
	now      func() time.Time
}

func (j *paymentNudgeJob) Name() string { return "payment-nudge" }

func (j *paymentNudgeJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	sessions, err := j.sessions.FindAwaitingPaymentBefore(ctx, now.Add(-j.after), j.batch)
	if err != nil {
		return fmt.Errorf("query sessions awaiting payment: %w", err)
	}

	var errs error
	for i := range sessions {
		session := &sessions[i]
		if err := j.nudge(ctx, session, now); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("nudge session %s: %w", session.ID, err))
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": len(sessions),
		"failed":     len(multierr.Errors(errs)),
	}), "payment nudge loop complete")
	return errs
}

func (j *paymentNudgeJob) nudge(ctx context.Context, session *models.TableSession, now time.Time) error {
	if session.ReceiptNumber == nil || session.ReceiptIssuedAt == nil {
		return nil
	}
	event := payloads.PaymentOverdueEvent{
		SessionRef:      payloads.SessionRef{SessionID: session.ID, TableNumber: session.TableNumber},
		ReceiptNumber:   *session.ReceiptNumber,
		GrandTotal:      session.GrandTotal,
		ReceiptIssuedAt: *session.ReceiptIssuedAt,
		WaitingMinutes:  int(now.Sub(*session.ReceiptIssuedAt).Minutes()),
	}
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		return j.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentOverdue,
			AggregateType: enums.AggregateTableSession,
			AggregateID:   session.ID,
			Actor:         &outbox.ActorRef{Role: outbox.ActorSystem},
			Data:          event,
			OccurredAt:    now,
		})
	})
}
