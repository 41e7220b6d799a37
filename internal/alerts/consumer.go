package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/tableorders-backend/pkg/db/models"
	"github.com/angelmondragon/tableorders-backend/pkg/enums"
	"github.com/angelmondragon/tableorders-backend/pkg/logger"
	"github.com/angelmondragon/tableorders-backend/pkg/outbox"
	"github.com/angelmondragon/tableorders-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/tableorders-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/tableorders-backend/pkg/outbox/registry"
)

const alertsConsumer = "staff-alerts"

type alertWriter interface {
	Create(ctx context.Context, alert *models.StaffAlert) (bool, error)
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// Consumer projects table session events into the staff alert feed.
type Consumer struct {
	repo         alertWriter
	subscription receiver
	idempotency  *idempotency.Manager
	decoders     *registry.DecoderRegistry
	logg         *logger.Logger
}

// NewConsumer builds the staff alert consumer.
func NewConsumer(repo alertWriter, subscription receiver, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("alerts repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("alerts subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	decoders, err := registry.ForEvents(alertEvents...)
	if err != nil {
		return nil, err
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		decoders:     decoders,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": string(eventType),
	})

	if !alertable(eventType) {
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	payload, err := c.decoders.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		return processResult{ack: true}
	}
	alert, err := buildAlert(eventID, payload)
	if err != nil {
		c.logg.Error(logCtx, "unusable payload", err)
		return processResult{ack: true}
	}
	logCtx = c.logg.WithTableNumber(logCtx, alert.TableNumber)

	skipped, err := c.idempotency.Guard(ctx, alertsConsumer, eventID, func(ctx context.Context) error {
		_, err := c.repo.Create(ctx, alert)
		return err
	})
	if err != nil {
		c.logg.Error(logCtx, "alert projection failed", err)
		return processResult{nack: true}
	}
	if skipped {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}
	c.logg.Info(c.logg.WithField(logCtx, "alert_type", string(alert.Type)), "staff alert created")
	return processResult{ack: true}
}

// alertEvents are the session events staff are notified about.
var alertEvents = []enums.OutboxEventType{
	enums.EventSubmissionCreated,
	enums.EventReceiptIssued,
	enums.EventSessionPaid,
	enums.EventPaymentOverdue,
}

func alertable(eventType enums.OutboxEventType) bool {
	return slices.Contains(alertEvents, eventType)
}

func buildAlert(eventID uuid.UUID, payload interface{}) (*models.StaffAlert, error) {
	var (
		ref     payloads.SessionRef
		kind    enums.AlertType
		title   string
		message string
	)
	switch p := payload.(type) {
	case *payloads.SubmissionCreatedEvent:
		ref = p.SessionRef
		kind = enums.AlertTypeNewOrder
		title = fmt.Sprintf("Table %d ordered", p.TableNumber)
		message = fmt.Sprintf("Order #%d with %d item(s), %s.", p.SubmissionNumber, p.ItemCount, p.SubmissionTotal.StringFixed(2))
		if p.PromotionalRound > 1 {
			kind = enums.AlertTypeFlavorReorder
			title = fmt.Sprintf("Table %d re-ordered wings", p.TableNumber)
			message = fmt.Sprintf("Round %d flavors: %s.", p.PromotionalRound, strings.Join(p.Flavors, ", "))
		}
	case *payloads.ReceiptIssuedEvent:
		ref = p.SessionRef
		kind = enums.AlertTypeBillRequested
		title = fmt.Sprintf("Table %d requested the bill", p.TableNumber)
		message = fmt.Sprintf("Receipt %s for %s.", p.ReceiptNumber, p.GrandTotal.StringFixed(2))
	case *payloads.SessionPaidEvent:
		ref = p.SessionRef
		kind = enums.AlertTypeTablePaid
		title = fmt.Sprintf("Table %d paid", p.TableNumber)
		message = fmt.Sprintf("Receipt %s settled for %s. The table is free.", p.ReceiptNumber, p.GrandTotal.StringFixed(2))
	case *payloads.PaymentOverdueEvent:
		ref = p.SessionRef
		kind = enums.AlertTypePaymentOverdue
		title = fmt.Sprintf("Table %d has not paid", p.TableNumber)
		message = fmt.Sprintf("Receipt %s for %s has been waiting %d minutes.", p.ReceiptNumber, p.GrandTotal.StringFixed(2), p.WaitingMinutes)
	default:
		return nil, fmt.Errorf("unsupported payload %T", payload)
	}
	if ref.SessionID == uuid.Nil {
		return nil, fmt.Errorf("session id missing")
	}
	return &models.StaffAlert{
		EventID:     eventID,
		SessionID:   ref.SessionID,
		TableNumber: ref.TableNumber,
		Type:        kind,
		Title:       title,
		Message:     message,
	}, nil
}
