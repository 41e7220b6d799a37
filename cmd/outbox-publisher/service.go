package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableorders-backend/pkg/config"
	"github.com/angelmondragon/tableorders-backend/pkg/db/models"
	"github.com/angelmondragon/tableorders-backend/pkg/enums"
	"github.com/angelmondragon/tableorders-backend/pkg/logger"
	"github.com/angelmondragon/tableorders-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollMs         = 500
	defaultMaxAttempts    = 10
	defaultPublishTimeout = 15 * time.Second
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publishMetrics interface {
	IncPublished(eventType string)
	IncFailed(eventType string)
	IncDeadLetter(reason string)
}

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	DLQRepository    dlqRepository
	Metrics          publishMetrics
	PublisherFactory publisherFactory
}

func (p ServiceParams) validate() error {
	missing := func(what string) error { return fmt.Errorf("outbox publisher: %s is required", what) }
	switch {
	case p.Config == nil:
		return missing("config")
	case p.Logger == nil:
		return missing("logger")
	case p.DB == nil:
		return missing("database client")
	case p.PubSub == nil:
		return missing("pubsub client")
	case p.Repository == nil:
		return missing("outbox repository")
	case p.Registry == nil:
		return missing("event registry")
	case p.DLQRepository == nil:
		return missing("dlq repository")
	}
	return nil
}

// Service drains outbox_events into Pub/Sub. Events of one table session share an
// ordering key, and a failed event holds back the rest of its session for that batch.
type Service struct {
	logg        *logger.Logger
	db          dbClient
	pubsub      pubSubClient
	repo        outboxRepository
	registry    registryResolver
	dlq         dlqRepository
	metrics     publishMetrics
	publisherOf publisherFactory
	now         func() time.Time

	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	cfg := params.Config.Outbox
	svc := &Service{
		logg:         params.Logger,
		db:           params.DB,
		pubsub:       params.PubSub,
		repo:         params.Repository,
		registry:     params.Registry,
		dlq:          params.DLQRepository,
		metrics:      params.Metrics,
		publisherOf:  params.PublisherFactory,
		now:          time.Now,
		batchSize:    positiveOr(cfg.BatchSize, defaultBatchSize),
		maxAttempts:  positiveOr(cfg.MaxAttempts, defaultMaxAttempts),
		pollInterval: time.Duration(positiveOr(cfg.PollIntervalMS, defaultPollMs)) * time.Millisecond,
	}
	if svc.publisherOf == nil {
		svc.publisherOf = newOrderedPublishers(params.PubSub).forTopic
	}
	if svc.metrics == nil {
		svc.metrics = noopMetrics{}
	}
	return svc, nil
}

// Run polls until ctx is canceled. A batch that moved rows is followed immediately by
// the next one; errors back off exponentially.
func (s *Service) Run(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	if err := s.pubsub.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping: %w", err)
	}

	wait := s.pollInterval
	for ctx.Err() == nil {
		progressed, err := s.processBatch(ctx)
		if err != nil {
			s.logg.Error(ctx, "outbox batch failed", err)
			wait = nextBackoff(wait, s.pollInterval, maxBackoff)
		} else {
			wait = s.pollInterval
			if progressed {
				continue
			}
		}
		if err := pause(ctx, withJitter(wait)); err != nil {
			return err
		}
	}
	return ctx.Err()
}

type outcome uint8

const (
	published outcome = iota
	retryLater
	parked
)

// processBatch reports progress when at least one row left the queue.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	var progressed bool
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		stalled := make(map[uuid.UUID]bool)
		for _, event := range events {
			if stalled[event.AggregateID] {
				continue
			}
			result, err := s.dispatch(ctx, tx, event)
			if err != nil {
				return err
			}
			if result == retryLater {
				stalled[event.AggregateID] = true
				continue
			}
			progressed = true
		}
		return nil
	})
	return progressed, err
}

func (s *Service) dispatch(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (outcome, error) {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"outbox_id":     event.ID.String(),
		"event_type":    event.EventType,
		"session_id":    event.AggregateID.String(),
		"attempt_count": event.AttemptCount + 1,
	})

	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return parked, s.park(ctx, tx, event, enums.OutboxDLQReasonUnresolvable, err)
	}
	ctx = s.logg.WithField(ctx, "topic", resolved.Descriptor.Topic)

	err = s.publish(ctx, event, resolved)
	switch {
	case err == nil:
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return published, fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.metrics.IncPublished(string(event.EventType))
		s.logg.Info(ctx, "outbox event published")
		return published, nil
	case registry.IsNonRetryable(err):
		return parked, s.park(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err)
	case event.AttemptCount+1 >= s.maxAttempts:
		return parked, s.park(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts, fmt.Errorf("max publish attempts reached: %w", err))
	}

	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "outbox publish failed, will retry")
	if err := s.repo.MarkFailedTx(tx, event.ID, err); err != nil {
		return retryLater, fmt.Errorf("mark failure %s: %w", event.ID, err)
	}
	s.metrics.IncFailed(string(event.EventType))
	return retryLater, nil
}

// park moves the event to the DLQ and stops further attempts on the outbox row.
func (s *Service) park(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"error_reason": reason,
		"error":        cause.Error(),
	}), "outbox event dead-lettered")

	if err := s.dlq.InsertTx(tx, event.DeadLetter(reason, cause.Error(), s.now().UTC())); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	s.metrics.IncDeadLetter(string(reason))
	return nil
}

var errNoPublisher = errors.New("no publisher for topic")

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.publisherOf(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("%w %s", errNoPublisher, topic))
	}

	ctx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(ctx, &gcppubsub.Message{
		Data:        event.Payload,
		OrderingKey: event.AggregateID.String(),
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		},
	})
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("%w %s: nil result", errNoPublisher, topic))
	}
	_, err := result.Get(ctx)
	return err
}

type noopMetrics struct{}

func (noopMetrics) IncPublished(string)  {}
func (noopMetrics) IncFailed(string)     {}
func (noopMetrics) IncDeadLetter(string) {}
