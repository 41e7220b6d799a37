package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/tableorders-backend/pkg/bootstrap"
	"github.com/angelmondragon/tableorders-backend/pkg/metrics"
	"github.com/angelmondragon/tableorders-backend/pkg/outbox"
	"github.com/angelmondragon/tableorders-backend/pkg/outbox/registry"
)

func main() {
	requeue := flag.String("requeue", "", "move a dead-lettered outbox event id back to the outbox and exit")
	flag.Parse()

	bootstrap.Main("outbox-publisher", func(ctx context.Context, rt *bootstrap.Runtime) error {
		dbClient, err := rt.Database(ctx)
		if err != nil {
			return err
		}
		dlq := outbox.NewDLQRepository(dbClient.DB())
		if *requeue != "" {
			return requeueEvent(ctx, rt, dlq, *requeue)
		}

		pubsubClient, err := rt.PubSub(ctx)
		if err != nil {
			return err
		}
		events, err := registry.NewEventRegistry(rt.Config.PubSub)
		if err != nil {
			return fmt.Errorf("event registry: %w", err)
		}
		publisher, err := NewService(ServiceParams{
			Config:        rt.Config,
			Logger:        rt.Logger,
			DB:            dbClient,
			PubSub:        pubsubClient,
			Repository:    outbox.NewRepository(dbClient.DB()),
			Registry:      events,
			DLQRepository: dlq,
			Metrics:       metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
		})
		if err != nil {
			return err
		}

		rt.Logger.Info(ctx, "outbox publisher draining")
		return publisher.Run(ctx)
	})
}

func requeueEvent(ctx context.Context, rt *bootstrap.Runtime, dlq *outbox.DLQRepository, raw string) error {
	eventID, err := uuid.Parse(raw)
	if err != nil {
		return bootstrap.Usage(fmt.Errorf("-requeue %q: %w", raw, err))
	}
	ctx = rt.Logger.WithField(ctx, "event_id", eventID.String())
	if err := dlq.Requeue(ctx, eventID); err != nil {
		return fmt.Errorf("requeue %s: %w", eventID, err)
	}
	rt.Logger.Info(ctx, "dead-lettered event requeued")
	return nil
}
