package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/tableorders-backend/internal/alerts"
	"github.com/angelmondragon/tableorders-backend/pkg/bootstrap"
	"github.com/angelmondragon/tableorders-backend/pkg/outbox/idempotency"
)

var errNoAlertsSubscription = errors.New("TABLEORDERS_PUBSUB_ALERTS_SUBSCRIPTION is empty")

func main() {
	bootstrap.Main("worker", func(ctx context.Context, rt *bootstrap.Runtime) error {
		dbClient, err := rt.Database(ctx)
		if err != nil {
			return err
		}
		redisClient, err := rt.Redis(ctx)
		if err != nil {
			return err
		}
		pubsubClient, err := rt.PubSub(ctx)
		if err != nil {
			return err
		}

		subscription := pubsubClient.AlertsSubscription()
		if subscription == nil {
			return errNoAlertsSubscription
		}
		claims, err := idempotency.NewManager(redisClient, rt.Config.Eventing.IdempotencyTTL)
		if err != nil {
			return fmt.Errorf("idempotency manager: %w", err)
		}
		staffAlerts, err := alerts.NewConsumer(alerts.NewRepository(dbClient.DB()), subscription, claims, rt.Logger)
		if err != nil {
			return fmt.Errorf("alerts consumer: %w", err)
		}

		service, err := NewService(ServiceParams{
			Logger:    rt.Logger,
			DB:        dbClient,
			Redis:     redisClient,
			PubSub:    pubsubClient,
			Consumers: map[string]consumer{"staff-alerts": staffAlerts},
		})
		if err != nil {
			return err
		}

		ctx = rt.Logger.WithField(ctx, "subscription", rt.Config.PubSub.AlertsSubscription)
		rt.Logger.Info(ctx, "worker consuming")
		return service.Run(ctx)
	})
}
