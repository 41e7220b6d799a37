package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/tableorders-backend/internal/alerts"
	"github.com/angelmondragon/tableorders-backend/internal/cron"
	"github.com/angelmondragon/tableorders-backend/internal/sessions"
	"github.com/angelmondragon/tableorders-backend/pkg/bootstrap"
	"github.com/angelmondragon/tableorders-backend/pkg/config"
	"github.com/angelmondragon/tableorders-backend/pkg/db"
	"github.com/angelmondragon/tableorders-backend/pkg/metrics"
	"github.com/angelmondragon/tableorders-backend/pkg/outbox"
)

func main() {
	once := flag.Bool("once", false, "run every selected job a single time and exit")
	only := flag.String("jobs", "", "comma-separated job names to run (default: all)")
	flag.Parse()

	bootstrap.Main("cron-worker", func(ctx context.Context, rt *bootstrap.Runtime) error {
		dbClient, err := rt.Database(ctx)
		if err != nil {
			return err
		}
		redisClient, err := rt.Redis(ctx)
		if err != nil {
			return err
		}

		registry, err := buildRegistry(rt, dbClient)
		if err != nil {
			return err
		}
		if *only != "" {
			if registry, err = registry.Only(strings.Split(*only, ",")...); err != nil {
				return bootstrap.Usage(err)
			}
		}

		lock, err := cron.NewRedisLock(redisClient, lockName(rt.Config.App.Env), 0)
		if err != nil {
			return err
		}
		service, err := cron.NewService(cron.ServiceParams{
			Logger:   rt.Logger,
			Registry: registry,
			Lock:     lock,
			Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		})
		if err != nil {
			return err
		}

		ctx = rt.Logger.WithField(ctx, "jobs", strings.Join(registry.Names(), ","))
		if *once {
			rt.Logger.Info(ctx, "running cron jobs once")
			return service.RunOnce(ctx)
		}
		rt.Logger.Info(ctx, "cron worker scheduling")
		return service.Run(ctx)
	})
}

func buildRegistry(rt *bootstrap.Runtime, dbClient *db.Client) (*cron.Registry, error) {
	cfg := rt.Config
	outboxRepo := outbox.NewRepository(dbClient.DB())

	retention, err := cron.NewRetentionJob(cron.RetentionJobParams{
		Logger:            rt.Logger,
		DB:                dbClient,
		Outbox:            outboxRepo,
		Alerts:            alerts.NewRepository(dbClient.DB()),
		OutboxDays:        cfg.Outbox.RetentionDays,
		AlertDays:         cfg.Eventing.AlertRetentionDays,
		StuckAttemptFloor: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("retention job: %w", err)
	}
	nudge, err := cron.NewPaymentNudgeJob(cron.PaymentNudgeJobParams{
		Logger:   rt.Logger,
		DB:       dbClient,
		Sessions: sessions.NewRepository(dbClient.DB()),
		Outbox:   outbox.NewService(outboxRepo, rt.Logger),
		After:    cfg.Sessions.PaymentNudgeAfter,
	})
	if err != nil {
		return nil, fmt.Errorf("payment nudge job: %w", err)
	}
	return cron.NewRegistry(retention, nudge), nil
}

func lockName(env string) string {
	if env == "" {
		env = config.AppEnvDev
	}
	return "cron-worker:" + env
}
