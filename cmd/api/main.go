package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/tableorders-backend/api/routes"
	"github.com/angelmondragon/tableorders-backend/internal/alerts"
	"github.com/angelmondragon/tableorders-backend/internal/menu"
	"github.com/angelmondragon/tableorders-backend/internal/sessions"
	"github.com/angelmondragon/tableorders-backend/pkg/bootstrap"
	"github.com/angelmondragon/tableorders-backend/pkg/config"
	"github.com/angelmondragon/tableorders-backend/pkg/enums"
	"github.com/angelmondragon/tableorders-backend/pkg/metrics"
	"github.com/angelmondragon/tableorders-backend/pkg/outbox"
	"github.com/angelmondragon/tableorders-backend/pkg/redis"
)

const (
	shutdownTimeout   = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func main() {
	bootstrap.Main("api", serve)
}

func serve(ctx context.Context, rt *bootstrap.Runtime) error {
	cfg := rt.Config
	dbClient, err := rt.Database(ctx)
	if err != nil {
		return err
	}
	redisClient, err := rt.Redis(ctx)
	if err != nil {
		return err
	}

	receipts, err := receiptGenerator(cfg.Sessions, redisClient)
	if err != nil {
		return fmt.Errorf("receipt generator: %w", err)
	}
	matchBy, err := enums.ParseMatchBy(cfg.Sessions.MatchBy)
	if err != nil {
		return err
	}

	catalog := menu.DefaultCatalog()
	sessionsService, err := sessions.NewService(sessions.ServiceParams{
		Repository:        sessions.NewRepository(dbClient.DB()),
		TxRunner:          dbClient,
		Outbox:            outbox.NewService(outbox.NewRepository(dbClient.DB()), rt.Logger),
		Catalog:           catalog,
		Receipts:          receipts,
		Metrics:           metrics.NewSessionMetrics(prometheus.DefaultRegisterer),
		Logger:            rt.Logger,
		Tables:            cfg.Tables.Numbers,
		MatchBy:           matchBy,
		MaxUpdateAttempts: cfg.Sessions.MaxUpdateAttempts,
	})
	if err != nil {
		return fmt.Errorf("sessions service: %w", err)
	}
	alertsService, err := alerts.NewService(alerts.NewRepository(dbClient.DB()))
	if err != nil {
		return fmt.Errorf("alerts service: %w", err)
	}

	server := &http.Server{
		Addr: listenAddr(cfg.App),
		Handler: routes.NewRouter(routes.Deps{
			Config:   cfg,
			Logger:   rt.Logger,
			DB:       dbClient,
			Cache:    redisClient,
			Sessions: sessionsService,
			Alerts:   alertsService,
			Catalog:  catalog,
			Metrics:  promhttp.Handler(),
		}),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	ctx = rt.Logger.WithFields(ctx, map[string]any{
		"addr":     server.Addr,
		"match_by": string(matchBy),
		"tables":   cfg.Tables.Numbers,
	})
	rt.Logger.Info(ctx, "api listening")

	served := make(chan error, 1)
	go func() { served <- server.ListenAndServe() }()

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// PORT is set by Cloud Run and wins over the configured port.
func listenAddr(app config.AppConfig) string {
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":" + app.Port
}

func receiptGenerator(cfg config.SessionsConfig, redisClient *redis.Client) (sessions.ReceiptGenerator, error) {
	if strings.EqualFold(strings.TrimSpace(cfg.ReceiptStrategy), config.ReceiptStrategyCounter) {
		gen, err := sessions.NewCounterReceiptGenerator(redisClient)
		if err != nil {
			return nil, err
		}
		return gen, nil
	}
	return sessions.NewTimestampReceiptGenerator(), nil
}
