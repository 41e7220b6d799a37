package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/tableorders-backend/api/controllers"
	"github.com/angelmondragon/tableorders-backend/api/middleware"
	"github.com/angelmondragon/tableorders-backend/internal/alerts"
	"github.com/angelmondragon/tableorders-backend/internal/menu"
	"github.com/angelmondragon/tableorders-backend/internal/sessions"
	"github.com/angelmondragon/tableorders-backend/pkg/config"
	"github.com/angelmondragon/tableorders-backend/pkg/db"
	"github.com/angelmondragon/tableorders-backend/pkg/logger"
)

// cacheStore is the redis surface the API needs: replay storage and a health ping.
type cacheStore interface {
	middleware.ReplayStore
	Ping(ctx context.Context) error
}

// Deps carries everything the HTTP surface is built from. Nil services answer 500.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Cache    cacheStore
	Sessions sessions.Service
	Alerts   alerts.Service
	Catalog  *menu.Catalog
	Metrics  http.Handler
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	var cachePinger, dbPinger interface{ Ping(context.Context) error }
	if deps.Cache != nil {
		cachePinger = deps.Cache
	}
	if deps.DB != nil {
		dbPinger = deps.DB
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbPinger, cachePinger))
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if deps.Cache != nil {
			r.Use(middleware.Idempotency(deps.Cache, logg))
		}

		r.Get("/menu", controllers.GetMenu(deps.Catalog, logg))

		r.Route("/tables/{tableNumber}", func(r chi.Router) {
			r.Post("/orders", controllers.SubmitOrder(deps.Sessions, logg))
			r.Get("/session", controllers.GetTableSession(deps.Sessions, logg))
			r.Post("/receipt", controllers.IssueReceipt(deps.Sessions, logg))
			r.Post("/pay", controllers.PayTable(deps.Sessions, logg))
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", controllers.ListSessions(deps.Sessions, logg))
			r.Get("/{sessionId}", controllers.GetSession(deps.Sessions, logg))
			r.Post("/{sessionId}/pay", controllers.PaySession(deps.Sessions, logg))
			r.Patch("/{sessionId}/submissions/{submissionNumber}/status", controllers.UpdateSubmissionStatus(deps.Sessions, logg))
			r.Patch("/{sessionId}/lines/{lineItemId}/flavor-status", controllers.UpdateFlavorStatus(deps.Sessions, logg))
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", controllers.ListAlerts(deps.Alerts, logg))
			r.Post("/read-all", controllers.MarkAllAlertsRead(deps.Alerts, logg))
			r.Post("/{alertId}/read", controllers.MarkAlertRead(deps.Alerts, logg))
		})
	})

	return r
}
