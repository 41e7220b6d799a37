// Package bootstrap holds the process wiring shared by every binary under cmd/:
// environment loading, the service logger, dependency clients and their shutdown.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/tableorders-backend/pkg/config"
	"github.com/angelmondragon/tableorders-backend/pkg/db"
	"github.com/angelmondragon/tableorders-backend/pkg/instance"
	"github.com/angelmondragon/tableorders-backend/pkg/logger"
	"github.com/angelmondragon/tableorders-backend/pkg/migrate"
	"github.com/angelmondragon/tableorders-backend/pkg/pubsub"
	"github.com/angelmondragon/tableorders-backend/pkg/redis"
)

const (
	exitFailure = 1
	exitUsage   = 2
)

// UsageError marks a failure caused by bad flags or arguments.
type UsageError struct{ Err error }

func (e *UsageError) Error() string { return e.Err.Error() }
func (e *UsageError) Unwrap() error { return e.Err }

// Usage wraps err so Main exits with the usage status.
func Usage(err error) error {
	if err == nil {
		return nil
	}
	return &UsageError{Err: err}
}

// Runtime is the loaded configuration plus the clients opened for one process.
type Runtime struct {
	Config *config.Config
	Logger *logger.Logger

	kind    string
	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

// Load reads .env when present, parses the environment and builds the logger for
// the given service kind.
func Load(kind string) (*Runtime, error) {
	envMissing := godotenv.Load() != nil

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg.Service.Kind = kind

	logg := logger.New(logger.Options{
		ServiceName: kind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Fields:      map[string]any{"instance": instance.GetID()},
	})
	if envMissing {
		logg.Debug(context.Background(), "no .env file, using process environment")
	}
	return &Runtime{Config: cfg, Logger: logg, kind: kind}, nil
}

// Defer registers fn to run on Close. Closers run in reverse registration order.
func (r *Runtime) Defer(name string, fn func() error) {
	r.closers = append(r.closers, namedCloser{name: name, close: fn})
}

// Close releases every registered client and returns the combined failures.
func (r *Runtime) Close() error {
	var errs error
	for i := len(r.closers) - 1; i >= 0; i-- {
		c := r.closers[i]
		if err := c.close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	r.closers = nil
	return errs
}

// Database opens the primary database and applies dev auto-migrations.
func (r *Runtime) Database(ctx context.Context) (*db.Client, error) {
	client, err := db.New(ctx, r.Config.DB, r.Logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap database: %w", err)
	}
	r.Defer("database", client.Close)
	if err := migrate.MaybeRunDev(ctx, r.Config, r.Logger, client); err != nil {
		return nil, fmt.Errorf("dev migrations: %w", err)
	}
	return client, nil
}

func (r *Runtime) Redis(ctx context.Context) (*redis.Client, error) {
	client, err := redis.New(ctx, r.Config.Redis, r.Logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap redis: %w", err)
	}
	r.Defer("redis", client.Close)
	return client, nil
}

func (r *Runtime) PubSub(ctx context.Context) (*pubsub.Client, error) {
	client, err := pubsub.NewClient(ctx, r.Config.GCP, r.Config.PubSub, r.Logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap pubsub: %w", err)
	}
	r.Defer("pubsub", client.Close)
	return client, nil
}

// BaseContext carries the env and service kind on every log line of the process.
func (r *Runtime) BaseContext(ctx context.Context) context.Context {
	return r.Logger.WithFields(ctx, map[string]any{
		"env":         r.Config.App.Env,
		"serviceKind": r.kind,
	})
}

// Main runs fn for the named service until SIGINT or SIGTERM and exits the process
// with a status derived from its error. Cancellation is a clean exit.
func Main(kind string, fn func(ctx context.Context, rt *Runtime) error) {
	os.Exit(run(kind, fn))
}

func run(kind string, fn func(ctx context.Context, rt *Runtime) error) int {
	rt, err := Load(kind)
	if err != nil {
		logger.New(logger.Options{ServiceName: kind}).Error(context.Background(), "failed to load config", err)
		return exitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = rt.BaseContext(ctx)

	runErr := fn(ctx, rt)
	if err := rt.Close(); err != nil {
		rt.Logger.Error(ctx, "shutdown left resources open", err)
	}
	return rt.exitCode(ctx, runErr)
}

func (r *Runtime) exitCode(ctx context.Context, err error) int {
	var usage *UsageError
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		r.Logger.Info(ctx, r.kind+" stopped")
		return 0
	case errors.As(err, &usage):
		r.Logger.Error(ctx, "invalid invocation", err)
		return exitUsage
	default:
		r.Logger.Error(ctx, r.kind+" failed", err)
		return exitFailure
	}
}
