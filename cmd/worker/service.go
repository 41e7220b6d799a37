package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/tableorders-backend/pkg/logger"
)

type pinger interface {
	Ping(context.Context) error
}

type consumer interface {
	Run(ctx context.Context) error
}

type ServiceParams struct {
	Logger    *logger.Logger
	DB        pinger
	Redis     pinger
	PubSub    pinger
	Consumers map[string]consumer
}

// Service runs the event consumers side by side and stops when any of them stops.
type Service struct {
	logg      *logger.Logger
	deps      []namedPinger
	consumers map[string]consumer
}

type namedPinger struct {
	name string
	ping pinger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if len(params.Consumers) == 0 {
		return nil, errors.New("at least one consumer is required")
	}
	for name, c := range params.Consumers {
		if c == nil {
			return nil, fmt.Errorf("consumer %s is nil", name)
		}
	}
	return &Service{
		logg: params.Logger,
		deps: []namedPinger{
			{name: "database", ping: params.DB},
			{name: "redis", ping: params.Redis},
			{name: "pubsub", ping: params.PubSub},
		},
		consumers: params.Consumers,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for _, dep := range s.deps {
		if err := dep.ping.Ping(ctx); err != nil {
			s.logg.Error(ctx, dep.name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func (s *Service) Run(parent context.Context) error {
	if err := s.ensureReadiness(parent); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	type exit struct {
		name string
		err  error
	}
	done := make(chan exit, len(s.consumers))
	for name, c := range s.consumers {
		go func() {
			done <- exit{name: name, err: c.Run(ctx)}
		}()
	}

	first := <-done
	stopped := parent.Err()
	cancel()
	for range len(s.consumers) - 1 {
		<-done
	}

	if stopped != nil {
		s.logg.Info(parent, "worker context canceled")
		return stopped
	}
	err := first.err
	if err == nil {
		err = fmt.Errorf("consumer %s returned without error", first.name)
	}
	s.logg.Error(s.logg.WithField(parent, "consumer", first.name), "consumer stopped unexpectedly", err)
	return err
}
