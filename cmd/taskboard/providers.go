package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kandev/taskboard/internal/board/repository"
	"github.com/kandev/taskboard/internal/common/config"
	"github.com/kandev/taskboard/internal/common/logger"
	"github.com/kandev/taskboard/internal/events"
	"github.com/kandev/taskboard/internal/events/bus"
	gateways "github.com/kandev/taskboard/internal/gateway/websocket"
	"github.com/kandev/taskboard/internal/persistence"
	v1 "github.com/kandev/taskboard/pkg/api/v1"
)

func provideRepository(ctx context.Context, cfg *config.Config, log *logger.Logger) (repository.Repository, func() error, error) {
	repo, cleanup, err := persistence.Provide(ctx, cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize board storage: %w", err)
	}
	log.Info("Board storage initialized", zap.String("driver", cfg.Database.Driver),
		zap.Bool("cache", cfg.Cache.RedisAddr != ""))
	return repo, cleanup, nil
}

func provideEventBus(cfg *config.Config, log *logger.Logger) (*events.ProvidedBus, func() error, error) {
	provided, cleanup, err := events.Provide(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	if provided.NATS != nil {
		log.Info("Connected to NATS event bus", zap.String("url", cfg.Events.NatsURL))
	} else {
		log.Info("Using in-memory event bus")
	}
	return provided, cleanup, nil
}

func provideGateway(ctx context.Context, eventBus bus.EventBus, namespace string, log *logger.Logger) (*gateways.Gateway, *gateways.BoardEventBroadcaster) {
	gw := gateways.NewGateway(log)
	broadcaster := gw.Start(ctx, eventBus, events.Subjects{Namespace: namespace})
	log.Info("WebSocket gateway initialized")
	return gw, broadcaster
}

func v1User(u config.SeedUser) v1.User {
	return v1.User{ID: u.ID, Name: u.Name, Email: u.Email}
}
