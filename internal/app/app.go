// Package app собирает приложение: выбирает бэкенд хранения по конфигу
// и связывает сервисы. Встраивается принимающей средой, внешних
// интерфейсов (HTTP, RPC, CLI) не поднимает.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/piratproject/pirat-backend/internal/config"
	"github.com/piratproject/pirat-backend/internal/lib/jwt"
	"github.com/piratproject/pirat-backend/internal/lib/sl"
	"github.com/piratproject/pirat-backend/internal/services/identity"
	"github.com/piratproject/pirat-backend/internal/services/messaging"
	"github.com/piratproject/pirat-backend/internal/services/moderation"
	"github.com/piratproject/pirat-backend/internal/services/rewards"
	"github.com/piratproject/pirat-backend/internal/storage"
)

// App — собранное приложение с хранилищем и сервисами.
type App struct {
	Store      storage.Store
	Identity   *identity.Service
	Rewards    *rewards.Service
	Messaging  *messaging.Service
	Moderation *moderation.Service

	logger *slog.Logger
	relay  *storage.Relay
}

// New создает приложение по конфигу.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.New"

	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var relay *storage.Relay
	if cfg.AMQPRelay.Enabled {
		relay, err = storage.NewRelay(store, cfg.AMQPRelay.URI, cfg.AMQPRelay.Exchange, logger)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	tokens := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	rewardsService := rewards.New(store, logger)
	messagingService := messaging.New(store, logger)

	return &App{
		Store:      store,
		Identity:   identity.New(store, tokens, cfg.AuthDelay, logger),
		Rewards:    rewardsService,
		Messaging:  messagingService,
		Moderation: moderation.New(store, rewardsService, messagingService, logger),
		logger:     logger,
		relay:      relay,
	}, nil
}

func newStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Backend {
	case "memory":
		return storage.NewMemoryStore(), nil
	case "file":
		return storage.NewFileStore(cfg.DataDir, logger)
	case "redis":
		return storage.NewRedisStore(ctx, cfg.RedisConnection, logger)
	case "postgres":
		return storage.NewPostgresStore(ctx, cfg.ConnectionString, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend: %q", cfg.Backend)
	}
}

// Run журналирует события изменения хранилища до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	events, cancel := a.Store.Subscribe()
	defer cancel()

	a.logger.Info("app started")
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("app stopping")
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			a.logger.Debug("collection changed", sl.Collection(ev.Collection))
		}
	}
}

// Close останавливает ретранслятор и закрывает хранилище.
func (a *App) Close() error {
	if a.relay != nil {
		if err := a.relay.Close(); err != nil {
			a.logger.Warn("failed to close relay", sl.Err(err))
		}
	}
	return a.Store.Close()
}
