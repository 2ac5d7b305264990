// Package app assembles the engine from configuration: storage adapter,
// read cache, hook bus, content service and endpoint resolver.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/contenttype/internal/cache"
	"github.com/conduit-lang/contenttype/internal/config"
	"github.com/conduit-lang/contenttype/internal/content"
	"github.com/conduit-lang/contenttype/internal/endpoint"
	"github.com/conduit-lang/contenttype/internal/hooks"
	"github.com/conduit-lang/contenttype/internal/storage"
	"github.com/conduit-lang/contenttype/internal/storage/backend"
)

// App owns every long-lived component of a running engine
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Store     storage.Adapter
	Cache     cache.Cache
	Bus       *hooks.Bus
	Engine    *content.Service
	Endpoints *endpoint.Resolver

	queue *hooks.AsyncQueue
}

// New opens storage and builds the engine. The endpoint table is rebuilt
// from the stored state before New returns.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return Assemble(ctx, cfg, store, logger)
}

// Assemble builds the engine over an already open adapter, which the App
// then owns
func Assemble(ctx context.Context, cfg *config.Config, store storage.Adapter, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger, Store: store}

	c, err := backend.OpenCache(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}
	a.Cache = c

	busOpts := []hooks.Option{hooks.WithLogger(logger)}
	if cfg.Hooks.Async {
		a.queue = hooks.NewAsyncQueue(cfg.Hooks.Workers, logger)
		a.queue.Start()
		busOpts = append(busOpts, hooks.WithAsyncQueue(a.queue))
	}
	a.Bus = hooks.NewBus(busOpts...)

	a.Engine, err = content.New(ctx, store,
		content.WithLogger(logger),
		content.WithBus(a.Bus),
		content.WithCache(a.Cache),
		content.WithPrefix(cfg.Prefix),
		content.WithAsyncSideEffects(cfg.Hooks.Async))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to start content engine: %w", err)
	}

	a.Endpoints = endpoint.New(a.Engine, endpoint.WithLogger(logger))
	if err := a.Endpoints.Rebuild(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to build endpoint table: %w", err)
	}
	return a, nil
}

// Close drains queued side effects, unsubscribes and closes storage
func (a *App) Close() error {
	if a.queue != nil {
		a.queue.Shutdown()
	}
	if a.Endpoints != nil {
		a.Endpoints.Close()
	}
	if a.Engine != nil {
		a.Engine.Close()
	}

	var errs []error
	if rc, ok := a.Cache.(*cache.RedisCache); ok {
		errs = append(errs, rc.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
