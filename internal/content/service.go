// Package content is the runtime-defined content-type engine. Content types
// are declared at runtime; the engine provisions their storage through hook
// subscribers and performs validated CRUD over content, properties, terms
// and comments on any storage.Adapter.
package content

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/contenttype/internal/cache"
	"github.com/conduit-lang/contenttype/internal/hooks"
	"github.com/conduit-lang/contenttype/internal/storage"
)

// Service exposes every engine operation. It is safe for concurrent use.
type Service struct {
	store  storage.Adapter
	bus    *hooks.Bus
	cache  cache.Cache
	logger *zap.Logger
	prefix string
	async  bool
	now    func() time.Time

	locks *keyedMutex
	subs  []hookRef
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithBus sets the hook bus shared with other subscribers
func WithBus(bus *hooks.Bus) Option {
	return func(s *Service) {
		if bus != nil {
			s.bus = bus
		}
	}
}

// WithCache sets the read cache
func WithCache(c cache.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithPrefix sets the prefix of every collection the engine provisions
func WithPrefix(prefix string) Option {
	return func(s *Service) {
		s.prefix = prefix
	}
}

// WithAsyncSideEffects runs side-effect hooks on the bus worker queue
// instead of before the mutating call returns
func WithAsyncSideEffects(enabled bool) Option {
	return func(s *Service) {
		s.async = enabled
	}
}

// WithClock overrides the time source used for created/updated stamps
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Service, provisions the system collections and registers
// the engine's own hook subscribers
func New(ctx context.Context, store storage.Adapter, opts ...Option) (*Service, error) {
	s := &Service{
		store:  store,
		logger: zap.NewNop(),
		now:    time.Now,
		locks:  newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bus == nil {
		s.bus = hooks.NewBus(hooks.WithLogger(s.logger))
	}
	if s.cache == nil {
		s.cache = cache.NewMemoryCache()
	}
	if s.prefix != "" {
		if err := storage.ValidateIdentifier(s.prefix); err != nil {
			return nil, fmt.Errorf("invalid collection prefix: %w", err)
		}
	}

	for _, coll := range []storage.Collection{s.typesCollection(), propertyCollection(s.typePropsCollection())} {
		if err := store.CreateCollection(ctx, coll); err != nil {
			return nil, fmt.Errorf("failed to provision %s: %w", coll.Name, err)
		}
	}

	s.registerSubscribers()
	s.logger.Debug("content engine ready",
		zap.String("storage", store.Name()),
		zap.String("prefix", s.prefix),
		zap.Bool("async", s.async))
	return s, nil
}

// Bus returns the hook bus the engine publishes to
func (s *Service) Bus() *hooks.Bus {
	return s.bus
}

// Cache returns the read cache
func (s *Service) Cache() cache.Cache {
	return s.cache
}

// Storage returns the underlying adapter
func (s *Service) Storage() storage.Adapter {
	return s.store
}

// Close unregisters the engine's subscribers. The adapter and the bus are
// owned by the caller.
func (s *Service) Close() {
	for _, ref := range s.subs {
		s.bus.Off(ref.name, ref.id)
	}
	s.subs = nil
}

func (s *Service) typesCollection() storage.Collection {
	return storage.Collection{
		Name: s.prefix + "content_types",
		Columns: []storage.Column{
			{Name: storage.ColumnID, Type: storage.TypeInteger, PrimaryKey: true},
			{Name: "kind", Type: storage.TypeText},
			{Name: "name", Type: storage.TypeText},
			{Name: "slug", Type: storage.TypeText, Unique: true},
			{Name: "status", Type: storage.TypeText},
			{Name: "fields", Type: storage.TypeText},
			{Name: "hierarchical", Type: storage.TypeInteger},
			{Name: "has_archive", Type: storage.TypeInteger},
			{Name: "has_page", Type: storage.TypeInteger},
			{Name: "has_comments", Type: storage.TypeInteger},
			{Name: "has_categories", Type: storage.TypeInteger},
			{Name: "has_tags", Type: storage.TypeInteger},
			{Name: "settings", Type: storage.TypeText},
			{Name: "storage", Type: storage.TypeText, Unique: true},
			{Name: "created", Type: storage.TypeText},
			{Name: "updated", Type: storage.TypeText},
		},
	}
}

func (s *Service) typePropsCollection() string {
	return s.prefix + "content_type_properties"
}

func (s *Service) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// notifier publishes a side-effect hook
type notifier func(ctx context.Context, name string, args ...any)

// fire publishes a side-effect hook. Subscriber failures are logged and
// never reach the caller of the mutating operation.
func (s *Service) fire(ctx context.Context, name string, args ...any) {
	if s.async {
		s.bus.TriggerAsync(name, args...)
		return
	}
	s.fireSync(ctx, name, args...)
}

// fireSync is fire without the worker queue; cascades use it so nested
// cleanup completes before the storage it depends on is dropped
func (s *Service) fireSync(ctx context.Context, name string, args ...any) {
	if _, err := s.bus.Trigger(ctx, name, args...); err != nil {
		s.logger.Warn("side-effect hook failed",
			zap.String("hook", name),
			zap.Error(err))
	}
}

// clearGroups invalidates cache groups; failures are logged because the
// storage write they follow has already succeeded
func (s *Service) clearGroups(ctx context.Context, groups ...string) {
	for _, group := range groups {
		if err := s.cache.ClearGroup(ctx, group); err != nil {
			s.logger.Warn("cache invalidation failed",
				zap.String("group", group),
				zap.Error(err))
		}
	}
}
