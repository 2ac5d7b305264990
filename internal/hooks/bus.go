// Package hooks provides the action and filter pipelines that the content
// engine uses to publish state changes to independent subscribers.
package hooks

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Bus is a priority-ordered pub/sub registry holding two pipelines:
// actions (Trigger) and filters (Apply). A Bus is an ordinary value; each
// engine and each test constructs its own.
type Bus struct {
	mu      sync.Mutex
	actions *registry
	filters *registry
	seq     atomic.Uint64

	queue  *AsyncQueue
	logger *zap.Logger
}

// Option configures a Bus
type Option func(*Bus)

// WithLogger sets the logger used for asynchronous failures
func WithLogger(logger *zap.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithAsyncQueue attaches a started worker queue used by TriggerAsync
func WithAsyncQueue(queue *AsyncQueue) Option {
	return func(b *Bus) {
		b.queue = queue
	}
}

// NewBus creates an empty bus
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		actions: newRegistry(),
		filters: newRegistry(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus) newSubscription(opts Options) *subscription {
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	return &subscription{
		id:       id,
		priority: opts.Priority,
		seq:      b.seq.Add(1),
		once:     opts.Once,
	}
}

// On registers an action subscriber and returns its ID
func (b *Bus) On(name string, fn ActionFunc, opts Options) string {
	s := b.newSubscription(opts)
	s.action = fn

	b.mu.Lock()
	b.actions.add(name, s)
	b.mu.Unlock()

	return s.id
}

// Off removes an action subscriber. Unknown names or IDs are ignored.
func (b *Bus) Off(name, id string) {
	b.mu.Lock()
	b.actions.remove(name, id)
	b.mu.Unlock()
}

// AddFilter registers a filter subscriber and returns its ID
func (b *Bus) AddFilter(name string, fn FilterFunc, opts Options) string {
	s := b.newSubscription(opts)
	s.filter = fn

	b.mu.Lock()
	b.filters.add(name, s)
	b.mu.Unlock()

	return s.id
}

// RemoveFilter removes a filter subscriber. Unknown names or IDs are ignored.
func (b *Bus) RemoveFilter(name, id string) {
	b.mu.Lock()
	b.filters.remove(name, id)
	b.mu.Unlock()
}

// HasAction returns true if there are any action subscribers for name
func (b *Bus) HasAction(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.actions.has(name)
}

// HasFilter returns true if there are any filter subscribers for name
func (b *Bus) HasFilter(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.filters.has(name)
}

// Count returns the number of action subscribers for name
func (b *Bus) Count(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.actions.count(name)
}

// Trigger runs every action subscriber of name in ascending priority order,
// one after the other. It returns false when nobody is subscribed. The first
// subscriber error stops the chain and is returned.
func (b *Bus) Trigger(ctx context.Context, name string, args ...any) (bool, error) {
	b.mu.Lock()
	subs := b.actions.snapshot(name)
	b.mu.Unlock()

	if len(subs) == 0 {
		return false, nil
	}

	for _, s := range subs {
		if err := ctx.Err(); err != nil {
			return true, err
		}
		if !b.claim(b.actions, name, s) {
			continue
		}
		if err := s.action(ctx, args...); err != nil {
			return true, fmt.Errorf("hook %s (%s) failed: %w", name, s.id, err)
		}
	}

	return true, nil
}

// Apply threads value through every filter subscriber of name in ascending
// priority order. With no subscribers value is returned unchanged.
func (b *Bus) Apply(ctx context.Context, name string, value any, args ...any) (any, error) {
	b.mu.Lock()
	subs := b.filters.snapshot(name)
	b.mu.Unlock()

	for _, s := range subs {
		if err := ctx.Err(); err != nil {
			return value, err
		}
		if !b.claim(b.filters, name, s) {
			continue
		}
		next, err := s.filter(ctx, value, args...)
		if err != nil {
			return value, fmt.Errorf("filter %s (%s) failed: %w", name, s.id, err)
		}
		value = next
	}

	return value, nil
}

// claim reports whether s may run now. A once subscription is claimed by
// exactly one caller, which removes it from reg before invoking it.
func (b *Bus) claim(reg *registry, name string, s *subscription) bool {
	if !s.once {
		return true
	}
	if !s.fired.CompareAndSwap(false, true) {
		return false
	}
	b.mu.Lock()
	reg.drop(name, s)
	b.mu.Unlock()
	return true
}

// TriggerAsync queues the action chain of name on the bus worker queue.
// Failures are logged, never returned. Without a queue the chain runs inline
// and its error is logged the same way.
func (b *Bus) TriggerAsync(name string, args ...any) {
	run := func(ctx context.Context) error {
		_, err := b.Trigger(ctx, name, args...)
		return err
	}

	if b.queue == nil {
		if err := run(context.Background()); err != nil {
			b.logger.Warn("hook chain failed", zap.String("hook", name), zap.Error(err))
		}
		return
	}

	task := AsyncTask{Name: name, Fn: run}
	if err := b.queue.Enqueue(task); err != nil {
		b.logger.Warn("failed to enqueue hook chain", zap.String("hook", name), zap.Error(err))
	}
}

// Close drains the worker queue, if any
func (b *Bus) Close() {
	if b.queue != nil {
		b.queue.Shutdown()
	}
}
