package endpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/conduit-lang/contenttype/internal/cache"
	"github.com/conduit-lang/contenttype/internal/content"
	"github.com/conduit-lang/contenttype/internal/hooks"
)

// cacheGroup mirrors the table for processes sharing the cache backend
const cacheGroup = "endpoints"

// priority runs the resolver after the engine's own cascades
const priority = 10

// Resolver keeps the routing table in step with the content engine
type Resolver struct {
	engine *content.Service
	cache  cache.Cache
	logger *zap.Logger

	mu     sync.RWMutex
	paths  map[string]Value
	owners map[string]string

	subs []subscription
}

type subscription struct {
	name   string
	id     string
	filter bool
}

// Option configures a Resolver
type Option func(*Resolver)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithCache sets the cache the table is mirrored to; the engine's cache
// is used by default
func WithCache(c cache.Cache) Option {
	return func(r *Resolver) {
		if c != nil {
			r.cache = c
		}
	}
}

// New creates a Resolver subscribed to the engine's hook bus. Call Rebuild
// to load endpoints for state that predates it.
func New(engine *content.Service, opts ...Option) *Resolver {
	r := &Resolver{
		engine: engine,
		cache:  engine.Cache(),
		logger: zap.NewNop(),
		paths:  make(map[string]Value),
		owners: make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.subscribe(engine.Bus())
	return r
}

func (r *Resolver) subscribe(bus *hooks.Bus) {
	on := func(name string, fn hooks.ActionFunc) {
		id := "endpoint." + name
		bus.On(name, fn, hooks.Options{ID: id, Priority: priority})
		r.subs = append(r.subs, subscription{name: name, id: id})
	}
	filter := func(name string, fn hooks.FilterFunc) {
		id := "endpoint." + name
		bus.AddFilter(name, fn, hooks.Options{ID: id, Priority: priority})
		r.subs = append(r.subs, subscription{name: name, id: id, filter: true})
	}

	on(content.HookInsertedContentType, r.onContentTypeChanged)
	on(content.HookUpdatedContentType, r.onContentTypeChanged)
	on(content.HookDeletedContentType, r.onDeletedContentType)
	on(content.HookInsertedContent, r.onContentChanged)
	on(content.HookUpdatedContent, r.onContentChanged)
	on(content.HookDeletedContent, r.onDeletedContent)
	on(content.HookInsertedTerm, r.onTermChanged)
	on(content.HookUpdatedTerm, r.onTermChanged)
	on(content.HookDeletedTerm, r.onDeletedTerm)

	filter(content.FilterGetContent, r.contentPermalink)
	filter(content.FilterGetTerm, r.termPermalink)
}

// Close unsubscribes the resolver from the bus
func (r *Resolver) Close() {
	bus := r.engine.Bus()
	for _, s := range r.subs {
		if s.filter {
			bus.RemoveFilter(s.name, s.id)
		} else {
			bus.Off(s.name, s.id)
		}
	}
	r.subs = nil
}

// SetEndpoint maps path to v. An entity owns at most one path, so a
// previous path of the same entity is removed.
func (r *Resolver) SetEndpoint(ctx context.Context, path string, v Value) error {
	path = Clean(path)
	owner := v.owner()

	r.mu.Lock()
	var stale []string
	if prev, ok := r.owners[owner]; ok && prev != path {
		delete(r.paths, prev)
		stale = append(stale, prev)
	}
	if existing, ok := r.paths[path]; ok && existing.owner() != owner {
		r.logger.Warn("endpoint path reassigned",
			zap.String("path", path),
			zap.String("from", existing.owner()),
			zap.String("to", owner))
		delete(r.owners, existing.owner())
	}
	r.paths[path] = v
	r.owners[owner] = path
	r.mu.Unlock()

	for _, p := range stale {
		if err := r.cache.Delete(ctx, cacheGroup, p); err != nil {
			return fmt.Errorf("failed to evict endpoint %s: %w", p, err)
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := r.cache.Set(ctx, cacheGroup, path, data); err != nil {
		return fmt.Errorf("failed to store endpoint %s: %w", path, err)
	}
	r.logger.Debug("endpoint set", zap.String("path", path), zap.String("type", string(v.Type)))
	return nil
}

// DeleteEndpoint removes path from the table
func (r *Resolver) DeleteEndpoint(ctx context.Context, path string) error {
	path = Clean(path)

	r.mu.Lock()
	if v, ok := r.paths[path]; ok {
		delete(r.paths, path)
		if r.owners[v.owner()] == path {
			delete(r.owners, v.owner())
		}
	}
	r.mu.Unlock()

	if err := r.cache.Delete(ctx, cacheGroup, path); err != nil {
		return fmt.Errorf("failed to evict endpoint %s: %w", path, err)
	}
	return nil
}

// Lookup resolves a request path. Paths missing from the local table are
// looked up in the shared cache.
func (r *Resolver) Lookup(ctx context.Context, path string) (Value, bool) {
	path = Clean(path)

	r.mu.RLock()
	v, ok := r.paths[path]
	r.mu.RUnlock()
	if ok {
		return v, true
	}

	data, err := r.cache.Get(ctx, cacheGroup, path)
	if err != nil {
		if !cache.IsCacheMiss(err) {
			r.logger.Warn("endpoint cache read failed", zap.String("path", path), zap.Error(err))
		}
		return Value{}, false
	}
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&v); err != nil {
		return Value{}, false
	}
	return v, true
}

// All returns every endpoint ordered by path
func (r *Resolver) All() []Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Endpoint, 0, len(r.paths))
	for path, v := range r.paths {
		out = append(out, Endpoint{Path: path, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// pathOf returns the path an entity currently owns
func (r *Resolver) pathOf(v Value) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	path, ok := r.owners[v.owner()]
	return path, ok
}

// deleteOwner removes the endpoint of an entity, if it has one
func (r *Resolver) deleteOwner(ctx context.Context, v Value) (string, error) {
	path, ok := r.pathOf(v)
	if !ok {
		return "", nil
	}
	return path, r.DeleteEndpoint(ctx, path)
}

// under returns the endpoints of typ and typeID below path
func (r *Resolver) under(path string, typ Type, typeID int64) []Value {
	r.mu.RLock()
	defer r.mu.RUnlock()

	prefix := strings.TrimSuffix(path, "/") + "/"
	var out []Value
	for p, v := range r.paths {
		if v.Type == typ && v.TypeID == typeID && strings.HasPrefix(p, prefix) {
			out = append(out, v)
		}
	}
	return out
}

// removeType removes every endpoint belonging to a content type
func (r *Resolver) removeType(ctx context.Context, typeID int64) error {
	r.mu.RLock()
	var paths []string
	for p, v := range r.paths {
		if v.TypeID == typeID {
			paths = append(paths, p)
		}
	}
	r.mu.RUnlock()

	for _, p := range paths {
		if err := r.DeleteEndpoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Rebuild discards the table and derives it again from engine state
func (r *Resolver) Rebuild(ctx context.Context) error {
	r.mu.Lock()
	r.paths = make(map[string]Value)
	r.owners = make(map[string]string)
	r.mu.Unlock()
	if err := r.cache.ClearGroup(ctx, cacheGroup); err != nil {
		return fmt.Errorf("failed to clear endpoint cache: %w", err)
	}

	types, err := r.engine.GetContentTypes(ctx, content.ContentTypeQuery{})
	if err != nil {
		return err
	}
	for _, ct := range types {
		if err := r.registerType(ctx, ct); err != nil {
			return err
		}
	}
	r.logger.Info("endpoint table rebuilt", zap.Int("endpoints", len(r.All())))
	return nil
}
