// Package docstore implements the storage adapter on Redis. Each collection
// is a hash of JSON documents keyed by ID; collection schemas live in a
// metadata hash and IDs come from HINCRBY. Queries are evaluated client-side.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/conduit-lang/contenttype/internal/storage"
)

// maxTxRetries bounds optimistic transaction retries on concurrent writes
const maxTxRetries = 10

// Config holds Redis connection settings
type Config struct {
	// Addr is the Redis server address (host:port)
	Addr string
	// Password is the Redis password (optional)
	Password string
	// DB is the Redis database number
	DB int
	// Prefix is prepended to every key the store writes
	Prefix string
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		Addr:   "localhost:6379",
		Prefix: "contenttype:",
	}
}

// Store is the document storage adapter
type Store struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open connects to Redis and pings it
func Open(ctx context.Context, config Config, opts ...Option) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return New(client, config.Prefix, opts...), nil
}

// New creates a store with an existing client
func New(client *redis.Client, prefix string, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: prefix,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the backend name
func (s *Store) Name() string {
	return "redis"
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) docsKey(collection string) string {
	return s.prefix + "doc:" + collection
}

func (s *Store) metaKey() string {
	return s.prefix + "collections"
}

func (s *Store) idsKey() string {
	return s.prefix + "ids"
}

// schema loads the declared columns of a collection
func (s *Store) schema(ctx context.Context, c redis.Cmdable, name string) (storage.Collection, error) {
	data, err := c.HGet(ctx, s.metaKey(), name).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return storage.Collection{}, fmt.Errorf("%w: %s", storage.ErrNoCollection, name)
		}
		return storage.Collection{}, err
	}

	var coll storage.Collection
	if err := json.Unmarshal(data, &coll); err != nil {
		return storage.Collection{}, fmt.Errorf("corrupt schema for %s: %w", name, err)
	}
	return coll, nil
}

// document pairs a stored document with its hash field
type document struct {
	field  string
	record storage.Record
}

// load decodes every document of a collection
func (s *Store) load(ctx context.Context, c redis.Cmdable, coll storage.Collection) ([]document, error) {
	raw, err := c.HGetAll(ctx, s.docsKey(coll.Name)).Result()
	if err != nil {
		return nil, err
	}

	docs := make([]document, 0, len(raw))
	for field, data := range raw {
		rec, err := decode(coll, []byte(data))
		if err != nil {
			return nil, fmt.Errorf("corrupt document %s/%s: %w", coll.Name, field, err)
		}
		docs = append(docs, document{field: field, record: rec})
	}
	return docs, nil
}

// decode parses a JSON document and shapes it like a relational row: every
// declared column is present and typed by its column type.
func decode(coll storage.Collection, data []byte) (storage.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	rec := make(storage.Record, len(coll.Columns))
	for _, col := range coll.Columns {
		rec[col.Name] = storage.Coerce(col.Type, raw[col.Name])
	}
	return rec, nil
}

// encode coerces rec to the collection's column types and rejects unknown
// columns, matching what a relational table would accept
func encode(coll storage.Collection, rec storage.Record) (storage.Record, error) {
	out := make(storage.Record, len(rec))
	for name, value := range rec {
		col, ok := coll.Column(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown column %s in %s", storage.ErrInvalidQuery, name, coll.Name)
		}
		out[name] = storage.Coerce(col.Type, value)
	}
	return out, nil
}

// atomically runs fn under WATCH on the collection key and retries when a
// concurrent writer touched it
func (s *Store) atomically(ctx context.Context, collection string, fn func(tx *redis.Tx) error) error {
	key := s.docsKey(collection)
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.client.Watch(ctx, fn, key, s.metaKey())
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		s.logger.Debug("retrying document transaction",
			zap.String("collection", collection),
			zap.Int("attempt", attempt+1))
	}
	return fmt.Errorf("transaction on %s failed after %d retries", collection, maxTxRetries)
}

// IncrementID bumps and returns the counter of a collection
func (s *Store) IncrementID(ctx context.Context, collection string) (int64, error) {
	id, err := s.client.HIncrBy(ctx, s.idsKey(), collection, 1).Result()
	return id, wrap("increment", collection, err)
}

func idField(rec storage.Record) (string, error) {
	id, ok := storage.Int64(rec[storage.ColumnID])
	if !ok || id <= 0 {
		return "", fmt.Errorf("%w: document requires a positive %s", storage.ErrInvalidQuery, storage.ColumnID)
	}
	return strconv.FormatInt(id, 10), nil
}

// wrap converts client errors and wraps them as storage errors
func wrap(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.ErrClosed) {
		err = storage.ErrClosed
	}
	return storage.Wrap(op, collection, err)
}

var _ storage.Adapter = (*Store)(nil)
