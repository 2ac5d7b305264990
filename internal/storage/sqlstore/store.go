// Package sqlstore implements the storage adapter on database/sql for
// PostgreSQL (pgx or lib/pq) and SQLite (mattn/go-sqlite3).
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/conduit-lang/contenttype/internal/storage"
)

// Store is the relational storage adapter. It shares one connection pool
// and counts in-flight calls so Close waits until they drain.
type Store struct {
	db      *sql.DB
	dialect Dialect
	prefix  string
	logger  *zap.Logger

	mu       sync.Mutex
	idle     *sync.Cond
	inflight int
	closed   bool

	countersReady bool
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

// WithPrefix sets the table prefix used for the store's own bookkeeping tables
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New wraps an open database handle
func New(db *sql.DB, dialect Dialect, opts ...Option) *Store {
	s := &Store{
		db:      db,
		dialect: dialect,
		logger:  zap.NewNop(),
	}
	s.idle = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open opens a database with a registered driver and verifies the connection
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dialect.Name() == "sqlite" {
		// a single connection keeps in-memory databases shared and avoids
		// SQLITE_BUSY between pooled writers
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return New(db, dialect, opts...), nil
}

// Name returns the backend name
func (s *Store) Name() string {
	return s.dialect.Name()
}

// DB returns the underlying handle
func (s *Store) DB() *sql.DB {
	return s.db
}

// acquire registers an in-flight call
func (s *Store) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}
	s.inflight++
	return nil
}

// release ends an in-flight call
func (s *Store) release() {
	s.mu.Lock()
	s.inflight--
	if s.inflight == 0 {
		s.idle.Broadcast()
	}
	s.mu.Unlock()
}

// InFlight returns the number of calls currently running
func (s *Store) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight
}

// Close stops accepting calls, waits for in-flight ones and closes the pool
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for s.inflight > 0 {
		s.idle.Wait()
	}
	s.mu.Unlock()

	s.logger.Debug("closing database", zap.String("dialect", s.dialect.Name()))
	return s.db.Close()
}

// run executes fn as one tracked call and converts its error
func (s *Store) run(op, collection string, fn func() error) error {
	if err := s.acquire(); err != nil {
		return storage.Wrap(op, collection, err)
	}
	defer s.release()

	if err := fn(); err != nil {
		return storage.Wrap(op, collection, convertDBError(err))
	}
	return nil
}

// scanRows scans multiple rows into records
func scanRows(rows *sql.Rows) ([]storage.Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []storage.Record
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		record := make(storage.Record, len(columns))
		for i, col := range columns {
			record[col] = storage.Normalize(values[i])
		}
		results = append(results, record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func sortedKeys(rec storage.Record) []string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ storage.Adapter = (*Store)(nil)
