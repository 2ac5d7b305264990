package sqlstore

import (
	"context"
	"fmt"

	"github.com/conduit-lang/contenttype/internal/storage"
)

// Get returns the rows of table matching q
func (s *Store) Get(ctx context.Context, table string, q storage.Query) ([]storage.Record, error) {
	b := newBuilder(s.dialect)
	query, err := b.selectSQL(table, q)
	if err != nil {
		return nil, storage.Wrap("get", table, err)
	}

	var records []storage.Record
	err = s.run("get", table, func() error {
		rows, err := s.db.QueryContext(ctx, query, b.args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		records, err = scanRows(rows)
		return err
	})
	return records, err
}

// Count returns the number of rows of table matching q
func (s *Store) Count(ctx context.Context, table string, q storage.Query) (int64, error) {
	b := newBuilder(s.dialect)
	query, err := b.countSQL(table, q)
	if err != nil {
		return 0, storage.Wrap("count", table, err)
	}

	var n int64
	err = s.run("count", table, func() error {
		return s.db.QueryRowContext(ctx, query, b.args...).Scan(&n)
	})
	return n, err
}

// Insert stores one row
func (s *Store) Insert(ctx context.Context, table string, rec storage.Record) error {
	b := newBuilder(s.dialect)
	query, err := b.insertSQL(table, rec)
	if err != nil {
		return storage.Wrap("insert", table, err)
	}

	return s.run("insert", table, func() error {
		_, err := s.db.ExecContext(ctx, query, b.args...)
		return err
	})
}

// Update patches rows matching where
func (s *Store) Update(ctx context.Context, table string, where []storage.Condition, patch storage.Record) (int64, error) {
	if len(patch) == 0 {
		return s.Count(ctx, table, storage.Query{Where: where})
	}

	b := newBuilder(s.dialect)
	query, err := b.updateSQL(table, where, patch)
	if err != nil {
		return 0, storage.Wrap("update", table, err)
	}

	var affected int64
	err = s.run("update", table, func() error {
		result, err := s.db.ExecContext(ctx, query, b.args...)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	return affected, err
}

// Delete removes rows matching where
func (s *Store) Delete(ctx context.Context, table string, where []storage.Condition) (int64, error) {
	b := newBuilder(s.dialect)
	query, err := b.deleteSQL(table, where)
	if err != nil {
		return 0, storage.Wrap("delete", table, err)
	}

	var affected int64
	err = s.run("delete", table, func() error {
		result, err := s.db.ExecContext(ctx, query, b.args...)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	return affected, err
}

// IncrementID bumps and returns the counter of a collection. Counters live
// in their own table and are never reset, so IDs are not reused.
func (s *Store) IncrementID(ctx context.Context, collection string) (int64, error) {
	counters := s.prefix + "counters"
	table, err := quote(counters)
	if err != nil {
		return 0, storage.Wrap("increment", collection, err)
	}

	var id int64
	err = s.run("increment", collection, func() error {
		if err := s.ensureCounters(ctx, table); err != nil {
			return err
		}

		b := newBuilder(s.dialect)
		query := fmt.Sprintf(
			`INSERT INTO %s ("name", "value") VALUES (%s, 1) ON CONFLICT ("name") DO UPDATE SET "value" = %s."value" + 1 RETURNING "value"`,
			table, b.bind(collection), table)
		return s.db.QueryRowContext(ctx, query, b.args...).Scan(&id)
	})
	return id, err
}

func (s *Store) ensureCounters(ctx context.Context, table string) error {
	s.mu.Lock()
	ready := s.countersReady
	s.mu.Unlock()
	if ready {
		return nil
	}

	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s ("name" TEXT PRIMARY KEY, "value" %s NOT NULL)`,
		table, s.dialect.ColumnType(storage.Column{Type: storage.TypeInteger}))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return err
	}

	s.mu.Lock()
	s.countersReady = true
	s.mu.Unlock()
	return nil
}
