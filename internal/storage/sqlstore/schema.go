package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/contenttype/internal/storage"
)

// CreateCollection creates a table with its indexes in one transaction
func (s *Store) CreateCollection(ctx context.Context, coll storage.Collection) error {
	stmts, err := s.createStatements(coll)
	if err != nil {
		return storage.Wrap("create", coll.Name, err)
	}

	return s.run("create", coll.Name, func() error {
		if err := s.execTx(ctx, stmts); err != nil {
			return err
		}
		s.logger.Info("created collection",
			zap.String("collection", coll.Name),
			zap.Int("columns", len(coll.Columns)))
		return nil
	})
}

func (s *Store) createStatements(coll storage.Collection) ([]string, error) {
	table, err := quote(coll.Name)
	if err != nil {
		return nil, err
	}
	if len(coll.Columns) == 0 {
		return nil, fmt.Errorf("%w: collection %s has no columns", storage.ErrInvalidQuery, coll.Name)
	}

	defs := make([]string, 0, len(coll.Columns))
	var indexes []string
	for _, col := range coll.Columns {
		def, err := s.columnDefinition(col)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)

		if stmt := indexStatement(coll.Name, col); stmt != "" {
			indexes = append(indexes, stmt)
		}
	}

	stmts := []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(defs, ", "))}
	return append(stmts, indexes...), nil
}

func (s *Store) columnDefinition(col storage.Column) (string, error) {
	name, err := quote(col.Name)
	if err != nil {
		return "", err
	}
	def := name + " " + s.dialect.ColumnType(col)
	if col.PrimaryKey {
		def += " PRIMARY KEY"
	}
	return def, nil
}

// indexStatement renders the index a column asks for, if any. Uniqueness is
// an index rather than a column constraint so the column stays droppable.
func indexStatement(table string, col storage.Column) string {
	switch {
	case col.PrimaryKey:
		return ""
	case col.Unique:
		return fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS "%s" ON "%s" ("%s")`,
			indexName(table, col.Name, "key"), table, col.Name)
	case col.Index:
		return fmt.Sprintf(`CREATE INDEX IF NOT EXISTS "%s" ON "%s" ("%s")`,
			indexName(table, col.Name, "idx"), table, col.Name)
	}
	return ""
}

func indexName(table, column, suffix string) string {
	return table + "_" + column + "_" + suffix
}

// AlterCollection adds and drops columns
func (s *Store) AlterCollection(ctx context.Context, name string, add []storage.Column, drop []string) error {
	table, err := quote(name)
	if err != nil {
		return storage.Wrap("alter", name, err)
	}

	var stmts []string
	for _, col := range add {
		def, err := s.columnDefinition(col)
		if err != nil {
			return storage.Wrap("alter", name, err)
		}
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, def))
		if stmt := indexStatement(name, col); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	for _, colName := range drop {
		col, err := quote(colName)
		if err != nil {
			return storage.Wrap("alter", name, err)
		}
		// SQLite refuses to drop an indexed column
		stmts = append(stmts,
			fmt.Sprintf(`DROP INDEX IF EXISTS "%s"`, indexName(name, colName, "key")),
			fmt.Sprintf(`DROP INDEX IF EXISTS "%s"`, indexName(name, colName, "idx")),
			fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", table, col),
		)
	}

	if len(stmts) == 0 {
		return nil
	}

	return s.run("alter", name, func() error {
		if err := s.execTx(ctx, stmts); err != nil {
			return err
		}
		s.logger.Info("altered collection",
			zap.String("collection", name),
			zap.Int("added", len(add)),
			zap.Strings("dropped", drop))
		return nil
	})
}

// DropCollection drops a table if it exists
func (s *Store) DropCollection(ctx context.Context, name string) error {
	table, err := quote(name)
	if err != nil {
		return storage.Wrap("drop", name, err)
	}

	return s.run("drop", name, func() error {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return err
		}
		s.logger.Info("dropped collection", zap.String("collection", name))
		return nil
	})
}

// execTx runs statements in one transaction
func (s *Store) execTx(ctx context.Context, stmts []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				s.logger.Warn("rollback failed", zap.Error(rbErr))
			}
			return err
		}
	}

	return tx.Commit()
}
