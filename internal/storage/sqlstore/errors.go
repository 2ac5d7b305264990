package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/conduit-lang/contenttype/internal/storage"
)

const (
	pgUniqueViolation = "23505"
	pgUndefinedTable  = "42P01"
)

// convertDBError converts driver-specific errors to storage errors
func convertDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}

	// PostgreSQL via pgx
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", storage.ErrDuplicate, pgErr.Detail)
		case pgUndefinedTable:
			return fmt.Errorf("%w: %s", storage.ErrNoCollection, pgErr.Message)
		}
		return err
	}

	// PostgreSQL via lib/pq
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", storage.ErrDuplicate, pqErr.Detail)
		case pgUndefinedTable:
			return fmt.Errorf("%w: %s", storage.ErrNoCollection, pqErr.Message)
		}
		return err
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch {
		case liteErr.ExtendedCode == sqlite3.ErrConstraintUnique,
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %s", storage.ErrDuplicate, liteErr.Error())
		case liteErr.Code == sqlite3.ErrError && strings.Contains(liteErr.Error(), "no such table"):
			return fmt.Errorf("%w: %s", storage.ErrNoCollection, liteErr.Error())
		}
	}

	return err
}
