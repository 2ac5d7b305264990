package sqlstore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/conduit-lang/contenttype/internal/storage"
)

// Dialect covers the SQL differences between the supported databases
type Dialect interface {
	// Name returns the dialect name
	Name() string
	// Placeholder returns the bind parameter for the n-th argument (1-based)
	Placeholder(n int) string
	// ColumnType returns the SQL type for a column
	ColumnType(col storage.Column) string
	// LimitOffset renders the paging clause, or "" when there is none
	LimitOffset(limit, offset int) string
}

// Postgres is the PostgreSQL dialect
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (Postgres) ColumnType(col storage.Column) string {
	if col.Type == storage.TypeInteger {
		return "BIGINT"
	}
	return "TEXT"
}

func (Postgres) LimitOffset(limit, offset int) string {
	var parts []string
	if limit > 0 {
		parts = append(parts, fmt.Sprintf("LIMIT %d", limit))
	}
	if offset > 0 {
		parts = append(parts, fmt.Sprintf("OFFSET %d", offset))
	}
	return strings.Join(parts, " ")
}

// SQLite is the SQLite dialect
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) Placeholder(int) string { return "?" }

func (SQLite) ColumnType(col storage.Column) string {
	if col.Type == storage.TypeInteger {
		return "INTEGER"
	}
	return "TEXT"
}

// LimitOffset renders LIMIT -1 when only an offset is given; SQLite has no
// bare OFFSET clause.
func (SQLite) LimitOffset(limit, offset int) string {
	switch {
	case limit > 0 && offset > 0:
		return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
	case limit > 0:
		return fmt.Sprintf("LIMIT %d", limit)
	case offset > 0:
		return fmt.Sprintf("LIMIT -1 OFFSET %d", offset)
	}
	return ""
}

// DialectFor returns the dialect for a driver name
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "postgres", "pgx", "pq":
		return Postgres{}, nil
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	}
	return nil, fmt.Errorf("unsupported SQL dialect: %s", driver)
}

// quote quotes an identifier after validating it
func quote(name string) (string, error) {
	if err := storage.ValidateIdentifier(name); err != nil {
		return "", err
	}
	return `"` + name + `"`, nil
}
