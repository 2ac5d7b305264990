// Package storage defines the adapter contract the content engine talks to.
// Both the relational and the document backend accept and return the same
// shapes; query translation is each adapter's own business.
package storage

import (
	"context"
	"fmt"
	"regexp"
)

// Record is one stored row or document, keyed by column name
type Record map[string]any

// ColumnType is the storage type of a column
type ColumnType int

const (
	TypeText ColumnType = iota
	TypeInteger
)

// String returns the string representation of the column type
func (t ColumnType) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	default:
		return "text"
	}
}

// Column describes one column of a collection
type Column struct {
	Name       string
	Type       ColumnType
	PrimaryKey bool
	Unique     bool
	Index      bool
}

// Collection describes a table or document collection
type Collection struct {
	Name    string
	Columns []Column
}

// Column returns the named column, if declared
func (c Collection) Column(name string) (Column, bool) {
	for _, col := range c.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// Adapter is implemented once per backend
type Adapter interface {
	// Name identifies the backend in logs
	Name() string

	// CreateCollection provisions a collection; existing ones are left alone
	CreateCollection(ctx context.Context, coll Collection) error

	// AlterCollection adds and drops columns of an existing collection
	AlterCollection(ctx context.Context, name string, add []Column, drop []string) error

	// DropCollection removes a collection and all of its records
	DropCollection(ctx context.Context, name string) error

	// Get returns the records matching q
	Get(ctx context.Context, collection string, q Query) ([]Record, error)

	// Count returns the number of records matching q, ignoring paging
	Count(ctx context.Context, collection string, q Query) (int64, error)

	// Insert stores a new record. The record carries its own ID.
	Insert(ctx context.Context, collection string, rec Record) error

	// Update patches every record matching where and returns how many matched
	Update(ctx context.Context, collection string, where []Condition, patch Record) (int64, error)

	// Delete removes every record matching where and returns how many matched
	Delete(ctx context.Context, collection string, where []Condition) (int64, error)

	// IncrementID returns the next numeric ID for a collection
	IncrementID(ctx context.Context, collection string) (int64, error)

	// Close releases the backend once in-flight calls have finished
	Close() error
}

// Well-known column names shared by every collection the engine provisions
const (
	ColumnID    = "ID"
	ColumnOwner = "owner_id"
	ColumnName  = "name"
	ColumnValue = "value"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name is safe to use as a collection or
// column name on every backend
func ValidIdentifier(name string) bool {
	return len(name) <= 63 && identifierPattern.MatchString(name)
}

// ValidateIdentifier returns an error for names ValidIdentifier rejects
func ValidateIdentifier(name string) error {
	if !ValidIdentifier(name) {
		return fmt.Errorf("%w: invalid identifier %q", ErrInvalidQuery, name)
	}
	return nil
}
