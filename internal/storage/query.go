package storage

import (
	"fmt"
	"reflect"
)

// Operator represents a comparison operator
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpIn
	// OpPrefix matches text starting with the value, case-insensitively
	OpPrefix
)

// String returns the string representation of the operator
func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "!="
	case OpIn:
		return "IN"
	case OpPrefix:
		return "PREFIX"
	default:
		return "UNKNOWN"
	}
}

// Condition represents a WHERE condition. Conditions of a query are ANDed.
type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// Eq builds an equality condition
func Eq(field string, value any) Condition {
	return Condition{Field: field, Operator: OpEqual, Value: value}
}

// In builds a membership condition; values must be a slice
func In(field string, values any) Condition {
	return Condition{Field: field, Operator: OpIn, Value: values}
}

// Prefix builds a case-insensitive prefix condition
func Prefix(field, prefix string) Condition {
	return Condition{Field: field, Operator: OpPrefix, Value: prefix}
}

// Relation combines the properties of a group
type Relation string

const (
	RelationAnd Relation = "AND"
	RelationOr  Relation = "OR"
)

// PropertyMatch matches a property row by name and value
type PropertyMatch struct {
	Name  string
	Value string
}

// PropertyGroup holds property matches combined by Relation.
// An empty relation means AND.
type PropertyGroup struct {
	Relation Relation
	Property []PropertyMatch
}

// PropertyFilter restricts records to those owning matching rows in a
// property collection. Groups are ANDed together; a record matches a
// property when a row (owner_id = record ID, name, value) exists.
type PropertyFilter struct {
	Collection string
	Groups     []PropertyGroup
}

// Empty reports whether the filter restricts nothing
func (f *PropertyFilter) Empty() bool {
	if f == nil {
		return true
	}
	for _, g := range f.Groups {
		if len(g.Property) > 0 {
			return false
		}
	}
	return true
}

// Query selects records of one collection
type Query struct {
	Where      []Condition
	Properties *PropertyFilter
	OrderBy    string
	Desc       bool
	Limit      int
	Offset     int
}

// Values flattens the slice value of an IN condition
func Values(v any) ([]any, error) {
	if values, ok := v.([]any); ok {
		return values, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("%w: IN operator requires a slice value, got %T", ErrInvalidQuery, v)
	}

	values := make([]any, rv.Len())
	for i := range values {
		values[i] = rv.Index(i).Interface()
	}
	return values, nil
}
