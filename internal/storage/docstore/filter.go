package docstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/conduit-lang/contenttype/internal/storage"
)

// matches evaluates ANDed conditions against a record. NULL never matches a
// comparison, the same as in SQL.
func matches(rec storage.Record, conds []storage.Condition) (bool, error) {
	for _, cond := range conds {
		ok, err := match(rec, cond)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func match(rec storage.Record, cond storage.Condition) (bool, error) {
	if err := storage.ValidateIdentifier(cond.Field); err != nil {
		return false, err
	}
	value := rec[cond.Field]

	switch cond.Operator {
	case storage.OpEqual:
		if cond.Value == nil {
			return value == nil, nil
		}
		return value != nil && storage.Equal(value, cond.Value), nil

	case storage.OpNotEqual:
		if cond.Value == nil {
			return value != nil, nil
		}
		return value != nil && !storage.Equal(value, cond.Value), nil

	case storage.OpIn:
		values, err := storage.Values(cond.Value)
		if err != nil {
			return false, err
		}
		if value == nil {
			return false, nil
		}
		for _, v := range values {
			if storage.Equal(value, v) {
				return true, nil
			}
		}
		return false, nil

	case storage.OpPrefix:
		if value == nil {
			return false, nil
		}
		prefix := strings.ToLower(storage.String(cond.Value))
		return strings.HasPrefix(strings.ToLower(storage.String(value)), prefix), nil
	}

	return false, fmt.Errorf("%w: unsupported operator %s", storage.ErrInvalidQuery, cond.Operator)
}

// propertyIndex answers "does owner have a property (name, value)"
type propertyIndex map[int64]map[string]map[string]bool

func (idx propertyIndex) has(owner int64, m storage.PropertyMatch) bool {
	return idx[owner][m.Name][m.Value]
}

// loadProperties indexes the property collection named by the filter
func (s *Store) loadProperties(ctx context.Context, c redis.Cmdable, filter *storage.PropertyFilter) (propertyIndex, error) {
	coll, err := s.schema(ctx, c, filter.Collection)
	if err != nil {
		return nil, err
	}
	docs, err := s.load(ctx, c, coll)
	if err != nil {
		return nil, err
	}

	idx := make(propertyIndex)
	for _, doc := range docs {
		owner, ok := storage.Int64(doc.record[storage.ColumnOwner])
		if !ok {
			continue
		}
		name := storage.String(doc.record[storage.ColumnName])
		value := storage.String(doc.record[storage.ColumnValue])

		if idx[owner] == nil {
			idx[owner] = make(map[string]map[string]bool)
		}
		if idx[owner][name] == nil {
			idx[owner][name] = make(map[string]bool)
		}
		idx[owner][name][value] = true
	}
	return idx, nil
}

// matchesProperties applies the property groups: groups are ANDed, the
// matches of a group are combined by its relation
func matchesProperties(rec storage.Record, filter *storage.PropertyFilter, idx propertyIndex) bool {
	owner, ok := storage.Int64(rec[storage.ColumnID])
	if !ok {
		return false
	}

	for _, group := range filter.Groups {
		if len(group.Property) == 0 {
			continue
		}

		anyMatch, allMatch := false, true
		for _, m := range group.Property {
			if idx.has(owner, m) {
				anyMatch = true
			} else {
				allMatch = false
			}
		}

		if group.Relation == storage.RelationOr {
			if !anyMatch {
				return false
			}
		} else if !allMatch {
			return false
		}
	}
	return true
}

// selectDocs filters documents by a query and sorts them. Paging is left to
// the caller.
func (s *Store) selectDocs(ctx context.Context, c redis.Cmdable, collection string, q storage.Query) ([]document, error) {
	coll, err := s.schema(ctx, c, collection)
	if err != nil {
		return nil, err
	}
	docs, err := s.load(ctx, c, coll)
	if err != nil {
		return nil, err
	}

	var idx propertyIndex
	if !q.Properties.Empty() {
		idx, err = s.loadProperties(ctx, c, q.Properties)
		if err != nil {
			return nil, err
		}
	}

	selected := docs[:0]
	for _, doc := range docs {
		ok, err := matches(doc.record, q.Where)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if idx != nil && !matchesProperties(doc.record, q.Properties, idx) {
			continue
		}
		selected = append(selected, doc)
	}

	orderBy := q.OrderBy
	if orderBy == "" {
		orderBy = storage.ColumnID
	}
	if err := storage.ValidateIdentifier(orderBy); err != nil {
		return nil, err
	}

	sort.SliceStable(selected, func(i, j int) bool {
		cmp := storage.Compare(selected[i].record[orderBy], selected[j].record[orderBy])
		if cmp == 0 {
			return fieldID(selected[i]) < fieldID(selected[j])
		}
		if q.Desc {
			return cmp > 0
		}
		return cmp < 0
	})

	return selected, nil
}

func fieldID(doc document) int64 {
	id, _ := strconv.ParseInt(doc.field, 10, 64)
	return id
}

// page applies offset and limit
func page(docs []document, limit, offset int) []document {
	if offset > 0 {
		if offset >= len(docs) {
			return nil
		}
		docs = docs[offset:]
	}
	if limit > 0 && limit < len(docs) {
		docs = docs[:limit]
	}
	return docs
}
