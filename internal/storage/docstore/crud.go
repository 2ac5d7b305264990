package docstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/conduit-lang/contenttype/internal/storage"
)

// Get returns the documents matching q
func (s *Store) Get(ctx context.Context, collection string, q storage.Query) ([]storage.Record, error) {
	docs, err := s.selectDocs(ctx, s.client, collection, q)
	if err != nil {
		return nil, wrap("get", collection, err)
	}

	docs = page(docs, q.Limit, q.Offset)
	records := make([]storage.Record, len(docs))
	for i, doc := range docs {
		records[i] = doc.record
	}
	return records, nil
}

// Count returns the number of documents matching q, ignoring paging
func (s *Store) Count(ctx context.Context, collection string, q storage.Query) (int64, error) {
	docs, err := s.selectDocs(ctx, s.client, collection, storage.Query{
		Where:      q.Where,
		Properties: q.Properties,
	})
	if err != nil {
		return 0, wrap("count", collection, err)
	}
	return int64(len(docs)), nil
}

// Insert stores a new document. The ID and unique columns are checked
// against existing documents inside the same transaction.
func (s *Store) Insert(ctx context.Context, collection string, rec storage.Record) error {
	field, err := idField(rec)
	if err != nil {
		return wrap("insert", collection, err)
	}

	err = s.atomically(ctx, collection, func(tx *redis.Tx) error {
		coll, err := s.schema(ctx, tx, collection)
		if err != nil {
			return err
		}
		doc, err := encode(coll, rec)
		if err != nil {
			return err
		}

		existing, err := s.load(ctx, tx, coll)
		if err != nil {
			return err
		}
		if err := checkUnique(coll, existing, field, doc, true); err != nil {
			return err
		}

		data, err := json.Marshal(compact(doc))
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, s.docsKey(collection), field, data)
			return nil
		})
		return err
	})
	return wrap("insert", collection, err)
}

// Update patches every document matching where
func (s *Store) Update(ctx context.Context, collection string, where []storage.Condition, patch storage.Record) (int64, error) {
	var affected int64

	err := s.atomically(ctx, collection, func(tx *redis.Tx) error {
		affected = 0

		coll, err := s.schema(ctx, tx, collection)
		if err != nil {
			return err
		}
		changes, err := encode(coll, patch)
		if err != nil {
			return err
		}
		if _, ok := changes[storage.ColumnID]; ok {
			return fmt.Errorf("%w: %s cannot be updated", storage.ErrInvalidQuery, storage.ColumnID)
		}

		docs, err := s.load(ctx, tx, coll)
		if err != nil {
			return err
		}

		var updated []document
		for _, doc := range docs {
			ok, err := matches(doc.record, where)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}

			next := make(storage.Record, len(doc.record))
			for k, v := range doc.record {
				next[k] = v
			}
			for k, v := range changes {
				next[k] = v
			}
			updated = append(updated, document{field: doc.field, record: next})
		}

		for _, doc := range updated {
			if err := checkUnique(coll, merge(docs, updated), doc.field, doc.record, false); err != nil {
				return err
			}
		}

		affected = int64(len(updated))
		if len(updated) == 0 {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, doc := range updated {
				data, err := json.Marshal(compact(doc.record))
				if err != nil {
					return err
				}
				pipe.HSet(ctx, s.docsKey(collection), doc.field, data)
			}
			return nil
		})
		return err
	})
	if err != nil {
		return 0, wrap("update", collection, err)
	}
	return affected, nil
}

// Delete removes every document matching where
func (s *Store) Delete(ctx context.Context, collection string, where []storage.Condition) (int64, error) {
	var affected int64

	err := s.atomically(ctx, collection, func(tx *redis.Tx) error {
		affected = 0

		docs, err := s.selectDocs(ctx, tx, collection, storage.Query{Where: where})
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return nil
		}

		fields := make([]string, len(docs))
		for i, doc := range docs {
			fields[i] = doc.field
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HDel(ctx, s.docsKey(collection), fields...)
			return nil
		})
		affected = int64(len(docs))
		return err
	})
	if err != nil {
		return 0, wrap("delete", collection, err)
	}
	return affected, nil
}

// checkUnique rejects a document whose ID or unique columns collide with
// another document. With isNew the ID itself must be unused.
func checkUnique(coll storage.Collection, docs []document, field string, doc storage.Record, isNew bool) error {
	for _, other := range docs {
		if other.field == field {
			if isNew {
				return fmt.Errorf("%w: %s %s", storage.ErrDuplicate, storage.ColumnID, field)
			}
			continue
		}
		for _, col := range coll.Columns {
			if !col.Unique || doc[col.Name] == nil {
				continue
			}
			if storage.Equal(doc[col.Name], other.record[col.Name]) {
				return fmt.Errorf("%w: %s %v", storage.ErrDuplicate, col.Name, doc[col.Name])
			}
		}
	}
	return nil
}

// merge overlays updated documents on the loaded set
func merge(docs, updated []document) []document {
	byField := make(map[string]storage.Record, len(updated))
	for _, doc := range updated {
		byField[doc.field] = doc.record
	}

	out := make([]document, len(docs))
	for i, doc := range docs {
		if rec, ok := byField[doc.field]; ok {
			doc.record = rec
		}
		out[i] = doc
	}
	return out
}
