package docstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/conduit-lang/contenttype/internal/storage"
)

// CreateCollection records the collection schema. An existing schema is
// left untouched.
func (s *Store) CreateCollection(ctx context.Context, coll storage.Collection) error {
	if err := validateCollection(coll); err != nil {
		return wrap("create", coll.Name, err)
	}

	data, err := json.Marshal(coll)
	if err != nil {
		return wrap("create", coll.Name, err)
	}

	created, err := s.client.HSetNX(ctx, s.metaKey(), coll.Name, data).Result()
	if err != nil {
		return wrap("create", coll.Name, err)
	}
	if created {
		s.logger.Info("created collection",
			zap.String("collection", coll.Name),
			zap.Int("columns", len(coll.Columns)))
	}
	return nil
}

func validateCollection(coll storage.Collection) error {
	if err := storage.ValidateIdentifier(coll.Name); err != nil {
		return err
	}
	if len(coll.Columns) == 0 {
		return fmt.Errorf("%w: collection %s has no columns", storage.ErrInvalidQuery, coll.Name)
	}
	for _, col := range coll.Columns {
		if err := storage.ValidateIdentifier(col.Name); err != nil {
			return err
		}
	}
	return nil
}

// AlterCollection adds and drops columns. Dropped columns are also removed
// from every stored document.
func (s *Store) AlterCollection(ctx context.Context, name string, add []storage.Column, drop []string) error {
	if len(add) == 0 && len(drop) == 0 {
		return nil
	}

	err := s.atomically(ctx, name, func(tx *redis.Tx) error {
		coll, err := s.schema(ctx, tx, name)
		if err != nil {
			return err
		}

		dropped := make(map[string]bool, len(drop))
		for _, colName := range drop {
			dropped[colName] = true
		}

		columns := make([]storage.Column, 0, len(coll.Columns)+len(add))
		for _, col := range coll.Columns {
			if !dropped[col.Name] {
				columns = append(columns, col)
			}
		}
		for _, col := range add {
			if err := storage.ValidateIdentifier(col.Name); err != nil {
				return err
			}
			if _, exists := coll.Column(col.Name); exists {
				return fmt.Errorf("%w: column %s already exists in %s", storage.ErrInvalidQuery, col.Name, name)
			}
			columns = append(columns, col)
		}

		altered := storage.Collection{Name: name, Columns: columns}
		meta, err := json.Marshal(altered)
		if err != nil {
			return err
		}

		// documents are decoded with the altered schema, which strips
		// dropped columns when they are written back
		var docs []document
		if len(drop) > 0 {
			docs, err = s.load(ctx, tx, altered)
			if err != nil {
				return err
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, s.metaKey(), name, meta)
			for _, doc := range docs {
				data, err := json.Marshal(compact(doc.record))
				if err != nil {
					return err
				}
				pipe.HSet(ctx, s.docsKey(name), doc.field, data)
			}
			return nil
		})
		return err
	})
	if err != nil {
		return wrap("alter", name, err)
	}

	s.logger.Info("altered collection",
		zap.String("collection", name),
		zap.Int("added", len(add)),
		zap.Strings("dropped", drop))
	return nil
}

// DropCollection removes the schema and every document
func (s *Store) DropCollection(ctx context.Context, name string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.docsKey(name))
		pipe.HDel(ctx, s.metaKey(), name)
		return nil
	})
	if err != nil {
		return wrap("drop", name, err)
	}

	s.logger.Info("dropped collection", zap.String("collection", name))
	return nil
}

// compact drops nil values so absent and null columns encode the same way
func compact(rec storage.Record) storage.Record {
	out := make(storage.Record, len(rec))
	for k, v := range rec {
		if v != nil {
			out[k] = v
		}
	}
	return out
}
