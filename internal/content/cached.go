package content

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"

	"go.uber.org/zap"

	"github.com/conduit-lang/contenttype/internal/cache"
	"github.com/conduit-lang/contenttype/internal/storage"
)

// Cache groups
const groupContentTypes = "contentTypes"

func contentsGroup(typeID int64) string {
	return "contents" + strconv.FormatInt(typeID, 10)
}

func termsGroup(set TermSet) string {
	return "terms" + string(set.Kind) + strconv.FormatInt(set.TypeID, 10)
}

// cachedRecords reads raw rows from the cache. Rows are cached before any
// filter runs so derived values are recomputed on every read.
func (s *Service) cachedRecords(ctx context.Context, group, key string) ([]storage.Record, bool) {
	data, err := s.cache.Get(ctx, group, key)
	if err != nil {
		if !cache.IsCacheMiss(err) {
			s.logger.Warn("cache read failed", zap.String("group", group), zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var records []storage.Record
	if err := dec.Decode(&records); err != nil {
		s.logger.Warn("dropping undecodable cache entry", zap.String("group", group), zap.String("key", key), zap.Error(err))
		return nil, false
	}
	for _, rec := range records {
		storage.NormalizeRecord(rec)
	}
	return records, true
}

func (s *Service) storeRecords(ctx context.Context, group, key string, records []storage.Record) {
	if records == nil {
		records = []storage.Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		s.logger.Warn("cache encode failed", zap.String("group", group), zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, group, key, data); err != nil {
		s.logger.Warn("cache write failed", zap.String("group", group), zap.String("key", key), zap.Error(err))
	}
}

// getRecords is the cache-first read path shared by every entity
func (s *Service) getRecords(ctx context.Context, group, key, collection string, q storage.Query) ([]storage.Record, error) {
	if records, ok := s.cachedRecords(ctx, group, key); ok {
		return records, nil
	}

	records, err := s.store.Get(ctx, collection, q)
	if err != nil {
		return nil, storageErr(err)
	}
	s.storeRecords(ctx, group, key, records)
	return records, nil
}

func (s *Service) countRecords(ctx context.Context, group, key, collection string, q storage.Query) (int64, error) {
	if records, ok := s.cachedRecords(ctx, group, key); ok && len(records) == 1 {
		if n, ok := storage.Int64(records[0]["count"]); ok {
			return n, nil
		}
	}

	n, err := s.store.Count(ctx, collection, q)
	if err != nil {
		return 0, storageErr(err)
	}
	s.storeRecords(ctx, group, key, []storage.Record{{"count": n}})
	return n, nil
}
