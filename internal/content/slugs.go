package content

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/contenttype/internal/storage"
	"github.com/conduit-lang/contenttype/internal/util/slug"
)

// maxSlugAttempts bounds the retries after a unique-slug conflict
const maxSlugAttempts = 5

// takenSlugs returns the slugs of collection that share candidate as a
// case-insensitive prefix, ignoring the record exclude
func (s *Service) takenSlugs(ctx context.Context, collection, candidate string, exclude int64) ([]string, error) {
	records, err := s.store.Get(ctx, collection, storage.Query{
		Where: []storage.Condition{storage.Prefix("slug", candidate)},
	})
	if err != nil {
		return nil, storageErr(err)
	}

	taken := make([]string, 0, len(records))
	for _, rec := range records {
		if id, _ := storage.Int64(rec[storage.ColumnID]); exclude > 0 && id == exclude {
			continue
		}
		taken = append(taken, storage.String(rec["slug"]))
	}
	return taken, nil
}

// recordBuilder builds the record inserted under slug. It runs with the
// collection lock held, once per attempt.
type recordBuilder func(ctx context.Context, slug string) (storage.Record, error)

// insertWithSlug picks the first free slug for candidate and inserts the
// record built for it. Assignment is serialized per collection; a duplicate
// from a writer outside this process is retried with a fresh suffix.
func (s *Service) insertWithSlug(ctx context.Context, collection, candidate string, build recordBuilder) (string, error) {
	unlock := s.locks.Lock(collection)
	defer unlock()

	var lastErr error
	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		taken, err := s.takenSlugs(ctx, collection, candidate, 0)
		if err != nil {
			return "", err
		}
		sl := slug.Next(candidate, taken)

		rec, err := build(ctx, sl)
		if err != nil {
			return "", err
		}
		err = s.store.Insert(ctx, collection, rec)
		if err == nil {
			return sl, nil
		}
		if !storage.IsDuplicate(err) {
			return "", storageErr(err)
		}

		lastErr = err
		s.logger.Debug("slug conflict, retrying",
			zap.String("collection", collection),
			zap.String("slug", sl),
			zap.Int("attempt", attempt+1))
	}

	return "", fmt.Errorf("%w: no free slug for %q after %d attempts: %v", ErrDuplicate, candidate, maxSlugAttempts, lastErr)
}

// updateWithSlug re-slugs record id to the first free slug for candidate
// while applying patch
func (s *Service) updateWithSlug(ctx context.Context, collection string, id int64, candidate string, patch storage.Record) (string, error) {
	unlock := s.locks.Lock(collection)
	defer unlock()

	var lastErr error
	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		taken, err := s.takenSlugs(ctx, collection, candidate, id)
		if err != nil {
			return "", err
		}
		sl := slug.Next(candidate, taken)

		rec := make(storage.Record, len(patch)+1)
		for k, v := range patch {
			rec[k] = v
		}
		rec["slug"] = sl

		_, err = s.store.Update(ctx, collection, []storage.Condition{storage.Eq(storage.ColumnID, id)}, rec)
		if err == nil {
			return sl, nil
		}
		if !storage.IsDuplicate(err) {
			return "", storageErr(err)
		}
		lastErr = err
	}

	return "", fmt.Errorf("%w: no free slug for %q after %d attempts: %v", ErrDuplicate, candidate, maxSlugAttempts, lastErr)
}
