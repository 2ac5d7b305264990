package content

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/conduit-lang/contenttype/internal/storage"
)

// onDeletedContentType removes everything a deleted type owned: its content
// and terms first, each through its own cascade, then every collection
func (s *Service) onDeletedContentType(ctx context.Context, args ...any) error {
	id, err := arg[int64](args, 0)
	if err != nil {
		return err
	}
	old, err := arg[*ContentType](args, 1)
	if err != nil {
		return err
	}

	var errs []error
	if old.Kind == KindContent {
		errs = append(errs, s.purgeContent(ctx, old))
		errs = append(errs,
			s.purgeTerms(ctx, &termSet{TermSet: Categories(id), owner: old, collection: old.CategoriesCollection()}),
			s.purgeTerms(ctx, &termSet{TermSet: Tags(id), owner: old, collection: old.TagsCollection()}))
	} else {
		errs = append(errs, s.purgeTerms(ctx, &termSet{TermSet: Taxonomy(id), owner: old, collection: old.Storage}))
	}

	for _, name := range []string{
		old.Storage,
		old.PropertiesCollection(),
		old.CommentsCollection(),
		old.CategoriesCollection(),
		old.TagsCollection(),
	} {
		if err := s.store.DropCollection(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("drop %s: %w", name, err))
		}
	}

	if _, err := s.store.Delete(ctx, s.typePropsCollection(), []storage.Condition{storage.Eq(storage.ColumnOwner, id)}); err != nil {
		errs = append(errs, fmt.Errorf("delete type properties: %w", err))
	}

	s.clearGroups(ctx, contentsGroup(id), termsGroup(Categories(id)), termsGroup(Tags(id)), termsGroup(Taxonomy(id)))
	s.logger.Info("removed content type storage", zap.Int64("type_id", id), zap.String("slug", old.Slug))
	return errors.Join(errs...)
}

func (s *Service) purgeContent(ctx context.Context, ct *ContentType) error {
	records, err := s.store.Get(ctx, ct.Storage, storage.Query{})
	if storage.IsNoCollection(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("list %s: %w", ct.Storage, err)
	}

	var errs []error
	for _, rec := range records {
		if err := s.removeContent(ctx, ct, contentFromRecord(ct, rec), s.fireSync); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) purgeTerms(ctx context.Context, rs *termSet) error {
	records, err := s.store.Get(ctx, rs.collection, storage.Query{})
	if storage.IsNoCollection(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("list %s: %w", rs.collection, err)
	}

	var errs []error
	for _, rec := range records {
		if err := s.removeTerm(ctx, rs, termFromRecord(rs, rec), s.fireSync); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// onDeletedContent reparents the children of a deleted item to the root and
// removes its comments and properties
func (s *Service) onDeletedContent(ctx context.Context, args ...any) error {
	old, err := arg[*Content](args, 0)
	if err != nil {
		return err
	}
	ct, err := arg[*ContentType](args, 2)
	if err != nil {
		typeID, idErr := arg[int64](args, 1)
		if idErr != nil {
			return idErr
		}
		if ct, err = s.GetContentType(ctx, typeID); err != nil {
			return err
		}
	}

	var errs []error
	_, err = s.store.Update(ctx, ct.Storage, []storage.Condition{storage.Eq("parent", old.ID)}, storage.Record{"parent": int64(0)})
	errs = append(errs, ignoreMissing(err))

	if ct.HasComments {
		_, err = s.store.Delete(ctx, ct.CommentsCollection(), []storage.Condition{storage.Eq("content_id", old.ID)})
		errs = append(errs, ignoreMissing(err))
	}

	_, err = s.store.Delete(ctx, ct.PropertiesCollection(), []storage.Condition{storage.Eq(storage.ColumnOwner, old.ID)})
	errs = append(errs, ignoreMissing(err))

	s.clearGroups(ctx, contentsGroup(ct.ID))
	return errors.Join(errs...)
}

// onDeletedTerm reparents the children of a deleted term and removes every
// content link to it
func (s *Service) onDeletedTerm(ctx context.Context, args ...any) error {
	old, err := arg[*Term](args, 0)
	if err != nil {
		return err
	}
	set, err := arg[TermSet](args, 1)
	if err != nil {
		return err
	}

	var errs []error
	if rs, err := s.resolveSet(ctx, set); err == nil {
		_, err = s.store.Update(ctx, rs.collection, []storage.Condition{storage.Eq("parent", old.ID)}, storage.Record{"parent": int64(0)})
		errs = append(errs, ignoreMissing(err))
		s.clearGroups(ctx, termsGroup(set))
	} else if !IsNotFound(err) {
		errs = append(errs, err)
	}

	var owners []*ContentType
	if set.Kind == SetTaxonomy {
		owners, err = s.GetContentTypes(ctx, ContentTypeQuery{Kind: KindContent})
		if err != nil {
			return errors.Join(append(errs, err)...)
		}
	} else if ct, err := s.GetContentType(ctx, set.TypeID); err == nil {
		owners = []*ContentType{ct}
	} else if !IsNotFound(err) {
		errs = append(errs, err)
	}

	value := strconv.FormatInt(old.ID, 10)
	for _, ct := range owners {
		_, err := s.store.Delete(ctx, ct.PropertiesCollection(), []storage.Condition{
			storage.Eq(storage.ColumnName, set.Key()),
			storage.Eq(storage.ColumnValue, value),
		})
		errs = append(errs, ignoreMissing(err))
		s.clearGroups(ctx, contentsGroup(ct.ID))
	}
	return errors.Join(errs...)
}

// ignoreMissing treats a collection that was never provisioned as empty
func ignoreMissing(err error) error {
	if storage.IsNoCollection(err) {
		return nil
	}
	return err
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
