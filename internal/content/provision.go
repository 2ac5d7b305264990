package content

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/contenttype/internal/storage"
)

// protectedColumns are never dropped when a type's fields change
var protectedColumns = []string{storage.ColumnID, "parent", "status", "template"}

func contentCollection(ct *ContentType) storage.Collection {
	coll := storage.Collection{
		Name: ct.Storage,
		Columns: []storage.Column{
			{Name: storage.ColumnID, Type: storage.TypeInteger, PrimaryKey: true},
			{Name: "status", Type: storage.TypeText},
			{Name: "slug", Type: storage.TypeText, Unique: true},
			{Name: "parent", Type: storage.TypeInteger, Index: true},
			{Name: "template", Type: storage.TypeText},
			{Name: "created", Type: storage.TypeText},
			{Name: "updated", Type: storage.TypeText},
		},
	}
	for _, f := range fieldColumns(ct) {
		coll.Columns = append(coll.Columns, storage.Column{Name: f, Type: fieldType(f)})
	}
	return coll
}

// collectionsFor lists every collection a type's declaration calls for
func collectionsFor(ct *ContentType) []storage.Collection {
	if ct.Kind == KindTaxonomy {
		return []storage.Collection{
			termCollection(ct.Storage, fieldColumns(ct)),
			propertyCollection(ct.PropertiesCollection()),
		}
	}

	colls := []storage.Collection{
		contentCollection(ct),
		propertyCollection(ct.PropertiesCollection()),
	}
	if ct.HasComments {
		colls = append(colls, commentCollection(ct.CommentsCollection()))
	}
	if ct.HasCategories {
		colls = append(colls, termCollection(ct.CategoriesCollection(), nil))
	}
	if ct.HasTags {
		colls = append(colls, termCollection(ct.TagsCollection(), nil))
	}
	return colls
}

// onInsertedContentType provisions the storage of a new type
func (s *Service) onInsertedContentType(ctx context.Context, args ...any) error {
	ct, err := arg[*ContentType](args, 1)
	if err != nil {
		return err
	}

	for _, coll := range collectionsFor(ct) {
		if err := s.store.CreateCollection(ctx, coll); err != nil {
			return fmt.Errorf("provision %s for %s: %w", coll.Name, ct.Slug, err)
		}
	}
	s.logger.Info("provisioned content type",
		zap.Int64("type_id", ct.ID),
		zap.String("slug", ct.Slug),
		zap.String("storage", ct.Storage))
	return nil
}

// onUpdatedContentType alters storage to follow the new declaration: fields
// become added or dropped columns, flipped flags create or drop the
// optional collections
func (s *Service) onUpdatedContentType(ctx context.Context, args ...any) error {
	ct, err := arg[*ContentType](args, 1)
	if err != nil {
		return err
	}
	old, err := arg[*ContentType](args, 2)
	if err != nil {
		return err
	}

	added := setDifference(fieldColumns(ct), fieldColumns(old))
	dropped := setDifference(setDifference(fieldColumns(old), fieldColumns(ct)), protectedColumns)
	if len(added) > 0 || len(dropped) > 0 {
		cols := make([]storage.Column, 0, len(added))
		for _, f := range added {
			cols = append(cols, storage.Column{Name: f, Type: fieldType(f)})
		}
		if err := s.store.AlterCollection(ctx, ct.Storage, cols, dropped); err != nil {
			return fmt.Errorf("alter %s: %w", ct.Storage, err)
		}
		s.logger.Info("altered content type storage",
			zap.Int64("type_id", ct.ID),
			zap.Strings("added", added),
			zap.Strings("dropped", dropped))
	}

	if ct.Kind == KindContent {
		toggles := []struct {
			was, is bool
			coll    storage.Collection
			link    string
		}{
			{old.HasComments, ct.HasComments, commentCollection(ct.CommentsCollection()), ""},
			{old.HasCategories, ct.HasCategories, termCollection(ct.CategoriesCollection(), nil), string(SetCategory)},
			{old.HasTags, ct.HasTags, termCollection(ct.TagsCollection(), nil), string(SetTag)},
		}
		for _, t := range toggles {
			if err := s.toggleCollection(ctx, ct, t.was, t.is, t.coll, t.link); err != nil {
				return err
			}
		}
	}

	s.clearGroups(ctx, contentsGroup(ct.ID), termsGroup(Categories(ct.ID)), termsGroup(Tags(ct.ID)), termsGroup(Taxonomy(ct.ID)))
	return nil
}

// toggleCollection creates or drops an optional collection when its flag
// flips. Dropping a term collection also removes the content links to it.
func (s *Service) toggleCollection(ctx context.Context, ct *ContentType, was, is bool, coll storage.Collection, link string) error {
	switch {
	case is && !was:
		if err := s.store.CreateCollection(ctx, coll); err != nil {
			return fmt.Errorf("provision %s: %w", coll.Name, err)
		}
	case was && !is:
		if err := s.store.DropCollection(ctx, coll.Name); err != nil {
			return fmt.Errorf("drop %s: %w", coll.Name, err)
		}
		if link != "" {
			_, err := s.store.Delete(ctx, ct.PropertiesCollection(), []storage.Condition{storage.Eq(storage.ColumnName, link)})
			if err != nil && !storage.IsNoCollection(err) {
				return fmt.Errorf("unlink %s: %w", link, err)
			}
		}
	}
	return nil
}

// setDifference returns the elements of a missing from b, keeping order
func setDifference(a, b []string) []string {
	mb := make(map[string]bool)
	for _, x := range b {
		mb[x] = true
	}

	var diff []string
	for _, x := range a {
		if !mb[x] {
			diff = append(diff, x)
			mb[x] = true
		}
	}
	return diff
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
