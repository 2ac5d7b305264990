package endpoint

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/contenttype/internal/content"
)

func arg[T any](args []any, i int) (T, error) {
	var zero T
	if i >= len(args) {
		return zero, fmt.Errorf("missing hook argument %d", i)
	}
	v, ok := args[i].(T)
	if !ok {
		return zero, fmt.Errorf("hook argument %d: unexpected type %T", i, args[i])
	}
	return v, nil
}

// routable reports whether a type's resources get endpoints
func routable(ct *content.ContentType) bool {
	return ct.Status != content.TypeInactive
}

func archiveValue(ct *content.ContentType) Value {
	if ct.Kind == content.KindTaxonomy {
		return Value{Type: TaxArchive, TypeID: ct.ID}
	}
	return Value{Type: Archive, TypeID: ct.ID}
}

func contentValue(typeID, id int64) Value {
	return Value{Type: ContentPage, TypeID: typeID, ContentID: id}
}

func termValue(set content.TermSet, id int64) Value {
	switch set.Kind {
	case content.SetCategory:
		return Value{Type: Category, TypeID: set.TypeID, CatID: id}
	case content.SetTag:
		return Value{Type: Tag, TypeID: set.TypeID, TagID: id}
	default:
		return Value{Type: TaxPage, TypeID: set.TypeID, TermID: id}
	}
}

// ContentPermalink derives the path of a content item: the type slug, the
// ancestor slugs and the item slug. Items of page types sit at the root.
func (r *Resolver) ContentPermalink(ctx context.Context, ct *content.ContentType, c *content.Content) (string, error) {
	ancestors, err := r.engine.FindContentParent(ctx, ct.ID, c.ID)
	if err != nil {
		return "", err
	}
	segments := make([]string, 0, len(ancestors)+2)
	if !ct.HasPage {
		segments = append(segments, ct.Slug)
	}
	segments = append(segments, ancestors...)
	return Join(append(segments, c.Slug)...), nil
}

// TermPermalink derives the path of a term. Category and tag terms sit
// below their content type's slug.
func (r *Resolver) TermPermalink(ctx context.Context, set content.TermSet, t *content.Term) (string, error) {
	owner, err := r.engine.GetContentType(ctx, set.TypeID)
	if err != nil {
		return "", err
	}
	ancestors, err := r.engine.FindTermParent(ctx, set, t.ID)
	if err != nil {
		return "", err
	}

	segments := []string{owner.Slug}
	if set.Kind != content.SetTaxonomy {
		segments = append(segments, string(set.Kind))
	}
	segments = append(segments, ancestors...)
	return Join(append(segments, t.Slug)...), nil
}

// contentPermalink is the getContent filter attaching Permalink
func (r *Resolver) contentPermalink(ctx context.Context, value any, args ...any) (any, error) {
	c, ok := value.(*content.Content)
	if !ok || c == nil {
		return value, nil
	}
	ct, err := arg[*content.ContentType](args, 0)
	if err != nil {
		return value, nil
	}

	path, err := r.ContentPermalink(ctx, ct, c)
	if err != nil {
		r.logger.Warn("permalink unavailable", zap.Int64("content_id", c.ID), zap.Error(err))
		return c, nil
	}
	c.Permalink = path
	return c, nil
}

// termPermalink is the getTerm filter attaching Permalink
func (r *Resolver) termPermalink(ctx context.Context, value any, args ...any) (any, error) {
	t, ok := value.(*content.Term)
	if !ok || t == nil {
		return value, nil
	}
	set, err := arg[content.TermSet](args, 0)
	if err != nil {
		return value, nil
	}

	path, err := r.TermPermalink(ctx, set, t)
	if err != nil {
		r.logger.Warn("permalink unavailable", zap.Int64("term_id", t.ID), zap.Error(err))
		return t, nil
	}
	t.Permalink = path
	return t, nil
}

// onContentTypeChanged re-derives every endpoint of an inserted or updated
// type; slug and flag changes move all of them
func (r *Resolver) onContentTypeChanged(ctx context.Context, args ...any) error {
	ct, err := arg[*content.ContentType](args, 1)
	if err != nil {
		return err
	}
	if err := r.removeType(ctx, ct.ID); err != nil {
		return err
	}
	return r.registerType(ctx, ct)
}

func (r *Resolver) onDeletedContentType(ctx context.Context, args ...any) error {
	id, err := arg[int64](args, 0)
	if err != nil {
		return err
	}
	return r.removeType(ctx, id)
}

func (r *Resolver) onContentChanged(ctx context.Context, args ...any) error {
	id, err := arg[int64](args, 0)
	if err != nil {
		return err
	}
	typeID, err := arg[int64](args, 1)
	if err != nil {
		return err
	}

	oldPath, _ := r.pathOf(contentValue(typeID, id))
	if err := r.refreshContent(ctx, typeID, id); err != nil {
		return err
	}
	return r.refreshContentBelow(ctx, oldPath, typeID)
}

func (r *Resolver) onDeletedContent(ctx context.Context, args ...any) error {
	old, err := arg[*content.Content](args, 0)
	if err != nil {
		return err
	}
	typeID, err := arg[int64](args, 1)
	if err != nil {
		return err
	}

	oldPath, err := r.deleteOwner(ctx, contentValue(typeID, old.ID))
	if err != nil {
		return err
	}
	return r.refreshContentBelow(ctx, oldPath, typeID)
}

func (r *Resolver) onTermChanged(ctx context.Context, args ...any) error {
	id, err := arg[int64](args, 0)
	if err != nil {
		return err
	}
	set, err := arg[content.TermSet](args, 1)
	if err != nil {
		return err
	}

	oldPath, _ := r.pathOf(termValue(set, id))
	if err := r.refreshTerm(ctx, set, id); err != nil {
		return err
	}
	return r.refreshTermsBelow(ctx, oldPath, set)
}

func (r *Resolver) onDeletedTerm(ctx context.Context, args ...any) error {
	old, err := arg[*content.Term](args, 0)
	if err != nil {
		return err
	}
	set, err := arg[content.TermSet](args, 1)
	if err != nil {
		return err
	}

	oldPath, err := r.deleteOwner(ctx, termValue(set, old.ID))
	if err != nil {
		return err
	}
	return r.refreshTermsBelow(ctx, oldPath, set)
}

// refreshContent registers the endpoint of a public item of a routable type
// and removes it otherwise
func (r *Resolver) refreshContent(ctx context.Context, typeID, id int64) error {
	v := contentValue(typeID, id)
	ct, err := r.engine.GetContentType(ctx, typeID)
	if content.IsNotFound(err) {
		_, err = r.deleteOwner(ctx, v)
		return err
	}
	if err != nil {
		return err
	}
	c, err := r.engine.GetContent(ctx, typeID, id)
	if content.IsNotFound(err) {
		_, err = r.deleteOwner(ctx, v)
		return err
	}
	if err != nil {
		return err
	}

	if c.Status != content.StatusPublic || !routable(ct) || c.Permalink == "" {
		_, err := r.deleteOwner(ctx, v)
		return err
	}
	return r.SetEndpoint(ctx, c.Permalink, v)
}

// refreshContentBelow re-derives the items whose old path sat below path;
// their permalinks follow the ancestor that moved
func (r *Resolver) refreshContentBelow(ctx context.Context, path string, typeID int64) error {
	if path == "" {
		return nil
	}
	var errs []error
	for _, v := range r.under(path, ContentPage, typeID) {
		errs = append(errs, r.refreshContent(ctx, typeID, v.ContentID))
	}
	return errors.Join(errs...)
}

func (r *Resolver) refreshTerm(ctx context.Context, set content.TermSet, id int64) error {
	v := termValue(set, id)
	ct, err := r.engine.GetContentType(ctx, set.TypeID)
	if content.IsNotFound(err) {
		_, err = r.deleteOwner(ctx, v)
		return err
	}
	if err != nil {
		return err
	}
	t, err := r.engine.GetTerm(ctx, set, id)
	if content.IsNotFound(err) || content.IsValidationFailed(err) {
		_, err = r.deleteOwner(ctx, v)
		return err
	}
	if err != nil {
		return err
	}

	if !routable(ct) || t.Permalink == "" {
		_, err := r.deleteOwner(ctx, v)
		return err
	}
	return r.SetEndpoint(ctx, t.Permalink, v)
}

func (r *Resolver) refreshTermsBelow(ctx context.Context, path string, set content.TermSet) error {
	if path == "" {
		return nil
	}
	var errs []error
	for _, v := range r.under(path, termValue(set, 0).Type, set.TypeID) {
		errs = append(errs, r.refreshTerm(ctx, set, termID(v)))
	}
	return errors.Join(errs...)
}

func termID(v Value) int64 {
	switch v.Type {
	case Category:
		return v.CatID
	case Tag:
		return v.TagID
	default:
		return v.TermID
	}
}

// registerType adds every endpoint a type's current state calls for
func (r *Resolver) registerType(ctx context.Context, ct *content.ContentType) error {
	if !routable(ct) {
		return nil
	}
	if ct.HasArchive {
		if err := r.SetEndpoint(ctx, Join(ct.Slug), archiveValue(ct)); err != nil {
			return err
		}
	}

	var sets []content.TermSet
	if ct.Kind == content.KindTaxonomy {
		sets = append(sets, content.Taxonomy(ct.ID))
	} else {
		items, err := r.engine.GetContents(ctx, content.ContentQuery{
			TypeID: ct.ID,
			Status: []string{content.StatusPublic},
		})
		if err != nil {
			return err
		}
		for _, c := range items {
			if c.Permalink == "" {
				continue
			}
			if err := r.SetEndpoint(ctx, c.Permalink, contentValue(ct.ID, c.ID)); err != nil {
				return err
			}
		}
		if ct.HasCategories {
			sets = append(sets, content.Categories(ct.ID))
		}
		if ct.HasTags {
			sets = append(sets, content.Tags(ct.ID))
		}
	}

	for _, set := range sets {
		terms, err := r.engine.GetTerms(ctx, content.TermQuery{Set: set})
		if err != nil {
			return err
		}
		for _, t := range terms {
			if t.Permalink == "" {
				continue
			}
			if err := r.SetEndpoint(ctx, t.Permalink, termValue(set, t.ID)); err != nil {
				return err
			}
		}
	}
	return nil
}
