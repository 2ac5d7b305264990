package content

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/conduit-lang/contenttype/internal/cache"
	"github.com/conduit-lang/contenttype/internal/storage"
	"github.com/conduit-lang/contenttype/internal/util/slug"
)

// SetKind says where the terms of a TermSet live
type SetKind string

const (
	// SetTaxonomy terms live in a taxonomy type's own storage
	SetTaxonomy SetKind = "taxonomy"
	// SetCategory terms live in a content type's category storage
	SetCategory SetKind = "category"
	// SetTag terms live in a content type's tag storage
	SetTag SetKind = "tag"
)

// TermSet identifies one collection of terms
type TermSet struct {
	Kind   SetKind `json:"kind"`
	TypeID int64   `json:"typeID"`
}

// Taxonomy returns the term set of a taxonomy type
func Taxonomy(typeID int64) TermSet { return TermSet{Kind: SetTaxonomy, TypeID: typeID} }

// Categories returns the category set of a content type
func Categories(typeID int64) TermSet { return TermSet{Kind: SetCategory, TypeID: typeID} }

// Tags returns the tag set of a content type
func Tags(typeID int64) TermSet { return TermSet{Kind: SetTag, TypeID: typeID} }

// Key is the property name linking content to terms of the set: "category",
// "tag", or the taxonomy type ID
func (ts TermSet) Key() string {
	if ts.Kind == SetTaxonomy {
		return strconv.FormatInt(ts.TypeID, 10)
	}
	return string(ts.Kind)
}

// TermFilter matches content linked to any of the given terms
func TermFilter(set TermSet, termIDs ...int64) PropertyGroup {
	g := PropertyGroup{Relation: RelationOr}
	for _, id := range termIDs {
		g.Property = append(g.Property, PropertyMatch{Name: set.Key(), Value: strconv.FormatInt(id, 10)})
	}
	return g
}

// termColumns exist on every term collection
var termColumns = []string{storage.ColumnID, "name", "slug", "description", "parent", "created", "updated"}

// Term is one item of a term set
type Term struct {
	ID          int64          `json:"ID"`
	Set         TermSet        `json:"set"`
	Name        string         `json:"name"`
	Slug        string         `json:"slug"`
	Description string         `json:"description,omitempty"`
	Parent      int64          `json:"parent"`
	Created     time.Time      `json:"created"`
	Updated     time.Time      `json:"updated"`
	Fields      map[string]any `json:"fields,omitempty"`

	// Permalink is derived by getTerm subscribers, never stored
	Permalink string `json:"permalink,omitempty"`
}

// TermInput carries the attributes of a term add or update
type TermInput struct {
	ID          int64
	Set         TermSet
	Name        string
	Slug        string
	Description *string
	Parent      *int64
	// Fields holds values of extra fields declared by a taxonomy type
	Fields map[string]any
}

// TermQuery selects terms of one set
type TermQuery struct {
	Set     TermSet
	Parent  *int64
	Slug    string
	IDs     []int64
	OrderBy string
	Desc    bool
	Limit   int
	Offset  int
}

// termSet is a resolved TermSet
type termSet struct {
	TermSet
	owner      *ContentType
	collection string
}

func (s *Service) resolveSet(ctx context.Context, set TermSet) (*termSet, error) {
	if set.TypeID <= 0 {
		return nil, invalid("set", "type ID is required")
	}
	ct, err := s.GetContentType(ctx, set.TypeID)
	if err != nil {
		return nil, err
	}

	rs := &termSet{TermSet: set, owner: ct}
	switch {
	case set.Kind == SetTaxonomy && ct.Kind == KindTaxonomy:
		rs.collection = ct.Storage
	case set.Kind == SetCategory && ct.Kind == KindContent && ct.HasCategories:
		rs.collection = ct.CategoriesCollection()
	case set.Kind == SetTag && ct.Kind == KindContent && ct.HasTags:
		rs.collection = ct.TagsCollection()
	default:
		return nil, invalid("set", "%s has no %s terms", ct.Slug, set.Kind)
	}
	return rs, nil
}

func termCollection(name string, extra []string) storage.Collection {
	coll := storage.Collection{
		Name: name,
		Columns: []storage.Column{
			{Name: storage.ColumnID, Type: storage.TypeInteger, PrimaryKey: true},
			{Name: "name", Type: storage.TypeText},
			{Name: "slug", Type: storage.TypeText, Unique: true},
			{Name: "description", Type: storage.TypeText},
			{Name: "parent", Type: storage.TypeInteger, Index: true},
			{Name: "created", Type: storage.TypeText},
			{Name: "updated", Type: storage.TypeText},
		},
	}
	for _, f := range extra {
		coll.Columns = append(coll.Columns, storage.Column{Name: f, Type: fieldType(f)})
	}
	return coll
}

// extraFields returns the fields a taxonomy type declares beyond the term
// columns; category and tag sets have none
func (rs *termSet) extraFields() []string {
	if rs.Kind != SetTaxonomy {
		return nil
	}
	return fieldColumns(rs.owner)
}

// AddTerm validates and stores a new term
func (s *Service) AddTerm(ctx context.Context, in TermInput) (*Term, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("name", "is required")
	}
	rs, err := s.resolveSet(ctx, in.Set)
	if err != nil {
		return nil, err
	}

	var parent int64
	if in.Parent != nil {
		parent = *in.Parent
	}
	if err := s.checkTermParent(ctx, rs, 0, parent); err != nil {
		return nil, err
	}

	id, err := s.store.IncrementID(ctx, rs.collection)
	if err != nil {
		return nil, storageErr(err)
	}

	candidate := slug.Make(in.Slug)
	if candidate == "" {
		candidate = slug.Make(name)
	}
	if candidate == "" {
		candidate = strconv.FormatInt(id, 10)
	}

	stamp := s.timestamp()
	rec := storage.Record{
		storage.ColumnID: id,
		"name":           name,
		"description":    "",
		"parent":         parent,
		"created":        stamp,
		"updated":        stamp,
	}
	if in.Description != nil {
		rec["description"] = *in.Description
	}
	for _, f := range rs.extraFields() {
		if v, ok := in.Fields[f]; ok {
			rec[f] = storage.Coerce(fieldType(f), v)
		}
	}

	_, err = s.insertWithSlug(ctx, rs.collection, candidate, func(_ context.Context, sl string) (storage.Record, error) {
		rec["slug"] = sl
		return rec, nil
	})
	if err != nil {
		return nil, err
	}

	s.clearGroups(ctx, termsGroup(in.Set))
	s.fire(ctx, HookInsertedTerm, id, in.Set)
	return s.GetTerm(ctx, in.Set, id)
}

// UpdateTerm patches a term; only supplied attributes change
func (s *Service) UpdateTerm(ctx context.Context, in TermInput) (*Term, error) {
	if in.ID <= 0 {
		return nil, invalid("ID", "is required")
	}
	rs, err := s.resolveSet(ctx, in.Set)
	if err != nil {
		return nil, err
	}
	old, err := s.GetTerm(ctx, in.Set, in.ID)
	if err != nil {
		return nil, err
	}

	patch := storage.Record{"updated": s.timestamp()}
	if name := strings.TrimSpace(in.Name); name != "" {
		patch["name"] = name
	}
	if in.Description != nil {
		patch["description"] = *in.Description
	}
	if in.Parent != nil {
		if err := s.checkTermParent(ctx, rs, old.ID, *in.Parent); err != nil {
			return nil, err
		}
		patch["parent"] = *in.Parent
	}
	for _, f := range rs.extraFields() {
		if v, ok := in.Fields[f]; ok {
			patch[f] = storage.Coerce(fieldType(f), v)
		}
	}

	candidate := slug.Make(in.Slug)
	if candidate != "" && !strings.EqualFold(candidate, old.Slug) {
		_, err = s.updateWithSlug(ctx, rs.collection, old.ID, candidate, patch)
	} else {
		_, err = s.store.Update(ctx, rs.collection, []storage.Condition{storage.Eq(storage.ColumnID, old.ID)}, patch)
		err = storageErr(err)
	}
	if err != nil {
		return nil, err
	}

	s.clearGroups(ctx, termsGroup(in.Set))
	s.fire(ctx, HookUpdatedTerm, old.ID, in.Set, old)
	return s.GetTerm(ctx, in.Set, old.ID)
}

// DeleteTerm removes a term. Its content links and children are handled
// by the deletedTerm cascade.
func (s *Service) DeleteTerm(ctx context.Context, set TermSet, id int64) error {
	if id <= 0 {
		return invalid("ID", "is required")
	}
	rs, err := s.resolveSet(ctx, set)
	if err != nil {
		return err
	}
	old, err := s.GetTerm(ctx, set, id)
	if err != nil {
		return err
	}
	return s.removeTerm(ctx, rs, old, s.fire)
}

func (s *Service) removeTerm(ctx context.Context, rs *termSet, old *Term, notify notifier) error {
	_, err := s.store.Delete(ctx, rs.collection, []storage.Condition{storage.Eq(storage.ColumnID, old.ID)})
	if err != nil {
		return storageErr(err)
	}
	s.clearGroups(ctx, termsGroup(rs.TermSet))
	notify(ctx, HookDeletedTerm, old, rs.TermSet)
	return nil
}

// GetTerm returns a term by ID
func (s *Service) GetTerm(ctx context.Context, set TermSet, id int64) (*Term, error) {
	return s.GetTermBy(ctx, set, storage.ColumnID, id)
}

// GetTermBy returns the term whose ID or slug equals value
func (s *Service) GetTermBy(ctx context.Context, set TermSet, column string, value any) (*Term, error) {
	rs, rec, err := s.termRecord(ctx, set, column, value)
	if err != nil {
		return nil, err
	}
	return s.filterTerm(ctx, rs, rec)
}

// rawTerm loads a term without running the getTerm filter
func (s *Service) rawTerm(ctx context.Context, set TermSet, id int64) (*Term, error) {
	rs, rec, err := s.termRecord(ctx, set, storage.ColumnID, id)
	if err != nil {
		return nil, err
	}
	return termFromRecord(rs, rec), nil
}

func (s *Service) termRecord(ctx context.Context, set TermSet, column string, value any) (*termSet, storage.Record, error) {
	if column != storage.ColumnID && column != "slug" {
		return nil, nil, invalid("column", "must be ID or slug, got %q", column)
	}
	if column == storage.ColumnID {
		id, ok := storage.Int64(value)
		if !ok || id <= 0 {
			return nil, nil, invalid("ID", "must be a positive integer")
		}
		value = id
	}
	rs, err := s.resolveSet(ctx, set)
	if err != nil {
		return nil, nil, err
	}

	key := cache.Fingerprint(map[string]any{"by": column, "value": value})
	records, err := s.getRecords(ctx, termsGroup(set), key, rs.collection, storage.Query{
		Where: []storage.Condition{storage.Eq(column, value)},
		Limit: 1,
	})
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, notFound("term", value)
	}
	return rs, records[0], nil
}

// GetTerms returns the terms matching q
func (s *Service) GetTerms(ctx context.Context, q TermQuery) ([]*Term, error) {
	rs, err := s.resolveSet(ctx, q.Set)
	if err != nil {
		return nil, err
	}

	sq := storage.Query{OrderBy: q.OrderBy, Desc: q.Desc, Limit: q.Limit, Offset: q.Offset}
	if q.OrderBy != "" && !contains(termColumns, q.OrderBy) && !contains(rs.extraFields(), q.OrderBy) {
		return nil, invalid("orderBy", "unknown field %q", q.OrderBy)
	}
	if q.Parent != nil {
		sq.Where = append(sq.Where, storage.Eq("parent", *q.Parent))
	}
	if q.Slug != "" {
		sq.Where = append(sq.Where, storage.Eq("slug", q.Slug))
	}
	if len(q.IDs) > 0 {
		sq.Where = append(sq.Where, storage.In(storage.ColumnID, q.IDs))
	}

	params := map[string]any{
		"slug": q.Slug, "ids": q.IDs, "order": q.OrderBy, "desc": q.Desc,
		"limit": q.Limit, "offset": q.Offset,
	}
	if q.Parent != nil {
		params["parent"] = "p" + strconv.FormatInt(*q.Parent, 10)
	}
	records, err := s.getRecords(ctx, termsGroup(q.Set), "list:"+cache.Fingerprint(params), rs.collection, sq)
	if err != nil {
		return nil, err
	}

	terms := make([]*Term, 0, len(records))
	for _, rec := range records {
		t, err := s.filterTerm(ctx, rs, rec)
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	return terms, nil
}

// FindTermParent returns the slugs of the ancestors of a term, root first.
// The walk stops at a missing ancestor or a cycle.
func (s *Service) FindTermParent(ctx context.Context, set TermSet, id int64) ([]string, error) {
	t, err := s.rawTerm(ctx, set, id)
	if err != nil {
		return nil, err
	}
	return s.walkParents(ctx, t.ID, t.Parent, func(ctx context.Context, id int64) (string, int64, error) {
		p, err := s.rawTerm(ctx, set, id)
		if err != nil {
			return "", 0, err
		}
		return p.Slug, p.Parent, nil
	})
}

// SetContentTerm links a content item to a term
func (s *Service) SetContentTerm(ctx context.Context, typeID, contentID int64, set TermSet, termID int64) error {
	ct, err := s.linkTarget(ctx, typeID, contentID, set, termID)
	if err != nil {
		return err
	}

	_, err = s.setProperty(ctx, ct.PropertiesCollection(), PropertyInput{
		TypeID:  ct.ID,
		OwnerID: contentID,
		Name:    set.Key(),
		Value:   strconv.FormatInt(termID, 10),
		Mode:    Accumulate,
	})
	if err != nil {
		return err
	}

	s.clearGroups(ctx, contentsGroup(ct.ID))
	s.fire(ctx, HookSetContentTerm, contentID, ct.ID, set, termID)
	return nil
}

// DeleteContentTerm removes the link between a content item and a term
func (s *Service) DeleteContentTerm(ctx context.Context, typeID, contentID int64, set TermSet, termID int64) error {
	ct, err := s.contentTypeFor(ctx, typeID)
	if err != nil {
		return err
	}

	value := strconv.FormatInt(termID, 10)
	n, err := s.store.Delete(ctx, ct.PropertiesCollection(), propertyWhere(contentID, set.Key(), &value))
	if err != nil {
		return storageErr(err)
	}
	if n == 0 {
		return notFound("term link", value)
	}

	s.clearGroups(ctx, contentsGroup(ct.ID))
	s.fire(ctx, HookDeletedContentTerm, contentID, ct.ID, set, termID)
	return nil
}

// GetContentTerms returns the terms of set linked to a content item
func (s *Service) GetContentTerms(ctx context.Context, typeID, contentID int64, set TermSet) ([]*Term, error) {
	ct, err := s.contentTypeFor(ctx, typeID)
	if err != nil {
		return nil, err
	}
	props, err := s.getProperties(ctx, ct.PropertiesCollection(), contentID, set.Key(), nil)
	if err != nil {
		return nil, err
	}
	if len(props) == 0 {
		return []*Term{}, nil
	}

	ids := make([]int64, 0, len(props))
	for _, p := range props {
		if id, err := strconv.ParseInt(p.Value, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return s.GetTerms(ctx, TermQuery{Set: set, IDs: ids})
}

// linkTarget validates both ends of a content-term link
func (s *Service) linkTarget(ctx context.Context, typeID, contentID int64, set TermSet, termID int64) (*ContentType, error) {
	ct, err := s.contentTypeFor(ctx, typeID)
	if err != nil {
		return nil, err
	}
	if set.Kind != SetTaxonomy && set.TypeID != ct.ID {
		return nil, invalid("set", "%s terms of type %d cannot be linked to %s", set.Kind, set.TypeID, ct.Slug)
	}
	if _, err := s.GetContent(ctx, ct.ID, contentID); err != nil {
		return nil, err
	}
	if _, err := s.GetTerm(ctx, set, termID); err != nil {
		return nil, err
	}
	return ct, nil
}

func (s *Service) checkTermParent(ctx context.Context, rs *termSet, self, parent int64) error {
	if parent == 0 {
		return nil
	}
	if parent < 0 || parent == self {
		return invalid("parent", "invalid parent %d", parent)
	}
	if _, err := s.rawTerm(ctx, rs.TermSet, parent); err != nil {
		if IsNotFound(err) {
			return invalid("parent", "term %d does not exist", parent)
		}
		return err
	}
	if self == 0 {
		return nil
	}

	return s.checkAncestry(ctx, self, parent, func(ctx context.Context, id int64) (string, int64, error) {
		p, err := s.rawTerm(ctx, rs.TermSet, id)
		if err != nil {
			return "", 0, err
		}
		return p.Slug, p.Parent, nil
	})
}

func (s *Service) filterTerm(ctx context.Context, rs *termSet, rec storage.Record) (*Term, error) {
	return applyFilter(ctx, s.bus, FilterGetTerm, termFromRecord(rs, rec), rs.TermSet)
}

func termFromRecord(rs *termSet, rec storage.Record) *Term {
	id, _ := storage.Int64(rec[storage.ColumnID])
	parent, _ := storage.Int64(rec["parent"])
	t := &Term{
		ID:          id,
		Set:         rs.TermSet,
		Name:        storage.String(rec["name"]),
		Slug:        storage.String(rec["slug"]),
		Description: storage.String(rec["description"]),
		Parent:      parent,
		Created:     parseTime(rec["created"]),
		Updated:     parseTime(rec["updated"]),
	}
	if extra := rs.extraFields(); len(extra) > 0 {
		t.Fields = make(map[string]any, len(extra))
		for _, f := range extra {
			t.Fields[f] = rec[f]
		}
	}
	return t
}
