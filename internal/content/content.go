package content

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/conduit-lang/contenttype/internal/cache"
	"github.com/conduit-lang/contenttype/internal/storage"
	"github.com/conduit-lang/contenttype/internal/util/slug"
)

// Content statuses
const (
	StatusDraft   = "draft"
	StatusPending = "pending"
	StatusPrivate = "private"
	StatusPublic  = "public"
)

// systemColumns exist on every content collection regardless of fields
var systemColumns = []string{storage.ColumnID, "status", "slug", "parent", "template", "created", "updated"}

// integerFields are declared fields stored as integers
var integerFields = map[string]bool{"author": true}

// Content is one item of a content type
type Content struct {
	ID       int64          `json:"ID"`
	TypeID   int64          `json:"typeID"`
	Status   string         `json:"status"`
	Slug     string         `json:"slug"`
	Parent   int64          `json:"parent"`
	Template string         `json:"template,omitempty"`
	Created  time.Time      `json:"created"`
	Updated  time.Time      `json:"updated"`
	Fields   map[string]any `json:"fields"`

	// Permalink is derived by getContent subscribers, never stored
	Permalink string `json:"permalink,omitempty"`
}

// Title returns the title field, if the type declares one
func (c *Content) Title() string {
	return storage.String(c.Fields["title"])
}

// ContentInput carries the attributes of an add or update. Fields holds the
// type-specific values; keys the type does not declare are dropped.
type ContentInput struct {
	ID       int64
	TypeID   int64
	Status   string
	Slug     string
	Parent   *int64
	Template *string
	Fields   map[string]any
}

// PropertyGroup matches content owning properties, combined by Relation
type PropertyGroup = storage.PropertyGroup

// PropertyMatch is one (name, value) property condition
type PropertyMatch = storage.PropertyMatch

// Property group relations
const (
	RelationAnd = storage.RelationAnd
	RelationOr  = storage.RelationOr
)

// ContentQuery selects content of one type
type ContentQuery struct {
	TypeID int64
	Status []string
	Parent *int64
	Slug   string
	IDs    []int64
	// Where holds equality conditions on declared fields
	Where      map[string]any
	Properties []PropertyGroup
	OrderBy    string
	Desc       bool
	Limit      int
	Offset     int
}

// AddContent validates and stores a new content item
func (s *Service) AddContent(ctx context.Context, in ContentInput) (*Content, error) {
	ct, err := s.contentTypeFor(ctx, in.TypeID)
	if err != nil {
		return nil, err
	}

	v := &validation{}
	fields := declaredValues(ct, in.Fields)
	if ct.HasField("title") && strings.TrimSpace(storage.String(fields["title"])) == "" {
		v.add("title", "is required")
	}
	if ct.HasField("author") {
		if author, _ := storage.Int64(fields["author"]); author <= 0 {
			actor, err := s.currentUser(ctx)
			if err != nil {
				return nil, err
			}
			if actor == nil {
				v.add("author", "is required and no authenticated user is present")
			} else {
				fields["author"] = actor.ID
			}
		}
	}

	status := in.Status
	if status == "" {
		status = StatusDraft
	}
	validateStatus(v, status)

	var parent int64
	if in.Parent != nil {
		parent = *in.Parent
	}
	if err := v.err(); err != nil {
		return nil, err
	}
	if err := s.checkParent(ctx, ct, 0, parent); err != nil {
		return nil, err
	}

	id, err := s.store.IncrementID(ctx, ct.Storage)
	if err != nil {
		return nil, storageErr(err)
	}

	candidate := slug.Make(in.Slug)
	if candidate == "" {
		candidate = slug.Make(storage.String(fields["title"]))
	}
	if candidate == "" {
		candidate = strconv.FormatInt(id, 10)
	}

	stamp := s.timestamp()
	rec := storage.Record{
		storage.ColumnID: id,
		"status":         status,
		"parent":         parent,
		"template":       "",
		"created":        stamp,
		"updated":        stamp,
	}
	if in.Template != nil {
		rec["template"] = *in.Template
	}
	for name, value := range fields {
		rec[name] = value
	}

	_, err = s.insertWithSlug(ctx, ct.Storage, candidate, func(_ context.Context, sl string) (storage.Record, error) {
		rec["slug"] = sl
		return rec, nil
	})
	if err != nil {
		return nil, err
	}

	s.clearGroups(ctx, contentsGroup(ct.ID))
	s.fire(ctx, HookInsertedContent, id, ct.ID)
	return s.GetContent(ctx, ct.ID, id)
}

// UpdateContent patches a content item; only supplied attributes change
func (s *Service) UpdateContent(ctx context.Context, in ContentInput) (*Content, error) {
	if in.ID <= 0 {
		return nil, invalid("ID", "is required")
	}
	ct, err := s.contentTypeFor(ctx, in.TypeID)
	if err != nil {
		return nil, err
	}
	old, err := s.GetContent(ctx, ct.ID, in.ID)
	if err != nil {
		return nil, err
	}

	v := &validation{}
	patch := storage.Record{}
	for name, value := range declaredValues(ct, in.Fields) {
		patch[name] = value
	}
	if title, ok := patch["title"]; ok && strings.TrimSpace(storage.String(title)) == "" {
		v.add("title", "is required")
	}
	if in.Status != "" {
		validateStatus(v, in.Status)
		patch["status"] = in.Status
	}
	if in.Template != nil {
		patch["template"] = *in.Template
	}
	if err := v.err(); err != nil {
		return nil, err
	}
	if in.Parent != nil {
		if err := s.checkParent(ctx, ct, old.ID, *in.Parent); err != nil {
			return nil, err
		}
		patch["parent"] = *in.Parent
	}
	patch["updated"] = s.timestamp()

	candidate := slug.Make(in.Slug)
	if candidate != "" && !strings.EqualFold(candidate, old.Slug) {
		_, err = s.updateWithSlug(ctx, ct.Storage, old.ID, candidate, patch)
	} else {
		_, err = s.store.Update(ctx, ct.Storage, []storage.Condition{storage.Eq(storage.ColumnID, old.ID)}, patch)
		err = storageErr(err)
	}
	if err != nil {
		return nil, err
	}

	s.clearGroups(ctx, contentsGroup(ct.ID))
	s.fire(ctx, HookUpdatedContent, old.ID, ct.ID, old)
	return s.GetContent(ctx, ct.ID, old.ID)
}

// DeleteContent removes a content item. Its comments, properties and
// endpoint are removed by the deletedContent cascade.
func (s *Service) DeleteContent(ctx context.Context, typeID, id int64) error {
	if id <= 0 {
		return invalid("ID", "is required")
	}
	ct, err := s.contentTypeFor(ctx, typeID)
	if err != nil {
		return err
	}
	old, err := s.GetContent(ctx, ct.ID, id)
	if err != nil {
		return err
	}
	return s.removeContent(ctx, ct, old, s.fire)
}

// removeContent deletes the row of old and publishes deletedContent through
// notify
func (s *Service) removeContent(ctx context.Context, ct *ContentType, old *Content, notify notifier) error {
	_, err := s.store.Delete(ctx, ct.Storage, []storage.Condition{storage.Eq(storage.ColumnID, old.ID)})
	if err != nil {
		return storageErr(err)
	}
	s.clearGroups(ctx, contentsGroup(ct.ID))
	notify(ctx, HookDeletedContent, old, ct.ID, ct)
	return nil
}

// GetContent returns a content item by ID
func (s *Service) GetContent(ctx context.Context, typeID, id int64) (*Content, error) {
	return s.GetContentBy(ctx, typeID, storage.ColumnID, id)
}

// GetContentBy returns the content item whose ID or slug equals value
func (s *Service) GetContentBy(ctx context.Context, typeID int64, column string, value any) (*Content, error) {
	ct, rec, err := s.contentRecord(ctx, typeID, column, value)
	if err != nil {
		return nil, err
	}
	return s.filterContent(ctx, ct, rec)
}

// rawContent loads an item without running the getContent filter, for
// callers that are themselves part of the filter chain
func (s *Service) rawContent(ctx context.Context, typeID, id int64) (*Content, error) {
	ct, rec, err := s.contentRecord(ctx, typeID, storage.ColumnID, id)
	if err != nil {
		return nil, err
	}
	return contentFromRecord(ct, rec), nil
}

func (s *Service) contentRecord(ctx context.Context, typeID int64, column string, value any) (*ContentType, storage.Record, error) {
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
	ct, err := s.contentTypeFor(ctx, typeID)
	if err != nil {
		return nil, nil, err
	}

	key := cache.Fingerprint(map[string]any{"by": column, "value": value})
	records, err := s.getRecords(ctx, contentsGroup(ct.ID), key, ct.Storage, storage.Query{
		Where: []storage.Condition{storage.Eq(column, value)},
		Limit: 1,
	})
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, notFound(ct.Slug, value)
	}
	return ct, records[0], nil
}

// GetContents returns the content items matching q. Every row is passed
// through the getContent filter.
func (s *Service) GetContents(ctx context.Context, q ContentQuery) ([]*Content, error) {
	ct, err := s.contentTypeFor(ctx, q.TypeID)
	if err != nil {
		return nil, err
	}
	sq, err := contentQuery(ct, q)
	if err != nil {
		return nil, err
	}

	key := "list:" + contentFingerprint(q, true)
	records, err := s.getRecords(ctx, contentsGroup(ct.ID), key, ct.Storage, sq)
	if err != nil {
		return nil, err
	}

	items := make([]*Content, 0, len(records))
	for _, rec := range records {
		c, err := s.filterContent(ctx, ct, rec)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, nil
}

// CountContents returns how many items match q, ignoring paging
func (s *Service) CountContents(ctx context.Context, q ContentQuery) (int64, error) {
	ct, err := s.contentTypeFor(ctx, q.TypeID)
	if err != nil {
		return 0, err
	}
	sq, err := contentQuery(ct, q)
	if err != nil {
		return 0, err
	}
	return s.countRecords(ctx, contentsGroup(ct.ID), "count:"+contentFingerprint(q, false), ct.Storage, sq)
}

// FindContentParent returns the slugs of the ancestors of a content item,
// root first. The walk stops at a missing ancestor or a cycle.
func (s *Service) FindContentParent(ctx context.Context, typeID, id int64) ([]string, error) {
	c, err := s.rawContent(ctx, typeID, id)
	if err != nil {
		return nil, err
	}
	return s.walkParents(ctx, c.ID, c.Parent, func(ctx context.Context, id int64) (string, int64, error) {
		p, err := s.rawContent(ctx, typeID, id)
		if err != nil {
			return "", 0, err
		}
		return p.Slug, p.Parent, nil
	})
}

type parentFunc func(ctx context.Context, id int64) (slug string, parent int64, err error)

// walkParents follows parent links upwards from parent, prepending slugs
func (s *Service) walkParents(ctx context.Context, self, parent int64, load parentFunc) ([]string, error) {
	visited := map[int64]bool{self: true}
	var chain []string
	for parent > 0 && !visited[parent] {
		visited[parent] = true
		sl, next, err := load(ctx, parent)
		if IsNotFound(err) {
			break
		}
		if err != nil {
			return nil, err
		}
		chain = append([]string{sl}, chain...)
		parent = next
	}
	return chain, nil
}

// contentTypeFor loads a content-kind type for content operations
func (s *Service) contentTypeFor(ctx context.Context, typeID int64) (*ContentType, error) {
	if typeID <= 0 {
		return nil, invalid("typeID", "is required")
	}
	ct, err := s.GetContentType(ctx, typeID)
	if err != nil {
		return nil, err
	}
	if ct.Kind != KindContent {
		return nil, invalid("typeID", "%s is a %s type", ct.Slug, ct.Kind)
	}
	return ct, nil
}

// checkParent verifies parent is 0 or another item of the same type that
// does not descend from self
func (s *Service) checkParent(ctx context.Context, ct *ContentType, self, parent int64) error {
	if parent == 0 {
		return nil
	}
	if parent < 0 || parent == self {
		return invalid("parent", "invalid parent %d", parent)
	}
	if _, err := s.rawContent(ctx, ct.ID, parent); err != nil {
		if IsNotFound(err) {
			return invalid("parent", "%s %d does not exist", ct.Slug, parent)
		}
		return err
	}
	if self == 0 {
		return nil
	}

	return s.checkAncestry(ctx, self, parent, func(ctx context.Context, id int64) (string, int64, error) {
		p, err := s.rawContent(ctx, ct.ID, id)
		if err != nil {
			return "", 0, err
		}
		return p.Slug, p.Parent, nil
	})
}

// checkAncestry fails when self is among the ancestors of parent, parent
// itself included
func (s *Service) checkAncestry(ctx context.Context, self, parent int64, load parentFunc) error {
	_, err := s.walkParents(ctx, 0, parent, func(ctx context.Context, id int64) (string, int64, error) {
		if id == self {
			return "", 0, errCycle
		}
		return load(ctx, id)
	})
	if errors.Is(err, errCycle) {
		return invalid("parent", "%d is a descendant of %d", parent, self)
	}
	return err
}

func (s *Service) filterContent(ctx context.Context, ct *ContentType, rec storage.Record) (*Content, error) {
	return applyFilter(ctx, s.bus, FilterGetContent, contentFromRecord(ct, rec), ct)
}

func validateStatus(v *validation, status string) {
	switch status {
	case StatusDraft, StatusPending, StatusPrivate, StatusPublic:
	default:
		v.add("status", "must be draft, pending, private or public, got %q", status)
	}
}

// fieldColumns returns the declared fields that are not system columns
func fieldColumns(ct *ContentType) []string {
	base := systemColumns
	if ct.Kind == KindTaxonomy {
		base = termColumns
	}
	return setDifference(ct.Fields, base)
}

// declaredValues keeps the values of declared fields, coerced to their
// column types
func declaredValues(ct *ContentType, values map[string]any) map[string]any {
	out := make(map[string]any)
	for _, name := range fieldColumns(ct) {
		value, ok := values[name]
		if !ok {
			continue
		}
		out[name] = storage.Coerce(fieldType(name), value)
	}
	return out
}

func fieldType(name string) storage.ColumnType {
	if integerFields[name] {
		return storage.TypeInteger
	}
	return storage.TypeText
}

func contentFromRecord(ct *ContentType, rec storage.Record) *Content {
	id, _ := storage.Int64(rec[storage.ColumnID])
	parent, _ := storage.Int64(rec["parent"])
	c := &Content{
		ID:       id,
		TypeID:   ct.ID,
		Status:   storage.String(rec["status"]),
		Slug:     storage.String(rec["slug"]),
		Parent:   parent,
		Template: storage.String(rec["template"]),
		Created:  parseTime(rec["created"]),
		Updated:  parseTime(rec["updated"]),
		Fields:   make(map[string]any),
	}
	for _, name := range fieldColumns(ct) {
		c.Fields[name] = rec[name]
	}
	return c
}

func contentQuery(ct *ContentType, q ContentQuery) (storage.Query, error) {
	known := func(column string) bool {
		for _, c := range systemColumns {
			if c == column {
				return true
			}
		}
		return ct.HasField(column)
	}

	v := &validation{}
	sq := storage.Query{
		OrderBy: q.OrderBy,
		Desc:    q.Desc,
		Limit:   q.Limit,
		Offset:  q.Offset,
	}
	if len(q.Status) > 0 {
		sq.Where = append(sq.Where, storage.In("status", q.Status))
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
	for _, name := range sortedKeys(q.Where) {
		if !known(name) {
			v.add("where", "unknown field %q", name)
			continue
		}
		sq.Where = append(sq.Where, storage.Eq(name, storage.Coerce(fieldType(name), q.Where[name])))
	}
	if q.OrderBy != "" && !known(q.OrderBy) {
		v.add("orderBy", "unknown field %q", q.OrderBy)
	}
	if len(q.Properties) > 0 {
		sq.Properties = &storage.PropertyFilter{
			Collection: ct.PropertiesCollection(),
			Groups:     q.Properties,
		}
	}
	return sq, v.err()
}

func contentFingerprint(q ContentQuery, paged bool) string {
	params := map[string]any{
		"status": q.Status,
		"slug":   q.Slug,
		"ids":    q.IDs,
		"where":  q.Where,
		"props":  q.Properties,
		"order":  q.OrderBy,
		"desc":   q.Desc,
	}
	if q.Parent != nil {
		params["parent"] = "p" + strconv.FormatInt(*q.Parent, 10)
	}
	if paged {
		params["limit"] = q.Limit
		params["offset"] = q.Offset
	}
	return cache.Fingerprint(params)
}
