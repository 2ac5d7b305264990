package content

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/conduit-lang/contenttype/internal/cache"
	"github.com/conduit-lang/contenttype/internal/storage"
	"github.com/conduit-lang/contenttype/internal/util/slug"
	ustrings "github.com/conduit-lang/contenttype/internal/util/strings"
)

// Kind distinguishes content types from taxonomies
type Kind string

const (
	KindContent  Kind = "content"
	KindTaxonomy Kind = "taxonomy"
)

// Content type statuses
const (
	TypeActive   = "active"
	TypeInactive = "inactive"
	TypeBuiltin  = "builtin"
)

var (
	defaultContentFields  = []string{"title", "description", "content", "author", "slug"}
	defaultTaxonomyFields = []string{"name", "description", "slug"}
)

// ContentType is a runtime-declared schema
type ContentType struct {
	ID            int64          `json:"ID"`
	Kind          Kind           `json:"kind"`
	Name          string         `json:"name"`
	Slug          string         `json:"slug"`
	Status        string         `json:"status"`
	Fields        []string       `json:"fields"`
	Hierarchical  bool           `json:"hierarchical"`
	HasArchive    bool           `json:"hasArchive"`
	HasPage       bool           `json:"hasPage"`
	HasComments   bool           `json:"hasComments"`
	HasCategories bool           `json:"hasCategories"`
	HasTags       bool           `json:"hasTags"`
	Settings      map[string]any `json:"settings,omitempty"`
	Storage       string         `json:"storage"`
	Created       time.Time      `json:"created"`
	Updated       time.Time      `json:"updated"`
}

// HasField reports whether the type declares field
func (ct *ContentType) HasField(field string) bool {
	for _, f := range ct.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// Collection names derived from the type's storage name
func (ct *ContentType) PropertiesCollection() string { return ct.Storage + "_properties" }
func (ct *ContentType) CommentsCollection() string   { return ct.Storage + "_comments" }
func (ct *ContentType) CategoriesCollection() string { return ct.Storage + "_categories" }
func (ct *ContentType) TagsCollection() string       { return ct.Storage + "_tags" }

// ContentTypeInput carries the attributes of an add or update. Nil flags
// and empty strings leave the stored value untouched on update.
type ContentTypeInput struct {
	ID            int64
	Kind          Kind
	Name          string
	Slug          string
	Status        string
	Fields        []string
	Hierarchical  *bool
	HasArchive    *bool
	HasPage       *bool
	HasComments   *bool
	HasCategories *bool
	HasTags       *bool
	Settings      map[string]any
}

// Ptr returns a pointer to v, for the optional fields of inputs and queries
func Ptr[T any](v T) *T {
	return &v
}

// ContentTypeQuery filters GetContentTypes
type ContentTypeQuery struct {
	Kind   Kind
	Status string
	Limit  int
	Offset int
}

// AddContentType validates and stores a new content type, then publishes
// insertedContentType so its storage gets provisioned
func (s *Service) AddContentType(ctx context.Context, in ContentTypeInput) (*ContentType, error) {
	ct := &ContentType{
		Kind:     in.Kind,
		Name:     strings.TrimSpace(in.Name),
		Status:   in.Status,
		Fields:   cleanFields(in.Fields),
		Settings: in.Settings,
	}
	if ct.Kind == "" {
		ct.Kind = KindContent
	}
	if ct.Status == "" {
		ct.Status = TypeActive
	}
	if len(ct.Fields) == 0 {
		ct.Fields = append([]string(nil), defaultContentFields...)
		if ct.Kind == KindTaxonomy {
			ct.Fields = append([]string(nil), defaultTaxonomyFields...)
		}
	}
	applyFlags(ct, in)
	if err := validateContentType(ct); err != nil {
		return nil, err
	}

	coll := s.typesCollection().Name
	id, err := s.store.IncrementID(ctx, coll)
	if err != nil {
		return nil, storageErr(err)
	}
	ct.ID = id

	candidate := slug.Make(in.Slug)
	if candidate == "" {
		candidate = slug.Make(ct.Name)
	}
	if candidate == "" {
		candidate = strconv.FormatInt(id, 10)
	}

	stamp := s.timestamp()
	ct.Created, _ = time.Parse(time.RFC3339, stamp)
	ct.Updated = ct.Created

	ct.Slug, err = s.insertWithSlug(ctx, coll, candidate, func(ctx context.Context, sl string) (storage.Record, error) {
		name, err := s.storageName(ctx, sl, id)
		if err != nil {
			return nil, err
		}
		ct.Slug = sl
		ct.Storage = name
		rec := typeRecord(ct)
		rec["created"] = stamp
		rec["updated"] = stamp
		return rec, nil
	})
	if err != nil {
		return nil, err
	}

	s.clearGroups(ctx, groupContentTypes)
	s.fire(ctx, HookInsertedContentType, ct.ID, ct)
	return ct, nil
}

// UpdateContentType merges in over the stored type and publishes
// updatedContentType so its storage gets altered
func (s *Service) UpdateContentType(ctx context.Context, in ContentTypeInput) (*ContentType, error) {
	if in.ID <= 0 {
		return nil, invalid("ID", "is required")
	}
	old, err := s.GetContentType(ctx, in.ID)
	if err != nil {
		return nil, err
	}

	ct := *old
	ct.Fields = append([]string(nil), old.Fields...)
	if in.Kind != "" && in.Kind != old.Kind {
		return nil, invalid("kind", "cannot change from %s to %s", old.Kind, in.Kind)
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		ct.Name = name
	}
	if in.Status != "" {
		ct.Status = in.Status
	}
	if fields := cleanFields(in.Fields); len(fields) > 0 {
		ct.Fields = fields
	}
	if in.Settings != nil {
		ct.Settings = in.Settings
	}
	applyFlags(&ct, in)
	if err := validateContentType(&ct); err != nil {
		return nil, err
	}

	stamp := s.timestamp()
	ct.Updated, _ = time.Parse(time.RFC3339, stamp)
	patch := typeRecord(&ct)
	delete(patch, storage.ColumnID)
	delete(patch, "slug")
	delete(patch, "storage")
	delete(patch, "created")
	patch["updated"] = stamp

	coll := s.typesCollection().Name
	candidate := slug.Make(in.Slug)
	if candidate != "" && !strings.EqualFold(candidate, old.Slug) {
		ct.Slug, err = s.updateWithSlug(ctx, coll, ct.ID, candidate, patch)
	} else {
		_, err = s.store.Update(ctx, coll, []storage.Condition{storage.Eq(storage.ColumnID, ct.ID)}, patch)
		err = storageErr(err)
	}
	if err != nil {
		return nil, err
	}

	s.clearGroups(ctx, groupContentTypes)
	s.fire(ctx, HookUpdatedContentType, ct.ID, &ct, old)
	return &ct, nil
}

// DeleteContentType removes a content type. Its content, terms and storage
// are removed by the deletedContentType cascade.
func (s *Service) DeleteContentType(ctx context.Context, id int64) error {
	if id <= 0 {
		return invalid("ID", "is required")
	}
	old, err := s.GetContentType(ctx, id)
	if err != nil {
		return err
	}

	_, err = s.store.Delete(ctx, s.typesCollection().Name, []storage.Condition{storage.Eq(storage.ColumnID, id)})
	if err != nil {
		return storageErr(err)
	}

	s.clearGroups(ctx, groupContentTypes)
	s.fire(ctx, HookDeletedContentType, id, old)
	return nil
}

// GetContentType returns a content type by ID
func (s *Service) GetContentType(ctx context.Context, id int64) (*ContentType, error) {
	return s.GetContentTypeBy(ctx, storage.ColumnID, id)
}

// GetContentTypeBy returns the content type whose ID or slug equals value
func (s *Service) GetContentTypeBy(ctx context.Context, column string, value any) (*ContentType, error) {
	if column != storage.ColumnID && column != "slug" {
		return nil, invalid("column", "must be ID or slug, got %q", column)
	}
	if column == storage.ColumnID {
		id, ok := storage.Int64(value)
		if !ok || id <= 0 {
			return nil, invalid("ID", "must be a positive integer")
		}
		value = id
	}

	key := cache.Fingerprint(map[string]any{"by": column, "value": value})
	records, err := s.getRecords(ctx, groupContentTypes, key, s.typesCollection().Name, storage.Query{
		Where: []storage.Condition{storage.Eq(column, value)},
		Limit: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, notFound("content type", value)
	}
	return s.contentTypeFromRecord(ctx, records[0])
}

// GetContentTypes lists content types ordered by ID
func (s *Service) GetContentTypes(ctx context.Context, q ContentTypeQuery) ([]*ContentType, error) {
	var where []storage.Condition
	if q.Kind != "" {
		where = append(where, storage.Eq("kind", string(q.Kind)))
	}
	if q.Status != "" {
		where = append(where, storage.Eq("status", q.Status))
	}

	key := cache.Fingerprint(map[string]any{"kind": q.Kind, "status": q.Status, "limit": q.Limit, "offset": q.Offset})
	records, err := s.getRecords(ctx, groupContentTypes, "list:"+key, s.typesCollection().Name, storage.Query{
		Where:  where,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
	if err != nil {
		return nil, err
	}

	types := make([]*ContentType, 0, len(records))
	for _, rec := range records {
		ct, err := s.contentTypeFromRecord(ctx, rec)
		if err != nil {
			return nil, err
		}
		types = append(types, ct)
	}
	return types, nil
}

func (s *Service) contentTypeFromRecord(ctx context.Context, rec storage.Record) (*ContentType, error) {
	ct, err := typeFromRecord(rec)
	if err != nil {
		return nil, err
	}
	return applyFilter(ctx, s.bus, FilterGetContentType, ct)
}

// storageName derives a collection name from the slug, falling back to a
// suffixed name when another type already owns it. Callers hold the lock
// of the types collection.
func (s *Service) storageName(ctx context.Context, candidate string, id int64) (string, error) {
	ident := ustrings.ToIdentifier(candidate)
	if ident == "" {
		ident = "type"
	}
	name := truncate(s.prefix+ident, maxStorageName)

	n, err := s.store.Count(ctx, s.typesCollection().Name, storage.Query{
		Where: []storage.Condition{storage.Eq("storage", name)},
	})
	if err != nil {
		return "", storageErr(err)
	}
	if n > 0 {
		suffix := "_" + strconv.FormatInt(id, 10)
		name = truncate(name, maxStorageName-len(suffix)) + suffix
	}
	return name, nil
}

// maxStorageName leaves room for the longest collection suffix within the
// 63 character identifier limit
const maxStorageName = 63 - len("_categories")

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func applyFlags(ct *ContentType, in ContentTypeInput) {
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&ct.Hierarchical, in.Hierarchical)
	set(&ct.HasArchive, in.HasArchive)
	set(&ct.HasPage, in.HasPage)
	set(&ct.HasComments, in.HasComments)
	set(&ct.HasCategories, in.HasCategories)
	set(&ct.HasTags, in.HasTags)
}

// cleanFields strips blank and repeated field names, keeping order
func cleanFields(fields []string) []string {
	seen := make(map[string]bool, len(fields))
	var out []string
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

func validateContentType(ct *ContentType) error {
	v := &validation{}
	if ct.Name == "" {
		v.add("name", "is required")
	}
	switch ct.Kind {
	case KindContent, KindTaxonomy:
	default:
		v.add("kind", "must be content or taxonomy, got %q", ct.Kind)
	}
	switch ct.Status {
	case TypeActive, TypeInactive, TypeBuiltin:
	default:
		v.add("status", "must be active, inactive or builtin, got %q", ct.Status)
	}
	if ct.Kind == KindContent && len(ct.Fields) == 0 {
		v.add("fields", "must not be empty")
	}
	builtin := systemColumns
	if ct.Kind == KindTaxonomy {
		builtin = termColumns
	}
	// column names are case-insensitive on sqlite and postgres unquoted
	seen := make(map[string]string, len(ct.Fields))
	for _, f := range ct.Fields {
		if !storage.ValidIdentifier(f) {
			v.add("fields", "invalid field name %q", f)
			continue
		}
		folded := strings.ToLower(f)
		if prev, ok := seen[folded]; ok {
			v.add("fields", "field %q differs from %q only in case", f, prev)
			continue
		}
		seen[folded] = f
		for _, col := range builtin {
			if f != col && strings.EqualFold(f, col) {
				v.add("fields", "field %q differs from built-in column %q only in case", f, col)
			}
		}
	}
	return v.err()
}

func typeRecord(ct *ContentType) storage.Record {
	fields, _ := json.Marshal(ct.Fields)
	settings := ""
	if len(ct.Settings) > 0 {
		data, _ := json.Marshal(ct.Settings)
		settings = string(data)
	}
	return storage.Record{
		storage.ColumnID: ct.ID,
		"kind":           string(ct.Kind),
		"name":           ct.Name,
		"slug":           ct.Slug,
		"status":         ct.Status,
		"fields":         string(fields),
		"hierarchical":   boolInt(ct.Hierarchical),
		"has_archive":    boolInt(ct.HasArchive),
		"has_page":       boolInt(ct.HasPage),
		"has_comments":   boolInt(ct.HasComments),
		"has_categories": boolInt(ct.HasCategories),
		"has_tags":       boolInt(ct.HasTags),
		"settings":       settings,
		"storage":        ct.Storage,
		"created":        ct.Created.UTC().Format(time.RFC3339),
		"updated":        ct.Updated.UTC().Format(time.RFC3339),
	}
}

func typeFromRecord(rec storage.Record) (*ContentType, error) {
	id, _ := storage.Int64(rec[storage.ColumnID])
	ct := &ContentType{
		ID:            id,
		Kind:          Kind(storage.String(rec["kind"])),
		Name:          storage.String(rec["name"]),
		Slug:          storage.String(rec["slug"]),
		Status:        storage.String(rec["status"]),
		Hierarchical:  intBool(rec["hierarchical"]),
		HasArchive:    intBool(rec["has_archive"]),
		HasPage:       intBool(rec["has_page"]),
		HasComments:   intBool(rec["has_comments"]),
		HasCategories: intBool(rec["has_categories"]),
		HasTags:       intBool(rec["has_tags"]),
		Storage:       storage.String(rec["storage"]),
		Created:       parseTime(rec["created"]),
		Updated:       parseTime(rec["updated"]),
	}
	if raw := storage.String(rec["fields"]); raw != "" {
		if err := json.Unmarshal([]byte(raw), &ct.Fields); err != nil {
			return nil, fmt.Errorf("content type %d: malformed fields: %w", id, err)
		}
	}
	if raw := storage.String(rec["settings"]); raw != "" {
		if err := json.Unmarshal([]byte(raw), &ct.Settings); err != nil {
			return nil, fmt.Errorf("content type %d: malformed settings: %w", id, err)
		}
	}
	return ct, nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func intBool(v any) bool {
	i, _ := storage.Int64(v)
	return i != 0
}

func parseTime(v any) time.Time {
	t, err := time.Parse(time.RFC3339, storage.String(v))
	if err != nil {
		return time.Time{}
	}
	return t
}
