// Package endpoint maintains the routing table consulted by the HTTP layer:
// absolute paths mapped to the resources they serve. The table is derived
// from content engine state through hook subscriptions and can be rebuilt
// from scratch at any time.
package endpoint

import (
	"strconv"
	"strings"
)

// Type is the kind of resource an endpoint serves
type Type string

const (
	Archive     Type = "archive"
	Category    Type = "category"
	Tag         Type = "tag"
	ContentPage Type = "content"
	TaxPage     Type = "taxPage"
	TaxArchive  Type = "taxArchive"
)

// Value describes the resource behind a path
type Value struct {
	Type      Type  `json:"type"`
	TypeID    int64 `json:"typeID"`
	ContentID int64 `json:"contentID,omitempty"`
	CatID     int64 `json:"catID,omitempty"`
	TagID     int64 `json:"tagID,omitempty"`
	TermID    int64 `json:"termID,omitempty"`
}

// owner identifies the entity an endpoint belongs to
func (v Value) owner() string {
	id := v.ContentID
	switch v.Type {
	case Category:
		id = v.CatID
	case Tag:
		id = v.TagID
	case TaxPage:
		id = v.TermID
	}
	return string(v.Type) + ":" + strconv.FormatInt(v.TypeID, 10) + ":" + strconv.FormatInt(id, 10)
}

// Endpoint is one row of the routing table
type Endpoint struct {
	Path  string `json:"path"`
	Value Value  `json:"value"`
}

// Join builds an absolute path from slug segments, skipping empty ones
func Join(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		s = strings.Trim(s, "/")
		if s != "" {
			parts = append(parts, s)
		}
	}
	return "/" + strings.Join(parts, "/")
}

// Clean normalizes a request path for lookup: one leading slash, no
// trailing slash, lower case
func Clean(path string) string {
	return Join(strings.Split(strings.ToLower(path), "/")...)
}
