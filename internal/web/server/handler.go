package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/conduit-lang/contenttype/internal/content"
	"github.com/conduit-lang/contenttype/internal/endpoint"
	"github.com/conduit-lang/contenttype/internal/storage"
	"github.com/conduit-lang/contenttype/internal/web/auth"
	"github.com/conduit-lang/contenttype/internal/web/middleware"
	"github.com/conduit-lang/contenttype/internal/web/response"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

var errBadPaging = errors.New("limit must be a positive integer and offset a non-negative one")

// RouterConfig configures the HTTP surface of the engine
type RouterConfig struct {
	Engine    *content.Service
	Endpoints *endpoint.Resolver
	Logger    *zap.Logger
	// Auth verifies bearer tokens; nil serves every request anonymously
	Auth *auth.AuthService
}

// Resource is the body served for a resolved path
type Resource struct {
	Path        string               `json:"path"`
	Endpoint    endpoint.Value       `json:"endpoint"`
	ContentType *content.ContentType `json:"contentType,omitempty"`
	Content     *content.Content     `json:"content,omitempty"`
	Term        *content.Term        `json:"term,omitempty"`
	Items       []*content.Content   `json:"items,omitempty"`
	Terms       []*content.Term      `json:"terms,omitempty"`
	Total       *int64               `json:"total,omitempty"`
}

type page struct {
	limit, offset int
}

type handler struct {
	engine    *content.Service
	endpoints *endpoint.Resolver
	logger    *zap.Logger
}

// NewRouter builds the chi router: GET /* resolves a path through the
// endpoint table and serves the resource behind it
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{engine: cfg.Engine, endpoints: cfg.Endpoints, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.ETag())
	if cfg.Auth != nil {
		r.Use(middleware.Authenticate(cfg.Auth))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		response.RenderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.With(middleware.RequireActor()).Get("/_endpoints", h.listEndpoints)
	r.Get("/*", h.resolve)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.RenderNotFound(w, "")
	})
	return r
}

func (h *handler) listEndpoints(w http.ResponseWriter, r *http.Request) {
	response.RenderJSON(w, http.StatusOK, h.endpoints.All())
}

func (h *handler) resolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	path := endpoint.Clean(r.URL.Path)

	v, ok := h.endpoints.Lookup(ctx, path)
	if !ok {
		response.RenderNotFound(w, "")
		return
	}

	p, err := parsePage(r)
	if err != nil {
		response.RenderError(w, http.StatusBadRequest, err)
		return
	}

	res := &Resource{Path: path, Endpoint: v}
	if err := h.load(ctx, res, p); err != nil {
		if !content.IsNotFound(err) {
			h.logger.Error("failed to load endpoint resource",
				zap.String("path", path),
				zap.String("type", string(v.Type)),
				zap.Error(err))
		}
		response.RenderEngineError(w, err)
		return
	}
	response.RenderJSON(w, http.StatusOK, res)
}

// load fills res with the resource of its endpoint
func (h *handler) load(ctx context.Context, res *Resource, p page) error {
	v := res.Endpoint
	switch v.Type {
	case endpoint.ContentPage:
		c, err := h.engine.GetContent(ctx, v.TypeID, v.ContentID)
		if err != nil {
			return err
		}
		res.Content = c
		return nil

	case endpoint.Archive:
		ct, err := h.engine.GetContentType(ctx, v.TypeID)
		if err != nil {
			return err
		}
		res.ContentType = ct
		return h.loadItems(ctx, res, content.ContentQuery{TypeID: v.TypeID}, p)

	case endpoint.Category, endpoint.Tag:
		set, id := content.Categories(v.TypeID), v.CatID
		if v.Type == endpoint.Tag {
			set, id = content.Tags(v.TypeID), v.TagID
		}
		t, err := h.engine.GetTerm(ctx, set, id)
		if err != nil {
			return err
		}
		res.Term = t
		return h.loadItems(ctx, res, content.ContentQuery{
			TypeID:     v.TypeID,
			Properties: []content.PropertyGroup{content.TermFilter(set, id)},
		}, p)

	case endpoint.TaxArchive:
		ct, err := h.engine.GetContentType(ctx, v.TypeID)
		if err != nil {
			return err
		}
		terms, err := h.engine.GetTerms(ctx, content.TermQuery{
			Set:     content.Taxonomy(v.TypeID),
			OrderBy: "name",
			Limit:   p.limit,
			Offset:  p.offset,
		})
		if err != nil {
			return err
		}
		res.ContentType = ct
		res.Terms = terms
		return nil

	case endpoint.TaxPage:
		t, err := h.engine.GetTerm(ctx, content.Taxonomy(v.TypeID), v.TermID)
		if err != nil {
			return err
		}
		res.Term = t
		return nil
	}
	return content.ErrNotFound
}

// loadItems lists the public content matching q, newest first
func (h *handler) loadItems(ctx context.Context, res *Resource, q content.ContentQuery, p page) error {
	q.Status = []string{content.StatusPublic}
	q.OrderBy = storage.ColumnID
	q.Desc = true
	q.Limit = p.limit
	q.Offset = p.offset

	items, err := h.engine.GetContents(ctx, q)
	if err != nil {
		return err
	}
	total, err := h.engine.CountContents(ctx, q)
	if err != nil {
		return err
	}
	res.Items = items
	res.Total = &total
	return nil
}

func parsePage(r *http.Request) (page, error) {
	p := page{limit: defaultPageSize}
	query := r.URL.Query()

	if s := query.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return p, errBadPaging
		}
		p.limit = min(n, maxPageSize)
	}
	if s := query.Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return p, errBadPaging
		}
		p.offset = n
	}
	return p, nil
}
