package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/contenttype/internal/content"
	"github.com/conduit-lang/contenttype/internal/endpoint"
	"github.com/conduit-lang/contenttype/internal/storage/sqlstore"
	"github.com/conduit-lang/contenttype/internal/web/auth"
)

type fixture struct {
	engine    *content.Service
	endpoints *endpoint.Resolver
	post      *content.ContentType
	hello     *content.Content
	news      *content.Term
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	store := sqlstore.New(db, sqlstore.SQLite{})
	t.Cleanup(func() { store.Close() })

	engine, err := content.New(context.Background(), store)
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	resolver := endpoint.New(engine)
	t.Cleanup(resolver.Close)

	ctx := content.WithActor(context.Background(), &content.Actor{ID: 1})
	f := &fixture{engine: engine, endpoints: resolver}

	f.post, err = engine.AddContentType(ctx, content.ContentTypeInput{
		Name:          "Post",
		HasArchive:    content.Ptr(true),
		HasCategories: content.Ptr(true),
	})
	require.NoError(t, err)

	f.hello, err = engine.AddContent(ctx, content.ContentInput{
		TypeID: f.post.ID,
		Status: content.StatusPublic,
		Fields: map[string]any{"title": "Hello"},
	})
	require.NoError(t, err)

	_, err = engine.AddContent(ctx, content.ContentInput{
		TypeID: f.post.ID,
		Status: content.StatusDraft,
		Fields: map[string]any{"title": "Unfinished"},
	})
	require.NoError(t, err)

	f.news, err = engine.AddTerm(ctx, content.TermInput{Set: content.Categories(f.post.ID), Name: "News"})
	require.NoError(t, err)
	require.NoError(t, engine.SetContentTerm(ctx, f.post.ID, f.hello.ID, content.Categories(f.post.ID), f.news.ID))

	genre, err := engine.AddContentType(ctx, content.ContentTypeInput{
		Name:       "Genre",
		Kind:       content.KindTaxonomy,
		HasArchive: content.Ptr(true),
	})
	require.NoError(t, err)
	for _, name := range []string{"Jazz", "Blues"} {
		_, err = engine.AddTerm(ctx, content.TermInput{Set: content.Taxonomy(genre.ID), Name: name})
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) router(authService *auth.AuthService) http.Handler {
	return NewRouter(RouterConfig{Engine: f.engine, Endpoints: f.endpoints, Auth: authService})
}

func get(t *testing.T, h http.Handler, path, token string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]any
	if rec.Body.Len() > 0 && rec.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestRouter_ContentPage(t *testing.T) {
	f := setupFixture(t)
	h := f.router(nil)

	rec, body := get(t, h, "/post/hello", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/post/hello", body["path"])

	c := body["content"].(map[string]any)
	assert.Equal(t, "/post/hello", c["permalink"])
	assert.Equal(t, "Hello", c["fields"].(map[string]any)["title"])

	// lookups are case and trailing slash insensitive
	rec, _ = get(t, h, "/POST/Hello/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_Archive(t *testing.T) {
	f := setupFixture(t)
	h := f.router(nil)

	rec, body := get(t, h, "/post", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "post", body["contentType"].(map[string]any)["slug"])
	assert.EqualValues(t, 1, body["total"])
	require.Len(t, body["items"], 1)
	assert.Equal(t, "/post/hello", body["items"].([]any)[0].(map[string]any)["permalink"])

	rec, body = get(t, h, "/post?offset=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, body["items"])
	assert.EqualValues(t, 1, body["total"])
}

func TestRouter_CategoryPage(t *testing.T) {
	f := setupFixture(t)
	h := f.router(nil)

	rec, body := get(t, h, "/post/category/news", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "News", body["term"].(map[string]any)["name"])
	assert.Equal(t, "/post/category/news", body["term"].(map[string]any)["permalink"])
	assert.EqualValues(t, 1, body["total"])
}

func TestRouter_Taxonomy(t *testing.T) {
	f := setupFixture(t)
	h := f.router(nil)

	rec, body := get(t, h, "/genre", "")
	require.Equal(t, http.StatusOK, rec.Code)
	terms := body["terms"].([]any)
	require.Len(t, terms, 2)
	assert.Equal(t, "Blues", terms[0].(map[string]any)["name"])

	rec, body = get(t, h, "/genre/jazz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Jazz", body["term"].(map[string]any)["name"])
}

func TestRouter_Errors(t *testing.T) {
	f := setupFixture(t)
	h := f.router(nil)

	tests := []struct {
		path   string
		status int
	}{
		{"/nope", http.StatusNotFound},
		{"/post/unfinished", http.StatusNotFound},
		{"/post?limit=abc", http.StatusBadRequest},
		{"/post?limit=0", http.StatusBadRequest},
		{"/post?offset=-1", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec, body := get(t, h, tt.path, "")
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, body["code"])
		})
	}

	rec, _ := get(t, h, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_EndpointsRequireActor(t *testing.T) {
	f := setupFixture(t)
	authService := auth.NewAuthService("test-secret", time.Hour)
	h := f.router(authService)

	rec, _ := get(t, h, "/_endpoints", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = get(t, h, "/_endpoints", "bogus")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := authService.GenerateToken(&content.Actor{ID: 1})
	require.NoError(t, err)

	rec, _ = get(t, h, "/_endpoints", token)
	require.Equal(t, http.StatusOK, rec.Code)

	var listed []endpoint.Endpoint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Equal(t, f.endpoints.All(), listed)

	// the public surface stays anonymous
	rec, _ = get(t, h, "/post/hello", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
