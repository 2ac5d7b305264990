package endpoint

import (
	"context"
	"database/sql"
	"testing"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/contenttype/internal/cache"
	"github.com/conduit-lang/contenttype/internal/content"
	"github.com/conduit-lang/contenttype/internal/storage/sqlstore"
)

func setupTestEngine(t *testing.T, opts ...content.Option) *content.Service {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	store := sqlstore.New(db, sqlstore.SQLite{})
	t.Cleanup(func() { store.Close() })

	engine, err := content.New(context.Background(), store, opts...)
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	return engine
}

func setupTestResolver(t *testing.T) (*content.Service, *Resolver) {
	t.Helper()

	engine := setupTestEngine(t)
	r := New(engine)
	t.Cleanup(r.Close)
	return engine, r
}

func testContext() context.Context {
	return content.WithActor(context.Background(), &content.Actor{ID: 1})
}

func addType(t *testing.T, engine *content.Service, in content.ContentTypeInput) *content.ContentType {
	t.Helper()
	ct, err := engine.AddContentType(testContext(), in)
	require.NoError(t, err)
	return ct
}

func addItem(t *testing.T, engine *content.Service, typeID int64, title, status string, parent int64) *content.Content {
	t.Helper()
	c, err := engine.AddContent(testContext(), content.ContentInput{
		TypeID: typeID,
		Status: status,
		Parent: content.Ptr(parent),
		Fields: map[string]any{"title": title},
	})
	require.NoError(t, err)
	return c
}

func paths(r *Resolver) []string {
	var out []string
	for _, e := range r.All() {
		out = append(out, e.Path)
	}
	return out
}

func TestJoinAndClean(t *testing.T) {
	assert.Equal(t, "/", Join())
	assert.Equal(t, "/post/a/b", Join("post", "", "/a/", "b"))
	assert.Equal(t, "/post/hello", Clean("POST//hello/"))
	assert.Equal(t, "/", Clean(""))
}

func TestResolver_ContentEndpoints(t *testing.T) {
	engine, r := setupTestResolver(t)
	ctx := testContext()

	post := addType(t, engine, content.ContentTypeInput{Name: "Post", HasArchive: content.Ptr(true)})
	assert.Equal(t, []string{"/post"}, paths(r))

	v, ok := r.Lookup(ctx, "/post")
	require.True(t, ok)
	assert.Equal(t, Value{Type: Archive, TypeID: post.ID}, v)

	hello := addItem(t, engine, post.ID, "Hello", content.StatusPublic, 0)
	assert.Equal(t, "/post/hello", hello.Permalink)
	addItem(t, engine, post.ID, "Secret", content.StatusDraft, 0)
	child := addItem(t, engine, post.ID, "Child", content.StatusPublic, hello.ID)
	assert.Equal(t, "/post/hello/child", child.Permalink)

	assert.Equal(t, []string{"/post", "/post/hello", "/post/hello/child"}, paths(r))

	v, ok = r.Lookup(ctx, "/Post/Hello/")
	require.True(t, ok)
	assert.Equal(t, Value{Type: ContentPage, TypeID: post.ID, ContentID: hello.ID}, v)

	_, ok = r.Lookup(ctx, "/post/secret")
	assert.False(t, ok)
}

func TestResolver_SlugChangeMovesDescendants(t *testing.T) {
	engine, r := setupTestResolver(t)
	ctx := testContext()

	post := addType(t, engine, content.ContentTypeInput{Name: "Post"})
	hello := addItem(t, engine, post.ID, "Hello", content.StatusPublic, 0)
	addItem(t, engine, post.ID, "Child", content.StatusPublic, hello.ID)

	_, err := engine.UpdateContent(ctx, content.ContentInput{ID: hello.ID, TypeID: post.ID, Slug: "hello-world"})
	require.NoError(t, err)

	assert.Equal(t, []string{"/post/hello-world", "/post/hello-world/child"}, paths(r))
	_, ok := r.Lookup(ctx, "/post/hello")
	assert.False(t, ok)
}

func TestResolver_StatusChange(t *testing.T) {
	engine, r := setupTestResolver(t)
	ctx := testContext()

	post := addType(t, engine, content.ContentTypeInput{Name: "Post"})
	c := addItem(t, engine, post.ID, "Soon", content.StatusDraft, 0)
	assert.Empty(t, paths(r))

	_, err := engine.UpdateContent(ctx, content.ContentInput{ID: c.ID, TypeID: post.ID, Status: content.StatusPublic})
	require.NoError(t, err)
	assert.Equal(t, []string{"/post/soon"}, paths(r))

	_, err = engine.UpdateContent(ctx, content.ContentInput{ID: c.ID, TypeID: post.ID, Status: content.StatusPrivate})
	require.NoError(t, err)
	assert.Empty(t, paths(r))
}

func TestResolver_DeleteContentReparents(t *testing.T) {
	engine, r := setupTestResolver(t)
	ctx := testContext()

	post := addType(t, engine, content.ContentTypeInput{Name: "Post"})
	parent := addItem(t, engine, post.ID, "Parent", content.StatusPublic, 0)
	addItem(t, engine, post.ID, "Child", content.StatusPublic, parent.ID)

	require.NoError(t, engine.DeleteContent(ctx, post.ID, parent.ID))
	assert.Equal(t, []string{"/post/child"}, paths(r))
}

func TestResolver_PageType(t *testing.T) {
	engine, r := setupTestResolver(t)

	page := addType(t, engine, content.ContentTypeInput{Name: "Page", HasPage: content.Ptr(true)})
	about := addItem(t, engine, page.ID, "About", content.StatusPublic, 0)
	addItem(t, engine, page.ID, "Team", content.StatusPublic, about.ID)

	assert.Equal(t, []string{"/about", "/about/team"}, paths(r))
}

func TestResolver_Terms(t *testing.T) {
	engine, r := setupTestResolver(t)
	ctx := testContext()

	post := addType(t, engine, content.ContentTypeInput{
		Name:          "Post",
		HasCategories: content.Ptr(true),
		HasTags:       content.Ptr(true),
	})
	news, err := engine.AddTerm(ctx, content.TermInput{Set: content.Categories(post.ID), Name: "News"})
	require.NoError(t, err)
	assert.Equal(t, "/post/category/news", news.Permalink)
	_, err = engine.AddTerm(ctx, content.TermInput{Set: content.Categories(post.ID), Name: "Local", Parent: content.Ptr(news.ID)})
	require.NoError(t, err)
	_, err = engine.AddTerm(ctx, content.TermInput{Set: content.Tags(post.ID), Name: "Go"})
	require.NoError(t, err)

	genre := addType(t, engine, content.ContentTypeInput{Name: "Genre", Kind: content.KindTaxonomy, HasArchive: content.Ptr(true)})
	jazz, err := engine.AddTerm(ctx, content.TermInput{Set: content.Taxonomy(genre.ID), Name: "Jazz"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/genre",
		"/genre/jazz",
		"/post/category/news",
		"/post/category/news/local",
		"/post/tag/go",
	}, paths(r))

	v, ok := r.Lookup(ctx, "/genre")
	require.True(t, ok)
	assert.Equal(t, TaxArchive, v.Type)
	v, ok = r.Lookup(ctx, "/genre/jazz")
	require.True(t, ok)
	assert.Equal(t, Value{Type: TaxPage, TypeID: genre.ID, TermID: jazz.ID}, v)

	_, err = engine.UpdateTerm(ctx, content.TermInput{ID: news.ID, Set: content.Categories(post.ID), Slug: "updates"})
	require.NoError(t, err)
	require.NoError(t, engine.DeleteTerm(ctx, content.Taxonomy(genre.ID), jazz.ID))

	assert.Equal(t, []string{
		"/genre",
		"/post/category/updates",
		"/post/category/updates/local",
		"/post/tag/go",
	}, paths(r))
}

func TestResolver_TypeChanges(t *testing.T) {
	engine, r := setupTestResolver(t)
	ctx := testContext()

	post := addType(t, engine, content.ContentTypeInput{Name: "Post", HasArchive: content.Ptr(true), HasCategories: content.Ptr(true)})
	addItem(t, engine, post.ID, "Hello", content.StatusPublic, 0)
	_, err := engine.AddTerm(ctx, content.TermInput{Set: content.Categories(post.ID), Name: "News"})
	require.NoError(t, err)

	_, err = engine.UpdateContentType(ctx, content.ContentTypeInput{ID: post.ID, Slug: "article"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/article", "/article/category/news", "/article/hello"}, paths(r))

	_, err = engine.UpdateContentType(ctx, content.ContentTypeInput{ID: post.ID, Status: content.TypeInactive})
	require.NoError(t, err)
	assert.Empty(t, paths(r))

	_, err = engine.UpdateContentType(ctx, content.ContentTypeInput{ID: post.ID, Status: content.TypeActive})
	require.NoError(t, err)
	assert.Len(t, paths(r), 3)

	require.NoError(t, engine.DeleteContentType(ctx, post.ID))
	assert.Empty(t, paths(r))
	_, ok := r.Lookup(ctx, "/article/hello")
	assert.False(t, ok)
}

func TestResolver_Rebuild(t *testing.T) {
	engine := setupTestEngine(t)

	post := addType(t, engine, content.ContentTypeInput{Name: "Post", HasArchive: content.Ptr(true)})
	hello := addItem(t, engine, post.ID, "Hello", content.StatusPublic, 0)
	addItem(t, engine, post.ID, "Child", content.StatusPublic, hello.ID)

	r := New(engine)
	t.Cleanup(r.Close)
	assert.Empty(t, r.All())

	require.NoError(t, r.Rebuild(testContext()))
	assert.Equal(t, []string{"/post", "/post/hello", "/post/hello/child"}, paths(r))
}

func TestResolver_SharedCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	shared := cache.NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), cache.DefaultConfig())

	engine := setupTestEngine(t, content.WithCache(shared))
	writer := New(engine)
	t.Cleanup(writer.Close)

	post := addType(t, engine, content.ContentTypeInput{Name: "Post"})
	hello := addItem(t, engine, post.ID, "Hello", content.StatusPublic, 0)

	reader := New(setupTestEngine(t), WithCache(shared))
	t.Cleanup(reader.Close)

	v, ok := reader.Lookup(testContext(), "/post/hello")
	require.True(t, ok)
	assert.Equal(t, hello.ID, v.ContentID)

	require.NoError(t, engine.DeleteContent(testContext(), post.ID, hello.ID))
	_, ok = reader.Lookup(testContext(), "/post/hello")
	assert.False(t, ok)
}

func TestResolver_SetEndpointReassigns(t *testing.T) {
	_, r := setupTestResolver(t)
	ctx := testContext()

	require.NoError(t, r.SetEndpoint(ctx, "/a", Value{Type: ContentPage, TypeID: 1, ContentID: 1}))
	require.NoError(t, r.SetEndpoint(ctx, "/b", Value{Type: ContentPage, TypeID: 1, ContentID: 1}))
	require.NoError(t, r.SetEndpoint(ctx, "/b", Value{Type: ContentPage, TypeID: 1, ContentID: 2}))

	assert.Equal(t, []string{"/b"}, paths(r))
	v, _ := r.Lookup(ctx, "/b")
	assert.Equal(t, int64(2), v.ContentID)

	require.NoError(t, r.DeleteEndpoint(ctx, "/b"))
	assert.Empty(t, r.All())
}
