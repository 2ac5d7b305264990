package docstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/contenttype/internal/storage"
)

func setupTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := New(client, "test:")
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func postsCollection() storage.Collection {
	return storage.Collection{
		Name: "posts",
		Columns: []storage.Column{
			{Name: "ID", Type: storage.TypeInteger, PrimaryKey: true},
			{Name: "title", Type: storage.TypeText},
			{Name: "slug", Type: storage.TypeText, Unique: true},
			{Name: "status", Type: storage.TypeText},
			{Name: "parent", Type: storage.TypeInteger},
		},
	}
}

func propsCollection() storage.Collection {
	return storage.Collection{
		Name: "posts_properties",
		Columns: []storage.Column{
			{Name: "ID", Type: storage.TypeInteger, PrimaryKey: true},
			{Name: "owner_id", Type: storage.TypeInteger, Index: true},
			{Name: "name", Type: storage.TypeText},
			{Name: "value", Type: storage.TypeText},
		},
	}
}

func insertPost(t *testing.T, s *Store, id int64, title, slug, status string) {
	t.Helper()
	err := s.Insert(context.Background(), "posts", storage.Record{
		"ID": id, "title": title, "slug": slug, "status": status, "parent": int64(0),
	})
	require.NoError(t, err)
}

func TestStore_CreateInsertGet(t *testing.T) {
	s, mr := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateCollection(ctx, postsCollection()))
	require.NoError(t, s.CreateCollection(ctx, postsCollection()))
	assert.True(t, mr.Exists("test:collections"))

	insertPost(t, s, 1, "Hello", "hello", "public")
	insertPost(t, s, 2, "Draft", "draft", "draft")

	records, err := s.Get(ctx, "posts", storage.Query{Where: []storage.Condition{storage.Eq("status", "public")}})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, storage.Record{
		"ID": int64(1), "title": "Hello", "slug": "hello", "status": "public", "parent": int64(0),
	}, records[0])
}

func TestStore_MissingColumnsReadAsNil(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateCollection(ctx, postsCollection()))

	require.NoError(t, s.Insert(ctx, "posts", storage.Record{"ID": int64(1), "slug": "a"}))

	records, err := s.Get(ctx, "posts", storage.Query{Where: []storage.Condition{storage.Eq("title", nil)}})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Contains(t, records[0], "title")
	assert.Nil(t, records[0]["title"])
}

func TestStore_InsertRejectsUnknownColumns(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateCollection(ctx, postsCollection()))

	err := s.Insert(ctx, "posts", storage.Record{"ID": int64(1), "bogus": "x"})
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	err = s.Insert(ctx, "posts", storage.Record{"slug": "no-id"})
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestStore_Duplicates(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateCollection(ctx, postsCollection()))

	insertPost(t, s, 1, "A", "same", "public")

	err := s.Insert(ctx, "posts", storage.Record{"ID": int64(2), "slug": "same"})
	assert.True(t, storage.IsDuplicate(err))

	err = s.Insert(ctx, "posts", storage.Record{"ID": int64(1), "slug": "other"})
	assert.True(t, storage.IsDuplicate(err))

	insertPost(t, s, 2, "B", "b", "public")
	_, err = s.Update(ctx, "posts", []storage.Condition{storage.Eq("ID", int64(2))}, storage.Record{"slug": "same"})
	assert.True(t, storage.IsDuplicate(err))

	var se *storage.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "update", se.Op)
}

func TestStore_PrefixIsCaseInsensitive(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateCollection(ctx, postsCollection()))

	insertPost(t, s, 1, "", "Foo", "public")
	insertPost(t, s, 2, "", "foo-2", "public")
	insertPost(t, s, 3, "", "bar", "public")

	records, err := s.Get(ctx, "posts", storage.Query{Where: []storage.Condition{storage.Prefix("slug", "FOO")}})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Foo", records[0]["slug"])
	assert.Equal(t, "foo-2", records[1]["slug"])
}

func TestStore_OrderLimitOffsetCount(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateCollection(ctx, postsCollection()))

	for i, slug := range []string{"a", "b", "c", "d"} {
		insertPost(t, s, int64(i+1), slug, slug, "public")
	}

	records, err := s.Get(ctx, "posts", storage.Query{OrderBy: "slug", Desc: true, Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "c", records[0]["slug"])
	assert.Equal(t, "b", records[1]["slug"])

	records, err = s.Get(ctx, "posts", storage.Query{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, records)

	n, err := s.Count(ctx, "posts", storage.Query{Limit: 1, Where: []storage.Condition{storage.In("slug", []string{"a", "d", "x"})}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestStore_UpdateAndDelete(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateCollection(ctx, postsCollection()))

	insertPost(t, s, 1, "A", "a", "draft")
	insertPost(t, s, 2, "B", "b", "draft")

	n, err := s.Update(ctx, "posts", []storage.Condition{storage.Eq("status", "draft")}, storage.Record{"status": "public"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.Update(ctx, "posts", []storage.Condition{storage.Eq("ID", int64(9))}, storage.Record{"status": "x"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = s.Delete(ctx, "posts", []storage.Condition{storage.Eq("ID", int64(1))})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	records, err := s.Get(ctx, "posts", storage.Query{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "public", records[0]["status"])
	assert.Equal(t, "B", records[0]["title"])
}

func TestStore_PropertyFilter(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateCollection(ctx, postsCollection()))
	require.NoError(t, s.CreateCollection(ctx, propsCollection()))

	insertPost(t, s, 1, "", "one", "public")
	insertPost(t, s, 2, "", "two", "public")
	insertPost(t, s, 3, "", "three", "public")

	props := []storage.Record{
		{"ID": int64(1), "owner_id": int64(1), "name": "category", "value": "7"},
		{"ID": int64(2), "owner_id": int64(1), "name": "tag", "value": "9"},
		{"ID": int64(3), "owner_id": int64(2), "name": "category", "value": "7"},
		{"ID": int64(4), "owner_id": int64(3), "name": "tag", "value": "9"},
	}
	for _, p := range props {
		require.NoError(t, s.Insert(ctx, "posts_properties", p))
	}

	filter := func(rel storage.Relation) *storage.PropertyFilter {
		return &storage.PropertyFilter{
			Collection: "posts_properties",
			Groups: []storage.PropertyGroup{{
				Relation: rel,
				Property: []storage.PropertyMatch{{Name: "category", Value: "7"}, {Name: "tag", Value: "9"}},
			}},
		}
	}

	records, err := s.Get(ctx, "posts", storage.Query{Properties: filter(storage.RelationAnd)})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "one", records[0]["slug"])

	n, err := s.Count(ctx, "posts", storage.Query{Properties: filter(storage.RelationOr)})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestStore_AlterCollection(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateCollection(ctx, postsCollection()))
	insertPost(t, s, 1, "Old", "old", "public")

	err := s.AlterCollection(ctx, "posts",
		[]storage.Column{{Name: "excerpt", Type: storage.TypeText}},
		[]string{"title"})
	require.NoError(t, err)

	require.NoError(t, s.Insert(ctx, "posts", storage.Record{"ID": int64(2), "slug": "new", "excerpt": "short"}))
	err = s.Insert(ctx, "posts", storage.Record{"ID": int64(3), "title": "gone"})
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	records, err := s.Get(ctx, "posts", storage.Query{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.NotContains(t, records[0], "title")
	assert.Nil(t, records[0]["excerpt"])
	assert.Equal(t, "short", records[1]["excerpt"])

	err = s.AlterCollection(ctx, "missing", []storage.Column{{Name: "x"}}, nil)
	assert.True(t, storage.IsNoCollection(err))
}

func TestStore_DropCollection(t *testing.T) {
	s, mr := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateCollection(ctx, postsCollection()))
	insertPost(t, s, 1, "A", "a", "public")

	require.NoError(t, s.DropCollection(ctx, "posts"))
	require.NoError(t, s.DropCollection(ctx, "posts"))
	assert.False(t, mr.Exists("test:doc:posts"))

	_, err := s.Get(ctx, "posts", storage.Query{})
	require.Error(t, err)
	assert.True(t, storage.IsNoCollection(err))
}

func TestStore_IncrementID(t *testing.T) {
	s, mr := setupTestStore(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		id, err := s.IncrementID(ctx, "posts")
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}

	id, err := s.IncrementID(ctx, "pages")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, "3", mr.HGet("test:ids", "posts"))
}

func TestStore_ClosedClient(t *testing.T) {
	s, _ := setupTestStore(t)
	require.NoError(t, s.Close())

	_, err := s.IncrementID(context.Background(), "posts")
	assert.ErrorIs(t, err, storage.ErrClosed)
}
