package sqlitestore_test

import (
	"context"
	"testing"

	"uniadmit-backend/docstore"
	"uniadmit-backend/docstore/sqlitestore"
	"uniadmit-backend/lib/testutil"

	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) sqlitestore.Store {
	store, cleanup := testutil.SetupStore(t, testutil.StoreParams{Name: "sqlitestore"})
	t.Cleanup(cleanup)
	return store
}

func TestCreateAndGet(t *testing.T) {
	store := setup(t)
	ctx := context.Background()

	id, err := store.Create(ctx, "universities", docstore.Document{
		"name":       "Alpha University",
		"scraped_at": docstore.ServerTimestamp,
	}, "")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	doc, err := store.Get(ctx, "universities", id)
	require.NoError(t, err)
	require.Equal(t, "Alpha University", doc["name"])
	require.Equal(t, id, doc["id"])
	// the sentinel must never leak into storage
	require.IsType(t, "", doc["scraped_at"])
	require.NotEmpty(t, doc["scraped_at"])
}

func TestCreateWithExplicitIdOverwrites(t *testing.T) {
	store := setup(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "universities", docstore.Document{"name": "Old"}, "alpha")
	require.NoError(t, err)
	_, err = store.Create(ctx, "universities", docstore.Document{"name": "New"}, "alpha")
	require.NoError(t, err)

	doc, err := store.Get(ctx, "universities", "alpha")
	require.NoError(t, err)
	require.Equal(t, "New", doc["name"])

	docs, err := store.Query(ctx, "universities")
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestGetMissing(t *testing.T) {
	store := setup(t)

	_, err := store.Get(context.Background(), "universities", "nope")
	require.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestUpdateMergesPartially(t *testing.T) {
	store := setup(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "universities", docstore.Document{
		"name":          "Alpha University",
		"admissionOpen": true,
	}, "alpha")
	require.NoError(t, err)

	err = store.Update(ctx, "universities", "alpha", docstore.Document{
		"admissionOpen": false,
	})
	require.NoError(t, err)

	doc, err := store.Get(ctx, "universities", "alpha")
	require.NoError(t, err)
	require.Equal(t, "Alpha University", doc["name"])
	require.Equal(t, false, doc["admissionOpen"])
}

func TestUpdateMissing(t *testing.T) {
	store := setup(t)

	err := store.Update(context.Background(), "universities", "nope", docstore.Document{"x": 1})
	require.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestDelete(t *testing.T) {
	store := setup(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "universities", docstore.Document{"name": "Alpha"}, "alpha")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "universities", "alpha"))
	_, err = store.Get(ctx, "universities", "alpha")
	require.ErrorIs(t, err, docstore.ErrNotFound)

	// deleting a missing doc is not an error
	require.NoError(t, store.Delete(ctx, "universities", "alpha"))
}

func TestQueryFilters(t *testing.T) {
	store := setup(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "universities", docstore.Document{"name": "Alpha", "rank": 1}, "a")
	require.NoError(t, err)
	_, err = store.Create(ctx, "universities", docstore.Document{"name": "Beta", "rank": 2}, "b")
	require.NoError(t, err)
	_, err = store.Create(ctx, "tasks", docstore.Document{"name": "Alpha"}, "t")
	require.NoError(t, err)

	all, err := store.Query(ctx, "universities")
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "a", all[0]["id"])
	require.Equal(t, "b", all[1]["id"])

	named, err := store.Query(ctx, "universities",
		docstore.Filter{Field: "name", Op: "==", Value: "Alpha"})
	require.NoError(t, err)
	require.Len(t, named, 1)
	require.Equal(t, "a", named[0]["id"])

	ranked, err := store.Query(ctx, "universities",
		docstore.Filter{Field: "rank", Op: ">", Value: 1})
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	require.Equal(t, "b", ranked[0]["id"])
}

func TestBatch(t *testing.T) {
	store := setup(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "universities", docstore.Document{"name": "Old"}, "a")
	require.NoError(t, err)
	_, err = store.Create(ctx, "universities", docstore.Document{"name": "Gone"}, "b")
	require.NoError(t, err)

	err = store.Batch(ctx, []docstore.Op{
		{Type: docstore.OpUpdate, Collection: "universities", ID: "a", Data: docstore.Document{"name": "New"}},
		{Type: docstore.OpDelete, Collection: "universities", ID: "b"},
		{Type: docstore.OpCreate, Collection: "universities", ID: "c", Data: docstore.Document{"name": "Fresh"}},
	})
	require.NoError(t, err)

	docs, err := store.Query(ctx, "universities")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, "New", docs[0]["name"])
	require.Equal(t, "Fresh", docs[1]["name"])
}
