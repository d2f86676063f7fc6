package scraper

import (
	"context"
	"testing"

	"uniadmit-backend/docstore"
	"uniadmit-backend/docstore/memstore"

	"github.com/stretchr/testify/require"
)

func TestUrlKey(t *testing.T) {
	require.Equal(t, "comsats", urlKey("https://example.com/university/comsats"))
	require.Equal(t, "comsats", urlKey("https://example.com/university/comsats/"))
	require.Equal(t, "", urlKey("no-slashes"))
}

func TestReconcileIsIdempotent(t *testing.T) {
	store := memstore.New()
	svc := &Service{store: store}
	ctx := context.Background()

	rec := UniversityRecord{
		Name:      "Alpha University",
		BasicInfo: map[string]string{"Sector": "Private"},
		SourceURL: "https://example.com/university/alpha",
	}

	first, err := svc.reconcile(ctx, rec)
	require.NoError(t, err)
	require.Equal(t, "alpha", first)

	// a second run over the same page must not create a second doc
	rec.BasicInfo["Sector"] = "Public"
	second, err := svc.reconcile(ctx, rec)
	require.NoError(t, err)
	require.Equal(t, first, second)

	docs, err := store.Query(ctx, UniversitiesCollection)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "Public", docs[0]["basic_info"].(map[string]string)["Sector"])
}

func TestReconcileByNameFallback(t *testing.T) {
	store := memstore.New()
	svc := &Service{store: store}
	ctx := context.Background()

	rec := UniversityRecord{
		Name:      "Beta University",
		SourceURL: "",
	}

	first, err := svc.reconcile(ctx, rec)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	rec.Description = "updated"
	second, err := svc.reconcile(ctx, rec)
	require.NoError(t, err)
	require.Equal(t, first, second)

	docs, err := store.Query(ctx, UniversitiesCollection)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "updated", docs[0]["description"])
}

func TestReconcileDistinctNamesCreateDistinctDocs(t *testing.T) {
	store := memstore.New()
	svc := &Service{store: store}
	ctx := context.Background()

	_, err := svc.reconcile(ctx, UniversityRecord{Name: "Beta University"})
	require.NoError(t, err)
	_, err = svc.reconcile(ctx, UniversityRecord{Name: "Gamma University"})
	require.NoError(t, err)

	docs, err := store.Query(ctx, UniversitiesCollection)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	named, err := store.Query(ctx, UniversitiesCollection,
		docstore.Filter{Field: "name", Op: "==", Value: "Gamma University"})
	require.NoError(t, err)
	require.Len(t, named, 1)
}
