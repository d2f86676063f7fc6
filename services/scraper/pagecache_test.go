package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func TestPageCacheRoundTrip(t *testing.T) {
	cache, err := openPageCache(t.TempDir(), time.Hour)
	require.NoError(t, err)
	defer cache.Close()
	ctx := context.Background()

	pageURL := "https://example.com/university/alpha"
	_, err = cache.get(ctx, pageURL)
	require.ErrorIs(t, err, errPageNotCached)

	require.NoError(t, cache.set(ctx, pageURL, []byte("<html>alpha</html>")))

	page, err := cache.get(ctx, pageURL)
	require.NoError(t, err)
	require.Equal(t, []byte("<html>alpha</html>"), page.Contents)

	// fragments do not produce distinct cache entries
	page, err = cache.get(ctx, pageURL+"#details")
	require.NoError(t, err)
	require.Equal(t, []byte("<html>alpha</html>"), page.Contents)
}

func TestPageCacheExpiredEntriesAreDeleted(t *testing.T) {
	cache, err := openPageCache(t.TempDir(), -time.Second)
	require.NoError(t, err)
	defer cache.Close()
	ctx := context.Background()

	pageURL := "https://example.com/university/alpha"
	require.NoError(t, cache.set(ctx, pageURL, []byte("stale")))

	_, err = cache.get(ctx, pageURL)
	require.ErrorIs(t, err, errPageNotCached)

	// the expired entry is removed from the store, not just masked
	key, err := cache.key(pageURL)
	require.NoError(t, err)
	tx := cache.db.NewTransaction(false)
	defer tx.Discard()
	_, err = tx.Get([]byte(key))
	require.ErrorIs(t, err, badger.ErrKeyNotFound)
}
