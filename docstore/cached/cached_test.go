package cached_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"uniadmit-backend/docstore"
	"uniadmit-backend/docstore/cached"
	"uniadmit-backend/docstore/memstore"
	"uniadmit-backend/lib/timezone"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func setup(opts ...cached.Option) (*memstore.Store, *cached.Store, *fakeClock, *[]time.Duration) {
	inner := memstore.New()
	clock := &fakeClock{now: timezone.Now()}
	var sleeps []time.Duration
	opts = append(opts,
		cached.WithClock(clock.Now),
		cached.WithSleep(func(d time.Duration) { sleeps = append(sleeps, d) }),
	)
	store := cached.New(inner, opts...)
	return inner, store, clock, &sleeps
}

func TestGetServedFromCacheWithinTTL(t *testing.T) {
	inner, store, clock, _ := setup()
	ctx := context.Background()

	_, err := inner.Create(ctx, "universities", docstore.Document{"name": "Alpha"}, "a")
	require.NoError(t, err)

	doc, err := store.Get(ctx, "universities", "a")
	require.NoError(t, err)
	require.Equal(t, "Alpha", doc["name"])

	// a direct write behind the cache is invisible until expiry
	err = inner.Update(ctx, "universities", "a", docstore.Document{"name": "Changed"})
	require.NoError(t, err)

	doc, err = store.Get(ctx, "universities", "a")
	require.NoError(t, err)
	require.Equal(t, "Alpha", doc["name"])

	clock.Advance(cached.DefaultTTL)
	doc, err = store.Get(ctx, "universities", "a")
	require.NoError(t, err)
	require.Equal(t, "Changed", doc["name"])
}

func TestWritesInvalidateCache(t *testing.T) {
	_, store, _, _ := setup()
	ctx := context.Background()

	id, err := store.Create(ctx, "universities", docstore.Document{"name": "Alpha"}, "a")
	require.NoError(t, err)
	require.Equal(t, "a", id)

	doc, err := store.Get(ctx, "universities", "a")
	require.NoError(t, err)
	require.Equal(t, "Alpha", doc["name"])

	all, err := store.Query(ctx, "universities")
	require.NoError(t, err)
	require.Len(t, all, 1)

	err = store.Update(ctx, "universities", "a", docstore.Document{"name": "Beta"})
	require.NoError(t, err)

	doc, err = store.Get(ctx, "universities", "a")
	require.NoError(t, err)
	require.Equal(t, "Beta", doc["name"])

	// collection queries are invalidated by the write too
	_, err = store.Create(ctx, "universities", docstore.Document{"name": "Gamma"}, "b")
	require.NoError(t, err)
	all, err = store.Query(ctx, "universities")
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestQuotaErrorsRetryWithBackoff(t *testing.T) {
	inner, store, _, sleeps := setup()
	ctx := context.Background()

	_, err := inner.Create(ctx, "universities", docstore.Document{"name": "Alpha"}, "a")
	require.NoError(t, err)

	inner.FailNext(2, docstore.QuotaError{Err: errors.New("quota exceeded")})

	doc, err := store.Get(ctx, "universities", "a")
	require.NoError(t, err)
	require.Equal(t, "Alpha", doc["name"])

	require.Len(t, *sleeps, 2)
	require.GreaterOrEqual(t, (*sleeps)[0], 2*time.Second)
	require.Less(t, (*sleeps)[0], 3*time.Second)
	require.GreaterOrEqual(t, (*sleeps)[1], 4*time.Second)
	require.Less(t, (*sleeps)[1], 5*time.Second)
}

func TestQuotaRetriesAreBounded(t *testing.T) {
	inner, store, _, sleeps := setup(cached.WithMaxRetries(2))
	ctx := context.Background()

	quota := docstore.QuotaError{Err: errors.New("429 resource exhausted")}
	inner.FailNext(10, quota)

	_, err := store.Get(ctx, "universities", "a")
	require.Error(t, err)
	require.True(t, docstore.IsQuota(err))
	require.Len(t, *sleeps, 2)
}

func TestNonQuotaErrorsFailImmediately(t *testing.T) {
	inner, store, _, sleeps := setup()
	ctx := context.Background()

	inner.FailNext(1, errors.New("disk on fire"))

	_, err := store.Get(ctx, "universities", "a")
	require.Error(t, err)
	require.False(t, docstore.IsQuota(err))
	require.Empty(t, *sleeps)
}

func TestFullCollectionQueryFallsBackToStaleCache(t *testing.T) {
	inner, store, clock, _ := setup(cached.WithMaxRetries(0))
	ctx := context.Background()

	_, err := inner.Create(ctx, "universities", docstore.Document{"name": "Alpha"}, "a")
	require.NoError(t, err)

	all, err := store.Query(ctx, "universities")
	require.NoError(t, err)
	require.Len(t, all, 1)

	clock.Advance(cached.DefaultTTL * 2)
	inner.FailNext(1, docstore.QuotaError{Err: errors.New("quota exceeded")})

	// expired cache plus failing backend still yields the last value
	all, err = store.Query(ctx, "universities")
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "Alpha", all[0]["name"])
}

func TestFilteredQueryDoesNotFallBackStale(t *testing.T) {
	inner, store, clock, _ := setup(cached.WithMaxRetries(0))
	ctx := context.Background()

	filter := docstore.Filter{Field: "name", Op: "==", Value: "Alpha"}
	_, err := inner.Create(ctx, "universities", docstore.Document{"name": "Alpha"}, "a")
	require.NoError(t, err)

	_, err = store.Query(ctx, "universities", filter)
	require.NoError(t, err)

	clock.Advance(cached.DefaultTTL * 2)
	inner.FailNext(1, docstore.QuotaError{Err: errors.New("quota exceeded")})

	_, err = store.Query(ctx, "universities", filter)
	require.Error(t, err)
}

func TestInvalidate(t *testing.T) {
	inner, store, _, _ := setup()
	ctx := context.Background()

	_, err := inner.Create(ctx, "universities", docstore.Document{"name": "Alpha"}, "a")
	require.NoError(t, err)

	doc, err := store.Get(ctx, "universities", "a")
	require.NoError(t, err)
	require.Equal(t, "Alpha", doc["name"])

	err = inner.Update(ctx, "universities", "a", docstore.Document{"name": "Beta"})
	require.NoError(t, err)

	store.Invalidate("universities")
	doc, err = store.Get(ctx, "universities", "a")
	require.NoError(t, err)
	require.Equal(t, "Beta", doc["name"])
}
