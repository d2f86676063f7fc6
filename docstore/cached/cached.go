// Package cached wraps a docstore.Store with a short-TTL read cache
// and exponential-backoff retries on rate-limit errors. Every pipeline
// component talks to storage through this wrapper.
package cached

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"uniadmit-backend/docstore"
	"uniadmit-backend/lib/timezone"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("docstore/cached")

const (
	DefaultTTL        = 5 * time.Minute
	DefaultMaxRetries = 3
)

type entry struct {
	value    any
	cachedAt time.Time
}

type Store struct {
	inner      docstore.Store
	ttl        time.Duration
	maxRetries int

	mu    sync.Mutex
	cache map[string]entry

	// test seams
	now   func() time.Time
	sleep func(time.Duration)
}

var _ docstore.Store = (*Store)(nil)

type Option func(*Store)

func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

func WithMaxRetries(n int) Option {
	return func(s *Store) { s.maxRetries = n }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithSleep(sleep func(time.Duration)) Option {
	return func(s *Store) { s.sleep = sleep }
}

func New(inner docstore.Store, opts ...Option) *Store {
	s := &Store{
		inner:      inner,
		ttl:        DefaultTTL,
		maxRetries: DefaultMaxRetries,
		cache:      map[string]entry{},
		now:        timezone.Now,
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func docKey(collection, id string) string {
	return fmt.Sprintf("%s:%s", collection, id)
}

func queryKey(collection string, filters []docstore.Filter) string {
	if len(filters) == 0 {
		return fmt.Sprintf("%s:all", collection)
	}
	parts := make([]string, len(filters))
	for i, f := range filters {
		parts[i] = fmt.Sprintf("%s %s %v", f.Field, f.Op, f.Value)
	}
	return fmt.Sprintf("%s:query:%s", collection, strings.Join(parts, "&"))
}

func (s *Store) lookup(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.cache[key]
	if !ok {
		return nil, false
	}
	if s.now().Sub(e.cachedAt) >= s.ttl {
		return nil, false
	}
	return e.value, true
}

// lookupStale ignores the TTL; used as a degraded-read fallback when
// the backend keeps rejecting bulk reads.
func (s *Store) lookupStale(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.cache[key]
	return e.value, ok
}

func (s *Store) put(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = entry{value: value, cachedAt: s.now()}
}

func (s *Store) invalidateDoc(collection, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, docKey(collection, id))
	// any cached query over the collection may now be stale too
	prefix := collection + ":"
	for key := range s.cache {
		if strings.HasPrefix(key, prefix) && key != docKey(collection, id) {
			delete(s.cache, key)
		}
	}
}

// Invalidate drops every cache entry for a collection; with an empty
// collection it resets the whole cache.
func (s *Store) Invalidate(collection string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if collection == "" {
		s.cache = map[string]entry{}
		return
	}
	prefix := collection + ":"
	for key := range s.cache {
		if strings.HasPrefix(key, prefix) {
			delete(s.cache, key)
		}
	}
}

// retry runs op, backing off and retrying only on quota errors. The
// wait before attempt n is 2^n seconds plus a sub-second jitter.
func (s *Store) retry(ctx context.Context, op func() error) error {
	retries := 0
	for {
		err := op()
		if err == nil {
			return nil
		}
		if !docstore.IsQuota(err) {
			return err
		}
		retries++
		if retries > s.maxRetries {
			slog.Error("max retries reached after quota exceeded", "err", err)
			return err
		}

		jitterMs, randErr := random.IntRange(0, 1000)
		if randErr != nil {
			jitterMs = 500
		}
		wait := time.Duration(math.Pow(2, float64(retries)))*time.Second +
			time.Duration(jitterMs)*time.Millisecond
		slog.Warn("quota exceeded, backing off",
			"wait", wait, "retry", retries, "max_retries", s.maxRetries)
		s.sleep(wait)
	}
}

func (s *Store) Create(ctx context.Context, collection string, data docstore.Document, id string) (string, error) {
	ctx, span := tracer.Start(ctx, "Create")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection))

	if id != "" {
		s.invalidateDoc(collection, id)
	} else {
		s.Invalidate(collection)
	}

	var out string
	err := s.retry(ctx, func() error {
		var err error
		out, err = s.inner.Create(ctx, collection, data, id)
		return err
	})
	return out, err
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	ctx, span := tracer.Start(ctx, "Get")
	defer span.End()

	key := docKey(collection, id)
	if hit, ok := s.lookup(key); ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		slog.Debug("cache hit", "key", key)
		return hit.(docstore.Document), nil
	}

	var doc docstore.Document
	err := s.retry(ctx, func() error {
		var err error
		doc, err = s.inner.Get(ctx, collection, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.put(key, doc)
	return doc, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, data docstore.Document) error {
	ctx, span := tracer.Start(ctx, "Update")
	defer span.End()

	s.invalidateDoc(collection, id)
	return s.retry(ctx, func() error {
		return s.inner.Update(ctx, collection, id, data)
	})
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	ctx, span := tracer.Start(ctx, "Delete")
	defer span.End()

	s.invalidateDoc(collection, id)
	return s.retry(ctx, func() error {
		return s.inner.Delete(ctx, collection, id)
	})
}

func (s *Store) Query(ctx context.Context, collection string, filters ...docstore.Filter) ([]docstore.Document, error) {
	ctx, span := tracer.Start(ctx, "Query")
	defer span.End()

	key := queryKey(collection, filters)
	if hit, ok := s.lookup(key); ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		slog.Debug("cache hit", "key", key)
		return hit.([]docstore.Document), nil
	}

	var docs []docstore.Document
	err := s.retry(ctx, func() error {
		var err error
		docs, err = s.inner.Query(ctx, collection, filters...)
		return err
	})
	if err != nil {
		// bulk reads degrade to the last known value, stale or not,
		// rather than coming back empty
		if len(filters) == 0 {
			if stale, ok := s.lookupStale(key); ok {
				slog.Warn("returning stale cached collection after storage error",
					"collection", collection, "err", err)
				return stale.([]docstore.Document), nil
			}
		}
		return nil, err
	}
	s.put(key, docs)
	return docs, nil
}

func (s *Store) Batch(ctx context.Context, ops []docstore.Op) error {
	ctx, span := tracer.Start(ctx, "Batch")
	defer span.End()

	seen := map[string]bool{}
	for _, op := range ops {
		if !seen[op.Collection] {
			seen[op.Collection] = true
			s.Invalidate(op.Collection)
		}
	}
	return s.retry(ctx, func() error {
		return s.inner.Batch(ctx, ops)
	})
}
