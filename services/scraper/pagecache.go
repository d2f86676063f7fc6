package scraper

import (
	"bytes"
	"context"
	"encoding/gob"
	"net/url"
	"time"

	"uniadmit-backend/lib/timezone"

	"github.com/PuerkitoBio/purell"
	"github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var errPageNotCached = badger.ErrKeyNotFound

// fetchedPage is the serialized form of a detail page held between
// scrape runs so re-runs within the TTL skip the network.
type fetchedPage struct {
	Contents []byte

	ExpiresAt int64
}

type pageCache struct {
	db  *badger.DB
	ttl time.Duration
}

func openPageCache(dir string, ttl time.Duration) (*pageCache, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &pageCache{db: db, ttl: ttl}, nil
}

func (c *pageCache) Close() error {
	return c.db.Close()
}

func (c *pageCache) key(pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	normalized := purell.NormalizeURL(
		parsed,
		purell.FlagsSafe|
			purell.FlagsUsuallySafeNonGreedy|
			purell.FlagRemoveDirectoryIndex|
			purell.FlagRemoveFragment|
			purell.FlagSortQuery,
	)
	return normalized, nil
}

func (c *pageCache) get(ctx context.Context, pageURL string) (fetchedPage, error) {
	ctx, span := tracer.Start(ctx, "pageCache.get")
	defer span.End()

	key, err := c.key(pageURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create cache key")
		return fetchedPage{}, err
	}
	span.SetAttributes(attribute.String("cache_key", key))

	tx := c.db.NewTransaction(false)
	defer tx.Discard()
	item, err := tx.Get([]byte(key))
	if err == badger.ErrKeyNotFound {
		return fetchedPage{}, errPageNotCached
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read item from badger")
		return fetchedPage{}, err
	}
	serialized, err := item.ValueCopy(nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to copy cached item")
		return fetchedPage{}, err
	}

	var cached fetchedPage
	err = gob.NewDecoder(bytes.NewBuffer(serialized)).Decode(&cached)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to deserialize cached item")
		return fetchedPage{}, err
	}

	if timezone.Now().Unix() >= cached.ExpiresAt {
		span.AddEvent("delete expired cache key", trace.WithAttributes(
			attribute.String("key", key)))

		tx := c.db.NewTransaction(true)
		defer tx.Commit()

		err = tx.Delete([]byte(key))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to delete expired key")
		}
		return fetchedPage{}, errPageNotCached
	}

	span.SetAttributes(attribute.Int("content_length", len(cached.Contents)))
	return cached, nil
}

func (c *pageCache) set(ctx context.Context, pageURL string, contents []byte) error {
	ctx, span := tracer.Start(ctx, "pageCache.set")
	defer span.End()

	key, err := c.key(pageURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create cache key")
		return err
	}
	span.SetAttributes(attribute.String("cache_key", key))

	page := fetchedPage{
		Contents:  contents,
		ExpiresAt: timezone.Now().Add(c.ttl).Unix(),
	}
	serialized := bytes.NewBuffer(nil)
	err = gob.NewEncoder(serialized).Encode(page)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to serialize page")
		return err
	}

	tx := c.db.NewTransaction(true)
	defer tx.Commit()

	err = tx.Set([]byte(key), serialized.Bytes())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to set badger item")
		return err
	}
	return nil
}
