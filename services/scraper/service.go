// Package scraper implements the admissions data pipeline: discovering
// university detail pages from listing sites, extracting canonical
// records out of them, reconciling those records into the document
// store, and keeping the derived admission status fresh.
package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"uniadmit-backend/docstore"
	"uniadmit-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/scraper")

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

type Options struct {
	Store docstore.Store
	// NewRenderer is invoked once per scrape run; defaults to a
	// headless chrome when unset.
	NewRenderer RendererFactory
	// PageCacheDir enables the on-disk fetched-page cache when set.
	PageCacheDir string
	PageCacheTTL time.Duration

	Listing ListingSource
	Profile ProfileSource
}

type Service struct {
	store       docstore.Store
	http        *resty.Client
	newRenderer RendererFactory
	pages       *pageCache

	listing ListingSource
	profile ProfileSource
}

func NewService(opts Options) (*Service, error) {
	client := resty.New().
		SetTimeout(time.Second * 30).
		SetHeader("User-Agent", userAgent)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	telemetry.InstrumentResty(client, "services/scraper")

	newRenderer := opts.NewRenderer
	if newRenderer == nil {
		newRenderer = NewChromeRenderer
	}

	var pages *pageCache
	if opts.PageCacheDir != "" {
		ttl := opts.PageCacheTTL
		if ttl <= 0 {
			ttl = time.Hour
		}
		var err error
		pages, err = openPageCache(opts.PageCacheDir, ttl)
		if err != nil {
			return nil, fmt.Errorf("opening page cache: %w", err)
		}
	}

	return &Service{
		store:       opts.Store,
		http:        client,
		newRenderer: newRenderer,
		pages:       pages,
		listing:     opts.Listing,
		profile:     opts.Profile,
	}, nil
}

func (s *Service) Close() error {
	if s.pages != nil {
		return s.pages.Close()
	}
	return nil
}

// fetchPage fetches and parses a static page, going through the
// on-disk cache when one is configured.
func (s *Service) fetchPage(ctx context.Context, pageURL string) (*goquery.Document, error) {
	ctx, span := tracer.Start(ctx, "fetchPage")
	defer span.End()
	span.SetAttributes(attribute.String("url", pageURL))

	if s.pages != nil {
		cached, err := s.pages.get(ctx, pageURL)
		if err == nil {
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return goquery.NewDocumentFromReader(strings.NewReader(string(cached.Contents)))
		}
		if err != errPageNotCached {
			slog.WarnContext(ctx, "page cache read failed", "url", pageURL, "err", err)
		}
	}

	res, err := s.http.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, err
	}
	if res.StatusCode() >= 400 {
		err := fmt.Errorf("fetching %s: status %d", pageURL, res.StatusCode())
		span.RecordError(err)
		span.SetStatus(codes.Error, "bad status")
		return nil, err
	}

	body := res.Body()
	if s.pages != nil {
		err = s.pages.set(ctx, pageURL, body)
		if err != nil {
			slog.WarnContext(ctx, "page cache write failed", "url", pageURL, "err", err)
		}
	}

	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}

// RunScrape performs a full listing scrape: discover detail pages,
// extract a record from each, reconcile every record into storage.
// Individual page failures are logged and skipped so one bad page
// never sinks the run.
func (s *Service) RunScrape(ctx context.Context) ([]UniversityRecord, error) {
	ctx, span := tracer.Start(ctx, "RunScrape")
	defer span.End()

	renderer, err := s.newRenderer()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to start renderer")
		return nil, fmt.Errorf("starting renderer: %w", err)
	}
	links, err := DiscoverLinks(ctx, renderer, s.listing)
	closeErr := renderer.Close()
	if closeErr != nil {
		slog.WarnContext(ctx, "failed to close renderer", "err", closeErr)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "discovery failed")
		return nil, err
	}

	var records []UniversityRecord
	for _, link := range links {
		doc, err := s.fetchPage(ctx, link)
		if err != nil {
			slog.WarnContext(ctx, "failed to fetch detail page, skipping",
				"url", link, "err", err)
			continue
		}
		rec := Extract(ctx, doc, s.listing.Rules, link)
		if rec.Name == "" {
			slog.WarnContext(ctx, "extracted record has no name, skipping", "url", link)
			continue
		}
		id, err := s.reconcile(ctx, rec)
		if err != nil {
			slog.ErrorContext(ctx, "failed to persist record",
				"university", rec.Name, "err", err)
			continue
		}
		rec.ID = id
		records = append(records, rec)
	}

	span.SetAttributes(attribute.Int("records", len(records)))
	slog.InfoContext(ctx, "scrape run complete",
		"discovered", len(links), "persisted", len(records))
	return records, nil
}
