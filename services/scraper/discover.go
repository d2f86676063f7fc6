package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/purell"
	"go.opentelemetry.io/otel/attribute"
)

// Renderer loads a page in a real browser so client-side rendered
// listings expose their links.
type Renderer interface {
	Open(ctx context.Context, url string) error
	AnchorHrefs(ctx context.Context) ([]string, error)
	Close() error
}

// RendererFactory defers browser startup until a scrape actually needs
// one.
type RendererFactory func() (Renderer, error)

// DiscoverLinks opens the listing page and collects every detail-page
// URL it links to, absolute, normalized, deduplicated and sorted.
func DiscoverLinks(ctx context.Context, r Renderer, src ListingSource) ([]string, error) {
	ctx, span := tracer.Start(ctx, "DiscoverLinks")
	defer span.End()
	span.SetAttributes(attribute.String("source", src.Name))

	base, err := url.Parse(src.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url %q: %w", src.BaseURL, err)
	}

	err = r.Open(ctx, src.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening listing page: %w", err)
	}
	hrefs, err := r.AnchorHrefs(ctx)
	if err != nil {
		return nil, fmt.Errorf("collecting listing anchors: %w", err)
	}

	seen := map[string]bool{}
	for _, href := range hrefs {
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			slog.WarnContext(ctx, "skipping malformed href", "href", href)
			continue
		}
		resolved := base.ResolveReference(ref)
		if !strings.HasPrefix(resolved.Path, src.DetailPathPrefix) {
			continue
		}
		normalized := purell.NormalizeURL(resolved,
			purell.FlagsSafe|purell.FlagRemoveFragment|purell.FlagSortQuery)
		seen[normalized] = true
	}

	links := make([]string, 0, len(seen))
	for link := range seen {
		links = append(links, link)
	}
	sort.Strings(links)

	span.SetAttributes(attribute.Int("links", len(links)))
	slog.InfoContext(ctx, "discovered detail links",
		"source", src.Name, "count", len(links))
	return links, nil
}
