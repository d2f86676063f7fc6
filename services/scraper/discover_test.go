package scraper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeRenderer struct {
	hrefs  []string
	opened []string
	closed bool
	err    error
}

func (r *fakeRenderer) Open(ctx context.Context, url string) error {
	r.opened = append(r.opened, url)
	return r.err
}

func (r *fakeRenderer) AnchorHrefs(ctx context.Context) ([]string, error) {
	return r.hrefs, nil
}

func (r *fakeRenderer) Close() error {
	r.closed = true
	return nil
}

func TestDiscoverLinks(t *testing.T) {
	renderer := &fakeRenderer{
		hrefs: []string{
			"/university/beta",
			"/university/alpha",
			"https://example.com/university/alpha",
			"/university/alpha#details",
			"/about",
			"https://elsewhere.com/university/gamma",
			"::bogus::",
		},
	}
	src := ListingSource{
		Name:             "test",
		BaseURL:          "https://example.com",
		DetailPathPrefix: "/university/",
	}

	links, err := DiscoverLinks(context.Background(), renderer, src)
	require.NoError(t, err)
	require.Equal(t, []string{
		"https://elsewhere.com/university/gamma",
		"https://example.com/university/alpha",
		"https://example.com/university/beta",
	}, links)
	require.Equal(t, []string{"https://example.com"}, renderer.opened)
}

func TestDiscoverLinksNoMatches(t *testing.T) {
	renderer := &fakeRenderer{hrefs: []string{"/about", "/contact"}}
	src := ListingSource{
		BaseURL:          "https://example.com",
		DetailPathPrefix: "/university/",
	}

	links, err := DiscoverLinks(context.Background(), renderer, src)
	require.NoError(t, err)
	require.Empty(t, links)
}
