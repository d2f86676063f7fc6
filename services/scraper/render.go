package scraper

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
)

// renderWait is how long a rendered listing gets to finish its
// client-side work after navigation.
const renderWait = 5 * time.Second

// chromeRenderer drives a headless browser for listings that only
// materialize their links after scripts run.
type chromeRenderer struct {
	allocCancel context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc

	doc *goquery.Document
}

// NewChromeRenderer starts a headless browser. Close releases it.
func NewChromeRenderer() (Renderer, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(1920, 1080),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)
	return &chromeRenderer{
		allocCancel: allocCancel,
		browserCtx:  browserCtx,
		cancel:      cancel,
	}, nil
}

func (r *chromeRenderer) Open(ctx context.Context, pageURL string) error {
	tabCtx, tabCancel := context.WithTimeout(r.browserCtx, 2*time.Minute)
	defer tabCancel()

	var rendered string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(renderWait),
		chromedp.OuterHTML("html", &rendered),
	)
	if err != nil {
		return err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rendered))
	if err != nil {
		return err
	}
	r.doc = doc
	return nil
}

func (r *chromeRenderer) AnchorHrefs(ctx context.Context) ([]string, error) {
	if r.doc == nil {
		return nil, nil
	}
	var hrefs []string
	r.doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok {
			hrefs = append(hrefs, href)
		}
	})
	return hrefs, nil
}

func (r *chromeRenderer) Close() error {
	r.cancel()
	r.allocCancel()
	return nil
}
