// Package pagefetch renders pages in a pooled headless browser and extracts
// the readable article content. Used to enrich scraped hits that carry no
// metadata of their own.
package pagefetch

import (
	"context"
	"errors"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	readability "github.com/go-shiori/go-readability"
)

// ErrBusy is returned when every browser slot is occupied. Callers degrade
// to the unenriched hit rather than queueing.
var ErrBusy = errors.New("page fetch pool exhausted")

// Fetcher renders one page per call, bounded by a fixed-size slot pool so a
// burst of enrichment requests cannot spawn unbounded browser instances.
type Fetcher struct {
	timeout  time.Duration
	maxChars int
	slots    chan struct{}
	logger   *log.Logger
}

// New creates a fetcher with poolSize concurrent browser slots.
func New(poolSize int, timeout time.Duration, maxChars int, logger *log.Logger) *Fetcher {
	if poolSize <= 0 {
		poolSize = 2
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if maxChars <= 0 {
		maxChars = 2000
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[PAGEFETCH] ", log.LstdFlags)
	}
	return &Fetcher{
		timeout:  timeout,
		maxChars: maxChars,
		slots:    make(chan struct{}, poolSize),
		logger:   logger,
	}
}

// Article fetches the page and returns its readable title, a text excerpt
// capped at the configured length, and the lead image URL.
func (f *Fetcher) Article(ctx context.Context, pageURL string) (title, excerpt, imageURL string, err error) {
	if strings.TrimSpace(pageURL) == "" {
		return "", "", "", errors.New("invalid url")
	}

	select {
	case f.slots <- struct{}{}:
	default:
		return "", "", "", ErrBusy
	}
	defer func() { <-f.slots }()

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	html, err := fetchHTML(ctx, pageURL)
	if err != nil {
		return "", "", "", err
	}

	article, err := readability.FromReader(strings.NewReader(html), parseURL(pageURL))
	if err != nil {
		return "", "", "", err
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) > f.maxChars {
		text = text[:f.maxChars]
	}
	return strings.TrimSpace(article.Title), text, article.Image, nil
}

func fetchHTML(ctx context.Context, pageURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent("MediaScout/1.0 (+research tool)"),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}

func parseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
