package duckduckgo

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pouria-abbasi/mediascout/models"
	"github.com/pouria-abbasi/mediascout/sources"
)

const defaultEndpoint = "https://html.duckduckgo.com/html/"

// enrichLimit caps how many result pages one search may render for snippet
// and thumbnail backfill. The inter-request delay keeps the renderer from
// hammering result hosts.
const (
	enrichLimit = 5
	enrichDelay = 300 * time.Millisecond
)

// PageEnricher backfills article metadata for a result page. Implemented by
// the pagefetch pool; nil disables enrichment entirely.
type PageEnricher interface {
	Article(ctx context.Context, pageURL string) (title, excerpt, imageURL string, err error)
}

// Search scrapes the DuckDuckGo HTML endpoint. It is the keyless fallback
// web adapter: lowest tier, no licence information, best-effort parsing.
type Search struct {
	Endpoint string
	Client   *http.Client
	Logger   *log.Logger
	Enricher PageEnricher
}

func (s Search) Descriptor() sources.Descriptor {
	return sources.Descriptor{
		Name:       "duckduckgo",
		Tier:       models.TierBestEffort,
		License:    models.LicenseUnknown,
		MediaTypes: []models.MediaType{models.MediaNews},
	}
}

func (s Search) Search(ctx context.Context, query string, limit int) ([]models.RawHit, error) {
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	form := url.Values{}
	form.Set("q", query)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "mediascout/1.0 (research aggregator)")

	resp, err := s.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		s.logf("duckduckgo returned %s for %q", resp.Status, query)
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, err
	}

	var out []models.RawHit
	doc.Find("div.result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		link := sel.Find("a.result__a")
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		target := resolveRedirect(href)
		if target == "" {
			return true
		}
		out = append(out, models.RawHit{
			URL:        target,
			Title:      strings.TrimSpace(link.Text()),
			SourceName: "duckduckgo",
			MediaType:  models.MediaNews,
			Snippet:    strings.TrimSpace(sel.Find(".result__snippet").Text()),
		})
		return len(out) < limit
	})

	s.enrich(ctx, out)
	return out, nil
}

// enrich renders a bounded number of result pages to backfill missing
// snippets and thumbnails. Failures degrade to the unenriched hit.
func (s Search) enrich(ctx context.Context, hits []models.RawHit) {
	if s.Enricher == nil {
		return
	}
	enriched := 0
	for i := range hits {
		if enriched >= enrichLimit {
			break
		}
		if hits[i].Snippet != "" && hits[i].ThumbnailURL != "" {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		title, excerpt, image, err := s.Enricher.Article(ctx, hits[i].URL)
		if err != nil {
			s.logf("enrich %s: %v", hits[i].URL, err)
			continue
		}
		if hits[i].Title == "" && title != "" {
			hits[i].Title = title
		}
		if hits[i].Snippet == "" {
			hits[i].Snippet = excerpt
		}
		if hits[i].ThumbnailURL == "" {
			hits[i].ThumbnailURL = image
		}
		enriched++
		select {
		case <-time.After(enrichDelay):
		case <-ctx.Done():
			return
		}
	}
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= redirect links.
func resolveRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.HasPrefix(u.Path, "/l/") {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
	}
	if u.Scheme == "" {
		if u.Host == "" {
			return ""
		}
		return "https:" + href
	}
	return href
}

func (s Search) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return sources.DefaultHTTPClient
}

func (s Search) logf(format string, args ...interface{}) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
	}
}
