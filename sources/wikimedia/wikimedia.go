package wikimedia

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sort"

	"github.com/pouria-abbasi/mediascout/models"
	"github.com/pouria-abbasi/mediascout/sources"
)

const defaultEndpoint = "https://commons.wikimedia.org/w/api.php"

// Search queries Wikimedia Commons for images in the File namespace.
// https://www.mediawiki.org/wiki/API:Search
type Search struct {
	Endpoint string
	Client   *http.Client
	Logger   *log.Logger
}

func (s Search) Descriptor() sources.Descriptor {
	return sources.Descriptor{
		Name:       "wikimedia_commons",
		Tier:       models.TierArchival,
		License:    models.LicenseMixed,
		MediaTypes: []models.MediaType{models.MediaImage},
	}
}

func (s Search) Search(ctx context.Context, query string, limit int) ([]models.RawHit, error) {
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("generator", "search")
	params.Set("gsrsearch", query)
	params.Set("gsrnamespace", "6") // File:
	params.Set("gsrlimit", fmt.Sprintf("%d", limit))
	params.Set("prop", "imageinfo")
	params.Set("iiprop", "url|size")
	params.Set("iiurlwidth", "320")
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		s.logf("commons returned %s for %q", resp.Status, query)
		return nil, nil
	}

	var raw struct {
		Query struct {
			Pages map[string]struct {
				Title     string `json:"title"`
				Index     int    `json:"index"`
				ImageInfo []struct {
					URL            string `json:"url"`
					DescriptionURL string `json:"descriptionurl"`
					ThumbURL       string `json:"thumburl"`
					Width          int    `json:"width"`
					Height         int    `json:"height"`
				} `json:"imageinfo"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode commons response: %w", err)
	}

	// The pages map is unordered; the index field restores search ranking.
	type page struct {
		index int
		hit   models.RawHit
	}
	pages := make([]page, 0, len(raw.Query.Pages))
	for _, p := range raw.Query.Pages {
		if len(p.ImageInfo) == 0 {
			continue
		}
		info := p.ImageInfo[0]
		target := info.DescriptionURL
		if target == "" {
			target = info.URL
		}
		if target == "" {
			continue
		}
		pages = append(pages, page{index: p.Index, hit: models.RawHit{
			URL:          target,
			Title:        p.Title,
			SourceName:   "wikimedia_commons",
			MediaType:    models.MediaImage,
			ThumbnailURL: info.ThumbURL,
			Width:        info.Width,
			Height:       info.Height,
		}})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].index < pages[j].index })

	out := make([]models.RawHit, 0, len(pages))
	for _, p := range pages {
		out = append(out, p.hit)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
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
