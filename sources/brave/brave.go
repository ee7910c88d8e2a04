package brave

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/pouria-abbasi/mediascout/models"
	"github.com/pouria-abbasi/mediascout/sources"
)

const defaultEndpoint = "https://api.search.brave.com/res/v1/news/search"

// Search queries the Brave news search API.
// https://api.search.brave.com/app/documentation/news-search
type Search struct {
	APIKey   string
	Endpoint string
	Client   *http.Client
	Logger   *log.Logger
}

func (s Search) Descriptor() sources.Descriptor {
	return sources.Descriptor{
		Name:       "brave",
		Tier:       models.TierWebSearch,
		License:    models.LicenseUnknown,
		MediaTypes: []models.MediaType{models.MediaNews},
	}
}

func (s Search) Search(ctx context.Context, query string, limit int) ([]models.RawHit, error) {
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	reqURL := fmt.Sprintf("%s?q=%s&count=%d", endpoint, url.QueryEscape(query), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", s.APIKey)

	resp, err := s.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		s.logf("brave returned %s for %q", resp.Status, query)
		return nil, nil
	}

	var raw struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
			Age         string `json:"page_age"`
			Thumbnail   struct {
				Src string `json:"src"`
			} `json:"thumbnail"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	out := make([]models.RawHit, 0, len(raw.Results))
	for _, r := range raw.Results {
		if r.URL == "" {
			continue
		}
		hit := models.RawHit{
			URL:          r.URL,
			Title:        r.Title,
			SourceName:   "brave",
			MediaType:    models.MediaNews,
			Snippet:      r.Description,
			ThumbnailURL: r.Thumbnail.Src,
		}
		if t, err := time.Parse(time.RFC3339, r.Age); err == nil {
			hit.PublishedDate = t
		}
		out = append(out, hit)
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
