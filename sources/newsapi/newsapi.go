package newsapi

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

const defaultEndpoint = "https://newsapi.org/v2/everything"

// Search queries NewsAPI's everything endpoint for recent articles.
// https://newsapi.org/docs/endpoints/everything
type Search struct {
	APIKey   string
	Endpoint string
	Client   *http.Client
	Logger   *log.Logger
}

func (s Search) Descriptor() sources.Descriptor {
	return sources.Descriptor{
		Name:       "newsapi",
		Tier:       models.TierCurated,
		License:    models.LicenseEditorial,
		MediaTypes: []models.MediaType{models.MediaNews},
	}
}

func (s Search) Search(ctx context.Context, query string, limit int) ([]models.RawHit, error) {
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("pageSize", fmt.Sprintf("%d", limit))
	params.Set("sortBy", "relevancy")
	params.Set("apiKey", s.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		s.logf("newsapi returned %s for %q", resp.Status, query)
		return nil, nil
	}

	var result struct {
		Status   string `json:"status"`
		Articles []struct {
			Source struct {
				Name string `json:"name"`
			} `json:"source"`
			Title       string    `json:"title"`
			Description string    `json:"description"`
			URL         string    `json:"url"`
			URLToImage  string    `json:"urlToImage"`
			PublishedAt time.Time `json:"publishedAt"`
		} `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Status != "ok" {
		s.logf("newsapi status %q for %q", result.Status, query)
		return nil, nil
	}

	out := make([]models.RawHit, 0, len(result.Articles))
	for _, a := range result.Articles {
		if a.URL == "" {
			continue
		}
		out = append(out, models.RawHit{
			URL:           a.URL,
			Title:         a.Title,
			SourceName:    "newsapi",
			MediaType:     models.MediaNews,
			Snippet:       a.Description,
			ThumbnailURL:  a.URLToImage,
			PublishedDate: a.PublishedAt,
		})
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
