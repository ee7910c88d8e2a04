package openverse

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

const defaultEndpoint = "https://api.openverse.org/v1/images/"

// Search queries the Openverse API for openly licensed images.
// https://api.openverse.org/v1/
type Search struct {
	Endpoint string
	Client   *http.Client
	Logger   *log.Logger
}

func (s Search) Descriptor() sources.Descriptor {
	return sources.Descriptor{
		Name:       "openverse",
		Tier:       models.TierCurated,
		License:    models.LicenseCreativeCommons,
		MediaTypes: []models.MediaType{models.MediaImage},
	}
}

func (s Search) Search(ctx context.Context, query string, limit int) ([]models.RawHit, error) {
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("page_size", fmt.Sprintf("%d", limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		s.logf("openverse returned %s for %q", resp.Status, query)
		return nil, nil
	}

	var raw struct {
		Results []struct {
			Title             string `json:"title"`
			URL               string `json:"url"`
			ForeignLandingURL string `json:"foreign_landing_url"`
			Thumbnail         string `json:"thumbnail"`
			Width             int    `json:"width"`
			Height            int    `json:"height"`
			CreatedOn         string `json:"created_on"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode openverse response: %w", err)
	}

	out := make([]models.RawHit, 0, len(raw.Results))
	for _, r := range raw.Results {
		target := r.ForeignLandingURL
		if target == "" {
			target = r.URL
		}
		if target == "" {
			continue
		}
		hit := models.RawHit{
			URL:          target,
			Title:        r.Title,
			SourceName:   "openverse",
			MediaType:    models.MediaImage,
			ThumbnailURL: r.Thumbnail,
			Width:        r.Width,
			Height:       r.Height,
		}
		if t, err := time.Parse(time.RFC3339, r.CreatedOn); err == nil {
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
