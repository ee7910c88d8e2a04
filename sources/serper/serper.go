package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/pouria-abbasi/mediascout/models"
	"github.com/pouria-abbasi/mediascout/sources"
)

const defaultBaseURL = "https://google.serper.dev"

// Search queries serper.dev, a Google search API. One instance serves one
// media type: video hits come from /videos, news hits from /news.
// https://serper.dev/ docs
type Search struct {
	APIKey    string
	MediaType models.MediaType
	BaseURL   string
	Client    *http.Client
	Logger    *log.Logger
}

func (s Search) Descriptor() sources.Descriptor {
	return sources.Descriptor{
		Name:       "serper",
		Tier:       models.TierWebSearch,
		License:    models.LicenseUnknown,
		MediaTypes: []models.MediaType{s.MediaType},
	}
}

func (s Search) Search(ctx context.Context, query string, limit int) ([]models.RawHit, error) {
	base := s.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	path := "/news"
	if s.MediaType == models.MediaVideo {
		path = "/videos"
	}

	body, _ := json.Marshal(map[string]any{"q": query, "num": limit})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", s.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		s.logf("serper returned %s for %q", resp.Status, query)
		return nil, nil
	}

	var raw struct {
		Videos []serperItem `json:"videos"`
		News   []serperItem `json:"news"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	items := raw.News
	if s.MediaType == models.MediaVideo {
		items = raw.Videos
	}
	out := make([]models.RawHit, 0, len(items))
	for _, it := range items {
		if it.Link == "" {
			continue
		}
		hit := models.RawHit{
			URL:             it.Link,
			Title:           it.Title,
			SourceName:      "serper",
			MediaType:       s.MediaType,
			Snippet:         it.Snippet,
			ThumbnailURL:    it.ImageURL,
			DurationSeconds: parseDuration(it.Duration),
		}
		if t, err := time.Parse(time.RFC3339, it.Date); err == nil {
			hit.PublishedDate = t
		}
		out = append(out, hit)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

type serperItem struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	ImageURL string `json:"imageUrl"`
	Duration string `json:"duration"`
	Date     string `json:"date"`
}

// parseDuration converts serper's "H:MM:SS" / "M:SS" video duration strings.
func parseDuration(s string) int {
	if s == "" {
		return 0
	}
	var total, part int
	for _, ch := range s {
		switch {
		case ch >= '0' && ch <= '9':
			part = part*10 + int(ch-'0')
		case ch == ':':
			total = total*60 + part
			part = 0
		default:
			return 0
		}
	}
	return total*60 + part
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
