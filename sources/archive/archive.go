package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pouria-abbasi/mediascout/models"
	"github.com/pouria-abbasi/mediascout/sources"
)

const defaultEndpoint = "https://archive.org/advancedsearch.php"

// Search queries the Internet Archive advanced search API for one media type.
// The registry constructs one instance per type it wants served.
// https://archive.org/advancedsearch.php (output=json)
type Search struct {
	MediaType models.MediaType
	Endpoint  string
	Client    *http.Client
	Logger    *log.Logger
}

func (s Search) Descriptor() sources.Descriptor {
	return sources.Descriptor{
		Name:       "internet_archive",
		Tier:       models.TierArchival,
		License:    models.LicenseMixed,
		MediaTypes: []models.MediaType{s.MediaType},
	}
}

// archiveMediatype maps our media types onto the Archive's mediatype facet.
func archiveMediatype(mt models.MediaType) string {
	if mt == models.MediaImage {
		return "image"
	}
	return "movies"
}

func (s Search) Search(ctx context.Context, query string, limit int) ([]models.RawHit, error) {
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	params := url.Values{}
	params.Set("q", fmt.Sprintf("(%s) AND mediatype:(%s)", query, archiveMediatype(s.MediaType)))
	params.Add("fl[]", "identifier")
	params.Add("fl[]", "title")
	params.Add("fl[]", "description")
	params.Add("fl[]", "date")
	params.Set("rows", fmt.Sprintf("%d", limit))
	params.Set("page", "1")
	params.Set("output", "json")

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
		s.logf("archive.org returned %s for %q", resp.Status, query)
		return nil, nil
	}

	var raw struct {
		Response struct {
			Docs []struct {
				Identifier  string          `json:"identifier"`
				Title       json.RawMessage `json:"title"`
				Description json.RawMessage `json:"description"`
				Date        string          `json:"date"`
			} `json:"docs"`
		} `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode archive response: %w", err)
	}

	out := make([]models.RawHit, 0, len(raw.Response.Docs))
	for _, doc := range raw.Response.Docs {
		if doc.Identifier == "" {
			continue
		}
		hit := models.RawHit{
			URL:          "https://archive.org/details/" + doc.Identifier,
			Title:        flexString(doc.Title),
			SourceName:   "internet_archive",
			MediaType:    s.MediaType,
			Snippet:      truncate(flexString(doc.Description), 500),
			ThumbnailURL: "https://archive.org/services/img/" + doc.Identifier,
		}
		if t, err := time.Parse(time.RFC3339, doc.Date); err == nil {
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

// flexString handles Archive fields that are sometimes a string and sometimes
// an array of strings.
func flexString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil {
		return strings.Join(arr, " ")
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
