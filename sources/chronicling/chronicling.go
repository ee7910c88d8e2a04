package chronicling

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

const defaultEndpoint = "https://chroniclingamerica.loc.gov/search/pages/results/"

// Search queries the Library of Congress Chronicling America API for historic
// newspaper page scans. Everything it serves is public domain.
// https://chroniclingamerica.loc.gov/about/api/
type Search struct {
	Endpoint string
	Client   *http.Client
	Logger   *log.Logger
}

func (s Search) Descriptor() sources.Descriptor {
	return sources.Descriptor{
		Name:       "chronicling_america",
		Tier:       models.TierArchival,
		License:    models.LicensePublicDomain,
		MediaTypes: []models.MediaType{models.MediaNewspaper},
	}
}

func (s Search) Search(ctx context.Context, query string, limit int) ([]models.RawHit, error) {
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	params := url.Values{}
	params.Set("andtext", query)
	params.Set("rows", fmt.Sprintf("%d", limit))
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
		s.logf("chroniclingamerica returned %s for %q", resp.Status, query)
		return nil, nil
	}

	var raw struct {
		Items []struct {
			ID       string `json:"id"`
			Title    string `json:"title"`
			Date     string `json:"date"` // YYYYMMDD
			OCR      string `json:"ocr_eng"`
			PageSeq  int    `json:"sequence"`
			Edition  int    `json:"edition"`
			LCCN     string `json:"lccn"`
			PageNote string `json:"note"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode chronicling response: %w", err)
	}

	base := "https://chroniclingamerica.loc.gov"
	out := make([]models.RawHit, 0, len(raw.Items))
	for _, item := range raw.Items {
		if item.ID == "" {
			continue
		}
		pageURL := base + item.ID
		hit := models.RawHit{
			URL:          pageURL,
			Title:        item.Title,
			SourceName:   "chronicling_america",
			MediaType:    models.MediaNewspaper,
			Snippet:      snippetFromOCR(item.OCR),
			ThumbnailURL: strings.TrimSuffix(pageURL, "/") + "/thumbnail.jpg",
		}
		if t, err := time.Parse("20060102", item.Date); err == nil {
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

// snippetFromOCR trims noisy OCR text down to a short readable excerpt.
func snippetFromOCR(ocr string) string {
	ocr = strings.Join(strings.Fields(ocr), " ")
	if len(ocr) > 300 {
		ocr = ocr[:300]
	}
	return ocr
}
