package models

import (
	"errors"
	"net/url"
	"path"
	"strings"
	"time"
)

// MediaType identifies which kind of artefact a search hit refers to.
type MediaType string

const (
	MediaVideo     MediaType = "video"
	MediaImage     MediaType = "image"
	MediaNews      MediaType = "news"
	MediaNewspaper MediaType = "newspaper"
)

// AllMediaTypes lists every supported media type in display order.
func AllMediaTypes() []MediaType {
	return []MediaType{MediaVideo, MediaImage, MediaNews, MediaNewspaper}
}

// ParseMediaType validates a user-supplied media type string.
func ParseMediaType(s string) (MediaType, bool) {
	switch MediaType(strings.ToLower(strings.TrimSpace(s))) {
	case MediaVideo:
		return MediaVideo, true
	case MediaImage:
		return MediaImage, true
	case MediaNews:
		return MediaNews, true
	case MediaNewspaper:
		return MediaNewspaper, true
	}
	return "", false
}

// License describes the usage rights a source reports for its material.
type License string

const (
	LicensePublicDomain    License = "public_domain"
	LicenseCreativeCommons License = "creative_commons"
	LicenseCommercial      License = "commercial"
	LicenseEditorial       License = "editorial"
	LicenseUnknown         License = "unknown"
	LicenseMixed           License = "mixed"
)

// SourceTier is a per-adapter trust/priority ranking. Lower is preferred.
// Tiers only drive sort order; they never reject a record.
type SourceTier int

const (
	TierArchival   SourceTier = 1 // curated archival / public-domain collections
	TierCurated    SourceTier = 2 // licensed or editorially curated APIs
	TierWebSearch  SourceTier = 3 // general web search APIs
	TierBestEffort SourceTier = 4 // scraped fallbacks, no quality guarantees
)

// RawHit is a single candidate reported by one source adapter for one query.
// Immutable once returned by the adapter.
type RawHit struct {
	URL             string    `json:"url"`
	Title           string    `json:"title,omitempty"`
	SourceName      string    `json:"source_name,omitempty"`
	MediaType       MediaType `json:"media_type"`
	Snippet         string    `json:"snippet,omitempty"`
	ThumbnailURL    string    `json:"thumbnail_url,omitempty"`
	PublishedDate   time.Time `json:"published_date,omitempty"`
	DurationSeconds int       `json:"duration_seconds,omitempty"`
	Width           int       `json:"width,omitempty"`
	Height          int       `json:"height,omitempty"`
}

// CanonicalRecord is the normalized, deduplicated representation of a media
// candidate. Created during normalization, enriched during filtering, and
// immutable once ranking completes. Each pipeline run owns its own record set.
type CanonicalRecord struct {
	ID              string     `json:"id"`
	URL             string     `json:"url"`
	Title           string     `json:"title,omitempty"`
	SourceName      string     `json:"source_name"`
	MediaType       MediaType  `json:"media_type"`
	Snippet         string     `json:"snippet,omitempty"`
	ThumbnailURL    string     `json:"thumbnail_url,omitempty"`
	PublishedDate   time.Time  `json:"published_date,omitempty"`
	DurationSeconds int        `json:"duration_seconds,omitempty"`
	Width           int        `json:"width,omitempty"`
	Height          int        `json:"height,omitempty"`
	Tier            SourceTier `json:"tier"`
	License         License    `json:"license"`
	RelevanceScore  *float64   `json:"relevance_score,omitempty"`
}

// JobStatus is the lifecycle state of a research job.
type JobStatus string

const (
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// Terminal reports whether no further status transition is permitted.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// Job tracks one research request. Status transitions are monotonic:
// processing -> completed|failed|cancelled, and terminal states are immutable.
type Job struct {
	ID           string            `json:"id"`
	Topic        string            `json:"topic"`
	MediaTypes   []MediaType       `json:"media_types,omitempty"`
	Status       JobStatus         `json:"status"`
	Counts       map[MediaType]int `json:"counts,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}

// ErrInvalidURL is returned by NormalizeURL for hits whose URL cannot serve as
// a deduplication key.
var ErrInvalidURL = errors.New("invalid url")

// NormalizeURL reduces a hit URL to the deduplication key used across every
// adapter: lowercased scheme and host (default ports removed), cleaned path.
// The query string and fragment are always stripped, so adapters whose
// resource identity lives in query parameters must report a path-addressable
// URL instead. A schemeless URL defaults to https.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidURL
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidURL
	}
	if parsed.Scheme == "" && parsed.Host == "" {
		if strings.HasPrefix(raw, "//") {
			parsed, err = url.Parse("https:" + raw)
		} else {
			parsed, err = url.Parse("https://" + raw)
		}
		if err != nil {
			return "", ErrInvalidURL
		}
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme == "" {
		scheme = "https"
	}
	host := strings.ToLower(parsed.Host)
	if host == "" {
		return "", ErrInvalidURL
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		port := host[idx+1:]
		if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
			host = host[:idx]
		}
	}

	cleaned := path.Clean(parsed.Path)
	if cleaned == "." || cleaned == "" {
		cleaned = "/"
	}
	if !strings.HasPrefix(cleaned, "/") {
		cleaned = "/" + cleaned
	}

	return scheme + "://" + host + cleaned, nil
}
