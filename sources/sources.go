package sources

import (
	"context"
	"net/http"
	"time"

	"github.com/pouria-abbasi/mediascout/models"
)

// Adapter queries one upstream source for candidate media hits. Adapters are
// stateless and safe for concurrent use. "No results" and upstream 4xx/5xx are
// not errors: the adapter logs a diagnostic and returns an empty slice. An
// error return means the call itself could not complete (transport failure,
// context cancelled) and is isolated by the fan-out executor.
type Adapter interface {
	// Descriptor returns the adapter's fixed identity, tier and licence.
	Descriptor() Descriptor

	// Search returns up to limit raw hits for the query. It must honour ctx
	// cancellation and return promptly when it fires.
	Search(ctx context.Context, query string, limit int) ([]models.RawHit, error)
}

// Descriptor is the typed registry entry for one source: its name, the tier
// used for ranking, the licence attached to its records, and the media types
// it can serve.
type Descriptor struct {
	Name       string
	Tier       models.SourceTier
	License    models.License
	MediaTypes []models.MediaType
}

// Supports reports whether the adapter serves the given media type.
func (d Descriptor) Supports(mt models.MediaType) bool {
	for _, m := range d.MediaTypes {
		if m == mt {
			return true
		}
	}
	return false
}

// ForMediaType filters adapters down to those serving mt.
func ForMediaType(adapters []Adapter, mt models.MediaType) []Adapter {
	var out []Adapter
	for _, a := range adapters {
		if a.Descriptor().Supports(mt) {
			out = append(out, a)
		}
	}
	return out
}

// DefaultHTTPClient is shared by adapters that are not given their own client.
// Per-call deadlines come from the fan-out executor's context; this timeout is
// a backstop for callers outside the pipeline.
var DefaultHTTPClient = &http.Client{Timeout: 30 * time.Second}
