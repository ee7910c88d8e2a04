package research

import (
	"log"
	"sort"

	"github.com/google/uuid"
	"github.com/pouria-abbasi/mediascout/models"
	"github.com/pouria-abbasi/mediascout/sources"
)

// Normalize maps raw hits to canonical records, attaching each source's fixed
// tier and licence, and deduplicates by normalized URL with first-write-wins
// semantics: the record from whichever adapter appears first in the combined
// list is kept, even if a later duplicate has a better tier. That trade-off
// keeps dedup a single pass over the input.
//
// Hits with an unusable URL or an unknown source are dropped and logged.
func Normalize(hits []models.RawHit, descriptors map[string]sources.Descriptor, logger *log.Logger) []models.CanonicalRecord {
	seen := make(map[string]struct{}, len(hits))
	out := make([]models.CanonicalRecord, 0, len(hits))

	for _, hit := range hits {
		key, err := models.NormalizeURL(hit.URL)
		if err != nil {
			if logger != nil {
				logger.Printf("dropping hit with unusable url %q from %s", hit.URL, hit.SourceName)
			}
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		desc, ok := descriptors[hit.SourceName]
		if !ok {
			if logger != nil {
				logger.Printf("dropping hit from unregistered source %q", hit.SourceName)
			}
			continue
		}
		seen[key] = struct{}{}
		out = append(out, models.CanonicalRecord{
			ID:              uuid.NewString(),
			URL:             key,
			Title:           hit.Title,
			SourceName:      hit.SourceName,
			MediaType:       hit.MediaType,
			Snippet:         hit.Snippet,
			ThumbnailURL:    hit.ThumbnailURL,
			PublishedDate:   hit.PublishedDate,
			DurationSeconds: hit.DurationSeconds,
			Width:           hit.Width,
			Height:          hit.Height,
			Tier:            desc.Tier,
			License:         desc.License,
		})
	}
	return out
}

// Rank sorts records ascending by source tier. The sort is stable, so records
// of equal tier keep their original relative order and a deterministic input
// always produces a deterministic top-N.
func Rank(records []models.CanonicalRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Tier < records[j].Tier
	})
}

// DescriptorIndex builds the source-name lookup Normalize consumes.
func DescriptorIndex(adapters []sources.Adapter) map[string]sources.Descriptor {
	out := make(map[string]sources.Descriptor, len(adapters))
	for _, a := range adapters {
		d := a.Descriptor()
		if existing, ok := out[d.Name]; ok {
			// Same source registered for several media types; merge the list.
			existing.MediaTypes = append(existing.MediaTypes, d.MediaTypes...)
			out[d.Name] = existing
			continue
		}
		out[d.Name] = d
	}
	return out
}
