// Package index keeps a per-job full-text index of the final record set so
// researchers can query inside a job's results without another pipeline run.
package index

import (
	"fmt"
	"sync"
	"time"

	"github.com/blevesearch/bleve"

	"github.com/pouria-abbasi/mediascout/models"
)

// SearchHit is one match from a job index.
type SearchHit struct {
	Record models.CanonicalRecord `json:"record"`
	Score  float64                `json:"score"`
	Rank   int                    `json:"rank"`
}

// Manager owns one in-memory bleve index per finished job. Indexes expire
// after the TTL; the persistent record set stays in the store.
type Manager struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]*jobIndex
}

type jobIndex struct {
	index     bleve.Index
	records   map[string]models.CanonicalRecord
	expiresAt time.Time
}

// NewManager creates a manager whose indexes live for ttl after build.
func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Manager{ttl: ttl, entries: make(map[string]*jobIndex)}
}

type indexedDoc struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"`
}

// Build indexes a job's record set, replacing any previous index for the job.
func (m *Manager) Build(jobID string, records []models.CanonicalRecord) error {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	byID := make(map[string]models.CanonicalRecord, len(records))
	batch := idx.NewBatch()
	for _, rec := range records {
		byID[rec.ID] = rec
		if err := batch.Index(rec.ID, indexedDoc{
			Title:   rec.Title,
			Snippet: rec.Snippet,
			Source:  rec.SourceName,
		}); err != nil {
			return fmt.Errorf("index record %s: %w", rec.ID, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		return fmt.Errorf("commit index batch: %w", err)
	}

	m.mu.Lock()
	m.entries[jobID] = &jobIndex{
		index:     idx,
		records:   byID,
		expiresAt: time.Now().Add(m.ttl),
	}
	m.mu.Unlock()
	return nil
}

// Search runs a query-string search over one job's index. The second return
// is false when no live index exists for the job.
func (m *Manager) Search(jobID, q string, k int) ([]SearchHit, bool, error) {
	if k <= 0 {
		k = 10
	}
	m.mu.RLock()
	entry, ok := m.entries[jobID]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		m.Evict(jobID)
		return nil, false, nil
	}

	query := bleve.NewQueryStringQuery(q)
	req := bleve.NewSearchRequestOptions(query, k, 0, false)
	res, err := entry.index.Search(req)
	if err != nil {
		return nil, true, fmt.Errorf("search job %s: %w", jobID, err)
	}

	out := make([]SearchHit, 0, len(res.Hits))
	for i, hit := range res.Hits {
		rec, ok := entry.records[hit.ID]
		if !ok {
			continue
		}
		out = append(out, SearchHit{Record: rec, Score: hit.Score, Rank: i + 1})
	}
	return out, true, nil
}

// Evict drops a job's index immediately.
func (m *Manager) Evict(jobID string) {
	m.mu.Lock()
	entry, ok := m.entries[jobID]
	if ok {
		delete(m.entries, jobID)
	}
	m.mu.Unlock()
	if ok {
		_ = entry.index.Close()
	}
}

// EvictExpired closes and removes every index past its TTL, returning how
// many were dropped.
func (m *Manager) EvictExpired() int {
	now := time.Now()
	m.mu.Lock()
	var expired []*jobIndex
	for id, entry := range m.entries {
		if now.After(entry.expiresAt) {
			expired = append(expired, entry)
			delete(m.entries, id)
		}
	}
	m.mu.Unlock()
	for _, entry := range expired {
		_ = entry.index.Close()
	}
	return len(expired)
}
