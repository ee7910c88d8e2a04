package research

import (
	"context"
	"log"
	"strings"

	"github.com/pouria-abbasi/mediascout/internal/metrics"
	"github.com/pouria-abbasi/mediascout/models"
)

// Candidate is the minimal view of a record the scoring capability sees.
type Candidate struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Verdict is the scorer's judgement for one candidate.
type Verdict struct {
	ID       string  `json:"id"`
	Relevant bool    `json:"relevant"`
	Score    float64 `json:"score"`
}

// RelevanceScorer judges how relevant a batch of candidates is to a topic.
// Implemented by provider.Client.
type RelevanceScorer interface {
	ScoreBatch(ctx context.Context, topic string, candidates []Candidate) ([]Verdict, error)
}

// Filter removes off-topic records in two stages: a cheap title blacklist,
// then batched scoring through the external capability. Scoring failures are
// fail-closed: a batch that cannot be judged is rejected wholesale rather
// than passed through unvetted.
type Filter struct {
	scorer    RelevanceScorer
	threshold float64
	batchSize int
	blacklist []string
	logger    *log.Logger
}

// NewFilter builds a filter. scorer may be nil, in which case only the
// blacklist stage runs and surviving records pass unscored.
func NewFilter(scorer RelevanceScorer, threshold float64, batchSize int, blacklist []string, logger *log.Logger) *Filter {
	if threshold <= 0 {
		threshold = 0.5
	}
	if batchSize <= 0 {
		batchSize = 20
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[FILTER] ", log.LstdFlags)
	}
	return &Filter{
		scorer:    scorer,
		threshold: threshold,
		batchSize: batchSize,
		blacklist: blacklist,
		logger:    logger,
	}
}

// Apply filters records for the topic and returns the survivors in their
// input order, with relevance scores attached where scoring ran.
func (f *Filter) Apply(ctx context.Context, topic string, records []models.CanonicalRecord) []models.CanonicalRecord {
	kept := f.applyBlacklist(topic, records)
	if f.scorer == nil || len(kept) == 0 {
		return kept
	}
	return f.applyScoring(ctx, topic, kept)
}

// applyBlacklist drops records whose title contains a blacklisted term,
// matched case-insensitively as a substring. A term that also appears in the
// topic itself is skipped so a topic about trailers can still find trailers.
func (f *Filter) applyBlacklist(topic string, records []models.CanonicalRecord) []models.CanonicalRecord {
	if len(f.blacklist) == 0 {
		return records
	}
	lowTopic := strings.ToLower(topic)
	active := make([]string, 0, len(f.blacklist))
	for _, term := range f.blacklist {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" || strings.Contains(lowTopic, term) {
			continue
		}
		active = append(active, term)
	}
	if len(active) == 0 {
		return records
	}

	kept := records[:0:0]
	for _, rec := range records {
		title := strings.ToLower(rec.Title)
		rejected := false
		for _, term := range active {
			if strings.Contains(title, term) {
				rejected = true
				break
			}
		}
		if rejected {
			metrics.FilterRejectionsTotal.WithLabelValues("blacklist").Inc()
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}

func (f *Filter) applyScoring(ctx context.Context, topic string, records []models.CanonicalRecord) []models.CanonicalRecord {
	byID := make(map[string]int, len(records))
	for i, rec := range records {
		byID[rec.ID] = i
	}

	keep := make([]bool, len(records))
	scores := make([]float64, len(records))
	failed := make([]bool, len(records))

	for start := 0; start < len(records); start += f.batchSize {
		end := start + f.batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := make([]Candidate, 0, end-start)
		for _, rec := range records[start:end] {
			batch = append(batch, Candidate{ID: rec.ID, Title: rec.Title})
		}

		verdicts, err := f.scorer.ScoreBatch(ctx, topic, batch)
		if err != nil {
			f.logger.Printf("scoring batch of %d failed, rejecting batch: %v", len(batch), err)
			for i := start; i < end; i++ {
				failed[i] = true
			}
			metrics.FilterRejectionsTotal.WithLabelValues("scoring_error").Add(float64(len(batch)))
			continue
		}
		for _, v := range verdicts {
			idx, ok := byID[v.ID]
			if !ok {
				continue
			}
			scores[idx] = v.Score
			// The threshold is inclusive.
			keep[idx] = v.Relevant && v.Score >= f.threshold
		}
	}

	out := make([]models.CanonicalRecord, 0, len(records))
	for i, rec := range records {
		if !keep[i] {
			if !failed[i] {
				metrics.FilterRejectionsTotal.WithLabelValues("scoring").Inc()
			}
			continue
		}
		score := scores[i]
		rec.RelevanceScore = &score
		out = append(out, rec)
	}
	return out
}
