package research

import (
	"context"
	"errors"
	"testing"

	"github.com/pouria-abbasi/mediascout/models"
)

type stubScorer struct {
	verdicts map[string]Verdict
	err      error
	batches  int
}

func (s *stubScorer) ScoreBatch(_ context.Context, _ string, candidates []Candidate) ([]Verdict, error) {
	s.batches++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]Verdict, 0, len(candidates))
	for _, c := range candidates {
		if v, ok := s.verdicts[c.ID]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func rec(id, title string) models.CanonicalRecord {
	return models.CanonicalRecord{ID: id, Title: title, MediaType: models.MediaVideo}
}

func TestBlacklistRejectsByTitleSubstring(t *testing.T) {
	f := NewFilter(nil, 0.5, 10, []string{"trailer", "reaction"}, nil)
	records := []models.CanonicalRecord{
		rec("1", "Apollo 11 Official TRAILER"),
		rec("2", "Apollo 11 launch footage"),
		rec("3", "My reaction to the moon landing"),
	}

	out := f.Apply(context.Background(), "moon landing", records)
	if len(out) != 1 || out[0].ID != "2" {
		t.Fatalf("blacklist kept wrong records: %+v", out)
	}
}

func TestBlacklistTermInTopicIsSkipped(t *testing.T) {
	f := NewFilter(nil, 0.5, 10, []string{"trailer"}, nil)
	records := []models.CanonicalRecord{rec("1", "Best trailer compilation")}

	out := f.Apply(context.Background(), "history of movie trailers", records)
	if len(out) != 1 {
		t.Fatal("term present in topic must not reject")
	}
}

func TestScoringThresholdIsInclusive(t *testing.T) {
	scorer := &stubScorer{verdicts: map[string]Verdict{
		"at":    {ID: "at", Relevant: true, Score: 0.5},
		"below": {ID: "below", Relevant: true, Score: 0.49},
		"above": {ID: "above", Relevant: true, Score: 0.9},
	}}
	f := NewFilter(scorer, 0.5, 10, nil, nil)
	records := []models.CanonicalRecord{rec("at", "a"), rec("below", "b"), rec("above", "c")}

	out := f.Apply(context.Background(), "topic", records)
	if len(out) != 2 {
		t.Fatalf("expected 2 survivors, got %d", len(out))
	}
	for _, r := range out {
		if r.ID == "below" {
			t.Fatal("score below threshold survived")
		}
		if r.RelevanceScore == nil {
			t.Fatalf("record %s missing relevance score", r.ID)
		}
	}
}

func TestScoringRelevantFlagRequired(t *testing.T) {
	scorer := &stubScorer{verdicts: map[string]Verdict{
		"1": {ID: "1", Relevant: false, Score: 0.9},
	}}
	f := NewFilter(scorer, 0.5, 10, nil, nil)

	out := f.Apply(context.Background(), "topic", []models.CanonicalRecord{rec("1", "a")})
	if len(out) != 0 {
		t.Fatal("high score with relevant=false must be rejected")
	}
}

func TestScoringFailClosed(t *testing.T) {
	scorer := &stubScorer{err: errors.New("capability down")}
	f := NewFilter(scorer, 0.5, 10, nil, nil)
	records := []models.CanonicalRecord{rec("1", "a"), rec("2", "b")}

	out := f.Apply(context.Background(), "topic", records)
	if len(out) != 0 {
		t.Fatalf("failed batch must reject all records, kept %d", len(out))
	}
}

func TestScoringBatchFailureIsPerBatch(t *testing.T) {
	// First batch errors, second succeeds. Batch size 1 splits them.
	scorer := &flakyScorer{failFirst: true, verdicts: map[string]Verdict{
		"2": {ID: "2", Relevant: true, Score: 0.8},
	}}
	f := NewFilter(scorer, 0.5, 1, nil, nil)
	records := []models.CanonicalRecord{rec("1", "a"), rec("2", "b")}

	out := f.Apply(context.Background(), "topic", records)
	if len(out) != 1 || out[0].ID != "2" {
		t.Fatalf("expected only record 2 to survive, got %+v", out)
	}
}

type flakyScorer struct {
	failFirst bool
	verdicts  map[string]Verdict
	calls     int
}

func (s *flakyScorer) ScoreBatch(_ context.Context, _ string, candidates []Candidate) ([]Verdict, error) {
	s.calls++
	if s.failFirst && s.calls == 1 {
		return nil, errors.New("transient")
	}
	out := make([]Verdict, 0, len(candidates))
	for _, c := range candidates {
		if v, ok := s.verdicts[c.ID]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func TestOmittedVerdictRejects(t *testing.T) {
	scorer := &stubScorer{verdicts: map[string]Verdict{}}
	f := NewFilter(scorer, 0.5, 10, nil, nil)

	out := f.Apply(context.Background(), "topic", []models.CanonicalRecord{rec("1", "a")})
	if len(out) != 0 {
		t.Fatal("candidate the scorer ignored must be rejected")
	}
}

func TestNilScorerSkipsStageB(t *testing.T) {
	f := NewFilter(nil, 0.5, 10, nil, nil)
	records := []models.CanonicalRecord{rec("1", "a"), rec("2", "b")}

	out := f.Apply(context.Background(), "topic", records)
	if len(out) != 2 {
		t.Fatalf("without a scorer all blacklist survivors pass, got %d", len(out))
	}
	for _, r := range out {
		if r.RelevanceScore != nil {
			t.Fatal("unscored records must not carry a score")
		}
	}
}

func TestFilterPreservesInputOrder(t *testing.T) {
	scorer := &stubScorer{verdicts: map[string]Verdict{
		"1": {ID: "1", Relevant: true, Score: 0.6},
		"2": {ID: "2", Relevant: true, Score: 0.6},
		"3": {ID: "3", Relevant: true, Score: 0.6},
	}}
	f := NewFilter(scorer, 0.5, 2, nil, nil)
	records := []models.CanonicalRecord{rec("1", "a"), rec("2", "b"), rec("3", "c")}

	out := f.Apply(context.Background(), "topic", records)
	for i, want := range []string{"1", "2", "3"} {
		if out[i].ID != want {
			t.Fatalf("order disturbed at %d: got %s", i, out[i].ID)
		}
	}
}
