package research

import (
	"context"
	"errors"
	"testing"

	"github.com/pouria-abbasi/mediascout/models"
)

type stubGenerator struct {
	response string
	err      error
	calls    int
}

func (s *stubGenerator) Generate(_ context.Context, _ string) (string, error) {
	s.calls++
	return s.response, s.err
}

func TestFallbackQueriesTotal(t *testing.T) {
	for _, mt := range models.AllMediaTypes() {
		out := FallbackQueries("moon landing", []models.MediaType{mt}, 3)
		queries, ok := out[mt]
		if !ok || len(queries) == 0 {
			t.Fatalf("no queries for %s", mt)
		}
		for _, q := range queries {
			if q == "" {
				t.Fatalf("empty query for %s", mt)
			}
		}
	}
}

func TestFallbackQueriesClampsPerType(t *testing.T) {
	out := FallbackQueries("topic", []models.MediaType{models.MediaImage}, 50)
	if len(out[models.MediaImage]) == 0 {
		t.Fatal("expected queries")
	}
	if len(out[models.MediaImage]) > 50 {
		t.Fatalf("returned more than requested: %d", len(out[models.MediaImage]))
	}
}

func TestPlanQueriesUsesCapability(t *testing.T) {
	gen := &stubGenerator{response: `Here you go:
{"video": ["apollo 11 launch footage", "moon landing broadcast"], "image": ["apollo 11 crew photo"]}`}
	p := NewPlanner(gen, 2, nil)

	out := p.PlanQueries(context.Background(), "moon landing", []models.MediaType{models.MediaVideo, models.MediaImage})
	if gen.calls != 1 {
		t.Fatalf("expected one generation call, got %d", gen.calls)
	}
	if got := out[models.MediaVideo]; len(got) != 2 || got[0] != "apollo 11 launch footage" {
		t.Fatalf("unexpected video queries: %v", got)
	}
	if got := out[models.MediaImage]; len(got) != 1 {
		t.Fatalf("unexpected image queries: %v", got)
	}
}

func TestPlanQueriesFallsBackOnError(t *testing.T) {
	gen := &stubGenerator{err: errors.New("capability down")}
	p := NewPlanner(gen, 2, nil)

	out := p.PlanQueries(context.Background(), "moon landing", models.AllMediaTypes())
	for _, mt := range models.AllMediaTypes() {
		if len(out[mt]) == 0 {
			t.Fatalf("no fallback queries for %s", mt)
		}
	}
}

func TestPlanQueriesFallsBackOnGarbage(t *testing.T) {
	gen := &stubGenerator{response: "I cannot help with that."}
	p := NewPlanner(gen, 2, nil)

	out := p.PlanQueries(context.Background(), "moon landing", []models.MediaType{models.MediaNews})
	if len(out[models.MediaNews]) == 0 {
		t.Fatal("expected fallback queries for news")
	}
}

func TestPlanQueriesFillsMissingTypes(t *testing.T) {
	// Capability answers only for video; the other requested type must still
	// get queries.
	gen := &stubGenerator{response: `{"video": ["apollo footage"]}`}
	p := NewPlanner(gen, 2, nil)

	out := p.PlanQueries(context.Background(), "moon landing", []models.MediaType{models.MediaVideo, models.MediaNewspaper})
	if len(out[models.MediaVideo]) != 1 {
		t.Fatalf("unexpected video queries: %v", out[models.MediaVideo])
	}
	if len(out[models.MediaNewspaper]) == 0 {
		t.Fatal("newspaper queries missing")
	}
}

func TestPlanQueriesNilGenerator(t *testing.T) {
	p := NewPlanner(nil, 3, nil)
	out := p.PlanQueries(context.Background(), "moon landing", []models.MediaType{models.MediaVideo})
	if len(out[models.MediaVideo]) == 0 {
		t.Fatal("expected template queries without a generator")
	}
}

func TestExtractJSONObject(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"a": 1}`, `{"a": 1}`},
		{"```json\n{\"a\": {\"b\": 2}}\n```", `{"a": {"b": 2}}`},
		{"no json here", ""},
		{"prefix {\"k\": \"v\"} suffix", `{"k": "v"}`},
	}
	for _, tc := range cases {
		if got := extractJSONObject(tc.in); got != tc.want {
			t.Errorf("extractJSONObject(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
