package duckduckgo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

const resultsPage = `<html><body>
<div class="result">
  <a class="result__a" href="/l/?uddg=https%3A%2F%2Fnews.example%2Fstory-one">Story One</a>
  <div class="result__snippet">First snippet</div>
</div>
<div class="result">
  <a class="result__a" href="https://news.example/story-two">Story Two</a>
  <div class="result__snippet"></div>
</div>
<div class="result">
  <a class="result__a">no href</a>
</div>
</body></html>`

func TestSearchScrapesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if q := r.FormValue("q"); q != "moon landing" {
			t.Errorf("query not forwarded: %q", q)
		}
		w.Write([]byte(resultsPage))
	}))
	defer srv.Close()

	s := Search{Endpoint: srv.URL}
	hits, err := s.Search(context.Background(), "moon landing", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].URL != "https://news.example/story-one" {
		t.Fatalf("redirect not unwrapped: %s", hits[0].URL)
	}
	if hits[0].Title != "Story One" || hits[0].Snippet != "First snippet" {
		t.Fatalf("fields wrong: %+v", hits[0])
	}
	if hits[1].URL != "https://news.example/story-two" {
		t.Fatalf("direct link wrong: %s", hits[1].URL)
	}
}

func TestSearchHonoursLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(resultsPage))
	}))
	defer srv.Close()

	s := Search{Endpoint: srv.URL}
	hits, err := s.Search(context.Background(), "x", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("limit not applied: %d", len(hits))
	}
}

type stubEnricher struct {
	excerpt string
	image   string
	err     error
	calls   int
}

func (s *stubEnricher) Article(_ context.Context, _ string) (string, string, string, error) {
	s.calls++
	return "", s.excerpt, s.image, s.err
}

func TestEnrichBackfillsMissingFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(resultsPage))
	}))
	defer srv.Close()

	enricher := &stubEnricher{excerpt: "rendered excerpt", image: "https://img.example/x.jpg"}
	s := Search{Endpoint: srv.URL, Enricher: enricher}
	hits, err := s.Search(context.Background(), "x", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	// First hit already has a snippet but no thumbnail; second has neither.
	if hits[0].Snippet != "First snippet" {
		t.Fatalf("existing snippet overwritten: %q", hits[0].Snippet)
	}
	if hits[0].ThumbnailURL != "https://img.example/x.jpg" {
		t.Fatalf("thumbnail not backfilled: %q", hits[0].ThumbnailURL)
	}
	if hits[1].Snippet != "rendered excerpt" {
		t.Fatalf("snippet not backfilled: %q", hits[1].Snippet)
	}
}

func TestEnrichFailureDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(resultsPage))
	}))
	defer srv.Close()

	enricher := &stubEnricher{err: errors.New("renderer busy")}
	s := Search{Endpoint: srv.URL, Enricher: enricher}
	hits, err := s.Search(context.Background(), "x", 10)
	if err != nil {
		t.Fatalf("enrichment failure must not fail the search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits lost: %d", len(hits))
	}
}

func TestResolveRedirect(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/l/?uddg=https%3A%2F%2Fa.example%2Fp", "https://a.example/p"},
		{"https://direct.example/x", "https://direct.example/x"},
		{"//cdn.example/y", "https://cdn.example/y"},
		{"/relative/only", ""},
	}
	for _, tc := range cases {
		if got := resolveRedirect(tc.in); got != tc.want {
			t.Errorf("resolveRedirect(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
