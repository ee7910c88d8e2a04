package openai_provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pouria-abbasi/mediascout/internal/research"
)

func completionResponse(content string) string {
	body, _ := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
	})
	return string(body)
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer key-123" {
			t.Errorf("auth header: %q", auth)
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "test-model" || len(req.Messages) != 1 {
			t.Errorf("unexpected request: %+v", req)
		}
		w.Write([]byte(completionResponse("hello there")))
	}))
	defer srv.Close()

	c := NewOpenAIClient("key-123", srv.URL, "test-model", 0.2, 100, time.Second)
	out, err := c.Generate(context.Background(), "say hello")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "hello there" {
		t.Fatalf("unexpected completion: %q", out)
	}
}

func TestGenerateUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("k", srv.URL, "m", 0, 0, time.Second)
	if _, err := c.Generate(context.Background(), "x"); err == nil {
		t.Fatal("expected error on 429")
	}
}

func TestScoreBatchParsesVerdicts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(completionResponse("Sure, here are the judgements:\n" +
			`[{"id":"a","relevant":true,"score":0.9},{"id":"b","relevant":false,"score":0.1}]`)))
	}))
	defer srv.Close()

	c := NewOpenAIClient("k", srv.URL, "m", 0, 0, time.Second)
	verdicts, err := c.ScoreBatch(context.Background(), "topic", []research.Candidate{
		{ID: "a", Title: "one"}, {ID: "b", Title: "two"},
	})
	if err != nil {
		t.Fatalf("ScoreBatch: %v", err)
	}
	if len(verdicts) != 2 {
		t.Fatalf("expected 2 verdicts, got %d", len(verdicts))
	}
	if !verdicts[0].Relevant || verdicts[0].Score != 0.9 {
		t.Fatalf("verdict wrong: %+v", verdicts[0])
	}
}

func TestScoreBatchRejectsProseOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(completionResponse("I cannot judge these candidates.")))
	}))
	defer srv.Close()

	c := NewOpenAIClient("k", srv.URL, "m", 0, 0, time.Second)
	if _, err := c.ScoreBatch(context.Background(), "topic", []research.Candidate{{ID: "a"}}); err == nil {
		t.Fatal("expected error when no JSON array is present")
	}
}

func TestScoreBatchEmptyInput(t *testing.T) {
	c := NewOpenAIClient("k", "http://unused.invalid", "m", 0, 0, time.Second)
	verdicts, err := c.ScoreBatch(context.Background(), "topic", nil)
	if err != nil || verdicts != nil {
		t.Fatalf("empty input must short-circuit: %v %v", verdicts, err)
	}
}

func TestExtractJSONArray(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`[1,2]`, `[1,2]`},
		{"prose [\n{\"a\": [1]}\n] more", "[\n{\"a\": [1]}\n]"},
		{"nothing here", ""},
	}
	for _, tc := range cases {
		if got := extractJSONArray(tc.in); got != tc.want {
			t.Errorf("extractJSONArray(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
