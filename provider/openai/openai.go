package openai_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pouria-abbasi/mediascout/internal/research"
)

const defaultBaseURL = "https://api.openai.com/v1"

// OpenAIClient talks to the chat-completions API. It implements
// research.TextGenerator and research.RelevanceScorer.
type OpenAIClient struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

// Message represents a message in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(apiKey, baseURL, model string, temperature float64, maxTokens int, timeout time.Duration) *OpenAIClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIClient{
		apiKey:      apiKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// Generate sends a single-turn prompt and returns the raw completion text.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, []Message{{Role: "user", Content: prompt}})
}

// ScoreBatch asks the model to judge every candidate's relevance to the
// topic. The response must cover every candidate; IDs the model omits are
// treated as not relevant by the caller.
func (c *OpenAIClient) ScoreBatch(ctx context.Context, topic string, candidates []research.Candidate) ([]research.Verdict, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	listing, err := json.Marshal(candidates)
	if err != nil {
		return nil, fmt.Errorf("marshal candidates: %w", err)
	}

	prompt := fmt.Sprintf(`You are vetting search results for a documentary research topic.

TOPIC: %s

CANDIDATES (JSON array of {id, title}):
%s

For EVERY candidate, judge whether its title plausibly relates to the topic and assign a relevance score between 0.0 and 1.0.

Respond ONLY with a JSON array, one element per candidate:
[{"id": "...", "relevant": true, "score": 0.8}]`, topic, string(listing))

	content, err := c.complete(ctx, []Message{{Role: "user", Content: prompt}})
	if err != nil {
		return nil, err
	}

	jsonStr := extractJSONArray(content)
	if jsonStr == "" {
		return nil, fmt.Errorf("no JSON array in scoring response")
	}

	var verdicts []research.Verdict
	if err := json.Unmarshal([]byte(jsonStr), &verdicts); err != nil {
		return nil, fmt.Errorf("parse scoring response: %w", err)
	}
	return verdicts, nil
}

func (c *OpenAIClient) complete(ctx context.Context, messages []Message) (string, error) {
	body, err := json.Marshal(request{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	return parsed.Choices[0].Message.Content, nil
}

// extractJSONArray pulls the first balanced JSON array out of a response that
// may carry surrounding prose or code fences.
func extractJSONArray(s string) string {
	start := -1
	depth := 0
	for i, ch := range s {
		if ch == '[' {
			if depth == 0 {
				start = i
			}
			depth++
		} else if ch == ']' {
			if depth > 0 {
				depth--
			}
			if depth == 0 && start != -1 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
