package research

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/pouria-abbasi/mediascout/models"
)

// TextGenerator is the external text-generation capability the planner uses
// for query expansion. Implemented by provider.Client.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Planner turns a research topic into per-media-type search queries. The
// primary path asks the generation capability for expansions; any failure
// falls back to deterministic templates, so planning never stalls a job.
type Planner struct {
	gen            TextGenerator
	queriesPerType int
	logger         *log.Logger
}

// NewPlanner creates a planner. gen may be nil, in which case only the
// template fallback is used.
func NewPlanner(gen TextGenerator, queriesPerType int, logger *log.Logger) *Planner {
	if queriesPerType <= 0 {
		queriesPerType = 3
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[PLANNER] ", log.LstdFlags)
	}
	return &Planner{gen: gen, queriesPerType: queriesPerType, logger: logger}
}

// PlanQueries returns an ordered list of queries for every requested media
// type. It is total: every requested type gets at least one non-empty query.
func (p *Planner) PlanQueries(ctx context.Context, topic string, types []models.MediaType) map[models.MediaType][]string {
	if p.gen != nil {
		planned, err := p.planWithCapability(ctx, topic, types)
		if err == nil {
			return planned
		}
		p.logger.Printf("capability planning failed, using templates: %v", err)
	}
	return FallbackQueries(topic, types, p.queriesPerType)
}

func (p *Planner) planWithCapability(ctx context.Context, topic string, types []models.MediaType) (map[models.MediaType][]string, error) {
	prompt := p.buildPrompt(topic, types)
	response, err := p.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	jsonStr := extractJSONObject(response)
	if jsonStr == "" {
		return nil, fmt.Errorf("no JSON found in response")
	}

	var raw map[string][]string
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return nil, fmt.Errorf("parse planning response: %w", err)
	}

	out := make(map[models.MediaType][]string, len(types))
	for _, mt := range types {
		var queries []string
		for _, q := range raw[string(mt)] {
			q = strings.TrimSpace(q)
			if q == "" {
				continue
			}
			queries = append(queries, q)
			if len(queries) >= p.queriesPerType {
				break
			}
		}
		if len(queries) == 0 {
			// Partial responses degrade per type, not per plan.
			queries = FallbackQueries(topic, []models.MediaType{mt}, p.queriesPerType)[mt]
		}
		out[mt] = queries
	}
	return out, nil
}

func (p *Planner) buildPrompt(topic string, types []models.MediaType) string {
	names := make([]string, len(types))
	for i, mt := range types {
		names[i] = string(mt)
	}
	return fmt.Sprintf(`You are a research assistant planning archive searches for a documentary research topic.

TOPIC: %s

For each of the following media types, produce %d short search queries that would surface relevant material in public archives and news indexes: %s.

Queries should vary phrasing (era-specific terms, names of people and places, event keywords). Do not number them.

OUTPUT FORMAT (JSON only, no commentary):
{
  "video": ["query one", "query two"],
  "image": ["..."],
  "news": ["..."],
  "newspaper": ["..."]
}

Only include keys for the requested media types.`, topic, p.queriesPerType, strings.Join(names, ", "))
}

// fallbackTemplates are applied to the topic verbatim. Per media type,
// ordered by expected usefulness.
var fallbackTemplates = map[models.MediaType][]string{
	models.MediaVideo:     {"%s", "%s documentary", "%s footage", "%s archival film"},
	models.MediaImage:     {"%s", "%s photograph", "%s historical photo"},
	models.MediaNews:      {"%s", "%s news", "%s report"},
	models.MediaNewspaper: {"%s", "%s headline", "%s front page"},
}

// FallbackQueries derives queries from fixed templates. Pure and total: for
// any topic and any requested type it returns at least one query.
func FallbackQueries(topic string, types []models.MediaType, perType int) map[models.MediaType][]string {
	if perType <= 0 {
		perType = 1
	}
	topic = strings.TrimSpace(topic)
	out := make(map[models.MediaType][]string, len(types))
	for _, mt := range types {
		templates, ok := fallbackTemplates[mt]
		if !ok {
			templates = []string{"%s"}
		}
		n := perType
		if n > len(templates) {
			n = len(templates)
		}
		queries := make([]string, 0, n)
		for _, tpl := range templates[:n] {
			queries = append(queries, strings.TrimSpace(fmt.Sprintf(tpl, topic)))
		}
		out[mt] = queries
	}
	return out
}

// extractJSONObject pulls the first balanced JSON object out of a model
// response that may carry surrounding prose or code fences.
func extractJSONObject(response string) string {
	start := -1
	depth := 0
	for i, ch := range response {
		if ch == '{' {
			if depth == 0 {
				start = i
			}
			depth++
		} else if ch == '}' {
			if depth > 0 {
				depth--
			}
			if depth == 0 && start != -1 {
				return response[start : i+1]
			}
		}
	}
	return ""
}
