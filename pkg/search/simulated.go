package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nexus-rd/nexus/pkg/domain"
	"github.com/nexus-rd/nexus/pkg/observability"
)

// SimulatedSearcher produces plausible evidence when no live search
// backend is configured. With a reasoning engine it asks the model to
// invent verification sources for the query; without one, or when the
// engine fails, it falls back to deterministic canned sources so the
// pipeline keeps moving.
type SimulatedSearcher struct {
	engine domain.ReasoningEngine
	logger observability.Logger
}

// NewSimulatedSearcher creates a simulated searcher. Engine and logger
// may both be nil.
func NewSimulatedSearcher(engine domain.ReasoningEngine, logger observability.Logger) *SimulatedSearcher {
	return &SimulatedSearcher{
		engine: engine,
		logger: logger,
	}
}

// simulatedSource is the shape the engine is asked to produce per source
type simulatedSource struct {
	SourceType     string  `json:"source_type"`
	SourceName     string  `json:"source_name"`
	URL            string  `json:"url"`
	AuthorityScore float64 `json:"authority_score"`
	Excerpt        string  `json:"relevant_excerpt"`
}

// Search returns simulated evidence sources for a query
func (s *SimulatedSearcher) Search(ctx context.Context, query string, limit int) ([]domain.EvidenceSource, error) {
	if limit <= 0 {
		limit = 5
	}

	if s.engine != nil {
		sources, err := s.generate(ctx, query, limit)
		if err == nil && len(sources) > 0 {
			return sources, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if s.logger != nil {
				s.logger.Warn(ctx, "simulated source generation failed, using canned sources",
					map[string]interface{}{"error": err.Error()})
			}
		}
	}

	return cannedSources(query, limit), nil
}

func (s *SimulatedSearcher) generate(ctx context.Context, query string, limit int) ([]domain.EvidenceSource, error) {
	prompt := fmt.Sprintf(`For the research query: %q

Generate %d realistic verification sources that could support or refute findings on this topic.

For each source:
- source_type: one of patent, paper, web, database
- source_name: title of the source
- url: realistic URL
- authority_score: 0.0-1.0 credibility score
- relevant_excerpt: brief excerpt relating to the query

Respond with a JSON array of source objects.`, query, limit)

	raw, err := s.engine.GenerateJSON(ctx, prompt)
	if err != nil {
		return nil, err
	}

	parsed, err := parseSimulatedSources(raw)
	if err != nil {
		return nil, err
	}

	sources := make([]domain.EvidenceSource, 0, len(parsed))
	for i, src := range parsed {
		if i >= limit {
			break
		}
		if src.AuthorityScore < 0 || src.AuthorityScore > 1 {
			src.AuthorityScore = 0.5
		}
		if src.SourceType == "" {
			src.SourceType = "web"
		}
		sources = append(sources, domain.EvidenceSource{
			Type:           src.SourceType,
			Name:           src.SourceName,
			URL:            src.URL,
			AuthorityScore: src.AuthorityScore,
			Excerpt:        src.Excerpt,
		})
	}
	return sources, nil
}

// parseSimulatedSources decodes the engine's JSON output, tolerating a
// wrapping object with a "sources" key
func parseSimulatedSources(raw string) ([]simulatedSource, error) {
	raw = strings.TrimSpace(raw)

	var sources []simulatedSource
	if err := json.Unmarshal([]byte(raw), &sources); err == nil {
		return sources, nil
	}

	var wrapped struct {
		Sources []simulatedSource `json:"sources"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapped); err == nil && wrapped.Sources != nil {
		return wrapped.Sources, nil
	}

	return nil, fmt.Errorf("response is not a source array")
}

// cannedSources builds a fixed evidence mix from the query text alone.
// Authority scores match the live scoring bands so downstream
// verification behaves the same against canned data.
func cannedSources(query string, limit int) []domain.EvidenceSource {
	slug := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(query)), " ", "-")
	all := []domain.EvidenceSource{
		{
			Type:           "patent",
			Name:           fmt.Sprintf("System and method for %s", query),
			URL:            fmt.Sprintf("https://patents.google.com/patent/US11%06d", len(slug)*7919%1000000),
			AuthorityScore: 0.9,
			Excerpt:        fmt.Sprintf("A system architecture for %s with distributed coordination.", query),
		},
		{
			Type:           "paper",
			Name:           fmt.Sprintf("Advances in %s: a survey", query),
			URL:            fmt.Sprintf("https://arxiv.org/abs/2508.%05d", len(slug)*104729%100000),
			AuthorityScore: 0.9,
			Excerpt:        fmt.Sprintf("Recent work on %s shows substantial efficiency improvements.", query),
		},
		{
			Type:           "web",
			Name:           fmt.Sprintf("Market outlook for %s", query),
			URL:            fmt.Sprintf("https://www.reuters.com/technology/%s-outlook", slug),
			AuthorityScore: 0.7,
			Excerpt:        fmt.Sprintf("Analysts expect accelerating investment in %s through 2028.", query),
		},
		{
			Type:           "web",
			Name:           fmt.Sprintf("Industry adoption of %s", query),
			URL:            fmt.Sprintf("https://example.com/%s-adoption", slug),
			AuthorityScore: 0.5,
			Excerpt:        fmt.Sprintf("Early pilots of %s report mixed but promising results.", query),
		},
		{
			Type:           "database",
			Name:           fmt.Sprintf("Funding rounds related to %s", query),
			URL:            fmt.Sprintf("https://example.com/deals/%s", slug),
			AuthorityScore: 0.5,
			Excerpt:        fmt.Sprintf("Deal flow around %s has grown year over year.", query),
		},
	}
	if limit < len(all) {
		all = all[:limit]
	}
	return all
}
