package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nexus-rd/nexus/pkg/domain"
	"github.com/nexus-rd/nexus/pkg/observability"
)

// profile defines what distinguishes one research agent from another: the
// lens its search queries apply and the analysis brief handed to the model
type profile struct {
	id          domain.AgentID
	task        string
	queryAngles []string
	brief       string
}

// researchAgent is the shared execution machinery behind the patent, market
// and trend agents. Each run gathers evidence through the searcher, then has
// the engine distill findings from it.
type researchAgent struct {
	profile  profile
	engine   domain.ReasoningEngine
	searcher domain.EvidenceSearcher
	logger   observability.Logger

	maxFindings    int
	resultsPerHunt int
}

// Option tunes agent construction
type Option func(*researchAgent)

// WithLimits caps findings per run and search results per query
func WithLimits(maxFindings, resultsPerHunt int) Option {
	return func(a *researchAgent) {
		if maxFindings > 0 {
			a.maxFindings = maxFindings
		}
		if resultsPerHunt > 0 {
			a.resultsPerHunt = resultsPerHunt
		}
	}
}

func newResearchAgent(p profile, engine domain.ReasoningEngine, searcher domain.EvidenceSearcher, logger observability.Logger, opts ...Option) *researchAgent {
	a := &researchAgent{
		profile:        p,
		engine:         engine,
		searcher:       searcher,
		logger:         logger,
		maxFindings:    4,
		resultsPerHunt: 3,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ID implements domain.Agent
func (a *researchAgent) ID() domain.AgentID {
	return a.profile.id
}

// Task returns the human-readable activity label for status updates
func (a *researchAgent) Task() string {
	return a.profile.task
}

// modelFinding is the shape the engine is asked to produce per finding
type modelFinding struct {
	Title  string   `json:"title"`
	Body   string   `json:"content"`
	Claims []string `json:"claims"`
	Hints  []string `json:"whitespace_hints"`
}

// Execute implements domain.Agent. Returns either a full result or an
// error; a failed run contributes nothing.
func (a *researchAgent) Execute(ctx context.Context, query domain.ResearchQuery, view domain.FindingsView) (*domain.AgentResult, error) {
	evidence, err := a.gather(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("evidence gathering failed: %w", err)
	}
	if len(evidence) == 0 {
		return nil, fmt.Errorf("no evidence found for %q", query.Query)
	}

	raw, err := a.engine.GenerateJSON(ctx, a.buildPrompt(query, evidence, view))
	if err != nil {
		return nil, fmt.Errorf("analysis failed: %w", err)
	}

	parsed, err := parseFindings(raw)
	if err != nil {
		return nil, fmt.Errorf("unusable analysis output: %w", err)
	}

	findings := make([]domain.Finding, 0, len(parsed))
	for i, mf := range parsed {
		if i >= a.maxFindings {
			break
		}
		if mf.Title == "" {
			continue
		}
		findings = append(findings, domain.Finding{
			Agent:     a.profile.id,
			Title:     mf.Title,
			Content:   mf.Body,
			Claims:    mf.Claims,
			Hints:     mf.Hints,
			Sources:   evidence,
			Timestamp: time.Now(),
		})
	}

	if len(findings) == 0 {
		return nil, fmt.Errorf("analysis produced no findings for %q", query.Query)
	}

	return &domain.AgentResult{
		Findings:    findings,
		ResultCount: len(findings),
	}, nil
}

// gather runs the agent's search angles against the evidence searcher.
// Individual angle failures are absorbed as long as something comes back.
func (a *researchAgent) gather(ctx context.Context, query domain.ResearchQuery) ([]domain.EvidenceSource, error) {
	var evidence []domain.EvidenceSource
	var lastErr error

	for _, angle := range a.profile.queryAngles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		q := strings.TrimSpace(query.Query + " " + angle)
		sources, err := a.searcher.Search(ctx, q, a.resultsPerHunt)
		if err != nil {
			lastErr = err
			if a.logger != nil {
				a.logger.Warn(ctx, "search angle failed", map[string]interface{}{
					"agent": string(a.profile.id),
					"query": q,
					"error": err.Error(),
				})
			}
			continue
		}
		evidence = append(evidence, sources...)
	}

	if len(evidence) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return evidence, nil
}

// buildPrompt assembles the analysis brief with the gathered evidence and
// a digest of what other agents already found
func (a *researchAgent) buildPrompt(query domain.ResearchQuery, evidence []domain.EvidenceSource, view domain.FindingsView) string {
	var b strings.Builder

	b.WriteString(a.profile.brief)
	b.WriteString("\n\nResearch query: ")
	b.WriteString(query.Query)
	if query.Domain != "" {
		b.WriteString("\nDomain: ")
		b.WriteString(query.Domain)
	}
	if query.TimeRangeYears > 0 {
		fmt.Fprintf(&b, "\nTime horizon: last %d years", query.TimeRangeYears)
	}

	b.WriteString("\n\nEvidence:\n")
	for _, src := range evidence {
		fmt.Fprintf(&b, "- [%s, authority %.1f] %s: %s\n", src.Type, src.AuthorityScore, src.Name, src.Excerpt)
	}

	if view != nil {
		if prior := view.Findings(); len(prior) > 0 {
			b.WriteString("\nFindings already on record:\n")
			for _, f := range prior {
				fmt.Fprintf(&b, "- (%s) %s\n", f.Agent, f.Title)
			}
		}
	}

	fmt.Fprintf(&b, "\nRespond with a JSON array of at most %d findings. Each finding is an object with keys "+
		`"title", "content", "claims" (verifiable factual assertions) and "whitespace_hints" `+
		"(follow-up queries into under-explored territory).", a.maxFindings)

	return b.String()
}

// parseFindings decodes the engine's JSON output, tolerating a wrapping
// object with a "findings" key
func parseFindings(raw string) ([]modelFinding, error) {
	raw = strings.TrimSpace(raw)

	var findings []modelFinding
	if err := json.Unmarshal([]byte(raw), &findings); err == nil {
		return findings, nil
	}

	var wrapped struct {
		Findings []modelFinding `json:"findings"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapped); err == nil && wrapped.Findings != nil {
		return wrapped.Findings, nil
	}

	return nil, fmt.Errorf("response is not a findings array")
}
