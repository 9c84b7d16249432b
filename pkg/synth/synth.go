package synth

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nexus-rd/nexus/pkg/domain"
	"github.com/nexus-rd/nexus/pkg/observability"
)

// Input carries everything synthesis needs from a finished research pass
type Input struct {
	SessionID     string
	Query         domain.ResearchQuery
	Findings      []domain.Finding
	Verified      []domain.VerifiedClaim
	Verification  domain.VerificationSummary
	ResearchPaths []domain.ResearchPath
	Sources       int
	SubQueries    int
	StartedAt     time.Time
}

// Synthesizer turns verified research output into the final report. The
// reasoning engine writes the narrative sections; scoring and opportunity
// selection are deterministic so a flaky model never changes the numbers.
type Synthesizer struct {
	engine domain.ReasoningEngine
	logger observability.Logger
}

// New creates a synthesizer. The engine may be nil; narrative sections then
// fall back to generated boilerplate.
func New(engine domain.ReasoningEngine, logger observability.Logger) *Synthesizer {
	return &Synthesizer{
		engine: engine,
		logger: logger,
	}
}

// Build assembles the report. Disputed claims are excluded from
// opportunities but stay visible through the verification summary.
func (s *Synthesizer) Build(ctx context.Context, in Input) (*domain.Report, error) {
	opportunities := s.buildOpportunities(in)

	report := &domain.Report{
		ID:            uuid.New().String(),
		SessionID:     in.SessionID,
		Query:         in.Query,
		Opportunities: opportunities,
		Verification:  in.Verification,
		ResearchPaths: in.ResearchPaths,
		Metadata: domain.ReportMetadata{
			ElapsedSeconds:       time.Since(in.StartedAt).Seconds(),
			TotalSourcesAnalyzed: in.Sources,
			TotalFindings:        len(in.Findings),
			SubQueriesProcessed:  in.SubQueries,
		},
		GeneratedAt: time.Now(),
	}

	for _, f := range in.Findings {
		note := f.Title
		if note == "" {
			continue
		}
		switch f.Agent {
		case domain.AgentPatentScout:
			report.PatentNotes = append(report.PatentNotes, note)
		case domain.AgentMarketAnalyst:
			report.MarketNotes = append(report.MarketNotes, note)
		case domain.AgentTechTrend:
			report.TrendNotes = append(report.TrendNotes, note)
		}
	}

	report.Executive = s.buildExecutive(ctx, in, opportunities)

	return report, nil
}

// buildOpportunities derives scored opportunities from undisputed claims,
// best first
func (s *Synthesizer) buildOpportunities(in Input) []domain.Opportunity {
	contested := 0.0
	if in.Verification.TotalClaims > 0 {
		contested = float64(in.Verification.DisputedClaims) / float64(in.Verification.TotalClaims)
	}

	timing := 0.5
	if in.Query.TimeRangeYears > 0 && in.Query.TimeRangeYears <= 3 {
		timing = 0.8
	}

	var opportunities []domain.Opportunity
	for _, verdict := range in.Verified {
		if verdict.Disputed {
			continue
		}

		var bestAuthority float64
		var evidence []string
		for _, src := range verdict.Claim.Sources {
			if src.AuthorityScore > bestAuthority {
				bestAuthority = src.AuthorityScore
			}
			if src.Name != "" {
				evidence = append(evidence, src.Name)
			}
		}

		factors := domain.ScoreFactors{
			ClaimConfidence: verdict.Confidence,
			MarketImpact:    bestAuthority,
			TimingWindow:    timing,
			CompetitionGap:  1 - contested,
		}

		opportunities = append(opportunities, domain.Opportunity{
			ID:              uuid.New().String(),
			Title:           verdict.Claim.Text,
			Description:     fmt.Sprintf("Verified with confidence %.2f from %d sources", verdict.Confidence, len(verdict.Claim.Sources)),
			Evidence:        evidence,
			Confidence:      verdict.Confidence,
			InvestmentScore: InvestmentScore(factors),
		})
	}

	sort.SliceStable(opportunities, func(i, j int) bool {
		return opportunities[i].InvestmentScore > opportunities[j].InvestmentScore
	})

	return opportunities
}

// buildExecutive writes the headline section, asking the engine for prose
// and falling back to assembled text when it is unavailable
func (s *Synthesizer) buildExecutive(ctx context.Context, in Input, opportunities []domain.Opportunity) domain.ExecutiveSummary {
	summary := domain.ExecutiveSummary{
		OverallConfidence: in.Verification.AverageConfidence,
	}

	for i, opp := range opportunities {
		if i >= 3 {
			break
		}
		summary.TopOpportunities = append(summary.TopOpportunities, opp.Title)
	}

	summary.Headline = fmt.Sprintf("%d opportunities identified for %q", len(opportunities), in.Query.Query)
	if len(opportunities) > 0 {
		summary.KeyFinding = opportunities[0].Title
		summary.NextSteps = []string{
			fmt.Sprintf("Validate %q with primary research", opportunities[0].Title),
			"Review disputed claims before committing capital",
		}
	} else {
		summary.KeyFinding = "No opportunities survived verification"
	}

	if s.engine != nil {
		prompt := fmt.Sprintf(
			"Write a one-sentence executive headline for an R&D investment report on %q. %d opportunities were identified, %d of %d claims were disputed.",
			in.Query.Query, len(opportunities),
			in.Verification.DisputedClaims, in.Verification.TotalClaims,
		)
		headline, err := s.engine.Generate(ctx, prompt)
		if err == nil && headline != "" {
			summary.Headline = headline
		} else if err != nil && s.logger != nil {
			s.logger.Warn(ctx, "headline generation failed, using fallback", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	return summary
}
