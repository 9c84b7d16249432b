package synth_test

import (
	"context"
	"testing"
	"time"

	"github.com/nexus-rd/nexus/internal/testutil"
	"github.com/nexus-rd/nexus/pkg/domain"
	"github.com/nexus-rd/nexus/pkg/synth"
)

func synthInput() synth.Input {
	return synth.Input{
		SessionID: "s1",
		Query:     testutil.NewTestQuery("solid-state batteries"),
		Findings: []domain.Finding{
			testutil.NewTestFinding(domain.AgentPatentScout, 0, "sulfide patent cluster"),
			testutil.NewTestFinding(domain.AgentMarketAnalyst, 0, "ev oem demand surge"),
			testutil.NewTestFinding(domain.AgentTechTrend, 1, "dry electrode processing"),
		},
		Verified: []domain.VerifiedClaim{
			{
				Claim: domain.Claim{
					ID:   "c1",
					Text: "sulfide electrolyte manufacturing is under-patented",
					Sources: []domain.EvidenceSource{
						{Type: "patent", Name: "USPTO", AuthorityScore: 0.9},
					},
				},
				Confidence: 0.9,
			},
			{
				Claim:      domain.Claim{ID: "c2", Text: "disputed hype claim"},
				Disputed:   true,
				Confidence: 0.4,
			},
			{
				Claim: domain.Claim{
					ID:   "c3",
					Text: "oxide electrolytes face cost ceiling",
					Sources: []domain.EvidenceSource{
						{Type: "paper", Name: "Nature Energy", AuthorityScore: 0.7},
					},
				},
				Confidence: 0.6,
			},
		},
		Verification: domain.VerificationSummary{
			TotalClaims:       3,
			DisputedClaims:    1,
			ConfirmedClaims:   1,
			AverageConfidence: 0.63,
		},
		Sources:    9,
		SubQueries: 4,
		StartedAt:  time.Now().Add(-2 * time.Second),
	}
}

func TestSynthesizer_Build(t *testing.T) {
	s := synth.New(testutil.NewMockEngine(), nil)

	report, err := s.Build(context.Background(), synthInput())
	testutil.AssertNoError(t, err, "Build")

	if report.SessionID != "s1" {
		t.Errorf("session ID = %v, want s1", report.SessionID)
	}
	if report.Metadata.TotalFindings != 3 {
		t.Errorf("total findings = %d, want 3", report.Metadata.TotalFindings)
	}
	if report.Metadata.TotalSourcesAnalyzed != 9 {
		t.Errorf("sources analyzed = %d, want 9", report.Metadata.TotalSourcesAnalyzed)
	}
	if report.Metadata.SubQueriesProcessed != 4 {
		t.Errorf("sub-queries = %d, want 4", report.Metadata.SubQueriesProcessed)
	}
	if report.Metadata.ElapsedSeconds <= 0 {
		t.Error("elapsed seconds not recorded")
	}
}

func TestSynthesizer_DisputedClaimsExcluded(t *testing.T) {
	s := synth.New(nil, nil)

	report, err := s.Build(context.Background(), synthInput())
	testutil.AssertNoError(t, err, "Build")

	if len(report.Opportunities) != 2 {
		t.Fatalf("opportunities = %d, want 2 (disputed claim excluded)", len(report.Opportunities))
	}
	for _, opp := range report.Opportunities {
		if opp.Title == "disputed hype claim" {
			t.Error("disputed claim surfaced as an opportunity")
		}
	}
}

func TestSynthesizer_OpportunitiesSortedByScore(t *testing.T) {
	s := synth.New(nil, nil)

	report, err := s.Build(context.Background(), synthInput())
	testutil.AssertNoError(t, err, "Build")

	for i := 1; i < len(report.Opportunities); i++ {
		if report.Opportunities[i].InvestmentScore > report.Opportunities[i-1].InvestmentScore {
			t.Errorf("opportunities not sorted: %v before %v",
				report.Opportunities[i-1].InvestmentScore, report.Opportunities[i].InvestmentScore)
		}
	}
	if report.Executive.KeyFinding != report.Opportunities[0].Title {
		t.Errorf("key finding = %q, want top opportunity %q",
			report.Executive.KeyFinding, report.Opportunities[0].Title)
	}
}

func TestSynthesizer_NotesRoutedByAgent(t *testing.T) {
	s := synth.New(nil, nil)

	report, err := s.Build(context.Background(), synthInput())
	testutil.AssertNoError(t, err, "Build")

	if len(report.PatentNotes) != 1 || report.PatentNotes[0] != "sulfide patent cluster" {
		t.Errorf("patent notes = %v", report.PatentNotes)
	}
	if len(report.MarketNotes) != 1 || report.MarketNotes[0] != "ev oem demand surge" {
		t.Errorf("market notes = %v", report.MarketNotes)
	}
	if len(report.TrendNotes) != 1 || report.TrendNotes[0] != "dry electrode processing" {
		t.Errorf("trend notes = %v", report.TrendNotes)
	}
}

func TestSynthesizer_EngineHeadline(t *testing.T) {
	engine := testutil.NewMockEngine()
	engine.Responses["default"] = "Sulfide whitespace is the battery bet of the decade"

	s := synth.New(engine, nil)
	report, err := s.Build(context.Background(), synthInput())
	testutil.AssertNoError(t, err, "Build")

	if report.Executive.Headline != "Sulfide whitespace is the battery bet of the decade" {
		t.Errorf("headline = %q, want engine output", report.Executive.Headline)
	}
}

func TestSynthesizer_EngineFailureFallsBack(t *testing.T) {
	engine := testutil.NewMockEngine()
	engine.ShouldError = true
	engine.ErrorMessage = "model overloaded"

	s := synth.New(engine, nil)
	report, err := s.Build(context.Background(), synthInput())
	testutil.AssertNoError(t, err, "Build with failing engine")

	if report.Executive.Headline == "" {
		t.Error("no fallback headline when engine fails")
	}
}

func TestSynthesizer_EmptyInput(t *testing.T) {
	s := synth.New(nil, nil)

	report, err := s.Build(context.Background(), synth.Input{
		SessionID: "s-empty",
		Query:     testutil.NewTestQuery("nothing found"),
		StartedAt: time.Now(),
	})
	testutil.AssertNoError(t, err, "Build with empty input")

	if len(report.Opportunities) != 0 {
		t.Errorf("opportunities from empty input = %d, want 0", len(report.Opportunities))
	}
	if report.Executive.KeyFinding != "No opportunities survived verification" {
		t.Errorf("key finding = %q", report.Executive.KeyFinding)
	}
}
