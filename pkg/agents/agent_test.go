package agents_test

import (
	"context"
	"strings"
	"testing"

	"github.com/nexus-rd/nexus/internal/testutil"
	"github.com/nexus-rd/nexus/pkg/agents"
	"github.com/nexus-rd/nexus/pkg/domain"
)

const findingsJSON = `[
	{
		"title": "sulfide electrolyte patent cluster",
		"content": "Toyota and Samsung dominate sulfide electrolyte filings.",
		"claims": ["sulfide electrolyte filings doubled since 2022"],
		"whitespace_hints": ["sulfide electrolyte manufacturing equipment patents"]
	},
	{
		"title": "thin-film deposit whitespace",
		"content": "Few filings cover roll-to-roll deposition.",
		"claims": ["roll-to-roll deposition is under-patented"],
		"whitespace_hints": ["roll-to-roll solid electrolyte deposition"]
	}
]`

func TestPatentScout_Execute(t *testing.T) {
	engine := testutil.NewMockEngine()
	engine.Responses["default"] = findingsJSON
	searcher := testutil.NewMockSearcher()

	agent := agents.NewPatentScout(engine, searcher, nil)

	if agent.ID() != domain.AgentPatentScout {
		t.Errorf("ID = %v, want %v", agent.ID(), domain.AgentPatentScout)
	}

	result, err := agent.Execute(context.Background(), testutil.NewTestQuery("solid-state batteries"), nil)
	testutil.AssertNoError(t, err, "Execute")

	if result.ResultCount != 2 {
		t.Fatalf("result count = %d, want 2", result.ResultCount)
	}
	for _, f := range result.Findings {
		if f.Agent != domain.AgentPatentScout {
			t.Errorf("finding agent = %v, want %v", f.Agent, domain.AgentPatentScout)
		}
		if len(f.Sources) == 0 {
			t.Error("finding carries no evidence sources")
		}
	}
	if result.Findings[0].Hints[0] != "sulfide electrolyte manufacturing equipment patents" {
		t.Errorf("hints not carried through: %v", result.Findings[0].Hints)
	}
}

func TestAgent_WrappedFindingsObject(t *testing.T) {
	engine := testutil.NewMockEngine()
	engine.Responses["default"] = `{"findings": ` + findingsJSON + `}`
	searcher := testutil.NewMockSearcher()

	agent := agents.NewMarketAnalyst(engine, searcher, nil)

	result, err := agent.Execute(context.Background(), testutil.NewTestQuery("solid-state batteries"), nil)
	testutil.AssertNoError(t, err, "Execute with wrapped JSON")

	if result.ResultCount != 2 {
		t.Errorf("result count = %d, want 2", result.ResultCount)
	}
}

func TestAgent_FindingsCappedByLimit(t *testing.T) {
	engine := testutil.NewMockEngine()
	engine.Responses["default"] = findingsJSON
	searcher := testutil.NewMockSearcher()

	agent := agents.NewTechTrend(engine, searcher, nil, agents.WithLimits(1, 3))

	result, err := agent.Execute(context.Background(), testutil.NewTestQuery("solid-state batteries"), nil)
	testutil.AssertNoError(t, err, "Execute")

	if result.ResultCount != 1 {
		t.Errorf("result count = %d, want cap 1", result.ResultCount)
	}
}

func TestAgent_EngineFailure(t *testing.T) {
	engine := testutil.NewMockEngine()
	engine.ShouldError = true
	engine.ErrorMessage = "model unavailable"
	searcher := testutil.NewMockSearcher()

	agent := agents.NewPatentScout(engine, searcher, nil)

	_, err := agent.Execute(context.Background(), testutil.NewTestQuery("query"), nil)
	testutil.AssertError(t, err, "Execute with failing engine")
}

func TestAgent_MalformedModelOutput(t *testing.T) {
	engine := testutil.NewMockEngine()
	engine.Responses["default"] = "I could not produce JSON, sorry."
	searcher := testutil.NewMockSearcher()

	agent := agents.NewPatentScout(engine, searcher, nil)

	_, err := agent.Execute(context.Background(), testutil.NewTestQuery("query"), nil)
	testutil.AssertError(t, err, "Execute with malformed output")
}

func TestAgent_AllSearchesFail(t *testing.T) {
	engine := testutil.NewMockEngine()
	engine.Responses["default"] = findingsJSON
	searcher := testutil.NewMockSearcher()
	searcher.ShouldError = true
	searcher.ErrorMessage = "network down"

	agent := agents.NewPatentScout(engine, searcher, nil)

	_, err := agent.Execute(context.Background(), testutil.NewTestQuery("query"), nil)
	testutil.AssertError(t, err, "Execute with no evidence")
}

func TestAgent_PartialSearchFailureTolerated(t *testing.T) {
	engine := testutil.NewMockEngine()
	engine.Responses["default"] = findingsJSON

	searcher := testutil.NewMockSearcher()
	calls := 0
	searcher.SearchFunc = func(ctx context.Context, query string, limit int) ([]domain.EvidenceSource, error) {
		calls++
		if calls == 1 {
			return nil, context.DeadlineExceeded
		}
		return []domain.EvidenceSource{{Type: "web", Name: "src", AuthorityScore: 0.5}}, nil
	}

	agent := agents.NewPatentScout(engine, searcher, nil)

	result, err := agent.Execute(context.Background(), testutil.NewTestQuery("query"), nil)
	testutil.AssertNoError(t, err, "Execute with partial search failure")
	if result.ResultCount == 0 {
		t.Error("no findings despite surviving evidence")
	}
}

func TestAgent_PriorFindingsInPrompt(t *testing.T) {
	engine := testutil.NewMockEngine()
	engine.Responses["default"] = findingsJSON
	searcher := testutil.NewMockSearcher()

	agent := agents.NewMarketAnalyst(engine, searcher, nil)

	view := &staticView{findings: []domain.Finding{
		testutil.NewTestFinding(domain.AgentPatentScout, 0, "existing patent insight"),
	}}

	_, err := agent.Execute(context.Background(), testutil.NewTestQuery("query"), view)
	testutil.AssertNoError(t, err, "Execute")

	if !strings.Contains(engine.LastPrompt, "existing patent insight") {
		t.Error("prior findings not surfaced in analysis prompt")
	}
}

type staticView struct {
	findings []domain.Finding
}

func (v *staticView) Findings() []domain.Finding { return v.findings }
func (v *staticView) FindingsByAgent(id domain.AgentID) []domain.Finding {
	var out []domain.Finding
	for _, f := range v.findings {
		if f.Agent == id {
			out = append(out, f)
		}
	}
	return out
}
