package search_test

import (
	"context"
	"testing"

	"github.com/nexus-rd/nexus/internal/testutil"
	"github.com/nexus-rd/nexus/pkg/search"
)

func TestSimulatedSearcher_EngineBackedSources(t *testing.T) {
	engine := testutil.NewMockEngine()
	engine.Responses["default"] = `[
		{"source_type": "patent", "source_name": "Electrolyte stack design", "url": "https://patents.google.com/patent/US456", "authority_score": 0.9, "relevant_excerpt": "A layered electrolyte"},
		{"source_type": "web", "source_name": "Battery market brief", "url": "https://example.com/brief", "authority_score": 0.5, "relevant_excerpt": "Market commentary"}
	]`

	searcher := search.NewSimulatedSearcher(engine, nil)
	sources, err := searcher.Search(context.Background(), "solid-state batteries", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(sources) != 2 {
		t.Fatalf("Expected 2 sources, got %d", len(sources))
	}
	if sources[0].Type != "patent" || sources[0].Name != "Electrolyte stack design" {
		t.Errorf("Unexpected first source: %+v", sources[0])
	}
	if sources[0].AuthorityScore != 0.9 {
		t.Errorf("Expected authority 0.9, got %v", sources[0].AuthorityScore)
	}
	if engine.GetCallCount() != 1 {
		t.Errorf("Expected 1 engine call, got %d", engine.GetCallCount())
	}
}

func TestSimulatedSearcher_LimitCapsEngineSources(t *testing.T) {
	engine := testutil.NewMockEngine()
	engine.Responses["default"] = `[
		{"source_type": "web", "source_name": "a", "authority_score": 0.5},
		{"source_type": "web", "source_name": "b", "authority_score": 0.5},
		{"source_type": "web", "source_name": "c", "authority_score": 0.5}
	]`

	searcher := search.NewSimulatedSearcher(engine, nil)
	sources, err := searcher.Search(context.Background(), "robotics", 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(sources) != 2 {
		t.Errorf("Expected 2 sources, got %d", len(sources))
	}
}

func TestSimulatedSearcher_FallsBackWhenEngineFails(t *testing.T) {
	engine := testutil.NewMockEngine()
	engine.ShouldError = true
	engine.ErrorMessage = "quota exceeded"

	searcher := search.NewSimulatedSearcher(engine, nil)
	sources, err := searcher.Search(context.Background(), "quantum sensing", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(sources) == 0 {
		t.Fatal("Expected canned sources, got none")
	}
	for _, src := range sources {
		if src.AuthorityScore < 0 || src.AuthorityScore > 1 {
			t.Errorf("Authority out of range: %v", src.AuthorityScore)
		}
		if src.Name == "" || src.Type == "" {
			t.Errorf("Incomplete source: %+v", src)
		}
	}
}

func TestSimulatedSearcher_NoEngineUsesCannedSources(t *testing.T) {
	searcher := search.NewSimulatedSearcher(nil, nil)

	first, err := searcher.Search(context.Background(), "gene editing delivery", 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	second, err := searcher.Search(context.Background(), "gene editing delivery", 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(first) != 3 {
		t.Fatalf("Expected 3 sources, got %d", len(first))
	}
	// Canned output is deterministic for a given query
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("Source %d differs between identical queries", i)
		}
	}
}

func TestSimulatedSearcher_MalformedEngineOutputFallsBack(t *testing.T) {
	engine := testutil.NewMockEngine()
	engine.Responses["default"] = "not json at all"

	searcher := search.NewSimulatedSearcher(engine, nil)
	sources, err := searcher.Search(context.Background(), "fusion ignition", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(sources) == 0 {
		t.Fatal("Expected canned sources, got none")
	}
}
