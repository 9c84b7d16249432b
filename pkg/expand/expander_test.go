package expand_test

import (
	"reflect"
	"testing"

	"github.com/nexus-rd/nexus/pkg/domain"
	"github.com/nexus-rd/nexus/pkg/expand"
)

func testFinding(depth int, hints ...string) domain.Finding {
	return domain.Finding{
		ID:    "f-1",
		Agent: domain.AgentPatentScout,
		Depth: depth,
		Title: "solid-state electrolytes",
		Hints: hints,
	}
}

func TestExpander_Deterministic(t *testing.T) {
	e := expand.New(3, 2)
	finding := testFinding(0, "sulfide electrolyte scaling", "lithium metal anodes")

	first := e.Expand(finding, map[string]struct{}{})
	second := e.Expand(finding, map[string]struct{}{})

	if !reflect.DeepEqual(first, second) {
		t.Errorf("expansion not deterministic:\n%v\n%v", first, second)
	}
}

func TestExpander_DepthLimit(t *testing.T) {
	e := expand.New(3, 1)

	if got := e.Expand(testFinding(1, "hint one"), map[string]struct{}{}); got != nil {
		t.Errorf("expansion at depth limit = %v, want nil", got)
	}

	out := e.Expand(testFinding(0, "hint one"), map[string]struct{}{})
	if len(out) == 0 {
		t.Fatal("expansion below depth limit produced nothing")
	}
	for _, sq := range out {
		if sq.Depth != 1 {
			t.Errorf("sub-query depth = %d, want 1", sq.Depth)
		}
	}
}

func TestExpander_ZeroMaxDepth(t *testing.T) {
	e := expand.New(3, 0)

	if got := e.Expand(testFinding(0, "hint one", "hint two"), map[string]struct{}{}); got != nil {
		t.Errorf("expansion with max depth 0 = %v, want nil", got)
	}
}

func TestExpander_FanOutCap(t *testing.T) {
	e := expand.New(2, 3)
	finding := testFinding(0, "hint one", "hint two", "hint three", "hint four")

	out := e.Expand(finding, map[string]struct{}{})
	if len(out) != 2 {
		t.Errorf("sub-queries = %d, want fan-out cap 2", len(out))
	}
}

func TestExpander_DedupeAgainstSeen(t *testing.T) {
	e := expand.New(5, 3)
	finding := testFinding(0, "Sulfide   Electrolyte Scaling", "fresh hint")

	seen := map[string]struct{}{
		expand.Normalize("sulfide electrolyte scaling"): {},
	}

	out := e.Expand(finding, seen)
	for _, sq := range out {
		if expand.Normalize(sq.Query) == "sulfide electrolyte scaling" {
			t.Errorf("duplicate query survived dedupe: %q", sq.Query)
		}
	}
	if len(out) == 0 {
		t.Error("dedupe dropped everything including fresh hints")
	}
}

func TestExpander_DedupeWithinFinding(t *testing.T) {
	e := expand.New(5, 3)
	finding := testFinding(0, "same hint", "SAME   hint", "same hint ")

	out := e.Expand(finding, map[string]struct{}{})
	if len(out) != 1 {
		t.Errorf("sub-queries = %d, want 1 after intra-finding dedupe", len(out))
	}
}

func TestExpander_TemplateFallback(t *testing.T) {
	e := expand.New(3, 2)
	finding := testFinding(0) // no hints

	out := e.Expand(finding, map[string]struct{}{})
	if len(out) != 3 {
		t.Fatalf("sub-queries = %d, want 3 from templates", len(out))
	}
	for _, sq := range out {
		if sq.ParentFinding != finding.ID {
			t.Errorf("parent = %q, want %q", sq.ParentFinding, finding.ID)
		}
		if sq.Origin != finding.Agent {
			t.Errorf("origin = %q, want %q", sq.Origin, finding.Agent)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Solid-State   Batteries", "solid-state batteries"},
		{"  leading and trailing  ", "leading and trailing"},
		{"tabs\tand\nnewlines", "tabs and newlines"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		if got := expand.Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
